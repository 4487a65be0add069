package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestID(t *testing.T) {
	assert.NoError(t, ID("user_id", "u1"))
	assert.NoError(t, ID("user_id", "user.name_1-2"))

	err := ID("user_id", "u 1")
	assert.Error(t, err)
	var invalid *ErrInvalidID
	assert.ErrorAs(t, err, &invalid)

	assert.Error(t, ID("user_id", ""))
	assert.Error(t, ID("memory_id", "drop table; --"))
}
