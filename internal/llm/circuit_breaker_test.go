package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCircuitBreaker_DefaultState(t *testing.T) {
	cb := NewCircuitBreaker()
	assert.Equal(t, "closed", cb.State())
}

func TestWithBreakerDefaults_FillsZeroFields(t *testing.T) {
	got := withBreakerDefaults(CircuitBreakerConfig{})
	assert.Equal(t, uint32(3), got.MaxFailures)
	assert.Equal(t, 30*time.Second, got.Timeout)
	assert.Equal(t, uint32(2), got.HalfOpenMaxSuccesses)
}

func TestWithBreakerDefaults_PreservesSetFields(t *testing.T) {
	got := withBreakerDefaults(CircuitBreakerConfig{MaxFailures: 1, Timeout: 5 * time.Second, HalfOpenMaxSuccesses: 1})
	assert.Equal(t, uint32(1), got.MaxFailures)
	assert.Equal(t, 5*time.Second, got.Timeout)
	assert.Equal(t, uint32(1), got.HalfOpenMaxSuccesses)
}

func TestNewXAIClient_UsesConfiguredBreakerThreshold(t *testing.T) {
	c := NewXAIClient(XAIConfig{
		APIKey:  "test",
		Breaker: CircuitBreakerConfig{MaxFailures: 1, Timeout: time.Minute, HalfOpenMaxSuccesses: 1},
	})

	failing := func() (interface{}, error) { return nil, errors.New("boom") }
	_, err := c.circuitBreaker.Execute(context.Background(), failing)
	require.Error(t, err)
	assert.Equal(t, "open", c.circuitBreaker.State())

	_, err = c.circuitBreaker.Execute(context.Background(), failing)
	require.ErrorIs(t, err, ErrCircuitOpen)
}
