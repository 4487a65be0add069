// Command memento-web runs the memory service's HTTP API: ingestion,
// listing, search, delete, and the /memories/stream lifecycle feed.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prosperitypirate/opencode-memory/internal/config"
	"github.com/prosperitypirate/opencode-memory/internal/engine"
	"github.com/prosperitypirate/opencode-memory/internal/llm"
	"github.com/prosperitypirate/opencode-memory/internal/server"
	"github.com/prosperitypirate/opencode-memory/internal/storage"
	"github.com/prosperitypirate/opencode-memory/internal/storage/postgres"
	"github.com/prosperitypirate/opencode-memory/internal/storage/sqlite"
	"github.com/prosperitypirate/opencode-memory/pkg/types"
	"github.com/prosperitypirate/opencode-memory/web/handlers"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if missing := cfg.Unconfigured(); len(missing) > 0 {
		log.Printf("WARNING: service starting unconfigured, data-plane calls will fail: %v", missing)
	}

	store, err := newStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	chat, err := llm.NewChatCapability(cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to initialize chat capability: %v", err)
	}
	embed, err := llm.NewEmbedCapability(cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to initialize embed capability: %v", err)
	}
	wsHub := handlers.NewWebSocketHub()
	go wsHub.Run()

	eng := engine.New(store, chat, embed, cfg.LLM.RequestTimeout,
		engine.WithLimits(limitsFromConfig(cfg.Limits)),
		engine.WithEventSink(wsHub),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, _ := server.Start(ctx, cfg, store, eng, wsHub)
	log.Printf("Memory service running at http://%s", addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	cancel()
}

// limitsFromConfig converts an operator-supplied LimitsConfig into the
// engine's Limits value, falling back to the built-in default for any field
// left at its zero value (a YAML override file need only set the fields it
// wants to change).
func limitsFromConfig(lc config.LimitsConfig) types.Limits {
	limits := types.DefaultLimits()
	if lc.DedupDistance != 0 {
		limits.DedupDistance = lc.DedupDistance
	}
	if lc.StructuralDedupDistance != 0 {
		limits.StructuralDedupDistance = lc.StructuralDedupDistance
	}
	if lc.ContradictionCandidateDistance != 0 {
		limits.ContradictionCandidateDistance = lc.ContradictionCandidateDistance
	}
	if lc.StructuralContradictionDistance != 0 {
		limits.StructuralContradictionDistance = lc.StructuralContradictionDistance
	}
	if lc.ContradictionCandidateLimit != 0 {
		limits.ContradictionCandidateLimit = lc.ContradictionCandidateLimit
	}
	if lc.MaxSessionSummaries != 0 {
		limits.MaxSessionSummaries = lc.MaxSessionSummaries
	}
	return limits
}

func newStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.StorageEngine {
	case "sqlite":
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o700); err != nil {
			return nil, err
		}
		return sqlite.New(cfg.Storage.DataPath + "/memory.db")
	default:
		return postgres.New(cfg.Storage.PostgresDSN)
	}
}
