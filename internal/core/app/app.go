// Package app assembles the client core: persistence backend, mode manager,
// session store, outbox, dispatcher, sync engine, and stream client, wired
// together in dependency order.
package app

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/relaykit/relaykit/config"
	"github.com/relaykit/relaykit/internal/core/dispatch"
	"github.com/relaykit/relaykit/internal/core/mode"
	"github.com/relaykit/relaykit/internal/core/outbox"
	"github.com/relaykit/relaykit/internal/core/session"
	"github.com/relaykit/relaykit/internal/core/stream"
	"github.com/relaykit/relaykit/internal/core/syncer"
	"github.com/relaykit/relaykit/pkg/metrics"
	"github.com/relaykit/relaykit/pkg/persistence"
	jsonstore "github.com/relaykit/relaykit/pkg/persistence/implementations/json"
	"github.com/relaykit/relaykit/pkg/persistence/implementations/memory"
	"github.com/relaykit/relaykit/pkg/persistence/implementations/sqlite"
)

type App struct {
	Config     *config.Config
	Store      persistence.Persistence
	Modes      *mode.Manager
	Sessions   *session.Store
	Outbox     *outbox.Queue
	Dispatcher *dispatch.Dispatcher
	Syncer     *syncer.Engine
	Stream     *stream.Client
	Metrics    *metrics.PrometheusCollector
}

// New builds the full client core from the configuration. The session store
// is constructed before the dispatcher (the dispatcher reads its token), then
// the dispatcher is attached back so session operations go through it.
func New(cfg *config.Config) (*App, error) {
	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}

	collector := metrics.NewPrometheusCollector()

	modes, err := mode.NewManager(store)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init mode manager: %w", err)
	}

	sessions, err := session.NewStore(store)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init session store: %w", err)
	}

	queue := outbox.NewQueue(store, collector)
	dispatcher := dispatch.NewDispatcher(modes, sessions, queue, collector, cfg.DispatchTimeout)
	sessions.AttachDispatcher(dispatcher)
	dispatcher.OnAuthFailure(sessions.Logout)

	modes.SetSessionInvalidator(sessions.Invalidate)

	streamClient := stream.NewClient(modes, cfg.StreamPath)
	modes.OnReset(streamClient.Reset)

	engine := syncer.NewEngine(modes, queue, dispatcher, collector)

	log.Info().Str("mode", string(modes.Mode())).Str("backend", cfg.StoreBackend).
		Msg("Client core initialized")

	return &App{
		Config:     cfg,
		Store:      store,
		Modes:      modes,
		Sessions:   sessions,
		Outbox:     queue,
		Dispatcher: dispatcher,
		Syncer:     engine,
		Stream:     streamClient,
		Metrics:    collector,
	}, nil
}

func newStore(cfg *config.Config) (persistence.Persistence, error) {
	pcfg := &persistence.Config{Type: cfg.StoreBackend, DataDir: cfg.DataDir}
	switch cfg.StoreBackend {
	case "json":
		return jsonstore.NewJsonPersistence(pcfg)
	case "sqlite":
		return sqlite.NewSqlitePersistence(pcfg)
	case "memory":
		return memory.NewMemoryPersistence(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// Close releases the stream connection and the persistence backend.
func (a *App) Close() error {
	if err := a.Stream.Close(); err != nil {
		log.Debug().Err(err).Msg("Closing stream client")
	}
	return a.Store.Close()
}
