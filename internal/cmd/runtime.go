package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Iron-Ham/quorum/internal/config"
	"github.com/Iron-Ham/quorum/internal/event"
	"github.com/Iron-Ham/quorum/internal/logging"
	"github.com/Iron-Ham/quorum/internal/retry"
	"github.com/Iron-Ham/quorum/internal/store"
	"github.com/Iron-Ham/quorum/internal/supervisor"
	"github.com/Iron-Ham/quorum/internal/tooltrack"
)

// runtime holds the wired-together orchestration components shared by the
// run and debate commands.
type runtime struct {
	cfg        *config.Config
	logger     *logging.Logger
	bus        *event.Bus
	tracker    *tooltrack.Tracker
	supervisor *supervisor.Supervisor

	audit *store.Audit
	db    interface{ Close() error }
}

// buildRuntime loads config and constructs the component graph:
// breaker -> engine -> supervisor, with the tracker attached as the
// supervisor's record sink and the audit store observing the bus.
func buildRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	bus := event.NewBus()

	tracker := tooltrack.New(
		tooltrack.WithLogger(logger),
		tooltrack.WithBus(bus),
		tooltrack.WithCapacity(cfg.Tracker.HistoryCapacity),
	)

	breaker := retry.NewBreaker(cfg.Breaker.Window(), cfg.Breaker.FailureThreshold)
	engine := retry.NewEngine(
		retry.WithBus(bus),
		retry.WithLogger(logger),
		retry.WithMaxActive(cfg.Retry.MaxActive),
		retry.WithBreaker(breaker),
	)

	supOpts := []supervisor.Option{
		supervisor.WithLogger(logger),
		supervisor.WithBus(bus),
		supervisor.WithEngine(engine),
		supervisor.WithMaxConcurrent(cfg.Supervisor.MaxConcurrent),
		supervisor.WithGracePeriod(cfg.Supervisor.GracePeriod()),
		supervisor.WithDefaultPolicy(cfg.Retry.Default.Policy()),
		supervisor.WithSink(tracker),
	}
	if len(cfg.Supervisor.EnvAllowlist) > 0 {
		supOpts = append(supOpts, supervisor.WithEnvAllowlist(cfg.Supervisor.EnvAllowlist))
	}
	for role, pc := range cfg.Retry.Roles {
		supOpts = append(supOpts, supervisor.WithRolePolicy(role, pc.Policy()))
	}
	sup := supervisor.New(supOpts...)

	rt := &runtime{
		cfg:        cfg,
		logger:     logger,
		bus:        bus,
		tracker:    tracker,
		supervisor: sup,
	}

	if cfg.Store.Enabled {
		path := cfg.Store.DatabasePath()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			_ = logger.Close()
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		db, err := store.NewDB(path)
		if err != nil {
			_ = logger.Close()
			return nil, fmt.Errorf("open audit store: %w", err)
		}
		rt.db = db
		rt.audit = store.NewAudit(db, store.WithLogger(logger))
		rt.audit.Attach(bus)
	}

	// Config file edits adjust the process ceiling without a restart.
	config.Watch(logger, func(next *config.Config) {
		sup.SetConcurrencyLimit(next.Supervisor.MaxConcurrent)
	})

	return rt, nil
}

func (rt *runtime) close() {
	if rt.audit != nil {
		rt.audit.Close()
	}
	if rt.db != nil {
		_ = rt.db.Close()
	}
	_ = rt.logger.Close()
}
