// Package daemon composes the engine with fx: one session per process,
// guarded by a file lock, with every component wired through the bus.
package daemon

import (
	"context"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"chatlink/internal/archive"
	"chatlink/internal/bus"
	"chatlink/internal/call"
	"chatlink/internal/config"
	"chatlink/internal/conn"
	"chatlink/internal/lock"
	"chatlink/internal/logging"
	"chatlink/internal/metrics"
	"chatlink/internal/notify"
	"chatlink/internal/rest"
	"chatlink/internal/send"
	"chatlink/internal/session"
	"chatlink/internal/status"
	"chatlink/internal/store"
	chatsync "chatlink/internal/sync"
	"chatlink/internal/typing"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
}

// Module returns the fx module for the daemon, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideMetrics,
			provideStore,
			provideArchive,
			provideConnManager,
			provideRestClient,
			provideSyncEngine,
			providePipeline,
			provideTracker,
			provideBridge,
			provideSignaler,
			NewMetricsServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() (*config.Config, error) {
	return config.Load(session.ConfigPath())
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus(logger *zap.Logger) *bus.Bus {
	return bus.New(logger)
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideMetrics() *metrics.Metrics {
	return metrics.New()
}

func provideStore(b *bus.Bus) *store.Store {
	return store.New(b)
}

// provideArchive opens the mirror database; a nil archiver means the mirror
// is disabled in config.
func provideArchive(p Params, cfg *config.Config, b *bus.Bus, logger *zap.Logger) (*archive.Archiver, error) {
	if !cfg.ArchiveEnabled {
		logger.Info("archive disabled")
		return nil, nil
	}
	dbPath := session.ArchiveDBPath(p.SessionName)
	db, err := archive.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("archive migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("archive migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("archive initialized", zap.String("path", dbPath))
	return archive.NewArchiver(db, b, logger), nil
}

func provideConnManager(cfg *config.Config, machine *status.Machine, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *conn.Manager {
	return conn.NewManager(conn.Options{
		URL:            cfg.ServerURL,
		ReconnectDelay: cfg.ReconnectDelay(),
		MaxAttempts:    cfg.ReconnectMaxAttempts,
	}, machine, b, m, logger)
}

func provideRestClient(cfg *config.Config, manager *conn.Manager) *rest.Client {
	return rest.New(cfg.ServerURL, func() string {
		return manager.Credentials().Token
	})
}

func provideSyncEngine(st *store.Store, rc *rest.Client, manager *conn.Manager, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *chatsync.Engine {
	return chatsync.NewEngine(st, rc, manager, b, m, logger)
}

func providePipeline(st *store.Store, rc *rest.Client, manager *conn.Manager, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *send.Pipeline {
	return send.NewPipeline(st, rc, manager, b, m, selfFunc(manager), logger)
}

func provideTracker(cfg *config.Config, st *store.Store, manager *conn.Manager, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *typing.Tracker {
	return typing.NewTracker(st, manager, b, m, typing.Options{
		TTL:             cfg.TypingTTL(),
		EventsPerSecond: cfg.TypingEventsPerS,
	}, logger)
}

func provideBridge(st *store.Store, manager *conn.Manager, b *bus.Bus, logger *zap.Logger) *notify.Bridge {
	return notify.NewBridge(st, b, selfFunc(manager), logger)
}

func provideSignaler(manager *conn.Manager, logger *zap.Logger) *call.Signaler {
	return call.NewSignaler(manager, logger)
}

func selfFunc(manager *conn.Manager) func() store.UserSummary {
	return func() store.UserSummary {
		c := manager.Credentials()
		return store.UserSummary{ID: c.UserID}
	}
}

// envCredentials reads the session credentials from the environment. An
// empty result means the daemon starts idle and waits for a Connect call.
func envCredentials() conn.Credentials {
	return conn.Credentials{
		Token:  os.Getenv("CHATLINK_TOKEN"),
		UserID: os.Getenv("CHATLINK_USER_ID"),
	}
}

func registerLifecycle(
	lc fx.Lifecycle,
	lk *lock.Lock,
	manager *conn.Manager,
	engine *chatsync.Engine,
	pipeline *send.Pipeline,
	tracker *typing.Tracker,
	bridge *notify.Bridge,
	archiver *archive.Archiver,
	st *store.Store,
	msrv *MetricsServer,
	logger *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			engine.Start()
			pipeline.Start()
			tracker.Start()
			bridge.Start()

			if archiver != nil {
				archiver.Start(context.Background())
				if err := archiver.SeedChats(st, 50); err != nil {
					logger.Warn("archive seed failed", zap.Error(err))
				}
			}

			if msrv != nil {
				go func() {
					if err := msrv.Start(); err != nil {
						logger.Error("metrics server error", zap.Error(err))
					}
				}()
			}

			if creds := envCredentials(); !creds.Empty() {
				if err := manager.Connect(creds); err != nil {
					logger.Error("connect failed", zap.Error(err))
				}
			} else {
				logger.Info("no credentials in environment, staying idle")
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			manager.Disconnect()
			tracker.Stop()
			pipeline.Stop()
			engine.Stop()
			bridge.Stop()
			if archiver != nil {
				archiver.Stop()
				if err := archiver.Close(); err != nil {
					logger.Warn("error closing archive", zap.Error(err))
				}
			}
			if msrv != nil {
				msrv.Stop(ctx)
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
