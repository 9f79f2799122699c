package agentbuilder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/im-knots/ea-monorepo/internal/adapters/agentmanager"
	"github.com/im-knots/ea-monorepo/internal/adapters/events"
	"github.com/im-knots/ea-monorepo/internal/adapters/jobapi"
	"github.com/im-knots/ea-monorepo/internal/adapters/repository/agentrepo"
	"github.com/im-knots/ea-monorepo/internal/adapters/repository/memory"
	"github.com/im-knots/ea-monorepo/internal/adapters/repository/postgres"
	"github.com/im-knots/ea-monorepo/internal/adapters/repository/sqlite"
	"github.com/im-knots/ea-monorepo/internal/adapters/rest"
	"github.com/im-knots/ea-monorepo/internal/adapters/usermanager"
	"github.com/im-knots/ea-monorepo/internal/api"
	"github.com/im-knots/ea-monorepo/internal/app/dto"
	"github.com/im-knots/ea-monorepo/internal/app/services"
	"github.com/im-knots/ea-monorepo/internal/app/usecases"
	"github.com/im-knots/ea-monorepo/internal/config"
	"github.com/im-knots/ea-monorepo/internal/core/agent"
	"github.com/im-knots/ea-monorepo/internal/core/catalog"
	"github.com/im-knots/ea-monorepo/internal/core/snapshot"
	"github.com/im-knots/ea-monorepo/pkg/logger"
	"github.com/im-knots/ea-monorepo/pkg/serialization"
)

// Re-exported types.
type (
	Config           = config.Config
	Session          = usecases.Session
	SessionManager   = usecases.SessionManager
	SessionView      = dto.SessionView
	Definition       = agent.Definition
	CatalogEntry     = catalog.Entry
	CatalogParameter = catalog.Parameter
)

// ErrOffline is returned when launching a job without a job API.
var ErrOffline = errors.New("job launching is unavailable offline")

// Runtime owns every long-lived collaborator of a host process.
type Runtime struct {
	cfg      *config.Config
	sessions *usecases.SessionManager
	logger   *slog.Logger
	closers  []func() error
}

// NewRuntime connects to the configured services, loads the node catalog
// and prepares the draft store and event publisher.
func NewRuntime(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	rt := &Runtime{cfg: cfg, logger: logger.Named("runtime")}

	clientOpts := []rest.Option{rest.WithTimeout(cfg.Services.Timeout)}
	if cfg.Services.Token != "" {
		clientOpts = append(clientOpts, rest.WithToken(cfg.Services.Token))
	}
	agentsRC, err := rest.NewClient("agent_manager", cfg.Services.AgentManagerURL, clientOpts...)
	if err != nil {
		return nil, err
	}
	jobsRC, err := rest.NewClient("job_api", cfg.Services.JobAPIURL, clientOpts...)
	if err != nil {
		return nil, err
	}
	usersRC, err := rest.NewClient("user_manager", cfg.Services.UserManagerURL, clientOpts...)
	if err != nil {
		return nil, err
	}
	agents := agentmanager.New(agentsRC)

	cat, err := catalog.Load(ctx, agents, logger.Named("catalog"))
	if err != nil {
		// The editor stays usable for opening and saving agents; adding
		// nodes reports the missing catalog.
		rt.logger.Warn("node catalog unavailable", slog.Any("error", err))
	}

	ectx := usecases.EditorContext{
		Catalog: cat,
		Agents:  agents,
		Jobs:    jobapi.New(jobsRC),
		Status:  usermanager.New(usersRC),
		Poller: services.PollerConfig{
			Interval:     cfg.Poller.Interval,
			FetchTimeout: cfg.Poller.FetchTimeout,
		},
		Logger: logger.Named("sessions"),
	}
	if err := rt.attachStores(ctx, &ectx); err != nil {
		_ = rt.Close()
		return nil, err
	}

	rt.sessions = usecases.NewSessionManager(ectx)
	return rt, nil
}

// NewOfflineRuntime serves entries from memory with no remote services.
// Agents are kept in process and running jobs is rejected with ErrOffline.
func NewOfflineRuntime(entries []catalog.Entry) (*Runtime, error) {
	cat, err := catalog.New(entries)
	if err != nil {
		return nil, err
	}
	saver := memory.NewSnapshotSaver(memory.Config{})
	rt := &Runtime{
		cfg:     &config.Config{},
		logger:  logger.Named("runtime"),
		closers: []func() error{saver.Close},
	}
	rt.sessions = usecases.NewSessionManager(usecases.EditorContext{
		Catalog: cat,
		Agents:  agentrepo.NewInMemoryAgentRepository(entries...),
		Jobs:    offlineJobs{},
		Status:  offlineStatus{},
		Drafts:  services.NewDraftService(saver),
		Logger:  logger.Named("sessions"),
	})
	return rt, nil
}

func (rt *Runtime) attachStores(ctx context.Context, ectx *usecases.EditorContext) error {
	saver, err := rt.openDrafts(ctx)
	if err != nil {
		return err
	}
	if saver != nil {
		ectx.Drafts = services.NewDraftService(saver)
	}

	pub, err := events.New(rt.cfg.Events)
	if err != nil {
		return err
	}
	rt.closers = append(rt.closers, pub.Close)
	ectx.Events = pub
	return nil
}

func (rt *Runtime) openDrafts(ctx context.Context) (snapshot.Saver, error) {
	sc := rt.cfg.Snapshots
	driver := strings.ToLower(sc.Driver)
	if driver == "none" {
		return nil, nil
	}

	key, err := sc.Key()
	if err != nil {
		return nil, err
	}
	ser, err := serialization.FromNames(sc.Codec, sc.Compression, key)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, func() error { ser.Close(); return nil })

	switch driver {
	case "", "memory":
		saver := memory.NewSnapshotSaver(memory.Config{TTL: sc.TTL, MaxEntries: sc.MaxEntries, Serializer: ser})
		rt.closers = append(rt.closers, saver.Close)
		return saver, nil
	case "sqlite":
		saver, err := sqlite.Open(ctx, sc.DSN, ser)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, saver.Close)
		return saver, nil
	case "postgres":
		saver, err := postgres.Connect(ctx, sc.DSN, ser)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() error { saver.Close(); return nil })
		return saver, nil
	default:
		return nil, fmt.Errorf("unknown snapshot driver %q", sc.Driver)
	}
}

// Sessions returns the session manager.
func (rt *Runtime) Sessions() *usecases.SessionManager { return rt.sessions }

// Config returns the configuration the runtime was built from.
func (rt *Runtime) Config() *config.Config { return rt.cfg }

// App builds the HTTP surface over the runtime's sessions.
func (rt *Runtime) App() *fiber.App {
	return api.NewApp(rt.sessions, api.Options{
		RequireAuth: rt.cfg.Server.RequireAuth,
		Logger:      logger.Named("api"),
	})
}

// Close closes every session, then the stores, in reverse order of
// creation.
func (rt *Runtime) Close() error {
	if rt.sessions != nil {
		rt.sessions.CloseAll()
	}
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

type offlineJobs struct{}

func (offlineJobs) SubmitJob(ctx context.Context, agentID, userID string) (string, error) {
	return "", ErrOffline
}

type offlineStatus struct{}

func (offlineStatus) GetUser(ctx context.Context, userID string) (*dto.UserRecord, error) {
	return &dto.UserRecord{ID: userID}, nil
}
