package goCampus

import (
	"context"
	"fmt"
	"net/http"

	"github.com/MrEthical07/goCampus/api"
	"github.com/MrEthical07/goCampus/notify"
	"github.com/MrEthical07/goCampus/session"
	"github.com/MrEthical07/goCampus/storage"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles a [Client].
//
// Builder instances are intended to be configured during initialization and then
// discarded; Build may only be called once.
type Builder struct {
	config Config

	storage    storage.Storage
	redis      redis.UniversalClient
	httpClient *http.Client
	notifier   notify.Notifier
	logger     *zap.Logger
	auditSink  AuditSink

	built bool
}

// New returns a builder that starts from [DefaultConfig] with an in-memory session
// mirror and no UI.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStorage injects the session mirror. It takes precedence over Config.Storage and
// is not closed by [Client.Close].
func (b *Builder) WithStorage(s storage.Storage) *Builder {
	b.storage = s
	return b
}

// WithRedis injects the client used when Config.Storage.Driver is "redis". An injected
// client is not closed by [Client.Close].
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithHTTPClient sets the transport for every backend call. Without it the builder
// creates a client bounded by Config.API.Timeout.
func (b *Builder) WithHTTPClient(c *http.Client) *Builder {
	b.httpClient = c
	return b
}

// WithNotifier sets the UI surface that receives loading, toast and navigation calls.
func (b *Builder) WithNotifier(n notify.Notifier) *Builder {
	b.notifier = n
	return b
}

// WithLogger sets the logger. The gateway and the session store get named children
// of it; nil keeps the no-op logger.
func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink sets where session events go. The sink only receives events when
// Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the request and session counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles per-call latency buckets. It has no effect while
// metrics are disabled.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, opens the storage backend when none was
// injected, and wires the gateway, the session store and the observers.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	st, closers, err := b.openStorage(cfg.Storage)
	if err != nil {
		return nil, err
	}

	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.API.Timeout}
	}

	notifier := b.notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}
	reactor := notify.NewReactor(notifier, cfg.Notify)

	id := uuid.NewString()
	c := &Client{
		id:      id,
		config:  cfg,
		logger:  logger,
		metrics: NewMetrics(cfg.Metrics),
		audit:   newAuditDispatcher(cfg.Audit, b.auditSink, id),
		closers: closers,
	}

	// The gateway reads the bearer token from the store, which is created after it.
	tokens := api.TokenFunc(func() string { return c.store.Token() })

	gw, err := api.NewGateway(cfg.API.BaseURL,
		api.WithHTTPClient(httpClient),
		api.WithTokenSource(tokens),
		api.WithLoading(reactor),
		api.WithReactor(reactor),
		api.WithObserver(c.metrics),
		api.WithLogger(logger.Named("api")),
		api.WithUserAgent(cfg.API.UserAgent),
	)
	if err != nil {
		c.audit.Close()
		closeAll(closers)
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	c.api = api.New(gw)
	c.store = session.NewStore(c.api, st, session.Config{
		BaseURL:       gw.BaseURL(),
		RejectExpired: cfg.Session.RejectExpired,
	},
		session.WithObserver(&sessionObserver{metrics: c.metrics, audit: c.audit}),
		session.WithLogger(logger.Named("session")),
	)

	b.built = true
	return c, nil
}

func (b *Builder) openStorage(cfg StorageConfig) (storage.Storage, []storage.Closer, error) {
	if b.storage != nil {
		return b.storage, nil, nil
	}

	switch cfg.Driver {
	case StorageRedis:
		if b.redis != nil {
			return storage.NewRedis(b.redis, cfg.KeyPrefix), nil, nil
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return storage.NewRedis(rdb, cfg.KeyPrefix), []storage.Closer{rdb}, nil
	case StorageSQLite:
		sq, err := storage.OpenSQLite(context.Background(), cfg.Path, cfg.KeyPrefix)
		if err != nil {
			return nil, nil, err
		}
		return sq, []storage.Closer{sq}, nil
	case StorageFile:
		return storage.NewFile(cfg.Path), nil, nil
	default:
		return storage.NewMemory(), nil, nil
	}
}

func closeAll(closers []storage.Closer) error {
	var first error
	for _, c := range closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
