package statsclient

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MrEthical07/statsclient/internal/logging"
	"github.com/MrEthical07/statsclient/session"
	"golang.org/x/time/rate"
)

// Builder assembles a [Client]. A Builder is single-use.
type Builder struct {
	config     Config
	store      *session.Store
	httpClient *http.Client
	logger     *slog.Logger
	eventSink  EventSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
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

// WithBaseURL sets Config.BaseURL.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.BaseURL = baseURL
	return b
}

// WithStore shares an existing session store. Without it the Client keeps its session
// in memory only.
func (b *Builder) WithStore(store *session.Store) *Builder {
	b.store = store
	return b
}

// WithHTTPClient replaces the default *http.Client built from Config.HTTP.
func (b *Builder) WithHTTPClient(c *http.Client) *Builder {
	b.httpClient = c
	return b
}

// WithLogger sets the structured logger. Without it the Client logs nothing.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithEventSink sets the sink and enables event dispatch.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.eventSink = sink
	b.config.Events.Enabled = sink != nil
	return b
}

// WithMetricsEnabled toggles Config.Metrics.Enabled.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the request latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithRateLimit paces calls to rps with the given burst. A non-positive rps disables
// pacing.
func (b *Builder) WithRateLimit(rps float64, burst int) *Builder {
	b.config.RateLimit.Enabled = rps > 0
	b.config.RateLimit.RequestsPerSecond = rps
	b.config.RateLimit.Burst = burst
	return b
}

// Build validates the configuration and returns the Client.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store := b.store
	if store == nil {
		store = session.NewMemoryStore()
	}

	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTP.Timeout}
	}

	logger := b.logger
	if logger == nil {
		logger = logging.Discard()
	}

	var limiter *rate.Limiter
	if cfg.RateLimit.Enabled {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
	}

	markers := make([]string, 0, len(cfg.Expiry.Markers))
	for _, m := range cfg.Expiry.Markers {
		markers = append(markers, strings.ToLower(strings.TrimSpace(m)))
	}

	b.built = true

	c := &Client{
		config:     cfg,
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		store:      store,
		httpClient: httpClient,
		logger:     logger,
		limiter:    limiter,
		markers:    markers,
		metrics:    NewMetrics(cfg.Metrics),
	}
	c.events = newEventQueue(cfg.Events, b.eventSink, c.eventDropped)
	return c, nil
}
