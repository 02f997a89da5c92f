// Package rxmetrics exports Prometheus metrics for rx combinations.
//
// A [Collector] is fed through the hook registered with rx.WithOnEvent:
//
//	c := rxmetrics.New(rxmetrics.WithNamespace("dashboard"))
//	obs := rx.CombineLatest(sources, rx.WithOnEvent(c.Hook()))
package rxmetrics

import (
	"github.com/baxromumarov/rx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures a [Collector].
type Config struct {
	// Namespace is the metrics namespace (default: "rx").
	Namespace string

	// Subsystem is the metrics subsystem (default: "combine").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures a [Collector].
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "rx",
		Subsystem: "combine",
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Termination reasons used as the "reason" label of terminations_total.
const (
	ReasonCompleted = "completed"
	ReasonErrored   = "errored"
	ReasonCancelled = "cancelled"
)

// Collector holds the Prometheus metrics of every combination whose
// events it receives.
type Collector struct {
	subscriptions prometheus.Counter
	active        prometheus.Gauge
	values        prometheus.Counter
	emissions     prometheus.Counter
	terminations  *prometheus.CounterVec
}

// New registers the metrics with the configured registry and returns
// the Collector. Registering twice with the same registry panics, as
// with any promauto metric.
//
// Metrics collected (with the default namespace and subsystem):
//   - rx_combine_subscriptions_total: downstream subscriptions started
//   - rx_combine_active_subscriptions: subscriptions not yet terminated or cancelled
//   - rx_combine_values_total: values received from sources
//   - rx_combine_emissions_total: combined values emitted downstream
//   - rx_combine_terminations_total{reason}: completed, errored or cancelled subscriptions
func New(opts ...Option) *Collector {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	factory := promauto.With(cfg.Registry)

	return &Collector{
		subscriptions: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "subscriptions_total",
			Help:        "Total number of combination subscriptions",
			ConstLabels: cfg.ConstLabels,
		}),

		active: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "active_subscriptions",
			Help:        "Number of combination subscriptions still running",
			ConstLabels: cfg.ConstLabels,
		}),

		values: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "values_total",
			Help:        "Total number of values received from sources",
			ConstLabels: cfg.ConstLabels,
		}),

		emissions: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "emissions_total",
			Help:        "Total number of combined values emitted",
			ConstLabels: cfg.ConstLabels,
		}),

		terminations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "terminations_total",
			Help:        "Total number of finished combination subscriptions by reason",
			ConstLabels: cfg.ConstLabels,
		}, []string{"reason"}),
	}
}

// Hook returns the function to pass to rx.WithOnEvent.
func (c *Collector) Hook() func(rx.Event) {
	return c.Observe
}

// Observe records e.
func (c *Collector) Observe(e rx.Event) {
	switch e.Kind {
	case rx.EventSubscribed:
		c.subscriptions.Inc()
		c.active.Inc()
	case rx.EventValue:
		c.values.Inc()
	case rx.EventEmitted:
		c.emissions.Inc()
	case rx.EventCompleted:
		c.finish(ReasonCompleted)
	case rx.EventErrored:
		c.finish(ReasonErrored)
	case rx.EventCancelled:
		c.finish(ReasonCancelled)
	}
}

func (c *Collector) finish(reason string) {
	c.active.Dec()
	c.terminations.WithLabelValues(reason).Inc()
}
