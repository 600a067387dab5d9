package otel

import (
	"context"
	"errors"
	"fmt"

	statsclient "github.com/MrEthical07/statsclient"
	"github.com/MrEthical07/statsclient/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Errors returned by NewExporter for missing arguments.
var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Source is what the exporter observes; *statsclient.Client satisfies it.
type Source interface {
	MetricsSnapshot() statsclient.MetricsSnapshot
	EventsDropped() uint64
}

type observedCounter struct {
	id         statsclient.MetricID
	instrument metric.Int64ObservableCounter
}

// observedLatency reports a client histogram as three instruments: cumulative bucket
// counts keyed by the "le" attribute, the total count and the sum in seconds.
type observedLatency struct {
	id      statsclient.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
	sum     metric.Float64ObservableCounter
}

// Exporter keeps the callback registration alive until Close.
type Exporter struct {
	source       Source
	registration metric.Registration
	counters     []observedCounter
	latencies    []observedLatency
	leOptions    [internaldefs.BucketCount]metric.ObserveOption
	dropped      metric.Int64ObservableCounter
}

// NewExporter creates the instruments on meter and registers the collection callback.
func NewExporter(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{
		source:    source,
		counters:  make([]observedCounter, 0, len(internaldefs.CounterDefs)),
		latencies: make([]observedLatency, 0, len(internaldefs.HistogramDefs)),
	}
	for i, le := range internaldefs.BucketLabels() {
		e.leOptions[i] = metric.WithAttributes(attribute.String("le", le))
	}

	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, observedCounter{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		l, err := newObservedLatency(meter, def)
		if err != nil {
			return nil, err
		}
		e.latencies = append(e.latencies, l)
		observables = append(observables, l.buckets, l.count, l.sum)
	}

	dropped, err := meter.Int64ObservableCounter(internaldefs.EventsDroppedName, metric.WithDescription(internaldefs.EventsDroppedHelp))
	if err != nil {
		return nil, fmt.Errorf("create dropped counter: %w", err)
	}
	e.dropped = dropped
	observables = append(observables, dropped)

	registration, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration
	return e, nil
}

func newObservedLatency(meter metric.Meter, def internaldefs.HistogramDef) (observedLatency, error) {
	l := observedLatency{id: def.ID}
	var err error

	l.buckets, err = meter.Int64ObservableGauge(def.Name+"_bucket",
		metric.WithDescription("Cumulative latency bucket count."), metric.WithUnit("{call}"))
	if err != nil {
		return l, fmt.Errorf("create bucket gauge %s: %w", def.Name, err)
	}
	l.count, err = meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription(def.Help), metric.WithUnit("{call}"))
	if err != nil {
		return l, fmt.Errorf("create count gauge %s: %w", def.Name, err)
	}
	l.sum, err = meter.Float64ObservableCounter(def.Name+"_sum", metric.WithDescription(def.Help), metric.WithUnit("s"))
	if err != nil {
		return l, fmt.Errorf("create sum counter %s: %w", def.Name, err)
	}
	return l, nil
}

func (e *Exporter) observe(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
	}
	for _, l := range e.latencies {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[l.id]))
		for i, v := range cumulative {
			observer.ObserveInt64(l.buckets, int64(v), e.leOptions[i])
		}
		observer.ObserveInt64(l.count, int64(cumulative[len(cumulative)-1]))
		observer.ObserveFloat64(l.sum, snapshot.Sums[l.id].Seconds())
	}
	observer.ObserveInt64(e.dropped, int64(e.source.EventsDropped()))
	return nil
}

// Close unregisters the callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
