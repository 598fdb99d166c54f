package stats

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type Stage string

const (
	StageScan      Stage = "scan"
	StagePartition Stage = "partition"
)

type EventType string

const (
	EventTypeScanned     EventType = "scanned"
	EventTypePartitioned EventType = "partitioned"
	EventTypeDryRun      EventType = "dry_run"
	EventTypeDuplicate   EventType = "duplicate"
	EventTypeError       EventType = "error"
)

type Event struct {
	Stage    Stage
	Type     EventType
	Path     string
	Elements int
	Duration time.Duration
	Err      error
	Detail   string
}

type Summary struct {
	Scanned     int
	Partitioned int
	DryRun      int
	Duplicates  int
	Errors      int
	Elements    int
	LastError   error
}

func (s Summary) LogFields() []zap.Field {
	fields := []zap.Field{
		zap.Int("scanned", s.Scanned),
		zap.Int("partitioned", s.Partitioned),
		zap.Int("dryRun", s.DryRun),
		zap.Int("duplicates", s.Duplicates),
		zap.Int("errors", s.Errors),
		zap.Int("elements", s.Elements),
	}
	if s.LastError != nil {
		fields = append(fields, zap.String("lastError", s.LastError.Error()))
	}
	return fields
}

// Metrics mirrors the collector counters as Prometheus series on a private
// registry.
type Metrics struct {
	registry *prometheus.Registry
	inputs   *prometheus.CounterVec
	elements prometheus.Counter
	duration prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		inputs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "msg_partition",
			Name:      "inputs_total",
			Help:      "Input files handled, by outcome.",
		}, []string{"result"}),
		elements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "msg_partition",
			Name:      "elements_total",
			Help:      "Elements written.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "msg_partition",
			Name:      "partition_duration_seconds",
			Help:      "Time spent partitioning one input.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
	m.registry.MustRegister(m.inputs, m.elements, m.duration)
	return m
}

func (m *Metrics) observe(evt Event) {
	if evt.Type == EventTypeScanned {
		return
	}
	m.inputs.WithLabelValues(string(evt.Type)).Inc()
	if evt.Type == EventTypePartitioned || evt.Type == EventTypeDryRun {
		m.elements.Add(float64(evt.Elements))
		m.duration.Observe(evt.Duration.Seconds())
	}
}

// Registry exposes the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteFile writes the metrics in the node-exporter textfile format.
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

type Collector struct {
	mu      sync.Mutex
	summary Summary
	metrics *Metrics
}

// NewCollector returns a collector. metrics may be nil.
func NewCollector(metrics *Metrics) *Collector {
	return &Collector{metrics: metrics}
}

func (c *Collector) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			c.apply(evt)
		}
	}
}

func (c *Collector) Snapshot() Summary {
	c.mu.Lock()
	summary := c.summary
	c.mu.Unlock()
	return summary
}

func (c *Collector) apply(evt Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch evt.Type {
	case EventTypeScanned:
		c.summary.Scanned++
	case EventTypePartitioned:
		c.summary.Partitioned++
		c.summary.Elements += evt.Elements
	case EventTypeDryRun:
		c.summary.DryRun++
		c.summary.Elements += evt.Elements
	case EventTypeDuplicate:
		c.summary.Duplicates++
	case EventTypeError:
		c.summary.Errors++
		if evt.Err != nil {
			c.summary.LastError = evt.Err
		}
	}
	if c.metrics != nil {
		c.metrics.observe(evt)
	}
}

type EventStream interface {
	SubscribeStats(name string, fn func(context.Context, <-chan Event) error)
}

type Reporter struct {
	collector *Collector
	logger    *zap.Logger
	started   time.Time
}

func NewReporter(stream EventStream, metrics *Metrics, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	reporter := &Reporter{
		collector: NewCollector(metrics),
		logger:    logger,
		started:   time.Now(),
	}
	stream.SubscribeStats("stats-reporter", reporter.consume)
	return reporter
}

func (r *Reporter) consume(ctx context.Context, events <-chan Event) error {
	r.collector.Run(ctx, events)
	summary := r.collector.Snapshot()
	fields := append(summary.LogFields(), zap.Duration("duration", time.Since(r.started)))
	if ctx.Err() != nil {
		r.logger.Debug("stats collection stopped", append(fields, zap.Error(ctx.Err()))...)
		return ctx.Err()
	}
	r.logger.Info("stats summary", fields...)
	return nil
}

func (r *Reporter) Summary() Summary {
	return r.collector.Snapshot()
}

// PrettyPrintTop prints the top N most frequent items in a map.
func PrettyPrintTop(w io.Writer, m map[string]int, limit int) {
	type pair struct {
		Key   string
		Value int
	}

	var pairs []pair
	for k, v := range m {
		pairs = append(pairs, pair{k, v})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Value != pairs[j].Value {
			return pairs[i].Value > pairs[j].Value
		}
		return pairs[i].Key < pairs[j].Key
	})

	for i := 0; i < limit && i < len(pairs); i++ {
		fmt.Fprintf(w, "%d. %s (%d)\n", i+1, pairs[i].Key, pairs[i].Value)
	}
}
