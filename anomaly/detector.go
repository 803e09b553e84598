package anomaly

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/autonomiq/kaizen/pkg/timeutil"
	"github.com/autonomiq/kaizen/telemetry"
	"github.com/google/uuid"
)

var ErrInvalidSample = errors.New("invalid metric sample")

// dedupeDepth bounds the per-series timestamp history used to drop
// redelivered samples. It has to cover the tolerated out-of-order skew:
// a duplicate arriving within that many intervening samples is dropped
// even when it is not adjacent to its original.
const dedupeDepth = 64

// Thresholds are the z-score tiers per severity, ascending. Configuration
// input, never hardcoded behavior.
type Thresholds struct {
	Low      float64 `yaml:"low"      json:"low"`
	Medium   float64 `yaml:"medium"   json:"medium"`
	High     float64 `yaml:"high"     json:"high"`
	Critical float64 `yaml:"critical" json:"critical"`
}

// Config tunes the detector. Alpha is the exponential weighting factor for
// the rolling mean/variance; MinStdDev floors the divisor so stable series
// do not divide by near-zero; Cooldown suppresses re-raising the same
// series while a sustained condition persists; Warmup is the sample count
// before a series is classified at all.
type Config struct {
	Alpha      float64           `yaml:"alpha"`
	MinStdDev  float64           `yaml:"min_std_dev"`
	Thresholds Thresholds        `yaml:"thresholds"`
	Cooldown   timeutil.Duration `yaml:"cooldown"`
	Warmup     uint64            `yaml:"warmup"`
}

// BaselineStore persists baselines across restarts.
type BaselineStore interface {
	SaveBaseline(ctx context.Context, b Baseline) error
	ListBaselines(ctx context.Context, offset, limit uint64) ([]Baseline, uint64, error)
}

// AnomalyStore persists raised anomalies for operator queries.
type AnomalyStore interface {
	SaveAnomaly(ctx context.Context, a Anomaly) error
	GetAnomaly(ctx context.Context, id string) (Anomaly, error)
	ListAnomalies(ctx context.Context, offset, limit uint64) ([]Anomaly, uint64, error)
}

// Detector maintains rolling baselines per (metric, segment) series and
// classifies incoming samples against them. Anomalous observations do not
// update the baseline, so the anomaly itself cannot drag the expectation
// toward it.
type Detector struct {
	mu        sync.Mutex
	cfg       Config
	baselines map[string]*Baseline
	raised    map[string]time.Time
	seen      map[string][]time.Time
	open      map[string]string
	stores    struct {
		baselines BaselineStore
		anomalies AnomalyStore
	}
	logger *slog.Logger
}

func NewDetector(cfg Config, baselines BaselineStore, anomalies AnomalyStore, logger *slog.Logger) *Detector {
	if cfg.Alpha <= 0 || cfg.Alpha >= 1 {
		cfg.Alpha = 0.05
	}
	if cfg.MinStdDev <= 0 {
		cfg.MinStdDev = 1e-6
	}
	if cfg.Warmup == 0 {
		cfg.Warmup = 10
	}

	d := &Detector{
		cfg:       cfg,
		baselines: make(map[string]*Baseline),
		raised:    make(map[string]time.Time),
		seen:      make(map[string][]time.Time),
		open:      make(map[string]string),
		logger:    logger,
	}
	d.stores.baselines = baselines
	d.stores.anomalies = anomalies

	return d
}

// Resume reloads persisted baselines. Called once at startup.
func (d *Detector) Resume(ctx context.Context) error {
	baselines, _, err := d.stores.baselines.ListBaselines(ctx, 0, 10000)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range baselines {
		b := baselines[i]
		d.baselines[b.Metric+"/"+b.Segment] = &b
	}

	return nil
}

// Observe classifies one sample and, for any non-normal verdict, produces
// the Anomaly record to be dispatched. Duplicate (timestamp, metric,
// segment) deliveries are idempotent and return a normal verdict.
func (d *Detector) Observe(ctx context.Context, sample telemetry.Sample) (Classification, *Anomaly, error) {
	if !sample.Valid() {
		return Classification{}, nil, ErrInvalidSample
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	key := sample.Key()
	if d.duplicateLocked(key, sample.Timestamp) {
		return Classification{}, nil, nil
	}

	b, ok := d.baselines[key]
	if !ok {
		b = &Baseline{Metric: sample.Metric, Segment: sample.Segment}
		d.baselines[key] = b
	}

	// Warm the baseline up before judging anything.
	if b.Samples < d.cfg.Warmup {
		d.updateBaselineLocked(ctx, b, sample)

		return Classification{}, nil, nil
	}

	stddev := math.Sqrt(b.Variance)
	if stddev < d.cfg.MinStdDev {
		stddev = d.cfg.MinStdDev
	}
	score := math.Abs(sample.Value-b.Mean) / stddev
	severity := d.classify(score)

	if severity == SeverityNone {
		d.updateBaselineLocked(ctx, b, sample)
		d.clearCooldownLocked(key)

		return Classification{Score: score}, nil, nil
	}

	classification := Classification{Anomalous: true, Severity: severity, Score: score}

	// Hysteresis: a sustained condition is not re-raised until the open
	// anomaly resolves or the cooldown elapses.
	if raisedAt, raised := d.raised[key]; raised && time.Since(raisedAt) < time.Duration(d.cfg.Cooldown) {
		return classification, nil, nil
	}
	if _, stillOpen := d.open[key]; stillOpen {
		return classification, nil, nil
	}

	record := &Anomaly{
		ID:         uuid.NewString(),
		Metric:     sample.Metric,
		Segment:    sample.Segment,
		Value:      sample.Value,
		Score:      score,
		Severity:   severity,
		Baseline:   *b,
		DetectedAt: sample.Timestamp,
	}
	d.raised[key] = time.Now()
	d.open[key] = record.ID

	if err := d.stores.anomalies.SaveAnomaly(ctx, *record); err != nil {
		d.logger.Warn("failed to persist anomaly", slog.String("id", record.ID), slog.Any("error", err))
	}

	return classification, record, nil
}

// Resolve marks an anomaly resolved, re-arming detection for its series.
func (d *Detector) Resolve(ctx context.Context, id string) error {
	record, err := d.stores.anomalies.GetAnomaly(ctx, id)
	if err != nil {
		return err
	}
	if record.Resolved {
		return nil
	}

	record.Resolved = true
	record.ResolvedAt = time.Now()
	if err := d.stores.anomalies.SaveAnomaly(ctx, record); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	key := record.Metric + "/" + record.Segment
	if d.open[key] == id {
		delete(d.open, key)
		delete(d.raised, key)
	}

	return nil
}

// ResolveExpired times out open anomalies older than the given age.
func (d *Detector) ResolveExpired(ctx context.Context, maxAge time.Duration) {
	d.mu.Lock()
	expired := make([]string, 0)
	for key, id := range d.open {
		if raisedAt, ok := d.raised[key]; ok && time.Since(raisedAt) > maxAge {
			expired = append(expired, id)
		}
	}
	d.mu.Unlock()

	for _, id := range expired {
		if err := d.Resolve(ctx, id); err != nil {
			d.logger.Warn("failed to resolve expired anomaly", slog.String("id", id), slog.Any("error", err))
		}
	}
}

// SetConfig swaps detector tuning on a policy reload. Baselines survive.
func (d *Detector) SetConfig(cfg Config) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cfg.Alpha > 0 && cfg.Alpha < 1 {
		d.cfg.Alpha = cfg.Alpha
	}
	if cfg.MinStdDev > 0 {
		d.cfg.MinStdDev = cfg.MinStdDev
	}
	if cfg.Warmup > 0 {
		d.cfg.Warmup = cfg.Warmup
	}
	d.cfg.Thresholds = cfg.Thresholds
	d.cfg.Cooldown = cfg.Cooldown
}

func (d *Detector) classify(score float64) Severity {
	t := d.cfg.Thresholds
	switch {
	case t.Critical > 0 && score >= t.Critical:
		return SeverityCritical
	case t.High > 0 && score >= t.High:
		return SeverityHigh
	case t.Medium > 0 && score >= t.Medium:
		return SeverityMedium
	case t.Low > 0 && score >= t.Low:
		return SeverityLow
	default:
		return SeverityNone
	}
}

// updateBaselineLocked folds one normal observation into the exponentially
// weighted mean and variance.
func (d *Detector) updateBaselineLocked(ctx context.Context, b *Baseline, sample telemetry.Sample) {
	if b.Samples == 0 {
		b.Mean = sample.Value
		b.Variance = 0
	} else {
		alpha := d.cfg.Alpha
		diff := sample.Value - b.Mean
		b.Mean += alpha * diff
		b.Variance = (1 - alpha) * (b.Variance + alpha*diff*diff)
	}
	b.Samples++
	b.UpdatedAt = time.Now()

	if err := d.stores.baselines.SaveBaseline(ctx, *b); err != nil {
		d.logger.Warn("failed to persist baseline",
			slog.String("metric", b.Metric),
			slog.String("segment", b.Segment),
			slog.Any("error", err))
	}
}

// duplicateLocked reports whether the timestamp was already observed for
// the series and records it otherwise.
func (d *Detector) duplicateLocked(key string, ts time.Time) bool {
	recent := d.seen[key]
	for _, prev := range recent {
		if prev.Equal(ts) {
			return true
		}
	}

	recent = append(recent, ts)
	if len(recent) > dedupeDepth {
		recent = recent[len(recent)-dedupeDepth:]
	}
	d.seen[key] = recent

	return false
}

func (d *Detector) clearCooldownLocked(key string) {
	if _, open := d.open[key]; !open {
		delete(d.raised, key)
	}
}
