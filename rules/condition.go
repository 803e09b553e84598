package rules

import (
	"errors"
	"fmt"
	"time"

	"github.com/autonomiq/kaizen/pkg/timeutil"
	"github.com/autonomiq/kaizen/telemetry"
)

var (
	ErrInvalidCondition = errors.New("invalid rule condition")
	ErrInvalidRule      = errors.New("invalid rule")
)

// ConditionKind enumerates the closed set of predicate variants. Conditions
// are pure functions of the snapshot; evaluation never touches clocks,
// randomness or external state, so the same snapshot always yields the
// same verdict.
type ConditionKind string

const (
	KindThreshold  ConditionKind = "threshold"
	KindComparison ConditionKind = "comparison"
	KindWindow     ConditionKind = "window"
	KindAll        ConditionKind = "all"
	KindAny        ConditionKind = "any"
)

type Op string

const (
	OpGT  Op = "gt"
	OpGTE Op = "gte"
	OpLT  Op = "lt"
	OpLTE Op = "lte"
)

func (o Op) compare(a, b float64) bool {
	switch o {
	case OpGT:
		return a > b
	case OpGTE:
		return a >= b
	case OpLT:
		return a < b
	case OpLTE:
		return a <= b
	default:
		return false
	}
}

type Aggregate string

const (
	AggAvg   Aggregate = "avg"
	AggMin   Aggregate = "min"
	AggMax   Aggregate = "max"
	AggCount Aggregate = "count"
)

// SeriesRef names one (metric, segment) series.
type SeriesRef struct {
	Metric  string `yaml:"metric"  json:"metric"`
	Segment string `yaml:"segment" json:"segment"`
}

// Condition is a tagged union over the predicate variants. Threshold
// compares a series' latest value against a constant; Comparison compares
// two series; Window applies an aggregate over a trailing window before
// comparing; All/Any compose children.
type Condition struct {
	Kind ConditionKind `yaml:"kind" json:"kind"`

	Series SeriesRef `yaml:"series,omitempty" json:"series,omitempty"`
	Op     Op        `yaml:"op,omitempty"     json:"op,omitempty"`
	Value  float64   `yaml:"value,omitempty"  json:"value,omitempty"`

	Other SeriesRef `yaml:"other,omitempty" json:"other,omitempty"`

	Window    timeutil.Duration `yaml:"window,omitempty"    json:"window,omitempty"`
	Aggregate Aggregate         `yaml:"aggregate,omitempty" json:"aggregate,omitempty"`

	Children []Condition `yaml:"children,omitempty" json:"children,omitempty"`
}

// Validate checks the condition tree wholesale.
func (c Condition) Validate() error {
	switch c.Kind {
	case KindThreshold:
		if c.Series.Metric == "" || !validOp(c.Op) {
			return fmt.Errorf("%w: threshold needs series and op", ErrInvalidCondition)
		}
	case KindComparison:
		if c.Series.Metric == "" || c.Other.Metric == "" || !validOp(c.Op) {
			return fmt.Errorf("%w: comparison needs two series and op", ErrInvalidCondition)
		}
	case KindWindow:
		if c.Series.Metric == "" || !validOp(c.Op) || c.Window <= 0 || !validAggregate(c.Aggregate) {
			return fmt.Errorf("%w: window needs series, op, window and aggregate", ErrInvalidCondition)
		}
	case KindAll, KindAny:
		if len(c.Children) == 0 {
			return fmt.Errorf("%w: %s needs children", ErrInvalidCondition, c.Kind)
		}
		for _, child := range c.Children {
			if err := child.Validate(); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidCondition, c.Kind)
	}

	return nil
}

// Eval evaluates the condition against a snapshot. A series missing from
// the snapshot makes its predicate false rather than erroring, so a rule
// never fires on absent data.
func (c Condition) Eval(snap telemetry.Snapshot) bool {
	switch c.Kind {
	case KindThreshold:
		v, ok := snap.Lookup(c.Series.Metric, c.Series.Segment)
		return ok && c.Op.compare(v, c.Value)
	case KindComparison:
		a, okA := snap.Lookup(c.Series.Metric, c.Series.Segment)
		b, okB := snap.Lookup(c.Other.Metric, c.Other.Segment)
		return okA && okB && c.Op.compare(a, b)
	case KindWindow:
		samples := snap.WindowSince(c.Series.Metric, c.Series.Segment, time.Duration(c.Window))
		agg, ok := aggregate(c.Aggregate, samples)
		return ok && c.Op.compare(agg, c.Value)
	case KindAll:
		for _, child := range c.Children {
			if !child.Eval(snap) {
				return false
			}
		}
		return true
	case KindAny:
		for _, child := range c.Children {
			if child.Eval(snap) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func validOp(o Op) bool {
	switch o {
	case OpGT, OpGTE, OpLT, OpLTE:
		return true
	default:
		return false
	}
}

func validAggregate(a Aggregate) bool {
	switch a {
	case AggAvg, AggMin, AggMax, AggCount:
		return true
	default:
		return false
	}
}

func aggregate(kind Aggregate, samples []telemetry.Sample) (float64, bool) {
	if kind == AggCount {
		return float64(len(samples)), true
	}
	if len(samples) == 0 {
		return 0, false
	}

	switch kind {
	case AggAvg:
		sum := 0.0
		for _, s := range samples {
			sum += s.Value
		}
		return sum / float64(len(samples)), true
	case AggMin:
		min := samples[0].Value
		for _, s := range samples[1:] {
			if s.Value < min {
				min = s.Value
			}
		}
		return min, true
	case AggMax:
		max := samples[0].Value
		for _, s := range samples[1:] {
			if s.Value > max {
				max = s.Value
			}
		}
		return max, true
	default:
		return 0, false
	}
}
