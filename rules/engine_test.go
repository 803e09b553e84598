package rules_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/autonomiq/kaizen/pkg/timeutil"
	"github.com/autonomiq/kaizen/rules"
	"github.com/autonomiq/kaizen/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(values map[string]float64) telemetry.Snapshot {
	now := time.Now()
	latest := make(map[string]telemetry.Sample, len(values))
	for key, v := range values {
		latest[key] = telemetry.Sample{Value: v, Timestamp: now}
	}

	return telemetry.Snapshot{TakenAt: now, Latest: latest}
}

func threshold(metric string, op rules.Op, value float64) rules.Condition {
	return rules.Condition{
		Kind:   rules.KindThreshold,
		Series: rules.SeriesRef{Metric: metric, Segment: "web"},
		Op:     op,
		Value:  value,
	}
}

func testRule(id string, priority int, cond rules.Condition) rules.Rule {
	return rules.Rule{
		ID:        id,
		Priority:  priority,
		Condition: cond,
		Action:    rules.ActionRef{Target: "web", Operation: "scale-up"},
		Enabled:   true,
	}
}

func TestConditionVariants(t *testing.T) {
	now := time.Now()
	snap := telemetry.Snapshot{
		TakenAt: now,
		Latest: map[string]telemetry.Sample{
			"cpu/web":    {Value: 90, Timestamp: now},
			"memory/web": {Value: 40, Timestamp: now},
		},
		Window: map[string][]telemetry.Sample{
			"cpu/web": {
				{Value: 70, Timestamp: now.Add(-2 * time.Minute)},
				{Value: 80, Timestamp: now.Add(-time.Minute)},
				{Value: 90, Timestamp: now},
			},
		},
	}

	cases := []struct {
		desc string
		cond rules.Condition
		want bool
	}{
		{
			desc: "threshold fires",
			cond: threshold("cpu", rules.OpGT, 85),
			want: true,
		},
		{
			desc: "threshold missing series is false",
			cond: threshold("disk", rules.OpGT, 0),
			want: false,
		},
		{
			desc: "comparison fires",
			cond: rules.Condition{
				Kind:   rules.KindComparison,
				Series: rules.SeriesRef{Metric: "cpu", Segment: "web"},
				Op:     rules.OpGT,
				Other:  rules.SeriesRef{Metric: "memory", Segment: "web"},
			},
			want: true,
		},
		{
			desc: "window average fires",
			cond: rules.Condition{
				Kind:      rules.KindWindow,
				Series:    rules.SeriesRef{Metric: "cpu", Segment: "web"},
				Op:        rules.OpGTE,
				Value:     80,
				Window:    timeutil.Duration(5 * time.Minute),
				Aggregate: rules.AggAvg,
			},
			want: true,
		},
		{
			desc: "window shorter than history trims samples",
			cond: rules.Condition{
				Kind:      rules.KindWindow,
				Series:    rules.SeriesRef{Metric: "cpu", Segment: "web"},
				Op:        rules.OpGTE,
				Value:     86,
				Window:    timeutil.Duration(90 * time.Second),
				Aggregate: rules.AggAvg,
			},
			want: false,
		},
		{
			desc: "all requires every child",
			cond: rules.Condition{
				Kind: rules.KindAll,
				Children: []rules.Condition{
					threshold("cpu", rules.OpGT, 85),
					threshold("memory", rules.OpGT, 85),
				},
			},
			want: false,
		},
		{
			desc: "any needs one child",
			cond: rules.Condition{
				Kind: rules.KindAny,
				Children: []rules.Condition{
					threshold("cpu", rules.OpGT, 85),
					threshold("memory", rules.OpGT, 85),
				},
			},
			want: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			require.NoError(t, tc.cond.Validate())
			assert.Equal(t, tc.want, tc.cond.Eval(snap))
		})
	}
}

func TestEngine_DeterministicOrdering(t *testing.T) {
	e := rules.NewEngine(rules.EngineConfig{}, slog.Default())
	require.NoError(t, e.Replace([]rules.Rule{
		testRule("b-rule", 5, threshold("cpu", rules.OpGT, 0)),
		testRule("a-rule", 5, threshold("cpu", rules.OpGT, 0)),
		testRule("z-rule", 9, threshold("cpu", rules.OpGT, 0)),
		testRule("idle", 9, threshold("cpu", rules.OpLT, 0)),
	}))

	snap := snapshot(map[string]float64{"cpu/web": 50})

	first := e.Evaluate(snap)
	require.Len(t, first, 3)
	assert.Equal(t, "z-rule", first[0].Rule.ID)
	assert.Equal(t, "a-rule", first[1].Rule.ID)
	assert.Equal(t, "b-rule", first[2].Rule.ID)

	// Same snapshot, same rule set: identical match list every time.
	for i := 0; i < 10; i++ {
		again := e.Evaluate(snap)
		require.Len(t, again, 3)
		for j := range again {
			assert.Equal(t, first[j].Rule.ID, again[j].Rule.ID)
		}
	}
}

func TestEngine_SelfLimiting(t *testing.T) {
	e := rules.NewEngine(rules.EngineConfig{OutcomeWindow: 4, DisableThreshold: 0.5}, slog.Default())
	require.NoError(t, e.Replace([]rules.Rule{
		testRule("flappy", 1, threshold("cpu", rules.OpGT, 0)),
	}))
	snap := snapshot(map[string]float64{"cpu/web": 50})

	for _, ok := range []bool{true, false, false, false} {
		e.ReportOutcome("flappy", ok)
	}

	assert.Empty(t, e.Evaluate(snap))

	listed := e.List()
	require.Len(t, listed, 1)
	assert.True(t, listed[0].AutoDisabled)
	assert.Equal(t, uint64(1), listed[0].Succeeded)
	assert.Equal(t, uint64(3), listed[0].Failed)

	// Administrative re-enable clears the auto-disable.
	require.NoError(t, e.SetEnabled("flappy", true))
	assert.Len(t, e.Evaluate(snap), 1)
}

func TestEngine_ReplaceRejectsInvalidSetWholesale(t *testing.T) {
	e := rules.NewEngine(rules.EngineConfig{}, slog.Default())
	require.NoError(t, e.Replace([]rules.Rule{
		testRule("keep", 1, threshold("cpu", rules.OpGT, 0)),
	}))

	err := e.Replace([]rules.Rule{
		testRule("ok", 1, threshold("cpu", rules.OpGT, 0)),
		{ID: "broken", Enabled: true},
	})
	assert.ErrorIs(t, err, rules.ErrInvalidRule)

	// The previous set must survive untouched.
	listed := e.List()
	require.Len(t, listed, 1)
	assert.Equal(t, "keep", listed[0].ID)
}

func TestEngine_ReplacePreservesCounters(t *testing.T) {
	e := rules.NewEngine(rules.EngineConfig{}, slog.Default())
	require.NoError(t, e.Replace([]rules.Rule{
		testRule("r1", 1, threshold("cpu", rules.OpGT, 0)),
	}))
	e.ReportOutcome("r1", true)
	e.ReportOutcome("r1", false)

	require.NoError(t, e.Replace([]rules.Rule{
		testRule("r1", 2, threshold("cpu", rules.OpGT, 10)),
	}))

	listed := e.List()
	require.Len(t, listed, 1)
	assert.Equal(t, uint64(1), listed[0].Succeeded)
	assert.Equal(t, uint64(1), listed[0].Failed)
	assert.Equal(t, 2, listed[0].Priority)
}
