package anomaly

import (
	"encoding/json"
	"fmt"
	"time"
)

// Severity grades how far a sample sits from its baseline.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "none"
	}
}

// ParseSeverity maps the configuration spelling back to a Severity.
func ParseSeverity(s string) (Severity, bool) {
	switch s {
	case "low":
		return SeverityLow, true
	case "medium":
		return SeverityMedium, true
	case "high":
		return SeverityHigh, true
	case "critical":
		return SeverityCritical, true
	default:
		return SeverityNone, false
	}
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	sev, ok := ParseSeverity(name)
	if !ok && name != "none" {
		return fmt.Errorf("unknown severity %q", name)
	}
	*s = sev

	return nil
}

// Baseline is the rolling statistical expectation for one (metric,
// segment) series. Owned and mutated only by the detector; it never
// retroactively includes samples processed before it existed.
type Baseline struct {
	Metric    string    `json:"metric"`
	Segment   string    `json:"segment"`
	Mean      float64   `json:"mean"`
	Variance  float64   `json:"variance"`
	Samples   uint64    `json:"samples"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Anomaly is one non-normal classification. Created by the detector,
// resolved by the dispatcher or by timeout.
type Anomaly struct {
	ID         string    `json:"id"`
	Metric     string    `json:"metric"`
	Segment    string    `json:"segment"`
	Value      float64   `json:"value"`
	Score      float64   `json:"score"`
	Severity   Severity  `json:"severity"`
	Baseline   Baseline  `json:"baseline"`
	DetectedAt time.Time `json:"detected_at"`
	Resolved   bool      `json:"resolved"`
	ResolvedAt time.Time `json:"resolved_at,omitempty"`
}

// Classification is the verdict for one observed sample.
type Classification struct {
	Anomalous bool
	Severity  Severity
	Score     float64
}
