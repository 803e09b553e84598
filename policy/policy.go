package policy

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/autonomiq/kaizen/anomaly"
	"github.com/autonomiq/kaizen/pkg/timeutil"
	"github.com/autonomiq/kaizen/remediation"
	"github.com/autonomiq/kaizen/rules"
	"gopkg.in/yaml.v3"
)

var ErrInvalidPolicy = errors.New("invalid policy")

// SeverityAction maps a detected severity to the corrective action derived
// for it.
type SeverityAction struct {
	Severity  string            `yaml:"severity"`
	Target    string            `yaml:"target"`
	Operation string            `yaml:"operation"`
	Params    map[string]string `yaml:"params,omitempty"`
	Watch     WatchSpec         `yaml:"watch,omitempty"`
}

// WatchSpec configures the post-apply observation for actions born from
// this mapping or rule.
type WatchSpec struct {
	Metric        string            `yaml:"metric,omitempty"`
	Segment       string            `yaml:"segment,omitempty"`
	Tolerance     float64           `yaml:"tolerance,omitempty"`
	HigherIsWorse bool              `yaml:"higher_is_worse,omitempty"`
	Window        timeutil.Duration `yaml:"window,omitempty"`
}

// ToWatch converts the watch configuration to the dispatcher's form.
func (w WatchSpec) ToWatch() remediation.Watch {
	return remediation.Watch{
		Metric:        w.Metric,
		Segment:       w.Segment,
		Tolerance:     w.Tolerance,
		HigherIsWorse: w.HigherIsWorse,
		Window:        w.Window.Std(),
	}
}

// RuleSpec extends a rule definition with its observation watch.
type RuleSpec struct {
	rules.Rule `yaml:",inline"`
	Watch      WatchSpec `yaml:"watch,omitempty"`
}

// Policy is the administrative configuration: rule definitions, anomaly
// thresholds and privacy ceilings. Loaded at startup and hot-reloadable;
// an invalid document is rejected wholesale, never partially applied.
type Policy struct {
	Anomaly anomaly.Config `yaml:"anomaly"`
	Rules   []RuleSpec     `yaml:"rules"`
	Privacy struct {
		Ceilings map[string]float64 `yaml:"ceilings"`
	} `yaml:"privacy"`
	Severity []SeverityAction `yaml:"severity_actions"`
	Engine   struct {
		OutcomeWindow    int     `yaml:"outcome_window"`
		DisableThreshold float64 `yaml:"disable_threshold"`
	} `yaml:"engine"`
}

// Load reads and validates a policy document. Any error leaves the caller
// with its previous policy.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading policy file: %w", err)
	}

	return Parse(data)
}

// Parse decodes and validates a policy document wholesale.
func Parse(data []byte) (*Policy, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidPolicy)
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPolicy, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &p, nil
}

// Validate checks every section; one invalid entry rejects the document.
func (p *Policy) Validate() error {
	seen := make(map[string]bool, len(p.Rules))
	for _, spec := range p.Rules {
		if err := spec.Rule.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPolicy, err)
		}
		if seen[spec.ID] {
			return fmt.Errorf("%w: duplicate rule id %q", ErrInvalidPolicy, spec.ID)
		}
		seen[spec.ID] = true
	}

	for cohort, ceiling := range p.Privacy.Ceilings {
		if ceiling <= 0 {
			return fmt.Errorf("%w: cohort %q ceiling must be positive", ErrInvalidPolicy, cohort)
		}
	}

	t := p.Anomaly.Thresholds
	if t.Low < 0 || t.Medium < 0 || t.High < 0 || t.Critical < 0 {
		return fmt.Errorf("%w: negative anomaly threshold", ErrInvalidPolicy)
	}
	if ascendingViolated(t.Low, t.Medium) || ascendingViolated(t.Medium, t.High) || ascendingViolated(t.High, t.Critical) {
		return fmt.Errorf("%w: anomaly thresholds must ascend", ErrInvalidPolicy)
	}

	for _, sa := range p.Severity {
		if _, ok := anomaly.ParseSeverity(sa.Severity); !ok {
			return fmt.Errorf("%w: unknown severity %q", ErrInvalidPolicy, sa.Severity)
		}
		if sa.Target == "" || sa.Operation == "" {
			return fmt.Errorf("%w: severity action for %q missing target or operation", ErrInvalidPolicy, sa.Severity)
		}
	}

	return nil
}

// RuleSet flattens the rule specs for the rule engine.
func (p *Policy) RuleSet() []rules.Rule {
	out := make([]rules.Rule, 0, len(p.Rules))
	for _, spec := range p.Rules {
		out = append(out, spec.Rule)
	}

	return out
}

// WatchFor returns the observation watch configured for a rule.
func (p *Policy) WatchFor(ruleID string) remediation.Watch {
	for _, spec := range p.Rules {
		if spec.ID == ruleID {
			return spec.Watch.ToWatch()
		}
	}

	return remediation.Watch{}
}

// ActionFor returns the corrective action derived for a severity, if any.
func (p *Policy) ActionFor(severity anomaly.Severity) (SeverityAction, bool) {
	for _, sa := range p.Severity {
		if s, ok := anomaly.ParseSeverity(sa.Severity); ok && s == severity {
			return sa, true
		}
	}

	return SeverityAction{}, false
}

func ascendingViolated(lower, higher float64) bool {
	return lower > 0 && higher > 0 && higher < lower
}
