package sdk

import (
	"encoding/json"
	"net/http"
	"time"
)

const (
	actionsEndpoint = "/actions"
	rulesEndpoint   = "/rules"
	policyEndpoint  = "/policy/reload"
)

type Trigger struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

type Snapshot struct {
	Target  string            `json:"target"`
	State   map[string]string `json:"state"`
	TakenAt time.Time         `json:"taken_at"`
}

type Watch struct {
	Metric        string        `json:"metric"`
	Segment       string        `json:"segment"`
	Tolerance     float64       `json:"tolerance"`
	HigherIsWorse bool          `json:"higher_is_worse"`
	Window        time.Duration `json:"window"`
}

type Action struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Target    string            `json:"target"`
	Operation string            `json:"operation"`
	Params    map[string]string `json:"params,omitempty"`
	Watch     Watch             `json:"watch"`
	Status    string            `json:"status"`
	Trigger   Trigger           `json:"trigger"`
	PreState  Snapshot          `json:"pre_state"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	AppliedAt time.Time         `json:"applied_at,omitempty"`
	DoneAt    time.Time         `json:"done_at,omitempty"`
}

type ActionPage struct {
	Offset  uint64   `json:"offset"`
	Limit   uint64   `json:"limit"`
	Total   uint64   `json:"total"`
	Actions []Action `json:"actions"`
}

type SeriesRef struct {
	Metric  string `json:"metric"`
	Segment string `json:"segment"`
}

type Condition struct {
	Kind      string    `json:"kind"`
	Series    SeriesRef `json:"series,omitempty"`
	Op        string    `json:"op,omitempty"`
	Value     float64   `json:"value,omitempty"`
	Other     SeriesRef `json:"other,omitempty"`
	Window    string    `json:"window,omitempty"`
	Aggregate string    `json:"aggregate,omitempty"`
}

type ActionRef struct {
	Target    string            `json:"target"`
	Operation string            `json:"operation"`
	Params    map[string]string `json:"params,omitempty"`
}

type Rule struct {
	ID           string    `json:"id"`
	Priority     int       `json:"priority"`
	Condition    Condition `json:"condition"`
	Action       ActionRef `json:"action"`
	Enabled      bool      `json:"enabled"`
	Succeeded    uint64    `json:"succeeded"`
	Failed       uint64    `json:"failed"`
	AutoDisabled bool      `json:"auto_disabled"`
}

type rulePage struct {
	Rules []Rule `json:"rules"`
}

func (sdk *engineSDK) GetAction(id string) (Action, error) {
	url := sdk.engineURL + actionsEndpoint + "/" + id

	body, err := sdk.processRequest(http.MethodGet, url, nil, CTJSON, http.StatusOK)
	if err != nil {
		return Action{}, err
	}

	var a Action
	if err := json.Unmarshal(body, &a); err != nil {
		return Action{}, err
	}

	return a, nil
}

func (sdk *engineSDK) ListActions(offset, limit uint64) (ActionPage, error) {
	url := sdk.engineURL + actionsEndpoint + pageQuery(offset, limit)

	body, err := sdk.processRequest(http.MethodGet, url, nil, CTJSON, http.StatusOK)
	if err != nil {
		return ActionPage{}, err
	}

	var p ActionPage
	if err := json.Unmarshal(body, &p); err != nil {
		return ActionPage{}, err
	}

	return p, nil
}

func (sdk *engineSDK) CancelAction(id string) error {
	url := sdk.engineURL + actionsEndpoint + "/" + id + "/cancel"

	if _, err := sdk.processRequest(http.MethodPost, url, nil, CTJSON, http.StatusNoContent); err != nil {
		return err
	}

	return nil
}

func (sdk *engineSDK) ListRules() ([]Rule, error) {
	url := sdk.engineURL + rulesEndpoint

	body, err := sdk.processRequest(http.MethodGet, url, nil, CTJSON, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var p rulePage
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}

	return p.Rules, nil
}

func (sdk *engineSDK) EnableRule(id string) error {
	url := sdk.engineURL + rulesEndpoint + "/" + id + "/enable"

	if _, err := sdk.processRequest(http.MethodPost, url, nil, CTJSON, http.StatusNoContent); err != nil {
		return err
	}

	return nil
}

func (sdk *engineSDK) DisableRule(id string) error {
	url := sdk.engineURL + rulesEndpoint + "/" + id + "/disable"

	if _, err := sdk.processRequest(http.MethodPost, url, nil, CTJSON, http.StatusNoContent); err != nil {
		return err
	}

	return nil
}

func (sdk *engineSDK) ReloadPolicy(data []byte) error {
	url := sdk.engineURL + policyEndpoint

	if _, err := sdk.processRequest(http.MethodPost, url, data, CTYAML, http.StatusNoContent); err != nil {
		return err
	}

	return nil
}
