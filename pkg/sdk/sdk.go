package sdk

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	CTJSON string = "application/json"
	CTYAML string = "application/x-yaml"
)

type PageMetadata struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

type SDK interface {
	// SubmitUpdate submits a participant model update to the open round.
	//
	// example:
	//  update := sdk.ModelUpdate{
	//    ParticipantID: "edge-7",
	//    Cohort:        "eu-west",
	//    Round:         3,
	//    Delta:         []float64{0.1, -0.2},
	//    Weight:        120,
	//    Epsilon:       0.5,
	//  }
	//  err := sdk.SubmitUpdate(update)
	SubmitUpdate(update ModelUpdate) error

	// CloseRound forces the open round to close and returns the
	// published model, if any updates were aggregated.
	CloseRound() (GlobalModel, error)

	// RoundStatus reports the open round.
	RoundStatus() (RoundStatus, error)

	// GetModel gets a published model by version.
	GetModel(version uint64) (GlobalModel, error)

	// ListModels lists published models.
	//
	// example:
	//  modelPage, _ := sdk.ListModels(0, 10)
	ListModels(offset, limit uint64) (ModelPage, error)

	// GetBudget gets the privacy budget of a cohort.
	GetBudget(cohort string) (Budget, error)

	// ListBudgets lists cohort privacy budgets.
	ListBudgets(offset, limit uint64) (BudgetPage, error)

	// SendSample submits a telemetry sample for evaluation.
	SendSample(sample Sample) error

	// GetAnomaly gets an anomaly record by id.
	GetAnomaly(id string) (Anomaly, error)

	// ListAnomalies lists anomaly records.
	ListAnomalies(offset, limit uint64) (AnomalyPage, error)

	// GetAction gets a remediation action by id.
	GetAction(id string) (Action, error)

	// ListActions lists remediation actions.
	ListActions(offset, limit uint64) (ActionPage, error)

	// CancelAction cancels a pending remediation action.
	CancelAction(id string) error

	// ListRules lists the loaded optimization rules.
	ListRules() ([]Rule, error)

	// EnableRule re-enables a rule by id.
	EnableRule(id string) error

	// DisableRule disables a rule by id.
	DisableRule(id string) error

	// ReloadPolicy uploads a YAML policy document and applies it.
	ReloadPolicy(data []byte) error
}

type engineSDK struct {
	engineURL string
	client    *http.Client
}

type Config struct {
	EngineURL       string
	TLSVerification bool
}

func NewSDK(cfg Config) SDK {
	return &engineSDK{
		engineURL: cfg.EngineURL,
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: !cfg.TLSVerification,
				},
			},
		},
	}
}

func (sdk *engineSDK) processRequest(method, reqURL string, data []byte, contentType string, expectedRespCode int) ([]byte, error) {
	req, err := http.NewRequest(method, reqURL, bytes.NewReader(data))
	if err != nil {
		return []byte{}, err
	}

	req.Header.Add("Content-Type", contentType)

	resp, err := sdk.client.Do(req)
	if err != nil {
		return []byte{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return []byte{}, err
	}

	if resp.StatusCode != expectedRespCode {
		return []byte{}, fmt.Errorf("unexpected response code: %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return body, nil
}

func pageQuery(offset, limit uint64) string {
	queries := make([]string, 0)
	if offset > 0 {
		queries = append(queries, fmt.Sprintf("offset=%d", offset))
	}
	if limit > 0 {
		queries = append(queries, fmt.Sprintf("limit=%d", limit))
	}
	if len(queries) == 0 {
		return ""
	}

	return "?" + strings.Join(queries, "&")
}
