package sdk

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	updatesEndpoint = "/federation/updates"
	roundsEndpoint  = "/federation/rounds"
	modelsEndpoint  = "/models"
	budgetsEndpoint = "/budgets"
)

type ModelUpdate struct {
	ParticipantID string    `json:"participant_id"`
	Cohort        string    `json:"cohort"`
	Round         uint64    `json:"round"`
	Delta         []float64 `json:"delta"`
	Weight        int64     `json:"weight"`
	Epsilon       float64   `json:"epsilon"`
	SubmittedAt   time.Time `json:"submitted_at,omitempty"`
}

type GlobalModel struct {
	Version      uint64    `json:"version"`
	Round        uint64    `json:"round"`
	Parameters   []float64 `json:"parameters"`
	Participants int       `json:"participants"`
	CreatedAt    time.Time `json:"created_at"`
}

type ModelPage struct {
	Offset uint64        `json:"offset"`
	Limit  uint64        `json:"limit"`
	Total  uint64        `json:"total"`
	Models []GlobalModel `json:"models"`
}

type RoundStatus struct {
	Round        uint64    `json:"round"`
	Updates      int       `json:"updates"`
	Quorum       int       `json:"quorum"`
	Deadline     time.Time `json:"deadline"`
	Closed       bool      `json:"closed"`
	ModelVersion uint64    `json:"model_version,omitempty"`
}

type Budget struct {
	Cohort    string    `json:"cohort"`
	Spent     float64   `json:"spent"`
	Ceiling   float64   `json:"ceiling"`
	UpdatedAt time.Time `json:"updated_at"`
}

type BudgetPage struct {
	Offset  uint64   `json:"offset"`
	Limit   uint64   `json:"limit"`
	Total   uint64   `json:"total"`
	Budgets []Budget `json:"budgets"`
}

func (sdk *engineSDK) SubmitUpdate(update ModelUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}

	url := sdk.engineURL + updatesEndpoint

	if _, err := sdk.processRequest(http.MethodPost, url, data, CTJSON, http.StatusAccepted); err != nil {
		return err
	}

	return nil
}

func (sdk *engineSDK) CloseRound() (GlobalModel, error) {
	url := sdk.engineURL + roundsEndpoint + "/close"

	body, err := sdk.processRequest(http.MethodPost, url, nil, CTJSON, http.StatusCreated)
	if err != nil {
		return GlobalModel{}, err
	}

	var m GlobalModel
	if err := json.Unmarshal(body, &m); err != nil {
		return GlobalModel{}, err
	}

	return m, nil
}

func (sdk *engineSDK) RoundStatus() (RoundStatus, error) {
	url := sdk.engineURL + roundsEndpoint + "/status"

	body, err := sdk.processRequest(http.MethodGet, url, nil, CTJSON, http.StatusOK)
	if err != nil {
		return RoundStatus{}, err
	}

	var s RoundStatus
	if err := json.Unmarshal(body, &s); err != nil {
		return RoundStatus{}, err
	}

	return s, nil
}

func (sdk *engineSDK) GetModel(version uint64) (GlobalModel, error) {
	url := fmt.Sprintf("%s%s/%d", sdk.engineURL, modelsEndpoint, version)

	body, err := sdk.processRequest(http.MethodGet, url, nil, CTJSON, http.StatusOK)
	if err != nil {
		return GlobalModel{}, err
	}

	var m GlobalModel
	if err := json.Unmarshal(body, &m); err != nil {
		return GlobalModel{}, err
	}

	return m, nil
}

func (sdk *engineSDK) ListModels(offset, limit uint64) (ModelPage, error) {
	url := sdk.engineURL + modelsEndpoint + pageQuery(offset, limit)

	body, err := sdk.processRequest(http.MethodGet, url, nil, CTJSON, http.StatusOK)
	if err != nil {
		return ModelPage{}, err
	}

	var p ModelPage
	if err := json.Unmarshal(body, &p); err != nil {
		return ModelPage{}, err
	}

	return p, nil
}

func (sdk *engineSDK) GetBudget(cohort string) (Budget, error) {
	url := sdk.engineURL + budgetsEndpoint + "/" + cohort

	body, err := sdk.processRequest(http.MethodGet, url, nil, CTJSON, http.StatusOK)
	if err != nil {
		return Budget{}, err
	}

	var b Budget
	if err := json.Unmarshal(body, &b); err != nil {
		return Budget{}, err
	}

	return b, nil
}

func (sdk *engineSDK) ListBudgets(offset, limit uint64) (BudgetPage, error) {
	url := sdk.engineURL + budgetsEndpoint + pageQuery(offset, limit)

	body, err := sdk.processRequest(http.MethodGet, url, nil, CTJSON, http.StatusOK)
	if err != nil {
		return BudgetPage{}, err
	}

	var p BudgetPage
	if err := json.Unmarshal(body, &p); err != nil {
		return BudgetPage{}, err
	}

	return p, nil
}
