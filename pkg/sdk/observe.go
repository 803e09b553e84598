package sdk

import (
	"encoding/json"
	"net/http"
	"time"
)

const (
	telemetryEndpoint = "/telemetry"
	anomaliesEndpoint = "/anomalies"
)

type Sample struct {
	Metric    string    `json:"metric"`
	Segment   string    `json:"segment,omitempty"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

type Baseline struct {
	Metric    string    `json:"metric"`
	Segment   string    `json:"segment"`
	Mean      float64   `json:"mean"`
	Variance  float64   `json:"variance"`
	Samples   uint64    `json:"samples"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Anomaly struct {
	ID         string    `json:"id"`
	Metric     string    `json:"metric"`
	Segment    string    `json:"segment"`
	Value      float64   `json:"value"`
	Score      float64   `json:"score"`
	Severity   string    `json:"severity"`
	Baseline   Baseline  `json:"baseline"`
	DetectedAt time.Time `json:"detected_at"`
	Resolved   bool      `json:"resolved"`
	ResolvedAt time.Time `json:"resolved_at,omitempty"`
}

type AnomalyPage struct {
	Offset    uint64    `json:"offset"`
	Limit     uint64    `json:"limit"`
	Total     uint64    `json:"total"`
	Anomalies []Anomaly `json:"anomalies"`
}

func (sdk *engineSDK) SendSample(sample Sample) error {
	data, err := json.Marshal(sample)
	if err != nil {
		return err
	}

	url := sdk.engineURL + telemetryEndpoint

	if _, err := sdk.processRequest(http.MethodPost, url, data, CTJSON, http.StatusAccepted); err != nil {
		return err
	}

	return nil
}

func (sdk *engineSDK) GetAnomaly(id string) (Anomaly, error) {
	url := sdk.engineURL + anomaliesEndpoint + "/" + id

	body, err := sdk.processRequest(http.MethodGet, url, nil, CTJSON, http.StatusOK)
	if err != nil {
		return Anomaly{}, err
	}

	var a Anomaly
	if err := json.Unmarshal(body, &a); err != nil {
		return Anomaly{}, err
	}

	return a, nil
}

func (sdk *engineSDK) ListAnomalies(offset, limit uint64) (AnomalyPage, error) {
	url := sdk.engineURL + anomaliesEndpoint + pageQuery(offset, limit)

	body, err := sdk.processRequest(http.MethodGet, url, nil, CTJSON, http.StatusOK)
	if err != nil {
		return AnomalyPage{}, err
	}

	var p AnomalyPage
	if err := json.Unmarshal(body, &p); err != nil {
		return AnomalyPage{}, err
	}

	return p, nil
}
