package sdk_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/autonomiq/kaizen/pkg/sdk"
)

func newSDK(url string) sdk.SDK {
	return sdk.NewSDK(sdk.Config{EngineURL: url})
}

func TestSubmitUpdate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/federation/updates" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != sdk.CTJSON {
			t.Errorf("unexpected content type: %s", ct)
		}

		var update sdk.ModelUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			t.Errorf("failed to decode update: %v", err)
		}
		if update.ParticipantID != "edge-7" || len(update.Delta) != 2 {
			t.Errorf("unexpected update: %+v", update)
		}

		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	err := newSDK(srv.URL).SubmitUpdate(sdk.ModelUpdate{
		ParticipantID: "edge-7",
		Cohort:        "eu-west",
		Round:         3,
		Delta:         []float64{0.1, -0.2},
		Weight:        120,
		Epsilon:       0.5,
	})
	if err != nil {
		t.Fatalf("failed to submit update: %v", err)
	}
}

func TestSubmitUpdateRejection(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"error": "privacy budget exceeded"})
	}))
	defer srv.Close()

	err := newSDK(srv.URL).SubmitUpdate(sdk.ModelUpdate{ParticipantID: "edge-7"})
	if err == nil {
		t.Fatal("expected rejection error")
	}
	if !strings.Contains(err.Error(), "privacy budget exceeded") {
		t.Errorf("error should carry the response body, got: %v", err)
	}
}

func TestCloseRound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/federation/rounds/close" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(sdk.GlobalModel{
			Version:      4,
			Round:        9,
			Parameters:   []float64{1.5, 2.5},
			Participants: 3,
		})
	}))
	defer srv.Close()

	model, err := newSDK(srv.URL).CloseRound()
	if err != nil {
		t.Fatalf("failed to close round: %v", err)
	}
	if model.Version != 4 || model.Participants != 3 {
		t.Errorf("unexpected model: %+v", model)
	}
}

func TestListModelsPagination(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("offset") != "5" || q.Get("limit") != "2" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}

		json.NewEncoder(w).Encode(sdk.ModelPage{
			Offset: 5,
			Limit:  2,
			Total:  7,
			Models: []sdk.GlobalModel{{Version: 6}, {Version: 7}},
		})
	}))
	defer srv.Close()

	page, err := newSDK(srv.URL).ListModels(5, 2)
	if err != nil {
		t.Fatalf("failed to list models: %v", err)
	}
	if page.Total != 7 || len(page.Models) != 2 {
		t.Errorf("unexpected page: %+v", page)
	}
}

func TestGetBudget(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/budgets/eu-west" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		json.NewEncoder(w).Encode(sdk.Budget{Cohort: "eu-west", Spent: 4.5, Ceiling: 10})
	}))
	defer srv.Close()

	budget, err := newSDK(srv.URL).GetBudget("eu-west")
	if err != nil {
		t.Fatalf("failed to get budget: %v", err)
	}
	if budget.Spent != 4.5 || budget.Ceiling != 10 {
		t.Errorf("unexpected budget: %+v", budget)
	}
}

func TestSendSample(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/telemetry" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}

		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	err := newSDK(srv.URL).SendSample(sdk.Sample{Metric: "latency_p99", Segment: "eu-west", Value: 420})
	if err != nil {
		t.Fatalf("failed to send sample: %v", err)
	}
}

func TestCancelAction(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/actions/act-1/cancel" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}

		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := newSDK(srv.URL).CancelAction("act-1"); err != nil {
		t.Fatalf("failed to cancel action: %v", err)
	}
}

func TestReloadPolicy(t *testing.T) {
	t.Parallel()

	doc := []byte("anomaly:\n  alpha: 0.3\n")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/policy/reload" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != sdk.CTYAML {
			t.Errorf("unexpected content type: %s", ct)
		}

		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := newSDK(srv.URL).ReloadPolicy(doc); err != nil {
		t.Fatalf("failed to reload policy: %v", err)
	}
}
