package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/autonomiq/kaizen/engine"
	"github.com/autonomiq/kaizen/pkg/api"
	"github.com/autonomiq/kaizen/policy"
)

const (
	maxBodySize     = 1024 * 1024 * 10
	yamlContentType = "application/x-yaml"
	cborContentType = "application/cbor"
)

func MakeHandler(svc engine.Service, logger *slog.Logger, instanceID string) http.Handler {
	mux := chi.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(api.LoggingErrorEncoder(logger, api.EncodeError)),
	}

	mux.Route("/federation", func(r chi.Router) {
		r.Post("/updates", otelhttp.NewHandler(kithttp.NewServer(
			submitUpdateEndpoint(svc),
			decodeUpdateReq,
			api.EncodeResponse,
			opts...,
		), "submit-update").ServeHTTP)
		r.Post("/updates/cbor", otelhttp.NewHandler(kithttp.NewServer(
			submitUpdateEndpoint(svc),
			decodeUpdateCBORReq,
			api.EncodeResponse,
			opts...,
		), "submit-update-cbor").ServeHTTP)
		r.Route("/rounds", func(r chi.Router) {
			r.Post("/close", otelhttp.NewHandler(kithttp.NewServer(
				closeRoundEndpoint(svc),
				decodeEmptyReq,
				api.EncodeResponse,
				opts...,
			), "close-round").ServeHTTP)
			r.Get("/status", otelhttp.NewHandler(kithttp.NewServer(
				roundStatusEndpoint(svc),
				decodeEmptyReq,
				api.EncodeResponse,
				opts...,
			), "round-status").ServeHTTP)
		})
	})

	mux.Route("/models", func(r chi.Router) {
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			listModelsEndpoint(svc),
			decodeListEntityReq,
			api.EncodeResponse,
			opts...,
		), "list-models").ServeHTTP)
		r.Get("/{version}", otelhttp.NewHandler(kithttp.NewServer(
			getModelEndpoint(svc),
			decodeVersionReq,
			api.EncodeResponse,
			opts...,
		), "get-model").ServeHTTP)
	})

	mux.Route("/budgets", func(r chi.Router) {
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			listBudgetsEndpoint(svc),
			decodeListEntityReq,
			api.EncodeResponse,
			opts...,
		), "list-budgets").ServeHTTP)
		r.Get("/{cohort}", otelhttp.NewHandler(kithttp.NewServer(
			getBudgetEndpoint(svc),
			decodeEntityReq("cohort"),
			api.EncodeResponse,
			opts...,
		), "get-budget").ServeHTTP)
	})

	mux.Post("/telemetry", otelhttp.NewHandler(kithttp.NewServer(
		ingestEndpoint(svc),
		decodeSampleReq,
		api.EncodeResponse,
		opts...,
	), "ingest").ServeHTTP)

	mux.Route("/anomalies", func(r chi.Router) {
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			listAnomaliesEndpoint(svc),
			decodeListEntityReq,
			api.EncodeResponse,
			opts...,
		), "list-anomalies").ServeHTTP)
		r.Get("/{anomalyID}", otelhttp.NewHandler(kithttp.NewServer(
			getAnomalyEndpoint(svc),
			decodeEntityReq("anomalyID"),
			api.EncodeResponse,
			opts...,
		), "get-anomaly").ServeHTTP)
	})

	mux.Route("/actions", func(r chi.Router) {
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			listActionsEndpoint(svc),
			decodeListEntityReq,
			api.EncodeResponse,
			opts...,
		), "list-actions").ServeHTTP)
		r.Route("/{actionID}", func(r chi.Router) {
			r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
				getActionEndpoint(svc),
				decodeEntityReq("actionID"),
				api.EncodeResponse,
				opts...,
			), "get-action").ServeHTTP)
			r.Post("/cancel", otelhttp.NewHandler(kithttp.NewServer(
				cancelActionEndpoint(svc),
				decodeEntityReq("actionID"),
				api.EncodeResponse,
				opts...,
			), "cancel-action").ServeHTTP)
		})
	})

	mux.Route("/rules", func(r chi.Router) {
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			listRulesEndpoint(svc),
			decodeEmptyReq,
			api.EncodeResponse,
			opts...,
		), "list-rules").ServeHTTP)
		r.Route("/{ruleID}", func(r chi.Router) {
			r.Post("/enable", otelhttp.NewHandler(kithttp.NewServer(
				enableRuleEndpoint(svc),
				decodeEntityReq("ruleID"),
				api.EncodeResponse,
				opts...,
			), "enable-rule").ServeHTTP)
			r.Post("/disable", otelhttp.NewHandler(kithttp.NewServer(
				disableRuleEndpoint(svc),
				decodeEntityReq("ruleID"),
				api.EncodeResponse,
				opts...,
			), "disable-rule").ServeHTTP)
		})
	})

	mux.Post("/policy/reload", otelhttp.NewHandler(kithttp.NewServer(
		reloadPolicyEndpoint(svc),
		decodePolicyReq,
		api.EncodeResponse,
		opts...,
	), "reload-policy").ServeHTTP)

	mux.Get("/state", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", api.ContentType)
		if err := json.NewEncoder(w).Encode(map[string]string{
			"state": svc.State().String(),
		}); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
		}
	})

	mux.Get("/health", api.Health("engine", instanceID))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func decodeUpdateReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(api.ErrValidation, api.ErrUnsupportedContentType)
	}

	var req updateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, api.ErrValidation)
	}

	return req, nil
}

func decodeUpdateCBORReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), cborContentType) {
		return nil, errors.Join(api.ErrValidation, api.ErrUnsupportedContentType)
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return nil, err
	}

	var req updateReq
	if err := cbor.Unmarshal(data, &req.ModelUpdate); err != nil {
		return nil, errors.Join(err, api.ErrValidation)
	}

	return req, nil
}

func decodeSampleReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(api.ErrValidation, api.ErrUnsupportedContentType)
	}

	var req sampleReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, api.ErrValidation)
	}

	return req, nil
}

func decodePolicyReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), yamlContentType) {
		return nil, errors.Join(api.ErrValidation, api.ErrUnsupportedContentType)
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return nil, err
	}

	p, err := policy.Parse(data)
	if err != nil {
		return nil, errors.Join(err, api.ErrValidation)
	}

	return policyReq{
		policy: p,
	}, nil
}

func decodeEntityReq(key string) kithttp.DecodeRequestFunc {
	return func(_ context.Context, r *http.Request) (any, error) {
		return entityReq{
			id: chi.URLParam(r, key),
		}, nil
	}
}

func decodeVersionReq(_ context.Context, r *http.Request) (any, error) {
	v, err := strconv.ParseUint(chi.URLParam(r, "version"), 10, 64)
	if err != nil {
		return nil, errors.Join(api.ErrValidation, err)
	}

	return versionReq{
		version: v,
	}, nil
}

func decodeListEntityReq(_ context.Context, r *http.Request) (any, error) {
	o, err := api.ReadNumQuery(r, api.OffsetKey, api.DefOffset)
	if err != nil {
		return nil, errors.Join(api.ErrValidation, err)
	}

	l, err := api.ReadNumQuery(r, api.LimitKey, api.DefLimit)
	if err != nil {
		return nil, errors.Join(api.ErrValidation, err)
	}

	return listEntityReq{
		offset: o,
		limit:  l,
	}, nil
}

func decodeEmptyReq(_ context.Context, _ *http.Request) (any, error) {
	return emptyReq{}, nil
}
