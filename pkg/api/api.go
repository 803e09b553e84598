package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	kithttp "github.com/go-kit/kit/transport/http"

	"github.com/autonomiq/kaizen/anomaly"
	"github.com/autonomiq/kaizen/federation"
	pkgerrors "github.com/autonomiq/kaizen/pkg/errors"
	"github.com/autonomiq/kaizen/privacy"
	"github.com/autonomiq/kaizen/remediation"
	"github.com/autonomiq/kaizen/rules"
)

const (
	OffsetKey = "offset"
	LimitKey  = "limit"
	DefOffset = 0
	DefLimit  = 100

	ContentType = "application/json"
)

var (
	ErrValidation             = errors.New("validation error")
	ErrMissingID              = errors.New("missing entity id")
	ErrUnsupportedContentType = errors.New("unsupported content type")
	ErrInvalidQueryParams     = errors.New("invalid query parameters")
)

// Response lets endpoint response types control their HTTP rendering.
type Response interface {
	Code() int
	Headers() map[string]string
	Empty() bool
}

func EncodeResponse(_ context.Context, w http.ResponseWriter, response interface{}) error {
	if ar, ok := response.(Response); ok {
		for k, v := range ar.Headers() {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", ContentType)
		w.WriteHeader(ar.Code())

		if ar.Empty() {
			return nil
		}
	}

	return json.NewEncoder(w).Encode(response)
}

func EncodeError(_ context.Context, err error, w http.ResponseWriter) {
	w.Header().Set("Content-Type", ContentType)
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, pkgerrors.ErrEmptyKey),
		errors.Is(err, pkgerrors.ErrInvalidData),
		errors.Is(err, federation.ErrMalformedUpdate),
		errors.Is(err, federation.ErrStaleRound),
		errors.Is(err, anomaly.ErrInvalidSample),
		errors.Is(err, rules.ErrInvalidRule):
		w.WriteHeader(http.StatusBadRequest)
	case errors.Is(err, pkgerrors.ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, federation.ErrDuplicateUpdate):
		w.WriteHeader(http.StatusConflict)
	case errors.Is(err, federation.ErrUntrustedParticipant):
		w.WriteHeader(http.StatusForbidden)
	case errors.Is(err, privacy.ErrBudgetExhausted),
		errors.Is(err, federation.ErrBudgetExceeded):
		w.WriteHeader(http.StatusTooManyRequests)
	case errors.Is(err, remediation.ErrTargetBusy):
		w.WriteHeader(http.StatusConflict)
	case errors.Is(err, remediation.ErrNotCancelable):
		w.WriteHeader(http.StatusUnprocessableEntity)
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}

	enc := struct {
		Error string `json:"error"`
	}{Error: err.Error()}
	if err := json.NewEncoder(w).Encode(enc); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// LoggingErrorEncoder logs the transport-level error before delegating to
// the wrapped encoder.
func LoggingErrorEncoder(logger *slog.Logger, enc kithttp.ErrorEncoder) kithttp.ErrorEncoder {
	return func(ctx context.Context, err error, w http.ResponseWriter) {
		logger.Warn("request failed", slog.Any("error", err))
		enc(ctx, err, w)
	}
}

// ReadNumQuery reads an unsigned numeric query parameter, falling back to
// def when absent.
func ReadNumQuery(r *http.Request, key string, def uint64) (uint64, error) {
	vals := r.URL.Query()[key]
	if len(vals) == 0 {
		return def, nil
	}
	v, err := strconv.ParseUint(vals[0], 10, 64)
	if err != nil {
		return 0, errors.Join(ErrInvalidQueryParams, err)
	}

	return v, nil
}

// Health serves a minimal liveness document.
func Health(service, instanceID string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		res := struct {
			Status     string `json:"status"`
			Service    string `json:"service"`
			InstanceID string `json:"instance_id"`
		}{
			Status:     "pass",
			Service:    service,
			InstanceID: instanceID,
		}

		w.Header().Set("Content-Type", ContentType)
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(res)
	}
}
