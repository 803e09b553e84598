package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/autonomiq/kaizen/federation"
	"github.com/autonomiq/kaizen/telemetry"
)

// Topic layout under the configured domain:
//
//	kaizen/<domain>/telemetry              JSON samples
//	kaizen/<domain>/federation/updates      JSON model updates
//	kaizen/<domain>/federation/updates/cbor CBOR model updates
func (svc *service) Subscribe(ctx context.Context) error {
	base := "kaizen/" + svc.cfg.Domain

	if err := svc.pubsub.Subscribe(ctx, base+"/telemetry", svc.handleTelemetry(ctx)); err != nil {
		return err
	}
	if err := svc.pubsub.SubscribeRaw(ctx, base+"/federation/updates", svc.handleUpdate(ctx, json.Unmarshal)); err != nil {
		return err
	}

	return svc.pubsub.SubscribeRaw(ctx, base+"/federation/updates/cbor", svc.handleUpdate(ctx, cbor.Unmarshal))
}

func (svc *service) handleTelemetry(ctx context.Context) func(topic string, msg map[string]any) error {
	return func(_ string, msg map[string]any) error {
		sample, err := sampleFromMessage(msg)
		if err != nil {
			return err
		}

		return svc.Ingest(ctx, sample)
	}
}

func (svc *service) handleUpdate(ctx context.Context, decode func([]byte, any) error) func(topic string, payload []byte) error {
	return func(_ string, payload []byte) error {
		var update federation.ModelUpdate
		if err := decode(payload, &update); err != nil {
			return errors.Join(federation.ErrMalformedUpdate, err)
		}

		if err := svc.SubmitUpdate(ctx, update); err != nil {
			svc.logger.Warn("rejected model update",
				slog.String("participant", update.ParticipantID),
				slog.Uint64("round", update.Round),
				slog.Any("error", err))

			return err
		}

		return nil
	}
}

func sampleFromMessage(msg map[string]any) (telemetry.Sample, error) {
	metric, ok := msg["metric"].(string)
	if !ok || metric == "" {
		return telemetry.Sample{}, errors.New("invalid metric")
	}
	segment, ok := msg["segment"].(string)
	if !ok {
		segment = ""
	}
	value, ok := msg["value"].(float64)
	if !ok {
		return telemetry.Sample{}, errors.New("invalid value")
	}

	ts := time.Now()
	if raw, ok := msg["timestamp"].(string); ok {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return telemetry.Sample{}, errors.New("invalid timestamp")
		}
		ts = parsed
	}

	return telemetry.Sample{
		Metric:    metric,
		Segment:   segment,
		Value:     value,
		Timestamp: ts,
	}, nil
}
