package federation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// WasmAggregator runs a custom aggregation strategy compiled to WASM. The
// module reads a JSON document {"prior": [...], "updates": [...]} on stdin
// and writes the new parameter vector as a JSON array on stdout. It lets
// operators swap the combination rule without rebuilding the engine.
type WasmAggregator struct {
	binary []byte
}

func NewWasmAggregator(binary []byte) (*WasmAggregator, error) {
	if len(binary) == 0 {
		return nil, errors.New("empty wasm aggregator module")
	}

	return &WasmAggregator{binary: binary}, nil
}

type wasmAggregateInput struct {
	Prior   []float64     `json:"prior"`
	Updates []ModelUpdate `json:"updates"`
}

func (w *WasmAggregator) Aggregate(prior []float64, updates []ModelUpdate) ([]float64, error) {
	if len(updates) == 0 {
		return nil, ErrNoUpdates
	}

	input, err := json.Marshal(wasmAggregateInput{Prior: prior, Updates: updates})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal aggregation input: %w", err)
	}

	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	wasi_snapshot_preview1.MustInstantiate(ctx, r)

	var stdout bytes.Buffer
	cfg := wazero.NewModuleConfig().
		WithStdin(bytes.NewReader(input)).
		WithStdout(&stdout).
		WithName("aggregator")

	if _, err := r.InstantiateWithConfig(ctx, w.binary, cfg); err != nil {
		return nil, fmt.Errorf("wasm aggregator execution failed: %w", err)
	}

	var params []float64
	if err := json.Unmarshal(stdout.Bytes(), &params); err != nil {
		return nil, fmt.Errorf("failed to unmarshal aggregated parameters: %w", err)
	}

	return params, nil
}
