// Package extract implements the Output Extractor described in §4.4:
// turning a connector's raw result data into the named outputs a step
// declares, either by taking the result verbatim ("raw") or by evaluating
// a jq expression against it ("path").
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/itchyny/gojq"

	"github.com/flowctl/flowctl/internal/flow"
	flowerrors "github.com/flowctl/flowctl/pkg/errors"
)

const (
	// DefaultTimeout bounds how long a single path expression may run
	// against a step's result data.
	DefaultTimeout = 1 * time.Second

	// DefaultMaxInputSize bounds how large the result data being
	// evaluated may be, estimated via its JSON encoding.
	DefaultMaxInputSize = 10 * 1024 * 1024
)

// Extractor evaluates OutputSpecs against a step's ConnectorResult,
// compiling and caching each jq expression the first time it is seen so a
// step re-run (or a fan-out of identical output specs) doesn't re-parse it.
type Extractor struct {
	timeout      time.Duration
	maxInputSize int64
	compiledMu   sync.Mutex
	compiled     map[string]*gojq.Code
}

// NewExtractor creates an Extractor with the given limits; zero values fall
// back to DefaultTimeout and DefaultMaxInputSize.
func NewExtractor(timeout time.Duration, maxInputSize int64) *Extractor {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if maxInputSize == 0 {
		maxInputSize = DefaultMaxInputSize
	}
	return &Extractor{timeout: timeout, maxInputSize: maxInputSize, compiled: map[string]*gojq.Code{}}
}

// Extract evaluates every OutputSpec declared for a step against result,
// in declared order. Later specs that reuse a name overwrite earlier ones
// per §4.4, rather than erroring on the duplicate.
func (e *Extractor) Extract(ctx context.Context, stepName string, specs []flow.OutputSpec, result flow.ConnectorResult) (map[string]any, error) {
	outputs := make(map[string]any, len(specs))
	for _, spec := range specs {
		value, err := e.extractOne(ctx, stepName, spec, result)
		if err != nil {
			return nil, err
		}
		outputs[spec.Name] = value
	}
	return outputs, nil
}

func (e *Extractor) extractOne(ctx context.Context, stepName string, spec flow.OutputSpec, result flow.ConnectorResult) (any, error) {
	switch spec.Kind {
	case flow.OutputKindRaw, "":
		return result.Data, nil
	case flow.OutputKindPath:
		return e.evalPath(ctx, stepName, spec, result.Data)
	default:
		return nil, &flowerrors.OutputError{Step: stepName, Output: spec.Name, Message: fmt.Sprintf("unknown output kind %q", spec.Kind)}
	}
}

func (e *Extractor) evalPath(ctx context.Context, stepName string, spec flow.OutputSpec, data any) (any, error) {
	if err := e.validateInputSize(data); err != nil {
		return nil, &flowerrors.OutputError{Step: stepName, Output: spec.Name, Message: err.Error()}
	}

	code, err := e.compile(spec.Value)
	if err != nil {
		return nil, &flowerrors.OutputError{Step: stepName, Output: spec.Name, Message: err.Error(), Cause: err}
	}

	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resultCh := make(chan any, 1)
	errCh := make(chan error, 1)
	go func() {
		iter := code.Run(data)
		var results []any
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}
			if err, isErr := v.(error); isErr {
				errCh <- err
				return
			}
			results = append(results, v)
		}
		switch len(results) {
		case 0:
			resultCh <- nil
		case 1:
			resultCh <- results[0]
		default:
			resultCh <- results
		}
	}()

	select {
	case v := <-resultCh:
		return v, nil
	case err := <-errCh:
		return nil, &flowerrors.OutputError{Step: stepName, Output: spec.Name, Message: err.Error(), Cause: err}
	case <-execCtx.Done():
		return nil, &flowerrors.OutputError{Step: stepName, Output: spec.Name, Message: fmt.Sprintf("jq evaluation timed out after %v", e.timeout)}
	}
}

func (e *Extractor) compile(expression string) (*gojq.Code, error) {
	e.compiledMu.Lock()
	defer e.compiledMu.Unlock()

	if code, ok := e.compiled[expression]; ok {
		return code, nil
	}
	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid path expression %q: %w", expression, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("compiling path expression %q: %w", expression, err)
	}
	e.compiled[expression] = code
	return code, nil
}

func (e *Extractor) validateInputSize(data any) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling result data: %w", err)
	}
	if int64(len(encoded)) > e.maxInputSize {
		return fmt.Errorf("result data size (%d bytes) exceeds maximum (%d bytes)", len(encoded), e.maxInputSize)
	}
	return nil
}

// ValidatePath checks a path expression's syntax without evaluating it,
// used during config validation to catch typos before a run starts.
func (e *Extractor) ValidatePath(expression string) error {
	_, err := e.compile(expression)
	return err
}
