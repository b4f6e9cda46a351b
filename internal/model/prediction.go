package model

import (
	"fmt"
	"math"
)

type PredictionKind int

const (
	Tabular PredictionKind = iota + 1
	Neural
)

func (k PredictionKind) String() string {
	switch k {
	case Tabular:
		return "creditcard"
	case Neural:
		return "fraud"
	default:
		return "unknown"
	}
}

// PredictionRequest is the parsed body of a prediction call. Exactly one of
// Features or Data is meaningful, selected by Kind.
type PredictionRequest struct {
	Kind     PredictionKind
	Features []float64
	Data     []float64
}

// ValidationError reports a request that was rejected before any model ran.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Validate checks the request shape. inputSize is the neural model width and
// featureCount the tabular model width; zero skips the length check.
func (r PredictionRequest) Validate(inputSize, featureCount int) error {
	switch r.Kind {
	case Tabular:
		if r.Features == nil {
			return &ValidationError{Field: "features", Reason: "field is required"}
		}
		if featureCount > 0 && len(r.Features) != featureCount {
			return &ValidationError{
				Field:  "features",
				Reason: fmt.Sprintf("expected %d values, got %d", featureCount, len(r.Features)),
			}
		}
		return checkFinite("features", r.Features)
	case Neural:
		if r.Data == nil {
			return &ValidationError{Field: "data", Reason: "field is required"}
		}
		if inputSize > 0 && len(r.Data) != inputSize {
			return &ValidationError{
				Field:  "data",
				Reason: fmt.Sprintf("expected %d values, got %d", inputSize, len(r.Data)),
			}
		}
		return checkFinite("data", r.Data)
	default:
		return &ValidationError{Reason: "unknown prediction kind"}
	}
}

// MaxInputMagnitude bounds every input value. Larger finite values can
// overflow the network logits.
const MaxInputMagnitude = 1e12

func checkFinite(field string, values []float64) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ValidationError{Field: fmt.Sprintf("%s[%d]", field, i), Reason: "value is not finite"}
		}
		if math.Abs(v) > MaxInputMagnitude {
			return &ValidationError{
				Field:  fmt.Sprintf("%s[%d]", field, i),
				Reason: fmt.Sprintf("magnitude exceeds %g", MaxInputMagnitude),
			}
		}
	}
	return nil
}

type TabularResponse struct {
	Prediction any `json:"prediction"`
}

type NeuralResponse struct {
	FraudPredictions [][]float64 `json:"fraud_predictions"`
}
