package model

import (
	"errors"
	"math"
	"testing"
)

func TestPredictionRequest_Validate(t *testing.T) {
	tests := []struct {
		name      string
		req       PredictionRequest
		wantField string
	}{
		{
			name: "valid tabular",
			req:  PredictionRequest{Kind: Tabular, Features: []float64{1, 2, 3}},
		},
		{
			name: "valid neural at bound",
			req:  PredictionRequest{Kind: Neural, Data: []float64{MaxInputMagnitude, -MaxInputMagnitude}},
		},
		{
			name:      "missing features",
			req:       PredictionRequest{Kind: Tabular},
			wantField: "features",
		},
		{
			name:      "wrong width",
			req:       PredictionRequest{Kind: Neural, Data: []float64{1}},
			wantField: "data",
		},
		{
			name:      "nan",
			req:       PredictionRequest{Kind: Tabular, Features: []float64{1, math.NaN(), 3}},
			wantField: "features[1]",
		},
		{
			name:      "huge finite value",
			req:       PredictionRequest{Kind: Neural, Data: []float64{0, 1e300}},
			wantField: "data[1]",
		},
		{
			name:      "huge negative value",
			req:       PredictionRequest{Kind: Tabular, Features: []float64{-1e13, 0, 0}},
			wantField: "features[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate(2, 3)

			if tt.wantField == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("expected field %q, got %q", tt.wantField, verr.Field)
			}
		})
	}
}
