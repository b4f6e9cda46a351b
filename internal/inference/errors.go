package inference

import "errors"

var (
	// ErrModelLoad wraps every failure to read or validate a model artifact.
	ErrModelLoad = errors.New("model load failed")
	// ErrFeatureCount is returned when a tabular input has the wrong width.
	ErrFeatureCount = errors.New("feature count mismatch")
	// ErrInputSize is returned when a neural input has the wrong width.
	ErrInputSize = errors.New("input size mismatch")
	// ErrInference wraps unexpected failures while scoring.
	ErrInference = errors.New("inference failed")
)
