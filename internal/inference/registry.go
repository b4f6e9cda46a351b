// Package inference holds the two fraud classifiers served by the gateway.
package inference

import (
	"context"
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sync/errgroup"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TabularModel classifies one fixed-length feature vector.
type TabularModel interface {
	FeatureCount() int
	Predict(features []float64) (any, error)
}

// NeuralModel maps a fixed-width input to raw class scores.
type NeuralModel interface {
	InputSize() int
	Forward(data []float64) ([]float64, error)
}

// Registry owns both loaded models. It is read-only after construction and
// safe to share between concurrent requests.
type Registry struct {
	tabular TabularModel
	neural  NeuralModel
}

func NewRegistry(tabular TabularModel, neural NeuralModel) *Registry {
	return &Registry{
		tabular: tabular,
		neural:  neural,
	}
}

// LoadRegistry reads both artifacts concurrently. Any missing or malformed
// artifact, or a neural network whose width differs from inputSize, fails the
// whole load.
func LoadRegistry(ctx context.Context, tabularPath, neuralPath string, inputSize int) (*Registry, error) {
	var (
		forest  *Forest
		network *Network
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		f, err := LoadForest(gctx, tabularPath)
		if err != nil {
			return err
		}
		forest = f
		return nil
	})
	g.Go(func() error {
		n, err := LoadNetwork(gctx, neuralPath)
		if err != nil {
			return err
		}
		if n.InputSize() != inputSize {
			return fmt.Errorf("%w: %s declares input_size %d, configured %d",
				ErrModelLoad, neuralPath, n.InputSize(), inputSize)
		}
		network = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return NewRegistry(forest, network), nil
}

func LoadForest(ctx context.Context, path string) (*Forest, error) {
	var forest Forest
	if err := readArtifact(ctx, path, &forest); err != nil {
		return nil, err
	}
	if err := forest.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelLoad, path, err)
	}
	return &forest, nil
}

func LoadNetwork(ctx context.Context, path string) (*Network, error) {
	var network Network
	if err := readArtifact(ctx, path, &network); err != nil {
		return nil, err
	}
	if _, err := network.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelLoad, path, err)
	}
	return &network, nil
}

func readArtifact(ctx context.Context, path string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", ErrModelLoad, path, err)
	}
	return nil
}

func (r *Registry) FeatureCount() int {
	return r.tabular.FeatureCount()
}

func (r *Registry) InputSize() int {
	return r.neural.InputSize()
}

// PredictTabular returns the class label for one feature vector.
func (r *Registry) PredictTabular(features []float64) (label any, err error) {
	if len(features) != r.tabular.FeatureCount() {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrFeatureCount, r.tabular.FeatureCount(), len(features))
	}
	defer func() {
		if p := recover(); p != nil {
			label, err = nil, fmt.Errorf("%w: %v", ErrInference, p)
		}
	}()
	return r.tabular.Predict(features)
}

// PredictNeural returns class probabilities for one input row.
func (r *Registry) PredictNeural(data []float64) (proba []float64, err error) {
	if len(data) != r.neural.InputSize() {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrInputSize, r.neural.InputSize(), len(data))
	}
	defer func() {
		if p := recover(); p != nil {
			proba, err = nil, fmt.Errorf("%w: %v", ErrInference, p)
		}
	}()

	logits, err := r.neural.Forward(data)
	if err != nil {
		return nil, err
	}
	return Softmax(logits), nil
}
