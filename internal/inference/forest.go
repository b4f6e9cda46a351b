package inference

import (
	"fmt"
)

// Tree is one decision tree in parallel-array form. Node 0 is the root; a
// node is a leaf when both children are -1. Samples go left when
// x[Feature] <= Threshold. Value holds per-class weights at each node.
type Tree struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

// Forest is a random forest classifier. The predicted class is the argmax
// of the per-class probabilities averaged over all trees.
type Forest struct {
	NFeatures int    `json:"n_features"`
	Classes   []any  `json:"classes"`
	Trees     []Tree `json:"trees"`
}

func (f *Forest) FeatureCount() int {
	return f.NFeatures
}

func (f *Forest) validate() error {
	if f.NFeatures <= 0 {
		return fmt.Errorf("n_features must be positive, got %d", f.NFeatures)
	}
	if len(f.Classes) == 0 {
		return fmt.Errorf("classes must not be empty")
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("forest has no trees")
	}
	for i := range f.Trees {
		if err := f.Trees[i].validate(f.NFeatures, len(f.Classes)); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

func (t *Tree) validate(nFeatures, nClasses int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return fmt.Errorf("no nodes")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return fmt.Errorf("node arrays differ in length")
	}

	for node := 0; node < n; node++ {
		left, right := t.ChildrenLeft[node], t.ChildrenRight[node]
		if len(t.Value[node]) != nClasses {
			return fmt.Errorf("node %d: %d values for %d classes", node, len(t.Value[node]), nClasses)
		}
		if left == -1 && right == -1 {
			var sum float64
			for _, v := range t.Value[node] {
				if v < 0 {
					return fmt.Errorf("node %d: negative class weight", node)
				}
				sum += v
			}
			if sum == 0 {
				return fmt.Errorf("node %d: leaf has no weight", node)
			}
			continue
		}
		// Children must come after their parent, which also rules out cycles.
		if left <= node || left >= n || right <= node || right >= n {
			return fmt.Errorf("node %d: invalid children %d/%d", node, left, right)
		}
		if f := t.Feature[node]; f < 0 || f >= nFeatures {
			return fmt.Errorf("node %d: feature %d out of range", node, f)
		}
	}
	return nil
}

func (t *Tree) leaf(x []float64) []float64 {
	node := 0
	for t.ChildrenLeft[node] != -1 {
		if x[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return t.Value[node]
}

// PredictProba returns the averaged class probabilities for one sample.
func (f *Forest) PredictProba(features []float64) ([]float64, error) {
	if len(features) != f.NFeatures {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrFeatureCount, f.NFeatures, len(features))
	}

	proba := make([]float64, len(f.Classes))
	for i := range f.Trees {
		value := f.Trees[i].leaf(features)
		var sum float64
		for _, v := range value {
			sum += v
		}
		for c, v := range value {
			proba[c] += v / sum
		}
	}
	for c := range proba {
		proba[c] /= float64(len(f.Trees))
	}
	return proba, nil
}

// Predict returns the label of the most probable class. Ties go to the
// class listed first.
func (f *Forest) Predict(features []float64) (any, error) {
	proba, err := f.PredictProba(features)
	if err != nil {
		return nil, err
	}
	best := 0
	for c := 1; c < len(proba); c++ {
		if proba[c] > proba[best] {
			best = c
		}
	}
	return f.Classes[best], nil
}
