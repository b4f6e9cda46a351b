package inference

import (
	"fmt"
	"math"
)

// Layer types understood by Network.
const (
	LayerConv1D      = "conv1d"
	LayerMaxPool1D   = "maxpool1d"
	LayerBatchNorm1D = "batchnorm1d"
	LayerLinear      = "linear"
	LayerReLU        = "relu"
	LayerDropout     = "dropout"
	LayerFlatten     = "flatten"
)

// Layer is a single step of the network. Which fields are used depends on
// Type. Weights are flattened row-major: conv1d weight is
// [out_channels][in_channels][kernel_size], linear weight is
// [out_features][in_features].
type Layer struct {
	Type string `json:"type"`

	InChannels  int `json:"in_channels,omitempty"`
	OutChannels int `json:"out_channels,omitempty"`
	KernelSize  int `json:"kernel_size,omitempty"`
	Stride      int `json:"stride,omitempty"`
	Padding     int `json:"padding,omitempty"`

	InFeatures  int `json:"in_features,omitempty"`
	OutFeatures int `json:"out_features,omitempty"`

	NumFeatures int       `json:"num_features,omitempty"`
	RunningMean []float64 `json:"running_mean,omitempty"`
	RunningVar  []float64 `json:"running_var,omitempty"`
	Eps         float64   `json:"eps,omitempty"`

	Weight []float64 `json:"weight,omitempty"`
	Bias   []float64 `json:"bias,omitempty"`
}

// Network is a feed-forward classifier over a fixed-width input, evaluated
// in inference mode. The input is treated as one channel of InputSize values.
type Network struct {
	InputWidth int     `json:"input_size"`
	Layers     []Layer `json:"layers"`
}

// tensor is a (channels, length) activation, channel-major.
type tensor struct {
	c, l int
	v    []float64
}

func (n *Network) InputSize() int {
	return n.InputWidth
}

// validate walks the layer stack with the input shape and reports the first
// inconsistency. It returns the number of output classes.
func (n *Network) validate() (int, error) {
	if n.InputWidth <= 0 {
		return 0, fmt.Errorf("input_size must be positive, got %d", n.InputWidth)
	}
	if len(n.Layers) == 0 {
		return 0, fmt.Errorf("network has no layers")
	}

	c, l := 1, n.InputWidth
	for i := range n.Layers {
		var err error
		c, l, err = n.Layers[i].outputShape(c, l)
		if err != nil {
			return 0, fmt.Errorf("layer %d (%s): %w", i, n.Layers[i].Type, err)
		}
	}
	if c*l < 2 {
		return 0, fmt.Errorf("network produces %d outputs, need at least 2 classes", c*l)
	}
	return c * l, nil
}

func (ly *Layer) stride() int {
	if ly.Stride > 0 {
		return ly.Stride
	}
	if ly.Type == LayerMaxPool1D {
		return ly.KernelSize
	}
	return 1
}

func (ly *Layer) eps() float64 {
	if ly.Eps > 0 {
		return ly.Eps
	}
	return 1e-5
}

func (ly *Layer) outputShape(c, l int) (int, int, error) {
	switch ly.Type {
	case LayerReLU, LayerDropout:
		return c, l, nil
	case LayerFlatten:
		return 1, c * l, nil
	case LayerConv1D:
		if ly.InChannels != c {
			return 0, 0, fmt.Errorf("expects %d input channels, got %d", ly.InChannels, c)
		}
		if ly.OutChannels <= 0 || ly.KernelSize <= 0 || ly.Padding < 0 {
			return 0, 0, fmt.Errorf("invalid geometry")
		}
		if len(ly.Weight) != ly.OutChannels*ly.InChannels*ly.KernelSize {
			return 0, 0, fmt.Errorf("weight has %d values, want %d", len(ly.Weight), ly.OutChannels*ly.InChannels*ly.KernelSize)
		}
		if len(ly.Bias) != 0 && len(ly.Bias) != ly.OutChannels {
			return 0, 0, fmt.Errorf("bias has %d values, want %d", len(ly.Bias), ly.OutChannels)
		}
		span := l + 2*ly.Padding - ly.KernelSize
		if span < 0 {
			return 0, 0, fmt.Errorf("kernel %d wider than input %d", ly.KernelSize, l)
		}
		return ly.OutChannels, span/ly.stride() + 1, nil
	case LayerMaxPool1D:
		if ly.KernelSize <= 0 {
			return 0, 0, fmt.Errorf("invalid kernel size")
		}
		if l < ly.KernelSize {
			return 0, 0, fmt.Errorf("kernel %d wider than input %d", ly.KernelSize, l)
		}
		return c, (l-ly.KernelSize)/ly.stride() + 1, nil
	case LayerBatchNorm1D:
		if ly.NumFeatures != c && !(c == 1 && ly.NumFeatures == l) {
			return 0, 0, fmt.Errorf("num_features %d does not match shape (%d, %d)", ly.NumFeatures, c, l)
		}
		for _, p := range [][]float64{ly.RunningMean, ly.RunningVar, ly.Weight, ly.Bias} {
			if len(p) != ly.NumFeatures {
				return 0, 0, fmt.Errorf("parameter has %d values, want %d", len(p), ly.NumFeatures)
			}
		}
		for _, v := range ly.RunningVar {
			if v < 0 {
				return 0, 0, fmt.Errorf("negative running variance")
			}
		}
		return c, l, nil
	case LayerLinear:
		if ly.InFeatures != c*l {
			return 0, 0, fmt.Errorf("expects %d input features, got %d", ly.InFeatures, c*l)
		}
		if ly.OutFeatures <= 0 {
			return 0, 0, fmt.Errorf("invalid out_features")
		}
		if len(ly.Weight) != ly.OutFeatures*ly.InFeatures {
			return 0, 0, fmt.Errorf("weight has %d values, want %d", len(ly.Weight), ly.OutFeatures*ly.InFeatures)
		}
		if len(ly.Bias) != 0 && len(ly.Bias) != ly.OutFeatures {
			return 0, 0, fmt.Errorf("bias has %d values, want %d", len(ly.Bias), ly.OutFeatures)
		}
		return 1, ly.OutFeatures, nil
	default:
		return 0, 0, fmt.Errorf("unknown layer type %q", ly.Type)
	}
}

// Forward runs the network on one sample and returns the raw logits. It
// allocates fresh activations on every call and never writes to the layers.
func (n *Network) Forward(data []float64) ([]float64, error) {
	if len(data) != n.InputWidth {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrInputSize, n.InputWidth, len(data))
	}

	x := tensor{c: 1, l: len(data), v: append([]float64(nil), data...)}
	for i := range n.Layers {
		x = n.Layers[i].apply(x)
	}

	for _, v := range x.v {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite logit", ErrInference)
		}
	}
	return x.v, nil
}

func (ly *Layer) apply(x tensor) tensor {
	switch ly.Type {
	case LayerReLU:
		out := make([]float64, len(x.v))
		for i, v := range x.v {
			if v > 0 {
				out[i] = v
			}
		}
		return tensor{c: x.c, l: x.l, v: out}
	case LayerFlatten:
		return tensor{c: 1, l: x.c * x.l, v: x.v}
	case LayerConv1D:
		return ly.conv(x)
	case LayerMaxPool1D:
		return ly.maxPool(x)
	case LayerBatchNorm1D:
		return ly.batchNorm(x)
	case LayerLinear:
		return ly.linear(x)
	default:
		// Dropout is the identity at inference time.
		return x
	}
}

func (ly *Layer) conv(x tensor) tensor {
	stride := ly.stride()
	outL := (x.l+2*ly.Padding-ly.KernelSize)/stride + 1
	out := make([]float64, ly.OutChannels*outL)

	for oc := 0; oc < ly.OutChannels; oc++ {
		for pos := 0; pos < outL; pos++ {
			var sum float64
			if len(ly.Bias) > 0 {
				sum = ly.Bias[oc]
			}
			start := pos*stride - ly.Padding
			for ic := 0; ic < ly.InChannels; ic++ {
				w := ly.Weight[(oc*ly.InChannels+ic)*ly.KernelSize:]
				row := x.v[ic*x.l : (ic+1)*x.l]
				for k := 0; k < ly.KernelSize; k++ {
					idx := start + k
					if idx < 0 || idx >= x.l {
						continue
					}
					sum += w[k] * row[idx]
				}
			}
			out[oc*outL+pos] = sum
		}
	}
	return tensor{c: ly.OutChannels, l: outL, v: out}
}

func (ly *Layer) maxPool(x tensor) tensor {
	stride := ly.stride()
	outL := (x.l-ly.KernelSize)/stride + 1
	out := make([]float64, x.c*outL)

	for c := 0; c < x.c; c++ {
		row := x.v[c*x.l : (c+1)*x.l]
		for pos := 0; pos < outL; pos++ {
			best := math.Inf(-1)
			for k := 0; k < ly.KernelSize; k++ {
				if v := row[pos*stride+k]; v > best {
					best = v
				}
			}
			out[c*outL+pos] = best
		}
	}
	return tensor{c: x.c, l: outL, v: out}
}

func (ly *Layer) batchNorm(x tensor) tensor {
	out := make([]float64, len(x.v))
	perChannel := ly.NumFeatures == x.c
	for i, v := range x.v {
		f := i
		if perChannel {
			f = i / x.l
		}
		norm := (v - ly.RunningMean[f]) / math.Sqrt(ly.RunningVar[f]+ly.eps())
		out[i] = norm*ly.Weight[f] + ly.Bias[f]
	}
	return tensor{c: x.c, l: x.l, v: out}
}

func (ly *Layer) linear(x tensor) tensor {
	out := make([]float64, ly.OutFeatures)
	for o := 0; o < ly.OutFeatures; o++ {
		var sum float64
		if len(ly.Bias) > 0 {
			sum = ly.Bias[o]
		}
		w := ly.Weight[o*ly.InFeatures : (o+1)*ly.InFeatures]
		for i, v := range x.v {
			sum += w[i] * v
		}
		out[o] = sum
	}
	return tensor{c: 1, l: ly.OutFeatures, v: out}
}

// Softmax normalizes logits into a probability distribution.
func Softmax(logits []float64) []float64 {
	if len(logits) == 0 {
		return nil
	}
	peak := logits[0]
	for _, v := range logits[1:] {
		if v > peak {
			peak = v
		}
	}

	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(v - peak)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
