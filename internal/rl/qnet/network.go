// Package qnet is the Q-value approximator: a small fully connected network
// trained with Adam on mean squared error.
package qnet

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/sawpanic/rltrader/internal/domain"
)

const formatVersion = 1

// Config describes the network topology and optimiser.
type Config struct {
	Inputs       int     `yaml:"-" json:"inputs"`
	Outputs      int     `yaml:"-" json:"outputs"`
	Hidden       []int   `yaml:"hidden" json:"hidden"`
	LearningRate float64 `yaml:"learning_rate" json:"learning_rate"`
	Beta1        float64 `yaml:"beta1" json:"beta1"`
	Beta2        float64 `yaml:"beta2" json:"beta2"`
	Epsilon      float64 `yaml:"epsilon" json:"epsilon"`
}

// DefaultConfig is 64-64 ReLU with Adam(0.001).
func DefaultConfig(inputs, outputs int) Config {
	return Config{
		Inputs:       inputs,
		Outputs:      outputs,
		Hidden:       []int{64, 64},
		LearningRate: 0.001,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-7,
	}
}

func (c Config) validate() error {
	if c.Inputs <= 0 || c.Outputs <= 0 {
		return fmt.Errorf("%w: network needs positive inputs/outputs, got %d/%d",
			domain.ErrConstruction, c.Inputs, c.Outputs)
	}
	for _, h := range c.Hidden {
		if h <= 0 {
			return fmt.Errorf("%w: hidden layer width %d", domain.ErrConstruction, h)
		}
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("%w: learning rate %v", domain.ErrConstruction, c.LearningRate)
	}
	return nil
}

// layer is y = act(W x + b) with W of shape (out, in).
type layer struct {
	w *mat.Dense
	b *mat.VecDense

	// Adam moments
	mw, vw *mat.Dense
	mb, vb *mat.VecDense

	relu bool
}

// Network is owned by a single agent; it is not safe for concurrent Fit.
// Predict does not mutate state and may be called concurrently once
// training has stopped.
type Network struct {
	cfg    Config
	layers []*layer
	steps  int
}

// New builds a network with Glorot-uniform weights and zero biases.
func New(cfg Config, seed uint64) (*Network, error) {
	if cfg.Beta1 == 0 && cfg.Beta2 == 0 && cfg.Epsilon == 0 {
		d := DefaultConfig(cfg.Inputs, cfg.Outputs)
		cfg.Beta1, cfg.Beta2, cfg.Epsilon = d.Beta1, d.Beta2, d.Epsilon
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewPCG(seed, seed^0xda3e39cb94b95bdb))
	sizes := append(append([]int{cfg.Inputs}, cfg.Hidden...), cfg.Outputs)

	n := &Network{cfg: cfg}
	for i := 0; i < len(sizes)-1; i++ {
		in, out := sizes[i], sizes[i+1]
		limit := math.Sqrt(6.0 / float64(in+out))
		data := make([]float64, out*in)
		for j := range data {
			data[j] = (rng.Float64()*2 - 1) * limit
		}
		n.layers = append(n.layers, newLayer(mat.NewDense(out, in, data), mat.NewVecDense(out, nil), i < len(sizes)-2))
	}
	return n, nil
}

func newLayer(w *mat.Dense, b *mat.VecDense, relu bool) *layer {
	r, c := w.Dims()
	return &layer{
		w:    w,
		b:    b,
		mw:   mat.NewDense(r, c, nil),
		vw:   mat.NewDense(r, c, nil),
		mb:   mat.NewVecDense(r, nil),
		vb:   mat.NewVecDense(r, nil),
		relu: relu,
	}
}

// Inputs is the expected state width.
func (n *Network) Inputs() int { return n.cfg.Inputs }

// Outputs is the number of Q-values produced.
func (n *Network) Outputs() int { return n.cfg.Outputs }

// Config returns the topology the network was built with.
func (n *Network) Config() Config { return n.cfg }

// Predict returns one Q-value per action. It panics if len(x) != Inputs(),
// the same contract gonum applies to mismatched dimensions.
func (n *Network) Predict(x []float64) []float64 {
	acts := n.forward(x)
	out := acts[len(acts)-1]
	res := make([]float64, out.Len())
	copy(res, out.RawVector().Data)
	return res
}

// forward returns every layer's activation, input included.
func (n *Network) forward(x []float64) []*mat.VecDense {
	if len(x) != n.cfg.Inputs {
		panic(fmt.Sprintf("qnet: input width %d, network expects %d", len(x), n.cfg.Inputs))
	}
	in := make([]float64, len(x))
	copy(in, x)

	acts := make([]*mat.VecDense, 0, len(n.layers)+1)
	a := mat.NewVecDense(len(in), in)
	acts = append(acts, a)
	for _, l := range n.layers {
		r, _ := l.w.Dims()
		z := mat.NewVecDense(r, nil)
		z.MulVec(l.w, a)
		z.AddVec(z, l.b)
		if l.relu {
			raw := z.RawVector().Data
			for i, v := range raw {
				if v < 0 {
					raw[i] = 0
				}
			}
		}
		acts = append(acts, z)
		a = z
	}
	return acts
}

// Fit performs one Adam step on a single sample and returns the MSE before
// the update. The loss is averaged over outputs.
func (n *Network) Fit(x, target []float64) float64 {
	if len(target) != n.cfg.Outputs {
		panic(fmt.Sprintf("qnet: target width %d, network has %d outputs", len(target), n.cfg.Outputs))
	}
	acts := n.forward(x)
	out := acts[len(acts)-1].RawVector().Data

	k := float64(len(out))
	loss := 0.0
	delta := mat.NewVecDense(len(out), nil)
	for i := range out {
		diff := out[i] - target[i]
		loss += diff * diff
		delta.SetVec(i, 2*diff/k)
	}
	loss /= k

	n.steps++
	for li := len(n.layers) - 1; li >= 0; li-- {
		l := n.layers[li]
		prev := acts[li]

		r, c := l.w.Dims()
		gw := mat.NewDense(r, c, nil)
		gw.Outer(1, delta, prev)
		gb := mat.VecDenseCopyOf(delta)

		if li > 0 {
			back := mat.NewVecDense(c, nil)
			back.MulVec(l.w.T(), delta)
			// previous layer is ReLU; its activation is zero exactly where
			// the gradient must be masked
			pa := prev.RawVector().Data
			bd := back.RawVector().Data
			for i := range bd {
				if pa[i] <= 0 {
					bd[i] = 0
				}
			}
			delta = back
		}

		n.adam(l.w.RawMatrix().Data, l.mw.RawMatrix().Data, l.vw.RawMatrix().Data, gw.RawMatrix().Data)
		n.adam(l.b.RawVector().Data, l.mb.RawVector().Data, l.vb.RawVector().Data, gb.RawVector().Data)
	}
	return loss
}

func (n *Network) adam(p, m, v, g []float64) {
	b1, b2 := n.cfg.Beta1, n.cfg.Beta2
	t := float64(n.steps)
	lr := n.cfg.LearningRate * math.Sqrt(1-math.Pow(b2, t)) / (1 - math.Pow(b1, t))
	for i := range p {
		m[i] = b1*m[i] + (1-b1)*g[i]
		v[i] = b2*v[i] + (1-b2)*g[i]*g[i]
		p[i] -= lr * m[i] / (math.Sqrt(v[i]) + n.cfg.Epsilon)
	}
}

type layerSnapshot struct {
	Rows    int       `json:"rows"`
	Cols    int       `json:"cols"`
	Weights []float64 `json:"weights"`
	Bias    []float64 `json:"bias"`
	ReLU    bool      `json:"relu"`
}

type snapshot struct {
	Version int             `json:"version"`
	Config  Config          `json:"config"`
	Layers  []layerSnapshot `json:"layers"`
}

// Encode serialises topology and weights. Optimiser moments are not kept;
// a decoded network is meant for inference or a fresh round of training.
func (n *Network) Encode() ([]byte, error) {
	s := snapshot{Version: formatVersion, Config: n.cfg}
	for _, l := range n.layers {
		r, c := l.w.Dims()
		w := make([]float64, r*c)
		copy(w, l.w.RawMatrix().Data)
		b := make([]float64, r)
		copy(b, l.b.RawVector().Data)
		s.Layers = append(s.Layers, layerSnapshot{Rows: r, Cols: c, Weights: w, Bias: b, ReLU: l.relu})
	}
	return json.Marshal(s)
}

// Decode rebuilds a network from Encode output.
func Decode(data []byte) (*Network, error) {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode q-network: %w", err)
	}
	if s.Version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported artifact version %d", domain.ErrConstruction, s.Version)
	}
	if err := s.Config.validate(); err != nil {
		return nil, err
	}
	if len(s.Layers) != len(s.Config.Hidden)+1 {
		return nil, fmt.Errorf("%w: artifact has %d layers, config implies %d",
			domain.ErrConstruction, len(s.Layers), len(s.Config.Hidden)+1)
	}

	n := &Network{cfg: s.Config}
	in := s.Config.Inputs
	for i, ls := range s.Layers {
		if ls.Rows <= 0 || ls.Cols != in || len(ls.Weights) != ls.Rows*ls.Cols || len(ls.Bias) != ls.Rows {
			return nil, fmt.Errorf("%w: layer %d shape mismatch", domain.ErrConstruction, i)
		}
		n.layers = append(n.layers, newLayer(mat.NewDense(ls.Rows, ls.Cols, ls.Weights), mat.NewVecDense(ls.Rows, ls.Bias), ls.ReLU))
		in = ls.Rows
	}
	if in != s.Config.Outputs {
		return nil, fmt.Errorf("%w: final layer width %d, expected %d outputs", domain.ErrConstruction, in, s.Config.Outputs)
	}
	return n, nil
}
