package ren

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gonum.org/v1/gonum/mat"
)

// Checkpoint is a serialized snapshot of the free parameters, enough to
// reconstruct the model and recompile identical dynamics. Matrices are
// stored row-major; JSON's shortest-float encoding round-trips float64
// exactly, so reload is bit-identical.
type Checkpoint struct {
	Dims Dims    `json:"dims"`
	Opts Options `json:"options"`

	Pstar [][]float64 `json:"pstar"`
	Chi   [][]float64 `json:"chi"`
	X     [][]float64 `json:"x"`
	Y1    [][]float64 `json:"y1"`
	B2    [][]float64 `json:"b2"`
	D12   [][]float64 `json:"d12"`
	C2    [][]float64 `json:"c2"`
	D21   [][]float64 `json:"d21"`
	D22   [][]float64 `json:"d22"`
	Bx    []float64   `json:"bx"`
	Bv    []float64   `json:"bv"`
	By    []float64   `json:"by"`
}

// Checkpoint captures the current parameter values.
func (p *Params) Checkpoint() *Checkpoint {
	return &Checkpoint{
		Dims:  p.Dims,
		Opts:  p.Opts,
		Pstar: matRows(p.Pstar),
		Chi:   matRows(p.Chi),
		X:     matRows(p.X),
		Y1:    matRows(p.Y1),
		B2:    matRows(p.B2),
		D12:   matRows(p.D12),
		C2:    matRows(p.C2),
		D21:   matRows(p.D21),
		D22:   matRows(p.D22),
		Bx:    vecData(p.Bx),
		Bv:    vecData(p.Bv),
		By:    vecData(p.By),
	}
}

// Restore rebuilds the parameters from a checkpoint.
func (c *Checkpoint) Restore() (*Params, error) {
	if err := c.Dims.validate(); err != nil {
		return nil, err
	}
	if err := c.Opts.validate(); err != nil {
		return nil, err
	}
	n, q, m, p := c.Dims.X, c.Dims.V, c.Dims.In, c.Dims.Out

	prm := &Params{Dims: c.Dims, Opts: c.Opts}
	var err error
	load := func(dst **mat.Dense, rows [][]float64, r, cols int, name string) {
		if err != nil {
			return
		}
		*dst, err = rowsMat(rows, r, cols)
		if err != nil {
			err = fmt.Errorf("ren: checkpoint field %s: %w", name, err)
		}
	}
	load(&prm.Pstar, c.Pstar, n, n, "pstar")
	load(&prm.Chi, c.Chi, n, q, "chi")
	load(&prm.X, c.X, n+q, n+q, "x")
	load(&prm.Y1, c.Y1, n, n, "y1")
	load(&prm.B2, c.B2, n, m, "b2")
	load(&prm.D12, c.D12, q, m, "d12")
	load(&prm.C2, c.C2, p, n, "c2")
	load(&prm.D21, c.D21, p, q, "d21")
	load(&prm.D22, c.D22, p, m, "d22")
	if err != nil {
		return nil, err
	}

	if prm.Bx, err = sliceVec(c.Bx, n, "bx"); err != nil {
		return nil, err
	}
	if prm.Bv, err = sliceVec(c.Bv, q, "bv"); err != nil {
		return nil, err
	}
	if prm.By, err = sliceVec(c.By, p, "by"); err != nil {
		return nil, err
	}
	return prm, nil
}

// Load reads a checkpoint and returns a model with freshly compiled
// dynamics; a loaded model is never left with stale derived state.
func Load(r io.Reader) (*Model, error) {
	var c Checkpoint
	dec := json.NewDecoder(r)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("ren: decode checkpoint: %w", err)
	}
	params, err := c.Restore()
	if err != nil {
		return nil, err
	}
	return FromParams(params)
}

func LoadFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

func (c *Checkpoint) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

func (c *Checkpoint) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return c.Write(f)
}

func matRows(m *mat.Dense) [][]float64 {
	r, _ := m.Dims()
	rows := make([][]float64, r)
	for i := 0; i < r; i++ {
		rows[i] = append([]float64(nil), m.RawRowView(i)...)
	}
	return rows
}

func rowsMat(rows [][]float64, r, c int) (*mat.Dense, error) {
	if len(rows) != r {
		return nil, fmt.Errorf("%w: have %d rows, want %d", ErrShapeMismatch, len(rows), r)
	}
	m := mat.NewDense(r, c, nil)
	for i, row := range rows {
		if len(row) != c {
			return nil, fmt.Errorf("%w: row %d has %d entries, want %d", ErrShapeMismatch, i, len(row), c)
		}
		copy(m.RawRowView(i), row)
	}
	return m, nil
}

func vecData(v *mat.VecDense) []float64 {
	return append([]float64(nil), v.RawVector().Data...)
}

func sliceVec(data []float64, n int, name string) (*mat.VecDense, error) {
	if len(data) != n {
		return nil, fmt.Errorf("ren: checkpoint field %s: %w: have %d entries, want %d",
			name, ErrShapeMismatch, len(data), n)
	}
	return mat.NewVecDense(n, append([]float64(nil), data...)), nil
}
