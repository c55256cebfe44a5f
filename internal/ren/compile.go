package ren

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Compile derives the constrained dynamics matrices from the free
// parameters. It must run once after every external parameter mutation
// and before the next forward call; the returned snapshot is immutable.
//
// The construction is unconditional: for any parameter values the result
// satisfies the contraction certificate with rate at least
// ContractionRateLB. P and H are built as M·Mᵀ + ε·I, so both are
// symmetric positive definite whenever ε > 0, which Options validation
// guarantees; the inversions below cannot fail.
func (p *Params) Compile() (*Dynamics, error) {
	if err := p.Dims.validate(); err != nil {
		return nil, err
	}
	if err := p.Opts.validate(); err != nil {
		return nil, err
	}

	n, q := p.Dims.X, p.Dims.V
	eps := p.Opts.PosdefTol

	// P = ½·Pstar·Pstarᵀ + ε·I
	P := mat.NewDense(n, n, nil)
	P.Mul(p.Pstar, p.Pstar.T())
	P.Scale(0.5, P)
	addToDiag(P, eps)

	// H = X·Xᵀ + ε·I, partitioned [H1 H2; H2ᵀ H4]
	H := mat.NewDense(n+q, n+q, nil)
	H.Mul(p.X, p.X.T())
	addToDiag(H, eps)
	H1 := H.Slice(0, n, 0, n)
	H2 := H.Slice(0, n, n, n+q)
	H4 := H.Slice(n, n+q, n, n+q)

	// Y = -½·(H1 + c·P + Y1 - Y1ᵀ). The skew term carries no energy in
	// the quadratic form; it steers A without touching the certificate.
	Y := mat.NewDense(n, n, nil)
	Y.Scale(p.Opts.ContractionRateLB, P)
	Y.Add(Y, H1)
	skew := mat.NewDense(n, n, nil)
	skew.Sub(p.Y1, p.Y1.T())
	Y.Add(Y, skew)
	Y.Scale(-0.5, Y)

	// Λ = ½·diag(H4), strictly positive since H ≻ 0.
	lambda := make([]float64, q)
	for i := 0; i < q; i++ {
		lambda[i] = 0.5 * H4.At(i, i)
	}

	var pinv mat.Dense
	if err := pinv.Inverse(P); err != nil {
		return nil, fmt.Errorf("ren: invert state metric: %w", err)
	}

	A := mat.NewDense(n, n, nil)
	A.Mul(&pinv, Y)

	// D11 = -Λ⁻¹·stril(H4): strictly lower triangular, which is what
	// makes the implicit equation solvable by forward substitution.
	D11 := mat.NewDense(q, q, nil)
	for i := 1; i < q; i++ {
		for j := 0; j < i; j++ {
			D11.Set(i, j, -H4.At(i, j)/lambda[i])
		}
	}

	// C1 = Λ⁻¹·Chiᵀ
	C1 := mat.NewDense(q, n, nil)
	for i := 0; i < q; i++ {
		for j := 0; j < n; j++ {
			C1.Set(i, j, p.Chi.At(j, i)/lambda[i])
		}
	}

	// B1 = P⁻¹·(-H2 - Chi)
	Z := mat.NewDense(n, q, nil)
	Z.Add(H2, p.Chi)
	Z.Scale(-1, Z)
	B1 := mat.NewDense(n, q, nil)
	B1.Mul(&pinv, Z)

	return &Dynamics{
		dims: p.Dims,
		opts: p.Opts,
		p:    P,
		a:    A,
		b1:   B1,
		c1:   C1,
		d11:  D11,
		b2:   mat.DenseCopyOf(p.B2),
		d12:  mat.DenseCopyOf(p.D12),
		c2:   mat.DenseCopyOf(p.C2),
		d21:  mat.DenseCopyOf(p.D21),
		d22:  mat.DenseCopyOf(p.D22),
		bx:   mat.VecDenseCopyOf(p.Bx),
		bv:   mat.VecDenseCopyOf(p.Bv),
		by:   mat.VecDenseCopyOf(p.By),
	}, nil
}

func addToDiag(m *mat.Dense, v float64) {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		m.Set(i, i, m.At(i, i)+v)
	}
}
