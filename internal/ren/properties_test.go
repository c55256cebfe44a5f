package ren_test

import (
	"fmt"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/rensim/internal/ren"
)

// Structural properties that must hold for every parameter draw, not
// just hand-picked ones. Each property runs over a spread of seeds and
// shapes.
var _ = Describe("compiled dynamics", func() {
	dimCases := []ren.Dims{
		{In: 1, Out: 1, X: 2, V: 2, Batch: 1},
		{In: 2, Out: 1, X: 4, V: 6, Batch: 1},
		{In: 3, Out: 4, X: 8, V: 3, Batch: 2},
	}
	seeds := []int64{1, 2, 12345, 987654321}

	compile := func(d ren.Dims, seed int64) *ren.Dynamics {
		params, err := ren.NewParams(d, ren.DefaultOptions(), seed)
		Expect(err).NotTo(HaveOccurred())
		dyn, err := params.Compile()
		Expect(err).NotTo(HaveOccurred())
		return dyn
	}

	for _, d := range dimCases {
		for _, seed := range seeds {
			d, seed := d, seed
			label := fmt.Sprintf("n=%d q=%d seed=%d", d.X, d.V, seed)

			It("keeps the metric positive definite ("+label+")", func() {
				dyn := compile(d, seed)
				p := dyn.Metric()

				sym := mat.NewSymDense(d.X, nil)
				for i := 0; i < d.X; i++ {
					for j := i; j < d.X; j++ {
						Expect(p.At(i, j)).To(BeNumerically("~", p.At(j, i), 1e-12))
						sym.SetSym(i, j, p.At(i, j))
					}
				}

				var chol mat.Cholesky
				Expect(chol.Factorize(sym)).To(BeTrue())
			})

			It("keeps the feedback gain strictly lower triangular ("+label+")", func() {
				dyn := compile(d, seed)
				d11 := dyn.D11()
				for i := 0; i < d.V; i++ {
					for j := i; j < d.V; j++ {
						Expect(d11.At(i, j)).To(BeZero())
					}
				}
			})

			It("resolves the implicit feedback exactly ("+label+")", func() {
				dyn := compile(d, seed)

				b := d.Batch
				x := mat.NewDense(b, d.X, nil)
				u := mat.NewDense(b, d.In, nil)
				for r := 0; r < b; r++ {
					for j := 0; j < d.X; j++ {
						x.Set(r, j, math.Sin(float64(seed)+float64(r*d.X+j)))
					}
				}

				w, err := dyn.Equilibrium(x, u)
				Expect(err).NotTo(HaveOccurred())

				// Substituting w back into the fixed-point equation must
				// reproduce it: under zero input, w = tanh(C1·x + D11·w).
				c1 := dyn.C1()
				d11 := dyn.D11()
				for r := 0; r < b; r++ {
					for i := 0; i < d.V; i++ {
						v := 0.0
						for j := 0; j < d.X; j++ {
							v += c1.At(i, j) * x.At(r, j)
						}
						for j := 0; j < d.V; j++ {
							v += d11.At(i, j) * w.At(r, j)
						}
						Expect(w.At(r, i)).To(BeNumerically("~", math.Tanh(v), 1e-12))
					}
				}
			})
		}
	}

	It("reproduces the requested output after state initialization", func() {
		for _, seed := range seeds {
			dyn := compile(ren.Dims{In: 1, Out: 2, X: 6, V: 2, Batch: 1}, seed)

			y0 := mat.NewDense(1, 2, []float64{math.Sin(float64(seed)), 0.5})
			x0, err := dyn.InitStateFromOutput(y0)
			Expect(err).NotTo(HaveOccurred())

			u := mat.NewDense(1, 1, nil)
			y, err := dyn.Output(x0, u, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(y.At(0, 0)).To(BeNumerically("~", y0.At(0, 0), 1e-9))
			Expect(y.At(0, 1)).To(BeNumerically("~", y0.At(0, 1), 1e-9))
		}
	})
})

var _ = Describe("checkpointing", func() {
	It("recompiles identical dynamics after a round trip", func() {
		for _, seed := range []int64{3, 99, 4242} {
			params, err := ren.NewParams(ren.Dims{In: 2, Out: 2, X: 5, V: 4, Batch: 1}, ren.DefaultOptions(), seed)
			Expect(err).NotTo(HaveOccurred())

			restored, err := params.Checkpoint().Restore()
			Expect(err).NotTo(HaveOccurred())

			a, err := params.Compile()
			Expect(err).NotTo(HaveOccurred())
			b, err := restored.Compile()
			Expect(err).NotTo(HaveOccurred())

			n := params.Dims.X
			aa, ba := a.A(), b.A()
			for i := 0; i < n; i++ {
				for j := 0; j < n; j++ {
					Expect(ba.At(i, j)).To(Equal(aa.At(i, j)))
				}
			}
		}
	})
})
