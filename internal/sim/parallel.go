package sim

import (
	"context"
	"sync"
)

// Ensemble runs the same rollout from several initial conditions, one
// goroutine each. The shared dynamics is read-only during a Run, so the
// runs only need separate metric instances, which the factory provides.
type Ensemble struct {
	build func() *Simulator
}

func NewEnsemble(build func() *Simulator) *Ensemble {
	return &Ensemble{build: build}
}

func (e *Ensemble) Run(ctx context.Context, inits []State, cfg Config) ([]*Result, error) {
	results := make([]*Result, len(inits))
	errs := make([]error, len(inits))

	var wg sync.WaitGroup
	for i := range inits {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = e.build().Run(ctx, inits[idx], cfg)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
