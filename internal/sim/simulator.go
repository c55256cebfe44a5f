package sim

import (
	"context"
	"fmt"
)

// Simulator rolls a model forward across a horizon, producing the state
// trajectory and the matching output trajectory.
//
// The integrator is only consulted for continuous rollouts; discrete
// rollouts apply the model's own recurrence. The compiled dynamics behind
// dyn must not change for the duration of a Run.
type Simulator struct {
	dyn       Dynamics
	out       OutputMapper
	integ     Integrator
	input     Input
	metrics   []Metric
	observers []Observer
}

func New(dyn Dynamics, out OutputMapper, integ Integrator, in Input) *Simulator {
	return &Simulator{
		dyn:   dyn,
		out:   out,
		integ: integ,
		input: in,
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

func (s *Simulator) Run(ctx context.Context, x0 State, cfg Config) (*Result, error) {
	if err := s.validate(x0, cfg); err != nil {
		return nil, err
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	times := s.grid(cfg)
	result := &Result{
		States:   make([]State, 0, cfg.Horizon),
		Outputs:  make([][]float64, 0, cfg.Horizon),
		Controls: make([]Control, 0, cfg.Horizon),
		Times:    times,
		Metrics:  make(map[string]float64),
	}

	x := x0.Clone()
	for k := 0; k < cfg.Horizon; k++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		t := times[k]
		u := s.input.At(x, t)

		for _, m := range s.metrics {
			m.Observe(x, u, t)
		}
		for _, obs := range s.observers {
			obs.OnStep(x, u, t)
		}

		result.States = append(result.States, x.Clone())
		result.Controls = append(result.Controls, u)
		if s.out != nil {
			result.Outputs = append(result.Outputs, s.out.Output(x, u))
		}

		if k == cfg.Horizon-1 {
			break
		}

		var err error
		if cfg.Discrete {
			x = s.dyn.(Stepper).Next(x, u, t)
			result.StepsTaken++
		} else {
			x, err = s.advance(x, t, times[k+1], cfg, &result.StepsTaken)
		}
		if err != nil {
			return result, err
		}
		if cfg.ValidateState && !x.IsValid() {
			return result, SimError{Time: t, Step: k, Message: "invalid state (NaN/Inf)"}
		}
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result, nil
}

// advance integrates from t0 to t1, sub-stepping as needed. The final
// substep is clamped so the trajectory lands exactly on the grid point.
func (s *Simulator) advance(x State, t0, t1 float64, cfg Config, steps *int) (State, error) {
	adaptive, isAdaptive := s.integ.(AdaptiveIntegrator)
	t := t0
	dt := cfg.Dt

	for t < t1-1e-12 {
		if t+dt > t1 {
			dt = t1 - t
		}
		u := s.input.At(x, t)

		if cfg.Adaptive && isAdaptive {
			newX, dtNext, err := adaptive.StepAdaptive(s.dyn, x, u, t, dt, cfg.Tolerance)
			if err != nil {
				return x, err
			}
			x = newX
			t += dt
			*steps++
			if dtNext < cfg.MinDt {
				return x, ErrStepTooSmall
			}
			if dtNext > cfg.MaxDt {
				dtNext = cfg.MaxDt
			}
			dt = dtNext
			continue
		}

		x = s.integ.Step(s.dyn, x, u, t, dt)
		t += dt
		*steps++
	}
	return x, nil
}

func (s *Simulator) grid(cfg Config) []float64 {
	times := make([]float64, cfg.Horizon)
	if cfg.Discrete {
		for k := range times {
			times[k] = float64(k)
		}
		return times
	}
	step := cfg.Span / float64(cfg.Horizon-1)
	for k := range times {
		times[k] = float64(k) * step
	}
	times[cfg.Horizon-1] = cfg.Span
	return times
}

func (s *Simulator) validate(x0 State, cfg Config) error {
	if cfg.Horizon < 2 {
		return fmt.Errorf("horizon must be at least 2, got %d", cfg.Horizon)
	}
	if len(x0) != s.dyn.StateDim() {
		return fmt.Errorf("initial state has %d entries, dynamics expects %d", len(x0), s.dyn.StateDim())
	}
	if s.input == nil {
		return fmt.Errorf("input signal must be provided")
	}
	if cfg.Discrete {
		if _, ok := s.dyn.(Stepper); !ok {
			return ErrNotStepper
		}
		return nil
	}
	if s.integ == nil {
		return fmt.Errorf("continuous rollout requires an integrator")
	}
	if cfg.Span <= 0 {
		return fmt.Errorf("span must be positive, got %f", cfg.Span)
	}
	if cfg.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %f", cfg.Dt)
	}
	if cfg.Adaptive && cfg.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive for adaptive stepping")
	}
	return nil
}
