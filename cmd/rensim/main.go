package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/rensim/internal/config"
	"github.com/san-kum/rensim/internal/export"
	"github.com/san-kum/rensim/internal/input"
	"github.com/san-kum/rensim/internal/integrators"
	"github.com/san-kum/rensim/internal/metrics"
	"github.com/san-kum/rensim/internal/ren"
	"github.com/san-kum/rensim/internal/sim"
	"github.com/san-kum/rensim/internal/storage"
	"github.com/san-kum/rensim/internal/tui"
)

var (
	dataDir    string
	configFile string
	preset     string
	checkpoint string
	seed       int64
	horizon    int
	live       bool
	frameRate  int
	// export flags
	outFile string
	phase   bool
	// plot flags
	channel int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rensim",
		Short: "contracting recurrent equilibrium network simulator",
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".rensim", "data directory")

	runCmd := &cobra.Command{
		Use:   "run [name]",
		Short: "simulate a model and store the rollout",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRollout,
	}
	runCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	runCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	runCmd.Flags().StringVar(&checkpoint, "checkpoint", "", "load parameters from checkpoint file")
	runCmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed")
	runCmd.Flags().IntVar(&horizon, "horizon", 0, "override rollout horizon")
	runCmd.Flags().BoolVar(&live, "live", false, "render the rollout live")
	runCmd.Flags().IntVar(&frameRate, "fps", 30, "live view frame rate")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "graph a stored run in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&channel, "channel", 0, "output channel")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "render a stored run to an image file",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVar(&outFile, "out", "trajectory.png", "output image path")
	exportCmd.Flags().BoolVar(&phase, "phase", false, "plot output phase plane instead of time series")

	inspectCmd := &cobra.Command{
		Use:   "inspect [run_id]",
		Short: "show the compiled dynamics of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  inspectRun,
	}

	viewCmd := &cobra.Command{
		Use:   "view",
		Short: "browse stored runs interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.RunBrowser(storage.New(dataDir))
		},
	}

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, exportCmd, inspectCmd, viewCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset %q (have %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if horizon > 0 {
		cfg.Sim.Horizon = horizon
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func buildModel(cfg *config.Config) (*ren.Model, error) {
	if checkpoint != "" {
		return ren.LoadFile(checkpoint)
	}

	variant := ren.Continuous
	if cfg.Model.Variant == "discrete" {
		variant = ren.Discrete
	}
	dims := ren.Dims{
		In:    cfg.Model.DimIn,
		Out:   cfg.Model.DimOut,
		X:     cfg.Model.DimX,
		V:     cfg.Model.DimV,
		Batch: cfg.Model.BatchSize,
	}
	opts := ren.Options{
		PosdefTol:         cfg.Model.PosdefTol,
		ContractionRateLB: cfg.Model.ContractionRateLB,
		WeightInitStd:     cfg.Model.WeightInitStd,
		AddBias:           cfg.Model.AddBias,
		LinearOutput:      cfg.Model.LinearOutput,
		Variant:           variant,
	}
	return ren.New(dims, opts, seed)
}

func buildInput(cfg *config.Config) sim.Input {
	switch cfg.Input.Kind {
	case "constant":
		return input.NewConstant(cfg.Input.Values)
	case "sequence":
		dt := cfg.Sim.Span / float64(cfg.Sim.Horizon-1)
		if cfg.Model.Variant == "discrete" {
			dt = 1
		}
		return input.NewSequence(cfg.Input.Samples, dt)
	case "sine":
		return input.NewSine(cfg.Model.DimIn, cfg.Input.Amplitude, cfg.Input.Frequency, 0)
	default:
		return input.NewZero(cfg.Model.DimIn)
	}
}

func buildIntegrator(name string) sim.Integrator {
	switch name {
	case "euler":
		return integrators.NewEuler()
	case "rk4":
		return integrators.NewRK4()
	default:
		return integrators.NewRK45()
	}
}

func runRollout(cmd *cobra.Command, args []string) error {
	name := "run"
	if len(args) > 0 {
		name = args[0]
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	model, err := buildModel(cfg)
	if err != nil {
		return err
	}

	dims := model.Dynamics().Dims()
	if len(cfg.InitOutput) > 0 {
		if len(cfg.InitOutput) != dims.Out {
			return fmt.Errorf("init_output has %d entries, model output width is %d",
				len(cfg.InitOutput), dims.Out)
		}
		y0 := mat.NewDense(dims.Batch, dims.Out, nil)
		for r := 0; r < dims.Batch; r++ {
			copy(y0.RawRowView(r), cfg.InitOutput)
		}
		if err := model.SetStateFromOutput(y0); err != nil {
			return err
		}
	}

	simCfg := sim.DefaultConfig()
	simCfg.Horizon = cfg.Sim.Horizon
	simCfg.Span = cfg.Sim.Span
	simCfg.Dt = cfg.Sim.Dt
	simCfg.Adaptive = cfg.Sim.Adaptive
	simCfg.Tolerance = cfg.Sim.Tolerance
	simCfg.Discrete = model.Variant() == ren.Discrete

	simulator := sim.New(model, model, buildIntegrator(cfg.Sim.Integrator), buildInput(cfg))
	simulator.AddMetric(metrics.NewContraction(model.Dynamics().Metric(), dims.X))
	simulator.AddMetric(metrics.NewInputEffort())

	var renderer *tui.LiveRenderer
	if live {
		renderer = tui.NewLiveRenderer(model, frameRate)
		renderer.Start()
		defer renderer.Stop()
		simulator.AddObserver(renderer)
	}

	result, err := simulator.Run(context.Background(), model.State(), simCfg)
	if err != nil {
		return err
	}

	store := storage.New(dataDir)
	if err := store.Init(); err != nil {
		return err
	}
	runID, err := store.Save(name, seed, model, result)
	if err != nil {
		return err
	}

	fmt.Printf("run %s: %d samples, %d integrator steps\n", runID, len(result.Times), result.StepsTaken)
	for mname, v := range result.Metrics {
		fmt.Printf("  %s: %.6g\n", mname, v)
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := storage.New(dataDir).List()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tVARIANT\tDIMS\tHORIZON\tWHEN")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\tx=%d v=%d b=%d\t%d\t%s\n",
			run.ID, run.Variant, run.Dims.X, run.Dims.V, run.Dims.Batch,
			run.Horizon, run.Timestamp.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	_, outputs, err := storage.New(dataDir).LoadOutputs(args[0])
	if err != nil {
		return err
	}
	if len(outputs) == 0 {
		return fmt.Errorf("run %s has no outputs", args[0])
	}
	if channel >= len(outputs[0]) {
		return fmt.Errorf("channel %d out of range, run has %d", channel, len(outputs[0]))
	}

	series := make([]float64, len(outputs))
	for k, row := range outputs {
		series[k] = row[channel]
	}
	fmt.Println(asciigraph.Plot(series,
		asciigraph.Height(15),
		asciigraph.Width(72),
		asciigraph.Caption(fmt.Sprintf("%s channel %d", args[0], channel))))
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	store := storage.New(dataDir)
	times, outputs, err := store.LoadOutputs(args[0])
	if err != nil {
		return err
	}
	if phase {
		meta, err := store.LoadMetadata(args[0])
		if err != nil {
			return err
		}
		if meta.Dims.Out < 2 {
			return fmt.Errorf("phase plane needs at least 2 output channels")
		}
		if err := export.PhasePlane(outputs, meta.Dims.Out, 0, 1, outFile); err != nil {
			return err
		}
	} else if err := export.OutputTrajectories(times, outputs, outFile); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", outFile)
	return nil
}

func inspectRun(cmd *cobra.Command, args []string) error {
	model, err := storage.New(dataDir).LoadModel(args[0])
	if err != nil {
		return err
	}
	dyn := model.Dynamics()
	dims := dyn.Dims()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "variant\t%s\n", model.Variant())
	fmt.Fprintf(w, "dims\tin=%d out=%d x=%d v=%d batch=%d\n",
		dims.In, dims.Out, dims.X, dims.V, dims.Batch)
	fmt.Fprintf(w, "rate lower bound\t%g\n", dyn.Opts().ContractionRateLB)
	fmt.Fprintf(w, "|A|\t%.6g\n", mat.Norm(dyn.A(), 2))
	fmt.Fprintf(w, "|B1|\t%.6g\n", mat.Norm(dyn.B1(), 2))
	fmt.Fprintf(w, "|C1|\t%.6g\n", mat.Norm(dyn.C1(), 2))
	fmt.Fprintf(w, "|D11|\t%.6g\n", mat.Norm(dyn.D11(), 2))

	// invariant checks: P symmetric positive definite, D11 strictly lower
	p := dyn.Metric()
	symP := mat.NewSymDense(dims.X, nil)
	for i := 0; i < dims.X; i++ {
		for j := i; j < dims.X; j++ {
			symP.SetSym(i, j, p.At(i, j))
		}
	}
	var eig mat.EigenSym
	if eig.Factorize(symP, false) {
		vals := eig.Values(nil)
		minEig := math.Inf(1)
		for _, v := range vals {
			minEig = math.Min(minEig, v)
		}
		fmt.Fprintf(w, "min eig(P)\t%.6g\n", minEig)
	}

	strict := true
	d11 := dyn.D11()
	for i := 0; i < dims.V && strict; i++ {
		for j := i; j < dims.V; j++ {
			if d11.At(i, j) != 0 {
				strict = false
				break
			}
		}
	}
	fmt.Fprintf(w, "D11 strictly lower\t%v\n", strict)
	return w.Flush()
}
