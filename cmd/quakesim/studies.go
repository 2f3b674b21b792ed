package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/quakesim/internal/automation"
	"github.com/san-kum/quakesim/internal/config"
	"github.com/san-kum/quakesim/internal/experiment"
	"github.com/san-kum/quakesim/internal/export"
	"github.com/san-kum/quakesim/internal/optim"
	"github.com/san-kum/quakesim/internal/storage"
)

var (
	outPath  string
	format   string
	svgScale float64

	trials  int
	jitter  float64
	workers int
	seed    int64

	magMin   float64
	magMax   float64
	magSteps int
	friction []float64
)

func addStudyCommands(root *cobra.Command) {
	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a saved run as json or an svg floor plan",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (stdout if empty)")
	exportCmd.Flags().StringVar(&format, "format", "json", "json, svg or trace-svg")
	exportCmd.Flags().Float64Var(&svgScale, "scale", 40, "svg pixels per metre")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a scripted drill from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	mcCmd := &cobra.Command{
		Use:   "montecarlo [scene]",
		Short: "jitter object placement and measure topple rates",
		Args:  cobra.ExactArgs(1),
		RunE:  runMonteCarlo,
	}
	mcCmd.Flags().Float64VarP(&magnitude, "magnitude", "m", 7, "earthquake magnitude 0-9")
	mcCmd.Flags().IntVar(&trials, "trials", 20, "number of trials")
	mcCmd.Flags().Float64Var(&jitter, "jitter", 0.5, "max placement offset per axis in metres")
	mcCmd.Flags().IntVar(&workers, "workers", 4, "parallel runs")
	mcCmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 = time based)")
	mcCmd.Flags().Float64VarP(&duration, "time", "t", config.DefaultDuration, "duration in seconds")

	sweepCmd := &cobra.Command{
		Use:   "sweep [scene]",
		Short: "run a scene across magnitudes and find where things topple",
		Args:  cobra.ExactArgs(1),
		RunE:  runSweep,
	}
	sweepCmd.Flags().Float64Var(&magMin, "min", 4, "lowest magnitude")
	sweepCmd.Flags().Float64Var(&magMax, "max", 9, "highest magnitude")
	sweepCmd.Flags().IntVar(&magSteps, "steps", 6, "number of magnitudes")
	sweepCmd.Flags().Float64SliceVar(&friction, "floor-friction", nil, "floor friction values to cross with magnitude")
	sweepCmd.Flags().IntVar(&workers, "workers", 4, "parallel runs")
	sweepCmd.Flags().Float64VarP(&duration, "time", "t", config.DefaultDuration, "duration in seconds")

	root.AddCommand(exportCmd, scenarioCmd, mcCmd, sweepCmd)
}

// baseExperiment carries the physics and timing shared by every study run.
func baseExperiment(cfg *config.Config) experiment.Config {
	return experiment.Config{
		Magnitude: cfg.Sim.Magnitude,
		Dt:        cfg.Sim.Dt,
		Duration:  cfg.Sim.Duration,
		Physics:   cfg.Physics,
		Seismic:   cfg.Seismic,
	}
}

func exportRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st := storage.New(cfg.DataDir)
	data, err := st.Export(args[0])
	if err != nil {
		return err
	}

	var out string
	switch format {
	case "json":
		if outPath != "" {
			if err := storage.ExportJSON(outPath, data); err != nil {
				return err
			}
			fmt.Printf("exported %s to %s\n", data.ID, outPath)
			return nil
		}
		return storage.WriteJSON(os.Stdout, data)
	case "svg":
		trace := &storage.Trace{Columns: data.Columns, Times: data.Times, Rows: data.Rows}
		out = export.RoomSVG(export.BodiesAt(data.Detections, trace, len(data.Rows)-1), svgScale)
	case "trace-svg":
		trace := &storage.Trace{Columns: data.Columns, Times: data.Times, Rows: data.Rows}
		out = export.TraceSVG(data.Times, trace.Column("floor_x"), 800, 200, "#00ff00")
	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	if outPath == "" {
		fmt.Println(out)
		return nil
	}
	if err := os.WriteFile(outPath, []byte(out), 0644); err != nil {
		return err
	}
	fmt.Printf("exported %s to %s\n", data.ID, outPath)
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	closeLog, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	st := storage.New(cfg.DataDir)
	if err := st.Init(); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	results, err := automation.RunScenario(ctx, sc, experiment.NewRegistry(), baseExperiment(cfg), st.Save)
	for _, r := range results {
		id := r.RunID
		if id == "" {
			id = "-"
		}
		fmt.Printf("step %d  %-12s run %-24s toppled %.0f  max displacement %.2fm\n",
			r.Step, r.Scene, id, r.Metrics["toppled"], r.Metrics["max_displacement"])
	}
	return err
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	closeLog, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signalContext()
	defer stop()

	base := baseExperiment(cfg)
	if cmd.Flags().Changed("time") {
		base.Duration = duration
	}

	mc := automation.MonteCarloConfig{
		Scene:     args[0],
		Magnitude: magnitude,
		Jitter:    jitter,
		Trials:    trials,
		Workers:   workers,
		Seed:      seed,
	}
	results, err := automation.RunMonteCarlo(ctx, mc, experiment.NewRegistry(), base)
	if err != nil {
		return err
	}

	rates := automation.ToppleRates(results)
	fmt.Printf("%s at magnitude %.1f, %d trials, jitter ±%.2fm\n\n", mc.Scene, mc.Magnitude, mc.Trials, mc.Jitter)
	if len(rates) == 0 {
		fmt.Println("nothing toppled")
		return nil
	}

	ids := make([]string, 0, len(rates))
	for id := range rates {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return rates[ids[i]] > rates[ids[j]] })

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "OBJECT\tTOPPLE RATE")
	for _, id := range ids {
		fmt.Fprintf(w, "%s\t%.0f%%\n", id, rates[id]*100)
	}
	return w.Flush()
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	closeLog, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ds, err := experiment.NewRegistry().GetScene(args[0])
	if err != nil {
		return err
	}
	base := baseExperiment(cfg)
	base.Scene = args[0]
	base.Detections = ds
	if cmd.Flags().Changed("time") {
		base.Duration = duration
	}

	params := []string{optim.ParamMagnitude}
	ranges := [][]float64{optim.Linspace(magMin, magMax, magSteps)}
	if len(friction) > 0 {
		params = append(params, optim.ParamFloorFriction)
		ranges = append(ranges, friction)
	}

	ctx, stop := signalContext()
	defer stop()

	points, err := optim.NewGridSearch(params, ranges).WithWorkers(workers).Run(ctx, base)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(params, "\t"))+"\tTOPPLED\tMAX DISPLACEMENT\tPEAK KE")
	for _, p := range points {
		for _, name := range params {
			fmt.Fprintf(w, "%.2f\t", p.Params[name])
		}
		fmt.Fprintf(w, "%.0f\t%.2fm\t%.1fJ\n", p.Metrics["toppled"], p.Metrics["max_displacement"], p.Metrics["peak_kinetic_energy"])
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if m, ok := optim.Threshold(points, optim.ParamMagnitude, "toppled", 1); ok {
		fmt.Printf("\nfirst topple at magnitude %.1f\n", m)
	} else {
		fmt.Println("\nnothing toppled in range")
	}
	return nil
}
