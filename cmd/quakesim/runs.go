package main

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/quakesim/internal/analysis"
	"github.com/san-kum/quakesim/internal/experiment"
	"github.com/san-kum/quakesim/internal/log"
	"github.com/san-kum/quakesim/internal/metrics"
	"github.com/san-kum/quakesim/internal/storage"
)

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	closeLog, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	name := cfg.Sim.Scene
	if len(args) > 0 {
		name = args[0]
	}
	if name == "" {
		name = "living_room"
	}

	ds, err := experiment.NewRegistry().GetScene(name)
	if err != nil {
		return err
	}

	expCfg := experiment.Config{
		Scene:      name,
		Detections: ds,
		Magnitude:  cfg.Sim.Magnitude,
		Dt:         cfg.Sim.Dt,
		Duration:   cfg.Sim.Duration,
		Physics:    cfg.Physics,
		Seismic:    cfg.Seismic,
	}

	exp := experiment.New(expCfg)
	if err := exp.Setup(metrics.Defaults()); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	fmt.Printf("simulating %s at magnitude %.1f for %.1fs (%d objects)\n",
		name, expCfg.Magnitude, expCfg.Duration, len(ds))

	res, err := exp.Run(ctx)
	if err != nil {
		return err
	}

	st := storage.New(cfg.DataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(expCfg, res)
	if err != nil {
		return err
	}
	log.Info("run saved", "id", runID, "frames", len(res.Frames))

	fmt.Printf("\nrun: %s\n\n", runID)
	printMetrics(res.Metrics)

	if n := len(res.Frames); n > 0 {
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "OBJECT\tCATEGORY\tMOVED\tTILT\tSTATUS")
		first, last := res.Frames[0].Bodies, res.Frames[n-1].Bodies
		for i, b := range last {
			status := "standing"
			if b.Toppled() {
				status = "toppled"
			}
			moved := b.Position.Sub(first[i].Position).Horizontal()
			fmt.Fprintf(w, "%s\t%s\t%.2fm\t%.0f°\t%s\n",
				b.ObjectID, b.Category, moved, b.Tilt()*180/math.Pi, status)
		}
		w.Flush()
	}
	return nil
}

func printMetrics(m map[string]float64) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-24s %.4f\n", name, m[name])
	}
}

func listRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st := storage.New(cfg.DataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENE\tTIME\tMAG\tDURATION\tOBJECTS\tTOPPLED")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1f\t%.1fs\t%d\t%.0f\n",
			run.ID,
			run.Scene,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Magnitude,
			run.Duration,
			len(run.Detections),
			run.Metrics["toppled"],
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	runID := args[0]

	st := storage.New(cfg.DataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	trace, err := st.LoadStates(runID)
	if err != nil {
		return err
	}
	if len(trace.Rows) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scene: %s  magnitude %.1f\n", meta.Scene, meta.Magnitude)
	fmt.Printf("samples: %d\n\n", len(trace.Rows))

	cols := []string{"floor_x"}
	if column != "" {
		cols = []string{column}
	} else {
		for _, c := range trace.Columns {
			if strings.HasSuffix(c, "_tilt") {
				cols = append(cols, c)
			}
		}
	}

	for _, c := range cols {
		data := trace.Column(c)
		if data == nil {
			return fmt.Errorf("unknown column %q (available: %v)", c, trace.Columns)
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(c+" vs time"),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	runID := args[0]

	st := storage.New(cfg.DataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	trace, err := st.LoadStates(runID)
	if err != nil {
		return err
	}
	floor := trace.Column("floor_x")
	if len(floor) < 2 {
		return fmt.Errorf("no data")
	}

	fmt.Printf("frequency analysis: %s\n", meta.ID)
	fmt.Printf("scene: %s  magnitude %.1f\n\n", meta.Scene, meta.Magnitude)

	spec := analysis.PowerSpectrum(floor, meta.Dt)
	plotData := spec.Power[:max(2, len(spec.Power)/4)]
	graph := asciigraph.Plot(plotData,
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.Caption("floor power spectrum (x)"),
	)
	fmt.Println(graph)
	fmt.Println()

	freq := analysis.DominantFrequency(floor, meta.Dt)
	want := cfg.Seismic.Frequency(meta.Magnitude) / (2 * math.Pi)
	fmt.Printf("dominant frequency: %.3f hz (model %.3f hz)\n", freq, want)
	if freq > 0 {
		fmt.Printf("period: %.3f s\n", 1.0/freq)
	}
	fmt.Printf("floor rms: %.4f m\n", analysis.RMS(floor))
	return nil
}

func listScenes(cmd *cobra.Command, args []string) error {
	r := experiment.NewRegistry()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCENE\tOBJECTS")
	for _, name := range r.ListScenes() {
		ds, err := r.GetScene(name)
		if err != nil {
			return err
		}
		labels := make([]string, len(ds))
		for i, d := range ds {
			labels[i] = d.DisplayName()
		}
		fmt.Fprintf(w, "%s\t%s\n", name, strings.Join(labels, ", "))
	}
	return w.Flush()
}
