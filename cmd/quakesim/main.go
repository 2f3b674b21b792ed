package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/quakesim/internal/config"
	"github.com/san-kum/quakesim/internal/log"
)

var (
	configFile string
	preset     string
	dataDir    string
	logLevel   string

	serverURL    string
	listenAddr   string
	pollInterval time.Duration

	analyzer       string
	detectInterval time.Duration
	backendURL     string
	cameraPath     string
	cameraURL      string
	embed          bool

	magnitude float64
	dt        float64
	duration  float64
	column    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "quakesim",
		Short:         "earthquake preparedness simulator for a real room",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "use a named preset")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultDataDir, "run data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", config.DefaultServerURL, "state server base URL")
	rootCmd.PersistentFlags().DurationVar(&pollInterval, "poll", config.DefaultPollInterval, "sync poll interval")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "run the shared session state server",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&listenAddr, "listen", config.DefaultListen, "listen address")

	sensorCmd := &cobra.Command{
		Use:   "sensor",
		Short: "capture frames, detect furniture and publish it",
		RunE:  runSensor,
	}
	sensorCmd.Flags().StringVar(&analyzer, "analyzer", "gemini", "gemini, backend or mock")
	sensorCmd.Flags().DurationVar(&detectInterval, "interval", config.DefaultDetectEvery, "capture interval")
	sensorCmd.Flags().StringVar(&backendURL, "backend", "", "analyze service URL")
	sensorCmd.Flags().StringVar(&cameraPath, "image", "", "still image to analyze")
	sensorCmd.Flags().StringVar(&cameraURL, "camera", "", "snapshot URL of an IP camera")
	sensorCmd.Flags().BoolVar(&embed, "embed", false, "serve session state from this process")
	sensorCmd.Flags().StringVar(&listenAddr, "listen", config.DefaultListen, "listen address with --embed")

	controllerCmd := &cobra.Command{
		Use:   "controller",
		Short: "terminal dashboard that sets the earthquake magnitude",
		RunE:  runController,
	}

	runCmd := &cobra.Command{
		Use:   "run [scene]",
		Short: "simulate a scene offline and save the run",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	runCmd.Flags().Float64VarP(&magnitude, "magnitude", "m", 7, "earthquake magnitude 0-9")
	runCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "time step")
	runCmd.Flags().Float64VarP(&duration, "time", "t", config.DefaultDuration, "duration in seconds")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a saved run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&column, "column", "", "plot only this column, e.g. tv-1_tilt")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency analysis of a saved run's floor motion",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list configuration presets",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Printf("%-10s magnitude [%.0f, %.0f]  analyzer %-8s camera %s\n",
					name, p.Magnitude.Min, p.Magnitude.Max, p.Detect.Analyzer, p.Camera.Source)
			}
		},
	}

	scenesCmd := &cobra.Command{
		Use:   "scenes",
		Short: "list built-in scenes for offline runs",
		RunE:  listScenes,
	}

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "stream session state from the server",
		RunE:  watchState,
	}

	rootCmd.AddCommand(serveCmd, sensorCmd, controllerCmd, runCmd, listCmd, plotCmd,
		analyzeCmd, presetsCmd, scenesCmd, watchCmd)
	addStudyCommands(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig resolves preset, then file, then explicitly set flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("data") {
		cfg.DataDir = dataDir
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("server") {
		cfg.Sync.ServerURL = serverURL
	}
	if flags.Changed("poll") {
		cfg.Sync.PollInterval = pollInterval
	}
	if flags.Changed("listen") {
		cfg.Sync.Listen = listenAddr
	}
	if flags.Changed("analyzer") {
		cfg.Detect.Analyzer = analyzer
	}
	if flags.Changed("interval") {
		cfg.Detect.Interval = detectInterval
	}
	if flags.Changed("backend") {
		cfg.Detect.BackendURL = backendURL
	}
	if flags.Changed("image") {
		cfg.Camera = config.CameraConfig{Source: "file", Path: cameraPath}
	}
	if flags.Changed("camera") {
		cfg.Camera = config.CameraConfig{Source: "http", URL: cameraURL}
	}
	if flags.Changed("magnitude") {
		cfg.Sim.Magnitude = magnitude
	}
	if flags.Changed("dt") {
		cfg.Sim.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Sim.Duration = duration
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging writes to cfg.Log.File when set, stderr otherwise. The
// returned func closes the file.
func setupLogging(cfg *config.Config) (func(), error) {
	if cfg.Log.File == "" {
		log.Init(cfg.Log.Level)
		return func() {}, nil
	}
	f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	log.Setup(cfg.Log.Level, f)
	return func() { f.Close() }, nil
}
