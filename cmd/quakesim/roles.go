package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/quakesim/internal/camera"
	"github.com/san-kum/quakesim/internal/config"
	"github.com/san-kum/quakesim/internal/detect"
	"github.com/san-kum/quakesim/internal/experiment"
	"github.com/san-kum/quakesim/internal/httpc"
	"github.com/san-kum/quakesim/internal/log"
	"github.com/san-kum/quakesim/internal/scene"
	"github.com/san-kum/quakesim/internal/session"
	"github.com/san-kum/quakesim/internal/stateserver"
	"github.com/san-kum/quakesim/internal/syncproto"
	"github.com/san-kum/quakesim/internal/tui"
	"github.com/san-kum/quakesim/internal/vision"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, args []string) error {
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

	store := session.NewStore(cfg.Magnitude.Range(), cfg.Magnitude.Initial)
	return stateserver.New(store, log.With("component", "stateserver")).ListenAndServe(ctx, cfg.Sync.Listen)
}

func runSensor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	closeLog, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	an, err := newAnalyzer(cfg)
	if err != nil {
		return err
	}
	src := newSource(cfg)

	ctx, stop := signalContext()
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	var client session.Client = session.NewRemote(cfg.Sync.ServerURL, httpc.NewClient(httpc.DefaultTimeout))
	if embed {
		store := session.NewStore(cfg.Magnitude.Range(), cfg.Magnitude.Initial)
		srv := stateserver.New(store, log.With("component", "stateserver"))
		g.Go(func() error { return srv.ListenAndServe(ctx, cfg.Sync.Listen) })
		client = session.NewLocal(store)
	}

	node := syncproto.NewNode(syncproto.Sensor, client,
		syncproto.WithInterval(cfg.Sync.PollInterval),
		syncproto.WithRange(cfg.Magnitude.Range()),
		syncproto.WithMagnitude(cfg.Magnitude.Initial),
		syncproto.WithLogger(log.With("component", "sync", "role", "sensor")),
	)
	node.OnChange(func(s syncproto.Snapshot) {
		log.Debug("sensor state", "magnitude", s.Magnitude, "detections", len(s.Detections))
	})

	loop := detect.New(src, an, node,
		detect.WithInterval(cfg.Detect.Interval),
		detect.WithTimeout(cfg.Detect.Timeout),
	)

	g.Go(func() error { return node.Run(ctx) })
	g.Go(func() error {
		err := loop.Run(ctx)
		loop.Wait()
		return err
	})

	log.Info("sensor started", "analyzer", cfg.Detect.Analyzer, "camera", cfg.Camera.Source, "embed", embed)
	return g.Wait()
}

func newAnalyzer(cfg *config.Config) (vision.Analyzer, error) {
	client := httpc.NewClient(cfg.Detect.Timeout)
	switch cfg.Detect.Analyzer {
	case "gemini":
		key := cfg.APIKey()
		if key == "" {
			return nil, fmt.Errorf("%w: set %s", vision.ErrNoAPIKey, cfg.Detect.APIKeyEnv)
		}
		g := vision.NewGemini(key)
		if cfg.Detect.GeminiModel != "" {
			g.Model = cfg.Detect.GeminiModel
		}
		g.Client = client
		return g, nil
	case "backend":
		if cfg.Detect.BackendURL == "" {
			return nil, errors.New("backend analyzer needs --backend or detect.backend_url")
		}
		return &vision.Backend{URL: cfg.Detect.BackendURL, Client: client}, nil
	case "mock":
		name := cfg.Sim.Scene
		if name == "" {
			name = "living_room"
		}
		ds, err := experiment.NewRegistry().GetScene(name)
		if err != nil {
			return nil, err
		}
		return &vision.Mock{AnalyzeFunc: func(ctx context.Context, _ camera.Frame, _ float64) ([]scene.Detection, error) {
			return scene.Clone(ds), ctx.Err()
		}}, nil
	}
	return nil, fmt.Errorf("unknown analyzer: %s", cfg.Detect.Analyzer)
}

func newSource(cfg *config.Config) camera.Source {
	if cfg.Detect.Analyzer == "mock" {
		return camera.Static{Frame: camera.Frame{MIME: "image/jpeg"}}
	}
	if cfg.Camera.Source == "http" {
		return camera.HTTP{URL: cfg.Camera.URL, Client: httpc.NewClient(httpc.DefaultTimeout)}
	}
	return camera.File{Path: cfg.Camera.Path}
}

func runController(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// the dashboard owns the terminal
	if cfg.Log.File == "" {
		cfg.Log.File = "quakesim-controller.log"
	}
	closeLog, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signalContext()
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	client := session.NewRemote(cfg.Sync.ServerURL, httpc.NewClient(httpc.DefaultTimeout))
	node := syncproto.NewNode(syncproto.Controller, client,
		syncproto.WithInterval(cfg.Sync.PollInterval),
		syncproto.WithRange(cfg.Magnitude.Range()),
		syncproto.WithMagnitude(cfg.Magnitude.Initial),
		syncproto.WithLogger(log.With("component", "sync", "role", "controller")),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return node.Run(ctx) })
	g.Go(func() error {
		defer cancel()
		return tui.Run(ctx, tui.Config{
			Node:    node,
			Range:   cfg.Magnitude.Range(),
			Physics: cfg.Physics,
			Seismic: cfg.Seismic,
			Dt:      cfg.Sim.Dt,
		})
	})
	return g.Wait()
}

func watchState(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	u, err := url.Parse(cfg.Sync.ServerURL)
	if err != nil {
		return fmt.Errorf("parse server url: %w", err)
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"

	ctx, stop := signalContext()
	defer stop()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		var st session.State
		if err := json.Unmarshal(data, &st); err != nil {
			log.Warn("bad state message", "error", err)
			continue
		}
		names := make([]string, len(st.Detections))
		for i, d := range st.Detections {
			names[i] = d.DisplayName()
		}
		fmt.Printf("v%-4d magnitude %.1f  detections %d %v\n", st.Version, st.Magnitude, len(st.Detections), names)
	}
}
