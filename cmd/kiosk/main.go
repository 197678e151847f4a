package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/kiosk/internal/api"
	"github.com/your-org/kiosk/internal/api/ws"
	"github.com/your-org/kiosk/internal/camera"
	"github.com/your-org/kiosk/internal/config"
	"github.com/your-org/kiosk/internal/gate"
	"github.com/your-org/kiosk/internal/loop"
	"github.com/your-org/kiosk/internal/observability"
	"github.com/your-org/kiosk/internal/roster"
	"github.com/your-org/kiosk/internal/sensorbus"
	"github.com/your-org/kiosk/internal/storage"
	"github.com/your-org/kiosk/internal/vision"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting kiosk", "camera", cfg.Camera.Name, "port", cfg.Server.Port)

	// ONNX Runtime carries all three detectors; without it the kiosk is blind.
	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Error("onnx runtime init", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database, storage.ReplayScope(cfg.Loop.ReplayScope))
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to MinIO
	photos, err := storage.NewPhotoStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := photos.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to the sensor bus. Unlike in-loop bus hiccups, an unreachable
	// broker at startup is fatal.
	bus, err := sensorbus.Connect(cfg.NATS.URL, cfg.NATS.OpTimeout)
	if err != nil {
		slog.Error("connect to sensor bus", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	if err := bus.EnsureStream(context.Background()); err != nil {
		slog.Error("ensure sensor stream", "error", err)
		os.Exit(1)
	}

	// Resolve this kiosk's camera descriptor.
	cam, err := db.GetCamera(context.Background(), cfg.Camera.Name)
	if err != nil {
		slog.Error("load camera descriptor", "error", err)
		os.Exit(1)
	}
	if cam == nil {
		slog.Error("camera not configured", "name", cfg.Camera.Name)
		os.Exit(1)
	}

	// Vision models
	detector, err := vision.NewDetector(filepath.Join(cfg.Vision.ModelsDir, "det_10g.onnx"), float32(cfg.Vision.DetectionThreshold))
	if err != nil {
		slog.Error("load face detector", "error", err)
		os.Exit(1)
	}
	defer detector.Close()

	embedder, err := vision.NewEmbedder(filepath.Join(cfg.Vision.ModelsDir, "w600k_r50.onnx"))
	if err != nil {
		slog.Error("load face embedder", "error", err)
		os.Exit(1)
	}
	defer embedder.Close()

	maskNet, err := vision.NewMaskClassifier(filepath.Join(cfg.Vision.ModelsDir, "mask_detector.onnx"), detector)
	if err != nil {
		slog.Error("load mask classifier", "error", err)
		os.Exit(1)
	}
	defer maskNet.Close()

	matcher := vision.NewMatcher(detector, embedder, cfg.Vision.FaceTolerance)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Camera feed. A camera that never produces a frame is a startup failure.
	source := camera.NewSource(camera.ResolveInput(*cam, cfg.Camera), cfg.Camera)
	if err := source.Start(ctx, 30*time.Second); err != nil {
		slog.Error("start camera feed", "error", err)
		os.Exit(1)
	}
	defer source.Stop()

	provider := roster.NewProvider(db)
	if err := provider.Refresh(ctx); err != nil {
		slog.Warn("initial roster refresh", "error", err)
	}

	hub := ws.NewHub()
	go hub.Run()

	recognition := loop.New(cfg.Loop, cfg.NATS, *cam, loop.Deps{
		Frames:   source,
		Mask:     maskNet,
		Matcher:  matcher,
		Bus:      bus,
		Roster:   provider,
		Recorder: db,
		Photos:   photos,
		Gate:     gate.New(db),
		Display:  hub,
	})

	go func() {
		if err := recognition.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("recognition loop exited", "error", err)
		}
	}()

	router := api.NewRouter(api.RouterConfig{
		APIKey: cfg.Server.APIKey,
		DB:     db,
		Photos: photos,
		Bus:    bus,
		Hub:    hub,
		Status: recognition,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("kiosk API listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down kiosk...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("kiosk stopped")
}

// getONNXLibPath returns the ONNX Runtime shared library path.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
