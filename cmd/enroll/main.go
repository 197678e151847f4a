// enroll registers face photos for existing persons: it encodes each JPEG,
// uploads the blob and stores the encoding so the next roster refresh picks
// it up. File names must start with the person id, e.g. "7_front.jpg".
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/google/uuid"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/kiosk/internal/config"
	"github.com/your-org/kiosk/internal/observability"
	"github.com/your-org/kiosk/internal/storage"
	"github.com/your-org/kiosk/internal/vision"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	personID := flag.Int64("person", 0, "person id (overrides the filename prefix)")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: enroll [-config path] [-person id] photo.jpg [photo.jpg ...]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, "text")

	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Error("onnx runtime init", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

	db, err := storage.NewPostgresStore(cfg.Database, storage.ReplayScope(cfg.Loop.ReplayScope))
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	photos, err := storage.NewPhotoStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := photos.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

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

	matcher := vision.NewMatcher(detector, embedder, cfg.Vision.FaceTolerance)

	ctx := context.Background()
	failures := 0
	for _, path := range flag.Args() {
		if err := enrollFile(ctx, db, photos, matcher, path, *personID); err != nil {
			slog.Error("enroll failed", "file", path, "error", err)
			failures++
		}
	}
	if failures > 0 {
		os.Exit(1)
	}
}

func enrollFile(ctx context.Context, db *storage.PostgresStore, photos *storage.PhotoStore, matcher *vision.Matcher, path string, personID int64) error {
	if personID == 0 {
		id, err := personIDFromName(path)
		if err != nil {
			return err
		}
		personID = id
	}

	person, err := db.GetPerson(ctx, personID)
	if err != nil {
		return err
	}
	if person == nil {
		return fmt.Errorf("person %d not found", personID)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read photo: %w", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode photo: %w", err)
	}

	encoding, err := matcher.EncodeFace(img)
	if err != nil {
		return fmt.Errorf("encode face: %w", err)
	}
	if encoding == nil {
		return fmt.Errorf("no face found in %s", path)
	}

	key := fmt.Sprintf("persons/%d/%s.jpg", personID, uuid.NewString())
	if err := photos.PutPhoto(ctx, key, data); err != nil {
		return err
	}

	pic, err := db.AddPicture(ctx, personID, key, encoding)
	if err != nil {
		return err
	}

	slog.Info("enrolled picture",
		"person_id", personID,
		"name", person.FullName(),
		"picture_id", pic.ID,
		"object_key", key)
	return nil
}

// personIDFromName extracts the leading numeric id from a file name like
// "7_front.jpg" or "7.jpg".
func personIDFromName(path string) (int64, error) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if i := strings.IndexAny(base, "_-"); i > 0 {
		base = base[:i]
	}
	id, err := strconv.ParseInt(base, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("cannot infer person id from %q (use -person)", filepath.Base(path))
	}
	return id, nil
}

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
