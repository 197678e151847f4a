package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Vision   VisionConfig   `yaml:"vision"`
	Camera   CameraConfig   `yaml:"camera"`
	Loop     LoopConfig     `yaml:"loop"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL              string        `yaml:"url"`
	TemperatureTopic string        `yaml:"temperature_topic"`
	SpeakerTopic     string        `yaml:"speaker_topic"`
	DoorTopic        string        `yaml:"door_topic"`
	OpTimeout        time.Duration `yaml:"op_timeout"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type VisionConfig struct {
	ModelsDir          string  `yaml:"models_dir"`
	DetectionThreshold float64 `yaml:"detection_threshold"`
	// FaceTolerance is the maximum Euclidean distance between a probe
	// encoding and a roster encoding for the pair to count as a match.
	FaceTolerance float64 `yaml:"face_tolerance"`
}

type CameraConfig struct {
	// Name selects the camera descriptor from the cameras table.
	Name string `yaml:"name"`
	// LocalDevice is used when the descriptor's address is 0.0.0.0.
	LocalDevice string        `yaml:"local_device"`
	FPS         int           `yaml:"fps"`
	FrameWidth  int           `yaml:"frame_width"`
	StaleAfter  time.Duration `yaml:"stale_after"`
}

type LoopConfig struct {
	MaskInterval     time.Duration `yaml:"mask_interval"`
	FaceInterval     time.Duration `yaml:"face_interval"`
	TempInterval     time.Duration `yaml:"temp_interval"`
	Cooldown         time.Duration `yaml:"cooldown"`
	FlagWindow       time.Duration `yaml:"flag_window"`
	TempFreshness    time.Duration `yaml:"temp_freshness"`
	RosterRefresh    time.Duration `yaml:"roster_refresh"`
	TempThreshold    float64       `yaml:"temp_threshold"`
	FrameDelay       time.Duration `yaml:"frame_delay"`
	ReplayScope      string        `yaml:"replay_scope"` // last | same_day
	ForceFaceRefresh int           `yaml:"force_face_refresh"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.NATS.TemperatureTopic == "" {
		cfg.NATS.TemperatureTopic = "temperature"
	}
	if cfg.NATS.SpeakerTopic == "" {
		cfg.NATS.SpeakerTopic = "speaker"
	}
	if cfg.NATS.DoorTopic == "" {
		cfg.NATS.DoorTopic = "door"
	}
	if cfg.NATS.OpTimeout == 0 {
		cfg.NATS.OpTimeout = 15 * time.Second
	}
	if cfg.Vision.DetectionThreshold == 0 {
		cfg.Vision.DetectionThreshold = 0.5
	}
	if cfg.Vision.FaceTolerance == 0 {
		cfg.Vision.FaceTolerance = 0.5
	}
	if cfg.Camera.LocalDevice == "" {
		cfg.Camera.LocalDevice = "/dev/video0"
	}
	if cfg.Camera.FPS == 0 {
		cfg.Camera.FPS = 5
	}
	if cfg.Camera.FrameWidth == 0 {
		cfg.Camera.FrameWidth = 640
	}
	if cfg.Camera.StaleAfter == 0 {
		cfg.Camera.StaleAfter = 3 * time.Second
	}
	if cfg.Loop.MaskInterval == 0 {
		cfg.Loop.MaskInterval = 5 * time.Second
	}
	if cfg.Loop.FaceInterval == 0 {
		cfg.Loop.FaceInterval = 8 * time.Second
	}
	if cfg.Loop.TempInterval == 0 {
		cfg.Loop.TempInterval = 5 * time.Second
	}
	if cfg.Loop.Cooldown == 0 {
		cfg.Loop.Cooldown = 13 * time.Second
	}
	if cfg.Loop.FlagWindow == 0 {
		cfg.Loop.FlagWindow = 30 * time.Second
	}
	if cfg.Loop.TempFreshness == 0 {
		cfg.Loop.TempFreshness = 32 * time.Second
	}
	if cfg.Loop.RosterRefresh == 0 {
		cfg.Loop.RosterRefresh = 60 * time.Second
	}
	if cfg.Loop.TempThreshold == 0 {
		cfg.Loop.TempThreshold = 38.0
	}
	if cfg.Loop.FrameDelay == 0 {
		cfg.Loop.FrameDelay = 20 * time.Millisecond
	}
	if cfg.Loop.ReplayScope == "" {
		cfg.Loop.ReplayScope = "last"
	}
	if cfg.Loop.ForceFaceRefresh == 0 {
		cfg.Loop.ForceFaceRefresh = 4
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KIOSK_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("KIOSK_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("KIOSK_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("KIOSK_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("KIOSK_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("KIOSK_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("KIOSK_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("KIOSK_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("KIOSK_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("KIOSK_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("KIOSK_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("KIOSK_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("KIOSK_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
	if v := os.Getenv("KIOSK_CAMERA_NAME"); v != "" {
		cfg.Camera.Name = v
	}
}
