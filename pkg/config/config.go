package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"roktrack/pkg/model"
)

// TokenEnv is consulted when notification.token is left empty.
const TokenEnv = "ROKTRACK_NOTIFY_TOKEN"

// Config holds the application configuration.
type Config struct {
	System          SystemConfig          `yaml:"system" toml:"system"`
	Drive           DriveConfig           `yaml:"drive" toml:"drive"`
	Camera          CameraConfig          `yaml:"camera" toml:"camera"`
	Pin             PinConfig             `yaml:"pin" toml:"pin"`
	PWM             PWMConfig             `yaml:"pwm" toml:"pwm"`
	Vision          VisionConfig          `yaml:"vision" toml:"vision"`
	Notification    NotificationConfig    `yaml:"notification" toml:"notification"`
	DetectThreshold DetectThresholdConfig `yaml:"detect_threshold" toml:"detectthreshold"`
	Com             ComConfig             `yaml:"com" toml:"com"`
	Log             LogConfig             `yaml:"log" toml:"log"`
}

// SystemConfig holds directories, language and peer identity.
type SystemConfig struct {
	PersistentDir   string `yaml:"persistent_dir" toml:"persistent_dir"`
	EphemeralDir    string `yaml:"ephemeral_dir" toml:"ephemeral_dir"`
	AssetDir        string `yaml:"asset_dir" toml:"asset_dir"`
	LogSpeakerLevel string `yaml:"log_speaker_level" toml:"log_speaker_level"`
	Lang            string `yaml:"lang" toml:"lang"`
	Identifier      int    `yaml:"identifier" toml:"identifier"` // 0 draws a random id
	Appearance      uint8  `yaml:"appearance" toml:"appearance"`
}

// DriveConfig holds pilot and drive loop settings.
type DriveConfig struct {
	DefaultState string   `yaml:"default_state" toml:"default_state"` // on, off
	Mode         string   `yaml:"mode" toml:"mode"`
	TurnAdj      float64  `yaml:"turn_adj" toml:"turn_adj"`
	Tick         Duration `yaml:"tick" toml:"tick"`
	NeighborTTL  Duration `yaml:"neighbor_ttl" toml:"neighbor_ttl"`
	MaxTemp      float64  `yaml:"max_temp" toml:"max_temp"`
	Driver       string   `yaml:"driver" toml:"motor_driver"` // sim, sysfs
}

// CameraConfig holds frame acquisition settings.
type CameraConfig struct {
	Command   []string `yaml:"command" toml:"command"` // argv with {output}, {width}, {height}
	Source    string   `yaml:"source" toml:"source"`   // still image used when command is empty
	Width     int      `yaml:"width" toml:"width"`
	Height    int      `yaml:"height" toml:"height"`
	GrabTimes int      `yaml:"grab_times" toml:"grab_times"`
}

// PinConfig holds GPIO assignments.
type PinConfig struct {
	LeftPin1         int  `yaml:"left_pin1" toml:"left_pin1"`
	LeftPin2         int  `yaml:"left_pin2" toml:"left_pin2"`
	RightPin1        int  `yaml:"right_pin1" toml:"right_pin1"`
	RightPin2        int  `yaml:"right_pin2" toml:"right_pin2"`
	BumperPin        int  `yaml:"bumper_pin" toml:"bumper_pin"`
	Work1Pin         int  `yaml:"work1_pin" toml:"work1_pin"`
	Work2Pin         int  `yaml:"work2_pin" toml:"work2_pin"`
	WorkCtrlPositive bool `yaml:"work_ctrl_positive" toml:"work_ctrl_positive"`
}

// PWMConfig holds per-motor base power in (0, 1].
type PWMConfig struct {
	PowerLeft  float64 `yaml:"power_left" toml:"power_left"`
	PowerRight float64 `yaml:"power_right" toml:"power_right"`
}

// ModelConfig names the weights handed to the detector worker per session.
type ModelConfig struct {
	Pylon320  string `yaml:"pylon_320" toml:"pylon_320"`
	Pylon640  string `yaml:"pylon_640" toml:"pylon_640"`
	OCR96     string `yaml:"ocr_96" toml:"ocr_96"`
	Animal320 string `yaml:"animal_320" toml:"animal_320"`
	Animal640 string `yaml:"animal_640" toml:"animal_640"`
}

// VisionConfig holds detector settings.
type VisionConfig struct {
	Detector string      `yaml:"detector" toml:"detector"` // subprocess, none
	Command  []string    `yaml:"command" toml:"command"`
	OCR      bool        `yaml:"ocr" toml:"ocr"`
	Models   ModelConfig `yaml:"models" toml:"models"`
}

// AnimalAvailable reports whether the animal session can be served.
func (v VisionConfig) AnimalAvailable() bool {
	return v.Models.Animal320 != "" && v.Models.Animal640 != ""
}

// NotificationConfig holds the alert endpoint.
type NotificationConfig struct {
	Endpoint string   `yaml:"endpoint" toml:"endpoint"`
	Token    string   `yaml:"token" toml:"token"`
	Timeout  Duration `yaml:"timeout" toml:"timeout"`
	Retries  int      `yaml:"retries" toml:"retries"`
}

// DetectThresholdConfig holds the minimum probability kept per class.
type DetectThresholdConfig struct {
	Pylon    float64 `yaml:"pylon" toml:"pylon"`
	Person   float64 `yaml:"person" toml:"person"`
	Animal   float64 `yaml:"animal" toml:"animal"`
	Roktrack float64 `yaml:"roktrack" toml:"roktrack"`
}

// ComConfig holds peer transport settings.
type ComConfig struct {
	Transport    string   `yaml:"transport" toml:"transport"` // hci, none
	HCIDevice    string   `yaml:"hci_device" toml:"hci_device"`
	CastInterval Duration `yaml:"cast_interval" toml:"cast_interval"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server LogSettings `yaml:"server" toml:"server"`
	Events LogSettings `yaml:"events" toml:"events"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path" toml:"path"`
	Level string `yaml:"level" toml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		System: SystemConfig{
			PersistentDir:   "/data/roktrack",
			EphemeralDir:    "/run/user/1000/roktrack",
			AssetDir:        "./asset",
			LogSpeakerLevel: "INFO",
			Lang:            "en",
			Identifier:      0,
			Appearance:      0,
		},
		Drive: DriveConfig{
			DefaultState: "on",
			Mode:         "fill",
			TurnAdj:      1.0,
			Tick:         Duration(10 * time.Millisecond),
			NeighborTTL:  Duration(30 * time.Second),
			MaxTemp:      70,
			Driver:       "sim",
		},
		Camera: CameraConfig{
			Command:   []string{"libcamera-still", "-n", "-t", "1", "--width", "{width}", "--height", "{height}", "-o", "{output}"},
			Width:     640,
			Height:    480,
			GrabTimes: 1,
		},
		Pin: PinConfig{
			LeftPin1:         19,
			LeftPin2:         26,
			RightPin1:        12,
			RightPin2:        13,
			BumperPin:        4,
			Work1Pin:         16,
			Work2Pin:         20,
			WorkCtrlPositive: true,
		},
		PWM: PWMConfig{
			PowerLeft:  0.7,
			PowerRight: 0.7,
		},
		Vision: VisionConfig{
			Detector: "subprocess",
			Command:  []string{"./asset/bin/detector"},
			OCR:      false,
			Models: ModelConfig{
				Pylon320: "./asset/model/pylon_320.onnx",
				Pylon640: "./asset/model/pylon_640.onnx",
				OCR96:    "./asset/model/ocr_96.onnx",
			},
		},
		Notification: NotificationConfig{
			Endpoint: "https://notify-api.line.me/api/notify",
			Timeout:  Duration(10 * time.Second),
			Retries:  3,
		},
		DetectThreshold: DetectThresholdConfig{
			Pylon:    0.5,
			Person:   0.7,
			Animal:   0.5,
			Roktrack: 0.5,
		},
		Com: ComConfig{
			Transport:    "hci",
			HCIDevice:    "hci0",
			CastInterval: Duration(100 * time.Millisecond),
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/roktrack.log",
				Level: "INFO",
			},
			Events: LogSettings{
				Path:  "./logs/events.log",
				Level: "INFO",
			},
		},
	}
}

// Load loads the configuration from the given path, decoding TOML for .toml files
// and YAML otherwise. If the file does not exist, it is created with default values.
// An optional .env next to the config file is loaded first.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	// Missing .env is fine.
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	// Env fallback, never written back to disk.
	if cfg.Notification.Token == "" {
		cfg.Notification.Token = os.Getenv(TokenEnv)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func decode(path string, data []byte, cfg *Config) error {
	if isTOML(path) {
		return toml.Unmarshal(data, cfg)
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks values that would otherwise fail deep inside the drive loop.
func (c *Config) Validate() error {
	switch c.Drive.DefaultState {
	case "on", "off":
	default:
		return fmt.Errorf("invalid drive.default_state %q: must be on or off", c.Drive.DefaultState)
	}
	if _, err := model.ParseMode(c.Drive.Mode); err != nil {
		return fmt.Errorf("invalid drive.mode: %w", err)
	}
	if c.Drive.TurnAdj <= 0 {
		return fmt.Errorf("invalid drive.turn_adj %v: must be positive", c.Drive.TurnAdj)
	}
	if c.Drive.Tick <= 0 {
		return fmt.Errorf("invalid drive.tick %v: must be positive", c.Drive.Tick.D())
	}
	for name, p := range map[string]float64{"power_left": c.PWM.PowerLeft, "power_right": c.PWM.PowerRight} {
		if p <= 0 || p > 1 {
			return fmt.Errorf("invalid pwm.%s %v: must be in (0, 1]", name, p)
		}
	}
	if c.System.Identifier < 0 || c.System.Identifier > 249 {
		return fmt.Errorf("invalid system.identifier %d: must be in [0, 249]", c.System.Identifier)
	}
	if !isValidLang(c.System.Lang) {
		return fmt.Errorf("invalid system.lang %q: must be a two letter code", c.System.Lang)
	}
	return nil
}

func isValidLang(s string) bool {
	matched, _ := regexp.MatchString(`^[a-z]{2}$`, s)
	return matched
}

// DefaultOn reports whether the robot starts in the operating state.
func (c *Config) DefaultOn() bool {
	return c.Drive.DefaultState == "on"
}

// Save writes the configuration to the path in the format implied by its extension.
func Save(path string, cfg *Config) error {
	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Roktrack Configuration
# ---------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)

`)
	data = append(header, data...)

	if !isTOML(path) {
		reMode := regexp.MustCompile(`(?m)^(\s+)mode:`)
		data = reMode.ReplaceAll(data, []byte("${1}# Options: fill, oneway, monitor_person, monitor_animal, round_trip, follow_person\n${1}mode:"))

		reDriver := regexp.MustCompile(`(?m)^(\s+)driver:`)
		data = reDriver.ReplaceAll(data, []byte("${1}# Options: sim, sysfs\n${1}driver:"))
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return Save(path, DefaultConfig())
}
