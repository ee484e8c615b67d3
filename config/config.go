package config

import (
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	BackendCLI = "cli"
	BackendAPI = "api"
)

// Config is loaded once at startup and read concurrently afterwards; nothing
// mutates it once LoadConfig returns.
type Config struct {
	Version string `yaml:"-"`

	ServerPort        string        `yaml:"server_port"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	RateLimit         int           `yaml:"rate_limit"`
	RateLimitInterval time.Duration `yaml:"rate_limit_interval"`

	LogDir    string `yaml:"log_dir"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	TempDir           string   `yaml:"temp_dir"`
	MaxVideoLength    int      `yaml:"max_video_length"`
	KeyframeInterval  int      `yaml:"keyframe_interval"`
	MaxKeyframes      int      `yaml:"max_keyframes"`
	SubtitleMaxLength int      `yaml:"subtitle_max_length"`
	AllowedLanguages  []string `yaml:"allowed_languages"`
	DefaultLanguage   string   `yaml:"default_language"`
	AllowedLengths    []int    `yaml:"allowed_lengths"`
	DefaultLength     int      `yaml:"default_length"`

	YtDlpPath      string `yaml:"ytdlp_path"`
	FFmpegPath     string `yaml:"ffmpeg_path"`
	GeminiPath     string `yaml:"gemini_path"`
	GeminiModel    string `yaml:"gemini_model"`
	SummaryBackend string `yaml:"summary_backend"`
	GoogleAPIKey   string `yaml:"google_api_key"`

	SubtitleTimeout  time.Duration `yaml:"subtitle_timeout"`
	DownloadTimeout  time.Duration `yaml:"download_timeout"`
	SampleTimeout    time.Duration `yaml:"sample_timeout"`
	SummarizeTimeout time.Duration `yaml:"summarize_timeout"`
	SweepStaleAfter  time.Duration `yaml:"sweep_stale_after"`
}

func Default() *Config {
	return &Config{
		Version:           "dev",
		ServerPort:        "5000",
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   15 * time.Second,
		RateLimit:         5,
		RateLimitInterval: 1 * time.Second,
		LogDir:            "logs",
		LogLevel:          "info",
		LogFormat:         "auto",
		TempDir:           "temp",
		MaxVideoLength:    7200,
		KeyframeInterval:  600,
		MaxKeyframes:      10,
		SubtitleMaxLength: 10000,
		AllowedLanguages:  []string{"ko", "en"},
		DefaultLanguage:   "ko",
		AllowedLengths:    []int{100, 200, 500, 1000},
		DefaultLength:     200,
		YtDlpPath:         "yt-dlp",
		FFmpegPath:        "ffmpeg",
		GeminiPath:        "gemini",
		GeminiModel:       "gemini-2.5-pro",
		SummaryBackend:    BackendCLI,
		SubtitleTimeout:   2 * time.Minute,
		DownloadTimeout:   20 * time.Minute,
		SampleTimeout:     10 * time.Minute,
		SummarizeTimeout:  10 * time.Minute,
		SweepStaleAfter:   6 * time.Hour,
	}
}

// LoadConfig layers defaults, an optional YAML file and the environment, in
// that order. A .env file in the working directory is loaded first if present.
// An empty path falls back to CONFIG_FILE.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("Failed to load .env file")
	}

	cfg := Default()

	if path == "" {
		path = GetEnv("CONFIG_FILE", "")
	}
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	cfg.normalize()

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read config file %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.Wrapf(err, "parse config file %s", path)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Version = GetEnv("APP_VERSION", cfg.Version)
	cfg.ServerPort = GetEnv("SERVER_PORT", cfg.ServerPort)
	cfg.ReadTimeout = getEnvAsDuration("READ_TIMEOUT", cfg.ReadTimeout)
	cfg.WriteTimeout = getEnvAsDuration("WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.IdleTimeout = getEnvAsDuration("IDLE_TIMEOUT", cfg.IdleTimeout)
	cfg.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.RateLimit = getEnvAsInt("RATE_LIMIT", cfg.RateLimit)
	cfg.RateLimitInterval = getEnvAsDuration("RATE_LIMIT_INTERVAL", cfg.RateLimitInterval)

	cfg.LogDir = GetEnv("LOG_DIR", cfg.LogDir)
	cfg.LogLevel = GetEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = GetEnv("LOG_FORMAT", cfg.LogFormat)

	cfg.TempDir = GetEnv("TEMP_DIR", cfg.TempDir)
	cfg.MaxVideoLength = getEnvAsInt("MAX_VIDEO_LENGTH", cfg.MaxVideoLength)
	cfg.KeyframeInterval = getEnvAsInt("KEYFRAME_INTERVAL", cfg.KeyframeInterval)
	cfg.MaxKeyframes = getEnvAsInt("MAX_KEYFRAMES", cfg.MaxKeyframes)
	cfg.SubtitleMaxLength = getEnvAsInt("SUBTITLE_MAX_LENGTH", cfg.SubtitleMaxLength)
	cfg.AllowedLanguages = getEnvAsStringSlice("ALLOWED_LANGUAGES", cfg.AllowedLanguages)
	cfg.DefaultLanguage = GetEnv("DEFAULT_LANGUAGE", cfg.DefaultLanguage)
	cfg.AllowedLengths = getEnvAsIntSlice("ALLOWED_LENGTHS", cfg.AllowedLengths)
	cfg.DefaultLength = getEnvAsInt("DEFAULT_LENGTH", cfg.DefaultLength)

	cfg.YtDlpPath = GetEnv("YTDLP_PATH", cfg.YtDlpPath)
	cfg.FFmpegPath = GetEnv("FFMPEG_PATH", cfg.FFmpegPath)
	cfg.GeminiPath = GetEnv("GEMINI_PATH", cfg.GeminiPath)
	cfg.GeminiModel = GetEnv("GEMINI_MODEL", cfg.GeminiModel)
	cfg.SummaryBackend = GetEnv("SUMMARY_BACKEND", cfg.SummaryBackend)
	cfg.GoogleAPIKey = GetEnv("GOOGLE_API_KEY", cfg.GoogleAPIKey)

	cfg.SubtitleTimeout = getEnvAsDuration("SUBTITLE_TIMEOUT", cfg.SubtitleTimeout)
	cfg.DownloadTimeout = getEnvAsDuration("DOWNLOAD_TIMEOUT", cfg.DownloadTimeout)
	cfg.SampleTimeout = getEnvAsDuration("SAMPLE_TIMEOUT", cfg.SampleTimeout)
	cfg.SummarizeTimeout = getEnvAsDuration("SUMMARIZE_TIMEOUT", cfg.SummarizeTimeout)
	cfg.SweepStaleAfter = getEnvAsDuration("SWEEP_STALE_AFTER", cfg.SweepStaleAfter)
}

func (c *Config) normalize() {
	c.SummaryBackend = strings.ToLower(strings.TrimSpace(c.SummaryBackend))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	c.DefaultLanguage = strings.ToLower(strings.TrimSpace(c.DefaultLanguage))
	for i, lang := range c.AllowedLanguages {
		c.AllowedLanguages[i] = strings.ToLower(strings.TrimSpace(lang))
	}
}

// TempRoot returns the absolute workspace root.
func (c *Config) TempRoot() string {
	if abs, err := filepath.Abs(c.TempDir); err == nil {
		return abs
	}
	return c.TempDir
}

// EnsureDirectories creates the temp and log roots.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.TempDir, c.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create directory %s", dir)
		}
	}
	return nil
}

func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		logrus.WithFields(logrus.Fields{
			"key":          key,
			"value":        value,
			"defaultValue": defaultValue,
		}).Warn("Invalid duration, using default")
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intValue
		}
		logrus.WithFields(logrus.Fields{
			"key":          key,
			"value":        value,
			"defaultValue": defaultValue,
		}).Warn("Invalid integer, using default")
	}
	return defaultValue
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		logrus.WithField("key", key).Warn("Empty list, using default")
		return defaultValue
	}
	return out
}

func getEnvAsIntSlice(key string, defaultValue []int) []int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var out []int
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"key":          key,
				"value":        value,
				"defaultValue": defaultValue,
			}).Warn("Invalid integer list, using default")
			return defaultValue
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func ValidateConfig(cfg *Config) error {
	if cfg.ServerPort == "" {
		return errors.New("server port is required")
	}
	if cfg.TempDir == "" {
		return errors.New("temp directory is required")
	}
	if cfg.LogDir == "" {
		return errors.New("log directory is required")
	}
	if cfg.ReadTimeout <= 0 {
		return errors.New("read timeout must be greater than 0")
	}
	if cfg.WriteTimeout < 0 {
		return errors.New("write timeout must not be negative")
	}
	if cfg.IdleTimeout <= 0 {
		return errors.New("idle timeout must be greater than 0")
	}
	if cfg.RateLimit <= 0 || cfg.RateLimitInterval <= 0 {
		return errors.New("rate limit and interval must be greater than 0")
	}
	if cfg.MaxVideoLength <= 0 {
		return errors.New("max video length must be greater than 0")
	}
	if cfg.KeyframeInterval <= 0 {
		return errors.New("keyframe interval must be greater than 0")
	}
	if cfg.MaxKeyframes < 0 {
		return errors.New("max keyframes must not be negative")
	}
	if cfg.SubtitleMaxLength <= 0 {
		return errors.New("subtitle max length must be greater than 0")
	}
	if err := validateAllowLists(cfg); err != nil {
		return err
	}
	if err := validateTools(cfg); err != nil {
		return err
	}
	for name, d := range map[string]time.Duration{
		"subtitle":  cfg.SubtitleTimeout,
		"download":  cfg.DownloadTimeout,
		"sample":    cfg.SampleTimeout,
		"summarize": cfg.SummarizeTimeout,
	} {
		if d <= 0 {
			return errors.Errorf("%s timeout must be greater than 0", name)
		}
	}
	return nil
}

func validateAllowLists(cfg *Config) error {
	if len(cfg.AllowedLanguages) == 0 {
		return errors.New("at least one allowed language is required")
	}
	if !slices.Contains(cfg.AllowedLanguages, cfg.DefaultLanguage) {
		return errors.Errorf("default language %q is not in allowed languages %v", cfg.DefaultLanguage, cfg.AllowedLanguages)
	}
	if len(cfg.AllowedLengths) == 0 {
		return errors.New("at least one allowed summary length is required")
	}
	for _, n := range cfg.AllowedLengths {
		if n <= 0 {
			return errors.Errorf("summary length %d must be greater than 0", n)
		}
	}
	if !slices.Contains(cfg.AllowedLengths, cfg.DefaultLength) {
		return errors.Errorf("default length %d is not in allowed lengths %v", cfg.DefaultLength, cfg.AllowedLengths)
	}
	return nil
}

func validateTools(cfg *Config) error {
	if cfg.YtDlpPath == "" {
		return errors.New("yt-dlp path is required")
	}
	if cfg.FFmpegPath == "" {
		return errors.New("ffmpeg path is required")
	}
	if cfg.GeminiModel == "" {
		return errors.New("gemini model is required")
	}
	switch cfg.SummaryBackend {
	case BackendCLI:
		if cfg.GeminiPath == "" {
			return errors.New("gemini path is required for the cli backend")
		}
	case BackendAPI:
		if cfg.GoogleAPIKey == "" {
			return errors.New("GOOGLE_API_KEY is required for the api backend")
		}
	default:
		return errors.Errorf("unknown summary backend %q", cfg.SummaryBackend)
	}
	return nil
}
