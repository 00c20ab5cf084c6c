package app

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/daisymeal/cyberdefense/internal/adapters/detection"
	"github.com/daisymeal/cyberdefense/internal/domain"
)

type Config struct {
	Server    ServerConfig
	Logging   LoggingConfig
	Hardware  HardwareConfig
	Detection DetectionConfig
	Alerts    AlertsConfig
	Sources   SourcesConfig
	Output    OutputConfig
	Workers   WorkerPoolConfig
}

type ServerConfig struct {
	Addr         string
	MaxBodyBytes int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LoggingConfig struct {
	Level  zerolog.Level
	Format string
}

type HardwareConfig struct {
	Device string
}

type DetectionConfig struct {
	MaxDeclaredSize int
	Signatures      []detection.SignatureDefinition
}

type AlertsConfig struct {
	BufferSize int
	MemorySize int
}

type SourcesConfig struct {
	CacheSize int
}

type OutputConfig struct {
	JSONEnabled    bool
	JSONMinLevel   domain.AlertLevel
	MetricsEnabled bool
	MetricsPort    string
	NATSURL        string
	NATSSubject    string
}

// SetDefaults registers every key LoadConfig reads.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("hardware.device", "")

	v.SetDefault("detection.size_guard.max_bytes", detection.DefaultMaxDeclaredSize)
	v.SetDefault("detection.signatures", []interface{}{})

	v.SetDefault("alerts.buffer_size", 1024)
	v.SetDefault("alerts.memory_size", 100)

	v.SetDefault("sources.cache_size", 1024)

	v.SetDefault("output.json.enabled", false)
	v.SetDefault("output.json.min_level", "")
	v.SetDefault("output.metrics.enabled", true)
	v.SetDefault("output.metrics.port", ":9090")
	v.SetDefault("output.nats.url", "")
	v.SetDefault("output.nats.subject", "cyberdefense.alerts")

	v.SetDefault("workers.count", 8)
	v.SetDefault("workers.buffer_size", 1000)
}

// LoadConfig reads and validates the configuration held by v. The first
// invalid field is returned as a *ConfigValidationError.
func LoadConfig(v *viper.Viper) (Config, error) {
	var cfg Config

	cfg.Server = ServerConfig{
		Addr:         v.GetString("server.addr"),
		MaxBodyBytes: v.GetInt64("server.max_body_bytes"),
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
	}
	if cfg.Server.Addr == "" {
		return cfg, &ConfigValidationError{Field: "server.addr", Value: cfg.Server.Addr, Reason: "must not be empty"}
	}
	if cfg.Server.MaxBodyBytes < 1 {
		return cfg, &ConfigValidationError{Field: "server.max_body_bytes", Value: cfg.Server.MaxBodyBytes, Reason: "must be positive"}
	}
	if cfg.Server.ReadTimeout <= 0 {
		return cfg, &ConfigValidationError{Field: "server.read_timeout", Value: cfg.Server.ReadTimeout, Reason: "must be positive"}
	}
	if cfg.Server.WriteTimeout <= 0 {
		return cfg, &ConfigValidationError{Field: "server.write_timeout", Value: cfg.Server.WriteTimeout, Reason: "must be positive"}
	}

	levelName := v.GetString("logging.level")
	level, err := zerolog.ParseLevel(strings.ToLower(levelName))
	if err != nil || level == zerolog.NoLevel {
		return cfg, &ConfigValidationError{Field: "logging.level", Value: levelName, Reason: "must be one of debug, info, warn, error"}
	}
	cfg.Logging = LoggingConfig{
		Level:  level,
		Format: strings.ToLower(v.GetString("logging.format")),
	}
	if cfg.Logging.Format != "console" && cfg.Logging.Format != "json" {
		return cfg, &ConfigValidationError{Field: "logging.format", Value: cfg.Logging.Format, Reason: "must be console or json"}
	}

	cfg.Hardware = HardwareConfig{Device: strings.ToUpper(v.GetString("hardware.device"))}
	if d := cfg.Hardware.Device; d != "" && d != "NPU" && d != "GPU" {
		return cfg, &ConfigValidationError{Field: "hardware.device", Value: d, Reason: "must be NPU, GPU or empty"}
	}

	cfg.Detection.MaxDeclaredSize = v.GetInt("detection.size_guard.max_bytes")
	if cfg.Detection.MaxDeclaredSize < 1 {
		return cfg, &ConfigValidationError{Field: "detection.size_guard.max_bytes", Value: cfg.Detection.MaxDeclaredSize, Reason: "must be positive"}
	}
	defs, err := detection.ParseSignatureDefinitions(v.Get("detection.signatures"))
	if err != nil {
		return cfg, &ConfigValidationError{Field: "detection.signatures", Value: "", Reason: err.Error()}
	}
	if _, err := detection.BuildSignatureTable(defs); err != nil {
		return cfg, &ConfigValidationError{Field: "detection.signatures", Value: "", Reason: err.Error()}
	}
	cfg.Detection.Signatures = defs

	cfg.Alerts = AlertsConfig{
		BufferSize: v.GetInt("alerts.buffer_size"),
		MemorySize: v.GetInt("alerts.memory_size"),
	}
	if cfg.Alerts.BufferSize < 1 {
		return cfg, &ConfigValidationError{Field: "alerts.buffer_size", Value: cfg.Alerts.BufferSize, Reason: "must be positive"}
	}
	if cfg.Alerts.MemorySize < 1 {
		return cfg, &ConfigValidationError{Field: "alerts.memory_size", Value: cfg.Alerts.MemorySize, Reason: "must be positive"}
	}

	cfg.Sources.CacheSize = v.GetInt("sources.cache_size")
	if cfg.Sources.CacheSize < 1 {
		return cfg, &ConfigValidationError{Field: "sources.cache_size", Value: cfg.Sources.CacheSize, Reason: "must be positive"}
	}

	cfg.Output = OutputConfig{
		JSONEnabled:    v.GetBool("output.json.enabled"),
		MetricsEnabled: v.GetBool("output.metrics.enabled"),
		MetricsPort:    v.GetString("output.metrics.port"),
		NATSURL:        v.GetString("output.nats.url"),
		NATSSubject:    v.GetString("output.nats.subject"),
	}
	switch lvl := domain.AlertLevel(strings.ToUpper(v.GetString("output.json.min_level"))); lvl {
	case "", domain.AlertLevelInfo, domain.AlertLevelWarning, domain.AlertLevelCritical:
		cfg.Output.JSONMinLevel = lvl
	default:
		return cfg, &ConfigValidationError{Field: "output.json.min_level", Value: lvl, Reason: "must be INFO, WARNING or CRITICAL"}
	}
	if cfg.Output.NATSURL != "" && cfg.Output.NATSSubject == "" {
		return cfg, &ConfigValidationError{Field: "output.nats.subject", Value: "", Reason: "required when output.nats.url is set"}
	}

	cfg.Workers = DefaultWorkerPoolConfig()
	cfg.Workers.WorkerCount = v.GetInt("workers.count")
	cfg.Workers.BufferSize = v.GetInt("workers.buffer_size")
	if cfg.Workers.WorkerCount < 1 || cfg.Workers.WorkerCount > 1000 {
		return cfg, &ConfigValidationError{Field: "workers.count", Value: cfg.Workers.WorkerCount, Reason: "must be between 1 and 1000"}
	}
	if cfg.Workers.BufferSize < 1 || cfg.Workers.BufferSize > 10000000 {
		return cfg, &ConfigValidationError{Field: "workers.buffer_size", Value: cfg.Workers.BufferSize, Reason: "must be between 1 and 10M"}
	}

	return cfg, nil
}

type ConfigValidationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("config validation error: %s = %v - %s", e.Field, e.Value, e.Reason)
}

// SignatureReloader rebuilds the signature table whenever the config file
// changes and swaps it into the scanner. A table that fails to build is
// rejected and the running one stays in place.
type SignatureReloader struct {
	v       *viper.Viper
	scanner *detection.SignatureScanner
	onSwap  func(count int)

	reloads  atomic.Int64
	failures atomic.Int64
	mu       sync.Mutex
}

func NewSignatureReloader(v *viper.Viper, scanner *detection.SignatureScanner) *SignatureReloader {
	return &SignatureReloader{
		v:       v,
		scanner: scanner,
	}
}

// OnSwap registers a callback run with the new signature count after each
// successful swap.
func (r *SignatureReloader) OnSwap(fn func(count int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onSwap = fn
}

// Watch starts watching the config file. viper re-reads the file before
// calling back, so Reload only has to rebuild.
func (r *SignatureReloader) Watch() {
	r.v.OnConfigChange(func(e fsnotify.Event) {
		log.Info().
			Str("file", e.Name).
			Str("op", e.Op.String()).
			Msg("Config file changed, reloading signatures...")

		if err := r.Reload(); err != nil {
			log.Error().Err(err).Msg("Invalid signature configuration, keeping current table")
		}
	})
	r.v.WatchConfig()
	log.Info().Str("config", r.v.ConfigFileUsed()).Msg("Signature hot-reload watching started")
}

func (r *SignatureReloader) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	defs, err := detection.ParseSignatureDefinitions(r.v.Get("detection.signatures"))
	if err != nil {
		r.failures.Add(1)
		return err
	}
	table, err := detection.BuildSignatureTable(defs)
	if err != nil {
		r.failures.Add(1)
		return err
	}

	old := r.scanner.Swap(table)
	r.reloads.Add(1)

	log.Info().
		Int("previous", old.Len()).
		Int("signatures", table.Len()).
		Bool("prefiltered", table.PreFiltered()).
		Msg("Signature table hot-reloaded")

	if r.onSwap != nil {
		r.onSwap(table.Len())
	}
	return nil
}

func (r *SignatureReloader) Reloads() int64 {
	return r.reloads.Load()
}

func (r *SignatureReloader) Failures() int64 {
	return r.failures.Load()
}
