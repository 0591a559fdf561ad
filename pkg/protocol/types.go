package protocol

import (
	"os"

	"github.com/turtacn/Brownout/pkg/consts"
	"gopkg.in/yaml.v3"
)

// Config represents the root configuration of a Brownout run.
type Config struct {
	Version       string              `yaml:"version"`
	Workload      WorkloadConfig      `yaml:"workload"`
	PowerLoss     PowerLossConfig     `yaml:"power_loss"`
	Clock         ClockConfig         `yaml:"clock"`
	Store         StoreConfig         `yaml:"store"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// WorkloadConfig is the raw, unvalidated engine configuration.
type WorkloadConfig struct {
	TotalBytes       uint64 `yaml:"total_bytes"`
	StartingScale    int    `yaml:"starting_scale"` // ordinal, 0 = largest chunk
	DeadTimeMicros   uint32 `yaml:"dead_time_us"`
	Policy           string `yaml:"policy"`
	SuccessThreshold int    `yaml:"success_threshold"`
	FailThreshold    int    `yaml:"fail_threshold"`
	Seed             int64  `yaml:"seed"`      // 0 picks a time-based seed
	SkipSync         bool   `yaml:"skip_sync"` // start without waiting for the first edge
}

// PowerLossConfig selects the producers that raise the power-loss signal.
type PowerLossConfig struct {
	Mode       string  `yaml:"mode"`     // off | periodic | random
	Interval   string  `yaml:"interval"` // period, or mean gap in random mode
	MaxRate    float64 `yaml:"max_rate"` // edges per second cap, 0 = uncapped
	Signal     bool    `yaml:"signal"`   // raise on SIGUSR1
	SocketPath string  `yaml:"socket_path"`
}

// ClockConfig selects the elapsed-time source of the polling loops.
type ClockConfig struct {
	Source     string `yaml:"source"`      // monotonic | tick
	TickPeriod string `yaml:"tick_period"` // tick source resolution
}

type StoreConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

type ObservabilityConfig struct {
	MetricsPort string `yaml:"metrics_port"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"` // json | text
}

// Default returns the reference fixture configuration.
func Default() Config {
	return Config{
		Version: "1",
		Workload: WorkloadConfig{
			TotalBytes:       consts.DefaultTotalWorkloadBytes,
			StartingScale:    0,
			DeadTimeMicros:   consts.DefaultDeadTimeMicros,
			Policy:           consts.DefaultPolicy,
			SuccessThreshold: consts.DefaultSuccessThreshold,
			FailThreshold:    consts.DefaultFailThreshold,
		},
		PowerLoss: PowerLossConfig{
			Mode: consts.PowerLossOff,
		},
		Clock: ClockConfig{
			Source: consts.ClockMonotonic,
		},
		Store: StoreConfig{
			Path: consts.DefaultStorePath,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// Load reads a YAML file over the defaults, so omitted keys keep fixture values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Personal.AI order the ending
