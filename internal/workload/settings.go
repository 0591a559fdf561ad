package workload

import (
	"time"

	"github.com/turtacn/Brownout/pkg/consts"
	"github.com/turtacn/Brownout/pkg/errors"
	"github.com/turtacn/Brownout/pkg/protocol"
)

// Settings is a validated workload configuration.
type Settings struct {
	TotalWorkloadBytes uint64
	StartingScale      ChunkScale
	DeadTimeMicros     uint32
	Policy             ScalingPolicy
	SuccessThreshold   uint16
	FailThreshold      uint16
	Seed               int64
	SkipSync           bool
}

// NewSettings validates c against the enumerated ranges. Nothing invalid gets through.
func NewSettings(c protocol.WorkloadConfig) (Settings, error) {
	const op = "Configure"
	if c.TotalBytes == 0 {
		return Settings{}, errors.Newf(errors.ErrCodeWorkloadSize, op, "total workload size must be positive")
	}
	scale := ChunkScale(c.StartingScale)
	if !scale.Valid() {
		return Settings{}, errors.Newf(errors.ErrCodeScaleRange, op,
			"starting chunk scale %d outside [%d, %d]", c.StartingScale, CoarsestScale, FinestScale)
	}
	if err := checkThreshold("success", c.SuccessThreshold); err != nil {
		return Settings{}, err
	}
	if err := checkThreshold("fail", c.FailThreshold); err != nil {
		return Settings{}, err
	}
	policy, err := ParsePolicy(c.Policy)
	if err != nil {
		return Settings{}, errors.New(errors.ErrCodeConfigInvalid, op, "invalid scaling policy", err)
	}
	return Settings{
		TotalWorkloadBytes: c.TotalBytes,
		StartingScale:      scale,
		DeadTimeMicros:     c.DeadTimeMicros,
		Policy:             policy,
		SuccessThreshold:   uint16(c.SuccessThreshold),
		FailThreshold:      uint16(c.FailThreshold),
		Seed:               c.Seed,
		SkipSync:           c.SkipSync,
	}, nil
}

func checkThreshold(name string, v int) error {
	if v < 1 || v > consts.MaxThreshold {
		return errors.Newf(errors.ErrCodeThresholdRange, "Configure",
			"%s threshold %d outside [1, %d]", name, v, consts.MaxThreshold)
	}
	return nil
}

// Config converts back to the raw form, for editing and persistence.
func (s Settings) Config() protocol.WorkloadConfig {
	return protocol.WorkloadConfig{
		TotalBytes:       s.TotalWorkloadBytes,
		StartingScale:    int(s.StartingScale),
		DeadTimeMicros:   s.DeadTimeMicros,
		Policy:           s.Policy.String(),
		SuccessThreshold: int(s.SuccessThreshold),
		FailThreshold:    int(s.FailThreshold),
		Seed:             s.Seed,
		SkipSync:         s.SkipSync,
	}
}

// SettingsView is the display form of Settings.
type SettingsView struct {
	TotalWorkloadBytes uint64        `json:"total_workload_bytes"`
	StartingScale      int           `json:"starting_scale"`
	StartingChunkBytes int           `json:"starting_chunk_bytes"`
	DeadTime           time.Duration `json:"dead_time"`
	PolicyName         string        `json:"policy"`
	SuccessThreshold   uint16        `json:"success_threshold"`
	FailThreshold      uint16        `json:"fail_threshold"`
	SkipSync           bool          `json:"skip_sync"`
}

func (s Settings) View() SettingsView {
	return SettingsView{
		TotalWorkloadBytes: s.TotalWorkloadBytes,
		StartingScale:      int(s.StartingScale),
		StartingChunkBytes: s.StartingScale.Bytes(),
		DeadTime:           time.Duration(s.DeadTimeMicros) * time.Microsecond,
		PolicyName:         s.Policy.String(),
		SuccessThreshold:   s.SuccessThreshold,
		FailThreshold:      s.FailThreshold,
		SkipSync:           s.SkipSync,
	}
}

// Personal.AI order the ending
