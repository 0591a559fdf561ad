package powerloss

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/turtacn/Brownout/pkg/consts"
	"github.com/turtacn/Brownout/pkg/errors"
	"github.com/turtacn/Brownout/pkg/logger"
	"github.com/turtacn/Brownout/pkg/protocol"
)

// Raiser is the producer side of the power-loss signal.
type Raiser interface {
	Raise()
}

// Emulator raises power-loss edges on a schedule. In periodic mode the first
// edge fires immediately, which doubles as the start handshake.
type Emulator struct {
	mode     string
	interval time.Duration
	limiter  *rate.Limiter
	rng      *rand.Rand
	target   Raiser
}

// NewEmulator validates cfg. Mode "off" (or empty) yields a nil Emulator whose Run returns at once.
func NewEmulator(cfg protocol.PowerLossConfig, target Raiser, seed int64) (*Emulator, error) {
	const op = "NewEmulator"
	if cfg.Mode == "" || cfg.Mode == consts.PowerLossOff {
		return nil, nil
	}
	if cfg.Mode != consts.PowerLossPeriodic && cfg.Mode != consts.PowerLossRandom {
		return nil, errors.Newf(errors.ErrCodeEmulatorConfig, op, "unknown power-loss mode %q", cfg.Mode)
	}

	interval := consts.DefaultPowerLossPeriod
	if cfg.Interval != "" {
		d, err := time.ParseDuration(cfg.Interval)
		if err != nil {
			return nil, errors.New(errors.ErrCodeEmulatorConfig, op, "invalid interval", err)
		}
		interval = d
	}
	if interval <= 0 {
		return nil, errors.Newf(errors.ErrCodeEmulatorConfig, op, "interval must be positive, got %s", interval)
	}
	if cfg.MaxRate < 0 {
		return nil, errors.Newf(errors.ErrCodeEmulatorConfig, op, "max_rate must not be negative")
	}

	// Periodic mode paces on the interval itself; random mode only uses the
	// limiter as a ceiling.
	limit := rate.Every(interval)
	if cfg.Mode == consts.PowerLossRandom {
		limit = rate.Inf
	}
	if cfg.MaxRate > 0 && rate.Limit(cfg.MaxRate) < limit {
		limit = rate.Limit(cfg.MaxRate)
	}

	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Emulator{
		mode:     cfg.Mode,
		interval: interval,
		limiter:  rate.NewLimiter(limit, 1),
		rng:      rand.New(rand.NewSource(seed)),
		target:   target,
	}, nil
}

// Run raises edges until ctx is done.
func (e *Emulator) Run(ctx context.Context) error {
	if e == nil {
		return nil
	}
	logger.Log.Info("Power-loss emulator started", "mode", e.mode, "interval", e.interval)
	defer logger.Log.Info("Power-loss emulator stopped")

	for {
		if e.mode == consts.PowerLossRandom {
			if err := e.sleep(ctx, e.nextGap()); err != nil {
				return nil
			}
		}
		if err := e.limiter.Wait(ctx); err != nil {
			return nil
		}
		e.target.Raise()
	}
}

// nextGap draws an exponential inter-arrival time with mean interval.
func (e *Emulator) nextGap() time.Duration {
	return time.Duration(e.rng.ExpFloat64() * float64(e.interval))
}

func (e *Emulator) sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Personal.AI order the ending
