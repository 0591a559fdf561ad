package monitor

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/turtacn/Brownout/internal/workload"
	"github.com/turtacn/Brownout/pkg/consts"
	"github.com/turtacn/Brownout/pkg/logger"
)

var (
	// ChunksTotal counts chunk attempts, partitioned by outcome.
	ChunksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "brownout_chunks_total",
		Help: "Chunk attempts by outcome",
	}, []string{"outcome"})
	// BytesCommitted counts bytes of chunks that completed.
	BytesCommitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "brownout_bytes_committed_total",
		Help: "Bytes of successfully completed chunks",
	})
	// BytesDiscarded counts the nominal size of interrupted chunks.
	BytesDiscarded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "brownout_bytes_discarded_total",
		Help: "Nominal bytes of interrupted chunks",
	})
	ResizesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "brownout_resizes_total",
		Help: "Chunk scale decisions taken by the scaling policy",
	}, []string{"policy", "trigger"})
	AbsorbedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "brownout_absorbed_losses_total",
		Help: "Power losses that arrived during dead-time",
	})
	ChunkScale = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "brownout_chunk_scale_bytes",
		Help: "Chunk size selected for the next attempt",
	})
	RunState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "brownout_run_state",
		Help: "1 for the current workload loop state",
	}, []string{"state"})
	RunDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "brownout_run_duration_seconds",
		Help:    "Wall time of finished runs",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"outcome"})
	// WorkingPin and CompletePin mirror the fixture's timing pin and completion LED.
	WorkingPin = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "brownout_working_pin",
		Help: "1 while a chunk is executing",
	})
	CompletePin = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "brownout_complete_pin",
		Help: "Latched to 1 when a run completes",
	})
)

var registerOnce sync.Once

// Register adds the collectors to the default registry. Safe to call repeatedly.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(ChunksTotal, BytesCommitted, BytesDiscarded, ResizesTotal,
			AbsorbedTotal, ChunkScale, RunState, RunDuration, WorkingPin, CompletePin)
	})
}

// InitMetrics registers Prometheus metrics and starts an HTTP server to expose them.
// An empty addr registers only.
func InitMetrics(addr string) {
	Register()
	if addr == "" {
		return
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Log.Info("Metrics server starting", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Log.Error("Metrics server failed", "err", err)
		}
	}()
}

// Recorder feeds runner telemetry and pin changes into the collectors.
type Recorder struct{}

func NewRecorder() *Recorder {
	Register()
	return &Recorder{}
}

var runStates = []consts.RunState{consts.StateAwaitingSync, consts.StateRunning, consts.StateCompleted}

// StateChanged leaves exactly one run_state label at 1. Leaving AWAITING_SYNC
// starts a new run, so the completion pin drops.
func (Recorder) StateChanged(from, to consts.RunState) {
	for _, s := range runStates {
		if s != to {
			RunState.WithLabelValues(string(s)).Set(0)
		}
	}
	RunState.WithLabelValues(string(to)).Set(1)
	if from == consts.StateAwaitingSync {
		CompletePin.Set(0)
	}
}

func (Recorder) ChunkDone(bytes int, outcome workload.Outcome) {
	ChunksTotal.WithLabelValues(outcome.String()).Inc()
	if outcome == workload.Success {
		BytesCommitted.Add(float64(bytes))
	} else {
		BytesDiscarded.Add(float64(bytes))
	}
}

func (Recorder) Resized(policy workload.ScalingPolicy, r workload.Resize) {
	ResizesTotal.WithLabelValues(policy.String(), string(r.Trigger)).Inc()
	ChunkScale.Set(float64(r.To.Bytes()))
}

func (Recorder) LossAbsorbed() { AbsorbedTotal.Inc() }

func (Recorder) RunFinished(res workload.Result) {
	RunDuration.WithLabelValues(res.Outcome).Observe(res.Elapsed.Seconds())
	ChunkScale.Set(float64(res.FinalScale.Bytes()))
}

func (Recorder) Working(on bool) {
	if on {
		WorkingPin.Set(1)
		return
	}
	WorkingPin.Set(0)
}

func (Recorder) Complete() { CompletePin.Set(1) }

// Personal.AI order the ending
