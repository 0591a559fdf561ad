package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/turtacn/Brownout/internal/console"
	"github.com/turtacn/Brownout/internal/monitor"
	"github.com/turtacn/Brownout/internal/orchestrator"
	"github.com/turtacn/Brownout/internal/store"
	"github.com/turtacn/Brownout/internal/workload"
	"github.com/turtacn/Brownout/pkg/consts"
	"github.com/turtacn/Brownout/pkg/errors"
	"github.com/turtacn/Brownout/pkg/logger"
	"github.com/turtacn/Brownout/pkg/protocol"
)

var (
	cfgFile string

	policyFlag   string
	scaleFlag    int
	totalFlag    uint64
	deadTimeFlag uint32
	failFlag     int
	successFlag  int
	seedFlag     int64

	scalesFlag []int
	limitFlag  int
	bestFlag   bool
)

var rootCmd = &cobra.Command{
	Use:           "brownout",
	Short:         "Brownout: adaptive checkpointing under power loss",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the workload loop once",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		setup(cfg)
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ledger, err := openLedger(cfg)
		if err != nil {
			return err
		}
		defer closeLedger(ledger)

		out := cmd.OutOrStdout()
		opts := []orchestrator.Option{orchestrator.WithLedger(ledger)}
		if isatty.IsTerminal(os.Stdin.Fd()) {
			opts = append(opts, orchestrator.WithAbort(console.WatchKeys(os.Stdin)))
			fmt.Fprintln(out, "Press any key to abort the run.")
		}
		engine, err := orchestrator.NewEngine(&cfg, opts...)
		if err != nil {
			return err
		}
		console.PrintSettings(out, engine.Settings())

		res, err := engine.Run(ctx)
		if res.Outcome != "" {
			console.PrintResult(out, res)
		}
		return err
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run once per starting chunk scale and report the best",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		scales, err := parseScales(scalesFlag)
		if err != nil {
			return err
		}
		setup(cfg)
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ledger, err := openLedger(cfg)
		if err != nil {
			return err
		}
		defer closeLedger(ledger)

		engine, err := orchestrator.NewEngine(&cfg, orchestrator.WithLedger(ledger))
		if err != nil {
			return err
		}
		entries, err := engine.Sweep(ctx, scales)
		printSweep(cmd.OutOrStdout(), entries)
		return err
	},
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Validate the configuration and print the effective settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		s, err := workload.NewSettings(cfg.Workload)
		if err != nil {
			return err
		}
		console.PrintSettings(cmd.OutOrStdout(), s.View())
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs from the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Store.Disabled {
			return errors.New(errors.ErrCodeLedgerOpen, "History", "ledger is disabled in the configuration", nil)
		}
		ledger, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer closeLedger(ledger)

		var records []store.Record
		if bestFlag {
			records, err = ledger.BestPerPolicy(cmd.Context())
		} else {
			records, err = ledger.Recent(cmd.Context(), limitFlag)
		}
		if err != nil {
			return err
		}
		printHistory(cmd.OutOrStdout(), records)
		return nil
	},
}

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive menu for editing settings and starting runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		setup(cfg)
		ledger, err := openLedger(cfg)
		if err != nil {
			return err
		}
		defer closeLedger(ledger)

		run := func(ctx context.Context, s workload.Settings, abort workload.AbortSource) (workload.Result, error) {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			runCfg := cfg
			runCfg.Workload = s.Config()
			engine, err := orchestrator.NewEngine(&runCfg, orchestrator.WithLedger(ledger), orchestrator.WithAbort(abort))
			if err != nil {
				return workload.Result{}, err
			}
			return engine.Run(ctx)
		}
		return console.New(cmd.InOrStdin(), cmd.OutOrStdout(), cfg.Workload, run).Main(cmd.Context())
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", consts.DefaultConfigPath, "config file path (env "+consts.EnvConfigPath+")")
	pf.StringVar(&policyFlag, "policy", consts.DefaultPolicy, "scaling policy: none, linear, random, random-adaptive, linear-adaptive")
	pf.IntVar(&scaleFlag, "scale", 0, "starting chunk scale ordinal, 0 is the largest chunk")
	pf.Uint64Var(&totalFlag, "total", consts.DefaultTotalWorkloadBytes, "total workload size in bytes")
	pf.Uint32Var(&deadTimeFlag, "dead-time", consts.DefaultDeadTimeMicros, "dead-time between chunks in microseconds")
	pf.IntVar(&failFlag, "fail-threshold", consts.DefaultFailThreshold, "consecutive failures before shrinking")
	pf.IntVar(&successFlag, "success-threshold", consts.DefaultSuccessThreshold, "consecutive successes before growing")
	pf.Int64Var(&seedFlag, "seed", 0, "seed for random policies and power-loss gaps, 0 picks one")

	sweepCmd.Flags().IntSliceVar(&scalesFlag, "scales", nil, "starting scales to sweep (default all)")
	historyCmd.Flags().IntVar(&limitFlag, "limit", 20, "number of recent runs to list")
	historyCmd.Flags().BoolVar(&bestFlag, "best", false, "show the best completed run per policy")

	rootCmd.AddCommand(runCmd, sweepCmd, settingsCmd, historyCmd, consoleCmd)
}

// loadConfig reads the config file and applies explicitly set flags on top.
// A missing file is only an error when its path was asked for.
func loadConfig(cmd *cobra.Command) (protocol.Config, error) {
	path, explicit := cfgFile, cmd.Flags().Changed("config")
	if env := os.Getenv(consts.EnvConfigPath); env != "" && !explicit {
		path, explicit = env, true
	}
	cfg, err := protocol.Load(path)
	if err != nil {
		if explicit || !os.IsNotExist(err) {
			return cfg, errors.New(errors.ErrCodeConfigInvalid, "LoadConfig", "cannot load "+path, err)
		}
		cfg = protocol.Default()
	}

	f := cmd.Flags()
	if f.Changed("policy") {
		cfg.Workload.Policy = policyFlag
	}
	if f.Changed("scale") {
		cfg.Workload.StartingScale = scaleFlag
	}
	if f.Changed("total") {
		cfg.Workload.TotalBytes = totalFlag
	}
	if f.Changed("dead-time") {
		cfg.Workload.DeadTimeMicros = deadTimeFlag
	}
	if f.Changed("fail-threshold") {
		cfg.Workload.FailThreshold = failFlag
	}
	if f.Changed("success-threshold") {
		cfg.Workload.SuccessThreshold = successFlag
	}
	if f.Changed("seed") {
		cfg.Workload.Seed = seedFlag
	}
	return cfg, nil
}

func setup(cfg protocol.Config) {
	logger.InitLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	monitor.InitMetrics(cfg.Observability.MetricsPort)
	logger.Log.Info("Booting Brownout", "policy", cfg.Workload.Policy, "power_loss", cfg.PowerLoss.Mode)
}

func openLedger(cfg protocol.Config) (*store.Ledger, error) {
	if cfg.Store.Disabled {
		return nil, nil
	}
	return store.Open(cfg.Store.Path)
}

func closeLedger(l *store.Ledger) {
	if l == nil {
		return
	}
	if err := l.Close(); err != nil {
		logger.Log.Warn("Failed to close ledger", "err", err)
	}
}

func parseScales(raw []int) ([]workload.ChunkScale, error) {
	out := make([]workload.ChunkScale, 0, len(raw))
	for _, v := range raw {
		s := workload.ChunkScale(v)
		if !s.Valid() {
			return nil, errors.Newf(errors.ErrCodeScaleRange, "Sweep",
				"chunk scale %d outside [%d, %d]", v, workload.CoarsestScale, workload.FinestScale)
		}
		out = append(out, s)
	}
	return out, nil
}

func printSweep(w io.Writer, entries []orchestrator.SweepEntry) {
	console.Header(w, "Sweep")
	fmt.Fprintf(w, " %-14s %-10s %14s %8s %8s\n", "scale", "outcome", "throughput", "lost", "resizes")
	for _, en := range entries {
		fmt.Fprintf(w, " %-14s %-10s %12.0f/s %8d %8d\n", en.Scale, en.Result.Outcome,
			en.Result.Throughput(), en.Result.ChunksInterrupted, en.Result.Resizes)
	}
	console.Divider(w)
	if best, ok := orchestrator.Best(entries); ok {
		fmt.Fprintf(w, " Best starting scale: %s\n", color.GreenString(best.Scale.String()))
	} else {
		fmt.Fprintln(w, color.RedString(" No completed run"))
	}
}

func printHistory(w io.Writer, records []store.Record) {
	console.Header(w, "History")
	if len(records) == 0 {
		fmt.Fprintln(w, " No runs recorded")
		return
	}
	fmt.Fprintf(w, " %-5s %-19s %-16s %-5s %-10s %14s %8s\n", "id", "started", "policy", "scale", "outcome", "throughput", "lost")
	for _, r := range records {
		fmt.Fprintf(w, " %-5d %-19s %-16s %-5d %-10s %12.0f/s %8d\n", r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Policy, r.StartingScale, r.Outcome, r.Throughput(), r.ChunksInterrupted)
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(1)
	}
}

// Personal.AI order the ending
