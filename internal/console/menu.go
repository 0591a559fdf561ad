package console

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/turtacn/Brownout/internal/workload"
	"github.com/turtacn/Brownout/pkg/protocol"
)

// RunFunc performs one run with validated settings. abort reports an operator
// stop request typed while the run is in progress.
type RunFunc func(ctx context.Context, s workload.Settings, abort workload.AbortSource) (workload.Result, error)

type menuItem struct {
	name        string
	description string
	action      func(ctx context.Context) error
}

// Console is the character menu used to edit settings and trigger runs.
// Edits are validated before they replace the pending configuration.
type Console struct {
	in    io.Reader
	out   io.Writer
	cfg   protocol.WorkloadConfig
	run   RunFunc
	items []menuItem

	lines chan string
	quit  chan struct{}
	once  sync.Once
}

func New(in io.Reader, out io.Writer, cfg protocol.WorkloadConfig, run RunFunc) *Console {
	c := &Console{
		in:    in,
		out:   out,
		cfg:   cfg,
		run:   run,
		lines: make(chan string),
		quit:  make(chan struct{}),
	}
	c.items = []menuItem{
		{"settings", "Show current settings", c.showSettings},
		{"workload", "Set total workload size (bytes)", c.setUint("Total workload bytes >", 64, func(cfg *protocol.WorkloadConfig, v uint64) { cfg.TotalBytes = v })},
		{"scale", fmt.Sprintf("Set starting chunk scale (0-%d)", workload.NumScales-1), c.setInt("Starting scale >", func(cfg *protocol.WorkloadConfig, v int) { cfg.StartingScale = v })},
		{"dead-time", "Set dead-time between chunks (us)", c.setUint("Dead-time us >", 32, func(cfg *protocol.WorkloadConfig, v uint64) { cfg.DeadTimeMicros = uint32(v) })},
		{"success", "Set success threshold", c.setInt("Success threshold >", func(cfg *protocol.WorkloadConfig, v int) { cfg.SuccessThreshold = v })},
		{"failure", "Set failure threshold", c.setInt("Failure threshold >", func(cfg *protocol.WorkloadConfig, v int) { cfg.FailThreshold = v })},
		{"policy", "Set scaling policy", c.setPolicy},
		{"run", "Run the workload loop", c.runWorkload},
	}
	return c
}

// Config returns the pending configuration.
func (c *Console) Config() protocol.WorkloadConfig {
	return c.cfg
}

// Main shows the menu until the operator quits, input ends, or ctx is done.
func (c *Console) Main(ctx context.Context) error {
	c.startReader()
	defer close(c.quit)

	for ctx.Err() == nil {
		c.printMenu()
		sel, err := c.prompt(ctx, fmt.Sprintf(" [0-%d]-item  [q]-quit\n Selection >", len(c.items)-1))
		if err != nil {
			return c.stopErr(ctx, err)
		}
		if sel == "q" {
			return nil
		}
		idx, err := strconv.Atoi(sel)
		if err != nil || idx < 0 || idx >= len(c.items) {
			fmt.Fprintln(c.out, " Bad selection!")
			continue
		}
		fmt.Fprintln(c.out, green(" Selecting "+sel+"!"))
		if err := c.items[idx].action(ctx); err != nil {
			if stderrors.Is(err, io.EOF) || ctx.Err() != nil {
				return c.stopErr(ctx, err)
			}
			PrintError(c.out, err)
		}
	}
	return ctx.Err()
}

func (c *Console) stopErr(ctx context.Context, err error) error {
	if stderrors.Is(err, io.EOF) {
		return nil
	}
	return ctx.Err()
}

// startReader feeds input lines to the menu prompts and, while a run is in
// progress, to its abort poll.
func (c *Console) startReader() {
	c.once.Do(func() {
		go func() {
			defer close(c.lines)
			sc := bufio.NewScanner(c.in)
			for sc.Scan() {
				select {
				case c.lines <- sc.Text():
				case <-c.quit:
					return
				}
			}
		}()
	})
}

func (c *Console) printMenu() {
	fmt.Fprintln(c.out)
	Header(c.out, "Checkpointing")
	fmt.Fprintln(c.out, " Power-loss checkpointing test fixture")
	fmt.Fprintln(c.out)
	for i, it := range c.items {
		fmt.Fprintf(c.out, " [%s] %s - %s\n", yellow(strconv.Itoa(i)), it.name, it.description)
	}
	Divider(c.out)
}

// prompt prints p and returns the trimmed next line.
func (c *Console) prompt(ctx context.Context, p string) (string, error) {
	fmt.Fprintf(c.out, "%s ", p)
	select {
	case line, ok := <-c.lines:
		if !ok {
			return "", io.EOF
		}
		return strings.TrimSpace(line), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// apply validates the edited candidate before keeping it.
func (c *Console) apply(candidate protocol.WorkloadConfig) error {
	if _, err := workload.NewSettings(candidate); err != nil {
		return err
	}
	c.cfg = candidate
	return nil
}

func (c *Console) setUint(p string, bits int, set func(*protocol.WorkloadConfig, uint64)) func(context.Context) error {
	return func(ctx context.Context) error {
		s, err := c.prompt(ctx, p)
		if err != nil {
			return err
		}
		v, err := strconv.ParseUint(s, 10, bits)
		if err != nil {
			return fmt.Errorf("not a number in range: %q", s)
		}
		candidate := c.cfg
		set(&candidate, v)
		return c.apply(candidate)
	}
}

func (c *Console) setInt(p string, set func(*protocol.WorkloadConfig, int)) func(context.Context) error {
	return func(ctx context.Context) error {
		s, err := c.prompt(ctx, p)
		if err != nil {
			return err
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("not a number: %q", s)
		}
		candidate := c.cfg
		set(&candidate, v)
		return c.apply(candidate)
	}
}

func (c *Console) setPolicy(ctx context.Context) error {
	for _, p := range workload.Policies() {
		fmt.Fprintf(c.out, " [%s] %s\n", yellow(strconv.Itoa(int(p))), p)
	}
	s, err := c.prompt(ctx, "Policy >")
	if err != nil {
		return err
	}
	candidate := c.cfg
	candidate.Policy = s
	if p, err := workload.ParsePolicy(s); err == nil {
		candidate.Policy = p.String()
	}
	return c.apply(candidate)
}

func (c *Console) showSettings(context.Context) error {
	s, err := workload.NewSettings(c.cfg)
	if err != nil {
		return err
	}
	PrintSettings(c.out, s.View())
	return nil
}

func (c *Console) runWorkload(ctx context.Context) error {
	s, err := workload.NewSettings(c.cfg)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, " Press enter to abort the run.")
	res, err := c.run(ctx, s, &lineAbort{lines: c.lines})
	if res.Outcome != "" {
		PrintResult(c.out, res)
	}
	return err
}

// lineAbort latches on the first input line received during a run.
type lineAbort struct {
	lines <-chan string
	hit   bool
}

func (a *lineAbort) PollAbort() bool {
	if a.hit {
		return true
	}
	select {
	case _, ok := <-a.lines:
		if !ok {
			a.lines = nil
			return false
		}
		a.hit = true
	default:
	}
	return a.hit
}

// Personal.AI order the ending
