package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/turtacn/Brownout/internal/workload"
	"github.com/turtacn/Brownout/pkg/consts"
)

const (
	Width             = 80
	headerTitleExtras = len("=[  ]=")
)

var (
	yellow = color.New(color.FgYellow).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
)

// Header prints "=[ title ]=" padded with '=' to the console width.
func Header(w io.Writer, title string) {
	if limit := Width - headerTitleExtras; len(title) > limit {
		title = title[:limit]
	}
	fill := Width - len(title) - headerTitleExtras
	fmt.Fprintf(w, "=[ %s ]=%s\n", yellow(title), strings.Repeat("=", fill))
}

func Divider(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("-", Width))
}

// PrintSettings renders current_settings().
func PrintSettings(w io.Writer, v workload.SettingsView) {
	Header(w, "Current settings")
	fmt.Fprintf(w, " Total workload     : %d bytes\n", v.TotalWorkloadBytes)
	fmt.Fprintf(w, " Starting chunk     : scale %d (%d bytes)\n", v.StartingScale, v.StartingChunkBytes)
	fmt.Fprintf(w, " Dead-time          : %s\n", v.DeadTime)
	fmt.Fprintf(w, " Scaling policy     : %s\n", cyan(v.PolicyName))
	fmt.Fprintf(w, " Success threshold  : %d\n", v.SuccessThreshold)
	fmt.Fprintf(w, " Failure threshold  : %d\n", v.FailThreshold)
	fmt.Fprintf(w, " Wait for sync edge : %t\n", !v.SkipSync)
}

// PrintResult renders a finished run.
func PrintResult(w io.Writer, res workload.Result) {
	Header(w, "Run result")
	outcome := green(res.Outcome)
	if res.Outcome != consts.OutcomeCompleted {
		outcome = red(res.Outcome)
	}
	fmt.Fprintf(w, " Outcome            : %s\n", outcome)
	fmt.Fprintf(w, " Bytes processed    : %d\n", res.BytesProcessed)
	fmt.Fprintf(w, " Elapsed            : %s\n", res.Elapsed)
	fmt.Fprintf(w, " Throughput         : %.0f B/s\n", res.Throughput())
	fmt.Fprintf(w, " Chunks ok/lost     : %d/%d\n", res.ChunksSucceeded, res.ChunksInterrupted)
	fmt.Fprintf(w, " Absorbed losses    : %d\n", res.AbsorbedLosses)
	fmt.Fprintf(w, " Resizes            : %d\n", res.Resizes)
	fmt.Fprintf(w, " Final chunk        : scale %s\n", res.FinalScale)
}

// PrintError reports a rejected input or failed run in red.
func PrintError(w io.Writer, err error) {
	fmt.Fprintln(w, red(" "+err.Error()))
}

// Personal.AI order the ending
