package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"

	"github.com/veranemoloko/onc-archive/internal/domain"
)

// Counter is the view of a running worker pool the reporter polls.
type Counter interface {
	Completed() int64
	LastCompleted() int
	Done() <-chan struct{}
}

// Options configures the progress reporter.
type Options struct {
	Enabled bool

	// Output is where the bar is drawn.
	// Default: os.Stderr
	Output io.Writer

	// Interval is how often the counter is polled.
	// Default: 100ms
	Interval time.Duration

	Description string
}

// Reporter draws a progress bar for a batch. It only reads the counter, so
// the batch result is the same whether it runs, stops early or is disabled.
type Reporter struct {
	opts Options
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.Interval <= 0 {
		opts.Interval = 100 * time.Millisecond
	}
	if opts.Description == "" {
		opts.Description = "downloading"
	}
	return &Reporter{opts: opts}
}

// Observe polls c until its Done channel is closed or ctx is cancelled.
// label, when not nil, names the item at a queue index and is shown next
// to the bar for the most recently finished item.
func (r *Reporter) Observe(ctx context.Context, c Counter, total int, label func(index int) string) {
	if !r.opts.Enabled || total <= 0 {
		return
	}

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(r.opts.Output),
		progressbar.OptionSetDescription(r.opts.Description),
		progressbar.OptionSetItsString("file"),
		progressbar.OptionShowIts(),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(r.opts.Output)
		}),
	)

	var seen int64
	flush := func() {
		n := c.Completed()
		if n <= seen {
			return
		}
		if label != nil {
			if idx := c.LastCompleted(); idx >= 0 {
				bar.Describe(fmt.Sprintf("%s %s", r.opts.Description, label(idx)))
			}
		}
		_ = bar.Add64(n - seen)
		seen = n
	}

	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.Done():
			flush()
			if !bar.IsFinished() {
				fmt.Fprintln(r.opts.Output)
			}
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			flush()
		}
	}
}

// Summary renders the one-line report printed after a batch.
func Summary(outPath string, report *domain.BatchReport) string {
	return fmt.Sprintf("Downloaded - Directory: %s; Files: %d; Size: %s; Time: %s; Speed: %s",
		outPath,
		report.SuccessCount,
		humanize.Bytes(uint64(report.TotalSize)),
		FormatDuration(report.TotalTime),
		FormatSpeed(report.Speed()),
	)
}

// FormatSpeed formats a throughput in bytes per second.
func FormatSpeed(bytesPerSec float64) string {
	return humanize.Bytes(uint64(bytesPerSec)) + "/s"
}

// FormatDuration formats seconds the way the summary line shows them.
func FormatDuration(secs float64) string {
	if secs < 1 {
		return fmt.Sprintf("%.3f seconds", secs)
	}
	return time.Duration(secs * float64(time.Second)).Round(time.Second).String()
}
