package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	cfgpkg "github.com/veranemoloko/onc-archive/internal/config"
	"github.com/veranemoloko/onc-archive/internal/domain"
	errpkg "github.com/veranemoloko/onc-archive/internal/errors"
	"github.com/veranemoloko/onc-archive/internal/onc"
	"github.com/veranemoloko/onc-archive/internal/progress"
	svc "github.com/veranemoloko/onc-archive/internal/service"
	"github.com/veranemoloko/onc-archive/internal/storage"
	"github.com/veranemoloko/onc-archive/internal/worker"
)

// Exit codes
const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitInvalidArgs  = 2
	ExitPartial      = 3
	ExitInterrupted  = 130
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("onc-download", flag.ContinueOnError)

	token := fs.String("token", "", "Web Services API token (default $ONC_TOKEN)")
	out := fs.String("out", "", "Output directory (default $ONC_OUT_PATH)")
	threads := fs.Int("threads", 0, "Number of concurrent downloads (default $ONC_DOWNLOAD_THREADS)")
	qa := fs.Bool("qa", false, "Use the QA server instead of production")
	overwrite := fs.Bool("overwrite", false, "Download files that already exist locally")
	allPages := fs.Bool("all-pages", false, "Follow every page of the file list")
	noProgress := fs.Bool("no-progress", false, "Do not draw the progress bar")

	location := fs.String("location", "", "Location code, used with -category")
	category := fs.String("category", "", "Device category code, used with -location")
	device := fs.String("device", "", "Device code")
	ext := fs.String("ext", "", "Only download files with this extension")
	dateFrom := fs.String("date-from", "", "Start of the time range")
	dateTo := fs.String("date-to", "", "End of the time range, or \"now\"")
	files := fs.String("files", "", "Comma separated list of filenames")
	csvPath := fs.String("csv", "", "CSV file with a filename column and an optional outPath column")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: onc-download [options]

Download files from the Ocean Networks Canada archive. Pick the files with
-files, -csv, -location and -category, or -device.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		return ExitInvalidArgs
	}

	cfg, err := cfgpkg.Read()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitGeneralError
	}
	if *token != "" {
		cfg.Token = *token
	}
	if *out != "" {
		cfg.OutPath = cfgpkg.SanitizeOutPath(*out)
	}
	if *threads > 0 {
		cfg.DownloadThreads = *threads
	}
	if *qa {
		cfg.Production = false
	}
	if *noProgress {
		cfg.ShowProgress = false
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fs.Usage()
		return ExitInvalidArgs
	}

	cfgpkg.SetupLogger(cfg)
	logger := slog.Default()

	sel, err := buildSelector(*files, *csvPath, domain.Filters{
		"locationCode":       *location,
		"deviceCategoryCode": *category,
		"deviceCode":         *device,
		"extension":          *ext,
		"dateFrom":           *dateFrom,
		"dateTo":             *dateTo,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\n[onc-download] Received interrupt, finishing running downloads...")
		cancel()
	}()

	client := onc.NewClient(onc.Options{
		Token:      cfg.Token,
		Production: cfg.Production,
		Timeout:    cfg.Timeout,
	}, logger)

	reporter := progress.NewReporter(progress.Options{
		Enabled:  cfg.ShowProgress,
		Interval: cfg.ProgressInterval,
	})
	downloads := svc.NewDownloadService(
		svc.NewArchiveService(client, logger),
		worker.NewFileFetcher(client, storage.NewFileStorage(""), cfg.OutPath, logger),
		reporter,
		cfg,
		logger,
	)

	report, err := downloads.GetDirectFiles(ctx, sel, *overwrite, *allPages, cfg.DownloadThreads)
	if report != nil {
		fmt.Fprintln(os.Stderr, progress.Summary(cfg.OutPath, report))
	}

	switch {
	case err != nil && ctx.Err() != nil:
		return ExitInterrupted
	case errors.Is(err, errpkg.ErrInvalidSelector):
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	case err != nil:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitGeneralError
	case report.Failed() > 0:
		for _, o := range report.Outcomes {
			if o.Status == domain.OutcomeError {
				fmt.Fprintf(os.Stderr, "  %s: %s\n", o.Filename, o.Error)
			}
		}
		return ExitPartial
	}
	return ExitSuccess
}

// buildSelector picks the selector from the flags. Empty filters are dropped
// and dates are converted to the form the service expects.
func buildSelector(files, csvPath string, filters domain.Filters) (domain.Selector, error) {
	if files != "" {
		var reqs []domain.DownloadRequest
		for _, name := range strings.Split(files, ",") {
			if name = strings.TrimSpace(name); name != "" {
				reqs = append(reqs, domain.DownloadRequest{Filename: name})
			}
		}
		return domain.Selector{Files: reqs}, nil
	}

	for k, v := range filters {
		if v == "" {
			delete(filters, k)
		}
	}
	for _, k := range []string{"dateFrom", "dateTo"} {
		if v, ok := filters[k]; ok {
			utc, err := onc.FormatUTC(v)
			if err != nil {
				return domain.Selector{}, err
			}
			filters[k] = utc
		}
	}

	sel := domain.Selector{Filters: filters}
	if csvPath != "" {
		f, err := os.Open(csvPath)
		if err != nil {
			return domain.Selector{}, err
		}
		defer f.Close()

		table, err := domain.ParseTableCSV(f)
		if err != nil {
			return domain.Selector{}, fmt.Errorf("%s: %w", csvPath, err)
		}
		sel.Table = table
	}
	return sel, nil
}
