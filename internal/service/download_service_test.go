package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranemoloko/onc-archive/internal/config"
	"github.com/veranemoloko/onc-archive/internal/domain"
	errpkg "github.com/veranemoloko/onc-archive/internal/errors"
	"github.com/veranemoloko/onc-archive/internal/progress"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeFetcher struct {
	mu       sync.Mutex
	existing map[string]bool
	fetched  map[string]int
	failing  map[string]bool
	panics   map[string]bool
	size     int64
	delay    time.Duration

	running atomic.Int64
	peak    atomic.Int64
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		existing: map[string]bool{},
		fetched:  map[string]int{},
		failing:  map[string]bool{},
		panics:   map[string]bool{},
		size:     10,
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, req domain.DownloadRequest, overwrite bool) domain.DownloadOutcome {
	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	f.mu.Lock()
	f.fetched[req.Filename]++
	fail := f.failing[req.Filename]
	boom := f.panics[req.Filename]
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if boom {
		panic("boom " + req.Filename)
	}
	if fail {
		return domain.DownloadOutcome{Filename: req.Filename, Status: domain.OutcomeError, Error: "http status 404 - Not Found"}
	}
	return domain.DownloadOutcome{Filename: req.Filename, Status: domain.OutcomeCompleted, SizeBytes: f.size}
}

func (f *fakeFetcher) Exists(req domain.DownloadRequest) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing[req.Filename]
}

func (f *fakeFetcher) Skipped(req domain.DownloadRequest) domain.DownloadOutcome {
	return domain.DownloadOutcome{Filename: req.Filename, Status: domain.OutcomeSkipped}
}

func (f *fakeFetcher) OutPath() string { return "output" }

func (f *fakeFetcher) fetchCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetched[name]
}

type fakeLister struct {
	files    []string
	filters  domain.Filters
	method   string
	allPages bool
}

func (l *fakeLister) result() *domain.FileListResult {
	out := &domain.FileListResult{}
	for _, f := range l.files {
		out.Files = append(out.Files, domain.FileRecord{Filename: f})
	}
	return out
}

func (l *fakeLister) ListByLocation(_ context.Context, filters domain.Filters, allPages bool) (*domain.FileListResult, error) {
	l.filters, l.method, l.allPages = filters, "location", allPages
	return l.result(), nil
}

func (l *fakeLister) ListByDevice(_ context.Context, filters domain.Filters, allPages bool) (*domain.FileListResult, error) {
	l.filters, l.method, l.allPages = filters, "device", allPages
	return l.result(), nil
}

func newTestService(lister Lister, fetcher Fetcher) *DownloadService {
	return NewDownloadService(lister, fetcher, nil, &config.Config{DownloadThreads: 2}, newTestLogger())
}

func requests(names ...string) []domain.DownloadRequest {
	out := make([]domain.DownloadRequest, len(names))
	for i, n := range names {
		out[i] = domain.DownloadRequest{Filename: n}
	}
	return out
}

func outcomeNames(report *domain.BatchReport) []string {
	names := make([]string, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		names = append(names, o.Filename)
	}
	sort.Strings(names)
	return names
}

func TestDownloadBatch_EveryFileHasOneOutcome(t *testing.T) {
	for _, workers := range []int{1, 2, 4, 16, 64} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			fetcher := newFakeFetcher()
			svc := newTestService(&fakeLister{}, fetcher)

			var names []string
			for i := 0; i < 40; i++ {
				names = append(names, fmt.Sprintf("file_%02d.txt", i))
			}

			report, err := svc.DownloadBatch(context.Background(), domain.Selector{Files: requests(names...)}, false, workers)
			require.NoError(t, err)

			assert.Equal(t, names, outcomeNames(report))
			for _, n := range names {
				assert.Equal(t, 1, fetcher.fetchCount(n), n)
			}
			assert.Equal(t, 40, report.SuccessCount)
			assert.Equal(t, int64(400), report.TotalSize)
			assert.LessOrEqual(t, fetcher.peak.Load(), int64(workers))
		})
	}
}

func TestDownloadBatch_SkipsExistingFiles(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.existing["b.txt"] = true
	fetcher.existing["c.txt"] = true
	svc := newTestService(&fakeLister{}, fetcher)

	report, err := svc.DownloadBatch(context.Background(), domain.Selector{Files: requests("a.txt", "b.txt", "c.txt")}, false, 2)
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 3)
	assert.Equal(t, domain.OutcomeSkipped, report.Outcomes[0].Status)
	assert.Equal(t, domain.OutcomeSkipped, report.Outcomes[1].Status)
	assert.Equal(t, domain.OutcomeCompleted, report.Outcomes[2].Status)
	assert.Equal(t, 0, fetcher.fetchCount("b.txt"))
	assert.Equal(t, 1, report.SuccessCount)
	assert.Equal(t, 2, report.Skipped())
}

func TestDownloadBatch_AllExisting(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.existing["a.txt"] = true
	svc := newTestService(&fakeLister{}, fetcher)

	report, err := svc.DownloadBatch(context.Background(), domain.Selector{Files: requests("a.txt")}, false, 2)
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, domain.OutcomeSkipped, report.Outcomes[0].Status)
	assert.Zero(t, report.TotalTime)
	assert.Zero(t, report.SuccessCount)
}

func TestDownloadBatch_OverwriteFetchesExisting(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.existing["a.txt"] = true
	svc := newTestService(&fakeLister{}, fetcher)

	report, err := svc.DownloadBatch(context.Background(), domain.Selector{Files: requests("a.txt")}, true, 2)
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.fetchCount("a.txt"))
	assert.Equal(t, 1, report.SuccessCount)
}

func TestDownloadBatch_FailuresAreIsolated(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.failing["b.txt"] = true
	fetcher.panics["c.txt"] = true
	svc := newTestService(&fakeLister{}, fetcher)

	report, err := svc.DownloadBatch(context.Background(), domain.Selector{Files: requests("a.txt", "b.txt", "c.txt", "d.txt")}, false, 2)
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 4)
	assert.Equal(t, 2, report.SuccessCount)
	assert.Equal(t, 2, report.Failed())
	assert.Equal(t, int64(20), report.TotalSize)

	for _, o := range report.Outcomes {
		if o.Filename == "c.txt" {
			assert.Equal(t, domain.OutcomeError, o.Status)
			assert.Contains(t, o.Error, "panicked")
		}
	}
}

func TestDownloadBatch_EmptyFileList(t *testing.T) {
	svc := newTestService(&fakeLister{}, newFakeFetcher())

	report, err := svc.DownloadBatch(context.Background(), domain.Selector{Files: []domain.DownloadRequest{}}, false, 4)
	require.NoError(t, err)
	assert.Empty(t, report.Outcomes)
	assert.Zero(t, report.SuccessCount)
}

func TestDownloadBatch_InvalidSelector(t *testing.T) {
	svc := newTestService(&fakeLister{}, newFakeFetcher())

	_, err := svc.DownloadBatch(context.Background(), domain.Selector{Filters: domain.Filters{"locationCode": "BACAX"}}, false, 2)
	assert.ErrorIs(t, err, errpkg.ErrInvalidSelector)

	_, err = svc.DownloadBatch(context.Background(), domain.Selector{Table: &domain.Table{Columns: []string{"name"}}}, false, 2)
	assert.ErrorIs(t, err, errpkg.ErrInvalidSelector)
	assert.ErrorIs(t, err, domain.ErrNoFilenameColumn)
}

func TestDownloadBatch_TableShortRowBecomesError(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.failing[""] = true
	svc := newTestService(&fakeLister{}, fetcher)

	table := &domain.Table{
		Columns: []string{"outPath", "filename"},
		Rows:    [][]string{{"dir", "a.txt"}, {"dir"}},
	}
	report, err := svc.DownloadBatch(context.Background(), domain.Selector{Table: table}, false, 2)
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, 1, report.SuccessCount)
	assert.Equal(t, 1, report.Failed())
}

func TestDownloadBatch_ResolvesFilters(t *testing.T) {
	lister := &fakeLister{files: []string{"x.mp4", "y.mp4"}}
	svc := newTestService(lister, newFakeFetcher())

	sel := domain.Selector{Filters: domain.Filters{"locationCode": "BACAX", "deviceCategoryCode": "VIDEOCAM", "deviceCode": "ignored"}}
	report, err := svc.DownloadBatch(context.Background(), sel, false, 2)
	require.NoError(t, err)

	assert.Equal(t, "location", lister.method)
	assert.False(t, lister.allPages)
	assert.Equal(t, 2, report.SuccessCount)
}

func TestGetDirectFiles_StripsReturnOptions(t *testing.T) {
	lister := &fakeLister{files: []string{"x.txt"}}
	svc := newTestService(lister, newFakeFetcher())

	filters := domain.Filters{"deviceCode": "NORTEKADCP9917", "returnOptions": "all"}
	report, err := svc.GetDirectFiles(context.Background(), domain.Selector{Filters: filters}, false, true, 0)
	require.NoError(t, err)

	assert.Equal(t, "device", lister.method)
	assert.True(t, lister.allPages)
	assert.NotContains(t, lister.filters, "returnOptions")
	assert.Equal(t, "all", filters["returnOptions"], "caller filters must not change")
	assert.Equal(t, 1, report.SuccessCount)
}

func TestGetDirectFiles_LogsSummary(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	fetcher := newFakeFetcher()
	fetcher.size = 2048
	svc := NewDownloadService(&fakeLister{}, fetcher, nil, &config.Config{DownloadThreads: 2}, logger)

	sel := domain.Selector{Files: requests("a.txt", "b.txt")}
	_, err := svc.GetDirectFiles(context.Background(), sel, false, false, 0)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "download batch finished")
	assert.Contains(t, out, "files=2")
	assert.Contains(t, out, `size="4.1 kB"`)
	assert.Regexp(t, `speed="[0-9.]+ [kMGT]?B/s"`, out)
}

func TestDownloadBatch_CancelStopsClaiming(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.delay = 20 * time.Millisecond
	svc := newTestService(&fakeLister{}, fetcher)

	var names []string
	for i := 0; i < 50; i++ {
		names = append(names, fmt.Sprintf("f%d", i))
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	report, err := svc.DownloadBatch(ctx, domain.Selector{Files: requests(names...)}, false, 2)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)

	assert.Less(t, len(report.Outcomes), 50)
	for _, o := range report.Outcomes {
		assert.Equal(t, 1, fetcher.fetchCount(o.Filename))
	}
}

func TestDownloadBatch_ReporterDoesNotChangeResult(t *testing.T) {
	fetcher := newFakeFetcher()
	reporter := progress.NewReporter(progress.Options{Enabled: true, Output: io.Discard, Interval: time.Millisecond})
	svc := NewDownloadService(&fakeLister{}, fetcher, reporter, &config.Config{DownloadThreads: 3}, newTestLogger())

	report, err := svc.DownloadBatch(context.Background(), domain.Selector{Files: requests("a", "b", "c", "d")}, false, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, outcomeNames(report))
	assert.Equal(t, 4, report.SuccessCount)
}
