package domain

// DownloadRequest is one file to fetch from the archive.
// An empty OutPath means the default output directory.
type DownloadRequest struct {
	Filename string `json:"filename" validate:"required,safe_filename"`
	OutPath  string `json:"outPath,omitempty" validate:"omitempty,safe_path"`
}

// DownloadOutcome is the result of attempting one DownloadRequest.
type DownloadOutcome struct {
	Filename     string        `json:"file"`
	Status       OutcomeStatus `json:"status"`
	SizeBytes    int64         `json:"size"`
	DownloadTime float64       `json:"downloadTime"`
	URL          string        `json:"url"`
	Error        string        `json:"error,omitempty"`
}

// BatchReport aggregates the outcomes of one batch.
//
// TotalTime is the wall clock time of the whole batch in seconds, not the
// sum of the per-file download times.
type BatchReport struct {
	Outcomes     []DownloadOutcome `json:"downloadResults"`
	TotalSize    int64             `json:"totalSize"`
	TotalTime    float64           `json:"downloadTime"`
	SuccessCount int               `json:"fileCount"`
}

// NewBatchReport returns an empty report with room for n outcomes.
func NewBatchReport(n int) *BatchReport {
	return &BatchReport{Outcomes: make([]DownloadOutcome, 0, n)}
}

// Speed returns the average throughput in bytes per second.
func (r *BatchReport) Speed() float64 {
	if r.TotalTime <= 0 {
		return 0
	}
	return float64(r.TotalSize) / r.TotalTime
}

// Skipped returns the number of skipped outcomes.
func (r *BatchReport) Skipped() int {
	return r.count(OutcomeSkipped)
}

// Failed returns the number of outcomes with status error.
func (r *BatchReport) Failed() int {
	return r.count(OutcomeError)
}

func (r *BatchReport) count(status OutcomeStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}
