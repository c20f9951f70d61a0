package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BatchesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "onc_archive_batches_created_total",
		Help: "Total number of download batches created",
	})

	BatchesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "onc_archive_batches_completed_total",
		Help: "Total number of download batches completed",
	})

	BatchesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "onc_archive_batches_failed_total",
		Help: "Total number of download batches that could not start",
	})

	DownloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "onc_archive_downloads_total",
		Help: "Total number of archive file download attempts",
	})

	DownloadsSuccess = promauto.NewCounter(prometheus.CounterOpts{
		Name: "onc_archive_downloads_success_total",
		Help: "Total number of successful archive file downloads",
	})

	DownloadsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "onc_archive_downloads_failed_total",
		Help: "Total number of failed archive file downloads",
	})

	DownloadsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "onc_archive_downloads_skipped_total",
		Help: "Total number of archive files skipped because they already exist",
	})

	DownloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "onc_archive_download_duration_seconds",
		Help:    "Archive file download duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	DownloadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "onc_archive_download_bytes_total",
		Help: "Total bytes downloaded from the archive",
	})

	WorkersBusy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "onc_archive_workers_busy",
		Help: "Number of download workers currently processing a file",
	})
)
