package scanner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codereader_scans_total",
			Help: "Total number of finished scans",
		},
		[]string{"outcome"}, // found, not_found, timed_out
	)

	scanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "codereader_scan_duration_seconds",
			Help:    "Time from Start to completion of a scan",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		},
	)

	frameProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "codereader_frame_processing_duration_seconds",
			Help:    "Time spent preparing and decoding a single frame",
			Buckets: prometheus.DefBuckets,
		},
	)

	framesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codereader_frames_total",
			Help: "Frames offered to scan sessions",
		},
		[]string{"disposition"}, // processed, discarded, invalid
	)

	activeScans = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "codereader_active_scans",
			Help: "Number of scans currently running",
		},
	)
)
