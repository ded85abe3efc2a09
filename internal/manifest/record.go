package manifest

import "time"

// Status enumerates task lifecycle states recorded in the manifest.
type Status string

const (
	StatusQueued         Status = "queued"
	StatusDownloading    Status = "downloading"
	StatusExtracting     Status = "extracting"
	StatusVerifying      Status = "verifying"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
	StatusDownloadFailed Status = "download_failed"
	StatusSkipped        Status = "skipped"
)

// IsTerminal reports whether a task in this status will not be touched again
// during the current run.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusDownloadFailed, StatusSkipped:
		return true
	}
	return false
}

// Record is one manifest row, keyed by (Subject, Performance).
type Record struct {
	Subject          string
	Performance      string
	Status           Status
	CamerasExtracted int
	Frames           int
	TotalBytes       int64
	AnnoBytes        int64
	RawBytes         int64
	RunID            string
	UpdatedAt        time.Time
	ErrorMessage     string
}

// SizeGB converts TotalBytes to decimal gigabytes for reporting.
func (r Record) SizeGB() float64 { return float64(r.TotalBytes) / 1e9 }

// AnnoSizeGB converts AnnoBytes to decimal gigabytes.
func (r Record) AnnoSizeGB() float64 { return float64(r.AnnoBytes) / 1e9 }

// RawSizeGB converts RawBytes to decimal gigabytes.
func (r Record) RawSizeGB() float64 { return float64(r.RawBytes) / 1e9 }

// Stats aggregates manifest rows for the run summary.
type Stats struct {
	Total          int
	Completed      int
	Failed         int
	DownloadFailed int
	InProgress     int
	TotalBytes     int64
}
