package constants

// JobStatus is the canonical status for rows in scraping_jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusPending   JobStatus = "pending"   // queued, waiting for a worker
	JobStatusRunning   JobStatus = "running"   // claimed by exactly one worker
	JobStatusCompleted JobStatus = "completed" // terminal success
	JobStatusFailed    JobStatus = "failed"    // failed attempt; terminal once retries are exhausted
)

// VerificationStatus tracks operator review state on a food truck record.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationFlagged  VerificationStatus = "flagged"
)

// DefaultMaxRetries bounds the failed -> pending retry loop per job.
const DefaultMaxRetries = 3

// DefaultJobPriority is assigned to discovery-created jobs. Higher is more urgent.
const DefaultJobPriority = 5

// StalenessThresholdDays controls when a previously scraped truck is re-queued.
const StalenessThresholdDays = 7
