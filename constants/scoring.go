package constants

// Quality score weights. Each field contributes its full weight when present and
// valid, otherwise zero. The weights sum to 1.0 so the score stays in [0,1].
const (
	ScoreWeightName        = 0.20
	ScoreWeightDescription = 0.15
	ScoreWeightGPS         = 0.20
	ScoreWeightMenu        = 0.20
	ScoreWeightContact     = 0.15
	ScoreWeightHours       = 0.10
)

// DefaultQualityScore is assigned by the schema mapper before the scorer runs.
const DefaultQualityScore = 0.5

// Duplicate detection thresholds and weights.
const (
	DedupNameThreshold    = 0.85
	DedupOverallThreshold = 0.80
	DedupMergeThreshold   = 0.95

	DedupWeightName     = 0.4
	DedupWeightLocation = 0.3
	DedupWeightContact  = 0.2
	DedupWeightMenu     = 0.1

	// LocationBucketDegrees buckets coordinates for the dedup identity key.
	// 0.01 degrees is roughly one kilometre at mid latitudes.
	LocationBucketDegrees = 0.01
)

// Daily LLM usage limits.
const (
	DailyRequestLimit = 1500
	DailyTokenLimit   = 32000
	// TokenBuffer keeps a margin so we never run the daily budget to zero mid-call.
	TokenBuffer = 100
)
