package entity

// APIUsage is one service's counters for a single day. Append/increment only.
type APIUsage struct {
	ServiceName   string `json:"service_name"`
	UsageDate     string `json:"usage_date"` // YYYY-MM-DD
	RequestsCount int    `json:"requests_count"`
	TokensUsed    int    `json:"tokens_used"`
}
