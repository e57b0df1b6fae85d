package models

import "time"

// SystemMetrics is a lightweight runtime snapshot for the status endpoint.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// DashboardSummary aggregates facility-wide counts for the landing page.
type DashboardSummary struct {
	TotalPatients       int       `json:"total_patients"`
	ActivePatients      int       `json:"active_patients"`
	AppointmentsToday   int       `json:"appointments_today"`
	ChartEntriesTonight int       `json:"chart_entries_tonight"`
	LateSubmissions     int       `json:"late_submissions"`
	OpenOverrideWindows int       `json:"open_override_windows"`
	GeneratedAt         time.Time `json:"generated_at"`
}
