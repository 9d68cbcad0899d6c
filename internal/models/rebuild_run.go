package models

// RebuildRun records one execution of the zone rebuild
type RebuildRun struct {
	ID     string `json:"id" db:"id"`
	Status string `json:"status" db:"status"` // running, completed, failed

	EtapCount    int     `json:"etap_count" db:"etap_count"`
	BufferMeters float64 `json:"buffer_meters" db:"buffer_meters"`

	RegionsProcessed int `json:"regions_processed" db:"regions_processed"`
	RegionsSkipped   int `json:"regions_skipped" db:"regions_skipped"`
	ZonesCreated     int `json:"zones_created" db:"zones_created"`
	PointsClustered  int `json:"points_clustered" db:"points_clustered"`
	RecordIssues     int `json:"record_issues" db:"record_issues"`
	HullFailures     int `json:"hull_failures" db:"hull_failures"`

	SummaryJSON  *string `json:"summary_json,omitempty" db:"summary_json"` // full run summary
	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`

	StartedAt   *string `json:"started_at,omitempty" db:"started_at"`
	CompletedAt *string `json:"completed_at,omitempty" db:"completed_at"`
}

// Run status constants
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)
