package types

import "time"

// RegionJobMessage is the SQS payload for an asynchronous region download.
// Produced by the API, consumed by the tile worker.
type RegionJobMessage struct {
	JobID       string    `json:"job_id"`
	Bounds      Bounds    `json:"bounds"`
	Zooms       []int     `json:"zooms"`
	MaxTiles    int       `json:"max_tiles,omitempty"`
	RequestedAt time.Time `json:"requested_at"`

	// Incremented by the worker when a batch is re-queued after a transient failure.
	RetryCount int `json:"retry_count"`

	TraceID string `json:"trace_id,omitempty"`
}

// Validate checks the job carries a usable region and at least one zoom.
func (m RegionJobMessage) Validate() error {
	if m.JobID == "" {
		return NewAppError(ErrCodeValidationMissingField, "job_id is required", nil)
	}
	if err := m.Bounds.Validate(); err != nil {
		return err
	}
	if len(m.Zooms) == 0 {
		return NewAppError(ErrCodeValidationMissingField, "at least one zoom level is required", nil)
	}
	for _, z := range m.Zooms {
		if z < 0 || z > MaxTileZoom {
			return NewAppErrorWithDetails(ErrCodeValidationInvalidZoom, "zoom level out of range", nil,
				map[string]any{"zoom": z})
		}
	}
	return nil
}
