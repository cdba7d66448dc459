package perfapi

import (
	"github.com/3leaps/perfgate/pkg/gate"
)

// Remote snapshot status values.
const (
	statusInQueue      = "InQueue"
	statusScanRunning  = "ScanRunning"
	statusBadScan      = "BadScan"
	statusComplete     = "Complete"
	statusScanComplete = "ScanComplete"
	statusCompleted    = "Completed"
)

const tagUpdateAdd = "AddTags"

type tagJSON struct {
	Name     string `json:"name"`
	Priority string `json:"priority"`
}

type snapshotCreateRequest struct {
	Tags []tagJSON `json:"tags"`
}

type snapshotUpdateRequest struct {
	TagUpdate   string    `json:"tag_update"`
	SnapshotIDs []int     `json:"snapshot_ids"`
	Tags        []tagJSON `json:"tags"`
}

type testUpdateRequest struct {
	TagUpdate string    `json:"tag_update"`
	Tags      []tagJSON `json:"tags"`
}

type snapshotResponse struct {
	TestID          int    `json:"test_id"`
	SnapshotID      int    `json:"snapshot_id"`
	Status          string `json:"status"`
	URL             string `json:"snapshot_url_guest"`
	Score           *int   `json:"zoompf_score"`
	CriticalDefects *int   `json:"defect_count_critical_1pc"`
}

type defectJSON struct {
	DefectID int    `json:"defect_id"`
	Severity string `json:"severity"`
	Name     string `json:"name"`
	URL      string `json:"defect_url_guest"`
}

type defectListResponse struct {
	Defects []defectJSON `json:"defects"`
}

type errorResponse struct {
	Message string `json:"message"`
}

func toTagJSON(tags []gate.Tag) []tagJSON {
	out := make([]tagJSON, 0, len(tags))
	for _, t := range tags {
		t = gate.NewTag(t.Name, t.Priority)
		out = append(out, tagJSON{Name: t.Name, Priority: string(t.Priority)})
	}
	return out
}

func (r snapshotResponse) toSnapshot() gate.Snapshot {
	return gate.Snapshot{
		TestID:          r.TestID,
		SnapshotID:      r.SnapshotID,
		State:           mapStatus(r.Status),
		Score:           r.Score,
		CriticalDefects: r.CriticalDefects,
		ResultURL:       r.URL,
	}
}

// mapStatus converts a remote status to a JobState. Unknown values pass
// through unchanged and are treated as non-terminal.
func mapStatus(status string) gate.JobState {
	switch status {
	case statusInQueue:
		return gate.JobStateQueued
	case statusScanRunning:
		return gate.JobStateRunning
	case statusBadScan:
		return gate.JobStateError
	case statusComplete, statusScanComplete, statusCompleted:
		return gate.JobStateComplete
	default:
		return gate.JobState(status)
	}
}

func (r defectListResponse) toDefects() []gate.Defect {
	out := make([]gate.Defect, 0, len(r.Defects))
	for _, d := range r.Defects {
		out = append(out, gate.Defect{ID: d.DefectID, Name: d.Name, Severity: d.Severity, URL: d.URL})
	}
	return out
}
