package gate

import "context"

// Client is the remote performance-testing service as seen by the gate.
//
// Implementations return structured results or errors and must honor ctx
// cancellation. The gate never inspects transport details.
type Client interface {
	// SubmitJob starts a new snapshot for testID. A non-empty tagName is
	// attached to the snapshot at creation with low priority.
	SubmitJob(ctx context.Context, testID int, tagName string) (Snapshot, error)

	// FetchJob returns the current state and metrics of a snapshot.
	FetchJob(ctx context.Context, testID, snapshotID int) (Snapshot, error)

	// UpdateJobTags adds tags to a snapshot.
	UpdateJobTags(ctx context.Context, testID, snapshotID int, tags []Tag) error

	// UpdateTestTags adds tags to a test definition.
	UpdateTestTags(ctx context.Context, testID int, tags []Tag) error

	// FetchCriticalDefects lists the critical defects found on a snapshot.
	FetchCriticalDefects(ctx context.Context, testID, snapshotID int) ([]Defect, error)

	// FetchDefectsByID lists the defects among ids found on a snapshot.
	FetchDefectsByID(ctx context.Context, testID, snapshotID int, ids []int) ([]Defect, error)

	// CheckConnection validates credentials against the service.
	CheckConnection(ctx context.Context) error

	// CheckTest returns an error if testID does not exist.
	CheckTest(ctx context.Context, testID int) error
}
