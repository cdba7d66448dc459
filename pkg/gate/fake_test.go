package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type jobKey struct {
	testID     int
	snapshotID int
}

// fakeClient is a scripted Client. FetchJob returns the next state in the
// script for a snapshot, repeating the last one once exhausted.
type fakeClient struct {
	mu sync.Mutex

	nextSnapshotID int
	submitErr      map[int]error
	scripts        map[jobKey][]Snapshot
	fetchErr       map[jobKey]error

	critical    []Defect
	criticalErr error
	watched     []Defect
	watchedErr  error
	tagErr      error
	testTagErr  error
	connErr     error
	missing     map[int]bool

	submitCalls   []submitCall
	fetchCalls    []jobKey
	jobTagCalls   map[jobKey][][]Tag
	testTagCalls  map[int][][]Tag
	criticalCalls int
	watchedCalls  [][]int
}

type submitCall struct {
	testID  int
	tagName string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		nextSnapshotID: 500,
		submitErr:      map[int]error{},
		scripts:        map[jobKey][]Snapshot{},
		fetchErr:       map[jobKey]error{},
		missing:        map[int]bool{},
		jobTagCalls:    map[jobKey][][]Tag{},
		testTagCalls:   map[int][][]Tag{},
	}
}

// script sets the states FetchJob will return for a snapshot.
func (f *fakeClient) script(testID, snapshotID int, states ...Snapshot) {
	for i := range states {
		states[i].TestID = testID
		states[i].SnapshotID = snapshotID
	}
	f.scripts[jobKey{testID, snapshotID}] = states
}

func (f *fakeClient) SubmitJob(_ context.Context, testID int, tagName string) (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls = append(f.submitCalls, submitCall{testID: testID, tagName: tagName})
	if err := f.submitErr[testID]; err != nil {
		return Snapshot{}, err
	}
	f.nextSnapshotID++
	return Snapshot{
		TestID:     testID,
		SnapshotID: f.nextSnapshotID,
		State:      JobStateQueued,
		ResultURL:  fmt.Sprintf("https://example.test/tests/%d/snapshots/%d", testID, f.nextSnapshotID),
	}, nil
}

func (f *fakeClient) FetchJob(_ context.Context, testID, snapshotID int) (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := jobKey{testID, snapshotID}
	f.fetchCalls = append(f.fetchCalls, k)
	if err := f.fetchErr[k]; err != nil {
		return Snapshot{}, err
	}
	states := f.scripts[k]
	if len(states) == 0 {
		return Snapshot{TestID: testID, SnapshotID: snapshotID, State: JobStateRunning}, nil
	}
	s := states[0]
	if len(states) > 1 {
		f.scripts[k] = states[1:]
	}
	return s, nil
}

func (f *fakeClient) UpdateJobTags(_ context.Context, testID, snapshotID int, tags []Tag) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := jobKey{testID, snapshotID}
	f.jobTagCalls[k] = append(f.jobTagCalls[k], tags)
	return f.tagErr
}

func (f *fakeClient) UpdateTestTags(_ context.Context, testID int, tags []Tag) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.testTagCalls[testID] = append(f.testTagCalls[testID], tags)
	return f.testTagErr
}

func (f *fakeClient) FetchCriticalDefects(context.Context, int, int) ([]Defect, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.criticalCalls++
	return f.critical, f.criticalErr
}

func (f *fakeClient) FetchDefectsByID(_ context.Context, _, _ int, ids []int) ([]Defect, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watchedCalls = append(f.watchedCalls, ids)
	return f.watched, f.watchedErr
}

func (f *fakeClient) CheckConnection(context.Context) error {
	return f.connErr
}

func (f *fakeClient) CheckTest(_ context.Context, testID int) error {
	if f.missing[testID] {
		return errors.New("not found")
	}
	return nil
}

func (f *fakeClient) fetchCount(testID, snapshotID int) int {
	n := 0
	for _, k := range f.fetchCalls {
		if k == (jobKey{testID, snapshotID}) {
			n++
		}
	}
	return n
}

// fakeClock advances only when the poller sleeps.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration

	// cancelAfter makes the n-th sleep (1-based) return context.Canceled.
	cancelAfter int
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	if c.cancelAfter > 0 && len(c.sleeps) == c.cancelAfter {
		return context.Canceled
	}
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) option() PollerOption {
	return WithClock(c.Now, c.Sleep)
}

func intPtr(v int) *int { return &v }

func complete(score, critical int) Snapshot {
	return Snapshot{State: JobStateComplete, Score: intPtr(score), CriticalDefects: intPtr(critical)}
}

func running() Snapshot { return Snapshot{State: JobStateRunning} }

func mustConfig(t *testing.T, opts Options) *ThresholdConfig {
	t.Helper()
	cfg, err := NewThresholdConfig(opts)
	require.NoError(t, err)
	return cfg
}
