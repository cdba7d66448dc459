package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

const fakeAPIKey = "test-key"

type fakeTag struct {
	Name     string `json:"name"`
	Priority string `json:"priority"`
}

// fakeAPI is an in-memory optimization API. Every snapshot it creates is
// reported with the configured status, score and critical defect count.
type fakeAPI struct {
	mu sync.Mutex

	status   string
	score    int
	critical int
	missing  map[int]bool
	defects  []int

	nextSnapshot int
	submitted    []int
	startTags    map[int][]fakeTag
	snapshotTags map[int][]fakeTag
	testTags     map[int][]fakeTag
	fetches      int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		status:       "Complete",
		score:        90,
		critical:     0,
		missing:      map[int]bool{},
		nextSnapshot: 500,
		startTags:    map[int][]fakeTag{},
		snapshotTags: map[int][]fakeTag{},
		testTags:     map[int][]fakeTag{},
	}
}

// serve starts the API and points the CLI at it through the environment.
func (f *fakeAPI) serve(t *testing.T) {
	t.Helper()

	r := chi.NewRouter()
	r.Use(f.auth)
	r.Get("/tests", func(w http.ResponseWriter, req *http.Request) {
		writeFakeJSON(w, http.StatusOK, map[string]any{"tests": []any{}})
	})
	r.Get("/tests/{testID}", f.getTest)
	r.Put("/tests/{testID}", f.tagTest)
	r.Post("/tests/{testID}/snapshots", f.createSnapshot)
	r.Put("/tests/{testID}/snapshots", f.tagSnapshots)
	r.Get("/tests/{testID}/snapshots/{snapshotID}", f.getSnapshot)
	r.Get("/tests/{testID}/snapshots/{snapshotID}/defects", f.listDefects)

	root := chi.NewRouter()
	root.Mount("/v2", r)
	srv := httptest.NewServer(root)
	t.Cleanup(srv.Close)

	t.Setenv("PERFGATE_ENDPOINT", srv.URL+"/v2")
	t.Setenv("PERFGATE_API_KEY", fakeAPIKey)
}

func (f *fakeAPI) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("API-KEY") != fakeAPIKey {
			writeFakeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid API key"})
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (f *fakeAPI) getTest(w http.ResponseWriter, req *http.Request) {
	id := urlInt(req, "testID")
	f.mu.Lock()
	missing := f.missing[id]
	f.mu.Unlock()

	if missing {
		writeFakeJSON(w, http.StatusNotFound, map[string]string{"message": "Test not found"})
		return
	}
	writeFakeJSON(w, http.StatusOK, map[string]any{"test_id": id})
}

func (f *fakeAPI) tagTest(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Tags []fakeTag `json:"tags"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeFakeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	f.mu.Lock()
	id := urlInt(req, "testID")
	f.testTags[id] = append(f.testTags[id], body.Tags...)
	f.mu.Unlock()
	writeFakeJSON(w, http.StatusOK, map[string]any{})
}

func (f *fakeAPI) createSnapshot(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Tags []fakeTag `json:"tags"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeFakeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	testID := urlInt(req, "testID")
	f.mu.Lock()
	if f.missing[testID] {
		f.mu.Unlock()
		writeFakeJSON(w, http.StatusNotFound, map[string]string{"message": "Test not found"})
		return
	}
	f.nextSnapshot++
	snapID := f.nextSnapshot
	f.submitted = append(f.submitted, testID)
	f.startTags[snapID] = body.Tags
	f.mu.Unlock()

	writeFakeJSON(w, http.StatusOK, map[string]any{
		"test_id":            testID,
		"snapshot_id":        snapID,
		"status":             "InQueue",
		"snapshot_url_guest": snapshotURL(testID, snapID),
	})
}

func (f *fakeAPI) tagSnapshots(w http.ResponseWriter, req *http.Request) {
	var body struct {
		TagUpdate   string    `json:"tag_update"`
		SnapshotIDs []int     `json:"snapshot_ids"`
		Tags        []fakeTag `json:"tags"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeFakeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	f.mu.Lock()
	for _, id := range body.SnapshotIDs {
		f.snapshotTags[id] = append(f.snapshotTags[id], body.Tags...)
	}
	f.mu.Unlock()
	writeFakeJSON(w, http.StatusOK, map[string]any{})
}

func (f *fakeAPI) getSnapshot(w http.ResponseWriter, req *http.Request) {
	testID := urlInt(req, "testID")
	snapID := urlInt(req, "snapshotID")

	f.mu.Lock()
	f.fetches++
	resp := map[string]any{
		"test_id":                   testID,
		"snapshot_id":               snapID,
		"status":                    f.status,
		"snapshot_url_guest":        snapshotURL(testID, snapID),
		"zoompf_score":              f.score,
		"defect_count_critical_1pc": f.critical,
	}
	f.mu.Unlock()
	writeFakeJSON(w, http.StatusOK, resp)
}

func (f *fakeAPI) listDefects(w http.ResponseWriter, req *http.Request) {
	f.mu.Lock()
	ids := f.defects
	f.mu.Unlock()

	defects := []map[string]any{}
	if req.URL.Query().Get("f.defect_ids") != "" {
		for _, id := range ids {
			defects = append(defects, map[string]any{
				"defect_id":        id,
				"severity":         "Critical",
				"name":             fmt.Sprintf("Defect %d", id),
				"defect_url_guest": fmt.Sprintf("https://example.test/defects/%d", id),
			})
		}
	}
	writeFakeJSON(w, http.StatusOK, map[string]any{"defects": defects})
}

func (f *fakeAPI) submittedTests() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.submitted...)
}

func (f *fakeAPI) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeAPI) tagsForSnapshot(id int) []fakeTag {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeTag(nil), f.snapshotTags[id]...)
}

func (f *fakeAPI) startTagsForSnapshot(id int) []fakeTag {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeTag(nil), f.startTags[id]...)
}

func (f *fakeAPI) tagsForTest(id int) []fakeTag {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeTag(nil), f.testTags[id]...)
}

func snapshotURL(testID, snapID int) string {
	return fmt.Sprintf("https://example.test/tests/%d/snapshots/%d", testID, snapID)
}

func urlInt(req *http.Request, key string) int {
	n, _ := strconv.Atoi(chi.URLParam(req, key))
	return n
}

func writeFakeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
