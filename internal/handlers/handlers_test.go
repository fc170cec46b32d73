package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/drafter/internal/export"
	"github.com/lehigh-university-libraries/drafter/internal/localdir"
	"github.com/lehigh-university-libraries/drafter/internal/models"
	"github.com/lehigh-university-libraries/drafter/internal/pipeline"
)

type stubOracle struct {
	mu   sync.Mutex
	err  error
	hold chan struct{}
}

func (o *stubOracle) Analyze(ctx context.Context, images [][]byte, exclude *models.Analysis) (*models.Analysis, error) {
	if o.hold != nil {
		<-o.hold
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	title := "Abbey Road"
	if exclude != nil {
		title = "Let It Be"
	}
	return &models.Analysis{Title: title, Artist: "The Beatles", Genre: "Rock"}, nil
}

type fixture struct {
	t       *testing.T
	server  *httptest.Server
	runner  *pipeline.Runner
	oracle  *stubOracle
	root    string
	handler *Handler
}

func newFixture(t *testing.T, folders ...string) *fixture {
	t.Helper()
	root := t.TempDir()
	for _, name := range folders {
		dir := filepath.Join(root, "batch", name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		for _, f := range []string{"J1_front.jpg", "M_main.jpg"} {
			if err := os.WriteFile(filepath.Join(dir, f), []byte("jpeg:"+f), 0o644); err != nil {
				t.Fatal(err)
			}
		}
	}
	static := filepath.Join(root, "static")
	if err := os.MkdirAll(static, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(static, "index.html"), []byte("<h1>drafter</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}

	storage, err := localdir.New(root)
	if err != nil {
		t.Fatal(err)
	}
	oracle := &stubOracle{}
	runner := pipeline.New(pipeline.Options{
		Storage:     storage,
		Oracle:      oracle,
		LabelPrefix: "C",
		Now:         func() time.Time { return time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC) },
	})

	h := New(runner, nil, export.DefaultProfile(), static)
	h.now = func() time.Time { return time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC) }
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)

	return &fixture{t: t, server: srv, runner: runner, oracle: oracle, root: root, handler: h}
}

func (f *fixture) do(method, path string, body interface{}) *http.Response {
	f.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			f.t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, f.server.URL+path, r)
	if err != nil {
		f.t.Fatal(err)
	}
	resp, err := f.server.Client().Do(req)
	if err != nil {
		f.t.Fatal(err)
	}
	f.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return v
}

// submit runs a batch to completion and returns its snapshot.
func (f *fixture) submit() *models.Session {
	f.t.Helper()
	resp := f.do(http.MethodPost, "/api/sessions", map[string]string{"source": "batch"})
	if resp.StatusCode != http.StatusAccepted {
		f.t.Fatalf("Expected 202, got %d", resp.StatusCode)
	}
	id := decode[map[string]string](f.t, resp)["session_id"]
	f.runner.Wait()

	resp = f.do(http.MethodGet, "/api/sessions/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		f.t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	return decode[*models.Session](f.t, resp)
}

func TestSubmitAndPoll(t *testing.T) {
	f := newFixture(t, "one", "two")
	session := f.submit()

	if session.Status != models.SessionCompleted {
		t.Fatalf("Expected completed, got %s (%s)", session.Status, session.Error)
	}
	if len(session.Items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(session.Items))
	}
	item := session.Items[0]
	if item.Label != "C240509_0001" || item.Status != models.ItemSuccess {
		t.Errorf("Unexpected item %+v", item)
	}
	if item.PublishedURLs[0] != "/api/images/batch/one/M_main.jpg" {
		t.Errorf("Unexpected published URL %v", item.PublishedURLs)
	}

	list := decode[[]*models.Session](t, f.do(http.MethodGet, "/api/sessions", nil))
	if len(list) != 1 {
		t.Errorf("Expected 1 session, got %d", len(list))
	}
}

func TestSubmitRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "{"},
		{"empty source", `{"source": ""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := f.server.Client().Post(f.server.URL+"/api/sessions", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestSessionFatalIsReported(t *testing.T) {
	f := newFixture(t, "済 already done")
	session := f.submit()
	if session.Status != models.SessionError || session.Error != models.ErrNoUnprocessedFolders.Error() {
		t.Errorf("Expected session error, got %s %q", session.Status, session.Error)
	}
}

func TestUnknownSession(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/api/sessions/nope", "/api/sessions/nope/export.csv", "/api/sessions/nope/export.parquet"} {
		if resp := f.do(http.MethodGet, path, nil); resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, resp.StatusCode)
		}
	}
	if resp := f.do(http.MethodPatch, "/api/sessions/nope/items/x", models.UserEdits{}); resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for save, got %d", resp.StatusCode)
	}
}

func TestSaveAndExport(t *testing.T) {
	f := newFixture(t, "one", "two")
	session := f.submit()
	item := session.Items[1]
	base := "/api/sessions/" + session.ID

	stale := models.UserEdits{Title: "x", Version: item.Version + 5}
	if resp := f.do(http.MethodPatch, base+"/items/"+item.ID, stale); resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 for stale version, got %d", resp.StatusCode)
	}

	edits := models.UserEdits{Title: "Abbey Road (Remastered)", Price: "29.99", Shipping: "15", Version: item.Version}
	resp := f.do(http.MethodPatch, base+"/items/"+item.ID, edits)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if got := decode[map[string]string](t, resp); got["status"] != "ok" || got["warning"] != "" {
		t.Errorf("Unexpected body %v", got)
	}
	if _, err := os.Stat(filepath.Join(f.root, "batch", "済 two")); err != nil {
		t.Errorf("Expected source folder to be marked: %v", err)
	}

	if resp := f.do(http.MethodPatch, base+"/items/"+item.ID, edits); resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 for second save, got %d", resp.StatusCode)
	}

	resp = f.do(http.MethodGet, base+"/export.csv", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/csv; charset=UTF-8" {
		t.Errorf("Unexpected content type %s", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "CD_20240509.csv") {
		t.Errorf("Unexpected disposition %s", cd)
	}
	body, _ := io.ReadAll(resp.Body)
	lines := strings.Split(string(body), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected header plus 1 row, got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], `"C240509_0002"`) || !strings.Contains(lines[1], `"Abbey Road (Remastered)"`) {
		t.Errorf("Unexpected row %s", lines[1])
	}

	resp = f.do(http.MethodGet, base+"/export.parquet", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 for parquet, got %d", resp.StatusCode)
	}
}

func TestSaveReportsRenameFailure(t *testing.T) {
	f := newFixture(t, "one")
	session := f.submit()
	item := session.Items[0]

	// Occupy the target name so the rename fails.
	if err := os.MkdirAll(filepath.Join(f.root, "batch", "済 one", "blocker"), 0o755); err != nil {
		t.Fatal(err)
	}

	resp := f.do(http.MethodPatch, "/api/sessions/"+session.ID+"/items/"+item.ID, models.UserEdits{Title: "t"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if got := decode[map[string]string](t, resp); got["warning"] == "" {
		t.Error("Expected a rename warning")
	}
}

func TestSaveRejectsUnknownFields(t *testing.T) {
	f := newFixture(t, "one")
	session := f.submit()
	resp := f.do(http.MethodPatch, "/api/sessions/"+session.ID+"/items/"+session.Items[0].ID, map[string]string{"titel": "typo"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestReanalyze(t *testing.T) {
	f := newFixture(t, "one")
	session := f.submit()
	path := "/api/sessions/" + session.ID + "/items/" + session.Items[0].ID + "/reanalyze"

	resp := f.do(http.MethodPost, path, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if got := decode[models.Analysis](t, resp); got.Title != "Let It Be" {
		t.Errorf("Expected excluded answer to change, got %q", got.Title)
	}

	f.oracle.mu.Lock()
	f.oracle.err = errors.New("model overloaded")
	f.oracle.mu.Unlock()
	if resp := f.do(http.MethodPost, path, nil); resp.StatusCode != http.StatusBadGateway {
		t.Errorf("Expected 502, got %d", resp.StatusCode)
	}

	if resp := f.do(http.MethodPost, "/api/sessions/"+session.ID+"/items/nope/reanalyze", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestReanalyzeInFlight(t *testing.T) {
	f := newFixture(t, "one")
	session := f.submit()
	path := "/api/sessions/" + session.ID + "/items/" + session.Items[0].ID + "/reanalyze"

	f.oracle.hold = make(chan struct{})
	done := make(chan int, 1)
	go func() {
		req, _ := http.NewRequest(http.MethodPost, f.server.URL+path, nil)
		resp, err := f.server.Client().Do(req)
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()

	for {
		snap, _ := f.runner.Session(session.ID)
		if snap.Items[0].Status == models.ItemResearching {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if resp := f.do(http.MethodPost, path, nil); resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409, got %d", resp.StatusCode)
	}
	close(f.oracle.hold)
	if code := <-done; code != http.StatusOK {
		t.Errorf("Expected first call to succeed, got %d", code)
	}
}

func TestImagesAndLookups(t *testing.T) {
	f := newFixture(t, "one")

	resp := f.do(http.MethodGet, "/api/images/batch/one/J1_front.jpg", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "jpeg:J1_front.jpg" || resp.Header.Get("Content-Type") != "image/jpeg" {
		t.Errorf("Unexpected image response %q %s", body, resp.Header.Get("Content-Type"))
	}
	if resp := f.do(http.MethodGet, "/api/images/batch/one/missing.jpg", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}

	cats := decode[[]models.Category](t, f.do(http.MethodGet, "/api/lookups/categories", nil))
	if len(cats) != 2 || cats[0].ID != "4233877819" {
		t.Errorf("Unexpected categories %v", cats)
	}
	tiers := decode[[]string](t, f.do(http.MethodGet, "/api/lookups/shipping", nil))
	if len(tiers) != 3 {
		t.Errorf("Unexpected shipping tiers %v", tiers)
	}
}

func TestHealthcheckAndStatic(t *testing.T) {
	f := newFixture(t)

	resp := f.do(http.MethodGet, "/healthcheck", nil)
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "OK" {
		t.Errorf("Unexpected healthcheck %d %q", resp.StatusCode, body)
	}

	resp = f.do(http.MethodGet, "/", nil)
	body, _ = io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "drafter") {
		t.Errorf("Unexpected index %d %q", resp.StatusCode, body)
	}
}
