package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"planline/internal/config"
	"planline/internal/db"
	"planline/internal/engine"
	"planline/internal/migrate"
	"planline/internal/repo"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	handler, err := New(Config{Engine: engine.New(repo.NewSQLite(conn), config.Default()), BasePath: "/v0"})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func createProject(t *testing.T, srv *testServer, name string) ProjectResponse {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/projects", map[string]any{
		"name":       name,
		"start_date": "2025-01-01",
		"end_date":   "2025-01-31",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project: %d %s", res.StatusCode, data)
	}
	var p ProjectResponse
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("decode project: %v", err)
	}
	return p
}

func createTask(t *testing.T, srv *testServer, projectID, name, start, end string) TaskResponse {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/projects/"+projectID+"/tasks", map[string]any{
		"name":       name,
		"start_date": start,
		"end_date":   end,
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create task %s: %d %s", name, res.StatusCode, data)
	}
	var task TaskResponse
	if err := json.Unmarshal(data, &task); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	return task
}

func linkTasks(t *testing.T, srv *testServer, predID, succID string) DependencyResponse {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/dependencies", map[string]any{
		"predecessor_id": predID,
		"successor_id":   succID,
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("link: %d %s", res.StatusCode, data)
	}
	var d DependencyResponse
	if err := json.Unmarshal(data, &d); err != nil {
		t.Fatalf("decode dependency: %v", err)
	}
	return d
}

func TestSnapshotEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	p := createProject(t, srv, "rollout")
	a := createTask(t, srv, p.ID, "spec", "2025-01-01", "2025-01-10")
	b := createTask(t, srv, p.ID, "build", "2025-01-11", "2025-01-20")
	c := createTask(t, srv, p.ID, "ship", "2025-01-21", "2025-01-25")
	linkTasks(t, srv, a.ID, b.ID)
	linkTasks(t, srv, b.ID, c.ID)

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/projects/"+p.ID+"/snapshot", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("snapshot: %d %s", res.StatusCode, data)
	}
	var snap SnapshotResponse
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Timeline.TotalDays != 31 {
		t.Fatalf("total days = %d, want 31", snap.Timeline.TotalDays)
	}
	if len(snap.CriticalPath) != 3 || snap.CriticalPath[0] != a.ID {
		t.Fatalf("critical path = %v", snap.CriticalPath)
	}
	if snap.Statistics.TotalTasks != 3 {
		t.Fatalf("total tasks = %d, want 3", snap.Statistics.TotalTasks)
	}
	for _, st := range snap.Tasks {
		if st.Slack != 0 || !st.Critical {
			t.Fatalf("task %s slack=%d critical=%v", st.Name, st.Slack, st.Critical)
		}
	}
}

func TestCycleReturnsConflict(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	p := createProject(t, srv, "loop")
	a := createTask(t, srv, p.ID, "a", "2025-01-01", "2025-01-05")
	b := createTask(t, srv, p.ID, "b", "2025-01-06", "2025-01-10")
	linkTasks(t, srv, a.ID, b.ID)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/dependencies", map[string]any{
		"predecessor_id": b.ID,
		"successor_id":   a.ID,
	})
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", res.StatusCode, data)
	}
	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if envelope.Error.Code != "cycle" {
		t.Fatalf("code = %s, want cycle", envelope.Error.Code)
	}
	if envelope.Error.Details["path"] == nil {
		t.Fatalf("cycle error carries no path: %s", data)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet,
		srv.URL+"/v0/dependencies/check?predecessor_id="+b.ID+"&successor_id="+a.ID, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("check: %d %s", res.StatusCode, data)
	}
	var check struct {
		WouldCycle bool `json:"would_cycle"`
	}
	if err := json.Unmarshal(data, &check); err != nil {
		t.Fatalf("decode check: %v", err)
	}
	if !check.WouldCycle {
		t.Fatalf("would_cycle = false, want true")
	}
}

func TestErrorStatuses(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	p := createProject(t, srv, "errs")

	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/projects/missing", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("missing project = %d, want 404", res.StatusCode)
	}
	res, _ = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/projects", map[string]any{
		"name":       "errs",
		"start_date": "2025-01-01",
		"end_date":   "2025-01-31",
	})
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate name = %d, want 409", res.StatusCode)
	}
	res, _ = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/projects/"+p.ID+"/tasks", map[string]any{
		"name":       "bad",
		"start_date": "2025-01-10",
		"end_date":   "2025-01-01",
	})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("inverted range = %d, want 400", res.StatusCode)
	}
}

func TestProgressAndStatusEndpoints(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	p := createProject(t, srv, "work")
	a := createTask(t, srv, p.ID, "a", "2025-01-01", "2025-01-10")

	res, data := doJSON(t, srv.Client(), http.MethodPut, srv.URL+"/v0/tasks/"+a.ID+"/progress", map[string]any{
		"progress": 50,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("set progress: %d %s", res.StatusCode, data)
	}
	var task TaskResponse
	if err := json.Unmarshal(data, &task); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	if task.Progress != 50 || task.Status != "in_progress" {
		t.Fatalf("progress/status = %v/%s", task.Progress, task.Status)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPut, srv.URL+"/v0/tasks/"+a.ID+"/status", map[string]any{
		"status": "completed",
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("set status: %d %s", res.StatusCode, data)
	}
	if err := json.Unmarshal(data, &task); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	if task.Progress != 100 {
		t.Fatalf("progress = %v, want 100 after completion", task.Progress)
	}
}

func TestDeleteCascades(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	p := createProject(t, srv, "teardown")
	a := createTask(t, srv, p.ID, "a", "2025-01-01", "2025-01-05")
	b := createTask(t, srv, p.ID, "b", "2025-01-06", "2025-01-10")
	linkTasks(t, srv, a.ID, b.ID)

	res, _ := doJSON(t, srv.Client(), http.MethodDelete, srv.URL+"/v0/tasks/"+a.ID, nil)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("delete task = %d, want 204", res.StatusCode)
	}
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/projects/"+p.ID+"/dependencies", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list deps: %d", res.StatusCode)
	}
	var deps []DependencyResponse
	if err := json.Unmarshal(data, &deps); err != nil {
		t.Fatalf("decode deps: %v", err)
	}
	if len(deps) != 0 {
		t.Fatalf("edges survived task delete: %v", deps)
	}

	res, _ = doJSON(t, srv.Client(), http.MethodDelete, srv.URL+"/v0/projects/"+p.ID, nil)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("delete project = %d, want 204", res.StatusCode)
	}
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/tasks/"+b.ID, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("task survived project delete: %d", res.StatusCode)
	}
}
