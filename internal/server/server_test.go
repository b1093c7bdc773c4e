package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"staffline/internal/config"
	"staffline/internal/db"
	"staffline/internal/domain"
	"staffline/internal/engine"
	"staffline/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

var actorHeader = map[string]string{"X-Actor-Id": "tester"}

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	cfg := config.Default("org-1")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	ctx := context.Background()
	if _, err := e.CreateEmployee(ctx, domain.Employee{ID: "emp-1", Name: "Ada Lovelace"}, "tester"); err != nil {
		t.Fatalf("seed employee: %v", err)
	}
	if _, err := e.CreateProject(ctx, domain.Project{ID: "proj-1", Name: "Apollo"}, "tester"); err != nil {
		t.Fatalf("seed project: %v", err)
	}
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth: AuthConfig{
			JWTSecret:              "test-secret",
			AllowLegacyActorHeader: true,
			DevLoginEnabled:        true,
		},
	})
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

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
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
	for k, v := range headers {
		req.Header.Set(k, v)
	}
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

func decodeError(t *testing.T, data []byte) apiErrorBody {
	t.Helper()
	var envelope struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, data)
	}
	return envelope.Error
}

func TestAssignmentLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/assignments", map[string]any{
		"project_id":       "proj-1",
		"employee_id":      "emp-1",
		"role":             "developer",
		"workload_percent": 60,
	}, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("create assignment: status %d body %s", res.StatusCode, data)
	}
	var created AssignmentResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("decode assignment: %v", err)
	}
	if created.ID == "" || created.Status != "active" {
		t.Fatalf("unexpected assignment %+v", created)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/employees/emp-1/workload", nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("workload: status %d body %s", res.StatusCode, data)
	}
	var report WorkloadResponse
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("decode workload: %v", err)
	}
	if report.TotalPercent != 60 || len(report.Assignments) != 1 {
		t.Fatalf("unexpected workload %+v", report)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/projects/proj-1", nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get project: status %d body %s", res.StatusCode, data)
	}
	var proj ProjectResponse
	if err := json.Unmarshal(data, &proj); err != nil {
		t.Fatalf("decode project: %v", err)
	}
	if len(proj.Members) != 1 || proj.Members[0] != "Ada Lovelace" {
		t.Fatalf("roster = %v", proj.Members)
	}

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v0/assignments/"+created.ID, nil, actorHeader)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("delete assignment: status %d body %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/employees/emp-1/workload", nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("workload after delete: status %d", res.StatusCode)
	}
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatal(err)
	}
	if report.TotalPercent != 0 {
		t.Fatalf("total after delete = %d", report.TotalPercent)
	}
}

func TestAssignmentConflictStatuses(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/assignments", map[string]any{
		"project_id": "proj-1", "employee_id": "emp-1", "role": "developer", "workload_percent": 80,
	}, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("seed assignment: status %d body %s", res.StatusCode, data)
	}

	// Same active pairing again.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/assignments", map[string]any{
		"project_id": "proj-1", "employee_id": "emp-1", "role": "reviewer", "workload_percent": 10,
	}, actorHeader)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate: status %d body %s", res.StatusCode, data)
	}
	if e := decodeError(t, data); e.Code != "duplicate_assignment" {
		t.Fatalf("duplicate code = %q", e.Code)
	}

	// Over capacity on another project.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects", map[string]any{
		"id": "proj-2", "name": "Gemini",
	}, actorHeader)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project: status %d body %s", res.StatusCode, data)
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/assignments", map[string]any{
		"project_id": "proj-2", "employee_id": "emp-1", "role": "developer", "workload_percent": 40,
	}, actorHeader)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("over capacity: status %d body %s", res.StatusCode, data)
	}
	e := decodeError(t, data)
	if e.Code != "capacity_exceeded" {
		t.Fatalf("capacity code = %q", e.Code)
	}
	if e.Details["current"] != float64(80) || e.Details["requested"] != float64(40) {
		t.Fatalf("capacity details = %v", e.Details)
	}
}

func TestAssignmentValidationStatuses(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/assignments", map[string]any{
		"project_id": "proj-1", "employee_id": "emp-1", "workload_percent": 50,
	}, actorHeader)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("missing role: status %d body %s", res.StatusCode, data)
	}
	if e := decodeError(t, data); e.Code != "missing_role" {
		t.Fatalf("missing role code = %q", e.Code)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/assignments", map[string]any{
		"project_id": "proj-1", "role": "developer", "workload_percent": 50,
	}, actorHeader)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("missing employee: status %d body %s", res.StatusCode, data)
	}
	if e := decodeError(t, data); e.Code != "missing_employee" {
		t.Fatalf("missing employee code = %q", e.Code)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/assignments", map[string]any{
		"project_id": "proj-1", "employee_id": "ghost", "role": "developer", "workload_percent": 50,
	}, actorHeader)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown employee: status %d body %s", res.StatusCode, data)
	}
	if e := decodeError(t, data); e.Code != "unknown_reference" {
		t.Fatalf("unknown reference code = %q", e.Code)
	}
}

func TestDeleteUnknownAssignment(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodDelete, srv.URL+"/v0/assignments/not-there", nil, actorHeader)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d body %s", res.StatusCode, data)
	}
	if e := decodeError(t, data); e.Code != "unknown_assignment" {
		t.Fatalf("code = %q", e.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v0/employees", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated list: status %d", res.StatusCode)
	}

	// Health stays open.
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health: status %d", res.StatusCode)
	}
}

func TestDevLoginAndBearerAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/auth/dev/login", map[string]any{
		"actor_id": "tester",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login: status %d body %s", res.StatusCode, data)
	}
	var login DevLoginResponse
	if err := json.Unmarshal(data, &login); err != nil || login.Token == "" {
		t.Fatalf("decode token: %v (%s)", err, data)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/employees", nil, map[string]string{
		"Authorization": "Bearer " + login.Token,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("bearer list employees: status %d body %s", res.StatusCode, data)
	}
}

func TestEventsEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/assignments", map[string]any{
		"project_id": "proj-1", "employee_id": "emp-1", "role": "developer", "workload_percent": 20,
	}, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("assign: status %d body %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/events?entity_kind=assignment", nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events: status %d body %s", res.StatusCode, data)
	}
	var page paginatedEvents
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Type != "assignment.created" {
		t.Fatalf("events = %+v", page.Items)
	}
}
