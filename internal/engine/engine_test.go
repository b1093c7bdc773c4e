package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"staffline/internal/config"
	"staffline/internal/db"
	"staffline/internal/domain"
	"staffline/internal/engine"
	"staffline/internal/migrate"
	"staffline/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("org-1")
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	if _, err := eng.CreateEmployee(ctx, domain.Employee{ID: "emp-1", Name: "Ada Lovelace"}, "tester"); err != nil {
		t.Fatalf("seed employee: %v", err)
	}
	if _, err := eng.CreateProject(ctx, domain.Project{ID: "proj-1", Name: "Apollo"}, "tester"); err != nil {
		t.Fatalf("seed project: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

func assign(t *testing.T, env testEnv, projectID, employeeID string, percent int) domain.Assignment {
	t.Helper()
	a, err := env.Engine.Assign(env.Ctx, engine.AssignOptions{
		ProjectID:       projectID,
		EmployeeID:      employeeID,
		Role:            "developer",
		WorkloadPercent: percent,
		ActorID:         "tester",
	})
	if err != nil {
		t.Fatalf("assign %s/%s %d%%: %v", projectID, employeeID, percent, err)
	}
	return a
}

func TestAssignHappyPath(t *testing.T) {
	env := newTestEnv(t)
	a := assign(t, env, "proj-1", "emp-1", 60)
	if a.ID == "" {
		t.Fatalf("expected generated assignment id")
	}
	if a.Status != "active" {
		t.Fatalf("expected active status, got %q", a.Status)
	}
	total, err := env.Engine.TotalWorkload(env.Ctx, "emp-1")
	if err != nil || total != 60 {
		t.Fatalf("total workload = %d, %v; want 60", total, err)
	}
	p, err := env.Engine.Repo.GetProject(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if len(p.Members) != 1 || p.Members[0] != "Ada Lovelace" {
		t.Fatalf("roster = %v, want [Ada Lovelace]", p.Members)
	}
}

func TestAssignExactlyFillsCapacity(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CreateProject(env.Ctx, domain.Project{ID: "proj-2", Name: "Gemini"}, "tester"); err != nil {
		t.Fatal(err)
	}
	assign(t, env, "proj-1", "emp-1", 60)
	assign(t, env, "proj-2", "emp-1", 40)
	total, err := env.Engine.TotalWorkload(env.Ctx, "emp-1")
	if err != nil || total != 100 {
		t.Fatalf("total workload = %d, %v; want 100", total, err)
	}
}

func TestAssignCapacityExceeded(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CreateProject(env.Ctx, domain.Project{ID: "proj-2", Name: "Gemini"}, "tester"); err != nil {
		t.Fatal(err)
	}
	assign(t, env, "proj-1", "emp-1", 80)
	_, err := env.Engine.Assign(env.Ctx, engine.AssignOptions{
		ProjectID:       "proj-2",
		EmployeeID:      "emp-1",
		Role:            "reviewer",
		WorkloadPercent: 40,
		ActorID:         "tester",
	})
	var ce engine.CapacityExceededError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CapacityExceededError, got %v", err)
	}
	if ce.Current != 80 || ce.Requested != 40 || ce.Limit != 100 {
		t.Fatalf("capacity details = %+v", ce)
	}
	// The failed attempt must leave nothing behind.
	total, err := env.Engine.TotalWorkload(env.Ctx, "emp-1")
	if err != nil || total != 80 {
		t.Fatalf("total workload after rejection = %d, %v; want 80", total, err)
	}
	p, err := env.Engine.Repo.GetProject(env.Ctx, "proj-2")
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Members) != 0 {
		t.Fatalf("rejected assign must not touch roster, got %v", p.Members)
	}
}

func TestAssignDuplicateActivePairing(t *testing.T) {
	env := newTestEnv(t)
	assign(t, env, "proj-1", "emp-1", 30)
	_, err := env.Engine.Assign(env.Ctx, engine.AssignOptions{
		ProjectID:       "proj-1",
		EmployeeID:      "emp-1",
		Role:            "tech lead", // a different role does not make it a new pairing
		WorkloadPercent: 20,
		ActorID:         "tester",
	})
	var dup engine.DuplicateAssignmentError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateAssignmentError, got %v", err)
	}
	if dup.ProjectID != "proj-1" || dup.EmployeeID != "emp-1" {
		t.Fatalf("duplicate details = %+v", dup)
	}
	p, err := env.Engine.Repo.GetProject(env.Ctx, "proj-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Members) != 1 {
		t.Fatalf("roster must stay deduplicated, got %v", p.Members)
	}
}

func TestAssignValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.Assign(env.Ctx, engine.AssignOptions{
		ProjectID: "proj-1", Role: "developer", WorkloadPercent: 50, ActorID: "tester",
	})
	if !errors.Is(err, engine.ErrMissingEmployee) {
		t.Fatalf("expected ErrMissingEmployee, got %v", err)
	}
	_, err = env.Engine.Assign(env.Ctx, engine.AssignOptions{
		ProjectID: "proj-1", EmployeeID: "emp-1", WorkloadPercent: 50, ActorID: "tester",
	})
	if !errors.Is(err, engine.ErrMissingRole) {
		t.Fatalf("expected ErrMissingRole, got %v", err)
	}
	for _, percent := range []int{0, -10, 101} {
		_, err = env.Engine.Assign(env.Ctx, engine.AssignOptions{
			ProjectID: "proj-1", EmployeeID: "emp-1", Role: "developer", WorkloadPercent: percent, ActorID: "tester",
		})
		var iw engine.InvalidWorkloadError
		if !errors.As(err, &iw) {
			t.Fatalf("percent %d: expected InvalidWorkloadError, got %v", percent, err)
		}
	}
}

func TestAssignUnknownReferences(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.Assign(env.Ctx, engine.AssignOptions{
		ProjectID: "proj-1", EmployeeID: "ghost", Role: "developer", WorkloadPercent: 10, ActorID: "tester",
	})
	var ref engine.UnknownReferenceError
	if !errors.As(err, &ref) || ref.Kind != "employee" {
		t.Fatalf("expected unknown employee, got %v", err)
	}
	_, err = env.Engine.Assign(env.Ctx, engine.AssignOptions{
		ProjectID: "nope", EmployeeID: "emp-1", Role: "developer", WorkloadPercent: 10, ActorID: "tester",
	})
	if !errors.As(err, &ref) || ref.Kind != "project" {
		t.Fatalf("expected unknown project, got %v", err)
	}
}

func TestUnassignFreesCapacityAndRoster(t *testing.T) {
	env := newTestEnv(t)
	a := assign(t, env, "proj-1", "emp-1", 70)
	if err := env.Engine.Unassign(env.Ctx, a.ID, "tester"); err != nil {
		t.Fatalf("unassign: %v", err)
	}
	total, err := env.Engine.TotalWorkload(env.Ctx, "emp-1")
	if err != nil || total != 0 {
		t.Fatalf("total after unassign = %d, %v; want 0", total, err)
	}
	p, err := env.Engine.Repo.GetProject(env.Ctx, "proj-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Members) != 0 {
		t.Fatalf("roster after unassign = %v, want empty", p.Members)
	}
	// Full cycle: the slot is reusable.
	assign(t, env, "proj-1", "emp-1", 70)
}

func TestUnassignUnknownAssignment(t *testing.T) {
	env := newTestEnv(t)
	err := env.Engine.Unassign(env.Ctx, "missing-id", "tester")
	var ua engine.UnknownAssignmentError
	if !errors.As(err, &ua) || ua.ID != "missing-id" {
		t.Fatalf("expected UnknownAssignmentError, got %v", err)
	}
}

func TestRosterKeepsNameWhileOtherAssignmentRemains(t *testing.T) {
	// Removing one of two assignments only drops the name when the roster
	// row for that project goes away; a second project is unaffected.
	env := newTestEnv(t)
	if _, err := env.Engine.CreateProject(env.Ctx, domain.Project{ID: "proj-2", Name: "Gemini"}, "tester"); err != nil {
		t.Fatal(err)
	}
	a1 := assign(t, env, "proj-1", "emp-1", 30)
	assign(t, env, "proj-2", "emp-1", 30)
	if err := env.Engine.Unassign(env.Ctx, a1.ID, "tester"); err != nil {
		t.Fatal(err)
	}
	p2, err := env.Engine.Repo.GetProject(env.Ctx, "proj-2")
	if err != nil {
		t.Fatal(err)
	}
	if len(p2.Members) != 1 {
		t.Fatalf("proj-2 roster = %v, want one member", p2.Members)
	}
}

func TestWorkloadReportInsertionOrder(t *testing.T) {
	env := newTestEnv(t)
	for _, id := range []string{"proj-2", "proj-3"} {
		if _, err := env.Engine.CreateProject(env.Ctx, domain.Project{ID: id, Name: id}, "tester"); err != nil {
			t.Fatal(err)
		}
	}
	assign(t, env, "proj-2", "emp-1", 20)
	assign(t, env, "proj-1", "emp-1", 30)
	assign(t, env, "proj-3", "emp-1", 10)
	report, err := env.Engine.Workload(env.Ctx, "emp-1")
	if err != nil {
		t.Fatalf("workload: %v", err)
	}
	if report.TotalPercent != 60 {
		t.Fatalf("total = %d, want 60", report.TotalPercent)
	}
	var gotProjects []string
	for _, a := range report.Assignments {
		gotProjects = append(gotProjects, a.ProjectID)
	}
	want := []string{"proj-2", "proj-1", "proj-3"}
	for i := range want {
		if gotProjects[i] != want[i] {
			t.Fatalf("assignment order = %v, want %v", gotProjects, want)
		}
	}
}

func TestWorkloadUnknownEmployee(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.Workload(env.Ctx, "ghost")
	var ref engine.UnknownReferenceError
	if !errors.As(err, &ref) || ref.Kind != "employee" {
		t.Fatalf("expected unknown employee, got %v", err)
	}
}

func TestAssignTerminatedEmployeeAllowedByDefault(t *testing.T) {
	env := newTestEnv(t)
	if err := env.Engine.Repo.UpdateEmployeeStatus(env.Ctx, "emp-1", "terminated"); err != nil {
		t.Fatal(err)
	}
	assign(t, env, "proj-1", "emp-1", 10)
}

func TestAssignTerminatedEmployeeRejectedByPolicy(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Config.Policy.RequireActiveEmployment = true
	if err := env.Engine.Repo.UpdateEmployeeStatus(env.Ctx, "emp-1", "terminated"); err != nil {
		t.Fatal(err)
	}
	_, err := env.Engine.Assign(env.Ctx, engine.AssignOptions{
		ProjectID: "proj-1", EmployeeID: "emp-1", Role: "developer", WorkloadPercent: 10, ActorID: "tester",
	})
	var ie engine.InactiveEmployeeError
	if !errors.As(err, &ie) {
		t.Fatalf("expected InactiveEmployeeError, got %v", err)
	}
}

func TestCapacityLimitFromConfig(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Config.Policy.CapacityPercent = 50
	assign(t, env, "proj-1", "emp-1", 50)
	if _, err := env.Engine.CreateProject(env.Ctx, domain.Project{ID: "proj-2", Name: "Gemini"}, "tester"); err != nil {
		t.Fatal(err)
	}
	_, err := env.Engine.Assign(env.Ctx, engine.AssignOptions{
		ProjectID: "proj-2", EmployeeID: "emp-1", Role: "developer", WorkloadPercent: 1, ActorID: "tester",
	})
	var ce engine.CapacityExceededError
	if !errors.As(err, &ce) || ce.Limit != 50 {
		t.Fatalf("expected limit 50 exceeded, got %v", err)
	}
}

func TestConcurrentAssignsCannotOverCommit(t *testing.T) {
	env := newTestEnv(t)
	const workers = 8
	for i := 0; i < workers; i++ {
		id := "proj-c" + string(rune('0'+i))
		if _, err := env.Engine.CreateProject(env.Ctx, domain.Project{ID: id, Name: id}, "tester"); err != nil {
			t.Fatal(err)
		}
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// 8 workers at 60% each: at most one can win.
			_, _ = env.Engine.Assign(env.Ctx, engine.AssignOptions{
				ProjectID:       "proj-c" + string(rune('0'+i)),
				EmployeeID:      "emp-1",
				Role:            "developer",
				WorkloadPercent: 60,
				ActorID:         "tester",
			})
		}(i)
	}
	wg.Wait()
	total, err := env.Engine.TotalWorkload(env.Ctx, "emp-1")
	if err != nil {
		t.Fatal(err)
	}
	if total > 100 {
		t.Fatalf("concurrent assigns over-committed: total = %d", total)
	}
}

func TestEventsRecorded(t *testing.T) {
	env := newTestEnv(t)
	a := assign(t, env, "proj-1", "emp-1", 25)
	if err := env.Engine.Unassign(env.Ctx, a.ID, "tester"); err != nil {
		t.Fatal(err)
	}
	events, err := env.Engine.Repo.LatestEvents(env.Ctx, 10, "", "", "assignment", "")
	if err != nil {
		t.Fatalf("latest events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d assignment events, want 2", len(events))
	}
	if events[0].Type != "assignment.removed" || events[1].Type != "assignment.created" {
		t.Fatalf("event order = %s, %s", events[0].Type, events[1].Type)
	}
}

func TestNotFoundSentinel(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.Repo.GetAssignment(env.Ctx, "nope")
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
