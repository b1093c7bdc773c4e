package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"staffline/internal/config"
	"staffline/internal/domain"
	"staffline/internal/events"
	"staffline/internal/repo"
)

// Engine owns the allocation rules: it validates, stores, and retracts
// employee-to-project assignments and keeps project rosters in sync.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) capacityLimit() int {
	if e.Config != nil && e.Config.Policy.CapacityPercent > 0 {
		return e.Config.Policy.CapacityPercent
	}
	return 100
}

// AssignOptions are the parameters for creating an assignment.
type AssignOptions struct {
	ProjectID       string
	EmployeeID      string
	Role            string
	WorkloadPercent int
	StartDate       string
	EndDate         string
	Notes           string
	ActorID         string
}

// Assign validates and creates an active assignment, then adds the
// employee's display name to the project roster. Validation and insertion run
// inside one write transaction so two concurrent calls cannot both pass a
// stale capacity check.
func (e Engine) Assign(ctx context.Context, opts AssignOptions) (domain.Assignment, error) {
	if strings.TrimSpace(opts.EmployeeID) == "" {
		return domain.Assignment{}, ErrMissingEmployee
	}
	if strings.TrimSpace(opts.Role) == "" {
		return domain.Assignment{}, ErrMissingRole
	}
	if opts.WorkloadPercent < 1 || opts.WorkloadPercent > 100 {
		return domain.Assignment{}, InvalidWorkloadError{Percent: opts.WorkloadPercent}
	}
	if strings.TrimSpace(opts.ProjectID) == "" {
		return domain.Assignment{}, UnknownReferenceError{Kind: "project", ID: opts.ProjectID}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Assignment{}, err
	}
	defer tx.Rollback()

	emp, err := e.Repo.GetEmployeeTx(ctx, tx, opts.EmployeeID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Assignment{}, UnknownReferenceError{Kind: "employee", ID: opts.EmployeeID}
		}
		return domain.Assignment{}, err
	}
	proj, err := e.Repo.GetProjectTx(ctx, tx, opts.ProjectID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Assignment{}, UnknownReferenceError{Kind: "project", ID: opts.ProjectID}
		}
		return domain.Assignment{}, err
	}

	if e.Config != nil && e.Config.Policy.RequireActiveEmployment && emp.Status != "active" {
		return domain.Assignment{}, InactiveEmployeeError{EmployeeID: emp.ID}
	}

	exists, err := e.Repo.ActiveAssignmentExistsTx(ctx, tx, proj.ID, emp.ID)
	if err != nil {
		return domain.Assignment{}, err
	}
	if exists {
		return domain.Assignment{}, DuplicateAssignmentError{ProjectID: proj.ID, EmployeeID: emp.ID}
	}

	current, err := e.Repo.SumActiveWorkloadTx(ctx, tx, emp.ID)
	if err != nil {
		return domain.Assignment{}, err
	}
	limit := e.capacityLimit()
	if current+opts.WorkloadPercent > limit {
		return domain.Assignment{}, CapacityExceededError{Current: current, Requested: opts.WorkloadPercent, Limit: limit}
	}

	a := domain.Assignment{
		ID:              uuid.New().String(),
		ProjectID:       proj.ID,
		EmployeeID:      emp.ID,
		Role:            strings.TrimSpace(opts.Role),
		WorkloadPercent: opts.WorkloadPercent,
		StartDate:       optionalString(opts.StartDate),
		EndDate:         optionalString(opts.EndDate),
		Status:          "active",
		Notes:           opts.Notes,
		CreatedAt:       e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertAssignmentTx(ctx, tx, a); err != nil {
		return domain.Assignment{}, fmt.Errorf("insert assignment: %w", err)
	}
	if err := e.Repo.AddProjectMemberTx(ctx, tx, proj.ID, emp.Name); err != nil {
		return domain.Assignment{}, fmt.Errorf("add project member: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "assignment.created", proj.ID, "assignment", a.ID, opts.ActorID, events.EventPayload{
		"employee_id":      emp.ID,
		"role":             a.Role,
		"workload_percent": a.WorkloadPercent,
	}); err != nil {
		return domain.Assignment{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Assignment{}, err
	}
	return a, nil
}

// Unassign deletes the assignment and removes the employee's name from the
// project roster. Roster sync is best effort: if the employee record has
// since vanished, the deletion still goes through without it.
func (e Engine) Unassign(ctx context.Context, assignmentID, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	a, err := e.Repo.GetAssignmentTx(ctx, tx, assignmentID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return UnknownAssignmentError{ID: assignmentID}
		}
		return err
	}
	if err := e.Repo.DeleteAssignmentTx(ctx, tx, assignmentID); err != nil {
		return err
	}
	if emp, err := e.Repo.GetEmployeeTx(ctx, tx, a.EmployeeID); err == nil {
		if err := e.Repo.RemoveProjectMemberTx(ctx, tx, a.ProjectID, emp.Name); err != nil {
			return fmt.Errorf("remove project member: %w", err)
		}
	} else if !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	if err := e.Events.Append(ctx, tx, "assignment.removed", a.ProjectID, "assignment", a.ID, actorID, events.EventPayload{
		"employee_id":      a.EmployeeID,
		"workload_percent": a.WorkloadPercent,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// TotalWorkload sums workload percent across the employee's active
// assignments. An unknown employee simply yields zero.
func (e Engine) TotalWorkload(ctx context.Context, employeeID string) (int, error) {
	return e.Repo.SumActiveWorkload(ctx, employeeID)
}

// Workload returns the utilization report for an employee: the recomputed
// total plus every assignment on record, any status, in insertion order.
func (e Engine) Workload(ctx context.Context, employeeID string) (domain.WorkloadReport, error) {
	if _, err := e.Repo.GetEmployee(ctx, employeeID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.WorkloadReport{}, UnknownReferenceError{Kind: "employee", ID: employeeID}
		}
		return domain.WorkloadReport{}, err
	}
	total, err := e.Repo.SumActiveWorkload(ctx, employeeID)
	if err != nil {
		return domain.WorkloadReport{}, err
	}
	items, err := e.Repo.ListByEmployee(ctx, employeeID)
	if err != nil {
		return domain.WorkloadReport{}, err
	}
	if items == nil {
		items = []domain.Assignment{}
	}
	return domain.WorkloadReport{
		EmployeeID:   employeeID,
		TotalPercent: total,
		Assignments:  items,
	}, nil
}

// CreateEmployee registers a roster entry. The directory is owned by HR in a
// full deployment; this keeps the service usable standalone.
func (e Engine) CreateEmployee(ctx context.Context, emp domain.Employee, actorID string) (domain.Employee, error) {
	if strings.TrimSpace(emp.Name) == "" {
		return emp, errors.New("name is required")
	}
	if strings.TrimSpace(emp.ID) == "" {
		emp.ID = uuid.New().String()
	}
	if emp.Status == "" {
		emp.Status = "active"
	}
	emp.CreatedAt = e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return emp, err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `INSERT INTO employees(id,name,department,status,created_at) VALUES (?,?,?,?,?)`,
		emp.ID, emp.Name, nullable(emp.Department), emp.Status, emp.CreatedAt); err != nil {
		return emp, fmt.Errorf("insert employee: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "employee.created", "", "employee", emp.ID, actorID, events.EventPayload{"name": emp.Name}); err != nil {
		return emp, err
	}
	if err := tx.Commit(); err != nil {
		return emp, err
	}
	return emp, nil
}

// CreateProject registers a project with an empty roster.
func (e Engine) CreateProject(ctx context.Context, p domain.Project, actorID string) (domain.Project, error) {
	if strings.TrimSpace(p.Name) == "" {
		return p, errors.New("name is required")
	}
	if strings.TrimSpace(p.ID) == "" {
		p.ID = uuid.New().String()
	}
	p.CreatedAt = e.now().UTC().Format(time.RFC3339)
	p.Members = []string{}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return p, err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `INSERT INTO projects(id,name,description,created_at) VALUES (?,?,?,?)`,
		p.ID, p.Name, nullable(p.Description), p.CreatedAt); err != nil {
		return p, fmt.Errorf("insert project: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "project.created", p.ID, "project", p.ID, actorID, events.EventPayload{"name": p.Name}); err != nil {
		return p, err
	}
	if err := tx.Commit(); err != nil {
		return p, err
	}
	return p, nil
}

// --- helpers ---

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
