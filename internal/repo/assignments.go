package repo

import (
	"context"
	"database/sql"

	"staffline/internal/domain"
)

const assignmentColumns = `id,project_id,employee_id,role,workload_percent,start_date,end_date,status,notes,created_at`

func scanAssignment(scan func(dest ...any) error) (domain.Assignment, error) {
	var a domain.Assignment
	var startDate, endDate, notes sql.NullString
	err := scan(&a.ID, &a.ProjectID, &a.EmployeeID, &a.Role, &a.WorkloadPercent,
		&startDate, &endDate, &a.Status, &notes, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	if startDate.Valid {
		a.StartDate = &startDate.String
	}
	if endDate.Valid {
		a.EndDate = &endDate.String
	}
	if notes.Valid {
		a.Notes = notes.String
	}
	return a, nil
}

func (r Repo) InsertAssignmentTx(ctx context.Context, tx *sql.Tx, a domain.Assignment) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO assignments(`+assignmentColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.ProjectID, a.EmployeeID, a.Role, a.WorkloadPercent,
		nullableStringPtr(a.StartDate), nullableStringPtr(a.EndDate), a.Status, nullable(a.Notes), a.CreatedAt)
	return err
}

func (r Repo) GetAssignment(ctx context.Context, id string) (domain.Assignment, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE id=?`, id)
	return scanAssignment(row.Scan)
}

func (r Repo) GetAssignmentTx(ctx context.Context, tx *sql.Tx, id string) (domain.Assignment, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE id=?`, id)
	return scanAssignment(row.Scan)
}

func (r Repo) DeleteAssignmentTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM assignments WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByEmployee returns every assignment for the employee, any status,
// in insertion order. Detail views rely on that stable ordering.
func (r Repo) ListByEmployee(ctx context.Context, employeeID string) ([]domain.Assignment, error) {
	return r.listAssignments(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE employee_id=? ORDER BY rowid ASC`, employeeID)
}

// ListByProject returns the project's assignments filtered by status,
// in insertion order. An empty status means all.
func (r Repo) ListByProject(ctx context.Context, projectID, status string) ([]domain.Assignment, error) {
	if status == "" {
		return r.listAssignments(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE project_id=? ORDER BY rowid ASC`, projectID)
	}
	return r.listAssignments(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE project_id=? AND status=? ORDER BY rowid ASC`, projectID, status)
}

func (r Repo) listAssignments(ctx context.Context, query string, args ...any) ([]domain.Assignment, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// ActiveAssignmentExistsTx reports whether an active (project, employee)
// pairing already exists.
func (r Repo) ActiveAssignmentExistsTx(ctx context.Context, tx *sql.Tx, projectID, employeeID string) (bool, error) {
	rows, err := tx.QueryContext(ctx, `SELECT 1 FROM assignments WHERE project_id=? AND employee_id=? AND status='active' LIMIT 1`,
		projectID, employeeID)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	return rows.Next(), rows.Err()
}

// SumActiveWorkload recomputes the employee's committed capacity from the
// current rows; nothing is cached. An unknown employee sums to zero.
func (r Repo) SumActiveWorkload(ctx context.Context, employeeID string) (int, error) {
	var total int
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(SUM(workload_percent),0) FROM assignments WHERE employee_id=? AND status='active'`,
		employeeID).Scan(&total)
	return total, err
}

func (r Repo) SumActiveWorkloadTx(ctx context.Context, tx *sql.Tx, employeeID string) (int, error) {
	var total int
	err := tx.QueryRowContext(ctx, `SELECT COALESCE(SUM(workload_percent),0) FROM assignments WHERE employee_id=? AND status='active'`,
		employeeID).Scan(&total)
	return total, err
}
