package domain

// Employee mirrors the HR roster entry. The allocation engine reads it and
// never mutates anything beyond membership side effects keyed by Name.
type Employee struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department,omitempty"`
	Status     string `json:"status" enum:"active,terminated"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

type Project struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Members     []string `json:"members"`
	CreatedAt   string   `json:"created_at" format:"date-time"`
}

// Assignment links one employee to one project with a committed capacity
// percentage. Only status=active rows count toward workload and membership;
// pending and completed are reachable values with no transition defined yet.
type Assignment struct {
	ID              string  `json:"id"`
	ProjectID       string  `json:"project_id"`
	EmployeeID      string  `json:"employee_id"`
	Role            string  `json:"role"`
	WorkloadPercent int     `json:"workload_percent" minimum:"1" maximum:"100"`
	StartDate       *string `json:"start_date,omitempty" format:"date"`
	EndDate         *string `json:"end_date,omitempty" format:"date"`
	Status          string  `json:"status" enum:"active,pending,completed"`
	Notes           string  `json:"notes,omitempty"`
	CreatedAt       string  `json:"created_at" format:"date-time"`
}

// WorkloadReport is the per-employee utilization view.
type WorkloadReport struct {
	EmployeeID   string       `json:"employee_id"`
	TotalPercent int          `json:"total_percent"`
	Assignments  []Assignment `json:"assignments"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
