package server

import (
	"staffline/internal/domain"
)

type AssignmentResponse struct {
	ID              string  `json:"id" doc:"Assignment identifier"`
	ProjectID       string  `json:"project_id" doc:"Project the employee is assigned to"`
	EmployeeID      string  `json:"employee_id" doc:"Assigned employee"`
	Role            string  `json:"role" doc:"Role on the project"`
	WorkloadPercent int     `json:"workload_percent" doc:"Committed capacity percentage"`
	StartDate       *string `json:"start_date,omitempty"`
	EndDate         *string `json:"end_date,omitempty"`
	Status          string  `json:"status" enum:"active,pending,completed"`
	Notes           string  `json:"notes,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

func toAssignmentResponse(a domain.Assignment) AssignmentResponse {
	return AssignmentResponse{
		ID:              a.ID,
		ProjectID:       a.ProjectID,
		EmployeeID:      a.EmployeeID,
		Role:            a.Role,
		WorkloadPercent: a.WorkloadPercent,
		StartDate:       a.StartDate,
		EndDate:         a.EndDate,
		Status:          a.Status,
		Notes:           a.Notes,
		CreatedAt:       a.CreatedAt,
	}
}

func toAssignmentResponses(items []domain.Assignment) []AssignmentResponse {
	out := make([]AssignmentResponse, 0, len(items))
	for _, a := range items {
		out = append(out, toAssignmentResponse(a))
	}
	return out
}

type EmployeeResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department,omitempty"`
	Status     string `json:"status" enum:"active,terminated"`
	CreatedAt  string `json:"created_at"`
}

func toEmployeeResponse(e domain.Employee) EmployeeResponse {
	return EmployeeResponse{
		ID:         e.ID,
		Name:       e.Name,
		Department: e.Department,
		Status:     e.Status,
		CreatedAt:  e.CreatedAt,
	}
}

type ProjectResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Members     []string `json:"members" doc:"Employee names currently on the project roster"`
	CreatedAt   string   `json:"created_at"`
}

func toProjectResponse(p domain.Project) ProjectResponse {
	members := p.Members
	if members == nil {
		members = []string{}
	}
	return ProjectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Members:     members,
		CreatedAt:   p.CreatedAt,
	}
}

type WorkloadResponse struct {
	EmployeeID   string               `json:"employee_id"`
	TotalPercent int                  `json:"total_percent" doc:"Sum of active assignment percentages"`
	Assignments  []AssignmentResponse `json:"assignments"`
}

func toWorkloadResponse(r domain.WorkloadReport) WorkloadResponse {
	return WorkloadResponse{
		EmployeeID:   r.EmployeeID,
		TotalPercent: r.TotalPercent,
		Assignments:  toAssignmentResponses(r.Assignments),
	}
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

func toEventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		ProjectID:  e.ProjectID,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    e.Payload,
	}
}
