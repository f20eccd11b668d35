package entity

import "time"

// Task belongs to one project and may be assigned to one user. It has no
// owner of its own: whoever owns the project owns the task.
type Task struct {
	ID             int64     `db:"id" json:"id"`
	ProjectID      int64     `db:"project_id" json:"project_id"`
	AssignedUserID *int64    `db:"assigned_user_id" json:"assigned_user_id"`
	Title          string    `db:"title" json:"title"`
	Description    *string   `db:"description" json:"description"`
	Status         string    `db:"status" json:"status"`
	Priority       int       `db:"priority" json:"priority"`
	DueDate        *Date     `db:"due_date" json:"due_date"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Input is the body of task creation.
type Input struct {
	ProjectID      int64   `json:"project_id"`
	AssignedUserID *int64  `json:"assigned_user_id"`
	Title          string  `json:"title"`
	Description    *string `json:"description"`
	Status         *string `json:"status"`
	Priority       *int    `json:"priority"`
	DueDate        *Date   `json:"due_date"`
}

// Patch is a sparse task update: only fields present in the request are
// applied. Nullable columns use Optional so an explicit null clears them.
type Patch struct {
	ProjectID      *int64           `json:"project_id"`
	AssignedUserID Optional[int64]  `json:"assigned_user_id"`
	Title          *string          `json:"title"`
	Description    Optional[string] `json:"description"`
	Status         *string          `json:"status"`
	Priority       *int             `json:"priority"`
	DueDate        Optional[Date]   `json:"due_date"`
}

// Apply returns a copy of t with the patch fields written over it.
func (p Patch) Apply(t Task) Task {
	if p.ProjectID != nil {
		t.ProjectID = *p.ProjectID
	}
	if p.AssignedUserID.Set {
		t.AssignedUserID = p.AssignedUserID.Ptr()
	}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description.Set {
		t.Description = p.Description.Ptr()
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.DueDate.Set {
		t.DueDate = p.DueDate.Ptr()
	}
	return t
}
