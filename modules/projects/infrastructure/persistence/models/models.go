package models

import (
	"database/sql"
	"time"
)

type Workspace struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Member struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
}

type Project struct {
	ID          string
	WorkspaceID string
	Name        string
	Archived    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Section struct {
	ID          string
	ProjectID   string
	WorkspaceID string
	Title       string
	Position    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Task struct {
	ID          string
	SectionID   string
	ProjectID   string
	WorkspaceID string
	Title       string
	Completed   bool
	Position    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type SubTask struct {
	ID          string
	TaskID      string
	ProjectID   string
	WorkspaceID string
	Title       string
	Completed   bool
	Position    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Label struct {
	ID        string
	ProjectID string
	Name      string
	Color     sql.NullString
	CreatedAt time.Time
}
