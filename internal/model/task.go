package model

import (
	"time"
)

// TaskStatus represents the state of a session task.
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusRunning TaskStatus = "running"
	TaskStatusSuccess TaskStatus = "success"
	TaskStatusFailed  TaskStatus = "failed"
)

// Valid returns true if the task status is known.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusSuccess, TaskStatusFailed:
		return true
	}
	return false
}

// Task represents a single ordered step of a session plan.
type Task struct {
	ID        string
	SessionID string
	Order     int
	Status    TaskStatus
	Data      map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TaskUpdate has the fields that can be updated on a task, nil fields are left untouched.
type TaskUpdate struct {
	Status *TaskStatus
	Order  *int
	Data   map[string]any
}
