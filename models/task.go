package models

import (
	"time"
)

const (
	TaskStatusPending    = "Pending"
	TaskStatusInProgress = "In Progress"
	TaskStatusCompleted  = "Completed"
	TaskStatusCancelled  = "Cancelled"
)

type Task struct {
	ID              string    `json:"id"`
	TaskCreatedBy   string    `json:"task_created_by"`
	TaskRequestedBy string    `json:"task_requested_by"`
	TaskAssignedTo  string    `json:"task_assigned_to"`
	CustomerID      string    `json:"customer_id,omitempty"`
	TaskDescription string    `json:"task_description"`
	DueDate         string    `json:"due_date"` // YYYY-MM-DD
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TaskDraft はチャットから抽出した一時的なタスク情報（保存前）
type TaskDraft struct {
	TaskDescription string `json:"task_description"`
	TaskRequestedBy string `json:"task_requested_by"`
	TaskAssignedTo  string `json:"task_assigned_to"`
	TaskCreatedBy   string `json:"task_created_by"`
	CustomerID      string `json:"customer_id,omitempty"`
	DueDate         string `json:"due_date"` // YYYY-MM-DD
	Status          string `json:"status"`
}
