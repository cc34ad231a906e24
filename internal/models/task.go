package models

import (
	"time"

	"gorm.io/gorm"
)

// Task statuses.
const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusDone       = "done"
	TaskStatusBlocked    = "blocked"
)

// Task priorities.
const (
	TaskPriorityLow    = "low"
	TaskPriorityMedium = "medium"
	TaskPriorityHigh   = "high"
	TaskPriorityUrgent = "urgent"
)

// Task is a unit of work, optionally attached to a project and/or a badge
// quest. Assignees holds user IDs; the first entry is the primary assignee
// (legacy single-assignee compatibility).
type Task struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	Title       string       `gorm:"size:200;not null" json:"title"`
	Description string       `gorm:"type:text" json:"description"`
	CreatorID   uint         `gorm:"index;not null" json:"creator_id"`
	Creator     *User        `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	ProjectID   *uint        `gorm:"index" json:"project_id"`
	Project     *Project     `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	QuestID     *uint        `gorm:"index" json:"quest_id"`
	Assignees   []uint       `gorm:"serializer:json" json:"assignees"`
	Status      string       `gorm:"size:50;default:todo;index" json:"status"`
	Priority    string       `gorm:"size:50;default:medium" json:"priority"`
	BadgeID     *uint        `json:"badge_id"`
	Badge       *Badge       `gorm:"foreignKey:BadgeID" json:"badge,omitempty"`

	// CompletionVerification requires the task creator to approve a
	// completion before any attached badge is awarded.
	CompletionVerification bool `gorm:"default:false" json:"completion_verification"`
	VerificationPending    bool `gorm:"default:false" json:"verification_pending"`

	IsProjectTask bool           `gorm:"default:false" json:"is_project_task"`
	DueDate       *time.Time     `gorm:"index" json:"due_date"`
	CompletedAt   *time.Time     `json:"completed_at"`
	CompletedBy   *uint          `json:"completed_by"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Task) TableName() string { return "tasks" }

// PrimaryAssignee returns the first assignee, or 0 when unassigned.
func (t *Task) PrimaryAssignee() uint {
	if len(t.Assignees) == 0 {
		return 0
	}
	return t.Assignees[0]
}

// IsAssignee reports whether userID appears anywhere in the assignee list.
func (t *Task) IsAssignee(userID uint) bool {
	for _, id := range t.Assignees {
		if id == userID {
			return true
		}
	}
	return false
}

// ValidTaskStatus reports whether s is a defined task status.
func ValidTaskStatus(s string) bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone, TaskStatusBlocked:
		return true
	}
	return false
}

// ValidTaskPriority reports whether p is a defined task priority.
func ValidTaskPriority(p string) bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityUrgent:
		return true
	}
	return false
}
