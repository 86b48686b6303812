package models

import (
	"time"

	"github.com/gofrs/uuid"
)

// Task is the primary work item. CompletedAt and Expiration are nullable;
// a completed task always carries a CompletedAt and a pending one never does.
type Task struct {
	ID          uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	UserID      *uuid.UUID `json:"user_id" gorm:"type:uuid;index"`
	Title       string     `json:"title" gorm:"size:255;not null"`
	Completed   bool       `json:"completed" gorm:"not null;default:false"`
	CreatedAt   time.Time  `json:"created_at" gorm:"index"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at"`
	Expiration  *time.Time `json:"expiration"`
	User        *User      `json:"user,omitempty" gorm:"foreignKey:UserID"`
	SubTasks    []SubTask  `json:"subtasks" gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
}

type SubTask struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	TaskID    uuid.UUID `json:"-" gorm:"type:uuid;not null;index"`
	Title     string    `json:"title" gorm:"size:255;not null"`
	Completed bool      `json:"completed" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SubTask) TableName() string {
	return "sub_tasks"
}
