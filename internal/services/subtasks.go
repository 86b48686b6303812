package services

import (
	"errors"
	"time"

	"timeline/backend/internal/models"
	"timeline/backend/internal/validation"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type SubTaskService interface {
	AddSubTask(db *gorm.DB, taskID uuid.UUID, title string, now time.Time) (*models.SubTask, error)
	ToggleSubTask(db *gorm.DB, id uuid.UUID) (*models.SubTask, error)
	DeleteSubTask(db *gorm.DB, id uuid.UUID) error
}

type SubTaskServiceImpl struct{}

func NewSubTaskService() *SubTaskServiceImpl {
	return &SubTaskServiceImpl{}
}

func (s *SubTaskServiceImpl) AddSubTask(db *gorm.DB, taskID uuid.UUID, title string, now time.Time) (*models.SubTask, error) {
	if err := validation.CheckTitle(title); err != nil {
		return nil, err
	}

	// The parent must exist at creation time.
	var count int64
	if err := db.Model(&models.Task{}).Where("id = ?", taskID).Count(&count).Error; err != nil {
		return nil, &models.StorageError{Op: "check task", Err: err}
	}
	if count == 0 {
		return nil, &models.NotFoundError{Entity: "task", ID: taskID}
	}

	subtask := models.SubTask{
		ID:        uuid.Must(uuid.NewV4()),
		TaskID:    taskID,
		Title:     validation.NormalizeTitle(title),
		Completed: false,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.Create(&subtask).Error; err != nil {
		return nil, &models.StorageError{Op: "create subtask", Err: err}
	}
	return &subtask, nil
}

func (s *SubTaskServiceImpl) ToggleSubTask(db *gorm.DB, id uuid.UUID) (*models.SubTask, error) {
	subtask, err := getSubTask(db, id)
	if err != nil {
		return nil, err
	}

	// No timestamp semantics on subtasks, just the flag.
	if err := db.Model(subtask).Update("completed", !subtask.Completed).Error; err != nil {
		return nil, &models.StorageError{Op: "toggle subtask", Err: err}
	}
	return getSubTask(db, id)
}

func (s *SubTaskServiceImpl) DeleteSubTask(db *gorm.DB, id uuid.UUID) error {
	result := db.Delete(&models.SubTask{}, "id = ?", id)
	if result.Error != nil {
		return &models.StorageError{Op: "delete subtask", Err: result.Error}
	}
	if result.RowsAffected == 0 {
		return &models.NotFoundError{Entity: "subtask", ID: id}
	}
	return nil
}

func getSubTask(db *gorm.DB, id uuid.UUID) (*models.SubTask, error) {
	var subtask models.SubTask
	err := db.First(&subtask, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &models.NotFoundError{Entity: "subtask", ID: id}
		}
		return nil, &models.StorageError{Op: "get subtask", Err: err}
	}
	return &subtask, nil
}
