package services

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"timeline/backend/internal/models"
	"timeline/backend/internal/validation"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

const DefaultPerPage = 10

// ListQuery describes one page request of the activity log. OwnerID, when
// set, restricts results to a single owner (visibility scope supplied by
// the auth layer). BasePath is used to build navigational links.
type ListQuery struct {
	Search   string
	OwnerID  *uuid.UUID
	Page     int
	PerPage  int
	BasePath string
}

type PageLinks struct {
	First string  `json:"first"`
	Last  string  `json:"last"`
	Prev  *string `json:"prev"`
	Next  *string `json:"next"`
}

// Page is one bounded slice of the task list plus the metadata the client
// needs to navigate further slices.
type Page struct {
	Data        []models.Task `json:"data"`
	CurrentPage int           `json:"current_page"`
	LastPage    int           `json:"last_page"`
	PerPage     int           `json:"per_page"`
	Total       int64         `json:"total"`
	Links       PageLinks     `json:"links"`
}

type Counts struct {
	Todo int64 `json:"todo"`
	Done int64 `json:"done"`
}

type TaskService interface {
	CreateTask(db *gorm.DB, actingUserID uuid.UUID, in validation.CreateTaskInput, now time.Time) (*models.Task, error)
	UpdateTitle(db *gorm.DB, id uuid.UUID, title string, userID *uuid.UUID) (*models.Task, error)
	UpdateTaskFields(db *gorm.DB, id uuid.UUID, patch validation.TaskPatch, now time.Time) (*models.Task, error)
	ToggleComplete(db *gorm.DB, id uuid.UUID, now time.Time) (*models.Task, error)
	CompleteTask(db *gorm.DB, id uuid.UUID, completedAt, now time.Time) (*models.Task, error)
	DeleteTask(db *gorm.DB, id uuid.UUID) error
	ListTasks(db *gorm.DB, q ListQuery) (*Page, error)
	CountByCompletion(db *gorm.DB, ownerScope *uuid.UUID) (Counts, error)
}

type TaskServiceImpl struct{}

func NewTaskService() *TaskServiceImpl {
	return &TaskServiceImpl{}
}

func (s *TaskServiceImpl) CreateTask(db *gorm.DB, actingUserID uuid.UUID, in validation.CreateTaskInput, now time.Time) (*models.Task, error) {
	if err := validation.ValidateCreate(in, now); err != nil {
		return nil, err
	}

	owner := in.UserID
	if owner == nil {
		owner = &actingUserID
	}
	if err := checkUserExists(db, *owner); err != nil {
		return nil, err
	}

	createdAt := now
	if in.Start != nil {
		createdAt = *in.Start
	}

	task := models.Task{
		ID:         uuid.Must(uuid.NewV4()),
		UserID:     owner,
		Title:      validation.NormalizeTitle(in.Title),
		Completed:  false,
		CreatedAt:  createdAt,
		UpdatedAt:  now,
		Expiration: in.Expiration,
		SubTasks:   []models.SubTask{},
	}

	if err := db.Create(&task).Error; err != nil {
		return nil, &models.StorageError{Op: "create task", Err: err}
	}
	return &task, nil
}

func (s *TaskServiceImpl) UpdateTitle(db *gorm.DB, id uuid.UUID, title string, userID *uuid.UUID) (*models.Task, error) {
	if err := validation.CheckTitle(title); err != nil {
		return nil, err
	}

	task, err := getTask(db, id)
	if err != nil {
		return nil, err
	}

	// Owner defaults to the current one when not supplied.
	owner := task.UserID
	if userID != nil {
		if err := checkUserExists(db, *userID); err != nil {
			return nil, err
		}
		owner = userID
	}

	updates := map[string]interface{}{
		"title":   validation.NormalizeTitle(title),
		"user_id": owner,
	}
	if err := db.Model(task).Updates(updates).Error; err != nil {
		return nil, &models.StorageError{Op: "update task title", Err: err}
	}
	return getTask(db, id)
}

func (s *TaskServiceImpl) UpdateTaskFields(db *gorm.DB, id uuid.UUID, patch validation.TaskPatch, now time.Time) (*models.Task, error) {
	task, err := getTask(db, id)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidatePatch(patch, task, now); err != nil {
		return nil, err
	}
	if patch.UserID != nil {
		if err := checkUserExists(db, *patch.UserID); err != nil {
			return nil, err
		}
	}

	updates := map[string]interface{}{}
	if patch.Title != nil {
		updates["title"] = validation.NormalizeTitle(*patch.Title)
	}
	if patch.UserID != nil {
		updates["user_id"] = *patch.UserID
	}
	if patch.CreatedAt != nil {
		updates["created_at"] = *patch.CreatedAt
	}
	if patch.Expiration != nil {
		updates["expiration"] = *patch.Expiration
	}

	// The completed flag and its timestamp move together: a bare
	// completed_at implies completion, completed=false clears the
	// timestamp, and completed=true without a timestamp stamps now.
	switch {
	case patch.Completed != nil && !*patch.Completed:
		updates["completed"] = false
		updates["completed_at"] = nil
	case patch.Completed != nil && *patch.Completed:
		updates["completed"] = true
		if patch.CompletedAt != nil {
			updates["completed_at"] = *patch.CompletedAt
		} else if task.CompletedAt == nil {
			updates["completed_at"] = now
		}
	case patch.CompletedAt != nil:
		updates["completed"] = true
		updates["completed_at"] = *patch.CompletedAt
	}

	if len(updates) == 0 {
		return task, nil
	}
	if err := db.Model(task).Updates(updates).Error; err != nil {
		return nil, &models.StorageError{Op: "update task fields", Err: err}
	}
	return getTask(db, id)
}

func (s *TaskServiceImpl) ToggleComplete(db *gorm.DB, id uuid.UUID, now time.Time) (*models.Task, error) {
	task, err := getTask(db, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"completed":    !task.Completed,
		"completed_at": nil,
	}
	if !task.Completed {
		updates["completed_at"] = now
	}
	if err := db.Model(task).Updates(updates).Error; err != nil {
		return nil, &models.StorageError{Op: "toggle task", Err: err}
	}
	return getTask(db, id)
}

// CompleteTask sets an explicit, validated completion timestamp. Calling it
// on an already-completed task overwrites the timestamp rather than failing:
// the transition is idempotent.
func (s *TaskServiceImpl) CompleteTask(db *gorm.DB, id uuid.UUID, completedAt, now time.Time) (*models.Task, error) {
	task, err := getTask(db, id)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateComplete(task.CreatedAt, completedAt, now); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"completed":    true,
		"completed_at": completedAt,
	}
	if err := db.Model(task).Updates(updates).Error; err != nil {
		return nil, &models.StorageError{Op: "complete task", Err: err}
	}
	return getTask(db, id)
}

func (s *TaskServiceImpl) DeleteTask(db *gorm.DB, id uuid.UUID) error {
	if _, err := getTask(db, id); err != nil {
		return err
	}

	// The task row and its subtasks go in one transaction: the cascade is
	// all-or-nothing.
	tx := db.Begin()
	if tx.Error != nil {
		return &models.StorageError{Op: "delete task", Err: tx.Error}
	}
	if err := tx.Where("task_id = ?", id).Delete(&models.SubTask{}).Error; err != nil {
		tx.Rollback()
		return &models.StorageError{Op: "delete subtasks", Err: err}
	}
	if err := tx.Delete(&models.Task{}, "id = ?", id).Error; err != nil {
		tx.Rollback()
		return &models.StorageError{Op: "delete task", Err: err}
	}
	if err := tx.Commit().Error; err != nil {
		return &models.StorageError{Op: "delete task", Err: err}
	}
	return nil
}

func (s *TaskServiceImpl) ListTasks(db *gorm.DB, q ListQuery) (*Page, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	perPage := q.PerPage
	if perPage < 1 || perPage > 100 {
		perPage = DefaultPerPage
	}

	filtered := func() *gorm.DB {
		scope := db.Model(&models.Task{})
		if q.Search != "" {
			scope = scope.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(q.Search)+"%")
		}
		if q.OwnerID != nil {
			scope = scope.Where("user_id = ?", *q.OwnerID)
		}
		return scope
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, &models.StorageError{Op: "count tasks", Err: err}
	}

	lastPage := int(math.Ceil(float64(total) / float64(perPage)))
	if lastPage < 1 {
		lastPage = 1
	}

	var tasks []models.Task
	err := filtered().
		Preload("SubTasks").
		Preload("User").
		Order("created_at DESC, id DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&tasks).Error
	if err != nil {
		return nil, &models.StorageError{Op: "list tasks", Err: err}
	}
	if tasks == nil {
		tasks = []models.Task{}
	}

	return &Page{
		Data:        tasks,
		CurrentPage: page,
		LastPage:    lastPage,
		PerPage:     perPage,
		Total:       total,
		Links:       buildLinks(q, page, lastPage, perPage),
	}, nil
}

func (s *TaskServiceImpl) CountByCompletion(db *gorm.DB, ownerScope *uuid.UUID) (Counts, error) {
	var counts Counts

	scoped := func() *gorm.DB {
		scope := db.Model(&models.Task{})
		if ownerScope != nil {
			scope = scope.Where("user_id = ?", *ownerScope)
		}
		return scope
	}
	if err := scoped().Where("completed = ?", false).Count(&counts.Todo).Error; err != nil {
		return Counts{}, &models.StorageError{Op: "count todo", Err: err}
	}
	if err := scoped().Where("completed = ?", true).Count(&counts.Done).Error; err != nil {
		return Counts{}, &models.StorageError{Op: "count done", Err: err}
	}
	return counts, nil
}

func getTask(db *gorm.DB, id uuid.UUID) (*models.Task, error) {
	var task models.Task
	err := db.Preload("SubTasks").Preload("User").First(&task, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &models.NotFoundError{Entity: "task", ID: id}
		}
		return nil, &models.StorageError{Op: "get task", Err: err}
	}
	if task.SubTasks == nil {
		task.SubTasks = []models.SubTask{}
	}
	return &task, nil
}

func checkUserExists(db *gorm.DB, id uuid.UUID) error {
	var count int64
	if err := db.Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return &models.StorageError{Op: "check user", Err: err}
	}
	if count == 0 {
		return &models.ReferenceError{Field: "user_id", ID: id}
	}
	return nil
}

func buildLinks(q ListQuery, page, lastPage, perPage int) PageLinks {
	base := q.BasePath
	if base == "" {
		base = "/api/tasks"
	}

	pageURL := func(p int) string {
		params := url.Values{}
		params.Set("page", fmt.Sprintf("%d", p))
		params.Set("per_page", fmt.Sprintf("%d", perPage))
		if q.Search != "" {
			params.Set("search", q.Search)
		}
		return base + "?" + params.Encode()
	}

	links := PageLinks{
		First: pageURL(1),
		Last:  pageURL(lastPage),
	}
	if page > 1 {
		prev := pageURL(page - 1)
		links.Prev = &prev
	}
	if page < lastPage {
		next := pageURL(page + 1)
		links.Next = &next
	}
	return links
}
