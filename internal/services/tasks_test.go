package services_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"timeline/backend/internal/models"
	"timeline/backend/internal/services"
	"timeline/backend/internal/validation"

	"github.com/gofrs/uuid"
)

func TestCreateTask_DefaultsOwnerAndState(t *testing.T) {
	db := setupTestDB(t)
	svc := services.NewTaskService()
	actingUser := createTestUser(t, db, "Alice")

	task, err := svc.CreateTask(db, actingUser, validation.CreateTaskInput{Title: "Write report"}, testNow)
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	if task.UserID == nil || *task.UserID != actingUser {
		t.Errorf("Expected owner to default to acting user %s, got %v", actingUser, task.UserID)
	}
	if task.Completed {
		t.Error("Expected new task to be pending")
	}
	if task.CompletedAt != nil {
		t.Errorf("Expected completed_at absent on new task, got %v", task.CompletedAt)
	}
	if !task.CreatedAt.Equal(testNow) {
		t.Errorf("Expected created_at %v, got %v", testNow, task.CreatedAt)
	}
}

func TestCreateTask_ExplicitOwnerAndBackdatedStart(t *testing.T) {
	db := setupTestDB(t)
	svc := services.NewTaskService()
	actingUser := createTestUser(t, db, "Alice")
	assignee := createTestUser(t, db, "Bob")

	start := testNow.Add(-72 * time.Hour)
	task, err := svc.CreateTask(db, actingUser, validation.CreateTaskInput{
		Title:  "Write report",
		UserID: &assignee,
		Start:  &start,
	}, testNow)
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	if task.UserID == nil || *task.UserID != assignee {
		t.Errorf("Expected owner %s, got %v", assignee, task.UserID)
	}
	if !task.CreatedAt.Equal(start) {
		t.Errorf("Expected start override %v as created_at, got %v", start, task.CreatedAt)
	}
}

func TestCreateTask_ExpirationBeforeStartPersistsNothing(t *testing.T) {
	db := setupTestDB(t)
	svc := services.NewTaskService()
	actingUser := createTestUser(t, db, "Alice")

	_, err := svc.CreateTask(db, actingUser, validation.CreateTaskInput{
		Title:      "Write report",
		Start:      timePtr(time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)),
		Expiration: timePtr(time.Date(2024, 1, 9, 9, 0, 0, 0, time.UTC)),
	}, testNow)

	var validationErr *models.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if validationErr.Field != "expiration" || validationErr.Reason != validation.ReasonBeforeStart {
		t.Errorf("Expected expiration/before_start, got %s/%s", validationErr.Field, validationErr.Reason)
	}

	var count int64
	db.Model(&models.Task{}).Count(&count)
	if count != 0 {
		t.Errorf("Expected no row persisted, found %d", count)
	}
}

func TestCreateTask_UnknownOwner(t *testing.T) {
	db := setupTestDB(t)
	svc := services.NewTaskService()
	actingUser := createTestUser(t, db, "Alice")
	unknown := uuid.Must(uuid.NewV4())

	_, err := svc.CreateTask(db, actingUser, validation.CreateTaskInput{
		Title:  "Write report",
		UserID: &unknown,
	}, testNow)

	var refErr *models.ReferenceError
	if !errors.As(err, &refErr) {
		t.Fatalf("Expected ReferenceError, got %v", err)
	}
	if refErr.Field != "user_id" || refErr.ID != unknown {
		t.Errorf("Expected user_id/%s, got %s/%s", unknown, refErr.Field, refErr.ID)
	}
}

func TestCompleteTask_TimestampBounds(t *testing.T) {
	db := setupTestDB(t)
	svc := services.NewTaskService()
	actingUser := createTestUser(t, db, "Alice")

	start := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	task, err := svc.CreateTask(db, actingUser, validation.CreateTaskInput{
		Title: "Write report",
		Start: &start,
	}, testNow)
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	var validationErr *models.ValidationError

	_, err = svc.CompleteTask(db, task.ID, time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC), testNow)
	if !errors.As(err, &validationErr) || validationErr.Reason != validation.ReasonBeforeCreation {
		t.Errorf("Expected before_creation error, got %v", err)
	}

	_, err = svc.CompleteTask(db, task.ID, testNow.Add(time.Hour), testNow)
	if !errors.As(err, &validationErr) || validationErr.Reason != validation.ReasonInFuture {
		t.Errorf("Expected in_future error, got %v", err)
	}

	completedAt := time.Date(2024, 1, 12, 10, 0, 0, 0, time.UTC)
	completed, err := svc.CompleteTask(db, task.ID, completedAt, testNow)
	if err != nil {
		t.Fatalf("CompleteTask failed: %v", err)
	}
	if !completed.Completed {
		t.Error("Expected task to be completed")
	}
	if completed.CompletedAt == nil || !completed.CompletedAt.Equal(completedAt) {
		t.Errorf("Expected completed_at %v, got %v", completedAt, completed.CompletedAt)
	}
}

func TestCompleteTask_RecompleteOverwritesTimestamp(t *testing.T) {
	db := setupTestDB(t)
	svc := services.NewTaskService()
	actingUser := createTestUser(t, db, "Alice")

	start := testNow.Add(-96 * time.Hour)
	task, err := svc.CreateTask(db, actingUser, validation.CreateTaskInput{
		Title: "Write report",
		Start: &start,
	}, testNow)
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	first := testNow.Add(-48 * time.Hour)
	if _, err := svc.CompleteTask(db, task.ID, first, testNow); err != nil {
		t.Fatalf("First CompleteTask failed: %v", err)
	}

	second := testNow.Add(-24 * time.Hour)
	recompleted, err := svc.CompleteTask(db, task.ID, second, testNow)
	if err != nil {
		t.Fatalf("Second CompleteTask failed: %v", err)
	}
	if recompleted.CompletedAt == nil || !recompleted.CompletedAt.Equal(second) {
		t.Errorf("Expected completed_at overwritten to %v, got %v", second, recompleted.CompletedAt)
	}
	if !recompleted.Completed {
		t.Error("Expected task to stay completed")
	}
}

func TestToggleComplete_DoubleFlip(t *testing.T) {
	db := setupTestDB(t)
	svc := services.NewTaskService()
	actingUser := createTestUser(t, db, "Alice")

	task, err := svc.CreateTask(db, actingUser, validation.CreateTaskInput{Title: "Write report"}, testNow)
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	toggleTime := testNow.Add(time.Minute)
	toggled, err := svc.ToggleComplete(db, task.ID, toggleTime)
	if err != nil {
		t.Fatalf("ToggleComplete failed: %v", err)
	}
	if !toggled.Completed {
		t.Error("Expected first toggle to complete the task")
	}
	if toggled.CompletedAt == nil || !toggled.CompletedAt.Equal(toggleTime) {
		t.Errorf("Expected completed_at %v, got %v", toggleTime, toggled.CompletedAt)
	}

	untoggled, err := svc.ToggleComplete(db, task.ID, toggleTime.Add(time.Minute))
	if err != nil {
		t.Fatalf("Second ToggleComplete failed: %v", err)
	}
	if untoggled.Completed {
		t.Error("Expected second toggle to return the task to pending")
	}
	if untoggled.CompletedAt != nil {
		t.Errorf("Expected completed_at cleared, got %v", untoggled.CompletedAt)
	}
}

func TestUpdateTitle_OwnerDefaultsToCurrent(t *testing.T) {
	db := setupTestDB(t)
	svc := services.NewTaskService()
	actingUser := createTestUser(t, db, "Alice")
	other := createTestUser(t, db, "Bob")

	task, err := svc.CreateTask(db, actingUser, validation.CreateTaskInput{Title: "Write report"}, testNow)
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	updated, err := svc.UpdateTitle(db, task.ID, "Write final report", nil)
	if err != nil {
		t.Fatalf("UpdateTitle failed: %v", err)
	}
	if updated.Title != "Write final report" {
		t.Errorf("Expected updated title, got %q", updated.Title)
	}
	if updated.UserID == nil || *updated.UserID != actingUser {
		t.Errorf("Expected owner preserved as %s, got %v", actingUser, updated.UserID)
	}

	reassigned, err := svc.UpdateTitle(db, task.ID, "Write final report", &other)
	if err != nil {
		t.Fatalf("UpdateTitle with owner failed: %v", err)
	}
	if reassigned.UserID == nil || *reassigned.UserID != other {
		t.Errorf("Expected owner reassigned to %s, got %v", other, reassigned.UserID)
	}
}

func TestUpdateTaskFields_PatchSemantics(t *testing.T) {
	db := setupTestDB(t)
	svc := services.NewTaskService()
	actingUser := createTestUser(t, db, "Alice")

	start := testNow.Add(-48 * time.Hour)
	task, err := svc.CreateTask(db, actingUser, validation.CreateTaskInput{
		Title: "Write report",
		Start: &start,
	}, testNow)
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	// A bare completed_at implies completion.
	completedAt := testNow.Add(-24 * time.Hour)
	patched, err := svc.UpdateTaskFields(db, task.ID, validation.TaskPatch{CompletedAt: &completedAt}, testNow)
	if err != nil {
		t.Fatalf("UpdateTaskFields failed: %v", err)
	}
	if !patched.Completed || patched.CompletedAt == nil || !patched.CompletedAt.Equal(completedAt) {
		t.Errorf("Expected completed with timestamp %v, got completed=%v at %v", completedAt, patched.Completed, patched.CompletedAt)
	}

	// completed=false clears the timestamp.
	completedFlag := false
	cleared, err := svc.UpdateTaskFields(db, task.ID, validation.TaskPatch{Completed: &completedFlag}, testNow)
	if err != nil {
		t.Fatalf("UpdateTaskFields failed: %v", err)
	}
	if cleared.Completed || cleared.CompletedAt != nil {
		t.Errorf("Expected pending with no timestamp, got completed=%v at %v", cleared.Completed, cleared.CompletedAt)
	}

	// Unchecked fields stay put.
	if cleared.Title != "Write report" {
		t.Errorf("Expected title untouched, got %q", cleared.Title)
	}

	// Expiration before the created_at patched in the same call fails.
	_, err = svc.UpdateTaskFields(db, task.ID, validation.TaskPatch{
		CreatedAt:  timePtr(testNow.Add(-time.Hour)),
		Expiration: timePtr(testNow.Add(-24 * time.Hour)),
	}, testNow)
	var validationErr *models.ValidationError
	if !errors.As(err, &validationErr) || validationErr.Field != "expiration" {
		t.Errorf("Expected expiration validation error, got %v", err)
	}
}

func TestUpdateTaskFields_ForwardDatedCreationRejectsImpliedStamp(t *testing.T) {
	db := setupTestDB(t)
	svc := services.NewTaskService()
	actingUser := createTestUser(t, db, "Alice")

	task, err := svc.CreateTask(db, actingUser, validation.CreateTaskInput{Title: "Write report"}, testNow)
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	// completed=true without a timestamp stamps now, which must obey the
	// same bounds as a supplied completed_at against the patched created_at.
	completedFlag := true
	future := testNow.Add(48 * time.Hour)
	_, err = svc.UpdateTaskFields(db, task.ID, validation.TaskPatch{
		CreatedAt: &future,
		Completed: &completedFlag,
	}, testNow)

	var validationErr *models.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if validationErr.Field != "completed_at" || validationErr.Reason != validation.ReasonBeforeCreation {
		t.Errorf("Expected completed_at/%s, got %s/%s", validation.ReasonBeforeCreation, validationErr.Field, validationErr.Reason)
	}

	// The rejected patch must leave the row untouched.
	unchanged, err := svc.UpdateTaskFields(db, task.ID, validation.TaskPatch{}, testNow)
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if unchanged.Completed || unchanged.CompletedAt != nil {
		t.Errorf("Expected task still pending, got completed=%v at %v", unchanged.Completed, unchanged.CompletedAt)
	}
	if !unchanged.CreatedAt.Equal(task.CreatedAt) {
		t.Errorf("Expected created_at %v unchanged, got %v", task.CreatedAt, unchanged.CreatedAt)
	}
}

func TestUpdateTaskFields_UnknownTask(t *testing.T) {
	db := setupTestDB(t)
	svc := services.NewTaskService()

	title := "anything"
	_, err := svc.UpdateTaskFields(db, uuid.Must(uuid.NewV4()), validation.TaskPatch{Title: &title}, testNow)

	var notFoundErr *models.NotFoundError
	if !errors.As(err, &notFoundErr) {
		t.Fatalf("Expected NotFoundError, got %v", err)
	}
	if notFoundErr.Entity != "task" {
		t.Errorf("Expected task entity, got %s", notFoundErr.Entity)
	}
}

func TestDeleteTask_CascadesSubTasks(t *testing.T) {
	db := setupTestDB(t)
	taskSvc := services.NewTaskService()
	subSvc := services.NewSubTaskService()
	actingUser := createTestUser(t, db, "Alice")

	task, err := taskSvc.CreateTask(db, actingUser, validation.CreateTaskInput{Title: "Write report"}, testNow)
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	subtask, err := subSvc.AddSubTask(db, task.ID, "Draft outline", testNow)
	if err != nil {
		t.Fatalf("AddSubTask failed: %v", err)
	}

	if err := taskSvc.DeleteTask(db, task.ID); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}

	var notFoundErr *models.NotFoundError
	if _, err := subSvc.ToggleSubTask(db, subtask.ID); !errors.As(err, &notFoundErr) {
		t.Errorf("Expected subtask gone after cascade, got %v", err)
	}

	// Deleting twice fails the second time.
	if err := taskSvc.DeleteTask(db, task.ID); !errors.As(err, &notFoundErr) {
		t.Errorf("Expected NotFoundError on second delete, got %v", err)
	}
}

func TestListTasks_FilterAndPagination(t *testing.T) {
	db := setupTestDB(t)
	svc := services.NewTaskService()
	actingUser := createTestUser(t, db, "Alice")

	for i := 0; i < 15; i++ {
		start := testNow.Add(-time.Duration(i) * time.Hour)
		_, err := svc.CreateTask(db, actingUser, validation.CreateTaskInput{
			Title: fmt.Sprintf("Report item %d", i),
			Start: &start,
		}, testNow)
		if err != nil {
			t.Fatalf("CreateTask failed: %v", err)
		}
	}
	for i := 0; i < 5; i++ {
		start := testNow.Add(-time.Duration(100+i) * time.Hour)
		_, err := svc.CreateTask(db, actingUser, validation.CreateTaskInput{
			Title: fmt.Sprintf("Errand %d", i),
			Start: &start,
		}, testNow)
		if err != nil {
			t.Fatalf("CreateTask failed: %v", err)
		}
	}

	page, err := svc.ListTasks(db, services.ListQuery{Search: "REPORT", Page: 1, PerPage: 10})
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}

	if len(page.Data) != 10 {
		t.Errorf("Expected 10 tasks on page 1, got %d", len(page.Data))
	}
	if page.Total != 15 {
		t.Errorf("Expected total 15, got %d", page.Total)
	}
	if page.LastPage != 2 {
		t.Errorf("Expected last_page 2, got %d", page.LastPage)
	}
	if page.Links.Next == nil {
		t.Error("Expected next link on page 1")
	}
	if page.Links.Prev != nil {
		t.Error("Expected no prev link on page 1")
	}

	// Newest first.
	if page.Data[0].Title != "Report item 0" {
		t.Errorf("Expected newest task first, got %q", page.Data[0].Title)
	}
	for i := 1; i < len(page.Data); i++ {
		if page.Data[i].CreatedAt.After(page.Data[i-1].CreatedAt) {
			t.Errorf("Expected descending created_at order at index %d", i)
		}
	}

	page2, err := svc.ListTasks(db, services.ListQuery{Search: "report", Page: 2, PerPage: 10})
	if err != nil {
		t.Fatalf("ListTasks page 2 failed: %v", err)
	}
	if len(page2.Data) != 5 {
		t.Errorf("Expected 5 tasks on page 2, got %d", len(page2.Data))
	}
	if page2.Links.Prev == nil {
		t.Error("Expected prev link on page 2")
	}
	if page2.Links.Next != nil {
		t.Error("Expected no next link on the last page")
	}
}

func TestListTasks_NoFilterReturnsAll(t *testing.T) {
	db := setupTestDB(t)
	svc := services.NewTaskService()
	actingUser := createTestUser(t, db, "Alice")

	for i := 0; i < 3; i++ {
		start := testNow.Add(-time.Duration(i) * time.Hour)
		if _, err := svc.CreateTask(db, actingUser, validation.CreateTaskInput{
			Title: fmt.Sprintf("Task %d", i),
			Start: &start,
		}, testNow); err != nil {
			t.Fatalf("CreateTask failed: %v", err)
		}
	}

	page, err := svc.ListTasks(db, services.ListQuery{})
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if page.Total != 3 || len(page.Data) != 3 {
		t.Errorf("Expected all 3 tasks, got total=%d len=%d", page.Total, len(page.Data))
	}
}

func TestListTasks_OwnerScope(t *testing.T) {
	db := setupTestDB(t)
	svc := services.NewTaskService()
	alice := createTestUser(t, db, "Alice")
	bob := createTestUser(t, db, "Bob")

	if _, err := svc.CreateTask(db, alice, validation.CreateTaskInput{Title: "Alice task"}, testNow); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if _, err := svc.CreateTask(db, bob, validation.CreateTaskInput{Title: "Bob task"}, testNow); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	page, err := svc.ListTasks(db, services.ListQuery{OwnerID: &alice})
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if page.Total != 1 || page.Data[0].Title != "Alice task" {
		t.Errorf("Expected only Alice's task, got total=%d", page.Total)
	}
}

func TestCountByCompletion_ReflectsToggleImmediately(t *testing.T) {
	db := setupTestDB(t)
	svc := services.NewTaskService()
	actingUser := createTestUser(t, db, "Alice")

	var tasks []*models.Task
	for i := 0; i < 4; i++ {
		task, err := svc.CreateTask(db, actingUser, validation.CreateTaskInput{
			Title: fmt.Sprintf("Task %d", i),
		}, testNow)
		if err != nil {
			t.Fatalf("CreateTask failed: %v", err)
		}
		tasks = append(tasks, task)
	}

	counts, err := svc.CountByCompletion(db, nil)
	if err != nil {
		t.Fatalf("CountByCompletion failed: %v", err)
	}
	if counts.Todo != 4 || counts.Done != 0 {
		t.Errorf("Expected 4/0, got %d/%d", counts.Todo, counts.Done)
	}

	if _, err := svc.ToggleComplete(db, tasks[0].ID, testNow); err != nil {
		t.Fatalf("ToggleComplete failed: %v", err)
	}

	counts, err = svc.CountByCompletion(db, nil)
	if err != nil {
		t.Fatalf("CountByCompletion failed: %v", err)
	}
	if counts.Todo != 3 || counts.Done != 1 {
		t.Errorf("Expected 3/1 after toggle, got %d/%d", counts.Todo, counts.Done)
	}
	if counts.Todo+counts.Done != 4 {
		t.Errorf("Expected counts to add up to 4, got %d", counts.Todo+counts.Done)
	}
}

func TestCountByCompletion_OwnerScope(t *testing.T) {
	db := setupTestDB(t)
	svc := services.NewTaskService()
	alice := createTestUser(t, db, "Alice")
	bob := createTestUser(t, db, "Bob")

	aliceTask, err := svc.CreateTask(db, alice, validation.CreateTaskInput{Title: "Alice task"}, testNow)
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if _, err := svc.CreateTask(db, bob, validation.CreateTaskInput{Title: "Bob task"}, testNow); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if _, err := svc.ToggleComplete(db, aliceTask.ID, testNow); err != nil {
		t.Fatalf("ToggleComplete failed: %v", err)
	}

	counts, err := svc.CountByCompletion(db, &alice)
	if err != nil {
		t.Fatalf("CountByCompletion failed: %v", err)
	}
	if counts.Todo != 0 || counts.Done != 1 {
		t.Errorf("Expected 0/1 in Alice's scope, got %d/%d", counts.Todo, counts.Done)
	}
}
