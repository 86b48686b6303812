package validation

import (
	"strings"
	"time"

	"timeline/backend/internal/models"

	"github.com/gofrs/uuid"
)

const MaxTitleLength = 255

// Reason tokens carried inside ValidationError.
const (
	ReasonRequired       = "required"
	ReasonTooLong        = "too_long"
	ReasonBeforeStart    = "before_start"
	ReasonBeforeCreation = "before_creation"
	ReasonInFuture       = "in_future"
	ReasonAfterComplete  = "after_completion"
)

// CreateTaskInput is the typed, already-parsed create command. Start, when
// present, overrides the default "now" as the task's created_at.
type CreateTaskInput struct {
	Title      string
	UserID     *uuid.UUID
	Start      *time.Time
	Expiration *time.Time
}

// TaskPatch carries an arbitrary subset of updatable fields. A nil pointer
// means "not supplied"; there is no way to null out a field through a patch
// except completed_at, which is cleared as a consequence of Completed=false.
type TaskPatch struct {
	Title       *string
	UserID      *uuid.UUID
	Completed   *bool
	CompletedAt *time.Time
	Expiration  *time.Time
	CreatedAt   *time.Time
}

func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.UserID == nil && p.Completed == nil &&
		p.CompletedAt == nil && p.Expiration == nil && p.CreatedAt == nil
}

func NormalizeTitle(title string) string {
	return strings.TrimSpace(title)
}

// CheckTitle enforces the title rules shared by tasks and subtasks:
// non-empty after trim, at most 255 characters.
func CheckTitle(title string) error {
	trimmed := NormalizeTitle(title)
	if trimmed == "" {
		return &models.ValidationError{Field: "title", Reason: ReasonRequired}
	}
	if len([]rune(trimmed)) > MaxTitleLength {
		return &models.ValidationError{Field: "title", Reason: ReasonTooLong}
	}
	return nil
}

// ValidateCreate checks a create command against the entity invariants.
// The expiration, if given, must not precede the effective creation time
// (the supplied start, or now when no start override is present).
func ValidateCreate(in CreateTaskInput, now time.Time) error {
	if err := CheckTitle(in.Title); err != nil {
		return err
	}
	if in.Expiration != nil {
		start := now
		if in.Start != nil {
			start = *in.Start
		}
		if in.Expiration.Before(start) {
			return &models.ValidationError{Field: "expiration", Reason: ReasonBeforeStart}
		}
	}
	return nil
}

// ValidateComplete checks an explicit completion timestamp: it must fall in
// the closed interval [createdAt, now].
func ValidateComplete(createdAt, completedAt, now time.Time) error {
	if completedAt.Before(createdAt) {
		return &models.ValidationError{Field: "completed_at", Reason: ReasonBeforeCreation}
	}
	if completedAt.After(now) {
		return &models.ValidationError{Field: "completed_at", Reason: ReasonInFuture}
	}
	return nil
}

// ValidatePatch checks only the supplied fields, but ordering rules compare
// against the effective values: a created_at patched in the same call wins
// over the stored one, and a patched created_at must stay consistent with a
// completion timestamp that is not itself being replaced.
func ValidatePatch(patch TaskPatch, current *models.Task, now time.Time) error {
	if patch.Title != nil {
		if err := CheckTitle(*patch.Title); err != nil {
			return err
		}
	}

	createdAt := current.CreatedAt
	if patch.CreatedAt != nil {
		createdAt = *patch.CreatedAt
	}

	expiration := current.Expiration
	if patch.Expiration != nil {
		expiration = patch.Expiration
	}
	if expiration != nil && (patch.Expiration != nil || patch.CreatedAt != nil) {
		if expiration.Before(createdAt) {
			return &models.ValidationError{Field: "expiration", Reason: ReasonBeforeStart}
		}
	}

	// Completion ordering mirrors how the update applies the patch: a
	// supplied completed_at wins, completed=true without one stamps now
	// (unless the task already carries a timestamp), completed=false
	// clears everything and leaves nothing to check.
	switch {
	case patch.Completed != nil && !*patch.Completed:
	case patch.CompletedAt != nil:
		if err := ValidateComplete(createdAt, *patch.CompletedAt, now); err != nil {
			return err
		}
	case patch.Completed != nil && *patch.Completed && current.CompletedAt == nil:
		// The implied stamp obeys the same bounds as a supplied one.
		if err := ValidateComplete(createdAt, now, now); err != nil {
			return err
		}
	case patch.CreatedAt != nil && current.CompletedAt != nil:
		// Moving created_at forward must not strand an existing completion
		// timestamp before it.
		if current.CompletedAt.Before(createdAt) {
			return &models.ValidationError{Field: "created_at", Reason: ReasonAfterComplete}
		}
	}

	return nil
}
