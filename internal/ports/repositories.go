package ports

import (
	"context"

	"github.com/taskdeck/core/internal/domain/entities"
)

// KVStore is the persistence collaborator: a key-value store of serialized
// strings. Both the task collection and the remembered view preferences
// live behind it, each under its own key.
type KVStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// TaskRepository owns the authoritative task collection.
type TaskRepository interface {
	// Load returns the persisted collection. A corrupt payload is discarded
	// and an empty collection returned; only store access itself errors.
	Load(ctx context.Context) ([]entities.Task, error)
	// Save persists the full collection in one write.
	Save(ctx context.Context, tasks []entities.Task) error
	Create(ctx context.Context, draft entities.Task) (*entities.Task, error)
	Update(ctx context.Context, id string, apply func(*entities.Task) error) (*entities.Task, error)
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*entities.Task, error)
	// ReplaceAll swaps in a merged collection atomically (import).
	ReplaceAll(ctx context.Context, tasks []entities.Task) error
}

// PreferenceRepository remembers the view controls across sessions, each
// preference under its own store key.
type PreferenceRepository interface {
	Load(ctx context.Context) (ViewPreferences, error)
	Save(ctx context.Context, prefs ViewPreferences) error
}

// StatusFilter narrows the view to pending or completed tasks.
type StatusFilter string

const (
	StatusAll       StatusFilter = "all"
	StatusPending   StatusFilter = "pending"
	StatusCompleted StatusFilter = "completed"
)

func (s StatusFilter) IsValid() bool {
	switch s {
	case StatusAll, StatusPending, StatusCompleted:
		return true
	default:
		return false
	}
}

// PriorityFilter narrows the view to one priority, or passes all.
type PriorityFilter string

const (
	PriorityAny PriorityFilter = "all"
)

func (p PriorityFilter) IsValid() bool {
	return p == PriorityAny || entities.Priority(p).IsValid()
}

// SortKey selects the view ordering.
type SortKey string

const (
	SortCreatedAtAsc      SortKey = "createdAtAsc"
	SortTitleAsc          SortKey = "titleAsc"
	SortTitleDesc         SortKey = "titleDesc"
	SortCompletionAsc     SortKey = "completionAsc"
	SortCompletionDesc    SortKey = "completionDesc"
	SortDueDateAsc        SortKey = "dueDateAsc"
	SortDueDateDesc       SortKey = "dueDateDesc"
	SortPriorityHighFirst SortKey = "priorityHighFirst"
	SortPriorityLowFirst  SortKey = "priorityLowFirst"
)

func (k SortKey) IsValid() bool {
	switch k {
	case SortCreatedAtAsc, SortTitleAsc, SortTitleDesc,
		SortCompletionAsc, SortCompletionDesc,
		SortDueDateAsc, SortDueDateDesc,
		SortPriorityHighFirst, SortPriorityLowFirst:
		return true
	default:
		return false
	}
}

// ViewQuery drives the derived-view pipeline: search narrows first, then
// status, then priority, then the sort key orders the result.
type ViewQuery struct {
	Search   string         `json:"search" query:"search"`
	Status   StatusFilter   `json:"status" query:"status"`
	Priority PriorityFilter `json:"priority" query:"priority"`
	Sort     SortKey        `json:"sort" query:"sort"`
}

// ViewPreferences is the remembered state of the view controls, including
// the image-visibility toggle. It never touches task data.
type ViewPreferences struct {
	Search     string         `json:"search"`
	Status     StatusFilter   `json:"status"`
	Priority   PriorityFilter `json:"priority"`
	Sort       SortKey        `json:"sort"`
	ShowImages bool           `json:"show_images"`
}

// DefaultViewPreferences returns the control state of a fresh session.
func DefaultViewPreferences() ViewPreferences {
	return ViewPreferences{
		Status:     StatusAll,
		Priority:   PriorityAny,
		Sort:       SortCreatedAtAsc,
		ShowImages: true,
	}
}
