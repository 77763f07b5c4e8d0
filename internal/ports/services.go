package ports

import (
	"context"

	"github.com/taskdeck/core/internal/domain/entities"
)

// TaskService interface for task mutations and lookups
type TaskService interface {
	CreateTask(ctx context.Context, req CreateTaskRequest) (*entities.Task, error)
	GetTask(ctx context.Context, id string) (*entities.Task, error)
	UpdateTask(ctx context.Context, id string, req UpdateTaskRequest) (*entities.Task, error)
	DeleteTask(ctx context.Context, id string) error
	SetTaskCompleted(ctx context.Context, id string, completed bool) (*entities.Task, error)
	AddSubtask(ctx context.Context, id, name string) (*entities.Task, error)
	RemoveSubtask(ctx context.Context, id string, index int) (*entities.Task, error)
	RenameSubtask(ctx context.Context, id string, index int, name string) (*entities.Task, error)
	ToggleSubtask(ctx context.Context, id string, index int, completed bool) (*entities.Task, error)
}

// ViewService interface for the derived-view pipeline and remembered
// view preferences
type ViewService interface {
	BuildView(ctx context.Context, query ViewQuery) ([]TaskView, error)
	Preferences(ctx context.Context) (ViewPreferences, error)
	SavePreferences(ctx context.Context, prefs ViewPreferences) error
}

// TransferService interface for JSON export and import
type TransferService interface {
	Export(ctx context.Context) ([]byte, error)
	Import(ctx context.Context, payload []byte) (*ImportSummary, error)
}

// Request/Response Types

// SubtaskRequest is a draft checklist item submitted with a task.
type SubtaskRequest struct {
	Name      string `json:"name" validate:"required"`
	Completed bool   `json:"completed"`
}

type CreateTaskRequest struct {
	Title       string            `json:"title" validate:"required"`
	Description string            `json:"description"`
	Priority    entities.Priority `json:"priority" validate:"omitempty,oneof=low medium high"`
	DueDate     *string           `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	ImageRefs   []string          `json:"image_refs" validate:"max=5"`
	Subtasks    []SubtaskRequest  `json:"subtasks" validate:"dive"`
}

type UpdateTaskRequest struct {
	Title       *string            `json:"title" validate:"omitempty,min=1"`
	Description *string            `json:"description"`
	Priority    *entities.Priority `json:"priority" validate:"omitempty,oneof=low medium high"`
	DueDate     *string            `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	ImageRefs   *[]string          `json:"image_refs" validate:"omitempty,max=5"`
	Subtasks    *[]SubtaskRequest  `json:"subtasks" validate:"omitempty,dive"`
	Completed   *bool              `json:"completed"`
}

// TaskView is one row of the derived view: the task plus its display-only
// derived state.
type TaskView struct {
	entities.Task
	CompletionRatio float64            `json:"completion_ratio"`
	DueStatus       entities.DueStatus `json:"due_status"`
}

// ImportSummary reports what an import merged into the collection.
type ImportSummary struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}
