package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskdeck/core/internal/domain/entities"
	"github.com/taskdeck/core/internal/infrastructure/logger"
	"github.com/taskdeck/core/internal/ports"
)

// tasksKey is the store key the whole collection is serialized under.
const tasksKey = "tasks"

// TaskRepository keeps the authoritative task collection in memory and
// mirrors every mutation to the key-value store as one full JSON array.
// If a write fails the in-memory state stays authoritative for the rest
// of the session; the error is surfaced so the caller can warn the user.
type TaskRepository struct {
	mu     sync.RWMutex
	store  ports.KVStore
	tasks  []entities.Task
	logger *logger.Logger
}

// NewTaskRepository loads the persisted collection. A corrupt payload is
// discarded with a warning and the session starts with an empty
// collection; only store access failures are returned.
func NewTaskRepository(ctx context.Context, store ports.KVStore, appLogger *logger.Logger) (*TaskRepository, error) {
	r := &TaskRepository{
		store:  store,
		logger: appLogger.WithComponent("task_repository"),
	}

	raw, ok, err := store.Get(ctx, tasksKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrStore, err)
	}
	if !ok {
		r.tasks = []entities.Task{}
		return r, nil
	}

	var tasks []entities.Task
	if err := json.Unmarshal([]byte(raw), &tasks); err != nil {
		r.logger.Warn("Discarding corrupt task collection", "error", err)
		r.tasks = []entities.Task{}
		return r, nil
	}

	for i := range tasks {
		tasks[i].Normalize()
	}
	r.tasks = tasks

	return r, nil
}

// Load returns a copy of the current collection.
func (r *TaskRepository) Load(_ context.Context) ([]entities.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.cloneAllLocked(), nil
}

// Save persists the given collection and makes it current.
func (r *TaskRepository) Save(ctx context.Context, tasks []entities.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tasks = tasks
	return r.persistLocked(ctx)
}

// Create validates the draft, assigns identity and creation time, appends
// it to the collection and persists. Draft subtasks and images are taken
// verbatim, already assembled by the compose session.
func (r *TaskRepository) Create(ctx context.Context, draft entities.Task) (*entities.Task, error) {
	if strings.TrimSpace(draft.Title) == "" {
		return nil, entities.ErrEmptyTitle
	}
	if len(draft.ImageRefs) > entities.MaxImageRefs {
		return nil, entities.ErrTooManyImages
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	draft.ID = uuid.NewString()
	draft.CreatedAt = time.Now().UTC()
	draft.Normalize()

	r.tasks = append(r.tasks, draft)
	if err := r.persistLocked(ctx); err != nil {
		return nil, err
	}

	out := draft.Clone()
	return &out, nil
}

// Update applies the mutation to the task with the given id and persists.
// Identity and creation time survive whatever the mutation does.
func (r *TaskRepository) Update(ctx context.Context, id string, apply func(*entities.Task) error) (*entities.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOfLocked(id)
	if idx < 0 {
		return nil, entities.ErrTaskNotFound
	}

	task := r.tasks[idx].Clone()
	if err := apply(&task); err != nil {
		return nil, err
	}
	task.ID = r.tasks[idx].ID
	task.CreatedAt = r.tasks[idx].CreatedAt
	if strings.TrimSpace(task.Title) == "" {
		return nil, entities.ErrEmptyTitle
	}
	if len(task.ImageRefs) > entities.MaxImageRefs {
		return nil, entities.ErrTooManyImages
	}
	task.Normalize()

	r.tasks[idx] = task
	if err := r.persistLocked(ctx); err != nil {
		return nil, err
	}

	out := task.Clone()
	return &out, nil
}

// Delete removes the task with the given id and persists.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOfLocked(id)
	if idx < 0 {
		return entities.ErrTaskNotFound
	}

	r.tasks = append(r.tasks[:idx], r.tasks[idx+1:]...)
	return r.persistLocked(ctx)
}

// FindByID returns a copy of the task with the given id.
func (r *TaskRepository) FindByID(_ context.Context, id string) (*entities.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx := r.indexOfLocked(id)
	if idx < 0 {
		return nil, entities.ErrTaskNotFound
	}

	out := r.tasks[idx].Clone()
	return &out, nil
}

// ReplaceAll swaps in a merged collection in a single persisted write.
func (r *TaskRepository) ReplaceAll(ctx context.Context, tasks []entities.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range tasks {
		tasks[i].Normalize()
	}
	r.tasks = tasks
	return r.persistLocked(ctx)
}

func (r *TaskRepository) indexOfLocked(id string) int {
	for i := range r.tasks {
		if r.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *TaskRepository) cloneAllLocked() []entities.Task {
	out := make([]entities.Task, len(r.tasks))
	for i := range r.tasks {
		out[i] = r.tasks[i].Clone()
	}
	return out
}

func (r *TaskRepository) persistLocked(ctx context.Context) error {
	b, err := json.Marshal(r.tasks)
	if err != nil {
		return fmt.Errorf("marshal tasks: %w", err)
	}
	if err := r.store.Set(ctx, tasksKey, string(b)); err != nil {
		return fmt.Errorf("%w: %v", entities.ErrStore, err)
	}
	return nil
}
