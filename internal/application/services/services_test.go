package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/taskdeck/core/internal/domain/entities"
	"github.com/taskdeck/core/internal/ports"
)

// memTaskRepo is an in-memory ports.TaskRepository for service tests.
type memTaskRepo struct {
	tasks   []entities.Task
	failAll bool
}

var errMemStore = errors.New("mem store down")

func (m *memTaskRepo) Load(_ context.Context) ([]entities.Task, error) {
	if m.failAll {
		return nil, errMemStore
	}
	out := make([]entities.Task, len(m.tasks))
	for i := range m.tasks {
		out[i] = m.tasks[i].Clone()
	}
	return out, nil
}

func (m *memTaskRepo) Save(_ context.Context, tasks []entities.Task) error {
	if m.failAll {
		return errMemStore
	}
	m.tasks = tasks
	return nil
}

func (m *memTaskRepo) Create(_ context.Context, draft entities.Task) (*entities.Task, error) {
	if m.failAll {
		return nil, errMemStore
	}
	if strings.TrimSpace(draft.Title) == "" {
		return nil, entities.ErrEmptyTitle
	}
	if len(draft.ImageRefs) > entities.MaxImageRefs {
		return nil, entities.ErrTooManyImages
	}
	draft.ID = uuid.NewString()
	draft.CreatedAt = time.Now().UTC()
	draft.Normalize()
	m.tasks = append(m.tasks, draft)
	out := draft.Clone()
	return &out, nil
}

func (m *memTaskRepo) Update(_ context.Context, id string, apply func(*entities.Task) error) (*entities.Task, error) {
	if m.failAll {
		return nil, errMemStore
	}
	idx := m.indexOf(id)
	if idx < 0 {
		return nil, entities.ErrTaskNotFound
	}
	task := m.tasks[idx].Clone()
	if err := apply(&task); err != nil {
		return nil, err
	}
	task.ID = m.tasks[idx].ID
	task.CreatedAt = m.tasks[idx].CreatedAt
	if strings.TrimSpace(task.Title) == "" {
		return nil, entities.ErrEmptyTitle
	}
	task.Normalize()
	m.tasks[idx] = task
	out := task.Clone()
	return &out, nil
}

func (m *memTaskRepo) Delete(_ context.Context, id string) error {
	idx := m.indexOf(id)
	if idx < 0 {
		return entities.ErrTaskNotFound
	}
	m.tasks = append(m.tasks[:idx], m.tasks[idx+1:]...)
	return nil
}

func (m *memTaskRepo) FindByID(_ context.Context, id string) (*entities.Task, error) {
	idx := m.indexOf(id)
	if idx < 0 {
		return nil, entities.ErrTaskNotFound
	}
	out := m.tasks[idx].Clone()
	return &out, nil
}

func (m *memTaskRepo) ReplaceAll(_ context.Context, tasks []entities.Task) error {
	if m.failAll {
		return errMemStore
	}
	for i := range tasks {
		tasks[i].Normalize()
	}
	m.tasks = tasks
	return nil
}

func (m *memTaskRepo) indexOf(id string) int {
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// memPrefRepo is an in-memory ports.PreferenceRepository.
type memPrefRepo struct {
	prefs *ports.ViewPreferences
}

func (m *memPrefRepo) Load(_ context.Context) (ports.ViewPreferences, error) {
	if m.prefs == nil {
		return ports.DefaultViewPreferences(), nil
	}
	return *m.prefs, nil
}

func (m *memPrefRepo) Save(_ context.Context, prefs ports.ViewPreferences) error {
	m.prefs = &prefs
	return nil
}

func datePtr(s string) *string {
	return &s
}
