package services

import (
	"context"
	"fmt"

	"github.com/taskdeck/core/internal/domain/entities"
	"github.com/taskdeck/core/internal/infrastructure/logger"
	"github.com/taskdeck/core/internal/ports"
)

// TaskService handles task-related operations
type TaskService struct {
	taskRepo ports.TaskRepository
	logger   *logger.Logger
}

// NewTaskService creates a new task service
func NewTaskService(taskRepo ports.TaskRepository, logger *logger.Logger) *TaskService {
	return &TaskService{
		taskRepo: taskRepo,
		logger:   logger,
	}
}

// CreateTask creates a new task from the submitted fields. Draft subtasks
// and images move into the stored task in the same create.
func (s *TaskService) CreateTask(ctx context.Context, req ports.CreateTaskRequest) (*entities.Task, error) {
	draft := entities.Task{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		ImageRefs:   req.ImageRefs,
	}
	for _, st := range req.Subtasks {
		draft.Subtasks = append(draft.Subtasks, entities.Subtask{Name: st.Name, Completed: st.Completed})
	}

	task, err := s.taskRepo.Create(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.logger.Info("Task created successfully", "task_id", task.ID, "title", task.Title)

	return task, nil
}

// GetTask retrieves a task by ID
func (s *TaskService) GetTask(ctx context.Context, id string) (*entities.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("task not found: %w", err)
	}

	return task, nil
}

// UpdateTask updates a task's mutable fields; identity and creation time
// stay untouched.
func (s *TaskService) UpdateTask(ctx context.Context, id string, req ports.UpdateTaskRequest) (*entities.Task, error) {
	task, err := s.taskRepo.Update(ctx, id, func(t *entities.Task) error {
		if req.Title != nil {
			t.Title = *req.Title
		}
		if req.Description != nil {
			t.Description = *req.Description
		}
		if req.Priority != nil {
			t.Priority = *req.Priority
		}
		if req.DueDate != nil {
			t.DueDate = req.DueDate
		}
		if req.ImageRefs != nil {
			t.ImageRefs = *req.ImageRefs
		}
		if req.Subtasks != nil {
			subtasks := make([]entities.Subtask, 0, len(*req.Subtasks))
			for _, st := range *req.Subtasks {
				subtasks = append(subtasks, entities.Subtask{Name: st.Name, Completed: st.Completed})
			}
			t.Subtasks = subtasks
		}
		if req.Completed != nil {
			t.Completed = *req.Completed
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	s.logger.Info("Task updated successfully", "task_id", task.ID, "title", task.Title)

	return task, nil
}

// DeleteTask deletes a task. A stale id (double-click delete) surfaces as
// ErrTaskNotFound and leaves the collection untouched.
func (s *TaskService) DeleteTask(ctx context.Context, id string) error {
	if err := s.taskRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	s.logger.Info("Task deleted successfully", "task_id", id)

	return nil
}

// SetTaskCompleted sets the manual completion flag. It only decides
// completion for tasks without subtasks; the checklist stays authoritative
// otherwise.
func (s *TaskService) SetTaskCompleted(ctx context.Context, id string, completed bool) (*entities.Task, error) {
	task, err := s.taskRepo.Update(ctx, id, func(t *entities.Task) error {
		t.Completed = completed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update task completion: %w", err)
	}

	s.logger.Info("Task completion updated", "task_id", id, "completed", completed)

	return task, nil
}

// AddSubtask appends a subtask to a persisted task.
func (s *TaskService) AddSubtask(ctx context.Context, id, name string) (*entities.Task, error) {
	task, err := s.taskRepo.Update(ctx, id, func(t *entities.Task) error {
		return t.AddSubtask(name)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add subtask: %w", err)
	}

	s.logger.Info("Subtask added", "task_id", id, "name", name)

	return task, nil
}

// RemoveSubtask removes the subtask at index from a persisted task.
func (s *TaskService) RemoveSubtask(ctx context.Context, id string, index int) (*entities.Task, error) {
	task, err := s.taskRepo.Update(ctx, id, func(t *entities.Task) error {
		return t.RemoveSubtask(index)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to remove subtask: %w", err)
	}

	s.logger.Info("Subtask removed", "task_id", id, "index", index)

	return task, nil
}

// RenameSubtask renames the subtask at index on a persisted task.
func (s *TaskService) RenameSubtask(ctx context.Context, id string, index int, name string) (*entities.Task, error) {
	task, err := s.taskRepo.Update(ctx, id, func(t *entities.Task) error {
		return t.RenameSubtask(index, name)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to rename subtask: %w", err)
	}

	s.logger.Info("Subtask renamed", "task_id", id, "index", index)

	return task, nil
}

// ToggleSubtask sets the completed flag of the subtask at index.
func (s *TaskService) ToggleSubtask(ctx context.Context, id string, index int, completed bool) (*entities.Task, error) {
	task, err := s.taskRepo.Update(ctx, id, func(t *entities.Task) error {
		return t.ToggleSubtask(index, completed)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to toggle subtask: %w", err)
	}

	s.logger.Info("Subtask toggled", "task_id", id, "index", index, "completed", completed)

	return task, nil
}
