package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/taskdeck/core/internal/application/services"
	"github.com/taskdeck/core/internal/domain/entities"
	"github.com/taskdeck/core/internal/infrastructure/logger"
	"github.com/taskdeck/core/internal/ports"
)

// MessageResponse is a simple message payload
type MessageResponse struct {
	Message string `json:"message"`
}

// statusFor maps domain errors to HTTP status codes. Everything in the
// domain taxonomy is a user-visible condition, never an unhandled fault.
func statusFor(err error) int {
	switch {
	case errors.Is(err, entities.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, entities.ErrEmptyTitle),
		errors.Is(err, entities.ErrEmptySubtaskName),
		errors.Is(err, entities.ErrSubtaskIndex),
		errors.Is(err, entities.ErrTooManyImages):
		return http.StatusBadRequest
	case errors.Is(err, entities.ErrBadFormat):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// domainError converts a service error into an echo HTTP error. Storage
// failures keep their message so the user learns the session may not
// survive a reload instead of the failure being swallowed.
func domainError(err error) *echo.HTTPError {
	code := statusFor(err)
	if code == http.StatusInternalServerError && !errors.Is(err, entities.ErrStore) {
		return echo.NewHTTPError(code, http.StatusText(code))
	}
	return echo.NewHTTPError(code, err.Error())
}

// TaskHandler handles task CRUD and subtask requests
type TaskHandler struct {
	taskService *services.TaskService
	logger      *logger.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(taskService *services.TaskService, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		logger:      logger,
	}
}

// CreateTask handles task creation
func (h *TaskHandler) CreateTask(c echo.Context) error {
	var req ports.CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.taskService.CreateTask(c.Request().Context(), req)
	if err != nil {
		h.logger.Error("Create task failed", "error", err)
		return domainError(err)
	}

	return c.JSON(http.StatusCreated, task)
}

// GetTask handles getting a task by ID
func (h *TaskHandler) GetTask(c echo.Context) error {
	task, err := h.taskService.GetTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		return domainError(err)
	}

	return c.JSON(http.StatusOK, task)
}

// UpdateTask handles updating a task
func (h *TaskHandler) UpdateTask(c echo.Context) error {
	var req ports.UpdateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.taskService.UpdateTask(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		h.logger.Error("Update task failed", "error", err, "task_id", c.Param("id"))
		return domainError(err)
	}

	return c.JSON(http.StatusOK, task)
}

// DeleteTask handles deleting a task
func (h *TaskHandler) DeleteTask(c echo.Context) error {
	if err := h.taskService.DeleteTask(c.Request().Context(), c.Param("id")); err != nil {
		h.logger.Error("Delete task failed", "error", err, "task_id", c.Param("id"))
		return domainError(err)
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: "Task deleted"})
}

// ToggleTaskRequest sets the manual completion flag of a task.
type ToggleTaskRequest struct {
	Completed bool `json:"completed"`
}

// ToggleTask handles setting the manual completion flag
func (h *TaskHandler) ToggleTask(c echo.Context) error {
	var req ToggleTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	task, err := h.taskService.SetTaskCompleted(c.Request().Context(), c.Param("id"), req.Completed)
	if err != nil {
		return domainError(err)
	}

	return c.JSON(http.StatusOK, task)
}

// SubtaskNameRequest carries a subtask name for add and rename operations.
type SubtaskNameRequest struct {
	Name string `json:"name" validate:"required"`
}

// SubtaskToggleRequest carries the completed flag for a toggle.
type SubtaskToggleRequest struct {
	Completed bool `json:"completed"`
}

// AddSubtask handles appending a subtask to a task
func (h *TaskHandler) AddSubtask(c echo.Context) error {
	var req SubtaskNameRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	task, err := h.taskService.AddSubtask(c.Request().Context(), c.Param("id"), req.Name)
	if err != nil {
		return domainError(err)
	}

	return c.JSON(http.StatusOK, task)
}

// RemoveSubtask handles removing a subtask by index
func (h *TaskHandler) RemoveSubtask(c echo.Context) error {
	index, err := subtaskIndex(c)
	if err != nil {
		return err
	}

	task, err := h.taskService.RemoveSubtask(c.Request().Context(), c.Param("id"), index)
	if err != nil {
		return domainError(err)
	}

	return c.JSON(http.StatusOK, task)
}

// RenameSubtask handles renaming a subtask by index
func (h *TaskHandler) RenameSubtask(c echo.Context) error {
	index, err := subtaskIndex(c)
	if err != nil {
		return err
	}

	var req SubtaskNameRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	task, err := h.taskService.RenameSubtask(c.Request().Context(), c.Param("id"), index, req.Name)
	if err != nil {
		return domainError(err)
	}

	return c.JSON(http.StatusOK, task)
}

// ToggleSubtask handles toggling a subtask's completed flag by index
func (h *TaskHandler) ToggleSubtask(c echo.Context) error {
	index, err := subtaskIndex(c)
	if err != nil {
		return err
	}

	var req SubtaskToggleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	task, err := h.taskService.ToggleSubtask(c.Request().Context(), c.Param("id"), index, req.Completed)
	if err != nil {
		return domainError(err)
	}

	return c.JSON(http.StatusOK, task)
}

func subtaskIndex(c echo.Context) (int, error) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid subtask index")
	}
	return index, nil
}
