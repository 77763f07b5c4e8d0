package http

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskdeck/core/internal/application/services"
	"github.com/taskdeck/core/internal/domain/entities"
	"github.com/taskdeck/core/internal/infrastructure/logger"
)

// maxImageBytes bounds one uploaded image before encoding.
const maxImageBytes = 8 << 20

// ComposeHandler exposes the draft compose session: field edits, the
// draft subtask buffer with its edit state machine, image uploads, and
// the final commit.
type ComposeHandler struct {
	composeService *services.ComposeService
	logger         *logger.Logger
}

// NewComposeHandler creates a new compose handler
func NewComposeHandler(composeService *services.ComposeService, logger *logger.Logger) *ComposeHandler {
	return &ComposeHandler{
		composeService: composeService,
		logger:         logger,
	}
}

// StartComposeRequest optionally names an existing task to edit.
type StartComposeRequest struct {
	TaskID string `json:"task_id"`
}

// ComposeFieldsRequest updates the draft's scalar fields.
type ComposeFieldsRequest struct {
	Title       *string            `json:"title"`
	Description *string            `json:"description"`
	Priority    *entities.Priority `json:"priority" validate:"omitempty,oneof=low medium high"`
	DueDate     *string            `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Completed   *bool              `json:"completed"`
}

// Start begins a new draft, preloaded from a task when task_id is given
func (h *ComposeHandler) Start(c echo.Context) error {
	var req StartComposeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if req.TaskID != "" {
		session, err := h.composeService.StartEdit(c.Request().Context(), req.TaskID)
		if err != nil {
			return domainError(err)
		}
		return c.JSON(http.StatusOK, session)
	}

	return c.JSON(http.StatusOK, h.composeService.Start(c.Request().Context()))
}

// Get returns the current draft
func (h *ComposeHandler) Get(c echo.Context) error {
	session, err := h.composeService.Session(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "No compose session in progress")
	}
	return c.JSON(http.StatusOK, session)
}

// SetFields updates the draft's scalar fields
func (h *ComposeHandler) SetFields(c echo.Context) error {
	var req ComposeFieldsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	session, err := h.composeService.Apply(c.Request().Context(), func(s *services.ComposeSession) error {
		if req.Title != nil {
			s.Title = *req.Title
		}
		if req.Description != nil {
			s.Description = *req.Description
		}
		if req.Priority != nil {
			s.Priority = *req.Priority
		}
		if req.DueDate != nil {
			if *req.DueDate == "" {
				s.DueDate = nil
			} else {
				s.DueDate = req.DueDate
			}
		}
		if req.Completed != nil {
			s.Completed = *req.Completed
		}
		return nil
	})
	if err != nil {
		return domainError(err)
	}

	return c.JSON(http.StatusOK, session)
}

// Commit persists the draft and clears it
func (h *ComposeHandler) Commit(c echo.Context) error {
	task, err := h.composeService.Commit(c.Request().Context())
	if err != nil {
		h.logger.Error("Compose commit failed", "error", err)
		return domainError(err)
	}

	return c.JSON(http.StatusCreated, task)
}

// Discard drops the draft
func (h *ComposeHandler) Discard(c echo.Context) error {
	h.composeService.Discard(c.Request().Context())
	return c.JSON(http.StatusOK, MessageResponse{Message: "Draft discarded"})
}

// AddSubtask appends a draft subtask
func (h *ComposeHandler) AddSubtask(c echo.Context) error {
	var req SubtaskNameRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	session, err := h.composeService.Apply(c.Request().Context(), func(s *services.ComposeSession) error {
		return s.AddSubtask(req.Name)
	})
	if err != nil {
		return domainError(err)
	}

	return c.JSON(http.StatusOK, session)
}

// RemoveSubtask removes a draft subtask by index
func (h *ComposeHandler) RemoveSubtask(c echo.Context) error {
	index, err := subtaskIndex(c)
	if err != nil {
		return err
	}

	session, err := h.composeService.Apply(c.Request().Context(), func(s *services.ComposeSession) error {
		return s.RemoveSubtask(index)
	})
	if err != nil {
		return domainError(err)
	}

	return c.JSON(http.StatusOK, session)
}

// ToggleSubtask sets a draft subtask's completed flag
func (h *ComposeHandler) ToggleSubtask(c echo.Context) error {
	index, err := subtaskIndex(c)
	if err != nil {
		return err
	}

	var req SubtaskToggleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	session, err := h.composeService.Apply(c.Request().Context(), func(s *services.ComposeSession) error {
		return s.ToggleSubtask(index, req.Completed)
	})
	if err != nil {
		return domainError(err)
	}

	return c.JSON(http.StatusOK, session)
}

// BeginSubtaskEdit transitions a draft subtask into edit mode
func (h *ComposeHandler) BeginSubtaskEdit(c echo.Context) error {
	index, err := subtaskIndex(c)
	if err != nil {
		return err
	}

	session, err := h.composeService.Apply(c.Request().Context(), func(s *services.ComposeSession) error {
		return s.BeginEdit(index)
	})
	if err != nil {
		return domainError(err)
	}

	return c.JSON(http.StatusOK, session)
}

// CommitSubtaskEdit validates the new name and leaves edit mode
func (h *ComposeHandler) CommitSubtaskEdit(c echo.Context) error {
	var req SubtaskNameRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	session, err := h.composeService.Apply(c.Request().Context(), func(s *services.ComposeSession) error {
		return s.CommitEdit(req.Name)
	})
	if err != nil {
		return domainError(err)
	}

	return c.JSON(http.StatusOK, session)
}

// CancelSubtaskEdit restores the original name and leaves edit mode
func (h *ComposeHandler) CancelSubtaskEdit(c echo.Context) error {
	session, err := h.composeService.Apply(c.Request().Context(), func(s *services.ComposeSession) error {
		s.CancelEdit()
		return nil
	})
	if err != nil {
		return domainError(err)
	}

	return c.JSON(http.StatusOK, session)
}

// AttachImages encodes the uploaded files and appends them to the draft.
// All files in the batch are read concurrently but committed in input
// order once every read settles.
func (h *ComposeHandler) AttachImages(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid multipart form")
	}

	files := form.File["images"]
	if len(files) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "No images in request")
	}

	loads := make([]services.ImageLoad, len(files))
	for i, file := range files {
		loads[i] = imageLoad(file)
	}

	var failures []error
	session, err := h.composeService.Apply(c.Request().Context(), func(s *services.ComposeSession) error {
		failures = s.AttachImages(c.Request().Context(), loads)
		for _, f := range failures {
			if errors.Is(f, entities.ErrTooManyImages) {
				return f
			}
		}
		return nil
	})
	if err != nil {
		return domainError(err)
	}

	for _, f := range failures {
		h.logger.Warn("Image load failed", "error", f)
	}

	response := map[string]interface{}{
		"session": session,
		"failed":  len(failures),
	}
	return c.JSON(http.StatusOK, response)
}

// imageLoad reads one uploaded file into a data URI.
func imageLoad(file *multipart.FileHeader) services.ImageLoad {
	return func(_ context.Context) (string, error) {
		src, err := file.Open()
		if err != nil {
			return "", err
		}
		defer src.Close()

		data, err := io.ReadAll(io.LimitReader(src, maxImageBytes))
		if err != nil {
			return "", err
		}

		mime := http.DetectContentType(data)
		return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
	}
}
