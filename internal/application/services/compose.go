package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/taskdeck/core/internal/domain/entities"
	"github.com/taskdeck/core/internal/infrastructure/logger"
	"github.com/taskdeck/core/internal/ports"
)

// ComposeSession is the transient state of a task being created or edited:
// the field values, the draft subtask buffer, the draft image list and the
// per-subtask edit state. Nothing in it touches the repository until the
// session commits.
type ComposeSession struct {
	// EditingID is the id of the task being edited, empty for a new task.
	EditingID   string            `json:"editing_id,omitempty"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Priority    entities.Priority `json:"priority"`
	DueDate     *string           `json:"due_date,omitempty"`
	Subtasks    entities.Subtasks `json:"subtasks"`
	ImageRefs   []string          `json:"image_refs"`
	Completed   bool              `json:"completed"`

	// Subtask edit state machine: each subtask is either viewing or
	// editing. At most one subtask edits at a time, matching the single
	// inline edit field of the UI.
	editIndex int
	editName  string
}

// NewComposeSession starts a blank session for a new task.
func NewComposeSession() *ComposeSession {
	return &ComposeSession{
		Priority:  entities.PriorityMedium,
		Subtasks:  entities.Subtasks{},
		ImageRefs: []string{},
		editIndex: -1,
	}
}

// EditSessionFor starts a session preloaded from an existing task.
func EditSessionFor(task *entities.Task) *ComposeSession {
	return &ComposeSession{
		EditingID:   task.ID,
		Title:       task.Title,
		Description: task.Description,
		Priority:    task.Priority,
		DueDate:     task.DueDate,
		Subtasks:    append(entities.Subtasks{}, task.Subtasks...),
		ImageRefs:   append([]string{}, task.ImageRefs...),
		Completed:   task.Completed,
		editIndex:   -1,
	}
}

// AddSubtask appends a draft subtask.
func (c *ComposeSession) AddSubtask(name string) error {
	return c.Subtasks.Add(name)
}

// RemoveSubtask removes the draft subtask at index. Removing the subtask
// under edit abandons that edit.
func (c *ComposeSession) RemoveSubtask(index int) error {
	if err := c.Subtasks.Remove(index); err != nil {
		return err
	}
	switch {
	case c.editIndex == index:
		c.editIndex = -1
		c.editName = ""
	case c.editIndex > index:
		c.editIndex--
	}
	return nil
}

// ToggleSubtask sets the completed flag of the draft subtask at index.
func (c *ComposeSession) ToggleSubtask(index int, completed bool) error {
	return c.Subtasks.Toggle(index, completed)
}

// BeginEdit transitions the subtask at index from viewing to editing,
// capturing its current name so a cancel can restore it.
func (c *ComposeSession) BeginEdit(index int) error {
	if index < 0 || index >= len(c.Subtasks) {
		return entities.ErrSubtaskIndex
	}
	c.editIndex = index
	c.editName = c.Subtasks[index].Name
	return nil
}

// CommitEdit validates the new name and transitions back to viewing. On a
// validation failure the subtask stays in editing so the user can fix it.
func (c *ComposeSession) CommitEdit(newName string) error {
	if c.editIndex < 0 {
		return entities.ErrSubtaskIndex
	}
	if err := c.Subtasks.Rename(c.editIndex, newName); err != nil {
		return err
	}
	c.editIndex = -1
	c.editName = ""
	return nil
}

// CancelEdit restores the captured name and transitions back to viewing.
func (c *ComposeSession) CancelEdit() {
	if c.editIndex < 0 {
		return
	}
	c.Subtasks[c.editIndex].Name = c.editName
	c.editIndex = -1
	c.editName = ""
}

// EditingSubtask reports which subtask is in edit mode, if any.
func (c *ComposeSession) EditingSubtask() (int, bool) {
	return c.editIndex, c.editIndex >= 0
}

// ImageLoad produces one encoded image string; each upload in a batch
// gets its own load.
type ImageLoad func(ctx context.Context) (string, error)

// AttachImages runs all loads concurrently and joins them
// deterministically: every result is slotted by its input index and the
// draft list is extended only after the whole batch settles, so
// out-of-order completions can never interleave partial appends. Loads
// that fail are reported per index and their slots skipped.
func (c *ComposeSession) AttachImages(ctx context.Context, loads []ImageLoad) []error {
	if len(c.ImageRefs)+len(loads) > entities.MaxImageRefs {
		return []error{entities.ErrTooManyImages}
	}

	results := make([]string, len(loads))
	errs := make([]error, len(loads))

	var wg sync.WaitGroup
	for i, load := range loads {
		wg.Add(1)
		go func(i int, load ImageLoad) {
			defer wg.Done()
			results[i], errs[i] = load(ctx)
		}(i, load)
	}
	wg.Wait()

	var failed []error
	for i := range results {
		if errs[i] != nil {
			failed = append(failed, fmt.Errorf("image %d: %w", i, errs[i]))
			continue
		}
		c.ImageRefs = append(c.ImageRefs, results[i])
	}
	return failed
}

// request converts the session into the create/update payload.
func (c *ComposeSession) request() ports.CreateTaskRequest {
	req := ports.CreateTaskRequest{
		Title:       c.Title,
		Description: c.Description,
		Priority:    c.Priority,
		DueDate:     c.DueDate,
		ImageRefs:   c.ImageRefs,
	}
	for _, st := range c.Subtasks {
		req.Subtasks = append(req.Subtasks, ports.SubtaskRequest{Name: st.Name, Completed: st.Completed})
	}
	return req
}

// ComposeService owns the single in-flight compose session. The
// application is single-user, so one draft at a time matches the UI; the
// mutex serializes the shell's handlers against concurrent uploads.
type ComposeService struct {
	mu       sync.Mutex
	session  *ComposeSession
	taskSvc  ports.TaskService
	taskRepo ports.TaskRepository
	logger   *logger.Logger
}

// NewComposeService creates a new compose service
func NewComposeService(taskSvc ports.TaskService, taskRepo ports.TaskRepository, logger *logger.Logger) *ComposeService {
	return &ComposeService{
		taskSvc:  taskSvc,
		taskRepo: taskRepo,
		logger:   logger,
	}
}

// Start begins a blank session, discarding any previous draft.
func (s *ComposeService) Start(_ context.Context) *ComposeSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = NewComposeSession()
	return s.snapshotLocked()
}

// StartEdit begins a session preloaded from a persisted task.
func (s *ComposeService) StartEdit(ctx context.Context, id string) (*ComposeSession, error) {
	task, err := s.taskRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("task not found: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = EditSessionFor(task)
	return s.snapshotLocked(), nil
}

// Session returns a snapshot of the current draft.
func (s *ComposeService) Session(_ context.Context) (*ComposeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, entities.ErrTaskNotFound
	}
	return s.snapshotLocked(), nil
}

// Apply runs a mutation against the current draft under the session lock.
func (s *ComposeService) Apply(_ context.Context, mutate func(*ComposeSession) error) (*ComposeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		s.session = NewComposeSession()
	}
	if err := mutate(s.session); err != nil {
		return nil, err
	}
	return s.snapshotLocked(), nil
}

// Commit validates and persists the draft: a create for a new task, an
// update when the session was started from an existing one. The draft is
// cleared only on success.
func (s *ComposeService) Commit(ctx context.Context) (*entities.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, entities.ErrTaskNotFound
	}

	var (
		task *entities.Task
		err  error
	)
	if s.session.EditingID == "" {
		task, err = s.taskSvc.CreateTask(ctx, s.session.request())
	} else {
		req := s.session.request()
		subtasks := req.Subtasks
		if subtasks == nil {
			subtasks = []ports.SubtaskRequest{}
		}
		if req.DueDate == nil {
			// An empty date clears the stored one on update.
			empty := ""
			req.DueDate = &empty
		}
		task, err = s.taskSvc.UpdateTask(ctx, s.session.EditingID, ports.UpdateTaskRequest{
			Title:       &req.Title,
			Description: &req.Description,
			Priority:    &req.Priority,
			DueDate:     req.DueDate,
			ImageRefs:   &req.ImageRefs,
			Subtasks:    &subtasks,
			Completed:   &s.session.Completed,
		})
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("Compose session committed", "task_id", task.ID)

	s.session = nil
	return task, nil
}

// Discard drops the current draft.
func (s *ComposeService) Discard(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = nil
}

func (s *ComposeService) snapshotLocked() *ComposeSession {
	snap := *s.session
	snap.Subtasks = append(entities.Subtasks{}, s.session.Subtasks...)
	snap.ImageRefs = append([]string{}, s.session.ImageRefs...)
	return &snap
}
