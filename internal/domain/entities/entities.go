package entities

import (
	"errors"
	"strings"
	"time"
)

// Common errors
var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrEmptyTitle       = errors.New("title must not be empty")
	ErrEmptySubtaskName = errors.New("subtask name must not be empty")
	ErrSubtaskIndex     = errors.New("subtask index out of range")
	ErrBadFormat        = errors.New("payload is not an array of task records")
	ErrTooManyImages    = errors.New("too many images attached")
	ErrStore            = errors.New("storage failure")
)

// MaxImageRefs is the maximum number of encoded images a task may carry.
const MaxImageRefs = 5

// DateLayout is the wire and storage format for due dates. Due dates are
// calendar dates with no time component, so comparison is lexicographic.
const DateLayout = "2006-01-02"

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// DueStatus classifies a task's due date relative to a reference day.
// It is advisory display state and is never persisted.
type DueStatus string

const (
	DueStatusNone    DueStatus = "none"
	DueStatusOverdue DueStatus = "overdue"
	DueStatusToday   DueStatus = "due-today"
	DueStatusSoon    DueStatus = "due-soon"
)

// dueSoonWindowDays is how many days after today still count as "due soon".
const dueSoonWindowDays = 3

// Subtask is a named checklist item owned by exactly one task. Identity
// within the task is positional.
type Subtask struct {
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

// Subtasks is an ordered subtask sequence. The same operations apply to a
// compose draft buffer and to a persisted task's checklist.
type Subtasks []Subtask

// Add appends a new, uncompleted subtask.
func (s *Subtasks) Add(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptySubtaskName
	}
	*s = append(*s, Subtask{Name: name})
	return nil
}

// Remove removes the subtask at index. Later indices shift down by one;
// callers must not reuse indices captured before the removal.
func (s *Subtasks) Remove(index int) error {
	if index < 0 || index >= len(*s) {
		return ErrSubtaskIndex
	}
	*s = append((*s)[:index], (*s)[index+1:]...)
	return nil
}

// Rename replaces the name of the subtask at index.
func (s *Subtasks) Rename(index int, name string) error {
	if index < 0 || index >= len(*s) {
		return ErrSubtaskIndex
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptySubtaskName
	}
	(*s)[index].Name = name
	return nil
}

// Toggle sets the completed flag of the subtask at index.
func (s *Subtasks) Toggle(index int, completed bool) error {
	if index < 0 || index >= len(*s) {
		return ErrSubtaskIndex
	}
	(*s)[index].Completed = completed
	return nil
}

// Task is a user-created unit of work with metadata, optional images and a
// subtask checklist.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Priority    Priority  `json:"priority"`
	DueDate     *string   `json:"due_date,omitempty"`
	ImageRefs   []string  `json:"image_refs"`
	Subtasks    Subtasks  `json:"subtasks"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
}

// Normalize repairs a task's shape after deserialization: nil sequences
// become empty, an unknown priority falls back to medium, an unparseable
// due date is cleared, and the image list is capped at MaxImageRefs.
func (t *Task) Normalize() {
	if !t.Priority.IsValid() {
		t.Priority = PriorityMedium
	}
	if t.ImageRefs == nil {
		t.ImageRefs = []string{}
	}
	if len(t.ImageRefs) > MaxImageRefs {
		t.ImageRefs = t.ImageRefs[:MaxImageRefs]
	}
	if t.Subtasks == nil {
		t.Subtasks = Subtasks{}
	}
	if t.DueDate != nil {
		if _, err := time.Parse(DateLayout, *t.DueDate); err != nil {
			t.DueDate = nil
		}
	}
}

// CompletionRatio returns the percentage of completed subtasks in [0,100].
// A task with no subtasks has a ratio of 0 regardless of its manual flag.
func (t *Task) CompletionRatio() float64 {
	if len(t.Subtasks) == 0 {
		return 0
	}
	done := 0
	for _, st := range t.Subtasks {
		if st.Completed {
			done++
		}
	}
	return 100 * float64(done) / float64(len(t.Subtasks))
}

// IsCompleted reports whether the task counts as completed. The subtask
// checklist is authoritative: a task with subtasks is completed only when
// every one of them is. The manual Completed flag applies only to tasks
// with an empty checklist.
func (t *Task) IsCompleted() bool {
	if len(t.Subtasks) == 0 {
		return t.Completed
	}
	for _, st := range t.Subtasks {
		if !st.Completed {
			return false
		}
	}
	return true
}

// DueStatusOn classifies the task's due date relative to the given day.
func (t *Task) DueStatusOn(today time.Time) DueStatus {
	if t.DueDate == nil {
		return DueStatusNone
	}
	due, err := time.Parse(DateLayout, *t.DueDate)
	if err != nil {
		return DueStatusNone
	}
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	switch {
	case due.Before(day):
		return DueStatusOverdue
	case due.Equal(day):
		return DueStatusToday
	case !due.After(day.AddDate(0, 0, dueSoonWindowDays)):
		return DueStatusSoon
	default:
		return DueStatusNone
	}
}

// AddSubtask appends a new, uncompleted subtask.
func (t *Task) AddSubtask(name string) error {
	return t.Subtasks.Add(name)
}

// RemoveSubtask removes the subtask at index.
func (t *Task) RemoveSubtask(index int) error {
	return t.Subtasks.Remove(index)
}

// RenameSubtask replaces the name of the subtask at index.
func (t *Task) RenameSubtask(index int, name string) error {
	return t.Subtasks.Rename(index, name)
}

// ToggleSubtask sets the completed flag of the subtask at index.
func (t *Task) ToggleSubtask(index int, completed bool) error {
	return t.Subtasks.Toggle(index, completed)
}

// Clone returns a deep copy so callers can hand tasks across the service
// boundary without sharing slices.
func (t *Task) Clone() Task {
	out := *t
	if t.DueDate != nil {
		d := *t.DueDate
		out.DueDate = &d
	}
	out.ImageRefs = append([]string(nil), t.ImageRefs...)
	out.Subtasks = append([]Subtask(nil), t.Subtasks...)
	return out
}

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// Rank orders priorities for sorting, low first.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityMedium:
		return 1
	case PriorityHigh:
		return 2
	default:
		return 1
	}
}
