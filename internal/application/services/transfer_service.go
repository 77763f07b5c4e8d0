package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/taskdeck/core/internal/domain/entities"
	"github.com/taskdeck/core/internal/infrastructure/logger"
	"github.com/taskdeck/core/internal/ports"
)

// TransferService handles JSON export and import of the task collection.
type TransferService struct {
	taskRepo ports.TaskRepository
	logger   *logger.Logger
	now      func() time.Time
}

// NewTransferService creates a new transfer service
func NewTransferService(taskRepo ports.TaskRepository, logger *logger.Logger) *TransferService {
	return &TransferService{
		taskRepo: taskRepo,
		logger:   logger,
		now:      time.Now,
	}
}

// Export serializes the full current collection as pretty-printed JSON.
func (s *TransferService) Export(ctx context.Context) ([]byte, error) {
	tasks, err := s.taskRepo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}

	b, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tasks: %w", err)
	}

	s.logger.Info("Exported task collection", "count", len(tasks))

	return b, nil
}

// Import validates, normalizes and merges an external JSON array into the
// collection. The batch is strict: the first invalid record rejects the
// whole import and the existing collection stays untouched. Records whose
// id matches an existing task overwrite it, so re-importing an exported
// snapshot is idempotent; records with fresh or missing ids are inserted.
// The merge persists in a single write.
func (s *TransferService) Import(ctx context.Context, payload []byte) (*ports.ImportSummary, error) {
	records, err := decodeRecords(payload)
	if err != nil {
		return nil, err
	}

	existing, err := s.taskRepo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}

	index := make(map[string]int, len(existing))
	for i, t := range existing {
		index[t.ID] = i
	}

	merged := existing
	summary := &ports.ImportSummary{}
	seen := map[string]bool{}

	for i, rec := range records {
		task, err := s.normalizeRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}

		if pos, ok := index[task.ID]; ok {
			// Update on collision. A record without its own creation time
			// keeps the existing task's.
			if rec.createdAtMissing() {
				task.CreatedAt = merged[pos].CreatedAt
			}
			merged[pos] = task
			if !seen[task.ID] {
				summary.Updated++
			}
		} else {
			merged = append(merged, task)
			index[task.ID] = len(merged) - 1
			summary.Inserted++
		}
		seen[task.ID] = true
	}

	if err := s.taskRepo.ReplaceAll(ctx, merged); err != nil {
		return nil, fmt.Errorf("failed to persist import: %w", err)
	}

	s.logger.Info("Import merged successfully",
		"records", len(records),
		"inserted", summary.Inserted,
		"updated", summary.Updated,
	)

	return summary, nil
}

// importRecord is the duck-typed shape of an external task record. Ids may
// be numbers or strings, subtasks may be plain strings or objects, and the
// original browser exports used camelCase keys, so both spellings are
// accepted.
type importRecord struct {
	ID           json.RawMessage   `json:"id"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Priority     string            `json:"priority"`
	DueDate      *string           `json:"due_date"`
	DueDateAlt   *string           `json:"dueDate"`
	ImageRefs    []string          `json:"image_refs"`
	ImageRefsAlt []string          `json:"imageRefs"`
	Subtasks     []json.RawMessage `json:"subtasks"`
	Completed    bool              `json:"completed"`
	CreatedAt    *time.Time        `json:"created_at"`
	CreatedAtAlt *time.Time        `json:"createdAt"`
}

func (r *importRecord) createdAtMissing() bool {
	return r.CreatedAt == nil && r.CreatedAtAlt == nil
}

// decodeRecords rejects anything that is not a JSON array of objects.
func decodeRecords(payload []byte) ([]importRecord, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrBadFormat, err)
	}

	records := make([]importRecord, len(raw))
	for i, b := range raw {
		if err := json.Unmarshal(b, &records[i]); err != nil {
			return nil, fmt.Errorf("record %d: %w: %v", i, entities.ErrBadFormat, err)
		}
	}
	return records, nil
}

// normalizeRecord repairs one record into the internal task shape,
// defaulting everything optional and upgrading legacy subtask strings.
func (s *TransferService) normalizeRecord(rec importRecord) (entities.Task, error) {
	if strings.TrimSpace(rec.Title) == "" {
		return entities.Task{}, entities.ErrEmptyTitle
	}

	task := entities.Task{
		ID:          decodeID(rec.ID),
		Title:       rec.Title,
		Description: rec.Description,
		Priority:    entities.Priority(rec.Priority),
		Completed:   rec.Completed,
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}

	switch {
	case rec.CreatedAt != nil:
		task.CreatedAt = *rec.CreatedAt
	case rec.CreatedAtAlt != nil:
		task.CreatedAt = *rec.CreatedAtAlt
	default:
		task.CreatedAt = s.now().UTC()
	}

	task.DueDate = rec.DueDate
	if task.DueDate == nil {
		task.DueDate = rec.DueDateAlt
	}

	task.ImageRefs = rec.ImageRefs
	if task.ImageRefs == nil {
		task.ImageRefs = rec.ImageRefsAlt
	}

	subtasks, err := decodeSubtasks(rec.Subtasks)
	if err != nil {
		return entities.Task{}, err
	}
	task.Subtasks = subtasks

	task.Normalize()
	return task, nil
}

// decodeID accepts string and numeric ids; a numeric id becomes its
// decimal string form so 1 and "1" name the same task.
func decodeID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return strings.TrimSpace(str)
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		return num.String()
	}
	return ""
}

// decodeSubtasks upgrades both legacy shapes into the internal one:
// a plain string becomes an uncompleted subtask, an object defaults its
// completed flag to false when missing.
func decodeSubtasks(raw []json.RawMessage) ([]entities.Subtask, error) {
	out := make([]entities.Subtask, 0, len(raw))
	for _, b := range raw {
		var name string
		if err := json.Unmarshal(b, &name); err == nil {
			out = append(out, entities.Subtask{Name: name})
			continue
		}
		var st entities.Subtask
		if err := json.Unmarshal(b, &st); err != nil {
			return nil, fmt.Errorf("%w: bad subtask shape", entities.ErrBadFormat)
		}
		out = append(out, st)
	}
	return out, nil
}
