package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/taskdeck/core/internal/domain/entities"
	"github.com/taskdeck/core/internal/infrastructure/logger"
	"github.com/taskdeck/core/internal/ports"
)

// ViewService computes the derived task view: search, status filter,
// priority filter, then a stable sort. It holds no state of its own; every
// view is rebuilt from the repository's current collection.
type ViewService struct {
	taskRepo ports.TaskRepository
	prefRepo ports.PreferenceRepository
	locale   language.Tag
	logger   *logger.Logger
	now      func() time.Time
}

// NewViewService creates a new view service. The locale tag drives title
// collation; an unparseable tag falls back to the unqualified collator.
func NewViewService(taskRepo ports.TaskRepository, prefRepo ports.PreferenceRepository, locale string, logger *logger.Logger) *ViewService {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Und
	}
	return &ViewService{
		taskRepo: taskRepo,
		prefRepo: prefRepo,
		locale:   tag,
		logger:   logger,
		now:      time.Now,
	}
}

// BuildView runs the pipeline over the repository's current collection.
// The steps apply in a fixed order: search narrows first, then status,
// then priority, then the sort key orders the result.
func (s *ViewService) BuildView(ctx context.Context, query ports.ViewQuery) ([]ports.TaskView, error) {
	tasks, err := s.taskRepo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}

	tasks = filterSearch(tasks, query.Search)
	tasks = filterStatus(tasks, query.Status)
	tasks = filterPriority(tasks, query.Priority)
	s.sortTasks(tasks, query.Sort)

	today := s.now()
	out := make([]ports.TaskView, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, ports.TaskView{
			Task:            t,
			CompletionRatio: t.CompletionRatio(),
			DueStatus:       t.DueStatusOn(today),
		})
	}
	return out, nil
}

// Preferences returns the remembered view-control state.
func (s *ViewService) Preferences(ctx context.Context) (ports.ViewPreferences, error) {
	prefs, err := s.prefRepo.Load(ctx)
	if err != nil {
		return prefs, fmt.Errorf("failed to load preferences: %w", err)
	}
	return prefs, nil
}

// SavePreferences persists the view-control state.
func (s *ViewService) SavePreferences(ctx context.Context, prefs ports.ViewPreferences) error {
	if err := s.prefRepo.Save(ctx, prefs); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}

	s.logger.Debug("View preferences saved", "sort", prefs.Sort, "status", prefs.Status)

	return nil
}

// filterSearch keeps tasks whose title or description contains the query,
// case-insensitively. An empty query passes everything.
func filterSearch(tasks []entities.Task, search string) []entities.Task {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return tasks
	}
	out := tasks[:0]
	for _, t := range tasks {
		if strings.Contains(strings.ToLower(t.Title), search) ||
			strings.Contains(strings.ToLower(t.Description), search) {
			out = append(out, t)
		}
	}
	return out
}

func filterStatus(tasks []entities.Task, status ports.StatusFilter) []entities.Task {
	switch status {
	case ports.StatusPending:
		out := tasks[:0]
		for _, t := range tasks {
			if !t.IsCompleted() {
				out = append(out, t)
			}
		}
		return out
	case ports.StatusCompleted:
		out := tasks[:0]
		for _, t := range tasks {
			if t.IsCompleted() {
				out = append(out, t)
			}
		}
		return out
	default:
		return tasks
	}
}

func filterPriority(tasks []entities.Task, priority ports.PriorityFilter) []entities.Task {
	if priority == "" || priority == ports.PriorityAny {
		return tasks
	}
	want := entities.Priority(priority)
	out := tasks[:0]
	for _, t := range tasks {
		p := t.Priority
		if !p.IsValid() {
			p = entities.PriorityMedium
		}
		if p == want {
			out = append(out, t)
		}
	}
	return out
}

// sortTasks orders tasks in place by the sort key. The sort is stable, so
// equal keys keep their relative input order. Due-date sorts always place
// dated tasks before undated ones, in both directions.
func (s *ViewService) sortTasks(tasks []entities.Task, key ports.SortKey) {
	// A collator is not safe for concurrent use, so each sort builds its own.
	coll := collate.New(s.locale)

	var less func(a, b *entities.Task) bool
	switch key {
	case ports.SortTitleAsc:
		less = func(a, b *entities.Task) bool { return coll.CompareString(a.Title, b.Title) < 0 }
	case ports.SortTitleDesc:
		less = func(a, b *entities.Task) bool { return coll.CompareString(a.Title, b.Title) > 0 }
	case ports.SortCompletionAsc:
		less = func(a, b *entities.Task) bool { return a.CompletionRatio() < b.CompletionRatio() }
	case ports.SortCompletionDesc:
		less = func(a, b *entities.Task) bool { return a.CompletionRatio() > b.CompletionRatio() }
	case ports.SortDueDateAsc:
		less = func(a, b *entities.Task) bool { return compareDueDates(a, b, true) }
	case ports.SortDueDateDesc:
		less = func(a, b *entities.Task) bool { return compareDueDates(a, b, false) }
	case ports.SortPriorityHighFirst:
		less = func(a, b *entities.Task) bool { return a.Priority.Rank() > b.Priority.Rank() }
	case ports.SortPriorityLowFirst:
		less = func(a, b *entities.Task) bool { return a.Priority.Rank() < b.Priority.Rank() }
	default: // SortCreatedAtAsc
		less = func(a, b *entities.Task) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		return less(&tasks[i], &tasks[j])
	})
}

// compareDueDates orders two tasks for a due-date sort. Absence is always
// last regardless of direction. Dates are date-only strings, so the
// comparison is lexicographic.
func compareDueDates(a, b *entities.Task, asc bool) bool {
	switch {
	case a.DueDate == nil && b.DueDate == nil:
		return false
	case a.DueDate == nil:
		return false
	case b.DueDate == nil:
		return true
	case asc:
		return *a.DueDate < *b.DueDate
	default:
		return *a.DueDate > *b.DueDate
	}
}
