package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskdeck/core/internal/domain/entities"
	"github.com/taskdeck/core/internal/infrastructure/logger"
	"github.com/taskdeck/core/internal/ports"
)

func newViewFixture(tasks ...entities.Task) (*ViewService, *memTaskRepo) {
	repo := &memTaskRepo{tasks: tasks}
	svc := NewViewService(repo, &memPrefRepo{}, "en", logger.NewNop())
	return svc, repo
}

func viewTask(id, title string, created time.Time) entities.Task {
	t := entities.Task{ID: id, Title: title, Priority: entities.PriorityMedium, CreatedAt: created}
	t.Normalize()
	return t
}

func titles(view []ports.TaskView) []string {
	out := make([]string, 0, len(view))
	for _, v := range view {
		out = append(out, v.Title)
	}
	return out
}

func TestBuildViewSearch(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	groceries := viewTask("1", "Buy groceries", base)
	groceries.Description = "milk and eggs"
	report := viewTask("2", "Write report", base.Add(time.Hour))

	svc, _ := newViewFixture(groceries, report)

	t.Run("matches the title case-insensitively", func(t *testing.T) {
		view, err := svc.BuildView(context.Background(), ports.ViewQuery{Search: "GROC"})
		require.NoError(t, err)
		assert.Equal(t, []string{"Buy groceries"}, titles(view))
	})

	t.Run("matches the description", func(t *testing.T) {
		view, err := svc.BuildView(context.Background(), ports.ViewQuery{Search: "eggs"})
		require.NoError(t, err)
		assert.Equal(t, []string{"Buy groceries"}, titles(view))
	})

	t.Run("blank query passes everything", func(t *testing.T) {
		view, err := svc.BuildView(context.Background(), ports.ViewQuery{Search: "   "})
		require.NoError(t, err)
		assert.Len(t, view, 2)
	})

	t.Run("no match yields an empty view", func(t *testing.T) {
		view, err := svc.BuildView(context.Background(), ports.ViewQuery{Search: "nothing here"})
		require.NoError(t, err)
		assert.Empty(t, view)
	})
}

func TestBuildViewStatusFilter(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	open := viewTask("1", "open", base)
	open.Subtasks = entities.Subtasks{{Name: "a", Completed: true}, {Name: "b"}}

	done := viewTask("2", "done", base.Add(time.Hour))
	done.Subtasks = entities.Subtasks{{Name: "a", Completed: true}}

	// Manual flag set but checklist incomplete: the checklist wins.
	flagged := viewTask("3", "flagged", base.Add(2*time.Hour))
	flagged.Completed = true
	flagged.Subtasks = entities.Subtasks{{Name: "a"}}

	svc, _ := newViewFixture(open, done, flagged)

	view, err := svc.BuildView(context.Background(), ports.ViewQuery{Status: ports.StatusPending})
	require.NoError(t, err)
	assert.Equal(t, []string{"open", "flagged"}, titles(view))

	view, err = svc.BuildView(context.Background(), ports.ViewQuery{Status: ports.StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, []string{"done"}, titles(view))

	view, err = svc.BuildView(context.Background(), ports.ViewQuery{Status: ports.StatusAll})
	require.NoError(t, err)
	assert.Len(t, view, 3)
}

func TestBuildViewPriorityFilter(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	low := viewTask("1", "low", base)
	low.Priority = entities.PriorityLow
	high := viewTask("2", "high", base.Add(time.Hour))
	high.Priority = entities.PriorityHigh
	med := viewTask("3", "med", base.Add(2*time.Hour))

	svc, _ := newViewFixture(low, high, med)

	view, err := svc.BuildView(context.Background(), ports.ViewQuery{Priority: ports.PriorityFilter(entities.PriorityHigh)})
	require.NoError(t, err)
	assert.Equal(t, []string{"high"}, titles(view))

	view, err = svc.BuildView(context.Background(), ports.ViewQuery{Priority: ports.PriorityAny})
	require.NoError(t, err)
	assert.Len(t, view, 3)
}

func TestBuildViewSortTitle(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	svc, _ := newViewFixture(
		viewTask("1", "banana", base),
		viewTask("2", "Apple", base.Add(time.Hour)),
		viewTask("3", "cherry", base.Add(2*time.Hour)),
	)

	view, err := svc.BuildView(context.Background(), ports.ViewQuery{Sort: ports.SortTitleAsc})
	require.NoError(t, err)
	assert.Equal(t, []string{"Apple", "banana", "cherry"}, titles(view))

	view, err = svc.BuildView(context.Background(), ports.ViewQuery{Sort: ports.SortTitleDesc})
	require.NoError(t, err)
	assert.Equal(t, []string{"cherry", "banana", "Apple"}, titles(view))
}

func TestBuildViewSortDueDate(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	early := viewTask("1", "early", base)
	early.DueDate = datePtr("2024-06-05")
	late := viewTask("2", "late", base.Add(time.Hour))
	late.DueDate = datePtr("2024-07-01")
	undated := viewTask("3", "undated", base.Add(2*time.Hour))

	svc, _ := newViewFixture(undated, late, early)

	view, err := svc.BuildView(context.Background(), ports.ViewQuery{Sort: ports.SortDueDateAsc})
	require.NoError(t, err)
	assert.Equal(t, []string{"early", "late", "undated"}, titles(view))

	// Undated tasks stay last even when the direction flips.
	view, err = svc.BuildView(context.Background(), ports.ViewQuery{Sort: ports.SortDueDateDesc})
	require.NoError(t, err)
	assert.Equal(t, []string{"late", "early", "undated"}, titles(view))
}

func TestBuildViewSortPriority(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	low := viewTask("1", "low", base)
	low.Priority = entities.PriorityLow
	high := viewTask("2", "high", base.Add(time.Hour))
	high.Priority = entities.PriorityHigh
	med := viewTask("3", "med", base.Add(2*time.Hour))

	svc, _ := newViewFixture(low, high, med)

	view, err := svc.BuildView(context.Background(), ports.ViewQuery{Sort: ports.SortPriorityHighFirst})
	require.NoError(t, err)
	assert.Equal(t, []string{"high", "med", "low"}, titles(view))

	view, err = svc.BuildView(context.Background(), ports.ViewQuery{Sort: ports.SortPriorityLowFirst})
	require.NoError(t, err)
	assert.Equal(t, []string{"low", "med", "high"}, titles(view))
}

func TestBuildViewSortCompletion(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	half := viewTask("1", "half", base)
	half.Subtasks = entities.Subtasks{{Name: "a", Completed: true}, {Name: "b"}}
	full := viewTask("2", "full", base.Add(time.Hour))
	full.Subtasks = entities.Subtasks{{Name: "a", Completed: true}}
	none := viewTask("3", "none", base.Add(2*time.Hour))
	none.Subtasks = entities.Subtasks{{Name: "a"}}

	svc, _ := newViewFixture(half, full, none)

	view, err := svc.BuildView(context.Background(), ports.ViewQuery{Sort: ports.SortCompletionAsc})
	require.NoError(t, err)
	assert.Equal(t, []string{"none", "half", "full"}, titles(view))

	view, err = svc.BuildView(context.Background(), ports.ViewQuery{Sort: ports.SortCompletionDesc})
	require.NoError(t, err)
	assert.Equal(t, []string{"full", "half", "none"}, titles(view))
}

func TestBuildViewSortIsStable(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	// All medium priority: a priority sort must keep creation order.
	svc, _ := newViewFixture(
		viewTask("1", "first", base),
		viewTask("2", "second", base.Add(time.Hour)),
		viewTask("3", "third", base.Add(2*time.Hour)),
	)

	view, err := svc.BuildView(context.Background(), ports.ViewQuery{Sort: ports.SortPriorityHighFirst})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, titles(view))
}

func TestBuildViewDerivedState(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	task := viewTask("1", "due", base)
	task.DueDate = datePtr("2024-06-09")
	task.Subtasks = entities.Subtasks{{Name: "a", Completed: true}, {Name: "b"}}

	svc, _ := newViewFixture(task)
	svc.now = func() time.Time { return time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC) }

	view, err := svc.BuildView(context.Background(), ports.ViewQuery{})
	require.NoError(t, err)
	require.Len(t, view, 1)
	assert.Equal(t, entities.DueStatusOverdue, view[0].DueStatus)
	assert.InDelta(t, 50, view[0].CompletionRatio, 0.0001)
}

func TestBuildViewPipelineOrder(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	match := viewTask("1", "report draft", base)
	match.Priority = entities.PriorityHigh
	otherPriority := viewTask("2", "report review", base.Add(time.Hour))
	otherPriority.Priority = entities.PriorityLow
	noMatch := viewTask("3", "groceries", base.Add(2*time.Hour))
	noMatch.Priority = entities.PriorityHigh

	svc, _ := newViewFixture(match, otherPriority, noMatch)

	view, err := svc.BuildView(context.Background(), ports.ViewQuery{
		Search:   "report",
		Status:   ports.StatusPending,
		Priority: ports.PriorityFilter(entities.PriorityHigh),
		Sort:     ports.SortTitleAsc,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"report draft"}, titles(view))
}

func TestViewPreferencesRoundTrip(t *testing.T) {
	svc, _ := newViewFixture()

	prefs, err := svc.Preferences(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ports.DefaultViewPreferences(), prefs)

	prefs.Search = "report"
	prefs.Sort = ports.SortDueDateAsc
	prefs.ShowImages = false
	require.NoError(t, svc.SavePreferences(context.Background(), prefs))

	got, err := svc.Preferences(context.Background())
	require.NoError(t, err)
	assert.Equal(t, prefs, got)
}
