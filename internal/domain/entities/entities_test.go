package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func datePtr(s string) *string {
	return &s
}

func TestCompletionRatio(t *testing.T) {
	tests := []struct {
		name     string
		subtasks Subtasks
		want     float64
	}{
		{"no subtasks", nil, 0},
		{"none done", Subtasks{{Name: "a"}, {Name: "b"}}, 0},
		{"half done", Subtasks{{Name: "a", Completed: true}, {Name: "b"}}, 50},
		{"all done", Subtasks{{Name: "a", Completed: true}, {Name: "b", Completed: true}}, 100},
		{"one of three", Subtasks{{Name: "a", Completed: true}, {Name: "b"}, {Name: "c"}}, 100.0 / 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := Task{Title: "x", Subtasks: tt.subtasks}
			assert.InDelta(t, tt.want, task.CompletionRatio(), 0.0001)
		})
	}
}

func TestCompletionRatioIgnoresManualFlag(t *testing.T) {
	task := Task{Title: "x", Completed: true}
	assert.Equal(t, 0.0, task.CompletionRatio())
}

func TestIsCompleted(t *testing.T) {
	t.Run("empty checklist uses the manual flag", func(t *testing.T) {
		task := Task{Title: "x"}
		assert.False(t, task.IsCompleted())

		task.Completed = true
		assert.True(t, task.IsCompleted())
	})

	t.Run("checklist overrides the manual flag", func(t *testing.T) {
		task := Task{
			Title:     "x",
			Completed: true,
			Subtasks:  Subtasks{{Name: "a", Completed: true}, {Name: "b"}},
		}
		assert.False(t, task.IsCompleted())
	})

	t.Run("all subtasks done completes the task", func(t *testing.T) {
		task := Task{
			Title:    "x",
			Subtasks: Subtasks{{Name: "a", Completed: true}, {Name: "b", Completed: true}},
		}
		assert.True(t, task.IsCompleted())
	})
}

func TestDueStatusOn(t *testing.T) {
	today := time.Date(2024, 6, 10, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		dueDate *string
		want    DueStatus
	}{
		{"no due date", nil, DueStatusNone},
		{"yesterday is overdue", datePtr("2024-06-09"), DueStatusOverdue},
		{"same day is due today", datePtr("2024-06-10"), DueStatusToday},
		{"two days out is due soon", datePtr("2024-06-12"), DueStatusSoon},
		{"window boundary is due soon", datePtr("2024-06-13"), DueStatusSoon},
		{"past the window is none", datePtr("2024-06-14"), DueStatusNone},
		{"far future is none", datePtr("2024-06-20"), DueStatusNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := Task{Title: "x", DueDate: tt.dueDate}
			assert.Equal(t, tt.want, task.DueStatusOn(today))
		})
	}
}

func TestDueStatusIgnoresTimeOfDay(t *testing.T) {
	task := Task{Title: "x", DueDate: datePtr("2024-06-10")}

	lateEvening := time.Date(2024, 6, 10, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, DueStatusToday, task.DueStatusOn(lateEvening))
}

func TestNormalize(t *testing.T) {
	t.Run("repairs nil sequences", func(t *testing.T) {
		task := Task{Title: "x", Priority: PriorityLow}
		task.Normalize()

		assert.NotNil(t, task.ImageRefs)
		assert.NotNil(t, task.Subtasks)
		assert.Equal(t, PriorityLow, task.Priority)
	})

	t.Run("unknown priority falls back to medium", func(t *testing.T) {
		task := Task{Title: "x", Priority: "urgent"}
		task.Normalize()

		assert.Equal(t, PriorityMedium, task.Priority)
	})

	t.Run("caps the image list", func(t *testing.T) {
		task := Task{Title: "x", ImageRefs: []string{"a", "b", "c", "d", "e", "f", "g"}}
		task.Normalize()

		assert.Len(t, task.ImageRefs, MaxImageRefs)
		assert.Equal(t, []string{"a", "b", "c", "d", "e"}, task.ImageRefs)
	})

	t.Run("clears an unparseable due date", func(t *testing.T) {
		task := Task{Title: "x", DueDate: datePtr("next tuesday")}
		task.Normalize()

		assert.Nil(t, task.DueDate)
	})

	t.Run("keeps a valid due date", func(t *testing.T) {
		task := Task{Title: "x", DueDate: datePtr("2024-06-10")}
		task.Normalize()

		require.NotNil(t, task.DueDate)
		assert.Equal(t, "2024-06-10", *task.DueDate)
	})
}

func TestSubtasksAdd(t *testing.T) {
	var s Subtasks

	require.NoError(t, s.Add("  write tests  "))
	require.Len(t, s, 1)
	assert.Equal(t, "write tests", s[0].Name)
	assert.False(t, s[0].Completed)

	assert.ErrorIs(t, s.Add("   "), ErrEmptySubtaskName)
	assert.Len(t, s, 1)
}

func TestSubtasksRemove(t *testing.T) {
	s := Subtasks{{Name: "a"}, {Name: "b"}, {Name: "c"}}

	require.NoError(t, s.Remove(1))
	assert.Equal(t, Subtasks{{Name: "a"}, {Name: "c"}}, s)

	assert.ErrorIs(t, s.Remove(2), ErrSubtaskIndex)
	assert.ErrorIs(t, s.Remove(-1), ErrSubtaskIndex)
}

func TestSubtasksRename(t *testing.T) {
	s := Subtasks{{Name: "a", Completed: true}}

	require.NoError(t, s.Rename(0, " renamed "))
	assert.Equal(t, "renamed", s[0].Name)
	assert.True(t, s[0].Completed)

	assert.ErrorIs(t, s.Rename(0, ""), ErrEmptySubtaskName)
	assert.Equal(t, "renamed", s[0].Name)
	assert.ErrorIs(t, s.Rename(5, "x"), ErrSubtaskIndex)
}

func TestSubtasksToggle(t *testing.T) {
	s := Subtasks{{Name: "a"}}

	require.NoError(t, s.Toggle(0, true))
	assert.True(t, s[0].Completed)

	require.NoError(t, s.Toggle(0, false))
	assert.False(t, s[0].Completed)

	assert.ErrorIs(t, s.Toggle(1, true), ErrSubtaskIndex)
}

func TestCloneIsDeep(t *testing.T) {
	task := Task{
		ID:        "t1",
		Title:     "x",
		DueDate:   datePtr("2024-06-10"),
		ImageRefs: []string{"img"},
		Subtasks:  Subtasks{{Name: "a"}},
	}

	clone := task.Clone()
	clone.Subtasks[0].Name = "changed"
	clone.ImageRefs[0] = "changed"
	*clone.DueDate = "2025-01-01"

	assert.Equal(t, "a", task.Subtasks[0].Name)
	assert.Equal(t, "img", task.ImageRefs[0])
	assert.Equal(t, "2024-06-10", *task.DueDate)
}

func TestPriorityRank(t *testing.T) {
	assert.Less(t, PriorityLow.Rank(), PriorityMedium.Rank())
	assert.Less(t, PriorityMedium.Rank(), PriorityHigh.Rank())
	assert.Equal(t, PriorityMedium.Rank(), Priority("bogus").Rank())
}
