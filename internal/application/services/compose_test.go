package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskdeck/core/internal/domain/entities"
	"github.com/taskdeck/core/internal/infrastructure/logger"
)

func newComposeFixture(tasks ...entities.Task) (*ComposeService, *memTaskRepo) {
	repo := &memTaskRepo{tasks: tasks}
	taskSvc := NewTaskService(repo, logger.NewNop())
	return NewComposeService(taskSvc, repo, logger.NewNop()), repo
}

func TestComposeSessionSubtaskEditStateMachine(t *testing.T) {
	s := NewComposeSession()
	require.NoError(t, s.AddSubtask("first"))
	require.NoError(t, s.AddSubtask("second"))

	_, editing := s.EditingSubtask()
	assert.False(t, editing)

	require.NoError(t, s.BeginEdit(1))
	idx, editing := s.EditingSubtask()
	assert.True(t, editing)
	assert.Equal(t, 1, idx)

	t.Run("commit with a blank name stays editing", func(t *testing.T) {
		assert.ErrorIs(t, s.CommitEdit("   "), entities.ErrEmptySubtaskName)
		_, editing := s.EditingSubtask()
		assert.True(t, editing)
		assert.Equal(t, "second", s.Subtasks[1].Name)
	})

	t.Run("commit with a valid name renames and leaves edit mode", func(t *testing.T) {
		require.NoError(t, s.CommitEdit("renamed"))
		_, editing := s.EditingSubtask()
		assert.False(t, editing)
		assert.Equal(t, "renamed", s.Subtasks[1].Name)
	})

	t.Run("commit without an active edit fails", func(t *testing.T) {
		assert.ErrorIs(t, s.CommitEdit("x"), entities.ErrSubtaskIndex)
	})
}

func TestComposeSessionCancelEditRestoresName(t *testing.T) {
	s := NewComposeSession()
	require.NoError(t, s.AddSubtask("original"))

	require.NoError(t, s.BeginEdit(0))
	s.Subtasks[0].Name = "half-typed"
	s.CancelEdit()

	assert.Equal(t, "original", s.Subtasks[0].Name)
	_, editing := s.EditingSubtask()
	assert.False(t, editing)
}

func TestComposeSessionRemoveAdjustsEditState(t *testing.T) {
	t.Run("removing the edited subtask abandons the edit", func(t *testing.T) {
		s := NewComposeSession()
		require.NoError(t, s.AddSubtask("a"))
		require.NoError(t, s.AddSubtask("b"))
		require.NoError(t, s.BeginEdit(1))

		require.NoError(t, s.RemoveSubtask(1))
		_, editing := s.EditingSubtask()
		assert.False(t, editing)
	})

	t.Run("removing an earlier subtask shifts the edit index", func(t *testing.T) {
		s := NewComposeSession()
		require.NoError(t, s.AddSubtask("a"))
		require.NoError(t, s.AddSubtask("b"))
		require.NoError(t, s.BeginEdit(1))

		require.NoError(t, s.RemoveSubtask(0))
		idx, editing := s.EditingSubtask()
		assert.True(t, editing)
		assert.Equal(t, 0, idx)

		require.NoError(t, s.CommitEdit("still b"))
		assert.Equal(t, "still b", s.Subtasks[0].Name)
	})
}

func TestAttachImagesDeterministicOrder(t *testing.T) {
	s := NewComposeSession()

	// The first load completes only after the second one has, so a naive
	// append-on-completion would reverse the order.
	secondDone := make(chan struct{})
	loads := []ImageLoad{
		func(_ context.Context) (string, error) {
			<-secondDone
			return "img-0", nil
		},
		func(_ context.Context) (string, error) {
			defer close(secondDone)
			return "img-1", nil
		},
	}

	failures := s.AttachImages(context.Background(), loads)
	assert.Empty(t, failures)
	assert.Equal(t, []string{"img-0", "img-1"}, s.ImageRefs)
}

func TestAttachImagesSkipsFailedSlots(t *testing.T) {
	s := NewComposeSession()

	loads := []ImageLoad{
		func(_ context.Context) (string, error) { return "img-0", nil },
		func(_ context.Context) (string, error) { return "", errors.New("decode failed") },
		func(_ context.Context) (string, error) { return "img-2", nil },
	}

	failures := s.AttachImages(context.Background(), loads)
	require.Len(t, failures, 1)
	assert.Equal(t, []string{"img-0", "img-2"}, s.ImageRefs)
}

func TestAttachImagesEnforcesCap(t *testing.T) {
	s := NewComposeSession()
	s.ImageRefs = []string{"a", "b", "c", "d"}

	called := false
	loads := []ImageLoad{
		func(_ context.Context) (string, error) { called = true; return "x", nil },
		func(_ context.Context) (string, error) { called = true; return "y", nil },
	}

	failures := s.AttachImages(context.Background(), loads)
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], entities.ErrTooManyImages)
	// The cap is checked before any load runs.
	assert.False(t, called)
	assert.Len(t, s.ImageRefs, 4)
}

func TestComposeServiceCreateFlow(t *testing.T) {
	svc, repo := newComposeFixture()
	ctx := context.Background()

	svc.Start(ctx)
	_, err := svc.Apply(ctx, func(s *ComposeSession) error {
		s.Title = "new task"
		s.Priority = entities.PriorityHigh
		s.DueDate = datePtr("2024-06-10")
		return s.AddSubtask("step one")
	})
	require.NoError(t, err)

	task, err := svc.Commit(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "new task", task.Title)
	assert.Equal(t, entities.PriorityHigh, task.Priority)
	require.Len(t, task.Subtasks, 1)

	require.Len(t, repo.tasks, 1)

	// Commit clears the draft.
	_, err = svc.Session(ctx)
	assert.Error(t, err)
}

func TestComposeServiceCommitKeepsDraftOnFailure(t *testing.T) {
	svc, _ := newComposeFixture()
	ctx := context.Background()

	svc.Start(ctx)
	_, err := svc.Apply(ctx, func(s *ComposeSession) error {
		s.Title = "   "
		return nil
	})
	require.NoError(t, err)

	_, err = svc.Commit(ctx)
	assert.ErrorIs(t, err, entities.ErrEmptyTitle)

	// The draft survives so the user can fix the title.
	session, err := svc.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, "   ", session.Title)
}

func TestComposeServiceEditFlow(t *testing.T) {
	existing := entities.Task{
		ID:       "t1",
		Title:    "before",
		Priority: entities.PriorityLow,
		DueDate:  datePtr("2024-06-10"),
		Subtasks: entities.Subtasks{{Name: "old step"}},
	}
	existing.Normalize()

	svc, repo := newComposeFixture(existing)
	ctx := context.Background()

	session, err := svc.StartEdit(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "before", session.Title)
	require.Len(t, session.Subtasks, 1)

	_, err = svc.Apply(ctx, func(s *ComposeSession) error {
		s.Title = "after"
		s.DueDate = nil
		return s.AddSubtask("new step")
	})
	require.NoError(t, err)

	task, err := svc.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, "t1", task.ID)
	assert.Equal(t, "after", task.Title)
	// Clearing the date in the draft clears it on the stored task.
	assert.Nil(t, task.DueDate)
	assert.Len(t, task.Subtasks, 2)

	require.Len(t, repo.tasks, 1)
	assert.Equal(t, "after", repo.tasks[0].Title)
}

func TestComposeServiceEditDoesNotTouchTaskUntilCommit(t *testing.T) {
	existing := entities.Task{ID: "t1", Title: "before"}
	existing.Normalize()

	svc, repo := newComposeFixture(existing)
	ctx := context.Background()

	_, err := svc.StartEdit(ctx, "t1")
	require.NoError(t, err)

	_, err = svc.Apply(ctx, func(s *ComposeSession) error {
		s.Title = "edited"
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "before", repo.tasks[0].Title)

	svc.Discard(ctx)
	assert.Equal(t, "before", repo.tasks[0].Title)
}

func TestComposeServiceStartEditUnknownTask(t *testing.T) {
	svc, _ := newComposeFixture()

	_, err := svc.StartEdit(context.Background(), "missing")
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)
}
