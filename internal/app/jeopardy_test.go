package app_test

import (
	"context"
	"testing"

	"echo-trivia/internal/app"
	"echo-trivia/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJeopardyFullBoardCompletesWithNegativeScore(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)
	svc := app.NewJeopardyService(env.core, testCategories, nil)

	game, err := svc.Start(ctx, "alice", 3, nil)
	require.NoError(t, err)
	require.Len(t, game.Categories, 3)

	var last app.JeopardyResult
	expected := 0
	for _, cat := range game.Categories {
		for _, pts := range domain.PointValues {
			q, err := svc.SelectCell(ctx, "alice", game.ID, cat, pts)
			require.NoError(t, err)
			assert.Equal(t, pts, q.Points)
			assert.Equal(t, domain.DifficultyForPoints(pts), q.Difficulty)

			answer := "Wrong"
			if pts == 200 {
				answer = "Right"
				expected += pts
			} else {
				expected -= pts
			}
			last, err = svc.SubmitAnswer(ctx, "alice", game.ID, q.ID, answer)
			require.NoError(t, err)
		}
	}

	assert.Equal(t, domain.GameComplete, last.Status)
	assert.Equal(t, 15, last.AnsweredCells)
	assert.Equal(t, expected, last.Score)
	assert.Less(t, last.Score, 0)
	require.NotNil(t, last.Standing)

	sessions := env.history.Sessions("alice")
	require.Len(t, sessions, 1)
	assert.Equal(t, "board-3", sessions[0].Bucket)
	assert.Equal(t, expected, sessions[0].Score)

	_, err = svc.SelectCell(ctx, "alice", game.ID, game.Categories[0], 200)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestJeopardyCellCannotBeReselected(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)
	svc := app.NewJeopardyService(env.core, nil, nil)

	game, err := svc.Start(ctx, "alice", 3, []string{"Art", "Film", "Food"})
	require.NoError(t, err)

	q, err := svc.SelectCell(ctx, "alice", game.ID, "Art", 400)
	require.NoError(t, err)

	_, err = svc.SelectCell(ctx, "alice", game.ID, "Film", 200)
	require.ErrorIs(t, err, domain.ErrInvalidState, "selecting while a question is pending")

	_, err = svc.SubmitAnswer(ctx, "alice", game.ID, q.ID, "Wrong")
	require.NoError(t, err)

	_, err = svc.SelectCell(ctx, "alice", game.ID, "Art", 400)
	require.ErrorIs(t, err, domain.ErrCellTaken)

	_, err = svc.SelectCell(ctx, "alice", game.ID, "Art", 300)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestJeopardyDuplicateSubmitDoesNotDoubleScore(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)
	svc := app.NewJeopardyService(env.core, nil, nil)

	game, err := svc.Start(ctx, "alice", 3, []string{"Art", "Film", "Food"})
	require.NoError(t, err)
	q, err := svc.SelectCell(ctx, "alice", game.ID, "Food", 1000)
	require.NoError(t, err)

	first, err := svc.SubmitAnswer(ctx, "alice", game.ID, q.ID, "Right")
	require.NoError(t, err)
	second, err := svc.SubmitAnswer(ctx, "alice", game.ID, q.ID, "Wrong")
	require.NoError(t, err)

	assert.Equal(t, 1000, first.Score)
	assert.Equal(t, 1000, second.Score)
	assert.True(t, second.Verdict.AlreadyAnswered)
	assert.True(t, second.Verdict.Correct)
}

func TestJeopardyAbandonDiscards(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)
	svc := app.NewJeopardyService(env.core, nil, nil)

	game, err := svc.Start(ctx, "alice", 3, []string{"Art", "Film", "Food"})
	require.NoError(t, err)
	q, err := svc.SelectCell(ctx, "alice", game.ID, "Film", 600)
	require.NoError(t, err)

	require.ErrorIs(t, svc.Abandon(ctx, "bob", game.ID), domain.ErrUnauthorized)
	require.NoError(t, svc.Abandon(ctx, "alice", game.ID))

	_, err = svc.SubmitAnswer(ctx, "alice", game.ID, q.ID, "Right")
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, env.history.Sessions("alice"))
}

func TestJeopardyStartValidation(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)
	svc := app.NewJeopardyService(env.core, testCategories, nil)

	_, err := svc.Start(ctx, "alice", 4, nil)
	require.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.Start(ctx, "alice", 3, []string{"Art", "Art", "Food"})
	require.ErrorIs(t, err, domain.ErrValidation)
	game, err := svc.Start(ctx, "alice", 5, nil)
	require.NoError(t, err)
	assert.Equal(t, 25, game.TotalCells())
}

func TestJeopardyWatchReceivesUpdates(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)
	hub := app.NewLiveHub()
	svc := app.NewJeopardyService(env.core, nil, hub)

	game, err := svc.Start(ctx, "alice", 3, []string{"Art", "Film", "Food"})
	require.NoError(t, err)
	ch, cancel, err := svc.Watch(ctx, "alice", game.ID)
	require.NoError(t, err)
	defer cancel()

	initial := <-ch
	assert.Nil(t, initial.Pending)

	q, err := svc.SelectCell(ctx, "alice", game.ID, "Art", 200)
	require.NoError(t, err)
	update := <-ch
	require.NotNil(t, update.Pending)
	assert.Equal(t, q.ID, update.Pending.ID)
	assert.True(t, update.BoardState["Art:200"])

	_, _, err = svc.Watch(ctx, "bob", game.ID)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestJeopardyRetryAppliesStoredVerdict(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)
	states := env.withFlakyStates()
	svc := app.NewJeopardyService(env.core, nil, nil)

	game, err := svc.Start(ctx, "alice", 3, []string{"Art", "Film", "Food"})
	require.NoError(t, err)
	q, err := svc.SelectCell(ctx, "alice", game.ID, "Art", 600)
	require.NoError(t, err)

	states.failNextSwaps(1)
	_, err = svc.SubmitAnswer(ctx, "alice", game.ID, q.ID, "Right")
	require.Error(t, err)

	res, err := svc.SubmitAnswer(ctx, "alice", game.ID, q.ID, "Right")
	require.NoError(t, err)
	assert.True(t, res.Verdict.AlreadyAnswered)
	assert.Equal(t, 600, res.Score)
	assert.Equal(t, 1, res.AnsweredCells)

	_, err = svc.SelectCell(ctx, "alice", game.ID, "Film", 200)
	require.NoError(t, err, "no question may stay pending after the retry")
}
