package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"echo-trivia/internal/app"
	"echo-trivia/internal/domain"
	"echo-trivia/internal/infra/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTower(env *testEnv) *app.TowerService {
	return app.NewTowerService(env.core, env.progress, app.TowerOptions{
		Categories:        []string{"History", "Science", "Music"},
		QuestionsPerFloor: 5,
		PassRatio:         0.6,
	})
}

func playFloor(t *testing.T, svc *app.TowerService, owner string, floor, correct int) app.FloorOutcome {
	t.Helper()
	out, err := svc.CompleteFloor(context.Background(), owner, answerFloor(t, svc, owner, floor, correct))
	require.NoError(t, err)
	return out
}

// answerFloor starts a floor and answers the first correct questions right.
func answerFloor(t *testing.T, svc *app.TowerService, owner string, floor, correct int) string {
	t.Helper()
	ctx := context.Background()
	start, err := svc.StartFloor(ctx, owner, floor)
	require.NoError(t, err)
	require.Len(t, start.Questions, 5)
	for i, q := range start.Questions {
		answer := "Wrong"
		if i < correct {
			answer = "Right"
		}
		_, err := svc.SubmitAnswer(ctx, owner, start.AttemptID, q.ID, answer)
		require.NoError(t, err)
	}
	return start.AttemptID
}

func TestTowerNewUserStartsAtFloorOne(t *testing.T) {
	env := newEnv(t)
	svc := newTower(env)

	view, err := svc.Progress(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, view.Progress.HighestFloor)
	assert.Equal(t, 9, view.TotalFloors)
	require.NotNil(t, view.Next)
	assert.Equal(t, "History", view.Next.Category)
}

func TestTowerGatesFloors(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)
	svc := newTower(env)

	_, err := svc.StartFloor(ctx, "alice", 2)
	require.ErrorIs(t, err, domain.ErrInvalidState, "highestFloor+1 must be locked for a new user")
	_, err = svc.StartFloor(ctx, "alice", 10)
	require.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.StartFloor(ctx, "alice", 0)
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Zero(t, env.source.Calls())
}

func TestTowerPassAdvancesAndFailDoesNot(t *testing.T) {
	env := newEnv(t)
	svc := newTower(env)

	out := playFloor(t, svc, "alice", 1, 2)
	assert.False(t, out.Result.Passed)
	assert.Equal(t, 1, out.Progress.HighestFloor)

	out = playFloor(t, svc, "alice", 1, 3)
	assert.True(t, out.Result.Passed)
	assert.Equal(t, 2, out.Progress.HighestFloor)
	assert.Contains(t, out.NewAchievements, domain.AchievementFirstFloor)

	out = playFloor(t, svc, "alice", 2, 5)
	assert.True(t, out.Result.Perfect)
	assert.Equal(t, 3, out.Progress.HighestFloor)
	assert.Equal(t, []int{2}, out.Progress.PerfectFloors)
	assert.Contains(t, out.NewAchievements, domain.AchievementPerfectFloor)
	assert.NotContains(t, out.NewAchievements, domain.AchievementFirstFloor)

	// replaying a lower floor never lowers progress
	out = playFloor(t, svc, "alice", 1, 0)
	assert.Equal(t, 3, out.Progress.HighestFloor)

	stored, err := env.progress.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, stored.HighestFloor)
	assert.ElementsMatch(t, []string{domain.AchievementFirstFloor, domain.AchievementPerfectFloor}, stored.Achievements)
}

func TestTowerCompleteRequiresAllAnswers(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)
	svc := newTower(env)

	start, err := svc.StartFloor(ctx, "alice", 1)
	require.NoError(t, err)
	_, err = svc.SubmitAnswer(ctx, "alice", start.AttemptID, start.Questions[0].ID, "Right")
	require.NoError(t, err)
	_, err = svc.CompleteFloor(ctx, "alice", start.AttemptID)
	require.ErrorIs(t, err, domain.ErrInvalidState)

	dup, err := svc.SubmitAnswer(ctx, "alice", start.AttemptID, start.Questions[0].ID, "Wrong")
	require.NoError(t, err)
	assert.True(t, dup.Verdict.AlreadyAnswered)
	assert.Equal(t, 1, dup.Correct)
}

func TestPlanFloorMapping(t *testing.T) {
	cats := []string{"A", "B", "C"}
	plan, err := domain.PlanFloor(1, cats)
	require.NoError(t, err)
	assert.Equal(t, domain.FloorPlan{Floor: 1, Tier: 1, Difficulty: domain.Easy, Category: "A"}, plan)

	plan, err = domain.PlanFloor(5, cats)
	require.NoError(t, err)
	assert.Equal(t, domain.FloorPlan{Floor: 5, Tier: 2, Difficulty: domain.Medium, Category: "B"}, plan)

	plan, err = domain.PlanFloor(9, cats)
	require.NoError(t, err)
	assert.Equal(t, domain.FloorPlan{Floor: 9, Tier: 3, Difficulty: domain.Hard, Category: "C"}, plan)
}

// flakyProgress fails the next failUpdates progress updates, then recovers.
type flakyProgress struct {
	*memory.ProgressStore
	failUpdates int
}

func (p *flakyProgress) Update(ctx context.Context, userID string, fn func(*domain.TowerProgress) error) (domain.TowerProgress, error) {
	if p.failUpdates > 0 {
		p.failUpdates--
		return domain.TowerProgress{}, errors.New("database unavailable")
	}
	return p.ProgressStore.Update(ctx, userID, fn)
}

func TestTowerCompleteFloorRetryCountsOnce(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)
	history := env.withFlakyHistory(1)
	progress := &flakyProgress{ProgressStore: env.progress, failUpdates: 1}
	svc := app.NewTowerService(env.core, progress, app.TowerOptions{
		Categories:        []string{"History", "Science", "Music"},
		QuestionsPerFloor: 5,
		PassRatio:         0.6,
	})

	attemptID := answerFloor(t, svc, "alice", 1, 4)

	// progress write fails
	_, err := svc.CompleteFloor(ctx, "alice", attemptID)
	require.Error(t, err)
	// progress is written, recording the session fails
	_, err = svc.CompleteFloor(ctx, "alice", attemptID)
	require.Error(t, err)

	out, err := svc.CompleteFloor(ctx, "alice", attemptID)
	require.NoError(t, err)
	assert.True(t, out.Result.Passed)
	assert.Equal(t, 2, out.Progress.HighestFloor)
	assert.Equal(t, 5, out.Progress.TotalQuestions, "a retried completion must be counted once")
	assert.Equal(t, 4, out.Progress.TotalCorrect)
	require.Len(t, history.Sessions("alice"), 1)

	_, err = svc.CompleteFloor(ctx, "alice", attemptID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTowerSubmitRetryAppliesStoredVerdict(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)
	states := env.withFlakyStates()
	svc := newTower(env)

	start, err := svc.StartFloor(ctx, "alice", 1)
	require.NoError(t, err)
	states.failNextSwaps(1)
	_, err = svc.SubmitAnswer(ctx, "alice", start.AttemptID, start.Questions[0].ID, "Right")
	require.Error(t, err)

	ans, err := svc.SubmitAnswer(ctx, "alice", start.AttemptID, start.Questions[0].ID, "Right")
	require.NoError(t, err)
	assert.Equal(t, 1, ans.Answered)
	assert.Equal(t, 1, ans.Correct)
}

func TestTowerConcurrentFloorsKeepEveryCount(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)
	svc := newTower(env)

	attempts := []string{answerFloor(t, svc, "alice", 1, 5), answerFloor(t, svc, "alice", 1, 2)}
	var wg sync.WaitGroup
	for _, id := range attempts {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := svc.CompleteFloor(ctx, "alice", id); err != nil {
				t.Errorf("complete %s: %v", id, err)
			}
		}(id)
	}
	wg.Wait()

	stored, err := env.progress.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 10, stored.TotalQuestions)
	assert.Equal(t, 7, stored.TotalCorrect)
	assert.Equal(t, []int{1}, stored.PerfectFloors)
	assert.Equal(t, 2, stored.HighestFloor)
}
