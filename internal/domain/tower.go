package domain

import (
	"fmt"
	"sort"
	"time"
)

// TowerTiers is the number of difficulty tiers; the tower has TowerTiers × len(categories) floors.
const TowerTiers = 3

// appliedAttemptsKept bounds the attempt ids remembered by TowerProgress.
const appliedAttemptsKept = 20

// Tower achievements.
const (
	AchievementFirstFloor     = "first_floor"
	AchievementPerfectFloor   = "perfect_floor"
	AchievementTowerConquered = "tower_conquered"
)

// TierAchievement names the achievement for clearing a whole tier.
func TierAchievement(tier int) string {
	return fmt.Sprintf("tier_%d_cleared", tier)
}

// TowerProgress is the durable per-user tower record.
type TowerProgress struct {
	UserID         string    `json:"userId"`
	CurrentFloor   int       `json:"currentFloor"`
	HighestFloor   int       `json:"highestFloor"`
	TotalQuestions int       `json:"totalQuestions"`
	TotalCorrect   int       `json:"totalCorrect"`
	PerfectFloors  []int     `json:"perfectFloors"`
	Achievements   []string  `json:"achievements"`
	UpdatedAt      time.Time `json:"updatedAt"`

	// AppliedAttempts lists the most recent floor attempts already folded in.
	AppliedAttempts []string `json:"-"`
}

// NewTowerProgress is the starting record for a user that never played: only floor 1 is open.
func NewTowerProgress(userID string) TowerProgress {
	return TowerProgress{
		UserID:        userID,
		CurrentFloor:  1,
		HighestFloor:  1,
		PerfectFloors: []int{},
		Achievements:  []string{},
	}
}

// CanAccess reports whether floor is unlocked.
func (p TowerProgress) CanAccess(floor int) bool {
	return floor >= 1 && floor <= p.HighestFloor
}

// HasAchievement reports whether name was already earned.
func (p TowerProgress) HasAchievement(name string) bool {
	for _, a := range p.Achievements {
		if a == name {
			return true
		}
	}
	return false
}

// FloorPlan is the deterministic content plan for a floor.
type FloorPlan struct {
	Floor      int        `json:"floor"`
	Tier       int        `json:"tier"`
	Difficulty Difficulty `json:"difficulty"`
	Category   string     `json:"category"`
}

// TowerFloors returns the number of floors for a category rotation.
func TowerFloors(categories []string) int {
	return TowerTiers * len(categories)
}

// PlanFloor maps a floor to tier, difficulty and category.
// Categories rotate with (floor-1) mod N; tiers are blocks of N floors.
func PlanFloor(floor int, categories []string) (FloorPlan, error) {
	n := len(categories)
	if n == 0 {
		return FloorPlan{}, Validationf("tower has no categories")
	}
	if floor < 1 || floor > TowerFloors(categories) {
		return FloorPlan{}, Validationf("floor %d out of range 1..%d", floor, TowerFloors(categories))
	}
	tier := (floor-1)/n + 1
	diff := Easy
	switch tier {
	case 2:
		diff = Medium
	case 3:
		diff = Hard
	}
	return FloorPlan{
		Floor:      floor,
		Tier:       tier,
		Difficulty: diff,
		Category:   categories[(floor-1)%n],
	}, nil
}

// FloorAttempt is the ephemeral state of one floor being played.
type FloorAttempt struct {
	ID          string                     `json:"id"`
	OwnerID     string                     `json:"ownerId"`
	Plan        FloorPlan                  `json:"plan"`
	Questions   []PublicQuestion           `json:"questions"`
	Answered    map[string]QuestionAttempt `json:"answered"`
	Correct     int                        `json:"correct"`
	Status      GameStatus                 `json:"status"`
	StartedAt   time.Time                  `json:"startedAt"`
	CompletedAt time.Time                  `json:"completedAt,omitempty"`
}

// NewFloorAttempt starts an attempt over the generated questions.
func NewFloorAttempt(id, ownerID string, plan FloorPlan, questions []PublicQuestion, now time.Time) *FloorAttempt {
	return &FloorAttempt{
		ID:        id,
		OwnerID:   ownerID,
		Plan:      plan,
		Questions: questions,
		Answered:  make(map[string]QuestionAttempt, len(questions)),
		Status:    GameInProgress,
		StartedAt: now,
	}
}

// Question returns the public question with id.
func (a *FloorAttempt) Question(id string) (PublicQuestion, bool) {
	return findQuestion(a.Questions, id)
}

// Answer records a verdict for one of the floor questions.
func (a *FloorAttempt) Answer(attempt QuestionAttempt) error {
	if a.Status != GameInProgress {
		return ErrSessionFinished
	}
	q, ok := a.Question(attempt.QuestionID)
	if !ok {
		return ErrQuestionNotFound
	}
	if _, done := a.Answered[attempt.QuestionID]; done {
		return ErrNoPendingQuestion
	}
	attempt.Category = q.Category
	if attempt.Correct {
		a.Correct++
		attempt.Points = 1
	}
	a.Answered[attempt.QuestionID] = attempt
	return nil
}

// FloorResult summarizes a completed floor.
type FloorResult struct {
	Floor   int  `json:"floor"`
	Tier    int  `json:"tier"`
	Correct int  `json:"correct"`
	Total   int  `json:"total"`
	Passed  bool `json:"passed"`
	Perfect bool `json:"perfect"`
}

// Complete closes a fully answered attempt.
func (a *FloorAttempt) Complete(now time.Time) error {
	if a.Status != GameInProgress {
		return ErrSessionFinished
	}
	if len(a.Answered) < len(a.Questions) {
		return ErrFloorUnfinished
	}
	a.Status = GameComplete
	a.CompletedAt = now
	return nil
}

// Result scores the attempt. passRatio is the share of correct answers needed to pass.
func (a *FloorAttempt) Result(passRatio float64) FloorResult {
	total := len(a.Questions)
	return FloorResult{
		Floor:   a.Plan.Floor,
		Tier:    a.Plan.Tier,
		Correct: a.Correct,
		Total:   total,
		Passed:  total > 0 && float64(a.Correct) >= passRatio*float64(total),
		Perfect: total > 0 && a.Correct == total,
	}
}

// Attempts lists answered questions in question order.
func (a *FloorAttempt) Attempts() []QuestionAttempt {
	return orderedAttempts(a.Questions, a.Answered)
}

// ApplyAttempt folds the result of attemptID in unless that attempt was applied before.
// It reports whether the progress changed.
func (p *TowerProgress) ApplyAttempt(attemptID string, res FloorResult, categories []string, now time.Time) ([]string, bool) {
	for _, id := range p.AppliedAttempts {
		if id == attemptID {
			return nil, false
		}
	}
	earned := p.Apply(res, categories, now)
	p.AppliedAttempts = append(p.AppliedAttempts, attemptID)
	if n := len(p.AppliedAttempts); n > appliedAttemptsKept {
		p.AppliedAttempts = append([]string{}, p.AppliedAttempts[n-appliedAttemptsKept:]...)
	}
	return earned, true
}

// Apply folds a floor result into the progress and returns newly earned achievements.
// HighestFloor never decreases.
func (p *TowerProgress) Apply(res FloorResult, categories []string, now time.Time) []string {
	p.TotalQuestions += res.Total
	p.TotalCorrect += res.Correct
	p.CurrentFloor = res.Floor
	p.UpdatedAt = now

	var earned []string
	award := func(name string) {
		if !p.HasAchievement(name) {
			earned = append(earned, name)
		}
	}

	if res.Perfect && !containsInt(p.PerfectFloors, res.Floor) {
		p.PerfectFloors = append(p.PerfectFloors, res.Floor)
		sort.Ints(p.PerfectFloors)
		award(AchievementPerfectFloor)
	}
	if !res.Passed {
		return earned
	}

	top := TowerFloors(categories)
	award(AchievementFirstFloor)
	if res.Floor%len(categories) == 0 {
		award(TierAchievement(res.Tier))
	}
	if res.Floor == top {
		award(AchievementTowerConquered)
	}

	next := res.Floor + 1
	if next > top {
		next = top
	}
	if next > p.HighestFloor {
		p.HighestFloor = next
	}
	if next > p.CurrentFloor {
		p.CurrentFloor = next
	}
	return earned
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
