package domain

import (
	"strconv"
	"strings"
	"time"
)

// PointValues are the rows of every Jeopardy category column.
var PointValues = []int{200, 400, 600, 800, 1000}

// GameStatus is the tagged state of a Jeopardy board.
type GameStatus string

const (
	GameInProgress GameStatus = "in_progress"
	GameComplete   GameStatus = "complete"
)

// GameState is the ephemeral state of one Jeopardy board.
type GameState struct {
	ID                string            `json:"id"`
	OwnerID           string            `json:"ownerId"`
	BoardSize         int               `json:"boardSize"`
	Categories        []string          `json:"categories"`
	Score             int               `json:"score"`
	BoardState        map[string]bool   `json:"boardState"`
	Attempts          []QuestionAttempt `json:"questionsAttempted"`
	CurrentQuestionID string            `json:"currentQuestionId,omitempty"`
	Pending           *PendingQuestion  `json:"pending,omitempty"`
	Status            GameStatus        `json:"status"`
	StartedAt         time.Time         `json:"startedAt"`
	CompletedAt       time.Time         `json:"completedAt,omitempty"`
}

// CellKey identifies one board cell.
func CellKey(category string, points int) string {
	return category + ":" + strconv.Itoa(points)
}

// DifficultyForPoints maps a point value to the generator difficulty.
func DifficultyForPoints(points int) Difficulty {
	switch {
	case points <= 400:
		return Easy
	case points <= 600:
		return Medium
	default:
		return Hard
	}
}

// NewGameState validates the board layout. boardSize is the number of categories, 3 or 5.
func NewGameState(id, ownerID string, categories []string, now time.Time) (*GameState, error) {
	size := len(categories)
	if size != 3 && size != 5 {
		return nil, Validationf("board size must be 3 or 5, got %d", size)
	}
	cats := make([]string, 0, size)
	seen := make(map[string]bool, size)
	for _, c := range categories {
		c = strings.TrimSpace(c)
		if c == "" {
			return nil, Validationf("empty category")
		}
		if seen[c] {
			return nil, Validationf("duplicate category %q", c)
		}
		seen[c] = true
		cats = append(cats, c)
	}
	board := make(map[string]bool, size*len(PointValues))
	for _, c := range cats {
		for _, p := range PointValues {
			board[CellKey(c, p)] = false
		}
	}
	return &GameState{
		ID:         id,
		OwnerID:    ownerID,
		BoardSize:  size,
		Categories: cats,
		BoardState: board,
		Attempts:   []QuestionAttempt{},
		Status:     GameInProgress,
		StartedAt:  now,
	}, nil
}

// CheckSelectable returns an error if the cell cannot be selected right now.
func (g *GameState) CheckSelectable(category string, points int) error {
	if g.Status != GameInProgress {
		return ErrGameComplete
	}
	if g.Pending != nil {
		return ErrQuestionPending
	}
	taken, ok := g.BoardState[CellKey(category, points)]
	if !ok {
		return Validationf("no cell %s on this board", CellKey(category, points))
	}
	if taken {
		return ErrCellTaken
	}
	return nil
}

// Select consumes the cell and makes q the pending question.
// A selected cell stays consumed whatever the answer turns out to be.
func (g *GameState) Select(category string, points int, q PublicQuestion, now time.Time) error {
	if err := g.CheckSelectable(category, points); err != nil {
		return err
	}
	g.BoardState[CellKey(category, points)] = true
	g.Pending = &PendingQuestion{Question: q, AskedAt: now}
	g.CurrentQuestionID = q.ID
	return nil
}

// Answer applies the verdict for the pending question and completes the board when every cell is used.
func (g *GameState) Answer(attempt QuestionAttempt, now time.Time) error {
	if g.Status != GameInProgress {
		return ErrGameComplete
	}
	if g.Pending == nil || g.Pending.Question.ID != attempt.QuestionID {
		return ErrNoPendingQuestion
	}
	points := g.Pending.Question.Points
	attempt.Category = g.Pending.Question.Category
	if attempt.Correct {
		attempt.Points = points
	} else {
		attempt.Points = -points
	}
	// no floor: a board can finish below zero
	g.Score += attempt.Points
	g.Attempts = append(g.Attempts, attempt)
	g.Pending = nil
	g.CurrentQuestionID = ""

	if g.AnsweredCells() == g.TotalCells() {
		g.Status = GameComplete
		g.CompletedAt = now
	}
	return nil
}

// AnsweredCells counts consumed cells.
func (g *GameState) AnsweredCells() int {
	n := 0
	for _, taken := range g.BoardState {
		if taken {
			n++
		}
	}
	return n
}

// TotalCells is categories × point values.
func (g *GameState) TotalCells() int {
	return len(g.BoardState)
}

// Bucket is the leaderboard partition: board size.
func (g *GameState) Bucket() string {
	return "board-" + strconv.Itoa(g.BoardSize)
}

// Completed builds the history record for a finished board.
func (g *GameState) Completed(recordID string) CompletedSession {
	return CompletedSession{
		ID:          recordID,
		UserID:      g.OwnerID,
		Mode:        ModeJeopardy,
		Bucket:      g.Bucket(),
		Score:       g.Score,
		Attempts:    g.Attempts,
		TimePlayed:  g.CompletedAt.Sub(g.StartedAt),
		StartedAt:   g.StartedAt,
		CompletedAt: g.CompletedAt,
	}
}
