package boarddto

import "time"

// Difficulty identifies one leaderboard tier.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyExpert       Difficulty = "expert"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyExpert:
		return true
	}
	return false
}

// Difficulties lists the tiers in display order.
func Difficulties() []Difficulty {
	return []Difficulty{DifficultyBeginner, DifficultyIntermediate, DifficultyExpert}
}

// ScoreRecord is one stored leaderboard entry. At most one record per
// username per tier; the record always holds that user's best verified time.
type ScoreRecord struct {
	Username  string    `json:"username"`
	Time      int       `json:"time"`
	Timestamp time.Time `json:"timestamp"`
	GameID    string    `json:"gameId"`
	Moves     int       `json:"moves"`
	Verified  bool      `json:"verified"`
}

// BoardSize is the claimed grid geometry of a finished game.
type BoardSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SubmitScoreRequest carries a client game-completion claim. It is transient:
// only derived ScoreRecord fields are ever persisted.
type SubmitScoreRequest struct {
	Username       string     `json:"username"`
	Difficulty     Difficulty `json:"difficulty"`
	Time           int        `json:"time"`
	Moves          int        `json:"moves"`
	GameID         string     `json:"gameId"`
	Timestamp      int64      `json:"timestamp"` // claimed session start, unix millis
	BoardSize      BoardSize  `json:"boardSize"`
	MineCount      int        `json:"mineCount"`
	GameEndTime    int64      `json:"gameEndTime"`    // unix millis
	FirstClickTime int64      `json:"firstClickTime"` // unix millis
	GameState      string     `json:"gameState"`
}

// SubmitResult is the accept-path outcome echoed back to the caller.
type SubmitResult struct {
	Improved    bool          `json:"improved"`
	Rank        int           `json:"rank,omitempty"` // 1-based; 0 when not on the board
	Leaderboard []ScoreRecord `json:"leaderboard"`
}
