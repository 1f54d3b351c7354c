package validate

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kapu/mines-leaderboard-go/pkg/boarddto"
)

const (
	maxUsernameRunes = 16
	maxClaimTime     = 9999
	maxSessionAge    = 7 * 24 * time.Hour
	clockDriftSlack  = 60.0 // seconds of tolerated end-start vs claimed drift
	minSecPerMove    = 0.05
	maxSecPerMove    = 60.0
)

// tierSpec is the canonical board geometry and plausibility envelope for one
// difficulty tier.
type tierSpec struct {
	Width    int
	Height   int
	Mines    int
	MinMoves int
	MinTime  int
	// WorldRecord is the documented human reference time in seconds; claims
	// below it are definitionally impossible.
	WorldRecord float64
}

var tiers = map[boarddto.Difficulty]tierSpec{
	boarddto.DifficultyBeginner:     {Width: 9, Height: 9, Mines: 10, MinMoves: 8, MinTime: 1, WorldRecord: 0.49},
	boarddto.DifficultyIntermediate: {Width: 16, Height: 16, Mines: 40, MinMoves: 15, MinTime: 7, WorldRecord: 7.03},
	boarddto.DifficultyExpert:       {Width: 30, Height: 16, Mines: 99, MinMoves: 25, MinTime: 31, WorldRecord: 31.13},
}

// CheckResult is the verdict of one pipeline stage. Severity is advisory
// telemetry only; rejection is binary per check.
type CheckResult struct {
	Valid    bool
	Reason   string
	Message  string
	Severity boarddto.Severity
}

func pass() CheckResult { return CheckResult{Valid: true} }

func fail(reason, msg string, sev boarddto.Severity) CheckResult {
	return CheckResult{Reason: reason, Message: msg, Severity: sev}
}

func checkStructural(c boarddto.SubmitScoreRequest) CheckResult {
	switch {
	case strings.TrimSpace(c.Username) == "":
		return fail(boarddto.CodeValidationFailed, "username is required", boarddto.SeverityHigh)
	case utf8.RuneCountInString(c.Username) > maxUsernameRunes:
		return fail(boarddto.CodeValidationFailed, "username too long", boarddto.SeverityHigh)
	case !c.Difficulty.Valid():
		return fail(boarddto.CodeValidationFailed, "unknown difficulty", boarddto.SeverityHigh)
	case strings.TrimSpace(c.GameID) == "":
		return fail(boarddto.CodeValidationFailed, "gameId is required", boarddto.SeverityHigh)
	case c.Time <= 0 || c.Moves <= 0:
		return fail(boarddto.CodeValidationFailed, "time and moves must be positive", boarddto.SeverityHigh)
	case c.Timestamp <= 0 || c.GameEndTime <= 0 || c.FirstClickTime <= 0:
		return fail(boarddto.CodeValidationFailed, "session timing fields are required", boarddto.SeverityHigh)
	case c.GameState != "won":
		// The only submittable terminal state.
		return fail(boarddto.CodeInvalidGameState, "only won games may be submitted", boarddto.SeverityHigh)
	}
	return pass()
}

func checkTemporal(c boarddto.SubmitScoreRequest, now time.Time) CheckResult {
	age := now.Sub(time.UnixMilli(c.Timestamp))
	if age > maxSessionAge {
		return fail(boarddto.CodeSessionExpired, "game session is too old", boarddto.SeverityMedium)
	}
	elapsed := float64(c.GameEndTime-c.FirstClickTime) / 1000.0
	if math.Abs(elapsed-float64(c.Time)) > clockDriftSlack {
		return fail(boarddto.CodeTimeMismatch,
			"claimed time does not match session duration", boarddto.SeverityHigh)
	}
	return pass()
}

func checkBoard(c boarddto.SubmitScoreRequest) CheckResult {
	spec, ok := tiers[c.Difficulty]
	if !ok {
		return fail(boarddto.CodeValidationFailed, "unknown difficulty", boarddto.SeverityHigh)
	}
	if c.BoardSize.Width != spec.Width || c.BoardSize.Height != spec.Height || c.MineCount != spec.Mines {
		return fail(boarddto.CodeBoardMismatch,
			fmt.Sprintf("board must be %dx%d with %d mines for %s",
				spec.Width, spec.Height, spec.Mines, c.Difficulty),
			boarddto.SeverityCritical)
	}
	return pass()
}

func checkMoves(c boarddto.SubmitScoreRequest) CheckResult {
	spec, ok := tiers[c.Difficulty]
	if !ok {
		return fail(boarddto.CodeValidationFailed, "unknown difficulty", boarddto.SeverityHigh)
	}
	if c.Moves < spec.MinMoves {
		return fail(boarddto.CodeImplausibleMoves, "too few moves for a completed board", boarddto.SeverityMedium)
	}
	if c.Moves > spec.Width*spec.Height*2 {
		return fail(boarddto.CodeImplausibleMoves, "too many moves for the board size", boarddto.SeverityMedium)
	}
	perMove := float64(c.Time) / float64(c.Moves)
	if perMove < minSecPerMove || perMove > maxSecPerMove {
		return fail(boarddto.CodeImplausibleMoves, "implausible move cadence", boarddto.SeverityMedium)
	}
	return pass()
}

func checkMagnitude(c boarddto.SubmitScoreRequest) CheckResult {
	spec, ok := tiers[c.Difficulty]
	if !ok {
		return fail(boarddto.CodeValidationFailed, "unknown difficulty", boarddto.SeverityHigh)
	}
	if c.Time > maxClaimTime {
		return fail(boarddto.CodeUnreasonableScore, "time exceeds the maximum", boarddto.SeverityMedium)
	}
	if c.Time < spec.MinTime || float64(c.Time) < spec.WorldRecord {
		return fail(boarddto.CodeUnreasonableScore,
			"claimed time is faster than the world record", boarddto.SeverityCritical)
	}
	if float64(c.Time) < 2*spec.WorldRecord && c.Time%5 == 0 {
		return fail(boarddto.CodeSuspiciousRoundTime,
			"suspiciously round near-record time, please re-submit", boarddto.SeverityMedium)
	}
	return pass()
}

// TierSpec exposes the canonical geometry for a difficulty.
func TierSpec(d boarddto.Difficulty) (width, height, mines int, ok bool) {
	s, ok := tiers[d]
	return s.Width, s.Height, s.Mines, ok
}
