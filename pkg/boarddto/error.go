package boarddto

// Stable machine-readable rejection codes surfaced to clients.
const (
	CodeValidationFailed     = "VALIDATION_FAILED"
	CodeInvalidGameState     = "INVALID_GAME_STATE"
	CodeSessionExpired       = "SESSION_EXPIRED"
	CodeTimeMismatch         = "TIME_MISMATCH"
	CodeBoardMismatch        = "BOARD_MISMATCH"
	CodeImplausibleMoves     = "IMPLAUSIBLE_MOVES"
	CodeUnreasonableScore    = "UNREASONABLE_SCORE"
	CodeSuspiciousRoundTime  = "SUSPICIOUS_ROUND_TIME"
	CodeDuplicateSubmission  = "DUPLICATE_SUBMISSION"
	CodeTemporarilyBlocked   = "TEMPORARILY_BLOCKED"
	CodeRateLimited          = "RATE_LIMITED"
	CodeInvalidTokenStruct   = "invalid_token_structure"
	CodeTokenExpired         = "token_expired"
	CodeInvalidSignature     = "invalid_signature"
	CodeTokenAlreadyUsed     = "token_already_used"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeNotFound             = "NOT_FOUND"
	CodeMethodNotAllowed     = "METHOD_NOT_ALLOWED"
	CodeInternalError        = "INTERNAL_ERROR"
)

// Severity is an advisory triage label for telemetry. It never changes the
// accept/reject outcome of a check.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type DomainError struct {
	Code     string
	Message  string
	Severity Severity
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "leaderboard service error"
}
