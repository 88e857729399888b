package domain

// ErrorCode represents the type of a problem error.
type ErrorCode string

const (
	ErrCodeNotFound                   ErrorCode = "NOT_FOUND"
	ErrCodeAlreadyClaimed             ErrorCode = "ALREADY_CLAIMED"
	ErrCodeNotClaimedByYou            ErrorCode = "NOT_CLAIMED_BY_YOU"
	ErrCodeNotAllowedToResolve        ErrorCode = "NOT_ALLOWED_TO_RESOLVE"
	ErrCodeNotAllowedToUnsolve        ErrorCode = "NOT_ALLOWED_TO_UNSOLVE"
	ErrCodeNotAllowedToRemoveClaimer  ErrorCode = "NOT_ALLOWED_TO_REMOVE_CLAIMER"
	ErrCodeNotAllowedToOpenOrClose    ErrorCode = "NOT_ALLOWED_TO_OPEN_OR_CLOSE"
	ErrCodeNotAllowedToReopen         ErrorCode = "NOT_ALLOWED_TO_REOPEN"
	ErrCodeNotAllowedToEdit           ErrorCode = "NOT_ALLOWED_TO_EDIT"
	ErrCodeNotAllowedToDelete         ErrorCode = "NOT_ALLOWED_TO_DELETE"
	ErrCodeNotAllowedToAcceptSolution ErrorCode = "NOT_ALLOWED_TO_ACCEPT_SOLUTION"
	ErrCodeInvalidArgument            ErrorCode = "INVALID_ARGUMENT"
	ErrCodeDBNotFound                 ErrorCode = "DB_NOT_FOUND"
	ErrCodeWorkspaceNotFound          ErrorCode = "WORKSPACE_NOT_FOUND"
	ErrCodeSQLiteBusy                 ErrorCode = "SQLITE_BUSY"
	ErrCodeStorage                    ErrorCode = "STORAGE"
	ErrCodeUnexpected                 ErrorCode = "UNEXPECTED"
)

var denialMessages = map[ErrorCode]string{
	ErrCodeNotFound:                   "Problem not found",
	ErrCodeAlreadyClaimed:             "You cannot claim a problem that is already claimed",
	ErrCodeNotClaimedByYou:            "You cannot unclaim a problem that is not claimed by you",
	ErrCodeNotAllowedToResolve:        "You are not allowed to resolve this problem",
	ErrCodeNotAllowedToUnsolve:        "You are not allowed to unsolve this problem",
	ErrCodeNotAllowedToRemoveClaimer:  "You are not allowed to remove claimer",
	ErrCodeNotAllowedToOpenOrClose:    "You are not allowed to open or close this problem",
	ErrCodeNotAllowedToReopen:         "You cannot reopen a problem that is not closed",
	ErrCodeNotAllowedToEdit:           "You cannot edit a problem you did not create",
	ErrCodeNotAllowedToDelete:         "You cannot delete the problems you did not create",
	ErrCodeNotAllowedToAcceptSolution: "You are not allowed to accept a solution for this problem",
}

// Sentinels for errors.Is. Matching is by code only.
var (
	ErrNotFound                   = &ProblemError{Code: ErrCodeNotFound}
	ErrAlreadyClaimed             = &ProblemError{Code: ErrCodeAlreadyClaimed}
	ErrNotClaimedByYou            = &ProblemError{Code: ErrCodeNotClaimedByYou}
	ErrNotAllowedToResolve        = &ProblemError{Code: ErrCodeNotAllowedToResolve}
	ErrNotAllowedToUnsolve        = &ProblemError{Code: ErrCodeNotAllowedToUnsolve}
	ErrNotAllowedToRemoveClaimer  = &ProblemError{Code: ErrCodeNotAllowedToRemoveClaimer}
	ErrNotAllowedToOpenOrClose    = &ProblemError{Code: ErrCodeNotAllowedToOpenOrClose}
	ErrNotAllowedToReopen         = &ProblemError{Code: ErrCodeNotAllowedToReopen}
	ErrNotAllowedToEdit           = &ProblemError{Code: ErrCodeNotAllowedToEdit}
	ErrNotAllowedToDelete         = &ProblemError{Code: ErrCodeNotAllowedToDelete}
	ErrNotAllowedToAcceptSolution = &ProblemError{Code: ErrCodeNotAllowedToAcceptSolution}
	ErrInvalidArgument            = &ProblemError{Code: ErrCodeInvalidArgument}
)

// ProblemError is the typed failure returned by every lifecycle operation.
type ProblemError struct {
	Code       ErrorCode
	Message    string
	ProblemID  ProblemId
	OccurredAt Timestamp
}

// Error implements the error interface for ProblemError.
func (e *ProblemError) Error() string {
	msg := string(e.Code) + ": " + e.Message
	if !e.ProblemID.IsEmpty() {
		msg += " (problem " + e.ProblemID.String() + ")"
	}
	return msg
}

// Is reports whether target carries the same code.
func (e *ProblemError) Is(target error) bool {
	t, ok := target.(*ProblemError)
	return ok && t.Code == e.Code
}

// NewDenial builds the error for a denied or lost transition on a problem.
func NewDenial(code ErrorCode, id ProblemId) *ProblemError {
	return &ProblemError{
		Code:       code,
		Message:    denialMessages[code],
		ProblemID:  id,
		OccurredAt: Now(),
	}
}

// NewNotFound is returned when the referenced problem does not exist.
func NewNotFound(id ProblemId) *ProblemError {
	return NewDenial(ErrCodeNotFound, id)
}

// NewInvalidArgument is returned for malformed requests.
func NewInvalidArgument(message string) *ProblemError {
	return &ProblemError{
		Code:       ErrCodeInvalidArgument,
		Message:    message,
		OccurredAt: Now(),
	}
}

// NewStorageError wraps an adapter failure.
func NewStorageError(code ErrorCode, message string) *ProblemError {
	return &ProblemError{
		Code:       code,
		Message:    message,
		OccurredAt: Now(),
	}
}
