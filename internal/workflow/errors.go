package workflow

import "errors"

// Failure taxonomy for task operations. Handlers map these onto HTTP status
// codes; the realtime dispatcher maps them onto error events for the
// originating connection only.
var (
	ErrForbidden        = errors.New("not a member of this project")
	ErrInvalidStatus    = errors.New("status is not defined for this project")
	ErrNotFound         = errors.New("task not found")
	ErrValidation       = errors.New("invalid task data")
	ErrWIPLimitExceeded = errors.New("WIP limit exceeded for this status")
)
