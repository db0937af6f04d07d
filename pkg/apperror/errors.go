package apperror

import "errors"

var (
	ErrMissingUserID  = errors.New("user id is required")
	ErrMissingGuildID = errors.New("guild id is required")
	ErrInvalidInput   = errors.New("invalid input")

	// Reaction-role outcomes. Most reactions are not reaction-roles, so
	// ErrNoMapping is an expected lookup result, not a failure.
	ErrNoMapping        = errors.New("no reaction role mapping")
	ErrRoleNotFound     = errors.New("role not found")
	ErrRoleHierarchy    = errors.New("role sits above the bot's highest role")
	ErrPermissionDenied = errors.New("missing permission to manage roles")

	ErrCacheUnavailable = errors.New("coordination cache unavailable")
	ErrDuplicateMapping = errors.New("mapping already exists for this emoji")
)

// IsRoleFailure reports whether err is one of the distinguishable role-grant
// failure kinds that get logged and skipped rather than propagated.
func IsRoleFailure(err error) bool {
	return errors.Is(err, ErrRoleNotFound) ||
		errors.Is(err, ErrRoleHierarchy) ||
		errors.Is(err, ErrPermissionDenied)
}
