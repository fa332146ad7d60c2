package forum

import (
	"errors"
	"fmt"
	"time"
)

// Outcome classes. Every rejection returned by State matches exactly one of
// these with errors.Is.
var (
	ErrInvalid      = errors.New("invalid")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBanned       = errors.New("banned")
)

var (
	ErrBlankCredentials   = fmt.Errorf("%w: username and password required", ErrInvalid)
	ErrBlankAvatar        = fmt.Errorf("%w: avatar required", ErrInvalid)
	ErrBlankName          = fmt.Errorf("%w: community name required", ErrInvalid)
	ErrInvalidSlug        = fmt.Errorf("%w: name has no usable characters", ErrInvalid)
	ErrBlankComment       = fmt.Errorf("%w: comment text required", ErrInvalid)
	ErrInvalidDirection   = fmt.Errorf("%w: vote direction must be 1 or -1", ErrInvalid)
	ErrBlankTarget        = fmt.Errorf("%w: report target required", ErrInvalid)
	ErrSelfReport         = fmt.Errorf("%w: cannot report yourself", ErrInvalid)
	ErrSelfBan            = fmt.Errorf("%w: cannot ban yourself", ErrInvalid)
	ErrInvalidDuration    = fmt.Errorf("%w: ban minutes must not be negative", ErrInvalid)
	ErrTargetMismatch     = fmt.Errorf("%w: target does not match report", ErrInvalid)
	ErrCreatorCannotLeave = fmt.Errorf("%w: creator cannot leave their community", ErrInvalid)

	ErrAlreadyExists   = fmt.Errorf("%w: account already exists", ErrConflict)
	ErrCommunityExists = fmt.Errorf("%w: community already exists", ErrConflict)
	ErrAlreadyResolved = fmt.Errorf("%w: report already resolved", ErrConflict)

	ErrNoSuchAccount   = fmt.Errorf("%w: no such account", ErrNotFound)
	ErrNoSuchCommunity = fmt.Errorf("%w: no such community", ErrNotFound)
	ErrNoSuchComment   = fmt.Errorf("%w: no such comment", ErrNotFound)
	ErrNoSuchReport    = fmt.Errorf("%w: no such report", ErrNotFound)

	ErrNotLoggedIn   = fmt.Errorf("%w: log in first", ErrUnauthorized)
	ErrWrongPassword = fmt.Errorf("%w: wrong password", ErrUnauthorized)
	ErrNotAdmin      = fmt.Errorf("%w: admin only", ErrUnauthorized)
)

// BanError is returned when a banned identity tries to authenticate or act.
type BanError struct {
	Username string
	Until    *time.Time
}

func (e *BanError) Error() string {
	if e.Until == nil {
		return fmt.Sprintf("%s is banned permanently", e.Username)
	}
	return fmt.Sprintf("%s is banned until %s", e.Username, e.Until.Format(time.RFC3339))
}

func (e *BanError) Is(target error) bool {
	return target == ErrBanned
}

func (e *BanError) Permanent() bool {
	return e.Until == nil
}

// Kind names the outcome class of err: "ok", "invalid", "conflict",
// "not_found", "unauthorized", "banned" or "error".
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrBanned):
		return "banned"
	case errors.Is(err, ErrInvalid):
		return "invalid"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	}
	return "error"
}
