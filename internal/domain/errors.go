package domain

import (
	"errors"
	"fmt"
)

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

var (
	// ErrUnauthenticated is returned when a connecting client has no token or
	// the token does not resolve to an email.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrStaleConnection is returned by the connection gateway when the push
	// target no longer exists.
	ErrStaleConnection = errors.New("stale connection")

	// ErrNotJoined is returned for channel operations on a connection that has
	// not joined a channel yet.
	ErrNotJoined = errors.New("connection has not joined a channel")
)

// UnmappedDomainError is returned when no channel is mapped to the email domain
// of a joining client.
type UnmappedDomainError struct {
	Email string
}

func (e UnmappedDomainError) Error() string {
	return "No channel mapping found"
}

// UnknownMessageTypeError is returned for frames with an unrecognized type.
type UnknownMessageTypeError struct {
	Type string
}

func (e UnknownMessageTypeError) Error() string {
	return fmt.Sprintf("Unknown message type: %s", e.Type)
}
