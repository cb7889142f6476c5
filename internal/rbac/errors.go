package rbac

import "errors"

var (
	ErrNotFound        = errors.New("rbac: not found")
	ErrConflict        = errors.New("rbac: resource conflict")
	ErrInvalidInput    = errors.New("rbac: invalid input")
	ErrUnauthenticated = errors.New("rbac: unauthenticated")
	ErrUnauthorized    = errors.New("rbac: unauthorized")

	// ErrSeedRoleMissing indicates the BasicUser role is absent from the
	// store. This is startup-class bad seed data, not a business outcome.
	ErrSeedRoleMissing = errors.New("rbac: seed role missing")
)
