package usecase

import "errors"

// ErrDependencyUnavailable marks failures of the thread registry or another
// collaborator the use case cannot work without.
var ErrDependencyUnavailable = errors.New("dependency unavailable")
