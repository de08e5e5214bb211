package policy

import "errors"

// Domain errors for the policy package.
// Check with errors.Is() in calling code.
var (
	// ErrEmptyType is returned when a device type identity is blank.
	ErrEmptyType = errors.New("policy: device type cannot be empty")

	// ErrNotDisabled is returned when enabling a type that is not disabled.
	ErrNotDisabled = errors.New("policy: device type is not disabled")
)
