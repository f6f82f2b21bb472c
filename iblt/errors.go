package iblt

import "github.com/pkg/errors"

// Sentinel error kinds. NotFound is returned by Get; InvalidConfiguration
// is fatal at construction time; UnknownProperty is fatal from
// GetProp/GetPropFloat.
var (
	ErrNotFound             = errors.New("iblt: key not found")
	ErrInvalidConfiguration = errors.New("iblt: invalid configuration")
	ErrUnknownProperty      = errors.New("iblt: unknown property")
)
