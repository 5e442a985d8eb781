package stack

import (
	"errors"
	"fmt"

	"github.com/eipdev/eipdev-go/pkg/cip"
)

// Connection manager errors. Each is returned wrapped together with the
// *cip.StatusError an originator would receive.
var (
	ErrNoConnectionPoint        = errors.New("no matching connection point")
	ErrOwnershipConflict        = errors.New("output already owned by an exclusive owner connection")
	ErrNoControllingConnection  = errors.New("listen only connection without controlling connection")
	ErrInvalidConfigurationSize = errors.New("invalid configuration data size")
	ErrConfigurationRejected    = errors.New("configuration data rejected")
	ErrConnectionNotFound       = errors.New("connection not found")
	ErrInvalidConsumingSize     = errors.New("invalid consumed data size")
	ErrNotAttached              = errors.New("no application attached")
	ErrInvalidAssembly          = errors.New("invalid assembly instance")
)

// connFailure combines a sentinel with the CIP connection failure status.
func connFailure(sentinel error, extended uint16, detail string) error {
	return fmt.Errorf("%w (%s): %w", sentinel, detail, cip.ConnErr(extended))
}
