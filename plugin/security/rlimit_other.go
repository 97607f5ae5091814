//go:build !unix

package security

import (
	"github.com/gantry-sh/gantry/errors"
)

func applyProcessLimits(Limits) error {
	return errors.New("resource limits are not supported on this platform")
}
