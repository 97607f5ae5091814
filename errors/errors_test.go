package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelClassification(t *testing.T) {
	t.Run("wrapped sentinel keeps kind", func(t *testing.T) {
		err := Wrap(ErrNotFound, "looking up plugin export-csv")
		assert.True(t, IsNotFound(err))
		assert.False(t, IsConflict(err))
	})

	t.Run("wrapf preserves kind through layers", func(t *testing.T) {
		err := Wrapf(Wrap(ErrConflict, "register"), "plugin %s", "dup")
		assert.True(t, IsConflict(err))
	})

	t.Run("nil is never classified", func(t *testing.T) {
		assert.False(t, IsNotFound(nil))
		assert.False(t, IsPermissionDenied(nil))
		assert.False(t, IsSecurityViolation(nil))
	})

	t.Run("distinct sentinels do not alias", func(t *testing.T) {
		assert.False(t, Is(ErrInitFailed, ErrStartFailed))
		assert.False(t, Is(ErrStopFailed, ErrInitFailed))
	})
}

func TestFormattedConstructors(t *testing.T) {
	err := NewNotFound("plugin %q", "dns-check")
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "dns-check")

	err = NewConflict("plugin %q already registered", "dns-check")
	assert.True(t, IsConflict(err))
	assert.Contains(t, err.Error(), "already registered")
}
