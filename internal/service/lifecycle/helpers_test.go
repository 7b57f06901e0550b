package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchmarket/watchmarket/internal/errs"
)

type errsError = errs.Error

func assertInvalidConfig(t *testing.T, err error, reason string) {
	t.Helper()
	require.Error(t, err)
	var serr *errs.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, errs.KindInvalidConfig, serr.Kind)
	assert.Equal(t, reason, serr.Reason)
}
