package errs

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDetailDoesNotMutateSentinel(t *testing.T) {
	e := ErrAccessDenied.WithDetail("not a member")
	assert.Equal(t, "not a member", e.Detail)
	assert.Empty(t, ErrAccessDenied.Detail, "sentinels stay clean")

	e2 := e.WithDetail("room r1")
	assert.Equal(t, "not a member, room r1", e2.Detail)
}

func TestIsMatchesByCode(t *testing.T) {
	err := ErrNotFound.WrapMsg("message m1")
	assert.True(t, ErrNotFound.Is(err))
	assert.False(t, ErrAccessDenied.Is(err))
	assert.False(t, ErrNotFound.Is(fmt.Errorf("plain")))
}

func TestAsCodeError(t *testing.T) {
	require.Nil(t, AsCodeError(nil))

	ce := AsCodeError(ErrConflict.WithDetail("room full"))
	assert.Equal(t, CodeConflict, ce.Code)

	// Wrapped coded errors unwrap to their code.
	ce = AsCodeError(ErrValidation.Wrap())
	assert.Equal(t, CodeValidation, ce.Code)

	// Uncoded errors collapse to Internal, keeping the message.
	ce = AsCodeError(fmt.Errorf("dial tcp: refused"))
	assert.Equal(t, CodeInternal, ce.Code)
	assert.Contains(t, ce.Detail, "refused")
}

func TestWrapExternal(t *testing.T) {
	assert.NoError(t, WrapExternal(nil, "noop"))

	// Coded errors pass through untouched so the taxonomy survives
	// collaborator boundaries.
	err := WrapExternal(ErrAccessDenied.WithDetail("banned"), "join check")
	assert.True(t, ErrAccessDenied.Is(err))

	err = WrapExternal(fmt.Errorf("mongo: timeout"), "create message")
	assert.True(t, ErrInternal.Is(err))
	assert.Contains(t, AsCodeError(err).Detail, "timeout")
}

func TestCodeName(t *testing.T) {
	assert.Equal(t, "VALIDATION_ERROR", CodeName(CodeValidation))
	assert.Equal(t, "INTERNAL", CodeName(99999), "unknown codes report as INTERNAL")
}
