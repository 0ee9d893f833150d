package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "without cause",
			err:      New(KindConfig, "config file missing"),
			expected: "config file missing",
		},
		{
			name:     "with cause",
			err:      Wrap(KindQuery, "query failed", errors.New("syntax error at or near \"SELEC\"")),
			expected: `query failed: syntax error at or near "SELEC"`,
		},
		{
			name:     "formatted",
			err:      Newf(KindImport, "line %d: expected %d fields, got %d", 3, 3, 2),
			expected: "line 3: expected 3 fields, got 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		kind  Kind
		check func(error) bool
	}{
		{KindConfig, IsConfig},
		{KindConnection, IsConnection},
		{KindQuery, IsQuery},
		{KindNoData, IsNoData},
		{KindImport, IsImport},
		{KindSessionClosed, IsSessionClosed},
		{KindInvalidInput, IsInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := fmt.Errorf("outer: %w", New(tt.kind, "boom"))
			assert.True(t, tt.check(err))
			assert.False(t, tt.check(errors.New("plain")))
		})
	}
}

func TestWrap_KeepsInnerKind(t *testing.T) {
	inner := New(KindSessionClosed, "session is closed")
	err := Wrap(KindQuery, "describe failed", inner)

	assert.True(t, IsSessionClosed(err))
	assert.ErrorIs(t, err, inner)
}

func TestKindOf_Unknown(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, "unknown", KindUnknown.String())
	assert.True(t, IsSessionClosed(ErrSessionClosed))
}
