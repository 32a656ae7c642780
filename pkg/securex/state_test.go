package securex

import (
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

var hexStatePattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestGenerateState_Format(t *testing.T) {
	t.Parallel()

	state, err := GenerateState()
	require.NoError(t, err)
	require.Len(t, state, 64, "32 random bytes should render to 64 hex chars")
	require.Regexp(t, hexStatePattern, state)
}

func TestGenerateState_Uniqueness(t *testing.T) {
	t.Parallel()

	const count = 1000
	seen := make(map[string]bool, count)

	for range count {
		state, err := GenerateState()
		require.NoError(t, err)
		require.Regexp(t, hexStatePattern, state)
		require.NotContains(t, seen, state, "duplicate state generated")
		seen[state] = true
	}
}

func TestMustGenerateState(t *testing.T) {
	t.Parallel()

	state := MustGenerateState()
	require.Regexp(t, hexStatePattern, state)
}

func TestValidateState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		received string
		original string
		wantErr  bool
	}{
		{"exact match", "abc123", "abc123", false},
		{"mismatch", "abc123", "abc124", true},
		{"empty received", "", "abc123", true},
		{"case difference", "ABC123", "abc123", true},
		{"leading whitespace not trimmed", " abc123", "abc123", true},
		{"trailing whitespace not trimmed", "abc123 ", "abc123", true},
		{"received longer", "abc1234", "abc123", true},
		{"received shorter", "abc12", "abc123", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateState(tt.received, tt.original)
			if tt.wantErr {
				require.Error(t, err)

				var csrfErr *CsrfError
				require.ErrorAs(t, err, &csrfErr, "all rejections should be *CsrfError")
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateState_GeneratedRoundTrip(t *testing.T) {
	t.Parallel()

	state, err := GenerateState()
	require.NoError(t, err)

	require.NoError(t, ValidateState(state, state))

	other, err := GenerateState()
	require.NoError(t, err)

	err = ValidateState(other, state)
	var csrfErr *CsrfError
	require.True(t, errors.As(err, &csrfErr))
}
