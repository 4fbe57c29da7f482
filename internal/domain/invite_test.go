package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRandomInviteCodesAlphabet(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		code, err := RandomInviteCodes{}.Generate()
		require.NoError(t, err)
		require.Len(t, code, InviteCodeLength)
		for _, r := range code {
			require.True(t, strings.ContainsRune(inviteAlphabet, r), "unexpected rune %q", r)
		}
		seen[code] = struct{}{}
	}
	require.Greater(t, len(seen), 190)
}

func TestNormalizeInviteCode(t *testing.T) {
	code, err := NormalizeInviteCode("  ab12cd34 ")
	require.NoError(t, err)
	require.Equal(t, "AB12CD34", code)

	_, err = NormalizeInviteCode("ABC")
	require.True(t, IsCode(err, ErrCodeValidation))

	_, err = NormalizeInviteCode("AB-2CD34")
	require.True(t, IsCode(err, ErrCodeValidation))
}
