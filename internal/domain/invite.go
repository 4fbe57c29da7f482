package domain

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const (
	// InviteCodeLength is the number of characters in an invite code.
	InviteCodeLength = 8
	inviteAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// maxInviteAttempts bounds regeneration when a code collides.
	maxInviteAttempts = 5
)

// InviteCodeGenerator issues candidate invite codes.
type InviteCodeGenerator interface {
	Generate() (string, error)
}

// RandomInviteCodes draws codes uniformly from [A-Z0-9] using crypto/rand.
type RandomInviteCodes struct{}

// Generate returns a fresh candidate code.
func (RandomInviteCodes) Generate() (string, error) {
	// 252 is the largest multiple of 36 below 256; larger bytes are rejected to keep the draw uniform.
	const limit = 256 - 256%len(inviteAlphabet)

	code := make([]byte, 0, InviteCodeLength)
	buf := make([]byte, InviteCodeLength*2)
	for len(code) < InviteCodeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			code = append(code, inviteAlphabet[int(b)%len(inviteAlphabet)])
			if len(code) == InviteCodeLength {
				break
			}
		}
	}
	return string(code), nil
}

// NormalizeInviteCode upper-cases and validates a user-entered code.
func NormalizeInviteCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) != InviteCodeLength {
		return "", Validationf("invite code must be %d characters", InviteCodeLength)
	}
	for _, r := range code {
		if !strings.ContainsRune(inviteAlphabet, r) {
			return "", Validationf("invite code may only contain letters and digits")
		}
	}
	return code, nil
}
