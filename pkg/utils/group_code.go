package utils

import (
	"crypto/rand"
	"fmt"
)

const groupCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GroupCodeLength is the length of the human-readable join code.
const GroupCodeLength = 6

// GenerateGroupCode draws a short uppercase alphanumeric join code.
// Uniqueness is enforced by the caller via the DB unique index and a
// retry loop, not here.
func GenerateGroupCode() (string, error) {
	bytes := make([]byte, GroupCodeLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate group code: %w", err)
	}

	for i, b := range bytes {
		bytes[i] = groupCodeCharset[int(b)%len(groupCodeCharset)]
	}
	return string(bytes), nil
}
