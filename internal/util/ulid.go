package util

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string
func New() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.Reader, 0)

	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// NewWithPrefix generates a prefixed ULID, e.g. "wat_01J...".
func NewWithPrefix(prefix string) string {
	var sb strings.Builder
	sb.WriteString(prefix)
	sb.WriteString("_")
	sb.WriteString(New())
	return sb.String()
}
