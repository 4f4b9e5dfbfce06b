package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// CountMessages returns how many records in a text-handler log carry msg.
func CountMessages(log, msg string) int {
	return strings.Count(log, fmt.Sprintf("msg=%q", msg))
}

// AssertLogged checks that msg was logged exactly want times.
func AssertLogged(t *testing.T, log fmt.Stringer, msg string, want int) bool {
	t.Helper()
	text := log.String()
	return assert.Equal(t, want, CountMessages(text, msg), "log records %q in:\n%s", msg, text)
}
