package mail

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractAddress(t *testing.T) {
	cases := []struct {
		from string
		want string
		ok   bool
	}{
		{"Jennifer Taylor <jennifer.t@example.com>", "jennifer.t@example.com", true},
		{"david.wilson@example.com", "david.wilson@example.com", true},
		{"\"Rodriguez, Lisa\" <lisa_rodriguez@mail.example.org>", "lisa_rodriguez@mail.example.org", true},
		{"not an address", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := ExtractAddress(tc.from)
		assert.Equal(t, tc.ok, ok, "from: %q", tc.from)
		assert.Equal(t, tc.want, got, "from: %q", tc.from)
	}
}

func TestHtmlify(t *testing.T) {
	assert.Equal(t, "<p>hello</p>", Htmlify("hello"))
	assert.Equal(t, "<p>line one<br>line two</p>", Htmlify("line one\nline two"))
}

func TestMockSendSucceedsWithoutCredentials(t *testing.T) {
	client := NewSendGrid("", "")
	require.True(t, client.Mock())
	require.NoError(t, client.Send(context.Background(), "tenant@example.com", "RE: leak", "on it", ""))
}
