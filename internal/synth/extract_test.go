package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCodeBlock(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{
			name:  "go block",
			reply: "Sure.\n```go\nfunc a() {}\n```\nDone.",
			want:  "func a() {}",
		},
		{
			name:  "golang tag",
			reply: "```golang\nfunc b() {}\n```",
			want:  "func b() {}",
		},
		{
			name:  "first go block wins",
			reply: "```go\nfunc first() {}\n```\n```go\nfunc second() {}\n```",
			want:  "func first() {}",
		},
		{
			name:  "tagged block preferred over earlier untagged",
			reply: "```\nplain\n```\n```go\nfunc tagged() {}\n```",
			want:  "func tagged() {}",
		},
		{
			name:  "other language skipped",
			reply: "```python\ndef x(): pass\n```\n```go\nfunc x() {}\n```",
			want:  "func x() {}",
		},
		{
			name:  "untagged fallback",
			reply: "```\nfunc c() {}\n```",
			want:  "func c() {}",
		},
		{
			name:  "crlf",
			reply: "```go\r\nfunc d() {}\r\n```\r\n",
			want:  "func d() {}",
		},
		{
			name:  "indented fence",
			reply: "  ```go\n  func e() {}\n  ```",
			want:  "func e() {}",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractCodeBlock(tt.reply)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractCodeBlock_Malformed(t *testing.T) {
	for _, reply := range []string{
		"",
		"func a() {}",
		"```go\nfunc unterminated() {}",
		"```python\nprint(1)\n```",
	} {
		_, err := ExtractCodeBlock(reply)
		assert.ErrorIs(t, err, ErrMalformedResponse, reply)
	}
}
