package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain name", "recording", "recording"},
		{"keeps allowed punctuation", "my song - v2_final.take", "my song - v2_final.take"},
		{"path separators", "../../etc/passwd", "_.._etc_passwd"},
		{"windows separators", `C:\Users\me\file`, "C__Users_me_file"},
		{"shell metacharacters", "a;b|c&d$(e)", "a_b_c_d__e_"},
		{"unicode letters survive", "Füchse über München", "Füchse über München"},
		{"emoji replaced", "mix 🎵 tape", "mix _ tape"},
		{"leading dots trimmed", "...hidden", "hidden"},
		{"trailing dots trimmed", "name...", "name"},
		{"whitespace only", "   ", "download"},
		{"empty", "", "download"},
		{"null bytes", "a\x00b", "a_b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.input))
		})
	}
}

func TestSanitizeFilename_Truncates(t *testing.T) {
	long := strings.Repeat("a", 500)
	got := SanitizeFilename(long)
	assert.Len(t, got, maxFilenameLength)
}

func TestStripExtension(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"song.mp3", "song"},
		{"archive.tar.gz", "archive.tar"},
		{"noext", "noext"},
		{".hidden", ".hidden"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, StripExtension(tt.input))
		})
	}
}
