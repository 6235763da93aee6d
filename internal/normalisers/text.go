package normalisers

import (
	"strings"
	"unicode/utf8"
)

// NormaliseLineEndings converts CRLF and lone CR line endings to LF.
func NormaliseLineEndings(s string) string {
	if !strings.ContainsRune(s, '\r') {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// CleanText decodes content as UTF-8, dropping invalid sequences, NUL
// bytes and a leading byte order mark, and normalises line endings.
func CleanText(content []byte) string {
	s := string(content)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.ReplaceAll(s, "\x00", "")
	return NormaliseLineEndings(s)
}
