package util

import (
	"errors"
	"path"
	"strings"
	"unicode"
)

const maxFileNameLen = 120

// ErrInvalidFileName is returned when nothing usable remains after cleaning.
var ErrInvalidFileName = errors.New("invalid file name")

// SanitizeFileName turns an uploaded file name into a single safe key segment.
// Separators and control characters become "_", dot runs cannot form ".."
// and long names are cut while keeping the extension.
func SanitizeFileName(name string) (string, error) {
	s := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':':
			return '_'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, strings.TrimSpace(name))

	for strings.Contains(s, "..") {
		s = strings.ReplaceAll(s, "..", ".")
	}
	s = strings.TrimLeft(s, "._ ")
	if s == "" {
		return "", ErrInvalidFileName
	}

	if len(s) > maxFileNameLen {
		ext := path.Ext(s)
		if len(ext) > 16 {
			ext = ""
		}
		s = strings.ToValidUTF8(s[:maxFileNameLen-len(ext)], "") + ext
	}
	return s, nil
}
