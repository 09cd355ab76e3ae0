package validation

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"unicode"
)

// Characters that are unsafe in filenames on at least one of the
// filesystems we care about (FAT, NTFS, HFS+, ext4).
const unsafeFilenameChars = `<>:"/\|?*`

// SanitizeFilename turns feed-provided metadata into a name that is safe
// across common filesystems. Whitespace runs collapse to a single space,
// unsafe and control characters are dropped, and the result is bounded to
// maxLen runes. Leading and trailing dots are stripped so the name can
// never become a hidden file or trip up Windows.
func SanitizeFilename(name string, maxLen int) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range name {
		switch {
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
			}
			lastSpace = true
		case unicode.IsControl(r) || strings.ContainsRune(unsafeFilenameChars, r):
			// dropped
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}

	sanitized := strings.Trim(b.String(), ". ")

	runes := []rune(sanitized)
	if maxLen > 0 && len(runes) > maxLen {
		sanitized = strings.Trim(string(runes[:maxLen]), ". ")
	}

	return sanitized
}

// FilenameFromURL extracts the base name and extension from a URL's path.
// Query strings and fragments are ignored; percent-encoding is decoded.
func FilenameFromURL(rawURL string) (base, ext string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", ""
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return "", ""
	}

	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}

	ext = path.Ext(name)
	base = strings.TrimSuffix(name, ext)
	return base, ext
}

// CandidateName returns the attempt-th disambiguated variant of filename:
// attempt 0 is the name itself, attempt 1 is "name (2).ext" and so on.
func CandidateName(filename string, attempt int) string {
	if attempt == 0 {
		return filename
	}

	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	return fmt.Sprintf("%s (%d)%s", base, attempt+1, ext)
}
