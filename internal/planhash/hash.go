// Package planhash computes stable plan-content digests and formats the
// monotonic UTC timestamps used throughout the state store and worktree
// layout.
package planhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"
)

// Sum returns the SHA-256 hex digest of the canonicalised plan content at
// path. Canonicalisation normalises line endings (CRLF/CR -> LF) so that a
// checkout on a different platform does not itself register as drift.
func Sum(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("planhash: read %s: %w", path, err)
	}
	return SumBytes(raw), nil
}

// SumBytes hashes already-loaded plan content using the same
// canonicalisation as Sum.
func SumBytes(raw []byte) string {
	canon := Canonicalize(raw)
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:])
}

// Canonicalize normalises line endings to LF and strips a leading BOM.
func Canonicalize(raw []byte) []byte {
	s := string(raw)
	s = strings.TrimPrefix(s, "\xef\xbb\xbf")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return []byte(s)
}

// Short returns the 8-character display prefix of a full hex digest, used
// whenever a drift error needs to show both hashes without dumping the
// whole digest.
func Short(digest string) string {
	if len(digest) <= 8 {
		return digest
	}
	return digest[:8]
}

// NowUTC returns the current time truncated to whole seconds in UTC, the
// resolution every stored timestamp uses.
func NowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// FormatISO8601 renders t as "YYYY-MM-DDTHH:MM:SSZ".
func FormatISO8601(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// ParseISO8601 parses the format produced by FormatISO8601.
func ParseISO8601(s string) (time.Time, error) {
	return time.Parse("2006-01-02T15:04:05Z", s)
}

// FormatCompact renders t as the compact UTC form used in archive and
// worktree/branch names: "YYYYMMDD-HHMMSS".
func FormatCompact(t time.Time) string {
	return t.UTC().Format("20060102-150405")
}

// FormatArchive renders t as the archive-file timestamp form:
// "YYYY-MM-DD-HHMMSS".
func FormatArchive(t time.Time) string {
	return t.UTC().Format("2006-01-02-150405")
}
