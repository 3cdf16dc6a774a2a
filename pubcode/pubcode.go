// Package pubcode derives the stable identifiers used throughout the
// pipeline: publication codes, issue codes and item codes.
//
// Source metadata comes from multiple digitisation vendors and publication
// ids are not always well formed. Rather than rejecting such inputs, the
// resolver walks an ordered cascade of fallbacks: the explicit id, a code
// recovered from path conventions, and a small curated exception table. The
// cascade order is load bearing; downstream fixtures depend on it.
package pubcode

import (
	"fmt"
	"regexp"
	"strings"
)

// Length is the fixed width of a publication code.
const Length = 7

var pattern = regexp.MustCompile(`\d{7}`)

// fallbacks maps known malformed vendor ids to the code used when no code
// can be recovered from the input sub path.
var fallbacks = map[string]string{
	"NCBL1001": "0000499",
	"NCBL1002": "0000499",
	"NCBL1023": "0000152",
	"NCBL1024": "0000171",
	"NCBL1029": "0000165",
	"NCBL1034": "0000160",
	"NCBL1035": "0000185",
}

// FromPath recovers a publication code from an input sub path. Zero or
// multiple candidates is a hard failure, uniformly, at every call site.
func FromPath(inputSubPath string) (string, error) {
	g := pattern.FindAllString(inputSubPath, -1)
	if len(g) != 1 {
		return "", fmt.Errorf("publication code lookup failed: %d candidates in %q", len(g), inputSubPath)
	}
	return g[0], nil
}

// fromPathOr recovers a code from the input sub path, falling back to a
// hard-coded code when the path yields no unique match.
func fromPathOr(inputSubPath, fallback string) string {
	code, err := FromPath(inputSubPath)
	if err != nil {
		return fallback
	}
	return code
}

// Resolve derives a validated publication code from the raw publication id
// and the document's input sub path.
func Resolve(id, inputSubPath string) (string, error) {
	code := id
	if len(code) != Length {
		switch {
		case fallbacks[code] != "":
			code = fromPathOr(inputSubPath, fallbacks[code])
		case len(code) == 4 || strings.Contains(code, "NCBL"):
			c, err := FromPath(inputSubPath)
			if err != nil {
				return "", err
			}
			code = c
		}
	}
	if code == "" {
		c, err := FromPath(inputSubPath)
		if err != nil {
			return "", fmt.Errorf("publication code backup failed: %w", err)
		}
		code = c
	}
	if len(code) != Length {
		code = Pad(code)
	}
	if err := Validate(code); err != nil {
		return "", err
	}
	return code, nil
}

// Pad left pads a code with zeros to the fixed width.
func Pad(code string) string {
	if len(code) >= Length {
		return code
	}
	return strings.Repeat("0", Length-len(code)) + code
}

// Validate checks the terminal invariant: non-empty and exactly seven
// characters.
func Validate(code string) error {
	if code == "" {
		return fmt.Errorf("publication code is non-existent")
	}
	if len(code) != Length {
		return fmt.Errorf("publication code has wrong length: %d (%s)", len(code), code)
	}
	return nil
}

// IssueCode builds an issue code from a publication code and an issue date.
func IssueCode(publicationCode, issueDate string) string {
	return strings.ReplaceAll(publicationCode, "-", "") + "-" + strings.ReplaceAll(issueDate, "-", "")
}

// ItemCode builds an item code from an issue code and the raw item id.
func ItemCode(issueCode, itemID string) string {
	return issueCode + "-" + itemID
}

// BucketDirs returns the two directory levels a publication code is filed
// under in the cache. Codes bucket by their significant digits: the zero
// padding is stripped and the remainder, guarded with a leading zero, names
// the two levels. "0003548" files under 0/3.
func BucketDirs(code string) []string {
	trimmed := strings.TrimLeft(code, "0")
	pair := ("0" + trimmed + "0")[:2]
	return []string{pair[:1], pair[1:]}
}
