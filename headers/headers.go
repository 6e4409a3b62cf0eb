// Package headers parses raw HTTP response header lines into a
// case-insensitive lookup map.
package headers

import "strings"

// Parse converts raw response header lines into a map keyed by the
// lower-cased header name. When the same name appears more than once,
// the last occurrence wins. Lines that don't have the "Name: value"
// shape (the status line, stray continuation text) are returned in
// arrival order as the second value. A single trailing CRLF or LF is
// stripped from each line before matching.
func Parse(lines []string) (map[string]string, []string) {
	hdr := make(map[string]string, len(lines))
	var extra []string

	for _, line := range lines {
		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")

		if name, value, ok := split(line); ok {
			hdr[strings.ToLower(name)] = value
			continue
		}

		if line != "" {
			extra = append(extra, line)
		}
	}

	return hdr, extra
}

// split breaks "Name: value" into its parts. The name must be non-empty
// and separated from the value by a colon and a single space.
func split(line string) (name, value string, ok bool) {
	i := strings.Index(line, ": ")
	if i <= 0 {
		return "", "", false
	}

	return line[:i], line[i+2:], true
}
