package library

import (
	"strconv"
	"strings"
)

// External ids have the form <prefix>://<subtrack-index>/<canonical-path>.
// The path component may itself contain '/' characters; parsing splits on
// the first '/' after the index.

// CreateExternalID builds an external id for subtrack index n of the
// container at path.
func CreateExternalID(prefix, path string, n int) string {
	return prefix + "://" + strconv.Itoa(n) + "/" + path
}

// ParseExternalID splits an external id created with prefix back into its
// path and subtrack index. Returns ok=false when the id does not carry
// the prefix or is malformed.
func ParseExternalID(prefix, externalID string) (path string, n int, ok bool) {
	marker := prefix + "://"
	if !strings.HasPrefix(externalID, marker) {
		return "", 0, false
	}
	trimmed := externalID[len(marker):]
	slash := strings.Index(trimmed, "/")
	if slash < 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(trimmed[:slash])
	if err != nil {
		return "", 0, false
	}
	return trimmed[slash+1:], n, true
}
