package engine

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// videoIDPattern matches the stable 11-character YouTube content id
var videoIDPattern = regexp.MustCompile(`^[0-9A-Za-z_-]{11}$`)

// Path segments that carry the video id in their following segment
var idPathPrefixes = []string{"shorts", "embed", "live", "v"}

// ExtractVideoID derives the stable content id from a reference. Both the
// existing-output locator and the output filename convention depend on this
// rule, so a reference and its download always agree on the id.
func ExtractVideoID(reference string) (string, error) {
	ref := strings.TrimSpace(reference)
	if videoIDPattern.MatchString(ref) {
		return ref, nil
	}

	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse reference: %w", err)
	}

	if v := u.Query().Get("v"); videoIDPattern.MatchString(v) {
		return v, nil
	}

	host := strings.TrimPrefix(u.Host, "www.")
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")

	if host == "youtu.be" && len(segments) > 0 && videoIDPattern.MatchString(segments[0]) {
		return segments[0], nil
	}

	if len(segments) >= 2 {
		for _, prefix := range idPathPrefixes {
			if segments[0] == prefix && videoIDPattern.MatchString(segments[1]) {
				return segments[1], nil
			}
		}
	}

	return "", fmt.Errorf("no video id in reference: %s", reference)
}
