package channels

import (
	"regexp"
	"strings"
)

var (
	imageTagRe = regexp.MustCompile(`(?i)\[IMAGE:\s*(\S+?)\s*\]`)
	videoTagRe = regexp.MustCompile(`(?i)\[VIDEO:\s*(\S+?)\s*\]`)
)

// ParseMediaTags extracts [IMAGE: url] and [VIDEO: url] markers from a reply
// produced by the agent. It returns the text with all markers stripped plus
// the ordered URL lists, ready for channel-native attachment calls.
func ParseMediaTags(text string) (clean string, imageURLs []string, videoURLs []string) {
	for _, m := range imageTagRe.FindAllStringSubmatch(text, -1) {
		imageURLs = append(imageURLs, m[1])
	}
	for _, m := range videoTagRe.FindAllStringSubmatch(text, -1) {
		videoURLs = append(videoURLs, m[1])
	}

	// Strip line by line so a line that held only markers disappears
	// instead of leaving a blank behind. Blank lines the author wrote
	// stay untouched.
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		stripped := imageTagRe.ReplaceAllString(l, "")
		stripped = videoTagRe.ReplaceAllString(stripped, "")
		if stripped != l && strings.TrimSpace(stripped) == "" {
			continue
		}
		out = append(out, strings.TrimRight(stripped, " \t"))
	}
	clean = strings.TrimSpace(strings.Join(out, "\n"))

	return clean, imageURLs, videoURLs
}
