package voice

import (
	"regexp"
	"strings"
)

var (
	fencedCodeRe  = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe  = regexp.MustCompile("`([^`]*)`")
	imageRe       = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	linkRe        = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	headingRe     = regexp.MustCompile(`(?m)^#{1,6}\s*`)
	blockquoteRe  = regexp.MustCompile(`(?m)^>\s?`)
	listMarkerRe  = regexp.MustCompile(`(?m)^\s*(?:[-*+]|\d+\.)\s+`)
	emphasisRe    = regexp.MustCompile(`(\*{1,3}|_{1,3}|~~)(\S(?:.*?\S)?)(\*{1,3}|_{1,3}|~~)`)
	multiSpaceRe  = regexp.MustCompile(`[ \t]+`)
	multiNewlines = regexp.MustCompile(`\n{2,}`)
)

// SpeakableText strips markdown markup and emoji from assistant content so
// formatting is never vocalized. Fenced code blocks are dropped entirely;
// reading code aloud is worse than skipping it.
func SpeakableText(content string) string {
	s := fencedCodeRe.ReplaceAllString(content, " ")
	s = imageRe.ReplaceAllString(s, "$1")
	s = linkRe.ReplaceAllString(s, "$1")
	s = inlineCodeRe.ReplaceAllString(s, "$1")
	s = headingRe.ReplaceAllString(s, "")
	s = blockquoteRe.ReplaceAllString(s, "")
	s = listMarkerRe.ReplaceAllString(s, "")
	for i := 0; i < 3; i++ {
		s = emphasisRe.ReplaceAllString(s, "$2")
	}
	s = stripEmoji(s)
	s = multiSpaceRe.ReplaceAllString(s, " ")
	s = multiNewlines.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}

func stripEmoji(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isEmoji(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF: // pictographs, emoticons, symbols
		return true
	case r >= 0x1F1E6 && r <= 0x1F1FF: // regional indicators
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols and dingbats
		return true
	case r == 0xFE0F || r == 0x200D: // variation selector, zero-width joiner
		return true
	case r >= 0x2190 && r <= 0x21FF: // arrows
		return true
	}
	return false
}
