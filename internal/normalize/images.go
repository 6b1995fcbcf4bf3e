package normalize

import (
	"net/url"
	"regexp"
	"strings"
)

// ImageProxyPath is where resolved image references point.
const ImageProxyPath = "/images"

const imagePlaceholder = "%EXAM_IMAGE_PATH%"

var imageRefPattern = regexp.MustCompile(`(?i)%EXAM_IMAGE_PATH%[\\/]([^\s<>"']+\.(?:jpg|jpeg|png|gif|webp))`)

// ResolveImages rewrites image placeholders into proxy references and escapes
// stray percent signs. Applying it to its own output changes nothing.
func ResolveImages(text string) string {
	if text == "" {
		return text
	}
	out := imageRefPattern.ReplaceAllStringFunc(text, func(match string) string {
		sub := imageRefPattern.FindStringSubmatch(match)
		return ImageProxyPath + "?filename=" + encodeComponent(sub[1])
	})
	out = strings.ReplaceAll(out, imagePlaceholder, ImageProxyPath)
	return escapeStrayPercent(out)
}

// HasImage reports whether raw text references an image before resolution.
func HasImage(raw string) bool {
	return strings.Contains(raw, "<img") || strings.Contains(raw, "EXAM_IMAGE_PATH")
}

func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// escapeStrayPercent turns every '%' that does not start a %XX triplet into %25.
func escapeStrayPercent(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			b.WriteByte(c)
			continue
		}
		b.WriteString("%25")
	}
	return b.String()
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
