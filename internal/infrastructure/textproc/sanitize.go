package textproc

import (
	"regexp"
	"strings"
)

var (
	fencedCodeRe    = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe    = regexp.MustCompile("`[^`\n]*`")
	imageRe         = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	linkRe          = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	htmlTagRe       = regexp.MustCompile(`<[^>]*>`)
	rawURLRe        = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)
	tableSepRe      = regexp.MustCompile(`(?m)^[ \t]*\|?[ \t]*:?-{3,}:?[ \t]*(?:\|[ \t]*:?-{3,}:?[ \t]*)*\|?[ \t]*$`)
	horizontalRule  = regexp.MustCompile(`(?m)^[ \t]*(?:(?:-[ \t]*){3,}|(?:\*[ \t]*){3,}|(?:_[ \t]*){3,})$`)
	headingRe       = regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]+`)
	emphasisRe      = regexp.MustCompile(`\*\*|__`)
	inlineSpaceRe   = regexp.MustCompile(`[ \t\f\v]+`)
	spaceNewlineRe  = regexp.MustCompile(` *\n *`)
	blankLineRunsRe = regexp.MustCompile(`\n{3,}`)
)

var entityDecoder = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
)

// Sanitize strips markdown, HTML and URLs from a script so it can be read
// aloud. &amp; is decoded last so that escaped entities stay escaped.
func Sanitize(text string) string {
	out := strings.ReplaceAll(text, "\r\n", "\n")
	out = fencedCodeRe.ReplaceAllString(out, " ")
	out = inlineCodeRe.ReplaceAllString(out, " ")
	out = strings.ReplaceAll(out, "`", "")
	out = imageRe.ReplaceAllString(out, " ")
	out = linkRe.ReplaceAllString(out, "$1")
	out = entityDecoder.Replace(out)
	out = htmlTagRe.ReplaceAllString(out, " ")
	out = rawURLRe.ReplaceAllString(out, " ")
	out = tableSepRe.ReplaceAllString(out, "")
	out = strings.ReplaceAll(out, "|", " ")
	out = horizontalRule.ReplaceAllString(out, "")
	out = headingRe.ReplaceAllString(out, "")
	out = emphasisRe.ReplaceAllString(out, "")
	out = strings.ReplaceAll(out, "&amp;", "&")
	out = inlineSpaceRe.ReplaceAllString(out, " ")
	out = spaceNewlineRe.ReplaceAllString(out, "\n")
	out = blankLineRunsRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
