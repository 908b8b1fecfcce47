package reply

import (
	"regexp"
	"strings"
)

// linkPattern matches markdown image links (![alt](target)) and plain links
// ([label](target)). Group 1 is the optional bang, group 2 the target.
var linkPattern = regexp.MustCompile(`(!?)\[[^\]]*\]\(([^)\s]+)[^)]*\)`)

// ParseMarkdownText splits an answer into text and asset parts in document
// order. Image links become PartImage, other links PartFile, and the text
// between them PartText. Text with no links yields a single text part.
func ParseMarkdownText(text string) []Part {
	matches := linkPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []Part{{Type: PartText, Content: trimmed}}
	}

	parts := make([]Part, 0, len(matches)*2+1)
	cursor := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if segment := strings.TrimSpace(text[cursor:start]); segment != "" {
			parts = append(parts, Part{Type: PartText, Content: segment})
		}
		target := text[m[4]:m[5]]
		kind := PartFile
		if text[m[2]:m[3]] == "!" {
			kind = PartImage
		}
		parts = append(parts, Part{Type: kind, Content: target})
		cursor = end
	}
	if segment := strings.TrimSpace(text[cursor:]); segment != "" {
		parts = append(parts, Part{Type: PartText, Content: segment})
	}
	return parts
}

// imageURLPattern matches the plain-text mode inline marker
// image_url=<http(s) url>.
var imageURLPattern = regexp.MustCompile(`[ \t]?image_url=(https?://\S+)`)

// ExtractImageURLs strips every image_url=<url> marker from the answer and
// returns the trimmed remainder plus the URLs in order of appearance.
func ExtractImageURLs(answer string) (string, []string) {
	matches := imageURLPattern.FindAllStringSubmatch(answer, -1)
	if len(matches) == 0 {
		return strings.TrimSpace(answer), nil
	}
	urls := make([]string, 0, len(matches))
	for _, m := range matches {
		urls = append(urls, m[1])
		answer = strings.Replace(answer, m[0], "", 1)
	}
	return strings.TrimSpace(answer), urls
}
