// Package quiz detects interactive quiz documents embedded in model output.
// The model is instructed to wrap each quiz in a fenced ```html-quiz block
// holding a self-contained HTML document; the surface renders those blocks
// inline instead of as code.
package quiz

import "strings"

const (
	openFence  = "```html-quiz"
	closeFence = "```"
)

// Extract returns the inner HTML of every html-quiz block in content, in
// order. An unterminated block is ignored, since it usually means the stream
// was cut off mid-quiz.
func Extract(content string) []string {
	var quizzes []string

	rest := content
	for {
		start := strings.Index(rest, openFence)
		if start < 0 {
			break
		}
		rest = rest[start+len(openFence):]

		// Fence label must end the line.
		nl := strings.IndexByte(rest, '\n')
		if nl < 0 {
			break
		}
		if strings.TrimSpace(rest[:nl]) != "" {
			continue
		}
		rest = rest[nl+1:]

		end := strings.Index(rest, closeFence)
		if end < 0 {
			break
		}

		body := strings.TrimSpace(rest[:end])
		if body != "" {
			quizzes = append(quizzes, body)
		}
		rest = rest[end+len(closeFence):]
	}

	return quizzes
}
