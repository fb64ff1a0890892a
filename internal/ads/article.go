package ads

import (
	"context"
	"regexp"
	"strings"
)

const DefaultArticleAdInterval = 4

var paragraphEnd = regexp.MustCompile(`(?i)</p>`)

// ArticlePart is a run of article paragraphs. AdIndex is the in-article slot
// that follows the run, or 0 when none does.
type ArticlePart struct {
	HTML    string
	AdIndex int
}

// SplitArticle cuts article HTML into runs of interval paragraphs. A slot
// follows a run only when at least two paragraphs remain after it, so an
// article never ends on an ad. Slot indexes count from 1.
func SplitArticle(body string, interval int) []ArticlePart {
	if interval <= 0 {
		interval = DefaultArticleAdInterval
	}

	var paragraphs []string
	last := 0
	for _, loc := range paragraphEnd.FindAllStringIndex(body, -1) {
		if strings.TrimSpace(body[last:loc[0]]) != "" {
			paragraphs = append(paragraphs, body[last:loc[1]])
		}
		last = loc[1]
	}
	if tail := body[last:]; strings.TrimSpace(tail) != "" {
		paragraphs = append(paragraphs, tail)
	}

	var parts []ArticlePart
	var current strings.Builder
	count := 0
	adIndex := 1
	for i, p := range paragraphs {
		current.WriteString(p)
		count++
		if count >= interval && i < len(paragraphs)-2 {
			parts = append(parts, ArticlePart{HTML: current.String(), AdIndex: adIndex})
			adIndex++
			current.Reset()
			count = 0
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		parts = append(parts, ArticlePart{HTML: current.String()})
	}
	return parts
}

// RenderArticle renders an article body with in-article slots inserted
// every interval paragraphs. A slot that fails to render degrades to its
// fallback; the article itself always renders.
func (r *Renderer) RenderArticle(ctx context.Context, body string, interval int) string {
	var sb strings.Builder
	sb.WriteString("<div>")
	for _, part := range SplitArticle(body, interval) {
		sb.WriteString(`<div><div class="prose prose-lg mx-auto max-w-none">`)
		sb.WriteString(part.HTML)
		sb.WriteString(`</div>`)
		if part.AdIndex > 0 {
			slot := InArticleSlot(part.AdIndex)
			slot.Class = "my-8"
			rendered, err := r.Render(ctx, slot)
			if err != nil {
				r.logger.Debugw("In-article slot degraded", "position", slot.Position, "error", err)
			}
			sb.WriteString(rendered.HTML)
		}
		sb.WriteString(`</div>`)
	}
	sb.WriteString("</div>")
	return sb.String()
}
