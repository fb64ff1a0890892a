package ads

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strconv"
	"strings"

	"github.com/netpulse/webclient/internal/model"
	"github.com/netpulse/webclient/internal/util"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Slot is a named placement region on a page.
type Slot struct {
	Position string
	Class    string
	// Fallback is shown when no active creative is bound to Position.
	Fallback string
}

const (
	headerFallback = `<div class="border-b border-gray-100 bg-gray-50/50"><div class="mx-auto max-w-4xl px-4 py-3 sm:px-6 lg:px-8"><div class="flex items-center justify-center rounded-xl border border-dashed border-gray-200 bg-white px-4 py-6 text-center"><div><p class="text-[10px] font-medium uppercase tracking-wider text-gray-400">Advertisement</p><div class="mt-1 text-xs text-gray-300">Banner Ad - 728×90</div></div></div></div></div>`

	inArticleFallback = `<div class="my-8 rounded-xl border border-dashed border-gray-200 bg-gray-50/50 px-4 py-8 text-center"><p class="text-[10px] font-medium uppercase tracking-wider text-gray-400">Advertisement</p><div class="mt-1 text-xs text-gray-300">In-Article Ad - Responsive</div></div>`

	sidebarFallback = `<div class="rounded-xl border border-dashed border-gray-200 bg-gray-50/50 p-4 text-center"><p class="text-[10px] font-medium uppercase tracking-wider text-gray-400">Advertisement</p><div class="flex aspect-300/250 items-center justify-center rounded-lg bg-linear-to-br from-gray-100 to-gray-50"><span class="text-xs text-gray-300">300 × 250</span></div></div>`

	footerFallback = `<div class="mx-auto max-w-4xl"><div class="rounded-xl border border-dashed border-gray-200 bg-gray-50/50 px-4 py-6 text-center"><p class="text-[10px] font-medium uppercase tracking-wider text-gray-400">Advertisement</p><div class="mt-1 text-xs text-gray-300">728 × 90 - Bottom Banner</div></div></div>`
)

func HeaderSlot() Slot {
	return Slot{Position: "header", Fallback: headerFallback}
}

// InArticleSlot is the index-th slot inside an article body, counting from 1.
func InArticleSlot(index int) Slot {
	if index < 1 {
		index = 1
	}
	return Slot{Position: "in_article_" + strconv.Itoa(index), Fallback: inArticleFallback}
}

// SidebarSlot is "sidebar" for the first slot and "sidebar_N" after that.
func SidebarSlot(index int) Slot {
	position := "sidebar"
	if index > 1 {
		position += "_" + strconv.Itoa(index)
	}
	return Slot{Position: position, Fallback: sidebarFallback}
}

func FooterSlot() Slot {
	return Slot{Position: "footer", Fallback: footerFallback}
}

// SlotForPosition maps a position name back to its slot, so fallbacks apply
// to positions requested by name. Unknown positions have no fallback.
func SlotForPosition(position string) Slot {
	switch {
	case position == "header":
		return HeaderSlot()
	case position == "footer":
		return FooterSlot()
	case position == "sidebar":
		return SidebarSlot(1)
	case strings.HasPrefix(position, "sidebar_"):
		if n, err := strconv.Atoi(strings.TrimPrefix(position, "sidebar_")); err == nil && n > 1 {
			return SidebarSlot(n)
		}
	case strings.HasPrefix(position, "in_article_"):
		if n, err := strconv.Atoi(strings.TrimPrefix(position, "in_article_")); err == nil && n >= 1 {
			return InArticleSlot(n)
		}
	}
	return Slot{Position: position}
}

// Script is a script element recreated by the activation pass.
type Script struct {
	Attrs []html.Attribute
	Text  string
}

func (s Script) Attr(name string) (string, bool) {
	for _, a := range s.Attrs {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// ScriptHost executes scripts that were inserted into a page. Inserting
// markup as inert HTML never runs its scripts; the host is told about each
// freshly created script so it can run it.
type ScriptHost interface {
	Execute(script Script) error
}

type ScriptHostFunc func(script Script) error

func (f ScriptHostFunc) Execute(script Script) error {
	return f(script)
}

// ActivateScripts parses an ad code fragment and replaces every script
// element with a newly constructed one carrying the same attributes, in the
// same order, and the same text. It returns the re-serialized markup and the
// new scripts in document order.
func ActivateScripts(code string) (string, []Script, error) {
	parent := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(code), parent)
	if err != nil {
		return "", nil, fmt.Errorf("parse ad code: %w", err)
	}

	var scripts []Script
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			if c.Type == html.ElementNode && c.DataAtom == atom.Script {
				fresh := recreateScript(c)
				n.InsertBefore(fresh, c)
				n.RemoveChild(c)
				scripts = append(scripts, scriptOf(fresh))
			} else {
				walk(c)
			}
			c = next
		}
	}

	root := &html.Node{Type: html.DocumentNode}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	walk(root)

	var buf bytes.Buffer
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", nil, fmt.Errorf("render ad code: %w", err)
		}
	}
	return buf.String(), scripts, nil
}

func recreateScript(old *html.Node) *html.Node {
	fresh := &html.Node{
		Type:      html.ElementNode,
		Data:      old.Data,
		DataAtom:  old.DataAtom,
		Namespace: old.Namespace,
		Attr:      append([]html.Attribute(nil), old.Attr...),
	}
	if text := textContent(old); text != "" {
		fresh.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	return fresh
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

func scriptOf(n *html.Node) Script {
	return Script{
		Attrs: append([]html.Attribute(nil), n.Attr...),
		Text:  textContent(n),
	}
}

// SlotResolver looks up the creative bound to a position.
type SlotResolver interface {
	Resolve(ctx context.Context, position string) *model.AdSlotRecord
}

type Rendered struct {
	Position string
	Found    bool
	HTML     string
	Scripts  []Script
}

type Renderer struct {
	resolver         SlotResolver
	host             ScriptHost
	logger           *util.Logger
	disableFallbacks bool
}

type RendererOption func(*Renderer)

func WithScriptHost(host ScriptHost) RendererOption {
	return func(r *Renderer) { r.host = host }
}

func WithRendererLogger(logger *util.Logger) RendererOption {
	return func(r *Renderer) { r.logger = logger }
}

// WithoutFallbacks renders empty markup instead of placeholders.
func WithoutFallbacks() RendererOption {
	return func(r *Renderer) { r.disableFallbacks = true }
}

func NewRenderer(resolver SlotResolver, opts ...RendererOption) *Renderer {
	r := &Renderer{
		resolver: resolver,
		logger:   util.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render resolves the slot and returns its markup. A slot without an
// active creative renders its fallback. Script execution failures are
// logged and never fail the render.
func (r *Renderer) Render(ctx context.Context, slot Slot) (Rendered, error) {
	out := Rendered{Position: slot.Position}

	record := r.resolver.Resolve(ctx, slot.Position)
	if record == nil || record.Code == "" {
		out.HTML = r.fallback(slot)
		return out, nil
	}

	markup, scripts, err := ActivateScripts(record.Code)
	if err != nil {
		r.logger.Warnw("Ad code rejected", "position", slot.Position, "id", record.ID, "error", err)
		out.HTML = r.fallback(slot)
		return out, err
	}

	class := strings.TrimSpace("ad-slot ad-slot-" + slot.Position + " " + slot.Class)
	out.Found = true
	out.HTML = `<div class="` + template.HTMLEscapeString(class) + `"><div>` + markup + `</div></div>`
	out.Scripts = scripts

	if r.host != nil {
		for _, script := range scripts {
			if err := r.host.Execute(script); err != nil {
				r.logger.Warnw("Ad script failed", "position", slot.Position, "id", record.ID, "error", err)
			}
		}
	}
	return out, nil
}

func (r *Renderer) fallback(slot Slot) string {
	if r.disableFallbacks {
		return ""
	}
	return slot.Fallback
}
