package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SuggestionItem is a lightweight search-ahead hit from /search/suggest.
type SuggestionItem struct {
	Title    string `json:"title"`
	Slug     string `json:"slug"`
	Category string `json:"category,omitempty"`
}

// SearchResultItem is a full-search hit from /search.
type SearchResultItem struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Slug         string `json:"slug"`
	Excerpt      string `json:"excerpt"`
	CategoryName string `json:"category_name,omitempty"`
	AuthorName   string `json:"author_name,omitempty"`
	PublishedAt  string `json:"published_at,omitempty"`
	CoverURL     string `json:"cover_url,omitempty"`
}

type Mode string

const (
	ModeIdle       Mode = "idle"
	ModeSuggesting Mode = "suggesting"
	ModeResults    Mode = "results"
)

// SessionState is a snapshot of a search session. Only the list selected by
// Mode is shown; ActiveIndex is -1 or a valid index into that list.
type SessionState struct {
	Query       string             `json:"query"`
	Mode        Mode               `json:"mode"`
	Suggestions []SuggestionItem   `json:"suggestions"`
	Results     []SearchResultItem `json:"results"`
	ActiveIndex int                `json:"active_index"`
	Loading     bool               `json:"loading"`
}

// ActiveLength is the length of the list that Mode puts on screen.
func (s SessionState) ActiveLength() int {
	if s.Mode == ModeResults {
		return len(s.Results)
	}
	return len(s.Suggestions)
}

// ActiveSlug returns the slug of the highlighted item, if any.
func (s SessionState) ActiveSlug() (string, bool) {
	if s.ActiveIndex < 0 || s.ActiveIndex >= s.ActiveLength() {
		return "", false
	}
	if s.Mode == ModeResults {
		return s.Results[s.ActiveIndex].Slug, true
	}
	return s.Suggestions[s.ActiveIndex].Slug, true
}

func PostRoute(slug string) string {
	return "/posts/" + slug
}

func isNull(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// DecodeSuggestions accepts a bare JSON array. null or an empty body yields
// an empty slice.
func DecodeSuggestions(body []byte) ([]SuggestionItem, error) {
	items := []SuggestionItem{}
	if isNull(body) {
		return items, nil
	}
	if err := json.Unmarshal(body, &items); err != nil {
		return []SuggestionItem{}, fmt.Errorf("decode suggestions: %w", err)
	}
	if items == nil {
		items = []SuggestionItem{}
	}
	return items, nil
}

// DecodeSearchResults accepts either {"items":[...]} or a bare array.
func DecodeSearchResults(body []byte) ([]SearchResultItem, error) {
	items := []SearchResultItem{}
	if isNull(body) {
		return items, nil
	}

	trimmed := bytes.TrimSpace(body)
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return []SearchResultItem{}, fmt.Errorf("decode search results: %w", err)
		}
	} else {
		var envelope struct {
			Items []SearchResultItem `json:"items"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return []SearchResultItem{}, fmt.Errorf("decode search results: %w", err)
		}
		items = envelope.Items
	}

	if items == nil {
		items = []SearchResultItem{}
	}
	return items, nil
}
