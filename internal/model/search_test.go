package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSuggestions(t *testing.T) {
	items, err := DecodeSuggestions([]byte(`[{"title":"DNS over HTTPS","slug":"doh","category":"Protocols"},{"title":"DNSSEC","slug":"dnssec"}]`))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "doh", items[0].Slug)
	assert.Equal(t, "Protocols", items[0].Category)
	assert.Empty(t, items[1].Category)

	for _, body := range []string{"", "null", "  null\n", "[]"} {
		items, err := DecodeSuggestions([]byte(body))
		require.NoError(t, err, body)
		assert.NotNil(t, items, body)
		assert.Empty(t, items, body)
	}

	items, err = DecodeSuggestions([]byte(`{"items":[]}`))
	require.Error(t, err)
	assert.NotNil(t, items)
}

func TestDecodeSearchResults_BothShapes(t *testing.T) {
	wrapped := `{"items":[{"id":"1","title":"BGP","slug":"bgp","excerpt":"routing","category_name":"Net","author_name":"Ana"}]}`
	bare := `[{"id":"1","title":"BGP","slug":"bgp","excerpt":"routing","category_name":"Net","author_name":"Ana"}]`

	fromWrapped, err := DecodeSearchResults([]byte(wrapped))
	require.NoError(t, err)
	fromBare, err := DecodeSearchResults([]byte(bare))
	require.NoError(t, err)

	assert.Equal(t, fromWrapped, fromBare)
	require.Len(t, fromBare, 1)
	assert.Equal(t, "Ana", fromBare[0].AuthorName)
	assert.Equal(t, "Net", fromBare[0].CategoryName)
}

func TestDecodeSearchResults_MissingItems(t *testing.T) {
	for _, body := range []string{"null", "{}", `{"items":null}`, `{"total":0}`} {
		items, err := DecodeSearchResults([]byte(body))
		require.NoError(t, err, body)
		assert.NotNil(t, items, body)
		assert.Empty(t, items, body)
	}

	_, err := DecodeSearchResults([]byte(`"oops"`))
	require.Error(t, err)
}

func TestSessionState_ActiveSlug(t *testing.T) {
	state := SessionState{
		Mode:        ModeSuggesting,
		Suggestions: []SuggestionItem{{Slug: "a"}, {Slug: "b"}},
		Results:     []SearchResultItem{{Slug: "x"}},
		ActiveIndex: 1,
	}

	slug, ok := state.ActiveSlug()
	require.True(t, ok)
	assert.Equal(t, "b", slug)
	assert.Equal(t, 2, state.ActiveLength())

	state.Mode = ModeResults
	_, ok = state.ActiveSlug()
	assert.False(t, ok)
	assert.Equal(t, 1, state.ActiveLength())

	state.ActiveIndex = 0
	slug, ok = state.ActiveSlug()
	require.True(t, ok)
	assert.Equal(t, "x", slug)

	assert.Equal(t, "/posts/x", PostRoute(slug))
}

func TestDecodeActiveAds(t *testing.T) {
	records, err := DecodeActiveAds([]byte(`{"items":[{"id":"1","name":"H","code":"<b>x</b>","is_active":true,"position":"header"}]}`))
	require.NoError(t, err)
	require.Len(t, records, 1)

	header := FindByPosition(records, "header")
	require.NotNil(t, header)
	assert.Equal(t, "<b>x</b>", header.Code)
	assert.True(t, header.IsActive)
	assert.Nil(t, FindByPosition(records, "sidebar"))

	for _, body := range []string{"", "null", "{}", `{"items":null}`} {
		records, err := DecodeActiveAds([]byte(body))
		require.NoError(t, err, body)
		assert.NotNil(t, records, body)
		assert.Empty(t, records, body)
	}
}
