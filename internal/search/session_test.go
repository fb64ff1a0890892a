package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/netpulse/webclient/internal/model"
	"github.com/netpulse/webclient/internal/schedule"
	"github.com/netpulse/webclient/internal/util"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backendCall struct {
	kind  string
	query string
	limit int
}

// fakeBackend answers from per-query tables. A query listed in gates blocks
// until its channel is closed.
type fakeBackend struct {
	mu          sync.Mutex
	calls       []backendCall
	suggestions map[string][]model.SuggestionItem
	results     func(call int, query string) []model.SearchResultItem
	gates       map[string]chan struct{}
	err         error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		suggestions: map[string][]model.SuggestionItem{},
		gates:       map[string]chan struct{}{},
	}
}

func (b *fakeBackend) gate(key string) chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan struct{})
	b.gates[key] = ch
	return ch
}

func (b *fakeBackend) record(kind, query string, limit int) (int, chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, backendCall{kind: kind, query: query, limit: limit})
	n := 0
	for _, c := range b.calls {
		if c.kind == kind {
			n++
		}
	}
	return n, b.gates[kind+":"+query+":"+itoa(n)]
}

func (b *fakeBackend) Suggest(ctx context.Context, query string, limit int) ([]model.SuggestionItem, error) {
	_, gate := b.record("suggest", query, limit)
	if gate != nil {
		<-gate
	}
	if b.err != nil {
		return []model.SuggestionItem{}, b.err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.suggestions[query], nil
}

func (b *fakeBackend) Search(ctx context.Context, query string, limit int) ([]model.SearchResultItem, error) {
	n, gate := b.record("search", query, limit)
	if gate != nil {
		<-gate
	}
	if b.err != nil {
		return []model.SearchResultItem{}, b.err
	}
	if b.results == nil {
		return []model.SearchResultItem{}, nil
	}
	return b.results(n, query), nil
}

func (b *fakeBackend) Calls(kind string) []backendCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []backendCall
	for _, c := range b.calls {
		if c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func itoa(n int) string {
	return string(rune('0' + n))
}

type recordingNavigator struct {
	mu     sync.Mutex
	routes []string
}

func (n *recordingNavigator) Navigate(route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, route)
}

func (n *recordingNavigator) Routes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.routes...)
}

func suggestions(slugs ...string) []model.SuggestionItem {
	items := make([]model.SuggestionItem, 0, len(slugs))
	for _, slug := range slugs {
		items = append(items, model.SuggestionItem{Title: slug, Slug: slug})
	}
	return items
}

func results(slugs ...string) []model.SearchResultItem {
	items := make([]model.SearchResultItem, 0, len(slugs))
	for _, slug := range slugs {
		items = append(items, model.SearchResultItem{ID: slug, Title: slug, Slug: slug})
	}
	return items
}

func newTestSession(t *testing.T, backend *fakeBackend, opts ...Option) (*Session, *schedule.Manual, *recordingNavigator) {
	t.Helper()
	clock := schedule.NewManual()
	nav := &recordingNavigator{}
	opts = append([]Option{WithScheduler(clock)}, opts...)
	s := NewSession(backend, nav, opts...)
	t.Cleanup(s.Close)
	return s, clock, nav
}

// typeQuery fires SetQuery for each prefix of text, advancing the clock by
// step between keystrokes.
func typeQuery(s *Session, clock *schedule.Manual, text string, step time.Duration) {
	for i := 1; i <= len(text); i++ {
		s.SetQuery(text[:i])
		if i < len(text) {
			clock.Advance(step)
		}
	}
}

func TestSession_InitialState(t *testing.T) {
	s, _, _ := newTestSession(t, newFakeBackend())

	state := s.State()
	assert.Equal(t, "", state.Query)
	assert.Equal(t, model.ModeIdle, state.Mode)
	assert.Equal(t, -1, state.ActiveIndex)
	assert.NotNil(t, state.Suggestions)
	assert.NotNil(t, state.Results)
	assert.False(t, state.Loading)
}

func TestSession_DebounceCollapsesKeystrokes(t *testing.T) {
	backend := newFakeBackend()
	backend.suggestions["dns"] = suggestions("dns-basics", "dns-over-https")
	s, clock, _ := newTestSession(t, backend)

	typeQuery(s, clock, "dns", 50*time.Millisecond)
	assert.True(t, s.Debouncing())
	assert.Empty(t, backend.Calls("suggest"))

	clock.Advance(249 * time.Millisecond)
	assert.Empty(t, backend.Calls("suggest"))

	clock.Advance(time.Millisecond)
	s.Wait()

	calls := backend.Calls("suggest")
	require.Len(t, calls, 1)
	assert.Equal(t, backendCall{kind: "suggest", query: "dns", limit: 6}, calls[0])

	state := s.State()
	assert.Equal(t, model.ModeSuggesting, state.Mode)
	assert.Len(t, state.Suggestions, 2)
	assert.Equal(t, -1, state.ActiveIndex)
	assert.False(t, state.Loading)
	assert.False(t, s.Debouncing())
}

func TestSession_ShortQueryResets(t *testing.T) {
	backend := newFakeBackend()
	backend.suggestions["tc"] = suggestions("tcp")
	s, clock, _ := newTestSession(t, backend)

	s.SetQuery("tc")
	clock.Advance(250 * time.Millisecond)
	s.Wait()
	require.Len(t, s.State().Suggestions, 1)

	s.SetQuery("t")
	state := s.State()
	assert.Equal(t, "t", state.Query)
	assert.Equal(t, model.ModeIdle, state.Mode)
	assert.Empty(t, state.Suggestions)
	assert.False(t, s.Debouncing())

	clock.Advance(time.Second)
	assert.Len(t, backend.Calls("suggest"), 1)
}

func TestSession_StaleSuggestDropped(t *testing.T) {
	backend := newFakeBackend()
	backend.suggestions["alpha"] = suggestions("alpha-post")
	backend.suggestions["beta"] = suggestions("beta-post")
	releaseAlpha := backend.gate("suggest:alpha:1")

	metrics := util.NewMetrics("test")
	s, clock, _ := newTestSession(t, backend, WithMetrics(metrics))

	s.SetQuery("alpha")
	clock.Advance(250 * time.Millisecond)
	assert.True(t, s.State().Loading)

	s.SetQuery("beta")
	clock.Advance(250 * time.Millisecond)

	require.Eventually(t, func() bool {
		return len(s.State().Suggestions) == 1
	}, time.Second, 5*time.Millisecond)

	close(releaseAlpha)
	s.Wait()

	state := s.State()
	assert.Equal(t, "beta", state.Query)
	require.Len(t, state.Suggestions, 1)
	assert.Equal(t, "beta-post", state.Suggestions[0].Slug)
	assert.False(t, state.Loading)

	expected := `
# HELP test_search_stale_responses_total Search responses dropped because a newer request superseded them
# TYPE test_search_stale_responses_total counter
test_search_stale_responses_total{kind="suggest"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(expected), "test_search_stale_responses_total"))
}

func TestSession_StaleSearchSameQueryDropped(t *testing.T) {
	backend := newFakeBackend()
	backend.results = func(call int, query string) []model.SearchResultItem {
		if call == 1 {
			return results("first")
		}
		return results("second")
	}
	releaseFirst := backend.gate("search:bgp:1")
	s, _, _ := newTestSession(t, backend)

	s.SetQuery("bgp")
	s.FullSearch()
	s.FullSearch()

	require.Eventually(t, func() bool {
		return s.State().Mode == model.ModeResults
	}, time.Second, 5*time.Millisecond)

	close(releaseFirst)
	s.Wait()

	state := s.State()
	require.Len(t, state.Results, 1)
	assert.Equal(t, "second", state.Results[0].Slug)
	assert.False(t, state.Loading)
}

func TestSession_FullSearch(t *testing.T) {
	backend := newFakeBackend()
	backend.suggestions["quic"] = suggestions("quic-intro")
	backend.results = func(int, string) []model.SearchResultItem {
		return results("quic-intro", "http3-deep-dive", "udp")
	}
	s, clock, _ := newTestSession(t, backend)

	s.SetQuery("quic")
	clock.Advance(250 * time.Millisecond)
	s.Wait()
	s.HandleKey(KeyDown)
	require.Equal(t, 0, s.State().ActiveIndex)

	s.FullSearch()
	mid := s.State()
	assert.True(t, mid.Loading)
	assert.Empty(t, mid.Suggestions)
	assert.Equal(t, -1, mid.ActiveIndex)

	s.Wait()
	state := s.State()
	assert.Equal(t, model.ModeResults, state.Mode)
	assert.Len(t, state.Results, 3)
	assert.Empty(t, state.Suggestions)
	assert.False(t, state.Loading)

	calls := backend.Calls("search")
	require.Len(t, calls, 1)
	assert.Equal(t, 8, calls[0].limit)
}

func TestSession_WaitAlongsideNewInput(t *testing.T) {
	backend := newFakeBackend()
	gate := backend.gate("search:quic:1")
	s, _, _ := newTestSession(t, backend)

	s.SetQuery("quic")
	s.FullSearch()

	waited := make(chan struct{})
	go func() {
		s.Wait()
		close(waited)
	}()

	for i := 0; i < 20; i++ {
		s.FullSearch()
	}

	isDone := func() bool {
		select {
		case <-waited:
			return true
		default:
			return false
		}
	}
	assert.Never(t, isDone, 50*time.Millisecond, 5*time.Millisecond)

	close(gate)
	assert.Eventually(t, isDone, time.Second, 5*time.Millisecond)
	assert.Len(t, backend.Calls("search"), 21)
	assert.False(t, s.State().Loading)
}

func TestSession_FullSearchCancelsDebounce(t *testing.T) {
	backend := newFakeBackend()
	s, clock, _ := newTestSession(t, backend)

	s.SetQuery("ospf")
	s.FullSearch()
	assert.False(t, s.Debouncing())

	clock.Advance(time.Second)
	s.Wait()
	assert.Empty(t, backend.Calls("suggest"))
	assert.Len(t, backend.Calls("search"), 1)
}

func TestSession_KeyboardWraps(t *testing.T) {
	backend := newFakeBackend()
	backend.suggestions["ip"] = suggestions("a", "b", "c")
	s, clock, _ := newTestSession(t, backend)

	s.SetQuery("ip")
	clock.Advance(250 * time.Millisecond)
	s.Wait()

	var seen []int
	for i := 0; i < 4; i++ {
		s.HandleKey(KeyDown)
		seen = append(seen, s.State().ActiveIndex)
	}
	assert.Equal(t, []int{0, 1, 2, 0}, seen)

	seen = nil
	for i := 0; i < 3; i++ {
		s.HandleKey(KeyUp)
		seen = append(seen, s.State().ActiveIndex)
	}
	assert.Equal(t, []int{2, 1, 0}, seen)
}

func TestSession_KeyUpFromNothingSelectsLast(t *testing.T) {
	backend := newFakeBackend()
	backend.suggestions["ip"] = suggestions("a", "b", "c")
	s, clock, _ := newTestSession(t, backend)

	s.SetQuery("ip")
	clock.Advance(250 * time.Millisecond)
	s.Wait()

	s.HandleKey(KeyUp)
	assert.Equal(t, 2, s.State().ActiveIndex)
}

func TestSession_KeyboardNoopOnEmptyList(t *testing.T) {
	s, _, _ := newTestSession(t, newFakeBackend())

	s.HandleKey(KeyDown)
	s.HandleKey(KeyUp)
	assert.Equal(t, -1, s.State().ActiveIndex)
}

func TestSession_KeyboardOperatesOnResults(t *testing.T) {
	backend := newFakeBackend()
	backend.results = func(int, string) []model.SearchResultItem { return results("r1", "r2") }
	s, _, nav := newTestSession(t, backend)

	s.SetQuery("mpls")
	s.FullSearch()
	s.Wait()

	s.HandleKey(KeyDown)
	s.HandleKey(KeyDown)
	assert.Equal(t, 1, s.State().ActiveIndex)

	s.HandleKey(KeyEnter)
	assert.Equal(t, []string{"/posts/r2"}, nav.Routes())
}

func TestSession_EnterNavigatesToHighlighted(t *testing.T) {
	backend := newFakeBackend()
	backend.suggestions["dns"] = suggestions("dns-basics", "dns-over-https")
	s, clock, nav := newTestSession(t, backend)

	s.SetQuery("dns")
	clock.Advance(250 * time.Millisecond)
	s.Wait()

	s.HandleKey(KeyDown)
	s.HandleKey(KeyDown)
	s.HandleKey(KeyEnter)
	s.Wait()

	assert.Equal(t, []string{"/posts/dns-over-https"}, nav.Routes())
	assert.Empty(t, backend.Calls("search"))

	state := s.State()
	assert.Equal(t, "", state.Query)
	assert.Equal(t, model.ModeIdle, state.Mode)
	assert.Empty(t, state.Suggestions)
}

func TestSession_EnterWithoutHighlightSearches(t *testing.T) {
	backend := newFakeBackend()
	backend.results = func(int, string) []model.SearchResultItem { return results("vlan") }
	s, _, nav := newTestSession(t, backend)

	s.SetQuery("vlan")
	s.HandleKey(KeyEnter)
	s.Wait()

	assert.Empty(t, nav.Routes())
	assert.Len(t, backend.Calls("search"), 1)
	assert.Equal(t, model.ModeResults, s.State().Mode)
}

func TestSession_SubmitIgnoresBlankQuery(t *testing.T) {
	backend := newFakeBackend()
	s, _, _ := newTestSession(t, backend)

	s.SetQuery("   ")
	s.Submit()
	s.Wait()

	assert.Empty(t, backend.Calls("search"))
}

func TestSession_Select(t *testing.T) {
	backend := newFakeBackend()
	backend.suggestions["arp"] = suggestions("arp-cache", "arp-spoofing")
	s, clock, nav := newTestSession(t, backend)

	s.SetQuery("arp")
	clock.Advance(250 * time.Millisecond)
	s.Wait()

	s.Select(5)
	assert.Empty(t, nav.Routes())

	s.Select(1)
	assert.Equal(t, []string{"/posts/arp-spoofing"}, nav.Routes())
	assert.Equal(t, model.ModeIdle, s.State().Mode)
}

func TestSession_EscapeResets(t *testing.T) {
	backend := newFakeBackend()
	backend.suggestions["nat"] = suggestions("nat-types")
	s, clock, _ := newTestSession(t, backend)

	s.SetQuery("nat")
	clock.Advance(250 * time.Millisecond)
	s.Wait()
	s.HandleKey(KeyDown)

	s.HandleKey(KeyEscape)
	state := s.State()
	assert.Equal(t, "", state.Query)
	assert.Equal(t, model.ModeIdle, state.Mode)
	assert.Empty(t, state.Suggestions)
	assert.Equal(t, -1, state.ActiveIndex)
}

func TestSession_EscapeDropsInFlight(t *testing.T) {
	backend := newFakeBackend()
	backend.suggestions["nat"] = suggestions("nat-types")
	release := backend.gate("suggest:nat:1")
	s, clock, _ := newTestSession(t, backend)

	s.SetQuery("nat")
	clock.Advance(250 * time.Millisecond)
	s.HandleKey(KeyEscape)

	close(release)
	s.Wait()

	state := s.State()
	assert.Empty(t, state.Suggestions)
	assert.False(t, state.Loading)
}

func TestSession_PointerDown(t *testing.T) {
	backend := newFakeBackend()
	backend.suggestions["rip"] = suggestions("rip-v2")
	s, clock, _ := newTestSession(t, backend)

	s.SetQuery("rip")
	clock.Advance(250 * time.Millisecond)
	s.Wait()

	s.PointerDown(true)
	assert.Len(t, s.State().Suggestions, 1)

	s.PointerDown(false)
	assert.Empty(t, s.State().Suggestions)
	assert.Equal(t, "", s.State().Query)
}

func TestSession_RouteChangedResets(t *testing.T) {
	backend := newFakeBackend()
	s, _, _ := newTestSession(t, backend)

	s.SetQuery("eigrp")
	require.True(t, s.Debouncing())

	s.RouteChanged()
	assert.False(t, s.Debouncing())
	assert.Equal(t, "", s.State().Query)
}

func TestSession_FailureDegradesToEmpty(t *testing.T) {
	backend := newFakeBackend()
	backend.err = errors.New("connection refused")
	s, clock, _ := newTestSession(t, backend)

	s.SetQuery("ipv6")
	clock.Advance(250 * time.Millisecond)
	s.Wait()

	state := s.State()
	assert.Equal(t, model.ModeSuggesting, state.Mode)
	assert.NotNil(t, state.Suggestions)
	assert.Empty(t, state.Suggestions)
	assert.False(t, state.Loading)

	s.FullSearch()
	s.Wait()

	state = s.State()
	assert.Equal(t, model.ModeResults, state.Mode)
	assert.Empty(t, state.Results)
	assert.False(t, state.Loading)
}

func TestSession_TypingAfterResultsLeavesResultsMode(t *testing.T) {
	backend := newFakeBackend()
	backend.results = func(int, string) []model.SearchResultItem { return results("stp") }
	s, _, _ := newTestSession(t, backend)

	s.SetQuery("stp")
	s.FullSearch()
	s.Wait()
	require.Equal(t, model.ModeResults, s.State().Mode)

	s.SetQuery("stpx")
	state := s.State()
	assert.NotEqual(t, model.ModeResults, state.Mode)
	assert.Empty(t, state.Results)
	assert.True(t, s.Debouncing())
}

func TestSession_CloseCancelsTimer(t *testing.T) {
	backend := newFakeBackend()
	s, clock, _ := newTestSession(t, backend)

	s.SetQuery("lldp")
	s.Close()
	assert.Zero(t, clock.Pending())

	clock.Advance(time.Second)
	s.SetQuery("lldp2")
	s.FullSearch()
	s.Wait()

	assert.Empty(t, backend.Calls("suggest"))
	assert.Empty(t, backend.Calls("search"))
}

func TestSession_ListenerNotified(t *testing.T) {
	backend := newFakeBackend()
	backend.suggestions["tls"] = suggestions("tls-handshake")

	var mu sync.Mutex
	var modes []model.Mode
	listener := func(state model.SessionState) {
		mu.Lock()
		defer mu.Unlock()
		modes = append(modes, state.Mode)
	}
	s, clock, _ := newTestSession(t, backend, WithListener(listener))

	s.SetQuery("tls")
	clock.Advance(250 * time.Millisecond)
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, modes)
	assert.Equal(t, model.ModeSuggesting, modes[len(modes)-1])
}

func TestWithOptions_FillsDefaults(t *testing.T) {
	s := NewSession(newFakeBackend(), nil, WithOptions(Options{SuggestLimit: 3}))
	defer s.Close()

	assert.Equal(t, 3, s.opts.SuggestLimit)
	assert.Equal(t, 8, s.opts.SearchLimit)
	assert.Equal(t, 2, s.opts.MinQueryLength)
	assert.Equal(t, time.Duration(0), s.opts.DebounceDelay)
}
