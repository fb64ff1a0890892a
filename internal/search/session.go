// Package search implements the navigation-bar search session: debounced
// suggestions while typing, a full search on submit, keyboard navigation
// and dismissal. Responses that a newer request superseded are dropped.
package search

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/netpulse/webclient/internal/model"
	"github.com/netpulse/webclient/internal/schedule"
	"github.com/netpulse/webclient/internal/util"
)

type Backend interface {
	Suggest(ctx context.Context, query string, limit int) ([]model.SuggestionItem, error)
	Search(ctx context.Context, query string, limit int) ([]model.SearchResultItem, error)
}

// Navigator performs a client-side route transition.
type Navigator interface {
	Navigate(route string)
}

type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) {
	f(route)
}

// Listener is called after every committed state change, outside the
// session lock. It must not assume snapshots arrive in commit order; call
// Session.State for the latest one.
type Listener func(state model.SessionState)

type Key int

const (
	KeyDown Key = iota
	KeyUp
	KeyEnter
	KeyEscape
)

type Options struct {
	DebounceDelay  time.Duration
	MinQueryLength int
	SuggestLimit   int
	SearchLimit    int
}

func DefaultOptions() Options {
	return Options{
		DebounceDelay:  250 * time.Millisecond,
		MinQueryLength: 2,
		SuggestLimit:   6,
		SearchLimit:    8,
	}
}

type Option func(*Session)

func WithOptions(opts Options) Option {
	return func(s *Session) {
		defaults := DefaultOptions()
		if opts.DebounceDelay < 0 {
			opts.DebounceDelay = defaults.DebounceDelay
		}
		if opts.MinQueryLength <= 0 {
			opts.MinQueryLength = defaults.MinQueryLength
		}
		if opts.SuggestLimit <= 0 {
			opts.SuggestLimit = defaults.SuggestLimit
		}
		if opts.SearchLimit <= 0 {
			opts.SearchLimit = defaults.SearchLimit
		}
		s.opts = opts
	}
}

func WithScheduler(scheduler schedule.Scheduler) Option {
	return func(s *Session) { s.scheduler = scheduler }
}

func WithLogger(logger *util.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

func WithMetrics(metrics *util.Metrics) Option {
	return func(s *Session) { s.metrics = metrics }
}

func WithListener(listener Listener) Option {
	return func(s *Session) { s.listener = listener }
}

// WithContext sets the parent context for backend requests.
func WithContext(ctx context.Context) Option {
	return func(s *Session) { s.ctx = ctx }
}

type Session struct {
	backend   Backend
	navigator Navigator
	scheduler schedule.Scheduler
	logger    *util.Logger
	metrics   *util.Metrics
	listener  Listener
	opts      Options
	ctx       context.Context

	mu    sync.Mutex
	state model.SessionState

	debounce    schedule.Timer
	debounceSeq uint64

	// suggestGen and searchGen identify the latest request of each kind.
	// A response commits only while its generation is still current.
	suggestGen     uint64
	searchGen      uint64
	suggestPending bool
	searchPending  bool

	closed bool

	// inflight counts dispatched backend requests; settled is signalled
	// under mu when it drops to zero.
	inflight int
	settled  *sync.Cond
}

func NewSession(backend Backend, navigator Navigator, opts ...Option) *Session {
	s := &Session{
		backend:   backend,
		navigator: navigator,
		scheduler: schedule.Real(),
		logger:    util.NewNopLogger(),
		opts:      DefaultOptions(),
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.navigator == nil {
		s.navigator = NavigatorFunc(func(string) {})
	}
	s.settled = sync.NewCond(&s.mu)
	s.state = idleState("")
	return s
}

func idleState(query string) model.SessionState {
	return model.SessionState{
		Query:       query,
		Mode:        model.ModeIdle,
		Suggestions: []model.SuggestionItem{},
		Results:     []model.SearchResultItem{},
		ActiveIndex: -1,
	}
}

// State returns a copy of the current state.
func (s *Session) State() model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Debouncing reports whether a suggest request is waiting for the quiet
// period to elapse.
func (s *Session) Debouncing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debounce != nil
}

// Wait blocks until every dispatched backend request has settled. Input
// arriving while it waits extends the wait.
func (s *Session) Wait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.inflight > 0 {
		s.settled.Wait()
	}
}

func (s *Session) requestDone() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if s.inflight == 0 {
		s.settled.Broadcast()
	}
}

// SetQuery is called on every keystroke with the full input text.
func (s *Session) SetQuery(query string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	if query == s.state.Query {
		s.mu.Unlock()
		return
	}
	s.state.Query = query
	s.cancelDebounceLocked()

	if s.suggestPending {
		s.suggestGen++
		s.suggestPending = false
	}

	if utf8.RuneCountInString(query) < s.opts.MinQueryLength {
		s.invalidateLocked()
		s.state = idleState(query)
		snapshot := s.snapshotLocked()
		s.mu.Unlock()
		s.emit(snapshot)
		return
	}

	// A new query invalidates any shown or pending full results.
	if s.searchPending || s.state.Mode == model.ModeResults {
		s.searchGen++
		s.searchPending = false
	}
	s.state.Results = []model.SearchResultItem{}
	if s.state.Mode == model.ModeResults {
		s.state.Mode = model.ModeSuggesting
		s.state.ActiveIndex = -1
	}
	if len(s.state.Suggestions) == 0 && s.state.Mode == model.ModeSuggesting {
		s.state.Mode = model.ModeIdle
	}
	s.state.Loading = s.suggestPending || s.searchPending

	s.debounceSeq++
	seq := s.debounceSeq
	s.debounce = s.scheduler.AfterFunc(s.opts.DebounceDelay, func() {
		s.fireSuggest(seq)
	})

	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(snapshot)
}

func (s *Session) fireSuggest(seq uint64) {
	s.mu.Lock()
	if s.closed || seq != s.debounceSeq || s.debounce == nil {
		s.mu.Unlock()
		return
	}
	s.debounce = nil

	query := s.state.Query
	if utf8.RuneCountInString(query) < s.opts.MinQueryLength {
		s.mu.Unlock()
		return
	}

	s.suggestGen++
	gen := s.suggestGen
	s.suggestPending = true
	s.state.Loading = true
	s.inflight++
	go s.runSuggest(gen, query)

	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(snapshot)
}

func (s *Session) runSuggest(gen uint64, query string) {
	defer s.requestDone()

	items, err := s.backend.Suggest(s.ctx, query, s.opts.SuggestLimit)

	s.mu.Lock()
	if s.closed || gen != s.suggestGen || query != s.state.Query {
		s.mu.Unlock()
		s.dropStale("suggest", query, gen)
		return
	}

	s.suggestPending = false
	if err != nil {
		s.logger.Warnw("Suggest request failed", "query", query, "error", util.FormatError(err))
		items = []model.SuggestionItem{}
	}
	if items == nil {
		items = []model.SuggestionItem{}
	}

	s.state.Suggestions = items
	s.state.ActiveIndex = -1
	if !s.searchPending {
		s.state.Mode = model.ModeSuggesting
	}
	s.state.Loading = s.suggestPending || s.searchPending

	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Debugw("Suggestions committed", "query", query, "count", len(items), "generation", gen)
	s.emit(snapshot)
}

// FullSearch runs the heavier search for the current query. It backs both
// submit and the "see all results" affordance.
func (s *Session) FullSearch() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	query := s.state.Query
	if strings.TrimSpace(query) == "" || utf8.RuneCountInString(query) < s.opts.MinQueryLength {
		s.mu.Unlock()
		return
	}

	s.cancelDebounceLocked()

	// Results become authoritative; a pending suggest must not overwrite them.
	s.suggestGen++
	s.suggestPending = false
	s.state.Suggestions = []model.SuggestionItem{}
	s.state.ActiveIndex = -1

	s.searchGen++
	gen := s.searchGen
	s.searchPending = true
	s.state.Loading = true
	s.inflight++
	go s.runSearch(gen, query)

	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(snapshot)
}

func (s *Session) runSearch(gen uint64, query string) {
	defer s.requestDone()

	items, err := s.backend.Search(s.ctx, query, s.opts.SearchLimit)

	s.mu.Lock()
	if s.closed || gen != s.searchGen || query != s.state.Query {
		s.mu.Unlock()
		s.dropStale("search", query, gen)
		return
	}

	s.searchPending = false
	if err != nil {
		s.logger.Warnw("Search request failed", "query", query, "error", util.FormatError(err))
		items = []model.SearchResultItem{}
	}
	if items == nil {
		items = []model.SearchResultItem{}
	}

	s.state.Results = items
	s.state.Suggestions = []model.SuggestionItem{}
	s.state.Mode = model.ModeResults
	s.state.ActiveIndex = -1
	s.state.Loading = s.suggestPending || s.searchPending

	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Debugw("Search results committed", "query", query, "count", len(items), "generation", gen)
	s.emit(snapshot)
}

// Submit handles Enter with no key handling of its own and explicit submit
// actions: a highlighted item is opened directly, otherwise a full search
// runs.
func (s *Session) Submit() {
	s.mu.Lock()
	if s.closed || strings.TrimSpace(s.state.Query) == "" {
		s.mu.Unlock()
		return
	}
	slug, ok := s.state.ActiveSlug()
	s.mu.Unlock()

	if ok {
		s.open(slug)
		return
	}
	s.FullSearch()
}

// HandleKey applies the keyboard contract. Arrow keys wrap around the list
// currently shown and are no-ops when it is empty.
func (s *Session) HandleKey(key Key) {
	switch key {
	case KeyDown, KeyUp:
		s.mu.Lock()
		n := s.state.ActiveLength()
		if s.closed || n == 0 {
			s.mu.Unlock()
			return
		}
		idx := s.state.ActiveIndex
		if key == KeyDown {
			if idx < n-1 {
				idx++
			} else {
				idx = 0
			}
		} else {
			if idx > 0 {
				idx--
			} else {
				idx = n - 1
			}
		}
		s.state.ActiveIndex = idx
		snapshot := s.snapshotLocked()
		s.mu.Unlock()
		s.emit(snapshot)
	case KeyEnter:
		s.Submit()
	case KeyEscape:
		s.Dismiss()
	}
}

// Select opens item i of the list currently shown, as a click would.
func (s *Session) Select(i int) {
	s.mu.Lock()
	if s.closed || i < 0 || i >= s.state.ActiveLength() {
		s.mu.Unlock()
		return
	}
	var slug string
	if s.state.Mode == model.ModeResults {
		slug = s.state.Results[i].Slug
	} else {
		slug = s.state.Suggestions[i].Slug
	}
	s.mu.Unlock()

	s.open(slug)
}

// PointerDown reports a pointer-down event; one outside the search
// container closes the session.
func (s *Session) PointerDown(inside bool) {
	if inside {
		return
	}
	s.Dismiss()
}

// RouteChanged resets the session once a navigation completes.
func (s *Session) RouteChanged() {
	s.Dismiss()
}

// Dismiss closes the dropdown and clears all state.
func (s *Session) Dismiss() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.resetLocked()
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(snapshot)
}

// Close tears the session down. The debounce timer is cancelled and any
// response still in flight is discarded when it arrives.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.resetLocked()
	s.closed = true
}

func (s *Session) open(slug string) {
	route := model.PostRoute(slug)

	s.mu.Lock()
	s.resetLocked()
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Debugw("Navigating to search hit", "route", route)
	s.navigator.Navigate(route)
	s.emit(snapshot)
}

func (s *Session) resetLocked() {
	s.cancelDebounceLocked()
	s.invalidateLocked()
	s.state = idleState("")
}

// invalidateLocked makes every in-flight response stale.
func (s *Session) invalidateLocked() {
	s.suggestGen++
	s.searchGen++
	s.suggestPending = false
	s.searchPending = false
}

func (s *Session) cancelDebounceLocked() {
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
	s.debounceSeq++
}

func (s *Session) snapshotLocked() model.SessionState {
	snapshot := s.state
	snapshot.Suggestions = append([]model.SuggestionItem(nil), s.state.Suggestions...)
	snapshot.Results = append([]model.SearchResultItem(nil), s.state.Results...)
	if snapshot.Suggestions == nil {
		snapshot.Suggestions = []model.SuggestionItem{}
	}
	if snapshot.Results == nil {
		snapshot.Results = []model.SearchResultItem{}
	}
	return snapshot
}

func (s *Session) dropStale(kind, query string, gen uint64) {
	if s.metrics != nil {
		s.metrics.IncrementStale(kind)
	}
	s.logger.Debugw("Dropped stale response", "kind", kind, "query", query, "generation", gen)
}

func (s *Session) emit(state model.SessionState) {
	if s.listener != nil {
		s.listener(state)
	}
}
