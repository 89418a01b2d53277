package listview

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// ErrNothingSelected is returned by ActBatch when no targets are given.
var ErrNothingSelected = errors.New("listview: no records selected")

// DefaultPresets are the selectable page sizes when none are configured.
var DefaultPresets = []int{10, 25, 50, 100}

// UserMessager is implemented by errors that carry a message fit for users,
// such as a backend error body.
type UserMessager interface {
	UserMessage() string
}

// Messages holds the user-facing texts emitted by a controller.
type Messages struct {
	Busy           string
	NothingToDo    string
	GenericFailure string
	RefreshFailed  string
	// BatchFailed is formatted with the failed and total counts.
	BatchFailed string
	// BatchSucceeded is formatted with the total count.
	BatchSucceeded string
}

// DefaultMessages are English fallbacks.
var DefaultMessages = Messages{
	Busy:           "Another action is still in progress. Please wait.",
	NothingToDo:    "Select at least one record first.",
	GenericFailure: "The request failed. Please try again.",
	RefreshFailed:  "The list could not be refreshed.",
	BatchFailed:    "%d of %d requests failed. The list was reloaded.",
	BatchSucceeded: "%d records updated.",
}

// Action describes one state-changing backend call for a record.
type Action[T any] struct {
	Name string
	// Call performs the backend request. It may return the updated record.
	Call func(ctx context.Context, id string) (*T, error)
	// Patch is the optimistic local update applied after success when Call
	// returned no record.
	Patch          func(T) T
	SuccessMessage string
	FailureTitle   string
}

// Outcome describes a settled, or denied, action.
type Outcome struct {
	Screen   string
	Action   string
	Targets  []string
	Failed   []string
	Denied   bool
	Err      error
	Duration time.Duration
}

// Params is a complete set of view parameters, usually parsed from a request.
type Params struct {
	Search     string
	Categories map[string]string
	Sort       string
	Direction  Direction
	Page       int
	PerPage    int
}

// View is a rendered snapshot of a controller.
type View[T any] struct {
	Items      []T
	Total      int
	TotalPages int
	StartIndex int
	EndIndex   int
	Page       PageSpec
	Window     []PageLink
	Filter     FilterSpec
	Sort       SortSpec
	Presets    []int
	Busy       bool
	BusyTarget string
	Loaded     bool
	FetchedAt  time.Time
}

type controllerOptions struct {
	gate     *Gate
	presets  []int
	perPage  int
	observer func(Outcome)
	messages Messages
}

// ControllerOption configures a Controller.
type ControllerOption func(*controllerOptions)

// WithGate shares gate with other controllers.
func WithGate(gate *Gate) ControllerOption {
	return func(o *controllerOptions) { o.gate = gate }
}

// WithPresets sets the selectable page sizes and the initial one.
func WithPresets(presets []int, initial int) ControllerOption {
	return func(o *controllerOptions) {
		o.presets = append([]int(nil), presets...)
		o.perPage = initial
	}
}

// WithObserver receives every action outcome.
func WithObserver(fn func(Outcome)) ControllerOption {
	return func(o *controllerOptions) { o.observer = fn }
}

// WithMessages replaces the default user-facing texts.
func WithMessages(messages Messages) ControllerOption {
	return func(o *controllerOptions) { o.messages = messages }
}

// Controller is the list-view state of one screen instance.
type Controller[T any] struct {
	name     string
	schema   Schema[T]
	store    *Store[T]
	gate     *Gate
	presets  []int
	observer func(Outcome)
	messages Messages

	mu     sync.Mutex
	filter FilterSpec
	sort   SortSpec
	page   PageSpec
}

// NewController validates schema and returns a controller on page one.
func NewController[T any](name string, schema Schema[T], fetch Fetcher[T], opts ...ControllerOption) (*Controller[T], error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	options := controllerOptions{messages: DefaultMessages}
	for _, opt := range opts {
		opt(&options)
	}
	if len(options.presets) == 0 {
		options.presets = DefaultPresets
	}
	if options.perPage == 0 {
		options.perPage = options.presets[0]
	}
	if !slices.Contains(options.presets, options.perPage) {
		return nil, fmt.Errorf("listview: initial page size %d is not a preset", options.perPage)
	}
	if options.gate == nil {
		options.gate = NewGate()
	}

	sort := schema.DefaultSort
	if sort.Direction == "" {
		sort.Direction = Ascending
	}
	return &Controller[T]{
		name:     name,
		schema:   schema,
		store:    NewStore(fetch, schema.ID),
		gate:     options.gate,
		presets:  options.presets,
		observer: options.observer,
		messages: options.messages,
		filter:   FilterSpec{Categories: map[string]string{}},
		sort:     sort,
		page:     PageSpec{ItemsPerPage: options.perPage, CurrentPage: 1},
	}, nil
}

func (c *Controller[T]) Name() string     { return c.name }
func (c *Controller[T]) Store() *Store[T] { return c.store }
func (c *Controller[T]) Gate() *Gate      { return c.gate }
func (c *Controller[T]) Presets() []int   { return append([]int(nil), c.presets...) }

// SetMessages replaces the user-facing texts, for example after a language
// change.
func (c *Controller[T]) SetMessages(messages Messages) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = messages
}

func (c *Controller[T]) currentMessages() Messages {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messages
}

// Refresh reloads the collection from the backend.
func (c *Controller[T]) Refresh(ctx context.Context) error {
	return c.store.Refresh(ctx)
}

// EnsureLoaded fetches the collection on first use.
func (c *Controller[T]) EnsureLoaded(ctx context.Context) error {
	if c.store.Loaded() {
		return nil
	}
	return c.store.Refresh(ctx)
}

// SetSearch changes the search term and resets to page one when it differs.
func (c *Controller[T]) SetSearch(term string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.filter.clone()
	next.Search = strings.TrimSpace(term)
	c.setFilterLocked(next)
}

// SetCategory changes one categorical selection.
func (c *Controller[T]) SetCategory(category, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.schema.Categories[category]; !ok {
		return
	}
	next := c.filter.clone()
	next.Categories[category] = normalizeSelection(value)
	c.setFilterLocked(next)
}

// ToggleSort behaves like clicking field's column header.
func (c *Controller[T]) ToggleSort(field string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.schema.Sortable(field) {
		return
	}
	c.setSortLocked(c.sort.Toggle(field))
}

// SetSort selects field and direction directly.
func (c *Controller[T]) SetSort(field string, direction Direction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.schema.Sortable(field) {
		return
	}
	c.setSortLocked(SortSpec{Field: field, Direction: direction})
}

// SetPage selects a page. The value is clamped when the view is derived.
func (c *Controller[T]) SetPage(page int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if page < 1 {
		page = 1
	}
	c.page.CurrentPage = page
}

// SetPerPage selects one of the presets and returns to page one. Values
// outside the presets are ignored.
func (c *Controller[T]) SetPerPage(perPage int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setPerPageLocked(perPage)
}

// Apply sets every parameter at once. Zero-valued sort and per-page fields
// keep the current state. The requested page only applies when neither the
// filter nor the sort changed.
func (c *Controller[T]) Apply(params Params) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := FilterSpec{Search: strings.TrimSpace(params.Search), Categories: map[string]string{}}
	for name := range c.schema.Categories {
		next.Categories[name] = normalizeSelection(params.Categories[name])
	}
	changed := !c.filter.Equal(next)
	c.setFilterLocked(next)

	if params.Sort != "" && c.schema.Sortable(params.Sort) {
		direction := params.Direction
		if direction == "" {
			direction = Ascending
		}
		sort := SortSpec{Field: params.Sort, Direction: direction}
		changed = changed || sort != c.sort
		c.setSortLocked(sort)
	}
	if params.PerPage != 0 {
		changed = changed || (params.PerPage != c.page.ItemsPerPage && slices.Contains(c.presets, params.PerPage))
		c.setPerPageLocked(params.PerPage)
	}
	if params.Page > 0 && !changed {
		c.page.CurrentPage = params.Page
	}
}

func (c *Controller[T]) Filter() FilterSpec {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter.clone()
}

func (c *Controller[T]) Sort() SortSpec {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sort
}

func (c *Controller[T]) PageSpec() PageSpec {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

// Derived returns the filtered and sorted collection without pagination.
func (c *Controller[T]) Derived() []T {
	filter, sort := c.Filter(), c.Sort()
	return Derive(c.store.Snapshot(), c.schema, filter, sort)
}

// View derives, clamps and paginates the current state.
func (c *Controller[T]) View() View[T] {
	c.mu.Lock()
	filter, sort := c.filter.clone(), c.sort
	derived := Derive(c.store.Snapshot(), c.schema, filter, sort)
	total := TotalPages(len(derived), c.page.ItemsPerPage)
	c.page.CurrentPage = ClampPage(c.page.CurrentPage, total)
	spec := c.page
	c.mu.Unlock()

	page := Paginate(derived, spec)
	target, busy := c.gate.Busy()
	return View[T]{
		Items:      page.Items,
		Total:      len(derived),
		TotalPages: page.TotalPages,
		StartIndex: page.StartIndex,
		EndIndex:   page.EndIndex,
		Page:       spec,
		Window:     PageWindow(page.TotalPages, spec.CurrentPage),
		Filter:     filter,
		Sort:       sort,
		Presets:    c.Presets(),
		Busy:       busy,
		BusyTarget: target,
		Loaded:     c.store.Loaded(),
		FetchedAt:  c.store.FetchedAt(),
	}
}

// Act runs action for one record inside a gate session. A denied request
// warns and does nothing. A failed request raises an error alert and leaves
// the store untouched. On success the record is patched locally, the user is
// notified and the collection is re-fetched to confirm the patch.
func (c *Controller[T]) Act(ctx context.Context, id string, n Notifier, action Action[T]) error {
	if n == nil {
		n = Discard
	}
	messages := c.currentMessages()
	started := time.Now()
	ran := false
	err := c.gate.Do(ctx, id, func(ctx context.Context) error {
		ran = true
		updated, err := action.Call(ctx, id)
		if err != nil {
			n.Alert(LevelError, action.FailureTitle, MessageFor(err, messages.GenericFailure))
			return err
		}
		c.applyPatch(id, updated, action.Patch)
		c.confirmingRefresh(ctx, n, messages.RefreshFailed)
		if action.SuccessMessage != "" {
			n.Toast(LevelSuccess, action.SuccessMessage)
		}
		return nil
	})

	outcome := Outcome{Screen: c.name, Action: action.Name, Targets: []string{id}, Err: err, Duration: time.Since(started)}
	if !ran && errors.Is(err, ErrBusy) {
		n.Toast(LevelWarning, messages.Busy)
		outcome.Denied = true
	} else if err != nil {
		outcome.Failed = []string{id}
	}
	c.observe(outcome)
	return err
}

// ActBatch runs action for every id as one gate session. Sub-requests run
// concurrently; if any fails the batch is reported as failed. Successful
// records are patched and the collection is always re-fetched afterwards.
func (c *Controller[T]) ActBatch(ctx context.Context, ids []string, n Notifier, action Action[T]) error {
	if n == nil {
		n = Discard
	}
	messages := c.currentMessages()
	if len(ids) == 0 {
		n.Toast(LevelWarning, messages.NothingToDo)
		return ErrNothingSelected
	}
	started := time.Now()
	ran := false
	err := c.gate.Do(ctx, BatchTarget, func(ctx context.Context) error {
		ran = true
		batchErr := runBatch(ctx, ids, c.gate.batchLimit, func(ctx context.Context, id string) error {
			updated, err := action.Call(ctx, id)
			if err != nil {
				return err
			}
			c.applyPatch(id, updated, action.Patch)
			return nil
		})
		c.confirmingRefresh(ctx, n, messages.RefreshFailed)
		if batchErr != nil {
			var be *BatchError
			if errors.As(batchErr, &be) {
				n.Alert(LevelError, action.FailureTitle, fmt.Sprintf(messages.BatchFailed, len(be.Failed), len(ids)))
			}
			return batchErr
		}
		n.Toast(LevelSuccess, fmt.Sprintf(messages.BatchSucceeded, len(ids)))
		return nil
	})

	outcome := Outcome{Screen: c.name, Action: action.Name, Targets: append([]string(nil), ids...), Err: err, Duration: time.Since(started)}
	var be *BatchError
	switch {
	case !ran && errors.Is(err, ErrBusy):
		n.Toast(LevelWarning, messages.Busy)
		outcome.Denied = true
	case errors.As(err, &be):
		outcome.Failed = be.Failed
	}
	c.observe(outcome)
	return err
}

func (c *Controller[T]) applyPatch(id string, updated *T, patch func(T) T) {
	switch {
	case updated != nil:
		c.store.Replace(id, *updated)
	case patch != nil:
		c.store.Patch(id, patch)
	}
}

func (c *Controller[T]) confirmingRefresh(ctx context.Context, n Notifier, failed string) {
	if err := c.store.Refresh(ctx); err != nil {
		n.Toast(LevelWarning, failed)
	}
}

// MessageFor returns the message err carries for users, or fallback.
func MessageFor(err error, fallback string) string {
	var messager UserMessager
	if errors.As(err, &messager) {
		if message := strings.TrimSpace(messager.UserMessage()); message != "" {
			return message
		}
	}
	return fallback
}

func (c *Controller[T]) observe(outcome Outcome) {
	if c.observer != nil {
		c.observer(outcome)
	}
}

func (c *Controller[T]) setFilterLocked(next FilterSpec) {
	if !c.filter.Equal(next) {
		c.page.CurrentPage = 1
	}
	c.filter = next
}

func (c *Controller[T]) setSortLocked(next SortSpec) {
	if next != c.sort {
		c.page.CurrentPage = 1
	}
	c.sort = next
}

func (c *Controller[T]) setPerPageLocked(perPage int) {
	if !slices.Contains(c.presets, perPage) {
		return
	}
	if perPage != c.page.ItemsPerPage {
		c.page.CurrentPage = 1
	}
	c.page.ItemsPerPage = perPage
}

func normalizeSelection(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return All
	}
	return value
}
