package listview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"
)

// FlowState is a step of the reason-capture flow.
type FlowState string

const (
	FlowClosed     FlowState = "closed"
	FlowCollecting FlowState = "collecting_input"
	FlowValidating FlowState = "validating"
	FlowConfirming FlowState = "confirming"
	FlowSubmitting FlowState = "submitting"
)

var (
	ErrNotCollecting = errors.New("listview: flow is not collecting input")
	ErrNotConfirming = errors.New("listview: flow is not awaiting confirmation")
	ErrSubmitting    = errors.New("listview: flow is submitting")
)

// ValidationError is a local input error raised before any backend call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Validator checks flow input.
type Validator[I any] func(I) error

// Required fails when value is blank.
func Required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	return nil
}

// MinLength fails when the trimmed value has fewer than n characters.
func MinLength(field, value string, n int) error {
	if utf8.RuneCountInString(strings.TrimSpace(value)) < n {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be at least %d characters", n)}
	}
	return nil
}

// OneOf fails when value is not among allowed.
func OneOf(field, value string, allowed ...string) error {
	for _, candidate := range allowed {
		if value == candidate {
			return nil
		}
	}
	return &ValidationError{Field: field, Message: fmt.Sprintf("must be one of %s", strings.Join(allowed, ", "))}
}

// FirstError returns the first non-nil error.
func FirstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Flow captures structured input for one state-changing action, validates
// it, asks for confirmation and finally submits it.
type Flow[I any] struct {
	mu       sync.Mutex
	state    FlowState
	target   string
	input    I
	validate Validator[I]
}

// NewFlow returns a closed flow.
func NewFlow[I any](validate Validator[I]) *Flow[I] {
	return &Flow[I]{state: FlowClosed, validate: validate}
}

// Open starts collecting input for target, discarding any unsubmitted draft.
func (f *Flow[I]) Open(target string, initial I) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == FlowSubmitting {
		return ErrSubmitting
	}
	f.state = FlowCollecting
	f.target = target
	f.input = initial
	return nil
}

// Submit validates input. A validation failure keeps the flow collecting
// with the entered input preserved; success moves it to confirming.
func (f *Flow[I]) Submit(input I) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != FlowCollecting {
		return ErrNotCollecting
	}
	f.input = input
	f.state = FlowValidating
	if f.validate != nil {
		if err := f.validate(input); err != nil {
			f.state = FlowCollecting
			return err
		}
	}
	f.state = FlowConfirming
	return nil
}

// Cancel leaves the confirmation step and returns to input collection.
func (f *Flow[I]) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != FlowConfirming {
		return ErrNotConfirming
	}
	f.state = FlowCollecting
	return nil
}

// Confirm submits the confirmed input. The flow closes once submit returns,
// whether it succeeded or failed. An ErrBusy denial never reached the
// backend, so the flow stays at the confirmation step.
func (f *Flow[I]) Confirm(ctx context.Context, submit func(ctx context.Context, target string, input I) error) error {
	f.mu.Lock()
	if f.state != FlowConfirming {
		f.mu.Unlock()
		return ErrNotConfirming
	}
	f.state = FlowSubmitting
	target, input := f.target, f.input
	f.mu.Unlock()

	err := submit(ctx, target, input)

	f.mu.Lock()
	defer f.mu.Unlock()
	if errors.Is(err, ErrBusy) {
		f.state = FlowConfirming
		return err
	}
	f.state = FlowClosed
	var zero I
	f.input = zero
	f.target = ""
	return err
}

// Close abandons the flow. A submission in progress cannot be abandoned.
func (f *Flow[I]) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == FlowSubmitting {
		return ErrSubmitting
	}
	f.state = FlowClosed
	var zero I
	f.input = zero
	f.target = ""
	return nil
}

func (f *Flow[I]) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow[I]) Target() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.target
}

func (f *Flow[I]) Input() I {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.input
}
