package listview

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reason struct {
	Text string
}

func reasonFlow() *Flow[reason] {
	return NewFlow(func(r reason) error {
		return FirstError(Required("reason", r.Text), MinLength("reason", r.Text, 10))
	})
}

func TestFlowShortReasonNeverSubmits(t *testing.T) {
	flow := reasonFlow()
	require.NoError(t, flow.Open("7", reason{}))

	err := flow.Submit(reason{Text: "short"})
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "reason", validation.Field)
	assert.Equal(t, FlowCollecting, flow.State())
	assert.Equal(t, "short", flow.Input().Text)

	_, err = flowConfirmCalls(flow)
	assert.ErrorIs(t, err, ErrNotConfirming)
}

func flowConfirmCalls(flow *Flow[reason]) (int, error) {
	calls := 0
	err := flow.Confirm(context.Background(), func(context.Context, string, reason) error {
		calls++
		return nil
	})
	return calls, err
}

func TestFlowHappyPath(t *testing.T) {
	flow := reasonFlow()
	require.NoError(t, flow.Open("7", reason{}))
	require.NoError(t, flow.Submit(reason{Text: "duplicate registration"}))
	assert.Equal(t, FlowConfirming, flow.State())

	var gotTarget, gotReason string
	err := flow.Confirm(context.Background(), func(_ context.Context, target string, r reason) error {
		assert.Equal(t, FlowSubmitting, flow.State())
		gotTarget, gotReason = target, r.Text
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "7", gotTarget)
	assert.Equal(t, "duplicate registration", gotReason)
	assert.Equal(t, FlowClosed, flow.State())
	assert.Empty(t, flow.Target())
}

func TestFlowCancelPreservesInput(t *testing.T) {
	flow := reasonFlow()
	require.NoError(t, flow.Open("7", reason{}))
	require.NoError(t, flow.Submit(reason{Text: "incomplete documents"}))
	require.NoError(t, flow.Cancel())

	assert.Equal(t, FlowCollecting, flow.State())
	assert.Equal(t, "incomplete documents", flow.Input().Text)
	assert.ErrorIs(t, flow.Cancel(), ErrNotConfirming)
}

func TestFlowFailedSubmissionCloses(t *testing.T) {
	flow := reasonFlow()
	require.NoError(t, flow.Open("7", reason{}))
	require.NoError(t, flow.Submit(reason{Text: "incomplete documents"}))

	boom := errors.New("server error")
	err := flow.Confirm(context.Background(), func(context.Context, string, reason) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, FlowClosed, flow.State())
}

func TestFlowBusyDenialStaysConfirming(t *testing.T) {
	flow := reasonFlow()
	require.NoError(t, flow.Open("7", reason{}))
	require.NoError(t, flow.Submit(reason{Text: "incomplete documents"}))

	err := flow.Confirm(context.Background(), func(context.Context, string, reason) error { return ErrBusy })
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, FlowConfirming, flow.State())
	assert.Equal(t, "incomplete documents", flow.Input().Text)
}

func TestFlowSubmitRequiresOpen(t *testing.T) {
	flow := reasonFlow()
	assert.ErrorIs(t, flow.Submit(reason{Text: "long enough reason"}), ErrNotCollecting)
}

func TestFlowReopenDiscardsDraft(t *testing.T) {
	flow := reasonFlow()
	require.NoError(t, flow.Open("7", reason{}))
	require.NoError(t, flow.Submit(reason{Text: "incomplete documents"}))
	require.NoError(t, flow.Open("8", reason{}))

	assert.Equal(t, FlowCollecting, flow.State())
	assert.Equal(t, "8", flow.Target())
	assert.Empty(t, flow.Input().Text)
}

func TestValidators(t *testing.T) {
	assert.Error(t, Required("name", "   "))
	assert.NoError(t, Required("name", "Ana"))
	assert.Error(t, MinLength("reason", "  nine char  ", 10))
	assert.NoError(t, MinLength("reason", "ñññññññññññ", 10))
	assert.NoError(t, OneOf("status", "resolved", "investigating", "resolved"))
	assert.Error(t, OneOf("status", "closed", "investigating", "resolved"))
	assert.NoError(t, FirstError(nil, nil))
}
