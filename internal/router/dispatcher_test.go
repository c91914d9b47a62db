package router_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"reelsync/backend/internal/event"
	"reelsync/backend/internal/middleware"
	"reelsync/backend/internal/router"
	"reelsync/backend/internal/testutils"
	"reelsync/backend/internal/worker"
)

type MockExecutor struct{ mock.Mock }

func (m *MockExecutor) Submit(t worker.Task) error {
	return m.Called(t).Error(0)
}

func newDispatcher(exec worker.Executor) (*router.Dispatcher, *testutils.MemoryLedger) {
	ledger := testutils.NewMemoryLedger()
	return router.NewDispatcher(router.NewClassifier(ledger, "bot", nil), exec), ledger
}

func TestDispatcher_SubmitsAccepted(t *testing.T) {
	exec := new(MockExecutor)
	exec.On("Submit", mock.MatchedBy(func(t worker.Task) bool {
		return t.Route == string(router.RouteSearch) && t.Event.ExternalID == "m1" && t.CorrelationID == "corr-1"
	})).Return(nil).Once()

	d, _ := newDispatcher(exec)
	ctx := middleware.WithCorrelationID(context.Background(), "corr-1")
	dec := d.Dispatch(ctx, event.InboundEvent{ExternalID: "m1", SenderID: "u1", Text: "search cats"})

	assert.Equal(t, router.Accept, dec.Outcome)
	exec.AssertExpectations(t)
}

func TestDispatcher_SkipsDuplicateAndRejected(t *testing.T) {
	exec := new(MockExecutor)
	d, ledger := newDispatcher(exec)
	_ = ledger.Record(context.Background(), event.ProcessedRecord{ExternalID: "m1", Category: event.CategorySearch})

	dec := d.Dispatch(context.Background(), event.InboundEvent{ExternalID: "m1", SenderID: "u1", Text: "search cats"})
	assert.Equal(t, router.Duplicate, dec.Outcome)

	dec = d.Dispatch(context.Background(), event.InboundEvent{ExternalID: "m2", SenderID: "bot", Text: "hi"})
	assert.Equal(t, router.Reject, dec.Outcome)

	exec.AssertNotCalled(t, "Submit", mock.Anything)
}

func TestDispatcher_QueueFullStillAccepts(t *testing.T) {
	exec := new(MockExecutor)
	exec.On("Submit", mock.Anything).Return(worker.ErrQueueFull)

	d, _ := newDispatcher(exec)
	dec := d.Dispatch(context.Background(), event.InboundEvent{ExternalID: "m1", SenderID: "u1", Text: "hello"})
	assert.Equal(t, router.Accept, dec.Outcome)
}

func TestDispatcher_Replay(t *testing.T) {
	exec := new(MockExecutor)
	exec.On("Submit", mock.MatchedBy(func(t worker.Task) bool { return t.Route == "attachment" })).Return(nil)
	exec.On("Submit", mock.Anything).Return(errors.New("closed"))

	d, ledger := newDispatcher(exec)
	assert.NoError(t, d.Replay(context.Background(), "attachment", event.InboundEvent{ExternalID: "m1", SenderID: "u1"}))
	assert.Error(t, d.Replay(context.Background(), "search", event.InboundEvent{ExternalID: "m2", SenderID: "u1"}))

	_ = ledger.Record(context.Background(), event.ProcessedRecord{ExternalID: "m3", Category: event.CategoryMedia})
	err := d.Replay(context.Background(), "attachment", event.InboundEvent{ExternalID: "m3", SenderID: "u1"})
	assert.ErrorIs(t, err, event.ErrDuplicate)
	exec.AssertNumberOfCalls(t, "Submit", 2)
}

type recordingExpecter struct{ senders []string }

func (r *recordingExpecter) Expect(senderID string) { r.senders = append(r.senders, senderID) }

func TestDispatcher_AnnouncesAttachments(t *testing.T) {
	exec := new(MockExecutor)
	exec.On("Submit", mock.Anything).Return(nil)

	x := &recordingExpecter{}
	d, _ := newDispatcher(exec)
	d.WithExpecter(x)

	d.Dispatch(context.Background(), event.InboundEvent{ExternalID: "m1", SenderID: "u1", Text: "hello"})
	d.Dispatch(context.Background(), event.InboundEvent{
		ExternalID: "m2",
		SenderID:   "u2",
		Attachment: &event.Attachment{Kind: event.AttachmentMedia, Link: "L1"},
	})

	assert.Equal(t, []string{"u2"}, x.senders)
}

func TestDispatcher_DoesNotWaitForHandler(t *testing.T) {
	release := make(chan struct{})
	pool := worker.NewPool(worker.RunnerFunc(func(ctx context.Context, t worker.Task) { <-release }), 1, 10)
	defer func() {
		close(release)
		_ = pool.Shutdown(context.Background())
	}()

	d, _ := newDispatcher(pool)
	for _, id := range []string{"m1", "m2", "m3"} {
		dec := d.Dispatch(context.Background(), event.InboundEvent{ExternalID: id, SenderID: "u1", Text: "hello"})
		assert.Equal(t, router.Accept, dec.Outcome)
	}
}
