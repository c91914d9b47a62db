package router_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"reelsync/backend/internal/event"
	"reelsync/backend/internal/router"
	"reelsync/backend/internal/testutils"
)

func TestClassifier_Classify(t *testing.T) {
	ledger := testutils.NewMemoryLedger()
	_ = ledger.Record(context.Background(), event.ProcessedRecord{ExternalID: "done", Category: event.CategoryMedia})
	c := router.NewClassifier(ledger, "bot", nil)

	media := &event.Attachment{Kind: event.AttachmentMedia, Link: "L1"}
	other := &event.Attachment{Kind: event.AttachmentOther, Link: "img"}

	tests := []struct {
		name    string
		ev      event.InboundEvent
		outcome router.Outcome
		route   router.Route
		reason  string
		query   string
	}{
		{"missing external id", event.InboundEvent{SenderID: "u1", Text: "hi"}, router.Reject, "", router.ReasonMalformedPayload, ""},
		{"missing sender", event.InboundEvent{ExternalID: "m1", Text: "hi"}, router.Reject, "", router.ReasonMalformedPayload, ""},
		{"self message", event.InboundEvent{ExternalID: "m1", SenderID: "bot", Text: "hi"}, router.Reject, "", router.ReasonSelfMessage, ""},
		{"duplicate", event.InboundEvent{ExternalID: "done", SenderID: "u1", Text: "hi"}, router.Duplicate, "", "", ""},
		{"media attachment", event.InboundEvent{ExternalID: "m1", SenderID: "u1", Attachment: media}, router.Accept, router.RouteAttachment, "", ""},
		{"other attachment", event.InboundEvent{ExternalID: "m1", SenderID: "u1", Attachment: other}, router.Accept, router.RouteUnsupported, "", ""},
		{"empty payload", event.InboundEvent{ExternalID: "m1", SenderID: "u1"}, router.Accept, router.RouteUnsupported, "", ""},
		{"search", event.InboundEvent{ExternalID: "m1", SenderID: "u1", Text: "Search funny dance"}, router.Accept, router.RouteSearch, "", "funny dance"},
		{"searching is not a command", event.InboundEvent{ExternalID: "m1", SenderID: "u1", Text: "searching for cats"}, router.Accept, router.RouteAnnotation, "", ""},
		{"short text annotates", event.InboundEvent{ExternalID: "m1", SenderID: "u1", Text: "funny dance"}, router.Accept, router.RouteAnnotation, "", ""},
		{"long text is a question", event.InboundEvent{ExternalID: "m1", SenderID: "u1", Text: "what was the name of the song in the dance reel i sent yesterday"}, router.Accept, router.RouteQuestion, "", ""},
		{"reply annotates", event.InboundEvent{ExternalID: "m1", SenderID: "u1", Text: "search this later please", ReplyToID: "e9"}, router.Accept, router.RouteReplyAnnotation, "", ""},
		{"long reply still annotates", event.InboundEvent{ExternalID: "m1", SenderID: "u1", Text: "this is a very long note about the reel that goes past ten words", ReplyToID: "e9"}, router.Accept, router.RouteReplyAnnotation, "", ""},
		{"text wins over attachment", event.InboundEvent{ExternalID: "m1", SenderID: "u1", Text: "nice", Attachment: media}, router.Accept, router.RouteAnnotation, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := c.Classify(context.Background(), tt.ev)
			assert.Equal(t, tt.outcome, d.Outcome, d.Outcome.String())
			assert.Equal(t, tt.route, d.Route)
			assert.Equal(t, tt.reason, d.Reason)
			assert.Equal(t, tt.query, d.Query)
		})
	}
}

func TestClassifier_LedgerFaultAccepts(t *testing.T) {
	ledger := testutils.NewMemoryLedger()
	ledger.ExistsErr = errors.New("db down")
	c := router.NewClassifier(ledger, "", nil)

	d := c.Classify(context.Background(), event.InboundEvent{ExternalID: "m1", SenderID: "u1", Text: "hi"})
	assert.Equal(t, router.Accept, d.Outcome)
	assert.Equal(t, router.RouteAnnotation, d.Route)
}

type alwaysQuestion struct{}

func (alwaysQuestion) ClassifyIntent(text string, hasReplyRef bool) router.Intent {
	return router.IntentQuestion
}

func TestClassifier_CustomIntent(t *testing.T) {
	c := router.NewClassifier(testutils.NewMemoryLedger(), "", alwaysQuestion{})

	d := c.Classify(context.Background(), event.InboundEvent{ExternalID: "m1", SenderID: "u1", Text: "hi"})
	assert.Equal(t, router.RouteQuestion, d.Route)

	d = c.Classify(context.Background(), event.InboundEvent{ExternalID: "m2", SenderID: "u1", Text: "search hi"})
	assert.Equal(t, router.RouteSearch, d.Route)
}

func TestParseSearch(t *testing.T) {
	tests := []struct {
		in    string
		query string
		ok    bool
	}{
		{"search dog trick", "dog trick", true},
		{"SEARCH   dog", "dog", true},
		{"  search\tdog", "dog", true},
		{"search", "", true},
		{"searchdog", "", false},
		{"research dog", "", false},
		{"sear", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		q, ok := router.ParseSearch(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.query, q, tt.in)
	}
}

func TestWordCountIntent(t *testing.T) {
	w := router.WordCountIntent{}
	assert.Equal(t, router.IntentAnnotation, w.ClassifyIntent("one two three four five six seven eight nine ten", false))
	assert.Equal(t, router.IntentQuestion, w.ClassifyIntent("one two three four five six seven eight nine ten eleven", false))
	assert.Equal(t, router.IntentAnnotation, w.ClassifyIntent("one two three four five six seven eight nine ten eleven", true))

	assert.Equal(t, router.IntentQuestion, router.WordCountIntent{MaxWords: 2}.ClassifyIntent("a b c", false))
}
