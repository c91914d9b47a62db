package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"reelsync/backend/internal/event"
)

const objectInstagram = "instagram"

var (
	ErrUnexpectedObject = errors.New("unexpected object type")
	ErrNoMessaging      = errors.New("payload has no messaging entry")
)

type notification struct {
	Object string  `json:"object"`
	Entry  []entry `json:"entry"`
}

type entry struct {
	ID        string      `json:"id"`
	Time      json.Number `json:"time"`
	Messaging []messaging `json:"messaging"`
}

type messaging struct {
	Sender    party    `json:"sender"`
	Recipient party    `json:"recipient"`
	Timestamp int64    `json:"timestamp"`
	Message   *message `json:"message"`
}

type party struct {
	ID string `json:"id"`
}

type message struct {
	Mid         string       `json:"mid"`
	Text        string       `json:"text"`
	IsEcho      bool         `json:"is_echo"`
	ReplyTo     *replyTo     `json:"reply_to"`
	Attachments []attachment `json:"attachments"`
}

type replyTo struct {
	Mid string `json:"mid"`
}

type attachment struct {
	Type    string            `json:"type"`
	Payload attachmentPayload `json:"payload"`
}

type attachmentPayload struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	ReelVideoID string `json:"reel_video_id"`
	PostMediaID string `json:"ig_post_media_id"`
}

// Decode normalizes a platform notification into an InboundEvent. Only the
// first messaging item of the first entry is read. A missing sender or message
// id is reported as event.ErrMalformedPayload.
func Decode(body []byte) (event.InboundEvent, error) {
	var n notification
	if err := json.Unmarshal(body, &n); err != nil {
		return event.InboundEvent{}, fmt.Errorf("%w: %v", event.ErrMalformedPayload, err)
	}
	if n.Object != objectInstagram {
		return event.InboundEvent{}, fmt.Errorf("%w: %w %q", event.ErrMalformedPayload, ErrUnexpectedObject, n.Object)
	}
	if len(n.Entry) == 0 || len(n.Entry[0].Messaging) == 0 {
		return event.InboundEvent{}, fmt.Errorf("%w: %w", event.ErrMalformedPayload, ErrNoMessaging)
	}

	en := n.Entry[0]
	m := en.Messaging[0]
	if m.Message == nil || m.Message.Mid == "" || m.Sender.ID == "" {
		return event.InboundEvent{}, fmt.Errorf("%w: missing sender or message id", event.ErrMalformedPayload)
	}

	e := event.InboundEvent{
		ExternalID: m.Message.Mid,
		SenderID:   m.Sender.ID,
		OccurredAt: occurredAt(en.Time, m.Timestamp),
		Text:       m.Message.Text,
	}
	if m.Message.ReplyTo != nil {
		e.ReplyToID = m.Message.ReplyTo.Mid
	}
	e.Attachment = pickAttachment(m.Message.Attachments)
	return e, nil
}

// pickAttachment returns the first reel or post, or the first attachment of
// any other type when there is none.
func pickAttachment(list []attachment) *event.Attachment {
	if len(list) == 0 {
		return nil
	}
	for _, a := range list {
		if a.Type == "ig_reel" || a.Type == "ig_post" {
			ref := a.Payload.ReelVideoID
			if ref == "" {
				ref = a.Payload.PostMediaID
			}
			return &event.Attachment{
				Kind:     event.AttachmentMedia,
				MediaRef: ref,
				Link:     a.Payload.URL,
				Title:    a.Payload.Title,
			}
		}
	}
	return &event.Attachment{Kind: event.AttachmentOther, Link: list[0].Payload.URL}
}

// occurredAt reads the entry time, which the platform sends in milliseconds,
// falling back to the messaging timestamp and then to now.
func occurredAt(entryTime json.Number, fallback int64) time.Time {
	ms, err := entryTime.Int64()
	if err != nil || ms <= 0 {
		ms = fallback
	}
	if ms <= 0 {
		return time.Now().UTC()
	}
	if ms < 1e12 {
		return time.Unix(ms, 0).UTC()
	}
	return time.UnixMilli(ms).UTC()
}
