package event

import (
	"time"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindText
	KindAttachment
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindAttachment:
		return "attachment"
	default:
		return "unknown"
	}
}

const (
	AttachmentMedia = "media"
	AttachmentOther = "other"
)

type Attachment struct {
	Kind     string `json:"kind"`
	MediaRef string `json:"media_ref"`
	Link     string `json:"link"`
	Title    string `json:"title,omitempty"`
}

// InboundEvent is one normalized message notification. ExternalID is the
// platform-assigned message id and the deduplication key.
type InboundEvent struct {
	ExternalID string      `json:"external_id"`
	SenderID   string      `json:"sender_id"`
	OccurredAt time.Time   `json:"occurred_at"`
	Text       string      `json:"text,omitempty"`
	ReplyToID  string      `json:"reply_to_id,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

// Kind reports the payload shape. Text wins over an attachment when both are set.
func (e InboundEvent) Kind() Kind {
	switch {
	case e.Text != "":
		return KindText
	case e.Attachment != nil:
		return KindAttachment
	default:
		return KindUnknown
	}
}

type Category string

const (
	CategorySearch      Category = "search"
	CategoryAnnotation  Category = "annotation"
	CategoryMedia       Category = "media"
	CategoryFailedQuota Category = "failed_quota"
)

type ProcessedRecord struct {
	ExternalID string    `json:"external_id"`
	Category   Category  `json:"category"`
	Timestamp  time.Time `json:"timestamp"`
}

type PendingAnnotation struct {
	SenderID  string    `json:"sender_id"`
	MediaRef  string    `json:"media_ref"`
	Title     string    `json:"title,omitempty"`
	Link      string    `json:"link"`
	EventID   string    `json:"event_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Credential struct {
	AccessToken string    `json:"-"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	TokenType   string    `json:"token_type"`
}

func (c Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}
