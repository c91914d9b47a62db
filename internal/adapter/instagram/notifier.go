package instagram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"reelsync/backend/internal/credential"
	"reelsync/backend/internal/event"
	"reelsync/backend/internal/text"
)

const (
	DefaultBaseURL    = "https://graph.instagram.com/v22.0"
	DefaultChunkDelay = 300 * time.Millisecond

	ReactionLove = "love"
)

var ErrCredentialExpired = errors.New("access token expired")

type Config struct {
	BaseURL    string
	ChunkSize  int
	ChunkDelay time.Duration
}

// Notifier sends messages back to a sender through the Instagram messaging
// API. Long texts are split and paced per recipient.
type Notifier struct {
	cfg        Config
	creds      credential.Source
	httpClient *http.Client
	limiters   *cache.Cache
	now        func() time.Time
}

func NewNotifier(cfg Config, creds credential.Source, hc *http.Client) *Notifier {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = text.DefaultMaxRunes
	}
	if cfg.ChunkDelay < 0 {
		cfg.ChunkDelay = 0
	}
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Notifier{
		cfg:        cfg,
		creds:      creds,
		httpClient: hc,
		limiters:   cache.New(10*time.Minute, 20*time.Minute),
		now:        time.Now,
	}
}

type recipient struct {
	ID string `json:"id"`
}

type attachment struct {
	Type    string            `json:"type"`
	Payload map[string]string `json:"payload"`
}

type outMessage struct {
	Text       string      `json:"text,omitempty"`
	Attachment *attachment `json:"attachment,omitempty"`
}

type sendRequest struct {
	Recipient    recipient         `json:"recipient"`
	Message      *outMessage       `json:"message,omitempty"`
	SenderAction string            `json:"sender_action,omitempty"`
	Payload      map[string]string `json:"payload,omitempty"`
}

// Notify sends body to senderID, split into chunks of at most ChunkSize runes.
// Chunks go out in order with at least ChunkDelay between them.
func (n *Notifier) Notify(ctx context.Context, senderID, body string) error {
	parts := text.SplitMessage(body, n.cfg.ChunkSize)
	if len(parts) == 0 {
		return nil
	}

	limiter := n.limiter(senderID)
	for i, part := range parts {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("notify pacing: %w", err)
		}
		req := sendRequest{Recipient: recipient{ID: senderID}, Message: &outMessage{Text: part}}
		if err := n.send(ctx, req); err != nil {
			return fmt.Errorf("send chunk %d of %d: %w", i+1, len(parts), err)
		}
	}
	slog.DebugContext(ctx, "notification sent", "chunks", len(parts))
	return nil
}

func (n *Notifier) React(ctx context.Context, senderID, externalID, reaction string) error {
	if reaction == "" {
		reaction = ReactionLove
	}
	return n.send(ctx, sendRequest{
		Recipient:    recipient{ID: senderID},
		SenderAction: "react",
		Payload:      map[string]string{"message_id": externalID, "reaction": reaction},
	})
}

// SendMedia replies with the media behind link.
func (n *Notifier) SendMedia(ctx context.Context, senderID, link string) error {
	return n.send(ctx, sendRequest{
		Recipient: recipient{ID: senderID},
		Message: &outMessage{Attachment: &attachment{
			Type:    "video",
			Payload: map[string]string{"url": link},
		}},
	})
}

func (n *Notifier) limiter(senderID string) *rate.Limiter {
	if v, ok := n.limiters.Get(senderID); ok {
		return v.(*rate.Limiter)
	}
	var l *rate.Limiter
	if n.cfg.ChunkDelay == 0 {
		l = rate.NewLimiter(rate.Inf, 1)
	} else {
		l = rate.NewLimiter(rate.Every(n.cfg.ChunkDelay), 1)
	}
	if err := n.limiters.Add(senderID, l, cache.DefaultExpiration); err != nil {
		// Lost the race to another goroutine; use its limiter.
		if v, ok := n.limiters.Get(senderID); ok {
			return v.(*rate.Limiter)
		}
	}
	return l
}

func (n *Notifier) token(ctx context.Context) (string, error) {
	cred, err := n.creds.Latest(ctx)
	if err != nil {
		return "", fmt.Errorf("load credential: %w", err)
	}
	if cred.Expired(n.now()) {
		return "", fmt.Errorf("%w at %s", ErrCredentialExpired, cred.ExpiresAt.Format(time.RFC3339))
	}
	return cred.AccessToken, nil
}

func (n *Notifier) send(ctx context.Context, payload sendRequest) error {
	token, err := n.token(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.BaseURL+"/me/messages", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return event.Transient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("graph api status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return event.Transient(err)
		}
		return err
	}
	return nil
}
