package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"reelsync/backend/internal/event"
)

const (
	DefaultCaptionModel = "gemini-1.5-pro"

	CaptionPrompt = "With simple texts only and no `here you go...` or `following is:...` types of statements, " +
		"for each scene in this video, generate captions that describe the scene along with any spoken text " +
		"placed in quotation marks without timestamp. Provide your explanation. Only respond with what is asked " +
		"under 1000 characters. \nExample: A guy tasting something spicy and can't control his emotions and tears up."

	defaultMIMEType = "video/mp4"
	deleteTimeout   = 10 * time.Second
)

// fileBackend is the slice of the Gemini API the captioner needs.
type fileBackend interface {
	Upload(ctx context.Context, r io.Reader, mimeType string) (*genai.File, error)
	GetFile(ctx context.Context, name string) (*genai.File, error)
	DeleteFile(ctx context.Context, name string) error
	Generate(ctx context.Context, file *genai.File, prompt string) (string, error)
}

type CaptionerConfig struct {
	Model        string
	Timeout      time.Duration
	PollInterval time.Duration
}

type Captioner struct {
	backend    fileBackend
	httpClient *http.Client
	cfg        CaptionerConfig
}

func NewCaptioner(apiKey string, cfg CaptionerConfig, opts ...option.ClientOption) *Captioner {
	if cfg.Model == "" {
		cfg.Model = DefaultCaptionModel
	}
	return newCaptioner(&genaiFiles{holder: newClientHolder(apiKey, opts), model: cfg.Model}, http.DefaultClient, cfg)
}

func newCaptioner(b fileBackend, hc *http.Client, cfg CaptionerConfig) *Captioner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Captioner{backend: b, httpClient: hc, cfg: cfg}
}

// Describe captions the media behind mediaURL. The whole download, upload,
// processing and generation sequence is bounded by the configured timeout.
// Errors wrap event.ErrQuotaExceeded or event.ErrTransient.
func (c *Captioner) Describe(ctx context.Context, mediaURL string) (string, error) {
	if mediaURL == "" {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, mimeType, err := c.download(ctx, mediaURL)
	if err != nil {
		return "", classify(err)
	}
	defer body.Close()

	file, err := c.backend.Upload(ctx, body, mimeType)
	if err != nil {
		return "", classify(fmt.Errorf("upload: %w", err))
	}
	defer func() {
		delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deleteTimeout)
		defer cancel()
		if err := c.backend.DeleteFile(delCtx, file.Name); err != nil {
			slog.WarnContext(ctx, "failed to delete uploaded media", "file", file.Name, "error", err)
		}
	}()

	file, err = c.waitActive(ctx, file)
	if err != nil {
		return "", classify(err)
	}

	text, err := c.backend.Generate(ctx, file, CaptionPrompt)
	if err != nil {
		return "", classify(fmt.Errorf("generate: %w", err))
	}
	return strings.TrimSpace(text), nil
}

func (c *Captioner) download(ctx context.Context, mediaURL string) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("download: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, "", fmt.Errorf("download: unexpected status %d", resp.StatusCode)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" || strings.HasPrefix(mimeType, "application/octet-stream") {
		mimeType = defaultMIMEType
	}
	return resp.Body, mimeType, nil
}

func (c *Captioner) waitActive(ctx context.Context, file *genai.File) (*genai.File, error) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for file.State == genai.FileStateProcessing {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("media still processing: %w", ctx.Err())
		case <-ticker.C:
		}

		next, err := c.backend.GetFile(ctx, file.Name)
		if err != nil {
			return nil, fmt.Errorf("poll file: %w", err)
		}
		file = next
	}

	if file.State == genai.FileStateFailed {
		return nil, fmt.Errorf("media processing failed for %s", file.Name)
	}
	return file, nil
}

func (c *Captioner) Close() error {
	if closer, ok := c.backend.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// classify maps a Gemini or transport failure onto the event error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, event.ErrQuotaExceeded) || errors.Is(err, event.ErrTransient) {
		return err
	}

	// genai surfaces gRPC statuses; the REST transport surfaces googleapi errors.
	if status.Code(err) == codes.ResourceExhausted {
		return fmt.Errorf("%w: %w", event.ErrQuotaExceeded, err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w", event.ErrQuotaExceeded, err)
	}
	msg := err.Error()
	if strings.Contains(msg, "RESOURCE_EXHAUSTED") || strings.Contains(strings.ToLower(msg), "quota") {
		return fmt.Errorf("%w: %w", event.ErrQuotaExceeded, err)
	}
	return event.Transient(err)
}

type genaiFiles struct {
	holder *clientHolder
	model  string
}

func (g *genaiFiles) Upload(ctx context.Context, r io.Reader, mimeType string) (*genai.File, error) {
	client, err := g.holder.get(ctx)
	if err != nil {
		return nil, err
	}
	return client.UploadFile(ctx, "", r, &genai.UploadFileOptions{MIMEType: mimeType})
}

func (g *genaiFiles) GetFile(ctx context.Context, name string) (*genai.File, error) {
	client, err := g.holder.get(ctx)
	if err != nil {
		return nil, err
	}
	return client.GetFile(ctx, name)
}

func (g *genaiFiles) DeleteFile(ctx context.Context, name string) error {
	client, err := g.holder.get(ctx)
	if err != nil {
		return err
	}
	return client.DeleteFile(ctx, name)
}

func (g *genaiFiles) Generate(ctx context.Context, file *genai.File, prompt string) (string, error) {
	client, err := g.holder.get(ctx)
	if err != nil {
		return "", err
	}

	resp, err := client.GenerativeModel(g.model).GenerateContent(ctx,
		genai.FileData{MIMEType: file.MIMEType, URI: file.URI},
		genai.Text(prompt),
	)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		break
	}
	return sb.String(), nil
}

func (g *genaiFiles) Close() error {
	return g.holder.Close()
}
