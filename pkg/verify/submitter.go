package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/teslashibe/go-attend/internal/httpc"
	"github.com/teslashibe/go-attend/internal/log"
	"github.com/teslashibe/go-attend/pkg/admission"
	"github.com/teslashibe/go-attend/pkg/auth"
	"github.com/teslashibe/go-attend/pkg/metrics"
)

// Config holds submitter settings.
type Config struct {
	BaseURL   string        // Attendance backend, e.g. http://localhost:8000
	Path      string        // Endpoint path (default /users/attendance)
	FieldName string        // Multipart field carrying the image
	Timeout   time.Duration // Bound on the whole request
}

// DefaultConfig returns the backend's stock endpoint settings.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		Path:      "/users/attendance",
		FieldName: "face_image",
		Timeout:   15 * time.Second,
	}
}

// Request is one still to submit.
type Request struct {
	Image       []byte
	Filename    string // default face.jpg
	ContentType string // default image/jpeg

	// Admission is the stabilized state at the moment of capture.
	Admission admission.State

	// FaceCount is the best known face count for the still. When Counted
	// is true it came from running detection on the still itself.
	FaceCount int
	Counted   bool
}

// Submitter posts captured stills to the attendance endpoint.
type Submitter struct {
	cfg       Config
	tokens    auth.TokenSource
	http      *http.Client
	logger    *slog.Logger
	refreshes *Counter
}

// Option configures a Submitter.
type Option func(*Submitter)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Submitter) { s.http = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Submitter) { s.logger = l }
}

// WithCounter shares an existing refresh counter.
func WithCounter(c *Counter) Option {
	return func(s *Submitter) { s.refreshes = c }
}

// NewSubmitter creates a submitter that authenticates with tokens.
func NewSubmitter(cfg Config, tokens auth.TokenSource, opts ...Option) *Submitter {
	def := DefaultConfig(cfg.BaseURL)
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	if cfg.FieldName == "" {
		cfg.FieldName = def.FieldName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	s := &Submitter{
		cfg:       cfg,
		tokens:    tokens,
		http:      httpc.Client,
		logger:    log.L(),
		refreshes: &Counter{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "verify")
	return s
}

// Refreshes returns the counter bumped after every successful submission.
func (s *Submitter) Refreshes() *Counter {
	return s.refreshes
}

// Submit runs the final checks and, if they pass, makes exactly one
// attendance request. It never retries.
func (s *Submitter) Submit(ctx context.Context, req Request) Outcome {
	start := time.Now()
	out := s.submit(ctx, req)
	metrics.RecordSubmission(string(out.Kind), time.Since(start).Seconds())

	if out.Success {
		n := s.refreshes.Inc()
		s.logger.Info("attendance recorded", "time", out.Timestamp, "refresh", n)
	} else {
		s.logger.Warn("attendance not recorded", "kind", out.Kind, "error", out.Err)
	}
	return out
}

func (s *Submitter) submit(ctx context.Context, req Request) Outcome {
	if req.Admission == admission.MultiFace {
		return MultiFace(req.FaceCount)
	}
	if req.Counted {
		switch {
		case req.FaceCount > 1:
			return MultiFace(req.FaceCount)
		case req.FaceCount == 0:
			return NoFace()
		}
	}
	if len(req.Image) == 0 {
		return CaptureFailed(errors.New("verify: empty image"))
	}

	var token string
	if s.tokens != nil {
		t, err := s.tokens.Token(ctx)
		if err != nil && !errors.Is(err, auth.ErrNoToken) {
			return failure(KindSessionExpired, MsgSessionExpired, err)
		}
		token = t
	}
	if token == "" {
		return failure(KindSessionExpired, MsgSessionExpired, ErrNoToken)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	httpReq, err := s.newRequest(ctx, req, token)
	if err != nil {
		return failure(KindTransport, MsgTransport, err)
	}

	resp, err := s.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return failure(KindTransport, MsgTimeout, fmt.Errorf("verify: request timed out: %w", err))
		}
		return failure(KindTransport, MsgTransport, fmt.Errorf("verify: request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return failure(KindTransport, MsgTransport, fmt.Errorf("verify: read response: %w", err))
	}

	return decodeResponse(resp.StatusCode, body)
}

func (s *Submitter) newRequest(ctx context.Context, req Request, token string) (*http.Request, error) {
	filename := req.Filename
	if filename == "" {
		filename = "face.jpg"
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, s.cfg.FieldName, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("verify: create part: %w", err)
	}
	if _, err := part.Write(req.Image); err != nil {
		return nil, fmt.Errorf("verify: write part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("verify: close multipart: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+s.cfg.Path, &buf)
	if err != nil {
		return nil, fmt.Errorf("verify: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")
	return httpReq, nil
}

// decodeResponse maps an attendance response to an Outcome.
func decodeResponse(status int, body []byte) Outcome {
	if status >= 200 && status <= 299 {
		var ok struct {
			Time string `json:"time"`
		}
		_ = json.Unmarshal(body, &ok)
		return success(ok.Time)
	}

	rerr := &RemoteError{StatusCode: status, Detail: detail(body)}
	if rerr.IsUnauthorized() {
		return failure(KindSessionExpired, MsgSessionExpired, rerr)
	}

	msg := rerr.Detail
	if msg == "" {
		msg = MsgRejected
	}
	return failure(KindRemoteRejected, msg, rerr)
}

// detail extracts a human-readable detail string. Validation errors come
// back as a list of objects with a msg field.
func detail(body []byte) string {
	var e struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(body, &e) != nil || len(e.Detail) == 0 {
		return ""
	}

	var s string
	if json.Unmarshal(e.Detail, &s) == nil {
		return strings.TrimSpace(s)
	}

	var list []struct {
		Msg string `json:"msg"`
	}
	if json.Unmarshal(e.Detail, &list) == nil {
		msgs := make([]string, 0, len(list))
		for _, item := range list {
			if item.Msg != "" {
				msgs = append(msgs, item.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
