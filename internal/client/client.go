// Package client submits questions to the assistant backend and tracks the
// loading/error/success lifecycle of each submission.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"chem-assistant/internal/format"
	"chem-assistant/internal/session"
)

// Action is the kind of request sent to the backend.
type Action string

const (
	ActionAsk        Action = "ask"
	ActionRegenerate Action = "regenerate"
	ActionSimplify   Action = "simplify"
)

func (a Action) Valid() bool {
	switch a {
	case ActionAsk, ActionRegenerate, ActionSimplify:
		return true
	}
	return false
}

// Attachment is an image sent along with a new question.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

func (a *Attachment) contentType() string {
	if a.ContentType != "" {
		return a.ContentType
	}
	return http.DetectContentType(a.Data)
}

// Request is one user action. Question and Image only matter for ActionAsk.
type Request struct {
	Action   Action
	Question string
	Image    *Attachment
}

// Answer is a successful response. HTML is the formatted fragment of Raw.
type Answer struct {
	SessionID string
	Raw       string
	HTML      string
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Encoding   Encoding
	HTTPClient *http.Client
	View       View
	Sessions   session.Store
	Log        *slog.Logger
}

// Client is the request orchestrator. It allows a single submission in flight.
type Client struct {
	endpoint string
	encoding Encoding
	http     *http.Client
	view     View
	store    session.Store
	log      *slog.Logger
	session  *session.State

	mu       sync.Mutex
	status   State
	answered bool
}

// New builds a client and restores the persisted session identifier.
func New(ctx context.Context, opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", opts.BaseURL)
	}
	if opts.Encoding == "" {
		opts.Encoding = EncodingMultipart
	}
	if !opts.Encoding.Valid() {
		return nil, fmt.Errorf("invalid encoding: %s (valid options: multipart, json)", opts.Encoding)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.View == nil {
		opts.View = NopView{}
	}
	if opts.Sessions == nil {
		opts.Sessions = session.NewMemoryStore()
	}
	if opts.Log == nil {
		opts.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	id, err := opts.Sessions.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load session id: %w", err)
	}

	return &Client{
		endpoint: strings.TrimRight(base.String(), "/") + opts.Encoding.path(),
		encoding: opts.Encoding,
		http:     opts.HTTPClient,
		view:     opts.View,
		store:    opts.Sessions,
		log:      opts.Log,
		session:  session.NewState(id),
	}, nil
}

func (c *Client) SessionID() string {
	return c.session.ID()
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Submit validates req, sends it and feeds the answer through the formatter.
// Errors are *ValidationError, *HTTPError, *TransportError or ErrBusy; none of
// them change the session state.
func (c *Client) Submit(ctx context.Context, req Request) (Answer, error) {
	c.mu.Lock()
	if c.status == Loading {
		c.mu.Unlock()
		return Answer{}, ErrBusy
	}
	p, err := c.prepare(req)
	if err != nil {
		c.mu.Unlock()
		c.view.ShowError(UserMessage(err))
		return Answer{}, err
	}
	c.status = Loading
	c.mu.Unlock()
	c.view.SetState(Loading)

	outcome := Error
	defer func() { c.finish(outcome) }()

	log := c.log.With("action", p.Action, "session_id", p.SessionID)
	log.Debug("submitting request")

	raw, sessionID, err := c.roundTrip(ctx, p)
	if err != nil {
		log.Debug("request failed", "err", err)
		c.view.ShowError(UserMessage(err))
		return Answer{}, err
	}

	if c.session.Adopt(sessionID) {
		if err := c.store.Save(ctx, sessionID); err != nil {
			log.Warn("failed to persist session id", "err", err)
		}
	}
	if p.Action == ActionAsk {
		c.session.Remember(p.Question, raw)
	}

	html := format.Format(raw)
	c.mu.Lock()
	c.answered = true
	c.mu.Unlock()

	c.view.ShowAnswer(html)
	if p.Action == ActionAsk {
		c.view.ClearInput()
	}
	outcome = Success
	return Answer{SessionID: c.session.ID(), Raw: raw, HTML: html}, nil
}

// prepare checks preconditions and builds the payload without touching the network.
func (c *Client) prepare(req Request) (payload, error) {
	p := payload{SessionID: c.session.ID(), Action: req.Action}
	switch req.Action {
	case ActionAsk:
		p.Question = strings.TrimSpace(req.Question)
		if p.Question == "" && req.Image == nil {
			return payload{}, ErrMissingInput
		}
		if req.Image != nil {
			if c.encoding == EncodingJSON {
				return payload{}, ErrImageUnsupported
			}
			p.Image = req.Image
		}
	case ActionRegenerate:
		last, ok := c.session.LastExchange()
		if !ok {
			return payload{}, ErrNoPriorQuestion
		}
		p.Question = last.Question
	case ActionSimplify:
		last, ok := c.session.LastExchange()
		if !ok || last.Answer == "" {
			return payload{}, ErrNoPriorAnswer
		}
		p.Question = last.Question
	default:
		return payload{}, ErrUnknownAction
	}
	return p, nil
}

type answerResponse struct {
	Answer    *string `json:"answer"`
	SessionID string  `json:"session_id"`
}

func (c *Client) roundTrip(ctx context.Context, p payload) (string, string, error) {
	body, contentType, err := c.encoding.encode(p)
	if err != nil {
		return "", "", &TransportError{Err: fmt.Errorf("encode request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return "", "", &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", &TransportError{Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", "", &HTTPError{Status: resp.StatusCode, Detail: errorDetail(data)}
	}

	var out answerResponse
	if err := json.Unmarshal(data, &out); err != nil || out.Answer == nil {
		return "", "", &HTTPError{Status: resp.StatusCode, Detail: msgUnknownError}
	}
	return *out.Answer, out.SessionID, nil
}

// errorDetail extracts the "detail" field of an error body. Non-string details
// (such as validation error lists) are passed through as JSON text.
func errorDetail(body []byte) string {
	var parsed struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return msgUnknownError
	}
	if len(parsed.Detail) == 0 || string(parsed.Detail) == "null" {
		return "Failed to get response."
	}
	var s string
	if err := json.Unmarshal(parsed.Detail, &s); err == nil {
		if s == "" {
			return "Failed to get response."
		}
		return s
	}
	return string(parsed.Detail)
}

// finish leaves Loading; it runs on every path out of Submit.
func (c *Client) finish(outcome State) {
	c.mu.Lock()
	c.status = outcome
	answered := c.answered
	c.mu.Unlock()

	c.view.SetState(outcome)
	c.view.EnableFollowUps(answered)
}
