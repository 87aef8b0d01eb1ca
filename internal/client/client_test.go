package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chem-assistant/internal/session"
)

type recordingView struct {
	mu        sync.Mutex
	states    []State
	errors    []string
	answers   []string
	followUps []bool
	cleared   int
}

func (v *recordingView) SetState(s State) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.states = append(v.states, s)
}

func (v *recordingView) ShowError(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.errors = append(v.errors, msg)
}

func (v *recordingView) ShowAnswer(html string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.answers = append(v.answers, html)
}

func (v *recordingView) EnableFollowUps(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.followUps = append(v.followUps, enabled)
}

func (v *recordingView) ClearInput() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cleared++
}

// received is what the fake backend saw in one request.
type received struct {
	Path      string
	SessionID string
	Question  string
	Action    string
	ImageName string
	ImageType string
	Image     []byte
}

type fakeBackend struct {
	t        *testing.T
	mu       sync.Mutex
	requests []received
	respond  func(w http.ResponseWriter, n int)
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := received{Path: r.URL.Path}
	if r.URL.Path == multipartPath {
		assert.NoError(b.t, r.ParseMultipartForm(1<<20))
		rec.SessionID = r.FormValue("session_id")
		rec.Question = r.FormValue("question_text")
		rec.Action = r.FormValue("action")
		if f, h, err := r.FormFile("image_file"); err == nil {
			rec.ImageName = h.Filename
			rec.ImageType = h.Header.Get("Content-Type")
			rec.Image, _ = io.ReadAll(f)
			f.Close()
		}
	} else {
		var body jsonRequest
		assert.NoError(b.t, json.NewDecoder(r.Body).Decode(&body))
		rec.SessionID = body.SessionID
		rec.Question = body.Question
		rec.Action = string(body.Action)
	}

	b.mu.Lock()
	b.requests = append(b.requests, rec)
	n := len(b.requests)
	b.mu.Unlock()

	b.respond(w, n)
}

func (b *fakeBackend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

func (b *fakeBackend) request(i int) received {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[i]
}

func reply(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func newTestClient(t *testing.T, respond func(http.ResponseWriter, int), enc Encoding) (*Client, *fakeBackend, *recordingView) {
	t.Helper()
	backend := &fakeBackend{t: t, respond: respond}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	view := &recordingView{}
	c, err := New(context.Background(), Options{
		BaseURL:  srv.URL,
		Encoding: enc,
		View:     view,
	})
	require.NoError(t, err)
	return c, backend, view
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{"ask without text or image", Request{Action: ActionAsk}, ErrMissingInput},
		{"ask with blank text", Request{Action: ActionAsk, Question: "   \n"}, ErrMissingInput},
		{"regenerate before ask", Request{Action: ActionRegenerate}, ErrNoPriorQuestion},
		{"simplify before ask", Request{Action: ActionSimplify}, ErrNoPriorAnswer},
		{"unknown action", Request{Action: "translate", Question: "x"}, ErrUnknownAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, backend, view := newTestClient(t, func(w http.ResponseWriter, _ int) {
				reply(w, http.StatusOK, `{"answer":"unused"}`)
			}, EncodingMultipart)

			_, err := c.Submit(context.Background(), tt.req)

			require.ErrorIs(t, err, tt.wantErr)
			var verr *ValidationError
			assert.True(t, errors.As(err, &verr))
			assert.Equal(t, 0, backend.count(), "no network call expected")
			assert.Empty(t, view.states, "validation must not enter loading")
			assert.Equal(t, []string{verr.Message}, view.errors)
			assert.Equal(t, Idle, c.State())
		})
	}
}

func TestSubmitImageWithJSONEncoding(t *testing.T) {
	c, backend, _ := newTestClient(t, func(w http.ResponseWriter, _ int) {
		reply(w, http.StatusOK, `{"answer":"unused"}`)
	}, EncodingJSON)

	_, err := c.Submit(context.Background(), Request{
		Action: ActionAsk,
		Image:  &Attachment{Filename: "q.png", Data: []byte("png")},
	})
	require.ErrorIs(t, err, ErrImageUnsupported)
	assert.Equal(t, 0, backend.count())
}

func TestSubmitAskSuccess(t *testing.T) {
	c, backend, view := newTestClient(t, func(w http.ResponseWriter, _ int) {
		reply(w, http.StatusOK, `{"session_id":"s-1","answer":"**pH** is\n* a\n* b"}`)
	}, EncodingMultipart)

	ans, err := c.Submit(context.Background(), Request{Action: ActionAsk, Question: "  what is pH?  "})
	require.NoError(t, err)

	assert.Equal(t, "s-1", ans.SessionID)
	assert.Equal(t, "**pH** is\n* a\n* b", ans.Raw)
	assert.Equal(t, "<strong>pH</strong> is<br><ul><li>a</li><li>b</li></ul>", ans.HTML)
	assert.Equal(t, "s-1", c.SessionID())
	assert.Equal(t, Success, c.State())

	req := backend.request(0)
	assert.Equal(t, multipartPath, req.Path)
	assert.Equal(t, "", req.SessionID)
	assert.Equal(t, "what is pH?", req.Question)
	assert.Equal(t, "ask", req.Action)

	assert.Equal(t, []State{Loading, Success}, view.states)
	assert.Equal(t, []string{ans.HTML}, view.answers)
	assert.Equal(t, []bool{true}, view.followUps)
	assert.Equal(t, 1, view.cleared)
	assert.Empty(t, view.errors)
}

func TestSubmitSessionIdentifier(t *testing.T) {
	c, backend, _ := newTestClient(t, func(w http.ResponseWriter, n int) {
		switch n {
		case 1:
			reply(w, http.StatusOK, `{"session_id":"first","answer":"a1"}`)
		case 2:
			reply(w, http.StatusOK, `{"answer":"a2"}`)
		case 3:
			reply(w, http.StatusOK, `{"session_id":"second","answer":"a3"}`)
		default:
			reply(w, http.StatusOK, `{"answer":"a4"}`)
		}
	}, EncodingMultipart)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := c.Submit(ctx, Request{Action: ActionAsk, Question: "q"})
		require.NoError(t, err)
	}

	assert.Equal(t, "", backend.request(0).SessionID)
	assert.Equal(t, "first", backend.request(1).SessionID)
	assert.Equal(t, "first", backend.request(2).SessionID, "missing session_id keeps the held value")
	assert.Equal(t, "second", backend.request(3).SessionID)
	assert.Equal(t, "second", c.SessionID())
}

func TestSubmitFollowUpsResendLastQuestion(t *testing.T) {
	for _, enc := range []Encoding{EncodingMultipart, EncodingJSON} {
		t.Run(string(enc), func(t *testing.T) {
			c, backend, view := newTestClient(t, func(w http.ResponseWriter, n int) {
				reply(w, http.StatusOK, `{"session_id":"s","answer":"answer"}`)
			}, enc)
			ctx := context.Background()

			_, err := c.Submit(ctx, Request{Action: ActionAsk, Question: "why is the sky blue?"})
			require.NoError(t, err)
			_, err = c.Submit(ctx, Request{Action: ActionRegenerate, Question: "ignored"})
			require.NoError(t, err)
			_, err = c.Submit(ctx, Request{Action: ActionSimplify})
			require.NoError(t, err)

			require.Equal(t, 3, backend.count())
			assert.Equal(t, enc.path(), backend.request(1).Path)
			assert.Equal(t, "regenerate", backend.request(1).Action)
			assert.Equal(t, "why is the sky blue?", backend.request(1).Question)
			assert.Equal(t, "s", backend.request(1).SessionID)
			assert.Equal(t, "simplify", backend.request(2).Action)
			assert.Equal(t, "why is the sky blue?", backend.request(2).Question)
			assert.Equal(t, 1, view.cleared, "only ask clears the input")
		})
	}
}

func TestSubmitSendsImageOnlyForAsk(t *testing.T) {
	c, backend, _ := newTestClient(t, func(w http.ResponseWriter, _ int) {
		reply(w, http.StatusOK, `{"session_id":"s","answer":"ok"}`)
	}, EncodingMultipart)
	ctx := context.Background()
	img := &Attachment{Filename: `mol"ecule.png`, ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}

	_, err := c.Submit(ctx, Request{Action: ActionAsk, Image: img})
	require.NoError(t, err)
	_, err = c.Submit(ctx, Request{Action: ActionRegenerate, Image: img})
	require.NoError(t, err)

	first := backend.request(0)
	assert.Equal(t, `mol"ecule.png`, first.ImageName)
	assert.Equal(t, "image/png", first.ImageType)
	assert.Equal(t, img.Data, first.Image)
	assert.Empty(t, first.Question)
	assert.Nil(t, backend.request(1).Image)
}

func TestSubmitHTTPError(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantDetail string
	}{
		{"detail string", http.StatusInternalServerError, `{"detail":"boom"}`, "boom"},
		{"malformed body", http.StatusBadGateway, `<html>bad gateway</html>`, msgUnknownError},
		{"missing detail", http.StatusNotFound, `{}`, "Failed to get response."},
		{"structured detail", http.StatusUnprocessableEntity, `{"detail":[{"msg":"x"}]}`, `[{"msg":"x"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, view := newTestClient(t, func(w http.ResponseWriter, n int) {
				if n == 1 {
					reply(w, http.StatusOK, `{"session_id":"keep","answer":"first"}`)
					return
				}
				reply(w, tt.status, tt.body)
			}, EncodingMultipart)
			ctx := context.Background()

			_, err := c.Submit(ctx, Request{Action: ActionAsk, Question: "q1"})
			require.NoError(t, err)
			_, err = c.Submit(ctx, Request{Action: ActionAsk, Question: "q2"})

			var herr *HTTPError
			require.ErrorAs(t, err, &herr)
			assert.Equal(t, tt.status, herr.Status)
			assert.Equal(t, tt.wantDetail, herr.Detail)

			assert.Equal(t, Error, c.State())
			assert.Equal(t, "keep", c.SessionID())
			assert.Equal(t, []State{Loading, Success, Loading, Error}, view.states)
			require.Len(t, view.errors, 1)
			assert.Equal(t, UserMessage(err), view.errors[0])
			assert.Equal(t, 1, view.cleared, "failed ask keeps the input")

			last, ok := c.session.LastExchange()
			require.True(t, ok)
			assert.Equal(t, "q1", last.Question, "failed ask must not replace the cached question")
		})
	}
}

func TestUserMessageContainsStatusAndDetail(t *testing.T) {
	msg := UserMessage(&HTTPError{Status: 500, Detail: "boom"})
	assert.Contains(t, msg, "500")
	assert.Contains(t, msg, "boom")
}

func TestSubmitSuccessWithoutAnswer(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, _ int) {
		reply(w, http.StatusOK, `{"session_id":"s"}`)
	}, EncodingMultipart)

	_, err := c.Submit(context.Background(), Request{Action: ActionAsk, Question: "q"})

	var herr *HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, http.StatusOK, herr.Status)
	assert.Equal(t, "", c.SessionID())
	assert.Equal(t, Error, c.State())
}

func TestSubmitTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	view := &recordingView{}
	c, err := New(context.Background(), Options{BaseURL: url, View: view})
	require.NoError(t, err)

	_, err = c.Submit(context.Background(), Request{Action: ActionAsk, Question: "q"})

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, Error, c.State())
	assert.Equal(t, []State{Loading, Error}, view.states)
	assert.Equal(t, []string{msgConnection}, view.errors)
	assert.Equal(t, []bool{false}, view.followUps)
	assert.Equal(t, "", c.SessionID())
}

func TestSubmitBusy(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		close(entered)
		<-release
		reply(w, http.StatusOK, `{"answer":"done"}`)
	}))
	defer srv.Close()

	c, err := New(context.Background(), Options{BaseURL: srv.URL})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), Request{Action: ActionAsk, Question: "first"})
		done <- err
	}()

	<-entered
	assert.Equal(t, Loading, c.State())
	_, err = c.Submit(context.Background(), Request{Action: ActionAsk, Question: "second"})
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, Success, c.State())
}

func TestSessionStorePersistence(t *testing.T) {
	st := new(session.MockStore)
	st.On("Load", mock.Anything).Return("stored", nil).Once()
	st.On("Save", mock.Anything, "fresh").Return(errors.New("redis down")).Once()

	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		seen = append(seen, r.FormValue("session_id"))
		reply(w, http.StatusOK, `{"session_id":"fresh","answer":"a"}`)
	}))
	defer srv.Close()

	c, err := New(context.Background(), Options{BaseURL: srv.URL, Sessions: st})
	require.NoError(t, err)
	assert.Equal(t, "stored", c.SessionID())

	_, err = c.Submit(context.Background(), Request{Action: ActionAsk, Question: "q"})
	require.NoError(t, err, "a failed save must not fail the request")
	_, err = c.Submit(context.Background(), Request{Action: ActionAsk, Question: "q"})
	require.NoError(t, err)

	assert.Equal(t, []string{"stored", "fresh"}, seen)
	st.AssertExpectations(t)
}

func TestNewRejectsBadOptions(t *testing.T) {
	_, err := New(context.Background(), Options{BaseURL: "not a url"})
	assert.Error(t, err)

	_, err = New(context.Background(), Options{BaseURL: "http://localhost:8000", Encoding: "xml"})
	assert.Error(t, err)

	st := new(session.MockStore)
	st.On("Load", mock.Anything).Return("", errors.New("unavailable")).Once()
	_, err = New(context.Background(), Options{BaseURL: "http://localhost:8000", Sessions: st})
	assert.Error(t, err)
}
