package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"chem-assistant/internal/app"
	"chem-assistant/internal/chat"
	"chem-assistant/internal/httputil"
	"chem-assistant/internal/llm"
)

const healthMessage = "রসায়ন সহায়িকা চলছে!"

// askRequest is shared by the JSON and multipart endpoints.
type askRequest struct {
	SessionID string `json:"session_id" validate:"max=128"`
	Question  string `json:"question" validate:"max=8000"`
	Action    string `json:"action" validate:"omitempty,oneof=ask regenerate simplify"`
}

type askResponse struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
}

func main() {
	deps, err := app.Build()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Store.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", deps.Config.Port),
		Handler:           newRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		deps.Log.Info("assistant listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		deps.Log.Error("server stopped", "err", err)
		os.Exit(1)
	}
	deps.Log.Info("server stopped")
}

func newRouter(deps app.Deps) *chi.Mux {
	r := httputil.NewRouter(deps.Log, time.Duration(deps.Config.RequestTimeout)*time.Second)

	r.Get("/", indexHandler(deps))
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(deps.Config.StaticDir))))
	r.Post("/ask", askJSONHandler(deps))
	r.Post("/ask_bengali_chem", askFormHandler(deps))
	r.Get("/healthz", httputil.HealthHandler(healthMessage))
	r.Get("/health", httputil.HealthHandler(healthMessage))
	return r
}

func indexHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(deps.Config.StaticDir, "index.html")
		page, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			httputil.Fail(deps.Log, w, "Frontend interface not found.", err, http.StatusNotFound)
			return
		}
		if err != nil {
			httputil.Fail(deps.Log, w, "Server configuration error.", err, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if _, err := w.Write(page); err != nil {
			deps.Log.Warn("index write failed", "err", err)
		}
	}
}

func askJSONHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Fail(deps.Log, w, "invalid payload", err, http.StatusBadRequest)
			return
		}
		if err := httputil.Validator.Struct(&req); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}
		reply(deps, w, r, req, nil)
	}
}

func askFormHandler(deps app.Deps) http.HandlerFunc {
	maxUpload := deps.Config.MaxUploadSize

	return func(w http.ResponseWriter, r *http.Request) {
		// Leave room for the text fields around the image.
		r.Body = http.MaxBytesReader(w, r.Body, maxUpload+1<<20)
		if err := r.ParseMultipartForm(maxUpload); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxUpload), err, http.StatusRequestEntityTooLarge)
				return
			}
			httputil.Fail(deps.Log, w, "invalid form payload", err, http.StatusBadRequest)
			return
		}
		defer r.MultipartForm.RemoveAll()

		req := askRequest{
			SessionID: r.FormValue("session_id"),
			Question:  r.FormValue("question_text"),
			Action:    r.FormValue("action"),
		}
		if err := httputil.Validator.Struct(&req); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}

		img, err := readImage(r, maxUpload)
		if errors.Is(err, errFileTooLarge) {
			httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxUpload), err, http.StatusRequestEntityTooLarge)
			return
		}
		if err != nil {
			httputil.Fail(deps.Log, w, err.Error(), err, http.StatusBadRequest)
			return
		}
		// Images only accompany new questions.
		if req.Action != "" && req.Action != string(chat.ActionAsk) {
			img = nil
		}
		reply(deps, w, r, req, img)
	}
}

var errFileTooLarge = errors.New("image exceeds upload limit")

// readImage returns the optional image_file part; nil when absent.
func readImage(r *http.Request, maxUpload int64) (*llm.Image, error) {
	file, header, err := r.FormFile("image_file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("invalid image upload")
	}
	defer file.Close()

	if header.Size > maxUpload {
		return nil, fmt.Errorf("%w: %d bytes", errFileTooLarge, header.Size)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read image")
	}
	if len(data) == 0 {
		return nil, nil
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("unsupported file type (only images allowed)")
	}
	return &llm.Image{MIMEType: contentType, Data: data}, nil
}

func reply(deps app.Deps, w http.ResponseWriter, r *http.Request, req askRequest, img *llm.Image) {
	out, err := deps.Chat.Reply(r.Context(), chat.Input{
		SessionID: req.SessionID,
		Action:    chat.Action(req.Action),
		Question:  req.Question,
		Image:     img,
	})
	if err != nil {
		status, detail := replyFailure(err)
		httputil.Fail(deps.Log.With("session_id", req.SessionID), w, detail, err, status)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, askResponse{SessionID: out.SessionID, Answer: out.Answer})
}

// replyFailure maps service errors to a status and the detail shown to users.
func replyFailure(err error) (int, string) {
	switch {
	case errors.Is(err, chat.ErrEmptyQuestion):
		return http.StatusBadRequest, "প্রশ্ন খালি হতে পারে না (Question cannot be empty)."
	case errors.Is(err, chat.ErrUnknownAction):
		return http.StatusBadRequest, "অজানা অনুরোধ (Unknown action)."
	case errors.Is(err, chat.ErrSessionRequired):
		return http.StatusBadRequest, "পুনরায় তৈরি বা সহজ করার জন্য একটি সক্রিয় সেশন প্রয়োজন (Session ID is required for regenerate/simplify)."
	case errors.Is(err, chat.ErrNoPriorQuestion):
		return http.StatusNotFound, "পুনরায় তৈরি করার জন্য কোনও পূর্ববর্তী প্রশ্ন পাওয়া যায়নি। (No previous question found to regenerate.)"
	case errors.Is(err, chat.ErrNoPriorAnswer):
		return http.StatusNotFound, "সহজ করার জন্য কোনও পূর্ববর্তী উত্তর পাওয়া যায়নি। (No previous answer found to simplify.)"
	default:
		return http.StatusInternalServerError, "একটি অভ্যন্তরীণ সার্ভার ত্রুটি ঘটেছে: " + err.Error()
	}
}
