// Package chat keeps per-session conversation memory and turns ask,
// regenerate and simplify actions into prompts for the language model.
package chat

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"chem-assistant/internal/llm"
	"chem-assistant/internal/retry"
)

// Action is the operation requested by the client.
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

var (
	ErrUnknownAction   = errors.New("unknown action")
	ErrEmptyQuestion   = errors.New("question cannot be empty")
	ErrSessionRequired = errors.New("session id is required for regenerate/simplify")
	ErrNoPriorQuestion = errors.New("no previous question found to regenerate")
	ErrNoPriorAnswer   = errors.New("no previous answer found to simplify")
	ErrGeneration      = errors.New("answer generation failed")
)

const (
	regeneratePrompt = "পূর্ববর্তী প্রশ্নের (%s) উত্তরটি পুনরায় তৈরি করুন।"
	simplifyPrompt   = "আমার আগের প্রশ্নের উত্তরটি (%s) আরও সহজ করে বুঝিয়ে দিন।"
	blockedAnswer    = "দুঃখিত, আমি এই মুহূর্তে উত্তর দিতে পারছি না (%s)। আপনি কি অন্যভাবে জিজ্ঞাসা করতে পারেন?"
)

const lockStripes = 64

// Input is one client request.
type Input struct {
	SessionID string
	Action    Action
	Question  string
	Image     *llm.Image
}

// Reply is returned to the client; SessionID is always set.
type Reply struct {
	SessionID string
	Answer    string
}

// Options tunes a Service. Zero values pick defaults.
type Options struct {
	HistoryLimit int
	Retries      int
	RetryBase    time.Duration
	Log          *slog.Logger
	NewID        func() string
	Now          func() time.Time
}

// Service answers questions within a session.
type Service struct {
	store        Store
	llm          llm.Client
	historyLimit int
	attempts     int
	retryBase    time.Duration
	log          *slog.Logger
	newID        func() string
	now          func() time.Time

	// Requests for the same session are serialized through one stripe.
	locks [lockStripes]sync.Mutex
}

func NewService(store Store, client llm.Client, opts Options) *Service {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 20
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 500 * time.Millisecond
	}
	if opts.Log == nil {
		opts.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewString() }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:        store,
		llm:          client,
		historyLimit: opts.HistoryLimit,
		attempts:     opts.Retries + 1,
		retryBase:    opts.RetryBase,
		log:          opts.Log,
		newID:        opts.NewID,
		now:          opts.Now,
	}
}

// Reply runs one action against the session's conversation.
func (s *Service) Reply(ctx context.Context, in Input) (Reply, error) {
	action := in.Action
	if action == "" {
		action = ActionAsk
	}
	if !action.Valid() {
		return Reply{}, ErrUnknownAction
	}
	question := strings.TrimSpace(in.Question)
	if action == ActionAsk && question == "" && in.Image == nil {
		return Reply{}, ErrEmptyQuestion
	}

	sessionID := in.SessionID
	if sessionID == "" {
		if action != ActionAsk {
			return Reply{}, ErrSessionRequired
		}
		sessionID = s.newID()
		s.log.Info("started new session", "session_id", sessionID)
	}
	log := s.log.With("session_id", sessionID, "action", action)

	mu := s.lockFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	conv, err := s.store.Get(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		if in.SessionID != "" {
			log.Warn("session not found, starting new conversation")
		}
		conv = &Conversation{SessionID: sessionID}
	} else if err != nil {
		return Reply{}, fmt.Errorf("load conversation: %w", err)
	}

	prompt := llm.Prompt{}
	switch action {
	case ActionAsk:
		prompt.Text = question
		prompt.Image = in.Image
		if prompt.Text == "" {
			prompt.Text = llm.DefaultImagePrompt
		}
		conv.LastQuestion = prompt.Text
		conv.LastImage = in.Image
	case ActionRegenerate:
		original := conv.LastQuestion
		prompt.Image = conv.LastImage
		if original == "" {
			// The client resends its cached question; use it when our memory is gone.
			original = question
			prompt.Image = nil
		}
		if original == "" {
			return Reply{}, ErrNoPriorQuestion
		}
		conv.LastQuestion = original
		prompt.Text = fmt.Sprintf(regeneratePrompt, original)
		log.Info("regenerating answer", "question", truncate(original, 100))
	case ActionSimplify:
		if conv.LastAnswer == "" {
			return Reply{}, ErrNoPriorAnswer
		}
		prompt.Text = fmt.Sprintf(simplifyPrompt, conv.LastAnswer)
		log.Info("simplifying previous answer")
	}

	log.Info("sending message", "prompt", truncate(prompt.Text, 100), "image", prompt.Image != nil)
	completion, err := s.complete(ctx, conv.History, prompt)
	if err != nil {
		log.Error("answer generation failed", "err", err)
		return Reply{}, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	answer := completion.Text
	if strings.TrimSpace(answer) == "" {
		reason := completion.FinishReason
		if reason == "" {
			reason = "UNKNOWN_REASON"
		}
		log.Warn("response potentially blocked", "finish_reason", reason)
		answer = fmt.Sprintf(blockedAnswer, reason)
	} else {
		if action == ActionAsk {
			conv.LastAnswer = answer
		}
		conv.History = s.trim(append(conv.History,
			llm.Message{Role: llm.RoleUser, Content: prompt.Text},
			llm.Message{Role: llm.RoleAssistant, Content: answer},
		))
	}
	conv.UpdatedAt = s.now()

	if err := s.store.Save(ctx, conv); err != nil {
		return Reply{}, fmt.Errorf("save conversation: %w", err)
	}
	log.Debug("conversation saved", "history_len", len(conv.History))
	return Reply{SessionID: sessionID, Answer: answer}, nil
}

func (s *Service) complete(ctx context.Context, history []llm.Message, prompt llm.Prompt) (llm.Completion, error) {
	var out llm.Completion
	err := retry.Do(ctx, s.attempts, s.retryBase, func(ctx context.Context) error {
		var err error
		out, err = s.llm.Complete(ctx, history, prompt)
		return err
	})
	return out, err
}

// trim keeps the most recent turns, dropping whole user/assistant pairs.
func (s *Service) trim(history []llm.Message) []llm.Message {
	limit := s.historyLimit
	if limit%2 == 1 {
		limit++
	}
	if len(history) <= limit {
		return history
	}
	return append([]llm.Message(nil), history[len(history)-limit:]...)
}

func (s *Service) lockFor(sessionID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return &s.locks[h.Sum32()%lockStripes]
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
