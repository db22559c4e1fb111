package api

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Channels the UI surface broadcasts on.
const (
	ChannelUIMessage  = "ui.message"
	ChannelUIQuestion = "ui.question"
	ChannelUIProgress = "ui.progress"
	ChannelUINavigate = "ui.navigate"
	ChannelEditor     = "editor.change"
	ChannelSession    = "session.status"
)

// UI surface errors.
var (
	// ErrPromptNotFound is returned when answering a question that is not pending.
	ErrPromptNotFound = errors.New("api: prompt not found")

	// ErrPromptExpired is returned by ShowQuestion when nobody answers in time.
	ErrPromptExpired = errors.New("api: prompt expired")

	// ErrProgressNotFound is returned when cancelling a progress that is not running.
	ErrProgressNotFound = errors.New("api: progress not found")

	// ErrProgressNotCancellable is returned when cancelling a progress that does not allow it.
	ErrProgressNotCancellable = errors.New("api: progress cannot be cancelled")
)

// Progress states.
const (
	ProgressRunning   = "running"
	ProgressDone      = "done"
	ProgressFailed    = "failed"
	ProgressCancelled = "cancelled"
)

// defaultPromptTimeout applies when the surface is built without one.
const defaultPromptTimeout = 2 * time.Minute

// Broadcaster pushes events to connected clients. *Hub satisfies it.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Message is a notice shown to the user.
type Message struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Prompt is a yes/no question waiting for an answer.
type Prompt struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Question  string    `json:"question"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`

	// Set on the broadcast that closes the prompt.
	Answered bool  `json:"answered,omitempty"`
	Answer   *bool `json:"answer,omitempty"`
}

// Progress is a long-running operation shown to the user.
type Progress struct {
	ID          string    `json:"id"`
	Message     string    `json:"message"`
	Cancellable bool      `json:"cancellable"`
	State       string    `json:"state"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
}

type pendingPrompt struct {
	prompt Prompt
	answer chan bool
}

type runningProgress struct {
	progress Progress
	cancel   context.CancelFunc
}

// UISurface is the user interaction surface for remote clients. Dialogs
// and progress indicators are broadcast to websocket clients; questions
// block until a client answers them over REST or the socket.
//
// It satisfies creation.Dialogs, creation.Navigator and play.Surface.
type UISurface struct {
	hub     Broadcaster
	timeout time.Duration

	mu       sync.Mutex
	prompts  map[string]*pendingPrompt
	progress map[string]*runningProgress
}

// NewUISurface creates a surface broadcasting through hub. Questions left
// unanswered for promptTimeout fail with ErrPromptExpired.
func NewUISurface(hub Broadcaster, promptTimeout time.Duration) *UISurface {
	if promptTimeout <= 0 {
		promptTimeout = defaultPromptTimeout
	}
	return &UISurface{
		hub:      hub,
		timeout:  promptTimeout,
		prompts:  make(map[string]*pendingPrompt),
		progress: make(map[string]*runningProgress),
	}
}

// ShowMessage broadcasts a notice. Clients acknowledge nothing, so it
// returns as soon as the message is sent.
func (u *UISurface) ShowMessage(_ context.Context, title, message string) error {
	u.hub.Broadcast(ChannelUIMessage, Message{Title: title, Message: message})
	return nil
}

// ShowQuestion broadcasts a question and waits for the first answer.
func (u *UISurface) ShowQuestion(ctx context.Context, title, question string) (bool, error) {
	now := time.Now().UTC()
	p := &pendingPrompt{
		prompt: Prompt{
			ID:        "prm-" + uuid.NewString()[:8],
			Title:     title,
			Question:  question,
			CreatedAt: now,
			ExpiresAt: now.Add(u.timeout),
		},
		answer: make(chan bool, 1),
	}

	u.mu.Lock()
	u.prompts[p.prompt.ID] = p
	u.mu.Unlock()
	u.hub.Broadcast(ChannelUIQuestion, p.prompt)

	timer := time.NewTimer(u.timeout)
	defer timer.Stop()

	select {
	case yes := <-p.answer:
		closed := p.prompt
		closed.Answered = true
		closed.Answer = &yes
		u.hub.Broadcast(ChannelUIQuestion, closed)
		return yes, nil
	case <-timer.C:
		u.dropPrompt(p)
		return false, fmt.Errorf("%w: %s", ErrPromptExpired, p.prompt.ID)
	case <-ctx.Done():
		u.dropPrompt(p)
		return false, ctx.Err()
	}
}

// dropPrompt removes an unanswered prompt and tells clients it closed.
func (u *UISurface) dropPrompt(p *pendingPrompt) {
	u.mu.Lock()
	_, pending := u.prompts[p.prompt.ID]
	delete(u.prompts, p.prompt.ID)
	u.mu.Unlock()

	if pending {
		closed := p.prompt
		closed.Answered = true
		u.hub.Broadcast(ChannelUIQuestion, closed)
	}
}

// Answer resolves a pending question. Only the first answer counts.
func (u *UISurface) Answer(promptID string, yes bool) error {
	u.mu.Lock()
	p, ok := u.prompts[promptID]
	delete(u.prompts, promptID)
	u.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrPromptNotFound, promptID)
	}
	p.answer <- yes
	return nil
}

// Prompts returns the pending questions, oldest first.
func (u *UISurface) Prompts() []Prompt {
	u.mu.Lock()
	out := make([]Prompt, 0, len(u.prompts))
	for _, p := range u.prompts {
		out = append(out, p.prompt)
	}
	u.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ShowProgress broadcasts a running progress, executes run and broadcasts
// how it ended. A cancellable progress can be stopped with CancelProgress,
// which cancels the context passed to run.
func (u *UISurface) ShowProgress(ctx context.Context, message string, cancellable bool, run func(ctx context.Context) error) error {
	pctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rp := &runningProgress{
		progress: Progress{
			ID:          "prg-" + uuid.NewString()[:8],
			Message:     message,
			Cancellable: cancellable,
			State:       ProgressRunning,
			StartedAt:   time.Now().UTC(),
		},
		cancel: cancel,
	}

	u.mu.Lock()
	u.progress[rp.progress.ID] = rp
	u.mu.Unlock()
	u.hub.Broadcast(ChannelUIProgress, rp.progress)

	err := run(pctx)

	u.mu.Lock()
	delete(u.progress, rp.progress.ID)
	u.mu.Unlock()

	final := rp.progress
	switch {
	case pctx.Err() != nil && ctx.Err() == nil:
		final.State = ProgressCancelled
	case err != nil:
		final.State = ProgressFailed
		final.Error = err.Error()
	default:
		final.State = ProgressDone
	}
	u.hub.Broadcast(ChannelUIProgress, final)
	return err
}

// CancelProgress cancels a running, cancellable progress.
func (u *UISurface) CancelProgress(progressID string) error {
	u.mu.Lock()
	rp, ok := u.progress[progressID]
	u.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrProgressNotFound, progressID)
	}
	if !rp.progress.Cancellable {
		return fmt.Errorf("%w: %s", ErrProgressNotCancellable, progressID)
	}
	rp.cancel()
	return nil
}

// ActiveProgress returns the running progress indicators, oldest first.
func (u *UISurface) ActiveProgress() []Progress {
	u.mu.Lock()
	out := make([]Progress, 0, len(u.progress))
	for _, rp := range u.progress {
		out = append(out, rp.progress)
	}
	u.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// NavigateBack tells clients to return to the previous screen.
func (u *UISurface) NavigateBack(_ context.Context) error {
	u.hub.Broadcast(ChannelUINavigate, map[string]string{"action": "back"})
	return nil
}

// confirmedDialogs answers every question with yes without asking. It is
// used when the caller confirmed up front.
type confirmedDialogs struct {
	*UISurface
}

func (confirmedDialogs) ShowQuestion(context.Context, string, string) (bool, error) {
	return true, nil
}
