package api

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// recordingHub captures broadcasts.
type recordingHub struct {
	mu     sync.Mutex
	events []broadcast
	notify chan broadcast
}

type broadcast struct {
	channel string
	payload any
}

func newRecordingHub() *recordingHub {
	return &recordingHub{notify: make(chan broadcast, 64)}
}

func (h *recordingHub) Broadcast(channel string, payload any) {
	b := broadcast{channel: channel, payload: payload}
	h.mu.Lock()
	h.events = append(h.events, b)
	h.mu.Unlock()
	h.notify <- b
}

func (h *recordingHub) next(t *testing.T, channel string) any {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case b := <-h.notify:
			if b.channel == channel {
				return b.payload
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", channel)
			return nil
		}
	}
}

func (h *recordingHub) count(channel string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, b := range h.events {
		if b.channel == channel {
			n++
		}
	}
	return n
}

type questionResult struct {
	yes bool
	err error
}

func ask(ctx context.Context, u *UISurface) <-chan questionResult {
	out := make(chan questionResult, 1)
	go func() {
		yes, err := u.ShowQuestion(ctx, "Delete", "Delete this action?")
		out <- questionResult{yes, err}
	}()
	return out
}

func awaitResult(t *testing.T, ch <-chan questionResult) questionResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("ShowQuestion did not return")
		return questionResult{}
	}
}

// ─── Messages and navigation ───────────────────────────────────────

func TestUISurface_ShowMessage(t *testing.T) {
	hub := newRecordingHub()
	u := NewUISurface(hub, time.Second)

	if err := u.ShowMessage(context.Background(), "Warning", "Please select a device"); err != nil {
		t.Fatalf("ShowMessage() error: %v", err)
	}

	msg, ok := hub.next(t, ChannelUIMessage).(Message)
	if !ok || msg.Title != "Warning" || msg.Message != "Please select a device" {
		t.Errorf("message = %#v", msg)
	}
}

func TestUISurface_NavigateBack(t *testing.T) {
	hub := newRecordingHub()
	u := NewUISurface(hub, time.Second)

	if err := u.NavigateBack(context.Background()); err != nil {
		t.Fatalf("NavigateBack() error: %v", err)
	}
	payload, ok := hub.next(t, ChannelUINavigate).(map[string]string)
	if !ok || payload["action"] != "back" {
		t.Errorf("navigate payload = %#v", payload)
	}
}

func TestNewUISurface_DefaultTimeout(t *testing.T) {
	u := NewUISurface(newRecordingHub(), 0)
	if u.timeout != defaultPromptTimeout {
		t.Errorf("timeout = %v, want %v", u.timeout, defaultPromptTimeout)
	}
}

// ─── Questions ─────────────────────────────────────────────────────

func TestUISurface_QuestionAnswered(t *testing.T) {
	for _, yes := range []bool{true, false} {
		hub := newRecordingHub()
		u := NewUISurface(hub, 5*time.Second)

		res := ask(context.Background(), u)
		p, ok := hub.next(t, ChannelUIQuestion).(Prompt)
		if !ok || p.ID == "" || p.Answered {
			t.Fatalf("open prompt = %#v", p)
		}
		if !p.ExpiresAt.After(p.CreatedAt) {
			t.Error("ExpiresAt should be after CreatedAt")
		}
		if pending := u.Prompts(); len(pending) != 1 || pending[0].ID != p.ID {
			t.Errorf("Prompts() = %v", pending)
		}

		if err := u.Answer(p.ID, yes); err != nil {
			t.Fatalf("Answer() error: %v", err)
		}
		r := awaitResult(t, res)
		if r.err != nil || r.yes != yes {
			t.Errorf("ShowQuestion() = %v, %v; want %v, nil", r.yes, r.err, yes)
		}

		closed, ok := hub.next(t, ChannelUIQuestion).(Prompt)
		if !ok || !closed.Answered || closed.Answer == nil || *closed.Answer != yes {
			t.Errorf("closing prompt = %#v", closed)
		}
		if len(u.Prompts()) != 0 {
			t.Error("answered prompt should no longer be pending")
		}
	}
}

func TestUISurface_OnlyFirstAnswerCounts(t *testing.T) {
	hub := newRecordingHub()
	u := NewUISurface(hub, 5*time.Second)

	res := ask(context.Background(), u)
	p := hub.next(t, ChannelUIQuestion).(Prompt)

	if err := u.Answer(p.ID, true); err != nil {
		t.Fatal(err)
	}
	if err := u.Answer(p.ID, false); !errors.Is(err, ErrPromptNotFound) {
		t.Errorf("second Answer() error = %v, want ErrPromptNotFound", err)
	}
	if r := awaitResult(t, res); !r.yes {
		t.Error("first answer should win")
	}
}

func TestUISurface_AnswerUnknown(t *testing.T) {
	u := NewUISurface(newRecordingHub(), time.Second)
	if err := u.Answer("prm-missing", true); !errors.Is(err, ErrPromptNotFound) {
		t.Errorf("Answer() error = %v, want ErrPromptNotFound", err)
	}
}

func TestUISurface_QuestionExpires(t *testing.T) {
	hub := newRecordingHub()
	u := NewUISurface(hub, 20*time.Millisecond)

	r := awaitResult(t, ask(context.Background(), u))
	if !errors.Is(r.err, ErrPromptExpired) || r.yes {
		t.Errorf("ShowQuestion() = %v, %v; want false, ErrPromptExpired", r.yes, r.err)
	}
	if len(u.Prompts()) != 0 {
		t.Error("expired prompt should be dropped")
	}
	if n := hub.count(ChannelUIQuestion); n != 2 {
		t.Errorf("question broadcasts = %d, want open and close", n)
	}
}

func TestUISurface_QuestionCancelled(t *testing.T) {
	hub := newRecordingHub()
	u := NewUISurface(hub, 5*time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	res := ask(ctx, u)
	p := hub.next(t, ChannelUIQuestion).(Prompt)
	cancel()

	r := awaitResult(t, res)
	if !errors.Is(r.err, context.Canceled) || r.yes {
		t.Errorf("ShowQuestion() = %v, %v; want false, context.Canceled", r.yes, r.err)
	}
	if err := u.Answer(p.ID, true); !errors.Is(err, ErrPromptNotFound) {
		t.Errorf("Answer() after cancel error = %v, want ErrPromptNotFound", err)
	}
}

func TestConfirmedDialogs(t *testing.T) {
	hub := newRecordingHub()
	d := confirmedDialogs{NewUISurface(hub, time.Second)}

	yes, err := d.ShowQuestion(context.Background(), "Delete", "Sure?")
	if err != nil || !yes {
		t.Errorf("ShowQuestion() = %v, %v; want true, nil", yes, err)
	}
	if hub.count(ChannelUIQuestion) != 0 {
		t.Error("confirmed dialogs should not broadcast questions")
	}
}

// ─── Progress ──────────────────────────────────────────────────────

func TestUISurface_ProgressOutcomes(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		name      string
		run       func(ctx context.Context) error
		wantState string
		wantErr   error
	}{
		{"done", func(context.Context) error { return nil }, ProgressDone, nil},
		{"failed", func(context.Context) error { return errBoom }, ProgressFailed, errBoom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := newRecordingHub()
			u := NewUISurface(hub, time.Second)

			err := u.ShowProgress(context.Background(), "Connecting", true, tt.run)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ShowProgress() error = %v, want %v", err, tt.wantErr)
			}

			start := hub.next(t, ChannelUIProgress).(Progress)
			if start.State != ProgressRunning || start.Message != "Connecting" || !start.Cancellable {
				t.Errorf("start = %#v", start)
			}
			final := hub.next(t, ChannelUIProgress).(Progress)
			if final.ID != start.ID || final.State != tt.wantState {
				t.Errorf("final = %#v, want state %s", final, tt.wantState)
			}
			if tt.wantErr != nil && final.Error != tt.wantErr.Error() {
				t.Errorf("final.Error = %q", final.Error)
			}
			if len(u.ActiveProgress()) != 0 {
				t.Error("finished progress should not be active")
			}
		})
	}
}

func TestUISurface_CancelProgress(t *testing.T) {
	hub := newRecordingHub()
	u := NewUISurface(hub, time.Second)

	errCh := make(chan error, 1)
	go func() {
		errCh <- u.ShowProgress(context.Background(), "Connecting", true, func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})
	}()

	start := hub.next(t, ChannelUIProgress).(Progress)
	if active := u.ActiveProgress(); len(active) != 1 || active[0].ID != start.ID {
		t.Fatalf("ActiveProgress() = %v", active)
	}
	if err := u.CancelProgress(start.ID); err != nil {
		t.Fatalf("CancelProgress() error: %v", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("ShowProgress() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ShowProgress did not return after cancel")
	}

	if final := hub.next(t, ChannelUIProgress).(Progress); final.State != ProgressCancelled {
		t.Errorf("final state = %s, want cancelled", final.State)
	}
	if err := u.CancelProgress(start.ID); !errors.Is(err, ErrProgressNotFound) {
		t.Errorf("CancelProgress() after finish error = %v, want ErrProgressNotFound", err)
	}
}

func TestUISurface_CancelNotCancellable(t *testing.T) {
	hub := newRecordingHub()
	u := NewUISurface(hub, time.Second)

	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		u.ShowProgress(context.Background(), "Saving", false, func(context.Context) error { //nolint:errcheck // outcome not under test
			<-release
			return nil
		})
	}()

	start := hub.next(t, ChannelUIProgress).(Progress)
	if err := u.CancelProgress(start.ID); !errors.Is(err, ErrProgressNotCancellable) {
		t.Errorf("CancelProgress() error = %v, want ErrProgressNotCancellable", err)
	}
	close(release)
	<-done

	if final := hub.next(t, ChannelUIProgress).(Progress); final.State != ProgressDone {
		t.Errorf("final state = %s, want done", final.State)
	}
}

func TestUISurface_ParentCancelIsFailure(t *testing.T) {
	hub := newRecordingHub()
	u := NewUISurface(hub, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := u.ShowProgress(ctx, "Connecting", true, func(ctx context.Context) error {
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ShowProgress() error = %v", err)
	}

	hub.next(t, ChannelUIProgress)
	if final := hub.next(t, ChannelUIProgress).(Progress); final.State != ProgressFailed {
		t.Errorf("final state = %s, want failed", final.State)
	}
}
