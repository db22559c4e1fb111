package creation

import (
	"context"
	"fmt"

	"github.com/nerrad567/brickplay-core/internal/device"
)

// Prompt texts shown while editing actions.
const (
	MsgWarningTitle     = "Warning"
	MsgSelectDevice     = "Select a device before saving."
	MsgConfirmTitle     = "Confirm"
	MsgConfirmDelete    = "Are you sure to delete this controller action?"
	MsgSavingProgress   = "Saving..."
	MsgDeletingProgress = "Deleting..."
)

// Persistence stores actions. A nil error means the change is committed;
// any error means nothing was applied.
type Persistence interface {
	UpsertAction(ctx context.Context, eventID string, a *Action) error
	DeleteAction(ctx context.Context, a *Action) error
}

// DeviceLookup resolves device ids to live devices.
type DeviceLookup interface {
	ByID(id string) (device.Device, bool)
}

// Dialogs is the user interaction surface. ShowMessage and ShowQuestion
// block until the user answers. ShowProgress presents message while run
// executes and returns run's error; when cancellable, a user cancel
// cancels the context passed to run.
type Dialogs interface {
	ShowMessage(ctx context.Context, title, message string) error
	ShowQuestion(ctx context.Context, title, question string) (bool, error)
	ShowProgress(ctx context.Context, message string, cancellable bool, run func(ctx context.Context) error) error
}

// Navigator returns the user to the previous context.
type Navigator interface {
	NavigateBack(ctx context.Context) error
}

// Logger defines the logging interface used by the creation package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Binder validates and commits action edits.
type Binder struct {
	persist   Persistence
	devices   DeviceLookup
	transform *Transform
	dialogs   Dialogs
	nav       Navigator
	logger    Logger
}

// NewBinder creates a Binder. A nil transform uses the built-in curve and
// button mode sets.
func NewBinder(persist Persistence, devices DeviceLookup, transform *Transform, dialogs Dialogs, nav Navigator) *Binder {
	if transform == nil {
		transform = NewTransform(nil, nil)
	}
	return &Binder{
		persist:   persist,
		devices:   devices,
		transform: transform,
		dialogs:   dialogs,
		nav:       nav,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the binder.
func (b *Binder) SetLogger(logger Logger) {
	b.logger = logger
}

// BindAction materialises in as an action of event and commits it.
//
// Without a device the user is told to select one, nothing is persisted,
// navigation goes back and ErrNoDeviceSelected is returned. Otherwise the
// channel is reconciled against the device, the action is validated and
// handed to persistence under a "Saving..." progress. The returned action
// is committed; navigation goes back only after a successful save.
func (b *Binder) BindAction(ctx context.Context, event *Event, in ActionInput) (*Action, error) {
	if in.DeviceID == "" {
		if err := b.dialogs.ShowMessage(ctx, MsgWarningTitle, MsgSelectDevice); err != nil {
			b.logger.Warn("showing message failed", "error", err)
		}
		b.navigateBack(ctx)
		return nil, ErrNoDeviceSelected
	}
	if event == nil {
		return nil, ErrEventRequired
	}

	dev, ok := b.devices.ByID(in.DeviceID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, in.DeviceID)
	}

	action := in.toAction()
	action.Channel = ReconcileChannel(dev, action.Channel)
	if err := ValidateAction(action); err != nil {
		return nil, err
	}
	if err := b.transform.Check(action); err != nil {
		return nil, err
	}

	err := b.dialogs.ShowProgress(ctx, MsgSavingProgress, false, func(ctx context.Context) error {
		return b.persist.UpsertAction(ctx, event.ID, action)
	})
	if err != nil {
		return nil, fmt.Errorf("saving action: %w", err)
	}

	b.logger.Info("action saved", "event_id", event.ID, "action_id", action.ID, "device_id", action.DeviceID, "channel", action.Channel)
	b.navigateBack(ctx)
	return action, nil
}

// DeleteAction removes action after the user confirms. A nil action is a
// no-op. deleted reports whether the action was removed; a declined
// confirmation returns false with a nil error.
func (b *Binder) DeleteAction(ctx context.Context, action *Action) (deleted bool, err error) {
	if action == nil {
		return false, nil
	}

	confirmed, err := b.dialogs.ShowQuestion(ctx, MsgConfirmTitle, MsgConfirmDelete)
	if err != nil {
		return false, fmt.Errorf("confirming delete: %w", err)
	}
	if !confirmed {
		return false, nil
	}

	err = b.dialogs.ShowProgress(ctx, MsgDeletingProgress, false, func(ctx context.Context) error {
		return b.persist.DeleteAction(ctx, action)
	})
	if err != nil {
		return false, fmt.Errorf("deleting action: %w", err)
	}

	b.logger.Info("action deleted", "action_id", action.ID)
	b.navigateBack(ctx)
	return true, nil
}

func (b *Binder) navigateBack(ctx context.Context) {
	if err := b.nav.NavigateBack(ctx); err != nil {
		b.logger.Warn("navigating back failed", "error", err)
	}
}
