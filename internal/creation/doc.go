// Package creation holds the binding model: creations, their controller
// profiles, the events of each profile and the actions that bind an event
// to a device channel.
//
// Editing goes through an ActionEditor, which publishes a Change for each
// field it mutates, and a Binder, which validates the edited action,
// reconciles its channel against the bound device and commits it through
// Persistence while the Dialogs surface shows progress.
//
// Transform turns raw controller input into channel outputs:
//
//	axis:   dead zone → curve → invert → output stage
//	button: button mode → invert → output stage
//
// Curves and button modes are looked up by name in a CurveSet and a
// ButtonModeSet. Power curves are registered from configuration.
package creation
