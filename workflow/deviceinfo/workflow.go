// Package deviceinfo implements a Relay workflow that reads out what
// the device knows about itself.
package deviceinfo

import (
	"context"
	"errors"
	"fmt"

	"github.com/relaypro/relay-go/protocol"
	"github.com/relaypro/relay-go/relay"
	"github.com/relaypro/relay-go/workflow"

	"github.com/micromdm/nanolib/log"
)

const (
	DefaultWorkflowName = "deviceinfo"
	InteractionName     = "deviceinfo interaction"
)

// Workflow optionally renames the device, then reads out its info.
type Workflow struct {
	name       string
	deviceName string
	logger     log.Logger
}

// Options configure [Workflow].
type Option func(*Workflow)

// WithName names the workflow. By default [DefaultWorkflowName] is used.
func WithName(name string) Option {
	return func(w *Workflow) {
		w.name = name
	}
}

// WithDeviceName renames the device and enables its location before
// reading out its info.
func WithDeviceName(name string) Option {
	return func(w *Workflow) {
		w.deviceName = name
	}
}

// New creates a new [Workflow].
func New(logger log.Logger, opts ...Option) *Workflow {
	if logger == nil {
		panic("nil logger")
	}
	w := &Workflow{name: DefaultWorkflowName, logger: logger}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Name returns the name of w.
func (w *Workflow) Name() string {
	return w.name
}

// available formats v with format or reports it unavailable when empty.
func available(what, v, format string) string {
	if v == "" {
		return fmt.Sprintf("Device %s is unavailable", what)
	}
	return fmt.Sprintf(format, v)
}

func (w *Workflow) report(ctx context.Context, r *relay.Relay, target string) ([]string, error) {
	name, err := r.GetDeviceName(ctx, target, true)
	if err != nil {
		return nil, err
	}
	id, err := r.GetDeviceID(ctx, target, true)
	if err != nil {
		return nil, err
	}
	address, err := r.GetDeviceAddress(ctx, target, false)
	if err != nil {
		return nil, err
	}
	latLong, err := r.GetDeviceLatLong(ctx, target, false)
	if err != nil {
		return nil, err
	}
	indoor, err := r.GetDeviceIndoorLocation(ctx, target, false)
	if err != nil {
		return nil, err
	}
	lines := []string{
		"Device name is " + name,
		"Device id is " + id,
		available("address", address, "Device address is %s"),
	}
	if len(latLong) < 2 {
		lines = append(lines, "Device lat long is unavailable")
	} else {
		lines = append(lines, fmt.Sprintf("Device lat long is %v lat %v long", latLong[0], latLong[1]))
	}
	lines = append(lines, available("indoor location", indoor, "Device indoor location is %s"))

	battery, err := r.GetDeviceBattery(ctx, target, false)
	if errors.Is(err, relay.ErrNoValue) {
		lines = append(lines, "Device battery is unknown")
	} else if err != nil {
		return nil, err
	} else {
		lines = append(lines, fmt.Sprintf("Device battery is %d percent", battery))
	}

	deviceType, err := r.GetDeviceType(ctx, target, true)
	if err != nil {
		return nil, err
	}
	username, err := r.GetDeviceUsername(ctx, target, true)
	if err != nil {
		return nil, err
	}
	enabled, err := r.GetDeviceLocationEnabled(ctx, target, true)
	if err != nil {
		return nil, err
	}
	return append(lines,
		"Device type is "+deviceType,
		"Device username is "+username,
		fmt.Sprintf("Device location enabled is %t", enabled),
	), nil
}

// NewWorkflow returns the callbacks of one session.
func (w *Workflow) NewWorkflow() *workflow.Workflow {
	wf := workflow.New()
	wf.OnStart(func(ctx context.Context, r *relay.Relay, ev *protocol.StartEvent) error {
		return r.StartInteraction(ctx, ev.SourceURI(), InteractionName, nil)
	})
	wf.OnInteractionLifecycle(func(ctx context.Context, r *relay.Relay, ev *protocol.InteractionLifecycleEvent) error {
		if !ev.IsTypeStarted() {
			return nil
		}
		target := string(ev.SourceURI)
		if w.deviceName != "" {
			if err := r.SetDeviceName(ctx, target, w.deviceName); err != nil {
				return err
			}
			if err := r.SetLocationEnabled(ctx, target, true); err != nil {
				return err
			}
		}
		lines, err := w.report(ctx, r, target)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if _, err = r.SayAndWait(ctx, target, line); err != nil {
				return err
			}
		}
		return r.Terminate(ctx)
	})
	return wf
}
