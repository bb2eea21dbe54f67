package workflow

import (
	"context"

	"github.com/relaypro/relay-go/protocol"
	"github.com/relaypro/relay-go/relay"
)

func (w *Workflow) OnStart(fn func(context.Context, *relay.Relay, *protocol.StartEvent) error) {
	on(w, protocol.EventStart, fn)
}

func (w *Workflow) OnStop(fn func(context.Context, *relay.Relay, *protocol.StopEvent) error) {
	on(w, protocol.EventStop, fn)
}

func (w *Workflow) OnInteractionLifecycle(fn func(context.Context, *relay.Relay, *protocol.InteractionLifecycleEvent) error) {
	on(w, protocol.EventInteractionLifecycle, fn)
}

func (w *Workflow) OnPrompt(fn func(context.Context, *relay.Relay, *protocol.PromptEvent) error) {
	on(w, protocol.EventPrompt, fn)
}

func (w *Workflow) OnProgress(fn func(context.Context, *relay.Relay, *protocol.ProgressEvent) error) {
	on(w, protocol.EventProgress, fn)
}

func (w *Workflow) OnTimer(fn func(context.Context, *relay.Relay, *protocol.TimerEvent) error) {
	on(w, protocol.EventTimer, fn)
}

func (w *Workflow) OnTimerFired(fn func(context.Context, *relay.Relay, *protocol.TimerFiredEvent) error) {
	on(w, protocol.EventTimerFired, fn)
}

func (w *Workflow) OnButton(fn func(context.Context, *relay.Relay, *protocol.ButtonEvent) error) {
	on(w, protocol.EventButton, fn)
}

func (w *Workflow) OnNotification(fn func(context.Context, *relay.Relay, *protocol.NotificationEvent) error) {
	on(w, protocol.EventNotification, fn)
}

func (w *Workflow) OnSms(fn func(context.Context, *relay.Relay, *protocol.SmsEvent) error) {
	on(w, protocol.EventSms, fn)
}

func (w *Workflow) OnSpeech(fn func(context.Context, *relay.Relay, *protocol.SpeechEvent) error) {
	on(w, protocol.EventSpeech, fn)
}

func (w *Workflow) OnAudio(fn func(context.Context, *relay.Relay, *protocol.AudioEvent) error) {
	on(w, protocol.EventAudio, fn)
}

func (w *Workflow) OnIncident(fn func(context.Context, *relay.Relay, *protocol.IncidentEvent) error) {
	on(w, protocol.EventIncident, fn)
}

func (w *Workflow) OnCallStartRequest(fn func(context.Context, *relay.Relay, *protocol.CallStartEvent) error) {
	on(w, protocol.EventCallStartRequest, fn)
}

func (w *Workflow) OnCallReceived(fn func(context.Context, *relay.Relay, *protocol.CallReceivedEvent) error) {
	on(w, protocol.EventCallReceived, fn)
}

func (w *Workflow) OnCallRinging(fn func(context.Context, *relay.Relay, *protocol.CallRingingEvent) error) {
	on(w, protocol.EventCallRinging, fn)
}

func (w *Workflow) OnCallProgressing(fn func(context.Context, *relay.Relay, *protocol.CallProgressingEvent) error) {
	on(w, protocol.EventCallProgressing, fn)
}

func (w *Workflow) OnCallConnected(fn func(context.Context, *relay.Relay, *protocol.CallConnectedEvent) error) {
	on(w, protocol.EventCallConnected, fn)
}

func (w *Workflow) OnCallDisconnected(fn func(context.Context, *relay.Relay, *protocol.CallDisconnectedEvent) error) {
	on(w, protocol.EventCallDisconnected, fn)
}

func (w *Workflow) OnCallFailed(fn func(context.Context, *relay.Relay, *protocol.CallFailedEvent) error) {
	on(w, protocol.EventCallFailed, fn)
}

func (w *Workflow) OnPlayInboxMessages(fn func(context.Context, *relay.Relay, *protocol.PlayInboxMessagesEvent) error) {
	on(w, protocol.EventPlayInboxMessages, fn)
}
