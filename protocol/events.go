package protocol

import (
	"bytes"
	"encoding/json"
)

// Trigger describes what started a workflow.
type Trigger struct {
	Type Text                   `json:"type"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// UnmarshalJSON accepts either a trigger object or a bare trigger type string.
func (t *Trigger) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] != '{' {
		return t.Type.UnmarshalJSON(b)
	}
	type trigger Trigger
	var v trigger
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*t = Trigger(v)
	return nil
}

// StartEvent is sent when a workflow instance starts.
type StartEvent struct {
	Trigger Trigger `json:"trigger"`
}

// SourceURI returns the URI of the device that triggered the workflow.
func (e *StartEvent) SourceURI() string {
	if e.Trigger.Args == nil {
		return ""
	}
	return textFromValue(e.Trigger.Args["source_uri"])
}

// StopEvent is sent when a workflow instance stops.
type StopEvent struct {
	Reason Text `json:"reason"`
}

const (
	InteractionStarted = "started"
	InteractionEnded   = "ended"
)

// InteractionLifecycleEvent reports interaction state changes.
type InteractionLifecycleEvent struct {
	Type      Text `json:"type"`
	Reason    Text `json:"reason"`
	SourceURI Text `json:"source_uri"`
}

// IsTypeStarted reports whether the interaction has started.
func (e *InteractionLifecycleEvent) IsTypeStarted() bool {
	return e.Type == InteractionStarted
}

// IsTypeEnded reports whether the interaction has ended.
func (e *InteractionLifecycleEvent) IsTypeEnded() bool {
	return e.Type == InteractionEnded
}

const (
	PromptStarted = "started"
	PromptStopped = "stopped"
	PromptFailed  = "failed"
)

// PromptEvent reports text-to-speech and playback progress.
type PromptEvent struct {
	ID   Text `json:"id"`
	Type Text `json:"type"`
}

// ProgressEvent signals a long running request is still in progress.
type ProgressEvent struct {
	ID Text `json:"id"`
}

// TimerEvent is sent when an unnamed timer fires.
type TimerEvent struct {
	Name map[string]string `json:"name,omitempty"`
}

// TimerFiredEvent is sent when a named timer fires.
type TimerFiredEvent struct {
	Name Text `json:"name"`
}

const (
	ButtonAction  = "action"
	ButtonChannel = "channel"

	TapsSingle = "single"
	TapsDouble = "double"
	TapsTriple = "triple"
	TapsLong   = "long"
)

// ButtonEvent is sent on a device button press.
type ButtonEvent struct {
	SourceURI Text `json:"source_uri"`
	Button    Text `json:"button"`
	Taps      Text `json:"taps"`
}

// NotificationState lists device URIs per notification state.
type NotificationState struct {
	Acknowledged []string `json:"acknowledged,omitempty"`
	Created      []string `json:"created,omitempty"`
	Cancelled    []string `json:"cancelled,omitempty"`
	TimedOut     []string `json:"timed_out,omitempty"`
}

// NotificationEvent reports a change to a broadcast or alert.
type NotificationEvent struct {
	SourceURI         Text              `json:"source_uri"`
	Event             Text              `json:"event"`
	Name              Text              `json:"name"`
	NotificationState NotificationState `json:"notification_state"`
}

// SmsEvent reports the state of an SMS.
type SmsEvent struct {
	ID    Text `json:"id"`
	Event Text `json:"event"`
}

// SpeechEvent carries transcribed speech.
type SpeechEvent struct {
	RequestID Text `json:"request_id"`
	Text      Text `json:"text"`
	Audio     Text `json:"audio"`
	Lang      Text `json:"lang"`
}

// AudioEvent carries recorded audio.
type AudioEvent struct {
	RequestID Text `json:"request_id"`
	Audio     Text `json:"audio"`
}

// IncidentEvent reports incident state changes.
type IncidentEvent struct {
	Type       Text `json:"type"`
	IncidentID Text `json:"incident_id"`
	Reason     Text `json:"reason"`
}

// CallStartEvent is a request to start a call.
type CallStartEvent struct {
	URI Text `json:"uri"`
}

// Call holds the fields common to every call event.
type Call struct {
	CallID         Text `json:"call_id"`
	Direction      Text `json:"direction"`
	DeviceID       Text `json:"device_id"`
	DeviceName     Text `json:"device_name"`
	URI            Text `json:"uri"`
	OnNet          Text `json:"onnet"`
	StartTimeEpoch Text `json:"start_time_epoch"`
}

// CallReceivedEvent is sent when a call is received.
type CallReceivedEvent struct {
	Call
}

// CallRingingEvent is sent when a call is ringing.
type CallRingingEvent struct {
	Call
}

// CallProgressingEvent is sent while a call is being placed.
type CallProgressingEvent struct {
	Call
	ConnectTimeEpoch Text `json:"connect_time_epoch"`
}

// CallConnectedEvent is sent when a call is connected.
type CallConnectedEvent struct {
	Call
	ConnectTimeEpoch Text `json:"connect_time_epoch"`
}

// CallDisconnectedEvent is sent when a call ends.
type CallDisconnectedEvent struct {
	Call
	Reason           Text `json:"reason"`
	ConnectTimeEpoch Text `json:"connect_time_epoch"`
	EndTimeEpoch     Text `json:"end_time_epoch"`
}

// CallFailedEvent is sent when a call fails.
type CallFailedEvent struct {
	Call
	Reason           Text `json:"reason"`
	ConnectTimeEpoch Text `json:"connect_time_epoch"`
	EndTimeEpoch     Text `json:"end_time_epoch"`
}

// PlayInboxMessagesEvent is sent when the user asks to play inbox messages.
type PlayInboxMessagesEvent struct {
	Action Text `json:"action"`
}
