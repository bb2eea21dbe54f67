// Package protocol defines the Relay workflow wire protocol: inbound
// events and responses, outbound requests, and the device vocabulary
// carried by both.
package protocol

// EventType is the short name of an inbound event, e.g. "button".
type EventType string

const (
	EventStart                EventType = "start"
	EventStop                 EventType = "stop"
	EventInteractionLifecycle EventType = "interaction_lifecycle"
	EventPrompt               EventType = "prompt"
	EventProgress             EventType = "progress"
	EventTimer                EventType = "timer"
	EventTimerFired           EventType = "timer_fired"
	EventButton               EventType = "button"
	EventNotification         EventType = "notification"
	EventSms                  EventType = "sms"
	EventSpeech               EventType = "speech"
	EventAudio                EventType = "audio"
	EventIncident             EventType = "incident"
	EventCallStartRequest     EventType = "call_start_request"
	EventCallReceived         EventType = "call_received"
	EventCallRinging          EventType = "call_ringing"
	EventCallProgressing      EventType = "call_progressing"
	EventCallConnected        EventType = "call_connected"
	EventCallDisconnected     EventType = "call_disconnected"
	EventCallFailed           EventType = "call_failed"
	EventPlayInboxMessages    EventType = "play_inbox_messages"
)

// Wire returns the full wire type, e.g. "wf_api_button_event".
func (t EventType) Wire() string {
	return "wf_api_" + string(t) + "_event"
}

// RequestType is the short name of an outbound request, e.g. "say".
type RequestType string

const (
	RequestStartInteraction RequestType = "start_interaction"
	RequestEndInteraction   RequestType = "end_interaction"
	RequestSay              RequestType = "say"
	RequestPlay             RequestType = "play"
	RequestStopPlayback     RequestType = "stop_playback"
	RequestSetTimer         RequestType = "set_timer"
	RequestClearTimer       RequestType = "clear_timer"
	RequestSetLeds          RequestType = "set_led"
	RequestVibrate          RequestType = "vibrate"
	RequestGetDeviceInfo    RequestType = "get_device_info"
	RequestSetDeviceInfo    RequestType = "set_device_info"
	RequestSetDeviceMode    RequestType = "set_device_mode"
	RequestSetUserProfile   RequestType = "set_user_profile"
	RequestSetChannel       RequestType = "set_channel"
	RequestPowerOff         RequestType = "device_power_off"
	RequestTerminate        RequestType = "terminate"
)

// Wire returns the full wire type, e.g. "wf_api_say_request".
func (t RequestType) Wire() string {
	return "wf_api_" + string(t) + "_request"
}

// ResponseWire returns the wire type of the response to t,
// e.g. "wf_api_say_response".
func (t RequestType) ResponseWire() string {
	return "wf_api_" + string(t) + "_response"
}

// ResponseError is the response name the server uses to fail a request.
const ResponseError = "error"
