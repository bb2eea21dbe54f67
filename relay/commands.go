package relay

import (
	"context"
	"strconv"

	"github.com/relaypro/relay-go/protocol"
)

// Say speaks text in English on target without waiting.
func (r *Relay) Say(ctx context.Context, target, text string) error {
	return r.SayLang(ctx, target, text, protocol.English)
}

// SayLang speaks text in lang on target without waiting.
func (r *Relay) SayLang(ctx context.Context, target, text string, lang protocol.LanguageType) error {
	return r.fire(ctx, targeted(protocol.RequestSay, target, params{"text": text, "lang": lang}))
}

// SayAndWait speaks text in English on target and returns the prompt id
// once speaking has finished.
func (r *Relay) SayAndWait(ctx context.Context, target, text string) (string, error) {
	return r.SayAndWaitLang(ctx, target, text, protocol.English)
}

// SayAndWaitLang speaks text in lang on target and returns the prompt id
// once speaking has finished.
func (r *Relay) SayAndWaitLang(ctx context.Context, target, text string, lang protocol.LanguageType) (string, error) {
	resp, err := r.callAwaitPrompt(ctx, targeted(protocol.RequestSay, target, params{"text": text, "lang": lang}))
	if err != nil {
		return "", err
	}
	return resp.String("id"), nil
}

// Play plays the audio file filename on target without waiting.
func (r *Relay) Play(ctx context.Context, target, filename string) error {
	return r.fire(ctx, targeted(protocol.RequestPlay, target, params{"filename": filename}))
}

// PlayAndWait plays the audio file filename on target and returns the
// prompt id once playback has finished.
func (r *Relay) PlayAndWait(ctx context.Context, target, filename string) (string, error) {
	resp, err := r.callAwaitPrompt(ctx, targeted(protocol.RequestPlay, target, params{"filename": filename}))
	if err != nil {
		return "", err
	}
	return resp.String("id"), nil
}

// StopPlayback stops the prompts named by ids, or all playback if none.
func (r *Relay) StopPlayback(ctx context.Context, target string, ids ...string) error {
	if ids == nil {
		ids = []string{}
	}
	return r.exec(ctx, targeted(protocol.RequestStopPlayback, target, params{"ids": ids}))
}

// SetTimer starts a named timer. Expiry is delivered as a timer fired event.
func (r *Relay) SetTimer(ctx context.Context, timerType protocol.TimerType, name string, timeout int64, unit protocol.TimeoutType) error {
	return r.exec(ctx, protocol.NewRequest(protocol.RequestSetTimer, params{
		"type":         timerType,
		"name":         name,
		"timeout":      timeout,
		"timeout_type": unit,
	}))
}

// ClearTimer cancels the named timer.
func (r *Relay) ClearTimer(ctx context.Context, name string) error {
	return r.exec(ctx, protocol.NewRequest(protocol.RequestClearTimer, params{"name": name}))
}

// SetLeds starts an LED effect on target.
func (r *Relay) SetLeds(ctx context.Context, target string, effect protocol.LedEffect, info protocol.LedInfo) error {
	return r.fire(ctx, targeted(protocol.RequestSetLeds, target, params{"effect": effect, "args": info}))
}

// SwitchAllLedOn lights every LED with color.
func (r *Relay) SwitchAllLedOn(ctx context.Context, target, color string) error {
	var info protocol.LedInfo
	info.SetColor(protocol.Ring, color)
	return r.SetLeds(ctx, target, protocol.LedStatic, info)
}

// SwitchAllLedOff turns every LED off.
func (r *Relay) SwitchAllLedOff(ctx context.Context, target string) error {
	return r.SetLeds(ctx, target, protocol.LedOff, protocol.LedInfo{})
}

// Rainbow cycles the LEDs through colors for rotations turns; -1 repeats forever.
func (r *Relay) Rainbow(ctx context.Context, target string, rotations int) error {
	return r.SetLeds(ctx, target, protocol.LedRainbow, protocol.LedInfo{Rotations: rotations})
}

// Rotate spins a single lit LED of color around the ring.
func (r *Relay) Rotate(ctx context.Context, target, color string) error {
	info := protocol.LedInfo{Rotations: -1}
	info.SetColor("1", color)
	return r.SetLeds(ctx, target, protocol.LedRotate, info)
}

// Flash flashes every LED with color count times; -1 repeats forever.
func (r *Relay) Flash(ctx context.Context, target, color string, count int) error {
	info := protocol.LedInfo{Count: count}
	info.SetColor(protocol.Ring, color)
	return r.SetLeds(ctx, target, protocol.LedFlash, info)
}

// Breathe pulses every LED with color until changed.
func (r *Relay) Breathe(ctx context.Context, target, color string) error {
	info := protocol.LedInfo{Count: -1}
	info.SetColor(protocol.Ring, color)
	return r.SetLeds(ctx, target, protocol.LedBreathe, info)
}

// Vibrate runs a vibration pattern of alternating on and off milliseconds.
func (r *Relay) Vibrate(ctx context.Context, target string, pattern ...int64) error {
	return r.fire(ctx, targeted(protocol.RequestVibrate, target, params{"pattern": pattern}))
}

// SetDeviceMode sets the alerting mode of target.
func (r *Relay) SetDeviceMode(ctx context.Context, target string, mode protocol.DeviceMode) error {
	return r.exec(ctx, targeted(protocol.RequestSetDeviceMode, target, params{"mode": mode}))
}

// SetDeviceInfo sets a device field of target.
func (r *Relay) SetDeviceInfo(ctx context.Context, target string, field protocol.DeviceField, value string) error {
	return r.exec(ctx, targeted(protocol.RequestSetDeviceInfo, target, params{"field": field, "value": value}))
}

// SetDeviceName sets the label of target.
func (r *Relay) SetDeviceName(ctx context.Context, target, name string) error {
	return r.SetDeviceInfo(ctx, target, protocol.FieldLabel, name)
}

// SetLocationEnabled turns location reporting of target on or off.
func (r *Relay) SetLocationEnabled(ctx context.Context, target string, enabled bool) error {
	return r.SetDeviceInfo(ctx, target, protocol.FieldLocationEnabled, strconv.FormatBool(enabled))
}

// SetUserProfile logs username in on target. force overrides an
// existing login.
func (r *Relay) SetUserProfile(ctx context.Context, target, username string, force bool) error {
	return r.exec(ctx, targeted(protocol.RequestSetUserProfile, target, params{"username": username, "force": force}))
}

// SetChannel switches target to the named channel.
func (r *Relay) SetChannel(ctx context.Context, target, channel string, suppressTTS, disableHomeChannel bool) error {
	return r.exec(ctx, targeted(protocol.RequestSetChannel, target, params{
		"channel_name":         channel,
		"suppress_tts":         suppressTTS,
		"disable_home_channel": disableHomeChannel,
	}))
}

// RestartDevice restarts target.
func (r *Relay) RestartDevice(ctx context.Context, target string) error {
	return r.exec(ctx, targeted(protocol.RequestPowerOff, target, params{"restart": true}))
}

// PowerDownDevice powers target off.
func (r *Relay) PowerDownDevice(ctx context.Context, target string) error {
	return r.exec(ctx, targeted(protocol.RequestPowerOff, target, params{"restart": false}))
}

// StartInteraction starts the named interaction on target.
// A nil options sends an empty object.
func (r *Relay) StartInteraction(ctx context.Context, target, name string, options interface{}) error {
	if options == nil {
		options = struct{}{}
	}
	return r.exec(ctx, targeted(protocol.RequestStartInteraction, target, params{"name": name, "options": options}))
}

// EndInteraction ends the named interaction on target.
func (r *Relay) EndInteraction(ctx context.Context, target, name string) error {
	return r.exec(ctx, targeted(protocol.RequestEndInteraction, target, params{"name": name}))
}

// Terminate asks the server to end the workflow. The session stops when
// the resulting stop event arrives.
func (r *Relay) Terminate(ctx context.Context) error {
	return r.fire(ctx, protocol.NewRequest(protocol.RequestTerminate, nil))
}
