package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	for _, tc := range []struct {
		name  string
		raw   string
		kind  Kind
		short string
		id    string
	}{
		{"event", `{"_type":"wf_api_button_event","button":"action","taps":"single"}`, KindEvent, "button", ""},
		{"response", `{"_type":"wf_api_get_device_info_response","_id":"a1b2","battery":87}`, KindResponse, "get_device_info", "a1b2"},
		{"error", `{"_type":"wf_api_error_response","_id":"x","error":"bad target"}`, KindResponse, "error", "x"},
		{"charlist id", `{"_type":"wf_api_say_response","_id":[97,98]}`, KindResponse, "say", "ab"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m, err := Decode([]byte(tc.raw))
			require.NoError(t, err)
			assert.Equal(t, tc.kind, m.Kind)
			assert.Equal(t, tc.short, m.Name)
			assert.Equal(t, tc.id, m.ID)
			assert.Equal(t, tc.raw, string(m.Raw()))
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, raw := range []string{
		``,
		`not json`,
		`null`,
		`[1,2,3]`,
		`{"button":"action"}`,
		`{"_type":42}`,
		`{"_type":"wf_api_button"}`,
		`{"_type":"button_event"}`,
	} {
		_, err := Decode([]byte(raw))
		if !errors.Is(err, ErrProtocol) {
			t.Errorf("%q: want ErrProtocol, have: %v", raw, err)
		}
	}
}

func TestMessageHelpers(t *testing.T) {
	m, err := Decode([]byte(`{"_type":"wf_api_error_response","_id":"x","error":"bad target"}`))
	require.NoError(t, err)
	assert.True(t, m.IsError())
	assert.Equal(t, "bad target", m.ErrorText())
	assert.Equal(t, EventType(""), m.Event())

	m, err = Decode([]byte(`{"_type":"wf_api_prompt_event","id":"p1","type":"stopped"}`))
	require.NoError(t, err)
	assert.False(t, m.IsError())
	assert.Equal(t, EventPrompt, m.Event())
	assert.Equal(t, "p1", m.String("id"))
	assert.True(t, m.Has("type"))
	assert.False(t, m.Has("_id"))
	assert.Equal(t, "", m.String("missing"))
}

func TestUnmarshalEvents(t *testing.T) {
	m, err := Decode([]byte(`{"_type":"wf_api_start_event","trigger":{"type":"phrase","args":{"source_uri":"urn:relay-resource:name:device:Bob"}}}`))
	require.NoError(t, err)
	var start StartEvent
	require.NoError(t, m.Unmarshal(&start))
	assert.Equal(t, Text("phrase"), start.Trigger.Type)
	assert.Equal(t, "urn:relay-resource:name:device:Bob", start.SourceURI())

	// a bare trigger string
	m, err = Decode([]byte(`{"_type":"wf_api_start_event","trigger":"user"}`))
	require.NoError(t, err)
	start = StartEvent{}
	require.NoError(t, m.Unmarshal(&start))
	assert.Equal(t, Text("user"), start.Trigger.Type)
	assert.Equal(t, "", start.SourceURI())

	m, err = Decode([]byte(`{"_type":"wf_api_button_event","source_uri":[66,111,98],"button":"action","taps":"double"}`))
	require.NoError(t, err)
	var button ButtonEvent
	require.NoError(t, m.Unmarshal(&button))
	assert.Equal(t, Text("Bob"), button.SourceURI)
	assert.Equal(t, Text(TapsDouble), button.Taps)

	m, err = Decode([]byte(`{"_type":"wf_api_call_failed_event","call_id":"c1","reason":"busy","end_time_epoch":1650000000}`))
	require.NoError(t, err)
	var failed CallFailedEvent
	require.NoError(t, m.Unmarshal(&failed))
	assert.Equal(t, Text("c1"), failed.CallID)
	assert.Equal(t, Text("busy"), failed.Reason)
	assert.Equal(t, Text("1650000000"), failed.EndTimeEpoch)

	var lifecycle InteractionLifecycleEvent
	m, err = Decode([]byte(`{"_type":"wf_api_interaction_lifecycle_event","type":"started","source_uri":"urn:relay-resource:name:interaction:hi"}`))
	require.NoError(t, err)
	require.NoError(t, m.Unmarshal(&lifecycle))
	assert.True(t, lifecycle.IsTypeStarted())
	assert.False(t, lifecycle.IsTypeEnded())
}

func TestDeviceInfoResponse(t *testing.T) {
	var r DeviceInfoResponse
	err := json.Unmarshal([]byte(`{"_type":"wf_api_get_device_info_response","latlong":[35.1,-78.9],"battery":87,"location_enabled":true}`), &r)
	require.NoError(t, err)
	require.NotNil(t, r.Battery)
	assert.Equal(t, 87, *r.Battery)
	assert.Equal(t, []float64{35.1, -78.9}, r.LatLong)
	assert.True(t, r.LocationEnabled)
}
