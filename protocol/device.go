package protocol

// DeviceInfoResponse is the reply to a device info query.
// Only the queried field is populated.
type DeviceInfoResponse struct {
	Name            Text      `json:"name,omitempty"`
	ID              Text      `json:"id,omitempty"`
	Address         Text      `json:"address,omitempty"`
	LatLong         []float64 `json:"latlong,omitempty"`
	IndoorLocation  Text      `json:"indoor_location,omitempty"`
	Battery         *int      `json:"battery,omitempty"`
	Type            Text      `json:"type,omitempty"`
	Username        Text      `json:"username,omitempty"`
	LocationEnabled bool      `json:"location_enabled,omitempty"`
}

// LedColors maps the ring or individual LEDs ("1" through "12") to colors.
type LedColors map[string]string

// Ring is the key that addresses every LED at once.
const Ring = "ring"

// LedInfo configures an LED effect. Zero values are omitted.
type LedInfo struct {
	Rotations      int       `json:"rotations,omitempty"`
	Count          int       `json:"count,omitempty"`
	Duration       int       `json:"duration,omitempty"`
	RepeatDelay    int       `json:"repeat_delay,omitempty"`
	PatternRepeats int       `json:"pattern_repeats,omitempty"`
	Colors         LedColors `json:"colors,omitempty"`
}

// SetColor sets the color of the LED at index, or of all LEDs when
// index is Ring.
func (l *LedInfo) SetColor(index, color string) {
	if l.Colors == nil {
		l.Colors = make(LedColors)
	}
	l.Colors[index] = color
}
