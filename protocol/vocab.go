package protocol

// LedEffect is an LED animation.
type LedEffect string

const (
	LedRainbow LedEffect = "rainbow"
	LedRotate  LedEffect = "rotate"
	LedFlash   LedEffect = "flash"
	LedBreathe LedEffect = "breathe"
	LedStatic  LedEffect = "static"
	LedOff     LedEffect = "off"
)

// LanguageType is a speech language tag.
type LanguageType string

const (
	English    LanguageType = "en-US"
	German     LanguageType = "de-DE"
	Spanish    LanguageType = "es-ES"
	French     LanguageType = "fr-FR"
	Italian    LanguageType = "it-IT"
	Russian    LanguageType = "ru-RU"
	Swedish    LanguageType = "sv-SE"
	Turkish    LanguageType = "tr-TR"
	Hindi      LanguageType = "hi-IN"
	Icelandic  LanguageType = "is-IS"
	Japanese   LanguageType = "ja-JP"
	Korean     LanguageType = "ko-KR"
	Polish     LanguageType = "pl-PK"
	Portuguese LanguageType = "pt-BR"
	Norwegian  LanguageType = "nb-NO"
	Dutch      LanguageType = "nl-NL"
	Chinese    LanguageType = "zh"
)

// DeviceField is a settable device attribute.
type DeviceField string

const (
	FieldLabel           DeviceField = "label"
	FieldLocationEnabled DeviceField = "location_enabled"
	FieldChannel         DeviceField = "channel"
)

// DeviceInfoQuery is a queryable device attribute.
type DeviceInfoQuery string

const (
	QueryName            DeviceInfoQuery = "name"
	QueryID              DeviceInfoQuery = "id"
	QueryAddress         DeviceInfoQuery = "address"
	QueryLatLong         DeviceInfoQuery = "latlong"
	QueryIndoorLocation  DeviceInfoQuery = "indoor_location"
	QueryBattery         DeviceInfoQuery = "battery"
	QueryType            DeviceInfoQuery = "type"
	QueryUsername        DeviceInfoQuery = "username"
	QueryLocationEnabled DeviceInfoQuery = "location_enabled"
)

// DeviceMode is a device alerting mode.
type DeviceMode string

const (
	ModePanic DeviceMode = "panic"
	ModeAlarm DeviceMode = "alarm"
	ModeNone  DeviceMode = "none"
)

// TimerType selects a one-shot or repeating timer.
type TimerType string

const (
	TimerTimeout  TimerType = "timeout"
	TimerInterval TimerType = "interval"
)

// TimeoutType is the unit of a timer timeout.
type TimeoutType string

const (
	TimeoutMS   TimeoutType = "ms"
	TimeoutSecs TimeoutType = "secs"
	TimeoutMins TimeoutType = "mins"
	TimeoutHrs  TimeoutType = "hrs"
)
