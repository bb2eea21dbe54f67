package storage

// Keys match the device info query names.
const (
	KeyName            = "name"             // string
	KeyID              = "id"               // string
	KeyAddress         = "address"          // string
	KeyLatLong         = "latlong"          // []float64
	KeyIndoorLocation  = "indoor_location"  // string
	KeyBattery         = "battery"          // int
	KeyType            = "type"             // string
	KeyUsername        = "username"         // string
	KeyLocationEnabled = "location_enabled" // bool
	KeyUpdatedAt       = "updated_at"       // RFC 3339 string
)
