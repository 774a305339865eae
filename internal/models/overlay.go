// internal/models/overlay.go
package models

import "time"

// CustomDataOverlay holds reviewer overrides kept apart from the audit
// answers. Nil fields leave the derived value in place.
type CustomDataOverlay struct {
	FloorArea      *string    `json:"floorArea,omitempty"`
	Occupancy      *string    `json:"occupancy,omitempty"`
	OperatingHours *string    `json:"operatingHours,omitempty"`
	BuildDate      *string    `json:"buildDate,omitempty"`
	LastUpdated    *time.Time `json:"lastUpdated,omitempty"`
}

// IsEmpty reports whether no overridable field is set.
func (o *CustomDataOverlay) IsEmpty() bool {
	return o == nil || (o.FloorArea == nil && o.Occupancy == nil && o.OperatingHours == nil && o.BuildDate == nil)
}

// OverlayMetadataKey is the key of the overlay inside a response metadata bag.
const OverlayMetadataKey = "fra_custom_data"
