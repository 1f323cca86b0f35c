package models

// PropertyChange is a difference between an offline snapshot of a property
// and its current remote record
type PropertyChange struct {
	PropertyID      string   `json:"property_id"`
	ChangeType      string   `json:"change_type"`
	OldValue        string   `json:"old_value,omitempty"`
	NewValue        string   `json:"new_value,omitempty"`
	ChangeMagnitude *float64 `json:"change_magnitude,omitempty"` // For numerical changes
}

// ChangeType constants
const (
	ChangeTypePrice   = "price_changed"
	ChangeTypeTitle   = "title_changed"
	ChangeTypeStatus  = "status_changed"
	ChangeTypeArea    = "area_changed"
	ChangeTypeImage   = "image_changed"
	ChangeTypeCity    = "city_changed"
	ChangeTypeRemoved = "property_removed"
)
