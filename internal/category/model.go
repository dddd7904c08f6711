package category

// Station routes kitchen tickets.
type Station string

const (
	StationKitchen Station = "kitchen"
	StationBarista Station = "barista"
	StationDisplay Station = "display"
	StationNone    Station = "none"
)

// Category is a row of the offline categories cache.
type Category struct {
	ID              string   `json:"id" db:"id"`
	Name            string   `json:"name" db:"name"`
	Icon            *string  `json:"icon" db:"icon"`
	Color           *string  `json:"color" db:"color"`
	SortOrder       *int     `json:"sort_order" db:"sort_order"`
	DispatchStation *Station `json:"dispatch_station" db:"dispatch_station"`
	IsActive        bool     `json:"is_active" db:"is_active"`
	IsRawMaterial   bool     `json:"is_raw_material" db:"is_raw_material"`
	ShowInPOS       *bool    `json:"show_in_pos,omitempty" db:"show_in_pos"`
	UpdatedAt       *string  `json:"updated_at" db:"updated_at"`
}

// Station returns the dispatch station, or none when unset.
func (c *Category) Station() Station {
	if c == nil || c.DispatchStation == nil || *c.DispatchStation == "" {
		return StationNone
	}
	return *c.DispatchStation
}
