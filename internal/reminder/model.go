package reminder

import "time"

// TTL is how long a reminder is kept after it was created.
const TTL = 7 * 24 * time.Hour

type Item struct {
	ProductID   string  `json:"productId"`
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Icon        string  `json:"icon"`
	Unit        string  `json:"unit"`
	Quantity    float64 `json:"quantity"`
	Wasted      float64 `json:"wasted"`
	WasteReason string  `json:"wasteReason"`
}

// Reminder is a production record captured offline, kept until someone
// enters it once the terminal is back online.
type Reminder struct {
	ID             string  `json:"id"`
	SectionID      string  `json:"sectionId"`
	SectionName    string  `json:"sectionName"`
	ProductionDate string  `json:"productionDate"`
	Items          []Item  `json:"items"`
	CreatedAt      string  `json:"createdAt"`
	Note           *string `json:"note,omitempty"`
}

type Input struct {
	Items          []Item
	SectionID      string
	SectionName    string
	ProductionDate time.Time
	Note           *string
}
