package settings

import "encoding/json"

// Setting is a key/value configuration row. Value holds the raw JSON
// document stored by the backend.
type Setting struct {
	Key        string          `json:"key" db:"key"`
	Value      json.RawMessage `json:"value" db:"value"`
	CategoryID *string         `json:"category_id" db:"category_id"`
	ValueType  string          `json:"value_type" db:"value_type"`
	UpdatedAt  *string         `json:"updated_at" db:"updated_at"`
}

type TaxRate struct {
	ID        string  `json:"id" db:"id"`
	Name      string  `json:"name" db:"name"`
	Rate      float64 `json:"rate" db:"rate"`
	IsDefault bool    `json:"is_default" db:"is_default"`
	IsActive  bool    `json:"is_active" db:"is_active"`
	CreatedAt *string `json:"created_at" db:"created_at"`
	UpdatedAt *string `json:"updated_at" db:"updated_at"`
}

type PaymentMethod struct {
	ID        string  `json:"id" db:"id"`
	Name      string  `json:"name" db:"name"`
	Type      string  `json:"type" db:"type"`
	IsDefault bool    `json:"is_default" db:"is_default"`
	IsActive  bool    `json:"is_active" db:"is_active"`
	SortOrder int     `json:"sort_order" db:"sort_order"`
	CreatedAt *string `json:"created_at" db:"created_at"`
	UpdatedAt *string `json:"updated_at" db:"updated_at"`
}

type BusinessHours struct {
	DayOfWeek int     `json:"day_of_week" db:"day_of_week"`
	OpenTime  *string `json:"open_time" db:"open_time"`
	CloseTime *string `json:"close_time" db:"close_time"`
	IsOpen    bool    `json:"is_open" db:"is_open"`
}

// Result summarises a CacheAllData fan-out.
type Result struct {
	Success    bool     `json:"success"`
	Errors     []string `json:"errors"`
	LastSyncAt string   `json:"lastSyncAt"`
}
