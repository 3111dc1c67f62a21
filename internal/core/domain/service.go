package domain

// ServiceStatusActive marks catalog entries offered to clients.
const ServiceStatusActive = "active"

// Service is a read-only catalog entry. Its lifecycle belongs to the back office.
type Service struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Slug         string   `json:"slug"`
	Category     string   `json:"category"`
	Icon         string   `json:"icon"`
	Description  *string  `json:"description,omitempty"`
	BasePrice    *float64 `json:"base_price,omitempty"`
	PriceMin     *float64 `json:"price_min,omitempty"`
	PriceMax     *float64 `json:"price_max,omitempty"`
	PriceUnit    string   `json:"price_unit"`
	IsEmergency  bool     `json:"is_emergency"`
	Status       string   `json:"status"`
	DisplayOrder int      `json:"display_order"`
}
