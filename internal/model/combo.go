package model

// Combo is a concession catalog entry (food and drink bundle) that can be
// purchased alongside seats.  The catalog is managed elsewhere; the
// booking engine only reads id, name, price and the active flag.
type Combo struct {
	ID       string `json:"id"`        // combos.id
	Name     string `json:"name"`      // combos.name
	Price    int64  `json:"price"`     // combos.price
	IsActive bool   `json:"is_active"` // combos.is_active
}

// ComboSelection is a client's request for a quantity of one combo.
type ComboSelection struct {
	ComboID  string `json:"combo_id"`
	Quantity int    `json:"quantity"`
}
