package models

// Media is a product image reference.
type Media struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Variant is a selectable product attribute (color, size...). A variant
// with a non-nil Price adds that amount to the unit cost.
type Variant struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	Price     *int64 `json:"price,omitempty"`
	Available bool   `json:"available"`
}

// Product is the snapshot of a catalog product. Cost is in minor units of
// Currency.
type Product struct {
	ID       string  `json:"id"`
	StoreID  string  `json:"storeId"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Cost     int64   `json:"cost"`
	Currency string  `json:"currency"`
	Stock    int     `json:"stock"`
	Images   []Media `json:"imgs"`
}

// FirstImage returns the first image or a zero Media.
func (p Product) FirstImage() Media {
	if len(p.Images) == 0 {
		return Media{}
	}
	return p.Images[0]
}
