package catalog

// Product is a sellable item as exposed to the assistant.
type Product struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Clone returns a copy of the slice that never aliases the input.
func Clone(products []Product) []Product {
	return append([]Product(nil), products...)
}
