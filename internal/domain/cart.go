package domain

import "time"

// CartLine is a product snapshot plus the quantity ordered. A cart never
// holds two lines for the same product id.
type CartLine struct {
	Product
	Quantity int `json:"quantity"`
}

func (l CartLine) Subtotal() float64 {
	return l.Price * float64(l.Quantity)
}

type WishlistEntry struct {
	Product
	AddedAt time.Time `json:"added_at"`
}
