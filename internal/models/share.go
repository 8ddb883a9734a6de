package models

// ShareLineItem is one item's contribution to a person's share.
type ShareLineItem struct {
	ID       string
	Name     string
	Price    float64
	Quantity int

	// SharedWith is the number of people splitting the item, at least 1.
	SharedWith int

	// ShareAmount is Price × Quantity / SharedWith.
	ShareAmount float64
}

// Share represents one person's calculated responsibility for a bill.
// It is the output of the share allocation algorithm and is never persisted.
type Share struct {
	PersonID   string
	PersonName string

	// Items are the line items this person takes part in, in bill order.
	Items []ShareLineItem

	// ItemsTotal is the sum of this person's ShareAmounts (pre-tax).
	ItemsTotal float64

	// TaxShare is Tax × ItemsTotal / Subtotal.
	TaxShare float64

	// TipShare is Tip × ItemsTotal / Subtotal.
	TipShare float64

	// Total is ItemsTotal + TaxShare + TipShare.
	Total float64
}
