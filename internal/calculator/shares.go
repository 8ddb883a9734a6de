// Package calculator computes how a bill is split between people.
package calculator

import (
	"github.com/3tharva/split-the-tab-ai/internal/models"
)

// CalculateShares computes each person's share of the bill, including
// proportional tax and tip.
//
// Algorithm:
//   - every item is split equally between the people it is assigned to:
//     share_amount = price × quantity / len(assigned_to)
//   - items assigned to nobody are skipped and count towards no one
//   - assignee IDs that are not in bill.People are ignored
//   - tax_share = tax × items_total / subtotal, likewise for tip
//   - when subtotal <= 0, tax, tip and total all stay at zero
//
// The result has exactly one Share per person, in bill.People order. The bill
// is not modified and no rounding is applied.
func CalculateShares(bill models.Bill) []models.Share {
	shares := make([]models.Share, len(bill.People))
	index := make(map[string]int, len(bill.People))
	for i, p := range bill.People {
		shares[i] = models.Share{
			PersonID:   p.ID,
			PersonName: p.Name,
			Items:      []models.ShareLineItem{},
		}
		index[p.ID] = i
	}

	for _, item := range bill.Items {
		sharedWith := len(item.AssignedTo)
		if sharedWith == 0 {
			continue
		}

		pricePerPerson := item.LineTotal() / float64(sharedWith)
		for _, personID := range item.AssignedTo {
			i, ok := index[personID]
			if !ok {
				continue
			}
			share := &shares[i]
			share.Items = append(share.Items, models.ShareLineItem{
				ID:          item.ID,
				Name:        item.Name,
				Price:       item.Price,
				Quantity:    item.Quantity,
				SharedWith:  sharedWith,
				ShareAmount: pricePerPerson,
			})
			share.ItemsTotal += pricePerPerson
		}
	}

	if bill.Subtotal > 0 {
		for i := range shares {
			share := &shares[i]
			proportion := share.ItemsTotal / bill.Subtotal
			share.TaxShare = bill.Tax * proportion
			share.TipShare = bill.Tip * proportion
			share.Total = share.ItemsTotal + share.TaxShare + share.TipShare
		}
	}

	return shares
}
