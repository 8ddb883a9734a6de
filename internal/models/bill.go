package models

import (
	"errors"
	"math"
	"slices"
	"strings"
)

// DefaultTipPercentage is used when a bill has no subtotal to derive a tip rate from.
const DefaultTipPercentage = 20

var (
	ErrEmptyName      = errors.New("please enter a name")
	ErrDuplicateName  = errors.New("this name is already added")
	ErrItemNotFound   = errors.New("item not found")
	ErrPersonNotFound = errors.New("person not found")
)

// Person is someone taking part in the split.
type Person struct {
	// ID is unique within a bill.
	ID string

	// Name is the display name. Names are unique within a bill, compared
	// case-insensitively (see ValidatePersonName).
	Name string
}

// BillItem represents a single line item on a receipt.
type BillItem struct {
	ID   string
	Name string

	// Price is the per-unit price.
	Price float64

	// Quantity is the number of units, at least 1.
	Quantity int

	// AssignedTo holds the IDs of the people splitting this item.
	// Empty means unassigned; several IDs means the item is shared equally.
	AssignedTo []string
}

// LineTotal is Price × Quantity.
func (i BillItem) LineTotal() float64 {
	return i.Price * float64(i.Quantity)
}

// IsAssignedTo reports whether personID is among the item's assignees.
func (i BillItem) IsAssignedTo(personID string) bool {
	return slices.Contains(i.AssignedTo, personID)
}

// Bill is the full receipt state: items, aggregate figures and participants.
//
// Subtotal is expected to equal the sum of item line totals and Total to equal
// Subtotal + Tax + Tip, but neither is enforced here.
type Bill struct {
	Items    []BillItem
	Subtotal float64
	Tax      float64
	Tip      float64
	Total    float64
	People   []Person
}

// Clone returns a deep copy of the bill.
func (b Bill) Clone() Bill {
	out := b
	out.People = slices.Clone(b.People)
	if b.Items != nil {
		out.Items = make([]BillItem, len(b.Items))
		for i, item := range b.Items {
			item.AssignedTo = slices.Clone(item.AssignedTo)
			out.Items[i] = item
		}
	}
	return out
}

// Person looks up a participant by ID.
func (b Bill) Person(id string) (Person, bool) {
	for _, p := range b.People {
		if p.ID == id {
			return p, true
		}
	}
	return Person{}, false
}

// WithPerson returns a copy of the bill with p appended to People.
// Name validation is the caller's job; see ValidatePersonName.
func (b Bill) WithPerson(p Person) Bill {
	out := b.Clone()
	out.People = append(out.People, p)
	return out
}

// WithoutPerson returns a copy of the bill with the person removed from People
// and from every item's assignees. Unknown IDs yield an unchanged copy.
func (b Bill) WithoutPerson(personID string) Bill {
	out := b.Clone()
	out.People = slices.DeleteFunc(out.People, func(p Person) bool { return p.ID == personID })
	for i := range out.Items {
		out.Items[i].AssignedTo = slices.DeleteFunc(out.Items[i].AssignedTo, func(id string) bool {
			return id == personID
		})
	}
	return out
}

// ToggleAssignment returns a copy of the bill in which personID is removed from
// the item's assignees if present, and appended otherwise.
func (b Bill) ToggleAssignment(itemID, personID string) (Bill, error) {
	if _, ok := b.Person(personID); !ok {
		return Bill{}, ErrPersonNotFound
	}
	idx := slices.IndexFunc(b.Items, func(item BillItem) bool { return item.ID == itemID })
	if idx < 0 {
		return Bill{}, ErrItemNotFound
	}

	out := b.Clone()
	item := &out.Items[idx]
	if item.IsAssignedTo(personID) {
		item.AssignedTo = slices.DeleteFunc(item.AssignedTo, func(id string) bool { return id == personID })
	} else {
		item.AssignedTo = append(item.AssignedTo, personID)
	}
	return out, nil
}

// WithTipPercentage returns a copy of the bill whose tip is pct percent of the
// subtotal, with Total recomputed as Subtotal + Tax + Tip.
func (b Bill) WithTipPercentage(pct float64) Bill {
	out := b.Clone()
	out.Tip = out.Subtotal * pct / 100
	out.Total = out.Subtotal + out.Tax + out.Tip
	return out
}

// TipPercentage is the tip expressed as a whole percentage of the subtotal,
// or DefaultTipPercentage when there is no subtotal.
func (b Bill) TipPercentage() int {
	if b.Subtotal <= 0 {
		return DefaultTipPercentage
	}
	return int(math.Round(b.Tip / b.Subtotal * 100))
}

// UnassignedItems returns the items nobody has been assigned to, in bill order.
func (b Bill) UnassignedItems() []BillItem {
	var out []BillItem
	for _, item := range b.Items {
		if len(item.AssignedTo) == 0 {
			out = append(out, item)
		}
	}
	return out
}

// ItemsTotal sums the line totals of all items.
func (b Bill) ItemsTotal() float64 {
	var sum float64
	for _, item := range b.Items {
		sum += item.LineTotal()
	}
	return sum
}

// ValidatePersonName trims name and checks it is non-empty and not already
// used (case-insensitively) by someone in people. It returns the trimmed name.
func ValidatePersonName(people []Person, name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", ErrEmptyName
	}
	for _, p := range people {
		if strings.EqualFold(p.Name, trimmed) {
			return "", ErrDuplicateName
		}
	}
	return trimmed, nil
}
