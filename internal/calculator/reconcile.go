package calculator

import (
	"math"

	"github.com/3tharva/split-the-tab-ai/internal/models"
)

// reconcileTolerance absorbs float noise when comparing sums of shares.
const reconcileTolerance = 0.005

// Reconciliation explains why the shares of a bill may not add up to the bill.
// CalculateShares drops unassigned items and unknown assignees silently;
// this lets callers surface those cases as warnings.
type Reconciliation struct {
	// AssignedTotal is the part of the item prices attributed to known people.
	AssignedTotal float64

	// SharesTotal is the sum of all shares' ItemsTotal.
	SharesTotal float64

	// UnassignedItemIDs lists items nobody is assigned to.
	UnassignedItemIDs []string

	// UnknownAssignees lists assignee IDs that match no person, in first-seen order.
	UnknownAssignees []string
}

// Balanced reports whether the shares account for the whole item subtotal.
func (r Reconciliation) Balanced(bill models.Bill) bool {
	return len(r.UnassignedItemIDs) == 0 &&
		len(r.UnknownAssignees) == 0 &&
		math.Abs(r.SharesTotal-bill.Subtotal) <= reconcileTolerance
}

// Reconcile compares the shares computed for bill against the bill itself.
func Reconcile(bill models.Bill, shares []models.Share) Reconciliation {
	known := make(map[string]bool, len(bill.People))
	for _, p := range bill.People {
		known[p.ID] = true
	}

	var r Reconciliation
	seen := make(map[string]bool)
	for _, item := range bill.Items {
		if len(item.AssignedTo) == 0 {
			r.UnassignedItemIDs = append(r.UnassignedItemIDs, item.ID)
			continue
		}
		knownCount := 0
		for _, id := range item.AssignedTo {
			if known[id] {
				knownCount++
				continue
			}
			if !seen[id] {
				seen[id] = true
				r.UnknownAssignees = append(r.UnknownAssignees, id)
			}
		}
		if knownCount > 0 {
			r.AssignedTotal += item.LineTotal() * float64(knownCount) / float64(len(item.AssignedTo))
		}
	}

	for _, s := range shares {
		r.SharesTotal += s.ItemsTotal
	}
	return r
}
