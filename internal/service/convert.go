package service

import (
	"github.com/3tharva/split-the-tab-ai/internal/calculator"
	"github.com/3tharva/split-the-tab-ai/internal/models"
	"github.com/3tharva/split-the-tab-ai/internal/wizard"
	"github.com/3tharva/split-the-tab-ai/pkg/billrpc"
)

func toPersonMsg(p models.Person) billrpc.Person {
	return billrpc.Person{ID: p.ID, Name: p.Name}
}

func toBillMsg(bill models.Bill) billrpc.Bill {
	items := make([]billrpc.BillItem, len(bill.Items))
	for i, item := range bill.Items {
		assigned := make([]string, len(item.AssignedTo))
		copy(assigned, item.AssignedTo)
		items[i] = billrpc.BillItem{
			ID:         item.ID,
			Name:       item.Name,
			Price:      item.Price,
			Quantity:   item.Quantity,
			AssignedTo: assigned,
		}
	}

	people := make([]billrpc.Person, len(bill.People))
	for i, p := range bill.People {
		people[i] = toPersonMsg(p)
	}

	return billrpc.Bill{
		Items:         items,
		Subtotal:      bill.Subtotal,
		Tax:           bill.Tax,
		Tip:           bill.Tip,
		Total:         bill.Total,
		People:        people,
		TipPercentage: bill.TipPercentage(),
	}
}

func toSessionMsg(session *models.Session) billrpc.Session {
	steps := wizard.Steps()
	stepMsgs := make([]billrpc.StepInfo, len(steps))
	for i, st := range steps {
		stepMsgs[i] = billrpc.StepInfo{
			Step:   string(st.Step),
			Label:  st.Label,
			Status: string(wizard.Status(st.Step, session.Step)),
		}
	}

	unassigned := []string{}
	for _, item := range session.Bill.UnassignedItems() {
		unassigned = append(unassigned, item.ID)
	}

	return billrpc.Session{
		ID:                session.ID,
		Step:              string(session.Step),
		Steps:             stepMsgs,
		Bill:              toBillMsg(session.Bill),
		ReceiptName:       session.ReceiptName,
		UnassignedItemIDs: unassigned,
		CreatedAt:         session.CreatedAt,
		UpdatedAt:         session.UpdatedAt,
	}
}

func toShareMsgs(shares []models.Share) []billrpc.Share {
	out := make([]billrpc.Share, len(shares))
	for i, share := range shares {
		items := make([]billrpc.ShareLineItem, len(share.Items))
		for j, item := range share.Items {
			items[j] = billrpc.ShareLineItem{
				ID:          item.ID,
				Name:        item.Name,
				Price:       item.Price,
				Quantity:    item.Quantity,
				SharedWith:  item.SharedWith,
				ShareAmount: item.ShareAmount,
			}
		}
		out[i] = billrpc.Share{
			PersonID:   share.PersonID,
			PersonName: share.PersonName,
			Items:      items,
			ItemsTotal: share.ItemsTotal,
			TaxShare:   share.TaxShare,
			TipShare:   share.TipShare,
			Total:      share.Total,
		}
	}
	return out
}

func toReconciliationMsg(bill models.Bill, r calculator.Reconciliation) billrpc.Reconciliation {
	msg := billrpc.Reconciliation{
		Balanced:          r.Balanced(bill),
		AssignedTotal:     r.AssignedTotal,
		SharesTotal:       r.SharesTotal,
		UnassignedItemIDs: r.UnassignedItemIDs,
		UnknownAssignees:  r.UnknownAssignees,
	}
	if msg.UnassignedItemIDs == nil {
		msg.UnassignedItemIDs = []string{}
	}
	if msg.UnknownAssignees == nil {
		msg.UnknownAssignees = []string{}
	}
	return msg
}

func emptyBill() models.Bill {
	return models.Bill{
		Items:  []models.BillItem{},
		People: []models.Person{},
	}
}
