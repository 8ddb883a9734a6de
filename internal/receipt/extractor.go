package receipt

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/3tharva/split-the-tab-ai/internal/models"
)

// DefaultSimulatedDelay mirrors the time a real OCR call would take.
const DefaultSimulatedDelay = 2 * time.Second

// Extractor reads line items and totals from a receipt image.
// The returned Bill has Items, Subtotal, Tax, Tip and Total populated and no People.
type Extractor interface {
	Extract(ctx context.Context, img Image) (models.Bill, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, img Image) (models.Bill, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, img Image) (models.Bill, error) {
	return f(ctx, img)
}

// SimulatedExtractor stands in for an OCR backend. After Delay it returns the
// same sample restaurant receipt for every image.
type SimulatedExtractor struct {
	Delay time.Duration
}

// Extract waits for Delay, or until ctx is done, then returns the sample bill.
func (s SimulatedExtractor) Extract(ctx context.Context, _ Image) (models.Bill, error) {
	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return models.Bill{}, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return models.Bill{}, err
	}
	return sampleBill(), nil
}

func sampleBill() models.Bill {
	item := func(name string, price float64, qty int) models.BillItem {
		return models.BillItem{
			ID:         uuid.New().String(),
			Name:       name,
			Price:      price,
			Quantity:   qty,
			AssignedTo: []string{},
		}
	}
	return models.Bill{
		Items: []models.BillItem{
			item("Chicken Pad Thai", 14.95, 1),
			item("Garden Salad", 8.95, 1),
			item("Margherita Pizza", 15.50, 1),
			item("Iced Tea", 3.50, 2),
			item("Chocolate Cake", 7.95, 1),
		},
		Subtotal: 54.35,
		Tax:      4.89,
		Tip:      10.87,
		Total:    70.11,
		People:   []models.Person{},
	}
}
