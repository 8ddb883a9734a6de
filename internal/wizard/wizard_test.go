package wizard

import (
	"errors"
	"testing"

	"github.com/3tharva/split-the-tab-ai/internal/models"
)

func TestNext(t *testing.T) {
	people := []models.Person{{ID: "a", Name: "Alice"}}
	assigned := []models.BillItem{{ID: "i1", Price: 5, Quantity: 1, AssignedTo: []string{"a"}}}
	unassigned := []models.BillItem{
		{ID: "i1", Price: 5, Quantity: 1, AssignedTo: []string{"a"}},
		{ID: "i2", Price: 5, Quantity: 1},
		{ID: "i3", Price: 5, Quantity: 1},
	}

	tests := []struct {
		name     string
		current  models.Step
		bill     models.Bill
		want     models.Step
		wantErr  error
		unassign int
	}{
		{"upload without receipt", models.StepUpload, models.Bill{}, models.StepUpload, ErrNoReceipt, 0},
		{"upload with receipt", models.StepUpload, models.Bill{Items: assigned}, models.StepItems, nil, 0},
		{"items without people", models.StepItems, models.Bill{Items: assigned}, models.StepItems, ErrNoPeople, 0},
		{"items with unassigned", models.StepItems, models.Bill{Items: unassigned, People: people}, models.StepItems, nil, 2},
		{"items ready", models.StepItems, models.Bill{Items: assigned, People: people}, models.StepResults, nil, 0},
		{"results is last", models.StepResults, models.Bill{}, models.StepResults, ErrNoNextStep, 0},
		{"unknown step", models.Step("nope"), models.Bill{}, models.Step("nope"), ErrUnknownStep, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Next(tt.current, tt.bill)
			if got != tt.want {
				t.Errorf("Next() step = %q, want %q", got, tt.want)
			}
			if tt.unassign > 0 {
				var ue *UnassignedItemsError
				if !errors.As(err, &ue) {
					t.Fatalf("err = %v, want UnassignedItemsError", err)
				}
				if ue.Count != tt.unassign {
					t.Errorf("unassigned count = %d, want %d", ue.Count, tt.unassign)
				}
				if ue.Error() != "2 items are not assigned to anyone" {
					t.Errorf("message = %q", ue.Error())
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBack(t *testing.T) {
	tests := []struct {
		current models.Step
		want    models.Step
		wantErr error
	}{
		{models.StepResults, models.StepItems, nil},
		{models.StepItems, models.StepUpload, nil},
		{models.StepUpload, models.StepUpload, ErrNoPrevStep},
	}
	for _, tt := range tests {
		t.Run(string(tt.current), func(t *testing.T) {
			got, err := Back(tt.current)
			if got != tt.want || !errors.Is(err, tt.wantErr) {
				t.Errorf("Back(%q) = %q, %v; want %q, %v", tt.current, got, err, tt.want, tt.wantErr)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		step, current models.Step
		want          StepStatus
	}{
		{models.StepUpload, models.StepUpload, StatusCurrent},
		{models.StepItems, models.StepUpload, StatusUpcoming},
		{models.StepUpload, models.StepItems, StatusCompleted},
		{models.StepUpload, models.StepResults, StatusCompleted},
		{models.StepItems, models.StepResults, StatusCompleted},
		{models.StepResults, models.StepItems, StatusUpcoming},
	}
	for _, tt := range tests {
		if got := Status(tt.step, tt.current); got != tt.want {
			t.Errorf("Status(%q, %q) = %q, want %q", tt.step, tt.current, got, tt.want)
		}
	}
}

func TestSteps(t *testing.T) {
	got := Steps()
	if len(got) != 3 || got[0].Label != "Upload Bill" || got[2].Step != models.StepResults {
		t.Errorf("Steps() = %+v", got)
	}
	got[0].Label = "changed"
	if Steps()[0].Label != "Upload Bill" {
		t.Error("Steps() exposed internal slice")
	}
}

func TestGuards(t *testing.T) {
	tests := []struct {
		step      models.Step
		ingestErr error
		editErr   error
	}{
		{models.StepUpload, nil, ErrNotEditable},
		{models.StepItems, ErrNotUpload, nil},
		{models.StepResults, ErrNotUpload, ErrNotEditable},
	}
	for _, tt := range tests {
		t.Run(string(tt.step), func(t *testing.T) {
			if err := CanIngest(tt.step); !errors.Is(err, tt.ingestErr) {
				t.Errorf("CanIngest = %v, want %v", err, tt.ingestErr)
			}
			if err := CanEdit(tt.step); !errors.Is(err, tt.editErr) {
				t.Errorf("CanEdit = %v, want %v", err, tt.editErr)
			}
		})
	}
}
