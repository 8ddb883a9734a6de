// Package wizard implements step navigation for the upload, assign and
// results flow.
package wizard

import (
	"errors"
	"fmt"

	"github.com/3tharva/split-the-tab-ai/internal/models"
)

var (
	ErrNoReceipt   = errors.New("upload and process a receipt first")
	ErrNoPeople    = errors.New("please add at least one person to split the bill")
	ErrNoNextStep  = errors.New("already at the last step")
	ErrNoPrevStep  = errors.New("already at the first step")
	ErrUnknownStep = errors.New("unknown step")
	ErrNotEditable = errors.New("the bill can only be changed while assigning items")
	ErrNotUpload   = errors.New("go back to the upload step to replace the receipt")
)

// UnassignedItemsError blocks leaving the items step while some items have no assignee.
type UnassignedItemsError struct {
	Count int
}

func (e *UnassignedItemsError) Error() string {
	return fmt.Sprintf("%d items are not assigned to anyone", e.Count)
}

// StepStatus describes how a step relates to the current step.
type StepStatus string

const (
	StatusCompleted StepStatus = "completed"
	StatusCurrent   StepStatus = "current"
	StatusUpcoming  StepStatus = "upcoming"
)

// StepInfo is a step and its display label.
type StepInfo struct {
	Step  models.Step
	Label string
}

var steps = []StepInfo{
	{Step: models.StepUpload, Label: "Upload Bill"},
	{Step: models.StepItems, Label: "Assign Items"},
	{Step: models.StepResults, Label: "View Results"},
}

// Steps returns the wizard steps in order.
func Steps() []StepInfo {
	out := make([]StepInfo, len(steps))
	copy(out, steps)
	return out
}

func position(step models.Step) int {
	for i, s := range steps {
		if s.Step == step {
			return i
		}
	}
	return -1
}

// Status reports whether step is completed, current or upcoming relative to current.
func Status(step, current models.Step) StepStatus {
	p, c := position(step), position(current)
	switch {
	case p == c:
		return StatusCurrent
	case p < c:
		return StatusCompleted
	default:
		return StatusUpcoming
	}
}

// Next returns the step after current, provided bill satisfies the guard for
// leaving current.
func Next(current models.Step, bill models.Bill) (models.Step, error) {
	switch current {
	case models.StepUpload:
		if len(bill.Items) == 0 {
			return current, ErrNoReceipt
		}
		return models.StepItems, nil
	case models.StepItems:
		if len(bill.People) == 0 {
			return current, ErrNoPeople
		}
		if unassigned := bill.UnassignedItems(); len(unassigned) > 0 {
			return current, &UnassignedItemsError{Count: len(unassigned)}
		}
		return models.StepResults, nil
	case models.StepResults:
		return current, ErrNoNextStep
	}
	return current, ErrUnknownStep
}

// Back returns the step before current.
func Back(current models.Step) (models.Step, error) {
	switch current {
	case models.StepItems:
		return models.StepUpload, nil
	case models.StepResults:
		return models.StepItems, nil
	case models.StepUpload:
		return current, ErrNoPrevStep
	}
	return current, ErrUnknownStep
}

// CanIngest reports whether a receipt may be uploaded at current.
func CanIngest(current models.Step) error {
	if current != models.StepUpload {
		return ErrNotUpload
	}
	return nil
}

// CanEdit reports whether people, assignments and tip may change at current.
func CanEdit(current models.Step) error {
	if current != models.StepItems {
		return ErrNotEditable
	}
	return nil
}
