package models

// Step is a stage of the bill-splitting wizard.
type Step string

const (
	StepUpload  Step = "upload"
	StepItems   Step = "items"
	StepResults Step = "results"
)

// Valid reports whether s is one of the known steps.
func (s Step) Valid() bool {
	switch s {
	case StepUpload, StepItems, StepResults:
		return true
	}
	return false
}

// Session is one run of the wizard: the bill being split and where the user is.
type Session struct {
	// ID is the unique identifier for the session (UUID format).
	ID string

	// Step is the wizard stage the session is at.
	Step Step

	// Bill is the current receipt state. Empty until a receipt is ingested.
	Bill Bill

	// ReceiptName is the filename of the last ingested receipt, if any.
	ReceiptName string

	// CreatedAt and UpdatedAt are Unix timestamps.
	CreatedAt int64
	UpdatedAt int64
}
