package billrpc

// Person is a participant in the split.
type Person struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BillItem is one receipt line.
type BillItem struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Price      float64  `json:"price"`
	Quantity   int      `json:"quantity"`
	AssignedTo []string `json:"assignedTo"`
}

// Bill is the receipt state of a session.
type Bill struct {
	Items    []BillItem `json:"items"`
	Subtotal float64    `json:"subtotal"`
	Tax      float64    `json:"tax"`
	Tip      float64    `json:"tip"`
	Total    float64    `json:"total"`
	People   []Person   `json:"people"`

	// TipPercentage is derived from Tip and Subtotal for display.
	TipPercentage int `json:"tipPercentage"`
}

// ShareLineItem is one item in a person's share.
type ShareLineItem struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	SharedWith  int     `json:"sharedWith"`
	ShareAmount float64 `json:"shareAmount"`
}

// Share is what one person owes.
type Share struct {
	PersonID   string          `json:"personId"`
	PersonName string          `json:"personName"`
	Items      []ShareLineItem `json:"items"`
	ItemsTotal float64         `json:"itemsTotal"`
	TaxShare   float64         `json:"taxShare"`
	TipShare   float64         `json:"tipShare"`
	Total      float64         `json:"total"`
}

// StepInfo describes one wizard step relative to the session's current step.
type StepInfo struct {
	Step   string `json:"step"`
	Label  string `json:"label"`
	Status string `json:"status"`
}

// Session is the full state a client needs to render the wizard.
type Session struct {
	ID                string     `json:"id"`
	Step              string     `json:"step"`
	Steps             []StepInfo `json:"steps"`
	Bill              Bill       `json:"bill"`
	ReceiptName       string     `json:"receiptName,omitempty"`
	UnassignedItemIDs []string   `json:"unassignedItemIds"`
	CreatedAt         int64      `json:"createdAt"`
	UpdatedAt         int64      `json:"updatedAt"`
}

// SessionRef names the session a request operates on.
type SessionRef struct {
	SessionID string `json:"sessionId" validate:"required,max=64"`
}

// GetSessionID returns the referenced session ID.
func (r SessionRef) GetSessionID() string { return r.SessionID }

type CreateSessionRequest struct{}

type CreateSessionResponse struct {
	Session Session `json:"session"`

	// Token must be sent as "Authorization: Bearer <token>" on every other call.
	Token string `json:"token"`
}

// SessionResponse is returned by every call that changes or reads a session.
type SessionResponse struct {
	Session Session `json:"session"`
}

type GetSessionRequest struct {
	SessionRef
}

// IngestReceiptRequest uploads a receipt image. Data is base64 in JSON.
type IngestReceiptRequest struct {
	SessionRef
	Filename    string `json:"filename" validate:"max=255"`
	ContentType string `json:"contentType" validate:"max=255"`
	Data        []byte `json:"data" validate:"required"`
}

type AddPersonRequest struct {
	SessionRef
	Name string `json:"name" validate:"max=64"`
}

type AddPersonResponse struct {
	Session Session `json:"session"`
	Person  Person  `json:"person"`
}

type RemovePersonRequest struct {
	SessionRef
	PersonID string `json:"personId" validate:"required"`
}

type ToggleAssignmentRequest struct {
	SessionRef
	ItemID   string `json:"itemId" validate:"required"`
	PersonID string `json:"personId" validate:"required"`
}

type SetTipPercentageRequest struct {
	SessionRef
	Percentage float64 `json:"percentage" validate:"gte=0,lte=100"`
}

type NextStepRequest struct {
	SessionRef
}

type PreviousStepRequest struct {
	SessionRef
}

type ResetSessionRequest struct {
	SessionRef
}

type CalculateSharesRequest struct {
	SessionRef
}

// Reconciliation flags bill state that makes shares fall short of the subtotal.
type Reconciliation struct {
	Balanced          bool     `json:"balanced"`
	AssignedTotal     float64  `json:"assignedTotal"`
	SharesTotal       float64  `json:"sharesTotal"`
	UnassignedItemIDs []string `json:"unassignedItemIds"`
	UnknownAssignees  []string `json:"unknownAssignees"`
}

type CalculateSharesResponse struct {
	Shares         []Share        `json:"shares"`
	Total          float64        `json:"total"`
	Reconciliation Reconciliation `json:"reconciliation"`
}

type ExportSummaryRequest struct {
	SessionRef
}

type ExportSummaryResponse struct {
	Text string `json:"text"`
}
