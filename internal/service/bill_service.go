package service

import (
	"context"
	"encoding/base64"
	"hash/fnv"
	"log/slog"
	"reflect"
	"strings"
	"sync"

	"connectrpc.com/connect"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/3tharva/split-the-tab-ai/internal/auth"
	"github.com/3tharva/split-the-tab-ai/internal/calculator"
	"github.com/3tharva/split-the-tab-ai/internal/metrics"
	"github.com/3tharva/split-the-tab-ai/internal/middleware"
	"github.com/3tharva/split-the-tab-ai/internal/models"
	"github.com/3tharva/split-the-tab-ai/internal/receipt"
	"github.com/3tharva/split-the-tab-ai/internal/storage"
	"github.com/3tharva/split-the-tab-ai/internal/wizard"
	"github.com/3tharva/split-the-tab-ai/pkg/billrpc"
)

const lockStripes = 64

// rpcEnvelopeSlack covers the JSON fields around the base64 receipt data.
const rpcEnvelopeSlack = 64 << 10

// Ensure BillService implements billrpc.BillServiceHandler
var _ billrpc.BillServiceHandler = (*BillService)(nil)

// BillService implements the Connect BillService: one wizard session per
// client, edited through small immutable bill updates.
type BillService struct {
	store    storage.Store
	tokens   *auth.SessionTokens
	ingestor *receipt.Ingestor
	metrics  *metrics.Metrics
	validate *validator.Validate

	// MaxUploadBytes caps receipt uploads on both the RPC and HTTP routes.
	MaxUploadBytes int64

	// Read-modify-write on a session is serialised per lock stripe.
	locks [lockStripes]sync.Mutex
}

// NewBillService creates a new BillService. m may be nil.
func NewBillService(store storage.Store, tokens *auth.SessionTokens, ingestor *receipt.Ingestor, m *metrics.Metrics) *BillService {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	return &BillService{
		store:          store,
		tokens:         tokens,
		ingestor:       ingestor,
		metrics:        m,
		validate:       validate,
		MaxUploadBytes: receipt.DefaultMaxBytes,
	}
}

// PublicProcedures lists the RPCs callable without a session token.
func PublicProcedures() []string {
	return []string{billrpc.BillServiceCreateSessionProcedure}
}

// ReadMaxBytes is the largest RPC request body worth decoding: a receipt of
// MaxUploadBytes, base64-encoded, plus its JSON envelope. Pass it to
// connect.WithReadMaxBytes so oversize bodies fail before they are buffered.
func (s *BillService) ReadMaxBytes() int {
	maxBytes := s.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = receipt.DefaultMaxBytes
	}
	return base64.StdEncoding.EncodedLen(int(maxBytes)) + rpcEnvelopeSlack
}

func (s *BillService) lock(sessionID string) func() {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	mu := &s.locks[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// check validates msg and verifies the caller's token was issued for sessionID.
func (s *BillService) check(ctx context.Context, msg any, sessionID string) error {
	if err := s.validate.Struct(msg); err != nil {
		return validationError(err)
	}
	if middleware.GetSessionID(ctx) != sessionID {
		return connect.NewError(connect.CodePermissionDenied, ErrSessionMismatch)
	}
	return nil
}

// update loads a session, applies fn and stores the result.
func (s *BillService) update(ctx context.Context, sessionID string, fn func(*models.Session) error) (*models.Session, error) {
	unlock := s.lock(sessionID)
	defer unlock()

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := fn(session); err != nil {
		return nil, err
	}
	if err := s.store.UpdateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func sessionResponse(session *models.Session) *connect.Response[billrpc.SessionResponse] {
	return connect.NewResponse(&billrpc.SessionResponse{Session: toSessionMsg(session)})
}

// CreateSession starts a new wizard run and returns its token.
func (s *BillService) CreateSession(ctx context.Context, req *connect.Request[billrpc.CreateSessionRequest]) (*connect.Response[billrpc.CreateSessionResponse], error) {
	session := &models.Session{
		Step: models.StepUpload,
		Bill: emptyBill(),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		slog.Error("CreateSession failed", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	token, err := s.tokens.Generate(session.ID)
	if err != nil {
		slog.Error("CreateSession token failed", "session_id", session.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	s.metrics.SessionCreated()
	slog.Info("Session created", "session_id", session.ID)

	return connect.NewResponse(&billrpc.CreateSessionResponse{
		Session: toSessionMsg(session),
		Token:   token,
	}), nil
}

// GetSession returns the session's current state.
func (s *BillService) GetSession(ctx context.Context, req *connect.Request[billrpc.GetSessionRequest]) (*connect.Response[billrpc.SessionResponse], error) {
	if err := s.check(ctx, req.Msg, req.Msg.SessionID); err != nil {
		return nil, err
	}

	session, err := s.store.GetSession(ctx, req.Msg.SessionID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return sessionResponse(session), nil
}

// IngestReceipt reads a receipt image into the session's bill and moves the
// wizard on to item assignment.
func (s *BillService) IngestReceipt(ctx context.Context, req *connect.Request[billrpc.IngestReceiptRequest]) (*connect.Response[billrpc.SessionResponse], error) {
	if err := s.check(ctx, req.Msg, req.Msg.SessionID); err != nil {
		return nil, err
	}

	session, err := s.ingest(ctx, req.Msg.SessionID, receipt.Upload{
		Filename:    req.Msg.Filename,
		ContentType: req.Msg.ContentType,
		Data:        req.Msg.Data,
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	return sessionResponse(session), nil
}

// ingest runs extraction outside the session lock, then stores the new bill
// if the session is still at the upload step.
func (s *BillService) ingest(ctx context.Context, sessionID string, upload receipt.Upload) (*models.Session, error) {
	current, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := wizard.CanIngest(current.Step); err != nil {
		return nil, err
	}

	bill, err := s.ingestor.Ingest(ctx, upload)
	if err != nil {
		return nil, err
	}

	return s.update(ctx, sessionID, func(session *models.Session) error {
		if err := wizard.CanIngest(session.Step); err != nil {
			return err
		}
		session.Bill = bill
		session.ReceiptName = upload.Filename
		next, err := wizard.Next(session.Step, session.Bill)
		if err != nil {
			return err
		}
		session.Step = next
		return nil
	})
}

// AddPerson adds a participant to the bill.
func (s *BillService) AddPerson(ctx context.Context, req *connect.Request[billrpc.AddPersonRequest]) (*connect.Response[billrpc.AddPersonResponse], error) {
	if err := s.check(ctx, req.Msg, req.Msg.SessionID); err != nil {
		return nil, err
	}

	var person models.Person
	session, err := s.update(ctx, req.Msg.SessionID, func(session *models.Session) error {
		if err := wizard.CanEdit(session.Step); err != nil {
			return err
		}
		name, err := models.ValidatePersonName(session.Bill.People, req.Msg.Name)
		if err != nil {
			return err
		}
		person = models.Person{ID: uuid.New().String(), Name: name}
		session.Bill = session.Bill.WithPerson(person)
		return nil
	})
	if err != nil {
		return nil, toConnectError(err)
	}

	slog.Debug("Person added", "session_id", session.ID, "person_id", person.ID)
	return connect.NewResponse(&billrpc.AddPersonResponse{
		Session: toSessionMsg(session),
		Person:  toPersonMsg(person),
	}), nil
}

// RemovePerson removes a participant and their item assignments.
func (s *BillService) RemovePerson(ctx context.Context, req *connect.Request[billrpc.RemovePersonRequest]) (*connect.Response[billrpc.SessionResponse], error) {
	if err := s.check(ctx, req.Msg, req.Msg.SessionID); err != nil {
		return nil, err
	}

	session, err := s.update(ctx, req.Msg.SessionID, func(session *models.Session) error {
		if err := wizard.CanEdit(session.Step); err != nil {
			return err
		}
		if _, ok := session.Bill.Person(req.Msg.PersonID); !ok {
			return models.ErrPersonNotFound
		}
		session.Bill = session.Bill.WithoutPerson(req.Msg.PersonID)
		return nil
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	return sessionResponse(session), nil
}

// ToggleAssignment adds the person to the item's assignees, or removes them.
func (s *BillService) ToggleAssignment(ctx context.Context, req *connect.Request[billrpc.ToggleAssignmentRequest]) (*connect.Response[billrpc.SessionResponse], error) {
	if err := s.check(ctx, req.Msg, req.Msg.SessionID); err != nil {
		return nil, err
	}

	session, err := s.update(ctx, req.Msg.SessionID, func(session *models.Session) error {
		if err := wizard.CanEdit(session.Step); err != nil {
			return err
		}
		bill, err := session.Bill.ToggleAssignment(req.Msg.ItemID, req.Msg.PersonID)
		if err != nil {
			return err
		}
		session.Bill = bill
		return nil
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	return sessionResponse(session), nil
}

// SetTipPercentage recomputes the tip and total from a percentage of the subtotal.
func (s *BillService) SetTipPercentage(ctx context.Context, req *connect.Request[billrpc.SetTipPercentageRequest]) (*connect.Response[billrpc.SessionResponse], error) {
	if err := s.check(ctx, req.Msg, req.Msg.SessionID); err != nil {
		return nil, err
	}

	session, err := s.update(ctx, req.Msg.SessionID, func(session *models.Session) error {
		if err := wizard.CanEdit(session.Step); err != nil {
			return err
		}
		session.Bill = session.Bill.WithTipPercentage(req.Msg.Percentage)
		return nil
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	return sessionResponse(session), nil
}

// NextStep advances the wizard when the current step's requirements are met.
func (s *BillService) NextStep(ctx context.Context, req *connect.Request[billrpc.NextStepRequest]) (*connect.Response[billrpc.SessionResponse], error) {
	if err := s.check(ctx, req.Msg, req.Msg.SessionID); err != nil {
		return nil, err
	}

	session, err := s.update(ctx, req.Msg.SessionID, func(session *models.Session) error {
		next, err := wizard.Next(session.Step, session.Bill)
		if err != nil {
			return err
		}
		session.Step = next
		return nil
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	return sessionResponse(session), nil
}

// PreviousStep moves the wizard back one step, keeping the bill.
func (s *BillService) PreviousStep(ctx context.Context, req *connect.Request[billrpc.PreviousStepRequest]) (*connect.Response[billrpc.SessionResponse], error) {
	if err := s.check(ctx, req.Msg, req.Msg.SessionID); err != nil {
		return nil, err
	}

	session, err := s.update(ctx, req.Msg.SessionID, func(session *models.Session) error {
		prev, err := wizard.Back(session.Step)
		if err != nil {
			return err
		}
		session.Step = prev
		return nil
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	return sessionResponse(session), nil
}

// ResetSession discards the bill and returns to the upload step.
func (s *BillService) ResetSession(ctx context.Context, req *connect.Request[billrpc.ResetSessionRequest]) (*connect.Response[billrpc.SessionResponse], error) {
	if err := s.check(ctx, req.Msg, req.Msg.SessionID); err != nil {
		return nil, err
	}

	session, err := s.update(ctx, req.Msg.SessionID, func(session *models.Session) error {
		session.Step = models.StepUpload
		session.Bill = emptyBill()
		session.ReceiptName = ""
		return nil
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	slog.Info("Session reset", "session_id", session.ID)
	return sessionResponse(session), nil
}

// shares computes and reconciles the shares for a bill, recording the outcome.
func (s *BillService) shares(sessionID string, bill models.Bill) ([]models.Share, calculator.Reconciliation) {
	shares := calculator.CalculateShares(bill)
	rec := calculator.Reconcile(bill, shares)

	balanced := rec.Balanced(bill)
	s.metrics.ObserveShares(balanced)
	if !balanced {
		slog.Warn("Shares do not cover the bill",
			"session_id", sessionID,
			"subtotal", bill.Subtotal,
			"shares_total", rec.SharesTotal,
			"unassigned_items", len(rec.UnassignedItemIDs),
			"unknown_assignees", len(rec.UnknownAssignees),
		)
	}
	return shares, rec
}

// CalculateShares returns what each person owes for the session's bill.
func (s *BillService) CalculateShares(ctx context.Context, req *connect.Request[billrpc.CalculateSharesRequest]) (*connect.Response[billrpc.CalculateSharesResponse], error) {
	if err := s.check(ctx, req.Msg, req.Msg.SessionID); err != nil {
		return nil, err
	}

	session, err := s.store.GetSession(ctx, req.Msg.SessionID)
	if err != nil {
		return nil, toConnectError(err)
	}

	shares, rec := s.shares(session.ID, session.Bill)
	return connect.NewResponse(&billrpc.CalculateSharesResponse{
		Shares:         toShareMsgs(shares),
		Total:          session.Bill.Total,
		Reconciliation: toReconciliationMsg(session.Bill, rec),
	}), nil
}

// ExportSummary renders the shares as shareable plain text.
func (s *BillService) ExportSummary(ctx context.Context, req *connect.Request[billrpc.ExportSummaryRequest]) (*connect.Response[billrpc.ExportSummaryResponse], error) {
	if err := s.check(ctx, req.Msg, req.Msg.SessionID); err != nil {
		return nil, err
	}

	text, err := s.summary(ctx, req.Msg.SessionID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&billrpc.ExportSummaryResponse{Text: text}), nil
}

func (s *BillService) summary(ctx context.Context, sessionID string) (string, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	shares, _ := s.shares(session.ID, session.Bill)
	return calculator.Summary(session.Bill, shares), nil
}
