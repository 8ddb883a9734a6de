package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/3tharva/split-the-tab-ai/internal/auth"
	"github.com/3tharva/split-the-tab-ai/internal/metrics"
	"github.com/3tharva/split-the-tab-ai/internal/middleware"
	"github.com/3tharva/split-the-tab-ai/internal/models"
	"github.com/3tharva/split-the-tab-ai/internal/receipt"
	"github.com/3tharva/split-the-tab-ai/internal/storage"
	"github.com/3tharva/split-the-tab-ai/internal/storage/sqlite"
	"github.com/3tharva/split-the-tab-ai/internal/wizard"
	"github.com/3tharva/split-the-tab-ai/pkg/billrpc"
)

const tolerance = 0.001

type testServer struct {
	client  *billrpc.BillServiceClient
	url     string
	metrics *metrics.Metrics
}

// setupTestServer starts the Connect service and HTTP routes over an
// in-memory store, wired the same way as the server binary.
func setupTestServer(t *testing.T, extractor receipt.Extractor, timeout time.Duration, configure ...func(*BillService)) *testServer {
	t.Helper()

	store, err := sqlite.New(sqlite.MemoryDSN)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	m := metrics.New("test", prometheus.NewRegistry())
	tokens := auth.NewSessionTokens("test-secret", time.Hour)
	ingestor := receipt.NewIngestor(receipt.Preprocessor{}, extractor, timeout, m)
	svc := NewBillService(store, tokens, ingestor, m)
	for _, fn := range configure {
		fn(svc)
	}

	interceptors := connect.WithInterceptors(
		middleware.LoggingInterceptor(),
		middleware.RequireSession(tokens, PublicProcedures()...),
	)
	path, handler := billrpc.NewBillServiceHandler(svc, connect.WithReadMaxBytes(svc.ReadMaxBytes()), interceptors)

	r := chi.NewRouter()
	r.Handle(path+"*", handler)
	r.Mount("/api", svc.HTTPRoutes(nil))

	server := httptest.NewServer(r)
	t.Cleanup(func() {
		server.Close()
		store.Close()
	})

	return &testServer{
		client:  billrpc.NewBillServiceClient(http.DefaultClient, server.URL),
		url:     server.URL,
		metrics: m,
	}
}

func newTestServer(t *testing.T) *testServer {
	return setupTestServer(t, receipt.SimulatedExtractor{}, time.Second)
}

func withToken[T any](msg *T, token string) *connect.Request[T] {
	req := connect.NewRequest(msg)
	req.Header().Set("Authorization", "Bearer "+token)
	return req
}

func ref(id string) billrpc.SessionRef {
	return billrpc.SessionRef{SessionID: id}
}

func receiptPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 16, 24))
	for x := 0; x < 16; x++ {
		for y := 0; y < 24; y++ {
			img.Set(x, y, color.Gray{Y: uint8(x * y)})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func wantCode(t *testing.T, err error, code connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", code)
	}
	if got := connect.CodeOf(err); got != code {
		t.Fatalf("code = %v, want %v (err: %v)", got, code, err)
	}
}

// createSession starts a session and returns its ID and token.
func createSession(t *testing.T, ts *testServer) (string, string) {
	t.Helper()
	resp, err := ts.client.CreateSession(context.Background(), connect.NewRequest(&billrpc.CreateSessionRequest{}))
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	return resp.Msg.Session.ID, resp.Msg.Token
}

// ingestedSession returns a session at the items step holding the sample receipt.
func ingestedSession(t *testing.T, ts *testServer) (string, string, billrpc.Session) {
	t.Helper()
	id, token := createSession(t, ts)
	resp, err := ts.client.IngestReceipt(context.Background(), withToken(&billrpc.IngestReceiptRequest{
		SessionRef:  ref(id),
		Filename:    "dinner.png",
		ContentType: "image/png",
		Data:        receiptPNG(t),
	}, token))
	if err != nil {
		t.Fatalf("IngestReceipt failed: %v", err)
	}
	return id, token, resp.Msg.Session
}

func TestCreateSession(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.client.CreateSession(context.Background(), connect.NewRequest(&billrpc.CreateSessionRequest{}))
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	session := resp.Msg.Session
	if session.ID == "" || resp.Msg.Token == "" {
		t.Fatalf("expected session ID and token, got %q / %q", session.ID, resp.Msg.Token)
	}
	if session.Step != string(models.StepUpload) {
		t.Errorf("Step = %q, want upload", session.Step)
	}
	if len(session.Bill.Items) != 0 || len(session.Bill.People) != 0 {
		t.Errorf("expected empty bill, got %+v", session.Bill)
	}
	if session.Bill.TipPercentage != models.DefaultTipPercentage {
		t.Errorf("TipPercentage = %d, want %d", session.Bill.TipPercentage, models.DefaultTipPercentage)
	}

	wantStatus := []string{"current", "upcoming", "upcoming"}
	for i, st := range session.Steps {
		if st.Status != wantStatus[i] {
			t.Errorf("step %s status = %q, want %q", st.Step, st.Status, wantStatus[i])
		}
	}

	if got := testutil.ToFloat64(ts.metrics.SessionsCreated); got != 1 {
		t.Errorf("sessions_created_total = %v, want 1", got)
	}
}

func TestSessionTokenEnforcement(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	id, token := createSession(t, ts)
	otherID, otherToken := createSession(t, ts)

	t.Run("missing token", func(t *testing.T) {
		_, err := ts.client.GetSession(ctx, connect.NewRequest(&billrpc.GetSessionRequest{SessionRef: ref(id)}))
		wantCode(t, err, connect.CodeUnauthenticated)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := ts.client.GetSession(ctx, withToken(&billrpc.GetSessionRequest{SessionRef: ref(id)}, "garbage"))
		wantCode(t, err, connect.CodeUnauthenticated)
	})

	t.Run("token for another session", func(t *testing.T) {
		_, err := ts.client.GetSession(ctx, withToken(&billrpc.GetSessionRequest{SessionRef: ref(id)}, otherToken))
		wantCode(t, err, connect.CodePermissionDenied)
	})

	t.Run("missing session id", func(t *testing.T) {
		_, err := ts.client.GetSession(ctx, withToken(&billrpc.GetSessionRequest{}, token))
		wantCode(t, err, connect.CodeInvalidArgument)
		if !strings.Contains(err.Error(), "sessionId is required") {
			t.Errorf("error = %v, want field name in message", err)
		}
	})

	t.Run("own token", func(t *testing.T) {
		resp, err := ts.client.GetSession(ctx, withToken(&billrpc.GetSessionRequest{SessionRef: ref(otherID)}, otherToken))
		if err != nil {
			t.Fatalf("GetSession failed: %v", err)
		}
		if resp.Msg.Session.ID != otherID {
			t.Errorf("ID = %q, want %q", resp.Msg.Session.ID, otherID)
		}
	})
}

func TestGetSession_Pruned(t *testing.T) {
	ts := newTestServer(t)

	// A valid token whose session is no longer stored.
	tokens := auth.NewSessionTokens("test-secret", time.Hour)
	ghost, err := tokens.Generate("ghost")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	_, err = ts.client.GetSession(context.Background(), withToken(&billrpc.GetSessionRequest{SessionRef: ref("ghost")}, ghost))
	wantCode(t, err, connect.CodeNotFound)
}

func TestWizardFlow(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	id, token := createSession(t, ts)

	// Cannot skip the upload.
	_, err := ts.client.NextStep(ctx, withToken(&billrpc.NextStepRequest{SessionRef: ref(id)}, token))
	wantCode(t, err, connect.CodeFailedPrecondition)

	resp, err := ts.client.IngestReceipt(ctx, withToken(&billrpc.IngestReceiptRequest{
		SessionRef:  ref(id),
		Filename:    "dinner.png",
		ContentType: "image/png",
		Data:        receiptPNG(t),
	}, token))
	if err != nil {
		t.Fatalf("IngestReceipt failed: %v", err)
	}
	session := resp.Msg.Session
	if session.Step != string(models.StepItems) {
		t.Fatalf("Step = %q, want items", session.Step)
	}
	if session.ReceiptName != "dinner.png" {
		t.Errorf("ReceiptName = %q", session.ReceiptName)
	}
	if len(session.Bill.Items) != 5 || len(session.UnassignedItemIDs) != 5 {
		t.Fatalf("got %d items, %d unassigned; want 5, 5", len(session.Bill.Items), len(session.UnassignedItemIDs))
	}
	if session.Bill.TipPercentage != 20 {
		t.Errorf("TipPercentage = %d, want 20", session.Bill.TipPercentage)
	}

	addPerson := func(name string) (billrpc.Person, error) {
		resp, err := ts.client.AddPerson(ctx, withToken(&billrpc.AddPersonRequest{SessionRef: ref(id), Name: name}, token))
		if err != nil {
			return billrpc.Person{}, err
		}
		return resp.Msg.Person, nil
	}

	// No people yet.
	_, err = ts.client.NextStep(ctx, withToken(&billrpc.NextStepRequest{SessionRef: ref(id)}, token))
	wantCode(t, err, connect.CodeFailedPrecondition)

	alice, err := addPerson("  Alice ")
	if err != nil {
		t.Fatalf("AddPerson failed: %v", err)
	}
	if alice.Name != "Alice" || alice.ID == "" {
		t.Errorf("person = %+v, want trimmed name and an id", alice)
	}
	bob, err := addPerson("Bob")
	if err != nil {
		t.Fatalf("AddPerson failed: %v", err)
	}

	_, err = addPerson("alice")
	wantCode(t, err, connect.CodeInvalidArgument)
	_, err = addPerson("   ")
	wantCode(t, err, connect.CodeInvalidArgument)

	// Items are still unassigned.
	_, err = ts.client.NextStep(ctx, withToken(&billrpc.NextStepRequest{SessionRef: ref(id)}, token))
	wantCode(t, err, connect.CodeFailedPrecondition)
	if !strings.Contains(err.Error(), "5 items are not assigned") {
		t.Errorf("error = %v, want unassigned count", err)
	}

	items := session.Bill.Items
	assignments := map[int][]string{
		0: {alice.ID},         // Chicken Pad Thai
		1: {bob.ID},           // Garden Salad
		2: {alice.ID, bob.ID}, // Margherita Pizza
		3: {alice.ID, bob.ID}, // Iced Tea x2
		4: {alice.ID},         // Chocolate Cake
	}
	for i, people := range assignments {
		for _, personID := range people {
			_, err := ts.client.ToggleAssignment(ctx, withToken(&billrpc.ToggleAssignmentRequest{
				SessionRef: ref(id),
				ItemID:     items[i].ID,
				PersonID:   personID,
			}, token))
			if err != nil {
				t.Fatalf("ToggleAssignment(%s, %s) failed: %v", items[i].Name, personID, err)
			}
		}
	}

	next, err := ts.client.NextStep(ctx, withToken(&billrpc.NextStepRequest{SessionRef: ref(id)}, token))
	if err != nil {
		t.Fatalf("NextStep failed: %v", err)
	}
	if next.Msg.Session.Step != string(models.StepResults) {
		t.Fatalf("Step = %q, want results", next.Msg.Session.Step)
	}

	sharesResp, err := ts.client.CalculateShares(ctx, withToken(&billrpc.CalculateSharesRequest{SessionRef: ref(id)}, token))
	if err != nil {
		t.Fatalf("CalculateShares failed: %v", err)
	}
	shares := sharesResp.Msg.Shares
	if len(shares) != 2 || shares[0].PersonName != "Alice" || shares[1].PersonName != "Bob" {
		t.Fatalf("shares = %+v, want Alice then Bob", shares)
	}

	// Alice: 14.95 + 15.50/2 + 7.00/2 + 7.95 = 34.15
	// Bob:   8.95 + 15.50/2 + 7.00/2 = 20.20
	if math.Abs(shares[0].ItemsTotal-34.15) > tolerance {
		t.Errorf("Alice items total = %v, want 34.15", shares[0].ItemsTotal)
	}
	if math.Abs(shares[1].ItemsTotal-20.20) > tolerance {
		t.Errorf("Bob items total = %v, want 20.20", shares[1].ItemsTotal)
	}
	if got := shares[0].Total + shares[1].Total; math.Abs(got-70.11) > tolerance {
		t.Errorf("sum of totals = %v, want 70.11", got)
	}
	if len(shares[0].Items) != 4 || shares[0].Items[2].SharedWith != 2 {
		t.Errorf("Alice line items = %+v", shares[0].Items)
	}
	if !sharesResp.Msg.Reconciliation.Balanced {
		t.Errorf("expected balanced reconciliation, got %+v", sharesResp.Msg.Reconciliation)
	}
	if got := testutil.ToFloat64(ts.metrics.ShareCalculations.WithLabelValues("true")); got != 1 {
		t.Errorf("balanced share calculations = %v, want 1", got)
	}

	summary, err := ts.client.ExportSummary(ctx, withToken(&billrpc.ExportSummaryRequest{SessionRef: ref(id)}, token))
	if err != nil {
		t.Fatalf("ExportSummary failed: %v", err)
	}
	wantSummary := "Split The Tab - Bill Breakdown\nTotal: $70.11\n\n" +
		"Alice: $44.05\nItems: $34.15\nTax: $3.07\nTip: $6.83\n\n" +
		"Bob: $26.06\nItems: $20.20\nTax: $1.82\nTip: $4.04\n\n"
	if summary.Msg.Text != wantSummary {
		t.Errorf("summary =\n%s\nwant\n%s", summary.Msg.Text, wantSummary)
	}

	// The bill is frozen on the results step.
	_, err = addPerson("Carol")
	wantCode(t, err, connect.CodeFailedPrecondition)
	_, err = ts.client.NextStep(ctx, withToken(&billrpc.NextStepRequest{SessionRef: ref(id)}, token))
	wantCode(t, err, connect.CodeFailedPrecondition)

	back, err := ts.client.PreviousStep(ctx, withToken(&billrpc.PreviousStepRequest{SessionRef: ref(id)}, token))
	if err != nil {
		t.Fatalf("PreviousStep failed: %v", err)
	}
	if back.Msg.Session.Step != string(models.StepItems) || len(back.Msg.Session.Bill.People) != 2 {
		t.Errorf("PreviousStep lost state: %+v", back.Msg.Session)
	}

	reset, err := ts.client.ResetSession(ctx, withToken(&billrpc.ResetSessionRequest{SessionRef: ref(id)}, token))
	if err != nil {
		t.Fatalf("ResetSession failed: %v", err)
	}
	if reset.Msg.Session.Step != string(models.StepUpload) || len(reset.Msg.Session.Bill.Items) != 0 || reset.Msg.Session.ReceiptName != "" {
		t.Errorf("ResetSession = %+v", reset.Msg.Session)
	}

	_, err = ts.client.PreviousStep(ctx, withToken(&billrpc.PreviousStepRequest{SessionRef: ref(id)}, token))
	wantCode(t, err, connect.CodeFailedPrecondition)
}

func TestRemovePerson(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	id, token, session := ingestedSession(t, ts)

	added, err := ts.client.AddPerson(ctx, withToken(&billrpc.AddPersonRequest{SessionRef: ref(id), Name: "Alice"}, token))
	if err != nil {
		t.Fatalf("AddPerson failed: %v", err)
	}
	alice := added.Msg.Person

	_, err = ts.client.ToggleAssignment(ctx, withToken(&billrpc.ToggleAssignmentRequest{
		SessionRef: ref(id), ItemID: session.Bill.Items[0].ID, PersonID: alice.ID,
	}, token))
	if err != nil {
		t.Fatalf("ToggleAssignment failed: %v", err)
	}

	resp, err := ts.client.RemovePerson(ctx, withToken(&billrpc.RemovePersonRequest{SessionRef: ref(id), PersonID: alice.ID}, token))
	if err != nil {
		t.Fatalf("RemovePerson failed: %v", err)
	}
	bill := resp.Msg.Session.Bill
	if len(bill.People) != 0 {
		t.Errorf("People = %+v, want none", bill.People)
	}
	if len(bill.Items[0].AssignedTo) != 0 {
		t.Errorf("AssignedTo = %v, want removed person dropped", bill.Items[0].AssignedTo)
	}

	_, err = ts.client.RemovePerson(ctx, withToken(&billrpc.RemovePersonRequest{SessionRef: ref(id), PersonID: alice.ID}, token))
	wantCode(t, err, connect.CodeNotFound)
}

func TestToggleAssignment_Errors(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	id, token, session := ingestedSession(t, ts)

	added, err := ts.client.AddPerson(ctx, withToken(&billrpc.AddPersonRequest{SessionRef: ref(id), Name: "Alice"}, token))
	if err != nil {
		t.Fatalf("AddPerson failed: %v", err)
	}

	tests := []struct {
		name     string
		itemID   string
		personID string
		want     connect.Code
	}{
		{"unknown item", "nope", added.Msg.Person.ID, connect.CodeNotFound},
		{"unknown person", session.Bill.Items[0].ID, "nobody", connect.CodeNotFound},
		{"missing item id", "", added.Msg.Person.ID, connect.CodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.client.ToggleAssignment(ctx, withToken(&billrpc.ToggleAssignmentRequest{
				SessionRef: ref(id), ItemID: tt.itemID, PersonID: tt.personID,
			}, token))
			wantCode(t, err, tt.want)
		})
	}

	// Toggling twice restores the original assignment.
	for range 2 {
		resp, err := ts.client.ToggleAssignment(ctx, withToken(&billrpc.ToggleAssignmentRequest{
			SessionRef: ref(id), ItemID: session.Bill.Items[0].ID, PersonID: added.Msg.Person.ID,
		}, token))
		if err != nil {
			t.Fatalf("ToggleAssignment failed: %v", err)
		}
		session = resp.Msg.Session
	}
	if len(session.Bill.Items[0].AssignedTo) != 0 {
		t.Errorf("AssignedTo = %v, want empty after two toggles", session.Bill.Items[0].AssignedTo)
	}
}

func TestSetTipPercentage(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	id, token, _ := ingestedSession(t, ts)

	resp, err := ts.client.SetTipPercentage(ctx, withToken(&billrpc.SetTipPercentageRequest{SessionRef: ref(id), Percentage: 15}, token))
	if err != nil {
		t.Fatalf("SetTipPercentage failed: %v", err)
	}
	bill := resp.Msg.Session.Bill
	if math.Abs(bill.Tip-8.1525) > tolerance {
		t.Errorf("Tip = %v, want 8.1525", bill.Tip)
	}
	if math.Abs(bill.Total-(54.35+4.89+8.1525)) > tolerance {
		t.Errorf("Total = %v", bill.Total)
	}
	if bill.TipPercentage != 15 {
		t.Errorf("TipPercentage = %d, want 15", bill.TipPercentage)
	}

	for _, pct := range []float64{-1, 150} {
		_, err := ts.client.SetTipPercentage(ctx, withToken(&billrpc.SetTipPercentageRequest{SessionRef: ref(id), Percentage: pct}, token))
		wantCode(t, err, connect.CodeInvalidArgument)
	}
}

func TestIngestReceipt_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("not an image", func(t *testing.T) {
		ts := newTestServer(t)
		id, token := createSession(t, ts)
		_, err := ts.client.IngestReceipt(ctx, withToken(&billrpc.IngestReceiptRequest{
			SessionRef: ref(id), Filename: "r.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4"),
		}, token))
		wantCode(t, err, connect.CodeInvalidArgument)
		if !strings.Contains(err.Error(), "please upload an image file") {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("no data", func(t *testing.T) {
		ts := newTestServer(t)
		id, token := createSession(t, ts)
		_, err := ts.client.IngestReceipt(ctx, withToken(&billrpc.IngestReceiptRequest{SessionRef: ref(id)}, token))
		wantCode(t, err, connect.CodeInvalidArgument)
	})

	t.Run("past the upload step", func(t *testing.T) {
		ts := newTestServer(t)
		id, token, _ := ingestedSession(t, ts)
		_, err := ts.client.IngestReceipt(ctx, withToken(&billrpc.IngestReceiptRequest{
			SessionRef: ref(id), ContentType: "image/png", Data: receiptPNG(t),
		}, token))
		wantCode(t, err, connect.CodeFailedPrecondition)
	})

	t.Run("timeout", func(t *testing.T) {
		ts := setupTestServer(t, receipt.SimulatedExtractor{Delay: time.Hour}, 20*time.Millisecond)
		id, token := createSession(t, ts)
		_, err := ts.client.IngestReceipt(ctx, withToken(&billrpc.IngestReceiptRequest{
			SessionRef: ref(id), ContentType: "image/png", Data: receiptPNG(t),
		}, token))
		wantCode(t, err, connect.CodeDeadlineExceeded)
		if got := testutil.ToFloat64(ts.metrics.Ingestions.WithLabelValues(metrics.OutcomeTimeout)); got != 1 {
			t.Errorf("timeout ingestions = %v, want 1", got)
		}
	})

	t.Run("extractor failure", func(t *testing.T) {
		failing := receipt.ExtractorFunc(func(context.Context, receipt.Image) (models.Bill, error) {
			return models.Bill{}, errors.New("ocr backend down")
		})
		ts := setupTestServer(t, failing, time.Second)
		id, token := createSession(t, ts)
		_, err := ts.client.IngestReceipt(ctx, withToken(&billrpc.IngestReceiptRequest{
			SessionRef: ref(id), ContentType: "image/png", Data: receiptPNG(t),
		}, token))
		wantCode(t, err, connect.CodeUnavailable)
		if strings.Contains(err.Error(), "ocr backend down") {
			t.Errorf("backend detail leaked to client: %v", err)
		}

		// The session is untouched.
		resp, err := ts.client.GetSession(ctx, withToken(&billrpc.GetSessionRequest{SessionRef: ref(id)}, token))
		if err != nil {
			t.Fatalf("GetSession failed: %v", err)
		}
		if resp.Msg.Session.Step != string(models.StepUpload) {
			t.Errorf("Step = %q, want upload", resp.Msg.Session.Step)
		}
	})
}

func TestIngestReceipt_RequestSizeCap(t *testing.T) {
	ctx := context.Background()
	ts := setupTestServer(t, receipt.SimulatedExtractor{}, time.Second, func(s *BillService) {
		s.MaxUploadBytes = 1024
	})
	id, token := createSession(t, ts)

	// Well past the base64 allowance for a 1 KiB receipt.
	oversize := bytes.Repeat([]byte{0xff}, 96<<10)

	t.Run("without token", func(t *testing.T) {
		_, err := ts.client.IngestReceipt(ctx, connect.NewRequest(&billrpc.IngestReceiptRequest{
			SessionRef: ref(id), ContentType: "image/png", Data: oversize,
		}))
		wantCode(t, err, connect.CodeResourceExhausted)
	})

	t.Run("with token", func(t *testing.T) {
		_, err := ts.client.IngestReceipt(ctx, withToken(&billrpc.IngestReceiptRequest{
			SessionRef: ref(id), ContentType: "image/png", Data: oversize,
		}, token))
		wantCode(t, err, connect.CodeResourceExhausted)
	})

	// Oversize bodies never reach the ingestor.
	if got := testutil.ToFloat64(ts.metrics.Ingestions.WithLabelValues(metrics.OutcomeRejected)); got != 0 {
		t.Errorf("rejected ingestions = %v, want 0", got)
	}

	t.Run("body within the cap reaches the ingestor", func(t *testing.T) {
		_, err := ts.client.IngestReceipt(ctx, withToken(&billrpc.IngestReceiptRequest{
			SessionRef: ref(id), ContentType: "image/png", Data: bytes.Repeat([]byte{0xff}, 2048),
		}, token))
		wantCode(t, err, connect.CodeInvalidArgument)
		if got := testutil.ToFloat64(ts.metrics.Ingestions.WithLabelValues(metrics.OutcomeRejected)); got != 1 {
			t.Errorf("rejected ingestions = %v, want 1", got)
		}
	})
}

func TestCalculateShares_Unbalanced(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	id, token, session := ingestedSession(t, ts)

	added, err := ts.client.AddPerson(ctx, withToken(&billrpc.AddPersonRequest{SessionRef: ref(id), Name: "Alice"}, token))
	if err != nil {
		t.Fatalf("AddPerson failed: %v", err)
	}
	_, err = ts.client.ToggleAssignment(ctx, withToken(&billrpc.ToggleAssignmentRequest{
		SessionRef: ref(id), ItemID: session.Bill.Items[0].ID, PersonID: added.Msg.Person.ID,
	}, token))
	if err != nil {
		t.Fatalf("ToggleAssignment failed: %v", err)
	}

	resp, err := ts.client.CalculateShares(ctx, withToken(&billrpc.CalculateSharesRequest{SessionRef: ref(id)}, token))
	if err != nil {
		t.Fatalf("CalculateShares failed: %v", err)
	}

	rec := resp.Msg.Reconciliation
	if rec.Balanced {
		t.Error("expected unbalanced reconciliation")
	}
	if len(rec.UnassignedItemIDs) != 4 {
		t.Errorf("UnassignedItemIDs = %v, want 4", rec.UnassignedItemIDs)
	}
	if math.Abs(resp.Msg.Shares[0].ItemsTotal-14.95) > tolerance {
		t.Errorf("ItemsTotal = %v, want 14.95", resp.Msg.Shares[0].ItemsTotal)
	}
	if got := testutil.ToFloat64(ts.metrics.ShareCalculations.WithLabelValues("false")); got != 1 {
		t.Errorf("unbalanced share calculations = %v, want 1", got)
	}
}

func multipartUpload(t *testing.T, field, filename, contentType string, data []byte) (io.Reader, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &body, mw.FormDataContentType()
}

func TestHTTPRoutes(t *testing.T) {
	ts := newTestServer(t)
	id, token := createSession(t, ts)
	_, otherToken := createSession(t, ts)

	upload := func(t *testing.T, bearer, field string, data []byte) *http.Response {
		t.Helper()
		body, contentType := multipartUpload(t, field, "dinner.png", "image/png", data)
		req, err := http.NewRequest(http.MethodPost, ts.url+"/api/sessions/"+id+"/receipt", body)
		if err != nil {
			t.Fatalf("new request: %v", err)
		}
		req.Header.Set("Content-Type", contentType)
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("upload failed: %v", err)
		}
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	t.Run("upload without token", func(t *testing.T) {
		if resp := upload(t, "", ReceiptFormField, receiptPNG(t)); resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("upload with another session's token", func(t *testing.T) {
		if resp := upload(t, otherToken, ReceiptFormField, receiptPNG(t)); resp.StatusCode != http.StatusForbidden {
			t.Errorf("status = %d, want 403", resp.StatusCode)
		}
	})

	t.Run("upload with wrong field", func(t *testing.T) {
		if resp := upload(t, token, "file", receiptPNG(t)); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("upload non-image", func(t *testing.T) {
		resp := upload(t, token, ReceiptFormField, []byte("just text"))
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
		var body errorBody
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode error body: %v", err)
		}
		if body.Code != "invalid_argument" {
			t.Errorf("code = %q, want invalid_argument", body.Code)
		}
	})

	t.Run("upload", func(t *testing.T) {
		resp := upload(t, token, ReceiptFormField, receiptPNG(t))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		var body billrpc.SessionResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Session.Step != string(models.StepItems) || len(body.Session.Bill.Items) != 5 {
			t.Errorf("session = %+v", body.Session)
		}
	})

	t.Run("summary via query token", func(t *testing.T) {
		resp, err := http.Get(ts.url + "/api/sessions/" + id + "/summary.txt?token=" + token)
		if err != nil {
			t.Fatalf("GET failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
			t.Errorf("Content-Type = %q", ct)
		}
		text, _ := io.ReadAll(resp.Body)
		want := "Split The Tab - Bill Breakdown\nTotal: $70.11\n\n"
		if string(text) != want {
			t.Errorf("summary = %q, want %q (no people yet)", text, want)
		}
	})
}

func TestToConnectError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want connect.Code
	}{
		{"session not found", fmt.Errorf("%w: x", storage.ErrNotFound), connect.CodeNotFound},
		{"item not found", models.ErrItemNotFound, connect.CodeNotFound},
		{"duplicate name", models.ErrDuplicateName, connect.CodeInvalidArgument},
		{"too large", fmt.Errorf("%w: big", receipt.ErrTooLarge), connect.CodeInvalidArgument},
		{"unassigned items", &wizard.UnassignedItemsError{Count: 2}, connect.CodeFailedPrecondition},
		{"not editable", wizard.ErrNotEditable, connect.CodeFailedPrecondition},
		{"ingestion timeout", fmt.Errorf("%w: %w", receipt.ErrIngestionFailed, context.DeadlineExceeded), connect.CodeDeadlineExceeded},
		{"ingestion failure", fmt.Errorf("%w: %w", receipt.ErrIngestionFailed, errors.New("boom")), connect.CodeUnavailable},
		{"passthrough", connect.NewError(connect.CodeAborted, errors.New("x")), connect.CodeAborted},
		{"unknown", errors.New("disk on fire"), connect.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := connect.CodeOf(toConnectError(tt.err)); got != tt.want {
				t.Errorf("code = %v, want %v", got, tt.want)
			}
		})
	}
}
