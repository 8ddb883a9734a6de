package billrpc

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// BillServiceName is the fully-qualified name of the BillService service.
const BillServiceName = "splittab.v1.BillService"

// Fully-qualified procedure names, as they appear in URL paths and in
// connect.Spec.Procedure.
const (
	BillServiceCreateSessionProcedure    = "/splittab.v1.BillService/CreateSession"
	BillServiceGetSessionProcedure       = "/splittab.v1.BillService/GetSession"
	BillServiceIngestReceiptProcedure    = "/splittab.v1.BillService/IngestReceipt"
	BillServiceAddPersonProcedure        = "/splittab.v1.BillService/AddPerson"
	BillServiceRemovePersonProcedure     = "/splittab.v1.BillService/RemovePerson"
	BillServiceToggleAssignmentProcedure = "/splittab.v1.BillService/ToggleAssignment"
	BillServiceSetTipPercentageProcedure = "/splittab.v1.BillService/SetTipPercentage"
	BillServiceNextStepProcedure         = "/splittab.v1.BillService/NextStep"
	BillServicePreviousStepProcedure     = "/splittab.v1.BillService/PreviousStep"
	BillServiceResetSessionProcedure     = "/splittab.v1.BillService/ResetSession"
	BillServiceCalculateSharesProcedure  = "/splittab.v1.BillService/CalculateShares"
	BillServiceExportSummaryProcedure    = "/splittab.v1.BillService/ExportSummary"
)

// BillServiceHandler is implemented by the server.
type BillServiceHandler interface {
	CreateSession(context.Context, *connect.Request[CreateSessionRequest]) (*connect.Response[CreateSessionResponse], error)
	GetSession(context.Context, *connect.Request[GetSessionRequest]) (*connect.Response[SessionResponse], error)
	IngestReceipt(context.Context, *connect.Request[IngestReceiptRequest]) (*connect.Response[SessionResponse], error)
	AddPerson(context.Context, *connect.Request[AddPersonRequest]) (*connect.Response[AddPersonResponse], error)
	RemovePerson(context.Context, *connect.Request[RemovePersonRequest]) (*connect.Response[SessionResponse], error)
	ToggleAssignment(context.Context, *connect.Request[ToggleAssignmentRequest]) (*connect.Response[SessionResponse], error)
	SetTipPercentage(context.Context, *connect.Request[SetTipPercentageRequest]) (*connect.Response[SessionResponse], error)
	NextStep(context.Context, *connect.Request[NextStepRequest]) (*connect.Response[SessionResponse], error)
	PreviousStep(context.Context, *connect.Request[PreviousStepRequest]) (*connect.Response[SessionResponse], error)
	ResetSession(context.Context, *connect.Request[ResetSessionRequest]) (*connect.Response[SessionResponse], error)
	CalculateShares(context.Context, *connect.Request[CalculateSharesRequest]) (*connect.Response[CalculateSharesResponse], error)
	ExportSummary(context.Context, *connect.Request[ExportSummaryRequest]) (*connect.Response[ExportSummaryResponse], error)
}

// NewBillServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
// The JSON codec is always installed; opts may add interceptors and more.
func NewBillServiceHandler(svc BillServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)

	handlers := map[string]http.Handler{
		BillServiceCreateSessionProcedure:    connect.NewUnaryHandler(BillServiceCreateSessionProcedure, svc.CreateSession, opts...),
		BillServiceGetSessionProcedure:       connect.NewUnaryHandler(BillServiceGetSessionProcedure, svc.GetSession, opts...),
		BillServiceIngestReceiptProcedure:    connect.NewUnaryHandler(BillServiceIngestReceiptProcedure, svc.IngestReceipt, opts...),
		BillServiceAddPersonProcedure:        connect.NewUnaryHandler(BillServiceAddPersonProcedure, svc.AddPerson, opts...),
		BillServiceRemovePersonProcedure:     connect.NewUnaryHandler(BillServiceRemovePersonProcedure, svc.RemovePerson, opts...),
		BillServiceToggleAssignmentProcedure: connect.NewUnaryHandler(BillServiceToggleAssignmentProcedure, svc.ToggleAssignment, opts...),
		BillServiceSetTipPercentageProcedure: connect.NewUnaryHandler(BillServiceSetTipPercentageProcedure, svc.SetTipPercentage, opts...),
		BillServiceNextStepProcedure:         connect.NewUnaryHandler(BillServiceNextStepProcedure, svc.NextStep, opts...),
		BillServicePreviousStepProcedure:     connect.NewUnaryHandler(BillServicePreviousStepProcedure, svc.PreviousStep, opts...),
		BillServiceResetSessionProcedure:     connect.NewUnaryHandler(BillServiceResetSessionProcedure, svc.ResetSession, opts...),
		BillServiceCalculateSharesProcedure:  connect.NewUnaryHandler(BillServiceCalculateSharesProcedure, svc.CalculateShares, opts...),
		BillServiceExportSummaryProcedure:    connect.NewUnaryHandler(BillServiceExportSummaryProcedure, svc.ExportSummary, opts...),
	}

	return "/" + BillServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.URL.Path]; ok {
			h.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

// BillServiceClient calls BillService over Connect with the JSON codec.
type BillServiceClient struct {
	createSession    *connect.Client[CreateSessionRequest, CreateSessionResponse]
	getSession       *connect.Client[GetSessionRequest, SessionResponse]
	ingestReceipt    *connect.Client[IngestReceiptRequest, SessionResponse]
	addPerson        *connect.Client[AddPersonRequest, AddPersonResponse]
	removePerson     *connect.Client[RemovePersonRequest, SessionResponse]
	toggleAssignment *connect.Client[ToggleAssignmentRequest, SessionResponse]
	setTipPercentage *connect.Client[SetTipPercentageRequest, SessionResponse]
	nextStep         *connect.Client[NextStepRequest, SessionResponse]
	previousStep     *connect.Client[PreviousStepRequest, SessionResponse]
	resetSession     *connect.Client[ResetSessionRequest, SessionResponse]
	calculateShares  *connect.Client[CalculateSharesRequest, CalculateSharesResponse]
	exportSummary    *connect.Client[ExportSummaryRequest, ExportSummaryResponse]
}

// NewBillServiceClient constructs a client for the BillService at baseURL,
// e.g. "http://localhost:8080".
func NewBillServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *BillServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(JSONCodec{})}, opts...)
	return &BillServiceClient{
		createSession:    connect.NewClient[CreateSessionRequest, CreateSessionResponse](httpClient, baseURL+BillServiceCreateSessionProcedure, opts...),
		getSession:       connect.NewClient[GetSessionRequest, SessionResponse](httpClient, baseURL+BillServiceGetSessionProcedure, opts...),
		ingestReceipt:    connect.NewClient[IngestReceiptRequest, SessionResponse](httpClient, baseURL+BillServiceIngestReceiptProcedure, opts...),
		addPerson:        connect.NewClient[AddPersonRequest, AddPersonResponse](httpClient, baseURL+BillServiceAddPersonProcedure, opts...),
		removePerson:     connect.NewClient[RemovePersonRequest, SessionResponse](httpClient, baseURL+BillServiceRemovePersonProcedure, opts...),
		toggleAssignment: connect.NewClient[ToggleAssignmentRequest, SessionResponse](httpClient, baseURL+BillServiceToggleAssignmentProcedure, opts...),
		setTipPercentage: connect.NewClient[SetTipPercentageRequest, SessionResponse](httpClient, baseURL+BillServiceSetTipPercentageProcedure, opts...),
		nextStep:         connect.NewClient[NextStepRequest, SessionResponse](httpClient, baseURL+BillServiceNextStepProcedure, opts...),
		previousStep:     connect.NewClient[PreviousStepRequest, SessionResponse](httpClient, baseURL+BillServicePreviousStepProcedure, opts...),
		resetSession:     connect.NewClient[ResetSessionRequest, SessionResponse](httpClient, baseURL+BillServiceResetSessionProcedure, opts...),
		calculateShares:  connect.NewClient[CalculateSharesRequest, CalculateSharesResponse](httpClient, baseURL+BillServiceCalculateSharesProcedure, opts...),
		exportSummary:    connect.NewClient[ExportSummaryRequest, ExportSummaryResponse](httpClient, baseURL+BillServiceExportSummaryProcedure, opts...),
	}
}

// CreateSession calls splittab.v1.BillService.CreateSession.
func (c *BillServiceClient) CreateSession(ctx context.Context, req *connect.Request[CreateSessionRequest]) (*connect.Response[CreateSessionResponse], error) {
	return c.createSession.CallUnary(ctx, req)
}

// GetSession calls splittab.v1.BillService.GetSession.
func (c *BillServiceClient) GetSession(ctx context.Context, req *connect.Request[GetSessionRequest]) (*connect.Response[SessionResponse], error) {
	return c.getSession.CallUnary(ctx, req)
}

// IngestReceipt calls splittab.v1.BillService.IngestReceipt.
func (c *BillServiceClient) IngestReceipt(ctx context.Context, req *connect.Request[IngestReceiptRequest]) (*connect.Response[SessionResponse], error) {
	return c.ingestReceipt.CallUnary(ctx, req)
}

// AddPerson calls splittab.v1.BillService.AddPerson.
func (c *BillServiceClient) AddPerson(ctx context.Context, req *connect.Request[AddPersonRequest]) (*connect.Response[AddPersonResponse], error) {
	return c.addPerson.CallUnary(ctx, req)
}

// RemovePerson calls splittab.v1.BillService.RemovePerson.
func (c *BillServiceClient) RemovePerson(ctx context.Context, req *connect.Request[RemovePersonRequest]) (*connect.Response[SessionResponse], error) {
	return c.removePerson.CallUnary(ctx, req)
}

// ToggleAssignment calls splittab.v1.BillService.ToggleAssignment.
func (c *BillServiceClient) ToggleAssignment(ctx context.Context, req *connect.Request[ToggleAssignmentRequest]) (*connect.Response[SessionResponse], error) {
	return c.toggleAssignment.CallUnary(ctx, req)
}

// SetTipPercentage calls splittab.v1.BillService.SetTipPercentage.
func (c *BillServiceClient) SetTipPercentage(ctx context.Context, req *connect.Request[SetTipPercentageRequest]) (*connect.Response[SessionResponse], error) {
	return c.setTipPercentage.CallUnary(ctx, req)
}

// NextStep calls splittab.v1.BillService.NextStep.
func (c *BillServiceClient) NextStep(ctx context.Context, req *connect.Request[NextStepRequest]) (*connect.Response[SessionResponse], error) {
	return c.nextStep.CallUnary(ctx, req)
}

// PreviousStep calls splittab.v1.BillService.PreviousStep.
func (c *BillServiceClient) PreviousStep(ctx context.Context, req *connect.Request[PreviousStepRequest]) (*connect.Response[SessionResponse], error) {
	return c.previousStep.CallUnary(ctx, req)
}

// ResetSession calls splittab.v1.BillService.ResetSession.
func (c *BillServiceClient) ResetSession(ctx context.Context, req *connect.Request[ResetSessionRequest]) (*connect.Response[SessionResponse], error) {
	return c.resetSession.CallUnary(ctx, req)
}

// CalculateShares calls splittab.v1.BillService.CalculateShares.
func (c *BillServiceClient) CalculateShares(ctx context.Context, req *connect.Request[CalculateSharesRequest]) (*connect.Response[CalculateSharesResponse], error) {
	return c.calculateShares.CallUnary(ctx, req)
}

// ExportSummary calls splittab.v1.BillService.ExportSummary.
func (c *BillServiceClient) ExportSummary(ctx context.Context, req *connect.Request[ExportSummaryRequest]) (*connect.Response[ExportSummaryResponse], error) {
	return c.exportSummary.CallUnary(ctx, req)
}

// UnimplementedBillServiceHandler returns CodeUnimplemented from all methods.
type UnimplementedBillServiceHandler struct{}

var errUnimplemented = errors.New("not implemented")

func (UnimplementedBillServiceHandler) CreateSession(context.Context, *connect.Request[CreateSessionRequest]) (*connect.Response[CreateSessionResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errUnimplemented)
}

func (UnimplementedBillServiceHandler) GetSession(context.Context, *connect.Request[GetSessionRequest]) (*connect.Response[SessionResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errUnimplemented)
}

func (UnimplementedBillServiceHandler) IngestReceipt(context.Context, *connect.Request[IngestReceiptRequest]) (*connect.Response[SessionResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errUnimplemented)
}

func (UnimplementedBillServiceHandler) AddPerson(context.Context, *connect.Request[AddPersonRequest]) (*connect.Response[AddPersonResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errUnimplemented)
}

func (UnimplementedBillServiceHandler) RemovePerson(context.Context, *connect.Request[RemovePersonRequest]) (*connect.Response[SessionResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errUnimplemented)
}

func (UnimplementedBillServiceHandler) ToggleAssignment(context.Context, *connect.Request[ToggleAssignmentRequest]) (*connect.Response[SessionResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errUnimplemented)
}

func (UnimplementedBillServiceHandler) SetTipPercentage(context.Context, *connect.Request[SetTipPercentageRequest]) (*connect.Response[SessionResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errUnimplemented)
}

func (UnimplementedBillServiceHandler) NextStep(context.Context, *connect.Request[NextStepRequest]) (*connect.Response[SessionResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errUnimplemented)
}

func (UnimplementedBillServiceHandler) PreviousStep(context.Context, *connect.Request[PreviousStepRequest]) (*connect.Response[SessionResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errUnimplemented)
}

func (UnimplementedBillServiceHandler) ResetSession(context.Context, *connect.Request[ResetSessionRequest]) (*connect.Response[SessionResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errUnimplemented)
}

func (UnimplementedBillServiceHandler) CalculateShares(context.Context, *connect.Request[CalculateSharesRequest]) (*connect.Response[CalculateSharesResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errUnimplemented)
}

func (UnimplementedBillServiceHandler) ExportSummary(context.Context, *connect.Request[ExportSummaryRequest]) (*connect.Response[ExportSummaryResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errUnimplemented)
}
