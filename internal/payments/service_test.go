package payments_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/buildhub-payments/constants"
	"github.com/joseph-ayodele/buildhub-payments/internal/common"
	"github.com/joseph-ayodele/buildhub-payments/internal/entity"
	"github.com/joseph-ayodele/buildhub-payments/internal/gateway"
	"github.com/joseph-ayodele/buildhub-payments/internal/payments"
	"github.com/joseph-ayodele/buildhub-payments/internal/projects"
	"github.com/joseph-ayodele/buildhub-payments/internal/repository"
	"github.com/joseph-ayodele/buildhub-payments/internal/repository/repotest"
)

var (
	homeowner  = entity.Actor{ID: 28, Role: constants.RoleHomeowner}
	contractor = entity.Actor{ID: 29, Role: constants.RoleContractor}
	admin      = entity.Actor{ID: 1, Role: constants.RoleAdmin}
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []*entity.NotificationEvent
}

func (n *recordingNotifier) Notify(_ context.Context, e *entity.NotificationEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, e := range n.events {
		out = append(out, e.Kind)
	}
	return out
}

type fakeGateway struct {
	calls []gateway.InitiateRequest
	err   error
}

func (g *fakeGateway) Initiate(_ context.Context, req gateway.InitiateRequest) (*gateway.InitiateResult, error) {
	g.calls = append(g.calls, req)
	if g.err != nil {
		return nil, g.err
	}
	return &gateway.InitiateResult{TransactionID: "txn_1", Status: "initiated"}, nil
}

type fixture struct {
	svc      *payments.Service
	audit    repository.AuditRepository
	notifier *recordingNotifier
	gateway  *fakeGateway
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := repotest.NewDB(t)
	logger := repotest.Logger()
	repotest.ConstructionProject(t, db, 37, 0, 28, 29, 1500000.0)

	resolver := projects.NewResolver(projects.DefaultSources(repository.NewLegacyProjectRepository(db, logger)), logger)
	f := &fixture{
		audit:    repository.NewAuditRepository(db, logger),
		notifier: &recordingNotifier{},
		gateway:  &fakeGateway{},
	}
	f.svc = payments.NewService(repository.NewRequestStore(db, logger), resolver, f.gateway, f.notifier, logger)
	return f
}

func foundation(amount float64) payments.SubmitRequest {
	return payments.SubmitRequest{
		ProjectRef:      37,
		Kind:            constants.KindStage,
		RequestedAmount: amount,
		Stage: &entity.StageDetails{
			StageName:            "Foundation",
			CompletionPercentage: 100,
			WorkDescription:      "Foundation complete, footings cured",
		},
	}
}

func actions(t *testing.T, f *fixture, id int64) []string {
	t.Helper()
	logs, err := f.audit.ListLogs(context.Background(), id)
	require.NoError(t, err)
	var out []string
	for _, l := range logs {
		out = append(out, l.Action)
	}
	return out
}

func TestSubmit_StageRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	req, err := f.svc.Submit(ctx, contractor, foundation(213949))
	require.NoError(t, err)
	assert.NotZero(t, req.ID)
	assert.Equal(t, constants.StatusPending, req.Status)
	assert.Equal(t, int64(37), req.ProjectID)
	assert.Equal(t, int64(28), req.HomeownerID)
	assert.Equal(t, constants.SourceConstructionProject, req.ProjectSource)
	assert.InDelta(t, 14.26, req.Stage.PercentageOfTotal, 0.01)

	assert.Equal(t, []string{constants.LogSubmitted}, actions(t, f, req.ID))
	assert.Equal(t, []string{constants.NotifyRequestSubmitted}, f.notifier.kinds())

	inbox, err := f.audit.ListNotifications(ctx, 28, constants.RoleHomeowner, 10)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, req.ID, inbox[0].RequestID)
}

func TestSubmit_DuplicateThenResubmitAfterRejection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.svc.Submit(ctx, contractor, foundation(213949))
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, contractor, foundation(100000))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrDuplicateActiveRequest))

	rejected, err := f.svc.Respond(ctx, homeowner, first.ID, payments.RespondRequest{
		Action:          constants.ActionReject,
		RejectionReason: "budget constraints",
	})
	require.NoError(t, err)
	assert.Equal(t, constants.StatusRejected, rejected.Status)
	assert.Equal(t, "budget constraints", rejected.RejectionReason)
	require.NotNil(t, rejected.ResponseDate)

	second, err := f.svc.Submit(ctx, contractor, foundation(200000))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestSubmit_AccessAndResolution(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Submit(ctx, homeowner, foundation(1000))
	assert.ErrorIs(t, err, common.ErrAccessDenied)

	_, err = f.svc.Submit(ctx, entity.Actor{ID: 30, Role: constants.RoleContractor}, foundation(1000))
	assert.ErrorIs(t, err, common.ErrAccessDenied)

	missing := foundation(1000)
	missing.ProjectRef = 9999
	_, err = f.svc.Submit(ctx, contractor, missing)
	assert.ErrorIs(t, err, common.ErrProjectNotFound)
}

func TestSubmit_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name string
		in   payments.SubmitRequest
	}{
		{"zero amount", foundation(0)},
		{"unknown stage", func() payments.SubmitRequest {
			in := foundation(1000)
			in.Stage.StageName = "Landscaping"
			return in
		}()},
		{"completion above 100", func() payments.SubmitRequest {
			in := foundation(1000)
			in.Stage.CompletionPercentage = 120
			return in
		}()},
		{"above typical stage share", foundation(500000)},
		{"stage kind without details", payments.SubmitRequest{ProjectRef: 37, Kind: constants.KindStage, RequestedAmount: 10}},
		{"custom without title", payments.SubmitRequest{
			ProjectRef:      37,
			Kind:            constants.KindCustom,
			RequestedAmount: 5000,
			Custom:          &entity.CustomDetails{RequestReason: "extra excavation"},
		}},
		{"bad urgency", payments.SubmitRequest{
			ProjectRef:      37,
			Kind:            constants.KindCustom,
			RequestedAmount: 5000,
			Custom:          &entity.CustomDetails{RequestTitle: "Drainage", RequestReason: "soil", UrgencyLevel: "asap"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Submit(ctx, contractor, tt.in)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}
	assert.Empty(t, f.notifier.kinds())
}

func TestSubmit_CustomRequestCanonicalizesCategory(t *testing.T) {
	f := newFixture(t)

	req, err := f.svc.Submit(context.Background(), contractor, payments.SubmitRequest{
		ProjectRef:      37,
		Kind:            constants.KindCustom,
		RequestedAmount: 45000,
		Custom: &entity.CustomDetails{
			RequestTitle:  "Extra drainage",
			RequestReason: "Soil report required extra drainage",
			Category:      "extra work",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, string(constants.AdditionalWork), req.Custom.Category)
	assert.Equal(t, constants.UrgencyMedium, req.Custom.UrgencyLevel)
}

func TestRespond(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req, err := f.svc.Submit(ctx, contractor, foundation(213949))
	require.NoError(t, err)

	_, err = f.svc.Respond(ctx, entity.Actor{ID: 99, Role: constants.RoleHomeowner}, req.ID,
		payments.RespondRequest{Action: constants.ActionApprove})
	assert.ErrorIs(t, err, common.ErrAccessDenied)

	_, err = f.svc.Respond(ctx, homeowner, req.ID, payments.RespondRequest{Action: constants.ActionReject})
	assert.ErrorIs(t, err, common.ErrValidation)

	amount := 210000.0
	approved, err := f.svc.Respond(ctx, homeowner, req.ID, payments.RespondRequest{
		Action:         constants.ActionApprove,
		ApprovedAmount: &amount,
		Notes:          "Approved after site visit",
	})
	require.NoError(t, err)
	assert.Equal(t, constants.StatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedAmount)
	assert.Equal(t, 210000.0, *approved.ApprovedAmount)
	assert.Equal(t, "Approved after site visit", approved.HomeownerNotes)

	_, err = f.svc.Respond(ctx, homeowner, req.ID, payments.RespondRequest{Action: constants.ActionReject, Notes: "changed mind"})
	assert.ErrorIs(t, err, common.ErrInvalidTransition)

	assert.Equal(t, []string{constants.LogSubmitted, constants.LogApproved}, actions(t, f, req.ID))
}

func TestRespond_RejectFallsBackToNotes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req, err := f.svc.Submit(ctx, contractor, foundation(213949))
	require.NoError(t, err)

	out, err := f.svc.Respond(ctx, homeowner, req.ID, payments.RespondRequest{
		Action: constants.ActionReject,
		Notes:  "budget constraints",
	})
	require.NoError(t, err)
	assert.Equal(t, "budget constraints", out.RejectionReason)
}

func TestRejectedIsTerminal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req, err := f.svc.Submit(ctx, contractor, foundation(213949))
	require.NoError(t, err)
	_, err = f.svc.Respond(ctx, homeowner, req.ID, payments.RespondRequest{Action: constants.ActionReject, RejectionReason: "budget constraints"})
	require.NoError(t, err)

	_, err = f.svc.Respond(ctx, homeowner, req.ID, payments.RespondRequest{Action: constants.ActionApprove})
	assert.ErrorIs(t, err, common.ErrInvalidTransition)

	_, err = f.svc.UploadReceipt(ctx, contractor, req.ID, payments.ReceiptUpload{
		Files: []entity.ReceiptFile{{OriginalName: "r.pdf", StoredPath: "x", Size: 1, MimeType: "application/pdf"}},
	})
	assert.ErrorIs(t, err, common.ErrInvalidTransition)

	got, err := f.svc.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusRejected, got.Status)
	assert.Empty(t, got.ReceiptFiles)
}

func approvedRequest(t *testing.T, f *fixture) *entity.PaymentRequest {
	t.Helper()
	ctx := context.Background()
	req, err := f.svc.Submit(ctx, contractor, foundation(213949))
	require.NoError(t, err)
	req, err = f.svc.Respond(ctx, homeowner, req.ID, payments.RespondRequest{Action: constants.ActionApprove})
	require.NoError(t, err)
	return req
}

func receipt(name string) payments.ReceiptUpload {
	return payments.ReceiptUpload{
		Files: []entity.ReceiptFile{{
			OriginalName: name,
			StoredPath:   "payment_receipts/37/1/" + name,
			Size:         2048,
			MimeType:     "application/pdf",
		}},
		TransactionReference: "UTR-001",
		PaymentMethod:        "bank_transfer",
	}
}

func TestUploadReceipt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := approvedRequest(t, f)

	_, err := f.svc.UploadReceipt(ctx, entity.Actor{ID: 30, Role: constants.RoleContractor}, req.ID, receipt("a.pdf"))
	assert.ErrorIs(t, err, common.ErrAccessDenied)

	_, err = f.svc.UploadReceipt(ctx, contractor, req.ID, payments.ReceiptUpload{})
	assert.ErrorIs(t, err, common.ErrValidation)

	paid, err := f.svc.UploadReceipt(ctx, contractor, req.ID, receipt("a.pdf"))
	require.NoError(t, err)
	assert.Equal(t, constants.StatusPaid, paid.Status)
	assert.Equal(t, constants.VerificationContractorUploaded, paid.VerificationStatus)
	assert.Equal(t, "UTR-001", paid.TransactionReference)
	require.NotNil(t, paid.PaymentDate)
	require.Len(t, paid.ReceiptFiles, 1)
	assert.Equal(t, int64(29), paid.ReceiptFiles[0].UploadedBy)

	again := receipt("b.pdf")
	again.TransactionReference = "UTR-002"
	paid, err = f.svc.UploadReceipt(ctx, contractor, req.ID, again)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusPaid, paid.Status)
	assert.Equal(t, "UTR-001", paid.TransactionReference)
	assert.Len(t, paid.ReceiptFiles, 2)

	assert.Equal(t, []string{
		constants.LogSubmitted, constants.LogApproved, constants.LogReceiptUploaded, constants.LogReceiptUploaded,
	}, actions(t, f, req.ID))
}

func TestCheckReceiptTarget(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req, err := f.svc.Submit(ctx, contractor, foundation(213949))
	require.NoError(t, err)

	_, err = f.svc.CheckReceiptTarget(ctx, contractor, req.ID)
	assert.ErrorIs(t, err, common.ErrInvalidTransition)

	_, err = f.svc.CheckReceiptTarget(ctx, contractor, 424242)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := approvedRequest(t, f)

	_, err := f.svc.Verify(ctx, homeowner, req.ID, payments.VerifyRequest{Outcome: constants.VerificationVerified})
	assert.ErrorIs(t, err, common.ErrInvalidTransition)

	_, err = f.svc.UploadReceipt(ctx, contractor, req.ID, receipt("a.pdf"))
	require.NoError(t, err)

	_, err = f.svc.Verify(ctx, contractor, req.ID, payments.VerifyRequest{Outcome: constants.VerificationVerified})
	assert.ErrorIs(t, err, common.ErrAccessDenied)

	_, err = f.svc.Verify(ctx, homeowner, req.ID, payments.VerifyRequest{Outcome: constants.VerificationRejected})
	assert.ErrorIs(t, err, common.ErrValidation)

	verified, err := f.svc.Verify(ctx, homeowner, req.ID, payments.VerifyRequest{Outcome: constants.VerificationVerified, Notes: "matches bank statement"})
	require.NoError(t, err)
	assert.Equal(t, constants.VerificationVerified, verified.VerificationStatus)
	assert.Equal(t, constants.StatusPaid, verified.Status)
	require.NotNil(t, verified.VerifiedBy)
	assert.Equal(t, int64(28), *verified.VerifiedBy)

	_, err = f.svc.Verify(ctx, homeowner, req.ID, payments.VerifyRequest{Outcome: constants.VerificationRejected, Notes: "wrong amount"})
	assert.ErrorIs(t, err, common.ErrInvalidTransition)

	reverified, err := f.svc.Verify(ctx, admin, req.ID, payments.VerifyRequest{Outcome: constants.VerificationRejected, Notes: "wrong amount"})
	require.NoError(t, err)
	assert.Equal(t, constants.VerificationRejected, reverified.VerificationStatus)
	assert.Equal(t, "wrong amount", reverified.VerificationNotes)

	logs := actions(t, f, req.ID)
	assert.Equal(t, constants.LogVerifyRejected, logs[len(logs)-1])
}

func TestInitiate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pending, err := f.svc.Submit(ctx, contractor, payments.SubmitRequest{
		ProjectRef:      37,
		Kind:            constants.KindCustom,
		RequestedAmount: 5000,
		Custom:          &entity.CustomDetails{RequestTitle: "Permit", RequestReason: "municipal fee"},
	})
	require.NoError(t, err)
	_, err = f.svc.Initiate(ctx, homeowner, pending.ID, 5000)
	assert.ErrorIs(t, err, common.ErrInvalidTransition)

	req := approvedRequest(t, f)

	_, err = f.svc.Initiate(ctx, contractor, req.ID, 1000)
	assert.ErrorIs(t, err, common.ErrAccessDenied)

	_, err = f.svc.Initiate(ctx, homeowner, req.ID, 300000)
	assert.ErrorIs(t, err, common.ErrValidation)

	res, err := f.svc.Initiate(ctx, homeowner, req.ID, 213949)
	require.NoError(t, err)
	assert.Equal(t, "txn_1", res.TransactionID)
	require.Len(t, f.gateway.calls, 1)
	assert.Equal(t, 213949.0, f.gateway.calls[0].Amount)

	got, err := f.svc.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusApproved, got.Status)
	assert.Equal(t, "txn_1", got.TransactionReference)

	logs := actions(t, f, req.ID)
	assert.Equal(t, constants.LogPaymentInitiated, logs[len(logs)-1])
}

func TestInitiate_GatewayFailureRecordsNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := approvedRequest(t, f)
	f.gateway.err = common.NewAppError("GATEWAY_ERROR", "provider down", common.ErrGateway)

	_, err := f.svc.Initiate(ctx, homeowner, req.ID, 1000)
	assert.ErrorIs(t, err, common.ErrGateway)
	assert.Equal(t, []string{constants.LogSubmitted, constants.LogApproved}, actions(t, f, req.ID))
}

func TestValidateSubmission(t *testing.T) {
	valid := `{"project_ref":37,"kind":"stage","requested_amount":213949,
		"stage":{"stage_name":"Foundation","completion_percentage":100,"work_description":"done"}}`
	require.NoError(t, payments.ValidateSubmission([]byte(valid)))

	err := payments.ValidateSubmission([]byte(`{"project_ref":37,"kind":"stage","requested_amount":10}`))
	assert.ErrorIs(t, err, common.ErrValidation)

	err = payments.ValidateSubmission([]byte(`{"project_ref":37,"kind":"custom","requested_amount":-1,
		"custom":{"request_title":"t","request_reason":"r"}}`))
	assert.ErrorIs(t, err, common.ErrValidation)

	err = payments.ValidateSubmission([]byte(`{"project_ref":37,"kind":"stage","requested_amount":10,"surprise":true,
		"stage":{"stage_name":"Foundation","work_description":"done"}}`))
	assert.ErrorIs(t, err, common.ErrValidation)

	err = payments.ValidateSubmission([]byte(`{not json`))
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}
