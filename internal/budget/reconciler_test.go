package budget_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/buildhub-payments/constants"
	"github.com/joseph-ayodele/buildhub-payments/internal/budget"
	"github.com/joseph-ayodele/buildhub-payments/internal/common"
	"github.com/joseph-ayodele/buildhub-payments/internal/entity"
	"github.com/joseph-ayodele/buildhub-payments/internal/gateway"
	"github.com/joseph-ayodele/buildhub-payments/internal/payments"
	"github.com/joseph-ayodele/buildhub-payments/internal/projects"
	"github.com/joseph-ayodele/buildhub-payments/internal/repository"
	"github.com/joseph-ayodele/buildhub-payments/internal/repository/repotest"
)

type env struct {
	store      repository.RequestStore
	reconciler *budget.Reconciler
	svc        *payments.Service
}

func setup(t *testing.T) *env {
	t.Helper()
	db := repotest.NewDB(t)
	logger := repotest.Logger()
	repotest.ConstructionProject(t, db, 37, 0, 28, 29, 1500000.0)

	store := repository.NewRequestStore(db, logger)
	resolver := projects.NewResolver(projects.DefaultSources(repository.NewLegacyProjectRepository(db, logger)), logger)
	return &env{
		store:      store,
		reconciler: budget.NewReconciler(store, resolver, logger),
		svc:        payments.NewService(store, resolver, gateway.NewNoopGateway(logger), nil, logger),
	}
}

func request(kind constants.RequestKind, stage string, status constants.RequestStatus, requested float64, approved *float64) *entity.PaymentRequest {
	r := &entity.PaymentRequest{
		Kind: kind, ProjectID: 37, ProjectSource: constants.SourceConstructionProject,
		ContractorID: 29, HomeownerID: 28, RequestedAmount: requested, ApprovedAmount: approved,
		Status: status, VerificationStatus: constants.VerificationNone, RequestDate: time.Now().UTC(),
	}
	if kind == constants.KindStage {
		r.Stage = &entity.StageDetails{StageName: stage, WorkDescription: "work", CompletionPercentage: 100}
	} else {
		r.Custom = &entity.CustomDetails{RequestTitle: "extra", RequestReason: "extra", UrgencyLevel: constants.UrgencyLow}
	}
	return r
}

func ptr(v float64) *float64 { return &v }

func TestSummary_ReconciliationConsistency(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	seeds := []*entity.PaymentRequest{
		request(constants.KindStage, "Site Preparation", constants.StatusPaid, 70000, ptr(75000)),
		request(constants.KindStage, "Foundation", constants.StatusApproved, 200000, nil),
		request(constants.KindStage, "Structure", constants.StatusRejected, 300000, nil),
		request(constants.KindStage, "Brickwork", constants.StatusPending, 100000, nil),
		request(constants.KindCustom, "", constants.StatusApproved, 10000, ptr(8000)),
	}
	for _, r := range seeds {
		_, err := e.store.Create(ctx, r)
		require.NoError(t, err)
	}

	s, err := e.reconciler.Summary(ctx, 37, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(37), s.ProjectID)
	assert.Equal(t, constants.SourceConstructionProject, s.SourceKind)
	assert.Equal(t, 1500000.0, s.Ceiling)
	assert.Equal(t, 70000.0+200000+100000+10000, s.RequestedTotal)
	assert.Equal(t, 75000.0+200000+8000, s.ApprovedTotal)
	assert.Equal(t, 75000.0, s.PaidTotal)
	assert.Equal(t, 100000.0, s.PendingTotal)
	assert.Equal(t, 1500000.0-283000, s.Remaining)
	assert.False(t, s.OverCeiling)
	assert.Equal(t, []string{"Site Preparation", "Foundation", "Brickwork"}, s.UnavailableStages)
}

func TestSummary_OverCeilingIsAdvisory(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	_, err := e.store.Create(ctx, request(constants.KindCustom, "", constants.StatusApproved, 1000000, ptr(1600000)))
	require.NoError(t, err)

	s, err := e.reconciler.Summary(ctx, 37, nil)
	require.NoError(t, err)
	assert.True(t, s.OverCeiling)
	assert.Equal(t, -100000.0, s.Remaining)
}

func TestSummary_ScenarioE(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	homeowner := entity.Actor{ID: 28, Role: constants.RoleHomeowner}
	contractor := entity.Actor{ID: 29, Role: constants.RoleContractor}

	req, err := e.svc.Submit(ctx, contractor, payments.SubmitRequest{
		ProjectRef: 37, Kind: constants.KindStage, RequestedAmount: 213949,
		Stage: &entity.StageDetails{StageName: "Foundation", CompletionPercentage: 100, WorkDescription: "footings"},
	})
	require.NoError(t, err)
	_, err = e.svc.Respond(ctx, homeowner, req.ID, payments.RespondRequest{Action: constants.ActionApprove, ApprovedAmount: ptr(213949)})
	require.NoError(t, err)
	_, err = e.svc.UploadReceipt(ctx, contractor, req.ID, payments.ReceiptUpload{
		Files: []entity.ReceiptFile{{OriginalName: "slip.pdf", StoredPath: "payment_receipts/37/1/x.pdf", Size: 10, MimeType: "application/pdf"}},
	})
	require.NoError(t, err)

	cid := int64(29)
	s, err := e.reconciler.Summary(ctx, 37, &cid)
	require.NoError(t, err)
	assert.Equal(t, 213949.0, s.PaidTotal)
	assert.Equal(t, 1500000.0, s.Ceiling)
	assert.Contains(t, s.UnavailableStages, "Foundation")
}

func TestSummary_RejectedStageIsRequestableAgain(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	_, err := e.store.Create(ctx, request(constants.KindStage, "Foundation", constants.StatusRejected, 213949, nil))
	require.NoError(t, err)

	s, err := e.reconciler.Summary(ctx, 37, nil)
	require.NoError(t, err)
	assert.NotContains(t, s.UnavailableStages, "Foundation")

	info, err := e.reconciler.StageInfo(ctx, 37, nil, "Foundation")
	require.NoError(t, err)
	assert.True(t, info.CanRequest)
	assert.Len(t, info.ExistingRequests, 1)
	assert.Equal(t, 300000.0, info.SuggestedAmount)
	assert.Equal(t, 450000.0, info.MaxAmount)
	assert.Equal(t, 2, info.Order)
}

func TestStageInfo_Errors(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	_, err := e.reconciler.StageInfo(ctx, 37, nil, "Landscaping")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = e.reconciler.Summary(ctx, 9999, nil)
	assert.ErrorIs(t, err, common.ErrProjectNotFound)
}

func TestSummary_ProjectsFromDifferentSourcesDoNotShareTotals(t *testing.T) {
	ctx := context.Background()
	db := repotest.NewDB(t)
	logger := repotest.Logger()
	repotest.AcceptedEstimate(t, db, 5, 28, 29, 800000, "accepted")

	store := repository.NewRequestStore(db, logger)
	resolver := projects.NewResolver(projects.DefaultSources(repository.NewLegacyProjectRepository(db, logger)), logger)
	reconciler := budget.NewReconciler(store, resolver, logger)

	p, err := resolver.Resolve(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, constants.SourceAcceptedEstimate, p.SourceKind)

	r := request(constants.KindCustom, "", constants.StatusPending, 40000, nil)
	r.ProjectID, r.ProjectSource = p.ID, p.SourceKind
	_, err = store.Create(ctx, r)
	require.NoError(t, err)

	before, err := reconciler.Summary(ctx, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, 40000.0, before.RequestedTotal)

	// an unrelated construction project with the same numeric id now wins resolution
	repotest.ConstructionProject(t, db, 5, 0, 90, 91, 600000.0)

	after, err := reconciler.Summary(ctx, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, constants.SourceConstructionProject, after.SourceKind)
	assert.Zero(t, after.RequestedTotal)
	assert.Zero(t, after.PendingTotal)
	assert.Equal(t, 600000.0, after.Remaining)
}
