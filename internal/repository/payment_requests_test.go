package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/buildhub-payments/constants"
	"github.com/joseph-ayodele/buildhub-payments/internal/common"
	"github.com/joseph-ayodele/buildhub-payments/internal/entity"
	"github.com/joseph-ayodele/buildhub-payments/internal/repository"
	"github.com/joseph-ayodele/buildhub-payments/internal/repository/repotest"
)

func stageRequest(projectID, contractorID, homeownerID int64, stage string, amount float64) *entity.PaymentRequest {
	return &entity.PaymentRequest{
		Kind:               constants.KindStage,
		ProjectID:          projectID,
		ProjectSource:      constants.SourceConstructionProject,
		ContractorID:       contractorID,
		HomeownerID:        homeownerID,
		RequestedAmount:    amount,
		Status:             constants.StatusPending,
		VerificationStatus: constants.VerificationNone,
		Stage: &entity.StageDetails{
			StageName:            stage,
			CompletionPercentage: 100,
			WorkDescription:      "footings poured",
			LaborCount:           6,
			QualityCheck:         true,
		},
	}
}

func customRequest(projectID, contractorID, homeownerID int64, amount float64) *entity.PaymentRequest {
	return &entity.PaymentRequest{
		Kind:               constants.KindCustom,
		ProjectID:          projectID,
		ProjectSource:      constants.SourceConstructionProject,
		ContractorID:       contractorID,
		HomeownerID:        homeownerID,
		RequestedAmount:    amount,
		Status:             constants.StatusPending,
		VerificationStatus: constants.VerificationNone,
		Custom: &entity.CustomDetails{
			RequestTitle:  "Extra drainage",
			RequestReason: "Soil report required extra drainage",
			Category:      string(constants.AdditionalWork),
			UrgencyLevel:  constants.UrgencyHigh,
		},
	}
}

func TestRequestStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	db := repotest.NewDB(t)
	store := repository.NewRequestStore(db, repotest.Logger())

	id, err := store.Create(ctx, stageRequest(37, 29, 28, "Foundation", 213949))
	require.NoError(t, err)
	require.NotZero(t, id)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, constants.KindStage, got.Kind)
	assert.Equal(t, constants.StatusPending, got.Status)
	assert.Equal(t, 213949.0, got.RequestedAmount)
	assert.Nil(t, got.ApprovedAmount)
	require.NotNil(t, got.Stage)
	assert.Equal(t, "Foundation", got.Stage.StageName)
	assert.Equal(t, 6, got.Stage.LaborCount)
	assert.True(t, got.Stage.QualityCheck)
	assert.Nil(t, got.Custom)
	assert.Empty(t, got.ReceiptFiles)

	cid, err := store.Create(ctx, customRequest(37, 29, 28, 15000))
	require.NoError(t, err)
	custom, err := store.Get(ctx, cid)
	require.NoError(t, err)
	require.NotNil(t, custom.Custom)
	assert.Equal(t, "Extra drainage", custom.Custom.RequestTitle)
	assert.Equal(t, constants.UrgencyHigh, custom.Custom.UrgencyLevel)
}

func TestRequestStore_GetUnknown(t *testing.T) {
	store := repository.NewRequestStore(repotest.NewDB(t), repotest.Logger())
	_, err := store.Get(context.Background(), 999)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRequestStore_DuplicateActiveStage(t *testing.T) {
	ctx := context.Background()
	store := repository.NewRequestStore(repotest.NewDB(t), repotest.Logger())

	_, err := store.Create(ctx, stageRequest(37, 29, 28, "Foundation", 213949))
	require.NoError(t, err)

	_, err = store.Create(ctx, stageRequest(37, 29, 28, "Foundation", 1000))
	assert.ErrorIs(t, err, common.ErrDuplicateActiveRequest)

	// other stage, other contractor and custom requests are unaffected
	_, err = store.Create(ctx, stageRequest(37, 29, 28, "Structure", 5000))
	assert.NoError(t, err)
	_, err = store.Create(ctx, stageRequest(37, 30, 28, "Foundation", 5000))
	assert.NoError(t, err)
	_, err = store.Create(ctx, customRequest(37, 29, 28, 100))
	assert.NoError(t, err)
	_, err = store.Create(ctx, customRequest(37, 29, 28, 100))
	assert.NoError(t, err)
}

func TestRequestStore_ProjectSourceIsPartOfProjectIdentity(t *testing.T) {
	ctx := context.Background()
	store := repository.NewRequestStore(repotest.NewDB(t), repotest.Logger())

	_, err := store.Create(ctx, stageRequest(5, 29, 28, "Foundation", 1000))
	require.NoError(t, err)

	estimate := stageRequest(5, 29, 28, "Foundation", 2000)
	estimate.ProjectSource = constants.SourceAcceptedEstimate
	_, err = store.Create(ctx, estimate)
	require.NoError(t, err)

	reqs, err := store.ListByProject(ctx, 5, constants.SourceAcceptedEstimate)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, estimate.ID, reqs[0].ID)

	project, source := int64(5), constants.SourceConstructionProject
	reqs, err = store.List(ctx, repository.RequestFilter{ProjectID: &project, ProjectSource: &source})
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, 1000.0, reqs[0].RequestedAmount)

	all, err := store.List(ctx, repository.RequestFilter{ProjectID: &project})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRequestStore_FilterByVerificationStatus(t *testing.T) {
	ctx := context.Background()
	store := repository.NewRequestStore(repotest.NewDB(t), repotest.Logger())

	uploaded := stageRequest(37, 29, 28, "Foundation", 1000)
	uploaded.Status = constants.StatusPaid
	uploaded.VerificationStatus = constants.VerificationContractorUploaded
	_, err := store.Create(ctx, uploaded)
	require.NoError(t, err)
	_, err = store.Create(ctx, customRequest(37, 29, 28, 500))
	require.NoError(t, err)

	vs := constants.VerificationContractorUploaded
	reqs, err := store.List(ctx, repository.RequestFilter{VerificationStatus: &vs})
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, uploaded.ID, reqs[0].ID)
}

func TestRequestStore_ConcurrentSubmitsKeepOneActive(t *testing.T) {
	ctx := context.Background()
	store := repository.NewRequestStore(repotest.NewDB(t), repotest.Logger())

	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ok   int
		dups int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Create(ctx, stageRequest(37, 29, 28, "Roofing", 1000))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, common.ErrDuplicateActiveRequest):
				dups++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, dups)

	stage := constants.KindStage
	reqs, err := store.List(ctx, repository.RequestFilter{Kind: &stage})
	require.NoError(t, err)
	assert.Len(t, reqs, 1)
}

func TestRequestStore_RejectedStageCanBeRequestedAgain(t *testing.T) {
	ctx := context.Background()
	store := repository.NewRequestStore(repotest.NewDB(t), repotest.Logger())

	id, err := store.Create(ctx, stageRequest(37, 29, 28, "Brickwork", 1000))
	require.NoError(t, err)

	_, err = store.Update(ctx, id, func(r *entity.PaymentRequest) error {
		r.Status = constants.StatusRejected
		r.RejectionReason = "budget constraints"
		return nil
	})
	require.NoError(t, err)

	_, err = store.Create(ctx, stageRequest(37, 29, 28, "Brickwork", 900))
	assert.NoError(t, err)
}

func TestRequestStore_UpdateAppendsFilesAndRunsHooks(t *testing.T) {
	ctx := context.Background()
	db := repotest.NewDB(t)
	store := repository.NewRequestStore(db, repotest.Logger())
	audit := repository.NewAuditRepository(db, repotest.Logger())

	id, err := store.Create(ctx, stageRequest(37, 29, 28, "Foundation", 213949))
	require.NoError(t, err)

	approved := 213949.0
	_, err = store.Update(ctx, id, func(r *entity.PaymentRequest) error {
		r.Status = constants.StatusApproved
		r.ApprovedAmount = &approved
		now := time.Now().UTC()
		r.ResponseDate = &now
		return nil
	})
	require.NoError(t, err)

	logHook := func(ctx context.Context, tx *repository.Tx, r *entity.PaymentRequest) error {
		return tx.AppendLog(ctx, &entity.VerificationLogEntry{
			RequestID: r.ID, ActorID: 29, ActorRole: constants.RoleContractor,
			Action: constants.LogReceiptUploaded, Timestamp: time.Now().UTC(),
		})
	}
	for i := 0; i < 2; i++ {
		_, err = store.Update(ctx, id, func(r *entity.PaymentRequest) error {
			r.ReceiptFiles = append(r.ReceiptFiles, entity.ReceiptFile{
				OriginalName: "receipt.pdf", StoredPath: "payment_receipts/37/1/a.pdf",
				Size: 1024, MimeType: "application/pdf", UploadedBy: 29,
			})
			r.VerificationStatus = constants.VerificationContractorUploaded
			if r.Status == constants.StatusApproved {
				r.Status = constants.StatusPaid
			}
			return nil
		}, logHook)
		require.NoError(t, err)
	}

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusPaid, got.Status)
	assert.Equal(t, constants.VerificationContractorUploaded, got.VerificationStatus)
	require.NotNil(t, got.ApprovedAmount)
	assert.Equal(t, 213949.0, *got.ApprovedAmount)
	assert.NotNil(t, got.ResponseDate)
	assert.Len(t, got.ReceiptFiles, 2)

	logs, err := audit.ListLogs(ctx, id)
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestRequestStore_HookFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	store := repository.NewRequestStore(repotest.NewDB(t), repotest.Logger())

	id, err := store.Create(ctx, stageRequest(37, 29, 28, "Foundation", 1000))
	require.NoError(t, err)

	boom := errors.New("log write failed")
	_, err = store.Update(ctx, id, func(r *entity.PaymentRequest) error {
		r.Status = constants.StatusApproved
		return nil
	}, func(context.Context, *repository.Tx, *entity.PaymentRequest) error { return boom })
	assert.ErrorIs(t, err, boom)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusPending, got.Status)
}

func TestRequestStore_CreateHookFailureLeavesNoRow(t *testing.T) {
	ctx := context.Background()
	store := repository.NewRequestStore(repotest.NewDB(t), repotest.Logger())

	boom := errors.New("log write failed")
	_, err := store.Create(ctx, stageRequest(37, 29, 28, "Foundation", 1000),
		func(context.Context, *repository.Tx, *entity.PaymentRequest) error { return boom })
	assert.ErrorIs(t, err, boom)

	reqs, err := store.ListByProject(ctx, 37, constants.SourceConstructionProject)
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestRequestStore_TerminalStatusIsGuarded(t *testing.T) {
	ctx := context.Background()
	store := repository.NewRequestStore(repotest.NewDB(t), repotest.Logger())

	id, err := store.Create(ctx, stageRequest(37, 29, 28, "Foundation", 1000))
	require.NoError(t, err)
	_, err = store.Update(ctx, id, func(r *entity.PaymentRequest) error {
		r.Status = constants.StatusRejected
		return nil
	})
	require.NoError(t, err)

	_, err = store.Update(ctx, id, func(r *entity.PaymentRequest) error {
		r.Status = constants.StatusApproved
		return nil
	})
	assert.ErrorIs(t, err, common.ErrInvalidTransition)
}

func TestRequestStore_ListOrderingAndFilters(t *testing.T) {
	ctx := context.Background()
	store := repository.NewRequestStore(repotest.NewDB(t), repotest.Logger())

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	older := stageRequest(37, 29, 28, "Foundation", 1000)
	older.RequestDate = base
	newer := customRequest(37, 29, 28, 500)
	newer.RequestDate = base.Add(48 * time.Hour)
	other := customRequest(40, 29, 31, 700)
	other.RequestDate = base.Add(24 * time.Hour)

	for _, r := range []*entity.PaymentRequest{older, newer, other} {
		_, err := store.Create(ctx, r)
		require.NoError(t, err)
	}

	project := int64(37)
	reqs, err := store.ListByHomeowner(ctx, 28, &project)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, newer.ID, reqs[0].ID)
	assert.Equal(t, older.ID, reqs[1].ID)

	all, err := store.ListByHomeowner(ctx, 28, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	contractor := int64(29)
	byContractor, err := store.List(ctx, repository.RequestFilter{ContractorID: &contractor})
	require.NoError(t, err)
	require.Len(t, byContractor, 3)
	assert.Equal(t, other.ID, byContractor[1].ID)
}
