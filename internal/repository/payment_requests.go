package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/buildhub-payments/constants"
	"github.com/joseph-ayodele/buildhub-payments/internal/common"
	"github.com/joseph-ayodele/buildhub-payments/internal/entity"
)

// RequestFilter narrows a request listing. Nil fields do not filter.
// ProjectSource only applies together with ProjectID: legacy sources share id
// spaces, so a project is identified by both.
type RequestFilter struct {
	ProjectID          *int64
	ProjectSource      *constants.SourceKind
	HomeownerID        *int64
	ContractorID       *int64
	Status             *constants.RequestStatus
	VerificationStatus *constants.VerificationStatus
	Kind               *constants.RequestKind
}

// Mutator edits a loaded request in place. Returning an error aborts the update.
// New receipt files are appended with a zero ID.
type Mutator func(req *entity.PaymentRequest) error

// TxHook runs in the same transaction as the write it follows.
type TxHook func(ctx context.Context, tx *Tx, req *entity.PaymentRequest) error

type RequestStore interface {
	Create(ctx context.Context, req *entity.PaymentRequest, hooks ...TxHook) (int64, error)
	Get(ctx context.Context, id int64) (*entity.PaymentRequest, error)
	ListByProject(ctx context.Context, projectID int64, source constants.SourceKind) ([]*entity.PaymentRequest, error)
	ListByHomeowner(ctx context.Context, homeownerID int64, projectID *int64) ([]*entity.PaymentRequest, error)
	List(ctx context.Context, f RequestFilter) ([]*entity.PaymentRequest, error)
	Update(ctx context.Context, id int64, mutate Mutator, hooks ...TxHook) (*entity.PaymentRequest, error)
}

type requestStore struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

func NewRequestStore(db *DB, logger *slog.Logger) RequestStore {
	return &requestStore{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *requestStore) Create(ctx context.Context, req *entity.PaymentRequest, hooks ...TxHook) (int64, error) {
	now := s.now()
	if req.RequestDate.IsZero() {
		req.RequestDate = now
	}
	req.CreatedAt = now
	req.UpdatedAt = now

	err := s.create(ctx, req, hooks)
	if isDeadlock(err) && req.Kind == constants.KindStage {
		// MySQL gap locks let two guarded inserts deadlock; the survivor's row decides.
		n, cerr := s.db.queries().countActiveStage(ctx, req.ProjectID, req.ProjectSource, req.ContractorID, req.StageName())
		switch {
		case cerr != nil:
			s.logger.Error("failed to re-check stage after deadlock", "project_id", req.ProjectID, "error", cerr)
		case n > 0:
			err = common.ErrDuplicateActiveRequest
		default:
			s.logger.Warn("retrying payment request insert after deadlock", "project_id", req.ProjectID,
				"contractor_id", req.ContractorID, "stage_name", req.StageName())
			err = s.create(ctx, req, hooks)
		}
	}
	if err != nil {
		req.ID = 0
		if errors.Is(err, common.ErrDuplicateActiveRequest) {
			s.logger.Warn("duplicate active stage request", "project_id", req.ProjectID,
				"contractor_id", req.ContractorID, "stage_name", req.StageName())
			return 0, common.NewAppError("DUPLICATE_ACTIVE_REQUEST",
				"a pending or approved request already exists for stage "+req.StageName(), common.ErrDuplicateActiveRequest)
		}
		s.logger.Error("failed to create payment request", "project_id", req.ProjectID, "kind", req.Kind, "error", err)
		return 0, common.WrapError(err, "create payment request")
	}
	return req.ID, nil
}

func (s *requestStore) create(ctx context.Context, req *entity.PaymentRequest, hooks []TxHook) error {
	return s.db.withTx(ctx, func(q *queries) error {
		if req.Kind == constants.KindStage {
			n, err := q.countActiveStage(ctx, req.ProjectID, req.ProjectSource, req.ContractorID, req.StageName())
			if err != nil {
				return err
			}
			if n > 0 {
				return common.ErrDuplicateActiveRequest
			}
		}
		id, err := q.insertRequest(ctx, req)
		if err != nil {
			return activeStageConflict(err)
		}
		req.ID = id
		return runHooks(ctx, q, req, hooks)
	})
}

// activeStageConflict maps a unique violation on insert to ErrDuplicateActiveRequest.
func activeStageConflict(err error) error {
	if isUniqueViolation(err) {
		return common.ErrDuplicateActiveRequest
	}
	return err
}

func (s *requestStore) Get(ctx context.Context, id int64) (*entity.PaymentRequest, error) {
	reqs, err := s.db.queries().selectRequests(ctx, entsql.EQ("id", id), false)
	if err != nil {
		s.logger.Error("failed to get payment request", "request_id", id, "error", err)
		return nil, common.WrapError(err, "get payment request")
	}
	if len(reqs) == 0 {
		return nil, common.NewAppError("NOT_FOUND", "payment request not found", common.ErrNotFound)
	}
	return reqs[0], nil
}

func (s *requestStore) ListByProject(ctx context.Context, projectID int64, source constants.SourceKind) ([]*entity.PaymentRequest, error) {
	return s.List(ctx, RequestFilter{ProjectID: &projectID, ProjectSource: &source})
}

func (s *requestStore) ListByHomeowner(ctx context.Context, homeownerID int64, projectID *int64) ([]*entity.PaymentRequest, error) {
	return s.List(ctx, RequestFilter{HomeownerID: &homeownerID, ProjectID: projectID})
}

func (s *requestStore) List(ctx context.Context, f RequestFilter) ([]*entity.PaymentRequest, error) {
	reqs, err := s.db.queries().selectRequests(ctx, f.predicate(), false)
	if err != nil {
		s.logger.Error("failed to list payment requests", "error", err)
		return nil, common.WrapError(err, "list payment requests")
	}
	return reqs, nil
}

func (s *requestStore) Update(ctx context.Context, id int64, mutate Mutator, hooks ...TxHook) (*entity.PaymentRequest, error) {
	var updated *entity.PaymentRequest
	err := s.db.withTx(ctx, func(q *queries) error {
		reqs, err := q.selectRequests(ctx, entsql.EQ("id", id), true)
		if err != nil {
			return err
		}
		if len(reqs) == 0 {
			return common.NewAppError("NOT_FOUND", "payment request not found", common.ErrNotFound)
		}
		req := reqs[0]
		before := req.Status

		if err := mutate(req); err != nil {
			return err
		}
		if err := checkTransition(before, req.Status); err != nil {
			return err
		}

		req.UpdatedAt = s.now()
		if err := q.updateEnvelope(ctx, req); err != nil {
			return err
		}
		for i := range req.ReceiptFiles {
			f := &req.ReceiptFiles[i]
			if f.ID != 0 {
				continue
			}
			f.RequestID = req.ID
			if f.UploadedAt.IsZero() {
				f.UploadedAt = req.UpdatedAt
			}
			fid, err := q.insertReceiptFile(ctx, f)
			if err != nil {
				return err
			}
			f.ID = fid
		}
		if err := runHooks(ctx, q, req, hooks); err != nil {
			return err
		}
		updated = req
		return nil
	})
	if err != nil {
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		s.logger.Error("failed to update payment request", "request_id", id, "error", err)
		return nil, common.WrapError(err, "update payment request")
	}
	return updated, nil
}

// checkTransition guards the status graph at the storage boundary.
func checkTransition(from, to constants.RequestStatus) error {
	if from == to {
		return nil
	}
	switch {
	case from == constants.StatusPending && (to == constants.StatusApproved || to == constants.StatusRejected):
		return nil
	case from == constants.StatusApproved && to == constants.StatusPaid:
		return nil
	}
	return common.InvalidTransitionf("cannot move request from %s to %s", from, to)
}

func runHooks(ctx context.Context, q *queries, req *entity.PaymentRequest, hooks []TxHook) error {
	tx := &Tx{q: q}
	for _, h := range hooks {
		if err := h(ctx, tx, req); err != nil {
			return err
		}
	}
	return nil
}

func (f RequestFilter) predicate() *entsql.Predicate {
	var preds []*entsql.Predicate
	if f.ProjectID != nil {
		preds = append(preds, entsql.EQ("project_id", *f.ProjectID))
		if f.ProjectSource != nil {
			preds = append(preds, entsql.EQ("project_source", string(*f.ProjectSource)))
		}
	}
	if f.HomeownerID != nil {
		preds = append(preds, entsql.EQ("homeowner_id", *f.HomeownerID))
	}
	if f.ContractorID != nil {
		preds = append(preds, entsql.EQ("contractor_id", *f.ContractorID))
	}
	if f.Status != nil {
		preds = append(preds, entsql.EQ("status", string(*f.Status)))
	}
	if f.VerificationStatus != nil {
		preds = append(preds, entsql.EQ("verification_status", string(*f.VerificationStatus)))
	}
	if f.Kind != nil {
		preds = append(preds, entsql.EQ("kind", string(*f.Kind)))
	}
	switch len(preds) {
	case 0:
		return nil
	case 1:
		return preds[0]
	}
	return entsql.And(preds...)
}
