// Package dashboard builds the unified, read-only view over stage and custom
// payment requests.
package dashboard

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/joseph-ayodele/buildhub-payments/constants"
	"github.com/joseph-ayodele/buildhub-payments/internal/entity"
	"github.com/joseph-ayodele/buildhub-payments/internal/repository"
)

// ProjectResolver maps a project reference to its canonical project.
type ProjectResolver interface {
	Resolve(ctx context.Context, ref int64) (*entity.Project, error)
}

// Filter narrows the unified list. Nil fields do not filter.
type Filter struct {
	HomeownerID  *int64
	ContractorID *int64
	ProjectRef   *int64
	Status       *constants.RequestStatus
	Verification *constants.VerificationStatus
	Kind         *constants.RequestKind
}

type Aggregator struct {
	store        repository.RequestStore
	resolver     ProjectResolver
	overdueAfter time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

func NewAggregator(store repository.RequestStore, resolver ProjectResolver, overdueAfter time.Duration, logger *slog.Logger) *Aggregator {
	if overdueAfter <= 0 {
		overdueAfter = 7 * 24 * time.Hour
	}
	return &Aggregator{
		store:        store,
		resolver:     resolver,
		overdueAfter: overdueAfter,
		now:          func() time.Time { return time.Now().UTC() },
		logger:       logger,
	}
}

// List returns both request kinds newest first with a summary over the result.
func (a *Aggregator) List(ctx context.Context, f Filter) (*entity.RequestList, error) {
	reqs, err := a.load(ctx, f)
	if err != nil {
		return nil, err
	}
	list := &entity.RequestList{Requests: reqs, Summary: Summarize(reqs)}
	a.logger.Debug("unified request list built", "count", len(reqs), "pending", list.Summary.Pending)
	return list, nil
}

// VerificationQueue lists approved or paid requests that carry a receipt.
// Receipts still awaiting verification come first, newest first within each group.
func (a *Aggregator) VerificationQueue(ctx context.Context, f Filter) (*entity.RequestList, error) {
	all, err := a.load(ctx, f)
	if err != nil {
		return nil, err
	}
	reqs := make([]*entity.PaymentRequest, 0, len(all))
	for _, r := range all {
		if r.Status != constants.StatusApproved && r.Status != constants.StatusPaid {
			continue
		}
		if r.VerificationStatus == constants.VerificationNone {
			continue
		}
		reqs = append(reqs, r)
	}
	sort.SliceStable(reqs, func(i, j int) bool {
		return awaiting(reqs[i]) && !awaiting(reqs[j])
	})
	list := &entity.RequestList{Requests: reqs, Summary: Summarize(reqs)}
	a.logger.Debug("verification queue built", "count", len(reqs))
	return list, nil
}

func awaiting(r *entity.PaymentRequest) bool {
	return r.VerificationStatus == constants.VerificationContractorUploaded
}

func (a *Aggregator) load(ctx context.Context, f Filter) ([]*entity.PaymentRequest, error) {
	rf := repository.RequestFilter{
		HomeownerID:        f.HomeownerID,
		ContractorID:       f.ContractorID,
		Status:             f.Status,
		VerificationStatus: f.Verification,
		Kind:               f.Kind,
	}
	if f.ProjectRef != nil {
		p, err := a.resolver.Resolve(ctx, *f.ProjectRef)
		if err != nil {
			return nil, err
		}
		rf.ProjectID = &p.ID
		rf.ProjectSource = &p.SourceKind
	}

	reqs, err := a.store.List(ctx, rf)
	if err != nil {
		return nil, err
	}

	now := a.now()
	for _, r := range reqs {
		r.Derive(now, a.overdueAfter)
	}
	if reqs == nil {
		reqs = []*entity.PaymentRequest{}
	}
	return reqs, nil
}

// Summarize counts requests by status and totals their effective amounts.
func Summarize(reqs []*entity.PaymentRequest) entity.RequestSummary {
	var s entity.RequestSummary
	for _, r := range reqs {
		s.Total++
		amount := r.EffectiveAmount()
		switch r.Status {
		case constants.StatusPending:
			s.Pending++
			s.PendingAmount += amount
		case constants.StatusApproved:
			s.Approved++
			s.ApprovedAmount += amount
		case constants.StatusPaid:
			s.Paid++
			s.PaidAmount += amount
		case constants.StatusRejected:
			s.Rejected++
		}
		if r.IsOverdue {
			s.Overdue++
		}
	}
	return s
}
