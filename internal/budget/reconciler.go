// Package budget reconciles a project's payment requests against its resolved
// budget ceiling. Totals are advisory and never block a transition.
package budget

import (
	"context"
	"log/slog"
	"math"

	"github.com/joseph-ayodele/buildhub-payments/constants"
	"github.com/joseph-ayodele/buildhub-payments/internal/common"
	"github.com/joseph-ayodele/buildhub-payments/internal/entity"
	"github.com/joseph-ayodele/buildhub-payments/internal/repository"
)

// ProjectResolver maps a project reference to its canonical project.
type ProjectResolver interface {
	Resolve(ctx context.Context, ref int64) (*entity.Project, error)
}

type Reconciler struct {
	store    repository.RequestStore
	resolver ProjectResolver
	logger   *slog.Logger
}

func NewReconciler(store repository.RequestStore, resolver ProjectResolver, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:    store,
		resolver: resolver,
		logger:   logger,
	}
}

// Summary totals requests for the project, optionally narrowed to one
// contractor. Stage availability is always per contractor; without one the
// project's own contractor is used.
func (r *Reconciler) Summary(ctx context.Context, ref int64, contractorID *int64) (*entity.BudgetSummary, error) {
	project, reqs, err := r.load(ctx, ref, contractorID)
	if err != nil {
		return nil, err
	}
	holder := stageHolder(project, contractorID)

	s := &entity.BudgetSummary{
		ProjectID:         project.ID,
		SourceKind:        project.SourceKind,
		ContractorID:      contractorID,
		Ceiling:           project.BudgetCeiling,
		UnavailableStages: []string{},
	}
	blocked := map[string]bool{}
	for _, req := range reqs {
		switch req.Status {
		case constants.StatusRejected:
			continue
		case constants.StatusPending:
			s.PendingTotal += req.RequestedAmount
		case constants.StatusApproved:
			s.ApprovedTotal += req.EffectiveAmount()
		case constants.StatusPaid:
			s.ApprovedTotal += req.EffectiveAmount()
			s.PaidTotal += req.EffectiveAmount()
		}
		s.RequestedTotal += req.RequestedAmount
		if req.Kind == constants.KindStage && req.ContractorID == holder {
			blocked[req.StageName()] = true
		}
	}
	for _, st := range constants.Stages() {
		if blocked[st.Name] {
			s.UnavailableStages = append(s.UnavailableStages, st.Name)
		}
	}

	s.RequestedTotal = round2(s.RequestedTotal)
	s.ApprovedTotal = round2(s.ApprovedTotal)
	s.PaidTotal = round2(s.PaidTotal)
	s.PendingTotal = round2(s.PendingTotal)
	s.Remaining = round2(s.Ceiling - s.ApprovedTotal)
	s.OverCeiling = s.Ceiling > 0 && s.ApprovedTotal > s.Ceiling
	if s.OverCeiling {
		r.logger.Warn("approved payments exceed budget ceiling", "project_id", project.ID,
			"ceiling", s.Ceiling, "approved_total", s.ApprovedTotal)
	}
	return s, nil
}

// StageInfo describes one catalog stage: its typical share of the ceiling,
// existing requests and whether a new request can be made.
func (r *Reconciler) StageInfo(ctx context.Context, ref int64, contractorID *int64, stageName string) (*entity.StageInfo, error) {
	stage, ok := constants.LookupStage(stageName)
	if !ok {
		return nil, common.NewAppError("NOT_FOUND", "unknown stage "+stageName, common.ErrNotFound)
	}
	project, reqs, err := r.load(ctx, ref, contractorID)
	if err != nil {
		return nil, err
	}
	holder := stageHolder(project, contractorID)

	info := &entity.StageInfo{
		StageName:        stage.Name,
		Order:            stage.Order,
		TypicalPercent:   stage.TypicalPercent,
		CanRequest:       true,
		ExistingRequests: []*entity.PaymentRequest{},
	}
	if project.BudgetCeiling > 0 {
		info.SuggestedAmount = round2(project.BudgetCeiling * stage.TypicalPercent / 100)
		info.MaxAmount = round2(info.SuggestedAmount * constants.StageOverrunFactor)
	}
	for _, req := range reqs {
		if req.Kind != constants.KindStage || req.StageName() != stage.Name || req.ContractorID != holder {
			continue
		}
		info.ExistingRequests = append(info.ExistingRequests, req)
		if req.Status != constants.StatusRejected {
			info.CanRequest = false
		}
	}
	return info, nil
}

func (r *Reconciler) load(ctx context.Context, ref int64, contractorID *int64) (*entity.Project, []*entity.PaymentRequest, error) {
	project, err := r.resolver.Resolve(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	reqs, err := r.store.List(ctx, repository.RequestFilter{
		ProjectID:     &project.ID,
		ProjectSource: &project.SourceKind,
		ContractorID:  contractorID,
	})
	if err != nil {
		r.logger.Error("failed to load requests for reconciliation", "project_id", project.ID, "error", err)
		return nil, nil, err
	}
	return project, reqs, nil
}

func stageHolder(project *entity.Project, contractorID *int64) int64 {
	if contractorID != nil {
		return *contractorID
	}
	return project.ContractorID
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
