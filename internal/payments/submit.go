package payments

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/joseph-ayodele/buildhub-payments/constants"
	"github.com/joseph-ayodele/buildhub-payments/internal/common"
	"github.com/joseph-ayodele/buildhub-payments/internal/entity"
)

// SubmitRequest is a contractor's new payment request. Exactly one of Stage or
// Custom must be set, matching Kind.
type SubmitRequest struct {
	ProjectRef      int64                 `json:"project_ref"`
	Kind            constants.RequestKind `json:"kind"`
	RequestedAmount float64               `json:"requested_amount"`
	ContractorNotes string                `json:"contractor_notes,omitempty"`
	Stage           *entity.StageDetails  `json:"stage,omitempty"`
	Custom          *entity.CustomDetails `json:"custom,omitempty"`
}

// Submit creates a pending request against the resolved project.
func (s *Service) Submit(ctx context.Context, actor entity.Actor, in SubmitRequest) (req *entity.PaymentRequest, err error) {
	ctx, span := s.start(ctx, "submit", actor,
		attribute.Int64("payments.project_ref", in.ProjectRef),
		attribute.String("payments.kind", string(in.Kind)))
	defer func() { s.finish(ctx, span, "submit", err) }()

	if !actor.IsContractor() {
		return nil, common.AccessDeniedf("only contractors can submit payment requests")
	}
	if _, err := constants.ParseRequestKind(string(in.Kind)); err != nil {
		return nil, common.ValidationErrorf("kind: %v", err)
	}

	project, err := s.resolver.Resolve(ctx, in.ProjectRef)
	if err != nil {
		return nil, err
	}
	if project.ContractorID != actor.ID {
		s.logger.Warn("contractor does not own project", "contractor_id", actor.ID,
			"project_id", project.ID, "source", project.SourceKind)
		return nil, common.AccessDeniedf("contractor %d is not assigned to project %d", actor.ID, project.ID)
	}

	req, err = s.buildRequest(project, in)
	if err != nil {
		return nil, err
	}

	now := s.now()
	req.RequestDate = now
	fx := &effects{log: logEntry(actor, constants.LogSubmitted, in.ContractorNotes, now)}
	fx.events = append(fx.events, notification(req, project.HomeownerID, constants.RoleHomeowner, constants.NotifyRequestSubmitted, now))

	if _, err := s.store.Create(ctx, req, fx.hook); err != nil {
		return nil, err
	}
	s.dispatch(ctx, fx)

	s.logger.Info("payment request submitted",
		"request_id", req.ID,
		"kind", req.Kind,
		"project_id", req.ProjectID,
		"project_source", req.ProjectSource,
		"contractor_id", req.ContractorID,
		"amount", req.RequestedAmount,
	)
	return req, nil
}

func (s *Service) buildRequest(project *entity.Project, in SubmitRequest) (*entity.PaymentRequest, error) {
	v := common.NewValidator()
	v.Field("requested_amount", in.RequestedAmount, common.Positive)
	v.Check(!math.IsNaN(in.RequestedAmount) && !math.IsInf(in.RequestedAmount, 0), "requested_amount", "must be a finite number")

	req := &entity.PaymentRequest{
		Kind:               in.Kind,
		ProjectID:          project.ID,
		ProjectSource:      project.SourceKind,
		ContractorID:       project.ContractorID,
		HomeownerID:        project.HomeownerID,
		RequestedAmount:    in.RequestedAmount,
		Status:             constants.StatusPending,
		VerificationStatus: constants.VerificationNone,
		ContractorNotes:    strings.TrimSpace(in.ContractorNotes),
	}

	switch in.Kind {
	case constants.KindStage:
		v.Check(in.Custom == nil, "custom", "must be empty for stage requests")
		if in.Stage == nil {
			v.Check(false, "stage", "is required")
			break
		}
		d := *in.Stage
		d.StageName = strings.TrimSpace(d.StageName)
		d.WorkDescription = strings.TrimSpace(d.WorkDescription)
		stage, ok := constants.LookupStage(d.StageName)
		v.Field("stage.stage_name", d.StageName, common.Required)
		v.Check(d.StageName == "" || ok, "stage.stage_name",
			"must be one of: "+strings.Join(constants.StageNames(), ", "))
		v.Field("stage.completion_percentage", d.CompletionPercentage, common.Range(0, 100))
		v.Field("stage.work_description", d.WorkDescription, common.Required, common.MaxLength(5000))
		v.Check(d.LaborCount >= 0, "stage.labor_count", "must not be negative")
		v.Check(d.WorkStartDate == nil || d.WorkEndDate == nil || !d.WorkEndDate.Before(*d.WorkStartDate),
			"stage.work_end_date", "must not be before work_start_date")
		if ok {
			d.StageName = stage.Name
			if project.BudgetCeiling > 0 {
				if d.PercentageOfTotal == 0 {
					d.PercentageOfTotal = math.Round(in.RequestedAmount/project.BudgetCeiling*10000) / 100
				}
				if s.enforceStageShare {
					limit := project.BudgetCeiling * stage.TypicalPercent / 100 * constants.StageOverrunFactor
					v.Check(in.RequestedAmount <= limit, "requested_amount",
						fmt.Sprintf("exceeds %s for %s (typical %.0f%% of %s)",
							formatAmount(limit), stage.Name, stage.TypicalPercent, formatAmount(project.BudgetCeiling)))
				}
			}
		}
		req.Stage = &d

	case constants.KindCustom:
		v.Check(in.Stage == nil, "stage", "must be empty for custom requests")
		if in.Custom == nil {
			v.Check(false, "custom", "is required")
			break
		}
		d := *in.Custom
		d.RequestTitle = strings.TrimSpace(d.RequestTitle)
		d.RequestReason = strings.TrimSpace(d.RequestReason)
		d.WorkDescription = strings.TrimSpace(d.WorkDescription)
		v.Field("custom.request_title", d.RequestTitle, common.Required, common.MaxLength(255))
		v.Field("custom.request_reason", d.RequestReason, common.Required, common.MaxLength(5000))
		urgency, err := constants.ParseUrgency(strings.ToLower(strings.TrimSpace(string(d.UrgencyLevel))))
		v.Check(err == nil, "custom.urgency_level", "must be one of: low, medium, high, urgent")
		d.UrgencyLevel = urgency
		d.Category, _ = constants.Canonicalize(d.Category)
		v.Field("custom.category", d.Category, common.MaxLength(100))
		req.Custom = &d
	}

	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}
	return req, nil
}
