package payments

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/joseph-ayodele/buildhub-payments/constants"
	"github.com/joseph-ayodele/buildhub-payments/internal/common"
	"github.com/joseph-ayodele/buildhub-payments/internal/entity"
)

// RespondRequest is the homeowner's decision on a pending request.
type RespondRequest struct {
	Action          constants.Action `json:"action"`
	ApprovedAmount  *float64         `json:"approved_amount,omitempty"`
	Notes           string           `json:"notes,omitempty"`
	RejectionReason string           `json:"rejection_reason,omitempty"`
}

// Respond approves or rejects a pending request.
func (s *Service) Respond(ctx context.Context, actor entity.Actor, id int64, in RespondRequest) (out *entity.PaymentRequest, err error) {
	ctx, span := s.start(ctx, "respond", actor,
		attribute.Int64("payments.request_id", id),
		attribute.String("payments.action", string(in.Action)))
	defer func() { s.finish(ctx, span, "respond", err) }()

	if !actor.IsHomeowner() {
		return nil, common.AccessDeniedf("only the homeowner can respond to a payment request")
	}
	action := constants.Action(strings.ToLower(strings.TrimSpace(string(in.Action))))
	notes := strings.TrimSpace(in.Notes)
	reason := strings.TrimSpace(in.RejectionReason)

	v := common.NewValidator()
	v.Field("action", string(action), common.OneOf(string(constants.ActionApprove), string(constants.ActionReject)))
	if action == constants.ActionApprove && in.ApprovedAmount != nil {
		v.Field("approved_amount", *in.ApprovedAmount, common.Positive)
	}
	if action == constants.ActionReject {
		if reason == "" {
			reason = notes
		}
		v.Check(reason != "", "rejection_reason", "is required when rejecting")
	}
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}

	now := s.now()
	fx := &effects{}
	out, err = s.store.Update(ctx, id, func(req *entity.PaymentRequest) error {
		if req.HomeownerID != actor.ID {
			return common.AccessDeniedf("homeowner %d does not own request %d", actor.ID, req.ID)
		}
		if req.Status != constants.StatusPending {
			return common.InvalidTransitionf("request %d is %s, only pending requests can be answered", req.ID, req.Status)
		}

		req.HomeownerNotes = notes
		req.ResponseDate = &now
		kind := constants.NotifyRequestApproved
		if action == constants.ActionApprove {
			amount := req.RequestedAmount
			if in.ApprovedAmount != nil {
				amount = *in.ApprovedAmount
			}
			req.Status = constants.StatusApproved
			req.ApprovedAmount = &amount
			fx.log = logEntry(actor, constants.LogApproved, notes, now)
		} else {
			req.Status = constants.StatusRejected
			req.RejectionReason = reason
			fx.log = logEntry(actor, constants.LogRejected, reason, now)
			kind = constants.NotifyRequestRejected
		}
		fx.events = append(fx.events, notification(req, req.ContractorID, constants.RoleContractor, kind, now))
		return nil
	}, fx.hook)
	if err != nil {
		return nil, err
	}
	s.dispatch(ctx, fx)

	s.logger.Info("payment request answered",
		"request_id", out.ID,
		"status", out.Status,
		"homeowner_id", actor.ID,
		"amount", out.EffectiveAmount(),
	)
	return out, nil
}
