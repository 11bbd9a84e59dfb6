package payments

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/joseph-ayodele/buildhub-payments/constants"
	"github.com/joseph-ayodele/buildhub-payments/internal/common"
	"github.com/joseph-ayodele/buildhub-payments/internal/entity"
)

// VerifyRequest is the outcome of checking an uploaded receipt.
type VerifyRequest struct {
	Outcome constants.VerificationStatus `json:"outcome"`
	Notes   string                       `json:"notes,omitempty"`
}

// Verify records the receipt verification outcome. The request status is not touched.
func (s *Service) Verify(ctx context.Context, actor entity.Actor, id int64, in VerifyRequest) (out *entity.PaymentRequest, err error) {
	ctx, span := s.start(ctx, "verify", actor,
		attribute.Int64("payments.request_id", id),
		attribute.String("payments.outcome", string(in.Outcome)))
	defer func() { s.finish(ctx, span, "verify", err) }()

	if !actor.IsHomeowner() && !actor.IsAdmin() {
		return nil, common.AccessDeniedf("only the homeowner or an admin can verify receipts")
	}
	outcome := constants.VerificationStatus(strings.ToLower(strings.TrimSpace(string(in.Outcome))))
	notes := strings.TrimSpace(in.Notes)

	v := common.NewValidator()
	v.Field("outcome", string(outcome),
		common.OneOf(string(constants.VerificationVerified), string(constants.VerificationRejected)))
	v.Check(outcome != constants.VerificationRejected || notes != "", "notes", "are required when rejecting a receipt")
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}

	now := s.now()
	fx := &effects{}
	out, err = s.store.Update(ctx, id, func(req *entity.PaymentRequest) error {
		if actor.IsHomeowner() && req.HomeownerID != actor.ID {
			return common.AccessDeniedf("homeowner %d does not own request %d", actor.ID, req.ID)
		}
		switch req.VerificationStatus {
		case constants.VerificationContractorUploaded:
		case constants.VerificationVerified, constants.VerificationRejected:
			if !actor.IsAdmin() {
				return common.InvalidTransitionf("receipt for request %d is already %s", req.ID, req.VerificationStatus)
			}
		default:
			return common.InvalidTransitionf("request %d has no receipt awaiting verification", req.ID)
		}

		verifier := actor.ID
		req.VerificationStatus = outcome
		req.VerifiedBy = &verifier
		req.VerifiedAt = &now
		req.VerificationNotes = notes

		action, kind := constants.LogVerified, constants.NotifyReceiptVerified
		if outcome == constants.VerificationRejected {
			action, kind = constants.LogVerifyRejected, constants.NotifyReceiptRejected
		}
		fx.log = logEntry(actor, action, notes, now)
		fx.events = append(fx.events, notification(req, req.ContractorID, constants.RoleContractor, kind, now))
		return nil
	}, fx.hook)
	if err != nil {
		return nil, err
	}
	s.dispatch(ctx, fx)

	s.logger.Info("payment receipt verified",
		"request_id", out.ID,
		"verification_status", out.VerificationStatus,
		"verified_by", actor.ID,
	)
	return out, nil
}
