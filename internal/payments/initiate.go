package payments

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/joseph-ayodele/buildhub-payments/constants"
	"github.com/joseph-ayodele/buildhub-payments/internal/common"
	"github.com/joseph-ayodele/buildhub-payments/internal/entity"
	"github.com/joseph-ayodele/buildhub-payments/internal/gateway"
)

// Initiate hands an approved request to the payment gateway and records the
// returned transaction handle. Settlement is not tracked here.
func (s *Service) Initiate(ctx context.Context, actor entity.Actor, id int64, amount float64) (res *gateway.InitiateResult, err error) {
	ctx, span := s.start(ctx, "initiate", actor, attribute.Int64("payments.request_id", id))
	defer func() { s.finish(ctx, span, "initiate", err) }()

	if !actor.IsHomeowner() {
		return nil, common.AccessDeniedf("only the homeowner can initiate a payment")
	}
	req, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkInitiate(actor, req, amount); err != nil {
		return nil, err
	}

	res, err = s.gateway.Initiate(ctx, gateway.InitiateRequest{
		RequestID:    req.ID,
		ProjectID:    req.ProjectID,
		HomeownerID:  req.HomeownerID,
		ContractorID: req.ContractorID,
		Amount:       amount,
		Description:  req.Title(),
	})
	if err != nil {
		s.logger.Error("payment gateway initiation failed", "request_id", id, "amount", amount, "error", err)
		return nil, err
	}

	now := s.now()
	fx := &effects{}
	_, err = s.store.Update(ctx, id, func(r *entity.PaymentRequest) error {
		if err := s.checkInitiate(actor, r, amount); err != nil {
			return err
		}
		r.TransactionReference = res.TransactionID
		fx.log = logEntry(actor, constants.LogPaymentInitiated,
			fmt.Sprintf("amount=%.2f transaction_id=%s", amount, res.TransactionID), now)
		fx.events = append(fx.events, notification(r, r.ContractorID, constants.RoleContractor, constants.NotifyPaymentInitiated, now))
		return nil
	}, fx.hook)
	if err != nil {
		s.logger.Error("failed to record payment initiation", "request_id", id,
			"transaction_id", res.TransactionID, "error", err)
		return nil, err
	}
	s.dispatch(ctx, fx)

	s.logger.Info("payment initiated",
		"request_id", id,
		"amount", amount,
		"transaction_id", res.TransactionID,
	)
	return res, nil
}

func (s *Service) checkInitiate(actor entity.Actor, req *entity.PaymentRequest, amount float64) error {
	if req.HomeownerID != actor.ID {
		return common.AccessDeniedf("homeowner %d does not own request %d", actor.ID, req.ID)
	}
	if req.Status != constants.StatusApproved {
		return common.InvalidTransitionf("request %d is %s, only approved requests can be paid", req.ID, req.Status)
	}
	v := common.NewValidator()
	v.Field("amount", amount, common.Positive)
	v.Check(amount <= req.EffectiveAmount(), "amount",
		"must not exceed the approved amount of "+formatAmount(req.EffectiveAmount()))
	v.Check(s.maxSinglePayment <= 0 || amount <= s.maxSinglePayment, "amount",
		"must not exceed the single payment limit of "+formatAmount(s.maxSinglePayment))
	return common.ValidateAndReturnError(v)
}
