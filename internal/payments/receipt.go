package payments

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/joseph-ayodele/buildhub-payments/constants"
	"github.com/joseph-ayodele/buildhub-payments/internal/common"
	"github.com/joseph-ayodele/buildhub-payments/internal/entity"
)

// ReceiptUpload attaches stored receipt files to an approved or paid request.
type ReceiptUpload struct {
	Files                []entity.ReceiptFile
	TransactionReference string
	PaymentMethod        string
	PaymentDate          *time.Time
	Notes                string
}

// CheckReceiptTarget reports whether actor may upload receipts for the request,
// without changing it. Callers use it before writing any file.
func (s *Service) CheckReceiptTarget(ctx context.Context, actor entity.Actor, id int64) (*entity.PaymentRequest, error) {
	req, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canUploadReceipt(actor, req); err != nil {
		return nil, err
	}
	return req, nil
}

func canUploadReceipt(actor entity.Actor, req *entity.PaymentRequest) error {
	if !actor.IsContractor() || req.ContractorID != actor.ID {
		return common.AccessDeniedf("only the request's contractor can upload receipts")
	}
	if req.Status != constants.StatusApproved && req.Status != constants.StatusPaid {
		return common.InvalidTransitionf("request %d is %s, receipts need an approved or paid request", req.ID, req.Status)
	}
	return nil
}

// UploadReceipt appends receipt files, marks the receipt as awaiting
// verification and moves an approved request to paid.
func (s *Service) UploadReceipt(ctx context.Context, actor entity.Actor, id int64, in ReceiptUpload) (out *entity.PaymentRequest, err error) {
	ctx, span := s.start(ctx, "upload_receipt", actor,
		attribute.Int64("payments.request_id", id),
		attribute.Int("payments.file_count", len(in.Files)))
	defer func() { s.finish(ctx, span, "upload_receipt", err) }()

	if len(in.Files) == 0 {
		return nil, common.ValidationErrorf("files: at least one receipt file is required")
	}
	notes := strings.TrimSpace(in.Notes)

	now := s.now()
	fx := &effects{}
	out, err = s.store.Update(ctx, id, func(req *entity.PaymentRequest) error {
		if err := canUploadReceipt(actor, req); err != nil {
			return err
		}
		for _, f := range in.Files {
			f.ID = 0
			f.RequestID = req.ID
			f.UploadedBy = actor.ID
			if f.UploadedAt.IsZero() {
				f.UploadedAt = now
			}
			req.ReceiptFiles = append(req.ReceiptFiles, f)
		}
		req.VerificationStatus = constants.VerificationContractorUploaded

		// Payment details are fixed once the request is paid; later uploads only add files.
		if req.Status == constants.StatusApproved {
			if ref := strings.TrimSpace(in.TransactionReference); ref != "" {
				req.TransactionReference = ref
			}
			if m := strings.TrimSpace(in.PaymentMethod); m != "" {
				req.PaymentMethod = m
			}
			paidAt := now
			if in.PaymentDate != nil {
				paidAt = in.PaymentDate.UTC()
			}
			req.PaymentDate = &paidAt
			req.Status = constants.StatusPaid
		}

		fx.log = logEntry(actor, constants.LogReceiptUploaded, notes, now)
		fx.events = append(fx.events, notification(req, req.HomeownerID, constants.RoleHomeowner, constants.NotifyReceiptUploaded, now))
		return nil
	}, fx.hook)
	if err != nil {
		return nil, err
	}
	s.dispatch(ctx, fx)

	s.logger.Info("payment receipt uploaded",
		"request_id", out.ID,
		"status", out.Status,
		"files", len(in.Files),
		"contractor_id", actor.ID,
	)
	return out, nil
}
