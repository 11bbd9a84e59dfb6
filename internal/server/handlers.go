package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/buildhub-payments/constants"
	"github.com/joseph-ayodele/buildhub-payments/internal/common"
	"github.com/joseph-ayodele/buildhub-payments/internal/dashboard"
	"github.com/joseph-ayodele/buildhub-payments/internal/entity"
	"github.com/joseph-ayodele/buildhub-payments/internal/payments"
	"github.com/joseph-ayodele/buildhub-payments/internal/receipts"
)

const (
	maxJSONBody       = 1 << 20
	defaultInboxLimit = 50
	maxInboxLimit     = 200
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func (s *Server) submit(c *gin.Context) {
	actor, _ := actorFrom(c)

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxJSONBody))
	if err != nil {
		s.respondError(c, badRequest("request body could not be read"))
		return
	}
	if err := payments.ValidateSubmission(raw); err != nil {
		s.respondError(c, err)
		return
	}
	var in payments.SubmitRequest
	if err := json.Unmarshal(raw, &in); err != nil {
		s.respondError(c, common.ValidationErrorf("invalid submission: %v", err))
		return
	}

	req, err := s.payments.Submit(c.Request.Context(), actor, in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": req.ID, "status": req.Status})
}

func (s *Server) get(c *gin.Context) {
	actor, _ := actorFrom(c)
	id, err := pathID(c, "id")
	if err != nil {
		s.respondError(c, err)
		return
	}

	req, err := s.payments.Get(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !canView(actor, req) {
		s.respondError(c, common.AccessDeniedf("request %d is not visible to this actor", id))
		return
	}
	logs, err := s.audit.ListLogs(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if logs == nil {
		logs = []*entity.VerificationLogEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"request": req, "verification_log": logs})
}

func (s *Server) respond(c *gin.Context) {
	actor, _ := actorFrom(c)
	id, err := pathID(c, "id")
	if err != nil {
		s.respondError(c, err)
		return
	}
	var in payments.RespondRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		s.respondError(c, badRequest("invalid JSON body"))
		return
	}

	req, err := s.payments.Respond(c.Request.Context(), actor, id, in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *Server) uploadReceipt(c *gin.Context) {
	actor, _ := actorFrom(c)
	id, err := pathID(c, "id")
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadBytes)
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(c, common.NewAppError("FILE_TOO_LARGE",
				fmt.Sprintf("upload exceeds %d MB", s.maxUploadBytes>>20), common.ErrFileTooLarge))
			return
		}
		s.respondError(c, badRequest("expected a multipart/form-data body"))
		return
	}
	defer func() { _ = form.RemoveAll() }()

	meta, err := receiptMeta(form)
	if err != nil {
		s.respondError(c, err)
		return
	}

	headers := form.File["files"]
	files := make([]receipts.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			s.respondError(c, badRequest("uploaded file could not be read"))
			return
		}
		defer func() { _ = f.Close() }()
		files = append(files, receipts.File{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}

	req, err := s.receipts.Upload(c.Request.Context(), actor, id, meta, files)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"verification_status": req.VerificationStatus,
		"status":              req.Status,
		"files":               req.ReceiptFiles,
	})
}

func receiptMeta(form *multipart.Form) (receipts.Meta, error) {
	value := func(key string) string {
		if vs := form.Value[key]; len(vs) > 0 {
			return vs[0]
		}
		return ""
	}
	meta := receipts.Meta{
		TransactionReference: value("transaction_reference"),
		PaymentMethod:        value("payment_method"),
		Notes:                value("notes"),
	}
	if raw := value("payment_date"); raw != "" {
		at, err := parseDate(raw)
		if err != nil {
			return receipts.Meta{}, common.ValidationErrorf("payment_date: expected YYYY-MM-DD or RFC 3339, got %q", raw)
		}
		meta.PaymentDate = &at
	}
	return meta, nil
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func (s *Server) verify(c *gin.Context) {
	actor, _ := actorFrom(c)
	id, err := pathID(c, "id")
	if err != nil {
		s.respondError(c, err)
		return
	}
	var in payments.VerifyRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		s.respondError(c, badRequest("invalid JSON body"))
		return
	}

	req, err := s.payments.Verify(c.Request.Context(), actor, id, in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

type initiateBody struct {
	Amount float64 `json:"amount"`
}

func (s *Server) initiate(c *gin.Context) {
	actor, _ := actorFrom(c)
	id, err := pathID(c, "id")
	if err != nil {
		s.respondError(c, err)
		return
	}
	var in initiateBody
	if err := c.ShouldBindJSON(&in); err != nil {
		s.respondError(c, badRequest("invalid JSON body"))
		return
	}

	res, err := s.payments.Initiate(c.Request.Context(), actor, id, in.Amount)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction_id": res.TransactionID, "status": res.Status})
}

func (s *Server) list(c *gin.Context) {
	f, ok := s.filter(c)
	if !ok {
		return
	}
	list, err := s.dashboard.List(c.Request.Context(), f)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// verificationQueue lists receipts to check, those awaiting verification first.
func (s *Server) verificationQueue(c *gin.Context) {
	f, ok := s.filter(c)
	if !ok {
		return
	}
	list, err := s.dashboard.VerificationQueue(c.Request.Context(), f)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) exportXLSX(c *gin.Context) {
	f, ok := s.filter(c)
	if !ok {
		return
	}
	data, err := s.export.ExportRequestsXLSX(c.Request.Context(), f)
	if err != nil {
		s.respondError(c, err)
		return
	}
	name := fmt.Sprintf("payment_requests_%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

// filter parses the list query and narrows it to what the actor may see.
// Homeowners and contractors only ever see their own requests.
func (s *Server) filter(c *gin.Context) (dashboard.Filter, bool) {
	actor, _ := actorFrom(c)
	var f dashboard.Filter
	var err error

	if f.HomeownerID, err = queryID(c, "homeowner_id"); err != nil {
		s.respondError(c, err)
		return f, false
	}
	if f.ContractorID, err = queryID(c, "contractor_id"); err != nil {
		s.respondError(c, err)
		return f, false
	}
	if f.ProjectRef, err = queryID(c, "project_id"); err != nil {
		s.respondError(c, err)
		return f, false
	}
	if raw := c.Query("status"); raw != "" {
		st, err := constants.ParseRequestStatus(raw)
		if err != nil {
			s.respondError(c, common.ValidationErrorf("status: %v", err))
			return f, false
		}
		f.Status = &st
	}
	if raw := c.Query("verification_status"); raw != "" {
		vs, err := constants.ParseVerificationStatus(raw)
		if err != nil {
			s.respondError(c, common.ValidationErrorf("verification_status: %v", err))
			return f, false
		}
		f.Verification = &vs
	}
	if raw := c.Query("kind"); raw != "" {
		k, err := constants.ParseRequestKind(raw)
		if err != nil {
			s.respondError(c, common.ValidationErrorf("kind: %v", err))
			return f, false
		}
		f.Kind = &k
	}

	switch {
	case actor.IsHomeowner():
		if f.HomeownerID != nil && *f.HomeownerID != actor.ID {
			s.respondError(c, common.AccessDeniedf("homeowners can only list their own requests"))
			return f, false
		}
		f.HomeownerID = &actor.ID
	case actor.IsContractor():
		if f.ContractorID != nil && *f.ContractorID != actor.ID {
			s.respondError(c, common.AccessDeniedf("contractors can only list their own requests"))
			return f, false
		}
		f.ContractorID = &actor.ID
	}
	return f, true
}

func (s *Server) budgetSummary(c *gin.Context) {
	ref, contractorID, ok := s.projectScope(c)
	if !ok {
		return
	}
	summary, err := s.budget.Summary(c.Request.Context(), ref, contractorID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) stageInfo(c *gin.Context) {
	ref, contractorID, ok := s.projectScope(c)
	if !ok {
		return
	}
	info, err := s.budget.StageInfo(c.Request.Context(), ref, contractorID, c.Param("stage"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// projectScope resolves :ref and checks the actor belongs to the project.
// Contractors are always narrowed to themselves.
func (s *Server) projectScope(c *gin.Context) (int64, *int64, bool) {
	actor, _ := actorFrom(c)
	ref, err := pathID(c, "ref")
	if err != nil {
		s.respondError(c, err)
		return 0, nil, false
	}
	contractorID, err := queryID(c, "contractor_id")
	if err != nil {
		s.respondError(c, err)
		return 0, nil, false
	}

	project, err := s.resolver.Resolve(c.Request.Context(), ref)
	if err != nil {
		s.respondError(c, err)
		return 0, nil, false
	}
	switch {
	case actor.IsHomeowner() && project.HomeownerID != actor.ID:
		s.respondError(c, common.AccessDeniedf("project %d belongs to another homeowner", ref))
		return 0, nil, false
	case actor.IsContractor():
		if project.ContractorID != actor.ID || (contractorID != nil && *contractorID != actor.ID) {
			s.respondError(c, common.AccessDeniedf("project %d is not assigned to this contractor", ref))
			return 0, nil, false
		}
		contractorID = &actor.ID
	}
	return ref, contractorID, true
}

func (s *Server) notifications(c *gin.Context) {
	actor, _ := actorFrom(c)
	limit := defaultInboxLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.respondError(c, badRequest("limit must be a positive integer"))
			return
		}
		limit = min(n, maxInboxLimit)
	}

	events, err := s.audit.ListNotifications(c.Request.Context(), actor.ID, actor.Role, limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if events == nil {
		events = []*entity.NotificationEvent{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": events})
}

func canView(actor entity.Actor, req *entity.PaymentRequest) bool {
	switch {
	case actor.IsAdmin():
		return true
	case actor.IsHomeowner():
		return req.HomeownerID == actor.ID
	case actor.IsContractor():
		return req.ContractorID == actor.ID
	}
	return false
}
