package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/buildhub-payments/constants"
	"github.com/joseph-ayodele/buildhub-payments/db/schema"
	"github.com/joseph-ayodele/buildhub-payments/internal/entity"
)

// queries runs builder statements against either the driver or an open transaction.
type queries struct {
	ex      dialect.ExecQuerier
	dialect string
}

func (q *queries) builder() *entsql.DialectBuilder {
	return entsql.Dialect(q.dialect)
}

func (q *queries) query(ctx context.Context, query string, args []any) (*entsql.Rows, error) {
	rows := &entsql.Rows{}
	if err := q.ex.Query(ctx, query, args, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (q *queries) exec(ctx context.Context, query string, args []any) (sql.Result, error) {
	var res sql.Result
	if err := q.ex.Exec(ctx, query, args, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// insert runs an INSERT and returns the generated id.
func (q *queries) insert(ctx context.Context, ins *entsql.InsertBuilder) (int64, error) {
	if q.dialect == dialect.Postgres {
		stmt, args := ins.Returning("id").Query()
		rows, err := q.query(ctx, stmt, args)
		if err != nil {
			return 0, err
		}
		defer rows.Close()
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return 0, err
			}
			return 0, fmt.Errorf("insert returned no id")
		}
		var id int64
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		return id, rows.Err()
	}
	stmt, args := ins.Query()
	res, err := q.exec(ctx, stmt, args)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// lockable reports whether SELECT ... FOR UPDATE is meaningful on this dialect.
func (q *queries) lockable() bool {
	return q.dialect != dialect.SQLite
}

var requestColumns = []string{
	"id", "kind", "project_id", "project_source", "contractor_id", "homeowner_id", "stage_name",
	"requested_amount", "approved_amount", "status", "verification_status", "request_date",
	"response_date", "homeowner_notes", "rejection_reason", "contractor_notes",
	"transaction_reference", "payment_method", "payment_date", "verified_by", "verified_at",
	"verification_notes", "created_at", "updated_at",
}

func scanRequest(rows *entsql.Rows) (*entity.PaymentRequest, error) {
	var (
		r            entity.PaymentRequest
		kind         string
		source       string
		stageName    string
		status       string
		verification string
		approved     sql.NullFloat64
		responseDate sql.NullTime
		paymentDate  sql.NullTime
		verifiedBy   sql.NullInt64
		verifiedAt   sql.NullTime
	)
	err := rows.Scan(
		&r.ID, &kind, &r.ProjectID, &source, &r.ContractorID, &r.HomeownerID, &stageName,
		&r.RequestedAmount, &approved, &status, &verification, &r.RequestDate,
		&responseDate, &r.HomeownerNotes, &r.RejectionReason, &r.ContractorNotes,
		&r.TransactionReference, &r.PaymentMethod, &paymentDate, &verifiedBy, &verifiedAt,
		&r.VerificationNotes, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Kind = constants.RequestKind(kind)
	r.ProjectSource = constants.SourceKind(source)
	r.Status = constants.RequestStatus(status)
	r.VerificationStatus = constants.VerificationStatus(verification)
	if approved.Valid {
		v := approved.Float64
		r.ApprovedAmount = &v
	}
	r.ResponseDate = timePtr(responseDate)
	r.PaymentDate = timePtr(paymentDate)
	r.VerifiedAt = timePtr(verifiedAt)
	if verifiedBy.Valid {
		v := verifiedBy.Int64
		r.VerifiedBy = &v
	}
	if r.Kind == constants.KindStage {
		r.Stage = &entity.StageDetails{StageName: stageName}
	} else {
		r.Custom = &entity.CustomDetails{}
	}
	r.ReceiptFiles = []entity.ReceiptFile{}
	return &r, nil
}

// selectRequests loads envelopes matching pred and fills their details and files.
func (q *queries) selectRequests(ctx context.Context, pred *entsql.Predicate, forUpdate bool) ([]*entity.PaymentRequest, error) {
	b := q.builder()
	sel := b.Select(requestColumns...).From(b.Table(schema.PaymentRequestsTable))
	if pred != nil {
		sel = sel.Where(pred)
	}
	sel = sel.OrderBy(entsql.Desc("request_date"), entsql.Desc("id"))
	if forUpdate && q.lockable() {
		sel = sel.ForUpdate()
	}
	stmt, args := sel.Query()
	rows, err := q.query(ctx, stmt, args)
	if err != nil {
		return nil, err
	}
	var out []*entity.PaymentRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(out) == 0 {
		return out, nil
	}
	if err := q.loadDetails(ctx, out); err != nil {
		return nil, err
	}
	if err := q.loadFiles(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func idsOf(reqs []*entity.PaymentRequest, kind constants.RequestKind) []any {
	var ids []any
	for _, r := range reqs {
		if kind == "" || r.Kind == kind {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

func byID(reqs []*entity.PaymentRequest) map[int64]*entity.PaymentRequest {
	m := make(map[int64]*entity.PaymentRequest, len(reqs))
	for _, r := range reqs {
		m[r.ID] = r
	}
	return m
}

func (q *queries) loadDetails(ctx context.Context, reqs []*entity.PaymentRequest) error {
	index := byID(reqs)
	b := q.builder()

	if ids := idsOf(reqs, constants.KindStage); len(ids) > 0 {
		stmt, args := b.Select("request_id", "completion_percentage", "work_description", "materials_used",
			"labor_count", "work_start_date", "work_end_date", "quality_check", "safety_compliance",
			"percentage_of_total").
			From(b.Table(schema.StageRequestDetailsTable)).
			Where(entsql.In("request_id", ids...)).
			Query()
		rows, err := q.query(ctx, stmt, args)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				id         int64
				d          entity.StageDetails
				start, end sql.NullTime
			)
			if err := rows.Scan(&id, &d.CompletionPercentage, &d.WorkDescription, &d.MaterialsUsed,
				&d.LaborCount, &start, &end, &d.QualityCheck, &d.SafetyCompliance, &d.PercentageOfTotal); err != nil {
				return err
			}
			if r, ok := index[id]; ok && r.Stage != nil {
				d.StageName = r.Stage.StageName
				d.WorkStartDate = timePtr(start)
				d.WorkEndDate = timePtr(end)
				*r.Stage = d
			}
		}
		if err := rows.Err(); err != nil {
			return err
		}
	}

	if ids := idsOf(reqs, constants.KindCustom); len(ids) > 0 {
		stmt, args := b.Select("request_id", "request_title", "request_reason", "category", "urgency_level", "work_description").
			From(b.Table(schema.CustomRequestDetailsTable)).
			Where(entsql.In("request_id", ids...)).
			Query()
		rows, err := q.query(ctx, stmt, args)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				id      int64
				d       entity.CustomDetails
				urgency string
			)
			if err := rows.Scan(&id, &d.RequestTitle, &d.RequestReason, &d.Category, &urgency, &d.WorkDescription); err != nil {
				return err
			}
			d.UrgencyLevel = constants.Urgency(urgency)
			if r, ok := index[id]; ok && r.Custom != nil {
				*r.Custom = d
			}
		}
		if err := rows.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (q *queries) loadFiles(ctx context.Context, reqs []*entity.PaymentRequest) error {
	index := byID(reqs)
	b := q.builder()
	stmt, args := b.Select("id", "request_id", "original_name", "stored_path", "size", "mime_type", "uploaded_by", "uploaded_at").
		From(b.Table(schema.ReceiptFilesTable)).
		Where(entsql.In("request_id", idsOf(reqs, "")...)).
		OrderBy("id").
		Query()
	rows, err := q.query(ctx, stmt, args)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var f entity.ReceiptFile
		if err := rows.Scan(&f.ID, &f.RequestID, &f.OriginalName, &f.StoredPath, &f.Size, &f.MimeType, &f.UploadedBy, &f.UploadedAt); err != nil {
			return err
		}
		if r, ok := index[f.RequestID]; ok {
			r.ReceiptFiles = append(r.ReceiptFiles, f)
		}
	}
	return rows.Err()
}

func (q *queries) insertRequest(ctx context.Context, r *entity.PaymentRequest) (int64, error) {
	b := q.builder()
	ins := b.Insert(schema.PaymentRequestsTable).
		Columns(requestColumns[1:]...).
		Values(
			string(r.Kind), r.ProjectID, string(r.ProjectSource), r.ContractorID, r.HomeownerID, r.StageName(),
			r.RequestedAmount, nullFloat(r.ApprovedAmount), string(r.Status), string(r.VerificationStatus), r.RequestDate,
			nullTime(r.ResponseDate), r.HomeownerNotes, r.RejectionReason, r.ContractorNotes,
			r.TransactionReference, r.PaymentMethod, nullTime(r.PaymentDate), nullInt(r.VerifiedBy), nullTime(r.VerifiedAt),
			r.VerificationNotes, r.CreatedAt, r.UpdatedAt,
		)
	id, err := q.insert(ctx, ins)
	if err != nil {
		return 0, err
	}

	switch {
	case r.Stage != nil:
		d := r.Stage
		stmt, args := b.Insert(schema.StageRequestDetailsTable).
			Columns("request_id", "completion_percentage", "work_description", "materials_used", "labor_count",
				"work_start_date", "work_end_date", "quality_check", "safety_compliance", "percentage_of_total").
			Values(id, d.CompletionPercentage, d.WorkDescription, d.MaterialsUsed, d.LaborCount,
				nullTime(d.WorkStartDate), nullTime(d.WorkEndDate), d.QualityCheck, d.SafetyCompliance, d.PercentageOfTotal).
			Query()
		if _, err := q.exec(ctx, stmt, args); err != nil {
			return 0, err
		}
	case r.Custom != nil:
		d := r.Custom
		stmt, args := b.Insert(schema.CustomRequestDetailsTable).
			Columns("request_id", "request_title", "request_reason", "category", "urgency_level", "work_description").
			Values(id, d.RequestTitle, d.RequestReason, d.Category, string(d.UrgencyLevel), d.WorkDescription).
			Query()
		if _, err := q.exec(ctx, stmt, args); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// updateEnvelope writes the mutable envelope columns. Identity columns never change.
func (q *queries) updateEnvelope(ctx context.Context, r *entity.PaymentRequest) error {
	stmt, args := q.builder().Update(schema.PaymentRequestsTable).
		Set("approved_amount", nullFloat(r.ApprovedAmount)).
		Set("status", string(r.Status)).
		Set("verification_status", string(r.VerificationStatus)).
		Set("response_date", nullTime(r.ResponseDate)).
		Set("homeowner_notes", r.HomeownerNotes).
		Set("rejection_reason", r.RejectionReason).
		Set("contractor_notes", r.ContractorNotes).
		Set("transaction_reference", r.TransactionReference).
		Set("payment_method", r.PaymentMethod).
		Set("payment_date", nullTime(r.PaymentDate)).
		Set("verified_by", nullInt(r.VerifiedBy)).
		Set("verified_at", nullTime(r.VerifiedAt)).
		Set("verification_notes", r.VerificationNotes).
		Set("updated_at", r.UpdatedAt).
		Where(entsql.EQ("id", r.ID)).
		Query()
	_, err := q.exec(ctx, stmt, args)
	return err
}

func (q *queries) insertReceiptFile(ctx context.Context, f *entity.ReceiptFile) (int64, error) {
	ins := q.builder().Insert(schema.ReceiptFilesTable).
		Columns("request_id", "original_name", "stored_path", "size", "mime_type", "uploaded_by", "uploaded_at").
		Values(f.RequestID, f.OriginalName, f.StoredPath, f.Size, f.MimeType, f.UploadedBy, f.UploadedAt)
	return q.insert(ctx, ins)
}

// countActiveStage counts pending or approved requests holding a stage, locking them when supported.
func (q *queries) countActiveStage(ctx context.Context, projectID int64, source constants.SourceKind, contractorID int64, stageName string) (int, error) {
	b := q.builder()
	sel := b.Select("id").From(b.Table(schema.PaymentRequestsTable)).
		Where(entsql.And(
			entsql.EQ("project_id", projectID),
			entsql.EQ("project_source", string(source)),
			entsql.EQ("contractor_id", contractorID),
			entsql.EQ("kind", string(constants.KindStage)),
			entsql.EQ("stage_name", stageName),
			entsql.In("status", string(constants.StatusPending), string(constants.StatusApproved)),
		))
	if q.lockable() {
		sel = sel.ForUpdate()
	}
	stmt, args := sel.Query()
	rows, err := q.query(ctx, stmt, args)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		n++
	}
	return n, rows.Err()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
