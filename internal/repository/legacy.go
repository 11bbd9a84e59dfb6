package repository

import (
	"context"
	"database/sql"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/buildhub-payments/db/schema"
)

// LegacyProject is a raw row from one of the legacy project sources.
type LegacyProject struct {
	ID           int64
	HomeownerID  int64
	ContractorID int64
	TotalCost    *float64
	EstimateID   int64
	BudgetRange  string
	Name         string
	Status       string
}

// LegacyProjectRepository reads the project representations owned by the wider
// platform. Every lookup returns (nil, nil) when nothing matches.
type LegacyProjectRepository interface {
	ConstructionProjectByID(ctx context.Context, id int64) (*LegacyProject, error)
	ConstructionProjectByEstimateID(ctx context.Context, estimateID int64) (*LegacyProject, error)
	AcceptedEstimate(ctx context.Context, id int64) (*LegacyProject, error)
	SendEstimate(ctx context.Context, id int64, statuses ...string) (*LegacyProject, error)
	LayoutRequest(ctx context.Context, id int64) (*LegacyProject, error)
	LayoutSendHomeowner(ctx context.Context, sendID int64) (int64, error)
	LatestLayoutContractor(ctx context.Context, layoutID int64) (int64, error)
}

type legacyProjectRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewLegacyProjectRepository(db *DB, logger *slog.Logger) LegacyProjectRepository {
	return &legacyProjectRepository{
		db:     db,
		logger: logger,
	}
}

func (r *legacyProjectRepository) ConstructionProjectByID(ctx context.Context, id int64) (*LegacyProject, error) {
	return r.constructionProject(ctx, entsql.EQ("id", id))
}

func (r *legacyProjectRepository) ConstructionProjectByEstimateID(ctx context.Context, estimateID int64) (*LegacyProject, error) {
	return r.constructionProject(ctx, entsql.EQ("estimate_id", estimateID))
}

func (r *legacyProjectRepository) constructionProject(ctx context.Context, pred *entsql.Predicate) (*LegacyProject, error) {
	q := r.db.queries()
	b := q.builder()
	stmt, args := b.Select("id", "estimate_id", "contractor_id", "homeowner_id", "project_name", "total_cost", "status").
		From(b.Table(schema.ConstructionProjectsTable)).
		Where(pred).
		OrderBy("id").
		Limit(1).
		Query()
	return r.one(ctx, q, stmt, args, func(rows *entsql.Rows, p *LegacyProject) error {
		var cost sql.NullFloat64
		if err := rows.Scan(&p.ID, &p.EstimateID, &p.ContractorID, &p.HomeownerID, &p.Name, &cost, &p.Status); err != nil {
			return err
		}
		p.TotalCost = floatPtr(cost)
		return nil
	})
}

func (r *legacyProjectRepository) AcceptedEstimate(ctx context.Context, id int64) (*LegacyProject, error) {
	q := r.db.queries()
	b := q.builder()
	stmt, args := b.Select("id", "contractor_id", "homeowner_id", "project_name", "total_cost", "status").
		From(b.Table(schema.ContractorEstimatesTable)).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("status", "accepted"))).
		Limit(1).
		Query()
	return r.one(ctx, q, stmt, args, func(rows *entsql.Rows, p *LegacyProject) error {
		var cost sql.NullFloat64
		if err := rows.Scan(&p.ID, &p.ContractorID, &p.HomeownerID, &p.Name, &cost, &p.Status); err != nil {
			return err
		}
		p.TotalCost = floatPtr(cost)
		return nil
	})
}

// SendEstimate loads a contractor_send_estimates row. With no statuses any row matches.
// HomeownerID is zero when the row predates the homeowner_id column.
func (r *legacyProjectRepository) SendEstimate(ctx context.Context, id int64, statuses ...string) (*LegacyProject, error) {
	q := r.db.queries()
	b := q.builder()
	pred := entsql.EQ("id", id)
	if len(statuses) > 0 {
		in := make([]any, len(statuses))
		for i, s := range statuses {
			in[i] = s
		}
		pred = entsql.And(pred, entsql.In("status", in...))
	}
	stmt, args := b.Select("id", "send_id", "contractor_id", "homeowner_id", "total_cost", "status").
		From(b.Table(schema.ContractorSendEstimatesTable)).
		Where(pred).
		Limit(1).
		Query()
	return r.one(ctx, q, stmt, args, func(rows *entsql.Rows, p *LegacyProject) error {
		var (
			cost      sql.NullFloat64
			homeowner sql.NullInt64
		)
		// EstimateID carries send_id here so the caller can follow it to the layout send.
		if err := rows.Scan(&p.ID, &p.EstimateID, &p.ContractorID, &homeowner, &cost, &p.Status); err != nil {
			return err
		}
		p.HomeownerID = homeowner.Int64
		p.TotalCost = floatPtr(cost)
		return nil
	})
}

func (r *legacyProjectRepository) LayoutRequest(ctx context.Context, id int64) (*LegacyProject, error) {
	q := r.db.queries()
	b := q.builder()
	stmt, args := b.Select("id", "homeowner_id", "budget_range", "status").
		From(b.Table(schema.LayoutRequestsTable)).
		Where(entsql.And(entsql.EQ("id", id), entsql.NEQ("status", "cancelled"))).
		Limit(1).
		Query()
	return r.one(ctx, q, stmt, args, func(rows *entsql.Rows, p *LegacyProject) error {
		return rows.Scan(&p.ID, &p.HomeownerID, &p.BudgetRange, &p.Status)
	})
}

func (r *legacyProjectRepository) LayoutSendHomeowner(ctx context.Context, sendID int64) (int64, error) {
	q := r.db.queries()
	b := q.builder()
	stmt, args := b.Select("homeowner_id").
		From(b.Table(schema.ContractorLayoutSendsTable)).
		Where(entsql.EQ("id", sendID)).
		Limit(1).
		Query()
	return r.scalar(ctx, q, stmt, args)
}

func (r *legacyProjectRepository) LatestLayoutContractor(ctx context.Context, layoutID int64) (int64, error) {
	q := r.db.queries()
	b := q.builder()
	stmt, args := b.Select("contractor_id").
		From(b.Table(schema.ContractorLayoutSendsTable)).
		Where(entsql.EQ("layout_id", layoutID)).
		OrderBy(entsql.Desc("id")).
		Limit(1).
		Query()
	return r.scalar(ctx, q, stmt, args)
}

func (r *legacyProjectRepository) one(ctx context.Context, q *queries, stmt string, args []any, scan func(*entsql.Rows, *LegacyProject) error) (*LegacyProject, error) {
	rows, err := q.query(ctx, stmt, args)
	if err != nil {
		r.logger.Error("failed to query legacy project source", "error", err)
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	var p LegacyProject
	if err := scan(rows, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *legacyProjectRepository) scalar(ctx context.Context, q *queries, stmt string, args []any) (int64, error) {
	rows, err := q.query(ctx, stmt, args)
	if err != nil {
		r.logger.Error("failed to query legacy project source", "error", err)
		return 0, err
	}
	defer rows.Close()
	if !rows.Next() {
		return 0, rows.Err()
	}
	var v sql.NullInt64
	if err := rows.Scan(&v); err != nil {
		return 0, err
	}
	return v.Int64, nil
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
