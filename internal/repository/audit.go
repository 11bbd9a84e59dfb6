package repository

import (
	"context"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/buildhub-payments/constants"
	"github.com/joseph-ayodele/buildhub-payments/db/schema"
	"github.com/joseph-ayodele/buildhub-payments/internal/common"
	"github.com/joseph-ayodele/buildhub-payments/internal/entity"
)

// Tx exposes the append-only writes that must commit together with a request transition.
type Tx struct {
	q *queries
}

// AppendLog writes one verification log entry.
func (t *Tx) AppendLog(ctx context.Context, e *entity.VerificationLogEntry) error {
	ins := t.q.builder().Insert(schema.VerificationLogsTable).
		Columns("request_id", "actor_id", "actor_role", "action", "notes", "created_at").
		Values(e.RequestID, e.ActorID, string(e.ActorRole), e.Action, e.Notes, e.Timestamp)
	id, err := t.q.insert(ctx, ins)
	if err != nil {
		return common.WrapError(err, "append verification log")
	}
	e.ID = id
	return nil
}

// InsertNotification stores a notification in the recipient's inbox.
func (t *Tx) InsertNotification(ctx context.Context, n *entity.NotificationEvent) error {
	ins := t.q.builder().Insert(schema.NotificationsTable).
		Columns("recipient_id", "recipient_role", "request_id", "kind", "title", "message", "payload", "created_at").
		Values(n.RecipientID, string(n.RecipientRole), n.RequestID, n.Kind, n.Title, n.Message, n.Payload, n.CreatedAt)
	id, err := t.q.insert(ctx, ins)
	if err != nil {
		return common.WrapError(err, "insert notification")
	}
	n.ID = id
	return nil
}

// AuditRepository reads the verification log and notification inbox. Neither
// table has update or delete paths.
type AuditRepository interface {
	ListLogs(ctx context.Context, requestID int64) ([]*entity.VerificationLogEntry, error)
	ListNotifications(ctx context.Context, recipientID int64, role constants.Role, limit int) ([]*entity.NotificationEvent, error)
}

type auditRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewAuditRepository(db *DB, logger *slog.Logger) AuditRepository {
	return &auditRepository{
		db:     db,
		logger: logger,
	}
}

func (r *auditRepository) ListLogs(ctx context.Context, requestID int64) ([]*entity.VerificationLogEntry, error) {
	q := r.db.queries()
	b := q.builder()
	stmt, args := b.Select("id", "request_id", "actor_id", "actor_role", "action", "notes", "created_at").
		From(b.Table(schema.VerificationLogsTable)).
		Where(entsql.EQ("request_id", requestID)).
		OrderBy("id").
		Query()
	rows, err := q.query(ctx, stmt, args)
	if err != nil {
		r.logger.Error("failed to list verification logs", "request_id", requestID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []*entity.VerificationLogEntry
	for rows.Next() {
		var (
			e    entity.VerificationLogEntry
			role string
		)
		if err := rows.Scan(&e.ID, &e.RequestID, &e.ActorID, &role, &e.Action, &e.Notes, &e.Timestamp); err != nil {
			return nil, err
		}
		e.ActorRole = constants.Role(role)
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (r *auditRepository) ListNotifications(ctx context.Context, recipientID int64, role constants.Role, limit int) ([]*entity.NotificationEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.queries()
	b := q.builder()
	stmt, args := b.Select("id", "recipient_id", "recipient_role", "request_id", "kind", "title", "message", "payload", "created_at").
		From(b.Table(schema.NotificationsTable)).
		Where(entsql.And(entsql.EQ("recipient_id", recipientID), entsql.EQ("recipient_role", string(role)))).
		OrderBy(entsql.Desc("id")).
		Limit(limit).
		Query()
	rows, err := q.query(ctx, stmt, args)
	if err != nil {
		r.logger.Error("failed to list notifications", "recipient_id", recipientID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []*entity.NotificationEvent
	for rows.Next() {
		var (
			n     entity.NotificationEvent
			rRole string
		)
		if err := rows.Scan(&n.ID, &n.RecipientID, &rRole, &n.RequestID, &n.Kind, &n.Title, &n.Message, &n.Payload, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.RecipientRole = constants.Role(rRole)
		out = append(out, &n)
	}
	return out, rows.Err()
}
