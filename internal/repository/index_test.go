package repository

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/buildhub-payments/constants"
	"github.com/joseph-ayodele/buildhub-payments/db/schema"
	"github.com/joseph-ayodele/buildhub-payments/internal/common"
)

func openMigrated(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	db, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "index.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx, false))
	return db
}

// stageRow is a raw payment_requests row, written without the store's locking check.
func stageRow(projectID int64, source constants.SourceKind, stage string, status constants.RequestStatus) map[string]any {
	now := time.Now().UTC()
	return map[string]any{
		"kind":                  string(constants.KindStage),
		"project_id":            projectID,
		"project_source":        string(source),
		"contractor_id":         int64(29),
		"homeowner_id":          int64(28),
		"stage_name":            stage,
		"requested_amount":      1000.0,
		"status":                string(status),
		"verification_status":   string(constants.VerificationNone),
		"request_date":          now,
		"homeowner_notes":       "",
		"rejection_reason":      "",
		"contractor_notes":      "",
		"transaction_reference": "",
		"payment_method":        "",
		"verification_notes":    "",
		"created_at":            now,
		"updated_at":            now,
	}
}

func TestActiveStageIndex_RejectsSecondActiveRow(t *testing.T) {
	ctx := context.Background()
	db := openMigrated(t)
	table := schema.PaymentRequestsTable

	_, err := db.InsertRow(ctx, table, stageRow(37, constants.SourceConstructionProject, "Foundation", constants.StatusPending))
	require.NoError(t, err)

	_, err = db.InsertRow(ctx, table, stageRow(37, constants.SourceConstructionProject, "Foundation", constants.StatusApproved))
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err))
	assert.ErrorIs(t, activeStageConflict(err), common.ErrDuplicateActiveRequest)
}

func TestActiveStageIndex_OnlyCoversActiveRowsOfOneProject(t *testing.T) {
	ctx := context.Background()
	db := openMigrated(t)
	table := schema.PaymentRequestsTable

	rows := []map[string]any{
		stageRow(37, constants.SourceConstructionProject, "Foundation", constants.StatusPending),
		stageRow(37, constants.SourceAcceptedEstimate, "Foundation", constants.StatusPending),
		stageRow(37, constants.SourceConstructionProject, "Structure", constants.StatusPending),
		stageRow(37, constants.SourceConstructionProject, "Foundation", constants.StatusRejected),
		stageRow(37, constants.SourceConstructionProject, "Foundation", constants.StatusRejected),
		stageRow(37, constants.SourceConstructionProject, "Foundation", constants.StatusPaid),
	}
	for _, row := range rows {
		_, err := db.InsertRow(ctx, table, row)
		require.NoError(t, err, "status=%v source=%v stage=%v", row["status"], row["project_source"], row["stage_name"])
	}
}

func TestActiveStageConflict_PassesOtherErrorsThrough(t *testing.T) {
	boom := errors.New("connection reset")
	assert.Same(t, boom, activeStageConflict(boom))
	assert.ErrorIs(t, activeStageConflict(&pgconn.PgError{Code: "23505"}), common.ErrDuplicateActiveRequest)
	assert.ErrorIs(t, activeStageConflict(&mysql.MySQLError{Number: 1062}), common.ErrDuplicateActiveRequest)
}

func TestIsDeadlock(t *testing.T) {
	assert.True(t, isDeadlock(&mysql.MySQLError{Number: 1213}))
	assert.True(t, isDeadlock(&pgconn.PgError{Code: "40P01"}))
	assert.False(t, isDeadlock(&mysql.MySQLError{Number: 1062}))
	assert.False(t, isDeadlock(nil))
}
