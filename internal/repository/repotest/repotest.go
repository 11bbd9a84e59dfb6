// Package repotest opens migrated SQLite databases and seeds legacy project
// rows for tests.
package repotest

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/buildhub-payments/db/schema"
	"github.com/joseph-ayodele/buildhub-payments/internal/repository"
)

// Logger discards output.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewDB returns a migrated database, legacy tables included, closed at test end.
func NewDB(t testing.TB) *repository.DB {
	t.Helper()
	ctx := context.Background()
	db, err := repository.OpenSQLite(ctx, filepath.Join(t.TempDir(), "payments.db"), Logger())
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx, true))
	return db
}

// ConstructionProject seeds construction_projects and returns its id.
func ConstructionProject(t testing.TB, db *repository.DB, id, estimateID, homeownerID, contractorID int64, totalCost any) int64 {
	t.Helper()
	return insert(t, db, schema.ConstructionProjectsTable, map[string]any{
		"id":            id,
		"estimate_id":   estimateID,
		"homeowner_id":  homeownerID,
		"contractor_id": contractorID,
		"project_name":  "Residence",
		"total_cost":    totalCost,
		"status":        "in_progress",
	})
}

// AcceptedEstimate seeds contractor_estimates with the given status.
func AcceptedEstimate(t testing.TB, db *repository.DB, id, homeownerID, contractorID int64, totalCost float64, status string) int64 {
	t.Helper()
	return insert(t, db, schema.ContractorEstimatesTable, map[string]any{
		"id":            id,
		"homeowner_id":  homeownerID,
		"contractor_id": contractorID,
		"project_name":  "Estimate",
		"total_cost":    totalCost,
		"status":        status,
	})
}

// LayoutSend seeds contractor_layout_sends.
func LayoutSend(t testing.TB, db *repository.DB, id, homeownerID, contractorID, layoutID int64) int64 {
	t.Helper()
	return insert(t, db, schema.ContractorLayoutSendsTable, map[string]any{
		"id":            id,
		"homeowner_id":  homeownerID,
		"contractor_id": contractorID,
		"layout_id":     layoutID,
	})
}

// SendEstimate seeds contractor_send_estimates. A zero homeownerID stores NULL.
func SendEstimate(t testing.TB, db *repository.DB, id, sendID, homeownerID, contractorID int64, totalCost float64, status string) int64 {
	t.Helper()
	var homeowner any
	if homeownerID != 0 {
		homeowner = homeownerID
	}
	return insert(t, db, schema.ContractorSendEstimatesTable, map[string]any{
		"id":            id,
		"send_id":       sendID,
		"homeowner_id":  homeowner,
		"contractor_id": contractorID,
		"total_cost":    totalCost,
		"status":        status,
	})
}

// LayoutRequest seeds layout_requests.
func LayoutRequest(t testing.TB, db *repository.DB, id, homeownerID int64, budgetRange string) int64 {
	t.Helper()
	return insert(t, db, schema.LayoutRequestsTable, map[string]any{
		"id":           id,
		"homeowner_id": homeownerID,
		"budget_range": budgetRange,
		"status":       "active",
	})
}

func insert(t testing.TB, db *repository.DB, table string, values map[string]any) int64 {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	id, err := db.InsertRow(ctx, table, values)
	require.NoError(t, err)
	return id
}
