// Package schema declares the payment tables and the legacy project tables
// they are reconciled against, in the form consumed by ent's migration engine.
package schema

import (
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Payment tables.
const (
	PaymentRequestsTable      = "payment_requests"
	StageRequestDetailsTable  = "stage_request_details"
	CustomRequestDetailsTable = "custom_request_details"
	ReceiptFilesTable         = "payment_receipt_files"
	VerificationLogsTable     = "payment_verification_logs"
	NotificationsTable        = "payment_notifications"
)

// Legacy project sources. Owned by the wider platform; created here only for
// development databases and tests.
const (
	ConstructionProjectsTable    = "construction_projects"
	ContractorEstimatesTable     = "contractor_estimates"
	ContractorLayoutSendsTable   = "contractor_layout_sends"
	ContractorSendEstimatesTable = "contractor_send_estimates"
	LayoutRequestsTable          = "layout_requests"
)

// ActiveStageIndex enforces one pending or approved request per canonical
// project (id and source), contractor and stage.
const ActiveStageIndex = "ux_active_stage_request"

const textSize = 2147483647

var moneyType = map[string]string{
	dialect.Postgres: "numeric(15,2)",
	dialect.MySQL:    "decimal(15,2)",
}

func pk() *schema.Column {
	return &schema.Column{Name: "id", Type: field.TypeInt64, Increment: true}
}

func str(name string, size int64) *schema.Column {
	return &schema.Column{Name: name, Type: field.TypeString, Size: size}
}

func text(name string) *schema.Column {
	return &schema.Column{Name: name, Type: field.TypeString, Size: textSize}
}

func i64(name string) *schema.Column {
	return &schema.Column{Name: name, Type: field.TypeInt64}
}

func money(name string, nullable bool) *schema.Column {
	return &schema.Column{Name: name, Type: field.TypeFloat64, SchemaType: moneyType, Nullable: nullable}
}

func ts(name string, nullable bool) *schema.Column {
	return &schema.Column{Name: name, Type: field.TypeTime, Nullable: nullable}
}

func nullable(c *schema.Column) *schema.Column {
	c.Nullable = true
	return c
}

// Tables returns fresh table definitions for the given dialect. The partial
// unique index is only declared where the dialect supports index predicates;
// MySQL relies on the locking check in the store.
func Tables(dialectName string, withLegacy bool) []*schema.Table {
	tables := paymentTables(dialectName)
	if withLegacy {
		tables = append(tables, legacyTables()...)
	}
	return tables
}

func paymentTables(dialectName string) []*schema.Table {
	reqCols := []*schema.Column{
		pk(),
		str("kind", 16),
		i64("project_id"),
		str("project_source", 40),
		i64("contractor_id"),
		i64("homeowner_id"),
		str("stage_name", 64),
		money("requested_amount", false),
		money("approved_amount", true),
		str("status", 16),
		str("verification_status", 32),
		ts("request_date", false),
		ts("response_date", true),
		text("homeowner_notes"),
		text("rejection_reason"),
		text("contractor_notes"),
		str("transaction_reference", 128),
		str("payment_method", 64),
		ts("payment_date", true),
		nullable(i64("verified_by")),
		ts("verified_at", true),
		text("verification_notes"),
		ts("created_at", false),
		ts("updated_at", false),
	}
	col := columnIndex(reqCols)
	requests := &schema.Table{
		Name:       PaymentRequestsTable,
		Columns:    reqCols,
		PrimaryKey: []*schema.Column{reqCols[0]},
		Indexes: []*schema.Index{
			{Name: "idx_payment_requests_project", Columns: []*schema.Column{col["project_id"], col["project_source"], col["contractor_id"]}},
			{Name: "idx_payment_requests_homeowner", Columns: []*schema.Column{col["homeowner_id"], col["request_date"]}},
		},
	}
	if dialectName != dialect.MySQL {
		requests.Indexes = append(requests.Indexes, &schema.Index{
			Name:    ActiveStageIndex,
			Unique:  true,
			Columns: []*schema.Column{col["project_id"], col["project_source"], col["contractor_id"], col["stage_name"]},
			Annotation: &entsql.IndexAnnotation{
				Where: "kind = 'stage' AND status IN ('pending', 'approved')",
			},
		})
	}

	stageCols := []*schema.Column{
		i64("request_id"),
		&schema.Column{Name: "completion_percentage", Type: field.TypeFloat64},
		text("work_description"),
		text("materials_used"),
		&schema.Column{Name: "labor_count", Type: field.TypeInt},
		&schema.Column{Name: "work_start_date", Type: field.TypeTime, Nullable: true},
		&schema.Column{Name: "work_end_date", Type: field.TypeTime, Nullable: true},
		&schema.Column{Name: "quality_check", Type: field.TypeBool},
		&schema.Column{Name: "safety_compliance", Type: field.TypeBool},
		&schema.Column{Name: "percentage_of_total", Type: field.TypeFloat64},
	}
	stage := &schema.Table{
		Name:       StageRequestDetailsTable,
		Columns:    stageCols,
		PrimaryKey: []*schema.Column{stageCols[0]},
	}

	customCols := []*schema.Column{
		i64("request_id"),
		str("request_title", 255),
		text("request_reason"),
		str("category", 100),
		str("urgency_level", 16),
		text("work_description"),
	}
	custom := &schema.Table{
		Name:       CustomRequestDetailsTable,
		Columns:    customCols,
		PrimaryKey: []*schema.Column{customCols[0]},
	}

	fileCols := []*schema.Column{
		pk(),
		i64("request_id"),
		str("original_name", 255),
		str("stored_path", 512),
		i64("size"),
		str("mime_type", 100),
		i64("uploaded_by"),
		ts("uploaded_at", false),
	}
	files := &schema.Table{
		Name:       ReceiptFilesTable,
		Columns:    fileCols,
		PrimaryKey: []*schema.Column{fileCols[0]},
		Indexes: []*schema.Index{
			{Name: "idx_receipt_files_request", Columns: []*schema.Column{fileCols[1]}},
		},
	}

	logCols := []*schema.Column{
		pk(),
		i64("request_id"),
		i64("actor_id"),
		str("actor_role", 16),
		str("action", 40),
		text("notes"),
		ts("created_at", false),
	}
	logs := &schema.Table{
		Name:       VerificationLogsTable,
		Columns:    logCols,
		PrimaryKey: []*schema.Column{logCols[0]},
		Indexes: []*schema.Index{
			{Name: "idx_verification_logs_request", Columns: []*schema.Column{logCols[1]}},
		},
	}

	noteCols := []*schema.Column{
		pk(),
		i64("recipient_id"),
		str("recipient_role", 16),
		i64("request_id"),
		str("kind", 40),
		str("title", 255),
		text("message"),
		text("payload"),
		ts("created_at", false),
	}
	notes := &schema.Table{
		Name:       NotificationsTable,
		Columns:    noteCols,
		PrimaryKey: []*schema.Column{noteCols[0]},
		Indexes: []*schema.Index{
			{Name: "idx_notifications_recipient", Columns: []*schema.Column{noteCols[1], noteCols[2]}},
		},
	}

	for _, t := range []*schema.Table{stage, custom, files, logs} {
		t.ForeignKeys = []*schema.ForeignKey{{
			Symbol:     t.Name + "_request_fk",
			Columns:    []*schema.Column{t.Columns[columnPos(t, "request_id")]},
			RefTable:   requests,
			RefColumns: []*schema.Column{reqCols[0]},
			OnDelete:   schema.Cascade,
		}}
	}

	return []*schema.Table{requests, stage, custom, files, logs, notes}
}

func legacyTables() []*schema.Table {
	cpCols := []*schema.Column{
		pk(),
		i64("estimate_id"),
		i64("contractor_id"),
		i64("homeowner_id"),
		str("project_name", 255),
		money("total_cost", true),
		str("status", 32),
	}
	projects := &schema.Table{
		Name:       ConstructionProjectsTable,
		Columns:    cpCols,
		PrimaryKey: []*schema.Column{cpCols[0]},
		Indexes: []*schema.Index{
			{Name: "ux_construction_projects_estimate", Unique: true, Columns: []*schema.Column{cpCols[1]}},
		},
	}

	ceCols := []*schema.Column{
		pk(),
		i64("contractor_id"),
		i64("homeowner_id"),
		nullable(i64("send_id")),
		str("project_name", 255),
		money("total_cost", true),
		str("status", 32),
	}
	estimates := &schema.Table{Name: ContractorEstimatesTable, Columns: ceCols, PrimaryKey: []*schema.Column{ceCols[0]}}

	clsCols := []*schema.Column{
		pk(),
		i64("contractor_id"),
		nullable(i64("homeowner_id")),
		nullable(i64("layout_id")),
	}
	sends := &schema.Table{Name: ContractorLayoutSendsTable, Columns: clsCols, PrimaryKey: []*schema.Column{clsCols[0]}}

	cseCols := []*schema.Column{
		pk(),
		i64("send_id"),
		i64("contractor_id"),
		nullable(i64("homeowner_id")),
		money("total_cost", true),
		str("status", 32),
	}
	sendEstimates := &schema.Table{Name: ContractorSendEstimatesTable, Columns: cseCols, PrimaryKey: []*schema.Column{cseCols[0]}}

	lrCols := []*schema.Column{
		pk(),
		i64("homeowner_id"),
		str("budget_range", 100),
		str("status", 32),
	}
	layouts := &schema.Table{Name: LayoutRequestsTable, Columns: lrCols, PrimaryKey: []*schema.Column{lrCols[0]}}

	return []*schema.Table{projects, estimates, sends, sendEstimates, layouts}
}

func columnIndex(cols []*schema.Column) map[string]*schema.Column {
	m := make(map[string]*schema.Column, len(cols))
	for _, c := range cols {
		m[c.Name] = c
	}
	return m
}

func columnPos(t *schema.Table, name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}
