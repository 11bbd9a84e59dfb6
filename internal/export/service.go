package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/buildhub-payments/internal/dashboard"
	"github.com/joseph-ayodele/buildhub-payments/internal/entity"
)

// Lister produces the unified request view to export.
type Lister interface {
	List(ctx context.Context, f dashboard.Filter) (*entity.RequestList, error)
}

// Service is a tiny façade over the unified view that produces XLSX bytes for exports.
type Service struct {
	lister Lister
	logger *slog.Logger
}

func NewService(lister Lister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{lister: lister, logger: logger}
}

const (
	requestsSheet = "Payment Requests"
	summarySheet  = "Summary"
)

// ExportRequestsXLSX returns an XLSX workbook (as bytes) with one row per
// request and a summary sheet.
func (s *Service) ExportRequestsXLSX(ctx context.Context, filter dashboard.Filter) ([]byte, error) {
	start := time.Now()

	list, err := s.lister.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query payment requests: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", requestsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(requestsSheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Request ID",
		"Request Date",
		"Kind",
		"Stage / Title",
		"Project ID",
		"Status",
		"Verification",
		"Requested Amount",
		"Approved Amount",
		"Days Open",
		"Overdue",
		"Notes",
		"Receipt Files",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(requestsSheet, cell, h)
	}

	row := 2
	for _, r := range list.Requests {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(requestsSheet, cell, v)
		}

		write(1, r.ID)
		write(2, r.RequestDate.Format("2006-01-02"))
		write(3, string(r.Kind))
		write(4, r.Title())
		write(5, r.ProjectID)
		write(6, string(r.Status))
		write(7, string(r.VerificationStatus))
		write(8, r.RequestedAmount)
		if r.ApprovedAmount != nil {
			write(9, *r.ApprovedAmount)
		} else {
			write(9, "")
		}
		write(10, r.DaysSinceRequest)
		if r.IsOverdue {
			write(11, "yes")
		} else {
			write(11, "")
		}
		write(12, truncate(notes(r), 140))

		paths := make([]string, 0, len(r.ReceiptFiles))
		for _, rf := range r.ReceiptFiles {
			paths = append(paths, rf.StoredPath)
		}
		write(13, strings.Join(paths, "\n"))

		row++
	}

	_ = f.SetColWidth(requestsSheet, "A", "A", 10) // id
	_ = f.SetColWidth(requestsSheet, "B", "B", 14) // date
	_ = f.SetColWidth(requestsSheet, "C", "C", 10) // kind
	_ = f.SetColWidth(requestsSheet, "D", "D", 28) // title
	_ = f.SetColWidth(requestsSheet, "E", "G", 16)
	_ = f.SetColWidth(requestsSheet, "H", "I", 16) // amounts
	_ = f.SetColWidth(requestsSheet, "L", "L", 48) // notes
	_ = f.SetColWidth(requestsSheet, "M", "M", 60) // paths

	sum := list.Summary
	summaryRows := [][]any{
		{"Total Requests", sum.Total},
		{"Pending", sum.Pending},
		{"Approved", sum.Approved},
		{"Paid", sum.Paid},
		{"Rejected", sum.Rejected},
		{"Overdue", sum.Overdue},
		{"Pending Amount", sum.PendingAmount},
		{"Approved Amount", sum.ApprovedAmount},
		{"Paid Amount", sum.PaidAmount},
	}
	for i, vals := range summaryRows {
		_ = f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+1), &vals)
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 20)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(list.Requests),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func notes(r *entity.PaymentRequest) string {
	switch {
	case r.RejectionReason != "":
		return r.RejectionReason
	case r.HomeownerNotes != "":
		return r.HomeownerNotes
	case r.Custom != nil:
		return r.Custom.RequestReason
	case r.Stage != nil:
		return r.Stage.WorkDescription
	}
	return r.ContractorNotes
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
