// Package export renders reports and tickets into an xlsx workbook for administrators.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Proton-105/stockroom-bot/internal/domain"
	"github.com/Proton-105/stockroom-bot/internal/ticket"
)

// Sheet names in workbook order.
const (
	SheetInventory = "Inventory"
	SheetProblems  = "Problems"
	SheetQuestions = "Questions"
	SheetOrders    = "Orders"
)

var (
	inventoryHeader = []any{"ID", "Date", "Branch", "User", "Sector", "Report Data"}
	ticketHeader    = []any{"ID", "Date", "Status", "Branch", "Sender", "Message", "Responder", "Reply", "Reply Date"}
	orderHeader     = []any{"ID", "Date", "Status", "Branch", "User", "Order Details", "Responder", "Note"}
)

// Reports lists inventory reports.
type Reports interface {
	Since(ctx context.Context, t time.Time) ([]domain.InventoryReport, error)
}

// Tickets lists tickets.
type Tickets interface {
	Since(ctx context.Context, t time.Time) ([]domain.Ticket, error)
}

// File is a rendered workbook.
type File struct {
	Name string
	Data []byte
}

// Exporter builds workbooks.
type Exporter struct {
	reports Reports
	tickets Tickets
	loc     *time.Location
	now     func() time.Time
	log     *slog.Logger
}

// NewExporter constructs an Exporter. Dates are written in loc; nil means UTC.
func NewExporter(reports Reports, tickets Tickets, loc *time.Location, log *slog.Logger) *Exporter {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	return &Exporter{reports: reports, tickets: tickets, loc: loc, now: time.Now, log: log}
}

// Since returns the start of a period of days ending now; zero days means all time.
func (e *Exporter) Since(days int) time.Time {
	if days <= 0 {
		return time.Time{}
	}
	return e.now().UTC().AddDate(0, 0, -days)
}

// Build renders reports and tickets of the last days into four sheets.
func (e *Exporter) Build(ctx context.Context, days int) (*File, error) {
	since := e.Since(days)
	reports, err := e.reports.Since(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("load reports: %w", err)
	}
	tickets, err := e.tickets.Since(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("load tickets: %w", err)
	}
	parts := ticket.Partition(tickets)

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetInventory); err != nil {
		return nil, err
	}
	for _, name := range []string{SheetProblems, SheetQuestions, SheetOrders} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}

	w := &sheetWriter{f: f, loc: e.loc}
	w.inventory(reports)
	w.tickets(SheetProblems, parts.Problems)
	w.tickets(SheetQuestions, parts.Questions)
	w.orders(parts.Orders)
	if w.err != nil {
		return nil, fmt.Errorf("render workbook: %w", w.err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	e.log.Info("export built",
		slog.Int("days", days),
		slog.Int("reports", len(reports)),
		slog.Int("problems", len(parts.Problems)),
		slog.Int("questions", len(parts.Questions)),
		slog.Int("orders", len(parts.Orders)),
	)
	return &File{
		Name: "report_" + e.now().In(e.loc).Format("20060102_1504") + ".xlsx",
		Data: buf.Bytes(),
	}, nil
}

// UserLink is a HYPERLINK formula opening the Telegram profile of id.
func UserLink(id int64, name string) string {
	if strings.TrimSpace(name) == "" {
		name = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf(`HYPERLINK("tg://user?id=%d","%s")`, id, strings.ReplaceAll(name, `"`, `""`))
}

// sheetWriter keeps the first error so rows can be written without checks at every call.
type sheetWriter struct {
	f   *excelize.File
	loc *time.Location
	err error
}

func (w *sheetWriter) row(sheet string, n int, values []any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetSheetRow(sheet, cell, &values)
}

func (w *sheetWriter) formula(sheet string, col, n int, formula string) {
	if w.err != nil || formula == "" {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, n)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetCellFormula(sheet, cell, formula)
}

func (w *sheetWriter) header(sheet string, values []any) {
	w.row(sheet, 1, values)
	if w.err != nil {
		return
	}
	style, err := w.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetRowStyle(sheet, 1, 1, style)
}

func (w *sheetWriter) date(t time.Time) any {
	if t.IsZero() {
		return ""
	}
	return t.In(w.loc).Format("2006-01-02 15:04")
}

func (w *sheetWriter) inventory(reports []domain.InventoryReport) {
	w.header(SheetInventory, inventoryHeader)
	for i, r := range reports {
		n := i + 2
		w.row(SheetInventory, n, []any{r.ID, w.date(r.CreatedAt), r.BranchName, nil, string(r.Sector), r.ReportData})
		w.formula(SheetInventory, 4, n, UserLink(r.UserID, r.UserName))
	}
}

func responderLink(t domain.Ticket) string {
	if t.ResponderID == nil {
		return ""
	}
	return UserLink(*t.ResponderID, t.ResponderName)
}

func replyDate(t domain.Ticket) time.Time {
	if t.ReplyAt == nil {
		return time.Time{}
	}
	return *t.ReplyAt
}

func (w *sheetWriter) tickets(sheet string, tickets []domain.Ticket) {
	w.header(sheet, ticketHeader)
	for i, t := range tickets {
		n := i + 2
		w.row(sheet, n, []any{
			t.ID, w.date(t.CreatedAt), string(t.Status), t.BranchName,
			nil, t.Message, nil, t.ReplyMessage, w.date(replyDate(t)),
		})
		w.formula(sheet, 5, n, UserLink(t.UserID, t.UserName))
		w.formula(sheet, 7, n, responderLink(t))
	}
}

func (w *sheetWriter) orders(orders []domain.Ticket) {
	w.header(SheetOrders, orderHeader)
	for i, o := range orders {
		n := i + 2
		w.row(SheetOrders, n, []any{
			o.ID, w.date(o.CreatedAt), string(o.Status), o.BranchName,
			nil, o.Body(), nil, o.ReplyMessage,
		})
		w.formula(SheetOrders, 5, n, UserLink(o.UserID, o.UserName))
		w.formula(SheetOrders, 7, n, responderLink(o))
	}
}
