// Package bunsource streams export records out of a relational database
// through bun. It implements export.SourceAdapter for every export type.
package bunsource

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-registration-export/export"
)

// Adapter satisfies export.SourceAdapter over a bun database handle.
type Adapter struct {
	db     *bun.DB
	logger export.Logger
}

// New wraps a bun handle. The logger may be nil.
func New(db *bun.DB, logger export.Logger) *Adapter {
	if logger == nil {
		logger = export.NopLogger{}
	}
	return &Adapter{db: db, logger: logger}
}

// Count returns the filtered row count without materializing rows.
func (a *Adapter) Count(ctx context.Context, exportType export.ExportType, filters export.FilterSpec) (int, error) {
	query, _, err := a.buildQuery(exportType, filters, false)
	if err != nil {
		return 0, err
	}
	count, err := query.Count(ctx)
	if err != nil {
		return 0, export.NewError(export.KindSourceDown,
			fmt.Sprintf("counting %s failed", exportType), err)
	}
	if filters.Limit > 0 && count > filters.Limit {
		count = filters.Limit
	}
	return count, nil
}

// Open starts a streaming row scan. The iterator holds one row at a time.
func (a *Adapter) Open(ctx context.Context, exportType export.ExportType, filters export.FilterSpec) (export.RecordIterator, error) {
	query, scan, err := a.buildQuery(exportType, filters, true)
	if err != nil {
		return nil, err
	}
	rows, err := query.Rows(ctx)
	if err != nil {
		return nil, export.NewError(export.KindSourceDown,
			fmt.Sprintf("opening %s stream failed", exportType), err)
	}
	a.logger.Debugf("opened %s stream (program=%s limit=%d)", exportType, filters.ProgramID, filters.Limit)
	return &rowIterator{db: a.db, rows: rows, scan: scan}, nil
}

type scanFunc func(ctx context.Context, db *bun.DB, rows *sql.Rows) (export.Record, error)

func (a *Adapter) buildQuery(exportType export.ExportType, filters export.FilterSpec, ordered bool) (*bun.SelectQuery, scanFunc, error) {
	switch exportType {
	case export.TypeParticipants:
		query := a.db.NewSelect().Model((*ParticipantRow)(nil)).
			Relation("Program").
			Relation("Ambassador")
		query = applyParticipantFilters(a.db, query, filters)
		if ordered {
			var err error
			if query, err = applyOrdering(query, "p", filters, participantSortColumns, "registration_date"); err != nil {
				return nil, nil, err
			}
		}
		return query, scanParticipant, nil

	case export.TypePayments:
		query := a.db.NewSelect().Model((*PaymentRow)(nil))
		query = applyPaymentFilters(query, filters)
		if ordered {
			var err error
			if query, err = applyOrdering(query, "pay", filters, paymentSortColumns, "created_at"); err != nil {
				return nil, nil, err
			}
		}
		return query, scanPayment, nil

	case export.TypeAmbassadors:
		query := a.db.NewSelect().Model((*AmbassadorRow)(nil))
		query = applyAmbassadorFilters(query, filters)
		if ordered {
			var err error
			if query, err = applyOrdering(query, "a", filters, ambassadorSortColumns, "full_name"); err != nil {
				return nil, nil, err
			}
		}
		return query, scanAmbassador, nil

	default:
		return nil, nil, export.NewError(export.KindValidation,
			fmt.Sprintf("unknown export type %q", exportType), nil)
	}
}

func applyParticipantFilters(db *bun.DB, query *bun.SelectQuery, filters export.FilterSpec) *bun.SelectQuery {
	query = query.Where("p.program_id = ?", filters.ProgramID)
	if !filters.DateFrom.IsZero() {
		query = query.Where("p.registration_date >= ?", filters.DateFrom)
	}
	if !filters.DateTo.IsZero() {
		query = query.Where("p.registration_date <= ?", filters.DateTo)
	}
	if len(filters.Categories) > 0 {
		query = query.Where("p.category IN (?)", bun.In(filters.Categories))
	}
	if len(filters.ScoreStatuses) > 0 {
		query = query.Where("p.score_status IN (?)", bun.In(filters.ScoreStatuses))
	}
	if filters.HasSuccessfulPayment != nil {
		sub := db.NewSelect().Model((*PaymentRow)(nil)).
			ColumnExpr("1").
			Where("pay.participant_id = p.id").
			Where("pay.status = ?", paymentStatusCompleted)
		if *filters.HasSuccessfulPayment {
			query = query.Where("EXISTS (?)", sub)
		} else {
			query = query.Where("NOT EXISTS (?)", sub)
		}
	}
	if filters.HasSubmittedRegistration != nil {
		sub := db.NewSelect().Model((*RegistrationFormRow)(nil)).
			ColumnExpr("1").
			Where("rf.participant_id = p.id").
			Where("rf.status = ?", formStatusSubmitted)
		if *filters.HasSubmittedRegistration {
			query = query.Where("EXISTS (?)", sub)
		} else {
			query = query.Where("NOT EXISTS (?)", sub)
		}
	}
	return query
}

func applyPaymentFilters(query *bun.SelectQuery, filters export.FilterSpec) *bun.SelectQuery {
	query = query.Where("pay.program_id = ?", filters.ProgramID)
	if !filters.DateFrom.IsZero() {
		query = query.Where("pay.created_at >= ?", filters.DateFrom)
	}
	if !filters.DateTo.IsZero() {
		query = query.Where("pay.created_at <= ?", filters.DateTo)
	}
	return query
}

func applyAmbassadorFilters(query *bun.SelectQuery, filters export.FilterSpec) *bun.SelectQuery {
	query = query.Where("a.program_id = ?", filters.ProgramID)
	if !filters.DateFrom.IsZero() {
		query = query.Where("a.created_at >= ?", filters.DateFrom)
	}
	if !filters.DateTo.IsZero() {
		query = query.Where("a.created_at <= ?", filters.DateTo)
	}
	return query
}

// Sort columns are whitelisted per type so sort_by never reaches SQL raw.
var participantSortColumns = map[string]string{
	"registration_date": "registration_date",
	"full_name":         "full_name",
	"email":             "email",
	"country":           "country",
	"category":          "category",
	"form_status":       "form_status",
	"payment_status":    "payment_status",
}

var paymentSortColumns = map[string]string{
	"created_at": "created_at",
	"paid_at":    "paid_at",
	"amount":     "amount",
	"status":     "status",
}

var ambassadorSortColumns = map[string]string{
	"full_name":      "full_name",
	"email":          "email",
	"referral_count": "referral_count",
	"created_at":     "created_at",
}

func applyOrdering(query *bun.SelectQuery, alias string, filters export.FilterSpec, allowed map[string]string, fallback string) (*bun.SelectQuery, error) {
	column := fallback
	if filters.SortBy != "" {
		mapped, ok := allowed[filters.SortBy]
		if !ok {
			return nil, export.NewError(export.KindValidation,
				fmt.Sprintf("unknown sort_by %q", filters.SortBy), nil)
		}
		column = mapped
	}
	direction := "ASC"
	if strings.EqualFold(filters.SortOrder, "desc") {
		direction = "DESC"
	}
	query = query.OrderExpr("?.? ?", bun.Name(alias), bun.Name(column), bun.Safe(direction))
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	return query, nil
}

func scanParticipant(ctx context.Context, db *bun.DB, rows *sql.Rows) (export.Record, error) {
	row := new(ParticipantRow)
	if err := db.ScanRow(ctx, rows, row); err != nil {
		return nil, err
	}
	return row.toRecord(), nil
}

func scanPayment(ctx context.Context, db *bun.DB, rows *sql.Rows) (export.Record, error) {
	row := new(PaymentRow)
	if err := db.ScanRow(ctx, rows, row); err != nil {
		return nil, err
	}
	return row.toRecord(), nil
}

func scanAmbassador(ctx context.Context, db *bun.DB, rows *sql.Rows) (export.Record, error) {
	row := new(AmbassadorRow)
	if err := db.ScanRow(ctx, rows, row); err != nil {
		return nil, err
	}
	return row.toRecord(), nil
}

// rowIterator adapts a sql.Rows cursor to export.RecordIterator.
type rowIterator struct {
	db   *bun.DB
	rows *sql.Rows
	scan scanFunc
}

func (it *rowIterator) Next(ctx context.Context) (export.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !it.rows.Next() {
		if err := it.rows.Err(); err != nil {
			return nil, export.NewError(export.KindSourceDown, "row stream failed", err)
		}
		return nil, io.EOF
	}
	rec, err := it.scan(ctx, it.db, it.rows)
	if err != nil {
		return nil, export.NewError(export.KindSourceDown, "row scan failed", err)
	}
	return rec, nil
}

func (it *rowIterator) Close() error {
	return it.rows.Close()
}
