package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/assemble"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/dates"
)

// Location identifies where a result was persisted.
type Location struct {
	Backend string `json:"backend"` // "sqlite", "file"
	Path    string `json:"path"`
	Key     string `json:"key,omitempty"`
}

func (l Location) String() string {
	if l.Key == "" {
		return l.Backend + "://" + l.Path
	}
	return l.Backend + "://" + l.Path + "#" + l.Key
}

// Saver is the persistence capability handed every result.
type Saver interface {
	Save(ctx context.Context, res assemble.Result) (Location, error)
}

// DocumentSummary is one documents row without its records.
type DocumentSummary struct {
	ID              string
	Filename        string
	Status          constants.ResultStatus
	Method          string
	RecordCount     int
	TotalValue      float64
	DeliveryDateISO string
	ErrorCode       string
}

type DocumentRepository interface {
	Saver
	Get(ctx context.Context, id string) (assemble.Result, error)
	List(ctx context.Context, status constants.ResultStatus) ([]DocumentSummary, error)
}

// SQLStore persists results to the documents and records tables. Statements
// are built with ent's SQL builder for the database's dialect.
type SQLStore struct {
	db     *DB
	b      *entsql.DialectBuilder
	assem  *assemble.Assembler
	logger *slog.Logger
}

// NewSQLStore values records with a; nil uses the default aliases.
func NewSQLStore(db *DB, a *assemble.Assembler, logger *slog.Logger) *SQLStore {
	if a == nil {
		a = assemble.NewAssembler()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLStore{db: db, b: entsql.Dialect(db.Dialect), assem: a, logger: logger}
}

var documentColumns = []string{
	"id", "filename", "kind", "content_hash", "status", "method", "source", "record_count", "total_value",
	"delivery_date", "delivery_date_iso", "invoice_number", "vendor", "stated_total",
	"raw_text", "error_code", "error", "extracted_at", "result_json",
}

// Save validates res and replaces any earlier row for the same document ID, so
// re-extracting a document is idempotent.
func (s *SQLStore) Save(ctx context.Context, res assemble.Result) (Location, error) {
	if err := assemble.Validate(res); err != nil {
		s.logger.Error("repository.save.invalid", "document_id", res.DocumentID, "error", err)
		return Location{}, err
	}
	blob, err := json.Marshal(res)
	if err != nil {
		return Location{}, fmt.Errorf("marshal result: %w", err)
	}

	var (
		invoiceNo, vendor string
		stated            sql.NullFloat64
	)
	if res.Meta != nil {
		invoiceNo, vendor = res.Meta.InvoiceNumber, res.Meta.Vendor
		if res.Meta.StatedTotal != nil {
			stated = sql.NullFloat64{Float64: *res.Meta.StatedTotal, Valid: true}
		}
	}
	var iso sql.NullString
	if v := dates.ISO(res.DeliveryDate); v != "" {
		iso = sql.NullString{String: v, Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Location{}, s.dbErr("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args := s.b.Delete("records").Where(entsql.EQ("document_id", res.DocumentID)).Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return Location{}, s.dbErr("delete records", err)
	}

	query, args = s.b.Insert("documents").
		Columns(documentColumns...).
		Values(
			res.DocumentID, res.Filename, string(res.Kind), res.ContentHash, string(res.Status), res.Method,
			res.Source, res.Count, res.TotalValue, res.DeliveryDate, iso, invoiceNo, vendor, stated,
			res.RawText, res.ErrorCode, res.Error, res.ExtractedAt.UTC().Format(time.RFC3339Nano), string(blob),
		).
		OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues()).
		Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return Location{}, s.dbErr("upsert document", err)
	}

	if len(res.Records) > 0 {
		ins := s.b.Insert("records").Columns("document_id", "idx", "category", "line_value", "fields_json")
		for i, r := range res.Records {
			fields, err := json.Marshal(r)
			if err != nil {
				return Location{}, fmt.Errorf("marshal record %d: %w", i, err)
			}
			ins.Values(res.DocumentID, i, r.Text("category"), s.assem.Value(r), string(fields))
		}
		query, args = ins.Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return Location{}, s.dbErr("insert records", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Location{}, s.dbErr("commit", err)
	}
	s.logger.Debug("repository.save.ok", "document_id", res.DocumentID, "records", len(res.Records))
	return Location{Backend: s.db.Backend(), Path: s.db.Target, Key: "documents/" + res.DocumentID}, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (assemble.Result, error) {
	query, args := s.b.Select("result_json").
		From(s.b.Table("documents")).
		Where(entsql.EQ("id", id)).
		Query()
	var blob string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return assemble.Result{}, common.Errorf(common.ErrNotFound, "document %s", id)
	}
	if err != nil {
		return assemble.Result{}, s.dbErr("get document", err)
	}
	var res assemble.Result
	if err := json.Unmarshal([]byte(blob), &res); err != nil {
		return assemble.Result{}, fmt.Errorf("decode document %s: %w", id, err)
	}
	return res, nil
}

// List returns documents ordered by filename; an empty status lists all.
func (s *SQLStore) List(ctx context.Context, status constants.ResultStatus) ([]DocumentSummary, error) {
	sel := s.b.Select("id", "filename", "status", "method", "record_count", "total_value", "delivery_date_iso", "error_code").
		From(s.b.Table("documents")).
		OrderBy("filename", "id")
	if status != "" {
		sel.Where(entsql.EQ("status", string(status)))
	}
	query, args := sel.Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.dbErr("list documents", err)
	}
	defer rows.Close()

	var out []DocumentSummary
	for rows.Next() {
		var (
			d   DocumentSummary
			st  string
			iso sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.Filename, &st, &d.Method, &d.RecordCount, &d.TotalValue, &iso, &d.ErrorCode); err != nil {
			return nil, s.dbErr("scan document", err)
		}
		d.Status = constants.ResultStatus(st)
		d.DeliveryDateISO = iso.String
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLStore) dbErr(op string, err error) error {
	s.logger.Error("repository.query.failed", "op", op, "error", err)
	return fmt.Errorf("%s: %w", op, errors.Join(common.ErrDatabase, err))
}
