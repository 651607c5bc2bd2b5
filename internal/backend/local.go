package backend

import (
	"context"
	"io"
	"strings"

	"finboard/internal/aggregate"
	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/period"
	"finboard/internal/sheets"
	"finboard/internal/upstream"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionRepository is the per-user transaction table of the local store.
type TransactionRepository interface {
	InsertTransactions(ctx context.Context, userID, importID string, txs []core.Transaction) (int, error)
	ListTransactions(ctx context.Context, userID string, f period.Filter) ([]core.Transaction, error)
	Categories(ctx context.Context, userID string) ([]string, error)
}

type transactionStore interface {
	list(ctx context.Context, userID string, f period.Filter) ([]core.Transaction, error)
	insert(ctx context.Context, userID, importID string, txs []core.Transaction) (int, error)
	categories(ctx context.Context, userID string) ([]string, error)
}

type repoStore struct{ repo TransactionRepository }

func (s repoStore) list(ctx context.Context, userID string, f period.Filter) ([]core.Transaction, error) {
	return s.repo.ListTransactions(ctx, userID, f)
}

func (s repoStore) insert(ctx context.Context, userID, importID string, txs []core.Transaction) (int, error) {
	return s.repo.InsertTransactions(ctx, userID, importID, txs)
}

func (s repoStore) categories(ctx context.Context, userID string) ([]string, error) {
	return s.repo.Categories(ctx, userID)
}

// sheetStore adapts a single-tenant store; the user id is ignored.
type sheetStore struct {
	reader sheets.TransactionReader
	cats   sheets.CategoryReader
	writer sheets.TransactionWriter
}

func (s sheetStore) list(ctx context.Context, _ string, f period.Filter) ([]core.Transaction, error) {
	return s.reader.ReadTransactions(ctx, f)
}

func (s sheetStore) insert(ctx context.Context, _, _ string, txs []core.Transaction) (int, error) {
	if s.writer == nil {
		return 0, sheets.ErrReadOnly
	}
	return s.writer.AppendTransactions(ctx, txs)
}

func (s sheetStore) categories(ctx context.Context, _ string) ([]string, error) {
	return s.cats.Categories(ctx)
}

// Local serves transactions from a store inside this process's reach. It has
// no analytics bundle, and budgets live only in the local ring-limit table,
// so the remote half of the budget saga always succeeds.
type Local struct {
	store  transactionStore
	logger *log.Logger
}

var _ Source = (*Local)(nil)

// NewSQLite serves per-user transactions from the local repository.
func NewSQLite(repo TransactionRepository, logger *log.Logger) *Local {
	return &Local{store: repoStore{repo: repo}, logger: logger.WithComponent(log.ComponentBackend)}
}

// NewSheet serves a single-tenant store. A nil writer makes imports fail with
// sheets.ErrReadOnly.
func NewSheet(reader sheets.TransactionReader, cats sheets.CategoryReader, writer sheets.TransactionWriter, logger *log.Logger) *Local {
	return &Local{
		store:  sheetStore{reader: reader, cats: cats, writer: writer},
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

func (l *Local) Transactions(ctx context.Context, userID string, f period.Filter) ([]core.Transaction, error) {
	return l.store.list(ctx, userID, f)
}

// Bundle is always absent; charts compute from transactions.
func (l *Local) Bundle(context.Context, string, period.Filter) (*aggregate.Bundle, error) {
	return nil, nil
}

func (l *Local) Budgets(context.Context, string, string) (map[string]decimal.Decimal, error) {
	return map[string]decimal.Decimal{}, nil
}

func (l *Local) SaveBudget(context.Context, string, string, decimal.Decimal, string) error {
	return nil
}

func (l *Local) Categories(ctx context.Context, userID string) ([]string, error) {
	return l.store.categories(ctx, userID)
}

// ParseStatement validates an uploaded CSV statement and returns it in the
// canonical column order for review. Rows without a category are reported
// in the warning, not rejected.
func (l *Local) ParseStatement(ctx context.Context, userID, filename string, file io.Reader, progress upstream.ProgressFunc) (upstream.ParsedStatement, error) {
	if err := ctx.Err(); err != nil {
		return upstream.ParsedStatement{}, err
	}
	txs, err := readStatement(file)
	if err != nil {
		return upstream.ParsedStatement{}, err
	}
	out := upstream.ParsedStatement{
		CSV:    writeStatement(txs),
		FileID: uuid.NewString(),
	}
	if n := uncategorized(txs); n > 0 {
		out.CategorizationWarning = pluralRows(n) + " without a category filed under " + core.OtherCategory
	}
	if progress != nil {
		progress(100)
	}
	l.logger.InfoContext(ctx, "Parsed statement locally",
		log.FieldUserID, userID,
		"filename", filename,
		log.FieldCount, len(txs))
	return out, nil
}

// ImportStatement stores reviewed rows. Rows whose date is not a calendar
// date are skipped and counted.
func (l *Local) ImportStatement(ctx context.Context, userID string, in upstream.ImportRequest) (upstream.ImportResult, error) {
	txs, err := readStatement(strings.NewReader(in.CSV))
	if err != nil {
		return upstream.ImportResult{}, err
	}
	valid := make([]core.Transaction, 0, len(txs))
	skipped := 0
	for _, tx := range txs {
		if _, ok := tx.Time(); !ok {
			skipped++
			continue
		}
		valid = append(valid, tx)
	}

	importID := in.StatementMeta.FileID
	if importID == "" {
		importID = uuid.NewString()
	}
	n, err := l.store.insert(ctx, userID, importID, valid)
	if err != nil {
		return upstream.ImportResult{}, err
	}
	l.logger.InfoContext(ctx, "Imported statement locally",
		log.FieldUserID, userID,
		log.FieldImportID, importID,
		log.FieldCount, n,
		"skipped", skipped)
	return upstream.ImportResult{Inserted: n, SkippedInvalidDates: skipped}, nil
}
