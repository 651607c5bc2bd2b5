package backend

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"finboard/internal/core"
)

// ErrInvalidStatement marks an upload that is not a readable CSV statement.
var ErrInvalidStatement = errors.New("invalid statement")

var statementHeader = []string{"date", "description", "amount", "category"}

// readStatement decodes a CSV whose first record names the columns.
func readStatement(r io.Reader) ([]core.Transaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidStatement)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStatement, err)
	}
	fields := make([]string, len(header))
	hasAmount := false
	for i, h := range header {
		fields[i] = core.HeaderField(strings.TrimPrefix(h, "\ufeff"))
		if fields[i] == "amount" || fields[i] == "value" {
			hasAmount = true
		}
	}
	if !hasAmount {
		return nil, fmt.Errorf("%w: no amount column in header %v", ErrInvalidStatement, header)
	}

	out := make([]core.Transaction, 0)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidStatement, err)
		}
		cells := make([]any, len(rec))
		for i, v := range rec {
			cells[i] = v
		}
		out = append(out, core.NormalizeRow(core.RowFromCells(fields, cells), len(out)+1))
	}
	return out, nil
}

// writeStatement renders rows in the canonical column order.
func writeStatement(txs []core.Transaction) string {
	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.Write(statementHeader)
	for _, tx := range txs {
		_ = w.Write([]string{tx.Date, tx.Description, tx.Amount.String(), tx.Category})
	}
	w.Flush()
	return b.String()
}

func uncategorized(txs []core.Transaction) int {
	n := 0
	for _, tx := range txs {
		if tx.Category == core.OtherCategory {
			n++
		}
	}
	return n
}

func pluralRows(n int) string {
	if n == 1 {
		return "1 row"
	}
	return strconv.Itoa(n) + " rows"
}
