package google

import (
	"fmt"
	"strings"

	"finboard/internal/core"
)

// parseTransactions converts a values matrix whose first row is a header
// into canonical transactions. Cells are coerced like any other loosely
// typed payload; a header without an amount column is an error.
func parseTransactions(values [][]interface{}) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0)
	if len(values) == 0 {
		return out, nil
	}
	headers := toStrings(values[0])
	fields := make([]string, len(headers))
	hasAmount := false
	for i, h := range headers {
		name := core.HeaderField(h)
		fields[i] = name
		if name == "amount" || name == "value" {
			hasAmount = true
		}
	}
	if !hasAmount {
		return nil, fmt.Errorf("unexpected transactions header: missing Amount; got headers=%v", headers)
	}

	for i := 1; i < len(values); i++ {
		row := values[i]
		if blankRow(row) {
			continue
		}
		out = append(out, core.NormalizeRow(core.RowFromCells(fields, row), len(out)+1))
	}
	return out, nil
}

func blankRow(row []interface{}) bool {
	for _, cell := range row {
		if strings.TrimSpace(fmt.Sprint(cell)) != "" {
			return false
		}
	}
	return true
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = fmt.Sprint(v)
	}
	return out
}
