package dump

import (
	"bufio"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/ckr3453/db-backup4j/internal/dialect"
)

// emitInserts streams rows as batched multi-row INSERT statements, closing
// a batch once its accumulated byte size reaches rowBatchBudget (spec
// §4.A), so a single INSERT never forces the whole table into memory on
// replay.
func emitInserts(w *bufio.Writer, d dialect.Dialect, qualifiedTable string, colNames []string, rows *sql.Rows) error {
	quotedCols := make([]string, len(colNames))
	for i, c := range colNames {
		quotedCols[i] = d.QuoteIdentifier(c)
	}
	header := fmt.Sprintf("INSERT INTO %s (%s) VALUES\n", qualifiedTable, joinComma(quotedCols))

	values := make([]interface{}, len(colNames))
	scanTargets := make([]interface{}, len(colNames))
	for i := range values {
		scanTargets[i] = &values[i]
	}

	batchSize := 0
	rowsInBatch := 0

	flushBatch := func() error {
		if rowsInBatch > 0 {
			if _, err := w.WriteString(";\n"); err != nil {
				return err
			}
			rowsInBatch = 0
			batchSize = 0
		}
		return nil
	}

	for rows.Next() {
		if err := rows.Scan(scanTargets...); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}

		rendered := renderRow(d, values)
		rowBytes := len(rendered) + 2

		if rowsInBatch == 0 {
			if _, err := w.WriteString(header); err != nil {
				return err
			}
			batchSize = len(header)
		} else if batchSize+rowBytes > rowBatchBudget {
			if err := flushBatch(); err != nil {
				return err
			}
			if _, err := w.WriteString(header); err != nil {
				return err
			}
			batchSize = len(header)
		} else {
			if _, err := w.WriteString(",\n"); err != nil {
				return err
			}
			batchSize += 2
		}

		if _, err := w.WriteString(rendered); err != nil {
			return err
		}
		batchSize += len(rendered)
		rowsInBatch++
	}

	return flushBatch()
}

func renderRow(d dialect.Dialect, values []interface{}) string {
	out := "("
	for i, v := range values {
		if i > 0 {
			out += ", "
		}
		out += renderValue(d, v)
	}
	return out + ")"
}

// renderValue formats one column value as a SQL literal: numbers verbatim,
// strings dialect-escaped, binary as a hex literal, NULL as the bareword,
// timestamps ISO-8601 with explicit UTC offset (spec §4.A).
func renderValue(d dialect.Dialect, v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		if t {
			return "1"
		}
		return "0"
	case time.Time:
		return "'" + t.UTC().Format(time.RFC3339Nano) + "'"
	case []byte:
		return d.BinaryLiteral(t)
	case string:
		return "'" + d.EscapeString(t) + "'"
	default:
		return "'" + d.EscapeString(fmt.Sprintf("%v", t)) + "'"
	}
}
