package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
)

// CSVEngine is the fallback workbook engine: it emits the same projected
// rows as a CSV artifact. Cell sanitization still applies, including the
// formula-escape apostrophe.
type CSVEngine struct{}

func (CSVEngine) Name() string      { return "csv" }
func (CSVEngine) MIMEType() string  { return MIMECSV }
func (CSVEngine) Extension() string { return ".csv" }

func (CSVEngine) Render(ctx context.Context, sheetLabel string, rows RowStream) ([]byte, error) {
	_ = sheetLabel

	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := rows.Next(ctx)
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		record := make([]string, len(row))
		for i, value := range row {
			record[i] = sanitizeCell(value)
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
