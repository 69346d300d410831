package export

import (
	"context"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	excelMaxRows    = 1048576
	minColumnWidth  = 10.0
	maxColumnWidth  = 60.0
	columnWidthPad  = 2.0
	headerFillColor = "1F4E79"
	headerFontColor = "FFFFFF"
)

// WorkbookEngine serializes a projected row stream into one artifact buffer.
type WorkbookEngine interface {
	Name() string
	MIMEType() string
	Extension() string
	Render(ctx context.Context, sheetLabel string, rows RowStream) ([]byte, error)
}

// XLSXEngine renders a single-sheet workbook with a styled, frozen header
// row and observed-width columns.
type XLSXEngine struct{}

func (XLSXEngine) Name() string      { return "xlsx" }
func (XLSXEngine) MIMEType() string  { return MIMEXLSX }
func (XLSXEngine) Extension() string { return ".xlsx" }

// Render consumes the stream in a single pass, sizing columns from observed
// value lengths. The returned buffer is gated on the container signature.
func (e XLSXEngine) Render(ctx context.Context, sheetLabel string, rows RowStream) ([]byte, error) {
	file := excelize.NewFile()
	defer func() {
		_ = file.Close()
	}()

	sheet := file.GetSheetName(0)
	if sheet != sheetLabel {
		if err := file.SetSheetName(sheet, sheetLabel); err != nil {
			return nil, err
		}
		sheet = sheetLabel
	}

	widths := []float64{}
	rowIndex := 0
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

		rowIndex++
		if rowIndex > excelMaxRows {
			return nil, NewError(KindValidation, "xlsx row limit exceeded", nil)
		}

		cells := make([]any, len(row))
		for i, value := range row {
			cell := sanitizeCell(value)
			cells[i] = cell
			width := float64(len([]rune(cell))) + columnWidthPad
			for len(widths) <= i {
				widths = append(widths, minColumnWidth)
			}
			if width > widths[i] {
				widths[i] = width
			}
		}

		anchor, err := excelize.CoordinatesToCellName(1, rowIndex)
		if err != nil {
			return nil, err
		}
		if err := file.SetSheetRow(sheet, anchor, &cells); err != nil {
			return nil, err
		}
	}

	if rowIndex == 0 {
		return nil, NewError(KindInternal, "row stream produced no header", nil)
	}

	if err := e.applyLayout(file, sheet, widths); err != nil {
		return nil, err
	}

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	data := buf.Bytes()
	if err := ValidateArtifactBytes(data); err != nil {
		return nil, err
	}
	return data, nil
}

func (e XLSXEngine) applyLayout(file *excelize.File, sheet string, widths []float64) error {
	for i, width := range widths {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if width > maxColumnWidth {
			width = maxColumnWidth
		}
		if err := file.SetColWidth(sheet, name, name, width); err != nil {
			return err
		}
	}

	headerStyle, err := file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: headerFontColor},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFillColor}},
	})
	if err != nil {
		return err
	}
	if len(widths) > 0 {
		last, err := excelize.CoordinatesToCellName(len(widths), 1)
		if err != nil {
			return err
		}
		if err := file.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
			return err
		}
	}

	return file.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// Artifact gate: the container signature plus a minimum plausible size.
const minArtifactBytes = 100

var containerSignature = []byte{0x50, 0x4B}

// ValidateArtifactBytes enforces the workbook/archive byte gate before any
// artifact is registered or served.
func ValidateArtifactBytes(data []byte) error {
	if len(data) < minArtifactBytes {
		return NewError(KindArtifactInvalid, "artifact below minimum size", nil)
	}
	if data[0] != containerSignature[0] || data[1] != containerSignature[1] {
		return NewError(KindArtifactInvalid, "artifact missing container signature", nil)
	}
	return nil
}
