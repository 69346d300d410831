package export

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

const maxCellChars = 32767

// sanitizeCell prepares one cell value for spreadsheet output: composed-form
// Unicode, no control characters beyond tab/newline, a formula-escape
// apostrophe for dangerous leading characters, and the cell length clamp.
func sanitizeCell(value string) string {
	if value == "" {
		return value
	}
	value = norm.NFC.String(value)
	value = stripControlChars(value)
	if value == "" {
		return value
	}
	switch value[0] {
	case '=', '+', '-', '@':
		value = "'" + value
	}
	runes := []rune(value)
	if len(runes) > maxCellChars {
		value = string(runes[:maxCellChars])
	}
	return value
}

func stripControlChars(value string) string {
	clean := true
	for _, r := range value {
		if isStrippedControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return value
	}
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if isStrippedControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isStrippedControl(r rune) bool {
	if r == '\t' || r == '\n' {
		return false
	}
	return r < 0x20 || r == 0x7f
}

const maxSheetLabelLen = 31

// sanitizeSheetLabel applies the workbook sheet-name rules: illegal
// characters stripped, at most 31 characters. Empty hints fall back to
// "<ExportType> <Mon YYYY>".
func sanitizeSheetLabel(hint string, exportType ExportType, now time.Time) string {
	label := strings.TrimSpace(hint)
	if label == "" {
		label = titleCase(string(exportType)) + " " + now.Format("Jan 2006")
	}
	label = strings.Map(func(r rune) rune {
		switch r {
		case '\\', '/', '?', '*', '[', ']', ':':
			return -1
		}
		return r
	}, label)
	label = strings.TrimSpace(label)
	if label == "" {
		label = "Export"
	}
	runes := []rune(label)
	if len(runes) > maxSheetLabelLen {
		label = string(runes[:maxSheetLabelLen])
	}
	return label
}

func titleCase(value string) string {
	if value == "" {
		return value
	}
	return strings.ToUpper(value[:1]) + value[1:]
}
