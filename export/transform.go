package export

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Status mapping tables. Integer codes are canonical; string aliases cover
// legacy inputs. Missing keys resolve to the table default.
const statusUnknown = "Unknown"

var formStatusLabels = map[int64]string{
	0: "Not started",
	1: "In progress",
	2: "Submitted",
}

var formStatusAliases = map[string]string{
	"not_started": "Not started",
	"in_progress": "In progress",
	"submitted":   "Submitted",
}

var paymentStatusLabels = map[int64]string{
	0: "Pending",
	1: "Processing",
	2: "Completed",
	3: "Failed",
	4: "Cancelled",
}

var paymentStatusAliases = map[string]string{
	"pending":    "Pending",
	"processing": "Processing",
	"completed":  "Completed",
	"failed":     "Failed",
	"cancelled":  "Cancelled",
}

// transformCell maps one raw record field to its presentation value. It never
// fails: every malformed input maps to a defined empty or default output, so
// a single bad record cannot abort an export.
func transformCell(rec Record, col ColumnDescriptor) string {
	switch col.Transform {
	case TransformStatusMap:
		return mapStatus(fieldValue(rec, col.Field), formStatusLabels, formStatusAliases)
	case TransformPaymentStatusMap:
		return mapStatus(fieldValue(rec, col.Field), paymentStatusLabels, paymentStatusAliases)
	case TransformBooleanYesNo:
		if truthy, ok := coerceBool(fieldValue(rec, col.Field)); ok && truthy {
			return "Yes"
		}
		return "No"
	case TransformDateISO:
		return formatTemporal(fieldValue(rec, col.Field), "2006-01-02", "2006-01-02T15:04:05Z")
	case TransformDateLocale:
		return formatTemporal(fieldValue(rec, col.Field), "02-01-2006", "02-01-2006")
	case TransformCurrency:
		amount, ok := coerceFloat(fieldValue(rec, col.Field))
		if !ok {
			return ""
		}
		return col.Params.Symbol + strconv.FormatFloat(amount, 'f', 2, 64)
	case TransformPhoneConcat:
		return concatPhone(rec, col)
	case TransformJoinLookup:
		return followPath(rec, col.Params.Path)
	case TransformDefaultIfAbsent:
		value := fieldValue(rec, col.Field)
		if value == nil {
			return col.Params.Default
		}
		text := stringify(value)
		if text == "" {
			return col.Params.Default
		}
		return text
	default:
		return stringify(fieldValue(rec, col.Field))
	}
}

// fieldValue treats absent fields and explicit nils identically.
func fieldValue(rec Record, field string) any {
	if rec == nil || field == "" {
		return nil
	}
	value, ok := rec[field]
	if !ok {
		return nil
	}
	return value
}

func mapStatus(value any, table map[int64]string, aliases map[string]string) string {
	if value == nil {
		return statusUnknown
	}
	if code, ok := coerceInt(value); ok {
		if label, ok := table[code]; ok {
			return label
		}
		return statusUnknown
	}
	if raw, ok := value.(string); ok {
		if label, ok := aliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
			return label
		}
	}
	return statusUnknown
}

func concatPhone(rec Record, col ColumnDescriptor) string {
	code := strings.TrimSpace(stringify(fieldValue(rec, col.Params.CodeField)))
	number := strings.TrimSpace(stringify(fieldValue(rec, col.Field)))
	switch {
	case code == "":
		return number
	case number == "":
		return code
	default:
		return code + " " + number
	}
}

// followPath walks a chain of nested record fields. A missing link yields "".
func followPath(rec Record, path []string) string {
	var current any = rec
	for _, key := range path {
		switch node := current.(type) {
		case Record:
			current = node[key]
		case map[string]any:
			current = node[key]
		default:
			return ""
		}
	}
	if _, isMap := current.(map[string]any); isMap {
		return ""
	}
	if _, isRec := current.(Record); isRec {
		return ""
	}
	return stringify(current)
}

// formatTemporal renders a value as a date or datetime. Invalid or missing
// inputs render empty rather than raising.
func formatTemporal(value any, dateLayout, dateTimeLayout string) string {
	parsed, dateOnly, ok := coerceTemporal(value)
	if !ok {
		return ""
	}
	if dateOnly {
		return parsed.Format(dateLayout)
	}
	return parsed.UTC().Format(dateTimeLayout)
}

func stringify(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case *time.Time:
		if v == nil {
			return ""
		}
		return v.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(value)
	}
}

func coerceBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case *bool:
		if v == nil {
			return false, false
		}
		return *v, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, false
		}
		return parsed, true
	case int:
		return v != 0, true
	case int64:
		return v != 0, true
	case int32:
		return v != 0, true
	case float64:
		return v != 0, true
	case float32:
		return v != 0, true
	default:
		return false, false
	}
}

func coerceInt(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case int16:
		return int64(v), true
	case int8:
		return int64(v), true
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case float64:
		if math.Trunc(v) != v {
			return 0, false
		}
		return int64(v), true
	case float32:
		if math.Trunc(float64(v)) != float64(v) {
			return 0, false
		}
		return int64(v), true
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func coerceFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// coerceTemporal parses a value into a time plus a date-only marker. Times at
// exactly midnight UTC count as dates.
func coerceTemporal(value any) (time.Time, bool, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, isMidnight(v), true
	case *time.Time:
		if v == nil {
			return time.Time{}, false, false
		}
		return *v, isMidnight(*v), true
	case string:
		return parseTemporalString(v)
	case int:
		return time.Unix(int64(v), 0), false, true
	case int64:
		return time.Unix(v, 0), false, true
	case float64:
		return time.Unix(int64(v), 0), false, true
	default:
		return time.Time{}, false, false
	}
}

func isMidnight(t time.Time) bool {
	hour, minute, sec := t.UTC().Clock()
	return hour == 0 && minute == 0 && sec == 0 && t.UTC().Nanosecond() == 0
}

func parseTemporalString(raw string) (time.Time, bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false, false
	}
	if parsed, err := time.Parse("2006-01-02", raw); err == nil {
		return parsed, true, true
	}
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, false, true
		}
	}
	return time.Time{}, false, false
}
