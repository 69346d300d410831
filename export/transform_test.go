package export

import (
	"testing"
	"time"
)

func TestTransformCell_Passthrough(t *testing.T) {
	rec := Record{"email": "alice@example.com"}
	got := transformCell(rec, col("email", "Email"))
	if got != "alice@example.com" {
		t.Fatalf("expected passthrough value, got %q", got)
	}
}

func TestTransformCell_MissingFieldIsEmpty(t *testing.T) {
	if got := transformCell(Record{}, col("email", "Email")); got != "" {
		t.Fatalf("expected empty cell for missing field, got %q", got)
	}
	if got := transformCell(Record{"email": nil}, col("email", "Email")); got != "" {
		t.Fatalf("expected empty cell for explicit nil, got %q", got)
	}
}

func TestTransformCell_StatusMap(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  string
	}{
		{"integer code", 2, "Submitted"},
		{"int64 code", int64(1), "In progress"},
		{"float whole", float64(0), "Not started"},
		{"string alias", "in_progress", "In progress"},
		{"alias case insensitive", " Submitted ", "Submitted"},
		{"unknown code", 9, "Unknown"},
		{"unknown string", "bogus", "Unknown"},
		{"missing", nil, "Unknown"},
	}
	for _, tc := range cases {
		rec := Record{}
		if tc.value != nil {
			rec["form_status"] = tc.value
		}
		got := transformCell(rec, statusCol("form_status", "Form Status"))
		if got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestTransformCell_PaymentStatusMap(t *testing.T) {
	rec := Record{"payment_status": 3}
	if got := transformCell(rec, paymentStatusCol("payment_status", "Payment")); got != "Failed" {
		t.Fatalf("expected Failed, got %q", got)
	}
	rec = Record{"payment_status": "cancelled"}
	if got := transformCell(rec, paymentStatusCol("payment_status", "Payment")); got != "Cancelled" {
		t.Fatalf("expected Cancelled, got %q", got)
	}
}

func TestTransformCell_BooleanYesNo(t *testing.T) {
	cases := []struct {
		value any
		want  string
	}{
		{true, "Yes"},
		{false, "No"},
		{"true", "Yes"},
		{1, "Yes"},
		{0, "No"},
		{nil, "No"},
		{"garbage", "No"},
	}
	for _, tc := range cases {
		rec := Record{"active": tc.value}
		if got := transformCell(rec, yesNoCol("active", "Active")); got != tc.want {
			t.Fatalf("value %v: expected %q, got %q", tc.value, tc.want, got)
		}
	}
}

func TestTransformCell_DateISO(t *testing.T) {
	dateOnly := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	rec := Record{"birth_date": dateOnly}
	if got := transformCell(rec, dateCol("birth_date", "Birth Date")); got != "2025-03-14" {
		t.Fatalf("expected date-only rendering, got %q", got)
	}

	stamp := time.Date(2025, 3, 14, 9, 30, 15, 0, time.UTC)
	rec = Record{"registration_date": stamp}
	if got := transformCell(rec, dateCol("registration_date", "Registered")); got != "2025-03-14T09:30:15Z" {
		t.Fatalf("expected datetime rendering, got %q", got)
	}

	rec = Record{"birth_date": "2024-12-01"}
	if got := transformCell(rec, dateCol("birth_date", "Birth Date")); got != "2024-12-01" {
		t.Fatalf("expected parsed date string, got %q", got)
	}

	rec = Record{"birth_date": "not a date"}
	if got := transformCell(rec, dateCol("birth_date", "Birth Date")); got != "" {
		t.Fatalf("expected empty cell for invalid date, got %q", got)
	}
}

func TestTransformCell_DateLocale(t *testing.T) {
	rec := Record{"when": time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)}
	desc := ColumnDescriptor{Field: "when", Label: "When", Transform: TransformDateLocale}
	if got := transformCell(rec, desc); got != "14-03-2025" {
		t.Fatalf("expected locale date, got %q", got)
	}
}

func TestTransformCell_Currency(t *testing.T) {
	rec := Record{"amount": 1234.5}
	if got := transformCell(rec, currencyCol("amount", "Amount", "$")); got != "$1234.50" {
		t.Fatalf("expected formatted currency, got %q", got)
	}
	rec = Record{"amount": "17"}
	if got := transformCell(rec, currencyCol("amount", "Amount", "")); got != "17.00" {
		t.Fatalf("expected two decimals, got %q", got)
	}
	rec = Record{"amount": "garbage"}
	if got := transformCell(rec, currencyCol("amount", "Amount", "$")); got != "" {
		t.Fatalf("expected empty cell for bad amount, got %q", got)
	}
}

func TestTransformCell_PhoneConcat(t *testing.T) {
	desc := phoneCol("phone_number", "phone_country_code", "Phone")

	rec := Record{"phone_number": "5551234", "phone_country_code": "+971"}
	if got := transformCell(rec, desc); got != "+971 5551234" {
		t.Fatalf("expected concatenated phone, got %q", got)
	}

	rec = Record{"phone_number": "5551234"}
	if got := transformCell(rec, desc); got != "5551234" {
		t.Fatalf("expected bare number, got %q", got)
	}

	rec = Record{"phone_country_code": "+971"}
	if got := transformCell(rec, desc); got != "+971" {
		t.Fatalf("expected bare code, got %q", got)
	}
}

func TestTransformCell_JoinLookup(t *testing.T) {
	desc := lookupCol("Program", "program", "name")

	rec := Record{"program": map[string]any{"name": "Spring 2025"}}
	if got := transformCell(rec, desc); got != "Spring 2025" {
		t.Fatalf("expected nested lookup, got %q", got)
	}

	rec = Record{}
	if got := transformCell(rec, desc); got != "" {
		t.Fatalf("expected empty for missing parent, got %q", got)
	}

	rec = Record{"program": "not-a-map"}
	if got := transformCell(rec, desc); got != "" {
		t.Fatalf("expected empty for non-map parent, got %q", got)
	}
}

func TestTransformCell_DefaultIfAbsent(t *testing.T) {
	desc := defaultCol("notes", "Notes", "-")

	if got := transformCell(Record{}, desc); got != "-" {
		t.Fatalf("expected default for missing field, got %q", got)
	}
	if got := transformCell(Record{"notes": ""}, desc); got != "-" {
		t.Fatalf("expected default for empty string, got %q", got)
	}
	if got := transformCell(Record{"notes": "vip"}, desc); got != "vip" {
		t.Fatalf("expected value over default, got %q", got)
	}
}

func TestTransformCell_NeverPanicsOnOddShapes(t *testing.T) {
	rec := Record{
		"form_status": []string{"weird"},
		"amount":      map[string]any{"nested": true},
		"active":      struct{}{},
	}
	_ = transformCell(rec, statusCol("form_status", "S"))
	_ = transformCell(rec, currencyCol("amount", "A", "$"))
	_ = transformCell(rec, yesNoCol("active", "B"))
}
