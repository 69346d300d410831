package export

import (
	"fmt"
	"sort"
)

// GlobalMaxRecords caps single-file output when a template declares no
// ceiling of its own.
const GlobalMaxRecords = 25000

// DefaultTemplateName is used when a request omits the template.
const DefaultTemplateName = "standard"

func col(field, label string) ColumnDescriptor {
	return ColumnDescriptor{Field: field, Label: label, Transform: TransformPassthrough}
}

func statusCol(field, label string) ColumnDescriptor {
	return ColumnDescriptor{Field: field, Label: label, Transform: TransformStatusMap}
}

func paymentStatusCol(field, label string) ColumnDescriptor {
	return ColumnDescriptor{Field: field, Label: label, Transform: TransformPaymentStatusMap}
}

func dateCol(field, label string) ColumnDescriptor {
	return ColumnDescriptor{Field: field, Label: label, Transform: TransformDateISO}
}

func yesNoCol(field, label string) ColumnDescriptor {
	return ColumnDescriptor{Field: field, Label: label, Transform: TransformBooleanYesNo}
}

func currencyCol(field, label, symbol string) ColumnDescriptor {
	return ColumnDescriptor{Field: field, Label: label, Transform: TransformCurrency, Params: TransformParams{Symbol: symbol}}
}

func phoneCol(field, codeField, label string) ColumnDescriptor {
	return ColumnDescriptor{Field: field, Label: label, Transform: TransformPhoneConcat, Params: TransformParams{CodeField: codeField}}
}

func lookupCol(label string, path ...string) ColumnDescriptor {
	return ColumnDescriptor{Field: path[0], Label: label, Transform: TransformJoinLookup, Params: TransformParams{Path: path}}
}

func defaultCol(field, label, fallback string) ColumnDescriptor {
	return ColumnDescriptor{Field: field, Label: label, Transform: TransformDefaultIfAbsent, Params: TransformParams{Default: fallback}}
}

var participantStandardColumns = []ColumnDescriptor{
	col("id", "ID"),
	col("full_name", "Full Name"),
	col("email", "Email"),
	col("country", "Country"),
	col("institution", "Institution"),
	phoneCol("phone_number", "phone_country_code", "Phone"),
	col("category", "Category"),
	statusCol("form_status", "Form Status"),
	paymentStatusCol("payment_status", "Payment Status"),
	dateCol("registration_date", "Registration Date"),
}

var participantDetailedColumns = append(append([]ColumnDescriptor{}, participantStandardColumns...),
	col("gender", "Gender"),
	dateCol("birth_date", "Birth Date"),
	col("education_level", "Education Level"),
	col("major", "Major"),
	col("emergency_contact_name", "Emergency Contact"),
	phoneCol("emergency_contact_phone", "emergency_contact_phone_code", "Emergency Phone"),
	lookupCol("Ambassador", "ambassador", "full_name"),
	lookupCol("Program", "program", "name"),
)

var participantSummaryColumns = []ColumnDescriptor{
	col("full_name", "Name"),
	col("email", "Email"),
	col("country", "Country"),
	col("category", "Category"),
	statusCol("form_status", "Status"),
}

var participantCompleteColumns = []ColumnDescriptor{
	col("id", "ID"),
	col("full_name", "Full Name"),
	col("first_name", "First Name"),
	col("last_name", "Last Name"),
	col("email", "Email"),
	col("gender", "Gender"),
	dateCol("birth_date", "Birth Date"),
	col("country", "Country"),
	col("city", "City"),
	col("address", "Address"),
	col("postal_code", "Postal Code"),
	col("institution", "Institution"),
	col("education_level", "Education Level"),
	col("major", "Major"),
	col("graduation_year", "Graduation Year"),
	phoneCol("phone_number", "phone_country_code", "Phone"),
	col("emergency_contact_name", "Emergency Contact"),
	phoneCol("emergency_contact_phone", "emergency_contact_phone_code", "Emergency Phone"),
	col("category", "Category"),
	col("score_status", "Score Status"),
	statusCol("form_status", "Form Status"),
	paymentStatusCol("payment_status", "Payment Status"),
	currencyCol("payment_amount", "Payment Amount", ""),
	col("payment_currency", "Payment Currency"),
	col("payment_method", "Payment Method"),
	dateCol("paid_at", "Paid At"),
	col("transaction_ref", "Transaction Ref"),
	lookupCol("Ambassador", "ambassador", "full_name"),
	lookupCol("Program", "program", "name"),
	dateCol("registration_date", "Registration Date"),
	dateCol("updated_at", "Updated At"),
	defaultCol("notes", "Notes", "-"),
	defaultCol("dietary_requirements", "Dietary Requirements", "None"),
	col("tshirt_size", "T-Shirt Size"),
	yesNoCol("accepted_terms", "Accepted Terms"),
	yesNoCol("newsletter_opt_in", "Newsletter"),
}

var paymentStandardColumns = []ColumnDescriptor{
	col("id", "ID"),
	col("participant_id", "Participant ID"),
	currencyCol("amount", "Amount", ""),
	col("currency", "Currency"),
	col("method", "Method"),
	paymentStatusCol("status", "Status"),
	dateCol("paid_at", "Paid At"),
	col("transaction_ref", "Transaction Ref"),
}

var paymentDetailedColumns = append(append([]ColumnDescriptor{}, paymentStandardColumns...),
	defaultCol("notes", "Notes", "-"),
	currencyCol("usd_amount", "USD Amount", "$"),
	col("gateway_detail", "Gateway Detail"),
)

var ambassadorStandardColumns = []ColumnDescriptor{
	col("id", "ID"),
	col("full_name", "Full Name"),
	col("email", "Email"),
	col("country", "Country"),
	col("referral_code", "Referral Code"),
	col("referral_count", "Referrals"),
	yesNoCol("active", "Active"),
}

var ambassadorDetailedColumns = append(append([]ColumnDescriptor{}, ambassadorStandardColumns...),
	phoneCol("phone_number", "phone_country_code", "Phone"),
	col("institution", "Institution"),
	dateCol("created_at", "Created At"),
)

var templateCatalog = map[ExportType]map[string]Template{
	TypeParticipants: {
		"standard": {
			ExportType:           TypeParticipants,
			Name:                 "standard",
			Columns:              participantStandardColumns,
			MaxRecordsSingleFile: 15000,
			RecommendedChunkSize: 5000,
		},
		"detailed": {
			ExportType:           TypeParticipants,
			Name:                 "detailed",
			Columns:              participantDetailedColumns,
			MaxRecordsSingleFile: 10000,
			RecommendedChunkSize: 3000,
			IncludesSensitive:    true,
		},
		"summary": {
			ExportType:           TypeParticipants,
			Name:                 "summary",
			Columns:              participantSummaryColumns,
			MaxRecordsSingleFile: 50000,
			RecommendedChunkSize: 10000,
		},
		"complete": {
			ExportType:           TypeParticipants,
			Name:                 "complete",
			Columns:              participantCompleteColumns,
			MaxRecordsSingleFile: 5000,
			RecommendedChunkSize: 2000,
			IncludesSensitive:    true,
		},
	},
	TypePayments: {
		"standard": {
			ExportType:           TypePayments,
			Name:                 "standard",
			Columns:              paymentStandardColumns,
			MaxRecordsSingleFile: 15000,
			RecommendedChunkSize: 5000,
		},
		"detailed": {
			ExportType:           TypePayments,
			Name:                 "detailed",
			Columns:              paymentDetailedColumns,
			MaxRecordsSingleFile: 10000,
			RecommendedChunkSize: 3000,
			IncludesSensitive:    true,
		},
	},
	TypeAmbassadors: {
		"standard": {
			ExportType:           TypeAmbassadors,
			Name:                 "standard",
			Columns:              ambassadorStandardColumns,
			MaxRecordsSingleFile: 15000,
			RecommendedChunkSize: 5000,
		},
		"detailed": {
			ExportType:           TypeAmbassadors,
			Name:                 "detailed",
			Columns:              ambassadorDetailedColumns,
			MaxRecordsSingleFile: 10000,
			RecommendedChunkSize: 3000,
		},
	},
}

// LookupTemplate resolves a (type, template) pair from the static catalog.
func LookupTemplate(exportType ExportType, name string) (Template, error) {
	if name == "" {
		name = DefaultTemplateName
	}
	byName, ok := templateCatalog[exportType]
	if !ok {
		return Template{}, NewError(KindValidation, fmt.Sprintf("unknown export type %q", exportType), nil)
	}
	tmpl, ok := byName[name]
	if !ok {
		return Template{}, NewError(KindValidation, fmt.Sprintf("unknown template %q for export type %q", name, exportType), nil)
	}
	return tmpl, nil
}

// TemplatesFor returns the catalog entries for one export type, ordered by
// name for stable listings.
func TemplatesFor(exportType ExportType) ([]Template, error) {
	byName, ok := templateCatalog[exportType]
	if !ok {
		return nil, NewError(KindValidation, fmt.Sprintf("unknown export type %q", exportType), nil)
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	templates := make([]Template, 0, len(names))
	for _, name := range names {
		templates = append(templates, byName[name])
	}
	return templates, nil
}
