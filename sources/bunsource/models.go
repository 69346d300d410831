package bunsource

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-registration-export/export"
)

// ProgramRow is the program a participant registered for.
type ProgramRow struct {
	bun.BaseModel `bun:"table:programs,alias:pr"`

	ID   string `bun:"id,pk"`
	Name string `bun:"name,notnull"`
}

// AmbassadorRow is a referral ambassador.
type AmbassadorRow struct {
	bun.BaseModel `bun:"table:ambassadors,alias:a"`

	ID               string     `bun:"id,pk"`
	ProgramID        string     `bun:"program_id,notnull"`
	FullName         string     `bun:"full_name,notnull"`
	Email            string     `bun:"email,notnull"`
	Country          *string    `bun:"country"`
	Institution      *string    `bun:"institution"`
	PhoneNumber      *string    `bun:"phone_number"`
	PhoneCountryCode *string    `bun:"phone_country_code"`
	ReferralCode     string     `bun:"referral_code,notnull"`
	ReferralCount    int        `bun:"referral_count,notnull,default:0"`
	Active           bool       `bun:"active,notnull,default:true"`
	CreatedAt        *time.Time `bun:"created_at"`
}

// ParticipantRow is one registrant with denormalized payment fields.
type ParticipantRow struct {
	bun.BaseModel `bun:"table:participants,alias:p"`

	ID           string  `bun:"id,pk"`
	ProgramID    string  `bun:"program_id,notnull"`
	AmbassadorID *string `bun:"ambassador_id"`

	FullName  string  `bun:"full_name,notnull"`
	FirstName *string `bun:"first_name"`
	LastName  *string `bun:"last_name"`
	Email     string  `bun:"email,notnull"`
	Gender    *string `bun:"gender"`

	BirthDate  *time.Time `bun:"birth_date"`
	Country    *string    `bun:"country"`
	City       *string    `bun:"city"`
	Address    *string    `bun:"address"`
	PostalCode *string    `bun:"postal_code"`

	Institution    *string `bun:"institution"`
	EducationLevel *string `bun:"education_level"`
	Major          *string `bun:"major"`
	GraduationYear *int    `bun:"graduation_year"`

	PhoneNumber               *string `bun:"phone_number"`
	PhoneCountryCode          *string `bun:"phone_country_code"`
	EmergencyContactName      *string `bun:"emergency_contact_name"`
	EmergencyContactPhone     *string `bun:"emergency_contact_phone"`
	EmergencyContactPhoneCode *string `bun:"emergency_contact_phone_code"`

	Category    *string `bun:"category"`
	ScoreStatus *string `bun:"score_status"`
	FormStatus  int     `bun:"form_status,notnull,default:0"`

	PaymentStatus   int        `bun:"payment_status,notnull,default:0"`
	PaymentAmount   *float64   `bun:"payment_amount"`
	PaymentCurrency *string    `bun:"payment_currency"`
	PaymentMethod   *string    `bun:"payment_method"`
	PaidAt          *time.Time `bun:"paid_at"`
	TransactionRef  *string    `bun:"transaction_ref"`

	Notes               *string `bun:"notes"`
	DietaryRequirements *string `bun:"dietary_requirements"`
	TShirtSize          *string `bun:"tshirt_size"`
	AcceptedTerms       bool    `bun:"accepted_terms,notnull,default:false"`
	NewsletterOptIn     bool    `bun:"newsletter_opt_in,notnull,default:false"`

	RegistrationDate time.Time  `bun:"registration_date,notnull"`
	UpdatedAt        *time.Time `bun:"updated_at"`

	Program    *ProgramRow    `bun:"rel:belongs-to,join:program_id=id"`
	Ambassador *AmbassadorRow `bun:"rel:belongs-to,join:ambassador_id=id"`
}

// PaymentRow is one payment attempt against a participant.
type PaymentRow struct {
	bun.BaseModel `bun:"table:payments,alias:pay"`

	ID             string     `bun:"id,pk"`
	ParticipantID  string     `bun:"participant_id,notnull"`
	ProgramID      string     `bun:"program_id,notnull"`
	Amount         float64    `bun:"amount,notnull"`
	Currency       string     `bun:"currency,notnull"`
	Method         *string    `bun:"method"`
	Status         int        `bun:"status,notnull,default:0"`
	PaidAt         *time.Time `bun:"paid_at"`
	TransactionRef *string    `bun:"transaction_ref"`
	Notes          *string    `bun:"notes"`
	USDAmount      *float64   `bun:"usd_amount"`
	GatewayDetail  *string    `bun:"gateway_detail"`
	CreatedAt      time.Time  `bun:"created_at,notnull"`
}

// RegistrationFormRow backs the has_submitted_registration predicate.
type RegistrationFormRow struct {
	bun.BaseModel `bun:"table:registration_forms,alias:rf"`

	ID            string     `bun:"id,pk"`
	ParticipantID string     `bun:"participant_id,notnull"`
	Status        int        `bun:"status,notnull,default:0"`
	SubmittedAt   *time.Time `bun:"submitted_at"`
}

// Payment/form status values match the export transform tables.
const (
	paymentStatusCompleted = 2
	formStatusSubmitted    = 2
)

func (r *ParticipantRow) toRecord() export.Record {
	rec := export.Record{
		"id":                r.ID,
		"program_id":        r.ProgramID,
		"full_name":         r.FullName,
		"email":             r.Email,
		"form_status":       r.FormStatus,
		"payment_status":    r.PaymentStatus,
		"accepted_terms":    r.AcceptedTerms,
		"newsletter_opt_in": r.NewsletterOptIn,
		"registration_date": r.RegistrationDate,
	}
	putString(rec, "first_name", r.FirstName)
	putString(rec, "last_name", r.LastName)
	putString(rec, "gender", r.Gender)
	putTime(rec, "birth_date", r.BirthDate)
	putString(rec, "country", r.Country)
	putString(rec, "city", r.City)
	putString(rec, "address", r.Address)
	putString(rec, "postal_code", r.PostalCode)
	putString(rec, "institution", r.Institution)
	putString(rec, "education_level", r.EducationLevel)
	putString(rec, "major", r.Major)
	putInt(rec, "graduation_year", r.GraduationYear)
	putString(rec, "phone_number", r.PhoneNumber)
	putString(rec, "phone_country_code", r.PhoneCountryCode)
	putString(rec, "emergency_contact_name", r.EmergencyContactName)
	putString(rec, "emergency_contact_phone", r.EmergencyContactPhone)
	putString(rec, "emergency_contact_phone_code", r.EmergencyContactPhoneCode)
	putString(rec, "category", r.Category)
	putString(rec, "score_status", r.ScoreStatus)
	putFloat(rec, "payment_amount", r.PaymentAmount)
	putString(rec, "payment_currency", r.PaymentCurrency)
	putString(rec, "payment_method", r.PaymentMethod)
	putTime(rec, "paid_at", r.PaidAt)
	putString(rec, "transaction_ref", r.TransactionRef)
	putString(rec, "notes", r.Notes)
	putString(rec, "dietary_requirements", r.DietaryRequirements)
	putString(rec, "tshirt_size", r.TShirtSize)
	putTime(rec, "updated_at", r.UpdatedAt)

	if r.Program != nil && r.Program.ID != "" {
		rec["program"] = map[string]any{"id": r.Program.ID, "name": r.Program.Name}
	}
	if r.Ambassador != nil && r.Ambassador.ID != "" {
		rec["ambassador"] = map[string]any{"id": r.Ambassador.ID, "full_name": r.Ambassador.FullName}
	}
	return rec
}

func (r *PaymentRow) toRecord() export.Record {
	rec := export.Record{
		"id":             r.ID,
		"participant_id": r.ParticipantID,
		"program_id":     r.ProgramID,
		"amount":         r.Amount,
		"currency":       r.Currency,
		"status":         r.Status,
		"created_at":     r.CreatedAt,
	}
	putString(rec, "method", r.Method)
	putTime(rec, "paid_at", r.PaidAt)
	putString(rec, "transaction_ref", r.TransactionRef)
	putString(rec, "notes", r.Notes)
	putFloat(rec, "usd_amount", r.USDAmount)
	putString(rec, "gateway_detail", r.GatewayDetail)
	return rec
}

func (r *AmbassadorRow) toRecord() export.Record {
	rec := export.Record{
		"id":             r.ID,
		"program_id":     r.ProgramID,
		"full_name":      r.FullName,
		"email":          r.Email,
		"referral_code":  r.ReferralCode,
		"referral_count": r.ReferralCount,
		"active":         r.Active,
	}
	putString(rec, "country", r.Country)
	putString(rec, "institution", r.Institution)
	putString(rec, "phone_number", r.PhoneNumber)
	putString(rec, "phone_country_code", r.PhoneCountryCode)
	putTime(rec, "created_at", r.CreatedAt)
	return rec
}

func putString(rec export.Record, key string, value *string) {
	if value != nil {
		rec[key] = *value
	}
}

func putInt(rec export.Record, key string, value *int) {
	if value != nil {
		rec[key] = *value
	}
}

func putFloat(rec export.Record, key string, value *float64) {
	if value != nil {
		rec[key] = *value
	}
}

func putTime(rec export.Record, key string, value *time.Time) {
	if value != nil {
		rec[key] = *value
	}
}
