package form

import (
	"strconv"
	"strings"
	"time"

	"rental_app_backend/pkg/utils"
)

// DateLayout is the wire format of date fields.
const DateLayout = "2006-01-02"

// Messages attached to invalid fields.
const (
	MsgRequired      = "This field is required"
	MsgInvalidEmail  = "Please enter a valid email address"
	MsgInvalidPhone  = "Please enter a valid phone number (at least 10 digits)"
	MsgInvalidDate   = "Please enter a valid date (YYYY-MM-DD)"
	MsgPastMoveIn    = "Move-in date cannot be in the past"
	MsgFutureDOB     = "Date of birth cannot be in the future"
	MsgInvalidAmount = "Please enter a valid amount"
	MsgTermsRequired = "You must agree to the terms to continue"
)

// FieldErrors maps a field name to the message shown next to it.
type FieldErrors map[string]string

// Empty reports whether no field failed.
func (e FieldErrors) Empty() bool {
	return len(e) == 0
}

// ValidateSection checks every field of s against its rules.
// now anchors date rules such as "move-in not in the past".
func ValidateSection(s Section, v Values, now time.Time) FieldErrors {
	errs := FieldErrors{}
	for _, f := range sectionFields[s] {
		if msg := validateField(f, v, now); msg != "" {
			errs[f.Name] = msg
		}
	}
	return errs
}

// ValidateAll validates every section in order. It returns the first failing
// section with its errors, or 0 and an empty map when the whole form is valid.
func ValidateAll(v Values, now time.Time) (Section, FieldErrors) {
	for _, s := range Sections() {
		if errs := ValidateSection(s, v, now); !errs.Empty() {
			return s, errs
		}
	}
	return 0, FieldErrors{}
}

func validateField(f Field, v Values, now time.Time) string {
	if f.Kind == KindCheckbox {
		if f.isRequired(v) && !v.Bool(f.Name) {
			if f.Name == FieldTermsAgree {
				return MsgTermsRequired
			}
			return MsgRequired
		}
		return ""
	}

	raw := strings.TrimSpace(v.String(f.Name))
	if raw == "" {
		if f.isRequired(v) {
			return MsgRequired
		}
		return ""
	}

	switch f.Kind {
	case KindEmail:
		if !utils.IsValidEmail(raw) {
			return MsgInvalidEmail
		}
	case KindPhone:
		if len(utils.DigitsOnly(raw)) < 10 {
			return MsgInvalidPhone
		}
	case KindDate:
		d, err := time.ParseInLocation(DateLayout, raw, now.Location())
		if err != nil {
			return MsgInvalidDate
		}
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		if f.Name == FieldMoveInDate && d.Before(today) {
			return MsgPastMoveIn
		}
		if f.Name == FieldDOB && d.After(today) {
			return MsgFutureDOB
		}
	case KindMoney:
		if _, ok := ParseMoney(raw); !ok {
			return MsgInvalidAmount
		}
	}
	return ""
}

// ParseMoney accepts "$1,250.50" style input. Negative amounts are rejected.
func ParseMoney(raw string) (float64, bool) {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(raw))
	if cleaned == "" {
		return 0, false
	}
	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || amount < 0 {
		return 0, false
	}
	return amount, true
}

// Rent-to-income ratings.
const (
	RatioGood = "good"
	RatioFair = "fair"
	RatioHigh = "high"
)

// IncomeRatio compares current rent to monthly income. ok is false when
// either amount is missing or income is zero.
func IncomeRatio(v Values) (ratio float64, rating string, ok bool) {
	rent, rentOK := ParseMoney(v.String(FieldRentAmount))
	income, incomeOK := ParseMoney(v.String(FieldMonthlyIncome))
	if !rentOK || !incomeOK || income == 0 {
		return 0, "", false
	}
	ratio = rent / income
	switch {
	case ratio <= 0.30:
		rating = RatioGood
	case ratio <= 0.40:
		rating = RatioFair
	default:
		rating = RatioHigh
	}
	return ratio, rating, true
}

// WarningLowIncome is shown, without blocking progress, when income is under 2.5x rent.
const WarningLowIncome = "Monthly income is less than 2.5 times the rent amount"

// Warnings returns non-blocking advisories for the current values.
func Warnings(v Values) []string {
	var out []string
	if _, rating, ok := IncomeRatio(v); ok && rating == RatioHigh {
		out = append(out, WarningLowIncome)
	}
	return out
}
