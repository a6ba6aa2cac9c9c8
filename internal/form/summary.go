package form

import (
	"fmt"
	"strconv"
	"strings"

	"rental_app_backend/pkg/utils"
)

// SummaryItem is one line of the review section.
type SummaryItem struct {
	Section string `json:"section"`
	Label   string `json:"label"`
	Value   string `json:"value"`
}

// BuildSummary renders the review section from the entered values.
// Empty values are skipped.
func BuildSummary(s State) []SummaryItem {
	v := s.Values
	var items []SummaryItem
	add := func(sec Section, label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			items = append(items, SummaryItem{Section: sec.Title(), Label: label, Value: value})
		}
	}

	property := v.String(FieldPropertyAddress)
	if unit := strings.TrimSpace(v.String(FieldUnitNumber)); unit != "" {
		property += ", Unit " + unit
	}
	add(SectionProperty, "Property", property)
	add(SectionProperty, "Move-in date", v.String(FieldMoveInDate))
	add(SectionProperty, "Lease term", v.String(FieldLeaseTerm))
	add(SectionProperty, "Applicant", FullName(v))
	add(SectionProperty, "Email", v.String(FieldEmail))
	add(SectionProperty, "Phone", FormatPhone(v.String(FieldPhone)))
	add(SectionProperty, "Date of birth", v.String(FieldDOB))

	add(SectionResidence, "Current address", v.String(FieldCurrentAddress))
	add(SectionResidence, "Current rent", FormatMoney(v.String(FieldRentAmount)))
	if hasPets(v) {
		add(SectionResidence, "Pets", v.String(FieldPetDetails))
	}

	add(SectionEmployment, "Employer", v.String(FieldEmployer))
	add(SectionEmployment, "Job title", v.String(FieldJobTitle))
	add(SectionEmployment, "Monthly income", FormatMoney(v.String(FieldMonthlyIncome)))
	if ratio, rating, ok := IncomeRatio(v); ok {
		add(SectionEmployment, "Rent to income", fmt.Sprintf("%.0f%% (%s)", ratio*100, rating))
	}

	add(SectionReferences, "Reference", v.String(FieldRef1Name))
	emergency := v.String(FieldEmergencyName)
	if phone := FormatPhone(v.String(FieldEmergencyPhone)); phone != "" && emergency != "" {
		emergency += " " + phone
	}
	add(SectionReferences, "Emergency contact", emergency)

	if n := len(s.CoApplicants); n > 0 {
		names := make([]string, 0, n)
		for _, ca := range s.CoApplicants {
			names = append(names, ca.FullName)
		}
		add(SectionReview, "Co-applicants", strings.Join(names, ", "))
	}
	if n := len(s.Documents); n > 0 {
		add(SectionReview, "Documents", strconv.Itoa(n)+" uploaded")
	}
	return items
}

// FullName joins first and last name.
func FullName(v Values) string {
	return strings.TrimSpace(strings.TrimSpace(v.String(FieldFirstName)) + " " + strings.TrimSpace(v.String(FieldLastName)))
}

// FormatPhone renders 10 digit numbers as (555) 123-4567 and 11 digit
// numbers with a leading 1 as +1 (555) 123-4567. Anything else is returned trimmed.
func FormatPhone(raw string) string {
	d := utils.DigitsOnly(raw)
	switch {
	case len(d) == 10:
		return fmt.Sprintf("(%s) %s-%s", d[:3], d[3:6], d[6:])
	case len(d) == 11 && d[0] == '1':
		return fmt.Sprintf("+1 (%s) %s-%s", d[1:4], d[4:7], d[7:])
	}
	return strings.TrimSpace(raw)
}

// FormatMoney renders an amount as $1,234.56. Unparseable input is returned as is.
func FormatMoney(raw string) string {
	amount, ok := ParseMoney(raw)
	if !ok {
		return strings.TrimSpace(raw)
	}
	whole := int64(amount)
	cents := int64((amount-float64(whole))*100 + 0.5)
	if cents == 100 {
		whole++
		cents = 0
	}
	digits := strconv.FormatInt(whole, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("$%s.%02d", b.String(), cents)
}
