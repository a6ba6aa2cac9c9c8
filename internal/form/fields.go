// Package form holds the rental application form: its sections, field rules
// and the reducer that drives navigation between sections.
package form

import (
	"strings"
	"unicode"
)

// Section is a 1-based step of the form.
type Section int

const (
	SectionProperty Section = iota + 1
	SectionResidence
	SectionEmployment
	SectionReferences
	SectionReview
)

// SectionCount is the number of form sections.
const SectionCount = 5

// Valid reports whether s names a form section.
func (s Section) Valid() bool {
	return s >= SectionProperty && s <= SectionReview
}

// Title is the heading shown on the progress bar.
func (s Section) Title() string {
	switch s {
	case SectionProperty:
		return "Property & Applicant"
	case SectionResidence:
		return "Residence History"
	case SectionEmployment:
		return "Employment & Income"
	case SectionReferences:
		return "References"
	case SectionReview:
		return "Review & Submit"
	}
	return ""
}

// Sections returns all sections in order.
func Sections() []Section {
	return []Section{SectionProperty, SectionResidence, SectionEmployment, SectionReferences, SectionReview}
}

// FieldKind selects the format rule applied to a non-empty value.
type FieldKind int

const (
	KindText FieldKind = iota
	KindEmail
	KindPhone
	KindDate
	KindMoney
	KindCheckbox
)

// Field describes one input of the form.
type Field struct {
	Name     string
	Label    string
	Kind     FieldKind
	Required bool
	// RequiredWhen makes the field required only when the predicate holds for the current values.
	RequiredWhen func(Values) bool
}

func (f Field) isRequired(v Values) bool {
	if f.Required {
		return true
	}
	return f.RequiredWhen != nil && f.RequiredWhen(v)
}

// Field names referenced outside of the section tables.
const (
	FieldFirstName       = "firstName"
	FieldLastName        = "lastName"
	FieldEmail           = "email"
	FieldPhone           = "phone"
	FieldDOB             = "dob"
	FieldPropertyAddress = "propertyAddress"
	FieldUnitNumber      = "unitNumber"
	FieldMoveInDate      = "moveInDate"
	FieldLeaseTerm       = "leaseTerm"
	FieldCurrentAddress  = "currentAddress"
	FieldRentAmount      = "rentAmount"
	FieldHasPets         = "hasPets"
	FieldPetDetails      = "petDetails"
	FieldEmployer        = "employer"
	FieldJobTitle        = "jobTitle"
	FieldMonthlyIncome   = "monthlyIncome"
	FieldRef1Name        = "ref1Name"
	FieldEmergencyName   = "emergencyName"
	FieldEmergencyPhone  = "emergencyPhone"
	FieldContactSMS      = "contactSMS"
	FieldTermsAgree      = "termsAgree"
	FieldSSN             = "ssn"
)

func hasPets(v Values) bool {
	return strings.EqualFold(strings.TrimSpace(v.String(FieldHasPets)), "yes")
}

var sectionFields = map[Section][]Field{
	SectionProperty: {
		{Name: FieldPropertyAddress, Label: "Property address", Kind: KindText, Required: true},
		{Name: FieldUnitNumber, Label: "Unit", Kind: KindText},
		{Name: FieldMoveInDate, Label: "Requested move-in date", Kind: KindDate, Required: true},
		{Name: FieldLeaseTerm, Label: "Desired lease term", Kind: KindText, Required: true},
		{Name: FieldFirstName, Label: "First name", Kind: KindText, Required: true},
		{Name: FieldLastName, Label: "Last name", Kind: KindText, Required: true},
		{Name: FieldEmail, Label: "Email", Kind: KindEmail, Required: true},
		{Name: FieldPhone, Label: "Phone", Kind: KindPhone, Required: true},
		{Name: FieldDOB, Label: "Date of birth", Kind: KindDate, Required: true},
	},
	SectionResidence: {
		{Name: FieldCurrentAddress, Label: "Current address", Kind: KindText, Required: true},
		{Name: "residencyStart", Label: "Resided since", Kind: KindDate, Required: true},
		{Name: FieldRentAmount, Label: "Current rent", Kind: KindMoney, Required: true},
		{Name: "reasonLeaving", Label: "Reason for leaving", Kind: KindText, Required: true},
		{Name: "landlordName", Label: "Landlord name", Kind: KindText, Required: true},
		{Name: "landlordPhone", Label: "Landlord phone", Kind: KindPhone, Required: true},
		{Name: FieldHasPets, Label: "Pets", Kind: KindText},
		{Name: FieldPetDetails, Label: "Pet details", Kind: KindText, RequiredWhen: hasPets},
	},
	SectionEmployment: {
		{Name: "employmentStatus", Label: "Employment status", Kind: KindText, Required: true},
		{Name: FieldEmployer, Label: "Employer", Kind: KindText, Required: true},
		{Name: FieldJobTitle, Label: "Job title", Kind: KindText, Required: true},
		{Name: "employmentDuration", Label: "Time at employer", Kind: KindText, Required: true},
		{Name: "supervisorName", Label: "Supervisor name", Kind: KindText, Required: true},
		{Name: "supervisorPhone", Label: "Supervisor phone", Kind: KindPhone, Required: true},
		{Name: FieldMonthlyIncome, Label: "Monthly income", Kind: KindMoney, Required: true},
	},
	SectionReferences: {
		{Name: FieldRef1Name, Label: "Reference name", Kind: KindText, Required: true},
		{Name: "ref1Phone", Label: "Reference phone", Kind: KindPhone, Required: true},
		{Name: "ref2Name", Label: "Second reference name", Kind: KindText},
		{Name: "ref2Phone", Label: "Second reference phone", Kind: KindPhone},
		{Name: FieldEmergencyName, Label: "Emergency contact", Kind: KindText, Required: true},
		{Name: FieldEmergencyPhone, Label: "Emergency contact phone", Kind: KindPhone, Required: true},
	},
	SectionReview: {
		{Name: "contactEmail", Label: "Contact me by email", Kind: KindCheckbox},
		{Name: FieldContactSMS, Label: "Contact me by text", Kind: KindCheckbox},
		{Name: FieldTermsAgree, Label: "Terms agreement", Kind: KindCheckbox, Required: true},
	},
}

// FieldsFor returns the field definitions of a section.
func FieldsFor(s Section) []Field {
	return sectionFields[s]
}

// RequiredFields lists the names that must be filled for s given the current values.
func RequiredFields(s Section, v Values) []string {
	var names []string
	for _, f := range sectionFields[s] {
		if f.isRequired(v) {
			names = append(names, f.Name)
		}
	}
	return names
}

// IsSensitiveField reports whether name refers to the applicant's identity
// number under any spelling, e.g. "ssn", "SSNConfirm", "ssn_number",
// "applicantSsnLast4" or "socialSecurityNumber".
func IsSensitiveField(name string) bool {
	tokens := fieldTokens(name)
	joined := strings.Join(tokens, "")
	if strings.HasPrefix(joined, "ssn") || strings.HasSuffix(joined, "ssn") || strings.Contains(joined, "socialsecurity") {
		return true
	}
	for _, t := range tokens {
		if t == "ssn" {
			return true
		}
	}
	return false
}

// IdentityDigits is the digit count expected in an identity-number field:
// 4 for a last-four field, 9 otherwise.
func IdentityDigits(name string) int {
	tokens := fieldTokens(name)
	for i, t := range tokens {
		if t == "last" && i+1 < len(tokens) && tokens[i+1] == "4" {
			return 4
		}
	}
	return 9
}

// fieldTokens splits a field name into lower-case words at separators,
// camelCase humps, acronym ends and letter/digit changes.
func fieldTokens(name string) []string {
	runes := []rune(name)
	var tokens []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if len(cur) > 0 {
			prev := cur[len(cur)-1]
			switch {
			case unicode.IsDigit(r) != unicode.IsDigit(prev):
				flush()
			case unicode.IsUpper(r) && unicode.IsLower(prev):
				flush()
			case unicode.IsUpper(r) && unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]):
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return tokens
}
