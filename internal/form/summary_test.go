package form

import (
	"testing"

	"rental_app_backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestFormatPhone(t *testing.T) {
	assert.Equal(t, "(555) 123-4567", FormatPhone("5551234567"))
	assert.Equal(t, "+1 (555) 123-4567", FormatPhone("1-555-123-4567"))
	assert.Equal(t, "12345", FormatPhone(" 12345 "))
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$1,200.00", FormatMoney("1200"))
	assert.Equal(t, "$1,234,567.89", FormatMoney("$1,234,567.89"))
	assert.Equal(t, "$0.50", FormatMoney("0.5"))
	assert.Equal(t, "abc", FormatMoney("abc"))
}

func TestBuildSummary(t *testing.T) {
	s := stateAt(SectionReview, validValues())
	s.Values["unitNumber"] = "4B"
	s.CoApplicants = []models.CoApplicant{{FullName: "Sam Doe"}}
	s.Documents = []models.Document{{Name: "id.pdf", Path: "p"}}

	got := map[string]string{}
	for _, item := range BuildSummary(s) {
		got[item.Label] = item.Value
	}

	assert.Equal(t, "12 Elm St, Springfield, Unit 4B", got["Property"])
	assert.Equal(t, "Jane Doe", got["Applicant"])
	assert.Equal(t, "(555) 123-4567", got["Phone"])
	assert.Equal(t, "$6,000.00", got["Monthly income"])
	assert.Equal(t, "20% (good)", got["Rent to income"])
	assert.Equal(t, "Sam Doe", got["Co-applicants"])
	assert.Equal(t, "1 uploaded", got["Documents"])
	assert.NotContains(t, got, "Pets")
}

func TestIncomeRatio(t *testing.T) {
	_, rating, ok := IncomeRatio(Values{"rentAmount": "1500", "monthlyIncome": "4000"})
	assert.True(t, ok)
	assert.Equal(t, RatioFair, rating)

	_, _, ok = IncomeRatio(Values{"rentAmount": "1500"})
	assert.False(t, ok)
}
