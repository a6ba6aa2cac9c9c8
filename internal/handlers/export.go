package handlers

import (
	"fmt"
	"io"

	"rental_app_backend/internal/models"
	"rental_app_backend/pkg/utils"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Applications"

var exportHeader = []interface{}{
	"Application ID", "Applicant", "Email", "Phone", "Property",
	"Status", "Payment", "Payment Marked By", "Status Note", "Submitted",
}

// writeApplicationsWorkbook renders apps as a single sheet xlsx.
func writeApplicationsWorkbook(w io.Writer, apps []models.Application) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	header := exportHeader
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, app := range apps {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			app.ApplicationID,
			app.ApplicantName,
			app.ApplicantEmail,
			utils.DerefString(app.ApplicantPhone),
			utils.DerefString(app.PropertyAddress),
			app.ApplicationStatus.Label(),
			string(app.PaymentStatus),
			utils.DerefString(app.PaymentMarkedBy),
			utils.DerefString(app.StatusNote),
			app.CreatedAt.UTC().Format("2006-01-02 15:04"),
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return f.Write(w)
}
