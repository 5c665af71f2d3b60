package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// AdmissionLetter carries the fields printed on a formal admission letter.
type AdmissionLetter struct {
	SchoolName        string
	ApplicationNumber string
	ApplicantName     string
	GuardianName      string
	ClassName         string
	SessionName       string
	DecisionDate      time.Time
}

// LetterRenderer produces admission offer letters as PDF bytes.
type LetterRenderer struct{}

// NewLetterRenderer constructs a letter renderer.
func NewLetterRenderer() *LetterRenderer {
	return &LetterRenderer{}
}

// Render builds the PDF document for an approved application.
func (r *LetterRenderer) Render(letter AdmissionLetter) ([]byte, error) {
	if letter.ApplicationNumber == "" {
		return nil, fmt.Errorf("letter requires an application number")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 25, 20)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, letter.SchoolName, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, "Office of Admissions", "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "LETTER OF ADMISSION", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Ref: %s", letter.ApplicationNumber), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Date: %s", letter.DecisionDate.Format("2 January 2006")), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	pdf.MultiCell(0, 6, fmt.Sprintf("Dear %s,", letter.GuardianName), "", "L", false)
	pdf.Ln(2)
	body := fmt.Sprintf(
		"We are pleased to offer %s admission into %s for the %s academic session. "+
			"Please complete the acceptance process at the school office to confirm this offer. "+
			"The offer remains provisional until acceptance is confirmed and the required fees are paid.",
		letter.ApplicantName, letter.ClassName, letter.SessionName,
	)
	pdf.MultiCell(0, 6, body, "", "L", false)
	pdf.Ln(8)

	pdf.MultiCell(0, 6, "Congratulations and welcome.", "", "L", false)
	pdf.Ln(10)
	pdf.CellFormat(0, 6, "Registrar", "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, letter.SchoolName, "", 1, "L", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render admission letter: %w", err)
	}
	return buf.Bytes(), nil
}
