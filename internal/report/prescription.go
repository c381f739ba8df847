package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/Muthahireen/clairvoyant/internal/inference"
	"github.com/Muthahireen/clairvoyant/internal/repository"
)

// FileName is the download name of a prescription.
const FileName = "prescription.pdf"

const disclaimer = "This document was generated by an automated screening tool. It is not a diagnosis. " +
	"Discuss the result with a qualified clinician before making any medical decision."

var recommendations = map[string]string{
	inference.LabelMalignant:    "Findings suggest a malignant pattern. Book an appointment with a breast specialist as soon as possible for diagnostic imaging and biopsy.",
	inference.LabelBenign:       "Findings suggest a benign pattern. Continue routine screening and monthly self-examination. Report any new symptom to your doctor.",
	inference.LabelInconclusive: "The result is inconclusive. Repeat the examination with a clearer image or ask your doctor for a follow-up mammogram.",
}

// Prescription renders a one-page PDF summary of an analysis for its owner.
func Prescription(analysis *repository.Analysis, user *repository.User) ([]byte, error) {
	if analysis == nil || user == nil {
		return nil, fmt.Errorf("prescription needs an analysis and a user")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Clairvoyant prescription", true)
	pdf.SetAuthor("Clairvoyant", true)
	pdf.SetCreationDate(analysis.CreatedAt)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, "Clairvoyant", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, "Breast cancer screening report", "", 1, "L", false, 0, "")
	pdf.Ln(6)

	row := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(45, 7, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 7, tr(value), "", 1, "L", false, 0, "")
	}
	row("Patient", user.DisplayName)
	row("Date", analysis.CreatedAt.UTC().Format(time.RFC1123))
	row("Reference", analysis.RequestID)
	if analysis.FileName != "" {
		row("Source file", analysis.FileName)
	} else {
		row("Source", "Manual measurements")
	}
	row("Result", fmt.Sprintf("%s (%.0f%% confidence)", analysis.Label, analysis.Confidence*100))
	row("Model", analysis.ModelVersion)
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Recommendation", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 6, tr(recommendation(analysis.Label)), "", "L", false)
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "I", 9)
	pdf.SetTextColor(100, 100, 100)
	pdf.MultiCell(0, 5, disclaimer, "T", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render prescription: %w", err)
	}
	return buf.Bytes(), nil
}

func recommendation(label string) string {
	if text, ok := recommendations[label]; ok {
		return text
	}
	return recommendations[inference.LabelInconclusive]
}
