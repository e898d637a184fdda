package reportsvc

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"

	"github.com/trezcool/tuitionbook/core/tuition"
)

const (
	pageWidth   = 210.0 // A4, mm
	margin      = 15.0
	rowHeight   = 8.0
	maxTableY   = 265.0 // rows past this offset go to the next page
	footerY     = -15.0
	dateLayout  = "02 Jan 2006"
	timeLayout  = "15:04"
	stampLayout = "02 Jan 2006 15:04 MST"
)

var columns = []struct {
	title string
	width float64
	align string
}{
	{title: "#", width: 15, align: "C"},
	{title: "Date", width: 55, align: "L"},
	{title: "Weekday", width: 55, align: "L"},
	{title: "Logged at", width: 55, align: "C"},
}

// PDFRenderer renders class reports as A4 PDF documents.
type PDFRenderer struct {
	appName string
}

func NewPDFRenderer(appName string) *PDFRenderer {
	return &PDFRenderer{appName: appName}
}

// ContentType is the MIME type of the rendered documents.
func (r *PDFRenderer) ContentType() string { return "application/pdf" }

// Render writes rep to w. Every page gets the title header and a footer with the
// generation timestamp and "Page N of M"; the table header repeats on each page.
func (r *PDFRenderer) Render(w io.Writer, rep tuition.Report) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, margin)
	pdf.AliasNbPages("{nb}")
	pdf.SetTitle(rep.Tuition.Subject+" class report", true)
	pdf.SetCreator(r.appName, true)

	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Helvetica", "B", 16)
		pdf.CellFormat(0, 10, r.appName+" - Class Report", "", 1, "C", false, 0, "")
		pdf.SetDrawColor(180, 180, 180)
		pdf.Line(margin, pdf.GetY()+1, pageWidth-margin, pdf.GetY()+1)
		pdf.Ln(4)
	})
	generatedAt := rep.GeneratedAt.Format(stampLayout)
	pdf.SetFooterFunc(func() {
		pdf.SetY(footerY)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat((pageWidth-2*margin)/2, 10, "Generated on "+generatedAt, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	pdf.AddPage()
	r.writeMetadata(pdf, rep)
	r.writeTableHeader(pdf)

	pdf.SetFont("Helvetica", "", 10)
	if len(rep.Rows) == 0 {
		pdf.CellFormat(0, rowHeight, "No classes logged yet.", "1", 1, "C", false, 0, "")
	}
	for _, row := range rep.Rows {
		if pdf.GetY()+rowHeight > maxTableY {
			pdf.AddPage()
			r.writeTableHeader(pdf)
			pdf.SetFont("Helvetica", "", 10)
		}
		cells := []string{
			strconv.Itoa(row.Seq),
			row.Date.Format(dateLayout),
			row.Weekday,
			row.LoggedAt.Format(dateLayout + " " + timeLayout),
		}
		for i, col := range columns {
			pdf.CellFormat(col.width, rowHeight, cells[i], "1", 0, col.align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Output(w); err != nil {
		return errors.Wrap(err, "rendering pdf report")
	}
	return nil
}

func (r *PDFRenderer) writeMetadata(pdf *fpdf.Fpdf, rep tuition.Report) {
	t := rep.Tuition
	student := t.StudentName
	if student == "" {
		student = "-"
	}
	month := t.CurrentMonthYear
	if month == "" {
		month = "-"
	}

	meta := [][2]string{
		{"Subject", t.Subject},
		{"Teacher", t.TeacherName},
		{"Student", student},
		{"Schedule", fmt.Sprintf("%s - %s, %d day(s) per week", t.StartTime, t.EndTime, t.DaysPerWeek)},
		{"Month", month},
		{"Classes", fmt.Sprintf("%d of %d planned", t.TakenClasses, t.PlannedClassesPerMonth)},
		{"Progress", fmt.Sprintf("%d%%", rep.Progress)},
	}
	for _, kv := range meta {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(35, 7, kv[0]+":", "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 7, kv[1], "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)
}

func (r *PDFRenderer) writeTableHeader(pdf *fpdf.Fpdf) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for _, col := range columns {
		pdf.CellFormat(col.width, rowHeight, col.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
}
