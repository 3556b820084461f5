package mirror

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
)

// RenderPDF builds the checklist document from a submission snapshot. The
// writer emits a minimal single-page PDF; no external renderer is involved,
// so a failure here is always permanent.
func RenderPDF(snap SubmissionSnapshot) ([]byte, error) {
	if err := snap.Validate(); err != nil {
		se := AsStepError(StepPDFGenerate, err)
		se.Step = StepPDFGenerate
		return nil, se
	}

	lines := []string{
		fmt.Sprintf("%s — %s (%s)", snap.TemplateName, snap.Date, snap.DutyType),
		fmt.Sprintf("Area: %s", snap.Area),
		fmt.Sprintf("Staff: %s   Manager: %s", snap.Staff.Name, snap.Manager.Name),
		fmt.Sprintf("Completed %d%% (%d done, %d not done, %d n/a of %d)",
			snap.CompletionPercentage, snap.DoneCount, snap.NotDoneCount, snap.NACount, snap.TotalTasks),
		"",
	}

	taskIDs := make([]string, 0, len(snap.Tasks))
	for id := range snap.Tasks {
		taskIDs = append(taskIDs, id)
	}
	sort.Strings(taskIDs)

	for _, id := range taskIDs {
		t := snap.Tasks[id]
		mark := "[ ]"
		switch t.Status {
		case "done":
			mark = "[x]"
		case "na":
			mark = "[-]"
		}
		line := fmt.Sprintf("%s %s", mark, id)
		if t.Note != "" {
			line += " — " + t.Note
		}
		if t.InputValue != "" {
			line += fmt.Sprintf(" (%s)", t.InputValue)
		}
		lines = append(lines, line)
	}

	if snap.ShiftNotes != "" {
		lines = append(lines, "", "Shift notes: "+snap.ShiftNotes)
	}

	return buildSimplePDF(lines), nil
}

func buildSimplePDF(lines []string) []byte {
	var content strings.Builder
	content.WriteString("BT\n/F1 11 Tf\n13 TL\n50 800 Td\n")
	for i, line := range lines {
		escaped := pdfEscape(line)
		if i == 0 {
			content.WriteString(fmt.Sprintf("(%s) Tj\n", escaped))
			continue
		}
		content.WriteString(fmt.Sprintf("T* (%s) Tj\n", escaped))
	}
	content.WriteString("ET")

	stream := content.String()
	objects := []string{
		"1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n",
		"2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n",
		"3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>\nendobj\n",
		"4 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n",
		fmt.Sprintf("5 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(stream), stream),
	}

	var out bytes.Buffer
	out.WriteString("%PDF-1.4\n")
	offsets := make([]int, 0, len(objects)+1)
	offsets = append(offsets, 0)

	for _, obj := range objects {
		offsets = append(offsets, out.Len())
		out.WriteString(obj)
	}

	xrefStart := out.Len()
	out.WriteString(fmt.Sprintf("xref\n0 %d\n", len(offsets)))
	out.WriteString("0000000000 65535 f \n")
	for i := 1; i < len(offsets); i++ {
		out.WriteString(fmt.Sprintf("%010d 00000 n \n", offsets[i]))
	}
	out.WriteString(fmt.Sprintf("trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF", len(offsets), xrefStart))

	return out.Bytes()
}

func pdfEscape(v string) string {
	replacer := strings.NewReplacer("\\", "\\\\", "(", "\\(", ")", "\\)")
	return replacer.Replace(v)
}
