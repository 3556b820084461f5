package mirror

import (
	"strconv"
	"time"
)

// The mirror row layout: 14 ordered columns. Column 14 (pdfLink) is empty at
// append time and patched by the sheets_update step.
const (
	ColDate = iota
	ColDayOfWeek
	ColArea
	ColDutyType
	ColStaffName
	ColManagerName
	ColCompletionPercent
	ColDoneCount
	ColNotDoneCount
	ColNACount
	ColTotalTasks
	ColStartTime
	ColSubmitTime
	ColPDFLink

	RowWidth
)

// BuildSummaryRow projects a snapshot onto the mirror row layout.
func BuildSummaryRow(s SubmissionSnapshot) [RowWidth]string {
	var row [RowWidth]string

	dayOfWeek := ""
	if d, err := time.Parse("2006-01-02", s.Date); err == nil {
		dayOfWeek = d.Weekday().String()
	}

	row[ColDate] = s.Date
	row[ColDayOfWeek] = dayOfWeek
	row[ColArea] = s.Area
	row[ColDutyType] = s.DutyType
	row[ColStaffName] = s.Staff.Name
	row[ColManagerName] = s.Manager.Name
	row[ColCompletionPercent] = strconv.Itoa(s.CompletionPercentage)
	row[ColDoneCount] = strconv.Itoa(s.DoneCount)
	row[ColNotDoneCount] = strconv.Itoa(s.NotDoneCount)
	row[ColNACount] = strconv.Itoa(s.NACount)
	row[ColTotalTasks] = strconv.Itoa(s.TotalTasks)
	row[ColStartTime] = s.StartedAt.Format("15:04")
	row[ColSubmitTime] = s.SubmittedAt.Format("15:04")
	row[ColPDFLink] = ""

	return row
}
