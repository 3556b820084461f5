package mirror

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/xuri/excelize/v2"
)

const (
	xlsxSheetName = "Mirror"
	// The submission id lives in a 15th column so a retried append can find
	// its own earlier row. The spreadsheet itself has no native dedupe.
	xlsxIDColumn = "O"
)

var xlsxHeader = []string{
	"Date", "Day", "Area", "Duty", "Staff", "Manager",
	"Completion %", "Done", "Not Done", "N/A", "Total",
	"Start", "Submitted", "PDF",
}

// XLSXSheetsClient mirrors summary rows into a local workbook. Used when the
// venue runs without a remote mirror endpoint; the workbook is the mirror.
type XLSXSheetsClient struct {
	path string
	mu   sync.Mutex
}

func NewXLSXSheetsClient(path string) *XLSXSheetsClient {
	return &XLSXSheetsClient{path: path}
}

func (c *XLSXSheetsClient) open() (*excelize.File, error) {
	if _, err := os.Stat(c.path); os.IsNotExist(err) {
		f := excelize.NewFile()
		f.SetSheetName(f.GetSheetName(0), xlsxSheetName)
		for i, h := range xlsxHeader {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			if err := f.SetCellValue(xlsxSheetName, cell, h); err != nil {
				return nil, err
			}
		}
		return f, nil
	}
	return excelize.OpenFile(c.path)
}

func (c *XLSXSheetsClient) AppendRow(ctx context.Context, submissionID string, snap SubmissionSnapshot) (string, error) {
	if err := snap.Validate(); err != nil {
		return "", AsStepError(StepSheetsWrite, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := c.open()
	if err != nil {
		return "", &StepError{Step: StepSheetsWrite, Message: err.Error(), Retryable: true}
	}
	defer f.Close()

	// Check-before-write: a retried successful-but-unacknowledged append
	// must not produce a second row.
	rows, err := f.GetRows(xlsxSheetName)
	if err != nil {
		return "", &StepError{Step: StepSheetsWrite, Message: err.Error(), Retryable: true}
	}
	for i, row := range rows {
		if len(row) >= RowWidth+1 && row[RowWidth] == submissionID {
			return strconv.Itoa(i + 1), nil
		}
	}

	rowNum := len(rows) + 1
	values := BuildSummaryRow(snap)
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, rowNum)
		if err := f.SetCellValue(xlsxSheetName, cell, v); err != nil {
			return "", &StepError{Step: StepSheetsWrite, Message: err.Error(), Retryable: true}
		}
	}
	if err := f.SetCellValue(xlsxSheetName, fmt.Sprintf("%s%d", xlsxIDColumn, rowNum), submissionID); err != nil {
		return "", &StepError{Step: StepSheetsWrite, Message: err.Error(), Retryable: true}
	}

	if err := f.SaveAs(c.path); err != nil {
		return "", &StepError{Step: StepSheetsWrite, Message: err.Error(), Retryable: true}
	}
	return strconv.Itoa(rowNum), nil
}

func (c *XLSXSheetsClient) UpdateRowLink(ctx context.Context, rowID, pdfURL string) error {
	rowNum, err := strconv.Atoi(rowID)
	if err != nil || rowNum < 2 {
		return &StepError{Step: StepSheetsUpdate, Message: "invalid row id " + rowID, Retryable: false}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := excelize.OpenFile(c.path)
	if err != nil {
		return &StepError{Step: StepSheetsUpdate, Message: err.Error(), Retryable: true}
	}
	defer f.Close()

	cell, _ := excelize.CoordinatesToCellName(ColPDFLink+1, rowNum)
	if err := f.SetCellValue(xlsxSheetName, cell, pdfURL); err != nil {
		return &StepError{Step: StepSheetsUpdate, Message: err.Error(), Retryable: true}
	}
	if err := f.SaveAs(c.path); err != nil {
		return &StepError{Step: StepSheetsUpdate, Message: err.Error(), Retryable: true}
	}
	return nil
}
