package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Wire contract of the remote sheets mirror. The submission id rides along
// on every write so the backend can dedupe a retried successful-but-
// unacknowledged call.
type SubmitRequest struct {
	SubmissionID string             `json:"submissionId"`
	Snapshot     SubmissionSnapshot `json:"snapshot"`
}

type SubmitResponse struct {
	Success      bool   `json:"success"`
	SubmissionID string `json:"submissionId"`
	Status       string `json:"status"`
	SheetsRowID  string `json:"sheetsRowId,omitempty"`
	DriveFileID  string `json:"driveFileId,omitempty"`
	DriveFileURL string `json:"driveFileUrl,omitempty"`
	Error        string `json:"error,omitempty"`
}

type updateRowRequest struct {
	PDFLink string `json:"pdfLink"`
}

// HTTPSheetsClient talks to a remote mirror endpoint. Timeouts and 5xx are
// retryable; 4xx means the payload is bad and will never succeed.
type HTTPSheetsClient struct {
	baseURL string
	http    *http.Client
}

func NewHTTPSheetsClient(baseURL string) *HTTPSheetsClient {
	return &HTTPSheetsClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPSheetsClient) AppendRow(ctx context.Context, submissionID string, snap SubmissionSnapshot) (string, error) {
	if err := snap.Validate(); err != nil {
		return "", AsStepError(StepSheetsWrite, err)
	}

	body, err := json.Marshal(SubmitRequest{SubmissionID: submissionID, Snapshot: snap})
	if err != nil {
		return "", &StepError{Step: StepSheetsWrite, Message: err.Error(), Retryable: false}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/submissions", bytes.NewReader(body))
	if err != nil {
		return "", &StepError{Step: StepSheetsWrite, Message: err.Error(), Retryable: false}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &StepError{Step: StepSheetsWrite, Message: err.Error(), Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", statusError(StepSheetsWrite, resp.StatusCode)
	}

	var out SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &StepError{Step: StepSheetsWrite, Message: "malformed response: " + err.Error(), Retryable: true}
	}
	if !out.Success || out.SheetsRowID == "" {
		return "", &StepError{Step: StepSheetsWrite, Message: "mirror rejected submission: " + out.Error, Retryable: false}
	}
	return out.SheetsRowID, nil
}

func (c *HTTPSheetsClient) UpdateRowLink(ctx context.Context, rowID, pdfURL string) error {
	body, _ := json.Marshal(updateRowRequest{PDFLink: pdfURL})

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.baseURL+"/rows/"+rowID, bytes.NewReader(body))
	if err != nil {
		return &StepError{Step: StepSheetsUpdate, Message: err.Error(), Retryable: false}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &StepError{Step: StepSheetsUpdate, Message: err.Error(), Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(StepSheetsUpdate, resp.StatusCode)
	}
	return nil
}

func statusError(step Step, code int) *StepError {
	return &StepError{
		Step:       step,
		Message:    fmt.Sprintf("mirror returned HTTP %d", code),
		StatusCode: code,
		Retryable:  code >= 500 || code == http.StatusTooManyRequests,
	}
}
