package mirror_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shiftcheck/internal/mirror"

	"github.com/stretchr/testify/assert"
)

func validSnapshot() mirror.SubmissionSnapshot {
	return mirror.SubmissionSnapshot{
		Date:                 "2026-08-01",
		Area:                 "Bar",
		TemplateName:         "Closing — Bar",
		TemplateID:           "tpl-1",
		DutyType:             "Closing",
		Staff:                mirror.StaffRef{ID: "s1", Name: "Riley", Role: "staff"},
		Manager:              mirror.StaffRef{ID: "m1", Name: "Dana", Role: "manager"},
		CompletionPercentage: 90,
		DoneCount:            9,
		NotDoneCount:         1,
		NACount:              0,
		TotalTasks:           10,
		StartedAt:            time.Date(2026, 8, 1, 17, 5, 0, 0, time.UTC),
		SubmittedAt:          time.Date(2026, 8, 1, 23, 42, 0, 0, time.UTC),
		Tasks: map[string]mirror.TaskSnapshot{
			"t1": {TaskID: "t1", Status: "done"},
		},
		DeviceID: "device-1",
	}
}

func TestBuildSummaryRow(t *testing.T) {
	row := mirror.BuildSummaryRow(validSnapshot())

	assert.Len(t, row, mirror.RowWidth)
	assert.Equal(t, "2026-08-01", row[mirror.ColDate])
	assert.Equal(t, "Saturday", row[mirror.ColDayOfWeek])
	assert.Equal(t, "Bar", row[mirror.ColArea])
	assert.Equal(t, "Closing", row[mirror.ColDutyType])
	assert.Equal(t, "Riley", row[mirror.ColStaffName])
	assert.Equal(t, "Dana", row[mirror.ColManagerName])
	assert.Equal(t, "90", row[mirror.ColCompletionPercent])
	assert.Equal(t, "9", row[mirror.ColDoneCount])
	assert.Equal(t, "1", row[mirror.ColNotDoneCount])
	assert.Equal(t, "0", row[mirror.ColNACount])
	assert.Equal(t, "10", row[mirror.ColTotalTasks])
	assert.Equal(t, "17:05", row[mirror.ColStartTime])
	assert.Equal(t, "23:42", row[mirror.ColSubmitTime])
	// PDF link is always patched in later by the update step.
	assert.Equal(t, "", row[mirror.ColPDFLink])
}

func TestSubmissionSnapshot_Validate(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		assert.NoError(t, validSnapshot().Validate())
	})

	t.Run("negative missing fields are permanent errors", func(t *testing.T) {
		mutations := map[string]func(*mirror.SubmissionSnapshot){
			"date":     func(s *mirror.SubmissionSnapshot) { s.Date = "" },
			"template": func(s *mirror.SubmissionSnapshot) { s.TemplateID = "" },
			"staff":    func(s *mirror.SubmissionSnapshot) { s.Staff = mirror.StaffRef{} },
			"manager":  func(s *mirror.SubmissionSnapshot) { s.Manager = mirror.StaffRef{} },
			"tasks":    func(s *mirror.SubmissionSnapshot) { s.Tasks = nil },
			"device":   func(s *mirror.SubmissionSnapshot) { s.DeviceID = "" },
		}
		for name, mutate := range mutations {
			snap := validSnapshot()
			mutate(&snap)

			err := snap.Validate()

			assert.Error(t, err, name)
			var se *mirror.StepError
			assert.ErrorAs(t, err, &se, name)
			assert.False(t, se.Retryable, name)
			assert.Equal(t, 400, se.StatusCode, name)
		}
	})
}

func TestRenderPDF(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		snap := validSnapshot()
		snap.Tasks["t2"] = mirror.TaskSnapshot{TaskID: "t2", Status: "not_done", Note: "ice machine (out)"}
		snap.ShiftNotes = "Busy service"

		data, err := mirror.RenderPDF(snap)

		assert.NoError(t, err)
		assert.True(t, len(data) > 0)
		assert.Equal(t, "%PDF-1.4", string(data[:8]))
		assert.Contains(t, string(data), "%%EOF")
		// Parens in notes must be escaped, or the text operator breaks.
		assert.Contains(t, string(data), `ice machine \(out\)`)
	})

	t.Run("negative invalid snapshot", func(t *testing.T) {
		snap := validSnapshot()
		snap.Tasks = nil

		_, err := mirror.RenderPDF(snap)

		var se *mirror.StepError
		assert.ErrorAs(t, err, &se)
		assert.Equal(t, mirror.StepPDFGenerate, se.Step)
		assert.False(t, se.Retryable)
	})
}

func TestHTTPSheetsClient(t *testing.T) {
	ctx := context.Background()

	t.Run("success append returns row id", func(t *testing.T) {
		var gotPath string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"success":true,"submissionId":"sub-1","status":"sheets_done","sheetsRowId":"row-9"}`))
		}))
		defer srv.Close()

		client := mirror.NewHTTPSheetsClient(srv.URL)
		rowID, err := client.AppendRow(ctx, "sub-1", validSnapshot())

		assert.NoError(t, err)
		assert.Equal(t, "row-9", rowID)
		assert.Equal(t, "/submissions", gotPath)
	})

	t.Run("negative 400 is not retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer srv.Close()

		client := mirror.NewHTTPSheetsClient(srv.URL)
		_, err := client.AppendRow(ctx, "sub-1", validSnapshot())

		var se *mirror.StepError
		assert.ErrorAs(t, err, &se)
		assert.False(t, se.Retryable)
		assert.Equal(t, 400, se.StatusCode)
	})

	t.Run("negative 503 is retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		client := mirror.NewHTTPSheetsClient(srv.URL)
		_, err := client.AppendRow(ctx, "sub-1", validSnapshot())

		var se *mirror.StepError
		assert.ErrorAs(t, err, &se)
		assert.True(t, se.Retryable)
		assert.Equal(t, 503, se.StatusCode)
	})

	t.Run("negative 429 is retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		client := mirror.NewHTTPSheetsClient(srv.URL)
		err := client.UpdateRowLink(ctx, "row-9", "https://drive.local/f")

		var se *mirror.StepError
		assert.ErrorAs(t, err, &se)
		assert.True(t, se.Retryable)
	})

	t.Run("negative invalid snapshot rejected before the wire", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("request should not reach the server")
		}))
		defer srv.Close()

		client := mirror.NewHTTPSheetsClient(srv.URL)
		snap := validSnapshot()
		snap.DeviceID = ""
		_, err := client.AppendRow(ctx, "sub-1", snap)

		var se *mirror.StepError
		assert.ErrorAs(t, err, &se)
		assert.False(t, se.Retryable)
	})

	t.Run("update patches the row resource", func(t *testing.T) {
		var gotMethod, gotPath string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotPath = r.URL.Path
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		client := mirror.NewHTTPSheetsClient(srv.URL)
		err := client.UpdateRowLink(ctx, "row-9", "https://drive.local/f")

		assert.NoError(t, err)
		assert.Equal(t, http.MethodPatch, gotMethod)
		assert.Equal(t, "/rows/row-9", gotPath)
	})
}
