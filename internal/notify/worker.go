package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
)

// ExposureNotifyArgs carries one anonymized exposure notice. The payload
// deliberately excludes the declarant: recipients learn only that an
// exposure may have happened inside a date range.
type ExposureNotifyArgs struct {
	UserID      uuid.UUID `json:"user_id"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
}

func (ExposureNotifyArgs) Kind() string { return "exposure_notify" }

// ExposureNotifyWorker delivers exposure notices. With a webhook URL
// configured it POSTs the notice; otherwise delivery is a structured log
// line, which is enough for local and test setups.
type ExposureNotifyWorker struct {
	river.WorkerDefaults[ExposureNotifyArgs]
	webhookURL string
	httpClient *http.Client
	log        *slog.Logger
}

func NewExposureNotifyWorker(webhookURL string, log *slog.Logger) *ExposureNotifyWorker {
	if log == nil {
		log = slog.Default()
	}
	return &ExposureNotifyWorker{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
}

type exposureNotice struct {
	UserID  uuid.UUID `json:"user_id"`
	Message string    `json:"message"`
}

func (w *ExposureNotifyWorker) Work(ctx context.Context, job *river.Job[ExposureNotifyArgs]) error {
	args := job.Args
	notice := exposureNotice{
		UserID: args.UserID,
		Message: fmt.Sprintf("You may have been exposed to COVID-19 between %s and %s. Please monitor for symptoms and consider getting tested.",
			args.WindowStart.Format("2006-01-02"), args.WindowEnd.Format("2006-01-02")),
	}

	if w.webhookURL == "" {
		w.log.Info("exposure notice delivered",
			"user_id", args.UserID,
			"window_start", args.WindowStart.Format("2006-01-02"),
			"window_end", args.WindowEnd.Format("2006-01-02"))
		return nil
	}

	body, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("encoding notice: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building notify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delivering exposure notice: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
