package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/3tharva/split-the-tab-ai/internal/metrics"
	"github.com/3tharva/split-the-tab-ai/internal/models"
)

// DefaultTimeout bounds a single ingestion when none is configured.
const DefaultTimeout = 30 * time.Second

// ErrIngestionFailed wraps any extraction failure.
var ErrIngestionFailed = errors.New("failed to process the receipt, please try again")

// Ingestor runs the preprocess and extract stages under a timeout.
type Ingestor struct {
	preprocessor Preprocessor
	extractor    Extractor
	timeout      time.Duration
	metrics      *metrics.Metrics
}

// NewIngestor creates an Ingestor. A zero timeout means DefaultTimeout; m may be nil.
func NewIngestor(pre Preprocessor, extractor Extractor, timeout time.Duration, m *metrics.Metrics) *Ingestor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Ingestor{
		preprocessor: pre,
		extractor:    extractor,
		timeout:      timeout,
		metrics:      m,
	}
}

// Ingest turns an upload into a Bill with no people.
//
// Preprocessing errors (ErrNotImage, ErrEmpty, ErrTooLarge, ErrUndecoded) are
// returned as-is. Extraction errors are wrapped in ErrIngestionFailed; a
// timeout additionally matches context.DeadlineExceeded.
func (i *Ingestor) Ingest(ctx context.Context, u Upload) (models.Bill, error) {
	start := time.Now()

	img, err := i.preprocessor.Prepare(u)
	if err != nil {
		i.metrics.ObserveIngestion(metrics.OutcomeRejected, time.Since(start))
		slog.Warn("Receipt rejected", "filename", u.Filename, "content_type", u.ContentType, "error", err)
		return models.Bill{}, err
	}
	slog.Debug("Receipt decoded",
		"filename", u.Filename,
		"width", img.OriginalWidth,
		"height", img.OriginalHeight,
	)

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	bill, err := i.extractor.Extract(ctx, img)
	if err != nil {
		outcome := metrics.OutcomeFailed
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = metrics.OutcomeTimeout
		}
		i.metrics.ObserveIngestion(outcome, time.Since(start))
		slog.Error("Receipt extraction failed", "filename", u.Filename, "error", err)
		return models.Bill{}, fmt.Errorf("%w: %w", ErrIngestionFailed, err)
	}

	// Extractors must not hand back participants.
	bill.People = []models.Person{}

	i.metrics.ObserveIngestion(metrics.OutcomeOK, time.Since(start))
	slog.Info("Receipt processed",
		"filename", u.Filename,
		"items", len(bill.Items),
		"total", bill.Total,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return bill, nil
}
