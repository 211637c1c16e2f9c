package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"pricewatch/internal/logging"
	"pricewatch/internal/notifications"
	"pricewatch/internal/pacing"
	"pricewatch/internal/services"
	"pricewatch/internal/services/bookinfo"
	"pricewatch/internal/services/iteminfo"
	"pricewatch/internal/store"
)

// DefaultDropThresholdPercent is the minimum drop that triggers a notification.
const DefaultDropThresholdPercent = 10

// ItemStore is the subset of the repository a sweep needs.
type ItemStore interface {
	ScanItems(ctx context.Context) ([]*store.Item, []store.UnreadableDocument, error)
	GetItem(ctx context.Context, id string) (*store.Item, error)
	PutItem(ctx context.Context, item *store.Item) error
}

// Deps are the collaborators of an Engine. Books may be nil, in which case
// every drop is announced with the plain message.
type Deps struct {
	Store                ItemStore
	Items                iteminfo.Fetcher
	Books                bookinfo.Fetcher
	Notifier             notifications.Sender
	Pacer                *pacing.Pacer
	Composer             *Composer
	DropThresholdPercent int
	Logger               *slog.Logger
}

// Engine re-prices tracked items.
type Engine struct {
	store     ItemStore
	items     iteminfo.Fetcher
	books     bookinfo.Fetcher
	notifier  notifications.Sender
	pacer     *pacing.Pacer
	composer  *Composer
	threshold int
	logger    *slog.Logger
}

// NewEngine validates deps and constructs an engine.
func NewEngine(deps Deps) (*Engine, error) {
	if deps.Store == nil {
		return nil, errors.New("pricing: store is required")
	}
	if deps.Items == nil {
		return nil, errors.New("pricing: item info fetcher is required")
	}
	if deps.Notifier == nil {
		return nil, errors.New("pricing: notifier is required")
	}
	if deps.Composer == nil {
		return nil, errors.New("pricing: composer is required")
	}
	threshold := deps.DropThresholdPercent
	if threshold == 0 {
		threshold = DefaultDropThresholdPercent
	}
	if threshold < 1 || threshold > 99 {
		return nil, fmt.Errorf("pricing: drop threshold %d%% out of range", threshold)
	}
	pacer := deps.Pacer
	if pacer == nil {
		pacer = pacing.New(0, nil)
	}
	return &Engine{
		store:     deps.Store,
		items:     deps.Items,
		books:     deps.Books,
		notifier:  deps.Notifier,
		pacer:     pacer,
		composer:  deps.Composer,
		threshold: threshold,
		logger:    logging.NewComponentLogger(deps.Logger, "pricing"),
	}, nil
}

// RunSweep checks every item once and returns when all checks are done.
func (e *Engine) RunSweep(ctx context.Context) (Report, error) {
	return e.RunSweepWithID(ctx, uuid.NewString())
}

// RunSweepWithID is RunSweep with a caller-chosen run id. Cancelling ctx does
// not abort checks that are already scheduled.
func (e *Engine) RunSweepWithID(ctx context.Context, runID string) (Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = services.WithRunID(context.WithoutCancel(ctx), runID)
	logger := logging.WithContext(ctx, e.logger)

	report := Report{RunID: runID, StartedAt: time.Now()}
	items, unreadable, err := e.store.ScanItems(ctx)
	if err != nil {
		report.FinishedAt = time.Now()
		logger.Error("sweep aborted: list items failed", logging.Error(err))
		return report, fmt.Errorf("list items: %w", err)
	}

	report.Items = len(items) + len(unreadable)
	for _, doc := range unreadable {
		logger.Warn("stored item unreadable; skipping",
			logging.String(logging.FieldItemID, doc.Key),
			logging.Error(doc.Err),
		)
	}
	logger.Info("sweep started",
		logging.Int("items", len(items)),
		logging.Int("unreadable", len(unreadable)),
		logging.Duration("interval", e.pacer.Interval()),
		logging.Int("threshold_percent", e.threshold),
	)

	offsets := e.pacer.Offsets(len(items))
	results := make([]ItemResult, len(items))
	var g errgroup.Group
	for i, item := range items {
		g.Go(func() error {
			results[i] = e.checkItem(ctx, item, offsets[i])
			return nil
		})
	}
	_ = g.Wait()

	for _, doc := range unreadable {
		results = append(results, ItemResult{
			ItemID:  doc.Key,
			Outcome: OutcomeSkipped,
			Error:   doc.Err.Error(),
		})
	}
	for _, result := range results {
		report.add(result)
	}
	report.Results = results
	report.FinishedAt = time.Now()

	logger.Info("sweep complete",
		logging.Int("checked", report.Checked),
		logging.Int("skipped", report.Skipped),
		logging.Int("mismatched", report.Mismatched),
		logging.Int("notified", report.Notified),
		logging.Int("updated", report.Updated),
		logging.Int("write_failed", report.WriteFailed),
		logging.Duration("duration", report.Duration()),
	)
	return report, nil
}

func (e *Engine) checkItem(ctx context.Context, item *store.Item, offset time.Duration) ItemResult {
	ctx = services.WithItemID(ctx, item.ID)
	logger := logging.WithContext(ctx, e.logger)
	result := ItemResult{ItemID: item.ID, Title: item.Title, StoredPrice: item.Price}

	if err := e.pacer.Wait(ctx, offset); err != nil {
		result.Outcome = OutcomeSkipped
		result.Error = err.Error()
		return result
	}

	info, err := e.items.Fetch(ctx, item.ID)
	if err != nil {
		logger.Warn("item fetch failed; skipping", logging.Error(err))
		result.Outcome = OutcomeSkipped
		result.Error = err.Error()
		return result
	}
	if info.ID != item.ID {
		logger.Warn("fetched identifier does not match; ignoring", logging.String("fetched_id", info.ID))
		result.Outcome = OutcomeMismatched
		return result
	}

	fetched, err := ParsePrice(info.Price)
	if err == nil && fetched <= 0 {
		err = fmt.Errorf("price %q is not positive", info.Price)
	}
	if err != nil {
		logger.Warn("fetched price unusable; skipping", logging.String("price", info.Price), logging.Error(err))
		result.Outcome = OutcomeSkipped
		result.Error = err.Error()
		return result
	}
	result.FetchedPrice = fetched.String()

	stored, storedErr := ParsePrice(item.Price)
	if storedErr != nil {
		logger.Warn("stored price unparseable; replacing baseline", logging.String("price", item.Price), logging.Error(storedErr))
	}

	if storedErr == nil && IsDrop(stored, fetched, e.threshold) {
		logger.Info("price drop detected",
			logging.String("stored", stored.String()),
			logging.String("fetched", fetched.String()),
		)
		result.Notification = e.announce(ctx, logger, item, fetched)
	}

	if storedErr == nil && fetched == stored {
		result.Outcome = OutcomeUnchanged
		return result
	}

	if err := e.refreshPrice(ctx, item.ID, fetched); err != nil {
		logger.Error("price refresh failed", logging.Error(err))
		result.Outcome = OutcomeWriteFailed
		result.Error = err.Error()
		return result
	}
	logger.Info("price baseline updated",
		logging.String("previous", item.Price),
		logging.String("current", fetched.String()),
	)
	result.Outcome = OutcomeUpdated
	return result
}

func (e *Engine) announce(ctx context.Context, logger *slog.Logger, item *store.Item, price Price) NotificationStatus {
	text := e.composer.Plain(item, price)
	if bookID := item.BookID(); bookID != "" && e.books != nil {
		book, err := e.books.Fetch(ctx, bookID)
		if err != nil {
			logger.Warn("book info unavailable; sending plain notification",
				logging.String("book_id", bookID), logging.Error(err))
		} else {
			text = e.composer.Rich(item, price, book)
		}
	}

	err := e.notifier.Send(ctx, text)
	switch {
	case err == nil:
		return NotificationSent
	case errors.Is(err, notifications.ErrDuplicate):
		logger.Info("notification rejected as duplicate")
		return NotificationDuplicate
	default:
		logger.Warn("notification send failed", logging.Error(err))
		return NotificationFailed
	}
}

// refreshPrice re-reads the item so concurrent subscription changes are kept,
// and does not recreate items deleted while the sweep was running.
func (e *Engine) refreshPrice(ctx context.Context, id string, price Price) error {
	current, err := e.store.GetItem(ctx, id)
	if store.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return services.Wrap(services.ErrStoreWrite, "pricing", "reload item", id, err)
	}
	current.Price = price.String()
	if err := e.store.PutItem(ctx, current); err != nil {
		return services.Wrap(services.ErrStoreWrite, "pricing", "put item", id, err)
	}
	return nil
}
