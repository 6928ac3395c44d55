package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/robotomize/eurofx"
	"github.com/robotomize/eurofx/feed"
	"github.com/robotomize/eurofx/internal/hashio"
	"github.com/robotomize/eurofx/internal/logging"
	"github.com/robotomize/eurofx/internal/strutil"
	"github.com/samber/lo"
	"github.com/sethvargo/go-retry"
)

var (
	ErrAmountRequired = errors.New("amount is required")
	ErrUnknownEvent   = errors.New("unknown event")
	ErrInvalidOption  = errors.New("invalid option")
)

const (
	DefaultRequestTimeout = 10 * time.Second
	DefaultRetryNum       = 1
	DefaultRetryDuration  = 5 * time.Second
)

// Event names a notification the app emits to registered handlers
type Event string

const (
	// EventFeedRefreshed fires after a new feed has been ingested
	EventFeedRefreshed Event = "feedRefreshed"
	// EventCurrencySelectionChanged fires after the series of the selected
	// currency has been (re)built
	EventCurrencySelectionChanged Event = "currencySelectionChanged"
)

var knownEvents = []Event{EventFeedRefreshed, EventCurrencySelectionChanged}

// Notification is passed to handlers. Series and Currency are set for
// EventCurrencySelectionChanged only
type Notification struct {
	Event    Event
	Latest   time.Time
	Currency string
	Series   []eurofx.Point
}

type Handler func(ctx context.Context, n Notification)

type Option func(*App)

type Options struct {
	RetryNum       uint64
	RetryDuration  time.Duration
	RequestTimeout time.Duration
	BaseCurrency   string
}

// WithRetryNum set number of repeated requests for data retrieval errors from the source
func WithRetryNum(n uint64) Option {
	return func(a *App) {
		a.opts.RetryNum = n
	}
}

// WithRetryDuration constant retry backoff, must be positive
func WithRetryDuration(t time.Duration) Option {
	return func(a *App) {
		a.opts.RetryDuration = t
	}
}

// WithRequestTimeout set a timeout for the whole refresh, retries included
func WithRequestTimeout(t time.Duration) Option {
	return func(a *App) {
		a.opts.RequestTimeout = t
	}
}

func WithLogger(logger log.Logger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

// WithBaseCurrency sets the base currency of the feed, EUR for the ECB
func WithBaseCurrency(code string) Option {
	return func(a *App) {
		a.opts.BaseCurrency = code
	}
}

// RefreshReport describes the outcome of a successful Refresh
type RefreshReport struct {
	ID        string
	Resource  string
	Entries   int
	Latest    time.Time
	Unchanged bool
	Took      time.Duration
}

// ExchangeRequest is a conversion as entered by a user. A nil Amount means
// nothing was entered yet, which is different from a zero amount
type ExchangeRequest struct {
	Amount *float64
	From   string
	To     string
}

// New returns the app around source. Nothing is fetched until Refresh
func New(source feed.Source, opts ...Option) *App {
	a := &App{
		opts: Options{
			RetryNum:       DefaultRetryNum,
			RetryDuration:  DefaultRetryDuration,
			RequestTimeout: DefaultRequestTimeout,
			BaseCurrency:   eurofx.DefaultBaseCurrency,
		},
		logger:   logging.DefaultLogger(),
		handlers: make(map[Event][]Handler),
	}

	for _, opt := range opts {
		opt(a)
	}

	a.logger = log.With(a.logger, "component", "app")
	a.source = feed.NewLoggingSource(log.With(a.logger, "source", "feed"), source)
	a.table = eurofx.NewTable(eurofx.WithBaseCurrency(a.opts.BaseCurrency))

	return a
}

type App struct {
	opts   Options
	logger log.Logger
	source feed.Source
	table  *eurofx.Table

	// refreshing serializes Refresh so that digest checks and ingests do not interleave
	refreshing sync.Mutex

	mtx      sync.RWMutex
	digest   []byte
	selected string
	handlers map[Event][]Handler
}

// Table returns the rate table owned by the app
func (a *App) Table() *eurofx.Table {
	return a.table
}

// On registers h for event. Handlers run synchronously in registration order
func (a *App) On(event Event, h Handler) error {
	if !lo.Contains(knownEvents, event) {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}

	a.mtx.Lock()
	defer a.mtx.Unlock()

	a.handlers[event] = append(a.handlers[event], h)

	return nil
}

// Refresh fetches the feed and replaces the table with it. The table is left
// untouched when the fetch or the ingest fails, or when the document is the
// same as the one applied last
func (a *App) Refresh(ctx context.Context) (report RefreshReport, err error) {
	defer func(begin time.Time) {
		report.Took = time.Since(begin)
	}(time.Now())

	a.refreshing.Lock()
	defer a.refreshing.Unlock()

	report.ID = uuid.NewString()
	logger := log.With(a.logger, "refresh", report.ID)

	payload, err := a.fetch(ctx)
	if err != nil {
		_ = level.Error(logger).Log("msg", "refresh failed", "err", err)
		return RefreshReport{}, fmt.Errorf("refresh: %w", err)
	}

	report.Resource = payload.Resource
	report.Entries = len(payload.Entries)

	a.mtx.RLock()
	unchanged := hashio.Equal(a.digest, payload.Digest) && a.table.Len() > 0
	a.mtx.RUnlock()

	if unchanged {
		report.Unchanged = true
		if latest, err := a.table.LatestSnapshot(); err == nil {
			report.Latest = latest.Date()
		}

		_ = level.Debug(logger).Log("msg", "feed unchanged", "resource", payload.Resource)
		return report, nil
	}

	if err := a.table.Ingest(payload.Entries, eurofx.Replace); err != nil {
		_ = level.Error(logger).Log("msg", "feed rejected", "resource", payload.Resource, "err", err)
		return RefreshReport{}, fmt.Errorf("refresh: %w", err)
	}

	latest, err := a.table.LatestSnapshot()
	if err != nil {
		return RefreshReport{}, fmt.Errorf("refresh: %w", err)
	}

	report.Latest = latest.Date()

	a.mtx.Lock()
	a.digest = payload.Digest
	selected := a.selected
	a.mtx.Unlock()

	_ = level.Info(logger).Log(
		"msg", "feed refreshed",
		"resource", payload.Resource,
		"entries", report.Entries,
		"latest", report.Latest.Format(eurofx.DateLayout),
	)

	a.emit(ctx, Notification{Event: EventFeedRefreshed, Latest: report.Latest})

	if selected != "" {
		series, err := eurofx.BuildSeries(a.table, selected)
		if err != nil {
			_ = level.Warn(logger).Log("msg", "selected currency left the feed", "currency", selected, "err", err)
			return report, nil
		}

		a.emit(ctx, Notification{
			Event:    EventCurrencySelectionChanged,
			Latest:   report.Latest,
			Currency: selected,
			Series:   series,
		})
	}

	return report, nil
}

func (a *App) fetch(ctx context.Context) (feed.Payload, error) {
	ctx, cancel := context.WithTimeout(ctx, a.opts.RequestTimeout)
	defer cancel()

	var payload feed.Payload

	b, err := retry.NewConstant(a.opts.RetryDuration)
	if err != nil {
		return feed.Payload{}, fmt.Errorf("%w: new backoff: %v", ErrInvalidOption, err)
	}
	b = retry.WithMaxRetries(a.opts.RetryNum, b)

	if err := retry.Do(ctx, b, func(ctx context.Context) error {
		p, err := a.source.Fetch(ctx)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("fetch: %w", err))
		}

		payload = p

		return nil
	}); err != nil {
		return feed.Payload{}, err
	}

	return payload, nil
}

// SelectCurrency makes code the selected currency and returns its series
func (a *App) SelectCurrency(ctx context.Context, code string) ([]eurofx.Point, error) {
	series, err := eurofx.BuildSeries(a.table, code)
	if err != nil {
		return nil, fmt.Errorf("select currency: %w", err)
	}

	code = strutil.NormalizeCode(code)

	a.mtx.Lock()
	a.selected = code
	a.mtx.Unlock()

	n := Notification{Event: EventCurrencySelectionChanged, Currency: code, Series: series}
	if latest, err := a.table.LatestSnapshot(); err == nil {
		n.Latest = latest.Date()
	}

	a.emit(ctx, n)

	return series, nil
}

// Selected returns the selected currency code, empty if none
func (a *App) Selected() string {
	a.mtx.RLock()
	defer a.mtx.RUnlock()

	return a.selected
}

// Exchange converts the request amount with the rates of the latest snapshot
func (a *App) Exchange(req ExchangeRequest) (eurofx.Conversion, error) {
	if req.Amount == nil {
		return eurofx.Conversion{}, ErrAmountRequired
	}

	latest, err := a.table.LatestSnapshot()
	if err != nil {
		return eurofx.Conversion{}, fmt.Errorf("exchange: %w", err)
	}

	from, err := a.table.FindRate(latest, req.From)
	if err != nil {
		return eurofx.Conversion{}, fmt.Errorf("exchange: %w", err)
	}

	to, err := a.table.FindRate(latest, req.To)
	if err != nil {
		return eurofx.Conversion{}, fmt.Errorf("exchange: %w", err)
	}

	conv, err := eurofx.ConvertRecords(*req.Amount, from, to)
	if err != nil {
		return eurofx.Conversion{}, fmt.Errorf("exchange: %w", err)
	}

	return conv, nil
}

// Currencies returns the records of the latest snapshot in feed order
func (a *App) Currencies() ([]eurofx.RateRecord, error) {
	latest, err := a.table.LatestSnapshot()
	if err != nil {
		return nil, fmt.Errorf("currencies: %w", err)
	}

	return latest.Records(), nil
}

func (a *App) emit(ctx context.Context, n Notification) {
	a.mtx.RLock()
	handlers := make([]Handler, len(a.handlers[n.Event]))
	copy(handlers, a.handlers[n.Event])
	a.mtx.RUnlock()

	for _, h := range handlers {
		h(ctx, n)
	}
}
