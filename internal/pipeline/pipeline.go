// Package pipeline runs one screener-to-sink synchronization.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rewired-gh/comparisonsync/internal/logger"
	"github.com/rewired-gh/comparisonsync/internal/models"
	"github.com/rewired-gh/comparisonsync/internal/normalize"
	"github.com/rewired-gh/comparisonsync/internal/provider"
	"github.com/rewired-gh/comparisonsync/internal/reconcile"
)

// Stage names a step of a run.
type Stage string

const (
	StageFetchScreener Stage = "FETCH_SCREENER"
	StageFetchQuotes   Stage = "FETCH_QUOTES"
	StageNormalize     Stage = "NORMALIZE"
	StageJoin          Stage = "JOIN"
	StageWrite         Stage = "WRITE"
	StageDone          Stage = "DONE"
	StageAborted       Stage = "ABORTED"
)

// StageError reports the stage a run was aborted in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Sink receives the reconciled table.
type Sink interface {
	ReplaceTable(ctx context.Context, namespace, name string, table models.Table) error
}

type Config struct {
	Filter    provider.Filter
	Namespace string
	Table     string
}

// Result summarizes a run. Stage is DONE on success and ABORTED otherwise.
type Result struct {
	RunID    uuid.UUID
	Stage    Stage
	Screened int
	Quoted   int
	Rows     int
	Session  models.Session
	Duration time.Duration
}

type Pipeline struct {
	screener provider.Screener
	quotes   provider.QuoteSource
	sink     Sink
	config   Config
}

func New(screener provider.Screener, quotes provider.QuoteSource, sink Sink, config Config) *Pipeline {
	return &Pipeline{
		screener: screener,
		quotes:   quotes,
		sink:     sink,
		config:   config,
	}
}

// Run executes every stage in order and stops at the first failure. Nothing is
// written unless both fetches succeeded. An empty join still replaces the
// destination with an empty table.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	startTime := time.Now()
	res := Result{RunID: uuid.New()}
	logger.Info("Starting run %s", res.RunID)

	abort := func(stage Stage, err error) (Result, error) {
		res.Stage = StageAborted
		res.Duration = time.Since(startTime)
		logger.Error("Run %s aborted at %s after %v: %v", res.RunID, stage, res.Duration, err)
		return res, &StageError{Stage: stage, Err: err}
	}

	logger.Debug("Fetching screener (exchanges: %v, limit: %d)", p.config.Filter.Exchanges, p.config.Filter.Limit)
	comparisons, err := p.screener.Screen(ctx, p.config.Filter)
	if err != nil {
		return abort(StageFetchScreener, err)
	}
	res.Screened = len(comparisons)
	logger.Info("Screener returned %d tickers", res.Screened)

	tickers := make([]string, len(comparisons))
	for i, c := range comparisons {
		tickers[i] = c.Ticker
	}

	batch, err := p.quotes.Quotes(ctx, tickers)
	if err != nil {
		return abort(StageFetchQuotes, err)
	}
	res.Quoted = len(batch.Records)
	logger.Info("Fetched %d quotes for %d tickers", res.Quoted, len(tickers))

	if err := ctx.Err(); err != nil {
		return abort(StageNormalize, err)
	}
	normalized := normalize.Quotes(batch)
	res.Session = normalized.Session
	logger.Debug("Normalized %d quotes (session: %s)", len(normalized.Quotes), normalized.Session)

	joined := reconcile.Join(comparisons, normalized.Quotes)
	if len(joined) == 0 {
		logger.Warn("Join produced no rows; destination will be emptied")
	}
	table := reconcile.ToTable(joined)
	res.Rows = len(table.Rows)

	if err := p.sink.ReplaceTable(ctx, p.config.Namespace, p.config.Table, table); err != nil {
		return abort(StageWrite, err)
	}

	res.Stage = StageDone
	res.Duration = time.Since(startTime)
	logger.Info("Run %s wrote %d rows to %s.%s in %v", res.RunID, res.Rows, p.config.Namespace, p.config.Table, res.Duration)
	return res, nil
}

// FailedStage returns the stage err was raised in, if it came from Run.
func FailedStage(err error) (Stage, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage, true
	}
	return "", false
}
