// Package textgen defines the pluggable natural-language generator and runs
// its blocking calls on a bounded pool with a hard timeout. Callers get a
// typed Failure instead of an error and fall back to composed text.
package textgen

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/smartcity/predictor/internal/domain"
	"github.com/smartcity/predictor/internal/metrics"
)

// Request is the structured context handed to a generator
type Request struct {
	Language    domain.Language
	TargetDate  string
	Season      domain.Season
	Temperature *float64
	AQI         int
	Congestion  float64
	Query       string
	// Forecast is an optional formatted forecast summary
	Forecast string
}

// Generator turns a request into prose or fails
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Failure says why no generated text is available
type Failure string

const (
	FailureNone        Failure = ""
	FailureUnavailable Failure = "unavailable"
	FailureBusy        Failure = "busy"
	FailureTimeout     Failure = "timeout"
	FailureUpstream    Failure = "upstream"
	FailureEmpty       Failure = "empty"
)

// Result is either generated text or a failure reason
type Result struct {
	Text    string
	Failure Failure
}

// OK reports whether text was generated
func (r Result) OK() bool {
	return r.Failure == FailureNone
}

// Pool bounds concurrent generator calls
type Pool struct {
	gen     Generator
	sem     *semaphore.Weighted
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewPool wraps gen. A nil gen yields a pool that always reports
// FailureUnavailable.
func NewPool(gen Generator, workers int, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		gen:     gen,
		sem:     semaphore.NewWeighted(int64(workers)),
		timeout: timeout,
		logger:  logger,
		metrics: m,
	}
}

// Available reports whether a generator is configured
func (p *Pool) Available() bool {
	return p != nil && p.gen != nil
}

// Generate runs one request on the pool. It returns within the pool timeout
// even if the generator does not; the abandoned call is cancelled and its
// slot is released when it returns.
func (p *Pool) Generate(ctx context.Context, req Request) Result {
	if p == nil {
		return Result{Failure: FailureUnavailable}
	}
	res := p.generate(ctx, req)
	outcome := string(res.Failure)
	if res.OK() {
		outcome = "ok"
	}
	p.metrics.RecordTextGen(outcome)
	if !res.OK() && res.Failure != FailureUnavailable {
		p.logger.Warn("Text generation failed, using composed text",
			zap.String("reason", string(res.Failure)))
	}
	return res
}

func (p *Pool) generate(ctx context.Context, req Request) Result {
	if !p.Available() {
		return Result{Failure: FailureUnavailable}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return Result{Failure: FailureBusy}
	}

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		defer p.sem.Release(1)
		text, err := p.gen.Generate(ctx, req)
		done <- outcome{text: text, err: err}
	}()

	select {
	case out := <-done:
		switch {
		case out.err != nil && errors.Is(out.err, context.DeadlineExceeded):
			return Result{Failure: FailureTimeout}
		case out.err != nil:
			p.logger.Debug("Generator error", zap.Error(out.err))
			return Result{Failure: FailureUpstream}
		case strings.TrimSpace(out.text) == "":
			return Result{Failure: FailureEmpty}
		}
		return Result{Text: strings.TrimSpace(out.text)}
	case <-ctx.Done():
		return Result{Failure: FailureTimeout}
	}
}
