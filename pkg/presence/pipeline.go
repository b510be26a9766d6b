package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"github.com/elonfeng/presence/internal/logging"
	"github.com/elonfeng/presence/pkg/query"
	"github.com/elonfeng/presence/pkg/sentiment"
	"github.com/elonfeng/presence/pkg/source"
)

const (
	defaultAdapterTimeout = 10 * time.Second
	defaultMaxResults     = 20
)

// Config wires a Pipeline.
type Config struct {
	// Adapters run in order. None is valid and yields an empty report.
	Adapters []source.Adapter

	// Sentiment scores quotes. Defaults to the lexicon scorer.
	Sentiment sentiment.Scorer

	Weights Weights
	Rules   Rules

	// Clock drives report timestamps and date ages. Defaults to the wall clock.
	Clock clock.Clock

	// AdapterTimeout bounds every adapter call.
	AdapterTimeout time.Duration

	MaxResults int
	MaxReviews int

	// Logger defaults to a discarding logger.
	Logger *logrus.Entry
}

func (cfg *Config) validate() error {
	var err error

	for i, a := range cfg.Adapters {
		if a == nil {
			err = multierror.Append(err, fmt.Errorf("adapter %d is nil", i))
		}
	}
	if cfg.AdapterTimeout < 0 {
		err = multierror.Append(err, fmt.Errorf("invalid adapter timeout %s", cfg.AdapterTimeout))
	}
	if cfg.MaxResults < 0 || cfg.MaxReviews < 0 {
		err = multierror.Append(err, fmt.Errorf("result limits must not be negative"))
	}
	if cfg.Weights.Sites < 0 || cfg.Weights.Rating < 0 || cfg.Weights.Sentiment < 0 ||
		cfg.Weights.Recency < 0 || cfg.Weights.Company < 0 {
		err = multierror.Append(err, fmt.Errorf("score weights must not be negative"))
	}

	if cfg.AdapterTimeout == 0 {
		cfg.AdapterTimeout = defaultAdapterTimeout
	}
	if cfg.MaxResults == 0 {
		cfg.MaxResults = defaultMaxResults
	}
	if cfg.MaxReviews == 0 {
		cfg.MaxReviews = source.DefaultMaxReviews
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	cfg.Logger = logging.OrDiscard(cfg.Logger)

	return err
}

// Pipeline runs one analysis per query: adapters, aggregation, scoring and
// recommendations.
type Pipeline struct {
	cfg         Config
	aggregator  *Aggregator
	scorer      *Scorer
	recommender *Recommender
}

// New validates cfg and builds a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("presence pipeline config validation failed: %w", err)
	}
	return &Pipeline{
		cfg:         cfg,
		aggregator:  NewAggregator(cfg.Sentiment),
		scorer:      NewScorer(cfg.Weights, cfg.Clock),
		recommender: NewRecommender(cfg.Rules, cfg.Clock),
	}, nil
}

// Adapters returns the configured adapters.
func (p *Pipeline) Adapters() []source.Adapter {
	return p.cfg.Adapters
}

// Analyze never fails: adapter errors end up in the report diagnostics and
// the score is computed over whatever was collected.
func (p *Pipeline) Analyze(ctx context.Context, in query.Inputs) *Report {
	logger := p.cfg.Logger
	q := in.SearchQuery()

	report := &Report{
		ID:          uuid.NewString(),
		GeneratedAt: p.cfg.Clock.Now().UTC(),
		Inputs:      in,
		Query:       q,
	}

	if q == "" {
		logger.Warn("empty query, skipping data sources")
	} else {
		p.collect(ctx, in, report)
	}

	stats, values := p.aggregator.Aggregate(ctx, report.Sources, report.Reviews, in.Company)
	report.Stats = stats
	report.SentimentValues = values
	report.Quotes = WithSentiment(Representatives(report.Sources, report.Reviews), values)
	report.Score = p.scorer.Score(stats)
	report.Tips = p.recommender.Tips(stats, report.Score.Breakdown, report.ReviewCount, values, in)

	logger.WithFields(logrus.Fields{
		"report":  report.ID,
		"query":   q,
		"score":   report.Score.Score,
		"grade":   report.Score.Grade,
		"sites":   stats.NumSites,
		"reviews": report.ReviewCount,
	}).Info("analysis complete")
	return report
}

// collect runs the adapters one after another, each under its own timeout.
func (p *Pipeline) collect(ctx context.Context, in query.Inputs, report *Report) {
	req := source.Request{
		Query:      report.Query,
		Inputs:     in,
		MaxResults: p.cfg.MaxResults,
		MaxReviews: p.cfg.MaxReviews,
	}
	seen := make(map[string]bool)

	for _, adapter := range p.cfg.Adapters {
		res, diag := p.run(ctx, adapter, req)
		report.Diagnostics = append(report.Diagnostics, diag)

		for _, rec := range res.Sources {
			if rec.URL == "" || seen[rec.URL] {
				continue
			}
			seen[rec.URL] = true
			if rec.Domain == "" {
				rec.Domain = source.Domain(rec.URL)
			}
			if rec.Origin == "" {
				rec.Origin = adapter.Name()
			}
			report.Sources = append(report.Sources, rec)
		}
		for _, rv := range res.Reviews {
			if rv.Site == "" {
				rv.Site = adapter.Name()
			}
			report.Reviews = append(report.Reviews, rv)
		}
		report.ReviewCount += max(len(res.Reviews), res.ReviewTotal)
	}
}

func (p *Pipeline) run(ctx context.Context, adapter source.Adapter, req source.Request) (source.Result, source.Diagnostic) {
	actx, cancel := context.WithTimeout(ctx, p.cfg.AdapterTimeout)
	defer cancel()

	start := p.cfg.Clock.Now()
	res, err := adapter.Fetch(actx, req)
	diag := source.Diagnostic{
		Adapter:  adapter.Name(),
		Kind:     adapter.Kind(),
		Records:  len(res.Sources),
		Reviews:  len(res.Reviews),
		Duration: p.cfg.Clock.Now().Sub(start),
	}

	logger := p.cfg.Logger.WithFields(logrus.Fields{
		"adapter": diag.Adapter,
		"records": diag.Records,
		"reviews": diag.Reviews,
	})
	if err != nil {
		diag.Err = err.Error()
		logger.WithField("err", err).Warn("adapter failed")
	} else {
		logger.Debug("adapter finished")
	}
	return res, diag
}
