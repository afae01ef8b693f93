package normalize

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"surveybox/internal/docstore"
	"surveybox/internal/metrics"
)

// ErrFieldMissing marks an event document without the timestamp field.
var ErrFieldMissing = errors.New("timestamp field missing")

// ParseError is a textual timestamp that is not an epoch-seconds number.
type ParseError struct {
	Doc   string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: cannot parse timestamp %q: %v", e.Doc, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

type ParsePolicy string

const (
	// Skip logs and counts the document, then continues.
	Skip ParsePolicy = "skip"
	// Abort stops the run at the first malformed timestamp.
	Abort ParsePolicy = "abort"
)

func ParseParsePolicy(s string) (ParsePolicy, error) {
	switch p := ParsePolicy(s); p {
	case Skip, Abort:
		return p, nil
	}
	return "", fmt.Errorf("unknown parse error policy %q (want skip|abort)", s)
}

// Outcome is what happened to one event document.
type Outcome int

const (
	Converted Outcome = iota
	AlreadyTyped
	Missing
	ParseFailed
)

func (o Outcome) String() string {
	switch o {
	case Converted:
		return metrics.OutcomeConverted
	case AlreadyTyped:
		return metrics.OutcomeAlreadyTyped
	case Missing:
		return metrics.OutcomeMissing
	case ParseFailed:
		return metrics.OutcomeParseFailed
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

type Options struct {
	Field   string
	Policy  ParsePolicy
	Workers int
}

// StreamReport counts outcomes for one stream.
type StreamReport struct {
	StreamID     string
	Converted    int
	AlreadyTyped int
	Missing      int
	ParseFailed  int
}

func (r *StreamReport) add(o Outcome) {
	switch o {
	case Converted:
		r.Converted++
	case AlreadyTyped:
		r.AlreadyTyped++
	case Missing:
		r.Missing++
	case ParseFailed:
		r.ParseFailed++
	}
}

type Report struct {
	Streams []StreamReport
}

// Updates is the number of documents rewritten across all streams.
func (r Report) Updates() int {
	n := 0
	for _, s := range r.Streams {
		n += s.Converted
	}
	return n
}

// Normalizer rewrites textual timestamp fields into structured timestamps.
// Non-textual and absent fields are left alone, so a second pass writes nothing.
type Normalizer struct {
	store   docstore.Store
	opts    Options
	metrics *metrics.Registry
	log     *zap.Logger
}

func New(store docstore.Store, reg *metrics.Registry, log *zap.Logger, opts Options) *Normalizer {
	if opts.Field == "" {
		opts.Field = "timestamp"
	}
	if opts.Policy == "" {
		opts.Policy = Skip
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if reg == nil {
		reg = metrics.NewRegistry()
	}
	return &Normalizer{store: store, opts: opts, metrics: reg, log: log}
}

// Run normalizes the streams one after another.
func (n *Normalizer) Run(ctx context.Context, streamIDs []string) (Report, error) {
	began := time.Now()
	defer func() { n.metrics.RunDurationSec.Set(time.Since(began).Seconds()) }()

	var rep Report
	for _, id := range streamIDs {
		sr, err := n.Stream(ctx, id)
		rep.Streams = append(rep.Streams, sr)
		if err != nil {
			return rep, err
		}
		n.log.Info("stream normalized",
			zap.String("stream", id),
			zap.Int("converted", sr.Converted),
			zap.Int("already_typed", sr.AlreadyTyped),
			zap.Int("missing", sr.Missing),
			zap.Int("parse_failed", sr.ParseFailed))
	}
	return rep, nil
}

// Stream normalizes every event document of one stream.
func (n *Normalizer) Stream(ctx context.Context, streamID string) (StreamReport, error) {
	rep := StreamReport{StreamID: streamID}
	docs, err := n.store.ListChildDocuments(ctx, docstore.StreamEvents(streamID))
	if err != nil {
		return rep, fmt.Errorf("list events of stream %s: %w", streamID, err)
	}

	if n.opts.Workers == 1 {
		for _, doc := range docs {
			o, err := n.visit(ctx, doc)
			rep.add(o)
			if err != nil {
				return rep, err
			}
		}
		return rep, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.opts.Workers)
	for _, doc := range docs {
		doc := doc
		g.Go(func() error {
			o, err := n.visit(gctx, doc)
			mu.Lock()
			rep.add(o)
			mu.Unlock()
			return err
		})
	}
	return rep, g.Wait()
}

// visit applies Document and the parse policy. Only fatal errors are returned.
func (n *Normalizer) visit(ctx context.Context, doc string) (Outcome, error) {
	o, err := n.Document(ctx, doc)
	if o >= 0 {
		n.metrics.Documents.WithLabelValues(o.String()).Inc()
	}
	switch {
	case err == nil:
		return o, nil
	case errors.Is(err, ErrFieldMissing):
		n.log.Warn("event skipped", zap.String("doc", doc), zap.Error(err))
		return o, nil
	case o == ParseFailed && n.opts.Policy == Skip:
		n.log.Warn("event skipped", zap.String("doc", doc), zap.Error(err))
		return o, nil
	}
	return o, err
}

// Document normalizes one event document. A missing field yields Missing with
// ErrFieldMissing; a malformed text yields ParseFailed with a *ParseError.
// Store failures return outcome -1.
func (n *Normalizer) Document(ctx context.Context, doc string) (Outcome, error) {
	v, ok, err := n.store.GetField(ctx, doc, n.opts.Field)
	if err != nil {
		return -1, fmt.Errorf("read %s: %w", doc, err)
	}
	if !ok {
		return Missing, fmt.Errorf("%s: %w", doc, ErrFieldMissing)
	}
	s, isText := v.(string)
	if !isText {
		n.log.Debug("event already typed", zap.String("doc", doc), zap.String("type", fmt.Sprintf("%T", v)))
		return AlreadyTyped, nil
	}
	ts, err := ParseTimestamp(s)
	if err != nil {
		return ParseFailed, &ParseError{Doc: doc, Value: s, Err: err}
	}
	if err := n.store.UpdateField(ctx, doc, n.opts.Field, ts); err != nil {
		return -1, fmt.Errorf("update %s: %w", doc, err)
	}
	n.log.Debug("event converted", zap.String("doc", doc), zap.Time("timestamp", ts))
	return Converted, nil
}
