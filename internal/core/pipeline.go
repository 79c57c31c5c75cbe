package core

import (
	"context"
	"errors"

	"github.com/foreseon/IntelXScan/internal/baseline"
	"github.com/foreseon/IntelXScan/internal/config"
	"github.com/foreseon/IntelXScan/internal/diff"
	"github.com/foreseon/IntelXScan/internal/intelx"
	"github.com/foreseon/IntelXScan/internal/logging"
	"github.com/foreseon/IntelXScan/internal/model"
	"github.com/foreseon/IntelXScan/internal/parser"
	"github.com/foreseon/IntelXScan/internal/push"
)

// Searcher is the two-phase leak search; *intelx.Client implements it.
type Searcher interface {
	Initiate(ctx context.Context, selector string) (intelx.JobID, error)
	FetchResults(ctx context.Context, job intelx.JobID) ([]model.RawRecord, error)
}

type Stage string

const (
	StageInitiate  Stage = "initiate"
	StageFetch     Stage = "fetch"
	StageNormalize Stage = "normalize"
	StageBaseline  Stage = "baseline"
	StageDiff      Stage = "diff"
	StagePersist   Stage = "persist"
	StageNotify    Stage = "notify"
	StageDone      Stage = "done"
)

// Outcome describes how far one email got and why it stopped.
type Outcome struct {
	Email string
	Stage Stage
	// Found is the number of usable records returned by the search.
	Found           int
	New             int
	Notified        int
	NotifyFailed    int
	CorruptBaseline bool
	// Err is set when the pipeline stopped early because of a failure.
	Err error
}

func (o Outcome) Failed() bool {
	return o.Err != nil || o.NotifyFailed > 0
}

type Pipeline struct {
	search   Searcher
	store    baseline.Store
	notifier push.Notifier
	fields   config.FieldsConfig
	template string
	logger   *logging.Logger
}

func NewPipeline(search Searcher, store baseline.Store, notifier push.Notifier, fields config.FieldsConfig, template string, logger *logging.Logger) *Pipeline {
	if fields.Content == "" || fields.Added == "" {
		fields = parser.DefaultFields
	}
	return &Pipeline{
		search:   search,
		store:    store,
		notifier: notifier,
		fields:   fields,
		template: template,
		logger:   logger,
	}
}

// Process runs search, normalize, diff, persist and notify for one email.
// Every failure ends processing of this email only.
func (p *Pipeline) Process(ctx context.Context, email string) Outcome {
	out := Outcome{Email: email, Stage: StageInitiate}
	log := p.logger.With(logging.F("email", email))

	job, err := p.search.Initiate(ctx, email)
	if err != nil {
		log.Error("search initiate failed", logging.F("status", statusOf(err)), logging.F("err", err))
		out.Err = err
		return out
	}

	out.Stage = StageFetch
	raws, err := p.search.FetchResults(ctx, job)
	if err != nil {
		log.Error("search fetch failed", logging.F("job", job), logging.F("status", statusOf(err)), logging.F("err", err))
		out.Err = err
		return out
	}
	if len(raws) == 0 {
		log.Info("no records", logging.F("job", job))
		return out
	}

	out.Stage = StageNormalize
	records := parser.NormalizeAll(raws, p.fields)
	out.Found = len(records)
	if len(records) == 0 {
		log.Warn("no usable records", logging.F("raw", len(raws)))
		return out
	}

	out.Stage = StageBaseline
	known, err := p.store.Load(ctx, email)
	if err != nil {
		if !errors.Is(err, model.ErrCorruptBaseline) {
			log.Error("baseline load failed", logging.F("err", err))
			out.Err = err
			return out
		}
		log.Warn("baseline unreadable, treating as empty", logging.F("err", err))
		out.CorruptBaseline = true
		known = []model.LeakRecord{}
	}

	out.Stage = StageDiff
	newOnly, merged := diff.Diff(records, known)
	out.New = len(newOnly)
	if len(newOnly) == 0 {
		out.Stage = StageDone
		log.Debug("no new leaks", logging.F("found", out.Found), logging.F("known", len(known)))
		return out
	}

	out.Stage = StagePersist
	if err := p.store.Save(ctx, email, merged); err != nil {
		log.Error("baseline save failed", logging.F("err", err))
		out.Err = err
		return out
	}

	out.Stage = StageNotify
	for _, rec := range newOnly {
		msg := push.Render(p.template, model.Notification{Email: email, Record: rec})
		if err := p.notifier.Notify(ctx, msg); err != nil {
			out.NotifyFailed++
			log.Error("push failed", logging.F("added", rec.AddedAt), logging.F("err", err))
			continue
		}
		out.Notified++
	}
	out.Stage = StageDone
	log.Info("new leaks", logging.F("new", out.New), logging.F("notified", out.Notified), logging.F("baseline", len(merged)))
	return out
}

func statusOf(err error) int {
	var se *intelx.StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}
