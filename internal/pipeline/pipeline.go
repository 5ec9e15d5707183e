// Package pipeline runs a contract revision: segment, request proposals, apply them, and save the artifact.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/redline/internal/clause"
	"github.com/hyperjump/redline/internal/fileid"
	"github.com/hyperjump/redline/internal/llm"
	"github.com/hyperjump/redline/internal/metrics"
	"github.com/hyperjump/redline/internal/models"
	"github.com/hyperjump/redline/internal/revise"
	"github.com/hyperjump/redline/internal/storage"
	"github.com/hyperjump/redline/pkg/utils"
	"go.uber.org/zap"
)

// TextExtractor reads the plain text of an uploaded document.
type TextExtractor interface {
	Extract(path string) (string, error)
}

// ArtifactWriter saves revised text as a downloadable document and returns its name.
type ArtifactWriter interface {
	Save(text string) (string, error)
}

// Reporter saves per-proposal outcomes and returns the report name.
type Reporter interface {
	Write(instruction string, outcomes []models.Outcome) (string, error)
}

// Result is the output of one revision.
type Result struct {
	Clauses     []models.Clause
	Highlighted string
	Artifact    string
	// Report and Outcomes are set only when outcome reporting is enabled.
	Report   string
	Outcomes []models.Outcome
}

// Pipeline wires the revision components together.
type Pipeline struct {
	extractor      TextExtractor
	proposer       llm.Proposer
	writer         ArtifactWriter
	store          storage.Store
	reporter       Reporter
	reportOutcomes bool
	metrics        *metrics.Metrics
	logger         *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithStore records a catalog row for every produced artifact.
func WithStore(s storage.Store) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithReporter sets where outcome reports are written when outcome reporting is enabled.
func WithReporter(r Reporter) Option {
	return func(p *Pipeline) { p.reporter = r }
}

// WithOutcomeReporting exposes per-proposal outcomes, including skipped proposals, in Result.
func WithOutcomeReporting(enabled bool) Option {
	return func(p *Pipeline) { p.reportOutcomes = enabled }
}

// WithMetrics records revision counters and proposal latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New creates a pipeline with the given dependencies.
func New(extractor TextExtractor, proposer llm.Proposer, writer ArtifactWriter, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor: extractor,
		proposer:  proposer,
		writer:    writer,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p
}

// Preview returns the extracted text of the document at path.
func (p *Pipeline) Preview(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := p.extractor.Extract(path)
	if err != nil {
		return "", err
	}
	p.logger.Debug("document extracted", zap.String("path", path), zap.Int("chars", len(text)))
	return text, nil
}

// Process revises text according to instruction. A proposal failure aborts the
// revision before any artifact is written.
func (p *Pipeline) Process(ctx context.Context, text, instruction string) (res *Result, err error) {
	defer func() { p.metrics.ObserveRevision(err) }()

	// Clauses shown to the model and the text edited must share line endings.
	text = utils.NormalizeNewlines(text)
	clauses := clause.Split(text)
	p.logger.Debug("contract segmented", zap.Int("clauses", len(clauses)))

	start := time.Now()
	proposals, err := p.proposer.Propose(ctx, clauses, instruction)
	p.metrics.ObserveProposalLatency(time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("requesting proposals: %w", err)
	}

	highlighted, outcomes := revise.ApplyWithOutcomes(text, proposals)
	p.metrics.ObserveOutcomes(outcomes)
	applied := models.CountApplied(outcomes)
	p.logger.Info("proposals applied",
		zap.Int("proposals", len(proposals)),
		zap.Int("applied", applied),
	)
	for _, o := range outcomes {
		if !o.Applied() {
			p.logger.Debug("proposal skipped",
				zap.String("clause", o.Proposal.ClauseTitle),
				zap.String("status", string(o.Status)),
			)
		}
	}

	artifact, err := p.writer.Save(highlighted)
	if err != nil {
		return nil, err
	}

	res = &Result{
		Clauses:     clauses,
		Highlighted: highlighted,
		Artifact:    artifact,
	}
	if p.reportOutcomes {
		res.Outcomes = outcomes
		res.Report = p.writeReport(instruction, outcomes)
	}
	p.record(ctx, &models.Revision{
		Artifact:     artifact,
		Report:       res.Report,
		Instruction:  strings.TrimSpace(instruction),
		SourceDigest: fileid.ContentDigest([]byte(text)),
		Proposals:    len(proposals),
		Applied:      applied,
	})
	return res, nil
}

// SaveEdited saves user-edited, possibly marked, text as an artifact.
func (p *Pipeline) SaveEdited(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.writer.Save(text)
}

func (p *Pipeline) writeReport(instruction string, outcomes []models.Outcome) string {
	if p.reporter == nil {
		return ""
	}
	name, err := p.reporter.Write(instruction, outcomes)
	if err != nil {
		p.logger.Warn("outcome report not written", zap.Error(err))
		return ""
	}
	return name
}

func (p *Pipeline) record(ctx context.Context, rev *models.Revision) {
	if p.store == nil {
		return
	}
	if err := p.store.CreateRevision(ctx, rev); err != nil {
		p.logger.Warn("revision not recorded", zap.String("artifact", rev.Artifact), zap.Error(err))
	}
}
