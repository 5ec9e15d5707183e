package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hyperjump/redline/internal/docx"
	"github.com/hyperjump/redline/internal/extract"
	"github.com/hyperjump/redline/internal/llm"
	"github.com/hyperjump/redline/internal/metrics"
	"github.com/hyperjump/redline/internal/models"
	"github.com/hyperjump/redline/internal/report"
	"github.com/hyperjump/redline/internal/storage"
)

const contract = "This Agreement is made between A and B.\n1. Payment Terms\nThe fee is 100 USD per month.\n2. Late Fees\nLate payments incur 100 USD."

func feeProposals() []models.ChangeProposal {
	return []models.ChangeProposal{
		{ClauseTitle: "1. Payment Terms", OriginalExcerpt: "100 USD", RevisedText: "250 USD", Reason: "raise"},
		{ClauseTitle: "2. Late Fees", OriginalExcerpt: "100 USD", RevisedText: "250 USD", Reason: "raise"},
	}
}

func staticProposer(proposals []models.ChangeProposal, err error) llm.Proposer {
	return llm.ProposerFunc(func(context.Context, []models.Clause, string) ([]models.ChangeProposal, error) {
		return proposals, err
	})
}

func newWriter(t *testing.T) (*docx.Writer, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "outputs")
	w, err := docx.NewWriter(dir)
	require.NoError(t, err)
	return w, dir
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

type failingStore struct{ storage.Store }

func (failingStore) CreateRevision(context.Context, *models.Revision) error {
	return errors.New("disk full")
}

type failingWriter struct{}

func (failingWriter) Save(string) (string, error) {
	return "", docx.ErrStorageWrite
}

func TestProcess_EndToEnd(t *testing.T) {
	writer, dir := newWriter(t)
	var gotClauses []models.Clause
	var gotInstruction string
	proposer := llm.ProposerFunc(func(_ context.Context, clauses []models.Clause, instruction string) ([]models.ChangeProposal, error) {
		gotClauses = clauses
		gotInstruction = instruction
		return feeProposals(), nil
	})

	p := New(extract.NewExtractor(), proposer, writer)
	res, err := p.Process(context.Background(), contract, "Change the fee to 250 USD")
	require.NoError(t, err)

	require.Len(t, res.Clauses, 3)
	assert.Equal(t, res.Clauses, gotClauses)
	assert.Equal(t, models.IntroductionTitle, res.Clauses[0].Title)
	assert.Equal(t, "Change the fee to 250 USD", gotInstruction)

	// The first proposal replaces both occurrences; the second finds nothing left.
	assert.Equal(t,
		"This Agreement is made between A and B.\n1. Payment Terms\nThe fee is <mark>250 USD</mark> per month.\n2. Late Fees\nLate payments incur <mark>250 USD</mark>.",
		res.Highlighted)
	assert.Empty(t, res.Outcomes)
	assert.Empty(t, res.Report)

	assert.Equal(t, []string{res.Artifact}, listDir(t, dir))
	path, err := writer.Path(res.Artifact)
	require.NoError(t, err)
	text, err := extract.NewExtractor().Extract(path)
	require.NoError(t, err)
	assert.Contains(t, text, "The fee is 250 USD per month.")
	assert.NotContains(t, text, "<mark>")
	assert.NotContains(t, text, "100 USD")
}

func TestProcess_NoProposals(t *testing.T) {
	writer, dir := newWriter(t)
	p := New(extract.NewExtractor(), staticProposer([]models.ChangeProposal{}, nil), writer)

	res, err := p.Process(context.Background(), contract, "Do nothing")
	require.NoError(t, err)
	assert.Equal(t, contract, res.Highlighted)
	assert.Len(t, listDir(t, dir), 1)
}

func TestProcess_ProposerFailureWritesNothing(t *testing.T) {
	for _, sentinel := range []error{llm.ErrMalformedResponse, llm.ErrServiceUnavailable} {
		t.Run(sentinel.Error(), func(t *testing.T) {
			writer, dir := newWriter(t)
			store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "revisions.db"))
			require.NoError(t, err)
			defer store.Close()

			p := New(extract.NewExtractor(), staticProposer(nil, sentinel), writer, WithStore(store))
			res, err := p.Process(context.Background(), contract, "x")
			assert.Nil(t, res)
			assert.ErrorIs(t, err, sentinel)
			assert.Empty(t, listDir(t, dir))

			n, err := store.CountRevisions(context.Background())
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestProcess_WriterFailure(t *testing.T) {
	p := New(extract.NewExtractor(), staticProposer(feeProposals(), nil), failingWriter{})
	_, err := p.Process(context.Background(), contract, "x")
	assert.ErrorIs(t, err, docx.ErrStorageWrite)
}

func TestProcess_RecordsRevision(t *testing.T) {
	writer, _ := newWriter(t)
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "revisions.db"))
	require.NoError(t, err)
	defer store.Close()

	proposals := append(feeProposals(), models.ChangeProposal{OriginalExcerpt: "", RevisedText: "x"})
	p := New(extract.NewExtractor(), staticProposer(proposals, nil), writer, WithStore(store))
	res, err := p.Process(context.Background(), contract, "  Change the fee to 250 USD  ")
	require.NoError(t, err)

	rev, err := store.GetRevisionByArtifact(context.Background(), res.Artifact)
	require.NoError(t, err)
	assert.Equal(t, "Change the fee to 250 USD", rev.Instruction)
	assert.Equal(t, 3, rev.Proposals)
	assert.Equal(t, 1, rev.Applied)
	assert.NotEmpty(t, rev.SourceDigest)
	assert.Empty(t, rev.Report)
}

func TestProcess_OutcomeReporting(t *testing.T) {
	writer, dir := newWriter(t)
	reporter, err := report.NewWriter(dir)
	require.NoError(t, err)

	p := New(extract.NewExtractor(), staticProposer(feeProposals(), nil), writer,
		WithReporter(reporter),
		WithOutcomeReporting(true),
	)
	res, err := p.Process(context.Background(), contract, "Change the fee to 250 USD")
	require.NoError(t, err)

	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, models.OutcomeApplied, res.Outcomes[0].Status)
	assert.Equal(t, 2, res.Outcomes[0].Occurrences)
	assert.Equal(t, models.OutcomeSkippedNotFound, res.Outcomes[1].Status)

	require.NotEmpty(t, res.Report)
	path, err := reporter.Path(res.Report)
	require.NoError(t, err)
	rows, err := report.Read(path)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.ElementsMatch(t, []string{res.Artifact, res.Report}, listDir(t, dir))
}

func TestProcess_BestEffortFailuresAreLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	writer, _ := newWriter(t)
	reportDir := filepath.Join(t.TempDir(), "reports")
	reporter, err := report.NewWriter(reportDir)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(reportDir))

	p := New(extract.NewExtractor(), staticProposer(feeProposals(), nil), writer,
		WithLogger(zap.New(core)),
		WithStore(failingStore{}),
		WithReporter(reporter),
		WithOutcomeReporting(true),
	)
	res, err := p.Process(context.Background(), contract, "x")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Artifact)
	assert.Empty(t, res.Report)
	assert.Len(t, res.Outcomes, 2)

	assert.Equal(t, 1, logs.FilterMessage("outcome report not written").Len())
	assert.Equal(t, 1, logs.FilterMessage("revision not recorded").Len())
}

func TestPreview(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contract.txt")
	require.NoError(t, os.WriteFile(path, []byte("1. Term\nOne year.\n\n2. Fees\nNone."), 0644))

	p := New(extract.NewExtractor(), staticProposer(nil, nil), nil)
	text, err := p.Preview(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "1. Term\nOne year.\n\n2. Fees\nNone.", text)

	_, err = p.Preview(context.Background(), filepath.Join(t.TempDir(), "contract.rtf"))
	assert.ErrorIs(t, err, extract.ErrUnreadableDocument)
}

func TestSaveEdited(t *testing.T) {
	writer, dir := newWriter(t)
	p := New(extract.NewExtractor(), staticProposer(nil, nil), writer)

	name, err := p.SaveEdited(context.Background(), "1. Term\nThe term is <mark>two</mark> years.\n\n2. Fees\nNone.")
	require.NoError(t, err)
	assert.Equal(t, []string{name}, listDir(t, dir))

	path, err := writer.Path(name)
	require.NoError(t, err)
	text, err := extract.NewExtractor().Extract(path)
	require.NoError(t, err)
	assert.Equal(t, "1. Term\nThe term is two years.\n\n2. Fees\nNone.", text)
}

func TestProcess_Metrics(t *testing.T) {
	writer, _ := newWriter(t)
	m := metrics.New()

	p := New(extract.NewExtractor(), staticProposer(feeProposals(), nil), writer, WithMetrics(m))
	_, err := p.Process(context.Background(), contract, "raise fees")
	require.NoError(t, err)

	failing := New(extract.NewExtractor(), staticProposer(nil, llm.ErrMalformedResponse), writer, WithMetrics(m))
	_, err = failing.Process(context.Background(), contract, "raise fees")
	require.Error(t, err)

	expected := `
# HELP redline_revisions_total Revision runs by result.
# TYPE redline_revisions_total counter
redline_revisions_total{result="malformed_response"} 1
redline_revisions_total{result="ok"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "redline_revisions_total"))

	// The second proposal targets an excerpt the first already replaced.
	expected = `
# HELP redline_proposals_total Change proposals by applicator outcome.
# TYPE redline_proposals_total counter
redline_proposals_total{status="applied"} 1
redline_proposals_total{status="skipped_not_found"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "redline_proposals_total"))
	n, err := testutil.GatherAndCount(m.Registry(), "redline_proposal_request_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestProcess_CRLFMultiLineExcerpt(t *testing.T) {
	writer, _ := newWriter(t)
	text := "1. Term\r\nLine one.\r\nLine two.\r\n\r\n2. Payment\r\nNet 30."
	proposer := llm.ProposerFunc(func(_ context.Context, clauses []models.Clause, _ string) ([]models.ChangeProposal, error) {
		require.NotEmpty(t, clauses)
		// Quote the clause body exactly as it was sent.
		return []models.ChangeProposal{
			{ClauseTitle: clauses[0].Title, OriginalExcerpt: clauses[0].Text, RevisedText: "Line one.\nLine three."},
		}, nil
	})

	p := New(extract.NewExtractor(), proposer, writer, WithOutcomeReporting(true))
	res, err := p.Process(context.Background(), text, "rewrite the term")
	require.NoError(t, err)

	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, models.OutcomeApplied, res.Outcomes[0].Status)
	assert.Equal(t, "1. Term\n<mark>Line one.\nLine three.</mark>\n\n2. Payment\nNet 30.", res.Highlighted)
}
