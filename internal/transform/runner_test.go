package transform

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/unicode/norm"

	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/metrics"
	"git.home.luguber.info/inful/docweave/internal/scan"
	"git.home.luguber.info/inful/docweave/internal/stylesheet"
)

func staticResolver(style Stylesheet) Resolver {
	return ResolverFunc(func(string) (Stylesheet, error) { return style, nil })
}

func siteOptions(s site) Options {
	return Options{
		BaseDir:      s.base,
		DestDir:      s.dest,
		Style:        "fake.tmpl",
		CheckEnabled: true,
		Filters:      scan.Filters{UseDefaultExcludes: true},
	}
}

func statuses(r *Report) map[string]Status {
	out := make(map[string]Status, len(r.Outcomes))
	for _, o := range r.Outcomes {
		out[o.Input] = o.Status
	}
	return out
}

func TestRunSkipsFreshAndRegeneratesStale(t *testing.T) {
	s := newSite(t)
	s.source(t, "index.xml", doc("index"), tick(1))
	s.output(t, "index.html", "previous index", tick(5))
	s.source(t, "news/item.xml", doc("item"), tick(10))
	s.output(t, "news/item.html", "previous item", tick(5))
	style := newFakeStyle(tick(0))

	report, err := NewRunner(siteOptions(s), staticResolver(style)).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, "index.xml", report.Outcomes[0].Input)
	assert.Equal(t, StatusSkipped, report.Outcomes[0].Status)
	assert.Equal(t, "news/item.xml", report.Outcomes[1].Input)
	assert.Equal(t, StatusSuccess, report.Outcomes[1].Status)

	ctx, ok := style.context("item")
	require.True(t, ok)
	assert.Equal(t, "../", ctx[BindingRelativePath])
	_, rendered := style.context("index")
	assert.False(t, rendered)

	assert.Equal(t, "previous index", s.read(t, "index.html"))
	assert.Equal(t, "doc=item rel=../\n", s.read(t, "news/item.html"))
	assert.Equal(t, 1, report.Skipped())
	assert.Equal(t, 1, report.Succeeded())
	assert.NoError(t, report.Err())
	assert.NotEmpty(t, report.RunID)
}

func TestRunMissingProjectFileProceeds(t *testing.T) {
	s := newSite(t)
	s.source(t, "a.xml", doc("a"), tick(1))
	s.source(t, "b/c.xml", doc("c"), tick(1))
	style := newFakeStyle(tick(0))

	var logs bytes.Buffer
	opts := siteOptions(s)
	opts.ProjectFile = "project.xml"
	report, err := NewRunner(opts, staticResolver(style)).
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))).
		Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Succeeded())
	for _, id := range []string{"a", "c"} {
		ctx, ok := style.context(id)
		require.True(t, ok, id)
		assert.False(t, ctx.Has(BindingProject), id)
	}
	assert.Contains(t, logs.String(), "Project file is defined, but could not be located")
}

func TestRunProjectParsedOnceAndExcludedFromScan(t *testing.T) {
	s := newSite(t)
	s.source(t, "project.xml", `<project><name>Site</name></project>`, tick(1))
	s.source(t, "a.xml", doc("a"), tick(1))
	s.source(t, "b.xml", doc("b"), tick(1))
	s.source(t, "c.xml", doc("c"), tick(1))
	style := newFakeStyle(tick(0))
	parser := newCountingParser()

	opts := siteOptions(s)
	opts.ProjectFile = "project.xml"
	report, err := NewRunner(opts, staticResolver(style)).WithParser(parser).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 3, "project file is not an input")
	assert.EqualValues(t, 4, parser.calls.Load(), "three inputs plus one project parse")

	ctx, ok := style.context("b")
	require.True(t, ok)
	require.True(t, ctx.Has(BindingProject))
	first, _ := style.context("a")
	assert.Same(t, first[BindingProject], ctx[BindingProject])
}

func TestRunDestinationUnsetAbortsBeforeScan(t *testing.T) {
	s := newSite(t)
	s.source(t, "a.xml", doc("a"), tick(1))
	scanned := false
	resolved := false

	opts := siteOptions(s)
	opts.DestDir = ""
	report, err := NewRunner(opts, ResolverFunc(func(string) (Stylesheet, error) {
		resolved = true
		return newFakeStyle(tick(0)), nil
	})).WithScanner(func(string, scan.Filters) ([]string, error) {
		scanned = true
		return nil, nil
	}).Run(context.Background())

	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
	ce, ok := errors.AsClassified(err)
	require.True(t, ok)
	setting, _ := ce.Context().GetString("setting")
	assert.Equal(t, "dest_dir", setting)
	assert.False(t, scanned)
	assert.False(t, resolved)
	assert.Empty(t, report.Outcomes)
}

func TestRunStyleUnsetAborts(t *testing.T) {
	s := newSite(t)
	opts := siteOptions(s)
	opts.Style = ""
	_, err := NewRunner(opts, staticResolver(newFakeStyle(tick(0)))).Run(context.Background())

	ce, ok := errors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, errors.CategoryConfig, ce.Category())
	setting, _ := ce.Context().GetString("setting")
	assert.Equal(t, "style", setting)
}

func TestRunUnknownStylesheetIsFatal(t *testing.T) {
	s := newSite(t)
	s.source(t, "a.xml", doc("a"), tick(1))
	opts := siteOptions(s)
	opts.Style = "missing.tmpl"

	_, err := NewRunner(opts, EngineResolver(stylesheet.NewEngine(s.base))).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
	assert.False(t, s.exists("a.html"))
}

func TestRunParseFailureDoesNotStopBatch(t *testing.T) {
	s := newSite(t)
	s.source(t, "a.xml", doc("a"), tick(10))
	s.source(t, "b.xml", "<document><oops></document>", tick(10))
	s.output(t, "b.html", "stale", tick(1))
	s.source(t, "c.xml", doc("c"), tick(10))
	style := newFakeStyle(tick(0))

	report, err := NewRunner(siteOptions(s), staticResolver(style)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]Status{
		"a.xml": StatusSuccess,
		"b.xml": StatusFailed,
		"c.xml": StatusSuccess,
	}, statuses(report))
	assert.False(t, s.exists("b.html"))
	assert.True(t, s.exists("c.html"))

	buildErr := report.Err()
	require.Error(t, buildErr)
	assert.True(t, errors.HasCategory(buildErr, errors.CategoryBuild))
	assert.Contains(t, buildErr.Error(), "1 of 3 files failed")
}

func TestRunNewerStylesheetRegeneratesEverything(t *testing.T) {
	s := newSite(t)
	for _, id := range []string{"a", "b", "c"} {
		s.source(t, id+".xml", doc(id), tick(1))
		s.output(t, id+".html", "fresh", tick(5))
	}

	report, err := NewRunner(siteOptions(s), staticResolver(newFakeStyle(tick(0)))).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Skipped())

	report, err = NewRunner(siteOptions(s), staticResolver(newFakeStyle(tick(9)))).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Succeeded())
	assert.Equal(t, "doc=b rel=.\n", s.read(t, "b.html"))
}

func TestRunCheckDisabledRegeneratesEverything(t *testing.T) {
	s := newSite(t)
	for _, id := range []string{"a", "b"} {
		s.source(t, id+".xml", doc(id), tick(1))
		s.output(t, id+".html", "fresh", tick(5))
	}
	opts := siteOptions(s)
	opts.CheckEnabled = false

	report, err := NewRunner(opts, staticResolver(newFakeStyle(tick(0)))).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded())
	assert.Zero(t, report.Skipped())
}

func TestRunParallelKeepsScanOrder(t *testing.T) {
	s := newSite(t)
	var files []string
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		rel := "dir/" + id + ".xml"
		files = append(files, rel)
		s.source(t, rel, doc(id), tick(1))
	}
	opts := siteOptions(s)
	opts.Workers = 4

	report, err := NewRunner(opts, staticResolver(newFakeStyle(tick(0)))).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Outcomes, len(files))
	for i, o := range report.Outcomes {
		assert.Equal(t, files[i], o.Input)
		assert.Equal(t, StatusSuccess, o.Status)
	}
}

func TestRunCanceledStopsDispatch(t *testing.T) {
	s := newSite(t)
	s.source(t, "a.xml", doc("a"), tick(1))
	s.source(t, "b.xml", doc("b"), tick(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{1, 3} {
		opts := siteOptions(s)
		opts.Workers = workers
		report, err := NewRunner(opts, staticResolver(newFakeStyle(tick(0)))).Run(ctx)
		require.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, report.Outcomes)
	}
	assert.False(t, s.exists("a.html"))
}

func TestRunExplicitFileList(t *testing.T) {
	s := newSite(t)
	s.source(t, "z.xml", doc("z"), tick(1))
	s.source(t, "a.xml", doc("a"), tick(1))
	opts := siteOptions(s)
	opts.Files = []string{"z.xml", "a.xml"}

	report, err := NewRunner(opts, staticResolver(newFakeStyle(tick(0)))).
		WithScanner(func(string, scan.Filters) ([]string, error) {
			t.Fatal("scanner must not run when files are given")
			return nil, nil
		}).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, "z.xml", report.Outcomes[0].Input)
}

func TestRunExplicitMissingInputFails(t *testing.T) {
	s := newSite(t)
	s.source(t, "a.xml", doc("a"), tick(1))
	s.output(t, "missing.html", "orphaned", tick(5))
	opts := siteOptions(s)
	opts.Files = []string{"a.xml", "missing.xml"}

	report, err := NewRunner(opts, staticResolver(newFakeStyle(tick(0)))).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]Status{"a.xml": StatusSuccess, "missing.xml": StatusFailed}, statuses(report))
	assert.True(t, errors.HasCategory(report.Outcomes[1].Err, errors.CategoryFileSystem))
	assert.False(t, s.exists("missing.html"))
}

func TestRunDecomposedUnicodeFileName(t *testing.T) {
	s := newSite(t)
	name := norm.NFD.String("caf\u00e9.xml")
	s.source(t, name, doc("cafe"), tick(10))
	style := newFakeStyle(tick(0))

	report, err := NewRunner(siteOptions(s), staticResolver(style)).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	require.Equal(t, StatusSuccess, report.Outcomes[0].Status, "err: %v", report.Outcomes[0].Err)
	assert.Equal(t, name, report.Outcomes[0].Input)

	// Once the output is fresh, the source is still found and compared.
	again, err := NewRunner(siteOptions(s), staticResolver(style)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, again.Outcomes[0].Status)

	s.source(t, name, doc("cafe"), time.Now().Add(time.Hour))
	third, err := NewRunner(siteOptions(s), staticResolver(style)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, third.Outcomes[0].Status)
}

func TestRunDestinationInsideBaseIsNotScanned(t *testing.T) {
	base := t.TempDir()
	s := site{base: base, dest: filepath.Join(base, "public")}
	s.source(t, "page.xml", doc("page"), tick(1))
	s.output(t, "old.xml", doc("old"), tick(1))

	report, err := NewRunner(siteOptions(s), staticResolver(newFakeStyle(tick(0)))).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, "page.xml", report.Outcomes[0].Input)
}

type runRecorder struct {
	countingRecorder
	discovered int
	runs       []metrics.RunOutcomeLabel
}

func (r *runRecorder) SetFilesDiscovered(n int)                { r.discovered = n }
func (r *runRecorder) IncRunOutcome(o metrics.RunOutcomeLabel) { r.runs = append(r.runs, o) }

func TestRunRecordsMetrics(t *testing.T) {
	s := newSite(t)
	s.source(t, "a.xml", doc("a"), tick(1))
	s.source(t, "b.xml", "<broken", tick(1))
	rec := &runRecorder{}

	_, err := NewRunner(siteOptions(s), staticResolver(newFakeStyle(tick(0)))).
		WithRecorder(rec).
		Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, rec.discovered)
	assert.Equal(t, 1, rec.outcomes[metrics.OutcomeFailed])
	assert.Equal(t, 1, rec.outcomes[metrics.OutcomeSuccess])
	assert.Equal(t, []metrics.RunOutcomeLabel{metrics.RunPartial}, rec.runs)
}

func TestRunAbortRecordsOutcome(t *testing.T) {
	rec := &runRecorder{}
	_, err := NewRunner(Options{}, staticResolver(newFakeStyle(tick(0)))).WithRecorder(rec).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, []metrics.RunOutcomeLabel{metrics.RunAborted}, rec.runs)
}

func TestRunWithTextTemplate(t *testing.T) {
	s := newSite(t)
	tplDir := t.TempDir()
	writeAt(t, filepath.Join(tplDir, "site.tmpl"), strings.Join([]string{
		`<h1>{{ .xpath.Value "title" .root }}</h1>`,
		`{{- with .project }}<p>{{ $.escape.HTML ($.xpath.Value "name" .) }}</p>{{ end }}`,
		`<a href="{{ .relativePath }}">home</a>`,
		`{{ range .treeWalk.Children .root }}[{{ .Tag }}]{{ end }}`,
	}, ""), tick(0))
	s.source(t, "project.xml", `<project><name>Docs &amp; more</name></project>`, tick(0))
	s.source(t, "guide/intro.xml", `<document><title>Intro</title><body/></document>`, tick(1))

	opts := siteOptions(s)
	opts.Style = "site.tmpl"
	opts.ProjectFile = "project.xml"
	report, err := NewRunner(opts, EngineResolver(stylesheet.NewEngine(tplDir))).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Succeeded(), "outcomes: %+v", report.Outcomes)

	assert.Equal(t,
		`<h1>Intro</h1><p>Docs &amp; more</p><a href="../">home</a>[title][body]`,
		s.read(t, "guide/intro.html"))
}
