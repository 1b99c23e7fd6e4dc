// Package pipeline runs one sync: load the payload, assemble the table,
// write every configured artifact and record a manifest.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"schoolsync/internal/config"
	"schoolsync/internal/export"
	"schoolsync/internal/fetcher"
	"schoolsync/internal/logger"
	"schoolsync/internal/report"
	"schoolsync/internal/schools"
	"schoolsync/pkg/metadata"
)

// Result is the outcome of a run.
type Result struct {
	RunID      string
	Source     string
	Records    int
	Table      *schools.Table
	Artifacts  []metadata.Artifact
	Manifest   string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Option customises a Runner.
type Option func(*Runner)

// WithSource replaces the source derived from config.
func WithSource(src Source) Option {
	return func(r *Runner) { r.source = src }
}

// WithSinks replaces the sinks derived from config.
func WithSinks(sinks ...export.Sink) Option {
	return func(r *Runner) { r.sinks = sinks }
}

// WithConsole sets where the contacts sample and preview are printed.
func WithConsole(w io.Writer) Option {
	return func(r *Runner) { r.console = w }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// Runner executes sync runs. A Runner is safe to reuse across runs but not
// for concurrent runs sharing the same output paths.
type Runner struct {
	cfg       *config.Config
	log       *logger.Logger
	source    Source
	assembler *schools.Assembler
	sinks     []export.Sink
	console   io.Writer
	now       func() time.Time
}

// NewRunner builds a runner from cfg. The candidate path table is loaded from
// cfg.Mapping.CandidatePaths when set.
func NewRunner(cfg *config.Config, log *logger.Logger, opts ...Option) (*Runner, error) {
	if log == nil {
		log = logger.Discard()
	}

	table := schools.DefaultPathTable()

	if cfg.Mapping.CandidatePaths != "" {
		loaded, err := schools.LoadPathTable(cfg.Mapping.CandidatePaths)
		if err != nil {
			return nil, fmt.Errorf("load candidate paths: %w", err)
		}

		table = loaded
	}

	r := &Runner{
		cfg:       cfg,
		log:       log,
		assembler: schools.NewAssembler(schools.NewResolver(table), cfg.Assemble.Workers),
		sinks:     BuildSinks(cfg),
		console:   os.Stdout,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.source == nil {
		r.source = SourceFromConfig(cfg, log)
	}

	return r, nil
}

// SourceFromConfig returns a file source when source.file is set, otherwise
// an HTTP source for source.url.
func SourceFromConfig(cfg *config.Config, log *logger.Logger) Source {
	if cfg.Source.IsLocalFile() {
		return NewFileSource(cfg.Source.File)
	}

	f := fetcher.New(cfg.Retry, cfg.Source.InsecureSkipVerify, log)

	return NewHTTPSource(f, cfg.Source.URL)
}

// BuildSinks returns the table sinks enabled in cfg, in CSV, XLSX, SQLite order.
func BuildSinks(cfg *config.Config) []export.Sink {
	var sinks []export.Sink

	if p := cfg.GetOutputPath(cfg.Output.CSV); p != "" {
		sinks = append(sinks, export.NewCSVSink(p, cfg.Output.BOM))
	}

	if p := cfg.GetOutputPath(cfg.Output.XLSX); p != "" {
		sinks = append(sinks, export.NewXLSXSink(p))
	}

	if p := cfg.GetOutputPath(cfg.Output.SQLite); p != "" {
		sinks = append(sinks, export.NewSQLiteSink(p, export.DefaultTable))
	}

	return sinks
}

// Run executes one sync. When the payload holds no records the raw dump is
// still written and the returned error wraps schools.ErrEmptyRecordSet.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	res := &Result{
		RunID:     uuid.NewString(),
		Source:    r.source.Name(),
		StartedAt: r.now().UTC(),
	}
	log := r.log.With("run_id", res.RunID)
	manifest := &metadata.Manifest{RunID: res.RunID, Source: res.Source, StartedAt: res.StartedAt}

	log.Info("Fetching", "source", res.Source)

	raw, err := r.source.Load(ctx)
	if err != nil {
		return res, fmt.Errorf("load source: %w", err)
	}

	if err := r.dumpRaw(raw, manifest, log); err != nil {
		return res, err
	}

	res.Artifacts = manifest.Artifacts

	records := schools.ExtractRecords(raw)
	res.Records = len(records)

	table, err := r.assembler.Assemble(ctx, records)
	if errors.Is(err, schools.ErrEmptyRecordSet) {
		log.Warn("No records found")
		res.Table = table
		res.FinishedAt = r.now().UTC()

		return res, err
	}

	if err != nil {
		return res, fmt.Errorf("assemble rows: %w", err)
	}

	res.Table = table
	log.Info("Prepared rows", "records", len(records), "columns", len(table.Columns))

	r.printPreview(table, log)

	for _, sink := range r.sinks {
		if err := sink.Write(ctx, table); err != nil {
			return res, fmt.Errorf("write %s: %w", sink.Name(), err)
		}

		if err := manifest.AddArtifact(sink.Name(), sink.Path()); err != nil {
			return res, fmt.Errorf("checksum %s: %w", sink.Name(), err)
		}

		res.Artifacts = manifest.Artifacts

		log.Info("Saved", "sink", sink.Name(), "path", sink.Path(), "rows", len(table.Rows))
	}

	res.FinishedAt = r.now().UTC()

	if p := r.cfg.GetOutputPath(r.cfg.Output.Manifest); p != "" {
		manifest.FinishedAt = res.FinishedAt
		manifest.Records = res.Records
		manifest.Rows = len(table.Rows)
		manifest.Columns = len(table.Columns)

		if err := writeManifest(p, manifest); err != nil {
			return res, err
		}

		res.Manifest = p
	}

	log.Info("Run complete", "rows", len(table.Rows), "duration", res.FinishedAt.Sub(res.StartedAt))

	return res, nil
}

// Table loads and assembles the payload without writing any artifact.
func (r *Runner) Table(ctx context.Context) (*schools.Table, error) {
	raw, err := r.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load source: %w", err)
	}

	return r.assembler.Assemble(ctx, schools.ExtractRecords(raw))
}

func (r *Runner) dumpRaw(raw any, manifest *metadata.Manifest, log *logger.Logger) error {
	p := r.cfg.GetOutputPath(r.cfg.Output.RawJSON)
	if p == "" {
		return nil
	}

	// Replaying an audit dump onto itself would only reformat it.
	if fs, ok := r.source.(*FileSource); ok && samePath(fs.path, p) {
		return nil
	}

	if err := export.WriteRawJSON(p, raw); err != nil {
		return fmt.Errorf("write raw json: %w", err)
	}

	log.Info("Raw JSON saved", "path", p)

	if err := manifest.AddArtifact("raw_json", p); err != nil {
		return fmt.Errorf("checksum raw_json: %w", err)
	}

	return nil
}

func (r *Runner) printPreview(table *schools.Table, log *logger.Logger) {
	if r.console == nil {
		return
	}

	fmt.Fprintln(r.console, "Sample contacts (first record):")

	if err := report.WriteContactsSample(r.console, table); err != nil {
		log.Warn("contacts sample failed", "error", err)
	}

	if n := r.cfg.Report.SampleRows; n > 0 {
		if err := report.WritePreview(r.console, table, r.cfg.Report.Columns, n); err != nil {
			log.Warn("preview failed", "error", err)
		}
	}
}

func writeManifest(path string, m *metadata.Manifest) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}

	return metadata.Write(path, m)
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)

	return errA == nil && errB == nil && absA == absB
}
