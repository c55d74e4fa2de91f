package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/CZERTAINLY/Sniffer/internal/analyzer"
	"github.com/CZERTAINLY/Sniffer/internal/history"
	"github.com/CZERTAINLY/Sniffer/internal/model"
	"github.com/CZERTAINLY/Sniffer/internal/remote"
	"github.com/CZERTAINLY/Sniffer/internal/report"
	"github.com/CZERTAINLY/Sniffer/internal/scan"
	"github.com/CZERTAINLY/Sniffer/internal/secrets"
	"github.com/CZERTAINLY/Sniffer/internal/walk"
)

// errThreshold is returned when --fail-on found a finding, exit code 1
var errThreshold = errors.New("findings at or above the failure threshold")

func exitCode(err error) int {
	if errors.Is(err, errThreshold) {
		return 1
	}
	return 2
}

// Sniffer wires the configured analyzer, scanner and history together.
type Sniffer struct {
	scan   *scan.Scan
	filter walk.Filter
	// store gets every analysis, history.Discard when disabled
	store history.Store
	// local is nil when history is disabled or can't be opened
	local *history.BoltStore
	user  string
}

type snifferOptions struct {
	secrets   bool
	noHistory bool
}

func NewSniffer(ctx context.Context, cfg model.Config, opts snifferOptions) (*Sniffer, error) {
	filter, err := walk.NewFilter(cfg.Scan.Include, cfg.Scan.Exclude)
	if err != nil {
		return nil, fmt.Errorf("scan filter: %w", err)
	}

	var detectors []scan.Detector
	if opts.secrets || cfg.Scan.Secrets {
		d, err := secrets.NewDetector()
		if err != nil {
			return nil, err
		}
		detectors = append(detectors, d)
	}

	a := newAnalyzer(cfg.Remote)
	s := &Sniffer{
		scan:   scan.New(cfg.Scan.Parallelism, cfg.Scan.MaxFileSize, a, detectors...),
		filter: filter,
		store:  history.Discard,
		user:   cfg.History.HistoryUser(),
	}

	if !opts.noHistory && cfg.History.Enabled {
		store, local, err := openHistory(cfg.History)
		if err != nil {
			// history never changes the analysis
			slog.WarnContext(ctx, "history is not available", "error", err)
		} else {
			s.store, s.local = store, local
		}
	}
	return s, nil
}

func newAnalyzer(cfg model.Remote) *analyzer.Analyzer {
	if !cfg.Enabled {
		return analyzer.New(nil, nil, analyzer.WithDefaultModel(cfg.Model))
	}
	opts := []remote.Option{
		remote.WithTimeout(cfg.Timeout.Duration),
		remote.WithReferer(cfg.Referer),
	}
	if cfg.Endpoint.URL != nil {
		opts = append(opts, remote.WithEndpoint(cfg.Endpoint.String()))
	}
	if cfg.Title != "" {
		opts = append(opts, remote.WithTitle(cfg.Title))
	}
	apiKeyEnv := cfg.APIKeyEnv
	if apiKeyEnv == "" {
		apiKeyEnv = model.DefaultAPIKeyEnv
	}
	return analyzer.New(
		remote.NewClient(opts...),
		analyzer.Cached(analyzer.EnvCredential(apiKeyEnv)),
		analyzer.WithDefaultModel(cfg.Model),
	)
}

func historyDir(cfg model.History) (string, error) {
	if cfg.Dir != "" {
		return cfg.Dir, nil
	}
	d, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "sniffer", "history"), nil
}

func openHistory(cfg model.History) (history.Store, *history.BoltStore, error) {
	dir, err := historyDir(cfg)
	if err != nil {
		return nil, nil, err
	}
	local, err := history.OpenBoltStore(dir)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Repository == nil || !cfg.Repository.Enabled {
		return local, local, nil
	}

	var token string
	if cfg.Repository.Auth.Type == model.AuthTypeStaticToken {
		token = cfg.Repository.Auth.Token
	}
	repo, err := history.NewRepositoryStore(cfg.Repository.URL, token, nil)
	if err != nil {
		_ = local.Close()
		return nil, nil, fmt.Errorf("history repository: %w", err)
	}
	return history.Tee(local, repo), local, nil
}

// localHistory opens the local store for the history commands
func localHistory(cfg model.History) (*history.BoltStore, error) {
	dir, err := historyDir(cfg)
	if err != nil {
		return nil, err
	}
	return history.OpenBoltStore(dir)
}

func (s *Sniffer) Close() error {
	if s.local != nil {
		return s.local.Close()
	}
	return nil
}

// Run analyzes entries and returns the unfiltered reports of analyzed files.
// Skipped entries are logged, other entry errors are joined into the error.
func (s *Sniffer) Run(ctx context.Context, modelID string, entries iter.Seq2[walk.Entry, error]) ([]report.File, error) {
	var files []report.File
	var errs []error
	for r, err := range s.scan.Do(ctx, modelID, s.filter.Seq(entries)) {
		switch {
		case err == nil:
		case errors.Is(err, model.ErrTooBig), errors.Is(err, model.ErrNotText):
			slog.WarnContext(ctx, "file skipped", "path", r.Path, "reason", err)
			continue
		case ctx.Err() != nil:
			return files, ctx.Err()
		case r.Path == "":
			// walk errors carry the path already
			errs = append(errs, err)
			continue
		default:
			errs = append(errs, fmt.Errorf("%s: %w", r.Path, err))
			continue
		}

		s.save(ctx, r)
		files = append(files, report.File{
			Name:     r.Path,
			Strategy: r.Result.State.String(),
			Model:    r.Result.Model,
			Findings: r.Findings,
		})
	}
	return files, errors.Join(errs...)
}

// filterFiles returns copies of files with findings of given severities only.
func filterFiles(files []report.File, severities []model.Severity) []report.File {
	ret := make([]report.File, len(files))
	for i, f := range files {
		f.Findings = model.FilterSeverity(f.Findings, severities...)
		ret[i] = f
	}
	return ret
}

func (s *Sniffer) save(ctx context.Context, r scan.Report) {
	rec, err := s.store.Save(ctx, history.Record{
		User:     s.user,
		FileName: r.Path,
		Model:    r.Result.Model,
		State:    r.Result.State.String(),
		Findings: r.Findings,
	})
	if err != nil {
		slog.WarnContext(ctx, "saving history failed", "path", r.Path, "error", err)
		return
	}
	slog.DebugContext(ctx, "history saved", "id", rec.ID, "path", r.Path)
}

// Analyze runs a single in-memory file, stdin or MCP input.
func (s *Sniffer) Analyze(ctx context.Context, name string, content []byte, modelID string) (report.File, error) {
	seq := func(yield func(walk.Entry, error) bool) {
		yield(walk.Bytes(name, content), nil)
	}
	for r, err := range s.scan.Do(ctx, modelID, seq) {
		if err != nil {
			return report.File{}, err
		}
		s.save(ctx, r)
		return report.File{
			Name:     r.Path,
			Strategy: r.Result.State.String(),
			Model:    r.Result.Model,
			Findings: r.Findings,
		}, nil
	}
	if err := ctx.Err(); err != nil {
		return report.File{}, err
	}
	return report.File{}, fmt.Errorf("%s: not analyzed", name)
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = model.DefaultMaxSize
	}
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, fmt.Errorf("input bigger than %d bytes: %w", limit, model.ErrTooBig)
	}
	return b, nil
}
