package scan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CZERTAINLY/Sniffer/internal/analyzer"
	"github.com/CZERTAINLY/Sniffer/internal/log"
	"github.com/CZERTAINLY/Sniffer/internal/model"
	"github.com/CZERTAINLY/Sniffer/internal/parallel"
	"github.com/CZERTAINLY/Sniffer/internal/walk"

	"github.com/google/uuid"
)

// Detector finds additional issues next to the analyzer, e.g. leaked secrets.
type Detector interface {
	Detect(ctx context.Context, b []byte, path string) ([]model.Finding, error)
}

// Analyzer is implemented by *analyzer.Analyzer
type Analyzer interface {
	Run(ctx context.Context, file model.SourceFile, modelID string) analyzer.Result
}

// Report is the outcome of one analyzed file.
type Report struct {
	Path     string
	Language model.Language
	Result   analyzer.Result
	// Findings are Result.Findings followed by findings of detectors
	Findings []model.Finding
	Duration time.Duration
}

type Scan struct {
	limit             int
	skipIfBigger      int64
	analyzer          Analyzer
	detectors         []Detector
	pool              sync.Pool
	poolNewCounter    atomic.Int32
	poolPutCounter    atomic.Int32
	poolPutErrCounter atomic.Int32
}

type Stats struct {
	PoolNewCounter    int
	PoolPutCounter    int
	PoolPutErrCounter int
}

// New returns a Scan running at most limit analyses at once.
// Files bigger than skipIfBigger bytes are skipped, 0 means model.DefaultMaxSize.
func New(limit int, skipIfBigger int64, a Analyzer, detectors ...Detector) *Scan {
	if skipIfBigger <= 0 {
		skipIfBigger = model.DefaultMaxSize
	}
	limit = max(limit, 1)
	s := &Scan{
		limit:        limit,
		skipIfBigger: skipIfBigger,
		analyzer:     a,
		detectors:    detectors,
	}
	s.pool = sync.Pool{
		New: func() any {
			s.poolNewCounter.Add(1)
			return new(bytes.Buffer)
		},
	}
	return s
}

// Do reads the content of the seq iterator and analyzes the entries in parallel.
// Reports are yielded in the order of seq.
// 1. If entry has a stat error, the error is returned
// 2. If is bigger than the limit, it's ignored and ErrTooBig is returned
// 3. Content which is not a text returns ErrNotText
// 4. Otherwise the analyzer and all detectors run on the content
func (s *Scan) Do(ctx context.Context, modelID string, seq iter.Seq2[walk.Entry, error]) iter.Seq2[Report, error] {
	return parallel.NewMap(ctx, s.limit, func(ctx context.Context, entry walk.Entry) (Report, error) {
		return s.scan(ctx, modelID, entry)
	}).Iter(seq)
}

func (s *Scan) scan(ctx context.Context, modelID string, entry walk.Entry) (Report, error) {
	ctx = log.ContextAttrs(ctx,
		slog.String("request", uuid.NewString()),
		slog.String("path", entry.Path()),
	)
	report := Report{Path: entry.Path()}
	slog.DebugContext(ctx, "scanning")
	if ctx.Err() != nil {
		return report, ctx.Err()
	}
	info, err := entry.Stat()
	if err != nil {
		return report, fmt.Errorf("scan Stat: %w", err)
	}
	if info.Size() > s.skipIfBigger {
		slog.DebugContext(ctx, "scanning skipped, too big file", "size", info.Size())
		return report, fmt.Errorf("entry too big (%d bytes): %w", info.Size(), model.ErrTooBig)
	}

	f, err := entry.Open()
	if err != nil {
		return report, fmt.Errorf("scan Open: %w", err)
	}
	defer func() {
		_ = f.Close() // ignoring close error for CLI tool
	}()

	buf := s.pool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		s.poolPutCounter.Add(1)
		s.pool.Put(buf)
	}()
	// the file may grow after Stat
	if _, err := buf.ReadFrom(io.LimitReader(f, s.skipIfBigger+1)); err != nil {
		s.poolPutErrCounter.Add(1)
		return report, fmt.Errorf("scan Read: %w", err)
	}
	if int64(buf.Len()) > s.skipIfBigger {
		return report, fmt.Errorf("entry too big (more than %d bytes): %w", s.skipIfBigger, model.ErrTooBig)
	}
	// IMPORTANT: the buffer goes back to the pool once this function returns,
	// nothing may keep a reference to its bytes
	content := buf.Bytes()

	file, err := model.TextSourceFile(entry.Path(), content)
	if err != nil {
		slog.DebugContext(ctx, "scanning skipped, not a text file")
		return report, err
	}
	report.Language = file.Language()

	start := time.Now()
	report.Result = s.analyzer.Run(ctx, file, modelID)
	report.Findings = append(make([]model.Finding, 0, len(report.Result.Findings)), report.Result.Findings...)
	ctx = log.ContextAttrs(ctx, slog.String("strategy", report.Result.State.String()))

	var detectionErrors []error
	for _, detector := range s.detectors {
		dctx := ctx
		if ld, ok := detector.(interface{ LogAttrs() []slog.Attr }); ok {
			dctx = log.ContextAttrs(ctx, ld.LogAttrs()...)
		}

		d, err := detector.Detect(dctx, content, entry.Path())
		switch {
		case err == nil:
			report.Findings = append(report.Findings, d...)
		case errors.Is(err, model.ErrNoMatch):
			// ignore ErrNoMatch
		default:
			slog.WarnContext(dctx, "detector failed", "error", err)
			detectionErrors = append(detectionErrors, err)
		}
	}
	report.Duration = time.Since(start)

	slog.DebugContext(ctx, "scanned", "findings", len(report.Findings), "duration", report.Duration)
	if len(detectionErrors) > 0 && len(report.Findings) == 0 {
		return report, errors.Join(detectionErrors...)
	}
	return report, nil
}

func (s *Scan) Stats() Stats {
	return Stats{
		PoolNewCounter:    int(s.poolNewCounter.Load()),
		PoolPutCounter:    int(s.poolPutCounter.Load()),
		PoolPutErrCounter: int(s.poolPutErrCounter.Load()),
	}
}
