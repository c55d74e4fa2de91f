// Package secrets reports leaked credentials with the default gitleaks ruleset.
package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/CZERTAINLY/Sniffer/internal/model"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// RulePrefix prefixes the gitleaks rule id in model.Finding.Rule
const RulePrefix = "secret/"

type Detector struct {
	pool sync.Pool
	mx   sync.Mutex
}

func NewDetector() (*Detector, error) {
	first, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("creating new gitleaks detector: %w", err)
	}
	d := &Detector{}
	d.pool = sync.Pool{
		New: func() any {
			d.mx.Lock()
			defer d.mx.Unlock()
			detector, err := detect.NewDetectorDefaultConfig()
			if err != nil {
				panic(err)
			}
			return detector
		},
	}
	d.pool.Put(first)
	return d, nil
}

func (d *Detector) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.String("detector", "gitleaks")}
}

// Detect returns a high severity finding per leaked secret or model.ErrNoMatch.
// It is safe to be called from multiple goroutines.
func (d *Detector) Detect(ctx context.Context, b []byte, path string) ([]model.Finding, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	detector := d.pool.Get().(*detect.Detector)
	defer d.pool.Put(detector)

	var ret []model.Finding
	for _, leak := range detector.DetectString(string(b)) {
		ret = append(ret, model.Finding{
			Severity:    model.SeverityHigh,
			Message:     fmt.Sprintf("Possible leaked secret: %s", leak.Description),
			Line:        max(leak.StartLine, 1),
			Rule:        RulePrefix + leak.RuleID,
			Improvement: "Remove the secret from the source and rotate it, load credentials from the environment or a secret store",
		})
	}
	if len(ret) == 0 {
		return nil, fmt.Errorf("%s: %w", path, model.ErrNoMatch)
	}
	slog.DebugContext(ctx, "secrets detected", "count", len(ret))
	return ret, nil
}
