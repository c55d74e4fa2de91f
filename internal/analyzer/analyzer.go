// Package analyzer decides between remote and local analysis of a source file.
//
// The decision is a small linear state machine. Without a credential the
// local rules are used directly (LocalOnly). Otherwise exactly one remote
// attempt is made; its result is normalized and returned (RemoteOK). Any
// remote or normalization failure falls back to the local rules (Fallback).
// Analyze never fails.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/CZERTAINLY/Sniffer/internal/log"
	"github.com/CZERTAINLY/Sniffer/internal/model"
	"github.com/CZERTAINLY/Sniffer/internal/normalize"
	"github.com/CZERTAINLY/Sniffer/internal/remote"
	"github.com/CZERTAINLY/Sniffer/internal/rules"
)

// Remote asks a model for an analysis and returns its raw text.
type Remote interface {
	RequestAnalysis(ctx context.Context, content, hint, modelID, credential string) (string, error)
}

type State int

const (
	RemoteOK State = iota + 1
	LocalOnly
	Fallback
)

func (s State) String() string {
	switch s {
	case RemoteOK:
		return "remote_ok"
	case LocalOnly:
		return "local_only"
	case Fallback:
		return "fallback"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is a terminal state of one analysis.
type Result struct {
	Findings []model.Finding
	State    State
	Cause    error  // why the remote path was not used, nil for RemoteOK
	Model    string // model used for RemoteOK, empty otherwise
}

type Option func(*Analyzer)

func WithDefaultModel(modelID string) Option {
	return func(a *Analyzer) {
		if modelID != "" {
			a.defaultModel = modelID
		}
	}
}

// Analyzer holds no mutable state and is safe for concurrent use.
type Analyzer struct {
	remote       Remote
	credentials  CredentialProvider
	defaultModel string
}

// New returns an Analyzer. A nil remote or credentials means local analysis only.
func New(remote Remote, credentials CredentialProvider, opts ...Option) *Analyzer {
	if credentials == nil {
		credentials = NoCredential
	}
	a := &Analyzer{
		remote:       remote,
		credentials:  credentials,
		defaultModel: model.DefaultModel,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Analyze returns findings for file. It never fails; every internal failure
// degrades to the local rule scan.
func (a *Analyzer) Analyze(ctx context.Context, file model.SourceFile, modelID string) []model.Finding {
	return a.Run(ctx, file, modelID).Findings
}

// Run is Analyze exposing the terminal state and the cause of a fallback.
func (a *Analyzer) Run(ctx context.Context, file model.SourceFile, modelID string) Result {
	if modelID == "" {
		modelID = a.defaultModel
	}
	ctx = log.ContextAttrs(ctx, slog.String("file", file.Name))

	credential, ok := a.credentials.Credential(ctx)
	if !ok || a.remote == nil {
		slog.DebugContext(ctx, "no credential configured, using local rules")
		return local(file, LocalOnly, model.ErrMissingCredential)
	}

	ctx = log.ContextAttrs(ctx, slog.String("model", modelID))
	raw, err := a.remote.RequestAnalysis(ctx, file.Text(), file.LanguageHint(), modelID, credential)
	if err != nil {
		if !remote.IsRemoteError(err) {
			err = fmt.Errorf("%w: %w", model.ErrTransport, err)
		}
		slog.WarnContext(ctx, "remote analysis failed, falling back to local rules", "error", err)
		return local(file, Fallback, err)
	}

	findings, err := normalize.Findings(raw)
	if err != nil {
		slog.WarnContext(ctx, "can't normalize remote analysis, falling back to local rules", "error", err)
		slog.DebugContext(ctx, "raw remote analysis", "raw", raw)
		return local(file, Fallback, err)
	}

	slog.DebugContext(ctx, "remote analysis finished", "findings", len(findings))
	return Result{
		Findings: findings,
		State:    RemoteOK,
		Model:    modelID,
	}
}

func local(file model.SourceFile, state State, cause error) Result {
	return Result{
		Findings: rules.Scan(file.Text(), file.Language()),
		State:    state,
		Cause:    cause,
	}
}

// IsFallbackCause reports whether err is a failure the analyzer recovers from.
func IsFallbackCause(err error) bool {
	return remote.IsRemoteError(err) ||
		errors.Is(err, model.ErrUnparsableResponse) ||
		errors.Is(err, model.ErrInvalidFindingShape)
}
