package analyzer_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/CZERTAINLY/Sniffer/internal/analyzer"
	"github.com/CZERTAINLY/Sniffer/internal/model"
	"github.com/CZERTAINLY/Sniffer/internal/remote"
	"github.com/CZERTAINLY/Sniffer/internal/rules"

	"github.com/stretchr/testify/require"
)

type fakeRemote struct {
	raw   string
	err   error
	calls atomic.Int32
	model string
	hint  string
}

func (f *fakeRemote) RequestAnalysis(_ context.Context, _, hint, modelID, _ string) (string, error) {
	f.calls.Add(1)
	f.model = modelID
	f.hint = hint
	return f.raw, f.err
}

const jsSample = "const a = 1;\nconst b = eval(userInput);\n"

func TestAnalyze_NoCredential(t *testing.T) {
	t.Parallel()

	r := &fakeRemote{}
	a := analyzer.New(r, analyzer.StaticCredential(""))
	file := model.NewSourceFile("app.js", []byte(jsSample))

	res := a.Run(t.Context(), file, "")
	require.Equal(t, analyzer.LocalOnly, res.State)
	require.ErrorIs(t, res.Cause, model.ErrMissingCredential)
	require.Zero(t, r.calls.Load())

	require.Len(t, res.Findings, 1)
	require.Equal(t, model.SeverityHigh, res.Findings[0].Severity)
	require.Equal(t, "no-eval", res.Findings[0].Rule)
	require.Equal(t, 2, res.Findings[0].Line)

	// idempotent
	require.Equal(t, res.Findings, a.Analyze(t.Context(), file, ""))
}

func TestAnalyze_PythonInput(t *testing.T) {
	t.Parallel()

	a := analyzer.New(nil, nil)
	file := model.NewSourceFile("main.py", []byte("a = input()\nb = input()\nc = input()\n"))
	findings := a.Analyze(t.Context(), file, "")
	require.Len(t, findings, 3)
	for i, f := range findings {
		require.Equal(t, "validate-input", f.Rule)
		require.Equal(t, model.SeverityMedium, f.Severity)
		require.Equal(t, i+1, f.Line)
	}
}

func TestAnalyze_RemoteOK(t *testing.T) {
	t.Parallel()

	r := &fakeRemote{raw: `Sure! Here you go: [{"severity":"high","message":"x","line":"5","rule":"r"}]`}
	a := analyzer.New(r, analyzer.StaticCredential("key"), analyzer.WithDefaultModel("default/model"))
	res := a.Run(t.Context(), model.NewSourceFile("app.ts", []byte(jsSample)), "")

	require.Equal(t, analyzer.RemoteOK, res.State)
	require.NoError(t, res.Cause)
	require.Equal(t, "default/model", res.Model)
	require.Equal(t, "default/model", r.model)
	require.Equal(t, "ts", r.hint)
	require.Equal(t, []model.Finding{{Severity: model.SeverityHigh, Message: "x", Line: 5, Rule: "r"}}, res.Findings)
	require.EqualValues(t, 1, r.calls.Load())
}

func TestAnalyze_RemoteEmpty(t *testing.T) {
	t.Parallel()

	r := &fakeRemote{raw: "[]"}
	res := analyzer.New(r, analyzer.StaticCredential("key")).Run(t.Context(), model.NewSourceFile("app.js", []byte(jsSample)), "m")
	require.Equal(t, analyzer.RemoteOK, res.State)
	require.NotNil(t, res.Findings)
	require.Empty(t, res.Findings)
}

func TestAnalyze_Fallback(t *testing.T) {
	t.Parallel()

	file := model.NewSourceFile("app.js", []byte(jsSample))
	expected := rules.Scan(file.Text(), file.Language())

	var testCases = []struct {
		scenario string
		raw      string
		err      error
		then     error
	}{
		{"unauthorized", "", &model.StatusError{Code: 401, Kind: model.ErrUnauthorized}, model.ErrUnauthorized},
		{"rate limited", "", &model.StatusError{Code: 429, Kind: model.ErrRateLimited}, model.ErrRateLimited},
		{"transport", "", model.ErrTransport, model.ErrTransport},
		{"empty response", "", model.ErrEmptyResponse, model.ErrEmptyResponse},
		{"missing credential", "", model.ErrMissingCredential, model.ErrMissingCredential},
		{"unexpected error", "", errors.New("boom"), model.ErrTransport},
		{"unparsable", "I can't help with that", nil, model.ErrUnparsableResponse},
		{"invalid shape", `[{"message":"no severity","line":1}]`, nil, model.ErrInvalidFindingShape},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			r := &fakeRemote{raw: tt.raw, err: tt.err}
			res := analyzer.New(r, analyzer.StaticCredential("key")).Run(t.Context(), file, "m")
			require.Equal(t, analyzer.Fallback, res.State)
			require.ErrorIs(t, res.Cause, tt.then)
			require.True(t, analyzer.IsFallbackCause(res.Cause))
			require.Equal(t, expected, res.Findings)
			require.EqualValues(t, 1, r.calls.Load())
		})
	}
}

func TestAnalyze_HTTP429(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"Rate limit exceeded: free-models-per-day"}}`)
	}))
	t.Cleanup(srv.Close)

	file := model.NewSourceFile("app.py", []byte("x = input()\nexec(x)\n"))
	client := remote.NewClient(remote.WithEndpoint(srv.URL))
	a := analyzer.New(client, analyzer.StaticCredential("key"))

	res := a.Run(t.Context(), file, "")
	require.Equal(t, analyzer.Fallback, res.State)
	require.ErrorIs(t, res.Cause, model.ErrRateLimited)
	require.Equal(t, rules.Scan(file.Text(), file.Language()), res.Findings)
	require.EqualValues(t, 1, hits.Load())
}

func TestCredentials(t *testing.T) {
	t.Setenv("SNIFFER_TEST_EMPTY", "")
	t.Setenv("SNIFFER_TEST_KEY", "sk-1")

	c, ok := analyzer.EnvCredential("SNIFFER_TEST_MISSING", "SNIFFER_TEST_EMPTY", "SNIFFER_TEST_KEY").Credential(t.Context())
	require.True(t, ok)
	require.Equal(t, "sk-1", c)

	_, ok = analyzer.EnvCredential("SNIFFER_TEST_MISSING").Credential(t.Context())
	require.False(t, ok)

	_, ok = analyzer.NoCredential.Credential(t.Context())
	require.False(t, ok)

	var calls int
	cached := analyzer.Cached(analyzer.CredentialFunc(func(context.Context) (string, bool) {
		calls++
		return "once", true
	}))
	for range 3 {
		c, ok := cached.Credential(t.Context())
		require.True(t, ok)
		require.Equal(t, "once", c)
	}
	require.Equal(t, 1, calls)
}

func TestState(t *testing.T) {
	t.Parallel()
	require.Equal(t, "remote_ok", analyzer.RemoteOK.String())
	require.Equal(t, "local_only", analyzer.LocalOnly.String())
	require.Equal(t, "fallback", analyzer.Fallback.String())
}
