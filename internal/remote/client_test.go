package remote_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/CZERTAINLY/Sniffer/internal/model"
	"github.com/CZERTAINLY/Sniffer/internal/remote"

	"github.com/stretchr/testify/require"
)

func TestRequestAnalysis(t *testing.T) {
	t.Parallel()

	var got struct {
		header http.Header
		body   map[string]any
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.header = r.Header.Clone()
		b, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := json.Unmarshal(b, &got.body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"[]"}}]}`)
	}))
	t.Cleanup(srv.Close)

	client := remote.NewClient(
		remote.WithEndpoint(srv.URL),
		remote.WithReferer("https://sniffer.example"),
	)
	text, err := client.RequestAnalysis(t.Context(), "eval(x)", "js", "some/model:free", "sk-test")
	require.NoError(t, err)
	require.Equal(t, "[]", text)

	require.Equal(t, "Bearer sk-test", got.header.Get("Authorization"))
	require.Equal(t, "application/json", got.header.Get("Content-Type"))
	require.Equal(t, "https://sniffer.example", got.header.Get("HTTP-Referer"))
	require.Equal(t, "Code Vulnerability Analyzer", got.header.Get("X-Title"))

	require.Equal(t, "some/model:free", got.body["model"])
	require.InDelta(t, 0.1, got.body["temperature"], 1e-9)
	require.InDelta(t, 2048, got.body["max_tokens"], 1e-9)
	messages, ok := got.body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 1)
	msg := messages[0].(map[string]any)
	require.Equal(t, "user", msg["role"])
	require.Equal(t, remote.Prompt("eval(x)", "js"), msg["content"])
}

func TestRequestAnalysis_Errors(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		scenario string
		status   int
		body     string
		then     error
		contains string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"No auth credentials found"}}`, model.ErrUnauthorized, "No auth credentials found"},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"Rate limit exceeded"}}`, model.ErrRateLimited, "Rate limit exceeded"},
		{"server error", http.StatusBadGateway, `upstream down`, model.ErrTransport, "upstream down"},
		{"bad request", http.StatusBadRequest, ``, model.ErrTransport, "Bad Request"},
		{"not json", http.StatusOK, `<html>`, model.ErrEmptyResponse, ""},
		{"no choices", http.StatusOK, `{"choices":[]}`, model.ErrEmptyResponse, ""},
		{"blank content", http.StatusOK, `{"choices":[{"message":{"content":"  "}}]}`, model.ErrEmptyResponse, ""},
		{"null content", http.StatusOK, `{"choices":[{"message":{"content":null}}]}`, model.ErrEmptyResponse, ""},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			t.Cleanup(srv.Close)

			client := remote.NewClient(remote.WithEndpoint(srv.URL))
			text, err := client.RequestAnalysis(t.Context(), "x", "", "m", "key")
			require.ErrorIs(t, err, tt.then)
			require.True(t, remote.IsRemoteError(err))
			require.Empty(t, text)
			if tt.contains != "" {
				require.ErrorContains(t, err, tt.contains)
			}
		})
	}
}

func TestRequestAnalysis_ContentParts(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":[{"type":"text","text":"[{\"severity\":"},{"type":"text","text":"\"low\"}]"}]}}]}`)
	}))
	t.Cleanup(srv.Close)

	text, err := remote.NewClient(remote.WithEndpoint(srv.URL)).RequestAnalysis(t.Context(), "x", "py", "m", "key")
	require.NoError(t, err)
	require.Equal(t, `[{"severity":"low"}]`, text)
}

func TestRequestAnalysis_MissingCredential(t *testing.T) {
	t.Parallel()

	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	t.Cleanup(srv.Close)

	_, err := remote.NewClient(remote.WithEndpoint(srv.URL)).RequestAnalysis(t.Context(), "x", "js", "m", " ")
	require.ErrorIs(t, err, model.ErrMissingCredential)
	require.False(t, called)
}

func TestRequestAnalysis_Transport(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(block)
		srv.Close()
	})

	client := remote.NewClient(remote.WithEndpoint(srv.URL), remote.WithTimeout(50*time.Millisecond))
	_, err := client.RequestAnalysis(t.Context(), "x", "js", "m", "key")
	require.ErrorIs(t, err, model.ErrTransport)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = remote.NewClient(remote.WithEndpoint(srv.URL)).RequestAnalysis(ctx, "x", "js", "m", "key")
	require.ErrorIs(t, err, model.ErrTransport)

	_, err = remote.NewClient(remote.WithEndpoint("http://127.0.0.1:1")).RequestAnalysis(t.Context(), "x", "js", "m", "key")
	require.ErrorIs(t, err, model.ErrTransport)
}

func TestPrompt(t *testing.T) {
	t.Parallel()

	p := remote.Prompt("print(1)", "py")
	require.Contains(t, p, "Analyze this py code and identify security issues:\n\n```py\nprint(1)\n```\n")
	require.Contains(t, p, `- severity: Must be exactly one of "high", "medium", or "low"`)
	require.Contains(t, p, "1. Return valid JSON and nothing else")
	require.True(t, strings.HasPrefix(p, "\nYou are a code security expert analyzing code for vulnerabilities.\n"))

	generic := remote.Prompt("x", "")
	require.Contains(t, generic, "Analyze this code and identify security issues:\n\n```\nx\n```\n")
}

func TestModels(t *testing.T) {
	t.Parallel()
	require.Len(t, remote.Models, 3)
	require.Equal(t, model.DefaultModel, remote.Models[0].ID)
}
