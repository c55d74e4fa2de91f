package model_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/CZERTAINLY/Sniffer/internal/model"

	"github.com/stretchr/testify/require"
)

func TestParseSeverity(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		scenario string
		given    string
		then     model.Severity
	}{
		{"high", "high", model.SeverityHigh},
		{"upper case", "HIGH", model.SeverityHigh},
		{"critical", "critical", model.SeverityHigh},
		{"medium", " Medium ", model.SeverityMedium},
		{"warning", "warning", model.SeverityMedium},
		{"low", "low", model.SeverityLow},
		{"info", "info", model.SeverityLow},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			s, err := model.ParseSeverity(tt.given)
			require.NoError(t, err)
			require.Equal(t, tt.then, s)
		})
	}

	_, err := model.ParseSeverity("urgent")
	require.Error(t, err)
	_, err = model.ParseSeverity("")
	require.Error(t, err)
}

func TestFilterSeverity(t *testing.T) {
	t.Parallel()

	findings := []model.Finding{
		{Severity: model.SeverityHigh, Message: "a", Line: 1},
		{Severity: model.SeverityLow, Message: "b", Line: 2},
		{Severity: model.SeverityMedium, Message: "c", Line: 3},
		{Severity: model.SeverityLow, Message: "d", Line: 4},
	}

	require.Equal(t, findings, model.FilterSeverity(findings))
	low := model.FilterSeverity(findings, model.SeverityLow)
	require.Len(t, low, 2)
	require.Equal(t, "b", low[0].Message)
	require.Equal(t, "d", low[1].Message)
	require.Len(t, model.FilterSeverity(findings, model.SeverityHigh, model.SeverityMedium), 2)

	require.Equal(t, map[model.Severity]int{
		model.SeverityHigh:   1,
		model.SeverityMedium: 1,
		model.SeverityLow:    2,
	}, model.CountBySeverity(findings))

	require.True(t, model.AtLeast(findings, model.SeverityHigh))
	require.False(t, model.AtLeast(low, model.SeverityMedium))
}

func TestSourceFile(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		scenario string
		name     string
		lang     model.Language
		hint     string
	}{
		{"js", "app.js", model.LanguageJavaScript, "js"},
		{"upper tsx", "Component.TSX", model.LanguageJavaScript, "tsx"},
		{"python", "dir.v2/main.py", model.LanguagePython, "py"},
		{"java", "Main.java", model.LanguageJava, "java"},
		{"go", "main.go", model.LanguageUnknown, ""},
		{"no extension", "Makefile", model.LanguageUnknown, ""},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			f, err := model.ReadSourceFile(tt.name, strings.NewReader("x = 1\n"))
			require.NoError(t, err)
			require.Equal(t, tt.lang, f.Language())
			require.Equal(t, tt.hint, f.LanguageHint())
			require.Equal(t, "x = 1\n", f.Text())
		})
	}
}

func TestReadSourceFile_Binary(t *testing.T) {
	t.Parallel()

	_, err := model.ReadSourceFile("a.js", strings.NewReader("var a\x00b"))
	require.ErrorIs(t, err, model.ErrNotText)

	_, err = model.ReadSourceFile("a.js", strings.NewReader("\xff\xfe"))
	require.ErrorIs(t, err, model.ErrNotText)
}

func TestStatusError(t *testing.T) {
	t.Parallel()

	var err error = &model.StatusError{Code: 429, Message: "slow down", Kind: model.ErrRateLimited}
	require.ErrorIs(t, err, model.ErrRateLimited)
	require.False(t, errors.Is(err, model.ErrTransport))
	require.EqualError(t, err, "rate limited: status 429: slow down")
}
