package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/CZERTAINLY/Sniffer/internal/log"
	"github.com/CZERTAINLY/Sniffer/internal/model"
	"github.com/CZERTAINLY/Sniffer/internal/report"
	"github.com/CZERTAINLY/Sniffer/internal/walk"

	"github.com/spf13/cobra"
)

const stdinPath = "-"

type analyzeFlags struct {
	model      string
	format     string
	severities []string
	secrets    bool
	name       string
	noHistory  bool
	failOn     string
}

func newAnalyzeCmd() *cobra.Command {
	var flags analyzeFlags
	cmd := &cobra.Command{
		Use:   "analyze [paths|-]",
		Short: "analyze source files or directories, - reads the source from stdin",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doAnalyze(cmd, args, flags)
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.model, "model", "", "remote model id, default is remote.model from config")
	f.StringVarP(&flags.format, "format", "f", string(report.FormatText), "output format: text, json or cyclonedx")
	f.StringSliceVarP(&flags.severities, "severity", "s", nil, "report only given severities (low, medium, high), can be repeated")
	f.BoolVar(&flags.secrets, "secrets", false, "detect leaked secrets with gitleaks rules")
	f.StringVar(&flags.name, "name", "stdin", "file name used for a source read from stdin, its extension selects the language")
	f.BoolVar(&flags.noHistory, "no-history", false, "do not store results in history")
	f.StringVar(&flags.failOn, "fail-on", "", "exit with code 1 if any finding has at least this severity")
	return cmd
}

func doAnalyze(cmd *cobra.Command, args []string, flags analyzeFlags) error {
	ctx := log.ContextAttrs(cmd.Context(), slog.Group("sniffer",
		slog.String("cmd", "analyze"),
		slog.Int("pid", os.Getpid()),
	))

	format, err := report.ParseFormat(flags.format)
	if err != nil {
		return err
	}
	severities, err := parseSeverities(flags.severities)
	if err != nil {
		return err
	}
	var failOn model.Severity
	if flags.failOn != "" {
		failOn, err = model.ParseSeverity(flags.failOn)
		if err != nil {
			return fmt.Errorf("--fail-on: %w", err)
		}
	}

	sniffer, err := NewSniffer(ctx, config, snifferOptions{
		secrets:   flags.secrets,
		noHistory: flags.noHistory,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = sniffer.Close()
	}()

	var files []report.File
	var runErr error
	if len(args) == 1 && args[0] == stdinPath {
		b, err := readLimited(cmd.InOrStdin(), config.Scan.MaxFileSize)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		file, err := sniffer.Analyze(ctx, flags.name, b, flags.model)
		if err != nil {
			return err
		}
		files = []report.File{file}
	} else {
		files, runErr = sniffer.Run(ctx, flags.model, walk.Paths(ctx, args...))
	}

	if err := report.Write(cmd.OutOrStdout(), format, filterFiles(files, severities)); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}

	// --severity only limits the report, the threshold sees every finding
	if failOn != "" {
		for _, f := range files {
			if model.AtLeast(f.Findings, failOn) {
				return errThreshold
			}
		}
	}
	return nil
}

func parseSeverities(values []string) ([]model.Severity, error) {
	ret := make([]model.Severity, 0, len(values))
	for _, v := range values {
		s, err := model.ParseSeverity(v)
		if err != nil {
			return nil, fmt.Errorf("--severity: %w", err)
		}
		ret = append(ret, s)
	}
	return ret, nil
}
