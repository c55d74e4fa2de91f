package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/CZERTAINLY/Sniffer/internal/log"
	"github.com/CZERTAINLY/Sniffer/internal/report"
	"github.com/CZERTAINLY/Sniffer/internal/walk"
	"github.com/CZERTAINLY/Sniffer/internal/watch"

	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	var (
		flags    analyzeFlags
		debounce = watch.DefaultDebounce
	)
	cmd := &cobra.Command{
		Use:   "watch [paths]",
		Short: "re-analyze source files whenever they change, default is the current directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := log.ContextAttrs(cmd.Context(), slog.Group("sniffer",
				slog.String("cmd", "watch"),
				slog.Int("pid", os.Getpid()),
			))
			if len(args) == 0 {
				args = []string{"."}
			}
			format, err := report.ParseFormat(flags.format)
			if err != nil {
				return err
			}
			severities, err := parseSeverities(flags.severities)
			if err != nil {
				return err
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

			w, err := watch.New(sniffer.filter, debounce, args...)
			if err != nil {
				return err
			}
			defer func() {
				_ = w.Close()
			}()

			out := cmd.OutOrStdout()
			return w.Run(ctx, func(ctx context.Context, paths []string) {
				files, err := sniffer.Run(ctx, flags.model, walk.Paths(ctx, paths...))
				if err != nil {
					slog.ErrorContext(ctx, "analysis failed", "error", err)
				}
				if len(files) == 0 {
					return
				}
				if err := report.Write(out, format, filterFiles(files, severities)); err != nil {
					slog.ErrorContext(ctx, "writing report failed", "error", err)
				}
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.model, "model", "", "remote model id, default is remote.model from config")
	f.StringVarP(&flags.format, "format", "f", string(report.FormatText), "output format: text, json or cyclonedx")
	f.StringSliceVarP(&flags.severities, "severity", "s", nil, "report only given severities (low, medium, high), can be repeated")
	f.BoolVar(&flags.secrets, "secrets", false, "detect leaked secrets with gitleaks rules")
	f.BoolVar(&flags.noHistory, "no-history", false, "do not store results in history")
	f.DurationVar(&debounce, "debounce", debounce, "quiet period before changed files are analyzed")
	return cmd
}
