package main

import (
	"fmt"
	"strings"

	"github.com/CZERTAINLY/Sniffer/internal/model"
	"github.com/CZERTAINLY/Sniffer/internal/remote"
	"github.com/CZERTAINLY/Sniffer/internal/rules"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules [language]",
		Short: "print the local rule catalog, optionally of one language (javascript, python, java)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			langs := rules.Languages()
			if len(args) == 1 {
				lang := model.Language(strings.ToLower(args[0]))
				if ext := model.LanguageOf(args[0]); ext != model.LanguageUnknown {
					lang = ext
				}
				if len(rules.Rules(lang)) == 0 {
					return fmt.Errorf("unknown language %q, use one of %v", args[0], langs)
				}
				langs = []model.Language{lang}
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header([]string{"Language", "Rule", "Severity", "Mode", "Pattern", "Message"})
			for _, lang := range langs {
				for _, r := range rules.Rules(lang) {
					err := table.Append([]string{
						string(lang),
						r.ID,
						string(r.Severity),
						r.Mode.String(),
						r.Pattern.String(),
						r.Message,
					})
					if err != nil {
						return err
					}
				}
			}
			return table.Render()
		},
	}
}

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "print known remote model ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header([]string{"Model", "Name", "Default"})
			for _, m := range remote.Models {
				def := ""
				if m.ID == config.Remote.Model {
					def = "*"
				}
				if err := table.Append([]string{m.ID, m.Name, def}); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}
}
