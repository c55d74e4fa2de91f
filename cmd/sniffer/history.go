package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/CZERTAINLY/Sniffer/internal/history"
	"github.com/CZERTAINLY/Sniffer/internal/model"
	"github.com/CZERTAINLY/Sniffer/internal/report"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit    int
		user     string
		allUsers bool
		asJSON   bool
	)
	historyUser := func() string {
		if allUsers {
			return ""
		}
		if user != "" {
			return user
		}
		return config.History.HistoryUser()
	}
	withStore := func(fn func(*history.BoltStore, *cobra.Command, []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			store, err := localHistory(config.History)
			if err != nil {
				return fmt.Errorf("opening history: %w", err)
			}
			defer func() {
				_ = store.Close()
			}()
			return fn(store, cmd, args)
		}
	}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "list, search and manage results of past analyses",
	}
	cmd.PersistentFlags().StringVar(&user, "user", "", "history of given user, default is history.user from config or $USER")
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print records as JSON")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list the latest analyses, newest first",
		Args:  cobra.NoArgs,
		RunE: withStore(func(store *history.BoltStore, cmd *cobra.Command, _ []string) error {
			recs, err := store.List(cmd.Context(), historyUser(), limit)
			if err != nil {
				return err
			}
			return printRecords(cmd.OutOrStdout(), recs, asJSON)
		}),
	}
	listCmd.Flags().IntVarP(&limit, "limit", "n", history.DefaultLimit, "maximum number of records")

	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "full text search over file names, messages and rules",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(store *history.BoltStore, cmd *cobra.Command, args []string) error {
			recs, err := store.Search(cmd.Context(), args[0], historyUser(), limit)
			if err != nil {
				return err
			}
			return printRecords(cmd.OutOrStdout(), recs, asJSON)
		}),
	}
	searchCmd.Flags().IntVarP(&limit, "limit", "n", history.DefaultLimit, "maximum number of records")
	searchCmd.Flags().BoolVar(&allUsers, "all-users", false, "search records of all users")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "show findings of one analysis",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(store *history.BoltStore, cmd *cobra.Command, args []string) error {
			rec, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return encodeJSON(out, rec)
			}
			_, err = fmt.Fprintf(out, "%s %s %s (%s)\n", rec.ID, rec.CreatedAt.Local().Format(time.DateTime), rec.FileName, rec.State)
			if err != nil {
				return err
			}
			return report.Text(out, []report.File{{Name: rec.FileName, Strategy: rec.State, Model: rec.Model, Findings: rec.Findings}})
		}),
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "delete one analysis",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(store *history.BoltStore, cmd *cobra.Command, args []string) error {
			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return err
		}),
	}

	cmd.AddCommand(listCmd, searchCmd, showCmd, deleteCmd)
	return cmd
}

func printRecords(w io.Writer, recs []history.Record, asJSON bool) error {
	if asJSON {
		return encodeJSON(w, recs)
	}
	if len(recs) == 0 {
		_, err := fmt.Fprintln(w, "No history records found")
		return err
	}
	table := tablewriter.NewWriter(w)
	table.Header([]string{"ID", "Created", "File", "Strategy", "High", "Medium", "Low"})
	for _, rec := range recs {
		counts := model.CountBySeverity(rec.Findings)
		err := table.Append([]string{
			rec.ID,
			rec.CreatedAt.Local().Format(time.DateTime),
			rec.FileName,
			rec.State,
			strconv.Itoa(counts[model.SeverityHigh]),
			strconv.Itoa(counts[model.SeverityMedium]),
			strconv.Itoa(counts[model.SeverityLow]),
		})
		if err != nil {
			return fmt.Errorf("rendering table: %w", err)
		}
	}
	return table.Render()
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
