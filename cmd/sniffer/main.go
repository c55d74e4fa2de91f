package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/CZERTAINLY/Sniffer/internal/log"
	"github.com/CZERTAINLY/Sniffer/internal/model"
	"gopkg.in/yaml.v3"

	"github.com/spf13/cobra"
)

var (
	userConfigPath string // /default/config/path/sniffer on given OS
	configPath     string // actual config file used (if loaded)
	config         model.Config
	logOutput      io.Closer

	flagConfigFilePath string // value of --config flag
	flagVerbose        bool   // value of --verbose flag
)

func init() {
	d, err := os.UserConfigDir()
	if err != nil {
		panic(err)
	}
	userConfigPath = filepath.Join(d, "sniffer")
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errThreshold) {
			slog.Error("sniffer failed", "err", err)
		}
		closeLog()
		os.Exit(exitCode(err))
	}
	closeLog()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "sniffer",
		Short:        "Tool detecting security code smells in JavaScript, Python and Java sources",
		SilenceUsage: true,
		// never print messages
		SilenceErrors: true,
		// parse or create a config, setup logging
		PersistentPreRunE: initSniffer,
	}

	// root flags
	rootCmd.PersistentFlags().StringVar(&flagConfigFilePath, "config", "", "Config file to load - default is sniffer.yaml in current directory or in "+userConfigPath)
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")

	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newMCPCmd())
	rootCmd.AddCommand(newRulesCmd())
	rootCmd.AddCommand(newModelsCmd())
	rootCmd.AddCommand(versionCmd)
	return rootCmd
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provide version of a sniffer",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		info, ok := debug.ReadBuildInfo()
		if !ok {
			_, _ = fmt.Fprintln(out, "sniffer: version info not available")
			return
		}

		if configPath != "" {
			_, _ = fmt.Fprintf(out, "config:  %s\n", configPath)
		}
		_, _ = fmt.Fprintf(out, "sniffer: %s\n", info.Main.Version)
		_, _ = fmt.Fprintf(out, "go:      %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				_, _ = fmt.Fprintf(out, "commit:  %s\n", s.Value)
			case "vcs.time":
				_, _ = fmt.Fprintf(out, "date:    %s\n", s.Value)
			case "vcs.modified":
				_, _ = fmt.Fprintf(out, "dirty:   %s\n", s.Value)
			}
		}
		_, _ = fmt.Fprintln(out)
	},
}

func initSniffer(cmd *cobra.Command, _ []string) error {
	if envConfig, ok := os.LookupEnv("SNIFFERCONFIG"); ok {
		configPath = envConfig
	} else if flagConfigFilePath != "" {
		configPath = flagConfigFilePath
	} else {
		for _, d := range []string{".", userConfigPath} {
			path := filepath.Join(d, "sniffer.yaml")
			if exists(path) {
				configPath = path
				break
			}
		}
	}

	// store default configuration
	if configPath == "" {
		config = model.DefaultConfig(context.Background())
		configPath = filepath.Join(userConfigPath, "sniffer.yaml")
		if err := storeConfig(configPath, config); err != nil {
			// read-only home is not fatal, defaults are in use
			slog.Warn("can't store default configuration", "path", configPath, "error", err)
			configPath = ""
		}
	} else {
		f, err := os.Open(configPath)
		if err != nil {
			return fmt.Errorf("opening config file: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		cfg, err := model.LoadConfig(f)
		if err != nil {
			for _, d := range model.CueErrDetails(err) {
				slog.Error("invalid configuration", d.Attr("detail"))
			}
			return fmt.Errorf("parsing config: %w", err)
		}
		config = *cfg
	}

	// --verbose has a precedence over config file
	if flagVerbose {
		config.Service.Verbose = true
	}

	// initialize logging
	w, err := log.Open(config.Service.Log)
	if err != nil {
		return err
	}
	logOutput = w
	slog.SetDefault(log.New(config.Service.Verbose, w))

	slog.Debug("sniffer run", "configPath", configPath)
	slog.Debug("sniffer run", "config", config)
	return nil
}

func storeConfig(path string, cfg model.Config) error {
	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return fmt.Errorf("creating directory %s: %w", filepath.Dir(path), err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("storing configuration: %w", err)
	}
	return enc.Close()
}

func closeLog() {
	if logOutput != nil {
		_ = logOutput.Close()
	}
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func buildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" {
		return "unknown"
	}
	return info.Main.Version
}
