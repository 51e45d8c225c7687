package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gomxbeacon/internal/app"
)

// cli holds flag values until they are merged over the config file
type cli struct {
	configPath string
	flags      app.Config
}

// flagOverrides copies a flag value into the resolved config when the flag
// was set on the command line
var flagOverrides = map[string]func(dst *app.Config, src app.Config){
	"csp":      func(dst *app.Config, src app.Config) { dst.CSP = src.CSP },
	"crc":      func(dst *app.Config, src app.Config) { dst.CRC = src.CRC },
	"verbose":  func(dst *app.Config, src app.Config) { dst.Verbose = src.Verbose },
	"input":    func(dst *app.Config, src app.Config) { dst.Input = src.Input },
	"encoding": func(dst *app.Config, src app.Config) { dst.Encoding = src.Encoding },
	"format":   func(dst *app.Config, src app.Config) { dst.Format = src.Format },
	"log-dir":  func(dst *app.Config, src app.Config) { dst.LogDir = src.LogDir },
	"utc":      func(dst *app.Config, src app.Config) { dst.LogRotateUTC = src.LogRotateUTC },
	"db":       func(dst *app.Config, src app.Config) { dst.DBPath = src.DBPath },
	"limit":    func(dst *app.Config, src app.Config) { dst.HistoryLimit = src.HistoryLimit },
}

// resolve builds the effective config: defaults, then the config file, then
// flags given explicitly
func (c *cli) resolve(cmd *cobra.Command) (app.Config, error) {
	config := app.DefaultConfig()
	if c.configPath != "" {
		loaded, err := app.LoadConfigFile(c.configPath)
		if err != nil {
			return config, err
		}
		config = loaded
	}

	for name, apply := range flagOverrides {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			apply(&config, c.flags)
		}
	}

	return config, config.Validate()
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	return newCLI().rootCmd(stdout)
}

func newCLI() *cli {
	return &cli{flags: app.DefaultConfig()}
}

func (c *cli) rootCmd(stdout io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gomxbeacon",
		Short: "GOMX-3 beacon decoder",
		Long: `Decoder for GOMX-3 beacon 0 telemetry frames.

Strips the optional CSP routing header and CRC trailer, validates the
payload and decodes the power, communications, onboard computer, attitude
control and ADS-B receiver blocks into JSON.

Example usage:
  gomxbeacon decode <base64 frame>
  gomxbeacon ingest --input pass.txt --log-dir ./beacons --db ./beacons.db
  gomxbeacon history --limit 5`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.flags.ShowVersion {
				app.ShowVersion(cmd.OutOrStdout())
				return nil
			}
			return cmd.Help()
		},
	}
	rootCmd.SetOut(stdout)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&c.configPath, "config", "c", "", "YAML config file")
	pf.BoolVar(&c.flags.CSP, "csp", c.flags.CSP, "Frames carry a 4-byte CSP routing header")
	pf.BoolVar(&c.flags.CRC, "crc", c.flags.CRC, "Frames carry a 4-byte CRC trailer")
	pf.BoolVarP(&c.flags.Verbose, "verbose", "v", false, "Verbose logging")
	rootCmd.Flags().BoolVar(&c.flags.ShowVersion, "version", false, "Show version information")

	decodeCmd := &cobra.Command{
		Use:   "decode [FRAME...]",
		Short: "Decode frames and print them as JSON",
		Long: `Decode frames given as arguments, or one per line from --input
(default stdin). Blank lines and lines starting with # are skipped.
Exits non-zero if any frame could not be decoded.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := c.resolve(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()
			return app.NewApplication(config).Decode(ctx, args, stdout)
		},
	}
	decodeCmd.Flags().StringVarP(&c.flags.Input, "input", "i", app.DefaultInput, "Frame file, - for stdin")
	decodeCmd.Flags().StringVarP(&c.flags.Encoding, "encoding", "e", app.DefaultEncoding, "Frame encoding: auto, base64 or hex")
	decodeCmd.Flags().StringVarP(&c.flags.Format, "format", "f", app.DefaultFormat, "Output format: json or jsonl")

	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Decode frames into daily beacon files and the history store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := c.resolve(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()
			return app.NewApplication(config).Ingest(ctx)
		},
	}
	ingestCmd.Flags().StringVarP(&c.flags.Input, "input", "i", app.DefaultInput, "Frame file, - for stdin")
	ingestCmd.Flags().StringVarP(&c.flags.Encoding, "encoding", "e", app.DefaultEncoding, "Frame encoding: auto, base64 or hex")
	ingestCmd.Flags().StringVarP(&c.flags.LogDir, "log-dir", "l", app.DefaultLogDir, "Beacon log directory")
	ingestCmd.Flags().BoolVarP(&c.flags.LogRotateUTC, "utc", "u", true, "Use UTC for log rotation")
	ingestCmd.Flags().StringVar(&c.flags.DBPath, "db", app.DefaultDBPath, "History database path")

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Print the most recently stored beacons",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := c.resolve(cmd)
			if err != nil {
				return err
			}
			return app.NewApplication(config).History(cmd.Context(), stdout)
		},
	}
	historyCmd.Flags().StringVar(&c.flags.DBPath, "db", app.DefaultDBPath, "History database path")
	historyCmd.Flags().IntVarP(&c.flags.HistoryLimit, "limit", "n", app.DefaultHistoryLimit, "Number of beacons to print")
	historyCmd.Flags().StringVarP(&c.flags.Format, "format", "f", app.DefaultFormat, "Output format: json or jsonl")

	rootCmd.AddCommand(decodeCmd, ingestCmd, historyCmd)

	return rootCmd
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
