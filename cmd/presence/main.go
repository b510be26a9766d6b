package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	debugFlag bool
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "presence",
		Short:         "Score the online presence of a person or business",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	root.PersistentFlags().BoolVar(&debugFlag, "debug", false, "verbose logging and per-source diagnostics")

	root.AddCommand(analyzeCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(sourcesCmd())

	return root
}

func analyzeCmd() *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze [query...]",
		Short: "Analyze one person or business and print the report",
		Example: `  presence analyze Dr. Jane Smith cardiologist in Chicago
  presence analyze "Main Street Pizza" --city Boston --json
  presence analyze --name "Jane Doe" --company Acme --csv jane.csv --notify`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), cmd.OutOrStdout(), args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "person or business name")
	cmd.Flags().StringVar(&opts.company, "company", "", "company the subject is associated with")
	cmd.Flags().StringVar(&opts.city, "city", "", "city or region")
	cmd.Flags().StringVar(&opts.profession, "profession", "", "profession or business category")
	cmd.Flags().BoolVar(&opts.json, "json", false, "output the full report as JSON")
	cmd.Flags().StringVar(&opts.csvPath, "csv", "", "also write sources and reviews to this CSV file")
	cmd.Flags().BoolVar(&opts.notify, "notify", false, "send the summary to the configured alert destinations")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard and JSON API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func sourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the data sources enabled by the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSources(cmd.OutOrStdout())
		},
	}
}
