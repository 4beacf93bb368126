package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "paperdigest",
		Short: "Track new research papers and deliver personalized briefings",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(ingestCmd())
	root.AddCommand(summarizeCmd())
	root.AddCommand(deliverCmd())
	root.AddCommand(runCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(statusCmd())

	return root
}

func ingestCmd() *cobra.Command {
	var sources []string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch papers from sources into the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(sources)
		},
	}

	cmd.Flags().StringSliceVar(&sources, "source", nil, "specific sources to ingest (e.g., arxiv,openreview,rss)")
	return cmd
}

func summarizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summarize",
		Short: "Generate briefings for matched papers lacking one",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummarize()
		},
	}
}

func deliverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deliver",
		Short: "Allocate and send pending briefings to subscribers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeliver()
		},
	}
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server without the scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show catalog, summary, and delivery counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
}
