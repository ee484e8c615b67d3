package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nijaru/yt-summary/config"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:           "yt-summary",
		Short:         "Summarize videos from their subtitles and keyframes",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	var load configLoader = func() (*config.Config, error) {
		return config.LoadConfig(configFlag)
	}

	rootCmd.AddCommand(newServeCommand(load))
	rootCmd.AddCommand(newSummarizeCommand(load))
	rootCmd.AddCommand(newConfigCommand(load))

	return rootCmd
}

type configLoader func() (*config.Config, error)
