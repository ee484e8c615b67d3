package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/nijaru/yt-summary/config"
)

func newConfigCommand(load configLoader) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return errors.Wrap(err, "load configuration")
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderConfig(cfg))
			return nil
		},
	})

	return configCmd
}

func renderConfig(cfg *config.Config) string {
	lengths := make([]string, len(cfg.AllowedLengths))
	for i, n := range cfg.AllowedLengths {
		lengths[i] = strconv.Itoa(n)
	}

	rows := [][]string{
		{"version", cfg.Version},
		{"server_port", cfg.ServerPort},
		{"rate_limit", fmt.Sprintf("%d per %s", cfg.RateLimit, cfg.RateLimitInterval)},
		{"log_dir", cfg.LogDir},
		{"log_level", cfg.LogLevel},
		{"temp_dir", cfg.TempRoot()},
		{"max_video_length", strconv.Itoa(cfg.MaxVideoLength)},
		{"keyframe_interval", strconv.Itoa(cfg.KeyframeInterval)},
		{"max_keyframes", strconv.Itoa(cfg.MaxKeyframes)},
		{"subtitle_max_length", strconv.Itoa(cfg.SubtitleMaxLength)},
		{"allowed_languages", strings.Join(cfg.AllowedLanguages, ",")},
		{"default_language", cfg.DefaultLanguage},
		{"allowed_lengths", strings.Join(lengths, ",")},
		{"default_length", strconv.Itoa(cfg.DefaultLength)},
		{"ytdlp_path", cfg.YtDlpPath},
		{"ffmpeg_path", cfg.FFmpegPath},
		{"gemini_path", cfg.GeminiPath},
		{"gemini_model", cfg.GeminiModel},
		{"summary_backend", cfg.SummaryBackend},
		{"google_api_key", maskSecret(cfg.GoogleAPIKey)},
		{"subtitle_timeout", cfg.SubtitleTimeout.String()},
		{"download_timeout", cfg.DownloadTimeout.String()},
		{"sample_timeout", cfg.SampleTimeout.String()},
		{"summarize_timeout", cfg.SummarizeTimeout.String()},
		{"sweep_stale_after", cfg.SweepStaleAfter.String()},
	}
	return renderTable([]string{"Key", "Value"}, rows, nil)
}

func maskSecret(s string) string {
	if s == "" {
		return "(unset)"
	}
	if len(s) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
