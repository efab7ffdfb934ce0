package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"ipkv/internal/server"
	"ipkv/internal/shared"
	"ipkv/internal/uploader"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath string
	action     string
	key        string
	getOnly    bool
	statsOnly  bool
)

var rootCmd = &cobra.Command{
	Use:   "ipkv-upload [file]",
	Short: "Upload an endpoint list to an ipkv server",
	Long: `Reads newline-delimited entries from file (or stdin when file is "-" or
omitted) and uploads them with the configured action.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&configPath, "config", "./uploader.json", "path to uploader config json")
	f.StringVar(&action, "action", "", `"replace" or "append" (overrides config)`)
	f.StringVar(&key, "key", "", "store key (overrides config)")
	f.BoolVar(&getOnly, "get", false, "print the stored list instead of uploading")
	f.BoolVar(&statsOnly, "stats", false, "print list stats instead of uploading")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func readEntries(args []string) ([]string, error) {
	var r io.Reader = os.Stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return server.Parse(string(b)), nil
}

func run(cmd *cobra.Command, args []string) error {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	cfg, err := shared.LoadUploaderConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", configPath, err)
	}
	if action != "" {
		cfg.Action = action
	}
	if key != "" {
		cfg.Key = key
	}

	u, err := uploader.New(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	switch {
	case getOnly:
		ips, err := u.FetchList(ctx)
		if err != nil {
			return err
		}
		fmt.Println(strings.Join(ips, "\n"))
		return nil
	case statsOnly:
		st, err := u.Stats(ctx)
		if err != nil {
			return err
		}
		log.Info().Int("total", st.TotalIPs).Float64("size_mb", st.ContentSizeMB).Strs("sample", st.SampleIPs).Msg("stats")
		return nil
	}

	ips, err := readEntries(args)
	if err != nil {
		return err
	}
	log.Info().Int("entries", len(ips)).Str("key", cfg.Key).Str("action", cfg.Action).Msg("uploading")

	data, msg, err := u.Upload(ctx, ips, cfg.Action)
	if err != nil {
		return err
	}
	log.Info().Str("key", data.Key).Int("count", data.Count).Msg(msg)
	return nil
}
