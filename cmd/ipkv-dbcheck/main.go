package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"ipkv/internal/server"

	"github.com/spf13/cobra"
)

var (
	dbPath string
	purge  bool
)

var rootCmd = &cobra.Command{
	Use:           "ipkv-dbcheck",
	Short:         "List the keys held in an ipkv SQLite store",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	defaultPath := os.Getenv("IPKV_DB_PATH")
	if defaultPath == "" {
		defaultPath = "./data/ipkv.db"
	}
	rootCmd.Flags().StringVar(&dbPath, "db-path", defaultPath, "SQLite database path")
	rootCmd.Flags().BoolVar(&purge, "purge", false, "delete expired rows first")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	db, err := server.OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("OpenDB %s: %w", dbPath, err)
	}
	defer db.Close()

	store := server.NewSQLiteStore(db)
	ctx := context.Background()

	if purge {
		n, err := store.PurgeExpired(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Purged %d expired rows\n", n)
	}

	keys, err := store.Keys(ctx)
	if err != nil {
		return err
	}

	fmt.Println("Keys:")
	for _, k := range keys {
		value, _, err := store.Get(ctx, k.Key)
		if err != nil {
			return err
		}
		expires := "never"
		if k.ExpiresAt != 0 {
			expires = time.Unix(k.ExpiresAt, 0).Format(time.RFC3339)
		}
		fmt.Printf(" - %s: %d bytes, %d entries, updated %s, expires %s\n",
			k.Key, k.Size, len(server.Parse(value)),
			time.Unix(k.UpdatedAt, 0).Format(time.RFC3339), expires)
	}
	fmt.Println("Total:", len(keys))
	return nil
}
