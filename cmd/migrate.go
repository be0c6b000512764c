package cmd

import (
	"context"
	"fmt"
	"os"

	"informatik-booking/internal/client"
	"informatik-booking/internal/storage"

	"github.com/spf13/cobra"
)

var (
	migrateForce  bool
	migrateRemote bool
	migrateToken  string
	migrateEmail  string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate <legacy.json>",
	Short: "Import a legacy slot cache into the store",
	Long: `Imports a calendar cache exported from the old booking page. The import
is skipped when the store was updated after the export, unless --force is given.

With --remote the import goes through the running server's API instead of
the local store and needs an admin token.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		quietLogger()

		if migrateRemote {
			migrateRemoteCache(ctx, args[0])
			return
		}

		f, err := os.Open(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening legacy file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()

		legacy, err := storage.ReadLegacy(f)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading legacy file: %v\n", err)
			os.Exit(1)
		}
		if len(legacy.Slots) == 0 {
			fmt.Println("Legacy file holds no slots, nothing to import.")
			return
		}

		imported, err := storage.ImportLegacy(ctx, openStorage(ctx), legacy, migrateForce)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error importing legacy data: %v\n", err)
			os.Exit(1)
		}
		if !imported {
			fmt.Printf("Store is newer than the export (%s), skipped. Use --force to import anyway.\n", legacy.LastUpdated)
			return
		}
		fmt.Printf("Imported %d slots.\n", len(legacy.Slots))
	},
}

// migrateRemoteCache copies the legacy file through the slot store API. The
// file is removed once the server accepted it.
func migrateRemoteCache(ctx context.Context, path string) {
	svc := client.NewDataService(cfg.Booking.ServerURL,
		client.WithLegacyCache(path),
		client.WithAdminToken(migrateToken),
	)
	migrated, err := svc.MigrateFromLocalStorage(ctx, migrateEmail)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error migrating legacy data: %v\n", err)
		os.Exit(1)
	}
	if !migrated {
		fmt.Println("Nothing migrated: the legacy file is empty or the server data is newer.")
		return
	}
	fmt.Printf("Migrated %s to %s.\n", path, cfg.Booking.ServerURL)
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().BoolVar(&migrateForce, "force", false, "import even when the store is newer")
	migrateCmd.Flags().BoolVar(&migrateRemote, "remote", false, "import through the server API at booking.server_url")
	migrateCmd.Flags().StringVar(&migrateToken, "token", "", "admin bearer token for --remote")
	migrateCmd.Flags().StringVar(&migrateEmail, "email", "", "identity sent along with --remote")
}
