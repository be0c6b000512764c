package cmd

import (
	"fmt"
	"os"
	"slices"

	"informatik-booking/internal/access"
	"informatik-booking/internal/jwt"

	"github.com/spf13/cobra"
)

var tokenTTL uint

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage admin bearer tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue <email>",
	Short: "Print an admin bearer token for email",
	Long: `Signs a bearer token for the given identity. The token only grants
write access when the identity holds the admin role.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		quietLogger()

		if err := access.ValidEmail(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid email %q: %v\n", args[0], err)
			os.Exit(1)
		}

		rbac, err := LoadAccessRBAC(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading RBAC policy: %v\n", err)
			os.Exit(1)
		}
		if roles := rbac.GetUserRoles(args[0]); !slices.Contains(roles, access.RoleAdmin) {
			fmt.Fprintf(os.Stderr, "Warning: %s holds roles %v; the token will not grant write access.\n", args[0], roles)
		}

		ttl := tokenTTL
		if ttl == 0 {
			ttl = cfg.AdminTokenTTL
		}

		token, err := jwt.GenerateJWT(jwt.NewAdminClaim(args[0], ttl))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error signing token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenIssueCmd)
	tokenIssueCmd.Flags().UintVar(&tokenTTL, "ttl", 0, "token lifetime in minutes (default admin_token_ttl)")
}
