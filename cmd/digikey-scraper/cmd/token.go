package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the cached OAuth token",
	}
	cmd.AddCommand(tokenRefreshCmd())

	return cmd
}

func tokenRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Force a new token fetch and update the token file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			_, provider, err := buildClient(cfg)
			if err != nil {
				return err
			}

			cred, err := provider.Refresh(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("token refreshed, expires in %ds (stored at %s)\n",
				cred.ExpiresIn, cfg.TokenFilePath())
			return nil
		},
	}
}
