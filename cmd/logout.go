package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docchat/docchat/internal/config"
	"github.com/docchat/docchat/internal/session"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the local credential and session identity",
	Long: `Forget the locally persisted session identity. Documents already
uploaded stay scoped to the old identity; the next run starts fresh.
Under the delegated-session strategy the identity provider's session is
ended by its own logout page, not by this command.`,
	RunE: runLogout,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(cmd *cobra.Command, args []string) error {
	stateDir, err := config.Dir()
	if err != nil {
		return err
	}
	if err := session.Clear(stateDir); err != nil {
		return err
	}
	fmt.Println("Signed out. A fresh session identity will be created on the next run.")
	return nil
}
