package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/smartrent-lock/internal/pkg/credentials"
	"github.com/jake-scott/smartrent-lock/internal/pkg/logging"
	"github.com/jake-scott/smartrent-lock/internal/pkg/smartrent"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Check a SmartRent login and save it to the credentials file",
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		return doLogin(cmd.Context())
	},

	PreRunE: func(cmd *cobra.Command, args []string) error {
		return checkRequiredFlags("smartrent.email", "smartrent.password")
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func doLogin(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	fileName, err := stateFile("credentials.file", "credentials.json")
	if err != nil {
		return err
	}
	store := credentials.NewFileStore(fileName)

	creds := smartrent.Credentials{
		Username: viper.GetString("smartrent.email"),
		Password: viper.GetString("smartrent.password"),
	}

	// only a login that works gets written out
	if err := newClient(store).Login(ctx, creds); err != nil {
		return err
	}

	logging.Logger(ctx).Infof("saved login for %s to %s", logging.Redact(creds.Username), fileName)
	fmt.Printf("Logged in, credentials saved to %s\n", fileName)
	return nil
}
