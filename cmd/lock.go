package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jake-scott/smartrent-lock/internal/pkg/logging"
	"github.com/jake-scott/smartrent-lock/internal/pkg/smartrent"
)

var lockCmd = &cobra.Command{
	Use:   "lock <device-id>",
	Short: "Lock a door and wait for SmartRent to confirm",
	Args:  cobra.ExactArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		return doLockCommand(cmd.Context(), args[0], smartrent.LockCommand)
	},
}

var unlockCmd = &cobra.Command{
	Use:   "unlock <device-id>",
	Short: "Unlock a door and wait for SmartRent to confirm",
	Args:  cobra.ExactArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		return doLockCommand(cmd.Context(), args[0], smartrent.UnlockCommand)
	},
}

func init() {
	rootCmd.AddCommand(lockCmd)
	rootCmd.AddCommand(unlockCmd)
}

func doLockCommand(ctx context.Context, arg string, build func(int) smartrent.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}

	deviceID, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Errorf("device id must be an integer, got %q", arg)
	}

	client, err := clientFromConfig()
	if err != nil {
		return err
	}

	ctx = logging.WithTxnID(ctx, uuid.New().String())
	cmd := build(deviceID)

	if err := client.Do(ctx, cmd); err != nil {
		return err
	}

	fmt.Printf("device %d: %s=%s ok\n", deviceID, cmd.Attribute, cmd.Value)
	return nil
}
