package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var _locksCmdOpts struct {
	asJSON bool
}

var locksCmd = &cobra.Command{
	Use:   "locks",
	Short: "List the locks on the SmartRent account",
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		return doLocks(cmd.Context())
	},
}

func init() {
	locksCmd.Flags().BoolVar(&_locksCmdOpts.asJSON, "json", false, "Return locks as JSON")

	rootCmd.AddCommand(locksCmd)
}

type lockResult struct {
	DeviceID    int    `json:"device_id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

func doLocks(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := clientFromConfig()
	if err != nil {
		return err
	}

	locks, err := client.ListLocks(ctx)
	if err != nil {
		return err
	}

	if _locksCmdOpts.asJSON {
		results := make([]lockResult, 0, len(locks))
		for _, l := range locks {
			results = append(results, lockResult{DeviceID: l.DeviceID, Name: l.Name, DisplayName: l.DisplayName()})
		}
		return printJSON(results)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "DEVICE\tNAME")
	for _, l := range locks {
		fmt.Fprintf(tw, "%d\t%s\n", l.DeviceID, l.DisplayName())
	}
	return tw.Flush()
}
