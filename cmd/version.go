package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jake-scott/smartrent-lock/version"
)

var _versionCmdOpts struct {
	asJSON bool
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the version number of the tool",
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		return doVersion()
	},
}

func init() {
	versionCmd.Flags().BoolVar(&_versionCmdOpts.asJSON, "json", false, "Return version as JSON")

	rootCmd.AddCommand(versionCmd)
}

type versionResult struct {
	Version   string `json:"version"`
	UserAgent string `json:"user_agent"`
}

func doVersion() error {
	if _versionCmdOpts.asJSON {
		return printJSON(versionResult{
			Version:   version.Version,
			UserAgent: version.UserAgent(),
		})
	}

	fmt.Printf("smartrent-lock version %s\n", version.Version)
	return nil
}

func printJSON(v interface{}) error {
	b, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}

	fmt.Println(string(b))
	return nil
}
