package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/smartrent-lock/internal/pkg/credentials"
	"github.com/jake-scott/smartrent-lock/internal/pkg/logging"
	"github.com/jake-scott/smartrent-lock/internal/pkg/smartrent"
	"github.com/jake-scott/smartrent-lock/internal/pkg/widgets"
)

var _rootCmdOpts struct {
	cfgFile         string
	logLevel        string
	logFormat       string
	logLocation     string
	apiURL          string
	socketURL       string
	email           string
	password        string
	credentialsFile string
	widgetsFile     string
}

var rootCmd = &cobra.Command{
	Use:   "smartrent-lock",
	Short: "Lock and unlock SmartRent doors from the command line or a widget server",

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Configure(viper.GetViper())
	},
}

// Execute runs the selected command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func errPanic(err error) {
	if err != nil {
		panic(err)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&_rootCmdOpts.cfgFile, "config", "", "config file (default is $HOME/.smartrent-lock.yaml)")
	pf.StringVar(&_rootCmdOpts.logLevel, "log-level", "info", "log level: trace, debug, info, warn or error")
	pf.StringVar(&_rootCmdOpts.logFormat, "log-format", "text", "log format: text or json")
	pf.StringVar(&_rootCmdOpts.logLocation, "log-location", "stderr", "stdout, stderr or a file name")
	pf.StringVar(&_rootCmdOpts.apiURL, "api-url", smartrent.DefaultBaseURL, "SmartRent REST API base URL")
	pf.StringVar(&_rootCmdOpts.socketURL, "socket-url", smartrent.DefaultSocketURL, "SmartRent control socket URL")
	pf.Duration("api-timeout", time.Second*15, "maximum duration of a SmartRent API call, eg. 1m or 10s")
	pf.Duration("ack-timeout", smartrent.DefaultAckTimeout, "how long to wait for a lock command to be acknowledged, eg. 10s")
	pf.StringVar(&_rootCmdOpts.email, "email", "", "SmartRent account email")
	pf.StringVar(&_rootCmdOpts.password, "password", "", "SmartRent account password")
	pf.StringVar(&_rootCmdOpts.credentialsFile, "credentials-file", "", "file holding the SmartRent login (default is $HOME/.smartrent-lock/credentials.json)")
	pf.Duration("hold", widgets.DefaultHold, "how long a widget shows its press result, eg. 1s")
	pf.String("action", string(widgets.ActionUnlock), "what a widget press does: unlock or lock")
	pf.StringVar(&_rootCmdOpts.widgetsFile, "widgets-file", "", "file holding the widget to lock map (default is $HOME/.smartrent-lock/widgets.json)")

	errPanic(viper.GetViper().BindPFlag("logging.level", pf.Lookup("log-level")))
	errPanic(viper.GetViper().BindPFlag("logging.format", pf.Lookup("log-format")))
	errPanic(viper.GetViper().BindPFlag("logging.location", pf.Lookup("log-location")))
	errPanic(viper.GetViper().BindPFlag("smartrent.api-url", pf.Lookup("api-url")))
	errPanic(viper.GetViper().BindPFlag("smartrent.socket-url", pf.Lookup("socket-url")))
	errPanic(viper.GetViper().BindPFlag("smartrent.email", pf.Lookup("email")))
	errPanic(viper.GetViper().BindPFlag("smartrent.password", pf.Lookup("password")))
	errPanic(viper.GetViper().BindPFlag("credentials.file", pf.Lookup("credentials-file")))
	errPanic(viper.GetViper().BindPFlag("widgets.file", pf.Lookup("widgets-file")))
	errPanic(viper.GetViper().BindPFlag("widgets.hold", pf.Lookup("hold")))
	errPanic(viper.GetViper().BindPFlag("widgets.action", pf.Lookup("action")))
	errPanic(viper.GetViper().BindPFlag("smartrent.api-timeout", pf.Lookup("api-timeout")))
	errPanic(viper.GetViper().BindPFlag("smartrent.ack-timeout", pf.Lookup("ack-timeout")))
}

func initConfig() {
	if _rootCmdOpts.cfgFile != "" {
		viper.SetConfigFile(_rootCmdOpts.cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.SetConfigName(".smartrent-lock")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("SMARTRENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "reading config: %s\n", err)
			os.Exit(1)
		}
	} else {
		logging.Logger(nil).Debugf("using config file %s", viper.ConfigFileUsed())
	}
}

func checkRequiredFlags(needFlags ...string) error {
	missingFlags := []string{}

	for _, f := range needFlags {
		if !viper.IsSet(f) {
			missingFlags = append(missingFlags, f)
		}
	}

	if len(missingFlags) > 0 {
		itemPlural := "item"
		if len(missingFlags) > 1 {
			itemPlural = "items"
		}
		return fmt.Errorf("required config %s `%s` not set", itemPlural, strings.Join(missingFlags, "`, `"))
	}

	return nil
}

// stateFile resolves a file setting, defaulting to a file under
// $HOME/.smartrent-lock
func stateFile(key string, name string) (string, error) {
	if f := viper.GetString(key); f != "" {
		return homedir.Expand(f)
	}

	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".smartrent-lock", name), nil
}

// credentialProvider prefers credentials given in config or flags, else
// the credentials file written by the login command
func credentialProvider() (smartrent.CredentialProvider, error) {
	email := viper.GetString("smartrent.email")
	password := viper.GetString("smartrent.password")

	if email != "" {
		return credentials.NewStatic(email, password), nil
	}

	fileName, err := stateFile("credentials.file", "credentials.json")
	if err != nil {
		return nil, err
	}

	store := credentials.NewFileStore(fileName)
	logging.Logger(nil).Debugf("credentials from %s", store)
	return store, nil
}

func newClient(creds smartrent.CredentialProvider) *smartrent.Client {
	return smartrent.NewClient(creds).
		WithBaseURL(viper.GetString("smartrent.api-url")).
		WithSocketURL(viper.GetString("smartrent.socket-url")).
		WithTimeout(viper.GetDuration("smartrent.api-timeout")).
		WithAckTimeout(viper.GetDuration("smartrent.ack-timeout"))
}

func clientFromConfig() (*smartrent.Client, error) {
	creds, err := credentialProvider()
	if err != nil {
		return nil, err
	}

	return newClient(creds), nil
}

func widgetStore() (*widgets.FileStore, error) {
	fileName, err := stateFile("widgets.file", "widgets.json")
	if err != nil {
		return nil, err
	}

	return widgets.NewFileStore(fileName), nil
}
