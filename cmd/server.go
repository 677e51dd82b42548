package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/smartrent-lock/internal/pkg/handlers"
	"github.com/jake-scott/smartrent-lock/internal/pkg/logging"
	"github.com/jake-scott/smartrent-lock/internal/pkg/widgets"
	"github.com/jake-scott/smartrent-lock/pkg/middlewares"
)

var _serverCmdOpts struct {
	httpsPort       uint16
	tlsCertPath     string
	tlsKeyPath      string
	gracefulTimeout time.Duration
	readTimeout     time.Duration
	writeTimeout    time.Duration
	maxConcurrent   int
	corsOrigins     []string
	logRequests     bool
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the lock and widget web server",
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		return doServer()
	},

	PreRunE: func(cmd *cobra.Command, args []string) error {
		// TLS is optional, but half a key pair is a mistake
		if viper.GetString("https.cert") != "" || viper.GetString("https.key") != "" {
			return checkRequiredFlags("https.key", "https.cert")
		}
		return nil
	},
}

func init() {
	serverCmd.Flags().Uint16Var(&_serverCmdOpts.httpsPort, "port", 4343, "port to listen on")
	serverCmd.Flags().StringVar(&_serverCmdOpts.tlsCertPath, "tls-cert", "", "TLS certificate file, serves plain HTTP when unset")
	serverCmd.Flags().StringVar(&_serverCmdOpts.tlsKeyPath, "tls-key", "", "TLS key file")
	serverCmd.Flags().DurationVar(&_serverCmdOpts.gracefulTimeout, "graceful-timeout", time.Second*15, "duration to wait for server to finish, eg. 1m or 10s")
	serverCmd.Flags().DurationVar(&_serverCmdOpts.readTimeout, "read-timeout", time.Second*15, "duration to wait for request read, eg. 1m or 10s")
	serverCmd.Flags().DurationVar(&_serverCmdOpts.writeTimeout, "write-timeout", time.Second*60, "duration to wait for request write, eg. 1m or 10s")
	serverCmd.Flags().IntVar(&_serverCmdOpts.maxConcurrent, "max-concurrent", 4, "maximum widget presses in flight at once")
	serverCmd.Flags().StringSliceVar(&_serverCmdOpts.corsOrigins, "cors-origins", nil, "origins allowed to call the API from a browser")
	serverCmd.Flags().BoolVar(&_serverCmdOpts.logRequests, "log-requests", false, "log requests and responses (only in debug mode)")

	errPanic(viper.GetViper().BindPFlag("https.port", serverCmd.Flags().Lookup("port")))
	errPanic(viper.GetViper().BindPFlag("https.cert", serverCmd.Flags().Lookup("tls-cert")))
	errPanic(viper.GetViper().BindPFlag("https.key", serverCmd.Flags().Lookup("tls-key")))
	errPanic(viper.GetViper().BindPFlag("https.graceful-timeout", serverCmd.Flags().Lookup("graceful-timeout")))
	errPanic(viper.GetViper().BindPFlag("https.read-timeout", serverCmd.Flags().Lookup("read-timeout")))
	errPanic(viper.GetViper().BindPFlag("https.write-timeout", serverCmd.Flags().Lookup("write-timeout")))
	errPanic(viper.GetViper().BindPFlag("server.max-concurrent", serverCmd.Flags().Lookup("max-concurrent")))
	errPanic(viper.GetViper().BindPFlag("server.cors-origins", serverCmd.Flags().Lookup("cors-origins")))
	errPanic(viper.GetViper().BindPFlag("logging.log-requests", serverCmd.Flags().Lookup("log-requests")))

	rootCmd.AddCommand(serverCmd)
}

// newRouter assembles the API with its middleware chain.  CORS sits first
// so preflight requests never reach the handlers.
func newRouter(lh *handlers.LocksHandler, wh *handlers.WidgetsHandler, corsOrigins []string, logRequests bool) *mux.Router {
	r := mux.NewRouter()
	if len(corsOrigins) > 0 {
		r.Use(middlewares.NewCorsMw(middlewares.CorsOptions(corsOrigins)))
	}
	r.Use(middlewares.NewLoggingMw(logRequests))
	r.Use(middlewares.NewRecoveryMw())
	r.Use(middlewares.NewCorrelationMw(middlewares.DefaultCorrelationHeader))

	handlers.Routes(r, lh, wh)
	return r
}

// seedBoard shows every bound widget's lock name before any press
func seedBoard(store handlers.WidgetStore) (*widgets.Board, error) {
	bindings, err := store.List()
	if err != nil {
		return nil, err
	}

	board := widgets.NewBoard()
	for _, b := range bindings {
		board.ShowIdle(b.WidgetID, b.Lock.DisplayName())
	}
	return board, nil
}

func doServer() error {
	wait := viper.GetDuration("https.graceful-timeout")
	port := viper.GetUint("https.port")
	certFile := viper.GetString("https.cert")
	keyFile := viper.GetString("https.key")

	var logRequests bool
	if viper.GetBool("logging.log-requests") {
		if logrus.IsLevelEnabled(logrus.DebugLevel) {
			logRequests = true
		} else {
			logging.Logger(nil).Warn("log-requests ignored when not in debug mode")
		}
	}

	action, err := pressAction()
	if err != nil {
		return err
	}

	client, err := clientFromConfig()
	if err != nil {
		return err
	}
	store, err := widgetStore()
	if err != nil {
		return err
	}

	// the board is what GET /widgets reports, the UI loop keeps its
	// updates in press order
	board, err := seedBoard(store)
	if err != nil {
		return err
	}
	widgetIDs := board.WidgetIDs()

	ui := widgets.NewUILoop(board)
	controller := widgets.NewController(store, client, ui, viper.GetInt("server.max-concurrent")).
		WithHold(viper.GetDuration("widgets.hold")).
		WithAction(action)

	lh := handlers.NewLocksHandler(client)
	wh := handlers.NewWidgetsHandler(store, client, controller, board)

	s := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		ReadTimeout:  viper.GetDuration("https.read-timeout"),
		WriteTimeout: viper.GetDuration("https.write-timeout"),
		IdleTimeout:  time.Second * 60,
		Handler:      newRouter(lh, wh, viper.GetStringSlice("server.cors-origins"), logRequests),
	}

	logging.Logger(nil).Infof("Serving %d widgets on port %d (tls: %t)", len(widgetIDs), port, certFile != "")
	logging.Logger(nil).Debugf("widgets: %v", widgetIDs)
	go func() {
		var err error
		if certFile != "" {
			err = s.ListenAndServeTLS(certFile, keyFile)
		} else {
			err = s.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logging.Logger(nil).WithError(err).Error("running server")
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal
	<-c

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	logging.Logger(nil).Info("shutting down")
	if err := s.Shutdown(ctx); err != nil {
		logging.Logger(nil).WithError(err).Errorf("shutting down")
	}

	// let presses that were accepted finish before the UI goes away
	controller.Wait()
	ui.Close()

	logging.Logger(nil).Info("exiting")
	return nil
}
