package logging

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path"

	stdlog "log"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

/*
 *  Diagnostics logging for the lock client and its commands
 */

type ctxKey int

const (
	txnIDKey ctxKey = iota
	widgetIDKey
	correlationIDKey
)

// WithTxnID returns a context which knows its transaction ID
func WithTxnID(ctx context.Context, txnID string) context.Context {
	return context.WithValue(ctx, txnIDKey, txnID)
}

// WithWidgetID tags every log line made with ctx with the widget that
// caused it
func WithWidgetID(ctx context.Context, widgetID string) context.Context {
	return context.WithValue(ctx, widgetIDKey, widgetID)
}

type logger struct {
	entry   *logrus.Entry
	logFile *os.File
}

var gLogger logger
var gInstanceID string

func baseFields() logrus.Fields {
	return logrus.Fields{
		"pid":      os.Getpid(),
		"exe":      path.Base(os.Args[0]),
		"instance": gInstanceID,
	}
}

// WithCorrelationID carries a caller supplied request ID into the logs
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// Logger returns the global logger, decorated with whatever IDs ctx carries
func Logger(ctx context.Context) *logrus.Entry {
	if ctx == nil {
		return gLogger.entry
	}

	fields := logrus.Fields{}
	if txnID, ok := ctx.Value(txnIDKey).(string); ok {
		fields["txnid"] = txnID
	}
	if widgetID, ok := ctx.Value(widgetIDKey).(string); ok {
		fields["widget"] = widgetID
	}
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		fields["correlation"] = id
	}

	if len(fields) == 0 {
		return gLogger.entry
	}

	return gLogger.entry.WithFields(fields)
}

// Redact returns a short stable hash of a secret so it can be correlated
// in logs without being disclosed
func Redact(secret string) string {
	if secret == "" {
		return "<empty>"
	}

	sum := sha1.Sum([]byte(secret))
	return "sha1:" + hex.EncodeToString(sum[:4])
}

func init() {
	viper.SetDefault("logging.location", "stderr")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.level", "info")

	gInstanceID = uuid.New().String()
	gLogger.entry = logrus.WithFields(baseFields())
}

// Configure sets the log level and output location/format
func Configure(cfg *viper.Viper) error {
	switch loc := cfg.GetString("logging.location"); loc {
	case "stdout":
		logrus.SetOutput(os.Stdout)
		gLogger.entry = logrus.WithFields(logrus.Fields{})
	case "stderr":
		logrus.SetOutput(os.Stderr)
		gLogger.entry = logrus.WithFields(logrus.Fields{})
	default:
		file, err := os.OpenFile(loc, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return err
		}

		gLogger.entry.Debugf("Switching system log to %s", loc)
		logrus.SetOutput(file)

		if gLogger.logFile != nil {
			gLogger.logFile.Close()
		}
		gLogger.logFile = file

		// lines in a shared file need to say who wrote them
		gLogger.entry = logrus.WithFields(baseFields())
	}

	// Obey the level setting in the config if not already in debug mode
	if !logrus.IsLevelEnabled(logrus.DebugLevel) {
		level := cfg.GetString("logging.level")
		val, err := logrus.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("bad log level: [%s]", level)
		}
		logrus.SetLevel(val)
	}

	switch format := cfg.GetString("logging.format"); format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logrus.SetFormatter(&logrus.TextFormatter{})
	default:
		return fmt.Errorf("bad log format: [%s]", format)
	}

	// Override the standard system logger
	stdlog.SetOutput(Logger(nil).WriterLevel(logrus.DebugLevel))

	return nil
}
