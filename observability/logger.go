package observability

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// SetupLogger configures the standard logrus logger. Format is "json" or
// "text"; an unknown level falls back to info.
func SetupLogger(level, format string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
	logrus.SetOutput(os.Stderr)

	switch strings.ToLower(format) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})
	}

	if err != nil && level != "" {
		logrus.WithField("level", level).Warn("unknown log level, using info")
	}
}
