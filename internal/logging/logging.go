package logging

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// New builds the process-wide logger. Local runs get a colored text
// formatter; anything with ENVIRONMENT set logs JSON for collection.
func New() *logrus.Logger {
	log := logrus.New()

	env := os.Getenv("ENVIRONMENT")
	if env == "" || env == "local" {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	}

	log.SetOutput(os.Stdout)
	log.SetLevel(levelFromEnv())

	return log
}

// Module returns a component-scoped entry so every line names the
// component it came from.
func Module(log *logrus.Logger, name string) *logrus.Entry {
	return log.WithField("module", name)
}

func levelFromEnv() logrus.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
