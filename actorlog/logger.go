// Package actorlog provides the structured logger injected into the actor
// runtime and persistent-actor extension via functional options.
//
// Grounded on r3e-network-service_layer/infrastructure/logging/logger.go:
// a thin wrapper around *logrus.Logger adding the fields this domain cares
// about (actor_id, machine_type) in place of the teacher's (trace_id,
// user_id), plus the same env-driven constructor shape.
package actorlog

import (
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger with actor-runtime field conventions.
type Logger struct {
	*logrus.Logger
	component string
}

// New creates a Logger for component (e.g. "actor", "persistentactor",
// "actorsystem") at the given level/format.
func New(component, level, format string) *Logger {
	l := logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	}

	l.SetOutput(os.Stdout)

	return &Logger{Logger: l, component: component}
}

// NewFromEnv builds a Logger using LOG_LEVEL and LOG_FORMAT, defaulting to
// "info" and "json" when unset.
func NewFromEnv(component string) *Logger {
	level := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	format := strings.TrimSpace(os.Getenv("LOG_FORMAT"))
	if format == "" {
		format = "json"
	}
	return New(component, level, format)
}

// WithActor returns an entry tagged with this actor's id and machine type,
// the pair every runtime log line carries.
func (l *Logger) WithActor(actorID, machineType string) *logrus.Entry {
	return l.Logger.WithFields(logrus.Fields{
		"component":    l.component,
		"actor_id":     actorID,
		"machine_type": machineType,
	})
}

// WithError is WithActor plus an error field, for the log-warn-and-continue
// disposition spec.md §4.J assigns to persistence adapter failures.
func (l *Logger) WithError(actorID, machineType string, err error) *logrus.Entry {
	return l.WithActor(actorID, machineType).WithField("error", err.Error())
}

// NewCorrelationID returns a fresh identifier suitable for journal entries
// or actor ids that the caller does not want to choose themselves.
func NewCorrelationID() string {
	return uuid.New().String()
}
