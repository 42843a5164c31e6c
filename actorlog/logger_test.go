package actorlog

import (
	"errors"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewDefaultsToInfoOnBadLevel(t *testing.T) {
	log := New("test", "not-a-level", "text")
	if log.Logger.GetLevel() != logrus.InfoLevel {
		t.Errorf("GetLevel() = %v, want InfoLevel for an unparseable level string", log.Logger.GetLevel())
	}
}

func TestNewJSONFormat(t *testing.T) {
	log := New("test", "debug", "json")
	if _, ok := log.Logger.Formatter.(*logrus.JSONFormatter); !ok {
		t.Errorf("Formatter = %T, want *logrus.JSONFormatter", log.Logger.Formatter)
	}
}

func TestNewFromEnvDefaults(t *testing.T) {
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("LOG_FORMAT")
	log := NewFromEnv("test")
	if log.Logger.GetLevel() != logrus.InfoLevel {
		t.Errorf("GetLevel() = %v, want InfoLevel by default", log.Logger.GetLevel())
	}
	if _, ok := log.Logger.Formatter.(*logrus.JSONFormatter); !ok {
		t.Errorf("Formatter = %T, want *logrus.JSONFormatter by default", log.Logger.Formatter)
	}
}

func TestWithActorAndWithErrorFields(t *testing.T) {
	log := New("test", "debug", "text")
	entry := log.WithActor("a1", "traffic")
	if entry.Data["actor_id"] != "a1" || entry.Data["machine_type"] != "traffic" {
		t.Errorf("WithActor() fields = %v, want actor_id=a1 machine_type=traffic", entry.Data)
	}

	errEntry := log.WithError("a1", "traffic", errors.New("boom"))
	if errEntry.Data["error"] != "boom" {
		t.Errorf("WithError() error field = %v, want boom", errEntry.Data["error"])
	}
}

func TestNewCorrelationIDIsUnique(t *testing.T) {
	a := NewCorrelationID()
	b := NewCorrelationID()
	if a == b {
		t.Error("NewCorrelationID() returned the same id twice")
	}
	if a == "" {
		t.Error("NewCorrelationID() returned an empty string")
	}
}
