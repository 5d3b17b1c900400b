package homey

import (
	"context"

	"github.com/nerrad567/gray-logic-homey/internal/entity"
	"github.com/nerrad567/gray-logic-homey/internal/notify"
)

// EntityRegistry is the host's entity store. *entity.Registry implements it.
type EntityRegistry interface {
	LookupByID(ctx context.Context, id string) (*entity.Entity, error)
	ListByAdapter(ctx context.Context, adapterID string) ([]entity.Entity, error)
	RegisterAvailable(ctx context.Context, reg entity.Registration) error
	UpdateAttributes(ctx context.Context, id string, changes entity.Attributes) error
}

// NotificationSink shows notifications to the user. *notify.Center
// implements it.
type NotificationSink interface {
	Raise(critical bool, title, detail string, action *notify.Action) string
}

// Logger defines the logging interface used by the adapter and bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
