package workflow

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "character-studio/workflow"

type instruments struct {
	actions metric.Int64Counter
	saves   metric.Int64Counter
}

// newInstruments resolves counters from the global meter provider. Creation
// errors leave a nil counter, which records nothing.
func newInstruments() *instruments {
	meter := otel.Meter(meterName)
	actions, err := meter.Int64Counter("studio.workflow.actions",
		metric.WithDescription("Status editor actions by name and outcome"))
	if err != nil {
		otel.Handle(err)
	}
	saves, err := meter.Int64Counter("studio.workflow.saves",
		metric.WithDescription("Status snapshot writes by outcome"))
	if err != nil {
		otel.Handle(err)
	}
	return &instruments{actions: actions, saves: saves}
}

func (m *instruments) action(ctx context.Context, action, outcome string) {
	if m.actions == nil {
		return
	}
	m.actions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	))
}

func (m *instruments) persisted(ctx context.Context, err error) {
	if m.saves == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.saves.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
