package otel

import (
	"context"
	"encoding/json"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"chancafe-q/backend/internal/audit/domain"
)

const activityScope = "chancafe.activity"

// ActivityPublisher emits activity entries as OTel log records.
type ActivityPublisher struct {
	logger otellog.Logger
}

// NewActivityPublisher returns a publisher backed by provider. A nil provider yields nil,
// which the recorder skips.
func NewActivityPublisher(provider *sdklog.LoggerProvider) *ActivityPublisher {
	if provider == nil {
		return nil
	}
	return &ActivityPublisher{logger: provider.Logger(activityScope)}
}

// Publish converts entry to a log record and emits it.
func (p *ActivityPublisher) Publish(ctx context.Context, entry *domain.ActivityLog) error {
	if p == nil || entry == nil {
		return nil
	}
	p.logger.Emit(ctx, ActivityRecord(entry))
	return nil
}

// ActivityRecord builds the log record for entry. The body is the entry's JSON.
func ActivityRecord(entry *domain.ActivityLog) otellog.Record {
	rec := otellog.Record{}
	rec.SetTimestamp(entry.CreatedAt)
	sev, text := severityFor(entry.Action)
	rec.SetSeverity(sev)
	rec.SetSeverityText(text)
	rec.SetEventName(string(entry.Action))
	if body, err := json.Marshal(entry); err == nil {
		rec.SetBody(otellog.StringValue(string(body)))
	}
	rec.AddAttributes(
		otellog.String("activity.id", entry.ID),
		otellog.String("activity.action", string(entry.Action)),
		otellog.String("activity.entity_type", entry.EntityType),
	)
	if entry.UserID != nil {
		rec.AddAttributes(otellog.String("user.id", *entry.UserID))
	}
	if entry.EntityID != "" {
		rec.AddAttributes(otellog.String("activity.entity_id", entry.EntityID))
	}
	if entry.IPAddress != "" {
		rec.AddAttributes(otellog.String("client.address", entry.IPAddress))
	}
	return rec
}

func severityFor(action domain.Action) (otellog.Severity, string) {
	if action == domain.ActionLoginFailed {
		return otellog.SeverityWarn, "WARN"
	}
	return otellog.SeverityInfo, "INFO"
}
