package producer

import (
	"context"
	"testing"

	"chancafe-q/backend/internal/audit"
	"chancafe-q/backend/internal/audit/domain"
)

var _ audit.Publisher = (*KafkaProducer)(nil)

func TestNewKafkaProducer_DisabledWithoutBrokers(t *testing.T) {
	if p := NewKafkaProducer(nil, "chancafe.activity", nil); p != nil {
		t.Error("expected nil producer without brokers")
	}
	if p := NewKafkaProducer([]string{"localhost:9092"}, "", nil); p != nil {
		t.Error("expected nil producer without topic")
	}
}

func TestKafkaProducer_NilIsNoop(t *testing.T) {
	var p *KafkaProducer
	if err := p.Publish(context.Background(), &domain.ActivityLog{Action: domain.ActionLogin}); err != nil {
		t.Errorf("Publish on nil producer: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close on nil producer: %v", err)
	}
}

func TestMessageKey(t *testing.T) {
	uid := "u1"
	if got := string(MessageKey(&domain.ActivityLog{UserID: &uid, Action: domain.ActionLogin})); got != "u1" {
		t.Errorf("key = %q, want u1", got)
	}
	if got := string(MessageKey(&domain.ActivityLog{Action: domain.ActionLoginFailed})); got != "LOGIN_FAILED" {
		t.Errorf("anonymous key = %q, want LOGIN_FAILED", got)
	}
}
