package interceptors

import (
	"context"
	"net"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

var checkInfo = &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

func TestRecoveryUnary(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	intercept := RecoveryUnary(zap.New(core))

	resp, err := intercept(context.Background(), nil, checkInfo, func(context.Context, any) (any, error) {
		panic("boom")
	})
	if resp != nil {
		t.Errorf("resp = %v, want nil", resp)
	}
	if status.Code(err) != codes.Internal {
		t.Fatalf("code = %v, want Internal", status.Code(err))
	}
	if status.Convert(err).Message() == "boom" {
		t.Error("panic value leaked to the client")
	}
	if logs.Len() != 1 {
		t.Errorf("logged %d entries, want 1", logs.Len())
	}
}

func TestRecoveryUnary_PassesThrough(t *testing.T) {
	intercept := RecoveryUnary(nil)
	resp, err := intercept(context.Background(), "req", checkInfo, func(_ context.Context, req any) (any, error) {
		return req, nil
	})
	if err != nil || resp != "req" {
		t.Errorf("got (%v, %v), want (req, nil)", resp, err)
	}
}

func TestLoggingUnary(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	intercept := LoggingUnary(zap.New(core), map[string]bool{checkInfo.FullMethod: true})
	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: &net.TCPAddr{IP: net.ParseIP("10.0.0.7"), Port: 5555}})

	ok := func(context.Context, any) (any, error) { return "ok", nil }
	fail := func(context.Context, any) (any, error) { return nil, status.Error(codes.NotFound, "missing") }

	if _, err := intercept(ctx, nil, checkInfo, ok); err != nil {
		t.Fatalf("skipped method: %v", err)
	}
	if logs.Len() != 0 {
		t.Fatalf("skipped method was logged")
	}

	other := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/List"}
	if _, err := intercept(ctx, nil, other, ok); err != nil {
		t.Fatal(err)
	}
	if _, err := intercept(ctx, nil, other, fail); status.Code(err) != codes.NotFound {
		t.Fatalf("code = %v, want NotFound", status.Code(err))
	}

	entries := logs.AllUntimed()
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Level != zap.InfoLevel || entries[1].Level != zap.WarnLevel {
		t.Errorf("levels = %v, %v", entries[0].Level, entries[1].Level)
	}
	if got := entries[0].ContextMap()["peer"]; got != "10.0.0.7" {
		t.Errorf("peer = %v, want 10.0.0.7", got)
	}
}

func TestClientIP(t *testing.T) {
	if got := ClientIP(context.Background()); got != "unknown" {
		t.Errorf("ClientIP without peer = %q, want unknown", got)
	}
	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: fakeAddr("pipe")})
	if got := ClientIP(ctx); got != "pipe" {
		t.Errorf("ClientIP = %q, want pipe", got)
	}
}

type fakeAddr string

func (a fakeAddr) Network() string { return "fake" }
func (a fakeAddr) String() string  { return string(a) }
