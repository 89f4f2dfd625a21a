// Package audit records security-relevant activity. Recording is fire-and-forget:
// failures are logged and never reach the caller.
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chancafe-q/backend/internal/audit/domain"
	auditrepo "chancafe-q/backend/internal/audit/repository"
	"chancafe-q/backend/internal/platform/clock"
)

// writeTimeout bounds a single asynchronous write, detached from the request context.
const writeTimeout = 5 * time.Second

// ClientInfoExtractor returns the client IP and user agent from the request context.
type ClientInfoExtractor func(context.Context) (ip, userAgent string)

// Publisher forwards recorded entries to a secondary sink (Kafka, OTel logs).
type Publisher interface {
	Publish(ctx context.Context, entry *domain.ActivityLog) error
}

// Entry is the caller-supplied part of an activity log. Empty IP and UserAgent
// are filled from the request context when an extractor is configured.
type Entry struct {
	UserID     string
	Action     domain.Action
	EntityType string
	EntityID   string
	OldValues  map[string]any
	NewValues  map[string]any
	IPAddress  string
	UserAgent  string
	Notes      string
}

// Recorder persists activity logs asynchronously.
type Recorder struct {
	repo       auditrepo.Repository
	publishers []Publisher
	client     ClientInfoExtractor
	log        *zap.Logger
	clock      clock.Clock
	wg         sync.WaitGroup
}

// NewRecorder returns a Recorder writing to repo and then to each publisher.
// client and clk may be nil.
func NewRecorder(repo auditrepo.Repository, log *zap.Logger, client ClientInfoExtractor, clk clock.Clock, publishers ...Publisher) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{
		repo:       repo,
		publishers: publishers,
		client:     client,
		log:        log.Named("audit"),
		clock:      clock.OrSystem(clk),
	}
}

// Record builds the log entry synchronously (redaction, timestamps, client info)
// and writes it in a background goroutine. It never blocks on storage and never fails.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	if r == nil {
		return
	}
	entry := r.build(ctx, e)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				r.log.Error("activity write panicked", zap.Any("panic", p), zap.String("action", string(entry.Action)))
			}
		}()
		writeCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		r.write(writeCtx, entry)
	}()
}

// Wait blocks until every in-flight write finishes or ctx ends.
func (r *Recorder) Wait(ctx context.Context) error {
	if r == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) build(ctx context.Context, e Entry) *domain.ActivityLog {
	ip, ua := e.IPAddress, e.UserAgent
	if r.client != nil && (ip == "" || ua == "") {
		cip, cua := r.client(ctx)
		if ip == "" {
			ip = cip
		}
		if ua == "" {
			ua = cua
		}
	}
	entry := &domain.ActivityLog{
		ID:         uuid.NewString(),
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		OldValues:  Redact(e.OldValues),
		NewValues:  Redact(e.NewValues),
		IPAddress:  ip,
		UserAgent:  ua,
		Notes:      e.Notes,
		CreatedAt:  r.clock.Now(),
	}
	if e.UserID != "" {
		uid := e.UserID
		entry.UserID = &uid
	}
	return entry
}

func (r *Recorder) write(ctx context.Context, entry *domain.ActivityLog) {
	if r.repo != nil {
		if err := r.repo.Create(ctx, entry); err != nil {
			r.log.Warn("failed to persist activity log",
				zap.String("action", string(entry.Action)),
				zap.String("entity_type", entry.EntityType),
				zap.Error(err))
		}
	}
	for _, p := range r.publishers {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, entry); err != nil {
			r.log.Warn("failed to publish activity log", zap.String("action", string(entry.Action)), zap.Error(err))
		}
	}
}

// LoginAttempt records a login success or failure. userID is empty when the user was not resolved.
func (r *Recorder) LoginAttempt(ctx context.Context, userID, userCode string, success bool, reason string) {
	if r == nil {
		return
	}
	action := domain.ActionLoginFailed
	notes := "Intento de login fallido: " + reason
	if success {
		action = domain.ActionLoginSuccess
		notes = "Login exitoso"
	}
	r.Record(ctx, Entry{
		UserID:     userID,
		Action:     action,
		EntityType: "auth",
		EntityID:   userID,
		NewValues: map[string]any{
			"userCode":  userCode,
			"success":   success,
			"reason":    reason,
			"timestamp": r.clock.Now().Format(time.RFC3339),
		},
		Notes: notes,
	})
}

// Login records a new session for the user.
func (r *Recorder) Login(ctx context.Context, userID, sessionID string) {
	r.Record(ctx, Entry{
		UserID: userID, Action: domain.ActionLogin, EntityType: "session", EntityID: sessionID,
		Notes: "Inicio de sesión",
	})
}

// Logout records the end of one session.
func (r *Recorder) Logout(ctx context.Context, userID, sessionID string) {
	r.Record(ctx, Entry{
		UserID: userID, Action: domain.ActionLogout, EntityType: "session", EntityID: sessionID,
		Notes: "Cierre de sesión",
	})
}

// LogoutAll records a bulk revocation of the user's sessions.
func (r *Recorder) LogoutAll(ctx context.Context, userID string, closed int64) {
	r.Record(ctx, Entry{
		UserID: userID, Action: domain.ActionLogoutAll, EntityType: "session",
		NewValues: map[string]any{"closedSessions": closed},
		Notes:     fmt.Sprintf("Cerradas %d sesiones", closed),
	})
}

// PasswordChange records a password change and the sessions it revoked.
func (r *Recorder) PasswordChange(ctx context.Context, userID string, revoked int64) {
	r.Record(ctx, Entry{
		UserID: userID, Action: domain.ActionPasswordChange, EntityType: "user", EntityID: userID,
		NewValues: map[string]any{"revokedSessions": revoked},
		Notes:     "Contraseña actualizada",
	})
}

// TokenRefresh records a token renewal on a session.
func (r *Recorder) TokenRefresh(ctx context.Context, userID, sessionID string) {
	r.Record(ctx, Entry{
		UserID: userID, Action: domain.ActionTokenRefresh, EntityType: "session", EntityID: sessionID,
		Notes: "Tokens renovados",
	})
}

// SessionCleanup records an administrative expiry sweep.
func (r *Recorder) SessionCleanup(ctx context.Context, actorID string, cleaned int64) {
	r.Record(ctx, Entry{
		UserID: actorID, Action: domain.ActionSessionCleanup, EntityType: "session",
		NewValues: map[string]any{"cleanedSessions": cleaned},
		Notes:     fmt.Sprintf("Expiradas %d sesiones", cleaned),
	})
}
