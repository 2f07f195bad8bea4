package auth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// AuditEvent is a security-relevant action recorded to the audit stream
type AuditEvent struct {
	Action    string
	Email     string
	Status    string
	Reason    string
	IPAddress string
	UserAgent string
	Resource  string
	At        time.Time
}

// AuditLogger writes security events as structured log entries.
// Raw tokens and passwords are never part of an event.
type AuditLogger struct {
	logger logrus.FieldLogger
}

// NewAuditLogger creates an audit logger writing through logger
func NewAuditLogger(logger logrus.FieldLogger) *AuditLogger {
	return &AuditLogger{logger: logger.WithField("audit", true)}
}

// Record validates and writes an audit event
func (al *AuditLogger) Record(ctx context.Context, ev *AuditEvent) error {
	if ev.Action == "" {
		return fmt.Errorf("action is required")
	}
	if ev.Status == "" {
		return fmt.Errorf("status is required")
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	entry := al.logger.WithFields(logrus.Fields{
		"action": ev.Action,
		"status": ev.Status,
		"at":     ev.At.UTC().Format(time.RFC3339),
	})
	if ev.Email != "" {
		entry = entry.WithField("email", ev.Email)
	}
	if ev.Reason != "" {
		entry = entry.WithField("reason", ev.Reason)
	}
	if ev.IPAddress != "" {
		entry = entry.WithField("ip", ev.IPAddress)
	}
	if ev.UserAgent != "" {
		entry = entry.WithField("user_agent", ev.UserAgent)
	}
	if ev.Resource != "" {
		entry = entry.WithField("resource", ev.Resource)
	}

	if ev.Status == StatusSuccess {
		entry.Info("audit event")
	} else {
		entry.Warn("audit event")
	}
	_ = ctx
	return nil
}

// RecordFromRequest builds an audit event from an HTTP request and records it
func (al *AuditLogger) RecordFromRequest(r *http.Request, action, email, status string, err error) error {
	ev := &AuditEvent{
		Action:    action,
		Email:     email,
		Status:    status,
		IPAddress: ClientIP(r),
		UserAgent: r.UserAgent(),
		Resource:  r.URL.Path,
	}
	if err != nil {
		ev.Reason = err.Error()
	}
	return al.Record(r.Context(), ev)
}

// ClientIP returns the originating client address of r
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Audit actions
const (
	ActionLogin        = "auth.login"
	ActionRefresh      = "auth.refresh"
	ActionLogout       = "auth.logout"
	ActionLogoutAll    = "auth.logout_all"
	ActionAccessDenied = "authz.denied"
	ActionRateLimited  = "ratelimit.exceeded"
)

// Status constants
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusDenied  = "denied"
)
