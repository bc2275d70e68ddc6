package authcore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func auditConfig() Config {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 64
	cfg.Audit.DropIfFull = false
	return cfg
}

func nextEvent(t *testing.T, sink *ChannelSink, eventType string) AuditEvent {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sink.Events():
			if ev.EventType == eventType {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", eventType)
		}
	}
}

func TestAuditLoginEvents(t *testing.T) {
	sink := NewChannelSink(64)
	te := newTestEngine(t, auditConfig(), sink)
	user := te.register(t, "alice", "")

	ctx := WithClientIP(context.Background(), "192.0.2.7")
	res, err := te.Authenticate(ctx, "alice", testPassword)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	ev := nextEvent(t, sink, auditEventLoginSuccess)
	if ev.UserID != user.ID || ev.SessionID != res.SessionID || !ev.Success {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.IP != "192.0.2.7" {
		t.Fatalf("expected client ip in event, got %q", ev.IP)
	}

	_, _ = te.Authenticate(ctx, "alice", "Wrong123!")
	ev = nextEvent(t, sink, auditEventLoginFailure)
	if ev.Success || ev.Error != string(auditErrInvalidCredentials) {
		t.Fatalf("unexpected failure event: %+v", ev)
	}
}

func TestAuditRefreshReplay(t *testing.T) {
	sink := NewChannelSink(64)
	te := newTestEngine(t, auditConfig(), sink)
	te.register(t, "bob", "")
	res := te.login(t, "bob")
	ctx := context.Background()

	if _, err := te.Refresh(ctx, res.RefreshToken); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	nextEvent(t, sink, auditEventRefreshSuccess)

	_, _ = te.Refresh(ctx, res.RefreshToken)
	ev := nextEvent(t, sink, auditEventRefreshInvalid)
	if ev.Error != string(auditErrTokenRevoked) {
		t.Fatalf("expected token_revoked code, got %q", ev.Error)
	}
}

func TestAuditRateLimitEvents(t *testing.T) {
	cfg := auditConfig()
	cfg.RateLimit.LoginMaxRequests = 1
	cfg.RateLimit.APIMaxRequests = 1
	sink := NewChannelSink(64)
	te := newTestEngine(t, cfg, sink)
	ctx := context.Background()

	if d := te.AllowLogin(ctx, "192.0.2.9"); !d.Allowed {
		t.Fatalf("first login attempt denied: %+v", d)
	}
	if d := te.AllowLogin(ctx, "192.0.2.9"); d.Allowed {
		t.Fatal("expected second login attempt to be limited")
	}
	ev := nextEvent(t, sink, auditEventLoginRateLimited)
	if ev.Success || ev.Error != string(auditErrRateLimited) {
		t.Fatalf("unexpected login rate limit event: %+v", ev)
	}
	if ev.Metadata["scope"] != "login" || ev.Metadata["bucket"] != loginBucketPrefix+"192.0.2.9" {
		t.Fatalf("unexpected metadata: %v", ev.Metadata)
	}

	te.AllowRequest(ctx, "client-1")
	if d := te.AllowRequest(ctx, "client-1"); d.Allowed {
		t.Fatal("expected second api request to be limited")
	}
	ev = nextEvent(t, sink, auditEventRateLimitTriggered)
	if ev.Metadata["scope"] != "api" {
		t.Fatalf("unexpected metadata: %v", ev.Metadata)
	}
}

func TestAuditErrorCode(t *testing.T) {
	cases := map[error]AuditErrorCode{
		nil:                          "",
		ErrInvalidCredentials:        auditErrInvalidCredentials,
		&AccountLockedError{}:        auditErrAccountLocked,
		ErrDuplicateEmail:            auditErrDuplicate,
		ErrPasswordPolicy:            auditErrInvalidInput,
		ErrSessionExpired:            auditErrSessionExpired,
		ErrInfrastructureUnavailable: auditErrUnavailable,
		ErrTokenIssuance:             auditErrInternal,
		errors.New("boom"):           auditErrInternal,
	}
	for err, want := range cases {
		if got := auditErrorCode(err); got != want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestAuditDisabledIsNoOp(t *testing.T) {
	te := newTestEngine(t, testConfig(), nil)
	te.register(t, "carol", "")
	te.login(t, "carol")

	if te.AuditDropped() != 0 {
		t.Fatal("disabled audit must not drop")
	}
}
