package certmgr

import (
	"errors"
	"testing"
	"time"

	"github.com/genesis-mesh/node/trust"
)

func TestDueAtHalfLifetime(t *testing.T) {
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	expires := issued.Add(7 * 24 * time.Hour)
	cert := &trust.JoinCertificate{IssuedAt: issued, ExpiresAt: expires}

	due := dueAt(cert, DefaultRenewalRatio)
	want := issued.Add(3*24*time.Hour + 12*time.Hour)
	if !due.Equal(want) {
		t.Fatalf("due = %v, want %v", due, want)
	}
}

func TestBackoffScheduleMonotonicAndCapped(t *testing.T) {
	m := &Manager{}
	var delays []time.Duration
	for i := 0; i < len(BackoffSchedule)+2; i++ {
		delays = append(delays, m.nextBackoff())
	}
	for i := 1; i < len(BackoffSchedule); i++ {
		if delays[i] < delays[i-1] {
			t.Fatalf("backoff should not decrease: %v", delays)
		}
	}
	last := delays[len(BackoffSchedule)-1]
	for _, d := range delays[len(BackoffSchedule):] {
		if d != last {
			t.Fatalf("expected backoff capped at %v, got %v", last, d)
		}
	}
}

func TestHandleFailureTriggersShutdownAfterExpiryAndMaxFailures(t *testing.T) {
	m := &Manager{consecutiveErr: MaxConsecutiveFailures - 1}
	expired := &trust.JoinCertificate{ExpiresAt: time.Now().Add(-time.Hour)}
	if err := m.handleFailure(expired, ErrShutdownRequired); err != ErrShutdownRequired {
		t.Fatalf("expected shutdown trigger, got %v", err)
	}
}

func TestHandleFailureDoesNotShutdownBeforeExpiry(t *testing.T) {
	m := &Manager{consecutiveErr: MaxConsecutiveFailures}
	notExpired := &trust.JoinCertificate{ExpiresAt: time.Now().Add(time.Hour)}
	originalCause := errors.New("na unreachable")
	if got := m.handleFailure(notExpired, originalCause); got != originalCause {
		t.Fatalf("expected original cause returned while cert still valid, got %v", got)
	}
}
