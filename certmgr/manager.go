package certmgr

import (
	"context"
	"crypto/ed25519"
	"sync"
	"time"

	"github.com/genesis-mesh/node/internal/logger"
	"github.com/genesis-mesh/node/internal/metrics"
	"github.com/genesis-mesh/node/trust"
)

// BackoffSchedule is the renewal retry delay ladder: 30s, 60s, 120s,
// 300s, 600s, then capped at the last value.
var BackoffSchedule = []time.Duration{
	30 * time.Second,
	60 * time.Second,
	120 * time.Second,
	300 * time.Second,
	600 * time.Second,
}

// MaxConsecutiveFailures is the number of renewal failures, once the
// certificate has also reached expires_at, that trigger Shutdown.
const MaxConsecutiveFailures = 5

// DefaultRenewalRatio is the fraction of a certificate's lifetime after
// which renewal is attempted (renewal_ratio in the node configuration).
const DefaultRenewalRatio = 0.5

// ErrShutdownRequired signals the certificate is permanently
// unobtainable: the node must stop (exit code 3).
var ErrShutdownRequired = errShutdownRequired{}

type errShutdownRequired struct{}

func (errShutdownRequired) Error() string {
	return "certmgr: certificate unobtainable, shutdown required"
}

// OnRenewed is invoked with the freshly issued certificate so
// connection handshakes start presenting it immediately.
type OnRenewed func(cert *trust.JoinCertificate)

// Manager keeps one node's JoinCertificate valid, renewing it from the
// Network Authority ahead of expiry and backing off on failure per
// spec.md §4.5.
type Manager struct {
	mu             sync.Mutex
	client         *NAClient
	priv           ed25519.PrivateKey
	pub            ed25519.PublicKey
	cert           *trust.JoinCertificate
	renewalRatio   float64
	consecutiveErr int
	onRenewed      OnRenewed
}

// NewManager builds a Manager for an already-issued certificate.
func NewManager(client *NAClient, priv ed25519.PrivateKey, pub ed25519.PublicKey, cert *trust.JoinCertificate, onRenewed OnRenewed) *Manager {
	return &Manager{
		client:       client,
		priv:         priv,
		pub:          pub,
		cert:         cert,
		renewalRatio: DefaultRenewalRatio,
		onRenewed:    onRenewed,
	}
}

// SetRenewalRatio overrides DefaultRenewalRatio, e.g. from node configuration.
func (m *Manager) SetRenewalRatio(ratio float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renewalRatio = ratio
}

// Current returns the certificate currently held.
func (m *Manager) Current() *trust.JoinCertificate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cert
}

// ExpiresAt satisfies health.CertificateExpiry.
func (m *Manager) ExpiresAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cert.ExpiresAt
}

// ConsecutiveRenewalFailures satisfies health.CertificateExpiry.
func (m *Manager) ConsecutiveRenewalFailures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consecutiveErr
}

// dueAt is the instant renewal should first be attempted: issued_at +
// ratio*(expires_at-issued_at).
func dueAt(cert *trust.JoinCertificate, ratio float64) time.Time {
	lifetime := cert.ExpiresAt.Sub(cert.IssuedAt)
	return cert.IssuedAt.Add(time.Duration(float64(lifetime) * ratio))
}

// Run drives the renewal loop until ctx is cancelled or the
// certificate becomes permanently unobtainable, in which case it
// returns ErrShutdownRequired.
func (m *Manager) Run(ctx context.Context) error {
	for {
		m.mu.Lock()
		cert := m.cert
		ratio := m.renewalRatio
		m.mu.Unlock()

		wait := time.Until(dueAt(cert, ratio))
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		if err := m.attemptRenewal(ctx); err != nil {
			if err == ErrShutdownRequired {
				return err
			}
			delay := m.nextBackoff()
			logger.Warn("certificate renewal failed, backing off",
				logger.Error(err), logger.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
		}
	}
}

func (m *Manager) nextBackoff() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.consecutiveErr
	if idx >= len(BackoffSchedule) {
		idx = len(BackoffSchedule) - 1
	}
	m.consecutiveErr++
	return BackoffSchedule[idx]
}

func (m *Manager) attemptRenewal(ctx context.Context) error {
	m.mu.Lock()
	cert := m.cert
	m.mu.Unlock()

	renewCtx, cancel := context.WithTimeout(ctx, DefaultRenewalTimeout)
	defer cancel()

	nonce, err := m.requestNonce(renewCtx, cert)
	if err != nil {
		return m.handleFailure(cert, err)
	}
	pop, err := SignProofOfPossession(m.priv, string(trust.NodeIDFromPublicKey(m.pub)), nonce, DefaultRenewalTimeout)
	if err != nil {
		return m.handleFailure(cert, err)
	}

	newCert, err := m.client.Renew(renewCtx, cert, pop)
	if err != nil {
		return m.handleFailure(cert, err)
	}

	m.mu.Lock()
	m.cert = newCert
	m.consecutiveErr = 0
	m.mu.Unlock()

	logger.Info("certificate renewed", logger.String("node_id", string(trust.NodeIDFromPublicKey(m.pub))))
	if m.onRenewed != nil {
		m.onRenewed(newCert)
	}
	return nil
}

// requestNonce fetches a fresh single-use nonce from the NA over the
// same HTTPS API, so the PoP signature assembled from it can't be
// replayed against a later renewal.
func (m *Manager) requestNonce(ctx context.Context, cert *trust.JoinCertificate) (string, error) {
	return m.client.FetchNonce(ctx, cert.SubjectPubkey)
}

func (m *Manager) handleFailure(cert *trust.JoinCertificate, cause error) error {
	m.mu.Lock()
	failures := m.consecutiveErr + 1
	m.mu.Unlock()

	metrics.RecordError(metrics.KindIo)
	if failures >= MaxConsecutiveFailures && !time.Now().Before(cert.ExpiresAt) {
		return ErrShutdownRequired
	}
	return cause
}
