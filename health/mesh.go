// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package health

import (
	"context"
	"fmt"
	"time"
)

// CertificateExpiry is the subset of certmgr.Manager's state the
// health check needs, kept as a narrow interface so health has no
// import dependency on certmgr.
type CertificateExpiry interface {
	ExpiresAt() time.Time
	ConsecutiveRenewalFailures() int
}

// DegradedWithin is how far ahead of expiry a certificate is reported
// degraded rather than healthy, giving operators lead time.
const DegradedWithin = 6 * time.Hour

// certificateCheck evaluates cert directly into a Status/message pair
// rather than the error-only HealthCheck signature, since a near-expiry
// certificate is a Degraded condition and the bare error return used by
// RegisterCheck/Check can only ever produce Unhealthy.
func certificateCheck(name string, cert CertificateExpiry) *CheckResult {
	start := time.Now()
	remaining := time.Until(cert.ExpiresAt())
	failures := cert.ConsecutiveRenewalFailures()

	result := &CheckResult{Name: name, Timestamp: time.Now()}
	switch {
	case remaining <= 0:
		result.Status = StatusUnhealthy
		result.Message = fmt.Sprintf("certificate expired %s ago", (-remaining).Round(time.Second))
	case failures > 0:
		result.Status = StatusDegraded
		result.Message = fmt.Sprintf("cert expires in %s, renewal failing (%d consecutive failures)", remaining.Round(time.Minute), failures)
	case remaining < DegradedWithin:
		result.Status = StatusDegraded
		result.Message = fmt.Sprintf("cert expires in %s", remaining.Round(time.Minute))
	default:
		result.Status = StatusHealthy
	}
	result.Duration = time.Since(start)
	return result
}

// CRLFreshness is the subset of crlsync.Store's state the health check
// needs. Supersedes is surfaced for debugging compaction history only;
// it never factors into the check's Status.
type CRLFreshness interface {
	Sequence() uint64
	LastAppliedAt() time.Time
	Supersedes() uint64
}

// CRLStaleAfter is how long without a higher-sequence CRL before the
// node reports degraded, since a stalled CRL feed means revocations
// aren't propagating.
const CRLStaleAfter = 10 * time.Minute

func crlCheck(name string, crl CRLFreshness) *CheckResult {
	start := time.Now()
	age := time.Since(crl.LastAppliedAt())

	result := &CheckResult{Name: name, Timestamp: time.Now()}
	if age > CRLStaleAfter {
		result.Status = StatusDegraded
		result.Message = fmt.Sprintf("crl sequence %d (supersedes %d) unchanged for %s", crl.Sequence(), crl.Supersedes(), age.Round(time.Minute))
	} else {
		result.Status = StatusHealthy
	}
	result.Duration = time.Since(start)
	return result
}

// MeshChecks bundles the node-specific state the generic HealthChecker
// doesn't know about.
type MeshChecks struct {
	Cert CertificateExpiry
	CRL  CRLFreshness
}

// SystemHealth runs h's registered checks (blockchain/keystore/database/
// service, if any were registered) alongside the mesh-specific
// certificate and CRL checks, and folds both into one SystemHealth
// using the same overall-status aggregation HealthChecker.GetOverallStatus
// applies to its own checks.
func (m MeshChecks) SystemHealth(ctx context.Context, h *HealthChecker) *SystemHealth {
	sh := h.GetSystemHealth(ctx)
	if sh.Checks == nil {
		sh.Checks = make(map[string]*CheckResult)
	}

	if m.Cert != nil {
		sh.Checks["certificate"] = certificateCheck("certificate", m.Cert)
	}
	if m.CRL != nil {
		sh.Checks["crl"] = crlCheck("crl", m.CRL)
	}

	hasUnhealthy, hasDegraded := false, false
	for _, result := range sh.Checks {
		switch result.Status {
		case StatusUnhealthy:
			hasUnhealthy = true
		case StatusDegraded:
			hasDegraded = true
		}
	}
	switch {
	case hasUnhealthy:
		sh.Status = StatusUnhealthy
	case hasDegraded:
		sh.Status = StatusDegraded
	default:
		sh.Status = StatusHealthy
	}
	return sh
}

// Concerns extracts a flat, user-facing concerns list from a
// SystemHealth snapshot: the Message of every check that isn't
// Healthy, e.g. "cert expires in 2h, renewal failing" per the node's
// health surface.
func Concerns(sh *SystemHealth) []string {
	var out []string
	for _, result := range sh.Checks {
		if result.Status != StatusHealthy && result.Message != "" {
			out = append(out, result.Message)
		}
	}
	return out
}
