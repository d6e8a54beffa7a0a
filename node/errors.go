package node

import (
	"errors"

	"github.com/genesis-mesh/node/audit"
	"github.com/genesis-mesh/node/certmgr"
	"github.com/genesis-mesh/node/internal/metrics"
)

// Exit codes per spec.md §6.
const (
	ExitClean            = 0
	ExitConfigError      = 1
	ExitTrustChainFailed = 2
	ExitCertUnobtainable = 3
	ExitFatal            = 4
)

var (
	// ErrConfig marks a configuration validation failure (exit code 1).
	ErrConfig = errors.New("node: configuration error")
	// ErrTrustChain marks genesis verification failure (exit code 2).
	ErrTrustChain = errors.New("node: trust chain verification failed")
)

// ExitCode maps a startup error to the process exit code spec.md §6
// requires, and records the corresponding error-taxonomy kind: this is
// the one place every fatal startup path funnels through, so it is
// also where ChainBroken (always fatal) and Config get counted.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitClean
	case errors.Is(err, ErrConfig):
		metrics.RecordError(metrics.KindConfig)
		return ExitConfigError
	case errors.Is(err, ErrTrustChain):
		metrics.RecordError(metrics.Classify(err))
		return ExitTrustChainFailed
	case errors.Is(err, certmgr.ErrShutdownRequired):
		metrics.RecordError(metrics.KindExpiredCert)
		return ExitCertUnobtainable
	case errors.Is(err, audit.ErrChainBroken):
		metrics.RecordError(metrics.KindChainBroken)
		return ExitFatal
	default:
		metrics.RecordError(metrics.KindIo)
		return ExitFatal
	}
}
