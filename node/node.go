package node

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/genesis-mesh/node/audit"
	"github.com/genesis-mesh/node/audit/pgstore"
	"github.com/genesis-mesh/node/certmgr"
	"github.com/genesis-mesh/node/crlsync"
	"github.com/genesis-mesh/node/crypto/keys"
	"github.com/genesis-mesh/node/crypto/storage"
	"github.com/genesis-mesh/node/health"
	"github.com/genesis-mesh/node/internal/logger"
	"github.com/genesis-mesh/node/internal/metrics"
	"github.com/genesis-mesh/node/peer"
	"github.com/genesis-mesh/node/rbac"
	oidcrbac "github.com/genesis-mesh/node/rbac/oidc"
	"github.com/genesis-mesh/node/routing"
	"github.com/genesis-mesh/node/transport"
	"github.com/genesis-mesh/node/transport/ws"
	"github.com/genesis-mesh/node/trust"
)

// Node is one running mesh participant: every component SPEC_FULL.md
// names, wired together and driven by the long-lived cooperative tasks
// spec.md §5 describes.
type Node struct {
	cfg   Config
	paths statePaths

	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
	self trust.NodeID

	chain       *trust.Chain
	certmgr     *certmgr.Manager
	naClient    *certmgr.NAClient
	crlStore    *crlsync.Store
	gossip      *crlsync.Gossip
	peers       *peer.Manager
	discovery   *peer.Discovery
	table       *routing.Table
	seen        *routing.SeenCache
	router      *routing.Router
	replay      *rbac.ReplayCache
	rbacHandler *rbac.Handler
	auditLog    *audit.Log
	auditMirror *pgstore.Store
	pool        *transport.Pool
	wsServer    *ws.Server
	wsDialer    *ws.Dialer
	healthCheck *health.HealthChecker
	meshChecks  health.MeshChecks
	oidcGate    *oidcrbac.Gate

	pendingMu sync.Mutex
	pending   map[string]chan []peer.GossipEntry

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New assembles every component from cfg, creating the data directories
// and opening the audit log but making no network calls; call
// Bootstrap before Run.
func New(cfg Config) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	paths := newStatePaths(cfg.DataDir)
	if err := paths.ensureDirs(); err != nil {
		return nil, fmt.Errorf("node: %w: prepare data dir: %v", ErrConfig, err)
	}

	auditLog, err := audit.Open(paths.auditLog(), audit.RotationPolicy{MaxBytes: 64 << 20})
	if err != nil {
		return nil, fmt.Errorf("node: open audit log: %w", err)
	}

	n := &Node{
		cfg:      cfg,
		paths:    paths,
		auditLog: auditLog,
		peers:    peer.NewManager(peer.Config{StaleTimeout: cfg.stalePeerTimeout(), GossipCap: cfg.PeerGossipCap}),
		pool:     transport.NewPool(cfg.MaxConnections),
		naClient: certmgr.NewNAClient(cfg.NetworkAuthorityURL),
		pending:  make(map[string]chan []peer.GossipEntry),
	}
	n.healthCheck = health.NewHealthChecker(5 * time.Second)
	n.wsDialer = ws.NewDialer()
	n.wsServer = ws.NewServer(n.acceptConnection)
	n.oidcGate = newOIDCGate(cfg)
	transport.OnDrop = func(kind transport.Kind) {
		metrics.MessagesDropped.WithLabelValues(fmt.Sprintf("%d", kind)).Inc()
	}
	return n, nil
}

// loadIdentity loads the node's long-lived Ed25519 key, generating and
// persisting one on first start.
func (n *Node) loadIdentity() error {
	ks, err := storage.NewFileKeyStorage(n.paths.keysDir())
	if err != nil {
		return err
	}
	kp, err := ks.Load("node")
	if err != nil {
		kp, err = keys.GenerateEd25519KeyPair()
		if err != nil {
			return fmt.Errorf("node: generate identity key: %w", err)
		}
		if err := ks.Store("node", kp); err != nil {
			return fmt.Errorf("node: persist identity key: %w", err)
		}
		logger.Info("generated new node identity")
	}
	n.priv = kp.PrivateKey().(ed25519.PrivateKey)
	n.pub = kp.PublicKey().(ed25519.PublicKey)
	n.self = trust.NodeIDFromPublicKey(n.pub)
	return nil
}

// Bootstrap fetches (or loads cached) genesis/certificate state,
// builds the trust chain, and wires every component that depends on
// it. It must succeed before Run is called; a genesis signature
// failure is reported as ErrTrustChain (exit code 2).
func (n *Node) Bootstrap(ctx context.Context) error {
	if err := n.loadIdentity(); err != nil {
		return err
	}

	genesis, err := n.naClient.FetchGenesis(ctx)
	if err != nil {
		return fmt.Errorf("node: fetch genesis: %w", err)
	}
	chain, err := trust.NewChain(genesis, time.Now())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTrustChain, err)
	}
	n.chain = chain

	if cached, err := n.paths.loadCRL(); err == nil && cached != nil {
		_ = chain.ReplaceCRL(cached)
	}
	if fetched, err := n.naClient.FetchCRL(ctx); err == nil && fetched != nil {
		if err := chain.ReplaceCRL(fetched); err == nil {
			_ = n.paths.saveCRL(fetched)
		}
	}
	if policy, err := n.naClient.FetchPolicy(ctx); err == nil && policy != nil {
		if err := chain.VerifyPolicy(policy); err == nil {
			_ = n.paths.savePolicy(policy)
		}
	}

	cert, err := n.paths.loadCert()
	if err != nil {
		return err
	}
	if cert == nil || time.Now().After(cert.ExpiresAt) {
		cert, err = n.join(ctx)
		if err != nil {
			return fmt.Errorf("node: initial join failed: %w", err)
		}
	}

	n.certmgr = certmgr.NewManager(n.naClient, n.priv, n.pub, cert, n.onCertRenewed)
	n.certmgr.SetRenewalRatio(n.cfg.RenewalRatio)

	n.crlStore = crlsync.NewStore(chain)
	n.gossip = crlsync.NewGossip(n.crlStore, crlPeers{n}, disconnector{n}, n.cfg.crlAnnounceInterval())

	n.table = routing.NewTable(3*n.cfg.routeAnnounceInterval(), n.cfg.routeAnnounceInterval())
	n.seen = routing.NewSeenCache(4096, 5*time.Minute)
	n.router = routing.NewRouter(n.self, n.table, n.seen, routingSender{n}, n.cfg.MaxHops)

	n.replay = rbac.NewReplayCache(4096, 10*time.Minute)
	n.rbacHandler = rbac.NewHandler(chain, n.replay, rbac.NewLogAudit(n.auditLog), reputationSink{n})

	n.discovery = peer.NewDiscovery(n.peers, peerRequester{n}, n.cfg.discoveryInterval(), n.cfg.PeerGossipCap)

	n.meshChecks = health.MeshChecks{Cert: n.certmgr, CRL: n.crlStore}

	if n.cfg.AuditMirrorDSN != "" {
		mirror, err := pgstore.Open(ctx, n.cfg.AuditMirrorDSN)
		if err != nil {
			logger.Warn("audit mirror unavailable, continuing with local log only", logger.Error(err))
		} else {
			n.auditMirror = mirror
		}
	}

	if warm, err := n.paths.loadPeerSnapshot(n.cfg.stalePeerTimeout()); err == nil {
		n.peers.Merge(warm)
	}

	n.audit(audit.EventNodeStarted, n.self, nil)
	return nil
}

// join performs a brand-new JoinCertificate issuance against the NA,
// using a proof-of-possession over a fresh nonce fetched from the NA
// itself (the same /nonce leg certmgr.Manager uses for renewal).
func (n *Node) join(ctx context.Context) (*trust.JoinCertificate, error) {
	nonce, err := n.naClient.FetchNonce(ctx, string(n.self))
	if err != nil {
		return nil, err
	}
	pop, err := certmgr.SignProofOfPossession(n.priv, string(n.self), nonce, 30*time.Second)
	if err != nil {
		return nil, err
	}
	cert, err := n.naClient.Join(ctx, n.pub, []string{string(rbac.RoleClient)}, 7*24, pop)
	if err != nil {
		return nil, err
	}
	if err := n.paths.saveCert(cert); err != nil {
		return nil, err
	}
	n.audit(audit.EventCertIssued, n.self, map[string]interface{}{"serial": cert.Serial})
	return cert, nil
}

func (n *Node) onCertRenewed(cert *trust.JoinCertificate) {
	if err := n.paths.saveCert(cert); err != nil {
		logger.Warn("failed to persist renewed certificate", logger.Error(err))
	}
	n.audit(audit.EventCertRenewed, n.self, map[string]interface{}{"serial": cert.Serial})
}

func (n *Node) audit(kind audit.EventKind, subject trust.NodeID, detail map[string]interface{}) {
	event, err := n.auditLog.Append(kind, string(n.self), string(subject), detail)
	if err != nil {
		logger.Warn("audit append failed", logger.Error(err))
		return
	}
	if n.auditMirror != nil {
		n.spawn(func() {
			if err := n.auditMirror.Append(context.Background(), event); err != nil {
				logger.Warn("audit mirror append failed", logger.Error(err))
			}
		})
	}
}

// reputationSink adapts peer.Manager to rbac.ReputationSink.
type reputationSink struct{ n *Node }

func (r reputationSink) RecordBad(id trust.NodeID) bool { return r.n.peers.RecordBad(id) }

// Run starts every long-lived task from spec.md §5 and blocks until ctx
// is cancelled, then drains and exits.
func (n *Node) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel

	mux := http.NewServeMux()
	mux.Handle("/mesh", n.wsServer.Handler())
	mux.HandleFunc("/healthz", n.serveHealth)
	mux.Handle("/metrics", metrics.Handler())
	httpServer := &http.Server{Addr: n.cfg.ListenAddress, Handler: mux}

	n.spawn(func() { n.certmgr.Run(ctx) })
	n.spawn(func() { n.gossip.Run(ctx) })
	n.spawn(func() { n.discovery.Run(ctx) })
	n.spawn(func() { n.discovery.RunStaleSweep(ctx, n.onPeerEvicted) })
	n.spawn(func() { n.runRouteAnnounceLoop(ctx) })
	n.spawn(func() { n.runRouteStaleSweep(ctx) })
	n.spawn(func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.ErrorMsg("listener failed", logger.Error(err))
		}
	})
	n.spawn(func() { n.dialBootstrapAnchors(ctx) })

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), transport.DefaultDrainTimeout)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	n.pool.CloseAll()
	n.wg.Wait()

	_ = n.paths.savePeerSnapshot(n.peers.All())
	n.audit(audit.EventNodeStopped, n.self, nil)
	if n.auditMirror != nil {
		n.auditMirror.Close()
	}
	return n.auditLog.Close()
}

// Shutdown requests a graceful stop; Run returns once drained.
func (n *Node) Shutdown() {
	if n.cancel != nil {
		n.cancel()
	}
}

func (n *Node) spawn(fn func()) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		fn()
	}()
}

func (n *Node) serveHealth(w http.ResponseWriter, r *http.Request) {
	sh := n.meshChecks.SystemHealth(r.Context(), n.healthCheck)
	w.Header().Set("Content-Type", "application/json")
	if sh.Status != health.StatusHealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(struct {
		Status   health.Status `json:"status"`
		Concerns []string      `json:"concerns"`
	}{sh.Status, health.Concerns(sh)})
}

func (n *Node) beginPeerListRequest() (string, chan []peer.GossipEntry) {
	id := uuid.NewString()
	ch := make(chan []peer.GossipEntry, 1)
	n.pendingMu.Lock()
	n.pending[id] = ch
	n.pendingMu.Unlock()
	return id, ch
}

func (n *Node) endPeerListRequest(id string) {
	n.pendingMu.Lock()
	delete(n.pending, id)
	n.pendingMu.Unlock()
}

func (n *Node) resolvePeerListRequest(id string, entries []peer.GossipEntry) {
	n.pendingMu.Lock()
	ch, ok := n.pending[id]
	n.pendingMu.Unlock()
	if ok {
		select {
		case ch <- entries:
		default:
		}
	}
}

func (n *Node) onPeerEvicted(id trust.NodeID) {
	n.audit(audit.EventNodeLeft, id, nil)
}
