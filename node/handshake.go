package node

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/genesis-mesh/node/internal/metrics"
	"github.com/genesis-mesh/node/transport"
	"github.com/genesis-mesh/node/trust"
)

func handshakeRole(dialed bool) string {
	if dialed {
		return "client"
	}
	return "server"
}

// handshakeMsg is exchanged once in each direction before a Connection
// reaches Established: an ephemeral X25519 public key and nonce (to
// derive the session's AEAD key) plus the sender's JoinCertificate (so
// the peer can check role/expiry/revocation before trusting anything
// else on the wire).
type handshakeMsg struct {
	Ephemeral []byte               `json:"ephemeral"`
	Nonce     []byte               `json:"nonce"`
	Cert      trust.JoinCertificate `json:"cert"`
}

// runHandshake drives the Handshaking state: both sides send their own
// handshakeMsg and wait for the peer's, in an order fixed by who
// dialed, then verify the peer's certificate against the trust chain
// and derive a shared Session. It returns the verified peer's NodeID.
func (n *Node) runHandshake(ctx context.Context, conn *transport.Connection, dialed bool) (trust.NodeID, error) {
	role := handshakeRole(dialed)
	metrics.HandshakesInitiated.WithLabelValues(role).Inc()
	peerID, err := n.doHandshake(ctx, conn, dialed)
	if err != nil {
		metrics.HandshakesCompleted.WithLabelValues("failure").Inc()
		metrics.HandshakesFailed.WithLabelValues(string(metrics.Classify(err))).Inc()
		return "", err
	}
	metrics.HandshakesCompleted.WithLabelValues("success").Inc()
	return peerID, nil
}

func (n *Node) doHandshake(ctx context.Context, conn *transport.Connection, dialed bool) (trust.NodeID, error) {
	selfPriv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return "", fmt.Errorf("node: generate ephemeral key: %w", err)
	}
	selfNonce := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, selfNonce); err != nil {
		return "", fmt.Errorf("node: generate handshake nonce: %w", err)
	}

	cert := n.certmgr.Current()
	msg := handshakeMsg{
		Ephemeral: selfPriv.PublicKey().Bytes(),
		Nonce:     selfNonce,
		Cert:      *cert,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("node: encode handshake: %w", err)
	}

	send := func() error { return conn.SendHandshakeFrame(transport.KindHandshake, payload) }
	sendAck := func() error { return conn.SendHandshakeFrame(transport.KindHandshakeAck, payload) }

	var peerMsg handshakeMsg
	if dialed {
		if err := send(); err != nil {
			return "", err
		}
		if err := n.readHandshakeFrame(conn, transport.KindHandshakeAck, &peerMsg); err != nil {
			return "", err
		}
	} else {
		if err := n.readHandshakeFrame(conn, transport.KindHandshake, &peerMsg); err != nil {
			return "", err
		}
		if err := sendAck(); err != nil {
			return "", err
		}
	}

	if err := n.chain.VerifyCertificate(&peerMsg.Cert, time.Now()); err != nil {
		return "", fmt.Errorf("node: peer certificate rejected: %w", err)
	}
	peerID := trust.NodeID(peerMsg.Cert.SubjectPubkey)

	peerPub, err := ecdh.X25519().NewPublicKey(peerMsg.Ephemeral)
	if err != nil {
		return "", fmt.Errorf("node: decode peer ephemeral key: %w", err)
	}
	session, err := transport.NewSession(selfPriv, peerPub, selfNonce, peerMsg.Nonce)
	if err != nil {
		metrics.SessionsCreated.WithLabelValues("failure").Inc()
		return "", fmt.Errorf("node: derive session: %w", err)
	}
	metrics.SessionsCreated.WithLabelValues("success").Inc()

	conn.Establish(peerID, session)
	return peerID, nil
}

func (n *Node) readHandshakeFrame(conn *transport.Connection, want transport.Kind, out *handshakeMsg) error {
	f, err := conn.ReadFrame()
	if err != nil {
		return err
	}
	if f.Kind != want {
		return fmt.Errorf("node: %w: expected handshake kind %d, got %d", transport.ErrProtocolViolation, want, f.Kind)
	}
	return json.Unmarshal(f.Payload, out)
}
