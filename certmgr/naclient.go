package certmgr

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/genesis-mesh/node/trust"
)

// DefaultRenewalTimeout bounds a single /renew round trip per spec's
// cancellation table (renewal: 30s).
const DefaultRenewalTimeout = 30 * time.Second

// NAClient talks to the Network Authority's HTTPS API (§6): genesis,
// policy, and CRL distribution plus join/renew. It is intentionally
// out-of-band from the mesh's own peer wire protocol.
type NAClient struct {
	baseURL string
	http    *http.Client
}

// NewNAClient builds a client against baseURL (e.g. "https://na.example.net").
func NewNAClient(baseURL string) *NAClient {
	return &NAClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: DefaultRenewalTimeout},
	}
}

// FetchGenesis retrieves the canonical genesis block.
func (c *NAClient) FetchGenesis(ctx context.Context) (*trust.GenesisBlock, error) {
	var out trust.GenesisBlock
	if err := c.getJSON(ctx, "/genesis", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchPolicy retrieves the current signed policy manifest.
func (c *NAClient) FetchPolicy(ctx context.Context) (*trust.PolicyManifest, error) {
	var out trust.PolicyManifest
	if err := c.getJSON(ctx, "/policy", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchCRL retrieves the current signed CRL.
func (c *NAClient) FetchCRL(ctx context.Context) (*trust.CRL, error) {
	var out trust.CRL
	if err := c.getJSON(ctx, "/crl", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// nonceResponse is the GET /nonce body.
type nonceResponse struct {
	Nonce string `json:"nonce"`
}

// FetchNonce requests a fresh, NA-issued, single-use challenge for
// subject (a NodeID) to sign over in a proof-of-possession, per
// spec.md §4.5's "proof-of-possession signature over a fresh nonce
// issued by the NA". Called once per join and once per renewal attempt
// so a captured PoP signature can never be replayed against a later
// request.
func (c *NAClient) FetchNonce(ctx context.Context, subject string) (string, error) {
	var out nonceResponse
	if err := c.getJSON(ctx, "/nonce?subject="+url.QueryEscape(subject), &out); err != nil {
		return "", err
	}
	if out.Nonce == "" {
		return "", fmt.Errorf("certmgr: na returned empty nonce")
	}
	return out.Nonce, nil
}

// joinRequest is the POST /join body.
type joinRequest struct {
	NodePublicKey string   `json:"node_public_key"`
	Roles         []string `json:"roles"`
	ValidityHours int      `json:"validity_hours"`
	PopSignature  string   `json:"pop_signature"`
}

// Join requests a fresh JoinCertificate for a brand-new identity.
func (c *NAClient) Join(ctx context.Context, pub ed25519.PublicKey, roles []string, validityHours int, pop string) (*trust.JoinCertificate, error) {
	req := joinRequest{
		NodePublicKey: string(trust.NodeIDFromPublicKey(pub)),
		Roles:         roles,
		ValidityHours: validityHours,
		PopSignature:  pop,
	}
	var out trust.JoinCertificate
	if err := c.postJSON(ctx, "/join", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// renewRequest is the POST /renew body.
type renewRequest struct {
	CurrentCert  trust.JoinCertificate `json:"current_cert"`
	PopSignature string                `json:"pop_signature"`
}

// Renew exchanges the current certificate plus a fresh PoP signature
// for a new one. Callers apply DefaultRenewalTimeout via ctx.
func (c *NAClient) Renew(ctx context.Context, current *trust.JoinCertificate, pop string) (*trust.JoinCertificate, error) {
	req := renewRequest{CurrentCert: *current, PopSignature: pop}
	var out trust.JoinCertificate
	if err := c.postJSON(ctx, "/renew", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *NAClient) getJSON(ctx context.Context, path string, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(httpReq, out)
}

func (c *NAClient) postJSON(ctx context.Context, path string, body, out interface{}) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("certmgr: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return c.do(httpReq, out)
}

func (c *NAClient) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("certmgr: na request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("certmgr: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("certmgr: na responded %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("certmgr: decode response: %w", err)
	}
	return nil
}
