package certmgr

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/genesis-mesh/node/internal/metrics"
)

// popClaims is the proof-of-possession envelope a node presents to the
// Network Authority when joining or renewing: a JWT whose signature
// over a fresh NA-issued nonce proves the requester holds the private
// key matching node_public_key, without exposing the key itself.
type popClaims struct {
	jwt.RegisteredClaims
	Nonce string `json:"nonce"`
}

// SignProofOfPossession builds a PoP JWT over nonce, subject, and a
// short validity window, signed with the node's private identity key
// using golang-jwt's native EdDSA (Ed25519) support.
func SignProofOfPossession(priv ed25519.PrivateKey, subject, nonce string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := popClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Nonce: nonce,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(priv)
	if err != nil {
		metrics.CryptoErrors.WithLabelValues("sign").Inc()
		return "", err
	}
	metrics.CryptoOperations.WithLabelValues("sign", "ed25519").Inc()
	return signed, nil
}

// VerifyProofOfPossession checks a PoP JWT against the claimed subject
// key and expected nonce. The Network Authority side of §6's join/renew
// API uses this to authenticate a requester before issuing a certificate.
func VerifyProofOfPossession(tokenString string, pub ed25519.PublicKey, expectNonce string) error {
	token, err := jwt.ParseWithClaims(tokenString, &popClaims{}, func(t *jwt.Token) (interface{}, error) {
		return pub, nil
	}, jwt.WithValidMethods([]string{"EdDSA"}))
	if err != nil {
		metrics.CryptoErrors.WithLabelValues("verify").Inc()
		return fmt.Errorf("certmgr: parse pop: %w", err)
	}
	claims, ok := token.Claims.(*popClaims)
	if !ok || !token.Valid {
		metrics.CryptoErrors.WithLabelValues("verify").Inc()
		return fmt.Errorf("certmgr: pop token invalid")
	}
	if claims.Nonce != expectNonce {
		metrics.CryptoErrors.WithLabelValues("verify").Inc()
		return fmt.Errorf("certmgr: pop nonce mismatch")
	}
	metrics.CryptoOperations.WithLabelValues("verify", "ed25519").Inc()
	return nil
}
