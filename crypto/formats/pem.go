package formats

import (
	"crypto"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	sagecrypto "github.com/genesis-mesh/node/crypto"
	"github.com/genesis-mesh/node/crypto/keys"
)

// crypto/x509 only knows the NIST curves, so secp256k1 needs its own
// SEC1/PKIX codec. oidPublicKeyECDSA and oidSecp256k1 are the same OIDs
// x509 would emit for a NIST curve, just with secp256k1's curve OID.
var (
	oidPublicKeyECDSA = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidSecp256k1      = asn1.ObjectIdentifier{1, 3, 132, 0, 10}
)

// secp256k1ECPrivateKey mirrors the SEC1 ECPrivateKey ASN.1 structure.
type secp256k1ECPrivateKey struct {
	Version       int
	PrivateKey    []byte
	NamedCurveOID asn1.ObjectIdentifier `asn1:"optional,explicit,tag:0"`
	PublicKey     asn1.BitString        `asn1:"optional,explicit,tag:1"`
}

func marshalSecp256k1ECPrivateKey(priv *ecdsa.PrivateKey) ([]byte, error) {
	point := elliptic.Marshal(priv.Curve, priv.X, priv.Y)
	return asn1.Marshal(secp256k1ECPrivateKey{
		Version:       1,
		PrivateKey:    priv.D.Bytes(),
		NamedCurveOID: oidSecp256k1,
		PublicKey:     asn1.BitString{Bytes: point, BitLength: len(point) * 8},
	})
}

func parseSecp256k1ECPrivateKey(der []byte) (*ecdsa.PrivateKey, error) {
	var key secp256k1ECPrivateKey
	if _, err := asn1.Unmarshal(der, &key); err != nil {
		return nil, fmt.Errorf("failed to parse EC private key: %w", err)
	}
	curve := secp256k1.S256()
	d := new(big.Int).SetBytes(key.PrivateKey)
	x, y := curve.ScalarBaseMult(key.PrivateKey)
	return &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: curve, X: x, Y: y},
		D:         d,
	}, nil
}

func marshalSecp256k1PublicKey(pub *ecdsa.PublicKey) ([]byte, error) {
	curveOID, err := asn1.Marshal(oidSecp256k1)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal secp256k1 curve OID: %w", err)
	}
	point := elliptic.Marshal(pub.Curve, pub.X, pub.Y)
	spki := pkix.PublicKey{
		Algorithm: pkix.AlgorithmIdentifier{
			Algorithm:  oidPublicKeyECDSA,
			Parameters: asn1.RawValue{FullBytes: curveOID},
		},
		BitString: asn1.BitString{Bytes: point, BitLength: len(point) * 8},
	}
	return asn1.Marshal(spki)
}

func parseSecp256k1PublicKey(der []byte) (*ecdsa.PublicKey, error) {
	var spki struct {
		Algorithm pkix.AlgorithmIdentifier
		PublicKey asn1.BitString
	}
	if _, err := asn1.Unmarshal(der, &spki); err != nil {
		return nil, fmt.Errorf("failed to parse secp256k1 public key: %w", err)
	}
	x, y := elliptic.Unmarshal(secp256k1.S256(), spki.PublicKey.Bytes)
	if x == nil {
		return nil, errors.New("invalid secp256k1 public key point")
	}
	return &ecdsa.PublicKey{Curve: secp256k1.S256(), X: x, Y: y}, nil
}

// isSecp256k1PKIX reports whether der names the secp256k1 curve OID in its
// ECDSA AlgorithmIdentifier, without otherwise validating the structure.
func isSecp256k1PKIX(der []byte) bool {
	var spki struct {
		Algorithm pkix.AlgorithmIdentifier
		PublicKey asn1.BitString
	}
	if _, err := asn1.Unmarshal(der, &spki); err != nil {
		return false
	}
	if !spki.Algorithm.Algorithm.Equal(oidPublicKeyECDSA) {
		return false
	}
	var curveOID asn1.ObjectIdentifier
	if _, err := asn1.Unmarshal(spki.Algorithm.Parameters.FullBytes, &curveOID); err != nil {
		return false
	}
	return curveOID.Equal(oidSecp256k1)
}

// pemExporter implements KeyExporter for PEM format
type pemExporter struct{}

// NewPEMExporter creates a new PEM exporter
func NewPEMExporter() sagecrypto.KeyExporter {
	return &pemExporter{}
}

// Export exports the key pair in PEM format
func (e *pemExporter) Export(keyPair sagecrypto.KeyPair, format sagecrypto.KeyFormat) ([]byte, error) {
	if format != sagecrypto.KeyFormatPEM {
		return nil, sagecrypto.ErrInvalidKeyFormat
	}

	switch keyPair.Type() {
	case sagecrypto.KeyTypeEd25519, sagecrypto.KeyTypeRSA, sagecrypto.KeyTypeX25519:
		der, err := x509.MarshalPKCS8PrivateKey(keyPair.PrivateKey())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal private key: %w", err)
		}
		return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil

	case sagecrypto.KeyTypeSecp256k1:
		privateKey, ok := keyPair.PrivateKey().(*ecdsa.PrivateKey)
		if !ok {
			return nil, errors.New("invalid Secp256k1 private key type")
		}
		der, err := marshalSecp256k1ECPrivateKey(privateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal EC private key: %w", err)
		}
		return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), nil

	default:
		return nil, fmt.Errorf("unsupported key type: %s", keyPair.Type())
	}
}

// ExportPublic exports only the public key in PEM format
func (e *pemExporter) ExportPublic(keyPair sagecrypto.KeyPair, format sagecrypto.KeyFormat) ([]byte, error) {
	if format != sagecrypto.KeyFormatPEM {
		return nil, sagecrypto.ErrInvalidKeyFormat
	}

	var der []byte
	var err error
	if keyPair.Type() == sagecrypto.KeyTypeSecp256k1 {
		pub, ok := keyPair.PublicKey().(*ecdsa.PublicKey)
		if !ok {
			return nil, errors.New("invalid Secp256k1 public key type")
		}
		der, err = marshalSecp256k1PublicKey(pub)
	} else {
		der, err = x509.MarshalPKIXPublicKey(keyPair.PublicKey())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// pemImporter implements KeyImporter for PEM format
type pemImporter struct{}

// NewPEMImporter creates a new PEM importer
func NewPEMImporter() sagecrypto.KeyImporter {
	return &pemImporter{}
}

// Import imports a key pair from PEM format. Only the first PEM block is
// consulted; any data that follows (further blocks, trailing comments) is
// ignored.
func (i *pemImporter) Import(data []byte, format sagecrypto.KeyFormat) (sagecrypto.KeyPair, error) {
	if format != sagecrypto.KeyFormatPEM {
		return nil, sagecrypto.ErrInvalidKeyFormat
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	switch block.Type {
	case "EC PRIVATE KEY":
		privateKey, err := parseSecp256k1ECPrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		priv := secp256k1.PrivKeyFromBytes(privateKey.D.Bytes())
		return keys.NewSecp256k1KeyPair(priv, "")

	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse PKCS8 private key: %w", err)
		}
		switch privateKey := key.(type) {
		case ed25519.PrivateKey:
			return keys.NewEd25519KeyPair(privateKey, "")
		case *rsa.PrivateKey:
			return keys.NewRSAKeyPair(privateKey, "")
		case *ecdh.PrivateKey:
			return keys.NewX25519KeyPair(privateKey, "")
		default:
			return nil, fmt.Errorf("unsupported PKCS8 key type: %T", key)
		}

	default:
		return nil, fmt.Errorf("unsupported PEM block type: %s", block.Type)
	}
}

// ImportPublic imports only a public key from PEM format
func (i *pemImporter) ImportPublic(data []byte, format sagecrypto.KeyFormat) (crypto.PublicKey, error) {
	if format != sagecrypto.KeyFormatPEM {
		return nil, sagecrypto.ErrInvalidKeyFormat
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	switch block.Type {
	case "PUBLIC KEY":
		if isSecp256k1PKIX(block.Bytes) {
			return parseSecp256k1PublicKey(block.Bytes)
		}
		return x509.ParsePKIXPublicKey(block.Bytes)
	default:
		return nil, fmt.Errorf("unsupported PEM block type: %s", block.Type)
	}
}
