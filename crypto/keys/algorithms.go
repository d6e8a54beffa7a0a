// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.


package keys

import (
	"log"

	sagecrypto "github.com/genesis-mesh/node/crypto"
)

// init registers every key algorithm a genesis block may name in
// allowed_crypto_suites, and wires the package-level generator wrappers
// crypto.GenerateKeyPair et al. dispatch to.
func init() {
	sagecrypto.SetKeyGenerators(GenerateEd25519KeyPair, GenerateSecp256k1KeyPair, GenerateX25519KeyPair, GenerateRSAKeyPair)

	if err := sagecrypto.RegisterAlgorithm(sagecrypto.AlgorithmInfo{
		KeyType:               sagecrypto.KeyTypeEd25519,
		Name:                  "Ed25519",
		Description:           "Edwards-curve Digital Signature Algorithm using Curve25519",
		CanonicalName:         "ed25519",
		SupportsKeyGeneration: true,
		SupportsSignature:     true,
		SupportsEncryption:    false,
	}); err != nil {
		log.Fatalf("failed to register Ed25519 algorithm: %v", err)
	}

	if err := sagecrypto.RegisterAlgorithm(sagecrypto.AlgorithmInfo{
		KeyType:               sagecrypto.KeyTypeSecp256k1,
		Name:                  "Secp256k1",
		Description:           "ECDSA with secp256k1 curve (used by Bitcoin and Ethereum)",
		CanonicalName:         "es256k",
		SupportsKeyGeneration: true,
		SupportsSignature:     true,
		SupportsEncryption:    false,
	}); err != nil {
		log.Fatalf("failed to register Secp256k1 algorithm: %v", err)
	}

	// X25519 is key-exchange only; it backs the per-connection session
	// derivation in transport/session and never signs a trust object.
	if err := sagecrypto.RegisterAlgorithm(sagecrypto.AlgorithmInfo{
		KeyType:               sagecrypto.KeyTypeX25519,
		Name:                  "X25519",
		Description:           "Elliptic Curve Diffie-Hellman (ECDH) using Curve25519 for key exchange",
		CanonicalName:         "x25519",
		SupportsKeyGeneration: true,
		SupportsSignature:     false,
		SupportsEncryption:    true,
	}); err != nil {
		log.Fatalf("failed to register X25519 algorithm: %v", err)
	}

	if err := sagecrypto.RegisterAlgorithm(sagecrypto.AlgorithmInfo{
		KeyType:               sagecrypto.KeyTypeRSA,
		Name:                  "RS256",
		Description:           "RSA with PKCS#1 v1.5 padding and SHA-256",
		CanonicalName:         "rs256",
		SupportsKeyGeneration: true,
		SupportsSignature:     true,
		SupportsEncryption:    true,
	}); err != nil {
		log.Fatalf("failed to register RSA algorithm: %v", err)
	}
}

// GenerateKeyPair generates a key pair of the given type using the
// registered generator for that algorithm.
func GenerateKeyPair(kt sagecrypto.KeyType) (sagecrypto.KeyPair, error) {
	switch kt {
	case sagecrypto.KeyTypeEd25519:
		return GenerateEd25519KeyPair()
	case sagecrypto.KeyTypeSecp256k1:
		return GenerateSecp256k1KeyPair()
	case sagecrypto.KeyTypeX25519:
		return GenerateX25519KeyPair()
	case sagecrypto.KeyTypeRSA:
		return GenerateRSAKeyPair()
	default:
		return nil, sagecrypto.ErrInvalidKeyType
	}
}
