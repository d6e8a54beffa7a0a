package crypto

import (
	"crypto"
	"errors"
	"fmt"
	"sync"
	"time"
)

// KeyType represents the type of cryptographic key
type KeyType string

const (
	KeyTypeEd25519   KeyType = "Ed25519"
	KeyTypeSecp256k1 KeyType = "Secp256k1"
	KeyTypeX25519    KeyType = "X25519"
	KeyTypeRSA       KeyType = "RSA"
)

// KeyFormat represents the format for key export/import
type KeyFormat string

const (
	KeyFormatJWK KeyFormat = "JWK"
	KeyFormatPEM KeyFormat = "PEM"
)

// KeyPair represents a cryptographic key pair
type KeyPair interface {
	// PublicKey returns the public key
	PublicKey() crypto.PublicKey
	
	// PrivateKey returns the private key
	PrivateKey() crypto.PrivateKey
	
	// Type returns the key type
	Type() KeyType
	
	// Sign signs the given message
	Sign(message []byte) ([]byte, error)
	
	// Verify verifies the signature
	Verify(message, signature []byte) error
	
	// ID returns a unique identifier for this key pair
	ID() string
}

// KeyExporter handles key export operations
type KeyExporter interface {
	// Export exports the key pair in the specified format
	Export(keyPair KeyPair, format KeyFormat) ([]byte, error)
	
	// ExportPublic exports only the public key
	ExportPublic(keyPair KeyPair, format KeyFormat) ([]byte, error)
}

// KeyImporter handles key import operations
type KeyImporter interface {
	// Import imports a key pair from the specified format
	Import(data []byte, format KeyFormat) (KeyPair, error)
	
	// ImportPublic imports only a public key
	ImportPublic(data []byte, format KeyFormat) (crypto.PublicKey, error)
}

// KeyStorage provides secure storage for keys
type KeyStorage interface {
	// Store stores a key pair with the given ID
	Store(id string, keyPair KeyPair) error
	
	// Load loads a key pair by ID
	Load(id string) (KeyPair, error)
	
	// Delete removes a key pair by ID
	Delete(id string) error
	
	// List returns all stored key IDs
	List() ([]string, error)
	
	// Exists checks if a key exists
	Exists(id string) bool
}

// KeyRotationConfig represents configuration for key rotation
type KeyRotationConfig struct {
	// RotationInterval is the time between rotations
	RotationInterval time.Duration
	
	// MaxKeyAge is the maximum age for a key
	MaxKeyAge time.Duration
	
	// KeepOldKeys determines if old keys should be kept
	KeepOldKeys bool
}

// KeyRotator handles key rotation operations
type KeyRotator interface {
	// Rotate rotates the key for the given ID
	Rotate(id string) (KeyPair, error)
	
	// SetRotationConfig sets the rotation configuration
	SetRotationConfig(config KeyRotationConfig)
	
	// GetRotationHistory returns the rotation history for a key
	GetRotationHistory(id string) ([]KeyRotationEvent, error)
}

// KeyRotationEvent represents a key rotation event
type KeyRotationEvent struct {
	Timestamp   time.Time
	OldKeyID    string
	NewKeyID    string
	Reason      string
}

// KeyManager is the main interface for key management
type KeyManager interface {
	// GenerateKeyPair generates a new key pair
	GenerateKeyPair(keyType KeyType) (KeyPair, error)
	
	// GetExporter returns the key exporter
	GetExporter() KeyExporter
	
	// GetImporter returns the key importer
	GetImporter() KeyImporter
	
	// GetStorage returns the key storage
	GetStorage() KeyStorage
	
	// GetRotator returns the key rotator
	GetRotator() KeyRotator
}

// Common errors
var (
	ErrKeyNotFound      = errors.New("key not found")
	ErrInvalidKeyType   = errors.New("invalid key type")
	ErrInvalidKeyFormat = errors.New("invalid key format")
	ErrKeyExists        = errors.New("key already exists")
	ErrInvalidSignature = errors.New("invalid signature")
)

// AlgorithmInfo describes the capabilities of a registered key algorithm.
// The genesis block's allowed_crypto_suites list is validated against the
// KeyType names registered here.
type AlgorithmInfo struct {
	KeyType               KeyType
	Name                  string
	Description           string
	CanonicalName         string // stable name used in signed-object "algorithm" fields
	SupportsKeyGeneration bool
	SupportsSignature     bool
	SupportsEncryption    bool
}

var (
	registryMu sync.RWMutex
	registry   = map[KeyType]AlgorithmInfo{}
)

// ErrAlgorithmNotSupported is returned when a KeyType has no registered algorithm.
var ErrAlgorithmNotSupported = errors.New("algorithm not supported")

// RegisterAlgorithm registers (or replaces) the capabilities for a KeyType.
func RegisterAlgorithm(info AlgorithmInfo) error {
	if info.KeyType == "" {
		return fmt.Errorf("algorithm registration requires a key type")
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[info.KeyType] = info
	return nil
}

// GetAlgorithmInfo looks up the registered capabilities for a KeyType.
func GetAlgorithmInfo(kt KeyType) (AlgorithmInfo, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	info, ok := registry[kt]
	if !ok {
		return AlgorithmInfo{}, fmt.Errorf("%w: %s", ErrAlgorithmNotSupported, kt)
	}
	return info, nil
}

// ListSupportedAlgorithms returns a snapshot of every registered algorithm.
func ListSupportedAlgorithms() []AlgorithmInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]AlgorithmInfo, 0, len(registry))
	for _, info := range registry {
		out = append(out, info)
	}
	return out
}

// IsAlgorithmSupported reports whether kt has a registered algorithm.
func IsAlgorithmSupported(kt KeyType) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[kt]
	return ok
}

// SupportsSignature reports whether kt's registered algorithm can sign.
func SupportsSignature(kt KeyType) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	info, ok := registry[kt]
	return ok && info.SupportsSignature
}

// SupportsKeyGeneration reports whether kt's registered algorithm can generate keys.
func SupportsKeyGeneration(kt KeyType) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	info, ok := registry[kt]
	return ok && info.SupportsKeyGeneration
}