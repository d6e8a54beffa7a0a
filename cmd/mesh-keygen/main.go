package main

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mr-tron/base58"
	"github.com/spf13/cobra"

	"github.com/genesis-mesh/node/crypto"
	"github.com/genesis-mesh/node/crypto/keys"
	"github.com/genesis-mesh/node/crypto/rotation"
	"github.com/genesis-mesh/node/crypto/storage"
	"github.com/genesis-mesh/node/crypto/vault"
	"github.com/genesis-mesh/node/trust"
)

var rootCmd = &cobra.Command{
	Use:   "mesh-keygen",
	Short: "Offline key and genesis tooling for Genesis Mesh",
	Long: `mesh-keygen generates node/NA/root identity keys and produces the
signed genesis block a mesh network boots from. It never talks to a
running node or Network Authority; everything here is offline, meant
to run once per key ceremony.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(generateKeyCmd, genesisCmd, rotateKeyCmd)
}

var (
	generateKeyDir        string
	generateKeyPassphrase string
)

var generateKeyCmd = &cobra.Command{
	Use:   "generate-key <id>",
	Short: "Generate and persist a new Ed25519 identity key",
	Long: `generate-key writes a new Ed25519 key pair under --dir. A running
node's own identity key is never passphrase-protected (it has no human
present to unlock it on restart), but offline ceremony keys — "root"
and the Network Authority's own key — should be: pass --passphrase to
encrypt the private key at rest with PBKDF2+AES-256-GCM instead of
writing it out as plain PEM.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		kp, err := keys.GenerateEd25519KeyPair()
		if err != nil {
			return fmt.Errorf("generate key: %w", err)
		}
		if generateKeyPassphrase != "" {
			v, err := vault.NewFileVault(generateKeyDir)
			if err != nil {
				return fmt.Errorf("open vault: %w", err)
			}
			priv := kp.PrivateKey().(ed25519.PrivateKey)
			if err := v.StoreEncrypted(id, priv, generateKeyPassphrase); err != nil {
				return fmt.Errorf("persist encrypted key: %w", err)
			}
		} else {
			ks, err := storage.NewFileKeyStorage(generateKeyDir)
			if err != nil {
				return fmt.Errorf("open key storage: %w", err)
			}
			if err := ks.Store(id, kp); err != nil {
				return fmt.Errorf("persist key: %w", err)
			}
		}
		pub := kp.PublicKey().(ed25519.PublicKey)
		fmt.Printf("node_id: %s\n", trust.NodeIDFromPublicKey(pub))
		return nil
	},
}

// loadRootKey loads the root ceremony key from dir, trying the
// passphrase-protected vault first (when passphrase is set) and
// falling back to plain key storage otherwise.
func loadRootKey(dir, passphrase string) (ed25519.PrivateKey, error) {
	if passphrase != "" {
		v, err := vault.NewFileVault(dir)
		if err != nil {
			return nil, fmt.Errorf("open vault: %w", err)
		}
		raw, err := v.LoadDecrypted("root", passphrase)
		if err != nil {
			return nil, fmt.Errorf("load encrypted root key: %w", err)
		}
		return ed25519.PrivateKey(raw), nil
	}
	ks, err := storage.NewFileKeyStorage(dir)
	if err != nil {
		return nil, fmt.Errorf("open root key storage: %w", err)
	}
	kp, err := ks.Load("root")
	if err != nil {
		return nil, fmt.Errorf("load root key (run generate-key root first): %w", err)
	}
	return kp.PrivateKey().(ed25519.PrivateKey), nil
}

var rotateKeyDir string

var rotateKeyCmd = &cobra.Command{
	Use:   "rotate-key <id>",
	Short: "Replace a stored identity key with a freshly generated one",
	Long: `rotate-key generates a new key pair of the same type as the one
currently stored under <id> and overwrites it, recording the rotation
in an in-memory history for the lifetime of this process. It is meant
for manual ceremony use (compromised key material, scheduled operator
rotation); a running node's own identity key is never rotated this
way, since that would invalidate its current certificate mid-session.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		ks, err := storage.NewFileKeyStorage(rotateKeyDir)
		if err != nil {
			return fmt.Errorf("open key storage: %w", err)
		}
		rotator := rotation.NewKeyRotator(ks)
		kp, err := rotator.Rotate(id)
		if err != nil {
			return fmt.Errorf("rotate key: %w", err)
		}
		pub := kp.PublicKey().(ed25519.PublicKey)
		fmt.Printf("node_id: %s\n", trust.NodeIDFromPublicKey(pub))
		return nil
	},
}

var (
	genesisNetworkName    string
	genesisRootKeyDir     string
	genesisRootPassphrase string
	genesisNAPubkey       string
	genesisNAValidDays    int
	genesisAnchors        []string
	genesisOut            string
)

var genesisCmd = &cobra.Command{
	Use:   "genesis",
	Short: "Sign a new genesis block with the Root Sovereign key",
	RunE: func(cmd *cobra.Command, args []string) error {
		rootPriv, err := loadRootKey(genesisRootKeyDir, genesisRootPassphrase)
		if err != nil {
			return err
		}
		rootPub := rootPriv.Public().(ed25519.PublicKey)

		naRaw, err := base58.Decode(genesisNAPubkey)
		if err != nil || len(naRaw) != ed25519.PublicKeySize {
			return fmt.Errorf("invalid --na-pubkey")
		}

		now := time.Now()
		genesis := &trust.GenesisBlock{
			NetworkName:   genesisNetworkName,
			Version:       "1",
			RootPublicKey: base58.Encode(rootPub),
			NetworkAuthority: trust.NetworkAuthorityRef{
				PublicKey: genesisNAPubkey,
				ValidFrom: now,
				ValidTo:   now.Add(time.Duration(genesisNAValidDays) * 24 * time.Hour),
			},
			AllowedCryptoSuites: []crypto.KeyType{crypto.KeyTypeEd25519},
			AllowedTransports:   []string{"websocket"},
			BootstrapAnchors:    genesisAnchors,
		}

		payload, err := trust.Canonicalize(genesis)
		if err != nil {
			return fmt.Errorf("canonicalize genesis: %w", err)
		}
		sig := ed25519.Sign(rootPriv, payload)
		genesis.Signatures = []trust.KeySignature{
			{KeyID: string(trust.NodeIDFromPublicKey(rootPub)), Signature: sig},
		}

		out, err := json.MarshalIndent(genesis, "", "  ")
		if err != nil {
			return err
		}
		if genesisOut == "" {
			fmt.Println(string(out))
			return nil
		}
		return os.WriteFile(genesisOut, out, 0o600)
	},
}

func init() {
	generateKeyCmd.Flags().StringVar(&generateKeyDir, "dir", "./keys", "directory to store the generated key in")
	generateKeyCmd.Flags().StringVar(&generateKeyPassphrase, "passphrase", "", "encrypt the key at rest with this passphrase (root/NA ceremony keys only)")

	genesisCmd.Flags().StringVar(&genesisNetworkName, "network-name", "genesis-mesh", "network_name field")
	genesisCmd.Flags().StringVar(&genesisRootKeyDir, "root-key-dir", "./keys", "directory holding the root identity key")
	genesisCmd.Flags().StringVar(&genesisRootPassphrase, "root-passphrase", "", "passphrase to decrypt the root key, if generated with --passphrase")
	genesisCmd.Flags().StringVar(&genesisNAPubkey, "na-pubkey", "", "base58 Network Authority public key")
	genesisCmd.Flags().IntVar(&genesisNAValidDays, "na-valid-days", 365, "Network Authority key validity window, in days")
	genesisCmd.Flags().StringSliceVar(&genesisAnchors, "anchor", nil, "bootstrap anchor endpoint (repeatable)")
	genesisCmd.Flags().StringVar(&genesisOut, "out", "", "file to write the signed genesis block to (default: stdout)")
	_ = genesisCmd.MarkFlagRequired("na-pubkey")

	rotateKeyCmd.Flags().StringVar(&rotateKeyDir, "dir", "./keys", "directory holding the key to rotate")
}
