package storage

import (
	sagecrypto "github.com/genesis-mesh/node/crypto"
)

func init() {
	sagecrypto.SetStorageConstructors(NewMemoryKeyStorage)
}
