package formats

import (
	sagecrypto "github.com/genesis-mesh/node/crypto"
)

func init() {
	sagecrypto.SetFormatConstructors(NewJWKExporter, NewPEMExporter, NewJWKImporter, NewPEMImporter)
}
