package ports

import (
	"context"
	"math/big"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/pollum-io/sysweb3-sub000/internal/core/domain"
)

// Coin names understood by hardware transports.
const (
	CoinSyscoin  = "sys"
	CoinBitcoin  = "btc"
	CoinEthereum = "eth"
)

// DeviceScriptType is the device side classification of inputs and outputs.
type DeviceScriptType string

const (
	SpendMultisig    DeviceScriptType = "SPENDMULTISIG"
	SpendWitness     DeviceScriptType = "SPENDWITNESS"
	SpendP2SHWitness DeviceScriptType = "SPENDP2SHWITNESS"
	SpendAddress     DeviceScriptType = "SPENDADDRESS"
	PayToMultisig    DeviceScriptType = "PAYTOMULTISIG"
	PayToWitness     DeviceScriptType = "PAYTOWITNESS"
	PayToP2SHWitness DeviceScriptType = "PAYTOP2SHWITNESS"
	PayToAddress     DeviceScriptType = "PAYTOADDRESS"
	PayToOpReturn    DeviceScriptType = "PAYTOOPRETURN"
)

// DeviceInput is an input in the device native description.
type DeviceInput struct {
	Path       string
	PrevHash   string
	PrevIndex  uint32
	Amount     uint64
	Sequence   uint32
	ScriptType DeviceScriptType
}

// DeviceOutput is an output in the device native description. Change
// outputs carry Path instead of Address.
type DeviceOutput struct {
	Address    string
	Path       string
	Amount     uint64
	OpReturn   []byte
	ScriptType DeviceScriptType
}

// UTXOSignRequest asks the device to sign a transaction. Transports that
// understand psbts (ledger) use Psbt and Policy, the others the native
// Inputs and Outputs.
type UTXOSignRequest struct {
	Coin        string
	Version     int32
	LockTime    uint32
	Inputs      []DeviceInput
	Outputs     []DeviceOutput
	Psbt        string
	Policy      string
	Xpub        string
	Fingerprint uint32
}

// InputSignature is a DER signature returned by the device. PubKey is
// empty when the device returns signatures aligned to the inputs.
type InputSignature struct {
	InputIndex int
	PubKey     []byte
	Signature  []byte
}

// EVMSignRequest asks the device to sign an unsigned EVM transaction
// serialized as its signing payload.
type EVMSignRequest struct {
	Path    string
	ChainID *big.Int
	Payload []byte
}

// EVMSignature is the (v, r, s) triple returned by the device.
type EVMSignature struct {
	V uint64
	R []byte
	S []byte
}

// MessageSignRequest asks the device to sign a message. Hash is set for
// digests (typed data) and Message for personal messages.
type MessageSignRequest struct {
	Coin    string
	Path    string
	Message []byte
	Hash    []byte
}

// HardwareTransport is the logical contract of a hardware signing device.
// Wire protocols are implemented outside this module.
type HardwareTransport interface {
	GetAddress(ctx context.Context, coin, path string) (string, error)
	GetXpub(ctx context.Context, coin, path string) (string, error)
	SignUTXO(ctx context.Context, req UTXOSignRequest) ([]InputSignature, error)
	SignEVM(ctx context.Context, req EVMSignRequest) (*EVMSignature, error)
	SignMessage(ctx context.Context, req MessageSignRequest) ([]byte, error)
}

// HardwareWallet adapts a signing device to the keyring signer contracts.
type HardwareWallet interface {
	// GetAccount returns the address and public key of the device account
	// index on the given network.
	GetAccount(
		ctx context.Context, family domain.ChainFamily,
		network domain.Network, index int,
	) (address, xpub string, err error)
	UTXOSigner(account domain.Account, network domain.Network, params *chaincfg.Params) (UTXOSigner, error)
	EVMSigner(account domain.Account, network domain.Network) (EVMSigner, error)
}
