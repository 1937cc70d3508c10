package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

var (
	// ErrInvalidMessageHash ...
	ErrInvalidMessageHash = errors.New("eth_sign requires a 32 byte hash")
	// ErrUnsupportedTypedDataArrays ...
	ErrUnsupportedTypedDataArrays = errors.New(
		"arrays are not supported by typed data v3, use v4",
	)
	// ErrInvalidTypedData ...
	ErrInvalidTypedData = errors.New("invalid typed data")
)

// PersonalMessageHash returns the EIP-191 hash of msg. A 0x prefixed hex
// message is decoded first, anything else is signed as utf8 text.
func PersonalMessageHash(msg string) []byte {
	return accounts.TextHash(MessageBytes(msg))
}

// RawMessageHash decodes the 32 byte hash signed by eth_sign.
func RawMessageHash(msg string) ([]byte, error) {
	hash, err := hexutil.Decode(msg)
	if err != nil || len(hash) != 32 {
		return nil, ErrInvalidMessageHash
	}
	return hash, nil
}

// TypedDataHash returns the EIP-712 hash of a v3 or v4 typed data json
// payload. V3 rejects array types.
func TypedDataHash(data string, version int) ([]byte, error) {
	var typedData apitypes.TypedData
	if err := json.Unmarshal([]byte(data), &typedData); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTypedData, err)
	}
	if version == 3 {
		for _, fields := range typedData.Types {
			for _, field := range fields {
				if strings.HasSuffix(field.Type, "]") {
					return nil, ErrUnsupportedTypedDataArrays
				}
			}
		}
	}
	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTypedData, err)
	}
	return hash, nil
}

// TypedDataV1Field is one entry of a legacy (v1) typed data message.
type TypedDataV1Field struct {
	Type  string      `json:"type"`
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

// TypedDataV1Hash returns the legacy typed data hash:
// keccak(keccak(packed "type name"...) || keccak(packed values...)).
func TypedDataV1Hash(data string) ([]byte, error) {
	var fields []TypedDataV1Field
	if err := json.Unmarshal([]byte(data), &fields); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTypedData, err)
	}
	if len(fields) <= 0 {
		return nil, fmt.Errorf("%w: empty message", ErrInvalidTypedData)
	}

	schema := make([][]byte, 0, len(fields))
	values := make([][]byte, 0, len(fields))
	for _, f := range fields {
		schema = append(schema, []byte(f.Type+" "+f.Name))
		packed, err := encodePacked(f.Type, f.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: field %s: %s", ErrInvalidTypedData, f.Name, err)
		}
		values = append(values, packed)
	}

	return crypto.Keccak256(
		crypto.Keccak256(schema...),
		crypto.Keccak256(values...),
	), nil
}

// SignatureToRSV moves the recovery id of a [R || S || V] signature from
// {0,1} to {27,28} as expected by dapps.
func SignatureToRSV(sig []byte) []byte {
	out := make([]byte, len(sig))
	copy(out, sig)
	if len(out) == crypto.SignatureLength && out[64] < 27 {
		out[64] += 27
	}
	return out
}

// RecoverPersonalSigner returns the address that produced sig over the
// EIP-191 hash of msg.
func RecoverPersonalSigner(msg string, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes", crypto.SignatureLength)
	}
	normalized := make([]byte, len(sig))
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pubkey, err := crypto.SigToPub(PersonalMessageHash(msg), normalized)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pubkey), nil
}

// MessageBytes returns the bytes of a personal message: a 0x prefixed hex
// message is decoded, anything else is taken as utf8 text.
func MessageBytes(msg string) []byte {
	if strings.HasPrefix(msg, "0x") {
		if b, err := hexutil.Decode(msg); err == nil {
			return b
		}
	}
	return []byte(msg)
}

func encodePacked(typ string, value interface{}) ([]byte, error) {
	switch {
	case typ == "string":
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected string")
		}
		return []byte(s), nil
	case typ == "bytes":
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected hex string")
		}
		return hexutil.Decode(s)
	case typ == "address":
		s, ok := value.(string)
		if !ok || !common.IsHexAddress(s) {
			return nil, fmt.Errorf("expected address")
		}
		return common.HexToAddress(s).Bytes(), nil
	case typ == "bool":
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool")
		}
		if b {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case strings.HasPrefix(typ, "bytes"):
		size, err := strconv.Atoi(strings.TrimPrefix(typ, "bytes"))
		if err != nil || size < 1 || size > 32 {
			return nil, fmt.Errorf("invalid type %s", typ)
		}
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected hex string")
		}
		b, err := hexutil.Decode(s)
		if err != nil || len(b) > size {
			return nil, fmt.Errorf("invalid %s value", typ)
		}
		return common.RightPadBytes(b, size), nil
	case strings.HasPrefix(typ, "uint"), strings.HasPrefix(typ, "int"):
		return encodePackedInteger(typ, value)
	default:
		return nil, fmt.Errorf("unsupported type %s", typ)
	}
}

func encodePackedInteger(typ string, value interface{}) ([]byte, error) {
	signed := strings.HasPrefix(typ, "int")
	bits := 256
	if suffix := strings.TrimLeft(typ, "uint"); suffix != "" {
		n, err := strconv.Atoi(suffix)
		if err != nil || n < 8 || n > 256 || n%8 != 0 {
			return nil, fmt.Errorf("invalid type %s", typ)
		}
		bits = n
	}

	var n *big.Int
	switch v := value.(type) {
	case float64:
		n, _ = new(big.Float).SetFloat64(v).Int(nil)
	case string:
		parsed, ok := math.ParseBig256(v)
		if !ok {
			return nil, fmt.Errorf("invalid integer %s", v)
		}
		n = parsed
	case json.Number:
		parsed, ok := math.ParseBig256(v.String())
		if !ok {
			return nil, fmt.Errorf("invalid integer %s", v)
		}
		n = parsed
	default:
		return nil, fmt.Errorf("expected integer")
	}

	if !signed && n.Sign() < 0 {
		return nil, fmt.Errorf("negative value for %s", typ)
	}
	if signed {
		n = math.U256(new(big.Int).Set(n))
	}
	return math.PaddedBigBytes(n, 32)[32-bits/8:], nil
}
