package crypto

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Subaccount identifies a trading subaccount on the Nado engine. The engine
// addresses subaccounts by a 32-byte sender value: the 20-byte owner address
// followed by the subaccount name padded to 12 bytes.
type Subaccount struct {
	Owner common.Address
	Name  string
}

// Bytes32 returns the 32-byte sender encoding of the subaccount.
func (s Subaccount) Bytes32() ([32]byte, error) {
	var out [32]byte
	if len(s.Name) > 12 {
		return out, fmt.Errorf("crypto: subaccount name %q exceeds 12 bytes", s.Name)
	}
	copy(out[:20], s.Owner.Bytes())
	copy(out[20:], []byte(s.Name))
	return out, nil
}

// Hex returns the 0x-prefixed hex encoding of the 32-byte sender, which is
// what the gateway's query endpoints expect.
func (s Subaccount) Hex() (string, error) {
	b, err := s.Bytes32()
	if err != nil {
		return "", err
	}
	return "0x" + common.Bytes2Hex(b[:]), nil
}
