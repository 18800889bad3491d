package crypto

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Throwaway key used only in tests; its address is well known.
const (
	testKeyHex  = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testKeyAddr = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func newTestSigner(t *testing.T) *Signer {
	s, err := NewSigner(testKeyHex, 1, "0x0000000000000000000000000000000000000001")
	require.NoError(t, err)
	return s
}

func testOrder() OrderPayload {
	var sender [32]byte
	copy(sender[:], common.HexToAddress(testKeyAddr).Bytes())
	copy(sender[20:], "default")
	return OrderPayload{
		Sender:     sender,
		PriceX18:   big.NewInt(100_050_000_000_000_000),
		Amount:     big.NewInt(1_500_000_000_000_000),
		Expiration: 1_700_000_000,
		Nonce:      42,
	}
}

func TestNewSigner(t *testing.T) {
	s := newTestSigner(t)
	assert.Equal(t, common.HexToAddress(testKeyAddr), s.Address())

	// 0x prefix is accepted.
	s2, err := NewSigner("0x"+testKeyHex, 1, "0x0000000000000000000000000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, s.Address(), s2.Address())

	_, err = NewSigner("not-hex", 1, "0x0000000000000000000000000000000000000001")
	assert.Error(t, err)
}

func TestOrderDigest_Deterministic(t *testing.T) {
	s := newTestSigner(t)
	order := testOrder()

	d1 := s.OrderDigest(order)
	d2 := s.OrderDigest(order)
	assert.Equal(t, d1, d2)

	order.Nonce++
	assert.NotEqual(t, d1, s.OrderDigest(order))
}

func TestOrderDigest_DependsOnDomain(t *testing.T) {
	s1 := newTestSigner(t)
	s2, err := NewSigner(testKeyHex, 2, "0x0000000000000000000000000000000000000001")
	require.NoError(t, err)

	order := testOrder()
	assert.NotEqual(t, s1.OrderDigest(order), s2.OrderDigest(order))
}

func TestSignOrder_Recoverable(t *testing.T) {
	s := newTestSigner(t)
	sigHex, digest, err := s.SignOrder(testOrder())
	require.NoError(t, err)

	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.Contains(t, []byte{27, 28}, sig[64])

	// Recovering the public key from the digest must yield the signer.
	sig[64] -= 27
	pub, err := ethcrypto.SigToPub(digest[:], sig)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), ethcrypto.PubkeyToAddress(*pub))
}

func TestSignCancellation(t *testing.T) {
	s := newTestSigner(t)
	order := testOrder()
	digest := s.OrderDigest(order)

	sigHex, err := s.SignCancellation(CancellationPayload{
		Sender:     order.Sender,
		ProductIDs: []uint32{2},
		Digests:    [][32]byte{digest},
		Nonce:      43,
	})
	require.NoError(t, err)

	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	require.NoError(t, err)
	assert.Len(t, sig, 65)
}

func TestSignedBigTo32Bytes(t *testing.T) {
	// Positive values are left-padded big-endian.
	got := signedBigTo32Bytes(big.NewInt(1))
	want := make([]byte, 32)
	want[31] = 1
	assert.Equal(t, want, got)

	// Negative values wrap modulo 2^256 (two's complement).
	got = signedBigTo32Bytes(big.NewInt(-1))
	assert.Equal(t, bytes.Repeat([]byte{0xff}, 32), got)

	got = signedBigTo32Bytes(big.NewInt(-1_500_000_000_000_000))
	n := new(big.Int).SetBytes(got)
	n.Sub(n, twoTo256)
	assert.Zero(t, n.Cmp(big.NewInt(-1_500_000_000_000_000)))
}
