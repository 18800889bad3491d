package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// --------------------------------------------------------------------------
// EIP-712 type hashes (pre-computed keccak256 of the canonical type strings).
// --------------------------------------------------------------------------

var (
	// EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)
	eip712DomainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"),
	)

	// Order(bytes32 sender,int128 priceX18,int128 amount,uint64 expiration,uint64 nonce)
	orderTypeHash = ethcrypto.Keccak256(
		[]byte("Order(bytes32 sender,int128 priceX18,int128 amount,uint64 expiration,uint64 nonce)"),
	)

	// Cancellation(bytes32 sender,uint32[] productIds,bytes32[] digests,uint64 nonce)
	cancellationTypeHash = ethcrypto.Keccak256(
		[]byte("Cancellation(bytes32 sender,uint32[] productIds,bytes32[] digests,uint64 nonce)"),
	)
)

// OrderPayload is the signed portion of an engine order. Amount is positive
// for buys and negative for sells; both PriceX18 and Amount are x18
// fixed-point integers.
type OrderPayload struct {
	Sender     [32]byte
	PriceX18   *big.Int
	Amount     *big.Int
	Expiration uint64
	Nonce      uint64
}

// CancellationPayload is the signed portion of an engine cancellation
// targeting specific order digests.
type CancellationPayload struct {
	Sender     [32]byte
	ProductIDs []uint32
	Digests    [][32]byte
	Nonce      uint64
}

// Signer provides EIP-712 signing for the Nado off-chain engine.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	domainSep  []byte // cached EIP-712 domain separator hash
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key, the
// target chain ID, and the engine's verifying contract address.
func NewSigner(privateKeyHex string, chainID int64, verifyingContract string) (*Signer, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}

	s := &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
	}
	s.domainSep = buildDomainSeparator("Nado", "0.0.1", chainID, common.HexToAddress(verifyingContract))

	return s, nil
}

// Address returns the Ethereum address derived from the signer's private key.
func (s *Signer) Address() common.Address {
	return s.address
}

// OrderDigest returns the EIP-712 digest of an order. The engine uses this
// digest as the order's identifier, so it is computed both when signing and
// when matching venue responses against locally built orders.
func (s *Signer) OrderDigest(order OrderPayload) [32]byte {
	structHash := ethcrypto.Keccak256(
		concatBytes(
			orderTypeHash,
			order.Sender[:],
			signedBigTo32Bytes(order.PriceX18),
			signedBigTo32Bytes(order.Amount),
			uint64To32Bytes(order.Expiration),
			uint64To32Bytes(order.Nonce),
		),
	)

	var digest [32]byte
	copy(digest[:], eip712Hash(s.domainSep, structHash))
	return digest
}

// SignOrder signs an order struct and returns the hex-encoded 65-byte
// signature together with the order digest.
func (s *Signer) SignOrder(order OrderPayload) (sig string, digest [32]byte, err error) {
	digest = s.OrderDigest(order)
	sig, err = s.signDigest(digest[:])
	return sig, digest, err
}

// SignCancellation signs a cancellation struct and returns the hex-encoded
// 65-byte signature.
func (s *Signer) SignCancellation(c CancellationPayload) (string, error) {
	productIDs := make([]byte, 0, len(c.ProductIDs)*32)
	for _, id := range c.ProductIDs {
		productIDs = append(productIDs, uint64To32Bytes(uint64(id))...)
	}
	digests := make([]byte, 0, len(c.Digests)*32)
	for _, d := range c.Digests {
		digests = append(digests, d[:]...)
	}

	structHash := ethcrypto.Keccak256(
		concatBytes(
			cancellationTypeHash,
			c.Sender[:],
			ethcrypto.Keccak256(productIDs),
			ethcrypto.Keccak256(digests),
			uint64To32Bytes(c.Nonce),
		),
	)

	return s.signDigest(eip712Hash(s.domainSep, structHash))
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// buildDomainSeparator returns keccak256(abi.encode(typeHash, nameHash,
// versionHash, chainId, verifyingContract)).
func buildDomainSeparator(name, version string, chainID int64, verifying common.Address) []byte {
	return ethcrypto.Keccak256(
		concatBytes(
			eip712DomainTypeHash,
			ethcrypto.Keccak256([]byte(name)),
			ethcrypto.Keccak256([]byte(version)),
			uint64To32Bytes(uint64(chainID)),
			common.LeftPadBytes(verifying.Bytes(), 32),
		),
	)
}

// eip712Hash computes the final EIP-712 digest:
//
//	keccak256("\x19\x01" || domainSeparator || structHash)
func eip712Hash(domainSep, structHash []byte) []byte {
	return ethcrypto.Keccak256(
		concatBytes(
			[]byte{0x19, 0x01},
			domainSep,
			structHash,
		),
	)
}

// signDigest signs a 32-byte digest using secp256k1 and returns the
// hex-encoded signature (r || s || v, 65 bytes).
func (s *Signer) signDigest(digest []byte) (string, error) {
	sig, err := ethcrypto.Sign(digest, s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: signing: %w", err)
	}

	// go-ethereum returns v in {0,1}; the engine expects v in {27,28}.
	if sig[64] < 27 {
		sig[64] += 27
	}

	return "0x" + hex.EncodeToString(sig), nil
}

// twoTo256 is the modulus used for two's-complement encoding of int128
// values into 32-byte words.
var twoTo256 = new(big.Int).Lsh(big.NewInt(1), 256)

// signedBigTo32Bytes returns the 32-byte two's-complement big-endian
// representation of n. Negative amounts (sell orders) wrap modulo 2^256.
func signedBigTo32Bytes(n *big.Int) []byte {
	if n.Sign() >= 0 {
		return common.LeftPadBytes(n.Bytes(), 32)
	}
	wrapped := new(big.Int).Add(twoTo256, n)
	return common.LeftPadBytes(wrapped.Bytes(), 32)
}

// uint64To32Bytes returns a 32-byte big-endian representation of n.
func uint64To32Bytes(n uint64) []byte {
	return common.LeftPadBytes(new(big.Int).SetUint64(n).Bytes(), 32)
}

// concatBytes concatenates multiple byte slices into one.
func concatBytes(slices ...[]byte) []byte {
	total := 0
	for _, s := range slices {
		total += len(s)
	}
	buf := make([]byte, 0, total)
	for _, s := range slices {
		buf = append(buf, s...)
	}
	return buf
}
