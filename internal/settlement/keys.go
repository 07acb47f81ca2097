package settlement

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// secretKeyLen is the length of an ed25519 keypair: 32-byte seed followed
// by the 32-byte public key.
const secretKeyLen = 64

// ParseSigningKey resolves a wallet signing secret into a keypair. Two
// encodings are accepted: a base58 string, and a comma-separated list of
// exactly 64 decimal bytes. The presence of a comma selects the variant;
// each variant then fails explicitly rather than falling through to the
// other.
func ParseSigningKey(secret string) (solana.PrivateKey, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("%w: empty secret", ErrKeyFormat)
	}

	if strings.Contains(secret, ",") {
		return parseByteArrayKey(secret)
	}
	return parseBase58Key(secret)
}

func parseBase58Key(secret string) (solana.PrivateKey, error) {
	key, err := solana.PrivateKeyFromBase58(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base58 secret: %v", ErrKeyFormat, err)
	}
	if len(key) != secretKeyLen {
		return nil, fmt.Errorf("%w: decoded base58 secret is %d bytes, want %d", ErrKeyFormat, len(key), secretKeyLen)
	}
	return key, nil
}

func parseByteArrayKey(secret string) (solana.PrivateKey, error) {
	parts := strings.Split(secret, ",")
	if len(parts) != secretKeyLen {
		return nil, fmt.Errorf("%w: byte array has %d elements, want %d", ErrKeyFormat, len(parts), secretKeyLen)
	}

	buf := make([]byte, secretKeyLen)
	for i, part := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(part), 10, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: element %d is not a byte: %v", ErrKeyFormat, i, err)
		}
		buf[i] = byte(v)
	}
	return solana.PrivateKey(buf), nil
}
