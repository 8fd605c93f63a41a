package webserver

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/golang-jwt/jwt/v5"
)

func strip0x(s string) string {
	if len(s) > 1 && s[:2] == "0x" {
		return s[2:]
	}
	return s
}

// verifySignature checks an EIP-191 personal_sign signature of the nonce and
// that it recovers to the claimed address.
func verifySignature(addr, sigHex, nonce string) error {
	sig, err := hex.DecodeString(strip0x(sigHex))
	if err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(sig) != 65 {
		return fmt.Errorf("invalid signature length: %d", len(sig))
	}

	// personal_sign returns V as 27/28; crypto.SigToPub wants 0/1.
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	msg := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(nonce), nonce)
	digest := crypto.Keccak256([]byte(msg))

	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return fmt.Errorf("recover public key: %w", err)
	}

	recovered := crypto.PubkeyToAddress(*pub)
	if !strings.EqualFold(recovered.Hex(), common.HexToAddress(addr).Hex()) {
		return fmt.Errorf("signature does not match address")
	}
	return nil
}

func issueJWT(addr string, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"addr": addr,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	return token.SignedString(secret)
}
