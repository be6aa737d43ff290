package gateway

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

// authTokenTTL keeps tokens valid long enough to cover retries without
// re-signing on every request.
const authTokenTTL = 10 * time.Minute

// signer produces short-lived auth tokens for one account's API key slot.
type signer struct {
	accountIndex int
	apiIndex     int
	key          *ecdsa.PrivateKey

	mu      sync.Mutex
	token   string
	expires time.Time
}

func newSigner(accountIndex, apiIndex int, privateKeyHex string) (*signer, error) {
	pk, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("account %d: parse private key: %w", accountIndex, err)
	}
	return &signer{accountIndex: accountIndex, apiIndex: apiIndex, key: pk}, nil
}

// Token returns a cached auth token, re-signing when within a minute of
// expiry.
func (s *signer) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" && time.Until(s.expires) > time.Minute {
		return s.token, nil
	}

	expiry := time.Now().Add(authTokenTTL)
	payload := fmt.Sprintf("%d:%d:%d", s.accountIndex, s.apiIndex, expiry.Unix())
	digest := crypto.Keccak256([]byte(payload))
	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return "", fmt.Errorf("account %d: sign auth token: %w", s.accountIndex, err)
	}
	s.token = payload + ":" + hex.EncodeToString(sig)
	s.expires = expiry
	return s.token, nil
}
