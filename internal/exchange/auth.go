package exchange

import (
	"bufio"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
)

// Signer produces the API-Sign header for a private REST call. Credentials
// can be hot-swapped at runtime via SetCredentials, which Gate exposes
// through its setKeySlot request without any other actor touching the raw
// bytes.
type Signer struct {
	mu     sync.RWMutex
	apiKey string
	secret []byte // raw, already base64-decoded
}

// LoadSigner reads the API key and secret from two files, each a single
// line, per the credential contract.
func LoadSigner(keyFile, secretFile string) (*Signer, error) {
	key, err := readFirstLine(keyFile)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	secretLine, err := readFirstLine(secretFile)
	if err != nil {
		return nil, fmt.Errorf("read secret file: %w", err)
	}
	secret, err := base64.StdEncoding.DecodeString(secretLine)
	if err != nil {
		return nil, fmt.Errorf("decode secret: %w", err)
	}
	return &Signer{apiKey: key, secret: secret}, nil
}

func readFirstLine(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("%s: empty file", path)
	}
	return strings.TrimSpace(sc.Text()), nil
}

// SetCredentials hot-swaps key and secret in place. Used by Gate's
// setKeySlot request variant.
func (s *Signer) SetCredentials(keyFile, secretFile string) error {
	n, err := LoadSigner(keyFile, secretFile)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.apiKey = n.apiKey
	s.secret = n.secret
	s.mu.Unlock()
	return nil
}

// APIKey returns the current API key for the API-Key header.
func (s *Signer) APIKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.apiKey
}

// Sign computes the API-Sign header value for a private endpoint call:
// HMAC-SHA512(secret, path + SHA256(nonce + postdata)), base64-encoded.
func (s *Signer) Sign(path, nonce string, postData url.Values) string {
	s.mu.RLock()
	secret := s.secret
	s.mu.RUnlock()

	sha := sha256.New()
	sha.Write([]byte(nonce + postData.Encode()))
	shaSum := sha.Sum(nil)

	mac := hmac.New(sha512.New, secret)
	mac.Write([]byte(path))
	mac.Write(shaSum)

	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
