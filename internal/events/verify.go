package events

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// SignatureHeader carries "sha256=<hex hmac of the body>".
const SignatureHeader = "X-Signature"

var ErrInvalidSignature = errors.New("invalid notification signature")

type Verifier interface {
	Verify(body []byte, signature string) error
	Enabled() bool
}

type HMACVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

// Sign returns the header value for payload under secret.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return fmt.Sprintf("sha256=%s", hex.EncodeToString(mac.Sum(nil)))
}

func (v *HMACVerifier) Verify(body []byte, signature string) error {
	hexSig, ok := strings.CutPrefix(signature, "sha256=")
	if !ok {
		return ErrInvalidSignature
	}
	got, err := hex.DecodeString(hexSig)
	if err != nil {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrInvalidSignature
	}
	return nil
}

func (v *HMACVerifier) Enabled() bool { return true }

// UnverifiedVerifier accepts every notification. Production deployments must
// configure a signing secret.
type UnverifiedVerifier struct{}

func (UnverifiedVerifier) Verify([]byte, string) error { return nil }
func (UnverifiedVerifier) Enabled() bool               { return false }

func NewVerifier(secret string) Verifier {
	if secret == "" {
		return UnverifiedVerifier{}
	}
	return NewHMACVerifier(secret)
}
