package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"flashreserve/crypto"
)

const signingDomain = "flashreserve-rpc/v1"

// Envelope wraps the JSON body of a mutating request with the caller's
// signature. The signer's address is the operation's caller.
type Envelope struct {
	Body      json.RawMessage `json:"body"`
	Timestamp int64           `json:"timestamp"`
	Nonce     string          `json:"nonce"`
	Signature string          `json:"signature"`
}

// SigningPayload is the byte string covered by the signature. It binds the
// request path so an envelope cannot be replayed against another route.
func SigningPayload(path string, timestamp int64, nonce string, body []byte) []byte {
	var b strings.Builder
	b.Grow(len(signingDomain) + len(path) + len(nonce) + len(body) + 24)
	b.WriteString(signingDomain)
	b.WriteByte('\n')
	b.WriteString(path)
	b.WriteByte('\n')
	b.WriteString(strconv.FormatInt(timestamp, 10))
	b.WriteByte('\n')
	b.WriteString(nonce)
	b.WriteByte('\n')
	b.Write(body)
	return []byte(b.String())
}

// Sign builds an envelope for body addressed to path.
func Sign(key *crypto.PrivateKey, path string, body any, now time.Time) (*Envelope, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("rpc: encode body: %w", err)
	}
	env := &Envelope{Body: raw, Timestamp: now.Unix(), Nonce: uuid.NewString()}
	sig, err := key.Sign(SigningPayload(path, env.Timestamp, env.Nonce, raw))
	if err != nil {
		return nil, fmt.Errorf("rpc: sign: %w", err)
	}
	env.Signature = hex.EncodeToString(sig)
	return env, nil
}

// Signer recovers the address that signed the envelope for path.
func (e *Envelope) Signer(path string) (crypto.Address, error) {
	if e == nil {
		return crypto.Address{}, errors.New("rpc: empty envelope")
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(e.Signature, "0x"))
	if err != nil {
		return crypto.Address{}, fmt.Errorf("rpc: signature encoding: %w", err)
	}
	return crypto.RecoverAddress(SigningPayload(path, e.Timestamp, e.Nonce, e.Body), sig)
}
