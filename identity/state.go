package identity

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeStateInvalid = "SESSION_OAUTH_STATE_INVALID"
	TextCodeStateExpired = "SESSION_OAUTH_STATE_EXPIRED"
	TextCodeStateSealer  = "SESSION_OAUTH_STATE_SEALER"

	DefaultStateTTL = 10 * time.Minute
)

// ErrInvalidState is returned when the state parameter was tampered with or
// sealed with another key.
var ErrInvalidState = goerrors.New("invalid oauth state", goerrors.CategoryBadInput).
	WithTextCode(TextCodeStateInvalid).
	WithCode(goerrors.CodeBadRequest)

// ErrStateExpired is returned when the login took longer than the state TTL.
var ErrStateExpired = goerrors.New("oauth state expired", goerrors.CategoryBadInput).
	WithTextCode(TextCodeStateExpired).
	WithCode(goerrors.CodeBadRequest)

// LoginState travels through the provider inside the state parameter.
type LoginState struct {
	Nonce        string `json:"n"`
	ReturnTo     string `json:"r,omitempty"`
	CodeVerifier string `json:"cv,omitempty"`
	ExpiresAt    int64  `json:"exp"`
}

// StateSealer encrypts LoginState with AES-GCM so the PKCE verifier stays
// private while it round trips through the browser.
type StateSealer struct {
	aead cipher.AEAD
	ttl  time.Duration
	now  func() time.Time
}

// NewStateSealer derives a 256 bit key from secret.
func NewStateSealer(secret []byte, ttl time.Duration) (*StateSealer, error) {
	if len(secret) == 0 {
		return nil, goerrors.New("identity: state secret is required", goerrors.CategoryBadInput).
			WithTextCode(TextCodeStateSealer)
	}
	if ttl == 0 {
		ttl = DefaultStateTTL
	}

	key := sha256.Sum256(secret)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, sealerError(err, "identity: state cipher")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, sealerError(err, "identity: state gcm")
	}

	return &StateSealer{aead: aead, ttl: ttl, now: time.Now}, nil
}

// Seal fills nonce and expiry when missing and returns the URL safe token.
func (s *StateSealer) Seal(state LoginState) (string, error) {
	if state.Nonce == "" {
		nonce, err := randomToken(16)
		if err != nil {
			return "", err
		}
		state.Nonce = nonce
	}
	if state.ExpiresAt == 0 {
		state.ExpiresAt = s.now().Add(s.ttl).Unix()
	}

	plaintext, err := json.Marshal(state)
	if err != nil {
		return "", sealerError(err, "identity: encode state")
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", sealerError(err, "identity: state nonce")
	}

	sealed := s.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open authenticates and decrypts token.
func (s *StateSealer) Open(token string) (LoginState, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(data) < s.aead.NonceSize() {
		return LoginState{}, ErrInvalidState
	}

	nonce, ciphertext := data[:s.aead.NonceSize()], data[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return LoginState{}, ErrInvalidState
	}

	var state LoginState
	if err := json.Unmarshal(plaintext, &state); err != nil {
		return LoginState{}, ErrInvalidState
	}

	if s.now().Unix() > state.ExpiresAt {
		return LoginState{}, ErrStateExpired
	}
	return state, nil
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", sealerError(err, "identity: random token")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func sealerError(err error, message string) error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, message).
		WithTextCode(TextCodeStateSealer)
}
