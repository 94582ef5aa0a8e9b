package signal

import (
	"errors"
	"fmt"
	"strings"

	"careerloop-engine/pkg/config"

	"github.com/go-jose/go-jose/v4"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidAPIKey    = errors.New("invalid api key")
	ErrInvalidSignature = errors.New("invalid payload signature")
	ErrWeakSigningKey   = errors.New("signing key too short")
)

// MinSigningKeyLen is the shortest HS256 key go-jose accepts.
const MinSigningKeyLen = 32

// Authenticator checks ingestion API keys against bcrypt hashes and unwraps
// HS256 JWS envelopes when a signing key is configured.
type Authenticator struct {
	hashes     [][]byte
	signingKey []byte
}

func NewAuthenticator(cfg *config.Config) (*Authenticator, error) {
	key := cfg.Ingestion.SigningKey
	if key != "" && len(key) < MinSigningKeyLen {
		return nil, fmt.Errorf("%w: INGESTION.SIGNING_KEY needs at least %d bytes, got %d", ErrWeakSigningKey, MinSigningKeyLen, len(key))
	}

	a := &Authenticator{signingKey: []byte(key)}
	for _, h := range cfg.Ingestion.APIKeyHashes {
		if h = strings.TrimSpace(h); h != "" {
			a.hashes = append(a.hashes, []byte(h))
		}
	}
	return a, nil
}

// CheckAPIKey matches key against the configured hashes. With no hashes
// configured every key is refused.
func (a *Authenticator) CheckAPIKey(key string) error {
	if key == "" {
		return ErrInvalidAPIKey
	}
	for _, h := range a.hashes {
		if bcrypt.CompareHashAndPassword(h, []byte(key)) == nil {
			return nil
		}
	}
	return ErrInvalidAPIKey
}

// SignedPayloads reports whether bodies must arrive as compact JWS.
func (a *Authenticator) SignedPayloads() bool {
	return len(a.signingKey) > 0
}

// Open verifies a compact JWS and returns its payload.
func (a *Authenticator) Open(body []byte) ([]byte, error) {
	obj, err := jose.ParseSigned(strings.TrimSpace(string(body)), []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, errors.Join(ErrInvalidSignature, err)
	}
	payload, err := obj.Verify(a.signingKey)
	if err != nil {
		return nil, errors.Join(ErrInvalidSignature, err)
	}
	return payload, nil
}

// Seal signs payload as a compact JWS. Producers and tests use it.
func (a *Authenticator) Seal(payload []byte) (string, error) {
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: a.signingKey}, nil)
	if err != nil {
		return "", err
	}
	obj, err := signer.Sign(payload)
	if err != nil {
		return "", err
	}
	return obj.CompactSerialize()
}

// SourceFromAPIKey derives the ingestion channel from the key prefix.
func SourceFromAPIKey(key string) string {
	switch {
	case strings.HasPrefix(key, "li_"):
		return "linkedin"
	case strings.HasPrefix(key, "gh_"):
		return "github"
	case strings.HasPrefix(key, "lms_"):
		return "lms"
	case strings.HasPrefix(key, "ats_"):
		return "ats"
	default:
		return SourceAPI
	}
}
