package utils

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"golang.org/x/net/http/httpguts"

	"pixbatch/models"
)

var (
	ErrInvalidToken     = errors.New("invalid token format")
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenNotYetValid = errors.New("token not yet valid")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrInvalidIssuer    = errors.New("invalid issuer")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrNoKey            = errors.New("no verification key provided")
)

// storageKeyLen is the length of the hex keys handed out by the credentials store.
const storageKeyLen = 32

// VerifyConfig selects the keys an upload token may be signed with.
// HS256 tokens are checked against SecretKey, RS256 tokens against PublicKey.
type VerifyConfig struct {
	SecretKey      []byte
	PublicKey      *rsa.PublicKey
	ExpectedIssuer string
	ClockSkew      time.Duration
}

func (c VerifyConfig) algorithms() []jose.SignatureAlgorithm {
	var algs []jose.SignatureAlgorithm
	if len(c.SecretKey) > 0 {
		algs = append(algs, jose.HS256)
	}
	if c.PublicKey != nil {
		algs = append(algs, jose.RS256)
	}
	return algs
}

// VerifyConvertToken checks an upload token's signature, lifetime and
// delivery claims and returns the claims.
func VerifyConvertToken(tokenString string, config VerifyConfig) (*models.ConvertClaims, error) {
	algs := config.algorithms()
	if len(algs) == 0 {
		return nil, ErrNoKey
	}
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	tok, err := jwt.ParseSigned(tokenString, algs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	// ParseSigned already restricted the header to algs
	var key any = config.SecretKey
	if jose.SignatureAlgorithm(tok.Headers[0].Algorithm) == jose.RS256 {
		key = config.PublicKey
	}
	claims := &models.ConvertClaims{}
	if err := tok.Claims(key, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	now := time.Now()
	if claims.ExpiresAt > 0 && now.Add(-config.ClockSkew).Unix() > claims.ExpiresAt {
		return nil, ErrTokenExpired
	}
	if claims.IssuedAt > 0 && now.Add(config.ClockSkew).Unix() < claims.IssuedAt {
		return nil, ErrTokenNotYetValid
	}
	if config.ExpectedIssuer != "" && claims.Issuer != config.ExpectedIssuer {
		return nil, fmt.Errorf("%w: expected %q, got %q", ErrInvalidIssuer, config.ExpectedIssuer, claims.Issuer)
	}
	if err := validateDelivery(claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClaims, err)
	}
	return claims, nil
}

// validateDelivery checks the claims that steer publication and the
// completion callback.
func validateDelivery(c *models.ConvertClaims) error {
	if c.StorageKey != "" {
		if _, err := hex.DecodeString(c.StorageKey); err != nil || len(c.StorageKey) != storageKeyLen {
			return fmt.Errorf("storageKey must be %d hex characters", storageKeyLen)
		}
	}

	if dir := strings.ReplaceAll(c.SubDir, "\\", "/"); dir != "" {
		if strings.HasPrefix(dir, "/") || slices.Contains(strings.Split(dir, "/"), "..") {
			return fmt.Errorf("subDir %q must be a relative path without '..'", c.SubDir)
		}
	}

	if c.CompletionCallback == "" {
		if len(c.CallbackHeaders) > 0 {
			return errors.New("callbackHeaders set without completionCallback")
		}
		return nil
	}
	u, err := url.Parse(c.CompletionCallback)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("completionCallback %q must be an absolute http(s) URL", c.CompletionCallback)
	}
	for name, value := range c.CallbackHeaders {
		if !httpguts.ValidHeaderFieldName(name) || !httpguts.ValidHeaderFieldValue(value) {
			return fmt.Errorf("invalid callback header %q", name)
		}
	}
	return nil
}

// LoadRSAPublicKey reads a PEM encoded RSA public key. value is either the
// PEM text itself or a path to a file holding it.
func LoadRSAPublicKey(value string) (*rsa.PublicKey, error) {
	data := []byte(value)
	if !strings.HasPrefix(strings.TrimSpace(value), "-----BEGIN") {
		var err error
		if data, err = os.ReadFile(value); err != nil {
			return nil, fmt.Errorf("read public key: %w", err)
		}
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("public key is not PEM encoded")
	}
	switch block.Type {
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	case "PUBLIC KEY":
		pub, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		rsaKey, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("public key is %T, want RSA", pub)
		}
		return rsaKey, nil
	default:
		return nil, fmt.Errorf("unexpected PEM block %q", block.Type)
	}
}

// CreateConvertToken signs claims with HS256 using secret.
func CreateConvertToken(claims *models.ConvertClaims, secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", ErrNoKey
	}
	return signClaims(claims, jose.SigningKey{Algorithm: jose.HS256, Key: secret})
}

// CreateConvertTokenRS256 signs claims with RS256 using key.
func CreateConvertTokenRS256(claims *models.ConvertClaims, key *rsa.PrivateKey) (string, error) {
	if key == nil {
		return "", ErrNoKey
	}
	return signClaims(claims, jose.SigningKey{Algorithm: jose.RS256, Key: key})
}

func signClaims(claims *models.ConvertClaims, key jose.SigningKey) (string, error) {
	if claims == nil {
		return "", errors.New("claims cannot be nil")
	}
	signer, err := jose.NewSigner(key, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create signer: %w", err)
	}
	token, err := jwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("failed to create JWT: %w", err)
	}
	return token, nil
}
