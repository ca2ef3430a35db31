package utils

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pixbatch/models"
)

var testSecret = []byte("test-secret-key-for-jwt-signing-at-least-32-bytes-long")

func TestConvertTokenRoundTrip(t *testing.T) {
	now := time.Now().Unix()
	claims := &models.ConvertClaims{
		Issuer:     "pixbatch-tests",
		Subject:    "user-1",
		IssuedAt:   now,
		ExpiresAt:  now + 600,
		StorageKey: "0123456789abcdef0123456789abcdef",
		SubDir:     "batches",
	}

	token, err := CreateConvertToken(claims, testSecret)
	if err != nil {
		t.Fatalf("CreateConvertToken failed: %v", err)
	}

	got, err := VerifyConvertToken(token, VerifyConfig{SecretKey: testSecret, ExpectedIssuer: "pixbatch-tests"})
	if err != nil {
		t.Fatalf("VerifyConvertToken failed: %v", err)
	}
	if got.StorageKey != "0123456789abcdef0123456789abcdef" || got.SubDir != "batches" || got.Subject != "user-1" {
		t.Errorf("Claims not preserved: %+v", got)
	}
}

func TestVerifyConvertTokenErrors(t *testing.T) {
	now := time.Now().Unix()

	expired, _ := CreateConvertToken(&models.ConvertClaims{ExpiresAt: now - 3600}, testSecret)
	future, _ := CreateConvertToken(&models.ConvertClaims{IssuedAt: now + 3600}, testSecret)
	wrongIssuer, _ := CreateConvertToken(&models.ConvertClaims{Issuer: "other"}, testSecret)
	valid, _ := CreateConvertToken(&models.ConvertClaims{}, testSecret)

	tests := []struct {
		name  string
		token string
		cfg   VerifyConfig
		want  error
	}{
		{"empty", "", VerifyConfig{SecretKey: testSecret}, ErrInvalidToken},
		{"garbage", "not.a.jwt", VerifyConfig{SecretKey: testSecret}, ErrInvalidToken},
		{"no key", valid, VerifyConfig{}, ErrNoKey},
		{"wrong key", valid, VerifyConfig{SecretKey: []byte("another-secret-key-that-is-long-enough!!")}, ErrInvalidSignature},
		{"expired", expired, VerifyConfig{SecretKey: testSecret}, ErrTokenExpired},
		{"issued in future", future, VerifyConfig{SecretKey: testSecret}, ErrTokenNotYetValid},
		{"issuer", wrongIssuer, VerifyConfig{SecretKey: testSecret, ExpectedIssuer: "pixbatch"}, ErrInvalidIssuer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := VerifyConvertToken(tt.token, tt.cfg)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestClockSkew(t *testing.T) {
	token, _ := CreateConvertToken(&models.ConvertClaims{ExpiresAt: time.Now().Unix() - 30}, testSecret)
	if _, err := VerifyConvertToken(token, VerifyConfig{SecretKey: testSecret, ClockSkew: time.Minute}); err != nil {
		t.Errorf("Expected token within skew to verify, got %v", err)
	}
}

func testRSAKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate RSA key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("Failed to marshal public key: %v", err)
	}
	return key, string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func TestRS256Token(t *testing.T) {
	key, pubPEM := testRSAKey(t)
	pub, err := LoadRSAPublicKey(pubPEM)
	if err != nil {
		t.Fatalf("LoadRSAPublicKey failed: %v", err)
	}

	token, err := CreateConvertTokenRS256(&models.ConvertClaims{Subject: "rs-user", ExpiresAt: time.Now().Unix() + 600}, key)
	if err != nil {
		t.Fatalf("CreateConvertTokenRS256 failed: %v", err)
	}

	got, err := VerifyConvertToken(token, VerifyConfig{PublicKey: pub})
	if err != nil {
		t.Fatalf("VerifyConvertToken failed: %v", err)
	}
	if got.Subject != "rs-user" {
		t.Errorf("Expected subject rs-user, got %q", got.Subject)
	}

	// both keys configured: each token is checked with its own algorithm's key
	if _, err := VerifyConvertToken(token, VerifyConfig{SecretKey: testSecret, PublicKey: pub}); err != nil {
		t.Errorf("RS256 token rejected with both keys configured: %v", err)
	}
	hsToken, _ := CreateConvertToken(&models.ConvertClaims{}, testSecret)
	if _, err := VerifyConvertToken(hsToken, VerifyConfig{SecretKey: testSecret, PublicKey: pub}); err != nil {
		t.Errorf("HS256 token rejected with both keys configured: %v", err)
	}

	if _, err := VerifyConvertToken(token, VerifyConfig{SecretKey: testSecret}); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected RS256 token to be refused without a public key, got %v", err)
	}

	other, _ := testRSAKey(t)
	if _, err := VerifyConvertToken(token, VerifyConfig{PublicKey: &other.PublicKey}); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Expected signature error for wrong public key, got %v", err)
	}
}

func TestLoadRSAPublicKey(t *testing.T) {
	_, pubPEM := testRSAKey(t)
	path := filepath.Join(t.TempDir(), "jwt.pem")
	if err := os.WriteFile(path, []byte(pubPEM), 0o600); err != nil {
		t.Fatalf("Failed to write key file: %v", err)
	}
	if _, err := LoadRSAPublicKey(path); err != nil {
		t.Errorf("Expected key file to load, got %v", err)
	}
	if _, err := LoadRSAPublicKey(filepath.Join(t.TempDir(), "missing.pem")); err == nil {
		t.Error("Expected error for missing key file")
	}
	if _, err := LoadRSAPublicKey("-----BEGIN PUBLIC KEY-----\ngarbage\n-----END PUBLIC KEY-----\n"); err == nil {
		t.Error("Expected error for malformed PEM")
	}
}

func TestDeliveryClaimsValidated(t *testing.T) {
	validKey := "0123456789abcdef0123456789abcdef"
	tests := []struct {
		name   string
		claims models.ConvertClaims
		ok     bool
	}{
		{"no delivery", models.ConvertClaims{}, true},
		{"full delivery", models.ConvertClaims{
			StorageKey:         validKey,
			SubDir:             "batches/2024",
			CompletionCallback: "https://hooks.example.com/done",
			CallbackHeaders:    map[string]string{"X-Api-Key": "k"},
		}, true},
		{"short storage key", models.ConvertClaims{StorageKey: "abc"}, false},
		{"non hex storage key", models.ConvertClaims{StorageKey: "zz23456789abcdef0123456789abcdef"}, false},
		{"absolute sub dir", models.ConvertClaims{SubDir: "/etc"}, false},
		{"escaping sub dir", models.ConvertClaims{SubDir: "a/../../b"}, false},
		{"windows escape", models.ConvertClaims{SubDir: `a\..\..\b`}, false},
		{"relative callback", models.ConvertClaims{CompletionCallback: "/done"}, false},
		{"file callback", models.ConvertClaims{CompletionCallback: "file:///etc/passwd"}, false},
		{"headers without callback", models.ConvertClaims{CallbackHeaders: map[string]string{"A": "b"}}, false},
		{"header injection", models.ConvertClaims{
			CompletionCallback: "http://localhost/cb",
			CallbackHeaders:    map[string]string{"X-A": "v\r\nX-B: evil"},
		}, false},
		{"bad header name", models.ConvertClaims{
			CompletionCallback: "http://localhost/cb",
			CallbackHeaders:    map[string]string{"Bad Name": "v"},
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := tt.claims
			token, err := CreateConvertToken(&claims, testSecret)
			if err != nil {
				t.Fatalf("CreateConvertToken failed: %v", err)
			}
			_, err = VerifyConvertToken(token, VerifyConfig{SecretKey: testSecret})
			if tt.ok && err != nil {
				t.Errorf("Expected claims to verify, got %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidClaims) {
				t.Errorf("Expected ErrInvalidClaims, got %v", err)
			}
		})
	}
}

func TestGenerateRandomHex(t *testing.T) {
	a, err := GenerateRandomHex(16)
	if err != nil {
		t.Fatalf("GenerateRandomHex failed: %v", err)
	}
	b, _ := GenerateRandomHex(16)
	if len(a) != 32 || a == b {
		t.Errorf("Unexpected values %q %q", a, b)
	}
}
