package models

// ConvertClaims are the claims of an upload token. A token is only required
// when the server is configured with a shared secret.
type ConvertClaims struct {
	Issuer    string `json:"iss"` // optional
	Subject   string `json:"sub"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`

	// StorageKey names stored destination credentials the archive is also
	// published to after a successful conversion.
	StorageKey string `json:"storageKey,omitempty"`
	// SubDir is the folder (or key prefix) used when publishing.
	SubDir string `json:"subDir,omitempty"`
	// CompletionCallback receives a JSON summary once the job finishes.
	CompletionCallback string            `json:"completionCallback,omitempty"`
	CallbackHeaders    map[string]string `json:"callbackHeaders,omitempty"`
}
