package triageproxy

import (
	"crypto/hmac"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// internalKeyHeader authenticates service-to-service calls (the webhook
// pipeline calling its own proxy).
const internalKeyHeader = "X-Internal-Key"

// authenticator accepts either the shared internal key or a signed user
// session token. Human-originated calls come from the dashboard with the
// user's JWT; the pipeline uses the internal key.
type authenticator struct {
	internalKey string
	jwtSecret   []byte
}

func newAuthenticator(internalKey, jwtSecret string) *authenticator {
	return &authenticator{internalKey: internalKey, jwtSecret: []byte(jwtSecret)}
}

// authenticate returns nil when the request carries a valid credential.
func (a *authenticator) authenticate(r *http.Request) error {
	if key := r.Header.Get(internalKeyHeader); key != "" {
		if a.internalKey != "" && hmac.Equal([]byte(key), []byte(a.internalKey)) {
			return nil
		}
		return fmt.Errorf("invalid internal key")
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return fmt.Errorf("missing credentials")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return fmt.Errorf("malformed authorization header")
	}
	return a.verifyUserToken(strings.TrimSpace(token))
}

// verifyUserToken validates an HS256 session token against the auth secret.
func (a *authenticator) verifyUserToken(token string) error {
	if len(a.jwtSecret) == 0 {
		return fmt.Errorf("user token auth not configured")
	}
	_, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return a.jwtSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil {
		return fmt.Errorf("invalid session token: %w", err)
	}
	return nil
}
