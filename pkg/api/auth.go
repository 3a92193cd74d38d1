package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenLifetime = time.Hour

// AuthHandler issues and checks HS256 bearer tokens.
type AuthHandler struct {
	authKey    string
	userHeader string
	tokenKey   string
}

// NewAuthHandler creates a new authentication handler. Tokens signed with
// either authKey or tokenKey are accepted.
func NewAuthHandler(authKey string, userHeader string, tokenKey string) *AuthHandler {
	return &AuthHandler{
		authKey:    authKey,
		userHeader: userHeader,
		tokenKey:   tokenKey,
	}
}

// GetToken issues a token for the user named in the configured user header.
// Requests without that header are rejected.
func (h *AuthHandler) GetToken(w http.ResponseWriter, r *http.Request) {
	authUser := h.authenticatedUser(r)
	if authUser == "" {
		writeError(w, http.StatusUnauthorized, "missing authenticated user header")
		return
	}

	expiresAt := time.Now().Add(tokenLifetime)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "bundloor",
		Subject:   authUser,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})

	tokenString, err := token.SignedString([]byte(h.authKey))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	_ = json.NewEncoder(w).Encode(map[string]string{
		"token": tokenString,
		"user":  authUser,
		"expr":  fmt.Sprintf("%d", expiresAt.Unix()),
		"now":   fmt.Sprintf("%d", time.Now().Unix()),
	})
}

func (h *AuthHandler) authenticatedUser(r *http.Request) string {
	if h.userHeader == "" {
		return ""
	}

	if values, ok := r.Header[h.userHeader]; ok && len(values) > 0 {
		return strings.TrimSpace(values[0])
	}

	for key, values := range r.Header {
		if strings.EqualFold(key, h.userHeader) && len(values) > 0 {
			return strings.TrimSpace(values[0])
		}
	}

	return ""
}

// CheckAuthToken parses a "Bearer <token>" header value. It returns nil
// unless the token is valid.
func (h *AuthHandler) CheckAuthToken(tokenStr string) *jwt.Token {
	parts := strings.SplitN(tokenStr, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		tokenStr = parts[1]
	}

	for _, key := range []string{h.tokenKey, h.authKey} {
		if key == "" {
			continue
		}

		token, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, hmacKey(key))
		if err == nil && token.Valid {
			return token
		}
	}

	return nil
}

func hmacKey(key string) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		return []byte(key), nil
	}
}
