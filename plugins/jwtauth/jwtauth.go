// Package jwtauth implements the `auth`/`jwt` reference plugin
// (§4.4/§9): token issue/verify plus password hashing, generalized
// from the teacher's JWTManager/HashPassword pair
// (internal/auth/service.go, internal/auth/password.go) down to a
// single client with no tenant/user-model dependency.
package jwtauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/orbitflux/flux/internal/plugin"
)

// Client is the object handed to action handlers via
// `ctx.plugins.auth`.
type Client struct {
	secret []byte
	ttl    time.Duration
}

// Issue signs a token embedding the given claims plus a standard
// expiry, mirroring the teacher's GenerateTokenPair but without a
// fixed User/Tenant claim shape — callers pass whatever claims their
// own flux needs.
func (c *Client) Issue(claims map[string]any) (string, error) {
	mc := jwt.MapClaims{}
	for k, v := range claims {
		mc[k] = v
	}
	mc["exp"] = time.Now().Add(c.ttl).Unix()
	mc["iat"] = time.Now().Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, mc)
	return token.SignedString(c.secret)
}

// Verify parses and validates a token, returning its claims.
func (c *Client) Verify(tokenString string) (map[string]any, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("jwtauth: invalid token")
	}
	return claims, nil
}

// HashPassword bcrypt-hashes a plaintext password.
func (c *Client) HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("jwtauth: password cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckPassword compares a bcrypt hash with a plaintext password.
func (c *Client) CheckPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// Plugin is the `auth`/`jwt` Plugin implementation.
type Plugin struct {
	client *Client
}

// New returns a fresh, un-set-up Plugin instance.
func New() plugin.Plugin {
	return &Plugin{}
}

func (p *Plugin) Name() string { return "auth" }

// Setup reads "secret" (required) and an optional "ttlSeconds"
// (default one hour) out of config.
func (p *Plugin) Setup(ctx context.Context, config map[string]any) error {
	secret, _ := config["secret"].(string)
	if secret == "" {
		return errors.New("jwtauth plugin: \"secret\" is required")
	}

	ttl := time.Hour
	if v, ok := config["ttlSeconds"].(float64); ok && v > 0 {
		ttl = time.Duration(v) * time.Second
	}

	p.client = &Client{secret: []byte(secret), ttl: ttl}
	return nil
}

func (p *Plugin) Teardown(ctx context.Context) error { return nil }

// GetClient returns the live *Client.
func (p *Plugin) GetClient() any {
	if p.client == nil {
		panic(&plugin.NotSetUpError{LogicalKey: "auth"})
	}
	return p.client
}
