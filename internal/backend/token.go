package backend

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/rryowa/dangbai_session/internal/models"
	"github.com/rryowa/dangbai_session/internal/util"
)

type RevocationList interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type TokenService struct {
	JwtSecretKey []byte
	accessTTL    time.Duration
	refreshTTL   time.Duration
	revoked      RevocationList
}

func NewTokenService(cfg *util.TokenConfig, revoked RevocationList) *TokenService {
	return &TokenService{
		JwtSecretKey: cfg.JwtSecretKey,
		accessTTL:    cfg.AccessTTL,
		refreshTTL:   cfg.RefreshTTL,
		revoked:      revoked,
	}
}

// AccessClaims ties an access token to its user and to the refresh session
// it was issued with.
type AccessClaims struct {
	UserID    string   `json:"uid"`
	Roles     []string `json:"roles"`
	SessionID string   `json:"sid"`
	jwt.RegisteredClaims
}

func (c *AccessClaims) UserIDInt() (int64, error) {
	userID, err := strconv.ParseInt(c.UserID, 10, 64)
	if err != nil {
		return 0, ErrInvalidUserID
	}
	return userID, nil
}

func (c *AccessClaims) HasRole(role models.Role) bool {
	return slices.Contains(c.Roles, string(role))
}

// CreateAccessToken создает SHA512 signed access токен с новым JTI
func (ts *TokenService) CreateAccessToken(user models.User, sessionID string, now time.Time) (string, error) {
	uid := strconv.FormatInt(user.UserID, 10)
	claims := &AccessClaims{
		UserID:    uid,
		Roles:     user.Roles,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.accessTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signedToken, err := token.SignedString(ts.JwtSecretKey)
	if err != nil {
		return "", fmt.Errorf("signed string: %w", err)
	}

	return signedToken, nil
}

// CreateRefreshToken returns selector.verifier; only the verifier hash is
// meant to be stored.
func (ts *TokenService) CreateRefreshToken() (token, selector, verifierHash string, err error) {
	rawToken := make([]byte, util.RawTokenLength)
	if _, err = rand.Read(rawToken); err != nil {
		return "", "", "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	selector = base64.RawURLEncoding.EncodeToString(rawToken[:16])
	verifier := base64.RawURLEncoding.EncodeToString(rawToken[16:])

	token = selector + "." + verifier

	return token, selector, hashVerifier(verifier), nil
}

func (ts *TokenService) RefreshTTL() time.Duration {
	return ts.refreshTTL
}

func SplitRefreshToken(token string) (selector, verifier string, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != util.TokenPartsExpected || parts[0] == "" || parts[1] == "" {
		return "", "", ErrRefreshTokenInvalid
	}
	return parts[0], parts[1], nil
}

func VerifyRefreshToken(verifier, verifierHash string) error {
	hashedVerifierBytes, err := hex.DecodeString(verifierHash)
	if err != nil {
		return fmt.Errorf("failed to decode stored hash: %w", err)
	}

	newHashBytes := sha256.Sum256([]byte(verifier))

	if subtle.ConstantTimeCompare(newHashBytes[:], hashedVerifierBytes) != 1 {
		return ErrRefreshTokenInvalid
	}

	return nil
}

func hashVerifier(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return hex.EncodeToString(sum[:])
}

func (ts *TokenService) ParseAccessToken(ctx context.Context, token string) (*AccessClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithLeeway(util.JWTLeeWay),
		jwt.WithExpirationRequired(),
	}

	parsedToken, err := jwt.ParseWithClaims(
		token,
		&AccessClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS512.Alg() {
				return nil, ErrInvalidSigningMethod
			}
			return ts.JwtSecretKey, nil
		},
		opts...,
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := parsedToken.Claims.(*AccessClaims)
	if !ok || !parsedToken.Valid || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}

	revoked, err := ts.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("is token revoked: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	return claims, nil
}

// RevokeAccessToken blacklists the token until it would expire anyway.
func (ts *TokenService) RevokeAccessToken(ctx context.Context, claims *AccessClaims) error {
	if claims.ExpiresAt == nil {
		return ErrTokenMalformed
	}
	ttl := time.Until(claims.ExpiresAt.Time) + util.JWTLeeWay
	if ttl <= 0 {
		return nil
	}

	if err := ts.revoked.Revoke(ctx, claims.ID, ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}
