package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrUnauthorized = errors.New("unauthorized")

// maxCacheTTL bounds how long a validated token is remembered.
const maxCacheTTL = 5 * time.Minute

// Identity is what a validated access token resolves to.
type Identity struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// MarshalBinary implements encoding.BinaryMarshaler for Redis
func (i *Identity) MarshalBinary() ([]byte, error) {
	return json.Marshal(i)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for Redis
func (i *Identity) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, i)
}

type TokenVerifier interface {
	Verify(token string) (*Identity, error)
}

type tokenClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 access tokens whose subject is the user id.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(tokenString string) (*Identity, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrUnauthorized)
	}
	return &Identity{
		UserID:    claims.Subject,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// IssueToken signs a token for userID. Used by tests and the CLI.
func IssueToken(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

type Middleware func(next http.Handler) http.Handler

type contextKey string

const (
	userIDKey    contextKey = "user_id"
	requestIDKey contextKey = "request_id"
)

// NewMiddleware authenticates bearer tokens. Validated identities are cached
// in redis under the token hash; cache may be nil.
func NewMiddleware(verifier TokenVerifier, cache *redis.Client, logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			// Generate RequestID
			requestID := uuid.New().String()
			ctx = context.WithValue(ctx, requestIDKey, requestID)
			w.Header().Set("X-Request-ID", requestID)

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				writeUnauthorized(w, "missing or invalid Authorization header")
				return
			}
			token := strings.TrimPrefix(authHeader, "Bearer ")

			h := sha256.New()
			h.Write([]byte(token))
			redisKey := fmt.Sprintf("auth:%s", hex.EncodeToString(h.Sum(nil)))

			if cache != nil {
				var identity Identity
				err := cache.Get(ctx, redisKey).Scan(&identity)
				if err == nil && time.Now().Before(identity.ExpiresAt) {
					// Cache hit
					ctx = context.WithValue(ctx, userIDKey, identity.UserID)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				} else if err != nil && err != redis.Nil {
					logger.Warn("auth: redis error", zap.Error(err))
				}
			}

			identity, err := verifier.Verify(token)
			if err != nil {
				logger.Debug("auth: token rejected", zap.Error(err))
				writeUnauthorized(w, "invalid token")
				return
			}

			if cache != nil {
				ttl := time.Until(identity.ExpiresAt)
				if ttl > maxCacheTTL {
					ttl = maxCacheTTL
				}
				if ttl > 0 {
					_ = cache.Set(ctx, redisKey, identity, ttl).Err()
				}
			}

			ctx = context.WithValue(ctx, userIDKey, identity.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized: " + msg})
}

// Helpers to extract from context
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// Helpers for testing
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}
