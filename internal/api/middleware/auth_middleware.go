package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken はトークンが検証できなかったときに返されます。
var ErrInvalidToken = errors.New("invalid token")

type UserIDKey struct{}

// GetUserIDFromContext retrieves the user ID from the context.
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey{}).(string)
	return userID, ok
}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey{}, userID)
}

// writeJSONError writes a JSON error response
func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// ParseUserID はHMAC署名のJWTを検証し、'sub' クレームのユーザーIDを返します。
// "Bearer " プレフィックスは付いていてもいなくても構いません。
//
// Parameters:
//   tokenString : JWT文字列
//   secret      : 署名の検証に使う共有鍵
// Returns:
//   string: ユーザーID
//   error : 検証に失敗した場合は ErrInvalidToken をラップしたエラー
func ParseUserID(tokenString, secret string) (string, error) {
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")
	if secret == "" {
		return "", fmt.Errorf("%w: JWT secret is not configured", ErrInvalidToken)
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// アルゴリズムがHMACであることを確認
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("%w: invalid claims", ErrInvalidToken)
	}
	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("%w: missing user ID", ErrInvalidToken)
	}
	return userID, nil
}

// Authenticator はリクエストのユーザーを特定します。
type Authenticator struct {
	secret string
	bypass bool
}

// NewAuthenticator は secret でJWTを検証する Authenticator を作成します。
// bypass が true の場合は検証を行わず、トークンの文字列をそのままユーザーIDとして扱います (テスト用)。
// トークンが空ならランダムなユーザーIDを割り当てます。
func NewAuthenticator(secret string, bypass bool) *Authenticator {
	return &Authenticator{secret: secret, bypass: bypass}
}

// Authenticate はトークンからユーザーIDを取得します。
func (a *Authenticator) Authenticate(tokenString string) (string, error) {
	if a.bypass {
		if token := strings.TrimPrefix(tokenString, "Bearer "); token != "" {
			return token, nil
		}
		testUserID := uuid.New().String()
		log.Printf("AuthMiddleware: BYPASS_AUTH enabled, generated test user ID: %s", testUserID)
		return testUserID, nil
	}
	return ParseUserID(tokenString, a.secret)
}

// Middleware は Authorization ヘッダーのJWTを検証し、ユーザーIDをContextに設定するミドルウェアです。
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !a.bypass {
			if authHeader == "" {
				writeJSONError(w, http.StatusUnauthorized, "Authorization header is required")
				return
			}
			if !strings.HasPrefix(authHeader, "Bearer ") || len(authHeader) == len("Bearer ") {
				writeJSONError(w, http.StatusUnauthorized, "Invalid Authorization header format. Must be 'Bearer <token>'")
				return
			}
		}

		userID, err := a.Authenticate(authHeader)
		if err != nil {
			log.Printf("AuthMiddleware Error: %v", err)
			writeJSONError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}
