// Package session はアカウントとブラウザセッションの紐付けを提供する。
package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken は署名不正・期限切れ・形式不正のセッショントークンを示す。
var ErrInvalidToken = errors.New("invalid session token")

// claims はセッショントークンの内容。標準クレームとセッションIDを含む。
// トークンはHTTP Only Cookieで運ばれ、クライアントスクリプトから
// 偽造・読み取りができないことを署名が保証する。
type claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// signToken はセッションIDをHS256で署名したトークン文字列を返す。
func signToken(sessionID string, secretKey []byte, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		SessionID: sessionID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return tokenString, nil
}

// sessionIDFromToken はトークンを検証し、含まれるセッションIDを返す。
func sessionIDFromToken(tokenString string, secretKey []byte) (string, error) {
	parsed := &claims{}

	token, err := jwt.ParseWithClaims(tokenString, parsed, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secretKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || parsed.SessionID == "" {
		return "", ErrInvalidToken
	}

	return parsed.SessionID, nil
}

// LoadOrGenerateSecret は設定の署名鍵を返す。
// 鍵が未設定の場合は新しい鍵を生成してサービスを起動させる。
// その場合、再起動のたびに既存の全セッションが無効になる。
func LoadOrGenerateSecret(configured string) ([]byte, error) {
	if configured != "" {
		return []byte(configured), nil
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate session secret: %w", err)
	}
	slog.Warn("SESSION_SECRET is not set; generated an ephemeral key (all sessions invalidate on restart)")
	return []byte(hex.EncodeToString(b)), nil
}
