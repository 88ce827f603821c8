package auth

import (
	"errors"
	"os"

	"buzzserver/models"

	jwt "github.com/dgrijalva/jwt-go"
)

// JwtKey はトークン署名用のシークレットキーです。本番環境では必ず環境変数で設定します。
var JwtKey = loadJwtKey()

func loadJwtKey() []byte {
	if key := os.Getenv("JWT_SECRET_KEY"); key != "" {
		return []byte(key)
	}
	return []byte("buzzserver-dev-secret") // 開発用フォールバック
}

// ParseToken はトークン文字列を検証し、内包するクレームを返します。
// HTTPとWebsocketの両方のトークン検証はここに集約しています。
func ParseToken(tokenString string) (*models.MyClaims, error) {
	claims := &models.MyClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return JwtKey, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}
