package middlewares

import (
	"fmt"
	"strings"
	"time"

	"buzzserver/auth"
	"buzzserver/models"

	jwt "github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const tokenLifetime = 72 * time.Hour

// GenerateToken はユーザーのIDとユーザー名を内包したJWTトークンを発行します。
func GenerateToken(user *models.User) (string, error) {
	expirationTime := time.Now().Add(tokenLifetime)

	// JWTトークン生成時に内包するデータ
	claims := &models.MyClaims{
		UserID:   user.ID,
		Username: user.Username,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: expirationTime.Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(auth.JwtKey)
}

// リクエストからJWTトークンを取得し、ユーザーIDを解析して返します。
func GetUserIDFromToken(c *gin.Context, logger *zap.Logger) (uint, error) {
	// トークンをリクエストヘッダーから取得
	tokenString := c.GetHeader("Authorization")

	// Bearerトークンのプレフィックスを確認し、存在する場合は削除
	if strings.HasPrefix(tokenString, "Bearer ") {
		tokenString = strings.TrimPrefix(tokenString, "Bearer ")
	}

	if tokenString == "" {
		logger.Error("Token string is empty")
		return 0, fmt.Errorf("token is required")
	}

	// JWTトークンの解析
	claims, err := auth.ParseToken(tokenString)
	if err != nil {
		logger.Error("Failed to parse JWT token", zap.Error(err))
		return 0, err
	}

	return claims.UserID, nil
}
