package connection

import (
	"fmt"
	"net/http"
	"strings"

	"buzzserver/auth"
	"buzzserver/models"

	"go.uber.org/zap"
)

// ClientContext はWebsocketハンドシェイク時点で確定する認証情報です。
// コアは接続ごとに認証済みのユーザーIDを受け取るだけで、認証自体は行いません。
type ClientContext struct {
	UserID   uint
	Username string
	Claims   *models.MyClaims
}

// TokenValidation はリクエストヘッダのJWTトークンを検証してクレームを返します。
func TokenValidation(r *http.Request, logger *zap.Logger) (*models.MyClaims, error) {
	tokenString := r.Header.Get("Authorization")
	if strings.HasPrefix(tokenString, "Bearer ") {
		tokenString = strings.TrimPrefix(tokenString, "Bearer ")
	}
	if tokenString == "" {
		// ブラウザのWebSocket APIはヘッダを付けられないため、クエリでも受け付ける
		tokenString = r.URL.Query().Get("token")
	}

	claims, err := auth.ParseToken(tokenString)
	if err != nil {
		logger.Error("Failed to validate token", zap.Error(err))
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	return claims, nil
}

// FetchClientContext はハンドシェイクのトークンを検証し、接続の認証情報を組み立てます。
func FetchClientContext(r *http.Request, logger *zap.Logger) (*ClientContext, error) {
	claims, err := TokenValidation(r, logger)
	if err != nil {
		return nil, fmt.Errorf("unauthorized: %w", err)
	}
	return &ClientContext{
		UserID:   claims.UserID,
		Username: claims.Username,
		Claims:   claims,
	}, nil
}
