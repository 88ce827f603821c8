package models

// RegisterRequest はクライアントからのアカウント登録リクエストを表します。
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest はクライアントからのログインリクエストを表します。
// 認証に成功するとユーザーIDを内包したJWTトークンを返します。
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}
