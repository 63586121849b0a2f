package model

import "fmt"

// AppError は統一エラーフォーマットを表す。
// ハンドラー境界でフラッシュメッセージに変換されるカテゴリを含む。
type AppError struct {
	Code     string // エラーコード
	Message  string // ユーザー向けメッセージ
	Category string // カテゴリ: auth, validation, system
}

// Error はerrorインターフェースを実装する。
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeProviderDisabled    = "PROVIDER_DISABLED"
	ErrCodeProviderUnreachable = "PROVIDER_UNREACHABLE"
	ErrCodeTokenRejected       = "TOKEN_EXCHANGE_REJECTED"
	ErrCodeMalformedUserinfo   = "MALFORMED_USERINFO"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeInvalidComment      = "INVALID_COMMENT"
	ErrCodeCommentNotFound     = "COMMENT_NOT_FOUND"
	ErrCodeConstraintViolation = "CONSTRAINT_VIOLATION"
)

// NewProviderDisabledError はプロバイダー未設定エラーを生成する。
func NewProviderDisabledError(provider string) *AppError {
	return &AppError{
		Code:     ErrCodeProviderDisabled,
		Message:  fmt.Sprintf("%s によるログインは現在利用できません。", provider),
		Category: "auth",
	}
}

// NewProviderUnreachableError はプロバイダー到達不能エラーを生成する。
// ネットワーク障害・タイムアウト時に使用し、ローカル状態は変更しない。
func NewProviderUnreachableError(provider string) *AppError {
	return &AppError{
		Code:     ErrCodeProviderUnreachable,
		Message:  fmt.Sprintf("%s に接続できませんでした。しばらく待ってから再度お試しください。", provider),
		Category: "auth",
	}
}

// NewTokenRejectedError はトークン交換拒否エラーを生成する。
// 認可コードの期限切れ・無効、redirect_uri不一致などの非2xx応答時に使用する。
func NewTokenRejectedError(provider string) *AppError {
	return &AppError{
		Code:     ErrCodeTokenRejected,
		Message:  fmt.Sprintf("%s でのログインに失敗しました。最初からやり直してください。", provider),
		Category: "auth",
	}
}

// NewMalformedUserinfoError はuserinfo応答の必須フィールド欠落エラーを生成する。
// ユーザー向けメッセージ上はトークン交換拒否と同等に扱う。
func NewMalformedUserinfoError(provider string) *AppError {
	return &AppError{
		Code:     ErrCodeMalformedUserinfo,
		Message:  fmt.Sprintf("%s でのログインに失敗しました。最初からやり直してください。", provider),
		Category: "auth",
	}
}

// NewForbiddenError は所有権違反エラーを生成する。
func NewForbiddenError() *AppError {
	return &AppError{
		Code:     ErrCodeForbidden,
		Message:  "自分のコメントのみ削除できます。",
		Category: "auth",
	}
}

// NewInvalidCommentError はコメント検証エラーを生成する。
func NewInvalidCommentError(reason string) *AppError {
	return &AppError{
		Code:     ErrCodeInvalidComment,
		Message:  fmt.Sprintf("コメントを投稿できません: %s", reason),
		Category: "validation",
	}
}

// NewCommentNotFoundError はコメント未検出エラーを生成する。
func NewCommentNotFoundError(commentID string) *AppError {
	return &AppError{
		Code:     ErrCodeCommentNotFound,
		Message:  fmt.Sprintf("指定されたコメントが見つかりません: %s", commentID),
		Category: "validation",
	}
}
