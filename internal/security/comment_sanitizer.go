// Package security はアプリケーションのセキュリティ機能を提供する。
//
// CommentSanitizer はコメント本文をサニタイズし、
// XSS攻撃などのセキュリティリスクから閲覧者を保護する。
// bluemondayの厳格ポリシーで全てのHTMLマークアップを除去し、
// プレーンテキストのみを保存する。
package security

import "github.com/microcosm-cc/bluemonday"

// CommentSanitizerService はコメント本文のサニタイズ機能のインターフェースを定義する。
type CommentSanitizerService interface {
	// Sanitize はコメント本文から全てのHTMLタグとon*イベント属性を除去する。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// commentSanitizer はCommentSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type commentSanitizer struct {
	policy *bluemonday.Policy
}

// NewCommentSanitizer はCommentSanitizerServiceの新しいインスタンスを生成する。
// コメントは装飾なしのプレーンテキストとして扱うため、
// タグを一切許可しないStrictPolicyを使用する。
func NewCommentSanitizer() *commentSanitizer {
	return &commentSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はコメント本文をサニタイズしてプレーンテキストを返す。
func (s *commentSanitizer) Sanitize(raw string) string {
	return s.policy.Sanitize(raw)
}

// compile-time interface check
var _ CommentSanitizerService = (*commentSanitizer)(nil)
