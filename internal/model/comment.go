package model

import "time"

// CommentMaxLength はコメント本文の最大文字数。
const CommentMaxLength = 500

// Comment はコメント掲示板の1件のコメントを表す。
// 必ず1つのアカウントに属し、削除は所有者のみ許可される。
type Comment struct {
	ID        string
	Body      string
	AccountID string
	CreatedAt time.Time
}

// CommentWithAuthor はコメントと投稿者の表示名を結合した読み取り用の構造体。
type CommentWithAuthor struct {
	Comment
	AuthorName string
}
