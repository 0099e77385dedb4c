// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService はユーザー入力（商品説明・ストア説明・レビュー本文）を
// サニタイズし、XSS攻撃などのセキュリティリスクから閲覧者を保護する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 最小限の装飾タグのみを通過させる。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はユーザー入力テキストのサニタイズ機能のインターフェースを定義する。
// 商品・ストア・レビューの保存前に使用される。
type TextSanitizerService interface {
	// Sanitize は入力テキストをサニタイズして安全なHTMLを返す。
	// 許可タグ（p, br, strong, em, ul, ol, li）のみを通過させ、
	// script, iframe, a, img等のタグおよびon*イベント属性を除去する。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// マーケットプレイスの説明文にはリンクや画像の埋め込みを許可しない。
// 外部URLは商品フィールドとして別管理されるため、本文中のaタグとimgタグは除去する。
func NewTextSanitizer() *textSanitizer {
	p := bluemonday.NewPolicy()

	// 許可タグ: 最小限の装飾のみ
	// script, iframe, style等は許可リストに含めないことで自動的に除去される
	// on*イベント属性はbluemondayのデフォルトで許可されない
	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"strong", "em",
	)

	return &textSanitizer{
		policy: p,
	}
}

// Sanitize は入力テキストをサニタイズして安全なHTMLを返す。
func (s *textSanitizer) Sanitize(raw string) string {
	return s.policy.Sanitize(raw)
}
