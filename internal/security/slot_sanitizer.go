// Package security はアプリケーションのセキュリティ機能を提供する。
//
// SlotSanitizer は音声アシスタントから受け取ったスロット値からマークアップを除去する。
// 値は読み上げ文に埋め込まれ、ドキュメントにも保存されるため、
// bluemondayのStrictPolicyでタグをすべて落としたプレーンテキストに正規化する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// SlotSanitizer はスロット値のサニタイズ機能のインターフェースを定義する。
type SlotSanitizer interface {
	// Sanitize はタグを除去し、空白を1つにまとめた値を返す。
	// 空文字列の入力には空文字列を返す。同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// slotSanitizer はSlotSanitizerの実装。
// bluemondayのポリシーは並行利用に安全。
type slotSanitizer struct {
	policy *bluemonday.Policy
}

// NewSlotSanitizer はSlotSanitizerの新しいインスタンスを生成する。
func NewSlotSanitizer() *slotSanitizer {
	return &slotSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はスロット値からマークアップを除去する。
// bluemondayはテキスト中の&や'をエスケープするため、最後にアンエスケープして戻す。
func (s *slotSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	cleaned := html.UnescapeString(s.policy.Sanitize(raw))
	return strings.Join(strings.Fields(cleaned), " ")
}
