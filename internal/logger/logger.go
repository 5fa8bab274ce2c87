// Package logger はslogによるJSON構造化ログの設定を提供する。
package logger

import (
	"io"
	"log/slog"
	"os"
)

// ServiceName はすべてのログに付与するサービス名。
const ServiceName = "planauth"

// Redacted は秘匿属性の値を置き換える文字列。
const Redacted = "[REDACTED]"

// level はグローバルロガーの出力レベル。設定読み込み後にSetLevelで変更できる。
var level = new(slog.LevelVar)

// sensitiveKeys はログに値を残してはならない属性キー。
var sensitiveKeys = map[string]struct{}{
	"password":       {},
	"password_hash":  {},
	"token":          {},
	"session_token":  {},
	"code":           {},
	"secret":         {},
	"signature":      {},
	"stripe_api_key": {},
}

// Setup はJSON構造化ログ出力のslog.Loggerを生成して返す。
// 秘匿属性の値はRedactedに置き換える。
func Setup(w io.Writer, leveler slog.Leveler) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       leveler,
		ReplaceAttr: redact,
	})
	return slog.New(handler).With(slog.String("service", ServiceName))
}

// SetupDefault はJSON構造化ログ出力をグローバルロガーとして設定する。
// wがnilの場合はos.Stdoutに出力する。
func SetupDefault(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	slog.SetDefault(Setup(w, level))
}

// SetLevel はグローバルロガーの出力レベルを変更する。
func SetLevel(l slog.Level) {
	level.Set(l)
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[a.Key]; ok {
		return slog.String(a.Key, Redacted)
	}
	return a
}
