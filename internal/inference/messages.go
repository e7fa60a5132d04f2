package inference

import (
	"fmt"
	"strings"
)

// Catalog holds the user-facing wording for one locale.
type Catalog struct {
	Started        string
	AlreadyRunning string
	SuccessLead    string
	NoArtifact     string
	ErrorPrefix    string
	ChannelMissing string // Prepended when a channel message falls back to a DM

	categories    map[ErrorCategory]string
	genericFormat string

	report reportLabels
}

type reportLabels struct {
	Title       string
	ExecutedAt  string
	Trigger     string
	DataSource  string
	Decisions   string
	Balances    string
	NoBalances  string
	Disclaimer  string
	Disclaimers []string
}

var catalogs = map[string]*Catalog{
	"en": {
		Started:        "🚀 Inference started. The result will be posted when it completes.",
		AlreadyRunning: "🔄 Inference is already running. Please wait for it to finish.",
		SuccessLead:    "✅ Inference on real trading data completed! Please review the result.",
		NoArtifact:     "✅ Inference completed, but no result file was found.",
		ErrorPrefix:    "❌ ",
		ChannelMissing: "(Sent as a direct message because the channel could not be resolved)",
		categories: map[ErrorCategory]string{
			CategoryResourceExhaustion:   "Inference failed because the GPU ran out of memory. Please wait a while and try again.",
			CategoryTimeout:              "Inference timed out. The system may be busy; please try again later.",
			CategorySystemLoad:           "Inference timed out. The system may be busy; please try again later.",
			CategoryNetworkFailure:       "A network error occurred. Check the connection and try again.",
			CategorySubsystemLoadFailure: "Failed to load the inference system. Please contact the administrator.",
		},
		genericFormat: "An error occurred during inference: %s",
		report: reportLabels{
			Title:      "📊 FX inference result (real trading data)",
			ExecutedAt: "Executed at",
			Trigger:    "Trigger",
			DataSource: "Data source",
			Decisions:  "💡 Extracted trade instructions:",
			Balances:   "💰 Current balances:",
			NoBalances: "  (no balance snapshot)",
			Disclaimer: "⚠️  Important notes",
			Disclaimers: []string{
				"• This result is based on real trading data but is not investment advice",
				"• FX trading carries risk",
				"• Trading decisions are your own responsibility",
				"• Past performance does not guarantee future results",
			},
		},
	},
	"ja": {
		Started:        "🚀 推論を開始しました。完了次第、結果をお知らせします。",
		AlreadyRunning: "🔄 すでに推論が実行中です。完了までお待ちください。",
		SuccessLead:    "✅ 実取引データ推論が完了しました！結果をご確認ください。",
		NoArtifact:     "✅ 推論は完了しましたが、結果ファイルが見つかりませんでした。",
		ErrorPrefix:    "❌ ",
		ChannelMissing: "(チャンネルIDが不明なためDMで送信)",
		categories: map[ErrorCategory]string{
			CategoryResourceExhaustion:   "GPUメモリ不足のため推論に失敗しました。しばらく時間をおいて再度お試しください。",
			CategoryTimeout:              "推論処理がタイムアウトしました。システムが混雑している可能性があります。",
			CategorySystemLoad:           "推論処理がタイムアウトしました。システムが混雑している可能性があります。",
			CategoryNetworkFailure:       "ネットワークエラーが発生しました。接続を確認して再度お試しください。",
			CategorySubsystemLoadFailure: "実取引推論システムの読み込みに失敗しました。システム管理者にお問い合わせください。",
		},
		genericFormat: "推論処理中にエラーが発生しました: %s",
		report: reportLabels{
			Title:      "📊 実取引データ為替推論結果",
			ExecutedAt: "実行日時",
			Trigger:    "トリガー",
			DataSource: "データソース",
			Decisions:  "💡 抽出された取引指示:",
			Balances:   "💰 現在の残高:",
			NoBalances: "  (残高情報なし)",
			Disclaimer: "⚠️  重要な注意事項",
			Disclaimers: []string{
				"• この推論結果は実際の取引データに基づく分析ですが、投資助言ではありません",
				"• 為替取引にはリスクが伴います",
				"• 取引の判断は自己責任で行ってください",
				"• 過去の実績が将来の結果を保証するものではありません",
			},
		},
	},
}

// CatalogFor returns the catalog for locale, falling back to English.
func CatalogFor(locale string) *Catalog {
	if c, ok := catalogs[strings.ToLower(locale)]; ok {
		return c
	}
	return catalogs["en"]
}

// ErrorText returns the user message for a category. It is total: unknown and
// generic categories embed the signal truncated to 100 characters.
func (c *Catalog) ErrorText(category ErrorCategory, signal string) string {
	if msg, ok := c.categories[category]; ok {
		return msg
	}
	return fmt.Sprintf(c.genericFormat, truncateRunes(strings.TrimSpace(signal), genericSignalLimit))
}
