package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Orchestration level messages (info)
		"Encoding %dx%d to %s":          "%dx%d で %s にエンコード中",
		"Output saved to %s":            "出力を %s に保存しました",
		"Interrupted, shutting down...": "中断されました。シャットダウン中...",
		"Loaded %d images from %s":      "%s から %d 枚の画像を読み込みました",

		"Video encoded: %d frames, %d packets, %d bytes": "動画エンコード完了: %d フレーム, %d パケット, %d バイト",

		// Warnings
		"Encoding cancelled": "エンコードが中断されました",

		// Errors
		"Failed to create output: %s": "出力の作成に失敗しました: %s",
		"Failed to open muxer: %s":    "マルチプレクサを開けませんでした: %s",
		"Failed to open encoder: %s":  "エンコーダを開けませんでした: %s",
		"Failed to encode video: %s":  "動画のエンコードに失敗しました: %s",
	})
}
