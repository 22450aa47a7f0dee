package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Flag categories
		"Output":            "出力先",
		"Video and Quality": "動画と品質",
		"Source":            "入力",
		"Backend":           "バックエンド",
		"Debug":             "デバッグ",
		"Logging":           "ログ",

		// Commands
		"Encode raw frames into H.264 video files":         "生フレームをH.264動画ファイルにエンコード",
		"Encode a test pattern or an image sequence":       "テストパターンまたは連番画像をエンコード",
		"Show the video track of an MP4 file":              "MP4ファイルの映像トラックを表示",
		"Show version information":                         "バージョン情報を表示",
		"framecoder version %s":                            "framecoder バージョン %s",
		"Encoder time base %s, key frame every %d packets": "エンコーダのタイムベース %s、%d パケットごとにキーフレーム",
		"Frames are converted to the codec pixel format, encoded with libx264 and written to a container chosen by the output extension.": "フレームはコーデックのピクセル形式に変換され、libx264でエンコードされ、出力の拡張子で選ばれたコンテナに書き込まれます。",

		// Output flags
		"Output file path (- for stdout, overrides the config file)": "出力ファイルパス（- で標準出力、設定ファイルより優先）",
		"YAML configuration file":                                    "YAML設定ファイル",
		"Container format (default: from the output extension)":      "コンテナ形式（デフォルト: 出力の拡張子から判定）",
		"Container option key=value (repeatable)":                    "コンテナオプション key=value（複数指定可）",
		"Write a summary to this path (.json or Markdown)":           "サマリーをこのパスに書き込む（.json または Markdown）",

		// Video flags
		"Video width (default: first image or 640)":       "動画の幅（デフォルト: 最初の画像または640）",
		"Video height (default: first image or 360)":      "動画の高さ（デフォルト: 最初の画像または360）",
		"Frame rate (default: 30)":                        "フレームレート（デフォルト: 30）",
		"Codec pixel format (yuv420p, nv12, ...)":         "コーデックのピクセル形式（yuv420p, nv12 など）",
		"Tune the codec for low latency":                  "低遅延向けにコーデックを調整",
		"Codec option key=value (repeatable)":             "コーデックオプション key=value（複数指定可）",
		"Use interleaved packet writes":                   "インターリーブ書き込みを使用",
		"Collect every available packet after each frame": "各フレームの後に取得可能なパケットをすべて回収",

		// Source flags
		"Glob of input images (default: test pattern)": "入力画像のglob（デフォルト: テストパターン）",
		"Number of frames to encode":                   "エンコードするフレーム数",
		"Repeat each image this many frames":           "各画像を繰り返すフレーム数",
		"Repeat the last frame this many times":        "最終フレームを繰り返す回数",
		"Text drawn on the test pattern":               "テストパターンに描画するテキスト",

		// Backend flags
		"Codec backend (libav, ffmpeg)":           "コーデックバックエンド（libav, ffmpeg）",
		"Path to the ffmpeg executable":           "ffmpeg実行ファイルのパス",
		"Use libav muxers for mp4 and ts outputs": "mp4とtsの出力にlibavのマルチプレクサを使用",

		// Debug and logging flags
		"Enable debug output":                  "デバッグ出力を有効化",
		"Directory for debug output":           "デバッグ出力先ディレクトリ",
		"Save every n-th source frame":         "n フレームごとに入力フレームを保存",
		"Log level (debug, info, warn, error)": "ログレベル（debug, info, warn, error）",
		"Log format (text, json)":              "ログ形式（text, json）",
		"Suppress all log output":              "すべてのログ出力を抑制",

		// Probe output
		"Codec":      "コーデック",
		"Size":       "サイズ",
		"Fragmented": "フラグメント化",
		"Fragments":  "フラグメント数",
		"Samples":    "サンプル数",
		"key":        "キー",
		"Duration":   "長さ",
		"Frame rate": "フレームレート",

		// Messages
		"Summary saved to %s":         "サマリーを %s に保存しました",
		"Failed to write summary: %s": "サマリーの書き込みに失敗しました: %s",
	})
}
