// Package payauth はTelegram認証ペイロードの真正性検証を提供する。
// ログインウィジェットとミニアプリ起動ペイロード（initData）の2系統に対応し、
// 署名用の正規化文字列生成とHMAC-SHA256による署名検証を行う。
package payauth

import (
	"net/url"
	"sort"
	"strings"
)

// SignatureKey は署名値を保持する予約キー。
// 正規化文字列の再計算時には必ず除外される。
const SignatureKey = "hash"

// Canonicalize はキー/値ペイロードから署名対象の正規化文字列を生成する。
// 署名キー（hash）を取り除き、残りのキーをバイト順の昇順でソートして
// "key=value" を改行1つで連結した文字列と、取り除いた署名値を返す。
// 署名キーが存在しない場合、signatureは空文字列になる。
//
// キーや値に含まれる「=」や改行はエスケープしない。これは署名を発行する
// プロバイダー側の生成手順と一致させるための仕様であり、修正してはならない。
// 複数値のキーは先頭の値のみを使用する。
func Canonicalize(values url.Values) (canonical string, signature string) {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k == SignatureKey {
			signature = values.Get(k)
			continue
		}
		keys = append(keys, k)
	}

	// mapの列挙順に依存しないよう、明示的にバイト順でソートする
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+values.Get(k))
	}

	return strings.Join(pairs, "\n"), signature
}
