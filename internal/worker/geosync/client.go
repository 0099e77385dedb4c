// Package geosync は地域マスタデータの定期同期ジョブを提供する。
// 設定されたURLから地域データセット(JSON)を取得し、regionsテーブルにUPSERTする。
package geosync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// datasetRegion はデータセットJSON内の1地域エントリ。
type datasetRegion struct {
	Code    string `json:"code"`
	Country string `json:"country"`
	City    string `json:"city"`
}

// DatasetClient は地域データセットを取得するHTTPクライアント。
// SSRF防止付きのHTTPクライアントを外部から受け取る。
type DatasetClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	maxSize    int64 // レスポンスボディの最大サイズ（バイト）
}

// NewDatasetClient はDatasetClientの新しいインスタンスを生成する。
func NewDatasetClient(httpClient *http.Client, logger *slog.Logger, maxSize int64) *DatasetClient {
	return &DatasetClient{
		httpClient: httpClient,
		logger:     logger,
		maxSize:    maxSize,
	}
}

// FetchRegions は指定URLから地域データセットを取得しパースする。
// レスポンスがmaxSizeを超える場合はエラーを返す。
func (c *DatasetClient) FetchRegions(ctx context.Context, datasetURL string) ([]datasetRegion, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, datasetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("地域データセットの取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("地域データセットの取得がエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("地域データセットの取得がステータス %d を返しました", resp.StatusCode)
	}

	// maxSize+1まで読み、超過を検出する
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	if int64(len(body)) > c.maxSize {
		return nil, fmt.Errorf("地域データセットが最大サイズを超えています: %d bytes超", c.maxSize)
	}

	var regions []datasetRegion
	if err := json.Unmarshal(body, &regions); err != nil {
		return nil, fmt.Errorf("地域データセットJSONのパースに失敗しました: %w", err)
	}

	return regions, nil
}
