package geosync

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestFetchRegions_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"code":"RU-MOW","country":"Russia","city":"Moscow"},
			{"code":"RU-SPE","country":"Russia","city":"Saint Petersburg"},
			{"code":"KZ-ALA","country":"Kazakhstan","city":"Almaty"}
		]`))
	}))
	defer ts.Close()

	client := NewDatasetClient(ts.Client(), testLogger(), 1<<20)

	regions, err := client.FetchRegions(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("取得に失敗: %v", err)
	}

	if len(regions) != 3 {
		t.Fatalf("len = %d, want 3", len(regions))
	}
	if regions[0].Code != "RU-MOW" || regions[0].City != "Moscow" {
		t.Errorf("regions[0] = %+v", regions[0])
	}
}

func TestFetchRegions_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := NewDatasetClient(ts.Client(), testLogger(), 1<<20)

	if _, err := client.FetchRegions(context.Background(), ts.URL); err == nil {
		t.Error("500レスポンスはエラーになるべき")
	}
}

func TestFetchRegions_InvalidJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer ts.Close()

	client := NewDatasetClient(ts.Client(), testLogger(), 1<<20)

	if _, err := client.FetchRegions(context.Background(), ts.URL); err == nil {
		t.Error("不正なJSONはエラーになるべき")
	}
}

func TestFetchRegions_ExceedsMaxSize(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"code":"` + strings.Repeat("X", 1024) + `","country":"Y"}]`))
	}))
	defer ts.Close()

	// 最大サイズを小さく設定
	client := NewDatasetClient(ts.Client(), testLogger(), 100)

	if _, err := client.FetchRegions(context.Background(), ts.URL); err == nil {
		t.Error("最大サイズ超過はエラーになるべき")
	}
}
