package auth

import (
	"errors"
	"testing"
	"time"
)

var testSecret = []byte("test-jwt-secret-32bytes-long!!!!!")

func TestGenerateToken_RoundTrip(t *testing.T) {
	token, err := GenerateToken("user-1", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("トークン発行に成功するべき: %v", err)
	}

	userID, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("トークン検証に成功するべき: %v", err)
	}
	if userID != "user-1" {
		t.Errorf("userID = %q, want %q", userID, "user-1")
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken("user-1", testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	_, err = ParseToken(token, []byte("different-secret"))
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestParseToken_Expired(t *testing.T) {
	token, err := GenerateToken("user-1", testSecret, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	_, err = ParseToken(token, testSecret)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("期限切れトークンは拒否するべき: %v", err)
	}
}

func TestParseToken_Garbage(t *testing.T) {
	_, err := ParseToken("not.a.token", testSecret)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("不正な形式のトークンは拒否するべき: %v", err)
	}
}
