package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPSMSSenderSuccess(t *testing.T) {
	received := make(map[string]string)
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Fatalf("路径应为 /messages, 实际 %s", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	sender := NewHTTPSMSSender(srv.URL+"/", "token", "DISTRESS", time.Second, testLogger())
	if err := sender.SendSMS(context.Background(), "+254700000000", "hello"); err != nil {
		t.Fatalf("SendSMS 应成功: %v", err)
	}

	if received["to"] != "+254700000000" || received["body"] != "hello" || received["from"] != "DISTRESS" {
		t.Fatalf("payload 不正确: %#v", received)
	}
	if auth != "Bearer token" {
		t.Fatalf("authorization = %q", auth)
	}
}

func TestHTTPSMSSenderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "bad number"})
	}))
	defer srv.Close()

	sender := NewHTTPSMSSender(srv.URL, "", "", time.Second, testLogger())
	if err := sender.SendSMS(context.Background(), "+1", "x"); err == nil {
		t.Fatal("ok=false 应报错")
	}

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()

	sender = NewHTTPSMSSender(failing.URL, "", "", time.Second, testLogger())
	if err := sender.SendSMS(context.Background(), "+1", "x"); err == nil {
		t.Fatal("HTTP 502 应报错")
	}
}
