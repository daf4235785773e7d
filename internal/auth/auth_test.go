package auth

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

// makeJWT builds an unsigned JWT with the given claims for claim inspection
// tests. The signature is garbage; Claims never verifies it.
func makeJWT(t *testing.T, claims map[string]any) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshal claims: %v", err)
	}
	body := base64.RawURLEncoding.EncodeToString(payload)
	return header + "." + body + ".sig"
}

func TestClaimsRoundTrip(t *testing.T) {
	tok := makeJWT(t, map[string]any{
		"tid": "tenant-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	if got := TenantID(tok); got != "tenant-1" {
		t.Errorf("TenantID = %q", got)
	}
	exp, ok := Expiry(tok)
	if !ok {
		t.Fatal("expected expiry claim")
	}
	if d := time.Until(exp); d < 50*time.Minute || d > 70*time.Minute {
		t.Errorf("expiry %v not ~1h away", d)
	}
}

func TestExpiryOpaqueToken(t *testing.T) {
	if _, ok := Expiry("not-a-jwt"); ok {
		t.Error("opaque token should have no expiry")
	}
}

func TestStaticRejectsExpiredToken(t *testing.T) {
	tok := makeJWT(t, map[string]any{"exp": time.Now().Add(-time.Hour).Unix()})
	if _, err := NewStatic(tok).Token(context.Background()); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestStaticPassesOpaqueToken(t *testing.T) {
	got, err := NewStatic("opaque").Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "opaque" {
		t.Errorf("token = %q", got)
	}
}

func TestClientCredentialFlow(t *testing.T) {
	var calls int32
	jwtTok := makeJWT(t, map[string]any{"exp": time.Now().Add(time.Hour).Unix()})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.Form.Get("grant_type"); got != "client_credentials" {
			t.Errorf("grant_type = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":%q,"token_type":"Bearer","expires_in":3600}`, jwtTok)
	}))
	defer srv.Close()

	p := NewEntraID("tenant-1", "client-1", nil, "s3cret")
	p.tokenURL = srv.URL

	got, err := p.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != jwtTok {
		t.Error("unexpected token")
	}

	// Second call served from cache.
	if _, err := p.Token(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("token endpoint calls = %d, want 1 (cache miss)", n)
	}
}

func TestDeviceCodeFlowPrintsPrompt(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/devicecode", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"device_code":"dc","user_code":"ABCD-1234","verification_uri":"https://microsoft.com/devicelogin","expires_in":900,"interval":1}`)
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"device-token","token_type":"Bearer","expires_in":3600}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var prompt bytes.Buffer
	p := NewEntraID("tenant-1", "client-1", nil, "")
	p.Prompt = &prompt
	p.endpoint = oauth2.Endpoint{
		TokenURL:      srv.URL + "/token",
		DeviceAuthURL: srv.URL + "/devicecode",
	}

	got, err := p.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "device-token" {
		t.Errorf("token = %q", got)
	}
	if !strings.Contains(prompt.String(), "ABCD-1234") {
		t.Errorf("prompt missing user code: %q", prompt.String())
	}
}

func TestVaultScopedKeepsCredentials(t *testing.T) {
	p := NewEntraID("t", "c", nil, "sec")
	v := p.VaultScoped()
	if v.ClientSecret != "sec" || v.TenantID != "t" {
		t.Error("vault provider lost credentials")
	}
	if len(v.Scopes) != 1 || !strings.Contains(v.Scopes[0], "vault.azure.net") {
		t.Errorf("scopes = %v", v.Scopes)
	}
}
