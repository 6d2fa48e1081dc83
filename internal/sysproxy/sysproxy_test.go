package sysproxy

import (
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in         string
		wantScheme string
		wantAddr   string
		wantErr    bool
	}{
		{in: "http://proxy.corp:3128", wantScheme: "http", wantAddr: "proxy.corp:3128"},
		{in: "proxy.corp:8080", wantScheme: "http", wantAddr: "proxy.corp:8080"},
		{in: "http://proxy.corp", wantScheme: "http", wantAddr: "proxy.corp:80"},
		{in: "socks5://127.0.0.1:1081", wantScheme: "socks5", wantAddr: "127.0.0.1:1081"},
		{in: "socks5://gateway", wantScheme: "socks5", wantAddr: "gateway:1080"},
		{in: "ftp://proxy.corp:21", wantErr: true},
		{in: "http://", wantErr: true},
	}

	for _, tt := range tests {
		up, err := Parse(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Parse(%q): expected error, got %+v", tt.in, up)
			}
			continue
		}
		if err != nil {
			t.Errorf("Parse(%q): %v", tt.in, err)
			continue
		}
		if up.Scheme != tt.wantScheme || up.Addr != tt.wantAddr {
			t.Errorf("Parse(%q) = %s %s, want %s %s", tt.in, up.Scheme, up.Addr, tt.wantScheme, tt.wantAddr)
		}
	}
}

func TestFromEnvironmentDetectsProxy(t *testing.T) {
	t.Setenv("HTTP_PROXY", "http://proxy.corp:3128")
	t.Setenv("HTTPS_PROXY", "")
	t.Setenv("ALL_PROXY", "")
	t.Setenv("NO_PROXY", "")

	up, err := FromEnvironment()
	if err != nil {
		t.Fatal(err)
	}
	if up == nil {
		t.Fatal("expected an upstream from HTTP_PROXY")
	}
	if up.Scheme != "http" || up.Addr != "proxy.corp:3128" {
		t.Fatalf("got %s %s", up.Scheme, up.Addr)
	}
}

func TestFromEnvironmentAllProxySocks5(t *testing.T) {
	t.Setenv("HTTP_PROXY", "")
	t.Setenv("HTTPS_PROXY", "")
	t.Setenv("http_proxy", "")
	t.Setenv("https_proxy", "")
	t.Setenv("ALL_PROXY", "socks5://127.0.0.1:1081")

	up, err := FromEnvironment()
	if err != nil {
		t.Fatal(err)
	}
	if up == nil || up.Scheme != "socks5" || up.Addr != "127.0.0.1:1081" {
		t.Fatalf("got %+v", up)
	}
}

func TestFromEnvironmentEmpty(t *testing.T) {
	t.Setenv("HTTP_PROXY", "")
	t.Setenv("HTTPS_PROXY", "")
	t.Setenv("ALL_PROXY", "")
	t.Setenv("http_proxy", "")
	t.Setenv("https_proxy", "")
	t.Setenv("all_proxy", "")

	up, err := FromEnvironment()
	if err != nil {
		t.Fatal(err)
	}
	if up != nil {
		t.Fatalf("expected no upstream, got %s %s", up.Scheme, up.Addr)
	}
}
