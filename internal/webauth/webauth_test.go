package webauth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGenerateValidateRoundTrip(t *testing.T) {
	v := New("test-secret", time.Hour)
	token, err := v.Generate("operator-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	principal, err := v.Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if principal.Subject != "operator-1" {
		t.Fatalf("subject = %q, want operator-1", principal.Subject)
	}
}

func TestValidateRejectsTamperedToken(t *testing.T) {
	v := New("test-secret", time.Hour)
	token, err := v.Generate("operator-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	tampered := token + "x"
	if _, err := v.Validate(tampered); err == nil {
		t.Fatal("expected tampered token to fail validation")
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	v := New("test-secret", -time.Hour)
	token, err := v.Generate("operator-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := v.Validate(token); err == nil {
		t.Fatal("expected expired token to fail validation")
	}
}

func TestFromRequestCookieTakesPriority(t *testing.T) {
	v := New("test-secret", time.Hour)
	cookieToken, _ := v.Generate("cookie-user")
	headerToken, _ := v.Generate("header-user")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: cookieToken})
	req.Header.Set("Authorization", "Bearer "+headerToken)

	p, err := v.FromRequest(req)
	if err != nil {
		t.Fatalf("from request: %v", err)
	}
	if p.Subject != "cookie-user" {
		t.Fatalf("subject = %q, want cookie-user", p.Subject)
	}
}

func TestDisabledAuthReturnsError(t *testing.T) {
	v := New("", time.Hour)
	if _, err := v.Generate("x"); err != ErrAuthDisabled {
		t.Fatalf("err = %v, want ErrAuthDisabled", err)
	}
}
