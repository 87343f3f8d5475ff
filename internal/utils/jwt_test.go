package utils

import (
	"testing"
	"time"
)

const testSecret = "devtoken-test-secret"

func init() {
	SetJWTSecret(testSecret)
}

func TestParseToken_RoundTrip(t *testing.T) {
	token, err := GenerateToken(42, "ada", "admin", 1)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.UserID != 42 || claims.Username != "ada" || claims.Role != "admin" {
		t.Errorf("claims = %+v", claims)
	}
	if claims.Subject != "42" {
		t.Errorf("Subject = %q, expected %q", claims.Subject, "42")
	}
	if d := time.Until(claims.ExpiresAt.Time); d <= 0 || d > time.Hour {
		t.Errorf("token expires in %v, expected within an hour", d)
	}
}

func TestParseToken_Rejects(t *testing.T) {
	expired, _ := GenerateToken(1, "late", "user", -1)
	anonymous, _ := GenerateToken(0, "ghost", "user", 1)

	SetJWTSecret("someone-elses-secret")
	foreign, _ := GenerateToken(1, "intruder", "admin", 1)
	SetJWTSecret(testSecret)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"not a jwt", "not.a.token"},
		{"bad signature", "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.e30.c2lnbmF0dXJl"},
		{"expired", expired},
		{"no user id", anonymous},
		{"other secret", foreign},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(tt.token); err == nil {
				t.Errorf("ParseToken(%q) should fail", tt.token)
			}
		})
	}
}
