package authz

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	m := NewJWTManager("test-secret", "sibyl")
	userID := uuid.New()
	orgID := uuid.New()

	token, err := m.Issue(userID, &orgID, []string{"api:read"}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != userID.String() {
		t.Errorf("Subject = %q, want %q", claims.Subject, userID.String())
	}
	if claims.Org != orgID.String() {
		t.Errorf("Org = %q, want %q", claims.Org, orgID.String())
	}
	if claims.Typ != "access" {
		t.Errorf("Typ = %q, want access", claims.Typ)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	m := NewJWTManager("test-secret", "sibyl")
	token, err := m.Issue(uuid.New(), nil, nil, -time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := m.Verify(token); err != ErrExpiredToken {
		t.Fatalf("Verify = %v, want ErrExpiredToken", err)
	}
}

func TestVerifyWrongSecretRejected(t *testing.T) {
	issuer := NewJWTManager("secret-a", "sibyl")
	verifier := NewJWTManager("secret-b", "sibyl")

	token, err := issuer.Issue(uuid.New(), nil, nil, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := verifier.Verify(token); err == nil {
		t.Fatal("Verify succeeded with wrong secret, want error")
	}
}

func TestVerifyNoOrgClaimOmitted(t *testing.T) {
	m := NewJWTManager("test-secret", "sibyl")
	token, err := m.Issue(uuid.New(), nil, nil, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Org != "" {
		t.Errorf("Org = %q, want empty", claims.Org)
	}
}
