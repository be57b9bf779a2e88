package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/postpilotapp/postpilot-backend/pkg/config"
	"github.com/postpilotapp/postpilot-backend/pkg/enums"
)

var testJWTConfig = config.JWTConfig{
	Secret:            "test-secret",
	Issuer:            "postpilot-test",
	ExpirationMinutes: 15,
}

func TestMintAndParseRoundTrip(t *testing.T) {
	userID := uuid.New()
	token, err := MintAccessToken(testJWTConfig, time.Now(), AccessTokenPayload{
		UserID: userID,
		Role:   enums.UserRoleAdmin,
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	claims, err := ParseAccessToken(testJWTConfig, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != userID {
		t.Fatalf("user id = %s", claims.UserID)
	}
	if claims.Role != enums.UserRoleAdmin {
		t.Fatalf("role = %s", claims.Role)
	}
	if claims.ID == "" {
		t.Fatal("expected generated jti")
	}
}

func TestMintRejectsInvalidRole(t *testing.T) {
	_, err := MintAccessToken(testJWTConfig, time.Now(), AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.UserRole("superuser"),
	})
	if err == nil || !strings.Contains(err.Error(), "invalid user role") {
		t.Fatalf("err = %v", err)
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	token, err := MintAccessToken(testJWTConfig, time.Now().Add(-time.Hour), AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.UserRoleUser,
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(testJWTConfig, token); err == nil {
		t.Fatal("expected expiry error")
	}
}

func TestParseAtUsesReferenceClock(t *testing.T) {
	minted := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	token, err := MintAccessToken(testJWTConfig, minted, AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.UserRoleUser,
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	// A token minted at a fixed past instant stays verifiable at that
	// instant regardless of the wall clock.
	if _, err := ParseAccessTokenAt(testJWTConfig, token, minted.Add(time.Minute)); err != nil {
		t.Fatalf("parse at mint time: %v", err)
	}
	if _, err := ParseAccessTokenAt(testJWTConfig, token, minted.Add(16*time.Minute)); err == nil {
		t.Fatal("expected expiry error past the ttl")
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	other := testJWTConfig
	other.Issuer = "someone-else"
	token, err := MintAccessToken(other, time.Now(), AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.UserRoleUser,
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(testJWTConfig, token); err == nil {
		t.Fatal("expected issuer mismatch error")
	}
}
