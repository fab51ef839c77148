package service

import (
	"testing"

	"github.com/hustbill/nodejs-api-server-sub001/internal/config"
	"github.com/hustbill/nodejs-api-server-sub001/internal/models"
)

func TestGenerateAndParseUserJWT(t *testing.T) {
	cfg := config.JWTConfig{SecretKey: "unit-secret", ExpireHours: 1}
	user := &models.User{ID: 11, Email: "buyer@example.com", TokenVersion: 3}

	token, expiresAt, err := GenerateUserJWT(cfg, user)
	if err != nil {
		t.Fatalf("generate token failed: %v", err)
	}
	if expiresAt.IsZero() {
		t.Fatalf("expected expiry")
	}

	claims, err := ParseUserJWT("unit-secret", token)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if claims.UserID != 11 || claims.TokenVersion != 3 || claims.Email != "buyer@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := ParseUserJWT("other-secret", token); err == nil {
		t.Fatalf("expected wrong secret to fail")
	}
}

func TestGenerateUserJWTRequiresSecret(t *testing.T) {
	if _, _, err := GenerateUserJWT(config.JWTConfig{}, &models.User{ID: 1}); err == nil {
		t.Fatalf("expected empty secret to fail")
	}
	if _, _, err := GenerateUserJWT(config.JWTConfig{SecretKey: "s"}, nil); err == nil {
		t.Fatalf("expected nil user to fail")
	}
}
