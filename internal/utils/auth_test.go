package utils

import (
	"testing"
	"time"
)

func TestPasswordHashing(t *testing.T) {
	password := "secret123"

	// Test Hashing
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	if hash == password {
		t.Error("Hash should not match plaintext password")
	}

	// Test Comparison (Success)
	if !CheckPasswordHash(password, hash) {
		t.Error("Password should match hash")
	}

	// Test Comparison (Failure)
	if CheckPasswordHash("wrongpassword", hash) {
		t.Error("Wrong password should not match hash")
	}
	if CheckPasswordHash(password, "") {
		t.Error("Empty hash should never match")
	}
}

func TestAdminToken(t *testing.T) {
	secret := "test-secret-key-12345"

	token, expires, err := GenerateAdminToken(secret, AdminTokenTTL)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	if token == "" {
		t.Fatal("Token should not be empty")
	}
	if d := time.Until(expires); d < 11*time.Hour || d > 13*time.Hour {
		t.Errorf("Unexpected expiry %v", expires)
	}

	// Test Validation (Success)
	claims, err := ValidateToken(token, secret)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}
	if claims["role"] != "admin" {
		t.Errorf("Expected admin role, got %v", claims["role"])
	}

	// Test Validation (Failure - Wrong Key)
	if _, err := ValidateToken(token, "wrong-key"); err == nil {
		t.Error("Validation should fail with wrong key")
	}
}

func TestExpiredAdminToken(t *testing.T) {
	token, _, err := GenerateAdminToken("k", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ValidateToken(token, "k"); err == nil {
		t.Error("Expired token should be rejected")
	}
}

func TestAdminTokenRequiresSecret(t *testing.T) {
	if _, _, err := GenerateAdminToken("", time.Hour); err == nil {
		t.Error("Empty secret should be refused")
	}
}
