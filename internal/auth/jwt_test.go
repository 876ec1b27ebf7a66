package auth

import (
	"testing"
	"time"
)

func TestValidateAccessToken(t *testing.T) {
	manager := NewJWTManager("test-secret", "gig-marketplace", 15*time.Minute)

	token, err := manager.GenerateAccessToken(UserClaims{
		UserID:  "u1",
		Role:    "worker",
		IsAdmin: false,
	})
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	claims, err := manager.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	if claims.UserID != "u1" {
		t.Errorf("user id = %s, want u1", claims.UserID)
	}
	if claims.Role != "worker" {
		t.Errorf("role = %s, want worker", claims.Role)
	}
	if claims.IsAdmin {
		t.Error("is_admin should be false")
	}
}

func TestValidateAccessTokenWrongSecret(t *testing.T) {
	minter := NewJWTManager("secret-a", "gig-marketplace", 15*time.Minute)
	validator := NewJWTManager("secret-b", "gig-marketplace", 15*time.Minute)

	token, err := minter.GenerateAccessToken(UserClaims{UserID: "u1"})
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	if _, err := validator.ValidateAccessToken(token); err != ErrInvalidToken {
		t.Errorf("error = %v, want ErrInvalidToken", err)
	}
}

func TestValidateAccessTokenWrongIssuer(t *testing.T) {
	minter := NewJWTManager("test-secret", "some-other-app", 15*time.Minute)
	validator := NewJWTManager("test-secret", "gig-marketplace", 15*time.Minute)

	token, err := minter.GenerateAccessToken(UserClaims{UserID: "u1"})
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	if _, err := validator.ValidateAccessToken(token); err != ErrInvalidToken {
		t.Errorf("error = %v, want ErrInvalidToken", err)
	}
}

func TestValidateAccessTokenExpired(t *testing.T) {
	manager := NewJWTManager("test-secret", "gig-marketplace", 1*time.Nanosecond)

	token, err := manager.GenerateAccessToken(UserClaims{UserID: "u1"})
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	if _, err := manager.ValidateAccessToken(token); err != ErrTokenExpired {
		t.Errorf("error = %v, want ErrTokenExpired", err)
	}
}

func TestValidateAccessTokenGarbage(t *testing.T) {
	manager := NewJWTManager("test-secret", "gig-marketplace", 15*time.Minute)

	if _, err := manager.ValidateAccessToken("not.a.token"); err != ErrInvalidToken {
		t.Errorf("error = %v, want ErrInvalidToken", err)
	}
}
