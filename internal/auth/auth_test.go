package auth

import (
	"testing"
	"time"
)

func TestPasswordRoundtrip(t *testing.T) {
	hash, err := HashPassword("hunter2!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "hunter2!" {
		t.Fatal("hash equals plaintext")
	}
	if !CheckPassword(hash, "hunter2!") {
		t.Fatal("correct password rejected")
	}
	if CheckPassword(hash, "hunter3!") {
		t.Fatal("wrong password accepted")
	}
}

func TestTokenRoundtrip(t *testing.T) {
	tok, err := MakeToken("user-123", "doctor", "sekret", time.Hour)
	if err != nil {
		t.Fatalf("make token: %v", err)
	}

	claims, err := ParseToken(tok, "sekret")
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != "user-123" {
		t.Fatalf("uid = %q", claims.UserID)
	}
	if claims.Role != "doctor" {
		t.Fatalf("role = %q", claims.Role)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	tok, err := MakeToken("user-123", "patient", "sekret", time.Hour)
	if err != nil {
		t.Fatalf("make token: %v", err)
	}
	if _, err := ParseToken(tok, "other-secret"); err == nil {
		t.Fatal("token accepted with wrong secret")
	}
}

func TestTokenExpired(t *testing.T) {
	tok, err := MakeToken("user-123", "patient", "sekret", -time.Minute)
	if err != nil {
		t.Fatalf("make token: %v", err)
	}
	if _, err := ParseToken(tok, "sekret"); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestTokenGarbage(t *testing.T) {
	if _, err := ParseToken("not.a.jwt", "sekret"); err == nil {
		t.Fatal("garbage token accepted")
	}
}
