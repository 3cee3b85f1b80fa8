package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestJWTService_IssueParse(t *testing.T) {
	svc := NewJWTService("secret", 15*time.Minute)

	token, err := svc.Issue("operator")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := svc.ParseAccessToken(token)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if claims.Subject != "operator" || claims.TokenType != "access" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestJWTService_Rejections(t *testing.T) {
	svc := NewJWTService("secret", 15*time.Minute)

	t.Run("blank subject", func(t *testing.T) {
		if _, err := svc.Issue("  "); !errors.Is(err, ErrJWTInvalid) {
			t.Fatalf("expected ErrJWTInvalid, got %v", err)
		}
	})

	t.Run("no secret", func(t *testing.T) {
		if _, err := NewJWTService("", time.Minute).ParseAccessToken("x"); !errors.Is(err, ErrJWTInvalid) {
			t.Fatalf("expected ErrJWTInvalid, got %v", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := NewJWTService("other", time.Minute).Issue("operator")
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		if _, err := svc.ParseAccessToken(token); !errors.Is(err, ErrJWTInvalid) {
			t.Fatalf("expected ErrJWTInvalid, got %v", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		now := time.Now().UTC()
		claims := Claims{
			TokenType: "access",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "tagrag",
				Subject:   "operator",
				IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
				ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		if _, err := svc.ParseAccessToken(token); !errors.Is(err, ErrJWTExpired) {
			t.Fatalf("expected ErrJWTExpired, got %v", err)
		}
	})

	t.Run("wrong type", func(t *testing.T) {
		claims := Claims{
			TokenType: "refresh",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "tagrag",
				Subject:   "operator",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		if _, err := svc.ParseAccessToken(token); !errors.Is(err, ErrJWTInvalid) {
			t.Fatalf("expected ErrJWTInvalid, got %v", err)
		}
	})
}
