package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/yoockh/clonehub/internal/utils"
)

type apiError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

type JWTConfig struct {
	Secret   string
	Issuer   string // optional
	Audience string // optional
}

type supabaseClaims struct {
	jwt.RegisteredClaims
	Role         string         `json:"role"`         // usually "authenticated" / "anon"
	AppMetadata  map[string]any `json:"app_metadata"` // put {"role":"admin"} here
	UserMetadata map[string]any `json:"user_metadata"`
}

// authenticate validates the bearer token in header and returns the subject
// and app role. present is false when no bearer token was sent.
func (cfg JWTConfig) authenticate(header string) (userID, role string, present bool, fail *apiError) {
	if !strings.HasPrefix(header, "Bearer ") {
		return "", "", false, &apiError{Code: utils.CodeUnauthorized, Message: "missing bearer token"}
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if raw == "" {
		return "", "", false, &apiError{Code: utils.CodeUnauthorized, Message: "missing bearer token"}
	}
	if cfg.Secret == "" {
		return "", "", true, &apiError{Code: utils.CodeInternal, Message: "SUPABASE_JWT_SECRET is not set"}
	}

	claims := &supabaseClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || tok == nil || !tok.Valid {
		return "", "", true, &apiError{Code: utils.CodeUnauthorized, Message: "invalid token"}
	}

	if cfg.Issuer != "" && claims.Issuer != cfg.Issuer {
		return "", "", true, &apiError{Code: utils.CodeUnauthorized, Message: "invalid token issuer"}
	}
	if cfg.Audience != "" {
		valid := false
		for _, aud := range claims.Audience {
			if aud == cfg.Audience {
				valid = true
				break
			}
		}
		if !valid {
			return "", "", true, &apiError{Code: utils.CodeUnauthorized, Message: "invalid token audience"}
		}
	}

	if claims.Subject == "" {
		return "", "", true, &apiError{Code: utils.CodeUnauthorized, Message: "missing subject"}
	}

	// app-level role, default "user"
	role = "user"
	if v, ok := claims.AppMetadata["role"].(string); ok && v != "" {
		role = v
	}
	return claims.Subject, role, true, nil
}

func abortWith(c *gin.Context, e *apiError) {
	status := http.StatusUnauthorized
	if e.Code == utils.CodeInternal {
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, e)
}

// JWTAuth rejects requests without a valid Supabase access token.
func JWTAuth(cfg JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, role, _, fail := cfg.authenticate(c.GetHeader("Authorization"))
		if fail != nil {
			abortWith(c, fail)
			return
		}
		c.Set("user_id", userID)
		c.Set("role", role)
		c.Next()
	}
}

// OptionalJWT identifies the caller when a token is sent and lets anonymous
// requests through. A token that is sent but invalid is still rejected.
func OptionalJWT(cfg JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, role, present, fail := cfg.authenticate(c.GetHeader("Authorization"))
		if !present {
			c.Next()
			return
		}
		if fail != nil {
			abortWith(c, fail)
			return
		}
		c.Set("user_id", userID)
		c.Set("role", role)
		c.Next()
	}
}
