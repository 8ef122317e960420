package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type AuthMiddleware struct {
	jwtSecret   string
	jwtIssuer   string
	internalKey string
}

func NewAuthMiddleware(jwtSecret, jwtIssuer, internalKey string) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret:   jwtSecret,
		jwtIssuer:   jwtIssuer,
		internalKey: internalKey,
	}
}

type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type AdminClaims struct {
	AdminID  string `json:"admin_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// JWTAuth validates bearer tokens on the player-facing endpoints.
func (a *AuthMiddleware) JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			return
		}

		token, err := jwt.ParseWithClaims(tokenString, &Claims{}, a.keyFunc, a.parserOptions()...)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid token",
				"message": err.Error(),
			})
			c.Abort()
			return
		}

		claims, ok := token.Claims.(*Claims)
		if !ok || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid token claims",
			})
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// AdminAuth accepts either the internal service key or an admin bearer token.
func (a *AuthMiddleware) AdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey := c.GetHeader("X-API-Key"); apiKey != "" && apiKey == a.internalKey {
			c.Set("is_internal", true)
			c.Set("is_admin", true)
			c.Next()
			return
		}

		tokenString, ok := bearerToken(c)
		if !ok {
			return
		}

		token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, a.keyFunc, a.parserOptions()...)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid admin token",
				"message": err.Error(),
			})
			c.Abort()
			return
		}

		claims, ok := token.Claims.(*AdminClaims)
		if !ok || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid admin token claims",
			})
			c.Abort()
			return
		}

		if claims.Role != "admin" && claims.Role != "super_admin" {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Admin access required",
			})
			c.Abort()
			return
		}

		c.Set("admin_id", claims.AdminID)
		c.Set("admin_username", claims.Username)
		c.Set("is_admin", true)
		c.Next()
	}
}

// parserOptions enforces the configured issuer; an empty issuer disables the
// check rather than rejecting every token.
func (a *AuthMiddleware) parserOptions() []jwt.ParserOption {
	if a.jwtIssuer == "" {
		return nil
	}
	return []jwt.ParserOption{jwt.WithIssuer(a.jwtIssuer)}
}

func (a *AuthMiddleware) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return []byte(a.jwtSecret), nil
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Authorization header required",
		})
		c.Abort()
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Authorization header must be 'Bearer <token>'",
		})
		c.Abort()
		return "", false
	}
	return parts[1], true
}

// GenerateJWT issues a player token, used by the test helpers and the login
// relay.
func (a *AuthMiddleware) GenerateJWT(userID int64, username, role string) (string, error) {
	claims := &Claims{
		UserID:   userID,
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    a.jwtIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.jwtSecret))
}

// GenerateAdminJWT issues an admin token.
func (a *AuthMiddleware) GenerateAdminJWT(adminID, username, role string) (string, error) {
	claims := &AdminClaims{
		AdminID:  adminID,
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(30 * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    a.jwtIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.jwtSecret))
}
