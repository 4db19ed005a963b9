package auth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// SessionCookieName is the cookie the signed session token travels in.
const SessionCookieName = "qb_session"

// ContextUserKey is the gin context key the middleware stores the session
// under.
const ContextUserKey = "session_user"

type SessionAuth struct {
	secret []byte
	ttl    time.Duration
}

// Session is the authenticated caller extracted from the token.
type Session struct {
	UserID  uuid.UUID
	IsAdmin bool
}

func NewSessionAuth(secret string, ttl time.Duration) *SessionAuth {
	return &SessionAuth{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

func (a *SessionAuth) IssueToken(userID uuid.UUID, isAdmin bool) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID.String(),
		"admin": isAdmin,
		"iat":   now.Unix(),
		"exp":   now.Add(a.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *SessionAuth) ParseToken(tokenString string) (*Session, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse session token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid session token")
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return nil, fmt.Errorf("session token missing subject: %w", err)
	}

	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, fmt.Errorf("invalid user id in session token: %w", err)
	}

	isAdmin, _ := claims["admin"].(bool)

	return &Session{
		UserID:  userID,
		IsAdmin: isAdmin,
	}, nil
}

// CookieTTLSeconds is the max-age used when setting the session cookie.
func (a *SessionAuth) CookieTTLSeconds() int {
	return int(a.ttl.Seconds())
}

// SessionMiddleware authenticates the request from the session cookie and
// stores the parsed session in the gin context.
func (a *SessionAuth) SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := c.Cookie(SessionCookieName)
		if err != nil || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		session, err := a.ParseToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
			return
		}

		c.Set(ContextUserKey, session)
		c.Next()
	}
}

// SessionFromContext retrieves the session stored by SessionMiddleware.
func SessionFromContext(c *gin.Context) (*Session, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	session, ok := value.(*Session)
	return session, ok
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
