package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessTokenTTL  = 24 * time.Hour
	refreshTokenTTL = 30 * 24 * time.Hour
)

type AuthModule struct {
	db        *pgxpool.Pool
	redis     *redis.Client
	JWTSecret string
}

func NewAuthModule(db *pgxpool.Pool, redis *redis.Client, JWTSecret string) *AuthModule {
	return &AuthModule{
		db:        db,
		redis:     redis,
		JWTSecret: JWTSecret,
	}
}

func generateSecureToken(length int) (string, error) {
	randomBytes := make([]byte, length)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(randomBytes), nil
}

func (a *AuthModule) createUser(ctx context.Context, username, password, email string) (string, error) {
	var exists bool
	err := a.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)", username).Scan(&exists)
	if err != nil {
		return "", err
	}
	if exists {
		return "", errors.New("username already exists")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	userID := uuid.NewString()
	_, err = a.db.Exec(ctx,
		"INSERT INTO users (id, username, password, email, created_at) VALUES ($1, $2, $3, $4, NOW())",
		userID, username, string(hashedPassword), email,
	)
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (a *AuthModule) generateJWT(userID string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(accessTokenTTL).Unix(),
		"iat":     time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.JWTSecret))
}

func (a *AuthModule) authenticateUser(ctx context.Context, username, password string) (string, error) {
	var userID, passwordHash string
	err := a.db.QueryRow(ctx, "SELECT id, password FROM users WHERE username = $1", username).Scan(&userID, &passwordHash)
	if err != nil {
		return "", errors.New("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return "", errors.New("invalid credentials")
	}
	return userID, nil
}

// Register creates the user and returns an access/refresh token pair
func (a *AuthModule) Register(ctx context.Context, username, password, email string) (string, string, error) {
	userID, err := a.createUser(ctx, username, password, email)
	if err != nil {
		return "", "", err
	}
	return a.issueTokens(ctx, userID)
}

// Login authenticates and returns an access/refresh token pair
func (a *AuthModule) Login(ctx context.Context, username, password string) (string, string, error) {
	userID, err := a.authenticateUser(ctx, username, password)
	if err != nil {
		return "", "", err
	}
	return a.issueTokens(ctx, userID)
}

func (a *AuthModule) issueTokens(ctx context.Context, userID string) (string, string, error) {
	access, err := a.generateJWT(userID)
	if err != nil {
		return "", "", err
	}

	refresh, err := generateSecureToken(32)
	if err != nil {
		return "", "", err
	}
	if err := a.redis.Set(ctx, "refresh:"+refresh, userID, refreshTokenTTL).Err(); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// Refresh exchanges a valid refresh token for a new token pair, rotating
// the refresh token
func (a *AuthModule) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	key := "refresh:" + refreshToken
	userID, err := a.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", "", errors.New("invalid refresh token")
	} else if err != nil {
		return "", "", err
	}

	a.redis.Del(ctx, key)
	return a.issueTokens(ctx, userID)
}

// Logout revokes a refresh token
func (a *AuthModule) Logout(ctx context.Context, refreshToken string) error {
	return a.redis.Del(ctx, "refresh:"+refreshToken).Err()
}

// ValidateToken checks an access token and returns the user id
func (a *AuthModule) ValidateToken(ctx context.Context, token string) (string, error) {
	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(a.JWTSecret), nil
	})
	if err != nil {
		return "", err
	}

	if claims, ok := parsedToken.Claims.(jwt.MapClaims); ok && parsedToken.Valid {
		userID, ok := claims["user_id"].(string)
		if !ok {
			return "", errors.New("invalid user_id in token")
		}
		return userID, nil
	}
	return "", errors.New("invalid token")
}
