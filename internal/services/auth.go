package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/singleflight"

	"momolearn-backend/internal/models"
	"momolearn-backend/internal/repository"
)

const bcryptCost = 12

type authUsers interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

type sessionStore interface {
	Create(ctx context.Context, s *models.SessionToken) error
	GetByToken(ctx context.Context, token string) (*models.SessionToken, error)
	DeleteByToken(ctx context.Context, token string) error
}

// SessionCache is a read-through cache in front of the session table.
// Implementations treat their own failures as misses.
type SessionCache interface {
	Lookup(ctx context.Context, token string) (uuid.UUID, bool)
	Store(ctx context.Context, token string, userID uuid.UUID, ttl time.Duration)
	Forget(ctx context.Context, token string)
}

type AuthService struct {
	users    authUsers
	sessions sessionStore
	cache    SessionCache
	ttl      time.Duration
	cost     int
	lookups  singleflight.Group
	log      *zap.Logger
	now      func() time.Time
}

func NewAuthService(users authUsers, sessions sessionStore, cache SessionCache, ttl time.Duration, log *zap.Logger) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		cache:    cache,
		ttl:      ttl,
		cost:     bcryptCost,
		log:      log.Named("auth"),
		now:      time.Now,
	}
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	name := strings.TrimSpace(req.Name)
	email := normalizeEmail(req.Email)

	// Validate all fields at once
	fieldErrors := make(map[string]string)

	if name == "" {
		fieldErrors["name"] = "Name is required"
	}
	if !emailRegex.MatchString(email) {
		fieldErrors["email"] = "Invalid email format"
	}
	if err := validatePassword(req.Password); err != nil {
		fieldErrors["password"] = err.Error()
	}

	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	// Hash password (bcrypt cost 12)
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, &ConflictError{Message: "Email already in use"}
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return s.issueSession(ctx, user)
}

func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &UnauthorizedError{Message: "Invalid credentials"}
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, &UnauthorizedError{Message: "Invalid credentials"}
	}

	return s.issueSession(ctx, user)
}

// Logout succeeds for unknown tokens.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	s.cache.Forget(ctx, token)
	if err := s.sessions.DeleteByToken(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *AuthService) Me(ctx context.Context, token string) (*models.PublicUser, error) {
	userID, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &UnauthorizedError{Message: "Invalid or expired token"}
	}
	if err != nil {
		return nil, err
	}
	return &models.PublicUser{ID: user.ID, Name: user.Name, Email: user.Email}, nil
}

// Authenticate resolves a bearer token to its user. Concurrent calls for
// the same token share one lookup.
func (s *AuthService) Authenticate(ctx context.Context, token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, &UnauthorizedError{Message: "Missing token"}
	}
	if id, ok := s.cache.Lookup(ctx, token); ok {
		return id, nil
	}

	v, err, _ := s.lookups.Do(token, func() (interface{}, error) {
		return s.lookupSession(context.WithoutCancel(ctx), token)
	})
	if err != nil {
		return uuid.Nil, err
	}
	return v.(uuid.UUID), nil
}

func (s *AuthService) lookupSession(ctx context.Context, token string) (uuid.UUID, error) {
	session, err := s.sessions.GetByToken(ctx, token)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, &UnauthorizedError{Message: "Invalid or expired token"}
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("load session: %w", err)
	}

	now := s.now()
	if session.Expired(now) {
		if err := s.sessions.DeleteByToken(ctx, token); err != nil {
			s.log.Warn("failed to delete expired session", zap.Error(err))
		}
		return uuid.Nil, &UnauthorizedError{Message: "Invalid or expired token"}
	}

	s.cache.Store(ctx, token, session.UserID, session.ExpiresAt.Sub(now))
	return session.UserID, nil
}

func (s *AuthService) issueSession(ctx context.Context, user *models.User) (*models.AuthResponse, error) {
	session := &models.SessionToken{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &models.AuthResponse{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Token:  session.Token,
	}, nil
}

func validatePassword(pw string) error {
	if utf8.RuneCountInString(pw) < 8 {
		return fmt.Errorf("Password must be at least 8 characters")
	}
	return nil
}

// RedisSessionCache keys entries by a hash of the token so raw tokens
// never reach redis.
type RedisSessionCache struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewRedisSessionCache(rdb *redis.Client, log *zap.Logger) *RedisSessionCache {
	return &RedisSessionCache{rdb: rdb, log: log.Named("session_cache")}
}

func sessionCacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "session:" + hex.EncodeToString(sum[:])
}

func (c *RedisSessionCache) Lookup(ctx context.Context, token string) (uuid.UUID, bool) {
	val, err := c.rdb.Get(ctx, sessionCacheKey(token)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("session cache read failed", zap.Error(err))
		}
		return uuid.Nil, false
	}
	id, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (c *RedisSessionCache) Store(ctx context.Context, token string, userID uuid.UUID, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if err := c.rdb.Set(ctx, sessionCacheKey(token), userID.String(), ttl).Err(); err != nil {
		c.log.Warn("session cache write failed", zap.Error(err))
	}
}

func (c *RedisSessionCache) Forget(ctx context.Context, token string) {
	if err := c.rdb.Del(ctx, sessionCacheKey(token)).Err(); err != nil {
		c.log.Warn("session cache delete failed", zap.Error(err))
	}
}
