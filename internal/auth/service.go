package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"backend-cityfix/internal/docstore"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour

	usersCollection         = "users"
	refreshTokensCollection = "refreshTokens"
)

var (
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidRefreshToken = errors.New("refresh token invalid")
)

var (
	validate          = validator.New()
	hashPasswordFn    = bcrypt.GenerateFromPassword
	parseWithClaimsFn = jwt.ParseWithClaims
	signTokenFn       = (*Service).signToken
)

type Service struct {
	secret []byte
	store  docstore.Store
	now    func() time.Time
}

type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

func NewService(secret string, store docstore.Store) *Service {
	return &Service{
		secret: []byte(secret),
		store:  store,
		now:    time.Now,
	}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (User, TokenResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate.Struct(req); err != nil {
		return User{}, TokenResponse{}, fmt.Errorf("email, username, password required: %w", err)
	}
	if _, err := s.findByEmail(ctx, req.Email); err == nil {
		return User{}, TokenResponse{}, ErrEmailTaken
	} else if !errors.Is(err, docstore.ErrNotFound) {
		return User{}, TokenResponse{}, err
	}

	hash, err := hashPasswordFn([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, TokenResponse{}, err
	}

	now := s.now().UnixMilli()
	user := User{
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		AvatarURL:    req.AvatarURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	id, err := s.store.Add(ctx, usersCollection, docstore.Fields{
		"email":        user.Email,
		"username":     user.Username,
		"passwordHash": user.PasswordHash,
		"fullName":     user.FullName,
		"avatarUrl":    user.AvatarURL,
		"createdAt":    user.CreatedAt,
		"updatedAt":    user.UpdatedAt,
	})
	if err != nil {
		return User{}, TokenResponse{}, err
	}
	user.ID = id

	tokens, err := s.GenerateTokens(ctx, user.ID)
	if err != nil {
		return User{}, TokenResponse{}, err
	}
	return user, tokens, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (User, TokenResponse, error) {
	user, err := s.findByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, docstore.ErrNotFound) {
		return User{}, TokenResponse{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, TokenResponse{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return User{}, TokenResponse{}, ErrInvalidCredentials
	}

	tokens, err := s.GenerateTokens(ctx, user.ID)
	if err != nil {
		return User{}, TokenResponse{}, err
	}
	return user, tokens, nil
}

// GetUser loads a profile by id.
func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	doc, err := s.store.Get(ctx, docstore.Join(usersCollection, id))
	if err != nil {
		return User{}, err
	}
	return userFromDoc(doc)
}

func (s *Service) findByEmail(ctx context.Context, email string) (User, error) {
	page, err := s.store.Query(ctx, docstore.Query{
		Collection: usersCollection,
		Filters:    []docstore.Filter{docstore.Eq("email", email)},
		Limit:      1,
	})
	if err != nil {
		return User{}, err
	}
	if len(page.Docs) == 0 {
		return User{}, docstore.ErrNotFound
	}
	return userFromDoc(page.Docs[0])
}

func userFromDoc(doc docstore.Document) (User, error) {
	var u User
	if err := doc.DataTo(&u); err != nil {
		return User{}, err
	}
	u.ID = doc.ID
	return u, nil
}

func (s *Service) GenerateTokens(ctx context.Context, userID string) (TokenResponse, error) {
	access, err := signTokenFn(s, userID, accessTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	refresh, err := signTokenFn(s, userID, refreshTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	if err := s.saveRefreshToken(ctx, refresh, userID, refreshTokenTTL); err != nil {
		return TokenResponse{}, err
	}

	return TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(accessTokenTTL.Seconds()),
	}, nil
}

// ValidateRefreshToken checks a refresh token against its stored record and
// consumes it; each refresh token works once.
func (s *Service) ValidateRefreshToken(ctx context.Context, token string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return "", err
	}

	rec, err := s.lookupRefreshToken(ctx, token)
	if err != nil || rec.UserID != claims.UserID || s.now().UnixMilli() > rec.ExpiresAt {
		return "", ErrInvalidRefreshToken
	}
	if err := s.store.Delete(ctx, docstore.Join(refreshTokensCollection, rec.id)); err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func (s *Service) ValidateAccessToken(token string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func (s *Service) signToken(userID string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			// distinct tokens for the same user within one second
			ID: fmt.Sprintf("%d", now.UnixNano()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) parseToken(token string) (*Claims, error) {
	parsed, err := parseWithClaimsFn(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("token invalid")
	}
	return claims, nil
}

type refreshRecord struct {
	id        string
	UserID    string `json:"userId"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

func (s *Service) saveRefreshToken(ctx context.Context, token, userID string, ttl time.Duration) error {
	_, err := s.store.Add(ctx, refreshTokensCollection, docstore.Fields{
		"userId":    userID,
		"token":     token,
		"expiresAt": s.now().Add(ttl).UnixMilli(),
	})
	return err
}

func (s *Service) lookupRefreshToken(ctx context.Context, token string) (refreshRecord, error) {
	page, err := s.store.Query(ctx, docstore.Query{
		Collection: refreshTokensCollection,
		Filters:    []docstore.Filter{docstore.Eq("token", token)},
		Limit:      1,
	})
	if err != nil {
		return refreshRecord{}, err
	}
	if len(page.Docs) == 0 {
		return refreshRecord{}, docstore.ErrNotFound
	}
	var rec refreshRecord
	if err := page.Docs[0].DataTo(&rec); err != nil {
		return refreshRecord{}, err
	}
	rec.id = page.Docs[0].ID
	return rec, nil
}
