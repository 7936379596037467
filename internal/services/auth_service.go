package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pilgrimage/internal/domain"
	"pilgrimage/internal/domain/models"
	"pilgrimage/internal/utils"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var errBadCredentials = errors.New("invalid email or password")

// AuthService registers users and issues HS256 tokens carrying user_id and role.
type AuthService struct {
	Users  UserStore
	Secret []byte
	TTL    time.Duration
	now    func() time.Time
}

func NewAuthService(users UserStore, secret string, ttl time.Duration) AuthService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return AuthService{Users: users, Secret: []byte(secret), TTL: ttl, now: time.Now}
}

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type Claims struct {
	UserID int64
	Role   string
}

func (s AuthService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// Register creates an active account. Public sign-up may only pick pilgrim or
// organizer; a guest row created by an earlier booking cannot be claimed here.
func (s AuthService) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	email := utils.NormalizeEmail(in.Email)
	if !utils.LooksLikeEmail(email) {
		return models.User{}, domain.ValidationError{Field: "email", Msg: "invalid email"}
	}
	if len(in.Password) < 8 {
		return models.User{}, domain.ValidationError{Field: "password", Msg: "must be at least 8 characters"}
	}
	role := strings.ToLower(strings.TrimSpace(in.Role))
	switch role {
	case "":
		role = domain.RolePilgrim
	case domain.RolePilgrim, domain.RoleOrganizer:
	default:
		return models.User{}, domain.ValidationError{Field: "role", Msg: "must be pilgrim or organizer"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, domain.InternalError{Msg: "hash password", Err: err}
	}
	u, err := s.Users.CreateUser(ctx, models.User{
		Name:         utils.NormalizeSpace(in.Name),
		Email:        email,
		Phone:        utils.NormalizePhone(in.Phone),
		PasswordHash: string(hash),
		Role:         role,
		Status:       models.UserStatusActive,
	})
	if err != nil {
		if domain.IsConflict(err) {
			return models.User{}, err
		}
		return models.User{}, domain.UnavailableError{Op: "register", Err: err}
	}
	utils.LogEventf(ctx, "auth", "registered", "user_id=%d role=%s", u.ID, u.Role)
	return u, nil
}

// Login checks the password and returns a signed token.
func (s AuthService) Login(ctx context.Context, email, password string) (string, models.User, error) {
	u, err := s.Users.GetUserByEmail(ctx, utils.NormalizeEmail(email))
	if err != nil {
		if domain.IsNotFound(err) {
			return "", models.User{}, domain.ValidationError{Field: "credentials", Err: errBadCredentials}
		}
		return "", models.User{}, domain.UnavailableError{Op: "login", Err: err}
	}
	if u.Status != models.UserStatusActive {
		return "", models.User{}, domain.ValidationError{Field: "credentials", Err: errBadCredentials}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", models.User{}, domain.ValidationError{Field: "credentials", Err: errBadCredentials}
	}
	token, err := s.IssueToken(u.ID, u.Role)
	if err != nil {
		return "", models.User{}, err
	}
	utils.LogEventf(ctx, "auth", "login", "user_id=%d", u.ID)
	return token, u, nil
}

func (s AuthService) IssueToken(userID int64, role string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     s.clock().Add(s.TTL).Unix(),
	})
	signed, err := token.SignedString(s.Secret)
	if err != nil {
		return "", domain.InternalError{Msg: "sign token", Err: err}
	}
	return signed, nil
}

// ParseToken verifies signature and expiry and extracts the claims.
func (s AuthService) ParseToken(raw string) (Claims, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.Secret, nil
	}, jwt.WithTimeFunc(s.clock))
	if err != nil {
		return Claims{}, err
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Claims{}, errors.New("invalid token claims")
	}
	id, ok := mc["user_id"].(float64)
	if !ok || id <= 0 {
		return Claims{}, errors.New("token has no user_id")
	}
	role, _ := mc["role"].(string)
	return Claims{UserID: int64(id), Role: role}, nil
}
