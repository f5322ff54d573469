package jwtutil

import (
	"errors"
	"strconv"
	"time"

	"spartan-crm/pkg/config"

	"github.com/golang-jwt/jwt/v4"
)

const issuer = "spartan-crm"

var (
	ErrNotConfigured = errors.New("jwtutil: signing configuration not provided")
	ErrInvalidToken  = errors.New("jwtutil: invalid token")
)

// UserClaims identifies a dashboard user. CompanyID is nil only for the
// platform admin.
type UserClaims struct {
	Email       string   `json:"email"`
	UserID      uint     `json:"user_id"`
	CompanyID   *uint    `json:"company_id,omitempty"`
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// JWTUtil signs and verifies HS256 API tokens
type JWTUtil struct {
	config *config.JWTConfig
	parser *jwt.Parser
}

func NewJWTUtil(cfg *config.JWTConfig) *JWTUtil {
	return &JWTUtil{
		config: cfg,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

// GenerateToken signs a token for a user, optionally scoped to a company
func (j *JWTUtil) GenerateToken(email string, userID uint, companyID *uint, role string, permissions []string) (string, error) {
	if j.config == nil || j.config.SigningKey == "" {
		return "", ErrNotConfigured
	}

	now := time.Now()
	claims := UserClaims{
		Email:       email,
		UserID:      userID,
		CompanyID:   companyID,
		Role:        role,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(j.config.ExpirationHours) * time.Hour)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(j.config.SigningKey))
}

// ValidateToken verifies the signature, expiry and issuer of a token
func (j *JWTUtil) ValidateToken(tokenString string) (*UserClaims, error) {
	if j.config == nil || j.config.SigningKey == "" {
		return nil, ErrNotConfigured
	}

	claims := &UserClaims{}
	token, err := j.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(j.config.SigningKey), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || !claims.VerifyIssuer(issuer, true) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
