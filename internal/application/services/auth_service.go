package services

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/infrastructure/config"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/ports"
)

// Claims represents the JWT claims. The subject carries the acting user id.
type Claims struct {
	EmployeeID int `json:"employee_id,omitempty"`
	jwt.RegisteredClaims
}

// AuthService issues and verifies bearer tokens for employees
type AuthService struct {
	employees ports.EmployeeResolver
	jwtConfig config.JWTConfig
	clock     ports.Clock
	logger    *logger.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(employees ports.EmployeeResolver, jwtConfig config.JWTConfig, clock ports.Clock, logger *logger.Logger) *AuthService {
	return &AuthService{
		employees: employees,
		jwtConfig: jwtConfig,
		clock:     clock,
		logger:    logger,
	}
}

// IssueToken signs an access token for the user's employee
func (s *AuthService) IssueToken(ctx context.Context, userID uuid.UUID) (*ports.TokenResponse, error) {
	employee, err := s.employees.EmployeeByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve employee: %w", err)
	}
	if employee == nil {
		return nil, entities.ErrEmployeeNotFound
	}

	now := s.clock.Now()
	claims := &Claims{
		EmployeeID: employee.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtConfig.ExpiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.jwtConfig.Issuer,
			Subject:   userID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtConfig.Secret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	s.logger.Infow("Access token issued", "user_id", userID, "employee_id", employee.ID)

	return &ports.TokenResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.jwtConfig.ExpiresIn.Seconds()),
		Employee:    employee,
	}, nil
}

// ValidateToken verifies a token and returns the acting user id
func (s *AuthService) ValidateToken(tokenString string) (uuid.UUID, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtConfig.Secret), nil
	},
		jwt.WithIssuer(s.jwtConfig.Issuer),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return uuid.Nil, fmt.Errorf("invalid token claims")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid token subject: %w", err)
	}

	return userID, nil
}
