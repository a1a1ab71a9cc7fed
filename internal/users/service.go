package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrInvalidUserID indicates the caller supplied a blank user identifier.
	ErrInvalidUserID = errors.New("users: user id required")
	// ErrUnknownRole indicates the role name is not one of the supported roles.
	ErrUnknownRole = errors.New("users: unknown role")
)

// ServiceConfig describes the dependencies required for role lookups.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service answers role questions backed by the user_roles table.
type Service struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
}

// NewService constructs the role service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:     cfg.Database,
		now:    clock,
		logger: logger,
	}, nil
}

// HasRole reports whether the user holds the role. Every call reads user_roles so that grants
// and revokes made by other processes take effect on the next request.
func (s *Service) HasRole(ctx context.Context, userID string, role Role) (bool, error) {
	userID = normalize(userID)
	if userID == "" {
		return false, ErrInvalidUserID
	}
	var count int64
	err := s.db.WithContext(ctx).
		Model(&RoleAssignment{}).
		Where("user_id = ? AND role = ?", userID, role).
		Count(&count).
		Error
	if err != nil {
		s.logger.Error("role lookup failed", zap.String("user_id", userID), zap.String("role", string(role)), zap.Error(err))
		return false, err
	}
	return count > 0, nil
}

// IsAdmin is shorthand for HasRole(userID, RoleAdmin).
func (s *Service) IsAdmin(ctx context.Context, userID string) (bool, error) {
	return s.HasRole(ctx, userID, RoleAdmin)
}

// GrantRole gives the user the role. Granting a role the user already holds is a no-op.
func (s *Service) GrantRole(ctx context.Context, userID string, role Role) error {
	userID = normalize(userID)
	if userID == "" {
		return ErrInvalidUserID
	}
	if _, err := ParseRole(string(role)); err != nil {
		return err
	}
	identifier, err := uuid.NewV7()
	if err != nil {
		return err
	}
	assignment := RoleAssignment{
		ID:        identifier.String(),
		UserID:    userID,
		Role:      role,
		CreatedAt: s.now().UTC(),
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&assignment).
		Error
	if err != nil {
		s.logger.Error("role grant failed", zap.String("user_id", userID), zap.String("role", string(role)), zap.Error(err))
		return err
	}
	s.logger.Info("role granted", zap.String("user_id", userID), zap.String("role", string(role)))
	return nil
}

// RevokeRole removes the role from the user and reports whether anything was removed.
func (s *Service) RevokeRole(ctx context.Context, userID string, role Role) (bool, error) {
	userID = normalize(userID)
	if userID == "" {
		return false, ErrInvalidUserID
	}
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND role = ?", userID, role).
		Delete(&RoleAssignment{})
	if result.Error != nil {
		s.logger.Error("role revoke failed", zap.String("user_id", userID), zap.String("role", string(role)), zap.Error(result.Error))
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
