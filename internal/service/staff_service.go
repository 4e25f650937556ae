package service

import (
	"context"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/helpdesk-labs/support-rewards/internal/auth"
	"github.com/helpdesk-labs/support-rewards/internal/domain"
	"github.com/helpdesk-labs/support-rewards/internal/repository"
	apperrors "github.com/helpdesk-labs/support-rewards/pkg/util"
)

// StaffService manages accounts and staff recognition.
type StaffService struct {
	users  repository.UserRepository
	staff  repository.StaffRepository
	logger *zap.Logger
}

// StaffListFilters define listing parameters.
type StaffListFilters struct {
	Active *bool
	Limit  int
	Offset int
}

// RegisterInput describes a new account.
type RegisterInput struct {
	Name  string
	Email string
	Role  domain.Role
}

// NewStaffService constructs the service.
func NewStaffService(users repository.UserRepository, staff repository.StaffRepository, logger *zap.Logger) *StaffService {
	return &StaffService{users: users, staff: staff, logger: logger}
}

// RegisterUser creates an account. Customers may be registered by anyone;
// staff and admin accounts require an admin.
func (s *StaffService) RegisterUser(ctx context.Context, actor auth.Principal, input RegisterInput) (*domain.User, error) {
	role := input.Role
	if role == "" {
		role = domain.RoleCustomer
	}
	switch role {
	case domain.RoleCustomer:
	case domain.RoleStaff, domain.RoleAdmin:
		if err := auth.RequireAdmin(actor); err != nil {
			return nil, err
		}
	default:
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": role})
	}

	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", nil)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.NewValidationError("invalid email", map[string]any{"email": input.Email})
	}

	user := &domain.User{
		Name:   name,
		Email:  email,
		Role:   role,
		Active: true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(role)))
	return user, nil
}

// CreateStaffMember adds a staff account.
func (s *StaffService) CreateStaffMember(ctx context.Context, actor auth.Principal, name, email string) (*domain.StaffProfile, error) {
	user, err := s.RegisterUser(ctx, actor, RegisterInput{Name: name, Email: email, Role: domain.RoleStaff})
	if err != nil {
		return nil, err
	}
	return s.GetProfile(ctx, actor, user.ID)
}

// GetProfile fetches a staff profile. Staff may read any profile.
func (s *StaffService) GetProfile(ctx context.Context, actor auth.Principal, staffID string) (*domain.StaffProfile, error) {
	if err := auth.RequireStaff(actor); err != nil {
		return nil, err
	}
	profile, err := s.staff.GetProfile(ctx, staffID)
	if err != nil {
		return nil, notFoundOr(err, apperrors.ErrStaffNotFound, "staff member", staffID)
	}
	return profile, nil
}

// ListProfiles lists staff members.
func (s *StaffService) ListProfiles(ctx context.Context, actor auth.Principal, filters StaffListFilters) ([]domain.StaffProfile, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	profiles, err := s.staff.ListProfiles(ctx, repository.StaffFilter{
		Active: filters.Active,
		Limit:  filters.Limit,
		Offset: filters.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return profiles, nil
}

// SetRecognition sets or clears a staff member's special recognition.
func (s *StaffService) SetRecognition(ctx context.Context, actor auth.Principal, staffID string, recognition *string) error {
	if err := auth.RequireAdmin(actor); err != nil {
		return err
	}
	if recognition != nil {
		trimmed := strings.TrimSpace(*recognition)
		if trimmed == "" {
			recognition = nil
		} else {
			recognition = &trimmed
		}
	}
	if err := s.staff.SetRecognition(ctx, staffID, recognition); err != nil {
		return notFoundOr(err, apperrors.ErrStaffNotFound, "staff member", staffID)
	}
	return nil
}
