package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/taxtooter/support-api/internal/core/domain"
	"github.com/taxtooter/support-api/internal/core/ports"
)

// UserService manages accounts after registration.
type UserService struct {
	repo ports.UserRepository
	log  zerolog.Logger
}

func NewUserService(repo ports.UserRepository, log zerolog.Logger) *UserService {
	return &UserService{repo: repo, log: log}
}

func (s *UserService) List(ctx context.Context, role string) ([]*domain.User, error) {
	if role != "" && !domain.ValidRole(role) {
		return nil, domain.ErrInvalidRole
	}
	return s.repo.List(ctx, role)
}

func (s *UserService) Consultants(ctx context.Context) ([]*domain.User, error) {
	return s.repo.List(ctx, domain.RoleConsultant)
}

func (s *UserService) Profile(ctx context.Context, actor domain.Actor) (*domain.User, error) {
	return s.repo.FindByID(ctx, actor.ID)
}

// UpdateProfile applies self-service changes. The role is never touched here.
func (s *UserService) UpdateProfile(ctx context.Context, actor domain.Actor, in ports.UpdateProfileInput) (*domain.User, error) {
	user, err := s.repo.FindByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	if err := applyNameEmail(user, in.Name, in.Email); err != nil {
		return nil, err
	}
	if in.Password != nil {
		if len(*in.Password) < minPasswordLength {
			return nil, domain.ErrInvalidInput
		}
		hash, err := hashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	user.UpdatedAt = time.Now().UTC()
	return s.repo.Update(ctx, user)
}

// AdminUpdate lets an admin edit another account's name, email and role.
func (s *UserService) AdminUpdate(ctx context.Context, actor domain.Actor, id string, in ports.AdminUpdateInput) (*domain.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := applyNameEmail(user, in.Name, in.Email); err != nil {
		return nil, err
	}
	if in.Role != nil && *in.Role != user.Role {
		if !domain.ValidRole(*in.Role) {
			return nil, domain.ErrInvalidRole
		}
		if user.ID == actor.ID {
			return nil, domain.ErrSelfModification
		}
		user.Role = *in.Role
	}

	user.UpdatedAt = time.Now().UTC()
	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", updated.ID).Str("by", actor.ID).Msg("user updated by admin")
	return updated, nil
}

func (s *UserService) Delete(ctx context.Context, actor domain.Actor, id string) error {
	if id == actor.ID {
		return domain.ErrSelfModification
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.log.Info().Str("user_id", id).Str("by", actor.ID).Msg("user deleted")
	return nil
}

func applyNameEmail(user *domain.User, name, email *string) error {
	if name != nil {
		n := strings.TrimSpace(*name)
		if n == "" {
			return domain.ErrInvalidInput
		}
		user.Name = n
	}
	if email != nil {
		e := normalizeEmail(*email)
		if e == "" {
			return domain.ErrInvalidInput
		}
		user.Email = e
	}
	return nil
}
