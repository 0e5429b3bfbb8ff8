package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/trading-storefront/internal/logging"
	"github.com/iliyamo/trading-storefront/internal/model"
	"github.com/iliyamo/trading-storefront/internal/repository"
)

// AdminService is the back-office view of user accounts.
type AdminService struct {
	users *repository.UserRepo
	log   *zap.Logger
}

func NewAdminService(users *repository.UserRepo, log *zap.Logger) *AdminService {
	return &AdminService{users: users, log: log}
}

func (s *AdminService) ListUsers(ctx context.Context) ([]model.PublicUser, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, external(s.log, err, "Failed to fetch users")
	}
	out := make([]model.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out, nil
}

// UserPatch is an admin change to role and/or active flag.
type UserPatch struct {
	Role     *string `json:"role"`
	IsActive *bool   `json:"isActive"`
}

// UpdateUser applies a patch.  Admins cannot demote or deactivate
// themselves.
func (s *AdminService) UpdateUser(ctx context.Context, actorID, id string, p UserPatch) (model.PublicUser, error) {
	if p.Role == nil && p.IsActive == nil {
		return model.PublicUser{}, validationError("Nothing to update")
	}
	if p.Role != nil {
		r := strings.ToLower(strings.TrimSpace(*p.Role))
		if r != model.RoleUser && r != model.RoleAdmin {
			return model.PublicUser{}, validationError("Role must be user or admin")
		}
		p.Role = &r
		if actorID == id && r != model.RoleAdmin {
			return model.PublicUser{}, validationError("You cannot remove your own admin role")
		}
	}
	if p.IsActive != nil && !*p.IsActive && actorID == id {
		return model.PublicUser{}, validationError("You cannot deactivate your own account")
	}
	if _, err := s.get(ctx, id); err != nil {
		return model.PublicUser{}, err
	}
	u, err := s.users.Update(ctx, id, repository.UserUpdate{Role: p.Role, IsActive: p.IsActive})
	if err != nil {
		return model.PublicUser{}, external(s.log, err, "Failed to update user", logging.UserID(id))
	}
	s.log.Info("user updated by admin", logging.UserID(id), zap.String("actor_id", actorID))
	return u.Public(), nil
}

func (s *AdminService) DeleteUser(ctx context.Context, actorID, id string) error {
	if actorID == id {
		return validationError("You cannot delete your own account here")
	}
	if _, err := s.get(ctx, id); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return external(s.log, err, "Failed to delete user", logging.UserID(id))
	}
	s.log.Info("user deleted by admin", logging.UserID(id), zap.String("actor_id", actorID))
	return nil
}

func (s *AdminService) get(ctx context.Context, id string) (model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, notFound(MsgUserNotFound)
	}
	if err != nil {
		return model.User{}, external(s.log, err, "Failed to fetch user", logging.UserID(id))
	}
	return u, nil
}
