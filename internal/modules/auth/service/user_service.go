package service

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"iotdash-server/internal/modules/auth/repository"
	"iotdash-server/internal/modules/auth/types"
)

// UserService verifies credentials and manages accounts. It produces the
// Principal consumed by the token service; password mechanics stay inside.
type UserService struct {
	repo repository.UserRepository
}

func NewUserService(repo repository.UserRepository) *UserService {
	return &UserService{repo: repo}
}

// Authenticate verifies a login (name or email) and password. ok=false means
// unknown account, inactive account or wrong password; callers answer 401
// without distinguishing.
func (s *UserService) Authenticate(login, password string) (types.Principal, bool, error) {
	u, found, err := s.repo.GetByLogin(strings.TrimSpace(login))
	if err != nil {
		return types.Principal{}, false, err
	}
	if !found || !u.Active {
		return types.Principal{}, false, nil
	}
	if !VerifyPassword(u.PasswordHash, password) {
		return types.Principal{}, false, nil
	}
	return types.Principal{ID: u.ID, Name: u.Name, Role: u.Role}, true, nil
}

// CreateOrUpdate upserts an account keyed by email. A non-empty password also
// (re)sets the account password.
func (s *UserService) CreateOrUpdate(name, email, password string, role types.Role) (types.UserInfo, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" {
		return types.UserInfo{}, fmt.Errorf("name and email are required")
	}
	if !role.Valid() {
		return types.UserInfo{}, fmt.Errorf("invalid role %q", role)
	}

	hash := ""
	if password != "" {
		var err error
		hash, err = HashPassword(password)
		if err != nil {
			return types.UserInfo{}, err
		}
	}
	u, err := s.repo.Upsert(types.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	})
	if err != nil {
		return types.UserInfo{}, err
	}
	// The upsert keeps an existing hash; apply an explicit password change.
	if password != "" && u.PasswordHash != hash {
		if err := s.repo.SetPassword(u.ID, hash); err != nil {
			return types.UserInfo{}, err
		}
	}
	return u.Info(), nil
}

// ResetPassword replaces the account password with a random one. Delivery is
// out of scope here; the new password is logged for the operator to forward.
func (s *UserService) ResetPassword(email string) error {
	u, found, err := s.repo.GetByLogin(strings.TrimSpace(email))
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("user %q not found", email)
	}

	raw := make([]byte, 9)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("generate password: %w", err)
	}
	newPassword := base64.RawURLEncoding.EncodeToString(raw)

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.SetPassword(u.ID, hash); err != nil {
		return err
	}
	slog.Info("password reset", "email", u.Email, "new_password", newPassword)
	return nil
}

// List returns every account without password material.
func (s *UserService) List() ([]types.UserInfo, error) {
	users, err := s.repo.List()
	if err != nil {
		return nil, err
	}
	out := make([]types.UserInfo, 0, len(users))
	for _, u := range users {
		out = append(out, u.Info())
	}
	return out, nil
}

// EnsureAdmin creates the bootstrap admin account on first start. An existing
// account with the same email keeps its password.
func (s *UserService) EnsureAdmin(name, email, password string) error {
	_, found, err := s.repo.GetByLogin(email)
	if err != nil {
		return err
	}
	if found {
		return nil
	}
	_, err = s.CreateOrUpdate(name, email, password, types.RoleAdmin)
	return err
}
