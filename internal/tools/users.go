package tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/rayhanfay/sistem-rangkuman-data/internal/storage"
	"github.com/rayhanfay/sistem-rangkuman-data/pkg/mcperr"
)

// userView is the client-facing projection of an account; the password
// hash never leaves the store boundary.
type userView struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func viewOf(u storage.User) userView {
	return userView{ID: u.ID, Email: u.Email, Role: u.Role}
}

func (s *Service) getAllUsers(ctx context.Context) (any, error) {
	users, err := s.Users.GetAll()
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Storage, err, "Gagal membaca daftar pengguna.")
	}
	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, viewOf(u))
	}
	return views, nil
}

type createUserArgs struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"required,oneof=admin user"`
}

func (s *Service) createUser(ctx context.Context, args json.RawMessage) (any, error) {
	var in createUserArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if in.Role != "user" {
		return nil, mcperr.New(mcperr.Execution, "Admin hanya dapat membuat pengguna dengan peran 'user'.")
	}
	if _, err := s.Users.FindByEmail(in.Email); err == nil {
		return nil, mcperr.New(mcperr.Validation, "Email sudah terdaftar.")
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, mcperr.Wrap(mcperr.Storage, err, "Gagal memeriksa email pengguna.")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Internal, err, "Gagal memproses kata sandi.")
	}

	created, err := s.Users.Create(storage.User{
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         in.Role,
	})
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Storage, err, "Gagal menyimpan pengguna baru.")
	}
	log.Ctx(ctx).Info().Str("email", created.Email).Msg("user created")
	return viewOf(created), nil
}

type deleteUserArgs struct {
	UserID int64 `json:"user_id" validate:"required"`
}

func (s *Service) deleteUser(ctx context.Context, args json.RawMessage) (any, error) {
	var in deleteUserArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}

	target, err := s.Users.FindByID(in.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, mcperr.New(mcperr.NotFound, "Pengguna tidak ditemukan.")
	}
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Storage, err, "Gagal membaca data pengguna.")
	}
	if target.Role == "admin" {
		return nil, mcperr.New(mcperr.Execution, "Tidak diizinkan menghapus akun admin.")
	}

	if err := s.Users.Delete(in.UserID); err != nil {
		return nil, mcperr.Wrap(mcperr.Storage, err, "Gagal menghapus pengguna.")
	}
	log.Ctx(ctx).Info().Str("email", target.Email).Msg("user deleted")
	return map[string]string{"message": "Pengguna berhasil dihapus."}, nil
}

type updateUserEmailArgs struct {
	UserID   int64  `json:"user_id" validate:"required"`
	NewEmail string `json:"new_email" validate:"required,email"`
}

func (s *Service) updateUserEmail(ctx context.Context, args json.RawMessage) (any, error) {
	var in updateUserEmailArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}

	if existing, err := s.Users.FindByEmail(in.NewEmail); err == nil && existing.ID != in.UserID {
		return nil, mcperr.New(mcperr.Validation, "Email '%s' sudah terdaftar.", in.NewEmail)
	} else if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, mcperr.Wrap(mcperr.Storage, err, "Gagal memeriksa email pengguna.")
	}

	target, err := s.Users.FindByID(in.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, mcperr.New(mcperr.NotFound, "Pengguna tidak ditemukan.")
	}
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Storage, err, "Gagal membaca data pengguna.")
	}

	if err := s.Users.UpdateEmail(in.UserID, in.NewEmail); err != nil {
		return nil, mcperr.Wrap(mcperr.Storage, err, "Gagal memperbarui email pengguna.")
	}
	target.Email = in.NewEmail
	return viewOf(target), nil
}

type updateUserRoleArgs struct {
	UserID  int64  `json:"user_id" validate:"required"`
	NewRole string `json:"new_role" validate:"required,oneof=admin user"`
}

func (s *Service) updateUserRole(ctx context.Context, args json.RawMessage) (any, error) {
	var in updateUserRoleArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if in.NewRole == "admin" {
		return nil, mcperr.New(mcperr.Execution, "Tidak diizinkan untuk mempromosikan pengguna menjadi admin melalui antarmuka ini.")
	}

	target, err := s.Users.FindByID(in.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, mcperr.New(mcperr.NotFound, "Pengguna tidak ditemukan.")
	}
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Storage, err, "Gagal membaca data pengguna.")
	}
	if target.Role == "admin" {
		return nil, mcperr.New(mcperr.Execution, "Peran seorang admin tidak dapat diubah.")
	}

	if err := s.Users.UpdateRole(in.UserID, in.NewRole); err != nil {
		return nil, mcperr.Wrap(mcperr.Storage, err, "Gagal memperbarui peran pengguna.")
	}
	target.Role = in.NewRole
	return viewOf(target), nil
}
