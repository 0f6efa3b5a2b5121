package inmemdb

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/trezcool/academia/core/user"
)

type userRepository struct {
	db *DB
}

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.t.users))
	for _, u := range repo.db.t.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedIDs ...string) error {
	defer repo.db.lock(ctx)()

	excluded := make(map[string]bool, len(excludedIDs))
	for _, id := range excludedIDs {
		excluded[id] = true
	}
	for _, usr := range repo.db.t.users {
		if excluded[usr.ID] {
			continue
		}
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) Create(ctx context.Context, usr user.User) error {
	defer repo.db.lock(ctx)()
	repo.db.t.users[usr.ID] = usr
	return nil
}

func (repo *userRepository) QueryAll(ctx context.Context) ([]user.User, error) {
	defer repo.db.lock(ctx)()
	return repo.query(), nil
}

func (repo *userRepository) GetByID(ctx context.Context, id string) (user.User, error) {
	defer repo.db.lock(ctx)()
	if usr, ok := repo.db.t.users[id]; ok {
		return usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetByEmail(ctx context.Context, email string) (user.User, error) {
	defer repo.db.lock(ctx)()
	for _, usr := range repo.db.t.users {
		if usr.Email == email {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	defer repo.db.lock(ctx)()
	for _, usr := range repo.db.t.users {
		if (usr.Username != "" && usr.Username == username) || usr.Email == username {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) Update(ctx context.Context, usr user.User) error {
	defer repo.db.lock(ctx)()
	if _, ok := repo.db.t.users[usr.ID]; !ok {
		return user.ErrNotFound
	}
	repo.db.t.users[usr.ID] = usr
	return nil
}

type otpRepository struct {
	db *DB
}

func NewOTPRepository(db *DB) user.OTPRepository {
	return &otpRepository{db: db}
}

func (repo *otpRepository) Insert(ctx context.Context, otp user.OTP) error {
	defer repo.db.lock(ctx)()
	repo.db.t.otps = append(repo.db.t.otps, otp)
	return nil
}

func (repo *otpRepository) InvalidateAll(ctx context.Context, email string) error {
	defer repo.db.lock(ctx)()
	otps := make([]user.OTP, 0, len(repo.db.t.otps))
	for _, otp := range repo.db.t.otps {
		if otp.Email == email {
			otp.Used = true
		}
		otps = append(otps, otp)
	}
	repo.db.t.otps = otps
	return nil
}

func (repo *otpRepository) Consume(ctx context.Context, email string, codeHash []byte, now time.Time) error {
	defer repo.db.lock(ctx)()
	for i, otp := range repo.db.t.otps {
		if otp.Email == email && bytes.Equal(otp.CodeHash, codeHash) && otp.Valid(now) {
			otps := append([]user.OTP(nil), repo.db.t.otps...)
			otps[i].Used = true
			repo.db.t.otps = otps
			return nil
		}
	}
	return user.ErrInvalidOTP
}
