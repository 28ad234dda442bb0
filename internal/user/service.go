package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harry-2401/reddit/internal/loader"
	"github.com/harry-2401/reddit/internal/shared/apperr"
	"github.com/harry-2401/reddit/internal/shared/validate"

	"golang.org/x/crypto/bcrypt"
)

var errWrongCredentials = fmt.Errorf("%w: wrong credentials", apperr.ErrUnauthorized)

type Service interface {
	Register(ctx context.Context, in RegisterReq) (*User, error)
	Login(ctx context.Context, in LoginReq) (*User, error)
	Get(ctx context.Context, id uint64) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	SetPassword(ctx context.Context, id uint64, password string) error
	// AuthorLoader returns a per-request batching cache of user summaries.
	AuthorLoader() *loader.Loader[uint64, *Summary]
}

type service struct {
	repo Repository
	cost int
}

// NewService hashes passwords with the given bcrypt cost; 0 means bcrypt.DefaultCost.
func NewService(r Repository, cost int) Service {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &service{repo: r, cost: cost}
}

func (s *service) Register(ctx context.Context, in RegisterReq) (*User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	if err := s.checkTaken(ctx, in); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &User{Username: in.Username, Email: in.Email, PassHash: string(hash)}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrTaken) {
			// lost a race with a concurrent registration
			if ferr := s.checkTaken(ctx, in); ferr != nil {
				return nil, ferr
			}
		}
		return nil, err
	}
	return u, nil
}

// checkTaken reports which of username and email already belong to someone.
func (s *service) checkTaken(ctx context.Context, in RegisterReq) error {
	var taken []apperr.FieldError
	if _, err := s.repo.GetByUsername(ctx, in.Username); err == nil {
		taken = append(taken, apperr.FieldError{Field: "username", Message: "username already taken"})
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	if _, err := s.repo.GetByEmail(ctx, in.Email); err == nil {
		taken = append(taken, apperr.FieldError{Field: "email", Message: "email already taken"})
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	return apperr.Fields(taken...)
}

func (s *service) Login(ctx context.Context, in LoginReq) (*User, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	ident := strings.TrimSpace(in.UsernameOrEmail)

	var (
		u   *User
		err error
	)
	if strings.Contains(ident, "@") {
		u, err = s.repo.GetByEmail(ctx, strings.ToLower(ident))
	} else {
		u, err = s.repo.GetByUsername(ctx, ident)
	}
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return nil, errWrongCredentials
	case err != nil:
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PassHash), []byte(in.Password)) != nil {
		return nil, errWrongCredentials
	}
	return u, nil
}

func (s *service) Get(ctx context.Context, id uint64) (*User, error) {
	if id == 0 {
		return nil, apperr.ErrUnauthorized
	}
	return s.repo.GetByID(ctx, id)
}

func (s *service) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

func (s *service) SetPassword(ctx context.Context, id uint64, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, id, string(hash))
}

// AuthorLoader resolves authors of a page in one query. Deleted authors come
// back as nil.
func (s *service) AuthorLoader() *loader.Loader[uint64, *Summary] {
	return loader.New(func(ctx context.Context, ids []uint64) ([]*Summary, error) {
		users, err := s.repo.ListByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		byID := make(map[uint64]*Summary, len(users))
		for _, u := range users {
			sum := u.Summary()
			byID[u.ID] = &sum
		}
		out := make([]*Summary, len(ids))
		for i, id := range ids {
			out[i] = byID[id]
		}
		return out, nil
	})
}
