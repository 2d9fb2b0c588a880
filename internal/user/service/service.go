package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/clarity/internal/authcontext"
	"github.com/smallbiznis/clarity/internal/clock"
	"github.com/smallbiznis/clarity/internal/user/domain"
	"github.com/smallbiznis/clarity/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxNameLength = 100

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	validate *validator.Validate
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("user.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		validate: validator.New(),
	}
}

func (s *Service) EnsureFromIdentity(ctx context.Context, identity domain.Identity) (domain.User, error) {
	clerkID := strings.TrimSpace(identity.ClerkID)
	if clerkID == "" {
		return domain.User{}, domain.ErrInvalidClerkID
	}

	existing, err := s.repo.FindByClerkID(ctx, s.db, clerkID)
	if err != nil {
		return domain.User{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	user, err := s.newUser(clerkID, identity.Email, identity.Name)
	if err != nil {
		return domain.User{}, err
	}

	created, err := s.repo.InsertIfAbsent(ctx, s.db, &user)
	if err != nil {
		return domain.User{}, err
	}
	if !created {
		// A concurrent first login won the insert.
		existing, err := s.repo.FindByClerkID(ctx, s.db, clerkID)
		if err != nil {
			return domain.User{}, err
		}
		if existing == nil {
			return domain.User{}, domain.ErrNotFound
		}
		return *existing, nil
	}

	s.log.Info("user registered", zap.String("user_id", user.ID.String()))
	return user, nil
}

func (s *Service) CreateTestUser(ctx context.Context, req domain.CreateTestUserRequest) (domain.User, error) {
	clerkID, ok := authcontext.SubjectFromContext(ctx)
	if !ok {
		return domain.User{}, domain.ErrUnauthenticated
	}

	user, err := s.newUser(clerkID, req.Email, domain.TestUserName)
	if err != nil {
		return domain.User{}, err
	}

	if err := s.repo.Insert(ctx, s.db, &user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.User{}, domain.ErrUserExists
		}
		return domain.User{}, err
	}

	return user, nil
}

func (s *Service) Current(ctx context.Context) (domain.User, error) {
	clerkID, ok := authcontext.SubjectFromContext(ctx)
	if !ok {
		return domain.User{}, domain.ErrUnauthenticated
	}
	return s.GetByClerkID(ctx, clerkID)
}

func (s *Service) GetByClerkID(ctx context.Context, clerkID string) (domain.User, error) {
	clerkID = strings.TrimSpace(clerkID)
	if clerkID == "" {
		return domain.User{}, domain.ErrInvalidClerkID
	}

	user, err := s.repo.FindByClerkID(ctx, s.db, clerkID)
	if err != nil {
		return domain.User{}, err
	}
	if user == nil {
		return domain.User{}, domain.ErrNotFound
	}
	return *user, nil
}

func (s *Service) MarkOnboarded(ctx context.Context) (domain.User, error) {
	user, err := s.Current(ctx)
	if err != nil {
		return domain.User{}, err
	}
	if user.IsOnboarded {
		return user, nil
	}

	if err := s.repo.MarkOnboarded(ctx, s.db, user.ID); err != nil {
		return domain.User{}, err
	}
	user.IsOnboarded = true
	return user, nil
}

func (s *Service) DeleteCurrent(ctx context.Context) error {
	user, err := s.Current(ctx)
	if err != nil {
		return err
	}

	affected, err := s.repo.Delete(ctx, s.db, user.ID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}

	s.log.Info("user deleted", zap.String("user_id", user.ID.String()))
	return nil
}

func (s *Service) newUser(clerkID, email, name string) (domain.User, error) {
	email = strings.TrimSpace(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return domain.User{}, domain.ErrInvalidEmail
	}

	var namePtr *string
	if name = strings.TrimSpace(name); name != "" {
		if len([]rune(name)) > maxNameLength {
			return domain.User{}, domain.ErrInvalidName
		}
		namePtr = &name
	}

	return domain.User{
		ID:           s.genID.Generate(),
		ClerkID:      clerkID,
		Email:        email,
		Name:         namePtr,
		RegisteredAt: s.clock.Now().UTC(),
	}, nil
}
