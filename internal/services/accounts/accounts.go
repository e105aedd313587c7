package accounts

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/apperror"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/logger"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/models"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/store"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/utils"
)

// Provisioner creates a ledger account and returns its address and sealed key.
type Provisioner interface {
	Provision(ctx context.Context) (address, sealedKey string, err error)
}

type ProfileInput struct {
	Skills     string          `json:"skills"`
	Experience int             `json:"experience"`
	HourlyRate decimal.Decimal `json:"hourly_rate"`
	Bio        string          `json:"bio"`
}

type RegisterInput struct {
	Username string        `json:"username"`
	Email    string        `json:"email"`
	Password string        `json:"password"`
	Role     string        `json:"role"`
	Profile  *ProfileInput `json:"profile,omitempty"`
}

// ValidationError carries per-field messages for a rejected registration.
type ValidationError struct {
	Err    *apperror.Error
	Fields utils.FieldErrors
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(msg string, fields utils.FieldErrors) error {
	return &ValidationError{Err: apperror.Validation(msg), Fields: fields}
}

type Service struct {
	Users   store.UserStore
	Wallets Provisioner
	Log     logger.Logger
}

func NewService(users store.UserStore, wallets Provisioner, log logger.Logger) *Service {
	if log == nil {
		log = logger.NewNoOp()
	}
	return &Service{Users: users, Wallets: wallets, Log: log}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	role := models.Role(strings.ToLower(strings.TrimSpace(in.Role)))

	errs := utils.FieldErrors{}
	if username == "" {
		errs.Add("username", "Username is required")
	} else if !utils.ValidUsername(username) {
		errs.Add("username", "Username may only contain letters, numbers and underscores")
	}
	if email == "" {
		errs.Add("email", "Email is required")
	} else if !utils.ValidEmail(email) {
		errs.Add("email", "Invalid email format")
	}
	for _, p := range utils.PasswordProblems(in.Password) {
		errs.Add("password", p)
	}
	if !role.Valid() {
		errs.Add("role", "Role must be employer or freelancer")
	}
	if role == models.RoleFreelancer {
		if in.Profile == nil {
			errs.Add("profile", "Freelancers must provide a profile")
		} else {
			validateProfile(errs, *in.Profile)
		}
	}
	if len(errs) > 0 {
		return nil, invalid("invalid registration", errs)
	}

	hashed, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, apperror.Internal("hash password", err)
	}

	u, err := s.create(ctx, username, email, hashed, role)
	if err != nil {
		return nil, err
	}
	if role == models.RoleFreelancer {
		u.FreelancerProfile = &models.FreelancerProfile{
			Skills:     strings.TrimSpace(in.Profile.Skills),
			Experience: in.Profile.Experience,
			HourlyRate: in.Profile.HourlyRate,
			Bio:        strings.TrimSpace(in.Profile.Bio),
		}
	}
	if err := s.persist(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate checks credentials. Unknown email and wrong password are indistinguishable.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperror.Validation("email and password are required")
	}
	u, err := s.Users.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperror.Unauthorized("invalid email or password")
	}
	if err != nil {
		return nil, apperror.Store("get user", err)
	}
	if !utils.CheckPassword(u.Password, password) {
		return nil, apperror.Unauthorized("invalid email or password")
	}
	return u, nil
}

// SignInWithGoogle returns the user with this verified email, registering an employer if none exists.
func (s *Service) SignInWithGoogle(ctx context.Context, email, name string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !utils.ValidEmail(email) {
		return nil, apperror.Validation("google account has no usable email")
	}
	u, err := s.Users.GetUserByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, apperror.Store("get user", err)
	}

	// local sign-in stays disabled until a password is set
	hashed, err := utils.HashPassword(randomToken(24))
	if err != nil {
		return nil, apperror.Internal("hash password", err)
	}
	u, err = s.create(ctx, googleUsername(name, email), email, hashed, models.RoleEmployer)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	u, err := s.Users.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperror.NotFound("user")
	}
	if err != nil {
		return nil, apperror.Store("get user", err)
	}
	return u, nil
}

// UpdateProfile rewrites the caller's freelancer profile.
func (s *Service) UpdateProfile(ctx context.Context, callerID, userID uuid.UUID, in ProfileInput) (*models.FreelancerProfile, error) {
	if callerID != userID {
		return nil, apperror.Forbidden("profiles can only be edited by their owner")
	}
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Role != models.RoleFreelancer {
		return nil, apperror.Forbidden("only freelancers have a profile")
	}
	errs := utils.FieldErrors{}
	validateProfile(errs, in)
	if len(errs) > 0 {
		return nil, invalid("invalid profile", errs)
	}

	p := u.FreelancerProfile
	if p == nil {
		p = &models.FreelancerProfile{UserID: u.ID}
	}
	p.Skills = strings.TrimSpace(in.Skills)
	p.Experience = in.Experience
	p.HourlyRate = in.HourlyRate
	p.Bio = strings.TrimSpace(in.Bio)
	switch err := s.Users.UpdateFreelancerProfile(ctx, p); {
	case errors.Is(err, store.ErrNotFound):
		return nil, apperror.NotFound("freelancer profile")
	case err != nil:
		return nil, apperror.Store("update profile", err)
	}
	s.Log.Info("freelancer profile updated", map[string]interface{}{"userId": u.ID.String()})
	return p, nil
}

func (s *Service) create(ctx context.Context, username, email, hashed string, role models.Role) (*models.User, error) {
	addr, sealed, err := s.Wallets.Provision(ctx)
	if err != nil {
		return nil, err
	}
	return &models.User{
		Username:      username,
		Email:         email,
		Password:      hashed,
		Role:          role,
		WalletAddress: addr,
		WalletKey:     sealed,
	}, nil
}

func (s *Service) persist(ctx context.Context, u *models.User) error {
	err := s.Users.CreateUser(ctx, u)
	if errors.Is(err, store.ErrDuplicate) {
		return apperror.Conflict("username or email already registered")
	}
	if err != nil {
		return apperror.Store("create user", err)
	}
	s.Log.Info("user registered", map[string]interface{}{
		"userId": u.ID.String(), "role": string(u.Role), "walletAddress": u.WalletAddress,
	})
	return nil
}

func validateProfile(errs utils.FieldErrors, p ProfileInput) {
	if strings.TrimSpace(p.Skills) == "" {
		errs.Add("skills", "Skills are required")
	}
	if p.Experience < 0 {
		errs.Add("experience", "Experience cannot be negative")
	}
	if p.HourlyRate.IsNegative() {
		errs.Add("hourly_rate", "Hourly rate cannot be negative")
	}
}

// googleUsername derives a valid, probably unique username from a Google profile.
func googleUsername(name, email string) string {
	base := name
	if base == "" {
		base, _, _ = strings.Cut(email, "@")
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.' || r == '-':
			b.WriteRune('_')
		}
	}
	s := b.String()
	if len(s) > 40 {
		s = s[:40]
	}
	if s == "" {
		s = "user"
	}
	return s + "_" + uuid.NewString()[:8]
}

func randomToken(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
