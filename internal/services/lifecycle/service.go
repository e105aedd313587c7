package lifecycle

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/apperror"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/lock"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/logger"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/models"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/services/ledger"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/services/matching"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/store"
)

// Users resolves accounts taking part in a transition.
type Users interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Signer opens a user's ledger signing key.
type Signer interface {
	SigningKey(ctx context.Context, userID uuid.UUID) (string, error)
}

// Notifier is told about every committed status change. Delivery is best effort.
type Notifier interface {
	ProjectChanged(ctx context.Context, p *models.Project)
}

// Journal records ledger effects that could not be persisted.
type Journal interface {
	Push(ctx context.Context, rec PendingReconciliation) error
}

type Matcher interface {
	FindMatches(ctx context.Context, description, requiredSkills string) ([]matching.MatchResult, error)
}

type Deps struct {
	Store    store.ProjectStore
	Users    Users
	Ledger   ledger.Gateway
	Signer   Signer
	Locker   lock.Locker
	Matcher  Matcher
	Notifier Notifier
	Journal  Journal
	Log      logger.Logger
}

type Config struct {
	// LedgerTimeout bounds each ledger call including confirmation wait.
	LedgerTimeout time.Duration
}

type Service struct {
	store    store.ProjectStore
	users    Users
	ledger   ledger.Gateway
	signer   Signer
	locker   lock.Locker
	matcher  Matcher
	notifier Notifier
	journal  Journal
	log      logger.Logger
	timeout  time.Duration
}

func New(d Deps, cfg Config) *Service {
	s := &Service{
		store:    d.Store,
		users:    d.Users,
		ledger:   d.Ledger,
		signer:   d.Signer,
		locker:   d.Locker,
		matcher:  d.Matcher,
		notifier: d.Notifier,
		journal:  d.Journal,
		log:      d.Log,
		timeout:  cfg.LedgerTimeout,
	}
	if s.locker == nil {
		s.locker = lock.NewMemoryLocker()
	}
	if s.log == nil {
		s.log = logger.NewNoOp()
	}
	if s.timeout <= 0 {
		s.timeout = 2 * time.Minute
	}
	return s
}

func (s *Service) CreateProject(ctx context.Context, employerID uuid.UUID, title, description string, budget decimal.Decimal) (*models.Project, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	switch {
	case title == "":
		return nil, apperror.Validation("title is required")
	case description == "":
		return nil, apperror.Validation("description is required")
	case !budget.IsPositive():
		return nil, apperror.Validation("budget must be greater than zero")
	}

	u, err := s.user(ctx, employerID, "employer")
	if err != nil {
		return nil, err
	}
	if u.Role != models.RoleEmployer {
		return nil, apperror.Forbidden("only employers can post projects")
	}

	p := &models.Project{
		Title:       title,
		Description: description,
		EmployerID:  employerID,
		Budget:      budget,
		Status:      models.ProjectOpen,
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, apperror.Store("create project", err)
	}
	s.log.Info("project created", map[string]interface{}{
		"projectId": p.ID.String(), "employerId": employerID.String(), "budget": budget.String(),
	})
	return p, nil
}

func (s *Service) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	p, err := s.store.GetProject(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperror.NotFound("project")
	}
	if err != nil {
		return nil, apperror.Store("get project", err)
	}
	return p, nil
}

func (s *Service) ListOpen(ctx context.Context) ([]models.Project, error) {
	return s.list(ctx, store.ProjectFilter{Status: models.ProjectOpen})
}

// ListForEmployer lists the employer's projects, optionally narrowed to one status.
func (s *Service) ListForEmployer(ctx context.Context, employerID uuid.UUID, status models.ProjectStatus) ([]models.Project, error) {
	if status != "" && !status.Valid() {
		return nil, apperror.Validation("unknown status " + string(status))
	}
	return s.list(ctx, store.ProjectFilter{Status: status, EmployerID: &employerID})
}

func (s *Service) ListAssignedForFreelancer(ctx context.Context, freelancerID uuid.UUID) ([]models.Project, error) {
	return s.list(ctx, store.ProjectFilter{Status: models.ProjectAssigned, FreelancerID: &freelancerID})
}

func (s *Service) Events(ctx context.Context, projectID uuid.UUID) ([]models.LedgerEvent, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	ev, err := s.store.ListLedgerEvents(ctx, projectID)
	if err != nil {
		return nil, apperror.Store("list ledger events", err)
	}
	return ev, nil
}

func (s *Service) list(ctx context.Context, f store.ProjectFilter) ([]models.Project, error) {
	out, err := s.store.ListProjects(ctx, f)
	if err != nil {
		return nil, apperror.Store("list projects", err)
	}
	if out == nil {
		out = []models.Project{}
	}
	return out, nil
}

// Dashboard summarizes a freelancer's work.
type Dashboard struct {
	Assigned    int             `json:"assigned"`
	Completed   int             `json:"completed"`
	Paid        int             `json:"paid"`
	TotalEarned decimal.Decimal `json:"total_earned"`
}

func (s *Service) Dashboard(ctx context.Context, freelancerID uuid.UUID) (Dashboard, error) {
	projects, err := s.list(ctx, store.ProjectFilter{FreelancerID: &freelancerID})
	if err != nil {
		return Dashboard{}, err
	}
	d := Dashboard{TotalEarned: decimal.Zero}
	for _, p := range projects {
		switch p.Status {
		case models.ProjectAssigned:
			d.Assigned++
		case models.ProjectCompleted:
			d.Completed++
		case models.ProjectPaid:
			d.Paid++
			d.TotalEarned = d.TotalEarned.Add(p.Budget)
		}
	}
	return d, nil
}

// ContractStatus reads the escrow state of a project's contract.
func (s *Service) ContractStatus(ctx context.Context, projectID uuid.UUID) (ledger.ContractStatus, error) {
	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		return ledger.ContractStatus{}, err
	}
	if p.ContractAddress == nil || *p.ContractAddress == "" {
		return ledger.ContractStatus{}, apperror.NotFound("contract")
	}
	lctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.ledger.ReadStatus(lctx, *p.ContractAddress)
}

// MatchCandidates ranks freelancers for an employer's open project.
// descriptionOverride replaces the stored description when not blank.
func (s *Service) MatchCandidates(ctx context.Context, employerID, projectID uuid.UUID, requiredSkills, descriptionOverride string) ([]matching.MatchResult, error) {
	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.EmployerID != employerID {
		return nil, apperror.Forbidden("only the project owner can search for freelancers")
	}
	if p.Status != models.ProjectOpen {
		return nil, apperror.IllegalTransition("match", string(p.Status))
	}
	desc := p.Description
	if strings.TrimSpace(descriptionOverride) != "" {
		desc = descriptionOverride
	}
	return s.matcher.FindMatches(ctx, desc, requiredSkills)
}

func (s *Service) user(ctx context.Context, id uuid.UUID, what string) (*models.User, error) {
	u, err := s.users.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperror.NotFound(what)
	}
	if err != nil {
		return nil, apperror.Store("get "+what, err)
	}
	return u, nil
}
