package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/apperror"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/models"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/services/ledger"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/store"
)

type memStore struct {
	mu        sync.Mutex
	projects  map[uuid.UUID]models.Project
	events    []models.LedgerEvent
	updateErr error
}

func newMemStore() *memStore {
	return &memStore{projects: map[uuid.UUID]models.Project{}}
}

func (m *memStore) GetProject(_ context.Context, id uuid.UUID) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (m *memStore) ListProjects(_ context.Context, f store.ProjectFilter) ([]models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Project
	for _, p := range m.projects {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.EmployerID != nil && p.EmployerID != *f.EmployerID {
			continue
		}
		if f.FreelancerID != nil && (p.FreelancerID == nil || *p.FreelancerID != *f.FreelancerID) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memStore) CreateProject(_ context.Context, p *models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.projects[p.ID] = *p
	return nil
}

func (m *memStore) UpdateProjectStatus(_ context.Context, id uuid.UUID, expected, next models.ProjectStatus, change store.StatusChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	p, ok := m.projects[id]
	if !ok {
		return store.ErrNotFound
	}
	if p.Status != expected {
		return store.ErrConflict
	}
	p.Status = next
	if change.FreelancerID != nil {
		v := *change.FreelancerID
		p.FreelancerID = &v
	}
	if change.ContractAddress != nil {
		v := *change.ContractAddress
		p.ContractAddress = &v
	}
	p.UpdatedAt = time.Now()
	m.projects[id] = p
	if change.Event != nil {
		ev := *change.Event
		ev.ProjectID = id
		m.events = append(m.events, ev)
	}
	return nil
}

func (m *memStore) DeleteProject(_ context.Context, id uuid.UUID, expected models.ProjectStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return store.ErrNotFound
	}
	if p.Status != expected {
		return store.ErrConflict
	}
	delete(m.projects, id)
	return nil
}

func (m *memStore) ListLedgerEvents(_ context.Context, projectID uuid.UUID) ([]models.LedgerEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.LedgerEvent
	for _, e := range m.events {
		if e.ProjectID == projectID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) GetFreelancerProfile(context.Context, uuid.UUID) (*models.FreelancerProfile, error) {
	return nil, store.ErrNotFound
}

func (m *memStore) ListFreelancerProfiles(context.Context) ([]models.FreelancerProfile, error) {
	return nil, nil
}

type memUsers map[uuid.UUID]*models.User

func (u memUsers) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	if v, ok := u[id]; ok {
		return v, nil
	}
	return nil, store.ErrNotFound
}

func (u memUsers) SigningKey(_ context.Context, id uuid.UUID) (string, error) {
	if v, ok := u[id]; ok {
		return "key-" + v.Username, nil
	}
	return "", apperror.NotFound("user")
}

type fakeLedger struct {
	mu        sync.Mutex
	deploys   int
	invokes   []ledger.Method
	signers   []string
	deployErr error
	invokeErr error
	delay     time.Duration
	block     bool
	status    ledger.ContractStatus
}

func (f *fakeLedger) CreateAccount(context.Context) (ledger.Account, error) {
	return ledger.Account{Address: "0x00000000000000000000000000000000000000a1", PrivateKey: "k"}, nil
}

func (f *fakeLedger) wait(ctx context.Context) error {
	if f.block {
		<-ctx.Done()
		return apperror.Ledger(apperror.CodeLedgerTimeout, "wait", ctx.Err())
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return nil
}

func (f *fakeLedger) DeployEscrow(ctx context.Context, key, freelancerAddr, desc string, amount decimal.Decimal) (ledger.Receipt, error) {
	if err := f.wait(ctx); err != nil {
		return ledger.Receipt{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signers = append(f.signers, key)
	if f.deployErr != nil {
		return ledger.Receipt{}, f.deployErr
	}
	f.deploys++
	return ledger.Receipt{
		TxHash:          fmt.Sprintf("0xdeploy%d", f.deploys),
		BlockNumber:     uint64(f.deploys),
		ContractAddress: fmt.Sprintf("0x%040d", f.deploys),
	}, nil
}

func (f *fakeLedger) Invoke(ctx context.Context, contract string, m ledger.Method, key string) (ledger.Receipt, error) {
	if err := f.wait(ctx); err != nil {
		return ledger.Receipt{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signers = append(f.signers, key)
	if f.invokeErr != nil {
		return ledger.Receipt{}, f.invokeErr
	}
	f.invokes = append(f.invokes, m)
	return ledger.Receipt{TxHash: "0x" + string(m), ContractAddress: contract}, nil
}

func (f *fakeLedger) ReadStatus(context.Context, string) (ledger.ContractStatus, error) {
	return f.status, nil
}

func (f *fakeLedger) Balance(context.Context, string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	statuses []models.ProjectStatus
}

func (r *recordingNotifier) ProjectChanged(_ context.Context, p *models.Project) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, p.Status)
}

var errDBDown = errors.New("db down")
