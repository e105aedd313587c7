package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/apperror"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/logger"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/metrics"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/models"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/services/ledger"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/store"
)

const (
	TransitionHire     = "hire"
	TransitionComplete = "complete"
	TransitionRelease  = "release"
	TransitionDelete   = "delete"
)

// step describes one ledger-backed transition.
type step struct {
	name string
	from models.ProjectStatus
	to   models.ProjectStatus
	op   models.LedgerOperation

	// authorize runs under the project lock after the status check and returns the signer.
	authorize func(ctx context.Context, p *models.Project) (uuid.UUID, error)
	// perform makes the ledger call and returns the extra fields to persist.
	perform func(ctx context.Context, p *models.Project, key string) (ledger.Receipt, store.StatusChange, error)
}

// Hire deploys an escrow funded with the project budget and assigns freelancerID.
func (s *Service) Hire(ctx context.Context, employerID, projectID, freelancerID uuid.UUID) (*models.Project, error) {
	var freelancer *models.User
	return s.run(ctx, projectID, step{
		name: TransitionHire,
		from: models.ProjectOpen,
		to:   models.ProjectAssigned,
		op:   models.LedgerDeploy,
		authorize: func(ctx context.Context, p *models.Project) (uuid.UUID, error) {
			if p.EmployerID != employerID {
				return uuid.Nil, apperror.Forbidden("only the project owner can hire")
			}
			u, err := s.user(ctx, freelancerID, "freelancer")
			if err != nil {
				return uuid.Nil, err
			}
			if u.Role != models.RoleFreelancer {
				return uuid.Nil, apperror.Validation("selected user is not a freelancer")
			}
			if u.WalletAddress == "" {
				return uuid.Nil, apperror.Validation("freelancer has no ledger address")
			}
			freelancer = u
			return employerID, nil
		},
		perform: func(ctx context.Context, p *models.Project, key string) (ledger.Receipt, store.StatusChange, error) {
			rcpt, err := s.ledger.DeployEscrow(ctx, key, freelancer.WalletAddress, p.Description, p.Budget)
			if err != nil {
				return rcpt, store.StatusChange{}, err
			}
			addr := rcpt.ContractAddress
			return rcpt, store.StatusChange{FreelancerID: &freelancerID, ContractAddress: &addr}, nil
		},
	})
}

// Complete marks the work done on the escrow, signed by the assigned freelancer.
func (s *Service) Complete(ctx context.Context, freelancerID, projectID uuid.UUID) (*models.Project, error) {
	return s.run(ctx, projectID, step{
		name: TransitionComplete,
		from: models.ProjectAssigned,
		to:   models.ProjectCompleted,
		op:   models.LedgerComplete,
		authorize: func(_ context.Context, p *models.Project) (uuid.UUID, error) {
			if p.FreelancerID == nil || *p.FreelancerID != freelancerID {
				return uuid.Nil, apperror.Forbidden("only the assigned freelancer can complete this project")
			}
			return freelancerID, nil
		},
		perform: s.invoke(ledger.MethodComplete),
	})
}

// Release pays the freelancer out of the escrow, signed by the employer.
func (s *Service) Release(ctx context.Context, employerID, projectID uuid.UUID) (*models.Project, error) {
	return s.run(ctx, projectID, step{
		name: TransitionRelease,
		from: models.ProjectCompleted,
		to:   models.ProjectPaid,
		op:   models.LedgerRelease,
		authorize: func(_ context.Context, p *models.Project) (uuid.UUID, error) {
			if p.EmployerID != employerID {
				return uuid.Nil, apperror.Forbidden("only the project owner can release payment")
			}
			return employerID, nil
		},
		perform: s.invoke(ledger.MethodRelease),
	})
}

func (s *Service) invoke(m ledger.Method) func(context.Context, *models.Project, string) (ledger.Receipt, store.StatusChange, error) {
	return func(ctx context.Context, p *models.Project, key string) (ledger.Receipt, store.StatusChange, error) {
		if p.ContractAddress == nil || *p.ContractAddress == "" {
			return ledger.Receipt{}, store.StatusChange{}, apperror.Internal("project has no contract address", nil)
		}
		rcpt, err := s.ledger.Invoke(ctx, *p.ContractAddress, m, key)
		if rcpt.ContractAddress == "" {
			rcpt.ContractAddress = *p.ContractAddress
		}
		return rcpt, store.StatusChange{}, err
	}
}

// Delete removes an open project. No ledger call is involved.
func (s *Service) Delete(ctx context.Context, employerID, projectID uuid.UUID) (err error) {
	defer func() { metrics.RecordTransition(TransitionDelete, err) }()

	unlock, err := s.acquire(ctx, projectID)
	if err != nil {
		return err
	}
	defer unlock()

	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if p.Status != models.ProjectOpen {
		return apperror.IllegalTransition(TransitionDelete, string(p.Status))
	}
	if p.EmployerID != employerID {
		return apperror.Forbidden("only the project owner can delete it")
	}

	switch err := s.store.DeleteProject(ctx, projectID, models.ProjectOpen); {
	case errors.Is(err, store.ErrConflict):
		return apperror.IllegalTransition(TransitionDelete, "changed concurrently")
	case errors.Is(err, store.ErrNotFound):
		return apperror.NotFound("project")
	case err != nil:
		return apperror.Store("delete project", err)
	}

	s.log.Info("project deleted", map[string]interface{}{"projectId": projectID.String(), "transition": TransitionDelete})
	p.Status = models.ProjectDeleted
	s.notify(ctx, p)
	return nil
}

// run executes st under the project lock: check status, authorize, call the ledger,
// then persist with a compare-and-swap. A ledger failure leaves the record untouched.
func (s *Service) run(ctx context.Context, projectID uuid.UUID, st step) (p *models.Project, err error) {
	defer func() { metrics.RecordTransition(st.name, err) }()
	log := s.log.WithFields(map[string]interface{}{"projectId": projectID.String(), "transition": st.name})

	unlock, err := s.acquire(ctx, projectID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, err = s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.Status != st.from {
		return nil, apperror.IllegalTransition(st.name, string(p.Status))
	}
	signerID, err := st.authorize(ctx, p)
	if err != nil {
		return nil, err
	}
	key, err := s.signer.SigningKey(ctx, signerID)
	if err != nil {
		return nil, err
	}

	log.Info("transition started", map[string]interface{}{"from": string(st.from), "to": string(st.to)})

	lctx, cancel := context.WithTimeout(ctx, s.timeout)
	start := time.Now()
	rcpt, change, err := st.perform(lctx, p, key)
	cancel()
	metrics.ObserveLedgerCall(string(st.op), start, err)
	if err != nil {
		log.WithError(err).Warn("ledger call failed, project unchanged", map[string]interface{}{
			"code": string(apperror.CodeOf(err)),
		})
		return nil, err
	}

	log.Info("ledger call confirmed", map[string]interface{}{
		"contractAddress": rcpt.ContractAddress, "txHash": rcpt.TxHash, "blockNumber": rcpt.BlockNumber,
	})

	raw, _ := json.Marshal(rcpt)
	change.Event = &models.LedgerEvent{
		Operation:       st.op,
		ContractAddress: rcpt.ContractAddress,
		TxHash:          rcpt.TxHash,
		Receipt:         datatypes.JSON(raw),
	}

	// the ledger effect is irreversible; the record must follow even if the caller went away
	pctx := context.WithoutCancel(ctx)
	if err := s.store.UpdateProjectStatus(pctx, p.ID, st.from, st.to, change); err != nil {
		return nil, s.needsReconciliation(pctx, log, p, st.name, rcpt, change, err)
	}

	p.Status = st.to
	if change.FreelancerID != nil {
		p.FreelancerID = change.FreelancerID
	}
	if change.ContractAddress != nil {
		p.ContractAddress = change.ContractAddress
	}
	if fresh, gerr := s.store.GetProject(pctx, p.ID); gerr == nil {
		p = fresh
	}

	log.Info("project status advanced", map[string]interface{}{"status": string(p.Status), "contractAddress": rcpt.ContractAddress})
	s.notify(pctx, p)
	return p, nil
}

func (s *Service) acquire(ctx context.Context, projectID uuid.UUID) (func(), error) {
	unlock, err := s.locker.Lock(ctx, projectID.String())
	if err != nil {
		return nil, apperror.Wrap(apperror.CodeConflict, "project is busy with another transition", err)
	}
	return unlock, nil
}

func (s *Service) needsReconciliation(ctx context.Context, log logger.Logger, p *models.Project, transition string, rcpt ledger.Receipt, change store.StatusChange, cause error) error {
	metrics.ReconciliationPending.Inc()

	rec := PendingReconciliation{
		ProjectID:       p.ID,
		Transition:      transition,
		ContractAddress: rcpt.ContractAddress,
		TxHash:          rcpt.TxHash,
		FreelancerID:    change.FreelancerID,
		Cause:           cause.Error(),
		RecordedAt:      time.Now().UTC(),
	}
	if rec.FreelancerID == nil {
		rec.FreelancerID = p.FreelancerID
	}

	log.WithError(cause).Error("ledger effect confirmed but project not updated, needs reconciliation", map[string]interface{}{
		"contractAddress": rcpt.ContractAddress,
		"txHash":          rcpt.TxHash,
		"expectedStatus":  string(p.Status),
	})

	if s.journal != nil {
		if err := s.journal.Push(ctx, rec); err != nil {
			log.WithError(err).Warn("could not journal pending reconciliation", nil)
		}
	}
	return apperror.NeedsReconciliation(p.ID.String(), transition, rcpt.ContractAddress, cause).
		WithMetadata("txHash", rcpt.TxHash)
}

func (s *Service) notify(ctx context.Context, p *models.Project) {
	if s.notifier != nil {
		s.notifier.ProjectChanged(ctx, p)
	}
}
