package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/apperror"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/models"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/services/ledger"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/store"
)

type ReconcileResult struct {
	ProjectID uuid.UUID             `json:"projectId"`
	From      models.ProjectStatus  `json:"from"`
	To        models.ProjectStatus  `json:"to"`
	Changed   bool                  `json:"changed"`
	Chain     ledger.ContractStatus `json:"chain"`
}

// chainStatus is the furthest project status the contract state proves.
func chainStatus(cs ledger.ContractStatus) models.ProjectStatus {
	switch {
	case cs.Paid:
		return models.ProjectPaid
	case cs.Completed:
		return models.ProjectCompleted
	}
	return models.ProjectAssigned
}

// Reconcile brings a project record forward to what its contract shows.
// It only reads the ledger and never moves a project backwards.
func (s *Service) Reconcile(ctx context.Context, rec PendingReconciliation) (res ReconcileResult, err error) {
	log := s.log.WithFields(map[string]interface{}{"projectId": rec.ProjectID.String(), "transition": "reconcile"})

	unlock, err := s.acquire(ctx, rec.ProjectID)
	if err != nil {
		return res, err
	}
	defer unlock()

	p, err := s.GetProject(ctx, rec.ProjectID)
	if err != nil {
		return res, err
	}
	res.ProjectID = p.ID
	res.From = p.Status
	res.To = p.Status

	addr := strings.TrimSpace(rec.ContractAddress)
	if p.ContractAddress != nil && *p.ContractAddress != "" {
		if addr != "" && !strings.EqualFold(addr, *p.ContractAddress) {
			return res, apperror.Validation("contract address does not match the project's contract")
		}
		addr = *p.ContractAddress
	}
	if addr == "" {
		return res, apperror.Validation("contract address is required")
	}

	lctx, cancel := context.WithTimeout(ctx, s.timeout)
	cs, err := s.ledger.ReadStatus(lctx, addr)
	cancel()
	if err != nil {
		return res, err
	}
	res.Chain = cs

	target := chainStatus(cs)
	if p.Status.Rank() < 0 || p.Status.Rank() >= target.Rank() {
		log.Info("project already reflects ledger state", map[string]interface{}{
			"status": string(p.Status), "chainStatus": string(target),
		})
		return res, nil
	}

	change := store.StatusChange{}
	if p.Status == models.ProjectOpen {
		if rec.FreelancerID == nil {
			return res, apperror.Validation("freelancer id is required to reconcile an open project")
		}
		if err := s.verifyParties(ctx, p, *rec.FreelancerID, cs); err != nil {
			log.WithError(err).Warn("contract does not belong to this project", map[string]interface{}{
				"contractAddress": addr, "employer": cs.Employer, "freelancer": cs.Freelancer,
			})
			return res, err
		}
		change.FreelancerID = rec.FreelancerID
		change.ContractAddress = &addr
	}
	raw, _ := json.Marshal(cs)
	change.Event = &models.LedgerEvent{
		Operation:       models.LedgerReconcile,
		ContractAddress: addr,
		TxHash:          rec.TxHash,
		Receipt:         datatypes.JSON(raw),
	}

	switch err := s.store.UpdateProjectStatus(ctx, p.ID, p.Status, target, change); {
	case errors.Is(err, store.ErrConflict):
		return res, apperror.IllegalTransition("reconcile", "changed concurrently")
	case err != nil:
		return res, apperror.Store("reconcile project", err)
	}

	res.To = target
	res.Changed = true
	log.Info("project reconciled with ledger", map[string]interface{}{
		"from": string(res.From), "to": string(target), "contractAddress": addr,
	})

	if fresh, gerr := s.store.GetProject(ctx, p.ID); gerr == nil {
		s.notify(ctx, fresh)
	}
	return res, nil
}

// verifyParties checks that the contract escrows funds from the project's
// employer to freelancerID before an open project is bound to it.
func (s *Service) verifyParties(ctx context.Context, p *models.Project, freelancerID uuid.UUID, cs ledger.ContractStatus) error {
	fl, err := s.user(ctx, freelancerID, "freelancer")
	if err != nil {
		return err
	}
	if fl.Role != models.RoleFreelancer {
		return apperror.Validation("selected user is not a freelancer")
	}
	if fl.WalletAddress == "" || !strings.EqualFold(cs.Freelancer, fl.WalletAddress) {
		return apperror.Validation("contract freelancer does not match the selected freelancer").
			WithMetadata("contractFreelancer", cs.Freelancer)
	}

	emp, err := s.user(ctx, p.EmployerID, "employer")
	if err != nil {
		return err
	}
	if emp.WalletAddress == "" || !strings.EqualFold(cs.Employer, emp.WalletAddress) {
		return apperror.Validation("contract employer does not match the project owner").
			WithMetadata("contractEmployer", cs.Employer)
	}
	return nil
}
