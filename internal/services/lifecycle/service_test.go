package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/apperror"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/lock"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/logger"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/models"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/services/ledger"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/services/matching"
)

type fixture struct {
	svc      *Service
	store    *memStore
	ledger   *fakeLedger
	users    memUsers
	notifier *recordingNotifier
	employer uuid.UUID
	fl1      uuid.UUID
	fl2      uuid.UUID
	project  *models.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    newMemStore(),
		ledger:   &fakeLedger{},
		users:    memUsers{},
		notifier: &recordingNotifier{},
		employer: uuid.New(),
		fl1:      uuid.New(),
		fl2:      uuid.New(),
	}
	f.users[f.employer] = &models.User{ID: f.employer, Username: "emp", Role: models.RoleEmployer, WalletAddress: "0xe1"}
	f.users[f.fl1] = &models.User{ID: f.fl1, Username: "f1", Role: models.RoleFreelancer, WalletAddress: "0xa1"}
	f.users[f.fl2] = &models.User{ID: f.fl2, Username: "f2", Role: models.RoleFreelancer, WalletAddress: "0xa2"}

	f.svc = New(Deps{
		Store:    f.store,
		Users:    f.users,
		Ledger:   f.ledger,
		Signer:   f.users,
		Locker:   lock.NewMemoryLocker(),
		Notifier: f.notifier,
		Matcher:  matching.NewMatcher(f.store, nil),
		Log:      logger.NewTest(t),
	}, Config{LedgerTimeout: time.Second})

	p, err := f.svc.CreateProject(context.Background(), f.employer, "Dashboard", "Build a React dashboard with charts", decimal.NewFromInt(100))
	require.NoError(t, err)
	f.project = p
	return f
}

func (f *fixture) stored(t *testing.T) models.Project {
	t.Helper()
	p, err := f.store.GetProject(context.Background(), f.project.ID)
	require.NoError(t, err)
	return *p
}

func TestFullEscrowScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	p, err := f.svc.Hire(ctx, f.employer, f.project.ID, f.fl1)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectAssigned, p.Status)
	require.NotNil(t, p.FreelancerID)
	assert.Equal(t, f.fl1, *p.FreelancerID)
	require.NotNil(t, p.ContractAddress)
	assert.Equal(t, "0x0000000000000000000000000000000000000001", *p.ContractAddress)
	assert.Equal(t, "key-emp", f.ledger.signers[0])

	p, err = f.svc.Complete(ctx, f.fl1, f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectCompleted, p.Status)
	assert.Equal(t, "key-f1", f.ledger.signers[1])

	p, err = f.svc.Release(ctx, f.employer, f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectPaid, p.Status)
	assert.Equal(t, "key-emp", f.ledger.signers[2])

	_, err = f.svc.Complete(ctx, f.fl1, f.project.ID)
	assert.True(t, apperror.IsCode(err, apperror.CodeIllegalTransition))

	assert.Equal(t, []ledger.Method{ledger.MethodComplete, ledger.MethodRelease}, f.ledger.invokes)
	assert.Equal(t, []models.ProjectStatus{models.ProjectAssigned, models.ProjectCompleted, models.ProjectPaid}, f.notifier.statuses)

	events, err := f.svc.Events(ctx, f.project.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, models.LedgerDeploy, events[0].Operation)
	assert.Equal(t, models.LedgerComplete, events[1].Operation)
	assert.Equal(t, models.LedgerRelease, events[2].Operation)
	assert.JSONEq(t, `{"txHash":"0xdeploy1","blockNumber":1,"gasUsed":0,"contractAddress":"0x0000000000000000000000000000000000000001"}`, string(events[0].Receipt))

	d, err := f.svc.Dashboard(ctx, f.fl1)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Paid)
	assert.True(t, d.TotalEarned.Equal(decimal.NewFromInt(100)))
}

func TestDeployFailureLeavesProjectUntouched(t *testing.T) {
	f := newFixture(t)
	f.ledger.deployErr = apperror.Ledger(apperror.CodeInsufficientFunds, "deploy", nil)
	before := f.stored(t)

	_, err := f.svc.Hire(context.Background(), f.employer, f.project.ID, f.fl1)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientFunds))
	assert.Equal(t, before, f.stored(t))
	assert.Empty(t, f.notifier.statuses)
}

func TestLedgerTimeoutLeavesProjectUntouched(t *testing.T) {
	f := newFixture(t)
	f.svc.timeout = 20 * time.Millisecond
	f.ledger.block = true
	before := f.stored(t)

	_, err := f.svc.Hire(context.Background(), f.employer, f.project.ID, f.fl1)
	assert.True(t, apperror.IsCode(err, apperror.CodeLedgerTimeout))
	assert.Equal(t, before, f.stored(t))
}

func TestConcurrentHireSingleWinner(t *testing.T) {
	f := newFixture(t)
	f.ledger.delay = 20 * time.Millisecond

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, fl := range []uuid.UUID{f.fl1, f.fl2} {
		wg.Add(1)
		go func(i int, fl uuid.UUID) {
			defer wg.Done()
			_, errs[i] = f.svc.Hire(context.Background(), f.employer, f.project.ID, fl)
		}(i, fl)
	}
	wg.Wait()

	var ok, illegal int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperror.IsCode(err, apperror.CodeIllegalTransition):
			illegal++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, illegal)
	assert.Equal(t, 1, f.ledger.deploys)
	assert.Equal(t, models.ProjectAssigned, f.stored(t).Status)
}

func TestPersistenceFailureNeedsReconciliation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	journal := NewRedisJournal(client)
	f.svc.journal = journal

	f.store.updateErr = errDBDown
	_, err := f.svc.Hire(ctx, f.employer, f.project.ID, f.fl1)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeNeedsReconciliation))
	assert.ErrorIs(t, err, errDBDown)
	assert.Equal(t, 1, f.ledger.deploys)
	assert.Equal(t, models.ProjectOpen, f.stored(t).Status)

	n, err := journal.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rec, ok, err := journal.Pop(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, f.project.ID, rec.ProjectID)
	assert.Equal(t, TransitionHire, rec.Transition)
	assert.Equal(t, "0x0000000000000000000000000000000000000001", rec.ContractAddress)
	require.NotNil(t, rec.FreelancerID)
	assert.Equal(t, f.fl1, *rec.FreelancerID)

	// operator replays the journal once the store is back
	f.store.updateErr = nil
	f.ledger.status = ledger.ContractStatus{Employer: "0xE1", Freelancer: "0xA1"}
	res, err := f.svc.Reconcile(ctx, rec)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, models.ProjectAssigned, res.To)

	p := f.stored(t)
	assert.Equal(t, models.ProjectAssigned, p.Status)
	assert.Equal(t, f.fl1, *p.FreelancerID)
	assert.Equal(t, rec.ContractAddress, *p.ContractAddress)

	_, ok, err = journal.Pop(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReconcileNeverMovesBackwards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.Hire(ctx, f.employer, f.project.ID, f.fl1)
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, f.fl1, f.project.ID)
	require.NoError(t, err)

	// chain still reports only assigned
	res, err := f.svc.Reconcile(ctx, PendingReconciliation{ProjectID: f.project.ID})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, models.ProjectCompleted, f.stored(t).Status)

	// release confirmed on chain but never recorded
	f.ledger.status = ledger.ContractStatus{Completed: true, Paid: true}
	res, err = f.svc.Reconcile(ctx, PendingReconciliation{ProjectID: f.project.ID})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, models.ProjectPaid, f.stored(t).Status)
	assert.Empty(t, f.ledger.invokes[1:], "reconcile must not call state-changing ledger methods")
}

func TestReconcileValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Reconcile(ctx, PendingReconciliation{ProjectID: f.project.ID})
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	_, err = f.svc.Reconcile(ctx, PendingReconciliation{ProjectID: f.project.ID, ContractAddress: "0xc1"})
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation), "open project needs a freelancer id")

	_, err = f.svc.Hire(ctx, f.employer, f.project.ID, f.fl1)
	require.NoError(t, err)
	_, err = f.svc.Reconcile(ctx, PendingReconciliation{ProjectID: f.project.ID, ContractAddress: "0xdifferent"})
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestReconcileOpenProjectChecksContractParties(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rec := func(freelancer uuid.UUID) PendingReconciliation {
		return PendingReconciliation{ProjectID: f.project.ID, ContractAddress: "0xcc", FreelancerID: &freelancer}
	}

	// contract between strangers
	f.ledger.status = ledger.ContractStatus{Employer: "0xff", Freelancer: "0xee"}
	_, err := f.svc.Reconcile(ctx, rec(f.fl1))
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	// unknown freelancer id
	f.ledger.status = ledger.ContractStatus{Employer: "0xe1", Freelancer: "0xa1"}
	_, err = f.svc.Reconcile(ctx, rec(uuid.New()))
	assert.True(t, apperror.IsCode(err, apperror.CodeNotFound))

	// the employer is not a freelancer
	_, err = f.svc.Reconcile(ctx, rec(f.employer))
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	// freelancer on the contract is a different user
	_, err = f.svc.Reconcile(ctx, rec(f.fl2))
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	// right freelancer, someone else's escrow
	f.ledger.status = ledger.ContractStatus{Employer: "0xff", Freelancer: "0xa1"}
	_, err = f.svc.Reconcile(ctx, rec(f.fl1))
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	p := f.stored(t)
	assert.Equal(t, models.ProjectOpen, p.Status)
	assert.Nil(t, p.FreelancerID)
	assert.Nil(t, p.ContractAddress)

	f.ledger.status = ledger.ContractStatus{Employer: "0xE1", Freelancer: "0xA1"}
	res, err := f.svc.Reconcile(ctx, rec(f.fl1))
	require.NoError(t, err)
	assert.True(t, res.Changed)
	p = f.stored(t)
	assert.Equal(t, models.ProjectAssigned, p.Status)
	assert.Equal(t, f.fl1, *p.FreelancerID)
	assert.Equal(t, "0xcc", *p.ContractAddress)
}

func TestStatusCheckedBeforeCaller(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	stranger := uuid.New()

	_, err := f.svc.Complete(ctx, stranger, f.project.ID)
	assert.True(t, apperror.IsCode(err, apperror.CodeIllegalTransition))

	_, err = f.svc.Hire(ctx, stranger, f.project.ID, f.fl1)
	assert.True(t, apperror.IsCode(err, apperror.CodeForbidden))

	_, err = f.svc.Hire(ctx, f.employer, f.project.ID, f.fl1)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, f.fl2, f.project.ID)
	assert.True(t, apperror.IsCode(err, apperror.CodeForbidden))

	_, err = f.svc.Release(ctx, f.employer, f.project.ID)
	assert.True(t, apperror.IsCode(err, apperror.CodeIllegalTransition))

	_, err = f.svc.Complete(ctx, f.fl1, uuid.New())
	assert.True(t, apperror.IsCode(err, apperror.CodeNotFound))
}

func TestHireValidatesFreelancer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Hire(ctx, f.employer, f.project.ID, uuid.New())
	assert.True(t, apperror.IsCode(err, apperror.CodeNotFound))

	_, err = f.svc.Hire(ctx, f.employer, f.project.ID, f.employer)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	f.users[f.fl2].WalletAddress = ""
	_, err = f.svc.Hire(ctx, f.employer, f.project.ID, f.fl2)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	assert.Equal(t, 0, f.ledger.deploys)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	err := f.svc.Delete(ctx, f.fl1, f.project.ID)
	assert.True(t, apperror.IsCode(err, apperror.CodeForbidden))

	require.NoError(t, f.svc.Delete(ctx, f.employer, f.project.ID))
	_, err = f.svc.GetProject(ctx, f.project.ID)
	assert.True(t, apperror.IsCode(err, apperror.CodeNotFound))
	assert.Equal(t, []models.ProjectStatus{models.ProjectDeleted}, f.notifier.statuses)

	other, err := f.svc.CreateProject(ctx, f.employer, "T", "D", decimal.NewFromInt(1))
	require.NoError(t, err)
	_, err = f.svc.Hire(ctx, f.employer, other.ID, f.fl1)
	require.NoError(t, err)
	err = f.svc.Delete(ctx, f.employer, other.ID)
	assert.True(t, apperror.IsCode(err, apperror.CodeIllegalTransition))
}

func TestCreateProjectValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.CreateProject(ctx, f.employer, " ", "d", decimal.NewFromInt(1))
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
	_, err = f.svc.CreateProject(ctx, f.employer, "t", "", decimal.NewFromInt(1))
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
	_, err = f.svc.CreateProject(ctx, f.employer, "t", "d", decimal.Zero)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
	_, err = f.svc.CreateProject(ctx, f.fl1, "t", "d", decimal.NewFromInt(1))
	assert.True(t, apperror.IsCode(err, apperror.CodeForbidden))
}

func TestListings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	second, err := f.svc.CreateProject(ctx, f.employer, "T2", "D2", decimal.NewFromInt(5))
	require.NoError(t, err)
	_, err = f.svc.Hire(ctx, f.employer, second.ID, f.fl2)
	require.NoError(t, err)

	open, err := f.svc.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, f.project.ID, open[0].ID)

	mine, err := f.svc.ListForEmployer(ctx, f.employer, "")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	assigned, err := f.svc.ListForEmployer(ctx, f.employer, models.ProjectAssigned)
	require.NoError(t, err)
	assert.Len(t, assigned, 1)

	_, err = f.svc.ListForEmployer(ctx, f.employer, "bogus")
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	work, err := f.svc.ListAssignedForFreelancer(ctx, f.fl2)
	require.NoError(t, err)
	require.Len(t, work, 1)
	assert.Equal(t, second.ID, work[0].ID)

	none, err := f.svc.ListAssignedForFreelancer(ctx, f.fl1)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestContractStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.ContractStatus(ctx, f.project.ID)
	assert.True(t, apperror.IsCode(err, apperror.CodeNotFound))

	_, err = f.svc.Hire(ctx, f.employer, f.project.ID, f.fl1)
	require.NoError(t, err)
	f.ledger.status = ledger.ContractStatus{Status: "Active", Balance: decimal.NewFromInt(100)}

	st, err := f.svc.ContractStatus(ctx, f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, "Active", st.Status)
}

func TestMatchCandidatesOwnership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.MatchCandidates(ctx, f.fl1, f.project.ID, "react", "")
	assert.True(t, apperror.IsCode(err, apperror.CodeForbidden))

	got, err := f.svc.MatchCandidates(ctx, f.employer, f.project.ID, "react", "")
	require.NoError(t, err)
	assert.Empty(t, got)
}
