package wallet

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/apperror"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/models"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/services/ledger"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/store"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/utils"
)

type UserGetter interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Info is what the API exposes about a wallet. The signing key never leaves the service.
type Info struct {
	Address string          `json:"address"`
	Balance decimal.Decimal `json:"balance"`
}

type WalletService struct {
	Users  UserGetter
	Ledger ledger.Gateway
	Sealer *utils.Sealer
}

func NewWalletService(users UserGetter, gw ledger.Gateway, sealer *utils.Sealer) *WalletService {
	return &WalletService{Users: users, Ledger: gw, Sealer: sealer}
}

// Provision creates a fresh ledger account and returns its address and sealed key.
func (s *WalletService) Provision(ctx context.Context) (address, sealedKey string, err error) {
	acct, err := s.Ledger.CreateAccount(ctx)
	if err != nil {
		return "", "", err
	}
	sealed, err := s.Sealer.Seal(acct.PrivateKey)
	if err != nil {
		return "", "", apperror.Internal("seal wallet key", err)
	}
	return acct.Address, sealed, nil
}

// SigningKey opens the user's sealed key for a single ledger call.
func (s *WalletService) SigningKey(ctx context.Context, userID uuid.UUID) (string, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return "", err
	}
	key, err := s.Sealer.Open(u.WalletKey)
	if err != nil {
		return "", apperror.Internal("open wallet key", err)
	}
	return key, nil
}

func (s *WalletService) Address(ctx context.Context, userID uuid.UUID) (string, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.WalletAddress, nil
}

func (s *WalletService) Wallet(ctx context.Context, userID uuid.UUID) (Info, error) {
	addr, err := s.Address(ctx, userID)
	if err != nil {
		return Info{}, err
	}
	bal, err := s.Ledger.Balance(ctx, addr)
	if err != nil {
		return Info{}, err
	}
	return Info{Address: addr, Balance: bal}, nil
}

func (s *WalletService) user(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := s.Users.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperror.NotFound("user")
	}
	if err != nil {
		return nil, apperror.Store("get user", err)
	}
	return u, nil
}
