package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/services/accounts"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/services/wallet"
)

type ProfileHandler struct {
	Accounts *accounts.Service
	Wallets  *wallet.WalletService
}

func NewProfileHandler(acc *accounts.Service, w *wallet.WalletService) *ProfileHandler {
	return &ProfileHandler{Accounts: acc, Wallets: w}
}

func (h *ProfileHandler) Routes(r fiber.Router, authMiddleware ...fiber.Handler) {
	r.Get("/me", chain(authMiddleware, h.Me)...)
	r.Get("/wallet", chain(authMiddleware, h.Wallet)...)
	r.Get("/users/:id/profile", chain(authMiddleware, h.GetProfile)...)
	r.Put("/users/:id/profile", chain(authMiddleware, h.UpdateProfile)...)
}

func (h *ProfileHandler) Me(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return fail(c, err)
	}
	u, err := h.Accounts.GetProfile(c.UserContext(), uid)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "", userView(u))
}

func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	u, err := h.Accounts.GetProfile(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "", userView(u))
}

func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	uid, id, err := callerAndParam(c)
	if err != nil {
		return fail(c, err)
	}
	var req accounts.ProfileInput
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	p, err := h.Accounts.UpdateProfile(c.UserContext(), uid, id, req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "Profile updated", p)
}

// Wallet returns the caller's ledger address and balance.
func (h *ProfileHandler) Wallet(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return fail(c, err)
	}
	info, err := h.Wallets.Wallet(c.UserContext(), uid)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "", info)
}
