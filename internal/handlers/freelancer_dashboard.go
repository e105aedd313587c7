package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/middleware"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/models"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/services/lifecycle"
)

type FreelancerDashboardHandler struct {
	Projects *lifecycle.Service
}

func NewFreelancerDashboardHandler(svc *lifecycle.Service) *FreelancerDashboardHandler {
	return &FreelancerDashboardHandler{Projects: svc}
}

func (h *FreelancerDashboardHandler) Routes(r fiber.Router, authMiddleware ...fiber.Handler) {
	g := r.Group("/freelancer", chain(authMiddleware, middleware.RequireRoles(string(models.RoleFreelancer)))...)
	g.Get("/dashboard/stats", h.GetDashboardStats)
	g.Get("/orders", h.GetOrders)
}

// GetDashboardStats returns project counts and total earnings.
func (h *FreelancerDashboardHandler) GetDashboardStats(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return fail(c, err)
	}
	d, err := h.Projects.Dashboard(c.UserContext(), uid)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "", d)
}

// GetOrders lists projects currently assigned to the caller.
func (h *FreelancerDashboardHandler) GetOrders(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return fail(c, err)
	}
	list, err := h.Projects.ListAssignedForFreelancer(c.UserContext(), uid)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "", list)
}
