package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/middleware"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/models"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/services/lifecycle"
)

type ProjectHandler struct {
	Projects *lifecycle.Service
}

func NewProjectHandler(svc *lifecycle.Service) *ProjectHandler {
	return &ProjectHandler{Projects: svc}
}

func (h *ProjectHandler) Routes(r fiber.Router, authMiddleware ...fiber.Handler) {
	employer := middleware.RequireRoles(string(models.RoleEmployer))
	freelancer := middleware.RequireRoles(string(models.RoleFreelancer))

	g := r.Group("/projects", authMiddleware...)
	g.Get("/", h.ListOpen)
	g.Post("/", employer, h.Create)
	g.Get("/mine", employer, h.ListMine)
	g.Get("/assigned", freelancer, h.ListAssigned)
	g.Get("/:id", h.Get)
	g.Delete("/:id", employer, h.Delete)
	g.Post("/:id/hire", employer, h.Hire)
	g.Post("/:id/complete", freelancer, h.Complete)
	g.Post("/:id/release", employer, h.Release)
	g.Post("/:id/matches", employer, h.Matches)
	g.Get("/:id/contract", h.Contract)
	g.Get("/:id/events", h.Events)
}

type CreateProjectReq struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Budget      decimal.Decimal `json:"budget"`
}

func (h *ProjectHandler) Create(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return fail(c, err)
	}
	var req CreateProjectReq
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	p, err := h.Projects.CreateProject(c.UserContext(), uid, req.Title, req.Description, req.Budget)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusCreated, "Project created", p)
}

func (h *ProjectHandler) ListOpen(c *fiber.Ctx) error {
	list, err := h.Projects.ListOpen(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "", list)
}

func (h *ProjectHandler) ListMine(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return fail(c, err)
	}
	list, err := h.Projects.ListForEmployer(c.UserContext(), uid, models.ProjectStatus(c.Query("status")))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "", list)
}

func (h *ProjectHandler) ListAssigned(c *fiber.Ctx) error {
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

func (h *ProjectHandler) Get(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	p, err := h.Projects.GetProject(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "", p)
}

type HireReq struct {
	FreelancerID uuid.UUID `json:"freelancer_id"`
}

func (h *ProjectHandler) Hire(c *fiber.Ctx) error {
	uid, id, err := callerAndParam(c)
	if err != nil {
		return fail(c, err)
	}
	var req HireReq
	if err := c.BodyParser(&req); err != nil || req.FreelancerID == uuid.Nil {
		return badBody(c)
	}
	p, err := h.Projects.Hire(c.UserContext(), uid, id, req.FreelancerID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "Freelancer hired", p)
}

func (h *ProjectHandler) Complete(c *fiber.Ctx) error {
	uid, id, err := callerAndParam(c)
	if err != nil {
		return fail(c, err)
	}
	p, err := h.Projects.Complete(c.UserContext(), uid, id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "Work marked complete", p)
}

func (h *ProjectHandler) Release(c *fiber.Ctx) error {
	uid, id, err := callerAndParam(c)
	if err != nil {
		return fail(c, err)
	}
	p, err := h.Projects.Release(c.UserContext(), uid, id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "Payment released", p)
}

func (h *ProjectHandler) Delete(c *fiber.Ctx) error {
	uid, id, err := callerAndParam(c)
	if err != nil {
		return fail(c, err)
	}
	if err := h.Projects.Delete(c.UserContext(), uid, id); err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "Project deleted", nil)
}

type MatchReq struct {
	RequiredSkills string `json:"required_skills"`
	Description    string `json:"description"`
}

func (h *ProjectHandler) Matches(c *fiber.Ctx) error {
	uid, id, err := callerAndParam(c)
	if err != nil {
		return fail(c, err)
	}
	var req MatchReq
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badBody(c)
		}
	}
	res, err := h.Projects.MatchCandidates(c.UserContext(), uid, id, req.RequiredSkills, req.Description)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "", res)
}

func (h *ProjectHandler) Contract(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	st, err := h.Projects.ContractStatus(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "", st)
}

func (h *ProjectHandler) Events(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	ev, err := h.Projects.Events(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "", ev)
}

func callerAndParam(c *fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	uid, err := getUserUUID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return uid, id, nil
}
