package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/models"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/services/accounts"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/utils"
)

type AuthHandler struct {
	Accounts  *accounts.Service
	JWTSecret string
	Expires   int
}

func NewAuthHandler(svc *accounts.Service, secret string, expires int) *AuthHandler {
	return &AuthHandler{Accounts: svc, JWTSecret: secret, Expires: expires}
}

func (h *AuthHandler) Routes(r fiber.Router) {
	g := r.Group("/auth")
	g.Post("/register", h.Register)
	g.Post("/login", h.Login)
	g.Post("/logout", h.Logout)
}

func userView(u *models.User) fiber.Map {
	m := fiber.Map{
		"id":             u.ID,
		"username":       u.Username,
		"email":          u.Email,
		"role":           u.Role,
		"wallet_address": u.WalletAddress,
	}
	if u.FreelancerProfile != nil {
		m["freelancer_profile"] = u.FreelancerProfile
	}
	return m
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req accounts.RegisterInput
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	u, err := h.Accounts.Register(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}

	token, err := h.issue(c, u)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusCreated, "Registered", fiber.Map{"user": userView(u), "token": token})
}

type LoginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginReq
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	errs := utils.FieldErrors{}
	if strings.TrimSpace(req.Email) == "" {
		errs.Add("email", "Email is required")
	}
	if req.Password == "" {
		errs.Add("password", "Password is required")
	}
	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	u, err := h.Accounts.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return fail(c, err)
	}

	token, err := h.issue(c, u)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "Logged in", fiber.Map{"user": userView(u), "token": token})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     utils.TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   false,
		SameSite: "Lax",
	})

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logged out",
	})
}

// issue signs a session token and sets it as the jm_token cookie.
func (h *AuthHandler) issue(c *fiber.Ctx, u *models.User) (string, error) {
	token, err := utils.SignJWT(h.JWTSecret, u.ID.String(), string(u.Role), h.Expires)
	if err != nil {
		return "", err
	}
	c.Cookie(&fiber.Cookie{
		Name:     utils.TokenCookie,
		Value:    token,
		Path:     "/",
		HTTPOnly: true,
		Secure:   false,
		SameSite: "Lax",
		MaxAge:   h.Expires * 60,
	})
	return token, nil
}
