package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/logger"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/utils"
)

const secret = "test-secret"

func newApp(t *testing.T) *fiber.App {
	t.Helper()
	app := fiber.New()
	app.Use(RequestLogger(logger.NewTest(t)))
	auth := app.Group("/", JWTFromCookie(secret), AttachJWTLocals())
	auth.Get("/me", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("userId").(string) + ":" + c.Locals("role").(string))
	})
	auth.Get("/employers", RequireRoles("employer"), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func token(t *testing.T, uid, role string) string {
	t.Helper()
	tok, err := utils.SignJWT(secret, uid, role, 5)
	require.NoError(t, err)
	return tok
}

func TestTokenSources(t *testing.T) {
	app := newApp(t)
	tok := token(t, "u1", "Employer")

	cookie := httptest.NewRequest("GET", "/me", nil)
	cookie.Header.Set("Cookie", utils.TokenCookie+"="+tok)

	bearer := httptest.NewRequest("GET", "/me", nil)
	bearer.Header.Set("Authorization", "Bearer "+tok)

	query := httptest.NewRequest("GET", "/me?token="+tok, nil)

	for name, req := range map[string]*http.Request{"cookie": cookie, "bearer": bearer, "query": query} {
		resp, err := app.Test(req)
		require.NoError(t, err, name)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode, name)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "u1:employer", string(body), name)
	}
}

func TestRejectsMissingOrForgedToken(t *testing.T) {
	app := newApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/me", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	forged, err := utils.SignJWT("other-secret", "u1", "employer", 5)
	require.NoError(t, err)
	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, "", "employer"))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireRoles(t *testing.T) {
	app := newApp(t)

	req := httptest.NewRequest("GET", "/employers", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, "u1", "freelancer"))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest("GET", "/employers", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, "u2", "employer"))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
