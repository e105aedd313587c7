package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/logger"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/metrics"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/middleware"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/realtime"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/services/accounts"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/services/lifecycle"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/services/wallet"
)

type AppDeps struct {
	Accounts  *accounts.Service
	Projects  *lifecycle.Service
	Wallets   *wallet.WalletService
	Hub       *realtime.Hub
	Log       logger.Logger
	JWTSecret string
	Expires   int

	CORSOrigins     string
	GoogleClientID  string
	GoogleSecret    string
	GoogleRedirect  string
	FrontendBaseURL string
}

// NewApp builds the fiber application with every route mounted.
func NewApp(d AppDeps) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(d.Log)})

	app.Use(middleware.RequestLogger(d.Log))
	if d.CORSOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     d.CORSOrigins,
			AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
			AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
			ExposeHeaders:    "Content-Length",
			AllowCredentials: true,
		}))
	}

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"success": true}) })
	app.Get("/metrics", metrics.Handler())

	authMW := []fiber.Handler{middleware.JWTFromCookie(d.JWTSecret), middleware.AttachJWTLocals()}

	api := app.Group("/api")

	authH := NewAuthHandler(d.Accounts, d.JWTSecret, d.Expires)
	authH.Routes(api)
	googleH := &GoogleOAuthHandler{
		Auth:            authH,
		Accounts:        d.Accounts,
		GoogleClientID:  d.GoogleClientID,
		GoogleSecret:    d.GoogleSecret,
		GoogleRedirect:  d.GoogleRedirect,
		FrontendBaseURL: d.FrontendBaseURL,
		Log:             d.Log,
	}
	googleH.Routes(api)

	NewProfileHandler(d.Accounts, d.Wallets).Routes(api, authMW...)
	NewProjectHandler(d.Projects).Routes(api, authMW...)
	NewFreelancerDashboardHandler(d.Projects).Routes(api, authMW...)

	if d.Hub != nil {
		NewRealtimeHandler(d.Hub, d.Log).Routes(app, authMW...)
	}
	return app
}
