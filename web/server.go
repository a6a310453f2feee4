// Package web serves the local ops API: mode switching, queue inspection,
// sync triggering, and Prometheus metrics, behind a JWT-protected credential.
package web

import (
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/relaykit/relaykit/internal/core/app"
	"github.com/relaykit/relaykit/web/handlers/api"
	"github.com/relaykit/relaykit/web/middleware"
)

const tokenTTL = 24 * time.Hour

type Config struct {
	Username  string
	Password  string
	JwtKey    string
	Port      string
	ApiPrefix string
}

type WebServer struct {
	config *Config
	core   *app.App
	auth   *api.AuthConfig
}

func NewWebServer(config *Config, core *app.App) (*WebServer, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(config.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &WebServer{
		config: config,
		core:   core,
		auth: &api.AuthConfig{
			Username:     config.Username,
			PasswordHash: hash,
			JwtSecret:    config.JwtKey,
			TokenTTL:     tokenTTL,
		},
	}, nil
}

func (ws *WebServer) SetupApp(logOutput io.Writer) *fiber.App {
	app := ws.configServer(logOutput)
	ws.AddApi(app)
	return app
}

func (ws *WebServer) AddApi(app *fiber.App) {
	// Public routes
	app.Post(ws.config.ApiPrefix+"/login", func(c *fiber.Ctx) error {
		return api.Login(c, ws.auth)
	})
	app.Get("/metrics", adaptor.HTTPHandler(
		promhttp.HandlerFor(ws.core.Metrics.Registry(), promhttp.HandlerOpts{})))

	// Protected routes
	apiGrp := app.Group(ws.config.ApiPrefix)
	apiGrp.Use(middleware.JwtMiddleware(ws.config.JwtKey))

	apiGrp.Get("/overview", func(c *fiber.Ctx) error {
		return api.GetOverview(c, ws.core)
	})

	apiGrp.Get("/queue", func(c *fiber.Ctx) error {
		return api.ListQueue(c, ws.core)
	})
	apiGrp.Post("/sync", func(c *fiber.Ctx) error {
		return api.SyncNow(c, ws.core)
	})

	apiGrp.Post("/mode", func(c *fiber.Ctx) error {
		return api.SwitchMode(c, ws.core)
	})
	apiGrp.Get("/services", func(c *fiber.Ctx) error {
		return api.GetServices(c, ws.core)
	})
	apiGrp.Put("/services", func(c *fiber.Ctx) error {
		return api.UpdateServices(c, ws.core)
	})

	apiGrp.Get("/profile", func(c *fiber.Ctx) error {
		return api.GetProfile(c, ws.core)
	})
	apiGrp.Post("/logout", func(c *fiber.Ctx) error {
		return api.Logout(c, ws.core)
	})
}

func (ws *WebServer) configServer(logOutput io.Writer) *fiber.App {
	config := fiber.Config{
		Prefork:               false,
		AppName:               "relaykit-ops-api",
		DisableStartupMessage: true,
	}
	app := fiber.New(config)

	app.Use(cors.New())
	if logOutput != nil {
		app.Use(logger.New(logger.Config{
			Output: logOutput,
		}))
	}
	return app
}
