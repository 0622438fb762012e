package api

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JhonesBR/go-bank-ledger/internal/api/account"
	"github.com/JhonesBR/go-bank-ledger/internal/api/transaction"
	"github.com/JhonesBR/go-bank-ledger/internal/api/user"
	"github.com/JhonesBR/go-bank-ledger/internal/helper"
	"github.com/JhonesBR/go-bank-ledger/internal/ledger"
	"github.com/JhonesBR/go-bank-ledger/internal/profile"
)

const headerRequestId = "X-Request-ID"

type Dependencies struct {
	Engine      *ledger.Engine
	Ledger      ledger.Store
	Users       profile.Store
	Logger      *zap.Logger
	CORSOrigins []string
}

// NewApp builds the fiber app with its middleware and every route mounted.
func NewApp(deps Dependencies) *fiber.App {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:      "go-bank-ledger",
		ErrorHandler: helper.ErrorHandler(deps.Logger),
	})
	app.Use(recoverer.New())
	if len(deps.CORSOrigins) > 0 {
		app.Use(cors.New(cors.Config{AllowOrigins: deps.CORSOrigins}))
	}
	app.Use(requestLogger(deps.Logger))

	InitializeRoutes(app, deps)
	return app
}

func InitializeRoutes(app *fiber.App, deps Dependencies) {
	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	user.InitializeRoutes(app, deps.Users)
	account.InitializeRoutes(app, deps.Engine, deps.Ledger)
	transaction.InitializeRoutes(app, deps.Engine, deps.Ledger)
}

func requestLogger(logger *zap.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		requestId := c.Get(headerRequestId)
		if requestId == "" {
			requestId = uuid.NewString()
		}
		c.Set(headerRequestId, requestId)

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = helper.StatusFor(err)
		}
		logger.Info("request",
			zap.String("request_id", requestId),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
		)
		return err
	}
}
