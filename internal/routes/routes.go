package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/stake_vault/internal/authority"
	"github.com/congo-pay/stake_vault/internal/config"
	"github.com/congo-pay/stake_vault/internal/middleware"
	"github.com/congo-pay/stake_vault/internal/notification"
	"github.com/congo-pay/stake_vault/internal/transfer"
	"github.com/congo-pay/stake_vault/internal/vault"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares, builds the vault service and wires all routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)

	ctx := context.Background()

	var store vault.Store
	if d.DB != nil {
		pg := vault.NewPostgresStore(d.DB)
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		store = pg
	} else {
		store = vault.NewMemoryStore()
	}

	var auth authority.Authority
	if d.Cfg.AdminKeyHash != "" {
		adminKey, err := authority.NewAdminKey(d.Cfg.AdminKeyHash)
		if err != nil {
			return err
		}
		auth = adminKey
	} else {
		// Rate changes stay locked until an admin key hash is configured.
		d.Logger.Warn("no admin key hash configured; reward rate changes are disabled")
		auth = authority.Static{Allow: false}
	}

	notifier := notification.NewLoggerNotifier(d.Logger)

	svc, err := vault.NewService(ctx, vault.Config{
		DepositAsset: d.Cfg.DepositAsset,
		RewardAsset:  d.Cfg.RewardAsset,
		InitialRate:  d.Cfg.RewardRate,
	}, store, transfer.StaticTransferor{}, auth, notifier, vault.SystemClock(), d.Logger)
	if err != nil {
		return err
	}

	handler := vault.NewHandler(svc)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterVaultRoutes(api, handler)

	return nil
}
