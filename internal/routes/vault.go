package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/stake_vault/internal/vault"
)

// RegisterVaultRoutes wires the vault operation endpoints.
func RegisterVaultRoutes(r fiber.Router, h *vault.Handler) {
	r.Post("/vault/deposit", h.Deposit)
	r.Post("/vault/withdraw", h.Withdraw)
	r.Post("/vault/claim", h.Claim)
	r.Put("/vault/rate", h.SetRate)
	r.Get("/vault/stats", h.Stats)
	r.Get("/vault/accounts/:account/balance", h.Balance)
	r.Get("/vault/accounts/:account/preview", h.Preview)
}
