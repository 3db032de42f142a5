package vault

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/stake_vault/internal/accrual"
	"github.com/congo-pay/stake_vault/internal/authority"
	"github.com/congo-pay/stake_vault/internal/transfer"
)

const adminKeyHeader = "X-Admin-Key"

// Handler exposes vault HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a vault HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type amountRequest struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}

type claimRequest struct {
	Account string `json:"account"`
}

type rateRequest struct {
	Caller string `json:"caller"`
	Rate   uint64 `json:"rate"`
}

// Deposit credits the caller's account with the posted amount.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	balance, err := h.service.Deposit(c.UserContext(), req.Account, req.Amount)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"account": req.Account,
		"balance": balance,
	})
}

// Withdraw debits the caller's account by the posted amount.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	balance, err := h.service.Withdraw(c.UserContext(), req.Account, req.Amount)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"account": req.Account,
		"balance": balance,
	})
}

// Claim pays out the caller's accrued rewards.
func (h *Handler) Claim(c *fiber.Ctx) error {
	var req claimRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	claimed, err := h.service.Claim(c.UserContext(), req.Account)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"account": req.Account,
		"claimed": claimed,
	})
}

// Balance returns the stored balance for an account.
func (h *Handler) Balance(c *fiber.Ctx) error {
	account := c.Params("account")
	balance, err := h.service.BalanceOf(account)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"account": account,
		"balance": balance,
	})
}

// Preview returns the projected claimable rewards for an account.
func (h *Handler) Preview(c *fiber.Ctx) error {
	account := c.Params("account")
	claimable, err := h.service.PreviewClaim(account)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"account":   account,
		"claimable": claimable,
	})
}

// SetRate replaces the reward rate. Requires the admin key header.
func (h *Handler) SetRate(c *fiber.Ctx) error {
	var req rateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	caller := req.Caller
	if caller == "" {
		caller = "admin"
	}
	if err := h.service.SetRewardRate(c.UserContext(), caller, c.Get(adminKeyHeader), req.Rate); err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"caller": caller,
		"rate":   req.Rate,
	})
}

// Stats reports the vault-wide ledger figures.
func (h *Handler) Stats(c *fiber.Ctx) error {
	stats := h.service.Stats()
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"total_deposited": stats.TotalDeposited,
		"rate_per_second": stats.RatePerSecond,
		"last_checkpoint": stats.LastCheckpoint,
		"reward_per_unit": stats.RewardPerUnit,
	})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, accrual.ErrInsufficientBalance):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, authority.ErrUnauthorized):
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, transfer.ErrRejected):
		return fiber.NewError(http.StatusBadGateway, err.Error())
	case errors.Is(err, accrual.ErrArithmeticOverflow):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
