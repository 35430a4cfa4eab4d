// Package api exposes the ledger service over HTTP. It owns request
// parsing and status-code mapping only; every invariant lives in the
// ledger package.
package api

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/account-ledger-service/internal/interfaces"
	"github.com/sheikh-saqib/account-ledger-service/internal/ledger"
	"github.com/sheikh-saqib/account-ledger-service/internal/models"
)

type Handler struct {
	ledger *ledger.Ledger
	logger *zap.Logger
}

func NewHandler(l *ledger.Ledger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{ledger: l, logger: logger}
}

// Register mounts all routes on the app. metricsHandler may be nil when the
// service runs unmetered.
func (h *Handler) Register(app *fiber.App, metricsHandler http.Handler) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if metricsHandler != nil {
		app.Get("/metrics", adaptor.HTTPHandler(metricsHandler))
	}

	app.Post("/accounts", h.createAccount)
	app.Get("/accounts/:id", h.getAccount)
	app.Get("/accounts/:id/balance", h.getBalance)
	app.Get("/accounts/:id/ledger", h.getLedger)

	app.Post("/transfers", h.createTransfer)
	app.Post("/deposits", h.createDeposit)
	app.Post("/withdrawals", h.createWithdrawal)
}

type createAccountRequest struct {
	UserID   string `json:"user_id"`
	Type     string `json:"type"`
	Currency string `json:"currency"`
}

func (h *Handler) createAccount(c *fiber.Ctx) error {
	var req createAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	account, err := h.ledger.CreateAccount(c.Context(), req.UserID, req.Type, req.Currency)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(account)
}

func (h *Handler) getAccount(c *fiber.Ctx) error {
	account, err := h.ledger.GetAccount(c.Context(), c.Params("id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(account)
}

type balanceResponse struct {
	AccountID string          `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
}

func (h *Handler) getBalance(c *fiber.Ctx) error {
	accountID := c.Params("id")
	balance, err := h.ledger.GetBalance(c.Context(), accountID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(balanceResponse{AccountID: accountID, Balance: balance})
}

type ledgerResponse struct {
	Entries []models.LedgerEntry `json:"entries"`
	Total   int64                `json:"total"`
	Limit   int                  `json:"limit"`
	Offset  int                  `json:"offset"`
}

func (h *Handler) getLedger(c *fiber.Ctx) error {
	limit, offset, err := parsePagination(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	entries, total, err := h.ledger.GetLedger(c.Context(), c.Params("id"), limit, offset)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(ledgerResponse{Entries: entries, Total: total, Limit: limit, Offset: offset})
}

type createTransferRequest struct {
	SourceAccountID      string          `json:"source_account_id"`
	DestinationAccountID string          `json:"destination_account_id"`
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency"`
}

func (h *Handler) createTransfer(c *fiber.Ctx) error {
	var req createTransferRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	record, err := h.ledger.CreateTransfer(c.Context(),
		req.SourceAccountID, req.DestinationAccountID, req.Amount, req.Currency)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(record)
}

type singleLegRequest struct {
	AccountID string          `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}

func (h *Handler) createDeposit(c *fiber.Ctx) error {
	var req singleLegRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	record, err := h.ledger.CreateDeposit(c.Context(), req.AccountID, req.Amount, req.Currency)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(record)
}

func (h *Handler) createWithdrawal(c *fiber.Ctx) error {
	var req singleLegRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	record, err := h.ledger.CreateWithdrawal(c.Context(), req.AccountID, req.Amount, req.Currency)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(record)
}

func (h *Handler) respondError(c *fiber.Ctx, err error) error {
	switch {
	case ledger.IsValidation(err):
		return respond(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, interfaces.ErrNotFound):
		return respond(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, interfaces.ErrDuplicate):
		return respond(c, http.StatusConflict, "DUPLICATE", err.Error())
	case errors.Is(err, interfaces.ErrInsufficientFunds):
		return respond(c, http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", err.Error())
	case errors.Is(err, interfaces.ErrConflict):
		// Retryable: the caller may re-issue the whole operation.
		return respond(c, http.StatusConflict, "CONFLICT", err.Error())
	default:
		h.logger.Error("request failed", zap.Error(err))
		return respond(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
	}
}
