package controller

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/thetanav/bit-bridge/internal/core"
	"github.com/thetanav/bit-bridge/internal/ledger"
	"github.com/thetanav/bit-bridge/internal/middlewareinternal"
	"github.com/thetanav/bit-bridge/internal/model"
	"github.com/thetanav/bit-bridge/internal/service"
	"go.uber.org/zap"
)

type LedgerController struct {
	ledgerService core.LedgerService
	logger        *zap.Logger
}

var (
	errTrailingData  = errors.New("unexpected data after request body")
	errMissingAmount = errors.New("amount is required")
)

type amountRequest struct {
	Amount *uint64 `json:"amount"`
}

type balanceResponse struct {
	Principal model.Principal `json:"principal"`
	Balance   uint64          `json:"balance"`
}

type receiptResponse struct {
	Operation model.Operation `json:"operation"`
	Amount    uint64          `json:"amount"`
	Balance   uint64          `json:"balance"`
	Message   string          `json:"message"`
}

type rejectionResponse struct {
	Error     string          `json:"error"`
	Operation model.Operation `json:"operation"`
	Amount    uint64          `json:"amount"`
	Balance   uint64          `json:"balance"`
	Message   string          `json:"message"`
}

type yieldFarmResponse struct {
	Operation model.Operation `json:"operation"`
	Message   string          `json:"message"`
}

func NewLedgerController(ledgerService core.LedgerService, logger *zap.Logger) *LedgerController {
	return &LedgerController{
		ledgerService: ledgerService,
		logger:        logger,
	}
}

// GetBalance answers for any principal named in the path; reading a balance
// needs no authentication.
func (c *LedgerController) GetBalance(w http.ResponseWriter, r *http.Request) {
	principal, err := model.ParsePrincipal(chi.URLParam(r, "principal"))
	if err != nil {
		http.Error(w, "Invalid principal", http.StatusBadRequest)
		return
	}

	render.JSON(w, r, balanceResponse{
		Principal: principal,
		Balance:   c.ledgerService.GetBalance(r.Context(), principal),
	})
}

func (c *LedgerController) GetOwnBalance(w http.ResponseWriter, r *http.Request) {
	principal, ok := middlewareinternal.GetPrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	render.JSON(w, r, balanceResponse{
		Principal: principal,
		Balance:   c.ledgerService.GetBalance(r.Context(), principal),
	})
}

func (c *LedgerController) Deposit(w http.ResponseWriter, r *http.Request) {
	c.handleAmount(w, r, c.ledgerService.Deposit)
}

func (c *LedgerController) Withdraw(w http.ResponseWriter, r *http.Request) {
	c.handleAmount(w, r, c.ledgerService.Withdraw)
}

func (c *LedgerController) Lend(w http.ResponseWriter, r *http.Request) {
	c.handleAmount(w, r, c.ledgerService.Lend)
}

func (c *LedgerController) Borrow(w http.ResponseWriter, r *http.Request) {
	c.handleAmount(w, r, c.ledgerService.Borrow)
}

func (c *LedgerController) YieldFarm(w http.ResponseWriter, r *http.Request) {
	principal, _ := middlewareinternal.GetPrincipalFromContext(r.Context())

	message, err := c.ledgerService.YieldFarm(r.Context(), principal)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	render.JSON(w, r, yieldFarmResponse{Operation: model.OperationYieldFarm, Message: message})
}

func (c *LedgerController) handleAmount(
	w http.ResponseWriter,
	r *http.Request,
	apply func(ctx context.Context, caller model.Principal, amount uint64) (model.Receipt, error),
) {
	principal, _ := middlewareinternal.GetPrincipalFromContext(r.Context())

	amount, err := decodeAmount(r.Body)
	if err != nil {
		c.logger.Debug("Invalid request format", zap.Error(err))
		http.Error(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	receipt, err := apply(r.Context(), principal, amount)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	render.JSON(w, r, receiptResponse{
		Operation: receipt.Operation,
		Amount:    receipt.Amount,
		Balance:   receipt.Balance,
		Message:   receipt.Message(),
	})
}

// decodeAmount reads exactly one JSON object carrying an amount.
func decodeAmount(body io.Reader) (uint64, error) {
	var request amountRequest
	dec := json.NewDecoder(body)
	if err := dec.Decode(&request); err != nil {
		return 0, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return 0, errTrailingData
	}
	if request.Amount == nil {
		return 0, errMissingAmount
	}
	return *request.Amount, nil
}

func (c *LedgerController) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var opErr *ledger.OperationError
	switch {
	case errors.Is(err, service.ErrAnonymousCaller):
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	case errors.As(err, &opErr) && errors.Is(err, ledger.ErrInsufficientBalance):
		render.Status(r, http.StatusPaymentRequired)
		render.JSON(w, r, rejection("insufficient_balance", opErr))
	case errors.As(err, &opErr) && errors.Is(err, ledger.ErrBalanceOverflow):
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, rejection("balance_overflow", opErr))
	default:
		c.logger.Error("Ledger operation failed", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func rejection(code string, opErr *ledger.OperationError) rejectionResponse {
	return rejectionResponse{
		Error:     code,
		Operation: opErr.Operation,
		Amount:    opErr.Amount,
		Balance:   opErr.Balance,
		Message:   opErr.Message(),
	}
}
