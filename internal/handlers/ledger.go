package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/securebank/backoffice/internal/services"
	"github.com/securebank/backoffice/types"
)

// LedgerHandler provides the account and transfer endpoints.
type LedgerHandler struct {
	ledgerService *services.LedgerService
}

func NewLedgerHandler(ledgerService *services.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerService: ledgerService}
}

// LedgerRouter registers ledger routes. Every route needs an admin session.
func LedgerRouter(r chi.Router, ledgerService *services.LedgerService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewLedgerHandler(ledgerService)

	r.Group(func(r chi.Router) {
		if authMiddleware != nil {
			r.Use(authMiddleware)
		}
		r.Use(requireAdmin)

		r.Get("/accounts", handler.ListAccounts)
		r.Post("/transfers", handler.CreateTransfer)
		r.Get("/transfers", handler.ListTransfers)
	})
}

func (h *LedgerHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.ledgerService.ListAccounts(r.Context(), sessionFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if accounts == nil {
		accounts = []types.Account{}
	}
	writeJSON(w, http.StatusOK, AccountListResponse{Accounts: accounts})
}

func (h *LedgerHandler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	transfer, err := h.ledgerService.Transfer(r.Context(), sessionFromContext(r.Context()), services.TransferRequest{
		SourceAccountID:      int64(req.SourceAccountID),
		DestinationAccountID: int64(req.DestinationAccountID),
		Amount:               string(req.Amount),
		Description:          req.Description,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, TransferResponse{TransferID: transfer.ID, Transfer: transfer})
}

func (h *LedgerHandler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	transfers, err := h.ledgerService.ListTransfers(r.Context(), sessionFromContext(r.Context()), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if transfers == nil {
		transfers = []types.Transfer{}
	}
	writeJSON(w, http.StatusOK, TransferListResponse{Transfers: transfers})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := sessionFromContext(r.Context())
		if session == nil {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		if !session.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// TransferRequest accepts ids and the amount as JSON numbers or strings.
type TransferRequest struct {
	SourceAccountID      flexID     `json:"source_account_id"`
	DestinationAccountID flexID     `json:"destination_account_id"`
	Amount               flexString `json:"amount"`
	Description          string     `json:"description"`
}

type TransferResponse struct {
	TransferID int64          `json:"transfer_id"`
	Transfer   types.Transfer `json:"transfer"`
}

type AccountListResponse struct {
	Accounts []types.Account `json:"accounts"`
}

type TransferListResponse struct {
	Transfers []types.Transfer `json:"transfers"`
}
