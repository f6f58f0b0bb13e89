package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"giftgram/internal/ledger"
	"giftgram/internal/push"
	"giftgram/internal/repo"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeLedgerError maps ledger error taxonomy onto distinct HTTP outcomes.
func (s *Server) writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		writeJSON(w, http.StatusPaymentRequired, errorResponse{Error: "insufficient_funds"})
	case errors.Is(err, ledger.ErrInvalidRecipient):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "invalid_recipient"})
	case errors.Is(err, ledger.ErrInvalidAmount):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_amount"})
	case errors.Is(err, ledger.ErrInvalidCode):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_code"})
	case errors.Is(err, push.ErrInvalidToken):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_token"})
	case errors.Is(err, repo.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found"})
	default:
		s.logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal"})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed_body"})
		return false
	}
	return true
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber string `json:"phoneNumber"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.PhoneNumber == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing_phone"})
		return
	}

	account, err := s.deps.Ledger.Register(r.Context(), req.PhoneNumber)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accountId": account.ID,
		"balance":   account.Balance,
		"unlimited": account.Unlimited,
	})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SenderID       string `json:"senderId"`
		RecipientPhone string `json:"recipientPhone"`
		Kind           string `json:"kind"`
		Message        string `json:"message"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SenderID == "" || req.RecipientPhone == "" || req.Kind == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing_fields"})
		return
	}

	balance, err := s.deps.Ledger.Send(r.Context(), req.SenderID, req.RecipientPhone, req.Kind, req.Message)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"balance": balance})
}

func (s *Server) handleGift(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SenderID       string `json:"senderId"`
		RecipientPhone string `json:"recipientPhone"`
		Amount         int64  `json:"amount"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SenderID == "" || req.RecipientPhone == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing_fields"})
		return
	}

	if err := s.deps.Ledger.Gift(r.Context(), req.SenderID, req.RecipientPhone, req.Amount); err != nil {
		s.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMailboxTake(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber string `json:"phoneNumber"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	item, err := s.deps.Ledger.TakeMailbox(r.Context(), req.PhoneNumber)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	if item == nil {
		writeJSON(w, http.StatusOK, map[string]any{"item": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": map[string]any{
		"kind":       item.ItemKind,
		"message":    item.Message,
		"receivedAt": item.ReceivedAt,
	}})
}

func (s *Server) handleMailboxFlush(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber string `json:"phoneNumber"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.deps.Ledger.FlushMailbox(r.Context(), req.PhoneNumber); err != nil {
		s.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMailboxArchive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber string `json:"phoneNumber"`
		Kind        string `json:"kind"`
		Message     string `json:"message"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.deps.Ledger.ArchiveMailbox(r.Context(), req.PhoneNumber, req.Kind, req.Message); err != nil {
		s.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	phone := r.URL.Query().Get("phone")
	if phone == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing_phone"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := s.deps.Ledger.Memory(r.Context(), phone, limit)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]any{
			"kind":    e.ItemKind,
			"message": e.Message,
			"savedAt": e.SavedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

func (s *Server) handlePushToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID string `json:"accountId"`
		Token     string `json:"token"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.AccountID == "" || req.Token == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing_fields"})
		return
	}
	if err := s.deps.Ledger.RegisterPushToken(r.Context(), req.AccountID, req.Token); err != nil {
		s.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID string `json:"accountId"`
		Code      string `json:"code"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.deps.Ledger.Redeem(r.Context(), req.AccountID, req.Code); err != nil {
		s.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	accountID := r.URL.Query().Get("accountId")
	if accountID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing_account"})
		return
	}

	snapshot, err := s.deps.Ledger.Balance(r.Context(), accountID)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PriceID   string `json:"priceId"`
		AccountID string `json:"accountId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.PriceID == "" || req.AccountID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing_fields"})
		return
	}
	if s.deps.Payments == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "payments_unavailable"})
		return
	}

	session, err := s.deps.Payments.CreateCheckoutSession(r.Context(), req.PriceID, req.AccountID)
	if err != nil {
		s.logger.Error("checkout session failed", "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "checkout_failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sessionUrl": session.URL})
}
