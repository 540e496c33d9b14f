package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ravilg/fxdesk/internal/entity"
	"github.com/ravilg/fxdesk/internal/errs"
	"github.com/ravilg/fxdesk/internal/services/amendment"
	"github.com/ravilg/fxdesk/internal/services/rates"
	"github.com/ravilg/fxdesk/internal/services/reconcile"
	"github.com/ravilg/fxdesk/internal/storage/journal"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errorStatus(err), errorResponse{Error: err.Error()})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, errs.ErrOrderNotFound),
		errors.Is(err, errs.ErrEntryNotFound),
		errors.Is(err, errs.ErrAmendmentNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrNoChanges),
		errors.Is(err, errs.ErrUnreconciledAmendment),
		errors.Is(err, errs.ErrInvalidRate):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errs.ErrOrderNotCompletable),
		errors.Is(err, errs.ErrAmendmentClosed):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func pathInt64(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

// rateLookup builds a lookup over the current currency table. A
// storage failure degrades to an empty lookup so the ambiguous
// default still applies instead of the request failing outright.
func (s *Server) rateLookup(r *http.Request) rates.RateLookup {
	currencies, err := s.storage.ListCurrencies(r.Context())
	if err != nil {
		s.logger.Warn("currency lookup unavailable", zap.Error(err))
		return func(string) (decimal.Decimal, bool) { return decimal.Decimal{}, false }
	}
	return rates.LookupFrom(currencies)
}

type createOrderRequest struct {
	CustomerID int64                   `json:"customerId"`
	HandlerID  entity.Optional[int64]  `json:"handlerId,omitzero"`
	Pair       entity.Pair             `json:"pair"`
	AmountBuy  decimal.Decimal         `json:"amountBuy"`
	AmountSell decimal.Decimal         `json:"amountSell"`
	Rate       decimal.Decimal         `json:"rate"`
	IsFlex     bool                    `json:"isFlex"`
	Remarks    entity.Optional[string] `json:"remarks,omitzero"`
}

func (s *Server) CreateOrderHandler(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid body"})
		return
	}

	lookup := s.rateLookup(r)

	order := entity.Order{
		CustomerID: req.CustomerID,
		HandlerID:  req.HandlerID,
		Pair:       req.Pair,
		AmountBuy:  req.AmountBuy,
		AmountSell: req.AmountSell,
		Rate:       req.Rate,
		IsFlex:     req.IsFlex,
		Status:     entity.StatusPending,
		Remarks:    req.Remarks,
	}

	if order.AmountSell.IsZero() {
		derived, err := rates.DeriveOtherLeg(order.AmountBuy, order.Rate,
			order.Pair.From, order.Pair.To, rates.BaseFrom, lookup)
		if err != nil {
			s.writeError(w, err)
			return
		}
		order.AmountSell = derived
	} else if !order.IsFlex {
		derived, err := rates.DeriveOtherLeg(order.AmountBuy, order.Rate,
			order.Pair.From, order.Pair.To, rates.BaseFrom, lookup)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if !reconcile.WithinTolerance(derived, order.AmountSell, s.tol.Leg) {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
				Error: "amountSell is inconsistent with amountBuy at the given rate",
			})
			return
		}
	}

	id, err := s.storage.CreateOrder(r.Context(), order)
	if err != nil {
		s.writeError(w, err)
		return
	}
	order.ID = id
	writeJSON(w, http.StatusCreated, order)
}

type orderResponse struct {
	Order   entity.Order         `json:"order"`
	Entries []entity.LedgerEntry `json:"entries"`
}

func (s *Server) GetOrderHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "orderID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid order id"})
		return
	}

	order, err := s.storage.GetOrder(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	entries, err := s.storage.ListEntries(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResponse{Order: order, Entries: entries})
}

type updateOrderRequest struct {
	entity.OrderProposal
	HandlerID        entity.Optional[int64]           `json:"handlerId,omitzero"`
	Status           *entity.OrderStatus              `json:"status,omitempty"`
	ActualAmountBuy  entity.Optional[decimal.Decimal] `json:"actualAmountBuy,omitzero"`
	ActualAmountSell entity.Optional[decimal.Decimal] `json:"actualAmountSell,omitzero"`
	ActualRate       entity.Optional[decimal.Decimal] `json:"actualRate,omitzero"`
}

// UpdateOrderHandler is the privileged direct edit path. Actors
// without edit rights go through the amendment workflow instead.
func (s *Server) UpdateOrderHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "orderID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid order id"})
		return
	}

	var req updateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid body"})
		return
	}
	if req.Status != nil && !req.Status.Valid() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid status"})
		return
	}

	order, err := s.storage.GetOrder(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	order = amendment.ApplyProposal(order, req.OrderProposal)
	if !req.HandlerID.IsAbsent() {
		// reassigning the handler revokes the previous handler's edit
		// rights; the UI warns before sending this
		if v, ok := req.HandlerID.Get(); ok {
			order.HandlerID = entity.Some(v)
		} else {
			order.HandlerID = entity.None[int64]()
		}
	}
	if v, ok := req.ActualAmountBuy.Get(); ok {
		order.ActualAmountBuy = entity.Some(v)
	}
	if v, ok := req.ActualAmountSell.Get(); ok {
		order.ActualAmountSell = entity.Some(v)
	}
	if v, ok := req.ActualRate.Get(); ok {
		order.ActualRate = entity.Some(v)
	}
	if req.Status != nil {
		order.Status = *req.Status
	}

	if err := s.storage.UpdateOrder(r.Context(), order); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) FundingReportHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "orderID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid order id"})
		return
	}

	order, err := s.storage.GetOrder(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	entries, err := s.storage.ListEntries(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	// the rate parameter carries the operator's flex override; a
	// present-but-empty value is an explicit clear, absence means no
	// override was entered
	var override *string
	if r.URL.Query().Has("rate") {
		v := r.URL.Query().Get("rate")
		override = &v
	}

	report, err := reconcile.BuildReport(order, entries, override, s.rateLookup(r), s.tol)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type completeRequest struct {
	Rate *string `json:"rate"`
}

type completeResult struct {
	status int
	body   any
}

type completionResponse struct {
	Status entity.OrderStatus `json:"status"`
	Report *reconcile.Report  `json:"report,omitempty"`
}

func (s *Server) CompleteOrderHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "orderID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid order id"})
		return
	}

	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid body"})
		return
	}

	key := journal.CompletionKey(id)
	lookup := s.rateLookup(r)

	result, err, _ := s.inflight.Do(key, func() (any, error) {
		// the execution is shared between collapsed callers, so it must
		// not die with the first caller's request context
		ctx := context.WithoutCancel(r.Context())

		if s.journal.Processed(key) {
			return completeResult{status: http.StatusOK,
				body: completionResponse{Status: entity.StatusCompleted}}, nil
		}

		order, err := s.storage.GetOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		entries, err := s.storage.ListEntries(ctx, id)
		if err != nil {
			return nil, err
		}

		report, err := reconcile.CheckCompletion(order, entries, req.Rate, lookup, s.tol)
		if err != nil {
			return nil, err
		}
		if !report.Eligible() {
			return completeResult{status: http.StatusConflict,
				body: completionResponse{Status: order.Status, Report: &report}}, nil
		}

		rec, err := s.journal.Prepare(journal.OpComplete, key, id)
		if err != nil {
			return nil, err
		}
		if err := s.storage.UpdateOrderStatus(ctx, id, entity.StatusCompleted); err != nil {
			_ = s.journal.MarkFailed(rec, err)
			return nil, err
		}
		if err := s.journal.MarkDone(rec); err != nil {
			s.logger.Error("journal mark done", zap.Error(err), zap.String("key", key))
		}

		return completeResult{status: http.StatusOK,
			body: completionResponse{Status: entity.StatusCompleted, Report: &report}}, nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	res := result.(completeResult)
	writeJSON(w, res.status, res.body)
}

type addEntryRequest struct {
	Kind      entity.EntryKind        `json:"kind"`
	Amount    decimal.Decimal         `json:"amount"`
	AccountID int64                   `json:"accountId"`
	ImagePath entity.Optional[string] `json:"imagePath,omitzero"`
}

type addEntryResponse struct {
	Entry   entity.LedgerEntry `json:"entry"`
	Warning string             `json:"warning,omitempty"`
}

func (s *Server) AddEntryHandler(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathInt64(r, "orderID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid order id"})
		return
	}

	var req addEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid body"})
		return
	}
	if req.Kind != entity.KindReceipt && req.Kind != entity.KindPayment {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "kind must be receipt or payment"})
		return
	}
	if !req.Amount.IsPositive() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "amount must be positive"})
		return
	}

	if _, err := s.storage.GetOrder(r.Context(), orderID); err != nil {
		s.writeError(w, err)
		return
	}

	entry := entity.LedgerEntry{
		OrderID:   orderID,
		Kind:      req.Kind,
		Amount:    req.Amount,
		AccountID: req.AccountID,
		Status:    entity.EntryDraft,
		ImagePath: req.ImagePath,
	}

	id, err := s.storage.AddEntry(r.Context(), entry)
	if err != nil {
		s.writeError(w, err)
		return
	}
	entry.ID = id

	resp := addEntryResponse{Entry: entry}
	if req.Kind == entity.KindPayment && s.balances != nil {
		if balance, ok := s.balances(r.Context(), req.AccountID); ok {
			if balance.Sub(req.Amount).IsNegative() {
				resp.Warning = "payment would leave the account balance negative"
			}
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) ConfirmEntryHandler(w http.ResponseWriter, r *http.Request) {
	orderID, err1 := pathInt64(r, "orderID")
	entryID, err2 := pathInt64(r, "entryID")
	if err1 != nil || err2 != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return
	}

	if err := s.storage.ConfirmEntry(r.Context(), orderID, entryID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) DeleteEntryHandler(w http.ResponseWriter, r *http.Request) {
	orderID, err1 := pathInt64(r, "orderID")
	entryID, err2 := pathInt64(r, "entryID")
	if err1 != nil || err2 != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return
	}

	if err := s.storage.DeleteEntry(r.Context(), orderID, entryID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type submitAmendmentRequest struct {
	Proposal entity.OrderProposal `json:"proposal"`
	Receipts []entity.LedgerEntry `json:"receipts"`
	Payments []entity.LedgerEntry `json:"payments"`
	Reason   string               `json:"reason"`
}

type submitAmendmentResponse struct {
	ID      string           `json:"id"`
	Changes entity.ChangeSet `json:"changes"`
}

func (s *Server) SubmitAmendmentHandler(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathInt64(r, "orderID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid order id"})
		return
	}

	var req submitAmendmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid body"})
		return
	}

	order, err := s.storage.GetOrder(r.Context(), orderID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	// one pending amendment per order; a double-clicked Save must not
	// queue a second one
	if order.Status == entity.StatusPendingAmend {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "order already has a pending amendment"})
		return
	}
	entries, err := s.storage.ListEntries(r.Context(), orderID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	snapshot := amendment.Snapshot{
		Order:    order,
		Receipts: entity.FilterKind(entries, entity.KindReceipt),
		Payments: entity.FilterKind(entries, entity.KindPayment),
	}
	proposal := amendment.Proposal{
		Order:    req.Proposal,
		Receipts: req.Receipts,
		Payments: req.Payments,
	}

	changes, err := amendment.Validate(snapshot, proposal, s.tol.Leg)
	if err != nil {
		s.writeError(w, err)
		return
	}

	amend := entity.AmendmentRequest{
		ID:          uuid.New().String(),
		OrderID:     orderID,
		Proposal:    req.Proposal,
		Receipts:    req.Receipts,
		Payments:    req.Payments,
		Reason:      req.Reason,
		Status:      entity.AmendmentPending,
		CreatedAt:   time.Now(),
		PriorStatus: order.Status,
	}
	if err := s.storage.CreateAmendment(r.Context(), amend); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.storage.UpdateOrderStatus(r.Context(), orderID, entity.StatusPendingAmend); err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, submitAmendmentResponse{ID: amend.ID, Changes: changes})
}

type amendmentResponse struct {
	Amendment entity.AmendmentRequest `json:"amendment"`
	Changes   entity.ChangeSet        `json:"changes"`
}

func (s *Server) GetAmendmentHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "amendmentID")

	amend, err := s.storage.GetAmendment(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	order, err := s.storage.GetOrder(r.Context(), amend.OrderID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	entries, err := s.storage.ListEntries(r.Context(), amend.OrderID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	changes := amendment.Diff(
		amendment.Snapshot{
			Order:    order,
			Receipts: entity.FilterKind(entries, entity.KindReceipt),
			Payments: entity.FilterKind(entries, entity.KindPayment),
		},
		amendment.Proposal{
			Order:    amend.Proposal,
			Receipts: amend.Receipts,
			Payments: amend.Payments,
		},
		s.tol.Leg)

	writeJSON(w, http.StatusOK, amendmentResponse{Amendment: amend, Changes: changes})
}

func (s *Server) ApplyAmendmentHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "amendmentID")
	key := journal.AmendmentKey(journal.OpAmendApply, id)

	result, err, _ := s.inflight.Do(key, func() (any, error) {
		ctx := context.WithoutCancel(r.Context())

		if s.journal.Processed(key) {
			return completeResult{status: http.StatusOK,
				body: map[string]string{"status": string(entity.AmendmentApplied)}}, nil
		}

		amend, err := s.storage.GetAmendment(ctx, id)
		if err != nil {
			return nil, err
		}
		if amend.Status != entity.AmendmentPending {
			return nil, errs.ErrAmendmentClosed
		}

		order, err := s.storage.GetOrder(ctx, amend.OrderID)
		if err != nil {
			return nil, err
		}

		updated := amendment.ApplyProposal(order, amend.Proposal)
		updated.Status = amend.PriorStatus

		entries := make([]entity.LedgerEntry, 0, len(amend.Receipts)+len(amend.Payments))
		for _, e := range amend.Receipts {
			e.OrderID = order.ID
			e.Kind = entity.KindReceipt
			entries = append(entries, e)
		}
		for _, e := range amend.Payments {
			e.OrderID = order.ID
			e.Kind = entity.KindPayment
			entries = append(entries, e)
		}

		rec, err := s.journal.Prepare(journal.OpAmendApply, key, order.ID)
		if err != nil {
			return nil, err
		}
		if err := s.storage.ApplyAmendment(ctx, id, updated, entries); err != nil {
			_ = s.journal.MarkFailed(rec, err)
			return nil, err
		}
		if err := s.journal.MarkDone(rec); err != nil {
			s.logger.Error("journal mark done", zap.Error(err), zap.String("key", key))
		}

		return completeResult{status: http.StatusOK,
			body: map[string]string{"status": string(entity.AmendmentApplied)}}, nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	res := result.(completeResult)
	writeJSON(w, res.status, res.body)
}

func (s *Server) DiscardAmendmentHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "amendmentID")
	key := journal.AmendmentKey(journal.OpAmendDiscard, id)

	result, err, _ := s.inflight.Do(key, func() (any, error) {
		ctx := context.WithoutCancel(r.Context())

		if s.journal.Processed(key) {
			return completeResult{status: http.StatusOK,
				body: map[string]string{"status": string(entity.AmendmentDiscarded)}}, nil
		}

		amend, err := s.storage.GetAmendment(ctx, id)
		if err != nil {
			return nil, err
		}
		if amend.Status != entity.AmendmentPending {
			return nil, errs.ErrAmendmentClosed
		}

		rec, err := s.journal.Prepare(journal.OpAmendDiscard, key, amend.OrderID)
		if err != nil {
			return nil, err
		}
		if err := s.storage.SetAmendmentStatus(ctx, id, entity.AmendmentDiscarded); err != nil {
			_ = s.journal.MarkFailed(rec, err)
			return nil, err
		}
		if err := s.storage.UpdateOrderStatus(ctx, amend.OrderID, amend.PriorStatus); err != nil {
			_ = s.journal.MarkFailed(rec, err)
			return nil, err
		}
		if err := s.journal.MarkDone(rec); err != nil {
			s.logger.Error("journal mark done", zap.Error(err), zap.String("key", key))
		}

		return completeResult{status: http.StatusOK,
			body: map[string]string{"status": string(entity.AmendmentDiscarded)}}, nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	res := result.(completeResult)
	writeJSON(w, res.status, res.body)
}

func (s *Server) ListCurrenciesHandler(w http.ResponseWriter, r *http.Request) {
	currencies, err := s.storage.ListCurrencies(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, currencies)
}

func (s *Server) UpsertCurrencyHandler(w http.ResponseWriter, r *http.Request) {
	var c entity.Currency
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid body"})
		return
	}
	c.Code = chi.URLParam(r, "code")

	if err := s.storage.UpsertCurrency(r.Context(), c); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) GetPreferenceHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt64(r, "userID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid user id"})
		return
	}

	value, ok, err := s.storage.GetPreference(r.Context(), userID, chi.URLParam(r, "key"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "preference not set"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"value": value})
}

func (s *Server) SetPreferenceHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt64(r, "userID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid user id"})
		return
	}

	var body struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid body"})
		return
	}

	if err := s.storage.SetPreference(r.Context(), userID, chi.URLParam(r, "key"), body.Value); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) ClearPreferenceHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt64(r, "userID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid user id"})
		return
	}

	if err := s.storage.ClearPreference(r.Context(), userID, chi.URLParam(r, "key")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
