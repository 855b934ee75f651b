package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"flashreserve/crypto"
	"flashreserve/native/reserve"
	"flashreserve/storage/history"
)

var (
	errHistoryDisabled = errors.New("history journal disabled")
	errEventsDisabled  = errors.New("event stream disabled")
)

type signedHandler func(ctx context.Context, r *http.Request, caller crypto.Address, body json.RawMessage) (any, error)

// signed decodes and authenticates an envelope, then runs h as the signer.
func (s *Server) signed(h signedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var env Envelope
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&env); err != nil {
			writeError(w, r, http.StatusBadRequest, "bad_request", fmt.Errorf("decode envelope: %w", err))
			return
		}
		caller, err := s.auth.Authenticate(r.URL.Path, &env)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "unauthenticated", err)
			return
		}
		out, err := h(r.Context(), r, caller, env.Body)
		if err != nil {
			var bad badRequest
			if errors.As(err, &bad) {
				writeError(w, r, http.StatusBadRequest, "bad_request", err)
				return
			}
			writeOpError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

type badRequest struct{ err error }

func (b badRequest) Error() string { return b.err.Error() }
func (b badRequest) Unwrap() error { return b.err }

func decodeBody(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return badRequest{errors.New("empty body")}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return badRequest{fmt.Errorf("decode body: %w", err)}
	}
	return nil
}

func decodeAddress(raw string) (crypto.Address, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(raw))
	if err != nil {
		return crypto.Address{}, badRequest{err}
	}
	return addr, nil
}

func (s *Server) handleStake(ctx context.Context, _ *http.Request, caller crypto.Address, body json.RawMessage) (any, error) {
	var req AmountRequest
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return s.engine.Stake(ctx, caller, req.Amount)
}

func (s *Server) handleUnstake(ctx context.Context, _ *http.Request, caller crypto.Address, body json.RawMessage) (any, error) {
	var req AmountRequest
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return s.engine.Unstake(ctx, caller, req.Amount)
}

func (s *Server) handleHarvest(ctx context.Context, _ *http.Request, caller crypto.Address, body json.RawMessage) (any, error) {
	var req AmountRequest
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	return s.engine.Harvest(ctx, caller, req.Amount)
}

func (s *Server) handleFlashLoan(ctx context.Context, _ *http.Request, caller crypto.Address, body json.RawMessage) (any, error) {
	var req FlashLoanRequest
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	receiver, err := decodeAddress(req.Receiver)
	if err != nil {
		return nil, err
	}
	accounts := make([]crypto.Address, 0, len(req.Accounts))
	for _, raw := range req.Accounts {
		addr, err := decodeAddress(raw)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, addr)
	}
	return s.engine.FlashLoan(ctx, caller, reserve.FlashLoanRequest{
		Amount:   req.Amount,
		Receiver: receiver,
		Payload:  req.Payload,
		Accounts: accounts,
	})
}

func (s *Server) handleAdmin(ctx context.Context, r *http.Request, caller crypto.Address, body json.RawMessage) (any, error) {
	var req AdminRequest
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	var err error
	switch op := chi.URLParam(r, "op"); op {
	case AdminUpdateFees:
		err = s.engine.UpdateFees(ctx, caller, req.Numerator, req.Denominator)
	case AdminSetPause:
		err = s.engine.SetPause(ctx, caller, req.Paused)
	case AdminAddFeeTier:
		err = s.engine.AddFeeTier(ctx, caller, req.Threshold, req.Numerator, req.Denominator)
	case AdminClearFeeTiers:
		err = s.engine.ClearFeeTiers(ctx, caller)
	case AdminSetTreasury:
		treasury, decodeErr := decodeAddress(req.Treasury)
		if decodeErr != nil {
			return nil, decodeErr
		}
		err = s.engine.SetTreasury(ctx, caller, treasury)
	case AdminSetTreasuryFeeShare:
		err = s.engine.SetTreasuryFeeShare(ctx, caller, req.Numerator, req.Denominator)
	case AdminSetMaxFlashLoan:
		err = s.engine.SetMaxFlashLoan(ctx, caller, req.Amount)
	case AdminSetCooldown:
		err = s.engine.SetCooldown(ctx, caller, req.Period)
	default:
		return nil, badRequest{fmt.Errorf("unknown admin operation %q", op)}
	}
	if err != nil {
		return nil, err
	}
	cfg, err := s.engine.Config()
	if err != nil {
		return nil, err
	}
	return newConfigView(cfg), nil
}

func (s *Server) handleFaucet(ctx context.Context, _ *http.Request, caller crypto.Address, _ json.RawMessage) (any, error) {
	balance, err := s.engine.Fund(ctx, caller, s.cfg.FaucetAmount)
	if err != nil {
		return nil, err
	}
	return &FundResponse{Address: caller.String(), Balance: balance}, nil
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.engine.Config()
	if err != nil {
		writeOpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newConfigView(cfg))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Snapshot()
	if err != nil {
		writeOpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	amount, err := strconv.ParseUint(r.URL.Query().Get("amount"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", fmt.Errorf("amount: %w", err))
		return
	}
	quote, err := s.engine.QuoteFee(amount)
	if err != nil {
		writeOpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (s *Server) pathAddress(w http.ResponseWriter, r *http.Request) (crypto.Address, bool) {
	addr, err := crypto.DecodeAddress(chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", err)
		return crypto.Address{}, false
	}
	return addr, true
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.pathAddress(w, r)
	if !ok {
		return
	}
	record, found, err := s.engine.Record(addr)
	if err != nil {
		writeOpError(w, r, err)
		return
	}
	view := RecordView{Address: addr.String(), Found: found}
	if found {
		view.LastLoanTime = record.LastLoanTime
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleHoldings(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.pathAddress(w, r)
	if !ok {
		return
	}
	holdings, err := s.engine.Holdings(addr)
	if err != nil {
		writeOpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, holdings)
}

func (s *Server) handleReceivers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ReceiversResponse{Receivers: s.engine.Borrowers().Receivers()})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, r, http.StatusNotFound, "history_disabled", errHistoryDisabled)
		return
	}
	q := r.URL.Query()
	filter := history.Filter{Type: q.Get("type"), Actor: q.Get("actor")}
	if raw := q.Get("after"); raw != "" {
		after, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "bad_request", fmt.Errorf("after: %w", err))
			return
		}
		filter.AfterID = after
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "bad_request", fmt.Errorf("limit: %w", err))
			return
		}
		filter.Limit = limit
	}
	if q.Get("format") == "parquet" {
		w.Header().Set("Content-Type", "application/vnd.apache.parquet")
		w.Header().Set("Content-Disposition", `attachment; filename="reserve-history.parquet"`)
		if _, err := s.history.ExportParquet(r.Context(), w, filter); err != nil {
			s.logger.Warn("history export failed", "error", err)
		}
		return
	}
	entries, err := s.history.Query(r.Context(), filter)
	if err != nil {
		writeOpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
