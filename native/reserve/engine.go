package reserve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"flashreserve/core/events"
	"flashreserve/core/state"
	"flashreserve/crypto"
	"flashreserve/native/bank"
	nativecommon "flashreserve/native/common"
	"flashreserve/observability/metrics"
)

const (
	opInitialize = "initialize"
	opStake      = "stake"
	opUnstake    = "unstake"
	opHarvest    = "harvest"
	opFlashLoan  = "flash_loan"

	// DefaultClaimDecimals is used when InitParams leaves ClaimDecimals unset.
	DefaultClaimDecimals = 9
	// MaxFeeTiers bounds the size of the persisted tier list.
	MaxFeeTiers = 3
)

var tracer trace.Tracer = otel.Tracer("flashreserve/native/reserve")

// Engine executes reserve operations. Every operation runs under a single
// mutex against a staged state transaction; effects and events are published
// only when the whole operation succeeds.
type Engine struct {
	mu        sync.Mutex
	state     *state.Manager
	emitter   events.Emitter
	clock     Clock
	borrowers *Registry
	logger    *slog.Logger
	metrics   *metrics.ReserveMetrics
}

// NewEngine constructs a reserve engine with default dependencies.
func NewEngine(borrowers *Registry) *Engine {
	if borrowers == nil {
		borrowers = NewRegistry()
	}
	return &Engine{
		emitter:   events.NoopEmitter{},
		clock:     NewMonotonicClock(nil),
		borrowers: borrowers,
		logger:    slog.Default(),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(st *state.Manager) { e.state = st }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetClock overrides the time source used for cooldown checks.
func (e *Engine) SetClock(clock Clock) {
	if clock == nil {
		clock = NewMonotonicClock(nil)
	}
	e.clock = clock
}

// SetLogger configures the structured logger.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger.With("component", ModuleName)
}

// SetMetrics enables Prometheus instrumentation.
func (e *Engine) SetMetrics(m *metrics.ReserveMetrics) { e.metrics = m }

// Borrowers exposes the receiver registry.
func (e *Engine) Borrowers() *Registry { return e.borrowers }

type txn struct {
	st       *state.Manager
	cfg      *Config
	events   []events.Event
	logAttrs []any
}

func (t *txn) emit(evt events.Event) { t.events = append(t.events, evt) }

func (t *txn) log(attrs ...any) { t.logAttrs = append(t.logAttrs, attrs...) }

func (t *txn) balanceOf(addr crypto.Address, symbol string) (uint64, error) {
	bal, err := t.st.Balance(addr.Bytes(), symbol)
	if err != nil {
		return 0, err
	}
	return toUint64(bal)
}

func (t *txn) reserveBalance() (uint64, error) {
	return t.balanceOf(t.cfg.VaultAddress(), t.cfg.ReserveAsset)
}

func (t *txn) claimSupply() (uint64, error) {
	supply, err := t.st.TokenSupply(t.cfg.ClaimToken)
	if err != nil {
		return 0, err
	}
	return toUint64(supply)
}

func (t *txn) transfer(symbol string, from, to crypto.Address, amount uint64) error {
	return bank.Transfer(t.st, symbol, from.Bytes(), to.Bytes(), bigOf(amount))
}

func (t *txn) mintClaim(to crypto.Address, amount uint64) error {
	_, err := bank.Mint(t.st, t.cfg.ClaimToken, t.cfg.ConfigAddress().Bytes(), to.Bytes(), bigOf(amount))
	return err
}

func (t *txn) burnClaim(owner crypto.Address, amount uint64) error {
	_, err := bank.Burn(t.st, t.cfg.ClaimToken, owner.Bytes(), bigOf(amount))
	return err
}

func loadConfig(st *state.Manager) (*Config, bool, error) {
	cfg := new(Config)
	ok, err := st.KVGet(configKey, cfg)
	if err != nil {
		return nil, false, fmt.Errorf("reserve: load config: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return cfg, true, nil
}

// execute runs fn inside a staged transaction. The transaction is committed
// only if fn succeeds and ctx is still live; otherwise it is discarded.
func (e *Engine) execute(ctx context.Context, op string, fresh bool, fn func(context.Context, *txn) error) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	ctx, span := tracer.Start(ctx, "reserve."+op)
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	tx := &txn{st: e.state.Begin()}
	err := func() error {
		cfg, ok, err := loadConfig(tx.st)
		switch {
		case err != nil:
			return err
		case fresh && ok:
			return ErrAlreadyInitialized
		case !fresh && !ok:
			return ErrNotInitialized
		}
		tx.cfg = cfg
		if err := fn(ctx, tx); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return tx.st.Commit()
	}()
	if err != nil {
		tx.st.Discard()
		code := outcomeCode(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, code)
		e.metrics.ObserveOperation(op, code, time.Since(start))
		attrs := append([]any{"operation", op, "code", code, "kind", KindOf(err).String(), "error", err}, tx.logAttrs...)
		e.logger.Warn("reserve operation rejected", attrs...)
		return err
	}

	span.SetAttributes(attribute.String("reserve.operation", op))
	e.metrics.ObserveOperation(op, "", time.Since(start))
	e.publishPool(tx.cfg)
	e.logger.Info("reserve operation committed", append([]any{"operation", op}, tx.logAttrs...)...)
	for _, evt := range tx.events {
		e.emitter.Emit(evt)
	}
	return nil
}

func (e *Engine) publishPool(cfg *Config) {
	if e.metrics == nil || cfg == nil {
		return
	}
	view := &txn{st: e.state, cfg: cfg}
	reserve, err := view.reserveBalance()
	if err != nil {
		return
	}
	supply, err := view.claimSupply()
	if err != nil {
		return
	}
	e.metrics.SetPool(reserve, supply)
}

func validateFraction(f Fraction, capAtOne bool) error {
	if f.Denominator == 0 {
		return ErrInvalidFraction
	}
	if capAtOne && f.Numerator > f.Denominator {
		return fmt.Errorf("%w: %s exceeds 1", ErrInvalidFraction, f)
	}
	return nil
}

// Initialize creates the reserve configuration and registers the claim token
// with the derived config address as its mint authority. The reserve asset
// must already be registered.
func (e *Engine) Initialize(ctx context.Context, authority crypto.Address, params InitParams) (*Config, error) {
	if authority.IsZero() || params.Treasury.IsZero() {
		return nil, ErrInvalidAddress
	}
	if err := validateFraction(params.BaseFee, false); err != nil {
		return nil, err
	}
	if err := validateFraction(params.TreasuryFeeShare, true); err != nil {
		return nil, err
	}
	reserveAsset := strings.ToUpper(strings.TrimSpace(params.ReserveAsset))
	claimToken := strings.ToUpper(strings.TrimSpace(params.ClaimToken))
	if reserveAsset == "" || claimToken == "" || reserveAsset == claimToken {
		return nil, ErrInvalidToken
	}

	var created *Config
	err := e.execute(ctx, opInitialize, true, func(_ context.Context, tx *txn) error {
		if !tx.st.TokenExists(reserveAsset) {
			return fmt.Errorf("%w: reserve asset %s", bank.ErrUnknownToken, reserveAsset)
		}
		configAddr, configBump, err := crypto.DeriveAddress(programID, seedConfig)
		if err != nil {
			return err
		}
		_, vaultBump, err := crypto.DeriveAddress(programID, seedVault)
		if err != nil {
			return err
		}
		name := strings.TrimSpace(params.ClaimTokenName)
		if name == "" {
			name = claimToken + " reserve claim"
		}
		decimals := params.ClaimDecimals
		if decimals == 0 {
			decimals = DefaultClaimDecimals
		}
		if err := bank.RegisterToken(tx.st, claimToken, name, decimals, configAddr.Bytes()); err != nil {
			return fmt.Errorf("reserve: register claim token: %w", err)
		}
		cfg := &Config{
			Authority:          authority.Raw(),
			ReserveAsset:       reserveAsset,
			ClaimToken:         claimToken,
			BaseFee:            params.BaseFee,
			FeeTiers:           []FeeTier{},
			Treasury:           params.Treasury.Raw(),
			TreasuryFeeShare:   params.TreasuryFeeShare,
			MaxFlashLoanAmount: params.MaxFlashLoanAmount,
			CooldownPeriod:     params.CooldownPeriod,
			ConfigBump:         configBump,
			VaultBump:          vaultBump,
		}
		if err := tx.st.KVPut(configKey, cfg); err != nil {
			return err
		}
		tx.cfg = cfg
		tx.emit(WrapEvent(InitializedEvent(cfg)))
		tx.log("authority", authority.String(), "vault", cfg.VaultAddress().String())
		created = cfg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created.Clone(), nil
}

func requireCaller(caller crypto.Address) error {
	if caller.IsZero() {
		return ErrInvalidAddress
	}
	return nil
}

// Stake deposits amount of the reserve asset and mints the same amount of
// claim tokens to the caller. Deposits are never pausable.
func (e *Engine) Stake(ctx context.Context, caller crypto.Address, amount uint64) (*StakeReceipt, error) {
	var receipt *StakeReceipt
	err := e.execute(ctx, opStake, false, func(_ context.Context, tx *txn) error {
		if err := requireCaller(caller); err != nil {
			return err
		}
		if amount == 0 {
			return ErrInvalidAmount
		}
		if err := tx.transfer(tx.cfg.ReserveAsset, caller, tx.cfg.VaultAddress(), amount); err != nil {
			return err
		}
		if err := tx.mintClaim(caller, amount); err != nil {
			return err
		}
		reserve, err := tx.reserveBalance()
		if err != nil {
			return err
		}
		supply, err := tx.claimSupply()
		if err != nil {
			return err
		}
		receipt = &StakeReceipt{Caller: caller, Amount: amount, Minted: amount, Reserve: reserve, Supply: supply}
		tx.emit(WrapEvent(StakedEvent(receipt)))
		tx.emit(events.TokenSupply{Token: tx.cfg.ClaimToken, Total: bigOf(supply), Delta: bigOf(amount), Reason: events.SupplyReasonMint})
		tx.log("caller", caller.String(), "amount", amount)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// Unstake burns claim tokens and pays out floor(reserve*claim/supply) of the
// reserve asset. The burn happens before the vault is debited.
func (e *Engine) Unstake(ctx context.Context, caller crypto.Address, claim uint64) (*UnstakeReceipt, error) {
	var receipt *UnstakeReceipt
	err := e.execute(ctx, opUnstake, false, func(_ context.Context, tx *txn) error {
		if err := requireCaller(caller); err != nil {
			return err
		}
		if claim == 0 {
			return ErrInvalidAmount
		}
		supply, err := tx.claimSupply()
		if err != nil {
			return err
		}
		if supply == 0 {
			return ErrZeroSupply
		}
		reserve, err := tx.reserveBalance()
		if err != nil {
			return err
		}
		redeem, err := mulDiv(reserve, claim, supply)
		if err != nil {
			return err
		}
		if err := tx.burnClaim(caller, claim); err != nil {
			return err
		}
		if err := tx.transfer(tx.cfg.ReserveAsset, tx.cfg.VaultAddress(), caller, redeem); err != nil {
			return err
		}
		receipt = &UnstakeReceipt{
			Caller:   caller,
			Burned:   claim,
			Redeemed: redeem,
			Reserve:  reserve - redeem,
			Supply:   supply - claim,
		}
		tx.emit(WrapEvent(UnstakedEvent(receipt)))
		tx.emit(events.TokenSupply{Token: tx.cfg.ClaimToken, Total: bigOf(receipt.Supply), Delta: new(big.Int).Neg(bigOf(claim)), Reason: events.SupplyReasonBurn})
		tx.log("caller", caller.String(), "burned", claim, "redeemed", redeem)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// Harvest pays the caller the yield accrued on claim tokens without burning
// them: floor(reserve*claim/supply) - claim. The caller must hold claim.
func (e *Engine) Harvest(ctx context.Context, caller crypto.Address, claim uint64) (*HarvestReceipt, error) {
	var receipt *HarvestReceipt
	err := e.execute(ctx, opHarvest, false, func(_ context.Context, tx *txn) error {
		if err := requireCaller(caller); err != nil {
			return err
		}
		supply, err := tx.claimSupply()
		if err != nil {
			return err
		}
		if supply == 0 {
			return ErrZeroSupply
		}
		held, err := tx.balanceOf(caller, tx.cfg.ClaimToken)
		if err != nil {
			return err
		}
		if held < claim {
			return fmt.Errorf("%w: holds %d, claimed %d", ErrInsufficientClaim, held, claim)
		}
		reserve, err := tx.reserveBalance()
		if err != nil {
			return err
		}
		total, err := mulDiv(reserve, claim, supply)
		if err != nil {
			return err
		}
		if total <= claim {
			return ErrNothingToHarvest
		}
		owed := total - claim
		if err := tx.transfer(tx.cfg.ReserveAsset, tx.cfg.VaultAddress(), caller, owed); err != nil {
			return err
		}
		receipt = &HarvestReceipt{Caller: caller, Claim: claim, TotalValue: total, Owed: owed, Reserve: reserve - owed}
		tx.emit(WrapEvent(HarvestedEvent(receipt)))
		tx.log("caller", caller.String(), "claim", claim, "owed", owed)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// quoteFee applies the base fee, then lets the most recently appended tier
// whose threshold is at or below amount override it.
func quoteFee(cfg *Config, amount uint64) (*FeeQuote, error) {
	fee, err := mulDiv(amount, cfg.BaseFee.Numerator, cfg.BaseFee.Denominator)
	if err != nil {
		return nil, err
	}
	tierIndex := -1
	for i := len(cfg.FeeTiers) - 1; i >= 0; i-- {
		tier := cfg.FeeTiers[i]
		if tier.Threshold <= amount {
			if fee, err = mulDiv(amount, tier.Numerator, tier.Denominator); err != nil {
				return nil, err
			}
			tierIndex = i
			break
		}
	}
	treasury, err := mulDiv(fee, cfg.TreasuryFeeShare.Numerator, cfg.TreasuryFeeShare.Denominator)
	if err != nil {
		return nil, err
	}
	reserveShare, err := checkedSub(fee, treasury)
	if err != nil {
		return nil, err
	}
	return &FeeQuote{Amount: amount, Fee: fee, TreasuryShare: treasury, ReserveShare: reserveShare, TierIndex: tierIndex}, nil
}

// FlashLoan mints amount claim tokens to the caller, invokes the receiver's
// borrower, verifies its success signal, burns the principal back and
// collects the fee. Any failure leaves no trace.
func (e *Engine) FlashLoan(ctx context.Context, caller crypto.Address, req FlashLoanRequest) (*FlashLoanReceipt, error) {
	var receipt *FlashLoanReceipt
	err := e.execute(ctx, opFlashLoan, false, func(ctx context.Context, tx *txn) error {
		r := &FlashLoanReceipt{Caller: caller, Receiver: req.Receiver, Amount: req.Amount}
		e.advance(r, PhaseIdle)
		if err := e.flashLoan(ctx, tx, caller, req, r); err != nil {
			e.advance(r, PhaseAborted)
			tx.log("caller", caller.String(), "amount", req.Amount, "phase", r.Transitions[len(r.Transitions)-2].String())
			return err
		}
		e.advance(r, PhaseRepaid)
		tx.emit(WrapEvent(FlashLoanEvent(r)))
		tx.log("caller", caller.String(), "receiver", req.Receiver.String(), "amount", r.Amount, "fee", r.Fee)
		receipt = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.metrics.ObserveFlashLoan(receipt.Amount, receipt.ReserveShare, receipt.TreasuryShare)
	return receipt, nil
}

func (e *Engine) advance(r *FlashLoanReceipt, phase Phase) {
	r.Phase = phase
	r.Transitions = append(r.Transitions, phase)
	e.logger.Debug("flash loan phase", "caller", r.Caller.String(), "amount", r.Amount, "phase", phase.String())
}

func (e *Engine) flashLoan(ctx context.Context, tx *txn, caller crypto.Address, req FlashLoanRequest, r *FlashLoanReceipt) error {
	cfg := tx.cfg
	if err := requireCaller(caller); err != nil {
		return err
	}

	if err := nativecommon.Guard(cfg, ModuleName); err != nil {
		return ErrPaused
	}
	if req.Amount > cfg.MaxFlashLoanAmount {
		return fmt.Errorf("%w: %d > %d", ErrLoanTooBig, req.Amount, cfg.MaxFlashLoanAmount)
	}
	now := e.clock.Now()
	var record RateLimitRecord
	seen, err := tx.st.KVGet(recordKey(caller.Raw()), &record)
	if err != nil {
		return err
	}
	switch err := nativecommon.CheckCooldown(nativecommon.Cooldown{Last: record.LastLoanTime, Seen: seen}, cfg.CooldownPeriod, now); {
	case errors.Is(err, nativecommon.ErrCooldownActive):
		return fmt.Errorf("%w: last loan at %d, period %d, now %d", ErrCooldownActive, record.LastLoanTime, cfg.CooldownPeriod, now)
	case errors.Is(err, nativecommon.ErrCooldownOverflow):
		return fmt.Errorf("%w: cooldown deadline", ErrArithmeticOverflow)
	case err != nil:
		return err
	}
	if req.Amount == 0 {
		return ErrInvalidAmount
	}

	quote, err := quoteFee(cfg, req.Amount)
	if err != nil {
		return err
	}
	r.Fee, r.TreasuryShare, r.ReserveShare = quote.Fee, quote.TreasuryShare, quote.ReserveShare

	if err := tx.mintClaim(caller, req.Amount); err != nil {
		return err
	}
	e.advance(r, PhaseLoanIssued)

	borrower, ok := e.borrowers.Lookup(req.Receiver)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownReceiver, req.Receiver)
	}
	e.advance(r, PhaseCallbackPending)
	inv := &Invocation{
		Caller:       caller,
		Receiver:     req.Receiver,
		Amount:       req.Amount,
		Fee:          quote.Fee,
		ReserveAsset: cfg.ReserveAsset,
		ClaimToken:   cfg.ClaimToken,
		Payload:      append([]byte(nil), req.Payload...),
		Accounts:     append([]crypto.Address(nil), req.Accounts...),
		Ledger:       &invocationLedger{st: tx.st, caller: caller, receiver: req.Receiver},
	}
	signal, err := borrower.Invoke(ctx, inv)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvocationFailed, err)
	}
	if len(signal) == 0 {
		return ErrNoCallback
	}
	if signal[0] != 1 {
		return fmt.Errorf("%w: signal %d", ErrCallbackFailed, signal[0])
	}

	if err := tx.burnClaim(caller, req.Amount); err != nil {
		return err
	}
	if err := tx.transfer(cfg.ReserveAsset, caller, cfg.VaultAddress(), quote.ReserveShare); err != nil {
		return err
	}
	if err := tx.transfer(cfg.ReserveAsset, caller, cfg.TreasuryAddress(), quote.TreasuryShare); err != nil {
		return err
	}

	if err := tx.st.KVPut(recordKey(caller.Raw()), &RateLimitRecord{LastLoanTime: now}); err != nil {
		return err
	}
	r.LoanTime = now
	reserve, err := tx.reserveBalance()
	if err != nil {
		return err
	}
	r.Reserve = reserve
	return nil
}
