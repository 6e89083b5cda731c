package credits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"video-studio/internal/models"
)

// DefaultTimeout bounds the balance lookup.
const DefaultTimeout = 10 * time.Second

// Condition classifies the outcome of a balance lookup.
type Condition string

const (
	ConditionReady       Condition = "ready"
	ConditionNoCredits   Condition = "no_credits"
	ConditionUnavailable Condition = "unavailable"
)

// BalanceSource fetches the caller's balance. A nil balance with a nil
// error means the caller has no credit record.
type BalanceSource interface {
	GetCurrentUserCredits(ctx context.Context) (*models.CreditBalance, error)
}

// Result is the outcome of Gate.Load.
type Result struct {
	Condition Condition
	Balance   *models.CreditBalance
	Err       error
}

// HasCapacity reports whether a new job may be submitted.
func (r Result) HasCapacity() bool {
	return r.Condition == ConditionReady
}

// Remaining returns the remaining quota, zero when unknown.
func (r Result) Remaining() int {
	if r.Balance == nil {
		return 0
	}
	return r.Balance.Remaining()
}

// Error returns the sentinel explaining why submission is blocked, or nil.
func (r Result) Error() error {
	switch r.Condition {
	case ConditionReady:
		return nil
	case ConditionUnavailable:
		if r.Err != nil {
			return fmt.Errorf("%w: %v", models.ErrCreditsUnavailable, r.Err)
		}
		return models.ErrCreditsUnavailable
	default:
		return models.ErrNoCredits
	}
}

// Gate decides whether the caller may start a new job.
type Gate struct {
	source  BalanceSource
	timeout time.Duration
	logger  zerolog.Logger
}

func NewGate(source BalanceSource, timeout time.Duration, logger zerolog.Logger) *Gate {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gate{
		source:  source,
		timeout: timeout,
		logger:  logger,
	}
}

// Load fetches the balance under the gate timeout. Failures never escape as
// errors; they are folded into an unavailable Result.
func (g *Gate) Load(ctx context.Context) Result {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	balance, err := g.source.GetCurrentUserCredits(ctx)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("credit lookup timed out after %s: %w", g.timeout, err)
		}
		g.logger.Warn().Err(err).Msg("credits unavailable")
		return Result{Condition: ConditionUnavailable, Err: err}
	}

	if balance == nil {
		g.logger.Info().Msg("no credit record for current user")
		return Result{Condition: ConditionNoCredits}
	}

	condition := ConditionReady
	if !balance.HasCapacity() {
		condition = ConditionNoCredits
	}

	g.logger.Debug().
		Int("consumed", balance.Consumed).
		Int("available", balance.Available).
		Str("condition", string(condition)).
		Msg("credits loaded")

	return Result{Condition: condition, Balance: balance}
}
