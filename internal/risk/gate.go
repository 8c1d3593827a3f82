package risk

import (
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"tradenode/internal/model"
	"tradenode/internal/order"
)

// Reason explains a deny decision.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonKillSwitch
	ReasonRateLimit
	ReasonMaxQty
	ReasonMaxNotional
	ReasonPositionLimit
	ReasonPriceBand
)

// String returns the reason name.
func (r Reason) String() string {
	switch r {
	case ReasonKillSwitch:
		return "KILL_SWITCH"
	case ReasonRateLimit:
		return "RATE_LIMIT"
	case ReasonMaxQty:
		return "MAX_QTY"
	case ReasonMaxNotional:
		return "MAX_NOTIONAL"
	case ReasonPositionLimit:
		return "POSITION_LIMIT"
	case ReasonPriceBand:
		return "PRICE_BAND"
	default:
		return "NONE"
	}
}

// Config defines pre-trade risk limits. Zero values disable a check.
type Config struct {
	KillSwitch           bool            `json:"killSwitch"`
	MaxOrderQty          decimal.Decimal `json:"maxOrderQty"`
	MaxOrderNotional     decimal.Decimal `json:"maxOrderNotional"`
	MaxPosition          decimal.Decimal `json:"maxPosition"`
	OrderRatePerSec      float64         `json:"orderRatePerSec"`
	OrderRateBurst       int             `json:"orderRateBurst"`
	MaxPriceDeviationBps int64           `json:"maxPriceDeviationBps"`
}

// StateView provides the current exposure snapshot for one instrument.
type StateView struct {
	Position       decimal.Decimal
	ReferencePrice decimal.Decimal
}

// Decision is the gate's verdict on a submit command.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Gate is the final mandatory checkpoint before any venue sink.
type Gate struct {
	cfg     Config
	limiter *rate.Limiter
}

// NewGate creates a risk gate with static limits.
func NewGate(cfg Config) *Gate {
	g := &Gate{cfg: cfg}
	if cfg.OrderRatePerSec > 0 {
		burst := cfg.OrderRateBurst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.OrderRatePerSec), burst)
	}
	return g
}

func deny(reason Reason) Decision {
	return Decision{Reason: reason}
}

// Evaluate applies the configured checks to an order before submission.
func (g *Gate) Evaluate(o *order.Order, state StateView) Decision {
	if g.cfg.KillSwitch {
		return deny(ReasonKillSwitch)
	}
	if g.limiter != nil && !g.limiter.Allow() {
		return deny(ReasonRateLimit)
	}
	if g.cfg.MaxOrderQty.IsPositive() && o.Quantity.GreaterThan(g.cfg.MaxOrderQty) {
		return deny(ReasonMaxQty)
	}

	price := o.Price
	if !price.IsPositive() {
		price = state.ReferencePrice
	}
	if g.cfg.MaxPriceDeviationBps > 0 && o.Type == model.OrderTypeLimit &&
		o.Price.IsPositive() && state.ReferencePrice.IsPositive() {
		diff := o.Price.Sub(state.ReferencePrice).Abs()
		band := state.ReferencePrice.
			Mul(decimal.NewFromInt(g.cfg.MaxPriceDeviationBps)).
			Div(decimal.NewFromInt(10000))
		if diff.GreaterThan(band) {
			return deny(ReasonPriceBand)
		}
	}

	if g.cfg.MaxOrderNotional.IsPositive() && price.IsPositive() {
		notional := price.Mul(o.Quantity)
		if notional.GreaterThan(g.cfg.MaxOrderNotional) {
			return deny(ReasonMaxNotional)
		}
	}

	if g.cfg.MaxPosition.IsPositive() {
		next := state.Position
		if o.Side == model.OrderSideBuy {
			next = next.Add(o.Quantity)
		} else {
			next = next.Sub(o.Quantity)
		}
		if next.Abs().GreaterThan(g.cfg.MaxPosition) {
			return deny(ReasonPositionLimit)
		}
	}

	return Decision{Allowed: true}
}
