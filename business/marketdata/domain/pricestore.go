package domain

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fd1az/marketfeed/internal/apperror"
)

// PriceStore holds the last known fixed-point price per symbol. A symbol's
// scale never shrinks: once a price with N fractional digits has been seen,
// every later price is rescaled up to at least N digits before comparison.
type PriceStore struct {
	mu    sync.Mutex
	prices map[Symbol]FixedPrice
}

// NewPriceStore constructs an empty store.
func NewPriceStore() *PriceStore {
	return &PriceStore{prices: make(map[Symbol]FixedPrice)}
}

// SetLastPrice parses priceDigits (a plain decimal string such as
// "50000.1"), reconciles it against the symbol's stored scale and records
// the result. ts is the tick's ms-epoch timestamp; 0 means "now".
func (s *PriceStore) SetLastPrice(symbol Symbol, priceDigits string, ts uint64) (FixedPrice, uint64, error) {
	value, scale, err := parseDecimalDigits(priceDigits)
	if err != nil {
		return FixedPrice{}, 0, apperror.New(apperror.CodeDecodeMalformed,
			apperror.WithContext(symbol), apperror.WithCause(err))
	}
	if ts == 0 {
		ts = uint64(time.Now().UnixMilli())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.prices[symbol]
	if !ok {
		fp := FixedPrice{Value: value, Scale: scale}
		s.prices[symbol] = fp
		return fp, ts, nil
	}

	fp := reconcileScale(stored, FixedPrice{Value: value, Scale: scale})
	s.prices[symbol] = fp
	return fp, ts, nil
}

// GetLastPrice is a pure read of the stored price for symbol.
func (s *PriceStore) GetLastPrice(symbol Symbol) (FixedPrice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fp, ok := s.prices[symbol]
	return fp, ok
}

// reconcileScale merges an incoming reading into a stored one so the scale
// never shrinks: the lower-scale side is padded/rescaled up to the higher
// one. The resulting scale does not depend on order — applying a
// lower-precision then a higher-precision update (or vice versa) ends at
// the higher scale — while the value recorded is always the incoming one.
func reconcileScale(stored, incoming FixedPrice) FixedPrice {
	switch {
	case incoming.Scale == stored.Scale:
		return incoming
	case incoming.Scale < stored.Scale:
		// Incoming is coarser: pad it up to the stored scale and keep it
		// (it is still the newest observed value).
		return FixedPrice{
			Value: incoming.Value * pow10(stored.Scale-incoming.Scale),
			Scale: stored.Scale,
		}
	default:
		// Incoming is finer: the stored scale grows, but the value being
		// recorded is the incoming one, already at the finer scale.
		return incoming
	}
}

// rescale rescales a stored value from oldScale up to newScale (newScale
// must be >= oldScale); used by the OHLC engine to keep a bar's fields in
// sync with a finer-precision tick.
func rescale(value, oldScale, newScale uint64) uint64 {
	if newScale <= oldScale {
		return value
	}
	return value * pow10(newScale-oldScale)
}

func pow10(n uint64) uint64 {
	v := uint64(1)
	for i := uint64(0); i < n; i++ {
		v *= 10
	}
	return v
}

// parseDecimalDigits splits a plain decimal string ("50000.1", "50000") into
// its unscaled integer value and the number of fractional digits.
func parseDecimalDigits(s string) (value uint64, scale uint64, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, strconv.ErrSyntax
	}

	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return 0, 0, err
		}
		return v, 0, nil
	}

	intPart, fracPart := s[:dot], s[dot+1:]
	digits := intPart + fracPart
	if digits == "" {
		return 0, 0, strconv.ErrSyntax
	}
	v, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return v, uint64(len(fracPart)), nil
}

// FormatPrice renders a fixed-point value back into a decimal string.
// scale == 0 yields a plain integer; otherwise a '.' is inserted so exactly
// scale digits follow it, left-padding with zeros first if necessary
// (FormatPrice(5, 3) == "0.005").
func FormatPrice(value, scale uint64) string {
	if scale == 0 {
		return strconv.FormatUint(value, 10)
	}
	digits := strconv.FormatUint(value, 10)
	if uint64(len(digits)) <= scale {
		digits = strings.Repeat("0", int(scale)-len(digits)+1) + digits
	}
	split := len(digits) - int(scale)
	return digits[:split] + "." + digits[split:]
}
