package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

// Number is either an exact integer or a float64. Integer arithmetic never
// overflows; mixing in a float switches the result to float64.
type Number struct {
	i       *big.Int
	f       float64
	isFloat bool
}

func IntNumber(n int64) Number { return Number{i: big.NewInt(n)} }

func FloatNumber(f float64) Number { return Number{f: f, isFloat: true} }

func (n Number) IsFloat() bool { return n.isFloat }

// Add returns n + o. Integers stay integers.
func (n Number) Add(o Number) Number {
	if n.isFloat || o.isFloat {
		return FloatNumber(n.float() + o.float())
	}
	return Number{i: new(big.Int).Add(n.int(), o.int())}
}

// GreaterThan reports whether n > limit.
func (n Number) GreaterThan(limit int64) bool {
	if n.isFloat {
		return n.f > float64(limit)
	}
	return n.int().Cmp(big.NewInt(limit)) > 0
}

func (n Number) String() string {
	if n.isFloat {
		return strconv.FormatFloat(n.f, 'g', -1, 64)
	}
	return n.int().String()
}

func (n Number) int() *big.Int {
	if n.i == nil {
		return new(big.Int)
	}
	return n.i
}

func (n Number) float() float64 {
	if n.isFloat {
		return n.f
	}
	f, _ := new(big.Float).SetInt(n.int()).Float64()
	return f
}

// ToNumber coerces v into the numeric domain. Numeric strings are accepted;
// nil, booleans, NaN, infinities and anything non-scalar are not.
func ToNumber(v any) (Number, error) {
	switch x := v.(type) {
	case Number:
		return x, nil
	case int:
		return IntNumber(int64(x)), nil
	case int8:
		return IntNumber(int64(x)), nil
	case int16:
		return IntNumber(int64(x)), nil
	case int32:
		return IntNumber(int64(x)), nil
	case int64:
		return IntNumber(x), nil
	case uint:
		return Number{i: new(big.Int).SetUint64(uint64(x))}, nil
	case uint8:
		return IntNumber(int64(x)), nil
	case uint16:
		return IntNumber(int64(x)), nil
	case uint32:
		return IntNumber(int64(x)), nil
	case uint64:
		return Number{i: new(big.Int).SetUint64(x)}, nil
	case float32:
		return finite(float64(x))
	case float64:
		return finite(x)
	case json.Number:
		return parseNumber(string(x))
	case string:
		return parseNumber(x)
	case pgtype.Numeric:
		return numericToNumber(x)
	case pgtype.Int8:
		if !x.Valid {
			return Number{}, fmt.Errorf("%w: NULL", ErrNotNumeric)
		}
		return IntNumber(x.Int64), nil
	case pgtype.Float8:
		if !x.Valid {
			return Number{}, fmt.Errorf("%w: NULL", ErrNotNumeric)
		}
		return finite(x.Float64)
	default:
		return Number{}, fmt.Errorf("%w: %T", ErrNotNumeric, v)
	}
}

func parseNumber(s string) (Number, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Number{}, fmt.Errorf("%w: empty string", ErrNotNumeric)
	}
	if i, ok := new(big.Int).SetString(s, 10); ok {
		return Number{i: i}, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Number{}, fmt.Errorf("%w: %q", ErrNotNumeric, s)
	}
	return finite(f)
}

// finite wraps f as a Number, rejecting NaN and ±Inf.
func finite(f float64) (Number, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Number{}, fmt.Errorf("%w: %v", ErrNotNumeric, f)
	}
	return FloatNumber(f), nil
}

// numericToNumber converts a PostgreSQL NUMERIC. Integral values stay exact.
func numericToNumber(n pgtype.Numeric) (Number, error) {
	if !n.Valid {
		return Number{}, fmt.Errorf("%w: NULL", ErrNotNumeric)
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return Number{}, fmt.Errorf("%w: non-finite NUMERIC", ErrNotNumeric)
	}

	digits := n.Int
	if digits == nil {
		digits = new(big.Int)
	}
	if n.Exp >= 0 {
		scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n.Exp)), nil)
		return Number{i: new(big.Int).Mul(digits, scale)}, nil
	}

	div := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-n.Exp)), nil)
	quo, rem := new(big.Int).QuoRem(digits, div, new(big.Int))
	if rem.Sign() == 0 {
		return Number{i: quo}, nil
	}
	f, _ := new(big.Rat).SetFrac(digits, div).Float64()
	return FloatNumber(f), nil
}

// TruncateToInt64 converts v to an int64, truncating toward zero.
func TruncateToInt64(v any) (int64, error) {
	n, err := ToNumber(v)
	if err != nil {
		return 0, err
	}
	if n.isFloat {
		if n.f >= math.MaxInt64 || n.f < math.MinInt64 {
			return 0, fmt.Errorf("%w: %s out of range", ErrNotNumeric, n)
		}
		return int64(n.f), nil
	}
	if !n.int().IsInt64() {
		return 0, fmt.Errorf("%w: %s out of range", ErrNotNumeric, n)
	}
	return n.int().Int64(), nil
}
