package eval

import (
	"strings"

	"patternlang/internal/diag"
)

// evalBinaryString implements the two string operators spec.md §4.5
// calls out: `+` concatenates, and `*` repeats a string by an integer
// count. Any other operator involving a string operand is a type
// error rather than silently falling through to numeric arithmetic on
// the string's (zero) payload.
func evalBinaryString(op string, a, b Value, loc diag.Location) (Value, error) {
	switch op {
	case "+":
		if a.Kind != KindString || b.Kind != KindString {
			return Value{}, diag.NewSub(diag.KindSemantic, diag.SubTypeMismatch, "string concatenation requires both operands to be strings", loc)
		}
		return StringValue(a.Str + b.Str), nil
	case "*":
		str, count, ok := stringRepeatOperands(a, b)
		if !ok {
			return Value{}, diag.NewSub(diag.KindSemantic, diag.SubTypeMismatch, "string repetition requires a string and an integer operand", loc)
		}
		if count < 0 {
			return Value{}, diag.NewSub(diag.KindSemantic, diag.SubTypeMismatch, "string repetition count must not be negative", loc)
		}
		return StringValue(strings.Repeat(str, count)), nil
	case "==":
		if a.Kind == KindString && b.Kind == KindString {
			return BoolValue(a.Str == b.Str), nil
		}
		return Value{}, diag.NewSub(diag.KindSemantic, diag.SubTypeMismatch, "string comparison requires both operands to be strings", loc)
	case "!=":
		if a.Kind == KindString && b.Kind == KindString {
			return BoolValue(a.Str != b.Str), nil
		}
		return Value{}, diag.NewSub(diag.KindSemantic, diag.SubTypeMismatch, "string comparison requires both operands to be strings", loc)
	default:
		return Value{}, diag.NewSub(diag.KindSemantic, diag.SubTypeMismatch, "operator "+op+" is not defined for strings", loc)
	}
}

// stringRepeatOperands accepts the string operand on either side of
// `*` (`"x" * 3` and `3 * "x"` both read naturally).
func stringRepeatOperands(a, b Value) (str string, count int, ok bool) {
	if a.Kind == KindString && b.Kind != KindString {
		return a.Str, int(b.AsInt64()), true
	}
	if b.Kind == KindString && a.Kind != KindString {
		return b.Str, int(a.AsInt64()), true
	}
	return "", 0, false
}

// promote picks the result kind and signedness of a binary numeric
// operation: float beats int; among integers the result is signed only
// when both operands are signed, so any mixed-sign pair (128-bit or
// not) yields unsigned. Operand widths are not tracked, so no
// wider-width rule applies.
func promote(a, b Value) (Kind, bool /* resultSigned */) {
	if a.Kind == KindFloat || b.Kind == KindFloat {
		return KindFloat, true
	}
	aWide := a.Hi != 0
	bWide := b.Hi != 0
	if aWide || bWide {
		if a.Signed != b.Signed {
			return KindInt, false // unsigned 128-bit wins a mixed-sign 128-bit operation
		}
		return KindInt, a.Signed
	}
	return KindInt, a.Signed && b.Signed
}

// evalBinaryNumeric applies op to two already-evaluated numeric
// operands following promote's result kind/signedness.
func evalBinaryNumeric(op string, a, b Value) Value {
	kind, signed := promote(a, b)
	if kind == KindFloat {
		af, bf := a.AsFloat64(), b.AsFloat64()
		switch op {
		case "+":
			return FloatValue(af + bf)
		case "-":
			return FloatValue(af - bf)
		case "*":
			return FloatValue(af * bf)
		case "/":
			return FloatValue(af / bf)
		case "==":
			return BoolValue(af == bf)
		case "!=":
			return BoolValue(af != bf)
		case "<":
			return BoolValue(af < bf)
		case ">":
			return BoolValue(af > bf)
		case "<=":
			return BoolValue(af <= bf)
		case ">=":
			return BoolValue(af >= bf)
		}
		return FloatValue(0)
	}

	if signed {
		ai, bi := int64(a.Lo), int64(b.Lo)
		switch op {
		case "+":
			return mkInt(uint64(ai+bi), true)
		case "-":
			return mkInt(uint64(ai-bi), true)
		case "*":
			return mkInt(uint64(ai*bi), true)
		case "/":
			if bi == 0 {
				return mkInt(0, true)
			}
			return mkInt(uint64(ai/bi), true)
		case "%":
			if bi == 0 {
				return mkInt(0, true)
			}
			return mkInt(uint64(ai%bi), true)
		case "==":
			return BoolValue(ai == bi)
		case "!=":
			return BoolValue(ai != bi)
		case "<":
			return BoolValue(ai < bi)
		case ">":
			return BoolValue(ai > bi)
		case "<=":
			return BoolValue(ai <= bi)
		case ">=":
			return BoolValue(ai >= bi)
		case "&":
			return mkInt(uint64(ai&bi), true)
		case "|":
			return mkInt(uint64(ai|bi), true)
		case "^":
			return mkInt(uint64(ai^bi), true)
		case "<<":
			return mkInt(uint64(ai<<uint(bi)), true)
		case ">>":
			return mkInt(uint64(ai>>uint(bi)), true)
		}
		return mkInt(0, true)
	}

	au, bu := a.Lo, b.Lo
	switch op {
	case "+":
		return mkInt(au+bu, false)
	case "-":
		return mkInt(au-bu, false)
	case "*":
		return mkInt(au*bu, false)
	case "/":
		if bu == 0 {
			return mkInt(0, false)
		}
		return mkInt(au/bu, false)
	case "%":
		if bu == 0 {
			return mkInt(0, false)
		}
		return mkInt(au%bu, false)
	case "==":
		return BoolValue(au == bu)
	case "!=":
		return BoolValue(au != bu)
	case "<":
		return BoolValue(au < bu)
	case ">":
		return BoolValue(au > bu)
	case "<=":
		return BoolValue(au <= bu)
	case ">=":
		return BoolValue(au >= bu)
	case "&":
		return mkInt(au&bu, false)
	case "|":
		return mkInt(au|bu, false)
	case "^":
		return mkInt(au^bu, false)
	case "<<":
		return mkInt(au<<bu, false)
	case ">>":
		return mkInt(au>>bu, false)
	}
	return mkInt(0, false)
}

func mkInt(lo uint64, signed bool) Value {
	v := Value{Kind: KindInt, Lo: lo, Signed: signed}
	if signed && int64(lo) < 0 {
		v.Hi = ^uint64(0)
	}
	return v
}
