package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jkemi/plipsql"
)

// ErrBadParam reports a malformed --param argument.
var ErrBadParam = errors.New("invalid --param")

// parseParams turns name[:type]=value arguments into a ParamMap.
// Supported types are string, int, float, bool and null; without a type the
// value is bound untyped and left to the driver. A repeated name wins last.
func parseParams(args []string) (plipsql.ParamMap, error) {
	out := make(plipsql.ParamMap, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("%w %q: expected name=value", ErrBadParam, arg)
		}
		name, typ, _ := strings.Cut(key, ":")
		if name == "" {
			return nil, fmt.Errorf("%w %q: empty name", ErrBadParam, arg)
		}
		p, err := typedParam(typ, raw)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrBadParam, arg, err)
		}
		out[name] = p
	}
	return out, nil
}

func typedParam(typ, raw string) (plipsql.Param, error) {
	switch strings.ToLower(typ) {
	case "":
		return plipsql.Value(raw), nil
	case "string", "varchar", "text":
		return plipsql.String(raw), nil
	case "int", "bigint":
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return plipsql.Param{}, err
		}
		return plipsql.Int64(n), nil
	case "float", "double":
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return plipsql.Param{}, err
		}
		return plipsql.Float64(f), nil
	case "bool", "boolean":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return plipsql.Param{}, err
		}
		return plipsql.Bool(b), nil
	case "null":
		return plipsql.NullOf(plipsql.Null), nil
	default:
		return plipsql.Param{}, fmt.Errorf("unknown type %q", typ)
	}
}
