package eval

import (
	"encoding/base64"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

// registerBuiltins binds the default function library as hidden bindings so
// they are callable but never leak into variable snapshots.
func registerBuiltins(e *Engine) {
	e.SetHidden("uuid", Callable(func(args ...any) (any, error) {
		return uuid.NewString(), nil
	}))
	e.SetHidden("now", Callable(func(args ...any) (any, error) {
		return time.Now().Format(time.RFC3339), nil
	}))
	e.SetHidden("timestamp", Callable(func(args ...any) (any, error) {
		return float64(time.Now().Unix()), nil
	}))
	e.SetHidden("timestampMs", Callable(func(args ...any) (any, error) {
		return float64(time.Now().UnixMilli()), nil
	}))
	e.SetHidden("random", Callable(func(args ...any) (any, error) {
		max := 100.0
		if len(args) > 0 {
			if n, ok := toNumber(args[0]); ok {
				max = n
			}
		}
		if max <= 0 {
			return float64(0), nil
		}
		return float64(rand.Intn(int(max))), nil
	}))
	e.SetHidden("randomString", Callable(func(args ...any) (any, error) {
		length := 10
		if len(args) > 0 {
			if n, ok := toNumber(args[0]); ok {
				length = int(n)
			}
		}
		const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
		var sb strings.Builder
		for i := 0; i < length; i++ {
			sb.WriteByte(alphabet[rand.Intn(len(alphabet))])
		}
		return sb.String(), nil
	}))
	e.SetHidden("base64", Callable(func(args ...any) (any, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("base64 needs an argument")
		}
		return base64.StdEncoding.EncodeToString([]byte(Stringify(args[0]))), nil
	}))
	e.SetHidden("base64Decode", Callable(func(args ...any) (any, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("base64Decode needs an argument")
		}
		decoded, err := base64.StdEncoding.DecodeString(Stringify(args[0]))
		if err != nil {
			return nil, fmt.Errorf("base64Decode: %w", err)
		}
		return string(decoded), nil
	}))
	e.SetHidden("upper", Callable(func(args ...any) (any, error) {
		if len(args) == 0 {
			return "", nil
		}
		return strings.ToUpper(Stringify(args[0])), nil
	}))
	e.SetHidden("lower", Callable(func(args ...any) (any, error) {
		if len(args) == 0 {
			return "", nil
		}
		return strings.ToLower(Stringify(args[0])), nil
	}))
	e.SetHidden("sizeOf", Callable(func(args ...any) (any, error) {
		if len(args) == 0 {
			return float64(0), nil
		}
		switch v := args[0].(type) {
		case []any:
			return float64(len(v)), nil
		case map[string]any:
			return float64(len(v)), nil
		case string:
			return float64(len(v)), nil
		}
		return float64(0), nil
	}))
}

// DeepCopy copies maps and slices recursively. Callables are shared, not
// copied. Used by the memoization caches to keep cached values immutable.
func DeepCopy(v any) any {
	switch v := v.(type) {
	case map[string]any:
		dup := make(map[string]any, len(v))
		for k, val := range v {
			dup[k] = DeepCopy(val)
		}
		return dup
	case []any:
		dup := make([]any, len(v))
		for i, val := range v {
			dup[i] = DeepCopy(val)
		}
		return dup
	}
	return v
}
