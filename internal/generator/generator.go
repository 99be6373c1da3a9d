// Package generator builds the value generators that can be registered in a
// binding context from test-set configuration.
package generator

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/wesleyorama2/restbench/internal/binding"
	"github.com/wesleyorama2/restbench/internal/parsing"
)

// ErrUnknownType is returned for an unrecognised generator type.
var ErrUnknownType = errors.New("unknown generator type")

// CharacterSets lists the named character sets accepted by random_text.
var CharacterSets = map[string]string{
	"ascii_letters":   "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ",
	"ascii_lowercase": "abcdefghijklmnopqrstuvwxyz",
	"ascii_uppercase": "ABCDEFGHIJKLMNOPQRSTUVWXYZ",
	"digits":          "0123456789",
	"hexdigits":       "0123456789abcdefABCDEF",
	"hex_lower":       "0123456789abcdef",
	"hex_upper":       "0123456789ABCDEF",
	"letters":         "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ",
	"lowercase":       "abcdefghijklmnopqrstuvwxyz",
	"uppercase":       "ABCDEFGHIJKLMNOPQRSTUVWXYZ",
	"octdigits":       "01234567",
	"punctuation":     "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~",
	"alphanumeric":    "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789",
}

const defaultTextLength = 8

// NumberSequence counts up from start by increment forever.
func NumberSequence(start, increment int) binding.Generator {
	next := start
	return binding.GeneratorFunc(func() (interface{}, error) {
		v := next
		next += increment
		return v, nil
	})
}

// RandomInt returns uniformly distributed integers in [min, max].
func RandomInt(r *rand.Rand, lo, hi int) (binding.Generator, error) {
	if hi < lo {
		return nil, fmt.Errorf("random_int: max %d is below min %d", hi, lo)
	}
	span := uint64(hi) - uint64(lo)
	return binding.GeneratorFunc(func() (interface{}, error) {
		if span == math.MaxUint64 {
			return int(r.Uint64()), nil
		}
		return lo + int(r.Uint64N(span+1)), nil
	}), nil
}

// RandomText returns random strings drawn from charset with a length in
// [minLength, maxLength].
func RandomText(r *rand.Rand, charset string, minLength, maxLength int) (binding.Generator, error) {
	if charset == "" {
		return nil, errors.New("random_text: empty character set")
	}
	if minLength < 0 || maxLength < minLength {
		return nil, fmt.Errorf("random_text: invalid length range [%d, %d]", minLength, maxLength)
	}
	chars := []rune(charset)
	return binding.GeneratorFunc(func() (interface{}, error) {
		n := minLength
		if maxLength > minLength {
			n += r.IntN(maxLength - minLength + 1)
		}
		var sb strings.Builder
		for i := 0; i < n; i++ {
			sb.WriteRune(chars[r.IntN(len(chars))])
		}
		return sb.String(), nil
	}), nil
}

// FixedSequence yields values in order. When cycle is true it starts over at
// the end; otherwise it reports binding.ErrGeneratorExhausted.
func FixedSequence(values []interface{}, cycle bool) (binding.Generator, error) {
	if len(values) == 0 {
		return nil, errors.New("fixed_sequence: no values")
	}
	i := 0
	return binding.GeneratorFunc(func() (interface{}, error) {
		if i >= len(values) {
			if !cycle {
				return nil, binding.ErrGeneratorExhausted
			}
			i = 0
		}
		v := values[i]
		i++
		return v, nil
	}), nil
}

// Choice picks a random element of values on every draw.
func Choice(r *rand.Rand, values []interface{}) (binding.Generator, error) {
	if len(values) == 0 {
		return nil, errors.New("choice: no values")
	}
	return binding.GeneratorFunc(func() (interface{}, error) {
		return values[r.IntN(len(values))], nil
	}), nil
}

// EnvVariable reads the named environment variable on every draw.
func EnvVariable(name string) binding.Generator {
	return binding.GeneratorFunc(func() (interface{}, error) {
		return os.Getenv(name), nil
	})
}

var envPlaceholder = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// EnvString substitutes {{NAME}} placeholders with environment values on
// every draw.
func EnvString(tmpl string) binding.Generator {
	return binding.GeneratorFunc(func() (interface{}, error) {
		return envPlaceholder.ReplaceAllStringFunc(tmpl, func(m string) string {
			return os.Getenv(envPlaceholder.FindStringSubmatch(m)[1])
		}), nil
	})
}

// UUID yields random version 4 UUIDs.
func UUID() binding.Generator {
	return binding.GeneratorFunc(func() (interface{}, error) {
		id, err := uuid.NewRandom()
		if err != nil {
			return nil, err
		}
		return id.String(), nil
	})
}

// Types lists the generator types Parse understands.
func Types() []string {
	return []string{
		"choice",
		"env_string",
		"env_variable",
		"fixed_sequence",
		"number_sequence",
		"random_int",
		"random_text",
		"uuid",
	}
}

// Option configures Parse.
type Option func(*options)

type options struct {
	rand *rand.Rand
}

// WithRand sets the random source used by random generators.
func WithRand(r *rand.Rand) Option {
	return func(o *options) { o.rand = r }
}

// Parse builds a generator from a configuration node such as
// {type: number_sequence, start: 10}.
func Parse(node interface{}, opts ...Option) (binding.Generator, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rand == nil {
		o.rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	cfg, err := parsing.Node(node)
	if err != nil {
		return nil, fmt.Errorf("generator config: %w", err)
	}
	rawType, ok := cfg["type"]
	if !ok {
		return nil, errors.New("generator config: missing type")
	}
	genType, err := parsing.String(rawType)
	if err != nil {
		return nil, fmt.Errorf("generator type: %w", err)
	}

	switch strings.ToLower(genType) {
	case "number_sequence":
		start, err := intField(cfg, "start", 1)
		if err != nil {
			return nil, err
		}
		increment, err := intField(cfg, "increment", 1)
		if err != nil {
			return nil, err
		}
		return NumberSequence(start, increment), nil

	case "random_int":
		lo, err := intField(cfg, "min", 0)
		if err != nil {
			return nil, err
		}
		hi, err := intField(cfg, "max", int(^uint32(0)>>1))
		if err != nil {
			return nil, err
		}
		return RandomInt(o.rand, lo, hi)

	case "random_text":
		charset := CharacterSets["ascii_letters"]
		if v, ok := cfg["character_set"]; ok {
			name, err := parsing.String(v)
			if err != nil {
				return nil, fmt.Errorf("character_set: %w", err)
			}
			set, ok := CharacterSets[strings.ToLower(name)]
			if !ok {
				return nil, fmt.Errorf("unknown character_set %q", name)
			}
			charset = set
		}
		if v, ok := cfg["characters"]; ok {
			s, err := parsing.String(v)
			if err != nil {
				return nil, fmt.Errorf("characters: %w", err)
			}
			charset = s
		}
		length, hasLength := cfg["length"]
		if hasLength {
			n, err := parsing.Int(length)
			if err != nil {
				return nil, fmt.Errorf("length: %w", err)
			}
			return RandomText(o.rand, charset, n, n)
		}
		lo, err := intField(cfg, "min_length", defaultTextLength)
		if err != nil {
			return nil, err
		}
		hi, err := intField(cfg, "max_length", lo)
		if err != nil {
			return nil, err
		}
		return RandomText(o.rand, charset, lo, hi)

	case "fixed_sequence":
		values, err := listField(cfg, "values")
		if err != nil {
			return nil, err
		}
		cycle := true
		if v, ok := cfg["cycle"]; ok {
			if cycle, err = parsing.Bool(v); err != nil {
				return nil, fmt.Errorf("cycle: %w", err)
			}
		}
		return FixedSequence(values, cycle)

	case "choice":
		values, err := listField(cfg, "values")
		if err != nil {
			return nil, err
		}
		return Choice(o.rand, values)

	case "env_variable":
		name, err := stringField(cfg, "variable")
		if err != nil {
			return nil, err
		}
		return EnvVariable(name), nil

	case "env_string":
		s, err := stringField(cfg, "string")
		if err != nil {
			return nil, err
		}
		return EnvString(s), nil

	case "uuid":
		return UUID(), nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownType, genType)
}

func intField(cfg map[string]interface{}, key string, def int) (int, error) {
	v, ok := cfg[key]
	if !ok {
		return def, nil
	}
	n, err := parsing.Int(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func stringField(cfg map[string]interface{}, key string) (string, error) {
	v, ok := cfg[key]
	if !ok {
		return "", fmt.Errorf("missing %s", key)
	}
	s, err := parsing.String(v)
	if err != nil {
		return "", fmt.Errorf("%s: %w", key, err)
	}
	return s, nil
}

func listField(cfg map[string]interface{}, key string) ([]interface{}, error) {
	v, ok := cfg[key]
	if !ok {
		return nil, fmt.Errorf("missing %s", key)
	}
	values, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%s: expected list, got %T", key, v)
	}
	return values, nil
}
