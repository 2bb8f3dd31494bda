package provider

import (
	"strings"

	"github.com/spf13/cast"
)

const (
	ParamMaxTokens   = "max_tokens"
	ParamTemperature = "temperature"
)

// Operation defaults shared by the text adapters.
const (
	SummaryMaxTokens     = 150
	SummaryTemperature   = 0.7
	TextMaxTokens        = 1000
	TextTemperature      = 0.9
	FlashcardMaxTokens   = 1500
	FlashcardTemperature = 0.3
)

// Params resolves generation parameters for one call. A request parameter wins
// over the provider's configured default, which wins over the operation default.
type Params struct {
	request  map[string]any
	defaults map[string]any
}

func NewParams(request, defaults map[string]any) Params {
	return Params{request: request, defaults: defaults}
}

func (p Params) lookup(key string) (any, bool) {
	for _, m := range []map[string]any{p.request, p.defaults} {
		if m == nil {
			continue
		}
		if v, ok := m[key]; ok && v != nil {
			return v, true
		}
		for k, v := range m {
			if strings.EqualFold(k, key) && v != nil {
				return v, true
			}
		}
	}
	return nil, false
}

func (p Params) Int(key string, fallback int) int {
	v, ok := p.lookup(key)
	if !ok {
		return fallback
	}
	n, err := cast.ToIntE(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func (p Params) Float(key string, fallback float64) float64 {
	v, ok := p.lookup(key)
	if !ok {
		return fallback
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || f < 0 {
		return fallback
	}
	return f
}

// Model returns the request model or the provider default.
func Model(req *Request, defaultModel string) string {
	if req != nil && req.Model != "" {
		return req.Model
	}
	return defaultModel
}
