package settings

import (
	"fmt"
	"math"

	"agent_console/pkg/models"
)

// Kind - тип значения настройки
type Kind int

const (
	Bool Kind = iota
	Int
	Float
	String
	StringList
)

func (k Kind) String() string {
	switch k {
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Float:
		return "float"
	case String:
		return "string"
	case StringList:
		return "string_list"
	default:
		return "unknown"
	}
}

// Spec описывает одну настройку: тип, диапазон, допустимые значения
// и значение по умолчанию. Валидация выполняется до отправки на
// бэкенд, а не выводом типа из runtime значения.
type Spec struct {
	Kind     Kind     `json:"kind"`
	Default  any      `json:"default"`
	Min      float64  `json:"min,omitempty"`
	Max      float64  `json:"max,omitempty"`
	HasRange bool     `json:"has_range,omitempty"`
	Options  []string `json:"options,omitempty"`
	ReadOnly bool     `json:"read_only,omitempty"`
}

var timeframes = []string{"1m", "5m", "15m", "30m", "1h", "4h", "1d"}

// Schema - полный перечень настроек агента
var Schema = map[string]Spec{
	// Приложение и модель
	"APP_VERSION":  {Kind: String, Default: "2.1.2-db", ReadOnly: true},
	"GEMINI_MODEL": {Kind: String, Default: "gemini-2.5-flash"},

	// Живая торговля
	"LIVE_TRADING": {Kind: Bool, Default: true},

	// Базовая стратегия
	"USE_MTA_ANALYSIS":    {Kind: Bool, Default: true},
	"MTA_TREND_TIMEFRAME": {Kind: String, Default: "4h", Options: timeframes},
	"DEFAULT_ORDER_TYPE":  {Kind: String, Default: "LIMIT", Options: []string{"LIMIT", "MARKET"}},
	"DEFAULT_MARKET_TYPE": {Kind: String, Default: "future", Options: []string{"future", "spot"}},
	"LEVERAGE":            {Kind: Float, Default: 10.0, Min: 1, Max: 125, HasRange: true},

	// Управление риском
	"RISK_PER_TRADE_PERCENT": {Kind: Float, Default: 5.0, Min: 0.1, Max: 100, HasRange: true},
	"MAX_CONCURRENT_TRADES":  {Kind: Int, Default: 5, Min: 1, Max: 50, HasRange: true},

	// Stop-loss / take-profit
	"USE_ATR_FOR_SLTP":     {Kind: Bool, Default: true},
	"ATR_MULTIPLIER_SL":    {Kind: Float, Default: 2.0, Min: 0.1, Max: 20, HasRange: true},
	"RISK_REWARD_RATIO_TP": {Kind: Float, Default: 2.0, Min: 0.1, Max: 20, HasRange: true},

	// Продвинутое управление прибылью
	"USE_TRAILING_STOP_LOSS":            {Kind: Bool, Default: true},
	"TRAILING_STOP_ACTIVATION_PERCENT":  {Kind: Float, Default: 1.5, Min: 0, Max: 100, HasRange: true},
	"USE_PARTIAL_TP":                    {Kind: Bool, Default: true},
	"PARTIAL_TP_TARGET_RR":              {Kind: Float, Default: 1.0, Min: 0.1, Max: 20, HasRange: true},
	"PARTIAL_TP_CLOSE_PERCENT":          {Kind: Float, Default: 50.0, Min: 1, Max: 99, HasRange: true},

	// Автоматизация и сканер
	"POSITION_CHECK_INTERVAL_SECONDS":   {Kind: Int, Default: 60, Min: 5, Max: 3600, HasRange: true},
	"PROACTIVE_SCAN_ENABLED":            {Kind: Bool, Default: true},
	"PROACTIVE_SCAN_INTERVAL_SECONDS":   {Kind: Int, Default: 900, Min: 60, Max: 86400, HasRange: true},
	"PROACTIVE_SCAN_AUTO_CONFIRM":       {Kind: Bool, Default: false},
	"PROACTIVE_SCAN_IN_LOOP":            {Kind: Bool, Default: true},
	"PROACTIVE_SCAN_USE_GAINERS_LOSERS": {Kind: Bool, Default: true},
	"PROACTIVE_SCAN_TOP_N":              {Kind: Int, Default: 10, Min: 1, Max: 100, HasRange: true},
	"PROACTIVE_SCAN_MIN_VOLUME_USDT":    {Kind: Float, Default: 1000000.0, Min: 0, Max: math.MaxFloat64, HasRange: true},
	"PROACTIVE_SCAN_MTA_ENABLED":        {Kind: Bool, Default: true},
	"PROACTIVE_SCAN_ENTRY_TIMEFRAME":    {Kind: String, Default: "15m", Options: timeframes},
	"PROACTIVE_SCAN_TREND_TIMEFRAME":    {Kind: String, Default: "4h", Options: timeframes},

	// Фильтры и уведомления
	"PROACTIVE_SCAN_BLACKLIST": {Kind: StringList, Default: []string{"SHIB", "PEPE", "MEME", "DOGE"}},
	"PROACTIVE_SCAN_WHITELIST": {Kind: StringList, Default: []string{"BTC", "ETH", "SOL"}},
	"TELEGRAM_ENABLED":         {Kind: Bool, Default: true},
}

// Defaults возвращает набор настроек со значениями по умолчанию
func Defaults() models.Settings {
	out := make(models.Settings, len(Schema))
	for key, spec := range Schema {
		if list, ok := spec.Default.([]string); ok {
			out[key] = append([]string(nil), list...)
			continue
		}
		out[key] = spec.Default
	}

	return out
}

// Normalize проверяет значение по схеме и приводит его к каноничному
// типу. JSON числа приходят как float64; Int настройки приводятся
// к int с проверкой целостности.
func Normalize(key string, value any) (any, error) {
	spec, known := Schema[key]
	if !known {
		return nil, fmt.Errorf("unknown setting %q", key)
	}

	if spec.ReadOnly {
		return nil, fmt.Errorf("setting %q is read-only", key)
	}

	switch spec.Kind {
	case Bool:
		v, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("setting %q expects bool, got %T", key, value)
		}

		return v, nil

	case Int:
		f, ok := toFloat(value)
		if !ok || f != math.Trunc(f) {
			return nil, fmt.Errorf("setting %q expects integer, got %v", key, value)
		}
		if err := checkRange(key, spec, f); err != nil {
			return nil, err
		}

		return int(f), nil

	case Float:
		f, ok := toFloat(value)
		if !ok {
			return nil, fmt.Errorf("setting %q expects number, got %T", key, value)
		}
		if err := checkRange(key, spec, f); err != nil {
			return nil, err
		}

		return f, nil

	case String:
		v, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("setting %q expects string, got %T", key, value)
		}
		if len(spec.Options) > 0 && !contains(spec.Options, v) {
			return nil, fmt.Errorf("setting %q must be one of %v", key, spec.Options)
		}

		return v, nil

	case StringList:
		list, err := toStringList(value)
		if err != nil {
			return nil, fmt.Errorf("setting %q: %w", key, err)
		}

		return list, nil
	}

	return nil, fmt.Errorf("setting %q has unsupported kind", key)
}

// ValidateAll проверяет полный набор настроек перед сохранением
func ValidateAll(settings models.Settings) error {
	for key, value := range settings {
		spec, known := Schema[key]
		if !known {
			return fmt.Errorf("unknown setting %q", key)
		}
		if spec.ReadOnly {
			continue
		}
		if _, err := Normalize(key, value); err != nil {
			return err
		}
	}

	return nil
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func toStringList(value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expects list of strings, got %T element", item)
			}
			out = append(out, s)
		}

		return out, nil
	default:
		return nil, fmt.Errorf("expects list of strings, got %T", value)
	}
}

func checkRange(key string, spec Spec, value float64) error {
	if !spec.HasRange {
		return nil
	}
	if value < spec.Min || value > spec.Max {
		return fmt.Errorf("setting %q must be between %v and %v", key, spec.Min, spec.Max)
	}

	return nil
}

func contains(options []string, value string) bool {
	for _, opt := range options {
		if opt == value {
			return true
		}
	}

	return false
}
