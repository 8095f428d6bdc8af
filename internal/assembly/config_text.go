package assembly

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/conneroisu/stubforge/internal/config"
)

// BaselineSetting opens every runtime configuration; the stub loader needs
// FFI enabled to boot.
const BaselineSetting = "ffi.enable=1"

// ConfigText builds the runtime configuration embedded in the binary header:
// the baseline line, then one "key=value" line per setting of global merged
// with target, and a trailing newline.
func ConfigText(global, target config.INI) string {
	var b strings.Builder
	b.WriteString(BaselineSetting)
	for _, s := range config.Merge(global, target) {
		b.WriteByte('\n')
		b.WriteString(s.Key)
		b.WriteByte('=')
		b.WriteString(formatValue(s.Value))
	}
	b.WriteByte('\n')
	return b.String()
}

func formatValue(v any) string {
	switch value := v.(type) {
	case bool:
		if value {
			return "1"
		}
		return "0"
	case string:
		return value
	case json.Number:
		return value.String()
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	default:
		return fmt.Sprint(value)
	}
}
