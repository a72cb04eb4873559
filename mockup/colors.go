package mockup

import (
	"fmt"
	"strconv"
	"strings"
)

type rgbColor struct {
	R uint8
	G uint8
	B uint8
}

func (c rgbColor) hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func parseHexColor(value string) (rgbColor, bool) {
	hex := strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(hex) != 6 {
		return rgbColor{}, false
	}
	r, errR := strconv.ParseInt(hex[0:2], 16, 64)
	g, errG := strconv.ParseInt(hex[2:4], 16, 64)
	b, errB := strconv.ParseInt(hex[4:6], 16, 64)
	if errR != nil || errG != nil || errB != nil {
		return rgbColor{}, false
	}
	return rgbColor{uint8(r), uint8(g), uint8(b)}, true
}

func parseShorthandHex(value string) (rgbColor, bool) {
	hex := strings.TrimPrefix(strings.TrimSpace(value), "#")
	switch length := len(hex); {
	case length == 3:
		exp := []byte{
			hex[0], hex[0],
			hex[1], hex[1],
			hex[2], hex[2],
		}
		return parseHexColor(string(exp))
	case length >= 6:
		return parseHexColor(hex[:6])
	default:
		return rgbColor{}, false
	}
}

// parseRGBFunctional reads rgb()/rgba() expressions. Channels clamp to
// 0-255, percentage channels scale, the alpha component is ignored.
func parseRGBFunctional(expr string) (rgbColor, bool) {
	open := strings.IndexByte(expr, '(')
	close := strings.LastIndexByte(expr, ')')
	if open < 0 || close <= open+1 {
		return rgbColor{}, false
	}
	parts := strings.Split(expr[open+1:close], ",")
	if len(parts) < 3 {
		return rgbColor{}, false
	}
	toByte := func(component string) uint8 {
		component = strings.TrimSpace(component)
		if component == "" {
			return 0
		}
		if strings.HasSuffix(component, "%") {
			component = strings.TrimSuffix(component, "%")
			if component == "" {
				return 0
			}
			value, err := strconv.Atoi(component)
			if err != nil {
				return 0
			}
			if value < 0 {
				value = 0
			} else if value > 100 {
				value = 100
			}
			return uint8(float64(value) * 255.0 / 100.0)
		}
		value, err := strconv.Atoi(component)
		if err != nil {
			return 0
		}
		if value < 0 {
			value = 0
		} else if value > 255 {
			value = 255
		}
		return uint8(value)
	}
	return rgbColor{
		R: toByte(parts[0]),
		G: toByte(parts[1]),
		B: toByte(parts[2]),
	}, true
}

// cssToHex normalizes a CSS color value to lowercase six-digit hex, or ""
// when the value is not a color this pipeline tracks.
func cssToHex(v string) string {
	normalized := strings.TrimSpace(v)
	if normalized == "" {
		return ""
	}
	if strings.HasPrefix(normalized, "#") {
		if col, ok := parseShorthandHex(normalized); ok {
			return col.hex()
		}
		return ""
	}
	lower := strings.ToLower(normalized)
	switch lower {
	case "black":
		return "#000000"
	case "white":
		return "#ffffff"
	case "transparent":
		return ""
	}
	if strings.HasPrefix(lower, "rgb(") || strings.HasPrefix(lower, "rgba(") {
		if col, ok := parseRGBFunctional(lower); ok {
			return col.hex()
		}
	}
	return ""
}
