package frame

import(
	"fmt"
	"strings"

	"github.com/astrogo/fitsio"
)

// Header is an ordered set of FITS header cards.
type Header struct {
	Cards []fitsio.Card
}

func (h Header)Clone() Header {
	return Header{Cards: append([]fitsio.Card{}, h.Cards...)}
}

func (h *Header)index(name string) int {
	for i, c := range h.Cards {
		if c.Name == name { return i }
	}
	return -1
}

// Set adds a card, or replaces the value of an existing one.
func (h *Header)Set(name string, v interface{}, comment string) {
	if i := h.index(name); i >= 0 {
		h.Cards[i].Value = v
		if comment != "" { h.Cards[i].Comment = comment }
		return
	}
	h.Cards = append(h.Cards, fitsio.Card{Name: name, Value: v, Comment: comment})
}

func (h Header)Get(name string) (fitsio.Card, bool) {
	if i := h.index(name); i >= 0 {
		return h.Cards[i], true
	}
	return fitsio.Card{}, false
}

func (h Header)Float(name string) (float64, bool) {
	c, exists := h.Get(name)
	if !exists { return 0, false }
	return cardFloat(c)
}

func (h Header)Int(name string) (int, bool) {
	f, ok := h.Float(name)
	return int(f), ok
}

func (h Header)Text(name string) (string, bool) {
	c, exists := h.Get(name)
	if !exists { return "", false }
	if s, ok := c.Value.(string); ok {
		return strings.TrimSpace(s), true
	}
	return fmt.Sprintf("%v", c.Value), true
}

func cardFloat(c fitsio.Card) (float64, bool) {
	switch v := c.Value.(type) {
	case int:     return float64(v), true
	case int8:    return float64(v), true
	case int16:   return float64(v), true
	case int32:   return float64(v), true
	case int64:   return float64(v), true
	case float32: return float64(v), true
	case float64: return v, true
	}
	return 0, false
}

// MergeExtra applies user configured header pairs. Keys are upper
// cased; pairs with an empty key or value are skipped.
func (h *Header)MergeExtra(pairs [][2]string) {
	for _, kv := range pairs {
		k, v := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])
		if k == "" || v == "" {
			continue
		}
		h.Set(strings.ToUpper(k), v, "")
	}
}

// fitsCards strips the structural keywords, which fitsio writes itself.
func (h Header)fitsCards() []fitsio.Card {
	out := []fitsio.Card{}
	for _, c := range h.Cards {
		switch {
		case c.Name == "SIMPLE", c.Name == "BITPIX", c.Name == "EXTEND", c.Name == "END":
			continue
		case c.Name == "BZERO", c.Name == "BSCALE":
			continue
		case strings.HasPrefix(c.Name, "NAXIS"):
			continue
		}
		out = append(out, c)
	}
	return out
}
