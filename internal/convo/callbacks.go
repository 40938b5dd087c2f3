package convo

import "strings"

// Kind enumerates the callback commands the inline keyboards emit.
type Kind int

const (
	KindUnknown Kind = iota
	KindMenu
	KindCategory
	KindAdd
	KindCartView
	KindCartClear
	KindCartIncrease
	KindCartDecrease
	KindCartRemove
	KindCheckoutStart
	KindCheckoutSkipNotes
	KindNoop
)

// Command is one parsed callback payload. ID carries the category, item, or
// cart line identifier for the kinds that take one.
type Command struct {
	Kind Kind
	ID   string
}

// ParseCommand decodes a callback data string. Unknown or malformed data
// yields KindUnknown; the engine answers those without acting.
func ParseCommand(data string) Command {
	switch data {
	case "menu":
		return Command{Kind: KindMenu}
	case "noop":
		return Command{Kind: KindNoop}
	case "cart:view":
		return Command{Kind: KindCartView}
	case "cart:clear":
		return Command{Kind: KindCartClear}
	case "checkout:start":
		return Command{Kind: KindCheckoutStart}
	case "checkout:skip_notes":
		return Command{Kind: KindCheckoutSkipNotes}
	}

	if id, ok := strings.CutPrefix(data, "category:"); ok && id != "" {
		return Command{Kind: KindCategory, ID: id}
	}
	if id, ok := strings.CutPrefix(data, "add:"); ok && id != "" {
		return Command{Kind: KindAdd, ID: id}
	}
	if rest, ok := strings.CutPrefix(data, "cart:"); ok {
		if id, ok := strings.CutPrefix(rest, "increase:"); ok && id != "" {
			return Command{Kind: KindCartIncrease, ID: id}
		}
		if id, ok := strings.CutPrefix(rest, "decrease:"); ok && id != "" {
			return Command{Kind: KindCartDecrease, ID: id}
		}
		if id, ok := strings.CutPrefix(rest, "remove:"); ok && id != "" {
			return Command{Kind: KindCartRemove, ID: id}
		}
	}
	return Command{Kind: KindUnknown}
}

// Encode renders the command back to callback data. The inverse of
// ParseCommand for every known kind.
func (c Command) Encode() string {
	switch c.Kind {
	case KindMenu:
		return "menu"
	case KindNoop:
		return "noop"
	case KindCategory:
		return "category:" + c.ID
	case KindAdd:
		return "add:" + c.ID
	case KindCartView:
		return "cart:view"
	case KindCartClear:
		return "cart:clear"
	case KindCartIncrease:
		return "cart:increase:" + c.ID
	case KindCartDecrease:
		return "cart:decrease:" + c.ID
	case KindCartRemove:
		return "cart:remove:" + c.ID
	case KindCheckoutStart:
		return "checkout:start"
	case KindCheckoutSkipNotes:
		return "checkout:skip_notes"
	}
	return ""
}
