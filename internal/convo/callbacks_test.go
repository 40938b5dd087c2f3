package convo

import "testing"

func TestParseCommand(t *testing.T) {
	cases := []struct {
		data string
		want Command
	}{
		{"menu", Command{Kind: KindMenu}},
		{"noop", Command{Kind: KindNoop}},
		{"category:abc-123", Command{Kind: KindCategory, ID: "abc-123"}},
		{"add:item-9", Command{Kind: KindAdd, ID: "item-9"}},
		{"cart:view", Command{Kind: KindCartView}},
		{"cart:clear", Command{Kind: KindCartClear}},
		{"cart:increase:line-1", Command{Kind: KindCartIncrease, ID: "line-1"}},
		{"cart:decrease:line-2", Command{Kind: KindCartDecrease, ID: "line-2"}},
		{"cart:remove:line-3", Command{Kind: KindCartRemove, ID: "line-3"}},
		{"checkout:start", Command{Kind: KindCheckoutStart}},
		{"checkout:skip_notes", Command{Kind: KindCheckoutSkipNotes}},
	}
	for _, tc := range cases {
		got := ParseCommand(tc.data)
		if got != tc.want {
			t.Errorf("ParseCommand(%q) = %+v, want %+v", tc.data, got, tc.want)
		}
	}
}

func TestParseCommandMalformed(t *testing.T) {
	for _, data := range []string{
		"", "category:", "add:", "cart:", "cart:increase:", "cart:unknown",
		"checkout:", "checkout:finish", "delete:everything", "menu:extra",
	} {
		got := ParseCommand(data)
		if got.Kind != KindUnknown {
			t.Errorf("ParseCommand(%q) = %+v, want KindUnknown", data, got)
		}
	}
}

func TestCommandEncodeRoundTrip(t *testing.T) {
	cmds := []Command{
		{Kind: KindMenu},
		{Kind: KindNoop},
		{Kind: KindCategory, ID: "c1"},
		{Kind: KindAdd, ID: "i1"},
		{Kind: KindCartView},
		{Kind: KindCartClear},
		{Kind: KindCartIncrease, ID: "l1"},
		{Kind: KindCartDecrease, ID: "l1"},
		{Kind: KindCartRemove, ID: "l1"},
		{Kind: KindCheckoutStart},
		{Kind: KindCheckoutSkipNotes},
	}
	for _, cmd := range cmds {
		if got := ParseCommand(cmd.Encode()); got != cmd {
			t.Errorf("round trip %+v via %q got %+v", cmd, cmd.Encode(), got)
		}
	}
}
