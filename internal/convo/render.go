package convo

import (
	"fmt"
	"html"
	"strings"

	"bejofood/internal/notify"
	"bejofood/internal/repo"
	"bejofood/internal/tg"
)

func welcomeText(firstName string) string {
	name := html.EscapeString(firstName)
	if name == "" {
		name = "Kak"
	}
	return fmt.Sprintf(
		"👋 Halo <b>%s</b>, selamat datang di <b>BejoFood</b>!\n\n"+
			"Pesan makanan favoritmu langsung dari chat ini.\n\n"+
			"📋 /menu - lihat menu\n"+
			"🛒 /cart - lihat keranjang\n"+
			"💳 /checkout - buat pesanan\n"+
			"📦 /status - status pesanan\n"+
			"❓ /help - bantuan",
		name,
	)
}

func helpText() string {
	return "❓ <b>Bantuan</b>\n\n" +
		"📋 /menu - lihat kategori dan menu\n" +
		"🛒 /cart - lihat dan ubah keranjang\n" +
		"💳 /checkout - buat pesanan dan bayar dengan QRIS\n" +
		"📦 /status - lima pesanan terakhir\n" +
		"🚫 /cancel - batalkan proses checkout\n\n" +
		"Pembayaran memakai QRIS dan berlaku 15 menit."
}

func categoriesMessage(cats []repo.Category) (string, *tg.InlineKeyboard) {
	if len(cats) == 0 {
		return "🍽 Menu sedang kosong, coba lagi nanti ya.", nil
	}
	kb := &tg.InlineKeyboard{}
	for _, c := range cats {
		label := strings.TrimSpace(c.Emoji + " " + c.Name)
		kb.InlineKeyboard = append(kb.InlineKeyboard,
			tg.Row(tg.Btn(label, Command{Kind: KindCategory, ID: c.ID}.Encode())))
	}
	kb.InlineKeyboard = append(kb.InlineKeyboard,
		tg.Row(tg.Btn("🛒 Keranjang", Command{Kind: KindCartView}.Encode())))
	return "🍽 <b>Menu BejoFood</b>\n\nPilih kategori:", kb
}

func itemsMessage(cat *repo.Category, items []repo.MenuItem) (string, *tg.InlineKeyboard) {
	title := strings.TrimSpace(cat.Emoji + " " + html.EscapeString(cat.Name))
	if len(items) == 0 {
		kb := &tg.InlineKeyboard{InlineKeyboard: [][]tg.InlineButton{
			tg.Row(tg.Btn("⬅️ Kembali", Command{Kind: KindMenu}.Encode())),
		}}
		return fmt.Sprintf("<b>%s</b>\n\nBelum ada menu tersedia di kategori ini.", title), kb
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n\n", title)
	kb := &tg.InlineKeyboard{}
	for _, it := range items {
		fmt.Fprintf(&b, "• <b>%s</b> - %s\n", html.EscapeString(it.Name), notify.FormatRupiah(it.Price))
		if it.Description != "" {
			fmt.Fprintf(&b, "  <i>%s</i>\n", html.EscapeString(it.Description))
		}
		kb.InlineKeyboard = append(kb.InlineKeyboard,
			tg.Row(tg.Btn("➕ "+it.Name, Command{Kind: KindAdd, ID: it.ID}.Encode())))
	}
	kb.InlineKeyboard = append(kb.InlineKeyboard, tg.Row(
		tg.Btn("⬅️ Kembali", Command{Kind: KindMenu}.Encode()),
		tg.Btn("🛒 Keranjang", Command{Kind: KindCartView}.Encode()),
	))
	return b.String(), kb
}

func cartMessage(lines []repo.CartLine) (string, *tg.InlineKeyboard) {
	if len(lines) == 0 {
		kb := &tg.InlineKeyboard{InlineKeyboard: [][]tg.InlineButton{
			tg.Row(tg.Btn("🍽 Lihat Menu", Command{Kind: KindMenu}.Encode())),
		}}
		return "🛒 Keranjang kamu masih kosong.", kb
	}

	var b strings.Builder
	b.WriteString("🛒 <b>Keranjang</b>\n\n")
	kb := &tg.InlineKeyboard{}
	var total int64
	for _, l := range lines {
		total += l.Subtotal()
		fmt.Fprintf(&b, "• <b>%s</b>\n  %d x %s = %s\n",
			html.EscapeString(l.Name), l.Quantity, notify.FormatRupiah(l.Price), notify.FormatRupiah(l.Subtotal()))
		kb.InlineKeyboard = append(kb.InlineKeyboard, tg.Row(
			tg.Btn("➖", Command{Kind: KindCartDecrease, ID: l.ID}.Encode()),
			tg.Btn(fmt.Sprintf("%d", l.Quantity), Command{Kind: KindNoop}.Encode()),
			tg.Btn("➕", Command{Kind: KindCartIncrease, ID: l.ID}.Encode()),
			tg.Btn("🗑", Command{Kind: KindCartRemove, ID: l.ID}.Encode()),
		))
	}
	fmt.Fprintf(&b, "\n💰 Total: <b>%s</b>", notify.FormatRupiah(total))
	kb.InlineKeyboard = append(kb.InlineKeyboard, tg.Row(
		tg.Btn("💳 Checkout", Command{Kind: KindCheckoutStart}.Encode()),
		tg.Btn("🗑 Kosongkan", Command{Kind: KindCartClear}.Encode()),
	))
	kb.InlineKeyboard = append(kb.InlineKeyboard,
		tg.Row(tg.Btn("🍽 Tambah Menu", Command{Kind: KindMenu}.Encode())))
	return b.String(), kb
}

func ordersMessage(orders []repo.Order) string {
	if len(orders) == 0 {
		return "📦 Kamu belum punya pesanan. Mulai dari /menu ya!"
	}
	var b strings.Builder
	b.WriteString("📦 <b>Pesanan Terakhir</b>\n\n")
	for _, o := range orders {
		fmt.Fprintf(&b, "%s <code>%s</code>\n%s - %s\n\n",
			statusEmoji(o.Status), o.OrderNumber, statusLabel(o.Status), notify.FormatRupiah(o.Total))
	}
	return strings.TrimRight(b.String(), "\n")
}

func statusEmoji(s repo.OrderStatus) string {
	switch s {
	case repo.OrderPending:
		return "⏳"
	case repo.OrderConfirmed:
		return "✅"
	case repo.OrderPreparing:
		return "👨‍🍳"
	case repo.OrderReady:
		return "📦"
	case repo.OrderCompleted:
		return "🎉"
	case repo.OrderCancelled:
		return "❌"
	}
	return "•"
}

func statusLabel(s repo.OrderStatus) string {
	switch s {
	case repo.OrderPending:
		return "Menunggu pembayaran"
	case repo.OrderConfirmed:
		return "Dikonfirmasi"
	case repo.OrderPreparing:
		return "Sedang disiapkan"
	case repo.OrderReady:
		return "Siap diantar"
	case repo.OrderCompleted:
		return "Selesai"
	case repo.OrderCancelled:
		return "Dibatalkan"
	}
	return string(s)
}

func askAddressText() string {
	return "📍 <b>Checkout (1/3)</b>\n\nKetik alamat pengantaran lengkap (minimal 10 karakter):"
}

func askPhoneText() string {
	return "📞 <b>Checkout (2/3)</b>\n\nKetik nomor HP yang bisa dihubungi:"
}

func askNotesText() (string, *tg.InlineKeyboard) {
	kb := &tg.InlineKeyboard{InlineKeyboard: [][]tg.InlineButton{
		tg.Row(tg.Btn("Lewati ➡️", Command{Kind: KindCheckoutSkipNotes}.Encode())),
	}}
	return "📝 <b>Checkout (3/3)</b>\n\nAda catatan untuk pesananmu? Ketik catatan atau lewati:", kb
}
