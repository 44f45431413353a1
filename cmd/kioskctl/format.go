package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/cart"
)

var printer = message.NewPrinter(language.English)

// formatMoney renders amount in the given ISO currency. Unknown codes fall
// back to the plain amount followed by the code.
func formatMoney(amount decimal.Decimal, code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return amount.StringFixed(2) + " " + code
	}
	return printer.Sprint(currency.Symbol(unit.Amount(amount.InexactFloat64())))
}

func printChangeEvent(w io.Writer, ev cart.ChangeEvent, code string) {
	fmt.Fprintf(w, "cart changed: %d item(s), total %s\n", ev.Count, formatMoney(ev.Total, code))
	printLines(w, ev.Items, code)
}

func printSnapshot(w io.Writer, snap cart.Snapshot) {
	if !snap.HasCart() {
		fmt.Fprintln(w, "no active cart")
		return
	}
	fmt.Fprintf(w, "cart %s\n", snap.CartID)
	if snap.CheckoutURL != "" {
		fmt.Fprintf(w, "checkout %s\n", snap.CheckoutURL)
	}
	fmt.Fprintf(w, "%d item(s), total %s\n", snap.ItemCount, formatMoney(snap.Total, snap.Currency))
	printLines(w, snap.Lines, snap.Currency)
}

func printLines(w io.Writer, lines []cart.Line, code string) {
	if len(lines) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LINE\tPRODUCT\tQTY\tSUBTOTAL")
	for _, l := range lines {
		title := l.Product.Title
		if l.Product.VariantTitle != "" {
			title += " / " + l.Product.VariantTitle
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", l.LineID, title, l.Quantity, formatMoney(l.Subtotal(), code))
	}
	_ = tw.Flush()
}
