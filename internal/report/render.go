package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// RenderTable writes the positions and totals as an ASCII table.
func RenderTable(w io.Writer, p *Portfolio) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Netuid", "Subnet", "Hotkey", "Stake", "Price", "Received", "Slippage"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetAutoWrapText(false)

	for _, pos := range p.Positions {
		table.Append([]string{
			strconv.Itoa(int(pos.Netuid)),
			subnetLabel(pos),
			shortAddress(pos.Hotkey),
			pos.Stake.Decimal().StringFixed(4),
			priceLabel(pos),
			pos.Received.String(),
			slippageLabel(pos),
		})
	}

	table.SetFooter([]string{"", "", "", "", "Total stake", p.StakeReceived.String(), ""})
	table.Render()

	fmt.Fprintf(w, "Total stake:  %s\n", p.StakeReceived)
	fmt.Fprintf(w, "Free balance: %s\n", p.Free)
	fmt.Fprintf(w, "Total TAO:    %s\n", p.Total())
}

// RenderCSV renders one row per position followed by a totals row.
func RenderCSV(p *Portfolio) string {
	var sb strings.Builder

	sb.WriteString("netuid,hotkey,stake_rao,price,nominal_rao,received_rao,slippage_pct,dynamic\n")
	for _, pos := range p.Positions {
		sb.WriteString(fmt.Sprintf("%d,%s,%d,%s,%d,%d,%.6f,%t\n",
			pos.Netuid,
			pos.Hotkey,
			pos.Stake.Rao(),
			pos.Price.String(),
			pos.Nominal.Rao(),
			pos.Received.Rao(),
			pos.SlippagePct,
			pos.IsDynamic,
		))
	}
	sb.WriteString(fmt.Sprintf("total,%s,,,%d,%d,,\n", p.Coldkey, p.StakeNominal.Rao(), p.StakeReceived.Rao()))
	sb.WriteString(fmt.Sprintf("free,%s,,,,%d,,\n", p.Coldkey, p.Free.Rao()))

	return sb.String()
}

func subnetLabel(pos Position) string {
	if !pos.Priced {
		return "?"
	}
	if pos.Symbol == "" {
		return pos.Name
	}
	return pos.Name + " " + pos.Symbol
}

func priceLabel(pos Position) string {
	if !pos.Priced {
		return "-"
	}
	return pos.Price.StringFixed(6)
}

func slippageLabel(pos Position) string {
	if !pos.Priced || !pos.IsDynamic {
		return "N/A"
	}
	return fmt.Sprintf("%.4f %%", pos.SlippagePct)
}

func shortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}
