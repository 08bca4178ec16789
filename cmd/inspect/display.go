package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rewired-gh/curator/internal/models"
)

// printProtocols displays ranked protocols as an aligned table
func printProtocols(w io.Writer, protocols []models.ScoredProtocol) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tNAME\tSYMBOL\tCATEGORY\tTVL\tPOOLS\tSCORE\tSAFETY")
	for i, p := range protocols {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%.2f\t%s\n",
			i+1, truncate(p.Name, 28), p.Symbol, p.Category, formatUSD(p.TVL), p.PoolCount, p.SecurityScore, p.SafetyLevel)
	}
	_ = tw.Flush()
}

// printPools displays ranked pools as an aligned table
func printPools(w io.Writer, pools []models.ScoredPool) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSYMBOL\tPROJECT\tCHAIN\tTVL\tAPY\tSCORE\tSAFETY")
	for i, p := range pools {
		apy := "-"
		if p.APY != nil {
			apy = fmt.Sprintf("%.2f%%", *p.APY)
		}
		project := p.Project
		if p.ProtocolMeta == nil {
			project += " (unmatched)"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%.2f\t%s\n",
			i+1, truncate(p.Symbol, 24), truncate(project, 32), p.Chain, formatUSD(p.TVLUsd), apy, p.SecurityScore, p.SafetyLevel)
	}
	_ = tw.Flush()
}

// printSummary displays pool listing totals
func printSummary(w io.Writer, s models.Summary) {
	fmt.Fprintln(w, strings.Repeat("-", 80))
	fmt.Fprintf(w, "Returned %d of %d pools across %d protocols", s.Returned, s.Total, s.Protocols)
	if len(s.Tokens) > 0 {
		fmt.Fprintf(w, " (tokens: %s)", strings.Join(s.Tokens, ", "))
	}
	fmt.Fprintln(w)
}

func formatUSD(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("$%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("$%.2fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("$%.2fK", v/1e3)
	default:
		return fmt.Sprintf("$%.2f", v)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
