package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/noguchisakihand-source/apartment-dashboard/models"
)

// Reporter renders scoring results as a terminal report for the
// ranking CLI. The dashboard and CSV export consume the same data
// through the store.
type Reporter struct{}

// NewReporter creates a Reporter.
func NewReporter() *Reporter {
	return &Reporter{}
}

var tierLabels = map[int]string{
	1: "station × age × area",
	2: "station × age",
	3: "ward × age × area",
	4: "ward × age",
}

// PrintRunSummary renders the outcome of a scoring run, including how
// specific the comparable match was per tier.
func (r *Reporter) PrintRunSummary(s *models.ScoreRunSummary) {
	sep := strings.Repeat("═", 58)
	thin := strings.Repeat("─", 58)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  📊 DEAL SCORING RUN\033[0m\n")
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	fmt.Printf("\033[1;33m  Listings\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Updated : \033[1;32m%d\033[0m\n", s.Updated)
	fmt.Printf("  Skipped : \033[1m%d\033[0m (missing data or no comparables)\n", s.Skipped)
	if s.Errored > 0 {
		fmt.Printf("  Errored : \033[1;31m%d\033[0m\n", s.Errored)
	}
	fmt.Println()

	fmt.Printf("\033[1;33m  Comparable Coverage by Tier\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if len(s.TierCoverage) == 0 {
		fmt.Printf("  No listings scored\n")
	} else {
		tiers := make([]int, 0, len(s.TierCoverage))
		for tier := range s.TierCoverage {
			tiers = append(tiers, tier)
		}
		sort.Ints(tiers)
		for _, tier := range tiers {
			count := s.TierCoverage[tier]
			bar := strings.Repeat("█", count)
			fmt.Printf("  %d. %-22s %s (%d)\n", tier, tierLabels[tier], bar, count)
		}
	}
	fmt.Println()
}

// PrintRanking renders the top listings by deal score, best first.
func (r *Reporter) PrintRanking(listings []*models.Listing) {
	thin := strings.Repeat("─", 86)

	fmt.Printf("\033[1;33m  Bargain Ranking\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if len(listings) == 0 {
		fmt.Printf("  No scored listings yet — ingest transactions and re-run\n\n")
		return
	}

	fmt.Printf("  %4s %8s %10s %10s %9s  %-8s %-6s %6s\n",
		"rank", "score", "asking", "market", "diff", "ward", "year", "area")
	for i, l := range listings {
		v := l.Valuation
		if v == nil {
			continue
		}
		diff := v.AdjustedMarketPrice - askingOrZero(l)
		fmt.Printf("  %4d \033[1;32m%7.2f%%\033[0m %9s万 %9s万 %8s万  %-8s %-6s %5s㎡\n",
			i+1, v.DealScore,
			manYen(askingOrZero(l)), manYen(v.AdjustedMarketPrice), signedManYen(diff),
			l.WardName, optYear(l.BuildingYear), optArea(l.Area))
	}
	fmt.Println()
}

func askingOrZero(l *models.Listing) int64 {
	if l.AskingPrice == nil {
		return 0
	}
	return *l.AskingPrice
}

// manYen formats yen as man-yen (×10,000) with thousands separators.
func manYen(yen int64) string {
	man := yen / 10000
	s := fmt.Sprintf("%d", man)
	if man < 0 {
		return "-" + groupDigits(s[1:])
	}
	return groupDigits(s)
}

func signedManYen(yen int64) string {
	if yen > 0 {
		return "+" + manYen(yen)
	}
	return manYen(yen)
}

func groupDigits(s string) string {
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

func optYear(y *int) string {
	if y == nil {
		return "—"
	}
	return fmt.Sprintf("%d年", *y)
}

func optArea(a *float64) string {
	if a == nil {
		return "—"
	}
	return fmt.Sprintf("%.0f", *a)
}
