package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"ForexFeed/internal/calculator"
	"ForexFeed/internal/model"
	"ForexFeed/internal/recorder"
)

// FormatSeries summarizes a served series for a chat reply.
func FormatSeries(s *model.CandleSeries) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("💱 <b>%s %s</b> | %d candles\n\n", s.Pair.Slash(), s.Timeframe, s.Len()))

	src := s.Source
	if s.Synthetic {
		src += " ⚠️ synthetic"
	}
	if s.Cached {
		src += " (cached)"
	}
	b.WriteString(fmt.Sprintf("Source: %s\n", src))

	if sum, ok := calculator.Summarize(s); ok {
		prec := int(s.Pair.Info().Decimals)
		last, _ := s.Last()
		b.WriteString(fmt.Sprintf("Last: %.*f (%s)\n", prec, sum.Last, last.Time.UTC().Format("2006-01-02 15:04")))
		b.WriteString(fmt.Sprintf("Range: %.*f – %.*f (at %.0f%%)\n", prec, sum.Low, prec, sum.High, sum.Position*100))
		b.WriteString(fmt.Sprintf("Change: %+.2f%%\n", sum.ChangePc))
		if sum.SMA20 > 0 {
			b.WriteString(fmt.Sprintf("SMA20: %.*f\n", prec, sum.SMA20))
		}
		b.WriteString(fmt.Sprintf("RSI14: %.0f\n", sum.RSI14))
	}
	return b.String()
}

// FormatSourceStatus lists every source with its quota state.
func FormatSourceStatus(statuses []model.SourceStatus, now time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📡 <b>Data sources</b> | %s\n\n", now.UTC().Format("2006-01-02 15:04")))
	for _, st := range statuses {
		icon := "✅"
		switch {
		case !st.Configured:
			icon = "⚪"
		case st.LastError != "":
			icon = "❌"
		}
		for _, q := range st.Quota {
			if q.Exhausted {
				icon = "⏳"
			}
		}
		b.WriteString(fmt.Sprintf("%s <b>%s</b> (#%d)", icon, st.Descriptor.Name, st.Descriptor.Priority))
		if !st.Configured {
			b.WriteString(" not configured\n")
			continue
		}
		b.WriteString("\n")
		for _, q := range st.Quota {
			b.WriteString(fmt.Sprintf("   %d/%d per %s", q.Used, q.Ceiling, q.Window))
			if !q.ResetsAt.IsZero() {
				b.WriteString(fmt.Sprintf(", resets in %s", q.ResetsAt.Sub(now).Round(time.Second)))
			}
			b.WriteString("\n")
		}
		if st.LastError != "" {
			b.WriteString(fmt.Sprintf("   last error: %s\n", html.EscapeString(truncate(st.LastError, 160))))
		}
	}
	return b.String()
}

// FormatSummary renders recorded attempt totals.
func FormatSummary(rows []recorder.SourceSummary, since time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>Attempts since %s</b>\n\n", since.UTC().Format("2006-01-02 15:04")))
	if len(rows) == 0 {
		b.WriteString("No attempts recorded.\n")
		return b.String()
	}
	for _, r := range rows {
		b.WriteString(fmt.Sprintf("%s: ok %d | failed %d | skipped %d\n", r.Source, r.OK, r.Failed, r.Skipped))
	}
	return b.String()
}

// FormatDegraded alerts that a watched series fell back to synthetic data.
func FormatDegraded(pair model.Pair, tf model.Timeframe, statuses []model.SourceStatus) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🚨 <b>%s %s degraded</b>\n\n", pair.Slash(), tf))
	b.WriteString("Every live source failed; serving synthetic data.\n")
	for _, st := range statuses {
		if st.LastError == "" {
			continue
		}
		b.WriteString(fmt.Sprintf("• %s: %s\n", st.Descriptor.Name, html.EscapeString(truncate(st.LastError, 160))))
	}
	return b.String()
}

// FormatRecovered announces that live data is back for a watched series.
func FormatRecovered(pair model.Pair, tf model.Timeframe, source string) string {
	return fmt.Sprintf("✅ <b>%s %s recovered</b>\n\nLive data from %s.", pair.Slash(), tf, source)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
