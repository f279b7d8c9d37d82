// Package earnings estimates passive income and summarizes what a player
// earned while away. Estimates are cosmetic: the server's numbers always
// win, this package only feeds the "welcome back" screen and session stats.
package earnings

import (
	"fmt"
	"time"

	"github.com/tapcore-app/tapcore/internal/domain"
)

// maxAwayHours caps how long away time keeps paying out. Without a cap an
// abandoned account would bank unbounded income.
const maxAwayHours = 8

// Rate returns the passive income rate in crystals per second for the
// given automation levels and click power.
func Rate(levels map[string]int, clickPower int64) float64 {
	perSecond := domain.PassivePerSecond(
		levels[domain.UpgradeAutoclick],
		levels[domain.UpgradeMegaclick],
		levels[domain.UpgradeSuperclick],
	)
	return perSecond * float64(clickPower)
}

// AwayReport summarizes estimated earnings over an absence.
type AwayReport struct {
	Start          time.Time `json:"period_start"`
	End            time.Time `json:"period_end"`
	CrystalsEarned int64     `json:"crystals_earned"`
	Capped         bool      `json:"capped"`
}

// Hours returns the credited duration of the report period.
func (r AwayReport) Hours() float64 {
	return r.End.Sub(r.Start).Hours()
}

// PerHour returns the average earnings rate over the period.
func (r AwayReport) PerHour() float64 {
	hours := r.Hours()
	if hours <= 0 {
		return 0
	}
	return float64(r.CrystalsEarned) / hours
}

// String renders the one-line welcome-back summary.
func (r AwayReport) String() string {
	if r.CrystalsEarned == 0 {
		return "no passive income while away"
	}
	suffix := ""
	if r.Capped {
		suffix = " (capped)"
	}
	return fmt.Sprintf("earned %d crystals in %.1fh away%s", r.CrystalsEarned, r.Hours(), suffix)
}

// Report estimates what the automation tiers produced between lastSeen and
// now. Absences beyond the cap credit only the first maxAwayHours.
func Report(lastSeen, now time.Time, levels map[string]int, clickPower int64) AwayReport {
	report := AwayReport{Start: lastSeen, End: now}
	if !now.After(lastSeen) {
		report.End = lastSeen
		return report
	}

	away := now.Sub(lastSeen)
	if away > maxAwayHours*time.Hour {
		away = maxAwayHours * time.Hour
		report.Capped = true
		report.End = lastSeen.Add(away)
	}

	report.CrystalsEarned = int64(Rate(levels, clickPower) * away.Seconds())
	return report
}
