// Package badges evaluates achievement rules after each session.
package badges

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/winniek75/baseball-vison.training/internal/model"
)

// Badge keys.
const (
	FirstPlay     = "first_play"
	Streak3       = "streak_3"
	Streak7       = "streak_7"
	Streak30      = "streak_30"
	Reaction300   = "reaction_300ms"
	Reaction250   = "reaction_250ms"
	Reaction200   = "reaction_200ms"
	Accuracy90    = "accuracy_90"
	Accuracy100   = "accuracy_100"
	Score1000     = "score_1000"
	AllModules    = "all_modules"
	MasterPitcher = "master_pitcher"
	MasterHunter  = "master_hunter"
)

// Rarity grades a badge.
type Rarity string

const (
	Common    Rarity = "common"
	Rare      Rarity = "rare"
	Epic      Rarity = "epic"
	Legendary Rarity = "legendary"
)

// Info describes a badge for display.
type Info struct {
	Key         string
	Emoji       string
	Name        string
	Description string
	Rarity      Rarity
}

// Catalogue lists every badge in display order.
var Catalogue = []Info{
	{FirstPlay, "⚾", "First Pitch", "Started vision training", Common},
	{Streak3, "🔥", "3-Day Streak", "Played 3 days in a row", Common},
	{Streak7, "🔥🔥", "Week Streak", "Played 7 days in a row", Rare},
	{Streak30, "👑", "Month Streak", "Played 30 days in a row", Legendary},
	{Reaction300, "⚡", "Quick 300ms", "Average reaction within 300ms", Common},
	{Reaction250, "⚡⚡", "Rapid 250ms", "Average reaction within 250ms", Rare},
	{Reaction200, "⚡⚡⚡", "Lightning 200ms", "Average reaction within 200ms", Legendary},
	{Accuracy90, "🎯", "Sharp Eye 90%", "Accuracy of 90% or more", Rare},
	{Accuracy100, "💎", "Perfect Eye", "Finished a session without a miss", Epic},
	{Score1000, "🏆", "1000 Club", "Scored 1000 points in a session", Rare},
	{AllModules, "🌟", "Full Rotation", "Played every available module", Epic},
	{MasterPitcher, "🔱", "Pitcher Master", "Finished Pitcher Reaction at Elite", Epic},
	{MasterHunter, "🔱", "Number Hunter", "Finished Ball Number Hunt at Elite", Epic},
}

// Lookup returns the catalogue entry for key.
func Lookup(key string) (Info, bool) {
	for _, b := range Catalogue {
		if b.Key == key {
			return b, true
		}
	}
	return Info{}, false
}

// Context holds the history-derived inputs of the rule table.
type Context struct {
	Earned        []string
	CurrentStreak int
	FirstPlay     bool
	// PlayedModules includes the module of the session being evaluated.
	PlayedModules []model.ModuleID
}

// Evaluate returns the badges newly earned by res, in rule order. Reaction
// and accuracy rules award only the best tier not yet held.
func Evaluate(res model.SessionResult, ctx Context) []string {
	var out []string
	has := func(key string) bool {
		return slices.Contains(ctx.Earned, key) || slices.Contains(out, key)
	}
	award := func(key string, ok bool) bool {
		if ok && !has(key) {
			out = append(out, key)
			return true
		}
		return false
	}

	award(FirstPlay, ctx.FirstPlay)
	award(Streak3, ctx.CurrentStreak >= 3)
	award(Streak7, ctx.CurrentStreak >= 7)
	award(Streak30, ctx.CurrentStreak >= 30)

	if avg := res.AvgReactionMs; avg > 0 {
		_ = award(Reaction200, avg <= 200) ||
			award(Reaction250, avg <= 250) ||
			award(Reaction300, avg <= 300)
	}

	_ = award(Accuracy100, res.Accuracy >= 1.0) ||
		award(Accuracy90, res.Accuracy >= 0.9)

	award(Score1000, res.TotalScore >= 1000)
	award(AllModules, playedAll(ctx.PlayedModules))
	award(MasterPitcher, res.ModuleID == model.ModulePitcherReaction && res.Difficulty == model.MaxDifficulty)
	award(MasterHunter, res.ModuleID == model.ModuleBallNumberHunt && res.Difficulty == model.MaxDifficulty)
	return out
}

func playedAll(played []model.ModuleID) bool {
	playable := model.PlayableModules()
	if len(playable) == 0 {
		return false
	}
	for _, id := range playable {
		if !slices.Contains(played, id) {
			return false
		}
	}
	return true
}

// Streak counts consecutive local calendar days with at least one session,
// ending today or yesterday.
func Streak(plays []time.Time, today time.Time) int {
	days := map[time.Time]bool{}
	for _, p := range plays {
		days[dayOf(p, today.Location())] = true
	}
	day := dayOf(today, today.Location())
	if !days[day] {
		day = day.AddDate(0, 0, -1)
	}
	streak := 0
	for days[day] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Render writes the catalogue with earned badges marked and dated. Unknown
// keys in earned are ignored.
func Render(w io.Writer, earned []model.EarnedBadge) error {
	at := make(map[string]time.Time, len(earned))
	for _, e := range earned {
		at[e.Key] = e.EarnedAt
	}
	count := 0
	for _, b := range Catalogue {
		if _, ok := at[b.Key]; ok {
			count++
		}
	}
	if _, err := fmt.Fprintf(w, "Badges %d/%d\n", count, len(Catalogue)); err != nil {
		return err
	}
	for _, b := range Catalogue {
		mark, when := "  ", ""
		if t, ok := at[b.Key]; ok {
			mark = "✔ "
			when = t.Local().Format("2006-01-02")
		}
		icon := runewidth.FillRight(b.Emoji, 7)
		name := runewidth.FillRight(b.Name, 16)
		if _, err := fmt.Fprintf(w, "%s%s %s %-9s %s\n", mark, icon, name, b.Rarity, when); err != nil {
			return err
		}
	}
	return nil
}
