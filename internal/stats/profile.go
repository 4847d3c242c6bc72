package stats

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/winniek75/baseball-vison.training/internal/model"
)

// Skill is one axis of the vision profile.
type Skill string

// Vision skills in display order.
const (
	SkillKVA        Skill = "kva"
	SkillDVA        Skill = "dva"
	SkillHandEye    Skill = "handEye"
	SkillInstant    Skill = "instant"
	SkillPeripheral Skill = "peripheral"
	SkillDepth      Skill = "depth"
)

// Skills lists every profile axis.
var Skills = []Skill{SkillKVA, SkillDVA, SkillHandEye, SkillInstant, SkillPeripheral, SkillDepth}

// SkillLabels are the display names of the skills.
var SkillLabels = map[Skill]string{
	SkillKVA:        "KVA (dynamic acuity)",
	SkillDVA:        "DVA (lateral acuity)",
	SkillHandEye:    "Hand-eye",
	SkillInstant:    "Instant vision",
	SkillPeripheral: "Peripheral",
	SkillDepth:      "Depth",
}

var moduleSkills = map[model.ModuleID][]Skill{
	model.ModulePitcherReaction: {SkillKVA, SkillHandEye},
	model.ModuleBallNumberHunt:  {SkillKVA, SkillInstant},
	model.ModuleFlyTracer:       {SkillDVA, SkillHandEye},
	model.ModuleFlashSign:       {SkillInstant},
	model.ModuleStadiumVision:   {SkillPeripheral},
	model.ModuleInfieldReaction: {SkillDVA, SkillHandEye},
	model.ModuleRunnerWatch:     {SkillPeripheral, SkillInstant},
}

const defaultSkillScore = 50

// VisionProfile maps each skill to a 0-100 score.
type VisionProfile map[Skill]int

// ReactionScore maps an average reaction time onto 0-100; 0 means no data
// and scores the neutral 50.
func ReactionScore(avgReactionMs int) float64 {
	if avgReactionMs <= 0 {
		return defaultSkillScore
	}
	return math.Max(0, math.Min(100, 100-float64(avgReactionMs-150)/5))
}

// SessionSkillValue blends accuracy and reaction into one skill sample.
func SessionSkillValue(r model.SessionResult) float64 {
	return r.Accuracy*60 + ReactionScore(r.AvgReactionMs)*0.4
}

// BuildVisionProfile averages every session's skill value into the skills
// its module trains. Skills without sessions stay at 50.
func BuildVisionProfile(sessions []model.SessionRecord) VisionProfile {
	sums := map[Skill]float64{}
	counts := map[Skill]int{}
	for _, s := range sessions {
		v := SessionSkillValue(s.Result)
		for _, skill := range moduleSkills[s.Result.ModuleID] {
			sums[skill] += v
			counts[skill]++
		}
	}
	profile := VisionProfile{}
	for _, skill := range Skills {
		if counts[skill] == 0 {
			profile[skill] = defaultSkillScore
			continue
		}
		profile[skill] = min(100, int(math.Round(sums[skill]/float64(counts[skill]))))
	}
	return profile
}

const profileBarWidth = 20

// RenderProfile prints one bar per skill.
func RenderProfile(w io.Writer, p VisionProfile) error {
	if _, err := fmt.Fprintln(w, "Vision Profile"); err != nil {
		return err
	}
	labelWidth := 0
	for _, skill := range Skills {
		labelWidth = max(labelWidth, runewidth.StringWidth(SkillLabels[skill]))
	}
	for _, skill := range Skills {
		score := p[skill]
		filled := score * profileBarWidth / 100
		bar := strings.Repeat("█", filled) + strings.Repeat("░", profileBarWidth-filled)
		label := runewidth.FillRight(SkillLabels[skill], labelWidth)
		if _, err := fmt.Fprintf(w, "%s  %s %3d\n", label, bar, score); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}
