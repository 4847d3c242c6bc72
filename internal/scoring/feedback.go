package scoring

import "github.com/winniek75/baseball-vison.training/internal/model"

// FeedbackKind selects the styling of a feedback label.
type FeedbackKind int

const (
	FeedbackPerfect FeedbackKind = iota
	FeedbackGreat
	FeedbackMiss
	FeedbackFake
	FeedbackNeutral
)

// Feedback is the short label flashed after a round resolves.
type Feedback struct {
	Text string
	Kind FeedbackKind
}

// ComboLabel names a correct reaction for display.
func ComboLabel(reactionMs, windowMs float64) string {
	r := ratio(reactionMs, windowMs)
	switch {
	case r <= 0.3:
		return "Perfect"
	case r <= 0.5:
		return "Great"
	default:
		return "Good"
	}
}

// FeedbackFor describes a resolved round.
func FeedbackFor(o model.RoundOutcome, windowMs float64) Feedback {
	switch {
	case o.IsCorrect && o.Spec.Kind == model.KindFake:
		return Feedback{Text: "Nice read!", Kind: FeedbackFake}
	case o.IsCorrect && o.Timed:
		label := ComboLabel(o.ReactionMs, windowMs)
		kind := FeedbackGreat
		if label == "Perfect" {
			kind = FeedbackPerfect
		}
		return Feedback{Text: label + "!", Kind: kind}
	case o.IsCorrect:
		return Feedback{Text: "Good eye", Kind: FeedbackGreat}
	case !o.Counted:
		return Feedback{Text: "Ball", Kind: FeedbackNeutral}
	}

	switch {
	case o.Tapped && o.Spec.Kind == model.KindFake:
		return Feedback{Text: "Fake! Miss", Kind: FeedbackMiss}
	case o.Tapped && o.Spec.Kind == model.KindBall:
		return Feedback{Text: "Ball! Miss", Kind: FeedbackMiss}
	case o.Expired && o.Spec.HasNumber:
		return Feedback{Text: "Too slow", Kind: FeedbackMiss}
	case o.Expired:
		return Feedback{Text: "Looking!", Kind: FeedbackMiss}
	case o.Spec.HasNumber:
		return Feedback{Text: "Wrong number", Kind: FeedbackMiss}
	default:
		return Feedback{Text: "Miss", Kind: FeedbackMiss}
	}
}
