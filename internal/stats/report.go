package stats

import (
	"context"

	"github.com/winniek75/baseball-vison.training/internal/model"
	"github.com/winniek75/baseball-vison.training/internal/store"
)

// Report contains precomputed data for stats rendering.
type Report struct {
	Sessions []model.SessionRecord
	// Window holds the most recent CurveWindow sessions.
	Window  []model.SessionRecord
	Modules []ModuleAggregate
	Profile VisionProfile
}

// BuildReport loads and prepares data for stats rendering. The vision
// profile always covers the user's full history, unfiltered by module.
func BuildReport(ctx context.Context, st *store.Store, cfg model.StatsConfig) (Report, error) {
	sessions, err := st.ListSessions(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	sessions = LastN(sessions, cfg.Last)

	history := sessions
	if cfg.Module != "" || cfg.Since != nil || cfg.Last > 0 {
		history, err = st.ListSessions(ctx, model.StatsConfig{UserID: cfg.UserID})
		if err != nil {
			return Report{}, err
		}
	}

	return Report{
		Sessions: sessions,
		Window:   LastN(sessions, cfg.CurveWindow),
		Modules:  ModuleAggregates(sessions),
		Profile:  BuildVisionProfile(history),
	}, nil
}

// LastN returns the trailing n sessions; n <= 0 keeps them all.
func LastN(sessions []model.SessionRecord, n int) []model.SessionRecord {
	if n <= 0 || len(sessions) <= n {
		return sessions
	}
	return sessions[len(sessions)-n:]
}
