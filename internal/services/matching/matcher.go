package matching

import (
	"bytes"
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/apperror"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/logger"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/metrics"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/models"
)

// ProfileSource lists every freelancer profile with its user preloaded.
type ProfileSource interface {
	ListFreelancerProfiles(ctx context.Context) ([]models.FreelancerProfile, error)
}

type MatchResult struct {
	FreelancerID uuid.UUID       `json:"freelancer_id"`
	Username     string          `json:"username"`
	Skills       string          `json:"skills"`
	Experience   int             `json:"experience"`
	HourlyRate   decimal.Decimal `json:"hourly_rate"`
	Score        float64         `json:"score"`
}

type Matcher struct {
	Profiles ProfileSource
	Log      logger.Logger
}

func NewMatcher(profiles ProfileSource, log logger.Logger) *Matcher {
	return &Matcher{Profiles: profiles, Log: log}
}

// ProfileText is the document a profile contributes to the corpus.
func ProfileText(p models.FreelancerProfile) string {
	exp := ""
	if p.Experience != 0 {
		exp = strconv.Itoa(p.Experience)
	}
	return p.Skills + " " + exp + " " + p.Bio
}

// FindMatches ranks freelancers against description plus requiredSkills.
// Only positive scores are returned, highest first, ties by ascending freelancer id.
func (m *Matcher) FindMatches(ctx context.Context, description, requiredSkills string) ([]MatchResult, error) {
	if strings.TrimSpace(description) == "" {
		metrics.MatchRequests.WithLabelValues("invalid").Inc()
		return nil, apperror.Validation("project description is required")
	}

	profiles, err := m.Profiles.ListFreelancerProfiles(ctx)
	if err != nil {
		metrics.MatchRequests.WithLabelValues("error").Inc()
		return nil, apperror.Store("list freelancer profiles", err)
	}

	texts := make([]string, len(profiles))
	for i, p := range profiles {
		texts[i] = ProfileText(p)
	}
	scores := Scores(description+" "+requiredSkills, texts)

	out := make([]MatchResult, 0, len(profiles))
	for i, p := range profiles {
		if scores[i] <= 0 {
			continue
		}
		r := MatchResult{
			FreelancerID: p.UserID,
			Skills:       p.Skills,
			Experience:   p.Experience,
			HourlyRate:   p.HourlyRate,
			Score:        scores[i],
		}
		if p.User != nil {
			r.Username = p.User.Username
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		return bytes.Compare(out[a].FreelancerID[:], out[b].FreelancerID[:]) < 0
	})

	metrics.MatchRequests.WithLabelValues("ok").Inc()
	metrics.MatchCandidates.Observe(float64(len(out)))
	if m.Log != nil {
		m.Log.Debug("freelancer match computed", map[string]interface{}{
			"profiles": len(profiles),
			"matches":  len(out),
		})
	}
	return out, nil
}
