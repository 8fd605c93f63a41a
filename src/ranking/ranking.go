// Package ranking recomputes the leaderboard: one AI completion over every
// project's deliberation context, parsed into a strict per-project rank and
// summary.
package ranking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/SecurityQQ/deliberation-hack-scoring/src/ai"
	"github.com/SecurityQQ/deliberation-hack-scoring/src/api/types"
	"gorm.io/gorm"
)

var (
	ErrGenerationFailed  = errors.New("ranking: failed to generate rankings")
	ErrParse             = errors.New("ranking: completion is not valid ranking JSON")
	ErrRankingInProgress = errors.New("ranking: a run is already in progress")
)

const rankTimeout = 30 * time.Second

type Engine struct {
	db     *gorm.DB
	client ai.Client
	mu     sync.Mutex
}

func New(db *gorm.DB, client ai.Client) *Engine {
	return &Engine{db: db, client: client}
}

// RankAll rebuilds rank and AI summary for every project. Runs are mutually
// exclusive; a second trigger while one is in flight fails fast. Prior ranks
// survive any failure.
func (e *Engine) RankAll(ctx context.Context) error {
	if !e.mu.TryLock() {
		return ErrRankingInProgress
	}
	defer e.mu.Unlock()

	var projects []types.Project
	if err := e.db.WithContext(ctx).Preload("Comments").Find(&projects).Error; err != nil {
		return err
	}
	if len(projects) == 0 {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, rankTimeout)
	defer cancel()

	text, err := e.client.Complete(callCtx, buildPrompt(projects), ai.Options{MaxCompletionTokens: 2000})
	if err != nil {
		if errors.Is(err, ai.ErrEmptyCompletion) {
			return ErrGenerationFailed
		}
		return err
	}

	entries, err := parseEntries(text)
	if err != nil {
		return err
	}

	known := make(map[uint64]struct{}, len(projects))
	for _, p := range projects {
		known[p.ID] = struct{}{}
	}

	for _, entry := range entries {
		if _, ok := known[uint64(entry.ProjectID)]; !ok {
			log.Printf("ranking: skipping unknown project id %d", uint64(entry.ProjectID))
			continue
		}
		if err := e.db.WithContext(ctx).Model(&types.Project{}).
			Where("id = ?", uint64(entry.ProjectID)).
			Updates(map[string]interface{}{
				"ai_summary": strings.TrimSpace(entry.Summary),
				"rank":       float64(entry.Rank),
			}).Error; err != nil {
			return err
		}
	}
	return nil
}

type entry struct {
	ProjectID flexUint  `json:"projectId"`
	Summary   string    `json:"summary"`
	Rank      flexFloat `json:"rank"`
}

func parseEntries(text string) ([]entry, error) {
	cleaned := stripCodeFence(strings.TrimSpace(text))

	var entries []entry
	if err := json.Unmarshal([]byte(cleaned), &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	valid := entries[:0]
	for _, en := range entries {
		if en.ProjectID == 0 || en.Rank <= 0 {
			log.Printf("ranking: dropping malformed entry %+v", en)
			continue
		}
		valid = append(valid, en)
	}
	return valid, nil
}

// stripCodeFence removes a surrounding markdown code fence, which models
// regularly wrap JSON answers in despite instructions.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// flexUint and flexFloat accept both JSON numbers and numeric strings; the
// completion service alternates between the two.
type flexUint uint64

func (f *flexUint) UnmarshalJSON(data []byte) error {
	var n uint64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexUint(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &n)
	if err != nil {
		return fmt.Errorf("invalid project id %q", s)
	}
	*f = flexUint(n)
	return nil
}

type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		*f = flexFloat(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%g", &v)
	if err != nil {
		return fmt.Errorf("invalid rank %q", s)
	}
	*f = flexFloat(v)
	return nil
}

func buildPrompt(projects []types.Project) string {
	var sb strings.Builder
	for i, p := range projects {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "Project ID: %d\nProject Title: %s\nProject Description: %s\nDeliberation Map: %s\nComments:\n",
			p.ID, p.Title, p.Description, deref(p.DeliberationMap))
		for _, c := range p.Comments {
			fmt.Fprintf(&sb, "- %s (Weight: %g, Rating: %s)\n", c.Content, c.Weight, ratingLabel(c.Rating))
		}
	}

	return fmt.Sprintf(`Please provide only a valid JSON array with each object containing a "projectId", "summary", and "rank" for each project based on the following deliberation maps and comments:
%s

Use some criteria like: Technical Completeness, Future Plans, Creativity, and Overall Impression. Please pay attention that inside the content there are comments with different weights and ratings; the more weight and higher rating, the more important the comment is.
Ranks should be from 1 to N, 1 is the best project.
The format should be as follows:
[
  {
    "projectId": 1,
    "summary": "Main advantages of ... makes this project better than ... that is why it is ranked higher ...",
    "rank": 1
  },
  {
    "projectId": 2,
    "summary": "Brief summary of the project.",
    "rank": 2
  }
]`, sb.String())
}

func deref(s *string) string {
	if s == nil {
		return "N/A"
	}
	return *s
}

func ratingLabel(rating *int) string {
	if rating == nil {
		return "N/A"
	}
	return fmt.Sprintf("%d", *rating)
}
