// Package deliberation builds AI deliberation maps: short structured markdown
// summaries of a project's weighted comment discussion.
package deliberation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SecurityQQ/deliberation-hack-scoring/src/ai"
	"github.com/SecurityQQ/deliberation-hack-scoring/src/api/types"
	"gorm.io/gorm"
)

var (
	ErrProjectNotFound  = errors.New("deliberation: project not found")
	ErrGenerationFailed = errors.New("deliberation: failed to generate map")
)

const generationTimeout = 30 * time.Second

type Generator struct {
	db     *gorm.DB
	client ai.Client
}

func New(db *gorm.DB, client ai.Client) *Generator {
	return &Generator{db: db, client: client}
}

// Regenerate rebuilds the project's deliberation map from the comment set as
// of the call. On any failure the previously persisted map is left untouched;
// concurrent regenerations resolve last-write-wins.
func (g *Generator) Regenerate(ctx context.Context, projectID uint64) (string, error) {
	var project types.Project
	err := g.db.WithContext(ctx).Preload("Comments").First(&project, "id = ?", projectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrProjectNotFound
	}
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, generationTimeout)
	defer cancel()

	text, err := g.client.Complete(ctx, buildPrompt(project), ai.Options{MaxCompletionTokens: 500})
	if err != nil {
		if errors.Is(err, ai.ErrEmptyCompletion) {
			return "", ErrGenerationFailed
		}
		return "", err
	}
	deliberationMap := strings.TrimSpace(text)
	if deliberationMap == "" {
		return "", ErrGenerationFailed
	}

	if err := g.db.WithContext(context.WithoutCancel(ctx)).Model(&types.Project{}).
		Where("id = ?", projectID).
		Update("deliberation_map", deliberationMap).Error; err != nil {
		return "", err
	}
	return deliberationMap, nil
}

func buildPrompt(project types.Project) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Project Description: %s\nComments:\n", project.Description)
	for _, c := range project.Comments {
		fmt.Fprintf(&sb, "- %s (Weight: %g, Rating (0-100): %s)\n", c.Content, c.Weight, ratingLabel(c.Rating))
	}

	return fmt.Sprintf(`Create a 450-character length deliberation map for the following content. Use markdown, emojis, and try to be structured. Your goal is to return a deliberation map that will be used for hackathon project selection. Use some criteria like: Technical Completeness, Future Plans, Creativity, and Overall Impression. Please pay attention that inside the content there are comments with different weights and ratings; the more weight and higher rating, the more important the comment is:

%s`, sb.String())
}

func ratingLabel(rating *int) string {
	if rating == nil {
		return "N/A"
	}
	return fmt.Sprintf("%d", *rating)
}
