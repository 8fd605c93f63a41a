// Package comments implements the comment economy: a wallet gets one free
// comment per project, further comments and weight changes are paid for out
// of the wallet's token balance.
package comments

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/SecurityQQ/deliberation-hack-scoring/src/api/types"
	"github.com/SecurityQQ/deliberation-hack-scoring/src/ledger"
	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"
)

var (
	ErrProjectNotFound     = errors.New("comments: project not found")
	ErrCommentNotFound     = errors.New("comments: comment not found")
	ErrOwnerForbidden      = errors.New("comments: cannot comment on your own project")
	ErrAlreadyCommentedFree = errors.New("comments: free comment already used")
	ErrEmptyContent        = errors.New("comments: content is required")
	ErrInvalidRating       = errors.New("comments: rating must be between 0 and 100")
)

// Regenerator is notified after each successful submission so the project's
// deliberation map can be rebuilt. Failures are logged, never surfaced to the
// submitting caller.
type Regenerator interface {
	Regenerate(ctx context.Context, projectID uint64) (string, error)
}

// Publisher emits comment events for downstream consumers.
type Publisher func(ctx context.Context, payload map[string]interface{}) error

type Service struct {
	db        *gorm.DB
	sanitizer *bluemonday.Policy
	regen     Regenerator
	publish   Publisher
}

func New(db *gorm.DB, regen Regenerator, publish Publisher) *Service {
	return &Service{
		db:        db,
		sanitizer: bluemonday.StrictPolicy(),
		regen:     regen,
		publish:   publish,
	}
}

type SubmitInput struct {
	ProjectID uint64
	Wallet    string
	Content   string
	Rating    *int
	Boost     float64
}

// Submit validates and persists a comment. A first comment with boost <= 1 is
// free; anything else debits the boost amount in the same transaction as the
// insert, so either both happen or neither does.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (types.Comment, error) {
	content := strings.TrimSpace(s.sanitizer.Sanitize(in.Content))
	if content == "" {
		return types.Comment{}, ErrEmptyContent
	}
	if in.Rating != nil && (*in.Rating < 0 || *in.Rating > 100) {
		return types.Comment{}, ErrInvalidRating
	}

	weight := in.Boost
	if weight < 1 {
		weight = 1
	}

	var comment types.Comment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var project types.Project
		if err := tx.First(&project, "id = ?", in.ProjectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProjectNotFound
			}
			return err
		}
		if project.Owner == in.Wallet {
			return ErrOwnerForbidden
		}

		var prior int64
		if err := tx.Model(&types.Comment{}).
			Where("project_id = ? AND wallet = ?", in.ProjectID, in.Wallet).
			Count(&prior).Error; err != nil {
			return err
		}

		premium := prior > 0 || in.Boost > 1
		if premium {
			if prior > 0 && in.Boost <= 1 {
				// A repeat comment has to be paid for.
				return ErrAlreadyCommentedFree
			}
			if _, err := ledger.DebitTx(tx, in.Wallet, weight); err != nil {
				return err
			}
		}

		comment = types.Comment{
			ProjectID: in.ProjectID,
			Wallet:    in.Wallet,
			Content:   content,
			Weight:    weight,
			Premium:   premium,
			Rating:    in.Rating,
		}
		return tx.Create(&comment).Error
	})
	if err != nil {
		return types.Comment{}, err
	}

	s.afterSubmit(comment)
	return comment, nil
}

// afterSubmit dispatches side effects that must not block or fail the
// submission: the comment event and the deliberation map rebuild.
func (s *Service) afterSubmit(comment types.Comment) {
	if s.publish != nil {
		if err := s.publish(context.Background(), map[string]interface{}{
			"project": comment.ProjectID,
			"comment": comment.ID,
			"wallet":  comment.Wallet,
			"weight":  comment.Weight,
			"premium": comment.Premium,
			"time":    comment.CreatedAt.Unix(),
		}); err != nil {
			log.Printf("comments: publish event: %v", err)
		}
	}
	if s.regen != nil {
		go func() {
			if _, err := s.regen.Regenerate(context.Background(), comment.ProjectID); err != nil {
				log.Printf("deliberation: regenerate project %d: %v", comment.ProjectID, err)
			}
		}()
	}
}

// Boost debits amount from the wallet and adds it to the comment's weight,
// atomically.
func (s *Service) Boost(ctx context.Context, projectID, commentID uint64, wallet string, amount float64) (types.Comment, error) {
	return s.adjustWeight(ctx, projectID, commentID, wallet, amount, false)
}

// Downvote debits amount from the wallet and subtracts it from the comment's
// weight, clamped at zero. Spending tokens to downvote is the intended
// skin-in-the-game mechanic.
func (s *Service) Downvote(ctx context.Context, projectID, commentID uint64, wallet string, amount float64) (types.Comment, error) {
	return s.adjustWeight(ctx, projectID, commentID, wallet, amount, true)
}

func (s *Service) adjustWeight(ctx context.Context, projectID, commentID uint64, wallet string, amount float64, down bool) (types.Comment, error) {
	var comment types.Comment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&comment, "id = ? AND project_id = ?", commentID, projectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCommentNotFound
			}
			return err
		}

		if _, err := ledger.DebitTx(tx, wallet, amount); err != nil {
			return err
		}

		expr := gorm.Expr("weight + ?", amount)
		if down {
			expr = gorm.Expr("CASE WHEN weight - ? < 0 THEN 0 ELSE weight - ? END", amount, amount)
		}
		if err := tx.Model(&types.Comment{}).Where("id = ?", commentID).
			Update("weight", expr).Error; err != nil {
			return err
		}
		return tx.First(&comment, "id = ?", commentID).Error
	})
	if err != nil {
		return types.Comment{}, err
	}
	return comment, nil
}
