package webserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/SecurityQQ/deliberation-hack-scoring/src/ranking"
	"github.com/gin-gonic/gin"
)

type Ranking struct {
	engine *ranking.Engine
}

func NewRanking(engine *ranking.Engine) Ranking {
	return Ranking{engine: engine}
}

// Trigger runs a full leaderboard recomputation. Failures leave prior ranks
// and summaries intact.
func (r Ranking) Trigger(c *gin.Context) {
	if err := r.engine.RankAll(c); err != nil {
		switch {
		case errors.Is(err, ranking.ErrRankingInProgress):
			c.JSON(http.StatusConflict, gin.H{"err": "ranking already in progress"})
		case errors.Is(err, ranking.ErrParse):
			c.JSON(http.StatusBadGateway, gin.H{"err": "Failed to parse completion response"})
		case errors.Is(err, ranking.ErrGenerationFailed), errors.Is(err, context.DeadlineExceeded):
			c.JSON(http.StatusBadGateway, gin.H{"err": "Failed to generate rankings"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"err": "Internal server error"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Predictions generated successfully"})
}
