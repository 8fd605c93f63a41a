package webserver

import (
	"context"
	"time"

	"github.com/SecurityQQ/deliberation-hack-scoring/src/ai"
	"github.com/SecurityQQ/deliberation-hack-scoring/src/api/config"
	"github.com/SecurityQQ/deliberation-hack-scoring/src/api/data"
	"github.com/SecurityQQ/deliberation-hack-scoring/src/comments"
	"github.com/SecurityQQ/deliberation-hack-scoring/src/deliberation"
	"github.com/SecurityQQ/deliberation-hack-scoring/src/ledger"
	"github.com/SecurityQQ/deliberation-hack-scoring/src/ranking"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires the engines and returns the ready-to-serve router.
func New(cfg config.Config, db *gorm.DB, rdb *redis.Client, aiClient ai.Client) *gin.Engine {
	r := gin.Default()
	attachRoutes(r, cfg, db, rdb, aiClient)
	return r
}

func attachRoutes(r *gin.Engine, cfg config.Config, db *gorm.DB, rdb *redis.Client, aiClient ai.Client) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "https://deliberation-hack.vercel.app"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	ledgerSvc := ledger.New(db)
	generator := deliberation.New(db, aiClient)
	commentSvc := comments.New(db, generator, func(ctx context.Context, payload map[string]interface{}) error {
		return data.PublishComment(ctx, rdb, payload)
	})
	rankEngine := ranking.New(db, aiClient)

	authH := NewAuth(rdb, []byte(cfg.JWTSecret))
	balanceH := NewBalance(ledgerSvc)
	projectH := NewProjects(db, generator)
	commentH := NewComments(commentSvc)
	rankH := NewRanking(rankEngine)

	commentLimiter := NewRateLimiter(10, time.Minute)

	v1 := r.Group("/v1")
	{
		v1.POST("/auth/challenge", authH.Challenge)
		v1.POST("/auth/verify", authH.Verify)

		v1.GET("/projects", projectH.List)
		v1.GET("/projects/:id", projectH.Get)

		secured := v1.Use(JWTMiddleware([]byte(cfg.JWTSecret)))
		secured.GET("/balance", balanceH.Get)
		secured.POST("/balance/credit", balanceH.Credit)
		secured.POST("/balance/spend", balanceH.Spend)
		secured.POST("/projects", projectH.Create)
		secured.POST("/projects/:id/rating", projectH.Rate)
		secured.POST("/projects/:id/deliberation", projectH.RegenerateMap)
		secured.POST("/projects/:id/comments", RateLimitMiddleware(commentLimiter), commentH.Submit)
		secured.POST("/projects/:id/comments/:commentId/boost", commentH.Boost)
		secured.POST("/projects/:id/comments/:commentId/downvote", commentH.Downvote)
	}

	admin := v1.Group("/admin")
	admin.Use(JWTMiddleware([]byte(cfg.JWTSecret)))
	{
		admin.POST("/rank", rankH.Trigger)
	}
}
