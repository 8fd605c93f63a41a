package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SecurityQQ/deliberation-hack-scoring/src/ai"
	"github.com/SecurityQQ/deliberation-hack-scoring/src/api/config"
	"github.com/SecurityQQ/deliberation-hack-scoring/src/api/data"
	"github.com/SecurityQQ/deliberation-hack-scoring/src/api/types"
	"github.com/SecurityQQ/deliberation-hack-scoring/src/api/webserver"
	"gorm.io/gorm"
)

var allModels = []interface{}{
	&types.User{}, &types.Project{},
	&types.Comment{}, &types.BalanceCredit{},
}

func migrate(db *gorm.DB) {
	err := db.AutoMigrate(allModels...)

	if err == nil {
		return
	}

	log.Printf("auto‑migrate failed (%v) – dropping & recreating schema", err)
	_ = db.Migrator().DropTable(
		"balance_credits", "comments", "projects", "users",
	)
	if err := db.AutoMigrate(allModels...); err != nil {
		log.Fatalf("migrate after drop: %v", err)
	}
}

func main() {
	cfg := config.Load()

	db := data.MustMySQL(cfg.MySQLDSN)
	migrate(db)

	rdb := data.MustRedis(cfg.RedisURL)

	aiClient, err := ai.NewClient(ai.FactoryConfig{
		Provider:  cfg.AIProvider,
		OpenAIKey: cfg.OpenAIKey,
		ClaudeKey: cfg.ClaudeKey,
	})
	if err != nil {
		log.Fatalf("ai: %v", err)
	}

	router := webserver.New(cfg, db, rdb, aiClient)
	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http: %v", err)
		}
	}()
	log.Printf("Hack scoring API listening on %s", cfg.Port)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutCtx, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()
	_ = httpSrv.Shutdown(shutCtx)
}
