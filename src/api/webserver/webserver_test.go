package webserver

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SecurityQQ/deliberation-hack-scoring/src/ai"
	"github.com/SecurityQQ/deliberation-hack-scoring/src/api/config"
	"github.com/SecurityQQ/deliberation-hack-scoring/src/api/data"
	"github.com/SecurityQQ/deliberation-hack-scoring/src/api/types"
	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type stubClient struct {
	reply string
}

func (s *stubClient) Complete(ctx context.Context, prompt string, opts ai.Options) (string, error) {
	return s.reply, nil
}

func testRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&types.User{}, &types.Project{}, &types.Comment{}, &types.BalanceCredit{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	mr := miniredis.RunT(t)
	rdb := data.MustRedis("redis://" + mr.Addr())

	cfg := config.Config{JWTSecret: "test-secret"}
	r := gin.New()
	attachRoutes(r, cfg, db, rdb, &stubClient{reply: `[{"projectId": 1, "summary": "winner", "rank": 1}]`})
	return r, db
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// authenticate runs the challenge/verify flow with a real secp256k1 key.
func authenticate(t *testing.T, r *gin.Engine, key *ecdsa.PrivateKey) (addr, token string) {
	t.Helper()
	addr = crypto.PubkeyToAddress(key.PublicKey).Hex()

	w := doJSON(t, r, http.MethodPost, "/v1/auth/challenge", "", gin.H{"address": addr})
	if w.Code != http.StatusOK {
		t.Fatalf("challenge: status %d: %s", w.Code, w.Body.String())
	}
	var challenge struct {
		Nonce string `json:"nonce"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &challenge); err != nil {
		t.Fatalf("decode challenge: %v", err)
	}

	msg := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(challenge.Nonce), challenge.Nonce)
	sig, err := crypto.Sign(crypto.Keccak256([]byte(msg)), key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	w = doJSON(t, r, http.MethodPost, "/v1/auth/verify", "", gin.H{
		"address":   addr,
		"signature": "0x" + hex.EncodeToString(sig),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("verify: status %d: %s", w.Code, w.Body.String())
	}
	var verified struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &verified); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	return addr, verified.Token
}

func mustKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestAuthFlow(t *testing.T) {
	r, _ := testRouter(t)
	_, token := authenticate(t, r, mustKey(t))
	if token == "" {
		t.Fatal("empty token")
	}
}

func TestVerifyRejectsWrongSigner(t *testing.T) {
	r, _ := testRouter(t)
	victim := crypto.PubkeyToAddress(mustKey(t).PublicKey).Hex()

	w := doJSON(t, r, http.MethodPost, "/v1/auth/challenge", "", gin.H{"address": victim})
	var challenge struct {
		Nonce string `json:"nonce"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &challenge)

	msg := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(challenge.Nonce), challenge.Nonce)
	sig, _ := crypto.Sign(crypto.Keccak256([]byte(msg)), mustKey(t))

	w = doJSON(t, r, http.MethodPost, "/v1/auth/verify", "", gin.H{
		"address":   victim,
		"signature": "0x" + hex.EncodeToString(sig),
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestSecuredRoutesRequireToken(t *testing.T) {
	r, _ := testRouter(t)
	w := doJSON(t, r, http.MethodGet, "/v1/balance", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestBalanceLifecycle(t *testing.T) {
	r, _ := testRouter(t)
	_, token := authenticate(t, r, mustKey(t))

	w := doJSON(t, r, http.MethodGet, "/v1/balance", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("balance: %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Balance float64 `json:"balance"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Balance != 10 {
		t.Fatalf("starting balance = %g, want 10", resp.Balance)
	}

	// Credit twice with the same txRef; only the first may count.
	for i := 0; i < 2; i++ {
		w = doJSON(t, r, http.MethodPost, "/v1/balance/credit", token, gin.H{"amount": 5.0, "txRef": "0xdeadbeef"})
		if w.Code != http.StatusOK {
			t.Fatalf("credit: %d: %s", w.Code, w.Body.String())
		}
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Balance != 15 {
		t.Fatalf("balance after replayed credit = %g, want 15", resp.Balance)
	}

	w = doJSON(t, r, http.MethodPost, "/v1/balance/spend", token, gin.H{"amount": 20.0})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("overspend: expected 400, got %d", w.Code)
	}
}

func TestProjectAndCommentFlow(t *testing.T) {
	r, db := testRouter(t)
	_, ownerToken := authenticate(t, r, mustKey(t))
	_, voterToken := authenticate(t, r, mustKey(t))

	w := doJSON(t, r, http.MethodPost, "/v1/projects", ownerToken, gin.H{
		"title":       "Solar Tracker",
		"description": "Dual-axis tracking on a budget",
		"image":       "https://img.example/solar.png",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create project: %d: %s", w.Code, w.Body.String())
	}
	var project types.Project
	_ = json.Unmarshal(w.Body.Bytes(), &project)

	// Owner cannot comment on their own project.
	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/v1/projects/%d/comments", project.ID), ownerToken, gin.H{
		"content":     "self praise",
		"boostAmount": 1.0,
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("owner comment: expected 403, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/v1/projects/%d/comments", project.ID), voterToken, gin.H{
		"content":     "Clean build, works outdoors",
		"rating":      80,
		"boostAmount": 1.0,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("comment: %d: %s", w.Code, w.Body.String())
	}
	var comment types.Comment
	_ = json.Unmarshal(w.Body.Bytes(), &comment)
	if comment.Premium {
		t.Error("first comment flagged premium")
	}

	// The async deliberation rebuild lands eventually.
	deadline := time.Now().Add(2 * time.Second)
	for {
		var reloaded types.Project
		if err := db.First(&reloaded, "id = ?", project.ID).Error; err != nil {
			t.Fatalf("reload: %v", err)
		}
		if reloaded.DeliberationMap != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("deliberation map never generated")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Leaderboard projection lists the project with its comment count.
	w = doJSON(t, r, http.MethodGet, "/v1/projects", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d", w.Code)
	}
	var listing struct {
		Projects []struct {
			ID           uint64 `json:"id"`
			CommentCount int    `json:"commentCount"`
		} `json:"projects"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &listing)
	if len(listing.Projects) != 1 || listing.Projects[0].CommentCount != 1 {
		t.Fatalf("unexpected listing: %+v", listing)
	}
}

func TestRankTrigger(t *testing.T) {
	r, db := testRouter(t)
	_, token := authenticate(t, r, mustKey(t))

	project := types.Project{Title: "P", Description: "d", Owner: "0xSomeoneElse"}
	if err := db.Create(&project).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := doJSON(t, r, http.MethodPost, "/v1/admin/rank", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("rank: %d: %s", w.Code, w.Body.String())
	}

	var reloaded types.Project
	if err := db.First(&reloaded, "id = ?", project.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Rank == nil || *reloaded.Rank != 1 {
		t.Fatalf("rank = %v, want 1", reloaded.Rank)
	}
	if reloaded.AISummary == nil || *reloaded.AISummary != "winner" {
		t.Fatalf("summary = %v", reloaded.AISummary)
	}
}
