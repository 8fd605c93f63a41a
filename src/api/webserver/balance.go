package webserver

import (
	"errors"
	"net/http"

	"github.com/SecurityQQ/deliberation-hack-scoring/src/ledger"
	"github.com/gin-gonic/gin"
)

type Balance struct {
	ledger *ledger.Service
}

func NewBalance(l *ledger.Service) Balance {
	return Balance{ledger: l}
}

func (b Balance) Get(c *gin.Context) {
	balance, err := b.ledger.Balance(c, c.GetString("addr"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": "failed to fetch balance"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

// Credit is called once the deposit transaction is confirmed on chain. It is
// safe to retry: the txRef deduplicates.
func (b Balance) Credit(c *gin.Context) {
	var req struct {
		Amount float64 `json:"amount" binding:"required,gt=0"`
		TxRef  string  `json:"txRef" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	balance, err := b.ledger.Credit(c, c.GetString("addr"), req.Amount, req.TxRef)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidAmount) {
			c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"err": "failed to update balance"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

func (b Balance) Spend(c *gin.Context) {
	var req struct {
		Amount float64 `json:"amount" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	balance, err := b.ledger.Debit(c, c.GetString("addr"), req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientBalance):
			c.JSON(http.StatusBadRequest, gin.H{"err": "Insufficient balance"})
		case errors.Is(err, ledger.ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"err": "failed to spend balance"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}
