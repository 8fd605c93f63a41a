package webserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/SecurityQQ/deliberation-hack-scoring/src/api/types"
	"github.com/SecurityQQ/deliberation-hack-scoring/src/comments"
	"github.com/SecurityQQ/deliberation-hack-scoring/src/ledger"
	"github.com/gin-gonic/gin"
)

type Comments struct {
	svc *comments.Service
}

func NewComments(svc *comments.Service) Comments {
	return Comments{svc: svc}
}

func (h Comments) Submit(c *gin.Context) {
	projectID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "bad project id"})
		return
	}
	var req struct {
		Content     string  `json:"content" binding:"required"`
		Rating      *int    `json:"rating"`
		BoostAmount float64 `json:"boostAmount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	comment, err := h.svc.Submit(c, comments.SubmitInput{
		ProjectID: projectID,
		Wallet:    c.GetString("addr"),
		Content:   req.Content,
		Rating:    req.Rating,
		Boost:     req.BoostAmount,
	})
	if err != nil {
		h.reportError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

func (h Comments) Boost(c *gin.Context) {
	h.adjust(c, h.svc.Boost)
}

func (h Comments) Downvote(c *gin.Context) {
	h.adjust(c, h.svc.Downvote)
}

type weightOp func(ctx context.Context, projectID, commentID uint64, wallet string, amount float64) (types.Comment, error)

func (h Comments) adjust(c *gin.Context, op weightOp) {
	projectID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "bad project id"})
		return
	}
	commentID, err := strconv.ParseUint(c.Param("commentId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "bad comment id"})
		return
	}
	var req struct {
		Amount float64 `json:"amount" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	comment, err := op(c, projectID, commentID, c.GetString("addr"), req.Amount)
	if err != nil {
		h.reportError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

func (h Comments) reportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, comments.ErrProjectNotFound):
		c.JSON(http.StatusNotFound, gin.H{"err": "Project not found"})
	case errors.Is(err, comments.ErrCommentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"err": "Comment not found"})
	case errors.Is(err, comments.ErrOwnerForbidden):
		c.JSON(http.StatusForbidden, gin.H{"err": "You cannot comment on your own project"})
	case errors.Is(err, comments.ErrAlreadyCommentedFree):
		c.JSON(http.StatusBadRequest, gin.H{"err": "You have already left a free comment"})
	case errors.Is(err, ledger.ErrInsufficientBalance):
		c.JSON(http.StatusBadRequest, gin.H{"err": "Insufficient balance"})
	case errors.Is(err, comments.ErrEmptyContent), errors.Is(err, comments.ErrInvalidRating), errors.Is(err, ledger.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"err": "internal error"})
	}
}
