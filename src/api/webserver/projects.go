package webserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/SecurityQQ/deliberation-hack-scoring/src/api/types"
	"github.com/SecurityQQ/deliberation-hack-scoring/src/deliberation"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Projects struct {
	db        *gorm.DB
	generator *deliberation.Generator
}

func NewProjects(db *gorm.DB, g *deliberation.Generator) Projects {
	return Projects{db: db, generator: g}
}

func (p Projects) Create(c *gin.Context) {
	var req struct {
		Title       string `json:"title" binding:"required"`
		Description string `json:"description" binding:"required"`
		Image       string `json:"image" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "Missing required fields"})
		return
	}

	project := types.Project{
		Title:       req.Title,
		Description: req.Description,
		Image:       req.Image,
		Owner:       c.GetString("addr"),
	}
	if err := p.db.Create(&project).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": "Error creating project"})
		return
	}
	c.JSON(http.StatusCreated, project)
}

// List is the leaderboard projection: ranked projects first, then unranked by
// recency, each with its comment count and accumulated weight.
func (p Projects) List(c *gin.Context) {
	var projects []types.Project
	// `rank` is a reserved word in MySQL 8.
	if err := p.db.Preload("Comments").
		Order("CASE WHEN `rank` IS NULL THEN 1 ELSE 0 END, `rank` asc, created_at desc").
		Find(&projects).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": "failed to list projects"})
		return
	}

	out := make([]gin.H, 0, len(projects))
	for _, pr := range projects {
		var totalWeight float64
		for _, cm := range pr.Comments {
			totalWeight += cm.Weight
		}
		out = append(out, gin.H{
			"id":              pr.ID,
			"title":           pr.Title,
			"description":     pr.Description,
			"image":           pr.Image,
			"owner":           pr.Owner,
			"rank":            pr.Rank,
			"aiSummary":       pr.AISummary,
			"deliberationMap": pr.DeliberationMap,
			"commentCount":    len(pr.Comments),
			"totalWeight":     totalWeight,
		})
	}
	c.JSON(http.StatusOK, gin.H{"projects": out})
}

func (p Projects) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "bad project id"})
		return
	}

	var project types.Project
	if err := p.db.Preload("Comments", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at asc")
	}).First(&project, "id = ?", id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"err": "project not found"})
		return
	}
	c.JSON(http.StatusOK, project)
}

// Rate records a wallet's 0-100 rating in the project's legacy ratings map.
func (p Projects) Rate(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "bad project id"})
		return
	}
	var req struct {
		Rating int `json:"rating" binding:"min=0,max=100"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	var project types.Project
	if err := p.db.First(&project, "id = ?", id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"err": "project not found"})
		return
	}

	ratings := map[string]int{}
	if project.Ratings != "" {
		_ = json.Unmarshal([]byte(project.Ratings), &ratings)
	}
	ratings[c.GetString("addr")] = req.Rating
	raw, _ := json.Marshal(ratings)

	if err := p.db.Model(&project).Update("ratings", string(raw)).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": "failed to store rating"})
		return
	}
	c.JSON(http.StatusOK, project)
}

func (p Projects) RegenerateMap(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "bad project id"})
		return
	}

	deliberationMap, err := p.generator.Regenerate(c, id)
	if err != nil {
		switch {
		case errors.Is(err, deliberation.ErrProjectNotFound):
			c.JSON(http.StatusNotFound, gin.H{"err": "project not found"})
		case errors.Is(err, deliberation.ErrGenerationFailed), errors.Is(err, context.DeadlineExceeded):
			c.JSON(http.StatusBadGateway, gin.H{"err": "failed to generate deliberation map"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"err": "failed to generate deliberation map"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"deliberationMap": deliberationMap})
}
