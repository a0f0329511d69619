package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"campus_nav/internal/assistant"
	"campus_nav/internal/config"
	"campus_nav/internal/models"
)

var assistants = assistant.NewStore(assistant.Passthrough{}, assistant.DefaultSessionTTL)

// SetAssistantStore replaces the dialogue store, normally once at startup
// with one backed by the configured extractor.
func SetAssistantStore(store *assistant.Store) {
	assistants = store
}

// ExtractIntent runs one extraction outside of a dialogue.
func ExtractIntent(c *gin.Context) {
	var input struct {
		Text    string `json:"text" binding:"required"`
		Context string `json:"context"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	kind, err := assistant.ParseContext(input.Context)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := assistants.Extractor().Extract(c.Request.Context(), input.Text, kind)
	if err != nil {
		logrus.WithError(err).WithField("context", kind).Warn("Intent extraction failed, returning raw text")
	}

	resp := gin.H{"context": kind, "result": result}
	if kind == assistant.ContextGeneral {
		resp["intent"] = assistant.ParseIntent(result)
	}
	c.JSON(http.StatusOK, resp)
}

// campusName names the campus the assistant welcomes visitors to: the
// requested map, else the one the navigation page falls back to.
func campusName(mapID uint) string {
	var m models.Map
	if mapID != 0 && config.DB.Select("id", "name").First(&m, mapID).Error == nil {
		return m.Name
	}
	if err := firstActiveMap(config.DB.Select("id", "name"), &m); err != nil {
		return assistant.DefaultCampusName
	}
	return m.Name
}

// StartAssistantSession opens a dialogue in the IDLE state.
func StartAssistantSession(c *gin.Context) {
	var input struct {
		MapID uint `json:"map_id"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	d := assistants.Create(campusName(input.MapID))
	c.JSON(http.StatusCreated, gin.H{"session": d.Current()})
}

// AssistantEvent feeds one client event into a dialogue.
func AssistantEvent(c *gin.Context) {
	d, ok := assistants.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found or expired"})
		return
	}

	var ev assistant.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reply, err := d.Handle(c.Request.Context(), ev)
	if errors.Is(err, assistant.ErrUnexpectedEvent) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "session": reply})
		return
	}
	if err != nil {
		logrus.WithError(err).WithField("session_id", d.ID).Error("Assistant event failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to handle event"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": reply})
}
