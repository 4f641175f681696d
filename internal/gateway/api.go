package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bubblewire/bubblewire/internal/session"
	"github.com/bubblewire/bubblewire/internal/validate"
)

const apiPrefix = "/api"

func (s *Server) apiAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			token = c.Query("token")
		}
		if !s.authenticate(token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}

func (s *Server) registerAPIRoutes(engine *gin.Engine) {
	api := engine.Group(apiPrefix, s.apiAuthMiddleware())
	api.GET("/sessions", s.ginAPISessions)
	api.DELETE("/sessions/:id", s.ginAPISessionDelete)
	api.PUT("/sessions/:id/survey", s.ginAPISurveyUpdate)
	api.GET("/chat/history", s.ginAPIChatHistory)
	api.POST("/chat/stream", s.ginAPIChatStream)
}

func (s *Server) ginAPISessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": s.Store.List()})
}

func (s *Server) ginAPISessionDelete(c *gin.Context) {
	if err := s.Store.Delete(c.Param("id")); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ginAPISurveyUpdate installs or replaces a session's survey script. The
// survey contract is owned by the caller; generation only validates against it.
func (s *Server) ginAPISurveyUpdate(c *gin.Context) {
	var body SurveyUpdateParams
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	state, err := surveyStateFromParams(&body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sessionID := c.Param("id")
	s.Store.GetOrCreate(sessionID)
	s.Store.SetSurvey(sessionID, state)
	if err := s.Store.Save(); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": sessionID, "survey": state})
}

func surveyStateFromParams(p *SurveyUpdateParams) (*session.SurveyState, error) {
	state := &session.SurveyState{
		Active:        p.Active,
		QuestionIndex: p.QuestionIndex,
	}
	for _, q := range p.Questions {
		kind := validate.ChoiceKind(q.ChoiceKind)
		if kind != validate.SingleChoice && kind != validate.MultipleChoice {
			return nil, fmt.Errorf("choiceKind must be single_choice or multiple_choice, got %q", q.ChoiceKind)
		}
		sq := session.SurveyQuestion{
			Prompt:        q.Prompt,
			ChoiceKind:    kind,
			MinSelections: q.MinSelections,
			MaxSelections: q.MaxSelections,
		}
		for _, o := range q.Options {
			sq.Options = append(sq.Options, validate.ExpectedOption{ID: o.ID, Text: o.Text})
		}
		state.Questions = append(state.Questions, sq)
	}
	return state, nil
}

func (s *Server) ginAPIChatHistory(c *gin.Context) {
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "sessionId required"})
		return
	}
	entries, err := session.NewTranscript(s.Store.TranscriptPath(sessionID)).Entries()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": sessionID, "entries": entries})
}

// ginAPIChatStream runs one turn and streams its events as NDJSON, one event
// per line, flushed as emitted. Client disconnect cancels the request context
// and with it the run.
func (s *Server) ginAPIChatStream(c *gin.Context) {
	var body ChatSendParams
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if body.Text == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "text required"})
		return
	}

	sessionID, events, err := s.startTurn(c.Request.Context(), body.SessionID, body.Text)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("X-Session-Id", sessionID)
	c.Status(http.StatusOK)

	enc := json.NewEncoder(c.Writer)
	flusher, _ := c.Writer.(http.Flusher)
	for ev := range events {
		if err := enc.Encode(ev); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}
