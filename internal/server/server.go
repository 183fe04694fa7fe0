// Package server is the HTTP surface: the JSON API the browser client
// talks to, plus static serving of the client itself.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ChamsBouzaiene/causette/internal/attachments"
	"github.com/ChamsBouzaiene/causette/internal/chat"
	"github.com/ChamsBouzaiene/causette/internal/history"
	"github.com/ChamsBouzaiene/causette/internal/prompts"
)

// Client-facing error messages. The browser UI is French; these strings
// are part of its contract and must not drift.
const (
	msgMissingMessages = "Messages manquants."
	msgAPIError        = "Erreur API."
	msgServerError     = "Erreur serveur."
	msgIndexInvalid    = "Index invalide."
	msgEntryNotFound   = "Entrée non trouvée."
	msgMissingPrompt   = "Prompt manquant."
	msgPromptOrIndex   = "Prompt ou index invalide."
	msgNoFile          = "Aucun fichier."
	msgFileTooLarge    = "Fichier trop volumineux."
	msgInvalidRequest  = "Requête invalide."

	// Attached to a chat reply when the last history flush failed: the
	// exchange is held in memory but not on disk.
	msgHistoryNotSaved = "Historique non sauvegardé."
)

const searchResultLimit = 20

// Options carries everything the server needs; all fields are required
// except Attachments and Search, which disable their endpoints when nil.
type Options struct {
	Log          zerolog.Logger
	Client       chat.Client
	DefaultModel string
	History      *history.Store
	Reconciler   *history.Reconciler
	Search       *history.SearchIndex
	Prompts      *prompts.Store
	Attachments  *attachments.Registry
	PublicDir    string
}

// Server wires the stores and the completion gateway behind the HTTP API.
type Server struct {
	log         zerolog.Logger
	client      chat.Client
	model       string
	history     *history.Store
	reconciler  *history.Reconciler
	search      *history.SearchIndex
	prompts     *prompts.Store
	attachments *attachments.Registry
	engine      *gin.Engine
}

// New builds the server and registers all routes.
func New(opts Options) *Server {
	s := &Server{
		log:         opts.Log,
		client:      opts.Client,
		model:       opts.DefaultModel,
		history:     opts.History,
		reconciler:  opts.Reconciler,
		search:      opts.Search,
		prompts:     opts.Prompts,
		attachments: opts.Attachments,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(opts.Log))

	api := engine.Group("/api")
	{
		api.POST("/chat", s.handleChat)

		api.GET("/history", s.handleHistoryList)
		api.PUT("/history/:index", s.handleHistoryReplace)
		api.DELETE("/history/:index", s.handleHistoryDelete)
		if s.search != nil {
			api.GET("/history/search", s.handleHistorySearch)
		}

		api.GET("/prompts", s.handlePromptList)
		api.POST("/prompts", s.handlePromptAdd)
		api.PUT("/prompts/:index", s.handlePromptUpdate)
		api.DELETE("/prompts/:index", s.handlePromptDelete)

		if s.attachments != nil {
			api.POST("/upload", s.handleUpload)
			api.GET("/uploads", s.handleUploadList)
		}
	}

	// Everything outside /api is the static browser client.
	if opts.PublicDir != "" {
		engine.NoRoute(gin.WrapH(http.FileServer(http.Dir(opts.PublicDir))))
	}

	s.engine = engine
	return s
}

// Handler returns the ready-to-mount HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}

// chatRequest mirrors the DeepSeek-style payload the browser sends, with
// the two discussion routing hints on top.
type chatRequest struct {
	Model              string      `json:"model"`
	Messages           []chat.Turn `json:"messages"`
	Stream             bool        `json:"stream"`
	DiscussionID       string      `json:"discussionId"`
	SelectedHistoryIdx *int        `json:"selectedHistoryIdx"`
}

// chatResponse carries the reply text. Warning is set when persistence
// is lagging behind; the exchange still answered.
type chatResponse struct {
	Reply   string `json:"reply"`
	Warning string `json:"warning,omitempty"`
}

func (s *Server) handleChat(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingMessages})
		return
	}
	if err := validateChatRequest(body); err != nil {
		s.log.Debug().Err(err).Msg("rejected chat payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingMessages})
		return
	}

	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingMessages})
		return
	}

	model := req.Model
	if model == "" {
		model = s.model
	}

	reply, err := s.client.Complete(c.Request.Context(), chat.Request{
		Model:    model,
		Messages: req.Messages,
		Stream:   req.Stream,
	})
	if err != nil {
		// UpstreamError keeps provider detail out of its message; the
		// cause goes to the log, the client gets the generic text.
		cause := errors.Unwrap(err)
		if cause == nil {
			cause = err
		}
		s.log.Error().Err(cause).Str("model", model).Msg("completion failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgAPIError})
		return
	}

	res := s.reconciler.Commit(history.CommitInput{
		DiscussionID: req.DiscussionID,
		SelectedIdx:  req.SelectedHistoryIdx,
		Outgoing:     req.Messages,
		Reply:        reply,
	})
	s.log.Debug().
		Stringer("outcome", res.Outcome).
		Str("discussion_id", res.DiscussionID).
		Msg("exchange reconciled")

	resp := chatResponse{Reply: reply}
	if s.history.Dirty() {
		resp.Warning = msgHistoryNotSaved
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHistoryList(c *gin.Context) {
	c.JSON(http.StatusOK, s.history.List())
}

func (s *Server) handleHistoryReplace(c *gin.Context) {
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": msgEntryNotFound})
		return
	}
	var d history.Discussion
	if err := c.ShouldBindJSON(&d); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidRequest})
		return
	}
	if err := s.history.Replace(idx, d); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": msgEntryNotFound})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleHistoryDelete(c *gin.Context) {
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgIndexInvalid})
		return
	}
	if err := s.history.Delete(idx); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgIndexInvalid})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleHistorySearch(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidRequest})
		return
	}
	hits, err := s.search.Search(q, searchResultLimit)
	if err != nil {
		s.log.Error().Err(err).Str("query", q).Msg("history search failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgServerError})
		return
	}
	c.JSON(http.StatusOK, hits)
}

type promptBody struct {
	Prompt string `json:"prompt"`
}

func (s *Server) handlePromptList(c *gin.Context) {
	c.JSON(http.StatusOK, s.prompts.List())
}

func (s *Server) handlePromptAdd(c *gin.Context) {
	var body promptBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Prompt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingPrompt})
		return
	}
	list, err := s.prompts.Add(body.Prompt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingPrompt})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handlePromptUpdate(c *gin.Context) {
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgPromptOrIndex})
		return
	}
	var body promptBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Prompt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgPromptOrIndex})
		return
	}
	list, err := s.prompts.Update(idx, body.Prompt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgPromptOrIndex})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handlePromptDelete(c *gin.Context) {
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgIndexInvalid})
		return
	}
	list, err := s.prompts.Delete(idx)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgIndexInvalid})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleUpload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgNoFile})
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgNoFile})
		return
	}
	defer f.Close()

	rec, err := s.attachments.Save(c.Request.Context(), fileHeader.Filename, f)
	if err != nil {
		var tooLarge *attachments.ErrTooLarge
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": msgFileTooLarge})
			return
		}
		s.log.Error().Err(err).Str("file", fileHeader.Filename).Msg("upload failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgServerError})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"filename":     rec.StoredName,
		"originalname": rec.OriginalName,
	})
}

func (s *Server) handleUploadList(c *gin.Context) {
	records, err := s.attachments.List(c.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("upload listing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgServerError})
		return
	}
	c.JSON(http.StatusOK, records)
}
