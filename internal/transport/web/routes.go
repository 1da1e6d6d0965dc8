package web

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"assistant/internal/booking"
	"assistant/internal/extract"
	"assistant/internal/service"
)

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
}

type uploadResponse struct {
	Status        string `json:"status"`
	SessionID     string `json:"session_id,omitempty"`
	ChunksIndexed int    `json:"chunks_indexed,omitempty"`
	Message       string `json:"message"`
}

func (s *Server) chatHandler(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	reply, err := s.assistant.SubmitMessage(c.Request.Context(), req.SessionID, strings.TrimSpace(req.Message))
	if err != nil {
		s.l.Error("Could not handle chat turn", zap.String("session_id", req.SessionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
		return
	}

	c.JSON(http.StatusOK, chatResponse{SessionID: req.SessionID, Reply: reply})
}

func (s *Server) uploadHandler(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.conf.MaxUploadBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, uploadResponse{Status: "error", Message: "File is too large"})
			return
		}
		c.JSON(http.StatusBadRequest, uploadResponse{Status: "error", Message: "Missing file"})
		return
	}
	if !extract.Supported(fh.Filename) {
		c.JSON(http.StatusBadRequest, uploadResponse{Status: "error", Message: "Only PDF and TXT files are supported"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, uploadResponse{Status: "error", Message: "Could not read file"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, uploadResponse{Status: "error", Message: "Could not read file"})
		return
	}

	sessionID := c.PostForm("session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	res, err := s.assistant.SubmitDocument(c.Request.Context(), sessionID, fh.Filename, data)
	switch {
	case errors.Is(err, service.ErrUnsupportedDocument):
		c.JSON(http.StatusBadRequest, uploadResponse{Status: "error", SessionID: sessionID, Message: "Only PDF and TXT files are supported"})
		return
	case errors.Is(err, extract.ErrNoText):
		c.JSON(http.StatusUnprocessableEntity, uploadResponse{Status: "error", SessionID: sessionID, Message: "Document has no readable text"})
		return
	case err != nil:
		s.l.Error("Could not index document", zap.String("session_id", sessionID), zap.String("filename", fh.Filename), zap.Error(err))
		c.JSON(http.StatusInternalServerError, uploadResponse{Status: "error", SessionID: sessionID, Message: "Document could not be indexed"})
		return
	}

	c.JSON(http.StatusOK, uploadResponse{
		Status:        "success",
		SessionID:     sessionID,
		ChunksIndexed: res.ChunkCount,
		Message:       "Document uploaded and indexed successfully",
	})
}

func (s *Server) bookingsHandler(c *gin.Context) {
	list, err := s.assistant.ListBookings(c.Request.Context())
	if err != nil {
		s.l.Error("Could not list bookings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
		return
	}
	if list == nil {
		list = []booking.CompletedBooking{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) livenessHandler(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func (s *Server) addRoutes(r *gin.Engine) {
	r.Use(s.recoverMiddleware(), s.loggerMiddleware())
	if len(s.conf.AllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  s.conf.AllowOrigins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:  []string{"Origin", "Content-Type", requestIDHeader},
			ExposeHeaders: []string{"Content-Length", requestIDHeader},
			MaxAge:        12 * time.Hour,
		}))
	}

	r.GET(s.conf.LivenessEndpoint, s.livenessHandler)

	api := r.Group("/api", s.rateLimitMiddleware())
	api.POST("/chat", s.chatHandler)
	api.GET("/chat/ws", s.wsHandler)
	api.POST("/documents", s.uploadHandler)
	api.GET("/admin/bookings", s.bookingsHandler)
}
