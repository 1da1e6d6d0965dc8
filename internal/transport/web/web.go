package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"assistant/internal/booking"
	"assistant/internal/service"
)

var ErrPanic = errors.New("panic recovered")

// Assistant is the subset of the assistant service the HTTP API exposes.
type Assistant interface {
	SubmitMessage(ctx context.Context, sessionID, text string) (string, error)
	SubmitDocument(ctx context.Context, sessionID, filename string, data []byte) (service.UploadResult, error)
	ListBookings(ctx context.Context) ([]booking.CompletedBooking, error)
	EndSession(ctx context.Context, sessionID string) error
}

type Conf struct {
	L                *zap.Logger
	Addr             string
	Mode             string
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	MaxUploadBytes   int64
	RateLimit        rate.Limit
	RateBurst        int
	LivenessEndpoint string
	// AllowOrigins enables CORS for browser front-ends. Empty disables it.
	AllowOrigins []string
}

type Server struct {
	srv       *http.Server
	router    *gin.Engine
	l         *zap.Logger
	conf      Conf
	assistant Assistant
	limiters  *limiterStore
}

func New(ctx context.Context, conf Conf, assistant Assistant) *Server {
	if conf.Mode != "" {
		gin.SetMode(conf.Mode)
	}
	if conf.LivenessEndpoint == "" {
		conf.LivenessEndpoint = "/liveness"
	}
	if conf.MaxUploadBytes == 0 {
		conf.MaxUploadBytes = 20 << 20
	}

	router := gin.New()

	srv := &http.Server{
		Addr:              conf.Addr,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       conf.ReadTimeout,
		WriteTimeout:      conf.WriteTimeout,
		ErrorLog:          zap.NewStdLog(conf.L),
		Handler:           router,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	server := &Server{
		srv:       srv,
		router:    router,
		l:         conf.L,
		conf:      conf,
		assistant: assistant,
		limiters:  newLimiterStore(conf.RateLimit, conf.RateBurst),
	}

	server.addRoutes(router)

	return server
}

func (s *Server) Srv() *http.Server {
	return s.srv
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}
