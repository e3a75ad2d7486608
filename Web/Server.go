package Web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"modelrelay/driver"
	"modelrelay/llm"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Completer is the narrow slice of the driver the server needs.
type Completer interface {
	ExecuteRequest(ctx context.Context, req driver.Request) (driver.Response, error)
}

type Server struct {
	completer Completer
	logger    *zap.Logger
}

func NewServer(completer Completer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{completer: completer, logger: logger}
}

// StartWebServer runs the HTTP surface. Blocks until the listener fails.
func (s *Server) StartWebServer(port string) error {
	s.logger.Info("starting web server", zap.String("port", port))
	return s.router().Run(":" + port)
}

func (s *Server) router() *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Content-Length",
			"Authorization",
			"Accept",
			"X-Requested-With",
		},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.POST("/api/v1/completions", s.handleCompletion)
	r.GET("/api/v1/usage/:account", s.handleUsage)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}

func (s *Server) handleCompletion(c *gin.Context) {
	reqID := uuid.NewString()
	c.Header("X-Request-ID", reqID)

	apiKey := bearerToken(c.GetHeader("Authorization"))

	var wireReq CompletionRequest
	if err := c.ShouldBindJSON(&wireReq); err != nil {
		c.JSON(http.StatusBadRequest, Fail(err.Error()))
		return
	}

	resp, err := s.completer.ExecuteRequest(c.Request.Context(), wireReq.ToDriverRequest(apiKey))
	if err != nil {
		if errors.Is(err, driver.ErrMissingAPIKey) {
			c.JSON(http.StatusUnauthorized, Fail(err.Error()))
			return
		}
		s.logger.Error("completion failed",
			zap.String("request_id", reqID), zap.Error(err))
		c.JSON(http.StatusBadGateway, Fail("completion failed"))
		return
	}

	// Per-account cumulative usage, keyed by a key suffix so full
	// credentials never land in the tracker or the logs.
	llm.AddAccountTokenUsage(accountForKey(apiKey), resp.Tokens)

	s.logger.Info("completion served",
		zap.String("request_id", reqID),
		zap.String("model", resp.Model),
		zap.Int64("total_tokens", resp.Tokens.TotalTokens),
		zap.Int("tool_calls", len(resp.ToolCalls)),
	)
	c.JSON(http.StatusOK, Success(resp))
}

func (s *Server) handleUsage(c *gin.Context) {
	usage := llm.GetAccountTokenUsage(c.Param("account")).Snapshot()
	c.JSON(http.StatusOK, Success(usage))
}

func bearerToken(header string) string {
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func accountForKey(apiKey string) string {
	if len(apiKey) <= 6 {
		return apiKey
	}
	return apiKey[len(apiKey)-6:]
}
