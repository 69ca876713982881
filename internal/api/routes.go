package api

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/w3joe/eloquentai/domain/entities"
	"github.com/w3joe/eloquentai/domain/repositories"
	"github.com/w3joe/eloquentai/internal/auth"
	"github.com/w3joe/eloquentai/internal/ws"
	"github.com/w3joe/eloquentai/usecase"
)

// Server bundles the dependencies behind the HTTP API.
type Server struct {
	scenarios *usecase.ScenarioService
	profiles  repositories.ProfileRepository
	history   repositories.FeedbackRepository
	assessor  repositories.PronunciationAssessor
	gateway   *ws.Gateway
	logger    *zap.Logger
}

// NewServer creates a new API server
func NewServer(
	scenarios *usecase.ScenarioService,
	profiles repositories.ProfileRepository,
	history repositories.FeedbackRepository,
	assessor repositories.PronunciationAssessor,
	gateway *ws.Gateway,
	logger *zap.Logger,
) *Server {
	return &Server{
		scenarios: scenarios,
		profiles:  profiles,
		history:   history,
		assessor:  assessor,
		gateway:   gateway,
		logger:    logger,
	}
}

// InitRoutes initializes all API routes
func (s *Server) InitRoutes(e *echo.Echo) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "eloquentai-server",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	// Profile APIs
	v1.GET("/profile", s.getProfile)
	v1.PUT("/profile", s.saveProfile)
	v1.POST("/profile/extract", s.extractProfile)

	// Scenario APIs
	v1.POST("/scenarios/generate", s.generateScenarios)
	v1.POST("/scenarios/custom", s.customScenario)

	// Session APIs
	v1.POST("/sessions", s.createSession)
	v1.GET("/history", s.listHistory)
	v1.GET("/history/latest", s.latestHistory)

	// Standalone assessment API
	v1.POST("/assess", s.assess)

	// WebSocket endpoint with session token validation
	e.GET("/ws", s.liveSession)
}

func (s *Server) getProfile(c echo.Context) error {
	profile, err := s.profiles.Get(c.Request().Context())
	if err != nil {
		s.logger.Error("Failed to load profile", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to load profile",
		})
	}
	if profile == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "profile_not_found",
			Message: "No profile has been saved yet",
		})
	}
	return c.JSON(http.StatusOK, profile)
}

func (s *Server) saveProfile(c echo.Context) error {
	var profile entities.UserProfile
	if err := c.Bind(&profile); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if err := profile.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_profile",
			Message: err.Error(),
		})
	}

	if err := s.profiles.Save(c.Request().Context(), &profile); err != nil {
		s.logger.Error("Failed to save profile", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to save profile",
		})
	}
	return c.JSON(http.StatusOK, profile)
}

func (s *Server) extractProfile(c echo.Context) error {
	var req ExtractProfileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.Bio == "" || req.TargetLanguage == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Bio and target language are required",
		})
	}

	extraction, err := s.scenarios.ExtractProfile(c.Request().Context(), req.Bio, req.ContextTags, req.TargetLanguage)
	if err != nil {
		s.logger.Error("Profile extraction failed", zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "extraction_failed",
			Message: "Could not analyze the bio, please try again",
		})
	}
	return c.JSON(http.StatusOK, extraction)
}

func (s *Server) generateScenarios(c echo.Context) error {
	profile, err := s.profiles.Get(c.Request().Context())
	if err != nil {
		s.logger.Error("Failed to load profile", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to load profile",
		})
	}
	if profile == nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "profile_required",
			Message: "Save a profile before generating scenarios",
		})
	}

	scenarios, err := s.scenarios.GenerateScenarios(c.Request().Context(), profile)
	if err != nil {
		s.logger.Error("Scenario generation failed", zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "generation_failed",
			Message: "Could not generate scenarios, please try again",
		})
	}
	return c.JSON(http.StatusOK, scenarios)
}

func (s *Server) customScenario(c echo.Context) error {
	var req CustomScenarioRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.Description == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Description is required",
		})
	}

	profile, err := s.profiles.Get(c.Request().Context())
	if err != nil {
		s.logger.Error("Failed to load profile", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to load profile",
		})
	}
	if profile == nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "profile_required",
			Message: "Save a profile before generating scenarios",
		})
	}

	scenario, err := s.scenarios.GenerateCustomScenario(c.Request().Context(), req.Description, profile)
	if err != nil {
		s.logger.Error("Custom scenario generation failed", zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "generation_failed",
			Message: "Could not generate the scenario, please try again",
		})
	}
	return c.JSON(http.StatusOK, scenario)
}

func (s *Server) createSession(c echo.Context) error {
	sessionID := uuid.NewString()
	token, err := auth.GenerateSessionToken(sessionID)
	if err != nil {
		s.logger.Error("Failed to generate session token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate session token",
		})
	}

	return c.JSON(http.StatusOK, CreateSessionResponse{
		SessionID: sessionID,
		Token:     token,
		ExpiresAt: time.Now().Add(time.Hour),
	})
}

func (s *Server) listHistory(c echo.Context) error {
	records, err := s.history.List(c.Request().Context())
	if err != nil {
		s.logger.Error("Failed to list history", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to load history",
		})
	}
	return c.JSON(http.StatusOK, records)
}

func (s *Server) latestHistory(c echo.Context) error {
	record, err := s.history.GetLatest(c.Request().Context())
	if err != nil {
		s.logger.Error("Failed to load latest record", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to load history",
		})
	}
	if record == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "no_sessions",
			Message: "No completed sessions yet",
		})
	}
	return c.JSON(http.StatusOK, record)
}

// assess scores a single pre-recorded utterance outside a live session.
func (s *Server) assess(c echo.Context) error {
	var req AssessRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.Language == "" || req.Audio == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Language and audio are required",
		})
	}

	pcm, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_audio",
			Message: "Audio must be base64-encoded PCM",
		})
	}

	assessment, err := s.assessor.Assess(c.Request().Context(), req.Language, pcm)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrNoSpeechDetected), errors.Is(err, repositories.ErrNoAudioData):
			return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
				Error:   "no_speech_detected",
				Message: "No speech was detected in the recording",
			})
		case errors.Is(err, repositories.ErrCredentialsMissing):
			return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
				Error:   "assessment_unavailable",
				Message: "Pronunciation assessment is not configured",
			})
		default:
			s.logger.Error("Assessment failed", zap.Error(err))
			return c.JSON(http.StatusBadGateway, ErrorResponse{
				Error:   "assessment_failed",
				Message: "Could not assess the recording, please try again",
			})
		}
	}
	return c.JSON(http.StatusOK, assessment)
}

// liveSession validates the session token and hands the connection to the
// gateway. Browsers cannot set headers on WebSocket requests, so the token
// is also accepted as a query parameter.
func (s *Server) liveSession(c echo.Context) error {
	var token string
	authHeader := c.Request().Header.Get("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		token = authHeader[7:]
	}
	if token == "" {
		token = c.QueryParam("token")
	}

	if token == "" {
		s.logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "Session token is required",
		})
	}

	claims, err := auth.ValidateSessionToken(token)
	if err != nil {
		s.logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired session token",
		})
	}
	if claims.SessionID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_token_claims",
			Message: "Session ID not found in token",
		})
	}

	s.logger.Info("WebSocket connection authenticated",
		zap.String("session_id", claims.SessionID))

	return s.gateway.Handle(c, claims.SessionID)
}
