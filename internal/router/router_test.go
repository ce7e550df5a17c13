package router_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-progress-api/internal/config"
	"github.com/noah-isme/gema-progress-api/internal/dto"
	"github.com/noah-isme/gema-progress-api/internal/handler"
	"github.com/noah-isme/gema-progress-api/internal/middleware"
	"github.com/noah-isme/gema-progress-api/internal/repository"
	"github.com/noah-isme/gema-progress-api/internal/router"
	"github.com/noah-isme/gema-progress-api/internal/service"
	"github.com/noah-isme/gema-progress-api/internal/testutil"
)

const testSecret = "router-test-secret"

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func setupApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db := testutil.NewDB(t)
	logger := zerolog.Nop()
	validate := validator.New()
	store := repository.NewStore(db)
	locks := service.NewLearnerLocks()
	cache := service.NewStandingCache(nil, time.Minute, logger)
	aggregator := service.NewScoreAggregator(store, locks, cache, logger)
	audit := service.NewAuditService(store.AuditLogs(), logger)

	cfg := config.Config{AppName: "gema-progress", AppEnv: "test", JWTSecret: testSecret, SubmissionRateLimit: 100}

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		SubmissionHandler: handler.NewSubmissionHandler(service.NewSubmissionService(store, locks, cache, validate, service.DefaultMaxAttachments, logger), validate, logger),
		ReviewHandler:     handler.NewReviewHandler(service.NewReviewService(store, aggregator, locks, cache, nil, logger), aggregator, validate, logger),
		StandingHandler:   handler.NewStandingHandler(service.NewStandingService(store, cache, logger), logger),
		AuditHandler:      handler.NewAuditHandler(audit, logger),
		JWTMiddleware:     middleware.JWTProtected(testSecret),
	})

	return app, db
}

func token(t *testing.T, userID uint, role string) string {
	t.Helper()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  fmt.Sprintf("%d", userID),
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func call(t *testing.T, app *fiber.App, method, path, bearer string, body interface{}, target interface{}) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope apiResponse
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && target != nil {
		require.NoError(t, json.Unmarshal(raw, &envelope))
		require.NoError(t, json.Unmarshal(envelope.Data, target))
	}
	return resp.StatusCode
}

func TestSubmissionLifecycleOverHTTP(t *testing.T) {
	app, db := setupApp(t)
	learner := testutil.CreateLearner(t, db, "Ana")
	activity := testutil.CreateOpenActivity(t, db, "Loops", 100)
	member := token(t, learner.ID, "member")
	admin := token(t, 9000, "admin")

	var submission dto.SubmissionResponse
	status := call(t, app, http.MethodPost, fmt.Sprintf("/api/v1/activities/%d/submission", activity.ID), member,
		dto.SubmitRequest{AttachmentRefs: []string{"attachments/loops.pdf"}}, &submission)
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, "SUBMITTED", submission.Status)

	score := 95
	decision := dto.DecisionRequest{DecisionID: "review-1", Action: "approve", Score: &score}
	path := fmt.Sprintf("/api/v1/admin/submissions/%d/decisions", submission.ID)

	require.Equal(t, http.StatusForbidden, call(t, app, http.MethodPost, path, member, decision, nil))

	var applied dto.DecisionResponse
	require.Equal(t, http.StatusOK, call(t, app, http.MethodPost, path, admin, decision, &applied))
	require.Equal(t, int64(95), applied.TotalScore)
	require.False(t, applied.Replayed)

	var replayed dto.DecisionResponse
	require.Equal(t, http.StatusOK, call(t, app, http.MethodPost, path, admin, decision, &replayed))
	require.True(t, replayed.Replayed)
	require.Equal(t, int64(95), replayed.TotalScore)

	lower := 10
	require.Equal(t, http.StatusConflict, call(t, app, http.MethodPost, path, admin, dto.DecisionRequest{DecisionID: "review-1", Action: "approve", Score: &lower}, nil))

	var standing dto.LearnerStandingResponse
	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, "/api/v1/me/standing", member, nil, &standing))
	require.Equal(t, int64(95), standing.TotalScore)
	require.Len(t, standing.ScoreBadges, 1)
	require.Equal(t, "A", standing.ScoreBadges[0].Grade)

	require.Equal(t, http.StatusConflict, call(t, app, http.MethodPost, fmt.Sprintf("/api/v1/activities/%d/submission", activity.ID), member, dto.SubmitRequest{}, nil))

	var audits dto.AuditLogListResponse
	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, "/api/v1/admin/audit-logs?entity_type=submission", admin, nil, &audits))
	require.Equal(t, int64(2), audits.Pagination.TotalItems)
}

func TestRoutesRequireAuthentication(t *testing.T) {
	app, _ := setupApp(t)

	require.Equal(t, http.StatusUnauthorized, call(t, app, http.MethodGet, "/api/v1/me/standing", "", nil, nil))
	require.Equal(t, http.StatusUnauthorized, call(t, app, http.MethodGet, "/api/v1/milestones", "not-a-token", nil, nil))
	require.Equal(t, http.StatusForbidden, call(t, app, http.MethodPost, "/api/v1/admin/learners/1/reconcile", token(t, 2, "member"), nil, nil))

	var health handler.HealthResponse
	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, "/api/v1/health", "", nil, &health))
	require.Equal(t, "ok", health.Status)
}
