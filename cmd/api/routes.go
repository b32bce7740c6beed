package main

import (
	"log/slog"
	"net/http"

	"github.com/fixamincity/backend/internal/handlers"
	"github.com/fixamincity/backend/internal/middleware"
	"github.com/fixamincity/backend/internal/repository"
	"github.com/fixamincity/backend/internal/services"
)

// RegisterRoutes wires all HTTP endpoints onto the mux. Auth comes in three
// flavors: optional (anonymous submissions pass through), required, and
// required+admin.
func RegisterRoutes(
	mux *http.ServeMux,
	jwtSecret []byte,
	submissions *services.SubmissionService,
	workflow *services.Workflow,
	issueRepo *repository.IssueRepo,
	rewardRepo *repository.RewardRepo,
	redemptions *services.RedemptionEngine,
	points *services.PointsEngine,
	userRepo *repository.UserRepo,
	logger *slog.Logger,
) {
	issueHandler := &handlers.IssueHandler{
		Submissions: submissions,
		Workflow:    workflow,
		Issues:      issueRepo,
		Logger:      logger,
	}
	rewardHandler := &handlers.RewardHandler{
		Rewards:     rewardRepo,
		Redemptions: redemptions,
		Logger:      logger,
	}
	pointsHandler := &handlers.PointsHandler{
		Points: points,
		Users:  userRepo,
		Logger: logger,
	}

	optionalAuth := middleware.BearerAuth(jwtSecret, false)
	requireAuth := middleware.BearerAuth(jwtSecret, true)
	requireAdmin := func(h http.Handler) http.Handler {
		return requireAuth(middleware.RequireAdmin(h))
	}

	// Issues
	mux.Handle("POST /v1/issues", optionalAuth(http.HandlerFunc(issueHandler.CreateIssue)))
	mux.HandleFunc("GET /v1/issues", issueHandler.ListIssues)
	mux.HandleFunc("GET /v1/issues/{id}", issueHandler.GetIssue)
	mux.Handle("GET /v1/users/me/issues", requireAuth(http.HandlerFunc(issueHandler.ListMyIssues)))
	mux.Handle("PATCH /v1/issues/{id}/status", requireAdmin(http.HandlerFunc(issueHandler.UpdateStatus)))

	// Rewards and redemptions
	mux.HandleFunc("GET /v1/rewards", rewardHandler.ListRewards)
	mux.Handle("POST /v1/rewards", requireAdmin(http.HandlerFunc(rewardHandler.CreateReward)))
	mux.Handle("POST /v1/rewards/{id}/redeem", requireAuth(http.HandlerFunc(rewardHandler.Redeem)))
	mux.Handle("GET /v1/redemptions", requireAuth(http.HandlerFunc(rewardHandler.ListRedemptions)))
	mux.Handle("POST /v1/redemptions/validate", requireAdmin(http.HandlerFunc(rewardHandler.ValidateCode)))
	mux.Handle("POST /v1/redemptions/{id}/use", requireAdmin(http.HandlerFunc(rewardHandler.UseRedemption)))

	// Points
	mux.Handle("GET /v1/users/me", requireAuth(http.HandlerFunc(pointsHandler.GetMe)))
	mux.Handle("POST /v1/users/me", requireAuth(http.HandlerFunc(pointsHandler.SyncMe)))
	mux.Handle("PATCH /v1/users/me/language", requireAuth(http.HandlerFunc(pointsHandler.UpdateLanguage)))
	mux.Handle("GET /v1/points/history", requireAuth(http.HandlerFunc(pointsHandler.History)))
	mux.Handle("GET /v1/points/stats", requireAuth(http.HandlerFunc(pointsHandler.Stats)))
	mux.Handle("POST /v1/points/daily-login", requireAuth(http.HandlerFunc(pointsHandler.DailyLogin)))
	mux.Handle("POST /v1/points/referral", requireAuth(http.HandlerFunc(pointsHandler.Referral)))
}
