package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/rondpoint/internal/container"
	"github.com/joshua-takyi/rondpoint/internal/handlers"
	"github.com/joshua-takyi/rondpoint/internal/middleware"
)

const defaultFrontendURL = "http://localhost:3000"

// SetupRoutes configures all routes with the dependency container
func SetupRoutes(c *container.Container) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	frontendURL := defaultFrontendURL
	if c.Config != nil && c.Config.FrontendURL != "" {
		frontendURL = c.Config.FrontendURL
	}

	r := gin.New()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{frontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader, handlers.SessionIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(c.Logger))
	r.Use(middleware.ErrorHandler(c.Logger))
	r.Use(gin.Recovery())
	if c.Metrics != nil {
		r.Use(c.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(c.Metrics.Handler()))
	}

	health := func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"status":    "OK",
			"service":   "rondpoint-api",
			"timestamp": time.Now().UTC(),
		})
	}
	r.GET("/health", health)

	auth := middleware.Auth(c.Identity, c.UserService, c.Logger)
	optionalAuth := middleware.OptionalAuth(c.Identity, c.UserService, c.Logger)

	api := r.Group("/api")
	api.GET("/health", health)

	events := api.Group("/events")
	{
		events.GET("", optionalAuth, handlers.ListEvents(c.EventService))
		events.GET("/featured", handlers.FeaturedEvents(c.EventService))
		events.GET("/:id", optionalAuth, handlers.GetEvent(c.EventService))
		events.POST("", auth, handlers.CreateEvent(c.EventService))
		events.PUT("/:id", auth, handlers.UpdateEvent(c.EventService))
		events.DELETE("/:id", auth, handlers.DeleteEvent(c.EventService))
		events.POST("/:id/feature", auth, handlers.FeatureEvent(c.EventService))
		events.GET("/:id/stats", auth, handlers.EventStats(c.EventService))
	}

	admin := api.Group("/admin", auth, middleware.RequireAdmin())
	{
		admin.GET("/events", handlers.AdminListEvents(c.AdminService))
		admin.POST("/events/:id/approve", handlers.ApproveEvent(c.AdminService))
		admin.POST("/events/:id/reject", handlers.RejectEvent(c.AdminService))
		admin.GET("/events/:id/audit", handlers.EventAudit(c.AdminService))
		admin.GET("/dashboard", handlers.AdminDashboard(c.AdminService))
		admin.GET("/analytics", handlers.AdminAnalytics(c.AdminService))
		admin.GET("/users", handlers.AdminListUsers(c.AdminService))
		admin.PUT("/users/:id", handlers.AdminUpdateUser(c.AdminService))
		admin.POST("/users/:id/suspend", handlers.AdminSuspendUser(c.AdminService))
		admin.DELETE("/users/:id", handlers.AdminSuspendUser(c.AdminService))
		admin.GET("/contact", handlers.AdminListContact(c.AdminService))
		admin.PUT("/contact/:id", handlers.AdminSetContactStatus(c.AdminService))
	}

	users := api.Group("/users", auth)
	{
		users.GET("/profile", handlers.GetProfile(c.UserService))
		users.PUT("/profile", handlers.UpdateProfile(c.UserService))
		users.GET("/events", handlers.MyEvents(c.EventService))
		users.GET("/stats", handlers.MyStats(c.EventService))
		users.POST("/upgrade", handlers.UpgradePremium(c.PaymentService))
		users.POST("/cancel-premium", handlers.CancelPremium(c.UserService))
		users.GET("/favourites", handlers.GetUserFavourites(c.FavouriteService))
		users.POST("/favourites/:id", handlers.AddToFavourites(c.FavouriteService))
		users.DELETE("/favourites/:id", handlers.RemoveFromFavourite(c.FavouriteService))
	}

	api.POST("/contact", handlers.SubmitContact(c.ContactService))

	pay := api.Group("/payments")
	{
		pay.GET("/methods", handlers.PaymentMethods(c.PaymentService))
		pay.POST("/initiate", auth, handlers.InitiatePayment(c.PaymentService))
		pay.POST("/verify", auth, handlers.VerifyPayment(c.PaymentService))
		pay.GET("/history", auth, handlers.PaymentHistory(c.PaymentService))
		// signed by the gateway, no bearer token
		pay.POST("/webhook", handlers.PaymentWebhook(c.PaymentService))
	}

	if c.AuthService != nil {
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/signup", handlers.Signup(c.AuthService))
			authRoutes.POST("/login", handlers.Login(c.AuthService))
			authRoutes.POST("/refresh", handlers.RefreshSession(c.AuthService))
		}
	}

	return r
}
