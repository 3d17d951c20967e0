package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	config "github.com/charitychain/charitychain-api/config"
	controllers "github.com/charitychain/charitychain-api/controllers"
	middleware "github.com/charitychain/charitychain-api/middleware"
)

// NewEngine builds the gin engine with the global middleware and every route.
func NewEngine(cfg *config.Config) (*gin.Engine, error) {
	if err := controllers.RegisterValidators(); err != nil {
		return nil, err
	}

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}

	r := gin.New()
	r.MaxMultipartMemory = 8 << 20
	r.Use(
		middleware.RequestLogger(cfg.Logger),
		middleware.Recovery(cfg.Logger),
		cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "If-None-Match"},
			ExposeHeaders:    []string{"ETag", "Last-Modified", middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	)

	SetupRoutes(r, cfg)
	return r, nil
}

func SetupRoutes(r *gin.Engine, cfg *config.Config) {
	r.GET("/", controllers.Root())
	r.NoRoute(controllers.NotFound())

	api := r.Group("/api")
	api.GET("/health", controllers.Health())

	// protected
	auth := middleware.AuthMiddleware(cfg)
	ngoOnly := middleware.RequireVerifiedNGO()
	adminOnly := middleware.RequireAdmin()

	// per-IP throttles on credential guessing
	loginLimit := middleware.RateLimit(cfg.AuthRateLimit, "Too many login attempts, please try again later")
	resetLimit := middleware.RateLimit(cfg.AuthRateLimit, "Too many password reset requests, please try again later")

	// public
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", controllers.Register(cfg))
		authGroup.POST("/register-ngo", controllers.RegisterNGO(cfg))
		authGroup.POST("/login", loginLimit, controllers.Login(cfg))
		authGroup.POST("/forgot-password", resetLimit, controllers.ForgotPassword(cfg))
		authGroup.POST("/reset-password", resetLimit, controllers.ResetPassword(cfg))
		authGroup.GET("/verify", auth, controllers.Verify(cfg))
	}

	campaigns := api.Group("/campaigns")
	{
		campaigns.GET("", controllers.ListCampaigns(cfg))
		campaigns.GET("/my-campaigns", auth, ngoOnly, controllers.MyCampaigns(cfg))
		campaigns.GET("/:id", controllers.GetCampaign(cfg))
		campaigns.GET("/:id/updates", controllers.ListCampaignUpdates(cfg))
		campaigns.GET("/:id/donations", controllers.ListCampaignDonations(cfg))

		campaigns.POST("", auth, ngoOnly, controllers.CreateCampaign(cfg))
		campaigns.PUT("/:id", auth, ngoOnly, controllers.UpdateCampaign(cfg))
		campaigns.POST("/:id/updates", auth, ngoOnly, controllers.PostCampaignUpdate(cfg))
		campaigns.PUT("/:id/image", auth, ngoOnly, controllers.UploadCampaignImage(cfg))
	}

	donations := api.Group("/donations")
	donations.Use(auth)
	{
		donations.POST("", controllers.CreateDonation(cfg))
		donations.GET("/my-donations", controllers.MyDonations(cfg))
		donations.GET("/stats", controllers.DonationStats(cfg))
		donations.GET("/:id", controllers.GetDonation(cfg))
	}

	users := api.Group("/user")
	users.Use(auth)
	{
		users.GET("/profile", controllers.GetProfile(cfg))
		users.PUT("/profile", controllers.UpdateProfile(cfg))
		users.PUT("/change-password", controllers.ChangePassword(cfg))
	}

	ngo := api.Group("/ngo")
	ngo.Use(auth, ngoOnly)
	{
		ngo.GET("/stats", controllers.NGOStats(cfg))
	}

	admin := api.Group("/admin")
	admin.Use(auth, adminOnly)
	{
		admin.GET("/ngos", controllers.ListNGOs(cfg))
		admin.PUT("/verify-ngo/:id", controllers.VerifyNGO(cfg))
		admin.PUT("/reject-ngo/:id", controllers.RejectNGO(cfg))
		admin.GET("/campaigns", controllers.ListAllCampaigns(cfg))
		admin.PUT("/suspend-campaign/:id", controllers.SuspendCampaign(cfg))
		admin.PUT("/activate-campaign/:id", controllers.ActivateCampaign(cfg))
		admin.POST("/reconcile-campaign/:id", controllers.ReconcileCampaign(cfg))
		admin.GET("/stats", controllers.AdminStats(cfg))
		admin.GET("/users", controllers.ListUsers(cfg))
		admin.DELETE("/user/:id", controllers.DeleteUser(cfg))
	}
}
