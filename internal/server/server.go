package server

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/safar/go-storefront/internal/auth"
	"github.com/safar/go-storefront/internal/config"
	"github.com/safar/go-storefront/internal/handler"
	"github.com/sirupsen/logrus"
)

type Deps struct {
	DB       *sql.DB
	Gate     auth.Gate
	Sessions auth.SessionStore
	Files    handler.FileGateway
	Log      *logrus.Logger
}

type Server struct {
	echo           *echo.Echo
	cfg            *config.Config
	gate           auth.Gate
	log            *logrus.Logger
	catalogHandler *handler.CatalogHandler
	cartHandler    *handler.CartHandler
	orderHandler   *handler.OrderHandler
	authHandler    *handler.AuthHandler
	driveHandler   *handler.DriveHandler
	adminHandler   *handler.AdminHandler
}

func NewServer(cfg *config.Config, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	e.Use(requestLogger(deps.Log))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{cfg.Server.BaseURL},
		AllowCredentials: true,
	}))

	s := &Server{
		echo:           e,
		cfg:            cfg,
		gate:           deps.Gate,
		log:            deps.Log,
		catalogHandler: handler.NewCatalogHandler(deps.DB, deps.Log),
		cartHandler:    handler.NewCartHandler(deps.DB, deps.Log),
		orderHandler:   handler.NewOrderHandler(deps.DB, deps.Log),
		authHandler:    handler.NewAuthHandler(deps.Sessions, deps.DB, deps.Log, cfg.Auth.CookieName, cfg.Server.BaseURL),
		driveHandler:   handler.NewDriveHandler(deps.Files, deps.DB, deps.Log, cfg.Server.BaseURL),
		adminHandler:   handler.NewAdminHandler(deps.DB, deps.Log, cfg.Auth.AdminEmails),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.Use(auth.LoadSession(s.gate, s.cfg.Auth.CookieName, s.log))

	requireUser := auth.RequireUser()

	// oauth provider redirect target, outside /api
	s.echo.GET("/auth/callback", s.authHandler.OAuthCallback)

	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// -------- catalog --------
	api.GET("/categories", s.catalogHandler.ListCategories)
	api.GET("/categories/:slug", s.catalogHandler.GetCategory)
	api.GET("/products", s.catalogHandler.ListProducts)
	api.GET("/products/featured", s.catalogHandler.ListFeatured)
	api.GET("/products/:slug", s.catalogHandler.GetProduct)

	// -------- cart --------
	// add redirects anonymous users to the login page instead of 401
	api.POST("/cart/add", s.cartHandler.AddItem)
	cart := api.Group("/cart", requireUser)
	cart.GET("", s.cartHandler.GetCart)
	cart.PATCH("/items/:id", s.cartHandler.UpdateItem)
	cart.DELETE("/items/:id", s.cartHandler.RemoveItem)

	// -------- orders --------
	api.POST("/checkout", s.orderHandler.Checkout, requireUser)
	orders := api.Group("/orders", requireUser)
	orders.GET("", s.orderHandler.ListOrders)
	orders.GET("/:id", s.orderHandler.GetOrder)

	// -------- auth --------
	api.POST("/auth/signin", s.authHandler.SignIn)
	api.POST("/auth/signup", s.authHandler.SignUp)
	api.POST("/auth/signout", s.authHandler.SignOut)
	api.GET("/auth/oauth/:provider", s.authHandler.StartOAuth)
	api.GET("/check-auth-status", s.authHandler.Status)

	// -------- google drive --------
	api.GET("/auth/google", s.driveHandler.Connect)
	api.GET("/auth/callback/google", s.driveHandler.Callback)
	api.GET("/check-drive-tokens", s.driveHandler.CheckTokens, requireUser)
	drive := api.Group("/drive", requireUser)
	drive.GET("/files", s.driveHandler.ListFiles)
	drive.POST("/upload", s.driveHandler.Upload)
	drive.DELETE("/delete", s.driveHandler.Delete)

	// -------- admin --------
	requireAdmin := s.adminHandler.RequireAdmin()
	admin := api.Group("/admin", requireAdmin)
	admin.GET("", s.adminHandler.Dashboard)
	admin.POST("/fulfillment/advance", s.adminHandler.AdvanceFulfillment)
	api.PATCH("/orders/:id/status", s.orderHandler.UpdateStatus, requireAdmin)
	api.PATCH("/orders/:id/payment", s.orderHandler.UpdatePayment, requireAdmin)
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func requestLogger(log *logrus.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			entry := log.WithFields(logrus.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency_ms": v.Latency.Milliseconds(),
				"remote_ip":  v.RemoteIP,
			})
			if v.RequestID != "" {
				entry = entry.WithField("request_id", v.RequestID)
			}
			if v.Error != nil {
				entry.WithError(v.Error).Error("request failed")
				return nil
			}
			entry.Info("request")
			return nil
		},
	})
}
