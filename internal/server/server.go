// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"sync"
	"time"

	"murmur/internal/config"
	"murmur/internal/middleware"
	"murmur/internal/notifications"
	"murmur/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	promOnce sync.Once
	promMW   *fiberprometheus.FiberPrometheus
)

// httpMetrics registers the request collectors on the default registry once,
// next to the application metrics.
func httpMetrics() *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		promMW = fiberprometheus.NewWithRegistry(prometheus.DefaultRegisterer, "murmur", "http", "", nil)
	})
	return promMW
}

// pinger is the part of a Redis client the readiness probe needs.
type pinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// Deps are what the HTTP edge needs from the runtime.
type Deps struct {
	Config   *config.Config
	DB       *gorm.DB
	Redis    redis.Cmdable
	Services *service.Services
	Hub      *notifications.ChatHub
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          pinger
	svc            *service.Services
	hub            *notifications.ChatHub
	limiter        *middleware.RateLimiter
	promMiddleware *fiberprometheus.FiberPrometheus
	app            *fiber.App
}

// NewServer builds the Fiber app with every route registered.
func NewServer(d Deps) *Server {
	s := &Server{
		config:  d.Config,
		db:      d.DB,
		svc:     d.Services,
		hub:     d.Hub,
		limiter: middleware.NewRateLimiter(d.Redis, d.Config.IsProduction()),
	}
	if d.Redis != nil {
		s.redis = d.Redis
	}
	if s.hub == nil {
		s.hub = notifications.NewChatHub(nil)
	}

	s.app = fiber.New(fiber.Config{
		AppName:      "murmur",
		ErrorHandler: s.ErrorHandler,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		BodyLimit:    int(d.Config.PostImageMaxBytes()) + 1<<20,
	})
	s.promMiddleware = httpMetrics()

	s.SetupMiddleware(s.app)
	s.SetupRoutes(s.app)
	return s
}

// App exposes the Fiber app, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID and Trace ID
	app.Use(middleware.ContextMiddleware())

	app.Use(s.promMiddleware.Middleware)

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	app.Use(cors.New(cors.Config{
		AllowOrigins: s.config.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		MaxAge:       86400, // 24 hours
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	s.promMiddleware.RegisterAt(app, "/metrics")

	auth := middleware.AuthRequired(s.svc.Auth)

	// Session routes
	app.Post("/register", s.limiter.Limit("register", 3, 10*time.Minute, middleware.FailOpen), s.Register)
	app.Post("/login", s.limiter.Limit("login", 10, 5*time.Minute, middleware.FailOpen), s.Login)
	app.Post("/logout", s.Logout)
	app.Get("/refresh", s.Refresh)

	// Post routes. Specific paths before the generic /:post_id.
	posts := app.Group("/posts", auth)
	posts.Get("/feed/:page", s.GetFeed)
	posts.Get("/following", s.GetFollowingPosts)
	posts.Post("/", s.limiter.Limit("create_post", 10, time.Minute, middleware.FailOpen), s.CreatePost)
	posts.Get("/:post_id/comments", s.GetComments)
	posts.Post("/:post_id/like", s.LikePost)
	posts.Delete("/:post_id/like", s.UnlikePost)
	posts.Post("/:post_id/repost", s.RepostPost)
	posts.Delete("/:post_id/repost", s.UnrepostPost)
	posts.Get("/:post_id", s.GetPost)
	posts.Patch("/:post_id", s.UpdatePost)
	posts.Delete("/:post_id", s.DeletePost)

	// Search routes
	search := app.Group("/search", auth, s.limiter.Limit("search", 30, time.Minute, middleware.FailOpen))
	search.Get("/posts", s.SearchPosts)
	search.Get("/users/:page", s.SearchUsers)

	// User routes. my-profile before the generic /:id.
	users := app.Group("/users", auth)
	users.Get("/my-profile", s.GetMyProfile)
	users.Patch("/my-profile/username", s.ChangeUsername)
	users.Patch("/my-profile/password", s.ChangePassword)
	users.Delete("/my-profile", s.DeleteMyProfile)
	users.Post("/:id/follow", s.FollowUser)
	users.Delete("/:id/follow", s.UnfollowUser)
	users.Get("/:id/posts/:page", s.GetUserPosts)
	users.Get("/:id/followers/:page", s.GetFollowers)
	users.Get("/:id/followed/:page", s.GetFollowed)
	users.Get("/:id", s.GetUserProfile)

	// Media routes. Reads are authorized by the capability in the path.
	media := app.Group("/media")
	media.Post("/posts/:post_id", auth, s.UploadPostImage)
	media.Post("/users", auth, s.UploadAvatar)
	media.Get("/posts/:token", s.GetPostImage)
	media.Get("/users/:token", s.GetUserImage)

	// Chat routes
	chats := app.Group("/chats", auth)
	chats.Post("/dialogue/:user_id", s.OpenDialogue)
	chats.Post("/group", s.CreateGroup)
	chats.Post("/:room_id/approve", s.ApproveRoom)
	chats.Get("/:room_id/messages", s.GetMessages)
	chats.Get("/:room_id/history", s.GetHistory)
	chats.Get("/:room_id/token", s.GetChatToken)
	chats.Get("/:page", s.GetRooms)

	// Chat socket. The token in the path is the one-time chat capability.
	app.Get("/ws/:token", s.WebSocketUpgrade, s.WebSocketChatHandler())
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis == nil {
		redisStatus = "unavailable"
	} else if err := s.redis.Ping(ctx).Err(); err != nil {
		redisStatus = "unhealthy"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start listens on the configured port. It blocks until the app shuts down.
func (s *Server) Start() error {
	middleware.Logger.Info("Server starting", "port", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown closes every chat socket and stops accepting requests.
func (s *Server) Shutdown(ctx context.Context) error {
	// Sockets are hijacked connections, so close them before draining HTTP.
	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Warn("error shutting down chat hub", "error", err)
	}
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		middleware.Logger.Warn("error shutting down HTTP server", "error", err)
		return err
	}
	middleware.Logger.Info("Server shutdown complete")
	return nil
}
