package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/workhub/workhub/internal/chat"
	"github.com/workhub/workhub/internal/db"
	"github.com/workhub/workhub/internal/group"
	"github.com/workhub/workhub/internal/middleware"
	"github.com/workhub/workhub/internal/notify"
	"github.com/workhub/workhub/internal/permission"
	"github.com/workhub/workhub/internal/presence"
	"github.com/workhub/workhub/internal/storage"
	"github.com/workhub/workhub/internal/user"
	"github.com/workhub/workhub/internal/ws"
)

func main() {
	// 1. Config & Flags
	addr := flag.String("addr", ":8080", "http service address")
	flag.Parse()

	// .env is optional; real deployments inject the environment directly.
	godotenv.Load()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN is not set")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is not set")
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "uploads"
	}

	// 2. Connect to Database (Platform Layer)
	database, err := db.NewDatabase(dsn)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	log.Println("Connected to PostgreSQL")

	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Database schema initialized")

	// 3. Connect to Redis (Platform Layer)
	redisClient := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	log.Println("Connected to Redis")

	blobs, err := storage.NewDiskStore(uploadDir)
	if err != nil {
		log.Fatalf("Failed to init blob storage: %v", err)
	}

	// 4. Identity
	userRepo := user.NewRepository(database.Conn)
	userService := user.NewService(userRepo, jwtSecret)
	userHandler := user.NewHandler(userService)

	// 5. Notifications: persisted rows + Redis event bus
	notifyRepo := notify.NewRepository(database.Conn)
	dispatcher := notify.NewDispatcher(notifyRepo, redisClient)
	notifyHandler := notify.NewHandler(notifyRepo)

	// 6. Chat and groups
	chatRepo := chat.NewRepository(database.Conn)
	chatService := chat.NewService(chatRepo, userService, dispatcher, blobs)
	chatHandler := chat.NewHandler(chatService)

	groupRepo := group.NewRepository(database.Conn)
	groupService := group.NewService(groupRepo, userService, dispatcher)
	groupHandler := group.NewHandler(groupService)

	// 7. Presence + websocket hub
	tracker := presence.NewTracker()
	go tracker.StartSweeper(time.Minute, make(chan struct{}))
	presenceHandler := presence.NewHandler(tracker, chatService, groupService)

	hub := ws.NewHub(redisClient)
	go hub.Run()
	go hub.SubscribeToRedis()
	wsHandler := ws.NewHandler(hub, tracker)

	authMiddleware := middleware.NewAuthMiddleware(userService)

	// 8. Routes
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// Public
	r.Post("/register", userHandler.Register)
	r.Post("/login", userHandler.Login)

	// Protected (Require JWT)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)

		r.Get("/api/users/search", userHandler.SearchUsers)
		r.Get("/api/users/{id}", userHandler.GetUser)

		// WebSocket (Real-time event push)
		r.Get("/ws", wsHandler.ServeWs)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePermission(permission.ChatView))
			r.Get("/api/conversations", chatHandler.ListConversations)
			r.Get("/api/conversations/{id}/messages", chatHandler.ListMessages)
			r.Get("/api/conversations/{id}/typing", presenceHandler.GetConversationTyping)
			r.Get("/api/messages/{id}/reactions", chatHandler.ListReactions)
			r.Get("/api/messages/{id}/file", chatHandler.DownloadAttachment)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePermission(permission.ChatRequest))
			r.Post("/api/conversations", chatHandler.RequestConversation)
			r.Post("/api/conversations/{id}/accept", chatHandler.AcceptConversation)
			r.Post("/api/conversations/{id}/reject", chatHandler.RejectConversation)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePermission(permission.ChatSend))
			r.Post("/api/conversations/{id}/messages", chatHandler.SendMessage)
			r.Post("/api/conversations/{id}/attachments", chatHandler.SendAttachment)
			r.Post("/api/conversations/{id}/read", chatHandler.MarkConversationRead)
			r.Post("/api/conversations/{id}/typing", presenceHandler.SetConversationTyping)
			r.Post("/api/messages/{id}/delivered", chatHandler.MarkDelivered)
			r.Post("/api/messages/{id}/read", chatHandler.MarkRead)
			r.Put("/api/messages/{id}", chatHandler.EditMessage)
			r.Post("/api/messages/{id}/delete-for-me", chatHandler.DeleteForMe)
			r.Post("/api/messages/{id}/delete-for-everyone", chatHandler.DeleteForEveryone)
			r.Post("/api/messages/{id}/reactions", chatHandler.ToggleReaction)
			r.Delete("/api/messages/{id}/reactions/{reactionID}", chatHandler.RemoveReaction)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePermission(permission.GroupsCreate))
			r.Post("/api/groups", groupHandler.CreateGroup)
			r.Get("/api/groups", groupHandler.ListGroups)
			r.Get("/api/groups/{id}/members", groupHandler.ListMembers)
			r.Post("/api/groups/{id}/members", groupHandler.AddMembers)
			r.Delete("/api/groups/{id}/members/{userID}", groupHandler.RemoveMember)
			r.Put("/api/groups/{id}/members/{userID}/role", groupHandler.SetMemberRole)
			r.Post("/api/groups/{id}/messages", groupHandler.SendMessage)
			r.Get("/api/groups/{id}/messages", groupHandler.ListMessages)
			r.Post("/api/groups/{id}/read", groupHandler.MarkRead)
			r.Get("/api/group-messages/{messageID}/reads", groupHandler.ListReadReceipts)
			r.Post("/api/groups/{id}/typing", presenceHandler.SetGroupTyping)
			r.Get("/api/groups/{id}/typing", presenceHandler.GetGroupTyping)
		})

		r.Post("/api/presence/heartbeat", presenceHandler.Heartbeat)
		r.Get("/api/presence", presenceHandler.GetOnline)

		r.Get("/api/notifications", notifyHandler.List)
		r.Post("/api/notifications/{id}/read", notifyHandler.MarkRead)
	})

	log.Printf("Server starting on %s", *addr)
	if err := http.ListenAndServe(*addr, r); err != nil {
		log.Fatal(err)
	}
}
