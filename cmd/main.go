package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"rundezvous/backend/internal/api/handler"
	"rundezvous/backend/internal/chathub"
	"rundezvous/backend/internal/config"
	"rundezvous/backend/internal/directory"
	"rundezvous/backend/internal/matchmaker"
	"rundezvous/backend/internal/models"
	"rundezvous/backend/internal/regions"
	"rundezvous/backend/internal/rundezvous"
	"rundezvous/backend/internal/storage"
)

func setupDependencies(cfg *config.Config) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.MetUser{},
		&models.Region{},
		&models.Landmark{},
		&models.Rundezvous{},
		&models.RundezvousUser{},
		&models.RundezvousLog{},
		&models.ChatMessage{},
	)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func main() {
	log.Println("Starting Rundezvous Backend...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, rdb := setupDependencies(cfg)
	s := storage.NewService(db, rdb)

	index := regions.NewIndex(s)
	dir := directory.New(s, index)
	m := matchmaker.New(s, cfg.PairingDistanceMeters)
	sessions := rundezvous.NewService(s, index, dir, cfg)
	hub := chathub.NewManagerService(s, sessions)
	sweeper := rundezvous.NewSweeper(sessions)

	go hub.Run()
	go sweeper.Run()

	r := gin.Default()
	h := handler.NewHandler(s, dir, m, sessions, hub, cfg)

	r.POST("/signup", h.Signup)
	r.POST("/login", h.Login)

	auth := r.Group("/", h.AuthRequired())
	auth.POST("/location", h.UpdateLocation)
	auth.GET("/rundezvous", h.Router)
	auth.POST("/rundezvous/start", h.Start)
	auth.GET("/rundezvous/waiting", h.WaitingRoom)
	auth.GET("/rundezvous/active", h.ActiveRundezvous)
	auth.POST("/rundezvous/meetup", h.StartMeetup)
	auth.POST("/rundezvous/decision", h.MakeMeetupDecision)
	auth.POST("/rundezvous/review", h.Review)
	auth.POST("/chat/messages", h.PostMessage)
	auth.GET("/chat/messages", h.GetMessages)
	auth.GET("/ws", h.ServeWebSocket)

	server := &http.Server{
		Addr:           cfg.ListenAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	log.Fatal(server.ListenAndServe())
}
