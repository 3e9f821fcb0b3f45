package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"LEMS-backend/internal/equipment/borrowings"
	"LEMS-backend/internal/equipment/disposals"
	"LEMS-backend/internal/equipment/items"
	"LEMS-backend/internal/equipment/maintenance"
	"LEMS-backend/internal/equipment/returns"
	"LEMS-backend/internal/platform/auth"
	"LEMS-backend/internal/platform/db"
	"LEMS-backend/internal/platform/events"
)

func main() {
	// .env は任意。無ければ config.yaml と環境変数だけで動く
	_ = godotenv.Load()

	cfg, err := db.LoadConfig("config/config.yaml")
	if err != nil {
		panic(err)
	}

	mode := cfg.Mode
	log.Printf("[INFO] mode:%s\n", mode)

	if mode != "dev" && mode != "release" {
		log.Fatal("config: mode must be dev or release")
	}

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		panic(err)
	}
	defer conn.Close()

	log.Printf("[INFO] connected to DB: %s", cfg.DB.DBName)

	// Redis は通知イベント用。未設定なら発行だけが無効になる
	var pub *events.Publisher
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		pub = events.NewPublisher(rdb)
		log.Printf("[INFO] event publisher enabled: %s", cfg.Redis.Addr)
	} else {
		log.Printf("[WARN] redis addr not set; event publishing disabled")
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	_ = r.SetTrustedProxies(nil)

	if mode == "dev" {
		// CORS（開発中のみ必要）
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:3000"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length", "Location"},
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowCredentials: true,
		}))
	}

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	if mode == "dev" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	secret := []byte(cfg.Auth.Secret)
	if len(secret) == 0 {
		log.Fatal("config: auth secret is required (auth.secret or JWT_SECRET)")
	}

	// 認証不要の口
	pub1 := r.Group("/api/v1")
	auth.RegisterRoutes(pub1, auth.NewService(conn, secret))

	// 業務APIは要認証
	api := r.Group("/api/v1")
	api.Use(auth.RequireAuth(secret))
	items.RegisterRoutes(api, items.NewService(conn, pub))
	borrowings.RegisterRoutes(api, borrowings.NewService(conn, pub))
	maintenance.RegisterRoutes(api, maintenance.NewService(conn, pub))
	disposals.RegisterRoutes(api, disposals.NewService(conn, pub))
	returns.RegisterRoutes(api, returns.NewService(conn, pub))

	addr := cfg.Server.Addr
	if addr == "" {
		addr = ":8443"
	}
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		if cfg.Server.Cert != "" && cfg.Server.Key != "" {
			log.Printf("[INFO] listening on https://%s", addr)
			if err := srv.ListenAndServeTLS(cfg.Server.Cert, cfg.Server.Key); err != nil && err != http.ErrServerClosed {
				log.Fatal(err)
			}
			return
		}
		log.Printf("[INFO] listening on http://%s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	log.Println("[INFO] shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal(err)
	}
}
