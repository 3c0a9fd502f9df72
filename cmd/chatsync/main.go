// cmd/chatsync/main.go
// Demo client wiring the messaging synchronization engine against a
// running chat server. Connects, opens the configured conversation and
// logs engine activity until interrupted.

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	awssession "github.com/aws/aws-sdk-go/aws/session"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openwave/chatsync/internal/api"
	"github.com/openwave/chatsync/internal/chat"
	"github.com/openwave/chatsync/internal/config"
	"github.com/openwave/chatsync/internal/connection"
	"github.com/openwave/chatsync/internal/session"
	"github.com/openwave/chatsync/internal/upload"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	// 1. Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found (%v), using environment variables", err)
	}

	// 2. Load and validate configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("Configuration validation failed: ", err)
	}

	// 3. Derive the session from the stored auth token
	sess, err := session.FromToken(cfg.AuthToken)
	if err != nil {
		log.Fatal("Failed to build session: ", err)
	}
	log.Printf("Authenticated as %s", sess.UserID)

	// 4. Pick the attachment uploader
	var uploader upload.Uploader
	switch cfg.UploadProvider {
	case "s3":
		awsSess, err := awssession.NewSession(&aws.Config{Region: aws.String(cfg.AWSRegion)})
		if err != nil {
			log.Fatal("Failed to create AWS session: ", err)
		}
		uploader = upload.NewS3Uploader(awsSess, cfg.S3Bucket, cfg.CDNURL, cfg.MaxUploadSize)
	default:
		uploader = upload.NewHTTPUploader(cfg.ServerURL, sess.Token)
	}

	// 5. Metrics endpoint
	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: router}
	go func() {
		log.Printf("Metrics listening on %s", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	// 6. Connect and start the engine
	manager := connection.NewManager(sess, cfg.SocketURL, cfg.ReconnectAttempts, cfg.ReconnectDelay)
	history := api.NewClient(cfg.ServerURL, sess.Token)

	engine := chat.New(sess, manager, history, uploader)
	engine.Start()
	defer engine.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := manager.Connect(ctx); err != nil {
		cancel()
		log.Fatal("Failed to connect: ", err)
	}
	cancel()
	log.Println("Connected")

	// 7. Open the configured conversation
	switch {
	case cfg.GroupID != "":
		if err := engine.OpenGroup(context.Background(), cfg.GroupID); err != nil {
			log.Printf("Failed to open group %s: %v", cfg.GroupID, err)
		} else {
			log.Printf("Opened group %s with %d messages", cfg.GroupID, len(engine.Messages()))
			engine.MarkVisible()
		}
	case cfg.PeerID != "":
		if err := engine.OpenConversation(context.Background(), cfg.PeerID); err != nil {
			log.Printf("Failed to open conversation with %s: %v", cfg.PeerID, err)
		} else {
			log.Printf("Opened conversation with %s, %d messages", cfg.PeerID, len(engine.Messages()))
			engine.MarkVisible()
		}
	default:
		log.Println("No CHAT_PEER or CHAT_GROUP configured, idling")
	}

	// 8. Run until interrupted, surfacing engine errors
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case err := <-engine.Errors():
			log.Printf("Engine error: %v", err)
		case sig := <-quit:
			log.Printf("Received %v, shutting down", sig)

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				log.Printf("Metrics shutdown error: %v", err)
			}
			shutdownCancel()

			engine.CloseConversation()
			if err := manager.Close(); err != nil {
				log.Printf("Close error: %v", err)
			}
			return
		}
	}
}
