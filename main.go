package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"PGateway/global"
	"PGateway/logger"
	"PGateway/middleware/security"
	chatservice "PGateway/module/chat/service"
	userservice "PGateway/module/user/service"
	"PGateway/service/gateway"
	"PGateway/service/mgo"
	"PGateway/service/natsx"
	"PGateway/service/storage"
	storageredis "PGateway/service/storage/redis"
	"PGateway/tools/ids"
	"PGateway/tools/safe"
)

func main() {
	global.LoadEnv()
	cfg := global.Global
	defer logger.Sync()

	ids.SetNodeID(100)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := storageredis.Init(storageredis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}); err != nil {
		logger.Errorf("[main] redis init failed: %v", err)
		os.Exit(1)
	}

	if err := mgo.Connect(ctx, mgo.Config{
		URI:         cfg.Mongo.URI,
		Database:    cfg.Mongo.Database,
		MaxPoolSize: 20,
	}); err != nil {
		logger.Errorf("[main] mongo connect failed: %v", err)
		os.Exit(1)
	}
	defer func() { _ = mgo.Close(context.Background()) }()

	var feed gateway.EventFeed
	if cfg.NatsURL != "" {
		nc, err := natsx.Connect(cfg.NatsURL)
		if err != nil {
			logger.Errorf("[main] nats connect failed: %v", err)
			os.Exit(1)
		}
		defer nc.Close()
		feed = natsx.NewProducer(nc)
	}

	db := mgo.DB()
	presence := storage.NewPresenceStore(storageredis.Client())
	msgs := chatservice.NewMessageStore(db, cfg.EditWindow)
	rooms := chatservice.NewRoomStore(db)
	users := userservice.NewUserStore(db, presence)
	auth := security.NewAuthenticator(cfg.JWTSecret)

	gw := gateway.New(gateway.Options{
		NodeID:          cfg.NodeID,
		TypingTimeout:   cfg.TypingTimeout,
		SweepInterval:   cfg.SweepInterval,
		HistoryPageSize: cfg.HistoryPageSize,
		SendQueueSize:   cfg.SendQueueSize,
		FanoutWorkers:   cfg.FanoutWorkers,
		FanoutQueue:     cfg.FanoutQueue,
		MaxContentRunes: cfg.MaxContentRunes,
	}, msgs, rooms, users, feed)

	safe.Go(func() { gw.RunSweeper(ctx) })

	ws := gateway.NewWSServer(gw, auth)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/ws", ws.HandleWS)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "node": cfg.NodeID})
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	safe.Go(func() {
		logger.Infof("[main] gateway %s listening on %s", cfg.NodeID, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("[main] listen failed: %v", err)
			stop()
		}
	})

	<-ctx.Done()
	logger.Infof("[main] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("[main] http shutdown: %v", err)
	}

	// Shutdown does not reach hijacked websocket connections; drain the
	// registry so peers get offline bookkeeping instead of a dead socket.
	for _, conn := range gw.Registry().Conns() {
		gw.Disconnect(shutdownCtx, conn)
	}
}
