package global

import (
	"os"
	"strconv"
	"time"
)

const NodeTypeMsgGateway = "msgGateWay"

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type MongoConfig struct {
	URI      string
	Database string
}

type AppConfig struct {
	NodeType string
	NodeID   string
	Port     int

	JWTSecret []byte

	Redis RedisConfig
	Mongo MongoConfig

	// NatsURL enables the downstream event feed when non-empty.
	NatsURL string

	TypingTimeout   time.Duration // typing session max age
	SweepInterval   time.Duration // typing sweeper period
	HistoryPageSize int           // room_joined history snapshot cap
	SendQueueSize   int           // per-connection outbound buffer
	FanoutWorkers   int
	FanoutQueue     int

	MaxContentRunes int           // send/edit content limit
	EditWindow      time.Duration // ownership edit window
}

var Global = AppConfig{
	NodeType:        NodeTypeMsgGateway,
	NodeID:          "gateway_10",
	Port:            8080,
	JWTSecret:       []byte("dev-only-secret-change-me"),
	Redis:           RedisConfig{Addr: "127.0.0.1:6379", DB: 0},
	Mongo:           MongoConfig{URI: "mongodb://localhost:27017", Database: "agentChat"},
	TypingTimeout:   10 * time.Second,
	SweepInterval:   30 * time.Second,
	HistoryPageSize: 50,
	SendQueueSize:   256,
	FanoutWorkers:   4,
	FanoutQueue:     1024,
	MaxContentRunes: 4000,
	EditWindow:      15 * time.Minute,
}

// LoadEnv overlays environment variables onto Global. Unset variables
// leave defaults in place.
func LoadEnv() {
	if v := os.Getenv("GW_NODE_ID"); v != "" {
		Global.NodeID = v
	}
	if v := os.Getenv("GW_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			Global.Port = p
		}
	}
	if v := os.Getenv("GW_JWT_SECRET"); v != "" {
		Global.JWTSecret = []byte(v)
	}
	if v := os.Getenv("GW_REDIS_ADDR"); v != "" {
		Global.Redis.Addr = v
	}
	if v := os.Getenv("GW_REDIS_PASSWORD"); v != "" {
		Global.Redis.Password = v
	}
	if v := os.Getenv("GW_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			Global.Redis.DB = db
		}
	}
	if v := os.Getenv("GW_MONGO_URI"); v != "" {
		Global.Mongo.URI = v
	}
	if v := os.Getenv("GW_MONGO_DB"); v != "" {
		Global.Mongo.Database = v
	}
	if v := os.Getenv("GW_NATS_URL"); v != "" {
		Global.NatsURL = v
	}
}
