// Command truncate-tables empties the version tables in the configured
// keyspace, keeping the schema.
package main

import (
	"context"
	"time"

	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/config"
	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/store"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sess, err := store.NewCassandraSession(store.CassandraConfig{
		Hosts:    cfg.Cassandra.Hosts,
		Port:     cfg.Cassandra.Port,
		Keyspace: cfg.Cassandra.Keyspace,
		Username: cfg.Cassandra.Username,
		Password: cfg.Cassandra.Password,
		Timeout:  10 * time.Second,
	})
	if err != nil {
		logger.Fatal("connect failed", zap.Error(err))
	}
	defer sess.Close()

	if err := store.TruncateTables(context.Background(), sess); err != nil {
		logger.Fatal("truncate tables failed", zap.Error(err))
	}
	logger.Info("tables truncated", zap.String("keyspace", cfg.Cassandra.Keyspace))
}
