// Command drop-tables removes the version tables from the configured
// keyspace.
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

	if err := store.DropTables(context.Background(), sess); err != nil {
		logger.Fatal("drop tables failed", zap.Error(err))
	}
	logger.Info("tables dropped", zap.String("keyspace", cfg.Cassandra.Keyspace))
}
