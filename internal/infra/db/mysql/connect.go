package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// Connect opens the pool and pings until the server answers or attempts run out.
func Connect(ctx context.Context, dsn string, attempts int, log *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if attempts <= 0 {
		attempts = 1
	}
	for i := 1; ; i++ {
		ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(ctx2)
		cancel()
		if err == nil {
			return db, nil
		}
		if i >= attempts {
			db.Close()
			return nil, fmt.Errorf("mysql not reachable after %d attempts: %w", attempts, err)
		}
		if log != nil {
			log.Warn("waiting for mysql", zap.Int("attempt", i), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(time.Duration(i) * time.Second):
		}
	}
}
