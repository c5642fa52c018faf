package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// pagesPerStep bounds how long the source read lock is held per step, so
// writers on the live store are only briefly delayed.
const pagesPerStep = 256

// OnlineBackup copies the database at srcPath into dstPath using the SQLite
// online backup API. It opens its own connections and is safe to run while
// other connections read and write the source.
func OnlineBackup(ctx context.Context, srcPath, dstPath string) error {
	srcDB, err := sql.Open("sqlite3", srcPath+"?_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer srcDB.Close()

	dstDB, err := sql.Open("sqlite3", dstPath)
	if err != nil {
		return fmt.Errorf("failed to open destination: %w", err)
	}
	defer dstDB.Close()

	srcConn, err := srcDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to source: %w", err)
	}
	defer srcConn.Close()

	dstConn, err := dstDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to destination: %w", err)
	}
	defer dstConn.Close()

	return dstConn.Raw(func(dstDriverConn any) error {
		dst, ok := dstDriverConn.(*sqlite3.SQLiteConn)
		if !ok {
			return fmt.Errorf("unexpected destination driver connection %T", dstDriverConn)
		}
		return srcConn.Raw(func(srcDriverConn any) error {
			src, ok := srcDriverConn.(*sqlite3.SQLiteConn)
			if !ok {
				return fmt.Errorf("unexpected source driver connection %T", srcDriverConn)
			}
			return copyPages(ctx, dst, src)
		})
	})
}

func copyPages(ctx context.Context, dst, src *sqlite3.SQLiteConn) error {
	backup, err := dst.Backup("main", src, "main")
	if err != nil {
		return fmt.Errorf("failed to start backup: %w", err)
	}

	for {
		done, err := backup.Step(pagesPerStep)
		if err != nil {
			backup.Finish()
			return fmt.Errorf("backup step failed: %w", err)
		}
		if done {
			break
		}
		select {
		case <-ctx.Done():
			backup.Finish()
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}

	if err := backup.Finish(); err != nil {
		return fmt.Errorf("failed to finish backup: %w", err)
	}
	return nil
}
