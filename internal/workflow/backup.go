package workflow

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gorhill/cronexpr"
	"go.uber.org/zap"

	"github.com/agile-athletes/lrps/internal/helpers"
)

// Store is the subset of Client used for backups.
type Store interface {
	Get(ctx context.Context, id string) (Workflow, error)
	Update(ctx context.Context, id string, wf Workflow) (Workflow, error)
}

// Backuper snapshots workflows to disk so a bad prompt update can be rolled back.
type Backuper struct {
	Store  Store
	Dir    string
	IDs    []string
	Logger *zap.Logger

	now func() time.Time
}

// BackupPath is where the snapshot of id is written.
func (b *Backuper) BackupPath(id string) string {
	return filepath.Join(b.Dir, fmt.Sprintf("workflow_%s_backup.json", id))
}

// Backup writes the current state of workflow id and returns the file path.
func (b *Backuper) Backup(ctx context.Context, id string) (string, error) {
	wf, err := b.Store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	path := b.BackupPath(id)
	if prev, err := ReadFile(path); err == nil && sameDocument(prev, wf) {
		b.logger().Debug("workflow unchanged since last backup", zap.String("id", id))
		return path, nil
	}
	if err := WriteFile(path, wf); err != nil {
		return "", fmt.Errorf("write backup %s: %w", path, err)
	}
	b.logger().Info("workflow backed up", zap.String("id", id), zap.String("path", path))
	return path, nil
}

// BackupAll snapshots every configured id and returns the first error after
// attempting all of them.
func (b *Backuper) BackupAll(ctx context.Context) error {
	var first error
	for _, id := range b.IDs {
		if _, err := b.Backup(ctx, id); err != nil {
			b.logger().Error("workflow backup failed", zap.String("id", id), zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Restore pushes a snapshot back to n8n. An empty path uses BackupPath(id).
func (b *Backuper) Restore(ctx context.Context, id, path string) (Workflow, error) {
	if path == "" {
		path = b.BackupPath(id)
	}
	wf, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	body, err := StripForPut(wf)
	if err != nil {
		return nil, err
	}
	return b.Store.Update(ctx, id, body)
}

// Run calls BackupAll whenever schedule fires until ctx is done.
func (b *Backuper) Run(ctx context.Context, schedule string) error {
	expr, err := cronexpr.Parse(schedule)
	if err != nil {
		return fmt.Errorf("parse backup schedule %q: %w", schedule, err)
	}
	for {
		next := expr.Next(b.clock())
		if next.IsZero() {
			return fmt.Errorf("backup schedule %q never fires", schedule)
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			_ = b.BackupAll(ctx)
		}
	}
}

// NextRun reports when schedule fires next after the current time.
func (b *Backuper) NextRun(schedule string) (time.Time, error) {
	expr, err := cronexpr.Parse(schedule)
	if err != nil {
		return time.Time{}, err
	}
	return expr.Next(b.clock()), nil
}

func sameDocument(a, b Workflow) bool {
	ha, errA := helpers.JSONHash(a)
	hb, errB := helpers.JSONHash(b)
	return errA == nil && errB == nil && ha == hb
}

func (b *Backuper) clock() time.Time {
	if b.now != nil {
		return b.now()
	}
	return time.Now()
}

func (b *Backuper) logger() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}
