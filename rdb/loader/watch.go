package loader

import (
	"context"
	"time"

	"github.com/chenbimo/befly-sub001/log"
	"github.com/chenbimo/befly-sub001/log/logger"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

type WatcherOptions struct {
	Dirs []string `cfg:"dirs" validate:"required,min=1"`
	// 最后一次变化后等待多久再触发，合并保存文件时的连续事件
	Debounce time.Duration `cfg:"debounce" def:"500ms"`
}

// Watcher 监听声明目录，变化时重新执行同步
type Watcher struct {
	dirs     []string
	debounce time.Duration
	logger   logger.Logger
}

func NewWatcherWithOptions(options *WatcherOptions, l logger.Logger) (*Watcher, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	if len(options.Dirs) == 0 {
		return nil, errors.New("no directory to watch")
	}

	debounce := options.Debounce
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	return &Watcher{
		dirs:     options.Dirs,
		debounce: debounce,
		logger:   log.Or(l).WithGroup("watcher"),
	}, nil
}

// Watch 先执行一次 fn，之后每当声明文件变化就再执行一次，直到 ctx 结束。
// fn 串行执行，执行期间发生的变化只会在结束后触发一次
func (w *Watcher) Watch(ctx context.Context, fn func(ctx context.Context) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "fsnotify.NewWatcher failed")
	}
	defer watcher.Close()

	for _, dir := range w.dirs {
		if err := watcher.Add(dir); err != nil {
			return errors.Wrapf(err, "watcher.Add %s failed", dir)
		}
	}

	w.run(ctx, fn)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !IsDeclaration(event.Name) {
				continue
			}
			w.logger.Debug("declaration changed", "file", event.Name, "op", event.Op.String())
			timer.Reset(w.debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		case <-timer.C:
			w.run(ctx, fn)
		}
	}
}

func (w *Watcher) run(ctx context.Context, fn func(ctx context.Context) error) {
	if err := fn(ctx); err != nil {
		w.logger.Warn("run failed", "error", err)
	}
}
