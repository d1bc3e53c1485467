// Package watcher 监听原始 PDF 目录，新增或覆盖的菜单自动提交入库。
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"pizzeria-rag-go/internal/model"
	"pizzeria-rag-go/internal/pipeline"
	"pizzeria-rag-go/pkg/log"
)

// DefaultDebounce 同一文件的连续写事件合并为一次提交。
const DefaultDebounce = 2 * time.Second

// Submitter 由 pipeline.Intake 实现。
type Submitter interface {
	Submit(ctx context.Context, up pipeline.Upload) (model.DocumentInfo, error)
}

// Watcher 目录监听器。
type Watcher struct {
	dir       string
	submitter Submitter
	debounce  time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
	wg     sync.WaitGroup
}

// New debounce <= 0 时使用 DefaultDebounce。
func New(dir string, submitter Submitter, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{dir: dir, submitter: submitter, debounce: debounce, timers: make(map[string]*time.Timer)}
}

// Run 阻塞直到 ctx 取消。目录不存在时先创建。
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create watch dir %s: %w", w.dir, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	log.Infof("[Watcher] 开始监听目录 %s", w.dir)

	defer w.stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warnf("[Watcher] 监听出错: %v", err)
		}
	}
}

// handle 只关心 PDF 的创建与写入，隐藏文件忽略。
func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return false
	}
	name := filepath.Base(ev.Name)
	if strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return false
	}

	path := ev.Name
	w.mu.Lock()
	defer w.mu.Unlock()
	// 已触发的定时器不能 Reset，否则回调会执行两次
	if t, ok := w.timers[path]; ok && t.Stop() {
		t.Reset(w.debounce)
		return true
	}
	w.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(w.debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.timers[path] == t {
			delete(w.timers, path)
		}
		w.mu.Unlock()
		w.submit(ctx, path)
	})
	w.timers[path] = t
	return true
}

func (w *Watcher) submit(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warnf("[Watcher] 读取 %s 失败: %v", path, err)
		return
	}
	info, err := w.submitter.Submit(ctx, pipeline.Upload{FileName: filepath.Base(path), Data: data, RequestedBy: "watcher"})
	if err != nil {
		log.Errorf("[Watcher] 提交 %s 失败: %v", path, err)
		return
	}
	log.Infof("[Watcher] 新文件 %s 已提交为文档 %s", filepath.Base(path), info.DocumentID)
}

// stop 取消未触发的定时器并等待正在执行的提交。
func (w *Watcher) stop() {
	w.mu.Lock()
	for path, t := range w.timers {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.timers, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}
