package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"kairos/internal/logger"
)

// ChangeListener 在配置文件热更新后被调用。
type ChangeListener func(*Config)

// Watcher 监听主配置文件的变更并在解析成功后通知订阅者；
// 解析失败时保留旧快照，不打断运行中的服务。
type Watcher struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	current   *Config
	listeners []ChangeListener
}

// NewWatcher 读取配置并开始监听 FS 事件。
func NewWatcher(path string) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("watcher requires config path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	w := &Watcher{path: path, v: v, current: cfg}
	v.OnConfigChange(func(evt fsnotify.Event) {
		next, err := decode(w.v)
		if err != nil {
			logger.Errorf("配置重载失败 (%s): %v", filepath.Base(evt.Name), err)
			return
		}
		w.mu.Lock()
		w.current = next
		listeners := append([]ChangeListener(nil), w.listeners...)
		w.mu.Unlock()
		logger.Infof("配置已重载: %s", filepath.Base(w.path))
		for _, fn := range listeners {
			go func(cb ChangeListener) {
				defer func() {
					if r := recover(); r != nil {
						logger.Errorf("配置监听器 panic: %v", r)
					}
				}()
				cb(next)
			}(fn)
		}
	})
	v.WatchConfig()
	return w, nil
}

// Current 返回当前配置快照。
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Subscribe 注册变更监听器。
func (w *Watcher) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	w.listeners = append(w.listeners, fn)
	w.mu.Unlock()
}
