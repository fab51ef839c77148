package cache

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// LoaderState 进程内只读数据的加载状态
type LoaderState int32

const (
	LoaderEmpty LoaderState = iota
	LoaderLoading
	LoaderReady
)

func (s LoaderState) String() string {
	switch s {
	case LoaderLoading:
		return "loading"
	case LoaderReady:
		return "ready"
	default:
		return "empty"
	}
}

// Loader 进程内只读数据加载器
// 并发调用只触发一次加载；加载失败回到 empty，下次调用重试
type Loader[T any] struct {
	name  string
	fetch func(ctx context.Context) (T, error)
	group singleflight.Group

	mu    sync.RWMutex
	state LoaderState
	value T
}

// NewLoader 创建加载器
func NewLoader[T any](name string, fetch func(ctx context.Context) (T, error)) *Loader[T] {
	return &Loader[T]{name: name, fetch: fetch}
}

// Get 返回已加载的数据，未加载时同步加载
func (l *Loader[T]) Get(ctx context.Context) (T, error) {
	l.mu.RLock()
	if l.state == LoaderReady {
		value := l.value
		l.mu.RUnlock()
		return value, nil
	}
	l.mu.RUnlock()

	// 共享加载不受单个调用方取消影响
	loadCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan(l.name, func() (interface{}, error) {
		l.setState(LoaderLoading)
		value, err := l.fetch(loadCtx)
		l.mu.Lock()
		defer l.mu.Unlock()
		if err != nil {
			l.state = LoaderEmpty
			return nil, err
		}
		l.value = value
		l.state = LoaderReady
		return value, nil
	})

	var zero T
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// State 当前加载状态
func (l *Loader[T]) State() LoaderState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Reset 丢弃已加载数据（参考数据被修改后调用）
func (l *Loader[T]) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	var zero T
	l.value = zero
	l.state = LoaderEmpty
}

func (l *Loader[T]) setState(state LoaderState) {
	l.mu.Lock()
	l.state = state
	l.mu.Unlock()
}
