package service

import (
	"fmt"
	"sync"
)

// ==================== 连接级互斥 ====================

// ImportGuard 同一连接同一时刻只允许一个导入在执行
// 第二个请求立即失败而不是排队，避免交错覆盖同步元数据
type ImportGuard struct {
	locks sync.Map // key -> *guardEntry
}

// guardEntry 锁条目
type guardEntry struct {
	mu      sync.Mutex
	running bool
}

// NewImportGuard 创建互斥器
func NewImportGuard() *ImportGuard {
	return &ImportGuard{}
}

// ConnectionImportKey 生成连接级导入 key
func ConnectionImportKey(connectionID int64) string {
	return fmt.Sprintf("connection:%d:import", connectionID)
}

// TryAcquire 非阻塞获取，成功返回释放函数
func (g *ImportGuard) TryAcquire(key string) (release func(), ok bool) {
	actual, _ := g.locks.LoadOrStore(key, &guardEntry{})
	entry := actual.(*guardEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.running {
		return nil, false
	}
	entry.running = true

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.mu.Lock()
			entry.running = false
			entry.mu.Unlock()
		})
	}, true
}
