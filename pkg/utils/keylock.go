package utils

import "sync"

// KeyedMutex 按 key 互斥的锁池
// 同一订单 ID 的读改写串行化靠它保证；不同 key 互不阻塞
// 锁对象常驻（订单量级下可接受），避免解锁/收缩竞态
type KeyedMutex struct {
	locks sync.Map // key -> *sync.Mutex
}

// NewKeyedMutex 创建锁池
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{}
}

// Lock 锁住指定 key，返回解锁函数
//
//	unlock := km.Lock(orderID)
//	defer unlock()
func (m *KeyedMutex) Lock(key int64) func() {
	v, _ := m.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
