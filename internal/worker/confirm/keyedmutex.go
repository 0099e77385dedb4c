package confirm

import "sync"

// keyedMutex は相関IDごとの排他ロックを提供する。
// 同一トランザクションハッシュの確認イベントが複数ワーカーに
// 同時配送された場合でも、処理を直列化するために使用する。
// 使用されなくなったキーのエントリは参照カウントで回収する。
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyedMutexEntry
}

type keyedMutexEntry struct {
	mu   sync.Mutex
	refs int
}

// newKeyedMutex はkeyedMutexを生成する。
func newKeyedMutex() *keyedMutex {
	return &keyedMutex{
		entries: make(map[string]*keyedMutexEntry),
	}
}

// Lock はキーに対応するロックを取得し、解放用の関数を返す。
func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	entry, ok := k.entries[key]
	if !ok {
		entry = &keyedMutexEntry{}
		k.entries[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
