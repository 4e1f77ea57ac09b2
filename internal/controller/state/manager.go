package state

import (
	"sync"

	"github.com/google/uuid"
)

// Manager хранит диалоги пользователей в памяти процесса
type Manager struct {
	mu      sync.RWMutex
	dialogs map[int64]Dialog // telegramID -> Dialog
}

func NewManager() *Manager {
	return &Manager{
		dialogs: make(map[int64]Dialog),
	}
}

// Get текущий диалог, StateNone если его нет
func (sm *Manager) Get(telegramID int64) Dialog {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.dialogs[telegramID]
}

// Begin начинает диалог, предыдущий отбрасывается
func (sm *Manager) Begin(telegramID int64, s UserState, target uuid.UUID) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if s == StateNone {
		delete(sm.dialogs, telegramID)
		return
	}
	sm.dialogs[telegramID] = Dialog{State: s, TargetID: target}
}

// Take возвращает диалог и сразу его завершает
func (sm *Manager) Take(telegramID int64) (Dialog, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	d, ok := sm.dialogs[telegramID]
	delete(sm.dialogs, telegramID)
	return d, ok
}

func (sm *Manager) Clear(telegramID int64) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	delete(sm.dialogs, telegramID)
}
