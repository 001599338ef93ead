package core

import "sync"

// Key code definitions, the subset the preview window reports.
type KeyCode uint16

const (
	KEY_ENTER  KeyCode = 0x0D
	KEY_ESCAPE KeyCode = 0x1B
	KEY_SPACE  KeyCode = 0x20
	KEY_F      KeyCode = 0x46
	KEY_Q      KeyCode = 0x51
	KEY_R      KeyCode = 0x52
	KEY_S      KeyCode = 0x53
)

/**
 * Context usage:
 * key = data.Data.(*KeyEvent).KeyCode
 */
type KeyEvent struct {
	KeyCode KeyCode
}

// Keyboard state structure
type KeyboardState struct {
	Keys [256]bool
}

// Input state structure that holds current and previous keyboard states.
type InputState struct {
	mu               sync.RWMutex
	KeyboardCurrent  KeyboardState
	KeyboardPrevious KeyboardState
}

var onceInput sync.Once
var inputState *InputState = nil

func InputInitialize() error {
	onceInput.Do(func() {
		inputState = &InputState{}
	})
	LogDebug("Input subsystem initialized.")
	return nil
}

func InputShutdown() error {
	if inputState == nil {
		return nil
	}
	inputState.mu.Lock()
	defer inputState.mu.Unlock()
	inputState.KeyboardCurrent = KeyboardState{}
	inputState.KeyboardPrevious = KeyboardState{}
	return nil
}

// InputUpdate copies the current state to the previous one, once per tick.
func InputUpdate() error {
	if inputState == nil {
		return nil
	}
	inputState.mu.Lock()
	defer inputState.mu.Unlock()
	inputState.KeyboardPrevious = inputState.KeyboardCurrent
	return nil
}

func InputIsKeyDown(key KeyCode) bool {
	if inputState == nil {
		return false
	}
	inputState.mu.RLock()
	defer inputState.mu.RUnlock()
	return inputState.KeyboardCurrent.Keys[key]
}

func InputIsKeyUp(key KeyCode) bool {
	return !InputIsKeyDown(key)
}

func InputWasKeyDown(key KeyCode) bool {
	if inputState == nil {
		return false
	}
	inputState.mu.RLock()
	defer inputState.mu.RUnlock()
	return inputState.KeyboardPrevious.Keys[key]
}

func InputWasKeyUp(key KeyCode) bool {
	return !InputWasKeyDown(key)
}

// InputProcessKey records a key state and fires EVENT_CODE_KEY_PRESSED or
// EVENT_CODE_KEY_RELEASED when it changed.
func InputProcessKey(key KeyCode, pressed bool) error {
	if inputState == nil {
		return ErrNotInitialized
	}
	inputState.mu.Lock()
	changed := inputState.KeyboardCurrent.Keys[key] != pressed
	inputState.KeyboardCurrent.Keys[key] = pressed
	inputState.mu.Unlock()

	if !changed {
		return nil
	}
	code := EVENT_CODE_KEY_RELEASED
	if pressed {
		code = EVENT_CODE_KEY_PRESSED
	}
	// Fire off an event for immediate processing.
	EventFire(code, nil, EventContext{Data: &KeyEvent{KeyCode: key}})
	return nil
}
