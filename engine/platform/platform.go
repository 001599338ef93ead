package platform

import (
	"image"
	"runtime"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"golang.org/x/image/draw"

	"github.com/spaghettifunk/lumen/engine/core"
)

func init() {
	// The window event loop must run on the main OS thread
	runtime.LockOSThread()
}

// keys forwarded to the input system
var keyMap = map[ebiten.Key]core.KeyCode{
	ebiten.KeyEnter:  core.KEY_ENTER,
	ebiten.KeyEscape: core.KEY_ESCAPE,
	ebiten.KeySpace:  core.KEY_SPACE,
	ebiten.KeyF:      core.KEY_F,
	ebiten.KeyQ:      core.KEY_Q,
	ebiten.KeyR:      core.KEY_R,
	ebiten.KeyS:      core.KEY_S,
}

// Platform is the preview window. It shows the most recent frame handed to
// Present and feeds keyboard state into the input system.
type Platform struct {
	title string

	mu          sync.RWMutex
	width       int
	height      int
	frameBuffer []byte
	dirty       bool
	window      *ebiten.Image
	running     bool
	fullscreen  bool
}

func New(title string, width, height uint32) *Platform {
	return &Platform{
		title:       title,
		width:       int(width),
		height:      int(height),
		frameBuffer: make([]byte, int(width)*int(height)*4),
	}
}

// Startup configures the window. Run opens it.
func (p *Platform) Startup() error {
	if err := core.InputInitialize(); err != nil {
		return err
	}
	ebiten.SetWindowSize(p.width, p.height)
	ebiten.SetWindowTitle(p.title)
	ebiten.SetWindowResizable(true)
	ebiten.SetRunnableOnUnfocused(true)
	return nil
}

// Run blocks in the window event loop until the window is closed or
// Shutdown is called. It must be called from the main goroutine.
func (p *Platform) Run() error {
	p.mu.Lock()
	p.running = true
	p.mu.Unlock()
	core.LogInfo("preview window %s opened (%dx%d)", p.title, p.width, p.height)
	return ebiten.RunGame(p)
}

// Shutdown asks the event loop to stop on its next tick.
func (p *Platform) Shutdown() error {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return core.InputShutdown()
}

// Present converts frame to premultiplied RGBA and queues it for the next
// Draw. The window adopts the size of the frame.
func (p *Platform) Present(frame image.Image) {
	b := frame.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), frame, b.Min, draw.Src)

	p.mu.Lock()
	defer p.mu.Unlock()
	if b.Dx() != p.width || b.Dy() != p.height {
		p.width, p.height = b.Dx(), b.Dy()
		p.window = nil
	}
	p.frameBuffer = rgba.Pix
	p.dirty = true
}

func (p *Platform) Update() error {
	if ebiten.IsWindowBeingClosed() {
		core.EventFire(core.EVENT_CODE_APPLICATION_QUIT, p, core.EventContext{})
		return ebiten.Termination
	}
	p.mu.RLock()
	running := p.running
	p.mu.RUnlock()
	if !running {
		return ebiten.Termination
	}

	if err := core.InputUpdate(); err != nil {
		return err
	}
	for key, code := range keyMap {
		if inpututil.IsKeyJustPressed(key) {
			core.InputProcessKey(code, true)
		} else if inpututil.IsKeyJustReleased(key) {
			core.InputProcessKey(code, false)
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF) {
		p.fullscreen = !p.fullscreen
		ebiten.SetFullscreen(p.fullscreen)
	}
	return nil
}

func (p *Platform) Draw(screen *ebiten.Image) {
	p.mu.Lock()
	if p.window == nil {
		p.window = ebiten.NewImage(p.width, p.height)
		p.dirty = true
	}
	if p.dirty && len(p.frameBuffer) == 4*p.width*p.height {
		p.window.WritePixels(p.frameBuffer)
		p.dirty = false
	}
	window := p.window
	p.mu.Unlock()

	screen.DrawImage(window, nil)
}

func (p *Platform) Layout(_, _ int) (int, int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.width, p.height
}
