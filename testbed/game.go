package testbed

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	hasLogo bool
	hasFont bool
}

// NewTestGame wraps config in a game whose built-in scene is used when no
// Lua scene is configured.
func NewTestGame(config *engine.ApplicationConfig) (*TestGame, error) {
	if config == nil {
		config = engine.DefaultApplicationConfig()
	}
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: config,
			State:             &gameState{},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnScene = tg.Scene
	tg.FnShutdown = tg.Shutdown

	return tg, nil
}

func (g *TestGame) Initialize(e *engine.Engine) error {
	core.LogDebug("TestGame Initialize fn....")

	state := g.State.(*gameState)
	_, state.hasLogo = e.Image("logo")
	_, state.hasFont = e.Font("Pixel")
	if !state.hasLogo {
		core.LogWarn("logo image not found in %s", e.AssetManager().Root())
	}
	return nil
}

// Scene draws a checkerboard, the logo when available and a caption.
func (g *TestGame) Scene(params *metadata.SceneParams) (*metadata.SceneData, error) {
	state := g.State.(*gameState)
	scene := &metadata.SceneData{Name: "testbed"}
	add := func(cmd metadata.SceneCommand) {
		scene.Commands = append(scene.Commands, cmd)
	}

	const cell = 32
	dark := metadata.Color{R: 0.12, G: 0.12, B: 0.16, A: 1}
	light := metadata.Color{R: 0.2, G: 0.2, B: 0.26, A: 1}
	for y := uint32(0); y < params.Height; y += cell {
		for x := uint32(0); x < params.Width; x += cell {
			c := dark
			if (x/cell+y/cell)%2 == 0 {
				c = light
			}
			add(metadata.SceneCommand{
				Kind:  metadata.SceneCommandRect,
				Rect:  metadata.NewRect(int16(x), int16(y), cell, cell),
				Color: c,
			})
		}
	}

	// bouncing square
	span := int64(params.Width) - cell
	if span > 0 {
		pos := int64(params.Frame*3) % (2 * span)
		if pos > span {
			pos = 2*span - pos
		}
		add(metadata.SceneCommand{
			Kind:  metadata.SceneCommandRect,
			Rect:  metadata.NewRect(int16(pos), int16(params.Height/2), cell, cell),
			Color: metadata.Color{R: 0.9, G: 0.3, B: 0.2, A: 0.8},
		})
	}

	if state.hasLogo {
		add(metadata.SceneCommand{
			Kind:  metadata.SceneCommandImage,
			Image: "logo",
			Rect:  metadata.NewRect(16, 16, 96, 96),
			Color: metadata.WHITE,
		})
	}
	if state.hasFont {
		add(metadata.SceneCommand{
			Kind:   metadata.SceneCommandText,
			Font:   "Pixel",
			Origin: metadata.Point{X: 16, Y: 120},
			Text:   fmt.Sprintf("TESTBED %dX%d FRAME %d", params.Width, params.Height, params.Frame),
			Color:  metadata.WHITE,
		})
	}
	return scene, nil
}

func (g *TestGame) Shutdown() error {
	core.LogDebug("TestGame Shutdown fn....")
	return nil
}
