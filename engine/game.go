package engine

import "github.com/spaghettifunk/lumen/engine/renderer/metadata"

// Game plugs an application into the engine. FnScene produces the scene when
// no Lua scene is configured.
type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnInitialize      Initialize
	FnScene           Scene
	FnShutdown        Shutdown
}

type Initialize func(e *Engine) error
type Scene func(params *metadata.SceneParams) (*metadata.SceneData, error)
type Shutdown func() error
