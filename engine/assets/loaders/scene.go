package loaders

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	lua "github.com/yuin/gopher-lua"
)

// SceneLoader evaluates Lua scene scripts into scene commands. A script runs
// in a sandbox with the base, table, string and math libraries plus the
// drawing functions clear, scissor, rect, image and text.
type SceneLoader struct {
	// Timeout bounds a single evaluation, zero means no limit.
	Timeout time.Duration
}

func (sl *SceneLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	sceneParams, _ := params.(*metadata.SceneParams)
	if sceneParams == nil {
		sceneParams = &metadata.SceneParams{}
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if sl.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sl.Timeout)
		defer cancel()
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	scene, err := EvaluateScene(ctx, name, string(source), sceneParams)
	if err != nil {
		return nil, err
	}
	return &metadata.Resource{
		Type:     metadata.ResourceTypeScene,
		Name:     name,
		FullPath: path,
		DataSize: uint64(len(source)),
		Data:     scene,
	}, nil
}

func (sl *SceneLoader) Unload(resource *metadata.Resource) error {
	resource.Data = nil
	return nil
}

type sceneBuilder struct {
	scene *metadata.SceneData
}

// EvaluateScene runs a scene script and collects the commands it emits.
func EvaluateScene(ctx context.Context, name, source string, params *metadata.SceneParams) (*metadata.SceneData, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	L.SetContext(ctx)

	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.fn), NRet: 0, Protect: true}, lua.LString(lib.name)); err != nil {
			return nil, err
		}
	}
	// no file or module access from scenes
	for _, unsafeFn := range []string{"dofile", "loadfile", "require"} {
		L.SetGlobal(unsafeFn, lua.LNil)
	}

	b := &sceneBuilder{scene: &metadata.SceneData{Name: name}}
	L.SetGlobal("WIDTH", lua.LNumber(params.Width))
	L.SetGlobal("HEIGHT", lua.LNumber(params.Height))
	L.SetGlobal("FRAME", lua.LNumber(params.Frame))
	L.SetGlobal("clear", L.NewFunction(b.clear))
	L.SetGlobal("scissor", L.NewFunction(b.scissor))
	L.SetGlobal("rect", L.NewFunction(b.rect))
	L.SetGlobal("image", L.NewFunction(b.image))
	L.SetGlobal("text", L.NewFunction(b.text))

	if err := L.DoString(source); err != nil {
		return nil, fmt.Errorf("scene %s: %w", name, err)
	}
	return b.scene, nil
}

func checkInt16(L *lua.LState, n int) int16 {
	v := L.CheckInt(n)
	if v < -32768 || v > 32767 {
		L.ArgError(n, "coordinate out of the 16-bit range")
	}
	return int16(v)
}

func checkRect(L *lua.LState, first int) metadata.Rect {
	x, y := checkInt16(L, first), checkInt16(L, first+1)
	w, h := checkInt16(L, first+2), checkInt16(L, first+3)
	if w < 0 || h < 0 {
		L.ArgError(first+2, "width and height must not be negative")
	}
	return metadata.NewRect(x, y, w, h)
}

func checkColor(L *lua.LState, first int) metadata.Color {
	return metadata.Color{
		R: float32(L.CheckNumber(first)),
		G: float32(L.CheckNumber(first + 1)),
		B: float32(L.CheckNumber(first + 2)),
		A: float32(L.OptNumber(first+3, 1)),
	}
}

// clear()
func (b *sceneBuilder) clear(L *lua.LState) int {
	b.scene.Commands = append(b.scene.Commands, metadata.SceneCommand{Kind: metadata.SceneCommandClear})
	return 0
}

// scissor(x, y, w, h)
func (b *sceneBuilder) scissor(L *lua.LState) int {
	b.scene.Commands = append(b.scene.Commands, metadata.SceneCommand{
		Kind: metadata.SceneCommandScissor,
		Rect: checkRect(L, 1),
	})
	return 0
}

// rect(x, y, w, h, r, g, b [, a])
func (b *sceneBuilder) rect(L *lua.LState) int {
	b.scene.Commands = append(b.scene.Commands, metadata.SceneCommand{
		Kind:  metadata.SceneCommandRect,
		Rect:  checkRect(L, 1),
		Color: checkColor(L, 5),
	})
	return 0
}

// image(name, x, y, w, h [, sx, sy, sw, sh])
func (b *sceneBuilder) image(L *lua.LState) int {
	cmd := metadata.SceneCommand{
		Kind:  metadata.SceneCommandImage,
		Image: L.CheckString(1),
		Rect:  checkRect(L, 2),
		Color: metadata.WHITE,
	}
	if L.GetTop() >= 6 {
		cmd.Source = checkRect(L, 6)
	}
	b.scene.Commands = append(b.scene.Commands, cmd)
	return 0
}

// text(font, x, y, str, r, g, b [, a])
func (b *sceneBuilder) text(L *lua.LState) int {
	b.scene.Commands = append(b.scene.Commands, metadata.SceneCommand{
		Kind:   metadata.SceneCommandText,
		Font:   L.CheckString(1),
		Origin: metadata.Point{X: checkInt16(L, 2), Y: checkInt16(L, 3)},
		Text:   L.CheckString(4),
		Color:  checkColor(L, 5),
	})
	return 0
}
