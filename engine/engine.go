package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spaghettifunk/lumen/engine/assets"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/kernel"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/platform"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/shaders"
	"github.com/spaghettifunk/lumen/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

func (s Stage) String() string {
	return [...]string{"uninitialized", "initialized", "running", "shutting down"}[s]
}

const jobQueueSize = 256

type Engine struct {
	currentStage Stage
	gameInstance *Game
	config       *ApplicationConfig

	jobs         *systems.JobSystem
	renderer     *renderer.Renderer
	assetManager *assets.AssetManager
	platform     *platform.Platform

	framebuffer renderer.ImageHandle
	frame       atomic.Uint64

	mu        sync.RWMutex
	images    map[string]renderer.ImageHandle
	fonts     map[string]*renderer.Font
	fontPages map[string]string

	// asset paths to reload, "" only re-renders
	changes  chan string
	quit     chan struct{}
	quitOnce sync.Once
	downOnce sync.Once
}

func New(g *Game) (*Engine, error) {
	if g == nil || g.ApplicationConfig == nil {
		return nil, errors.New("engine needs a game with a configuration")
	}
	if err := g.ApplicationConfig.Validate(); err != nil {
		core.LogError("%s", err)
		return nil, err
	}

	am, err := assets.NewAssetManager()
	if err != nil {
		core.LogError("%s", err)
		return nil, err
	}

	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		config:       g.ApplicationConfig,
		assetManager: am,
		images:       make(map[string]renderer.ImageHandle),
		fonts:        make(map[string]*renderer.Font),
		fontPages:    make(map[string]string),
		changes:      make(chan string, 64),
		quit:         make(chan struct{}),
	}, nil
}

func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageUninitialized {
		return fmt.Errorf("engine is %s, cannot initialize", e.currentStage)
	}
	cfg := e.config

	core.SetLogLevel(cfg.logLevel())
	core.EventInitialize()
	if err := core.MetricsInitialize(); err != nil {
		return err
	}

	workers := cfg.Application.Workers
	if workers == 0 {
		workers = DefaultApplicationConfig().Application.Workers
	}
	jobs, err := systems.NewJobSystem(workers, jobQueueSize)
	if err != nil {
		return err
	}
	e.jobs = jobs

	r, err := renderer.New(
		renderer.WithJobSystem(jobs),
		renderer.WithFlattenOrder(cfg.flattenOrder()),
		renderer.WithNormalization(cfg.normalization()),
	)
	if err != nil {
		return err
	}
	e.renderer = r

	fb, err := r.CreateImage(cfg.extent())
	if err != nil {
		return err
	}
	e.framebuffer = fb

	if err := e.assetManager.Initialize(cfg.Assets.Dir, cfg.sceneTimeout()); err != nil {
		return err
	}

	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	core.EventRegister(core.EVENT_CODE_ASSET_CHANGED, e, e.onAssetEvent)
	core.EventRegister(core.EVENT_CODE_ASSET_REMOVED, e, e.onAssetEvent)
	core.EventRegister(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)

	if cfg.Application.Preview {
		e.platform = platform.New(cfg.Application.Name, cfg.Target.Width, cfg.Target.Height)
		if err := e.platform.Startup(); err != nil {
			return err
		}
	}

	ctx := context.Background()
	if err := e.LoadFonts(ctx); err != nil {
		return err
	}
	if err := e.LoadImages(ctx, e.imageAssets()); err != nil {
		return err
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	core.LogInfo("%s initialized: %dx%d target, %d workers, assets in %s",
		cfg.Application.Name, cfg.Target.Width, cfg.Target.Height, workers, e.assetManager.Root())
	return nil
}

func (e *Engine) Config() *ApplicationConfig {
	return e.config
}

func (e *Engine) Renderer() *renderer.Renderer {
	return e.renderer
}

func (e *Engine) AssetManager() *assets.AssetManager {
	return e.assetManager
}

// Framebuffer is the image every frame is drawn into.
func (e *Engine) Framebuffer() renderer.ImageHandle {
	return e.framebuffer
}

// FrameCount is the number of frames rendered so far.
func (e *Engine) FrameCount() uint64 {
	return e.frame.Load()
}

// imageAssets lists the images to ingest: the configured ones, or every
// indexed image that is not a font page.
func (e *Engine) imageAssets() []string {
	if len(e.config.Assets.Images) > 0 {
		return e.config.Assets.Images
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	var names []string
	for _, name := range e.assetManager.Assets(metadata.ResourceTypeImage) {
		if _, ok := e.fontPages[name]; ok {
			continue
		}
		names = append(names, name)
	}
	return names
}

// LoadImages decodes and uploads the named images concurrently. A name that
// is already loaded gets a fresh image and the old one is destroyed.
func (e *Engine) LoadImages(ctx context.Context, names []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Assets.MaxConcurrentLoads)
	for _, name := range names {
		g.Go(func() error {
			return e.loadImage(gctx, name)
		})
	}
	return g.Wait()
}

func (e *Engine) loadImage(ctx context.Context, name string) error {
	params := &metadata.ImageResourceParams{
		FlipY:     e.config.Assets.FlipY,
		Keep16Bit: e.config.Assets.Keep16Bit,
	}
	res, err := e.assetManager.LoadAsset(name, params)
	if err != nil {
		return err
	}
	data := res.Data.(*metadata.ImageResourceData)
	pixels := data.Pixels
	defer e.assetManager.UnloadAsset(res)
	if !data.SRGB {
		core.LogDebug("image %s does not declare sRGB, sampling it as sRGB anyway", name)
	}

	h, err := e.upload(ctx, pixels)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	e.mu.Lock()
	old, replaced := e.images[name]
	e.images[name] = h
	e.mu.Unlock()
	if replaced {
		e.renderer.DestroyImage(old)
	}
	core.LogDebug("image %s uploaded (%s, %dx%d)", name, pixels.Layout(), pixels.Extent().Width, pixels.Extent().Height)
	return nil
}

func (e *Engine) upload(ctx context.Context, pixels *metadata.PixelBuffer) (renderer.ImageHandle, error) {
	h, err := e.renderer.CreateImage(pixels.Extent())
	if err != nil {
		return renderer.NilImage, err
	}
	if err := e.renderer.CopyPixels(ctx, pixels, h, []renderer.ImageCopy{{}}); err != nil {
		e.renderer.DestroyImage(h)
		return renderer.NilImage, err
	}
	return h, nil
}

func (e *Engine) unloadImage(name string) {
	e.mu.Lock()
	h, ok := e.images[name]
	delete(e.images, name)
	e.mu.Unlock()
	if ok {
		e.renderer.DestroyImage(h)
		core.LogInfo("image %s removed", name)
	}
}

// LoadFonts loads every bitmap font in the asset directory.
func (e *Engine) LoadFonts(ctx context.Context) error {
	for _, name := range e.assetManager.Assets(metadata.ResourceTypeBitmapFont) {
		if err := e.loadFont(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) loadFont(ctx context.Context, name string) error {
	res, err := e.assetManager.LoadAsset(name, nil)
	if err != nil {
		return err
	}
	data := res.Data.(*metadata.BitmapFontResourceData)
	defer e.assetManager.UnloadAsset(res)

	font := &renderer.Font{Data: data.Data}
	for i, page := range data.Pages {
		if page.ID >= len(font.Pages) {
			font.Pages = append(font.Pages, make([]renderer.ImageHandle, page.ID+1-len(font.Pages))...)
		}
		h, err := e.upload(ctx, data.PagePixels[i])
		if err != nil {
			e.destroyFont(font)
			return fmt.Errorf("%s page %s: %w", name, page.File, err)
		}
		font.Pages[page.ID] = h
	}

	e.mu.Lock()
	old := e.fonts[name]
	e.fonts[name] = font
	for _, page := range data.Pages {
		e.fontPages[path.Join(path.Dir(name), page.File)] = name
	}
	e.mu.Unlock()
	if old != nil {
		e.destroyFont(old)
	}
	core.LogDebug("font %s (%s) loaded with %d pages", name, data.Data.Face, len(data.Pages))
	return nil
}

func (e *Engine) destroyFont(font *renderer.Font) {
	for _, h := range font.Pages {
		if h != renderer.NilImage {
			e.renderer.DestroyImage(h)
		}
	}
}

func (e *Engine) unloadFont(name string) {
	e.mu.Lock()
	font, ok := e.fonts[name]
	delete(e.fonts, name)
	for page, owner := range e.fontPages {
		if owner == name {
			delete(e.fontPages, page)
		}
	}
	e.mu.Unlock()
	if ok {
		e.destroyFont(font)
		core.LogInfo("font %s removed", name)
	}
}

func stem(name string) string {
	base := path.Base(name)
	return strings.TrimSuffix(base, path.Ext(base))
}

// Image resolves an image by its path relative to the asset directory, or
// by its file name without extension.
func (e *Engine) Image(name string) (renderer.ImageHandle, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if h, ok := e.images[name]; ok {
		return h, true
	}
	for key, h := range e.images {
		if stem(key) == name {
			return h, true
		}
	}
	return renderer.NilImage, false
}

// Font resolves a font by relative path, file name without extension, or
// face name.
func (e *Engine) Font(name string) (*renderer.Font, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if f, ok := e.fonts[name]; ok {
		return f, true
	}
	for key, f := range e.fonts {
		if stem(key) == name || f.Data.Face == name {
			return f, true
		}
	}
	return nil, false
}

// BuildDrawList turns scene commands into a draw command list.
func (e *Engine) BuildDrawList(scene *metadata.SceneData) (*renderer.DrawCommandList, error) {
	list := renderer.NewDrawCommandList()
	for i, cmd := range scene.Commands {
		var err error
		switch cmd.Kind {
		case metadata.SceneCommandClear:
			list.Clear()
		case metadata.SceneCommandScissor:
			list.Scissor(cmd.Rect)
		case metadata.SceneCommandRect:
			err = list.DrawRect(cmd.Rect, cmd.Color)
		case metadata.SceneCommandImage:
			err = e.drawImage(list, cmd)
		case metadata.SceneCommandText:
			font, ok := e.Font(cmd.Font)
			if !ok {
				err = fmt.Errorf("%w: font %q", core.ErrInvalidHandle, cmd.Font)
				break
			}
			err = list.DrawText(font, cmd.Origin, cmd.Text, cmd.Color)
		}
		if err != nil {
			return nil, fmt.Errorf("scene %s command %d (%s): %w", scene.Name, i, cmd.Kind, err)
		}
	}
	return list, nil
}

func (e *Engine) drawImage(list *renderer.DrawCommandList, cmd metadata.SceneCommand) error {
	h, ok := e.Image(cmd.Image)
	if !ok {
		return fmt.Errorf("%w: image %q", core.ErrInvalidHandle, cmd.Image)
	}
	src := cmd.Source
	if src.IsEmpty() {
		img, err := e.renderer.Image(h)
		if err != nil {
			return err
		}
		src = metadata.NewRect(0, 0, int16(img.Width), int16(img.Height))
	}
	return list.DrawImage(cmd.Rect, h, src, cmd.Color)
}

func (e *Engine) evaluateScene(params *metadata.SceneParams) (*metadata.SceneData, error) {
	if e.config.Assets.Scene != "" {
		res, err := e.assetManager.LoadAsset(e.config.Assets.Scene, params)
		if err != nil {
			return nil, err
		}
		defer e.assetManager.UnloadAsset(res)
		return res.Data.(*metadata.SceneData), nil
	}
	if e.gameInstance.FnScene != nil {
		return e.gameInstance.FnScene(params)
	}
	return &metadata.SceneData{Name: "empty"}, nil
}

// RenderFrame evaluates the scene and draws it into the framebuffer.
func (e *Engine) RenderFrame(ctx context.Context) error {
	if e.currentStage == EngineStageUninitialized || e.renderer == nil {
		return core.ErrNotInitialized
	}
	clock := core.NewClock()
	clock.Start()

	params := &metadata.SceneParams{
		Width:  e.config.Target.Width,
		Height: e.config.Target.Height,
		Frame:  e.frame.Load(),
	}
	scene, err := e.evaluateScene(params)
	if err != nil {
		return err
	}
	list, err := e.BuildDrawList(scene)
	if err != nil {
		return err
	}
	if err := e.renderer.Draw(ctx, e.framebuffer, list); err != nil {
		return err
	}

	clock.Update()
	core.MetricsRecord(core.MetricStageFrame, clock.Elapsed())
	frame := e.frame.Add(1)

	img, err := e.renderer.Image(e.framebuffer)
	if err != nil {
		return err
	}
	core.EventFire(core.EVENT_CODE_FRAME_RENDERED, e, core.EventContext{Data: img})

	if e.platform != nil {
		pixels, err := e.renderer.GetImagePixels(e.framebuffer)
		if err != nil {
			return err
		}
		e.platform.Present(pixels)
	}
	core.LogDebug("frame %d: scene %s, %d batches, %d vertices", frame, scene.Name, len(list.Batches()), list.NumVertices())
	return nil
}

// Frame returns a copy of the framebuffer as 8-bit NRGBA.
func (e *Engine) Frame() (*image.NRGBA, error) {
	if e.renderer == nil {
		return nil, core.ErrNotInitialized
	}
	return e.renderer.GetImagePixels(e.framebuffer)
}

// WriteFrame encodes the framebuffer as PNG.
func (e *Engine) WriteFrame(w io.Writer) error {
	frame, err := e.Frame()
	if err != nil {
		return err
	}
	return png.Encode(w, frame)
}

// SaveFrame writes the framebuffer to path as PNG. An empty path uses the
// configured output and "-" writes to stdout.
func (e *Engine) SaveFrame(path string) error {
	if path == "" {
		path = e.config.Output.Path
	}
	if path == "-" {
		return e.WriteFrame(os.Stdout)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := e.WriteFrame(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	core.LogInfo("frame %d saved to %s", e.frame.Load(), path)
	return nil
}

// ExportShaders generates the UI variants and the configured normalization
// kernel, compiles them and writes them to dir. An empty dir uses the
// configured shader directory.
func (e *Engine) ExportShaders(dir string) error {
	if dir == "" {
		dir = e.config.Output.ShaderDir
	}
	layout, err := e.config.Kernel.ChannelLayout()
	if err != nil {
		return err
	}
	k, err := kernel.New(layout,
		kernel.WithFlattenOrder(e.config.flattenOrder()),
		kernel.WithNormalization(e.config.normalization()),
	)
	if err != nil {
		return err
	}
	mods, err := shaders.CompileAll(k)
	if err != nil {
		return err
	}
	if err := shaders.WriteModules(dir, mods); err != nil {
		return err
	}
	manifest, err := shaders.BuildManifest(k, math.UVec2{X: e.config.Target.Width, Y: e.config.Target.Height})
	if err != nil {
		return err
	}
	if err := shaders.WriteManifest(dir, manifest); err != nil {
		return err
	}
	compiled := 0
	for _, m := range mods {
		if len(m.SPIRV) > 0 {
			compiled++
		}
	}
	core.LogInfo("%d shader modules written to %s, %d compiled to SPIR-V", len(mods), dir, compiled)
	return nil
}

// Run renders and saves the first frame. Without watch or preview it returns
// right after. Otherwise it keeps rendering until quit is requested or ctx
// is done. With preview the window runs on the calling goroutine, which must
// be the main one.
func (e *Engine) Run(ctx context.Context) error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine is %s, cannot run", e.currentStage)
	}
	e.currentStage = EngineStageRunning

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := e.renderAndSave(ctx); err != nil {
		return err
	}
	if !e.config.Application.Watch && !e.config.Application.Preview {
		return nil
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.loop(ctx)
	}()

	if e.platform != nil {
		err := e.platform.Run()
		cancel()
		if loopErr := <-errCh; err == nil && !errors.Is(loopErr, context.Canceled) {
			err = loopErr
		}
		return err
	}

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (e *Engine) loop(ctx context.Context) error {
	var tick <-chan time.Time
	if e.platform != nil {
		ticker := time.NewTicker(time.Second / time.Duration(e.config.Application.FrameRate))
		defer ticker.Stop()
		tick = ticker.C
	}
	report := time.NewTicker(10 * time.Second)
	defer report.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.quit:
			return nil
		case name := <-e.changes:
			if name != "" {
				if err := e.reloadAsset(ctx, name); err != nil {
					core.LogError("reloading %s: %s", name, err)
					continue
				}
			}
			if err := e.renderAndSave(ctx); err != nil {
				core.LogError("%s", err)
			}
		case <-tick:
			if err := e.RenderFrame(ctx); err != nil {
				core.LogError("%s", err)
			}
		case <-report.C:
			core.MetricsReport()
		}
	}
}

// renderAndSave renders a frame and, when an output is configured, saves it.
// The preview ticker renders without saving.
func (e *Engine) renderAndSave(ctx context.Context) error {
	if err := e.RenderFrame(ctx); err != nil {
		return err
	}
	if e.config.Output.Path == "" {
		return nil
	}
	return e.SaveFrame("")
}

// reloadAsset brings the engine up to date with the asset at the absolute
// path p.
func (e *Engine) reloadAsset(ctx context.Context, p string) error {
	rel, err := filepath.Rel(e.assetManager.Root(), p)
	if err != nil {
		return err
	}
	name := filepath.ToSlash(rel)
	_, statErr := os.Stat(p)
	removed := errors.Is(statErr, os.ErrNotExist)

	switch assets.TypeOf(p) {
	case metadata.ResourceTypeImage:
		e.mu.RLock()
		font, isPage := e.fontPages[name]
		e.mu.RUnlock()
		if isPage {
			return e.loadFont(ctx, font)
		}
		if removed {
			e.unloadImage(name)
			return nil
		}
		if len(e.config.Assets.Images) > 0 && !contains(e.config.Assets.Images, name) {
			return nil
		}
		return e.loadImage(ctx, name)
	case metadata.ResourceTypeBitmapFont:
		if removed {
			e.unloadFont(name)
			return nil
		}
		return e.loadFont(ctx, name)
	case metadata.ResourceTypeConfig:
		core.LogWarn("%s changed, restart to apply it", name)
	}
	// scenes are evaluated on every frame
	return nil
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// requestQuit stops the run loop and the preview window.
func (e *Engine) requestQuit() {
	e.quitOnce.Do(func() {
		close(e.quit)
		if e.platform != nil {
			e.platform.Shutdown()
		}
	})
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	switch code {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.requestQuit()
		return true
	}
	return false
}

func (e *Engine) onAssetEvent(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	select {
	case e.changes <- data.Path:
	default:
		core.LogWarn("asset change queue is full, dropping %s", data.Path)
	}
	return false
}

func (e *Engine) onKey(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	ev, ok := data.Data.(*core.KeyEvent)
	if !ok {
		return false
	}
	switch ev.KeyCode {
	case core.KEY_ESCAPE, core.KEY_Q:
		core.EventFire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
		return true
	case core.KEY_R:
		select {
		case e.changes <- "":
		default:
		}
		return true
	case core.KEY_S:
		if err := e.SaveFrame(""); err != nil {
			core.LogError("%s", err)
		}
		return true
	}
	return false
}

// Shutdown stops the run loop and releases every system. It is safe to call
// more than once.
func (e *Engine) Shutdown() error {
	var err error
	e.downOnce.Do(func() {
		e.currentStage = EngineStageShuttingDown
		e.requestQuit()

		core.EventUnregister(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
		core.EventUnregister(core.EVENT_CODE_ASSET_CHANGED, e, e.onAssetEvent)
		core.EventUnregister(core.EVENT_CODE_ASSET_REMOVED, e, e.onAssetEvent)
		core.EventUnregister(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)

		var errs []error
		if e.gameInstance.FnShutdown != nil {
			errs = append(errs, e.gameInstance.FnShutdown())
		}
		errs = append(errs, e.assetManager.Shutdown())
		if e.renderer != nil {
			errs = append(errs, e.renderer.Shutdown())
		}
		if e.jobs != nil {
			errs = append(errs, e.jobs.Shutdown())
		}
		core.MetricsReport()
		err = errors.Join(errs...)
	})
	return err
}
