package scene

import (
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/game_object"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
)

// updateBatch is the number of objects one compute task advances.
const updateBatch = 64

// Scene holds a registry of GameObjects together with the camera, light, and
// environment a renderer needs to draw them. Scene implements renderer.World
// and can be hot-swapped on a viewport via the Active flag.
// Thread-safe for concurrent access.
type Scene interface {
	renderer.World

	// Name returns the scene's identifier.
	Name() string

	// SetName sets the scene's identifier.
	SetName(name string)

	// Active returns whether this scene is currently active for rendering.
	Active() bool

	// SetActive sets whether this scene is active for rendering.
	SetActive(active bool)

	// SetCamera replaces the scene's camera. A nil camera makes renderers skip the scene.
	//
	// Parameters:
	//   - cam: the new camera
	SetCamera(cam camera.Camera)

	// SetLight replaces the primary directional light. Nil leaves only ambient light.
	//
	// Parameters:
	//   - l: the new light
	SetLight(l light.Light)

	// SetEnvironment replaces the sky, ambient, and fog parameters.
	//
	// Parameters:
	//   - env: the new environment
	SetEnvironment(env renderer.Environment)

	// Count returns the number of persisted GameObjects in the scene's registry. Does not include ephemeral objects.
	//
	// Returns:
	//   - int: count of non-ephemeral GameObjects in the registry
	Count() int

	// CountEphemeral returns the number of ephemeral GameObjects drawn this frame.
	//
	// Returns:
	//   - int: count of ephemeral GameObjects
	CountEphemeral() int

	// Add adds a GameObject to the scene. Objects without an ID are assigned
	// the next free one. Non-ephemeral objects are persisted in the registry for
	// lookup and removal by ID; ephemeral objects are drawn until
	// ClearEphemeral.
	//
	// Parameters:
	//   - obj: the GameObject to add
	//
	// Returns:
	//   - uint64: the assigned object ID, or 0 for a nil object
	Add(obj game_object.GameObject) uint64

	// Get retrieves a non-ephemeral GameObject by its ID.
	// Returns nil if not found.
	//
	// Parameters:
	//   - id: the object's unique ID
	//
	// Returns:
	//   - game_object.GameObject: the object or nil
	Get(id uint64) game_object.GameObject

	// Remove removes a non-ephemeral GameObject from the registry by ID.
	//
	// Parameters:
	//   - id: the object's unique ID
	Remove(id uint64)

	// ClearEphemeral drops every ephemeral object.
	ClearEphemeral()

	// Clear removes all objects from the scene. Does not release models.
	Clear()

	// Update advances every enabled object by deltaTime. Objects are split into
	// batches run on the scene's worker pool; Update returns once all batches finish.
	//
	// Parameters:
	//   - deltaTime: elapsed time since the last frame in seconds
	Update(deltaTime float32)
}

type scene struct {
	mu *sync.RWMutex

	name   string
	active bool

	registry  map[uint64]game_object.GameObject
	order     []uint64 // registry IDs in insertion order
	ephemeral []game_object.GameObject
	nextID    uint64

	cam camera.Camera
	lgt light.Light
	env renderer.Environment

	updatePool    worker.DynamicWorkerPool
	updateWorkers int
	taskID        int
}

// Ensure scene implements Scene interface.
var _ Scene = &scene{}

// NewScene creates a new Scene viewed through cam.
//
// Parameters:
//   - name: the name of the scene
//   - cam: the camera to attach, may be nil until SetCamera
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, cam camera.Camera, options ...SceneBuilderOption) Scene {
	s := &scene{
		mu:            &sync.RWMutex{},
		name:          name,
		cam:           cam,
		env:           renderer.DefaultEnvironment(),
		registry:      make(map[uint64]game_object.GameObject),
		nextID:        1,
		updateWorkers: max(runtime.NumCPU()-1, 1),
	}

	for _, option := range options {
		option(s)
	}

	// Workers idle-exit after a second, so an unused scene holds no goroutines.
	s.updatePool = worker.NewDynamicWorkerPool(s.updateWorkers, 256, 1*time.Second)
	return s
}

func (s *scene) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *scene) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *scene) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *scene) Camera() renderer.Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cam == nil {
		return nil
	}
	return s.cam
}

func (s *scene) SetCamera(cam camera.Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cam = cam
}

func (s *scene) Light() renderer.Light {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lgt == nil {
		return nil
	}
	return s.lgt
}

func (s *scene) SetLight(l light.Light) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lgt = l
}

func (s *scene) Environment() renderer.Environment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.env
}

func (s *scene) SetEnvironment(env renderer.Environment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.env = env
}

// Drawables returns the enabled persisted objects in insertion order followed
// by the ephemeral ones.
func (s *scene) Drawables() []renderer.Drawable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]renderer.Drawable, 0, len(s.order)+len(s.ephemeral))
	for _, id := range s.order {
		if obj := s.registry[id]; obj.Enabled() {
			out = append(out, obj)
		}
	}
	for _, obj := range s.ephemeral {
		if obj.Enabled() {
			out = append(out, obj)
		}
	}
	return out
}

func (s *scene) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.registry)
}

func (s *scene) CountEphemeral() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ephemeral)
}

func (s *scene) Add(obj game_object.GameObject) uint64 {
	if obj == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(obj)
}

func (s *scene) addLocked(obj game_object.GameObject) uint64 {
	id := obj.ID()
	if id == 0 {
		id = s.nextID
		obj.SetID(id)
	}
	s.nextID = max(s.nextID, id+1)

	if obj.Ephemeral() {
		s.ephemeral = append(s.ephemeral, obj)
		return id
	}
	if _, ok := s.registry[id]; !ok {
		s.order = append(s.order, id)
	}
	s.registry[id] = obj
	return id
}

func (s *scene) Get(id uint64) game_object.GameObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry[id]
}

func (s *scene) Remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.registry[id]; !ok {
		return
	}
	delete(s.registry, id)
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
}

func (s *scene) ClearEphemeral() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.ephemeral)
	s.ephemeral = s.ephemeral[:0]
}

func (s *scene) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.registry)
	s.order = s.order[:0]
	clear(s.ephemeral)
	s.ephemeral = s.ephemeral[:0]
}

func (s *scene) Update(deltaTime float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	objects := make([]game_object.GameObject, 0, len(s.order)+len(s.ephemeral))
	for _, id := range s.order {
		objects = append(objects, s.registry[id])
	}
	objects = append(objects, s.ephemeral...)
	if len(objects) == 0 {
		return
	}

	// A WaitGroup gives a per-frame barrier; pool.Wait blocks until workers
	// idle-exit, which is too late for a frame.
	var wg sync.WaitGroup
	for batch := range slices.Chunk(objects, updateBatch) {
		wg.Add(1)
		s.taskID++
		s.updatePool.SubmitTask(worker.Task{
			ID: s.taskID,
			Do: func() (any, error) {
				defer wg.Done()
				for _, obj := range batch {
					if obj.Enabled() {
						obj.Update(deltaTime)
					}
				}
				return nil, nil
			},
		})
	}
	wg.Wait()
}
