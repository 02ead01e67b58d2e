// Command motivedemo is a minimal host-application sample: it opens a
// window the same way engine/window/window_glfw.go does elsewhere in this
// module's reference lineage, then drives a *motive.Engine from the same
// goroutine+ticker+sync.Once-quit pattern engine/engine.go uses for its own
// render loop. It rigs up a three-bone arm, blends it into one pose, and
// logs the rig's debug CSV once a second so the animation can be inspected
// without a renderer.
//
// This command is ambient scaffolding around the core engine, not part of
// it: package motive never imports anything under cmd/.
package main

import (
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/Carmen-Shannon/motive-go/motive"
)

func main() {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		log.Fatalf("motivedemo: failed to initialize GLFW: %v", err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Visible, glfw.False)
	win, err := glfw.CreateWindow(640, 480, "motivedemo", nil, nil)
	if err != nil {
		log.Fatalf("motivedemo: failed to create window: %v", err)
	}
	defer win.Destroy()

	win.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
	})

	eng := motive.NewEngine()
	rig, err := buildArmRig(eng)
	if err != nil {
		log.Fatalf("motivedemo: buildArmRig: %v", err)
	}

	quit := make(chan struct{})
	var quitOnce sync.Once
	signalQuit := func() { quitOnce.Do(func() { close(quit) }) }

	var wg sync.WaitGroup
	wg.Add(1)
	go runTickLoop(eng, &rig, quit, &wg)

	for !win.ShouldClose() {
		glfw.PollEvents()
		time.Sleep(16 * time.Millisecond)
	}
	signalQuit()
	wg.Wait()
}

// runTickLoop advances eng at a fixed 60Hz tick rate and logs the rig's
// debug CSV every second, mirroring engine/engine.go's handleEngine
// goroutine (ticker + quit-channel select loop).
func runTickLoop(eng *motive.Engine, rig *motive.RigHandle, quit <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(time.Second / 60)
	defer ticker.Stop()

	fmt.Println(rig.DebugCSVHeader())
	frames := 0
	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			eng.Advance(motive.Time(1.0 / 60.0))
			frames++
			if frames%60 == 0 {
				fmt.Println(rig.DebugCSVRow())
			}
		}
	}
}

// buildArmRig wires a 3-bone rig (shoulder -> elbow -> wrist), binds a
// single defining animation that rotates the shoulder and elbow, and kicks
// off playback. It exercises the same NewRigHandle/BlendToAnim surface a
// real host would use after loading clips from its own asset pipeline.
func buildArmRig(eng *motive.Engine) (motive.RigHandle, error) {
	boneParents := []int{motive.InvalidBone, 0, 1}

	anim := &motive.Animation{
		Duration:    2,
		BoneParents: boneParents,
		Bones: [][]motive.MatrixOpInit{
			{motive.ConstOp(0, motive.RotateAboutZ, 0.6), motive.ConstOp(1, motive.TranslateX, 1)},
			{motive.ConstOp(0, motive.RotateAboutZ, -0.9), motive.ConstOp(1, motive.TranslateX, 1)},
			{motive.ConstOp(0, motive.TranslateX, 0.5)},
		},
	}

	rig, err := motive.NewRigHandle(eng, motive.RigInit{
		DefiningAnimation: anim,
		BoneParents:       boneParents,
		RootMotionBone:    motive.InvalidBone,
	})
	if err != nil {
		return motive.RigHandle{}, fmt.Errorf("NewRigHandle: %w", err)
	}

	if err := rig.BlendToAnim(anim, motive.Playback{PlaybackRate: 1, BlendInDuration: 0.25}); err != nil {
		return motive.RigHandle{}, fmt.Errorf("BlendToAnim: %w", err)
	}
	return rig, nil
}
