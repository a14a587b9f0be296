package main

import (
	"flag"
	"log"

	"github.com/milk9111/physbridge/ecs"
	"github.com/milk9111/physbridge/ecs/system"
	"github.com/milk9111/physbridge/physics/character"
	"github.com/milk9111/physbridge/prefabs"
)

func main() {
	frames := flag.Int("frames", 600, "number of frames to simulate")
	dt := flag.Float64("dt", 1.0/60.0, "frame delta in seconds")
	scripted := flag.Bool("script", true, "drive the player with the configured tengo script")
	dir := flag.String("prefabs", "prefabs", "directory whose files override the embedded prefabs (empty disables)")
	watch := flag.Bool("watch", false, "reload prefab edits while running")
	every := flag.Int("log", 60, "log player state every n frames (0 disables)")
	flag.Parse()

	prefabs.Default.Dir = *dir
	cfg := prefabs.MustLoadConfig(prefabs.ConfigFile)

	var changes system.ChangeSource
	if *watch {
		w, err := prefabs.Default.Watch()
		if err != nil {
			log.Fatal(err)
		}
		defer w.Close()
		changes = w
	}

	scene, err := NewScene(cfg, *scripted, changes)
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		if err := scene.Close(); err != nil {
			log.Printf("simulate: close: %v", err)
		}
	}()

	for i := 0; i < *frames; i++ {
		events, err := scene.Frame(*dt)
		if err != nil {
			log.Printf("simulate: frame %d: %v", i, err)
			return
		}
		for _, evt := range events {
			logEvent(evt)
		}
		if *every > 0 && i%*every == 0 {
			scene.logState()
		}
	}
}

func logEvent(evt ecs.Event) {
	switch evt.Type {
	case ecs.EventGroundState:
		if c, ok := evt.Data.(character.StateChange); ok {
			log.Printf("character %s: ground %s -> %s", evt.Entity, c.PrevGround, c.Ground)
		}
	case ecs.EventUserState:
		if c, ok := evt.Data.(character.StateChange); ok {
			log.Printf("character %s: user %s -> %s", evt.Entity, c.PrevUser, c.User)
		}
	default:
		log.Printf("event %s: %v", evt.Type, evt.Data)
	}
}
