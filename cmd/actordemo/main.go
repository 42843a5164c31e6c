// Command actordemo is a runnable walkthrough of the actor runtime,
// grounded on the teacher's cmd/demo/main.go traffic-light demo: a
// three-state machine driven by a ticker, with persistence and structured
// logging wired in instead of the teacher's DOT visualizer.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/comalice/actorstate/actorlog"
	"github.com/comalice/actorstate/inspect"
	"github.com/comalice/actorstate/machine"
	"github.com/comalice/actorstate/machine/builder"
	"github.com/comalice/actorstate/persistence"
	"github.com/comalice/actorstate/persistentactor"
	"github.com/comalice/actorstate/tag"
)

func trafficLight() *machine.Definition {
	next := map[string]string{"red": "green", "green": "yellow", "yellow": "red"}

	advance := func(hctx machine.HandlerContext) (tag.State, error) {
		return tag.NewState(next[hctx.State.Tag], nil), nil
	}

	def, err := builder.New(tag.NewState("red", nil)).
		MachineType("traffic-light").
		On("red", "TIMER", advance).
		On("green", "TIMER", advance).
		On("yellow", "TIMER", advance).
		Build()
	if err != nil {
		panic(err)
	}
	return def
}

func main() {
	log := actorlog.NewFromEnv("actordemo")

	def := trafficLight()

	adapter, err := persistence.NewJSONAdapter("/tmp/actordemo")
	if err != nil {
		log.WithError("traffic-light", def.MachineType, err).Fatal("actordemo: open persistence adapter")
	}

	sink := inspect.NewMultiSink(
		inspect.NewLogSink(actorlog.NewFromEnv("actordemo.inspect")),
	)

	schedule := persistentactor.IntervalSchedule{Interval: 5 * time.Second}

	pa, err := persistentactor.Spawn("traffic-light-1", def, adapter, schedule, sink)
	if err != nil {
		log.WithError("traffic-light-1", def.MachineType, err).Fatal("actordemo: spawn")
	}
	defer pa.Stop()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	const totalCycles = 12
	cycles := 0
	for cycles < totalCycles {
		select {
		case <-ticker.C:
			if err := pa.Ref().Send(tag.NewEvent("TIMER", nil)); err != nil {
				fmt.Printf("send error: %v\n", err)
			}
			cycles++
			fmt.Printf("--- cycle %d --- state=%s version=%d\n", cycles, pa.Ref().State().Tag, pa.Version())
			if cycles >= totalCycles {
				fmt.Println("demo complete")
				return
			}
		case <-sig:
			fmt.Println("shutting down")
			return
		}
	}
}
