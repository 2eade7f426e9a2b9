package livemetro_test

import (
	"context"
	"fmt"
	"time"

	livemetro "github.com/k002bill2/livemetro"
	"github.com/k002bill2/livemetro/store"
)

// ExampleNewEngineBuilder shows the typical wiring: the Seoul live API as
// the primary tier and a SQLite-backed local cache under it.
func ExampleNewEngineBuilder() {
	backend, err := store.NewSQLiteBackend("livemetro.db")
	if err != nil {
		panic(err)
	}

	engine, err := livemetro.NewEngineBuilder(livemetro.NewSeoulLiveSource("my-api-key")).
		WithBackend(backend).
		WithRealtimeTTL(30 * time.Second).
		Build()
	if err != nil {
		panic(err)
	}
	defer engine.Close()

	data, err := engine.GetRealtimeTrains(context.Background(), "강남")
	if err != nil {
		panic(err)
	}

	if data == nil {
		fmt.Println("realtime data unavailable")
		return
	}

	for _, train := range data.Trains {
		fmt.Printf("%s → %s: %s\n", train.LineName, train.Destination, train.ArrivalMessage)
	}
}

// ExampleEngine_SubscribeToRealtimeUpdates polls a station and fans
// results out to the callback until cancelled.
func ExampleEngine_SubscribeToRealtimeUpdates() {
	engine, err := livemetro.NewEngineBuilder(livemetro.NewSeoulLiveSource("my-api-key")).Build()
	if err != nil {
		panic(err)
	}
	defer engine.Close()

	cancel := engine.SubscribeToRealtimeUpdates("강남", func(data *livemetro.RealtimeTrainData) {
		if data == nil {
			fmt.Println("unavailable")
			return
		}
		fmt.Printf("%d trains approaching\n", len(data.Trains))
	}, 15*time.Second)
	defer cancel()

	time.Sleep(time.Minute)
}
