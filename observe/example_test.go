package observe_test

import (
	"context"
	"fmt"
	"os"

	"github.com/jonwraymond/callgate/observe"
)

func ExampleFuncMeta_SpanName() {
	fmt.Println(observe.FuncMeta{Name: "fetch_user"}.SpanName())
	fmt.Println(observe.FuncMeta{Name: "billing_api", Kind: observe.KindGate}.SpanName())
	// Output:
	// callgate.memo.fetch_user
	// callgate.gate.billing_api
}

func ExampleMiddleware_Observe() {
	mw := observe.MiddlewareFromInstruments(observe.NopInstruments())

	err := mw.Observe(context.Background(), observe.FuncMeta{Name: "fetch_user"}, func(ctx context.Context) error {
		fmt.Println("working")
		return nil
	})
	fmt.Println(err)
	// Output:
	// working
	// <nil>
}

func ExampleNewObserver() {
	obs, err := observe.NewObserver(context.Background(), observe.Config{
		ServiceName: "billing",
		Version:     "1.2.0",
		Logging:     observe.LoggingConfig{Enabled: true, Level: "warn"},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	defer func() { _ = obs.Shutdown(context.Background()) }()

	in, err := observe.InstrumentsFromObserver(obs)
	fmt.Println(err == nil, in.Logger != nil)
	// Output:
	// true true
}
