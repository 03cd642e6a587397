package main

import (
	"context"
	"errors"
)

func main() {
	app := mustBootstrapLogisticsAPI()
	defer app.Close()

	if err := app.Run(); err != nil && !errors.Is(err, context.Canceled) {
		panic(err)
	}
}
