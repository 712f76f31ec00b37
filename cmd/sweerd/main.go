package main

import (
	"sweer/internal/bootstrap"
)

func main() {
	bootstrap.NewApp().Run()
}
