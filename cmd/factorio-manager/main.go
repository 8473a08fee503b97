package main

import "github.com/AidanHarveyNelson/factorio-headless/cmd/factorio-manager/cmd"

func main() {
	cmd.Execute()
}
