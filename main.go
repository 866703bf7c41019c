package main

import "github.com/quantfold/polymarket-bot/cmd"

func main() {
	cmd.Execute()
}
