package main

import "github.com/forPelevin/hlscene/internal/cli"

func main() { cli.Main() }
