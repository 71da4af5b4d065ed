package main

import "github.com/layer-3/sudomode/cmd/sudomode/cmd"

func main() {
	cmd.Execute()
}
