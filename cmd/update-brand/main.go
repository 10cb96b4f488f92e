package main

import (
	"novawatch/cmd/update-brand/commands"
	"novawatch/lib/util/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
