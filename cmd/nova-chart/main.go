package main

import (
	"novawatch/cmd/nova-chart/commands"
	"novawatch/lib/util/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
