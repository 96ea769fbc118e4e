// ./main.go
package main

import (
	"github.com/SerupAI/mobiledroid/cmd"
)

func main() {
	cmd.Execute()
}
