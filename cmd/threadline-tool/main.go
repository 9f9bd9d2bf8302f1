// Command threadline-tool runs the echo tool server over stdio. It is
// the stock local tool server for tool subsessions:
//
//	tools:
//	  echo:
//	    type: local
//	    command: threadline-tool
package main

import (
	"log"

	"github.com/mark3labs/mcp-go/server"

	"github.com/threadline-ai/threadline/pkg/toolserver/echo"
)

func main() {
	s := echo.NewServer()
	if err := server.ServeStdio(s); err != nil {
		log.Fatal(err)
	}
}
