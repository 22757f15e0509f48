// Package main is the entry point for monoclient.
//
//	@title			monoclient inspector
//	@version		1.0
//	@description	Local HTTP surface for watching and driving a running mono client.
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host			127.0.0.1:9191
//	@BasePath		/
package main

func main() {
	Execute()
}
