package main

import "github.com/CrowderSoup/admin-panel/cmd"

func main() {
	cmd.Execute()
}
