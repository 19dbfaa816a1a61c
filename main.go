package main

import "github.com/shouni/go-crawl-pilot/cmd"

func main() {
	cmd.Execute()
}
