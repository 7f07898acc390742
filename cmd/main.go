package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/aligator/gocfb"
)

func main() {
	argsWithoutProg := os.Args[1:]
	if len(argsWithoutProg) <= 0 {
		fmt.Println("Please provide a filename.")
		os.Exit(1)
	}

	file, err := os.Open(argsWithoutProg[0])
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	defer file.Close()

	fs, err := gocfb.New(file)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	fmt.Println("root:", fs.RootName())
	for _, stream := range fs.ListStreams() {
		fmt.Println("stream:", strings.Join(stream, "/"))
	}

	meta := fs.Metadata()
	if meta.Title != "" {
		fmt.Println("title:", meta.Title)
	}
	if meta.Author != "" {
		fmt.Println("author:", meta.Author)
	}
	if !meta.LastSavedTime.IsZero() {
		fmt.Println("last saved:", meta.LastSavedTime)
	}
}
